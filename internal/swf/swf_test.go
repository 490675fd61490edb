package swf

import (
	"bytes"
	"encoding/binary"
	"testing"

	"swfdiff/internal/swf/avm1"
	appErr "swfdiff/pkg/errors"
)

func traceDocument(t *testing.T, compression Compression) *Document {
	t.Helper()
	w := avm1.NewWriter()
	w.Push(avm1.String("hello"))
	w.Op(avm1.ActionTrace)
	w.GetURL("fscommand:quit", "_root")
	if err := w.Err(); err != nil {
		t.Fatalf("write actions: %v", err)
	}
	return &Document{
		Header: Header{
			Version:     32,
			Compression: compression,
			FrameSize:   Rect{XMax: Twips(10), YMax: Twips(10)},
			FrameRate:   Fixed8FromFloat(60),
			FrameCount:  1,
		},
		Tags: []Tag{
			{Code: TagEnableDebugger2, Payload: append([]byte{0, 0}, StringPayload("$1$5C$2dKTbwjNlJlNSvp9qvD651")...)},
			{Code: TagDoAction, Payload: w.Bytes()},
			{Code: TagShowFrame},
		},
	}
}

func TestEncodeHeaderLayout(t *testing.T) {
	doc := traceDocument(t, CompressionNone)
	data, err := doc.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(data[:3]) != "FWS" || data[3] != 32 {
		t.Fatalf("unexpected signature/version % x", data[:4])
	}
	if got := binary.LittleEndian.Uint32(data[4:8]); int(got) != len(data) {
		t.Fatalf("declared length %d, actual %d", got, len(data))
	}
	// 10x10 px = 200 twips needs 9 signed bits: 5 + 4*9 = 41 bits -> 6 bytes.
	if data[8]>>3 != 9 {
		t.Fatalf("rect nbits = %d, want 9", data[8]>>3)
	}
	// frame rate 60.0 stored as 8.8 little endian: fraction byte then integer byte.
	if data[14] != 0 || data[15] != 60 {
		t.Fatalf("frame rate bytes = % x", data[14:16])
	}
	if !bytes.HasSuffix(data, []byte{0, 0}) {
		t.Fatal("document does not end with End tag")
	}
}

func TestEncodeDecodeRoundTripPreservesDocument(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionZlib} {
		doc := traceDocument(t, c)
		data, err := doc.Encode()
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Header != doc.Header {
			t.Errorf("header = %+v, want %+v", got.Header, doc.Header)
		}
		if len(got.Tags) != len(doc.Tags)+1 {
			t.Fatalf("tags = %d, want %d", len(got.Tags), len(doc.Tags)+1)
		}
		for i, tag := range doc.Tags {
			if got.Tags[i].Code != tag.Code || !bytes.Equal(got.Tags[i].Payload, tag.Payload) {
				t.Errorf("tag %d mismatch", i)
			}
		}
		if err := Validate(data, Bounds{MinVersion: 6, MaxVersion: 43}); err != nil {
			t.Errorf("validate: %v", err)
		}
	}
}

func TestLongTagHeader(t *testing.T) {
	doc := &Document{
		Header: Header{Version: 10, FrameCount: 0},
		Tags:   []Tag{{Code: TagMetadata, Payload: StringPayload("x"), LongHeader: true}},
	}
	data, err := doc.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Tags[0].LongHeader {
		t.Fatal("long header flag lost")
	}
	big := bytes.Repeat([]byte{'a'}, 100)
	doc.Tags = []Tag{{Code: TagMetadata, Payload: append(big, 0)}}
	if data, err = doc.Encode(); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := Validate(data, Bounds{}); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestRectSignedFields(t *testing.T) {
	cases := []Rect{
		{},
		{XMin: -1, XMax: 1, YMin: -20, YMax: 20},
		{XMax: 1<<30 - 1, YMax: 1},
		{XMin: -(1 << 30), XMax: 0},
	}
	for _, r := range cases {
		enc, err := encodeRect(r)
		if err != nil {
			t.Fatalf("encode %+v: %v", r, err)
		}
		got, n, err := decodeRect(enc)
		if err != nil {
			t.Fatalf("decode %+v: %v", r, err)
		}
		if got != r || n != len(enc) {
			t.Errorf("rect %+v decoded as %+v (%d/%d bytes)", r, got, n, len(enc))
		}
	}
	if _, err := encodeRect(Rect{XMax: 1 << 30}); err == nil {
		t.Error("expected error for 32-bit field")
	}
}

func TestValidateRejectsMalformed(t *testing.T) {
	valid, err := traceDocument(t, CompressionNone).Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	mutate := func(f func([]byte) []byte) []byte {
		cp := append([]byte(nil), valid...)
		return f(cp)
	}

	cases := []struct {
		name string
		data []byte
		b    Bounds
	}{
		{"bad signature", mutate(func(d []byte) []byte {
			d[0] = 'X'
			return d
		}), Bounds{}},
		{"length mismatch", mutate(func(d []byte) []byte {
			binary.LittleEndian.PutUint32(d[4:], uint32(len(d)+1))
			return d
		}), Bounds{}},
		{"truncated", mutate(func(d []byte) []byte {
			d = d[:len(d)-2]
			binary.LittleEndian.PutUint32(d[4:], uint32(len(d)))
			return d
		}), Bounds{}},
		{"trailing bytes", mutate(func(d []byte) []byte {
			d = append(d, 0xAA)
			binary.LittleEndian.PutUint32(d[4:], uint32(len(d)))
			return d
		}), Bounds{}},
		{"version above bound", valid, Bounds{MaxVersion: 10}},
		{"file too large", valid, Bounds{MaxFileBytes: 16}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.data, tc.b)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !appErr.Is(err, appErr.InvalidSWF) {
				t.Fatalf("error code = %v, want InvalidSWF", appErr.GetCode(err))
			}
		})
	}
}

func TestValidateChecksFrameCountAndActions(t *testing.T) {
	doc := traceDocument(t, CompressionNone)
	doc.Header.FrameCount = 2
	data, _ := doc.Encode()
	if err := Validate(data, Bounds{}); err == nil {
		t.Error("expected frame count mismatch")
	}

	doc = traceDocument(t, CompressionNone)
	doc.Tags[1].Payload = []byte{byte(avm1.ActionPush), 10, 0, 0}
	data, _ = doc.Encode()
	if err := Validate(data, Bounds{}); err == nil {
		t.Error("expected action overrun to be rejected")
	}
}
