package swf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/compress/zlib"
)

const (
	headerFixedSize = 8 // signature, version, file length
	shortTagMaxLen  = 0x3e
	longTagMarker   = 0x3f
	maxTagCode      = 0x3ff
)

// Encode serializes the document. A terminating End tag is appended when the
// tag list does not already end with one. The declared file length is always
// the uncompressed length.
func (d *Document) Encode() ([]byte, error) {
	body, err := d.encodeBody()
	if err != nil {
		return nil, err
	}
	total := headerFixedSize + len(body)
	if uint64(total) > math.MaxUint32 {
		return nil, fmt.Errorf("document of %d bytes exceeds u32 file length", total)
	}

	out := make([]byte, 0, total)
	switch d.Header.Compression {
	case CompressionNone:
		out = append(out, 'F', 'W', 'S')
	case CompressionZlib:
		out = append(out, 'C', 'W', 'S')
	default:
		return nil, fmt.Errorf("unsupported compression %d", d.Header.Compression)
	}
	out = append(out, d.Header.Version)
	out = binary.LittleEndian.AppendUint32(out, uint32(total))

	if d.Header.Compression == CompressionNone {
		return append(out, body...), nil
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return nil, fmt.Errorf("compress body: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress body: %w", err)
	}
	return append(out, buf.Bytes()...), nil
}

func (d *Document) encodeBody() ([]byte, error) {
	rect, err := encodeRect(d.Header.FrameSize)
	if err != nil {
		return nil, err
	}
	body := make([]byte, 0, 64)
	body = append(body, rect...)
	body = binary.LittleEndian.AppendUint16(body, uint16(d.Header.FrameRate))
	body = binary.LittleEndian.AppendUint16(body, d.Header.FrameCount)

	tags := d.Tags
	if len(tags) == 0 || tags[len(tags)-1].Code != TagEnd {
		tags = append(tags[:len(tags):len(tags)], Tag{Code: TagEnd})
	}
	for _, t := range tags {
		if body, err = appendTag(body, t); err != nil {
			return nil, err
		}
	}
	return body, nil
}

func appendTag(out []byte, t Tag) ([]byte, error) {
	if t.Code > maxTagCode {
		return nil, fmt.Errorf("tag code %d exceeds 10 bits", t.Code)
	}
	n := len(t.Payload)
	if n > math.MaxInt32 {
		return nil, fmt.Errorf("tag %s payload too large", t.Code)
	}
	if n <= shortTagMaxLen && !t.LongHeader {
		out = binary.LittleEndian.AppendUint16(out, uint16(t.Code)<<6|uint16(n))
	} else {
		out = binary.LittleEndian.AppendUint16(out, uint16(t.Code)<<6|longTagMarker)
		out = binary.LittleEndian.AppendUint32(out, uint32(n))
	}
	return append(out, t.Payload...), nil
}
