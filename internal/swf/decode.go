package swf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Decode parses a SWF file. It enforces the container invariants (signature,
// declared length, RECT packing, tag record bounds, terminating End tag) but
// not content-level rules; see Validate for those.
func Decode(data []byte) (*Document, error) {
	if len(data) < headerFixedSize {
		return nil, fmt.Errorf("file of %d bytes is shorter than the header", len(data))
	}
	doc := &Document{}
	switch string(data[:3]) {
	case "FWS":
		doc.Header.Compression = CompressionNone
	case "CWS":
		doc.Header.Compression = CompressionZlib
	default:
		return nil, fmt.Errorf("unsupported signature %q", data[:3])
	}
	doc.Header.Version = data[3]
	declared := binary.LittleEndian.Uint32(data[4:8])

	body := data[headerFixedSize:]
	if doc.Header.Compression == CompressionZlib {
		zr, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("open zlib body: %w", err)
		}
		// Read one byte past the declared length so oversize bodies are caught.
		limit := int64(declared) - headerFixedSize + 1
		if limit < 1 {
			limit = 1
		}
		inflated, err := io.ReadAll(io.LimitReader(zr, limit))
		_ = zr.Close()
		if err != nil {
			return nil, fmt.Errorf("inflate body: %w", err)
		}
		body = inflated
	}
	if actual := uint64(headerFixedSize + len(body)); actual != uint64(declared) {
		return nil, fmt.Errorf("declared file length %d, actual %d", declared, actual)
	}

	rect, n, err := decodeRect(body)
	if err != nil {
		return nil, fmt.Errorf("frame size rect: %w", err)
	}
	doc.Header.FrameSize = rect
	body = body[n:]
	if len(body) < 4 {
		return nil, fmt.Errorf("header truncated after rect")
	}
	doc.Header.FrameRate = Fixed8(binary.LittleEndian.Uint16(body))
	doc.Header.FrameCount = binary.LittleEndian.Uint16(body[2:])
	body = body[4:]

	for {
		tag, rest, err := readTag(body)
		if err != nil {
			return nil, fmt.Errorf("tag %d: %w", len(doc.Tags), err)
		}
		doc.Tags = append(doc.Tags, tag)
		body = rest
		if tag.Code == TagEnd {
			break
		}
	}
	if len(body) != 0 {
		return nil, fmt.Errorf("%d trailing bytes after End tag", len(body))
	}
	return doc, nil
}

func readTag(data []byte) (Tag, []byte, error) {
	if len(data) < 2 {
		return Tag{}, nil, fmt.Errorf("missing End tag")
	}
	codeAndLen := binary.LittleEndian.Uint16(data)
	t := Tag{Code: TagCode(codeAndLen >> 6)}
	n := int(codeAndLen & longTagMarker)
	data = data[2:]
	if n == longTagMarker {
		if len(data) < 4 {
			return Tag{}, nil, fmt.Errorf("%s: truncated long length", t.Code)
		}
		long := binary.LittleEndian.Uint32(data)
		if uint64(long) > uint64(len(data)-4) {
			return Tag{}, nil, fmt.Errorf("%s: length %d overruns remaining %d bytes", t.Code, long, len(data)-4)
		}
		n = int(long)
		data = data[4:]
		t.LongHeader = n <= shortTagMaxLen
	}
	if n > len(data) {
		return Tag{}, nil, fmt.Errorf("%s: length %d overruns remaining %d bytes", t.Code, n, len(data))
	}
	t.Payload = data[:n:n]
	return t, data[n:], nil
}
