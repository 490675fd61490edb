package avm1

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

const branchRecordSize = 5

// Writer appends action records to an in-memory buffer. The first encoding
// error sticks; later calls are ignored and Err reports it.
type Writer struct {
	buf []byte
	err error
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 256)}
}

// Len is the number of bytes written so far, excluding the End action.
func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) Err() error {
	return w.err
}

// Bytes returns the action stream terminated by ActionEnd.
func (w *Writer) Bytes() []byte {
	out := make([]byte, len(w.buf)+1)
	copy(out, w.buf)
	return out
}

// Op writes an action without payload.
func (w *Writer) Op(code ActionCode) {
	if w.err != nil {
		return
	}
	if code.HasPayload() {
		w.err = fmt.Errorf("action %s requires a payload", code)
		return
	}
	w.buf = append(w.buf, byte(code))
}

// Raw writes an action record with an arbitrary payload.
func (w *Writer) Raw(code ActionCode, payload []byte) {
	if w.err != nil {
		return
	}
	if !code.HasPayload() {
		w.err = fmt.Errorf("action %s has no payload", code)
		return
	}
	if len(payload) > math.MaxUint16 {
		w.err = fmt.Errorf("action %s payload of %d bytes exceeds u16 length", code, len(payload))
		return
	}
	w.buf = append(w.buf, byte(code))
	w.buf = binary.LittleEndian.AppendUint16(w.buf, uint16(len(payload)))
	w.buf = append(w.buf, payload...)
}

// Push writes one Push record holding all values.
func (w *Writer) Push(values ...Value) {
	if w.err != nil {
		return
	}
	size := 0
	for _, v := range values {
		size += v.encodedSize()
	}
	payload := make([]byte, 0, size)
	for _, v := range values {
		var err error
		payload, err = appendValue(payload, v)
		if err != nil {
			w.err = err
			return
		}
	}
	w.Raw(ActionPush, payload)
}

func appendValue(out []byte, v Value) ([]byte, error) {
	out = append(out, byte(v.Type))
	switch v.Type {
	case PushString:
		if strings.IndexByte(v.Str, 0) >= 0 {
			return nil, fmt.Errorf("push string contains NUL")
		}
		out = append(out, v.Str...)
		out = append(out, 0)
	case PushFloat:
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v.Float))
	case PushNull, PushUndefined:
	case PushRegister, PushConstant8:
		if v.Index > math.MaxUint8 {
			return nil, fmt.Errorf("push index %d exceeds u8", v.Index)
		}
		out = append(out, byte(v.Index))
	case PushBool:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		out = append(out, b)
	case PushDouble:
		hi, lo := doubleWords(v.Double)
		out = binary.LittleEndian.AppendUint32(out, hi)
		out = binary.LittleEndian.AppendUint32(out, lo)
	case PushInt:
		out = binary.LittleEndian.AppendUint32(out, uint32(v.Int))
	case PushConstant16:
		out = binary.LittleEndian.AppendUint16(out, v.Index)
	default:
		return nil, fmt.Errorf("unknown push type %d", v.Type)
	}
	return out, nil
}

// GetURL writes a GetURL record.
func (w *Writer) GetURL(url, target string) {
	if strings.IndexByte(url, 0) >= 0 || strings.IndexByte(target, 0) >= 0 {
		if w.err == nil {
			w.err = fmt.Errorf("getURL argument contains NUL")
		}
		return
	}
	payload := make([]byte, 0, len(url)+len(target)+2)
	payload = append(payload, url...)
	payload = append(payload, 0)
	payload = append(payload, target...)
	payload = append(payload, 0)
	w.Raw(ActionGetURL, payload)
}

// Jump writes an unconditional branch. Offsets are relative to the end of the record.
func (w *Writer) Jump(offset int16) {
	w.branch(ActionJump, offset)
}

// If writes a conditional branch taken when the popped value is truthy.
func (w *Writer) If(offset int16) {
	w.branch(ActionIf, offset)
}

// IfBackTo writes an If whose target is the absolute position pos, which must
// already have been written.
func (w *Writer) IfBackTo(pos int) {
	offset := pos - (len(w.buf) + branchRecordSize)
	if offset < math.MinInt16 || offset > math.MaxInt16 {
		if w.err == nil {
			w.err = fmt.Errorf("branch offset %d out of range", offset)
		}
		return
	}
	w.If(int16(offset))
}

func (w *Writer) branch(code ActionCode, offset int16) {
	var payload [2]byte
	binary.LittleEndian.PutUint16(payload[:], uint16(offset))
	w.Raw(code, payload[:])
}
