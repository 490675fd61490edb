package avm1

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Instruction is one decoded action record.
type Instruction struct {
	Offset  int
	Code    ActionCode
	Payload []byte
}

// Size is the encoded size of the record including its header.
func (in Instruction) Size() int {
	if in.Code.HasPayload() {
		return 3 + len(in.Payload)
	}
	return 1
}

// End is the offset just past the record.
func (in Instruction) End() int {
	return in.Offset + in.Size()
}

// Parse splits an action stream into records. Parsing stops at the first
// ActionEnd; a stream that runs out of bytes first is an error.
func Parse(code []byte) ([]Instruction, error) {
	var out []Instruction
	pos := 0
	for {
		if pos >= len(code) {
			return nil, fmt.Errorf("action stream not terminated by End")
		}
		op := ActionCode(code[pos])
		if op == ActionEnd {
			out = append(out, Instruction{Offset: pos, Code: op})
			return out, nil
		}
		if !op.HasPayload() {
			out = append(out, Instruction{Offset: pos, Code: op})
			pos++
			continue
		}
		if pos+3 > len(code) {
			return nil, fmt.Errorf("action %s at %d: truncated length", op, pos)
		}
		n := int(binary.LittleEndian.Uint16(code[pos+1:]))
		if pos+3+n > len(code) {
			return nil, fmt.Errorf("action %s at %d: payload of %d bytes overruns stream", op, pos, n)
		}
		out = append(out, Instruction{Offset: pos, Code: op, Payload: code[pos+3 : pos+3+n]})
		pos += 3 + n
	}
}

// Verify parses the stream and checks that every branch lands on a record
// boundary inside the stream.
func Verify(code []byte) error {
	insts, err := Parse(code)
	if err != nil {
		return err
	}
	starts := make(map[int]struct{}, len(insts))
	for _, in := range insts {
		starts[in.Offset] = struct{}{}
	}
	for _, in := range insts {
		switch {
		case in.Code.IsBranch():
			off, err := DecodeBranch(in.Payload)
			if err != nil {
				return fmt.Errorf("action %s at %d: %w", in.Code, in.Offset, err)
			}
			target := in.End() + int(off)
			if _, ok := starts[target]; !ok {
				return fmt.Errorf("action %s at %d: branch target %d is not a record boundary", in.Code, in.Offset, target)
			}
		case in.Code == ActionPush:
			if _, err := DecodePush(in.Payload); err != nil {
				return fmt.Errorf("action Push at %d: %w", in.Offset, err)
			}
		case in.Code == ActionGetURL:
			if _, _, err := DecodeGetURL(in.Payload); err != nil {
				return fmt.Errorf("action GetURL at %d: %w", in.Offset, err)
			}
		}
	}
	return nil
}

// DecodeBranch reads the signed offset of a Jump or If.
func DecodeBranch(payload []byte) (int16, error) {
	if len(payload) != 2 {
		return 0, fmt.Errorf("branch payload is %d bytes, want 2", len(payload))
	}
	return int16(binary.LittleEndian.Uint16(payload)), nil
}

// DecodeGetURL reads the url and target strings.
func DecodeGetURL(payload []byte) (url, target string, err error) {
	parts := bytes.SplitN(payload, []byte{0}, 3)
	if len(parts) != 3 || len(parts[2]) != 0 {
		return "", "", fmt.Errorf("malformed GetURL payload")
	}
	return string(parts[0]), string(parts[1]), nil
}

// DecodePush reads every value of a Push payload.
func DecodePush(payload []byte) ([]Value, error) {
	var out []Value
	pos := 0
	need := func(n int) error {
		if pos+n > len(payload) {
			return fmt.Errorf("push value at %d truncated", pos)
		}
		return nil
	}
	for pos < len(payload) {
		t := PushType(payload[pos])
		pos++
		var v Value
		v.Type = t
		switch t {
		case PushString:
			end := bytes.IndexByte(payload[pos:], 0)
			if end < 0 {
				return nil, fmt.Errorf("push string at %d not terminated", pos)
			}
			v.Str = string(payload[pos : pos+end])
			pos += end + 1
		case PushFloat:
			if err := need(4); err != nil {
				return nil, err
			}
			v.Float = math.Float32frombits(binary.LittleEndian.Uint32(payload[pos:]))
			pos += 4
		case PushNull, PushUndefined:
		case PushRegister, PushConstant8:
			if err := need(1); err != nil {
				return nil, err
			}
			v.Index = uint16(payload[pos])
			pos++
		case PushBool:
			if err := need(1); err != nil {
				return nil, err
			}
			v.Bool = payload[pos] != 0
			pos++
		case PushDouble:
			if err := need(8); err != nil {
				return nil, err
			}
			hi := binary.LittleEndian.Uint32(payload[pos:])
			lo := binary.LittleEndian.Uint32(payload[pos+4:])
			v.Double = doubleFromWords(hi, lo)
			pos += 8
		case PushInt:
			if err := need(4); err != nil {
				return nil, err
			}
			v.Int = int32(binary.LittleEndian.Uint32(payload[pos:]))
			pos += 4
		case PushConstant16:
			if err := need(2); err != nil {
				return nil, err
			}
			v.Index = binary.LittleEndian.Uint16(payload[pos:])
			pos += 2
		default:
			return nil, fmt.Errorf("unknown push type %d at %d", t, pos-1)
		}
		out = append(out, v)
	}
	return out, nil
}
