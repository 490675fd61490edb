package avm1

import (
	"fmt"
	"math"
	"strconv"
)

// PushType is the type byte preceding each value in a Push record.
type PushType uint8

const (
	PushString     PushType = 0
	PushFloat      PushType = 1
	PushNull       PushType = 2
	PushUndefined  PushType = 3
	PushRegister   PushType = 4
	PushBool       PushType = 5
	PushDouble     PushType = 6
	PushInt        PushType = 7
	PushConstant8  PushType = 8
	PushConstant16 PushType = 9
)

// Value is one literal of a Push record.
type Value struct {
	Type   PushType
	Str    string
	Float  float32
	Double float64
	Int    int32
	Bool   bool
	Index  uint16 // register or constant pool index
}

func String(s string) Value   { return Value{Type: PushString, Str: s} }
func Float(f float32) Value   { return Value{Type: PushFloat, Float: f} }
func Null() Value             { return Value{Type: PushNull} }
func Undefined() Value        { return Value{Type: PushUndefined} }
func Register(r uint8) Value  { return Value{Type: PushRegister, Index: uint16(r)} }
func Bool(b bool) Value       { return Value{Type: PushBool, Bool: b} }
func Double(d float64) Value  { return Value{Type: PushDouble, Double: d} }
func Int(i int32) Value       { return Value{Type: PushInt, Int: i} }
func Constant(i uint16) Value { return Value{Type: PushConstant16, Index: i} }

func (v Value) String() string {
	switch v.Type {
	case PushString:
		return strconv.Quote(v.Str)
	case PushFloat:
		return strconv.FormatFloat(float64(v.Float), 'g', -1, 32) + "f"
	case PushNull:
		return "null"
	case PushUndefined:
		return "undefined"
	case PushRegister:
		return fmt.Sprintf("r%d", v.Index)
	case PushBool:
		return strconv.FormatBool(v.Bool)
	case PushDouble:
		return strconv.FormatFloat(v.Double, 'g', -1, 64)
	case PushInt:
		return strconv.Itoa(int(v.Int))
	case PushConstant8, PushConstant16:
		return fmt.Sprintf("c%d", v.Index)
	}
	return fmt.Sprintf("type(%d)", v.Type)
}

// encodedSize returns the byte size of the value inside a Push payload.
func (v Value) encodedSize() int {
	switch v.Type {
	case PushString:
		return 1 + len(v.Str) + 1
	case PushFloat, PushInt:
		return 5
	case PushNull, PushUndefined:
		return 1
	case PushRegister, PushBool, PushConstant8:
		return 2
	case PushDouble:
		return 9
	case PushConstant16:
		return 3
	}
	return 1
}

// doubleWords splits a double into the word-swapped layout AVM1 uses:
// the high 32 bits come first, each word little-endian.
func doubleWords(d float64) (hi, lo uint32) {
	bits := math.Float64bits(d)
	return uint32(bits >> 32), uint32(bits)
}

func doubleFromWords(hi, lo uint32) float64 {
	return math.Float64frombits(uint64(hi)<<32 | uint64(lo))
}
