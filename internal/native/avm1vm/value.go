package avm1vm

import (
	"math"
	"strconv"
	"strings"
)

// Kind is the dynamic type of a Value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindObject
)

// Value is an AVM1 runtime value.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	o    *Object
}

var (
	undefined = Value{kind: KindUndefined}
	null      = Value{kind: KindNull}
)

func boolValue(b bool) Value     { return Value{kind: KindBool, b: b} }
func numberValue(n float64) Value { return Value{kind: KindNumber, n: n} }
func stringValue(s string) Value  { return Value{kind: KindString, s: s} }
func objectValue(o *Object) Value { return Value{kind: KindObject, o: o} }

func (v Value) Kind() Kind { return v.kind }

// toNumber follows the SWF 7+ rules; older versions map undefined and null to 0.
func (m *Machine) toNumber(v Value) float64 {
	switch v.kind {
	case KindUndefined, KindNull:
		if m.version < 7 {
			return 0
		}
		return math.NaN()
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindNumber:
		return v.n
	case KindString:
		return parseNumber(v.s)
	case KindObject:
		if v.o.class == classString {
			return parseNumber(v.o.prim)
		}
		return math.NaN()
	}
	return math.NaN()
}

func parseNumber(s string) float64 {
	t := strings.TrimSpace(s)
	if t == "" {
		return math.NaN()
	}
	if strings.HasPrefix(t, "0x") || strings.HasPrefix(t, "0X") {
		if n, err := strconv.ParseInt(t[2:], 16, 64); err == nil {
			return float64(int32(n))
		}
		return math.NaN()
	}
	switch t {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	n, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return math.NaN()
	}
	return n
}

func (m *Machine) toString(v Value) string {
	switch v.kind {
	case KindUndefined:
		if m.version < 7 {
			return ""
		}
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return formatNumber(v.n)
	case KindString:
		return v.s
	case KindObject:
		return m.objectString(v.o)
	}
	return ""
}

// formatNumber renders numbers with at most 15 significant digits, switching
// to exponent form outside [1e-5, 1e15).
func formatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case n == 0:
		return "0"
	}
	abs := math.Abs(n)
	if abs >= 1e15 || abs < 1e-5 {
		s := strconv.FormatFloat(n, 'e', 14, 64)
		mant, exp, _ := strings.Cut(s, "e")
		if strings.Contains(mant, ".") {
			mant = strings.TrimRight(strings.TrimRight(mant, "0"), ".")
		}
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		if digits == "" {
			digits = "0"
		}
		return mant + "e" + sign + digits
	}
	s := strconv.FormatFloat(n, 'g', 15, 64)
	if strings.ContainsAny(s, "e") {
		s = strconv.FormatFloat(n, 'f', -1, 64)
	}
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

func (m *Machine) toBool(v Value) bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0 && !math.IsNaN(v.n)
	case KindString:
		if m.version < 7 {
			n := parseNumber(v.s)
			return n != 0 && !math.IsNaN(n)
		}
		return v.s != ""
	case KindObject:
		return true
	}
	return false
}

func toInt32(n float64) int32 {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return int32(uint32(int64(math.Mod(math.Trunc(n), 1<<32))))
}

// toPrimitive converts objects for the operators that need a primitive.
func (m *Machine) toPrimitive(v Value) Value {
	if v.kind != KindObject {
		return v
	}
	if v.o.class == classString {
		return stringValue(v.o.prim)
	}
	return stringValue(m.objectString(v.o))
}

func (m *Machine) typeOf(v Value) string {
	switch v.kind {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	}
	if v.o.class == classFunction {
		return "function"
	}
	return "object"
}

// looseEquals implements Equals2.
func (m *Machine) looseEquals(a, b Value) bool {
	if a.kind == b.kind {
		return strictEquals(a, b)
	}
	switch {
	case isNullish(a) && isNullish(b):
		return true
	case isNullish(a) || isNullish(b):
		return false
	case a.kind == KindNumber && b.kind == KindString:
		return a.n == parseNumber(b.s)
	case a.kind == KindString && b.kind == KindNumber:
		return parseNumber(a.s) == b.n
	case a.kind == KindBool:
		return m.looseEquals(numberValue(m.toNumber(a)), b)
	case b.kind == KindBool:
		return m.looseEquals(a, numberValue(m.toNumber(b)))
	case a.kind == KindObject:
		return m.looseEquals(m.toPrimitive(a), b)
	case b.kind == KindObject:
		return m.looseEquals(a, m.toPrimitive(b))
	}
	return false
}

func isNullish(v Value) bool {
	return v.kind == KindUndefined || v.kind == KindNull
}

func strictEquals(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindUndefined, KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.n == b.n
	case KindString:
		return a.s == b.s
	case KindObject:
		return a.o == b.o
	}
	return false
}

// lessThan returns the Less2 result: true, false, or undefined when either
// operand is NaN.
func (m *Machine) lessThan(a, b Value) Value {
	pa, pb := m.toPrimitive(a), m.toPrimitive(b)
	if pa.kind == KindString && pb.kind == KindString {
		return boolValue(pa.s < pb.s)
	}
	na, nb := m.toNumber(pa), m.toNumber(pb)
	if math.IsNaN(na) || math.IsNaN(nb) {
		return undefined
	}
	return boolValue(na < nb)
}
