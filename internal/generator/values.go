package generator

import (
	"math"
	"math/rand/v2"
	"strconv"

	"swfdiff/internal/swf/avm1"
)

const (
	plainString     = "this is a test"
	plainNumber     = 10
	maxRandomString = 256
	maxValueDepth   = 4
	maxMembers      = 5
)

var (
	edgeInts    = []int32{0, -1, 1, math.MaxInt32, math.MinInt32}
	edgeDoubles = []float64{math.NaN(), math.Inf(1), math.Inf(-1), math.Copysign(0, -1), math.MaxFloat64, math.SmallestNonzeroFloat64}
)

type valueSource struct {
	rng *rand.Rand
	cfg *Config
}

func (s *valueSource) edge() bool {
	return s.cfg.EdgeCases && s.rng.IntN(4) == 0
}

func (s *valueSource) intValue() int32 {
	if s.edge() {
		return edgeInts[s.rng.IntN(len(edgeInts))]
	}
	if s.cfg.RandomInts {
		return int32(s.rng.Uint32())
	}
	return plainNumber
}

func (s *valueSource) doubleValue() float64 {
	if s.edge() {
		return edgeDoubles[s.rng.IntN(len(edgeDoubles))]
	}
	if s.cfg.NaNDoubles && s.rng.IntN(2) == 0 {
		return math.NaN()
	}
	if s.cfg.RandomInts {
		return float64(int64(s.rng.Uint64()))
	}
	return plainNumber
}

func (s *valueSource) floatValue() float32 {
	if s.cfg.NaNDoubles || (s.edge() && s.rng.IntN(2) == 0) {
		return float32(math.NaN())
	}
	return plainNumber
}

func (s *valueSource) stringValue() string {
	if s.edge() {
		return ""
	}
	if s.cfg.IntStrings && s.rng.IntN(2) == 0 {
		return strconv.Itoa(int(s.intValue()))
	}
	if s.cfg.RandomStrings {
		n := 1 + s.rng.IntN(maxRandomString-1)
		buf := make([]byte, n)
		for i := range buf {
			buf[i] = byte(1 + s.rng.IntN(255)) // never NUL
		}
		return string(buf)
	}
	return plainString
}

// scalar returns one Push literal, used for call arguments.
func (s *valueSource) scalar() avm1.Value {
	switch s.rng.IntN(7) {
	case 0:
		return avm1.Undefined()
	case 1:
		return avm1.Null()
	case 2:
		return avm1.Int(s.intValue())
	case 3:
		return avm1.Bool(s.rng.IntN(2) == 0)
	case 4:
		return avm1.Double(s.doubleValue())
	case 5:
		return avm1.Float(s.floatValue())
	default:
		return avm1.String(s.stringValue())
	}
}

// pushComposite writes code that leaves exactly one value on the stack. It may
// build anonymous objects and arrays nested up to maxValueDepth.
func (s *valueSource) pushComposite(w *avm1.Writer, depth int) {
	kind := s.rng.IntN(9)
	if depth >= maxValueDepth && kind >= 7 {
		w.Push(avm1.Null())
		return
	}
	switch kind {
	case 7:
		n := s.rng.IntN(maxMembers)
		for i := 0; i < n; i++ {
			w.Push(avm1.String(s.memberName(i)))
			s.pushComposite(w, depth+1)
		}
		w.Push(avm1.Int(int32(n)))
		w.Op(avm1.ActionInitObject)
	case 8:
		n := s.rng.IntN(maxMembers)
		for i := 0; i < n; i++ {
			s.pushComposite(w, depth+1)
		}
		w.Push(avm1.Int(int32(n)))
		w.Op(avm1.ActionInitArray)
	default:
		w.Push(s.scalar())
	}
}

func (s *valueSource) memberName(i int) string {
	if s.edge() {
		return ""
	}
	return "m" + strconv.Itoa(i)
}
