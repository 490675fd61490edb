// Package avm1vm is a small in-process AVM1 evaluator. It runs the DoAction
// scripts of a document's first frame and collects their trace output.
package avm1vm

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"unicode/utf8"

	"swfdiff/internal/swf"
	"swfdiff/internal/swf/avm1"
	appErr "swfdiff/pkg/errors"
)

const (
	defaultMaxSteps  = 1 << 22
	defaultMaxOutput = 1 << 20
	ctxCheckInterval = 1024
	registerCount    = 4
	quitURL          = "fscommand:quit"
)

var (
	// ErrUnsupported is returned for actions the evaluator does not implement.
	ErrUnsupported = appErr.New(appErr.ActionUnsupported)
	// ErrStepLimit is returned when a script exceeds Options.MaxSteps.
	ErrStepLimit = appErr.Newf(appErr.Timeout, "step limit exceeded")
)

// Options bound a single execution.
type Options struct {
	MaxSteps  int
	MaxOutput int
}

// Result is what the scripts produced before they stopped.
type Result struct {
	Output []byte
	Quit   bool // the script requested fscommand:quit
	Steps  int
}

// Machine holds the state shared by the DoAction blocks of one document.
type Machine struct {
	version   uint8
	opts      Options
	ctx       context.Context
	locals    map[string]Value
	registers [registerCount]Value
	pool      []string
	stack     []Value
	out       bytes.Buffer
	steps     int
	quit      bool
}

// Execute decodes data and runs every DoAction tag in the first frame.
func Execute(ctx context.Context, data []byte, opts Options) (*Result, error) {
	doc, err := swf.Decode(data)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.InvalidSWF)
	}
	return Run(ctx, doc, opts)
}

// Run executes the first frame of doc. On error the partial output is still
// returned with the result.
func Run(ctx context.Context, doc *swf.Document, opts Options) (*Result, error) {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = defaultMaxSteps
	}
	if opts.MaxOutput <= 0 {
		opts.MaxOutput = defaultMaxOutput
	}
	m := &Machine{
		version: doc.Header.Version,
		opts:    opts,
		ctx:     ctx,
		locals:  make(map[string]Value),
	}
	var runErr error
	for _, tag := range doc.Tags {
		if tag.Code == swf.TagShowFrame || tag.Code == swf.TagEnd {
			break
		}
		if tag.Code != swf.TagDoAction {
			continue
		}
		if runErr = m.exec(tag.Payload); runErr != nil || m.quit {
			break
		}
	}
	return &Result{Output: m.out.Bytes(), Quit: m.quit, Steps: m.steps}, runErr
}

func (m *Machine) push(v Value) {
	m.stack = append(m.stack, v)
}

// pop returns undefined on an empty stack, as players do.
func (m *Machine) pop() Value {
	n := len(m.stack)
	if n == 0 {
		return undefined
	}
	v := m.stack[n-1]
	m.stack = m.stack[:n-1]
	return v
}

func (m *Machine) popArgs() []Value {
	n := int(m.toNumber(m.pop()))
	if n < 0 {
		n = 0
	}
	if n > len(m.stack) {
		n = len(m.stack)
	}
	args := make([]Value, n)
	for i := range args {
		args[i] = m.pop()
	}
	return args
}

func (m *Machine) trace(v Value) {
	s := "undefined"
	if v.kind != KindUndefined {
		s = m.toString(v)
	}
	room := m.opts.MaxOutput - m.out.Len()
	if room <= 0 {
		return
	}
	line := s + "\n"
	if len(line) > room {
		line = line[:room]
	}
	m.out.WriteString(line)
}

func (m *Machine) exec(code []byte) error {
	insts, err := avm1.Parse(code)
	if err != nil {
		return appErr.Wrap(err, appErr.InvalidSWF)
	}
	index := make(map[int]int, len(insts))
	for i, in := range insts {
		index[in.Offset] = i
	}
	m.stack = m.stack[:0]

	pc := 0
	for pc < len(insts) && !m.quit {
		m.steps++
		if m.steps > m.opts.MaxSteps {
			return ErrStepLimit
		}
		if m.steps%ctxCheckInterval == 0 {
			if err := m.ctx.Err(); err != nil {
				return err
			}
		}
		in := insts[pc]
		pc++
		if in.Code == avm1.ActionEnd {
			return nil
		}
		if in.Code.IsBranch() {
			off, err := avm1.DecodeBranch(in.Payload)
			if err != nil {
				return appErr.Wrap(err, appErr.InvalidSWF)
			}
			if in.Code == avm1.ActionIf && !m.toBool(m.pop()) {
				continue
			}
			target, ok := index[in.End()+int(off)]
			if !ok {
				return appErr.Newf(appErr.InvalidSWF, "branch at %d leaves the action stream", in.Offset)
			}
			pc = target
			continue
		}
		if err := m.step(in); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) step(in avm1.Instruction) error {
	switch in.Code {
	case avm1.ActionNextFrame, avm1.ActionPlay, avm1.ActionStop:
	case avm1.ActionPush:
		return m.doPush(in.Payload)
	case avm1.ActionConstantPool:
		return m.doConstantPool(in.Payload)
	case avm1.ActionStoreRegister:
		if len(in.Payload) != 1 {
			return appErr.Newf(appErr.InvalidSWF, "StoreRegister payload is %d bytes", len(in.Payload))
		}
		if r := int(in.Payload[0]); r < registerCount && len(m.stack) > 0 {
			m.registers[r] = m.stack[len(m.stack)-1]
		}
	case avm1.ActionGetURL:
		url, _, err := avm1.DecodeGetURL(in.Payload)
		if err != nil {
			return appErr.Wrap(err, appErr.InvalidSWF)
		}
		if url == quitURL {
			m.quit = true
		}

	case avm1.ActionPop:
		m.pop()
	case avm1.ActionPushDuplicate:
		v := m.pop()
		m.push(v)
		m.push(v)
	case avm1.ActionStackSwap:
		a, b := m.pop(), m.pop()
		m.push(a)
		m.push(b)
	case avm1.ActionTrace:
		m.trace(m.pop())

	case avm1.ActionAdd, avm1.ActionSubtract, avm1.ActionMultiply, avm1.ActionDivide, avm1.ActionModulo:
		b, a := m.toNumber(m.pop()), m.toNumber(m.pop())
		m.push(numberValue(arith(in.Code, a, b)))
	case avm1.ActionAdd2:
		b, a := m.toPrimitive(m.pop()), m.toPrimitive(m.pop())
		if a.kind == KindString || b.kind == KindString {
			m.push(stringValue(m.toString(a) + m.toString(b)))
		} else {
			m.push(numberValue(m.toNumber(a) + m.toNumber(b)))
		}
	case avm1.ActionEquals:
		b, a := m.toNumber(m.pop()), m.toNumber(m.pop())
		m.pushLegacyBool(a == b)
	case avm1.ActionLess:
		b, a := m.toNumber(m.pop()), m.toNumber(m.pop())
		m.pushLegacyBool(a < b)
	case avm1.ActionAnd:
		b, a := m.pop(), m.pop()
		m.pushLegacyBool(m.toBool(a) && m.toBool(b))
	case avm1.ActionOr:
		b, a := m.pop(), m.pop()
		m.pushLegacyBool(m.toBool(a) || m.toBool(b))
	case avm1.ActionNot:
		m.pushLegacyBool(!m.toBool(m.pop()))
	case avm1.ActionEquals2:
		b, a := m.pop(), m.pop()
		m.push(boolValue(m.looseEquals(a, b)))
	case avm1.ActionStrictEquals:
		b, a := m.pop(), m.pop()
		m.push(boolValue(strictEquals(a, b)))
	case avm1.ActionLess2:
		b, a := m.pop(), m.pop()
		m.push(m.lessThan(a, b))
	case avm1.ActionGreater:
		b, a := m.pop(), m.pop()
		m.push(m.lessThan(b, a))
	case avm1.ActionIncrement:
		m.push(numberValue(m.toNumber(m.pop()) + 1))
	case avm1.ActionDecrement:
		m.push(numberValue(m.toNumber(m.pop()) - 1))
	case avm1.ActionToInteger:
		n := m.toNumber(m.pop())
		if math.IsNaN(n) {
			n = 0
		}
		m.push(numberValue(math.Trunc(n)))
	case avm1.ActionToNumber:
		m.push(numberValue(m.toNumber(m.pop())))
	case avm1.ActionToString:
		m.push(stringValue(m.toString(m.pop())))
	case avm1.ActionTypeOf:
		m.push(stringValue(m.typeOf(m.pop())))

	case avm1.ActionBitAnd, avm1.ActionBitOr, avm1.ActionBitXor,
		avm1.ActionBitLShift, avm1.ActionBitRShift, avm1.ActionBitURShift:
		b, a := toInt32(m.toNumber(m.pop())), toInt32(m.toNumber(m.pop()))
		m.push(numberValue(bitwise(in.Code, a, b)))

	case avm1.ActionStringAdd:
		b, a := m.toString(m.pop()), m.toString(m.pop())
		m.push(stringValue(a + b))
	case avm1.ActionStringEquals:
		b, a := m.toString(m.pop()), m.toString(m.pop())
		m.pushLegacyBool(a == b)
	case avm1.ActionStringLess:
		b, a := m.toString(m.pop()), m.toString(m.pop())
		m.pushLegacyBool(a < b)
	case avm1.ActionStringGreater:
		b, a := m.toString(m.pop()), m.toString(m.pop())
		m.pushLegacyBool(a > b)
	case avm1.ActionStringLength:
		m.push(numberValue(float64(len(m.toString(m.pop())))))
	case avm1.ActionMBStringLen:
		m.push(numberValue(float64(utf8.RuneCountInString(m.toString(m.pop())))))
	case avm1.ActionStringExtract, avm1.ActionMBStringExtr:
		count := int(toInt32(m.toNumber(m.pop())))
		index := int(toInt32(m.toNumber(m.pop())))
		s := m.toString(m.pop())
		m.push(stringValue(extract(s, index, count, in.Code == avm1.ActionMBStringExtr)))
	case avm1.ActionCharToAscii:
		s := m.toString(m.pop())
		if s == "" {
			m.push(numberValue(0))
		} else {
			m.push(numberValue(float64(s[0])))
		}
	case avm1.ActionMBCharToAscii:
		r, _ := utf8.DecodeRuneInString(m.toString(m.pop()))
		if r == utf8.RuneError {
			r = 0
		}
		m.push(numberValue(float64(r)))
	case avm1.ActionAsciiToChar:
		c := byte(toInt32(m.toNumber(m.pop())))
		if c == 0 {
			m.push(stringValue(""))
		} else {
			m.push(stringValue(string([]byte{c})))
		}
	case avm1.ActionMBAsciiToChar:
		r := rune(uint16(toInt32(m.toNumber(m.pop()))))
		if r == 0 {
			m.push(stringValue(""))
		} else {
			m.push(stringValue(string(r)))
		}

	case avm1.ActionTargetPath:
		m.pop()
		m.push(undefined)
	case avm1.ActionInstanceOf:
		m.pop()
		m.pop()
		m.push(boolValue(false))
	case avm1.ActionCastOp:
		m.pop()
		m.pop()
		m.push(null)

	case avm1.ActionGetVariable:
		m.push(m.getVariable(m.toString(m.pop())))
	case avm1.ActionSetVariable, avm1.ActionDefineLocal:
		v := m.pop()
		m.locals[m.toString(m.pop())] = v
	case avm1.ActionInitArray:
		m.push(objectValue(newArray(m.popArgs())))
	case avm1.ActionInitObject:
		n := int(m.toNumber(m.pop()))
		o := newObject(classObject)
		for i := 0; i < n && len(m.stack) >= 2; i++ {
			v := m.pop()
			o.set(m.toString(m.pop()), v)
		}
		m.push(objectValue(o))
	case avm1.ActionNewObject:
		class := m.toString(m.pop())
		m.push(m.construct(class, m.popArgs()))
	case avm1.ActionGetMember:
		name := m.toString(m.pop())
		m.push(m.getMember(m.pop(), name))
	case avm1.ActionSetMember:
		v := m.pop()
		name := m.toString(m.pop())
		m.setMember(m.pop(), name, v)
	case avm1.ActionCallMethod:
		method := m.toString(m.pop())
		target := m.pop()
		m.push(m.callMethod(target, method, m.popArgs()))

	default:
		return appErr.Wrapf(ErrUnsupported, appErr.ActionUnsupported, "action %s at %d", in.Code, in.Offset)
	}
	return nil
}

// pushLegacyBool pushes SWF 4 style results: numbers before version 5.
func (m *Machine) pushLegacyBool(b bool) {
	if m.version >= 5 {
		m.push(boolValue(b))
		return
	}
	if b {
		m.push(numberValue(1))
	} else {
		m.push(numberValue(0))
	}
}

func (m *Machine) getVariable(name string) Value {
	if v, ok := m.locals[name]; ok {
		return v
	}
	if builtinClasses[name] {
		o := newObject(classFunction)
		o.prim = name
		return objectValue(o)
	}
	return undefined
}

func (m *Machine) doPush(payload []byte) error {
	vals, err := avm1.DecodePush(payload)
	if err != nil {
		return appErr.Wrap(err, appErr.InvalidSWF)
	}
	for _, v := range vals {
		switch v.Type {
		case avm1.PushString:
			m.push(stringValue(v.Str))
		case avm1.PushFloat:
			m.push(numberValue(float64(v.Float)))
		case avm1.PushNull:
			m.push(null)
		case avm1.PushUndefined:
			m.push(undefined)
		case avm1.PushRegister:
			if int(v.Index) < registerCount {
				m.push(m.registers[v.Index])
			} else {
				m.push(undefined)
			}
		case avm1.PushBool:
			m.push(boolValue(v.Bool))
		case avm1.PushDouble:
			m.push(numberValue(v.Double))
		case avm1.PushInt:
			m.push(numberValue(float64(v.Int)))
		case avm1.PushConstant8, avm1.PushConstant16:
			if int(v.Index) < len(m.pool) {
				m.push(stringValue(m.pool[v.Index]))
			} else {
				m.push(undefined)
			}
		}
	}
	return nil
}

func (m *Machine) doConstantPool(payload []byte) error {
	if len(payload) < 2 {
		return appErr.Newf(appErr.InvalidSWF, "ConstantPool payload is %d bytes", len(payload))
	}
	n := int(binary.LittleEndian.Uint16(payload))
	rest := payload[2:]
	pool := make([]string, 0, n)
	for i := 0; i < n; i++ {
		end := bytes.IndexByte(rest, 0)
		if end < 0 {
			return appErr.Newf(appErr.InvalidSWF, "ConstantPool entry %d not terminated", i)
		}
		pool = append(pool, string(rest[:end]))
		rest = rest[end+1:]
	}
	m.pool = pool
	return nil
}

func arith(code avm1.ActionCode, a, b float64) float64 {
	switch code {
	case avm1.ActionAdd:
		return a + b
	case avm1.ActionSubtract:
		return a - b
	case avm1.ActionMultiply:
		return a * b
	case avm1.ActionDivide:
		return a / b
	default:
		return math.Mod(a, b)
	}
}

func bitwise(code avm1.ActionCode, a, b int32) float64 {
	shift := uint32(b) & 31
	switch code {
	case avm1.ActionBitAnd:
		return float64(a & b)
	case avm1.ActionBitOr:
		return float64(a | b)
	case avm1.ActionBitXor:
		return float64(a ^ b)
	case avm1.ActionBitLShift:
		return float64(a << shift)
	case avm1.ActionBitRShift:
		return float64(a >> shift)
	default:
		return float64(uint32(a) >> shift)
	}
}

// extract implements StringExtract with a 1-based index. Out of range
// arguments clamp instead of failing.
func extract(s string, index, count int, multibyte bool) string {
	if multibyte {
		runes := []rune(s)
		start, end := clampRange(len(runes), index, count)
		return string(runes[start:end])
	}
	start, end := clampRange(len(s), index, count)
	return s[start:end]
}

func clampRange(n, index, count int) (int, int) {
	start := index - 1
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	end := n
	if count >= 0 && start+count < end {
		end = start + count
	}
	return start, end
}
