package generator

import (
	"math/rand/v2"

	"swfdiff/internal/swf/avm1"
)

type staticMethod struct {
	class, method string
	maxArgs       int
}

// Static methods of built-in classes. Argument counts go from zero to the
// documented maximum so that missing-argument handling is exercised too.
var staticMethods = []staticMethod{
	{"Accessibility", "isActive", 0},
	{"BitmapData", "loadBitmap", 1},
	{"CustomActions", "get", 1},
	{"CustomActions", "install", 2},
	{"CustomActions", "list", 0},
	{"CustomActions", "uninstall", 1},
	{"Date", "UTC", 7},
	{"ExternalInterface", "addCallback", 3},
	{"ExternalInterface", "call", 2},
	{"Key", "getAscii", 0},
	{"Key", "getCode", 0},
	{"Key", "isDown", 1},
	{"Key", "removeListener", 1},
	{"Locale", "checkXMLStatus", 0},
	{"Locale", "getDefaultLang", 0},
	{"Locale", "loadString", 1},
	{"Locale", "loadStringEx", 2},
	{"String", "fromCharCode", 1},
	{"Mouse", "removeListener", 1},
	{"Object", "registerClass", 2},
	{"Point", "distance", 2},
	{"Point", "interpolate", 3},
	{"Point", "polar", 2},
	{"Selection", "getBeginIndex", 0},
	{"Selection", "getCaretIndex", 0},
	{"Selection", "getEndIndex", 0},
	{"Selection", "getFocus", 0},
	{"Selection", "removeListener", 1},
	{"Selection", "setFocus", 1},
	{"SharedObject", "getLocal", 3},
	{"Stage", "removeListener", 1},
	{"TextField", "getFontList", 0},
	{"XMLUI", "get", 1},
}

type instanceMethod struct {
	name    string
	maxArgs int
}

type dynamicClass struct {
	name        string
	maxCtorArgs int
	methods     []instanceMethod
}

var dynamicClasses = []dynamicClass{
	{"String", 1, []instanceMethod{{"charAt", 1}}},
	// Array takes any number of constructor arguments; 0 and 1 are special cased by players.
	{"Array", 10, []instanceMethod{
		{"concat", 1},
		{"join", 1},
		{"pop", 0},
		{"push", 1},
		{"reverse", 0},
		{"shift", 0},
		{"slice", 2},
		{"sort", 2},
		{"sortOn", 2},
		{"splice", 3},
		{"toString", 0},
		{"unshift", 1},
	}},
}

// Stack-only operators applied to freshly pushed operands.
var opcodeCases = []avm1.ActionCode{
	avm1.ActionAdd, avm1.ActionAdd2, avm1.ActionAnd, avm1.ActionAsciiToChar,
	avm1.ActionBitAnd, avm1.ActionBitLShift, avm1.ActionBitOr, avm1.ActionBitRShift,
	avm1.ActionBitURShift, avm1.ActionBitXor, avm1.ActionCastOp, avm1.ActionCharToAscii,
	avm1.ActionDecrement, avm1.ActionEquals, avm1.ActionEquals2, avm1.ActionGreater,
	avm1.ActionIncrement, avm1.ActionInstanceOf, avm1.ActionLess, avm1.ActionLess2,
	avm1.ActionMBAsciiToChar, avm1.ActionMBCharToAscii, avm1.ActionMBStringExtr,
	avm1.ActionMBStringLen, avm1.ActionModulo, avm1.ActionMultiply, avm1.ActionNot,
	avm1.ActionOr, avm1.ActionPop, avm1.ActionPushDuplicate, avm1.ActionStackSwap,
	avm1.ActionStrictEquals, avm1.ActionStringAdd, avm1.ActionStringEquals,
	avm1.ActionStringExtract, avm1.ActionStringGreater, avm1.ActionStringLength,
	avm1.ActionStringLess, avm1.ActionSubtract, avm1.ActionTargetPath,
	avm1.ActionToInteger, avm1.ActionToNumber, avm1.ActionToString, avm1.ActionTrace,
	avm1.ActionTypeOf,
}

const localName = "foo"

// scriptBuilder emits self-delimiting test cases. Every case pushes the stack
// sentinel first and ends by tracing the stack down to it, so each case
// leaves the stack as it found it.
type scriptBuilder struct {
	rng  *rand.Rand
	cfg  *Config
	vals *valueSource
}

func newScriptBuilder(rng *rand.Rand, cfg *Config) *scriptBuilder {
	return &scriptBuilder{rng: rng, cfg: cfg, vals: &valueSource{rng: rng, cfg: cfg}}
}

func (b *scriptBuilder) writeCase(w *avm1.Writer) {
	m := b.cfg.Modes
	pick := b.rng.IntN(m.total())
	switch {
	case pick < m.Opcode:
		b.opcodeCase(w)
	case pick < m.Opcode+m.StaticCall:
		b.staticCallCase(w)
	default:
		b.dynamicCallCase(w)
	}
}

func (b *scriptBuilder) opcodeCase(w *avm1.Writer) {
	w.Push(avm1.String(b.cfg.StackSentinel))
	op := opcodeCases[b.rng.IntN(len(opcodeCases))]
	arity, _ := avm1.StackArity(op)
	for i := 0; i < arity; i++ {
		b.vals.pushComposite(w, 0)
	}
	w.Op(op)
	b.dumpStack(w)
}

func (b *scriptBuilder) staticCallCase(w *avm1.Writer) {
	w.Push(avm1.String(b.cfg.StackSentinel))
	m := staticMethods[b.rng.IntN(len(staticMethods))]
	n := b.rng.IntN(m.maxArgs + 1)
	for i := 0; i < n; i++ {
		w.Push(b.vals.scalar())
	}
	w.Push(avm1.Int(int32(n)), avm1.String(m.class))
	w.Op(avm1.ActionGetVariable)
	w.Push(avm1.String(m.method))
	w.Op(avm1.ActionCallMethod)
	b.dumpStack(w)
}

func (b *scriptBuilder) dynamicCallCase(w *avm1.Writer) {
	w.Push(avm1.String(b.cfg.StackSentinel))
	c := dynamicClasses[b.rng.IntN(len(dynamicClasses))]

	w.Push(avm1.String(localName))
	n := b.rng.IntN(c.maxCtorArgs + 1)
	for i := 0; i < n; i++ {
		w.Push(b.vals.scalar())
	}
	w.Push(avm1.Int(int32(n)), avm1.String(c.name))
	w.Op(avm1.ActionNewObject)
	w.Op(avm1.ActionDefineLocal)

	m := c.methods[b.rng.IntN(len(c.methods))]
	argc := b.rng.IntN(m.maxArgs + 1)
	for i := 0; i < argc; i++ {
		w.Push(b.vals.scalar())
	}
	w.Push(avm1.Int(int32(argc)))
	w.Push(avm1.String(localName))
	w.Op(avm1.ActionGetVariable)
	w.Push(avm1.String(m.name))
	w.Op(avm1.ActionCallMethod)
	b.dumpStack(w)
}

// dumpStack traces values until it pops the stack sentinel:
//
//	loop: dup; trace; push sentinel; equals2; not; if loop
func (b *scriptBuilder) dumpStack(w *avm1.Writer) {
	loop := w.Len()
	w.Op(avm1.ActionPushDuplicate)
	w.Op(avm1.ActionTrace)
	w.Push(avm1.String(b.cfg.StackSentinel))
	w.Op(avm1.ActionEquals2)
	w.Op(avm1.ActionNot)
	w.IfBackTo(loop)
}

// epilogue traces the completion sentinel and asks the player to quit.
func (b *scriptBuilder) epilogue(w *avm1.Writer) {
	w.Push(avm1.String(b.cfg.CompletionSentinel))
	w.Op(avm1.ActionTrace)
	w.GetURL("fscommand:quit", "_root")
}
