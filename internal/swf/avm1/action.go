// Package avm1 reads and writes AVM1 action records, the bytecode carried by
// DoAction tags.
package avm1

import "fmt"

// ActionCode is an AVM1 opcode. Codes at or above 0x80 carry a u16 length
// and a payload.
type ActionCode uint8

const (
	ActionEnd           ActionCode = 0x00
	ActionNextFrame     ActionCode = 0x04
	ActionPlay          ActionCode = 0x06
	ActionStop          ActionCode = 0x07
	ActionAdd           ActionCode = 0x0A
	ActionSubtract      ActionCode = 0x0B
	ActionMultiply      ActionCode = 0x0C
	ActionDivide        ActionCode = 0x0D
	ActionEquals        ActionCode = 0x0E
	ActionLess          ActionCode = 0x0F
	ActionAnd           ActionCode = 0x10
	ActionOr            ActionCode = 0x11
	ActionNot           ActionCode = 0x12
	ActionStringEquals  ActionCode = 0x13
	ActionStringLength  ActionCode = 0x14
	ActionStringExtract ActionCode = 0x15
	ActionPop           ActionCode = 0x17
	ActionToInteger     ActionCode = 0x18
	ActionGetVariable   ActionCode = 0x1C
	ActionSetVariable   ActionCode = 0x1D
	ActionStringAdd     ActionCode = 0x21
	ActionTrace         ActionCode = 0x26
	ActionStringLess    ActionCode = 0x29
	ActionCastOp        ActionCode = 0x2B
	ActionMBStringLen   ActionCode = 0x31
	ActionCharToAscii   ActionCode = 0x32
	ActionAsciiToChar   ActionCode = 0x33
	ActionMBStringExtr  ActionCode = 0x35
	ActionMBCharToAscii ActionCode = 0x36
	ActionMBAsciiToChar ActionCode = 0x37
	ActionDelete2       ActionCode = 0x3B
	ActionDefineLocal   ActionCode = 0x3C
	ActionCallFunction  ActionCode = 0x3D
	ActionModulo        ActionCode = 0x3F
	ActionNewObject     ActionCode = 0x40
	ActionInitArray     ActionCode = 0x42
	ActionInitObject    ActionCode = 0x43
	ActionTypeOf        ActionCode = 0x44
	ActionTargetPath    ActionCode = 0x45
	ActionAdd2          ActionCode = 0x47
	ActionLess2         ActionCode = 0x48
	ActionEquals2       ActionCode = 0x49
	ActionToNumber      ActionCode = 0x4A
	ActionToString      ActionCode = 0x4B
	ActionPushDuplicate ActionCode = 0x4C
	ActionStackSwap     ActionCode = 0x4D
	ActionGetMember     ActionCode = 0x4E
	ActionSetMember     ActionCode = 0x4F
	ActionIncrement     ActionCode = 0x50
	ActionDecrement     ActionCode = 0x51
	ActionCallMethod    ActionCode = 0x52
	ActionInstanceOf    ActionCode = 0x54
	ActionBitAnd        ActionCode = 0x60
	ActionBitOr         ActionCode = 0x61
	ActionBitXor        ActionCode = 0x62
	ActionBitLShift     ActionCode = 0x63
	ActionBitRShift     ActionCode = 0x64
	ActionBitURShift    ActionCode = 0x65
	ActionStrictEquals  ActionCode = 0x66
	ActionGreater       ActionCode = 0x67
	ActionStringGreater ActionCode = 0x68

	ActionGotoFrame     ActionCode = 0x81
	ActionGetURL        ActionCode = 0x83
	ActionStoreRegister ActionCode = 0x87
	ActionConstantPool  ActionCode = 0x88
	ActionPush          ActionCode = 0x96
	ActionJump          ActionCode = 0x99
	ActionGetURL2       ActionCode = 0x9A
	ActionIf            ActionCode = 0x9D
)

var actionNames = map[ActionCode]string{
	ActionEnd:           "End",
	ActionNextFrame:     "NextFrame",
	ActionPlay:          "Play",
	ActionStop:          "Stop",
	ActionAdd:           "Add",
	ActionSubtract:      "Subtract",
	ActionMultiply:      "Multiply",
	ActionDivide:        "Divide",
	ActionEquals:        "Equals",
	ActionLess:          "Less",
	ActionAnd:           "And",
	ActionOr:            "Or",
	ActionNot:           "Not",
	ActionStringEquals:  "StringEquals",
	ActionStringLength:  "StringLength",
	ActionStringExtract: "StringExtract",
	ActionPop:           "Pop",
	ActionToInteger:     "ToInteger",
	ActionGetVariable:   "GetVariable",
	ActionSetVariable:   "SetVariable",
	ActionStringAdd:     "StringAdd",
	ActionTrace:         "Trace",
	ActionStringLess:    "StringLess",
	ActionCastOp:        "CastOp",
	ActionMBStringLen:   "MBStringLength",
	ActionCharToAscii:   "CharToAscii",
	ActionAsciiToChar:   "AsciiToChar",
	ActionMBStringExtr:  "MBStringExtract",
	ActionMBCharToAscii: "MBCharToAscii",
	ActionMBAsciiToChar: "MBAsciiToChar",
	ActionDelete2:       "Delete2",
	ActionDefineLocal:   "DefineLocal",
	ActionCallFunction:  "CallFunction",
	ActionModulo:        "Modulo",
	ActionNewObject:     "NewObject",
	ActionInitArray:     "InitArray",
	ActionInitObject:    "InitObject",
	ActionTypeOf:        "TypeOf",
	ActionTargetPath:    "TargetPath",
	ActionAdd2:          "Add2",
	ActionLess2:         "Less2",
	ActionEquals2:       "Equals2",
	ActionToNumber:      "ToNumber",
	ActionToString:      "ToString",
	ActionPushDuplicate: "PushDuplicate",
	ActionStackSwap:     "StackSwap",
	ActionGetMember:     "GetMember",
	ActionSetMember:     "SetMember",
	ActionIncrement:     "Increment",
	ActionDecrement:     "Decrement",
	ActionCallMethod:    "CallMethod",
	ActionInstanceOf:    "InstanceOf",
	ActionBitAnd:        "BitAnd",
	ActionBitOr:         "BitOr",
	ActionBitXor:        "BitXor",
	ActionBitLShift:     "BitLShift",
	ActionBitRShift:     "BitRShift",
	ActionBitURShift:    "BitURShift",
	ActionStrictEquals:  "StrictEquals",
	ActionGreater:       "Greater",
	ActionStringGreater: "StringGreater",
	ActionGotoFrame:     "GotoFrame",
	ActionGetURL:        "GetURL",
	ActionStoreRegister: "StoreRegister",
	ActionConstantPool:  "ConstantPool",
	ActionPush:          "Push",
	ActionJump:          "Jump",
	ActionGetURL2:       "GetURL2",
	ActionIf:            "If",
}

func (c ActionCode) String() string {
	if name, ok := actionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%02X)", uint8(c))
}

// HasPayload reports whether the action record carries a length field.
func (c ActionCode) HasPayload() bool {
	return c >= 0x80
}

// IsBranch reports whether the action carries a signed branch offset.
func (c ActionCode) IsBranch() bool {
	return c == ActionJump || c == ActionIf
}

// StackArity returns how many values the action pops for the stack-only
// opcodes the generator emits. ok is false for everything else.
func StackArity(c ActionCode) (pops int, ok bool) {
	switch c {
	case ActionNot, ActionStringLength, ActionToInteger, ActionTrace,
		ActionMBStringLen, ActionCharToAscii, ActionAsciiToChar, ActionMBCharToAscii,
		ActionMBAsciiToChar, ActionTypeOf, ActionTargetPath, ActionToNumber, ActionToString,
		ActionPushDuplicate, ActionIncrement, ActionDecrement, ActionPop:
		return 1, true
	case ActionAdd, ActionSubtract, ActionMultiply, ActionDivide, ActionEquals, ActionLess,
		ActionAnd, ActionOr, ActionStringEquals, ActionStringAdd, ActionStringLess,
		ActionCastOp, ActionModulo, ActionAdd2, ActionLess2, ActionEquals2, ActionStackSwap,
		ActionInstanceOf, ActionBitAnd, ActionBitOr, ActionBitXor, ActionBitLShift,
		ActionBitRShift, ActionBitURShift, ActionStrictEquals, ActionGreater, ActionStringGreater:
		return 2, true
	case ActionStringExtract, ActionMBStringExtr:
		return 3, true
	}
	return 0, false
}
