package avm1vm

import (
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	classObject   = "Object"
	classArray    = "Array"
	classString   = "String"
	classFunction = "Function"
)

// Object is a script object. Arrays keep their elements in elems, String
// wrappers keep their primitive in prim, and class references (the value of
// a global like `Array`) use classFunction with the class name in prim.
type Object struct {
	class string
	prim  string
	keys  []string
	props map[string]Value
	elems []Value
}

func newObject(class string) *Object {
	return &Object{class: class, props: make(map[string]Value)}
}

func newArray(elems []Value) *Object {
	o := newObject(classArray)
	o.elems = elems
	return o
}

func (o *Object) set(name string, v Value) {
	if _, ok := o.props[name]; !ok {
		o.keys = append(o.keys, name)
	}
	o.props[name] = v
}

// builtinClasses are the globals a script can reach through GetVariable.
var builtinClasses = map[string]bool{
	"Object": true, "Array": true, "String": true, "Number": true, "Boolean": true,
	"Math": true, "Date": true, "Key": true, "Mouse": true, "Selection": true,
	"Stage": true, "TextField": true, "SharedObject": true, "Accessibility": true,
	"CustomActions": true, "ExternalInterface": true, "Locale": true, "Point": true,
	"BitmapData": true, "XMLUI": true,
}

func (m *Machine) objectString(o *Object) string {
	switch o.class {
	case classArray:
		return m.join(o.elems, ",")
	case classString:
		return o.prim
	case classFunction:
		return "[type Function]"
	}
	return "[object Object]"
}

func (m *Machine) join(elems []Value, sep string) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		if isNullish(e) {
			continue
		}
		parts[i] = m.toString(e)
	}
	return strings.Join(parts, sep)
}

func (m *Machine) getMember(target Value, name string) Value {
	switch target.kind {
	case KindString:
		if name == "length" {
			return numberValue(float64(utf8.RuneCountInString(target.s)))
		}
		return undefined
	case KindObject:
	default:
		return undefined
	}
	o := target.o
	if name == "length" {
		switch o.class {
		case classArray:
			return numberValue(float64(len(o.elems)))
		case classString:
			return numberValue(float64(utf8.RuneCountInString(o.prim)))
		}
	}
	if o.class == classArray {
		if idx, ok := arrayIndex(name); ok {
			if idx < len(o.elems) {
				return o.elems[idx]
			}
			return undefined
		}
	}
	if v, ok := o.props[name]; ok {
		return v
	}
	return undefined
}

func (m *Machine) setMember(target Value, name string, v Value) {
	if target.kind != KindObject {
		return
	}
	o := target.o
	if o.class == classArray {
		if idx, ok := arrayIndex(name); ok && idx < maxArrayLen {
			for len(o.elems) <= idx {
				o.elems = append(o.elems, undefined)
			}
			o.elems[idx] = v
			return
		}
	}
	o.set(name, v)
}

const maxArrayLen = 1 << 16

func arrayIndex(name string) (int, bool) {
	if name == "" || len(name) > 9 {
		return 0, false
	}
	n := 0
	for _, c := range name {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func (m *Machine) construct(class string, args []Value) Value {
	switch class {
	case classArray:
		if len(args) == 1 && args[0].kind == KindNumber {
			n := int(m.toNumber(args[0]))
			if n < 0 || n > maxArrayLen {
				return objectValue(newArray(nil))
			}
			elems := make([]Value, n)
			for i := range elems {
				elems[i] = undefined
			}
			return objectValue(newArray(elems))
		}
		return objectValue(newArray(append([]Value(nil), args...)))
	case classString:
		o := newObject(classString)
		if len(args) > 0 {
			o.prim = m.toString(args[0])
		}
		return objectValue(o)
	}
	return objectValue(newObject(classObject))
}

func (m *Machine) callStatic(class, method string, args []Value) Value {
	if class == classString && method == "fromCharCode" {
		var sb strings.Builder
		for _, a := range args {
			code := uint16(toInt32(m.toNumber(a)))
			if code == 0 {
				break
			}
			sb.WriteRune(rune(code))
		}
		return stringValue(sb.String())
	}
	return undefined
}

func (m *Machine) callMethod(target Value, method string, args []Value) Value {
	if target.kind == KindString {
		target = objectValue(&Object{class: classString, prim: target.s})
	}
	if target.kind != KindObject {
		return undefined
	}
	o := target.o
	switch o.class {
	case classFunction:
		return m.callStatic(o.prim, method, args)
	case classString:
		return m.stringMethod(o, method, args)
	case classArray:
		return m.arrayMethod(o, method, args)
	}
	if method == "toString" {
		return stringValue(m.objectString(o))
	}
	return undefined
}

func (m *Machine) stringMethod(o *Object, method string, args []Value) Value {
	runes := []rune(o.prim)
	switch method {
	case "charAt":
		idx := 0
		if len(args) > 0 {
			idx = int(toInt32(m.toNumber(args[0])))
		}
		if idx < 0 || idx >= len(runes) {
			return stringValue("")
		}
		return stringValue(string(runes[idx]))
	case "toString", "valueOf":
		return stringValue(o.prim)
	}
	return undefined
}

func (m *Machine) arrayMethod(o *Object, method string, args []Value) Value {
	switch method {
	case "concat":
		out := append([]Value(nil), o.elems...)
		for _, a := range args {
			if a.kind == KindObject && a.o.class == classArray {
				out = append(out, a.o.elems...)
				continue
			}
			out = append(out, a)
		}
		return objectValue(newArray(out))
	case "join":
		sep := ","
		if len(args) > 0 && args[0].kind != KindUndefined {
			sep = m.toString(args[0])
		}
		return stringValue(m.join(o.elems, sep))
	case "toString":
		return stringValue(m.join(o.elems, ","))
	case "pop":
		if len(o.elems) == 0 {
			return undefined
		}
		v := o.elems[len(o.elems)-1]
		o.elems = o.elems[:len(o.elems)-1]
		return v
	case "push":
		o.elems = append(o.elems, args...)
		return numberValue(float64(len(o.elems)))
	case "shift":
		if len(o.elems) == 0 {
			return undefined
		}
		v := o.elems[0]
		o.elems = o.elems[1:]
		return v
	case "unshift":
		o.elems = append(append([]Value(nil), args...), o.elems...)
		return numberValue(float64(len(o.elems)))
	case "reverse":
		for i, j := 0, len(o.elems)-1; i < j; i, j = i+1, j-1 {
			o.elems[i], o.elems[j] = o.elems[j], o.elems[i]
		}
		return objectValue(o)
	case "slice":
		start, end := m.sliceBounds(len(o.elems), args)
		return objectValue(newArray(append([]Value(nil), o.elems[start:end]...)))
	case "splice":
		return m.splice(o, args)
	case "sort":
		sort.SliceStable(o.elems, func(i, j int) bool {
			return m.toString(o.elems[i]) < m.toString(o.elems[j])
		})
		return objectValue(o)
	case "sortOn":
		return objectValue(o)
	}
	return undefined
}

func (m *Machine) relIndex(v Value, n int) int {
	f := m.toNumber(v)
	if f != f {
		return 0
	}
	i := int(f)
	if i < 0 {
		i += n
		if i < 0 {
			i = 0
		}
	}
	if i > n {
		i = n
	}
	return i
}

func (m *Machine) sliceBounds(n int, args []Value) (int, int) {
	start, end := 0, n
	if len(args) > 0 {
		start = m.relIndex(args[0], n)
	}
	if len(args) > 1 && args[1].kind != KindUndefined {
		end = m.relIndex(args[1], n)
	}
	if end < start {
		end = start
	}
	return start, end
}

func (m *Machine) splice(o *Object, args []Value) Value {
	if len(args) == 0 {
		return undefined
	}
	n := len(o.elems)
	start := m.relIndex(args[0], n)
	count := n - start
	if len(args) > 1 {
		c := int(m.toNumber(args[1]))
		if c < 0 {
			c = 0
		}
		if c < count {
			count = c
		}
	}
	removed := append([]Value(nil), o.elems[start:start+count]...)
	rest := append([]Value(nil), o.elems[start+count:]...)
	o.elems = append(append(o.elems[:start], args[min(2, len(args)):]...), rest...)
	return objectValue(newArray(removed))
}
