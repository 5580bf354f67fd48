package vm

import (
	"fmt"
	"strings"
)

// Object represents a JVM object instance. Fields are keyed by
// "declaringClass.name" so that a field hidden by a subclass stays apart.
// java.lang.String instances are plain Go strings and never Objects.
type Object struct {
	Class  *Class
	Fields map[string]Value
	// Native holds the Go state of a library class instance, such as a
	// *native.StringBuilder or *native.Integer.
	Native interface{}
	hash   int32
}

func fieldKey(owner *Class, name string) string {
	return owner.Name + "." + name
}

// Field returns the value of the instance field name declared by the
// class named owner.
func (o *Object) Field(owner, name string) (Value, bool) {
	v, ok := o.Fields[owner+"."+name]
	return v, ok
}

func (o *Object) String() string {
	return fmt.Sprintf("%s@%x", javaName(o.Class.Name), uint32(o.hash))
}

// Array represents a JVM array. Desc is the array descriptor, e.g. "[I".
type Array struct {
	Desc     string
	Elements []Value
}

// ElemDesc returns the descriptor of the component type.
func (a *Array) ElemDesc() string { return a.Desc[1:] }

func (a *Array) String() string {
	return fmt.Sprintf("%s[%d]", a.Desc, len(a.Elements))
}

// zeroValue returns the default value of a field or element of type desc.
func zeroValue(desc string) Value {
	switch desc[0] {
	case 'Z', 'B', 'C', 'S', 'I':
		return IntValue(0)
	case 'J':
		return LongValue(0)
	case 'F':
		return FloatValue(0)
	case 'D':
		return DoubleValue(0)
	}
	return NullValue()
}

func newArray(desc string, n int) *Array {
	arr := &Array{Desc: desc, Elements: make([]Value, n)}
	zero := zeroValue(desc[1:])
	for i := range arr.Elements {
		arr.Elements[i] = zero
	}
	return arr
}

// javaName turns a binary name into the dotted form Java prints.
func javaName(binary string) string {
	return strings.ReplaceAll(binary, "/", ".")
}
