package types

import (
	"strings"

	"github.com/daimatz/jclassgen/pkg/classfile"
)

// Field is a field of a class or, when Owner is nil, a local variable or
// parameter of the method being generated.
type Field struct {
	Owner *Type
	Name  string
	Type  *Type
	Flags classfile.AccessFlags

	// Locals only.
	Slot    int
	Level   int
	StartPC int
	EndPC   int
	InScope bool
}

// IsLocal reports whether f is a local variable or parameter.
func (f *Field) IsLocal() bool { return f.Owner == nil }

func (f *Field) IsStatic() bool { return f.Flags.IsStatic() }

func (f *Field) String() string {
	if f.Owner == nil {
		return f.Name
	}
	return f.Owner.Name() + "." + f.Name
}

// Method is a method or constructor. Constructors are named "<init>" and
// return void.
type Method struct {
	Owner  *Type
	Name   string
	Return *Type
	Flags  classfile.AccessFlags
	Params []*Type
}

// ConstructorName is the binary name of every constructor.
const ConstructorName = "<init>"

func (m *Method) IsConstructor() bool { return m.Name == ConstructorName }
func (m *Method) IsStatic() bool      { return m.Flags.IsStatic() }

// Descriptor returns the binary method descriptor, e.g. "(IJ)Ljava/lang/String;".
func (m *Method) Descriptor() string {
	return MethodDescriptor(m.Params, m.Return)
}

// Signature returns the name plus parameter list used to shadow and report
// methods, e.g. "add(int,long)".
func (m *Method) Signature() string {
	return Signature(m.Name, m.Params)
}

// ParamWidth is the number of local slots the parameters occupy, not
// counting the receiver.
func (m *Method) ParamWidth() int {
	n := 0
	for _, p := range m.Params {
		n += p.Width()
	}
	return n
}

func (m *Method) String() string {
	if m.Owner == nil {
		return m.Signature()
	}
	return m.Owner.Name() + "." + m.Signature()
}

// SameParams reports whether both parameter lists denote the same types.
func SameParams(a, b []*Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Signature formats name(p1,p2,...) with source-level type names.
func Signature(name string, params []*Type) string {
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(p.Name())
	}
	sb.WriteByte(')')
	return sb.String()
}

// MethodDescriptor formats a binary method descriptor.
func MethodDescriptor(params []*Type, ret *Type) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range params {
		sb.WriteString(p.Descriptor())
	}
	sb.WriteByte(')')
	sb.WriteString(ret.Descriptor())
	return sb.String()
}

// Generated types are filled in by the generator as declarations arrive.

// SetFlags replaces the class modifiers of a generated type.
func (t *Type) SetFlags(f classfile.AccessFlags) {
	if t.IsGenerated() {
		t.info.decl.Flags = f
	}
}

// SetSuper sets the superclass of a generated type.
func (t *Type) SetSuper(s *Type) {
	if t.IsGenerated() {
		t.info.decl.Super = s
	}
}

// AddInterface appends a directly implemented interface to a generated type.
func (t *Type) AddInterface(i *Type) {
	if !t.IsGenerated() {
		return
	}
	for _, have := range t.info.decl.Interfaces {
		if Equal(have, i) {
			return
		}
	}
	t.info.decl.Interfaces = append(t.info.decl.Interfaces, i)
}

// AddField declares a field on a generated type.
func (t *Type) AddField(f *Field) {
	if t.IsGenerated() {
		f.Owner = t
		t.info.decl.Fields = append(t.info.decl.Fields, f)
	}
}

// AddMethod declares a method or constructor on a generated type.
func (t *Type) AddMethod(m *Method) {
	if t.IsGenerated() {
		m.Owner = t
		t.info.decl.Methods = append(t.info.decl.Methods, m)
	}
}

// DeclaredField returns the field named name declared directly in t.
func (t *Type) DeclaredField(name string) *Field {
	for _, f := range t.DeclaredFields() {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// DeclaredMethod returns the method with the given name and parameter types
// declared directly in t.
func (t *Type) DeclaredMethod(name string, params []*Type) *Method {
	for _, m := range t.DeclaredMethods() {
		if m.Name == name && SameParams(m.Params, params) {
			return m
		}
	}
	return nil
}
