// Package types holds the type lattice, the member model and the
// conversion rules consulted by every operator and assignment.
package types

import (
	"strings"
	"sync"

	"github.com/daimatz/jclassgen/pkg/classfile"
)

// Kind distinguishes the variants of Type.
type Kind int

const (
	Boolean Kind = iota + 1
	Byte
	Char
	Short
	Int
	Long
	Float
	Double
	Class
	Array
	Null
	Void
)

// Type is an immutable descriptor of a value's static type. Class types are
// canonical per Universe, so pointer equality holds for types obtained from
// the same Universe; Equal compares descriptors for the general case.
type Type struct {
	kind Kind
	name string
	desc string

	// Array
	elem *Type
	dims int

	// Class
	binary string
	info   *classInfo
}

// Populator fills in a class type's supertypes and members on first use.
type Populator func(t *Type, d *ClassDecl) error

// ClassDecl is what a Populator reports about a class.
type ClassDecl struct {
	Flags      classfile.AccessFlags
	Super      *Type
	Interfaces []*Type
	Fields     []*Field
	Methods    []*Method
}

type classInfo struct {
	mu        sync.Mutex
	populate  Populator
	loaded    bool
	loadErr   error
	generated bool
	decl      ClassDecl
}

var (
	BooleanType = &Type{kind: Boolean, name: "boolean", desc: "Z"}
	ByteType    = &Type{kind: Byte, name: "byte", desc: "B"}
	CharType    = &Type{kind: Char, name: "char", desc: "C"}
	ShortType   = &Type{kind: Short, name: "short", desc: "S"}
	IntType     = &Type{kind: Int, name: "int", desc: "I"}
	LongType    = &Type{kind: Long, name: "long", desc: "J"}
	FloatType   = &Type{kind: Float, name: "float", desc: "F"}
	DoubleType  = &Type{kind: Double, name: "double", desc: "D"}
	NullType    = &Type{kind: Null, name: "null", desc: "Ljava/lang/Object;"}
	VoidType    = &Type{kind: Void, name: "void", desc: "V"}
)

var primitives = []*Type{BooleanType, ByteType, CharType, ShortType, IntType, LongType, FloatType, DoubleType}

// Primitive returns the primitive (or void) type with the given source name.
func Primitive(name string) (*Type, bool) {
	if name == "void" {
		return VoidType, true
	}
	for _, p := range primitives {
		if p.name == name {
			return p, true
		}
	}
	return nil, false
}

// Well-known binary names.
const (
	ObjectName       = "java/lang/Object"
	StringName       = "java/lang/String"
	StringBuilder    = "java/lang/StringBuilder"
	ThrowableName    = "java/lang/Throwable"
	CloneableName    = "java/lang/Cloneable"
	SerializableName = "java/io/Serializable"
)

func (t *Type) Kind() Kind { return t.kind }

// Name is the canonical source-level name: "int", "java.lang.String", "int[][]".
func (t *Type) Name() string { return t.name }

// Descriptor is the binary signature string: "I", "Ljava/lang/String;", "[[I".
func (t *Type) Descriptor() string { return t.desc }

func (t *Type) String() string { return t.name }

// InternalName is the name used in CONSTANT_Class entries: the binary
// name for classes, the descriptor for arrays.
func (t *Type) InternalName() string {
	if t.kind == Array {
		return t.desc
	}
	return t.binary
}

// Width is the number of operand stack words or local slots a value occupies.
func (t *Type) Width() int {
	switch t.kind {
	case Long, Double:
		return 2
	case Void:
		return 0
	default:
		return 1
	}
}

func (t *Type) IsPrimitive() bool { return t.kind >= Boolean && t.kind <= Double }
func (t *Type) IsReference() bool { return t.kind == Class || t.kind == Array || t.kind == Null }
func (t *Type) IsClass() bool     { return t.kind == Class }
func (t *Type) IsArray() bool     { return t.kind == Array }
func (t *Type) IsNull() bool      { return t.kind == Null }
func (t *Type) IsVoid() bool      { return t.kind == Void }

// IsNumeric covers the integral kinds plus float and double.
func (t *Type) IsNumeric() bool { return t.kind >= Byte && t.kind <= Double }

// IsIntegral covers byte, char, short, int and long.
func (t *Type) IsIntegral() bool { return t.kind >= Byte && t.kind <= Long }

// IsIntLike covers the kinds computed with int instructions: byte, char,
// short and int. These are the only legal switch selectors.
func (t *Type) IsIntLike() bool { return t.kind >= Byte && t.kind <= Int }

// Elem returns the component type of an array, nil otherwise.
func (t *Type) Elem() *Type { return t.elem }

// Dims returns the number of array dimensions.
func (t *Type) Dims() int { return t.dims }

// BinaryName returns "java/lang/String" for class types and "" otherwise.
func (t *Type) BinaryName() string { return t.binary }

// Package returns the package part of a class's binary name ("java/lang").
func (t *Type) Package() string {
	switch t.kind {
	case Class:
		if i := strings.LastIndexByte(t.binary, '/'); i >= 0 {
			return t.binary[:i]
		}
		return ""
	case Array:
		base := t
		for base.kind == Array {
			base = base.elem
		}
		return base.Package()
	}
	return ""
}

// SimpleName returns the last segment of a class name.
func (t *Type) SimpleName() string {
	if t.kind != Class {
		return t.name
	}
	return t.binary[strings.LastIndexByte(t.binary, '/')+1:]
}

// Equal reports whether a and b denote the same type.
func Equal(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.kind != b.kind {
		return false
	}
	return a.desc == b.desc
}

// Load runs the populator once. Member accessors call it implicitly; call
// it directly to observe population errors.
func (t *Type) Load() error {
	if t.info == nil {
		return nil
	}
	ci := t.info
	ci.mu.Lock()
	defer ci.mu.Unlock()
	if ci.loaded {
		return ci.loadErr
	}
	ci.loaded = true
	if ci.populate != nil {
		ci.loadErr = ci.populate(t, &ci.decl)
	}
	for _, f := range ci.decl.Fields {
		f.Owner = t
	}
	for _, m := range ci.decl.Methods {
		m.Owner = t
	}
	return ci.loadErr
}

func (t *Type) decl() *ClassDecl {
	if t.info == nil {
		return &ClassDecl{}
	}
	_ = t.Load()
	return &t.info.decl
}

// Flags returns the class modifiers.
func (t *Type) Flags() classfile.AccessFlags { return t.decl().Flags }

// IsInterface reports whether a class type is an interface.
func (t *Type) IsInterface() bool {
	return t.kind == Class && t.decl().Flags.IsInterface()
}

// Super returns the direct superclass, nil for Object and interfaces.
func (t *Type) Super() *Type { return t.decl().Super }

// Interfaces returns the directly implemented (or extended) interfaces.
func (t *Type) Interfaces() []*Type { return t.decl().Interfaces }

// DeclaredFields returns fields declared directly in t.
func (t *Type) DeclaredFields() []*Field { return t.decl().Fields }

// DeclaredMethods returns methods and constructors declared directly in t.
func (t *Type) DeclaredMethods() []*Method { return t.decl().Methods }

// IsGenerated reports whether t is being generated in this run rather than
// introspected from a compiled artifact.
func (t *Type) IsGenerated() bool { return t.info != nil && t.info.generated }
