package types

import "github.com/daimatz/jclassgen/pkg/classfile"

// UnaryPromote widens byte, short and char to int; other types pass through.
func UnaryPromote(t *Type) *Type {
	switch t.kind {
	case Byte, Short, Char:
		return IntType
	}
	return t
}

// BinaryPromote returns the type both numeric operands are widened to
// before an arithmetic instruction is chosen. int is the floor.
func BinaryPromote(a, b *Type) (*Type, bool) {
	if !a.IsNumeric() || !b.IsNumeric() {
		return nil, false
	}
	switch {
	case a.kind == Double || b.kind == Double:
		return DoubleType, true
	case a.kind == Float || b.kind == Float:
		return FloatType, true
	case a.kind == Long || b.kind == Long:
		return LongType, true
	}
	return IntType, true
}

// rank orders the numeric kinds for widening; char sits beside short.
func widens(from, to Kind) bool {
	switch from {
	case Byte:
		return to == Short || to == Int || to == Long || to == Float || to == Double
	case Short, Char:
		return to == Int || to == Long || to == Float || to == Double
	case Int:
		return to == Long || to == Float || to == Double
	case Long:
		return to == Float || to == Double
	case Float:
		return to == Double
	}
	return false
}

// IsWidening reports whether from -> to is a widening primitive conversion.
func IsWidening(from, to *Type) bool { return widens(from.kind, to.kind) }

// category maps a primitive to the instruction family it is computed in.
func category(k Kind) Kind {
	switch k {
	case Boolean, Byte, Char, Short, Int:
		return Int
	}
	return k
}

var wideOps = map[[2]Kind]byte{
	{Int, Long}:     classfile.OpI2l,
	{Int, Float}:    classfile.OpI2f,
	{Int, Double}:   classfile.OpI2d,
	{Long, Int}:     classfile.OpL2i,
	{Long, Float}:   classfile.OpL2f,
	{Long, Double}:  classfile.OpL2d,
	{Float, Int}:    classfile.OpF2i,
	{Float, Long}:   classfile.OpF2l,
	{Float, Double}: classfile.OpF2d,
	{Double, Int}:   classfile.OpD2i,
	{Double, Long}:  classfile.OpD2l,
	{Double, Float}: classfile.OpD2f,
}

// PrimitiveOps returns the instructions converting a numeric value of type
// from into type to, e.g. long -> byte is l2i, i2b.
func PrimitiveOps(from, to *Type) []byte {
	if from.kind == to.kind {
		return nil
	}
	var ops []byte
	fc, tc := category(from.kind), category(to.kind)
	if fc != tc {
		ops = append(ops, wideOps[[2]Kind{fc, tc}])
	}
	if from.kind == Byte && to.kind == Short {
		return ops
	}
	switch to.kind {
	case Byte:
		ops = append(ops, classfile.OpI2b)
	case Short:
		ops = append(ops, classfile.OpI2s)
	case Char:
		ops = append(ops, classfile.OpI2c)
	}
	return ops
}

// Truncate returns the instruction that re-narrows an int result to a
// byte, short or char, or false for other kinds.
func Truncate(t *Type) (byte, bool) {
	switch t.kind {
	case Byte:
		return classfile.OpI2b, true
	case Short:
		return classfile.OpI2s, true
	case Char:
		return classfile.OpI2c, true
	}
	return 0, false
}

func isObject(t *Type) bool { return t.kind == Class && t.binary == ObjectName }

// IsSubtype reports whether a reference of type s may be used where t is
// expected without a runtime check.
func IsSubtype(s, t *Type) bool {
	if Equal(s, t) {
		return true
	}
	if !s.IsReference() || !t.IsReference() || t.kind == Null {
		return false
	}
	if s.kind == Null || isObject(t) {
		return true
	}
	switch s.kind {
	case Array:
		if t.kind == Class {
			return t.binary == CloneableName || t.binary == SerializableName
		}
		if t.kind != Array {
			return false
		}
		se, te := s.elem, t.elem
		if se.IsPrimitive() || te.IsPrimitive() {
			return Equal(se, te)
		}
		return IsSubtype(se, te)
	case Class:
		if t.kind != Class {
			return false
		}
		return classExtends(s, t, map[*Type]bool{})
	}
	return false
}

func classExtends(s, t *Type, seen map[*Type]bool) bool {
	if s == nil || seen[s] {
		return false
	}
	seen[s] = true
	if Equal(s, t) {
		return true
	}
	if classExtends(s.Super(), t, seen) {
		return true
	}
	for _, i := range s.Interfaces() {
		if classExtends(i, t, seen) {
			return true
		}
	}
	return false
}

// Conversion describes how a value is brought from one static type to
// another.
type Conversion struct {
	From, To *Type
	// Ops are the primitive conversion instructions to emit, in order.
	Ops []byte
	// Check requires a checkcast against To.
	Check bool
}

// Strategy is one of the conversion contexts consulted by operators and
// assignments.
type Strategy interface {
	Name() string
	Convert(from, to *Type) (Conversion, bool)
}

// Assignment permits identity, widening primitive and widening reference
// conversions.
type Assignment struct{}

func (Assignment) Name() string { return "assignment" }

func (Assignment) Convert(from, to *Type) (Conversion, bool) {
	c := Conversion{From: from, To: to}
	switch {
	case Equal(from, to):
		return c, true
	case from.IsPrimitive() && to.IsPrimitive():
		if !widens(from.kind, to.kind) {
			return c, false
		}
		c.Ops = PrimitiveOps(from, to)
		return c, true
	case from.IsReference() && to.IsReference():
		return c, IsSubtype(from, to)
	}
	return c, false
}

// Invocation applies assignment rules per actual parameter.
type Invocation struct{}

func (Invocation) Name() string { return "method invocation" }

func (Invocation) Convert(from, to *Type) (Conversion, bool) {
	return Assignment{}.Convert(from, to)
}

// Casting permits every numeric conversion and both directions along the
// reference hierarchy; downcasts carry a runtime check.
type Casting struct{}

func (Casting) Name() string { return "casting" }

func (Casting) Convert(from, to *Type) (Conversion, bool) {
	c := Conversion{From: from, To: to}
	switch {
	case Equal(from, to):
		return c, true
	case from.IsPrimitive() && to.IsPrimitive():
		if !from.IsNumeric() || !to.IsNumeric() {
			return c, false
		}
		c.Ops = PrimitiveOps(from, to)
		return c, true
	case from.IsReference() && to.IsReference():
		if to.kind == Null {
			return c, false
		}
		if IsSubtype(from, to) {
			return c, true
		}
		c.Check = true
		return c, castable(from, to)
	}
	return c, false
}

// castable decides whether a narrowing reference conversion may succeed at
// run time.
func castable(from, to *Type) bool {
	if IsSubtype(to, from) {
		return true
	}
	switch {
	case from.kind == Class && to.kind == Class:
		if from.IsInterface() {
			return !to.Flags().IsFinal() || IsSubtype(to, from)
		}
		if to.IsInterface() {
			return !from.Flags().IsFinal()
		}
		return false
	case from.kind == Array && to.kind == Array:
		fe, te := from.elem, to.elem
		if fe.IsPrimitive() || te.IsPrimitive() {
			return Equal(fe, te)
		}
		return castable(fe, te) || IsSubtype(fe, te)
	case from.kind == Class && to.kind == Array:
		return isObject(from) || from.binary == CloneableName || from.binary == SerializableName
	}
	return false
}

// Conversions bundles the strategies a generation context consults.
type Conversions struct {
	Assignment Strategy
	Invocation Strategy
	Casting    Strategy
}

// DefaultConversions returns the standard strategy set.
func DefaultConversions() Conversions {
	return Conversions{
		Assignment: Assignment{},
		Invocation: Invocation{},
		Casting:    Casting{},
	}
}

// IsString reports whether t is java.lang.String.
func IsString(t *Type) bool { return t.kind == Class && t.binary == StringName }

// AppendDescriptor selects the StringBuilder.append overload that performs
// string conversion of a value of type t.
func AppendDescriptor(t *Type) string {
	var arg string
	switch t.kind {
	case Boolean:
		arg = "Z"
	case Char:
		arg = "C"
	case Byte, Short, Int:
		arg = "I"
	case Long:
		arg = "J"
	case Float:
		arg = "F"
	case Double:
		arg = "D"
	default:
		if IsString(t) {
			arg = "Ljava/lang/String;"
		} else {
			arg = "Ljava/lang/Object;"
		}
	}
	return "(" + arg + ")Ljava/lang/StringBuilder;"
}
