package types

import (
	"reflect"
	"testing"

	"github.com/daimatz/jclassgen/pkg/classfile"
)

// staticSource populates classes from a fixed table.
type staticSource map[string]func(u *Universe) ClassDecl

type testSource struct {
	u     *Universe
	decls staticSource
}

func (s *testSource) Populator(binary string) Populator {
	mk, ok := s.decls[binary]
	if !ok {
		return nil
	}
	return func(t *Type, d *ClassDecl) error {
		*d = mk(s.u)
		return nil
	}
}

func newTestUniverse() *Universe {
	src := &testSource{decls: staticSource{
		ObjectName: func(u *Universe) ClassDecl {
			return ClassDecl{Flags: classfile.AccPublic}
		},
		"java/lang/Number": func(u *Universe) ClassDecl {
			return ClassDecl{Flags: classfile.AccPublic | classfile.AccAbstract, Super: u.Object(),
				Interfaces: []*Type{u.Class(SerializableName)}}
		},
		"java/lang/Integer": func(u *Universe) ClassDecl {
			return ClassDecl{Flags: classfile.AccPublic | classfile.AccFinal, Super: u.Class("java/lang/Number")}
		},
		SerializableName: func(u *Universe) ClassDecl {
			return ClassDecl{Flags: classfile.AccPublic | classfile.AccInterface | classfile.AccAbstract}
		},
		"java/lang/Runnable": func(u *Universe) ClassDecl {
			return ClassDecl{Flags: classfile.AccPublic | classfile.AccInterface | classfile.AccAbstract}
		},
		StringName: func(u *Universe) ClassDecl {
			return ClassDecl{Flags: classfile.AccPublic | classfile.AccFinal, Super: u.Object(),
				Interfaces: []*Type{u.Class(SerializableName)}}
		},
	}}
	u := NewUniverse(src)
	src.u = u
	return u
}

func TestWidth(t *testing.T) {
	tests := []struct {
		typ  *Type
		want int
	}{
		{IntType, 1},
		{BooleanType, 1},
		{LongType, 2},
		{DoubleType, 2},
		{FloatType, 1},
		{VoidType, 0},
		{NullType, 1},
	}
	for _, tt := range tests {
		t.Run(tt.typ.Name(), func(t *testing.T) {
			if got := tt.typ.Width(); got != tt.want {
				t.Errorf("Width: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCanonicalTypes(t *testing.T) {
	u := newTestUniverse()

	if u.Class("java.lang.String") != u.Class("java/lang/String") {
		t.Error("dotted and binary names should map to the same type")
	}
	a := u.ArrayOf(IntType, 2)
	b := u.ArrayOf(u.ArrayOf(IntType, 1), 1)
	if a != b {
		t.Error("int[][] built two ways should be canonical")
	}
	if a.Name() != "int[][]" || a.Descriptor() != "[[I" {
		t.Errorf("int[][]: got name %q desc %q", a.Name(), a.Descriptor())
	}
	if a.Dims() != 2 || a.Elem().Dims() != 1 || Base(a) != IntType {
		t.Errorf("int[][] dims: got %d", a.Dims())
	}
	if !Equal(u.String(), u.Class("java/lang/String")) {
		t.Error("Equal should hold for the same class")
	}
	if u.String().Package() != "java/lang" || u.String().SimpleName() != "String" {
		t.Errorf("package/simple name: got %q %q", u.String().Package(), u.String().SimpleName())
	}
}

func TestParseMethodDescriptor(t *testing.T) {
	u := newTestUniverse()
	params, ret, err := u.ParseMethodDescriptor("(IJ[Ljava/lang/String;D)Ljava/lang/Object;")
	if err != nil {
		t.Fatalf("ParseMethodDescriptor: %v", err)
	}
	var names []string
	for _, p := range params {
		names = append(names, p.Name())
	}
	want := []string{"int", "long", "java.lang.String[]", "double"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("params: got %v, want %v", names, want)
	}
	if ret != u.Object() {
		t.Errorf("return: got %v, want java.lang.Object", ret)
	}
	m := &Method{Name: "f", Params: params, Return: ret}
	if got := m.Descriptor(); got != "(IJ[Ljava/lang/String;D)Ljava/lang/Object;" {
		t.Errorf("Descriptor round trip: got %q", got)
	}
	if got := m.ParamWidth(); got != 6 {
		t.Errorf("ParamWidth: got %d, want 6", got)
	}

	for _, bad := range []string{"I)V", "(I", "(Q)V", "(Ljava/lang/String)V"} {
		if _, _, err := u.ParseMethodDescriptor(bad); err == nil {
			t.Errorf("ParseMethodDescriptor(%q): expected error", bad)
		}
	}
}

func TestBinaryPromote(t *testing.T) {
	tests := []struct {
		a, b, want *Type
	}{
		{ByteType, ByteType, IntType},
		{ShortType, CharType, IntType},
		{IntType, IntType, IntType},
		{IntType, LongType, LongType},
		{LongType, FloatType, FloatType},
		{FloatType, DoubleType, DoubleType},
		{ByteType, DoubleType, DoubleType},
	}
	for _, tt := range tests {
		t.Run(tt.a.Name()+"+"+tt.b.Name(), func(t *testing.T) {
			got, ok := BinaryPromote(tt.a, tt.b)
			if !ok || got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			// Promoting an already promoted pair is a no-op.
			again, _ := BinaryPromote(got, got)
			if again != got {
				t.Errorf("re-promotion: got %v, want %v", again, got)
			}
		})
	}
	if _, ok := BinaryPromote(BooleanType, IntType); ok {
		t.Error("boolean operands should not promote")
	}
	if got := UnaryPromote(CharType); got != IntType {
		t.Errorf("UnaryPromote(char): got %v", got)
	}
}

func TestPrimitiveOps(t *testing.T) {
	tests := []struct {
		from, to *Type
		want     []byte
	}{
		{IntType, LongType, []byte{classfile.OpI2l}},
		{LongType, ByteType, []byte{classfile.OpL2i, classfile.OpI2b}},
		{DoubleType, CharType, []byte{classfile.OpD2i, classfile.OpI2c}},
		{ByteType, ShortType, nil},
		{ByteType, CharType, []byte{classfile.OpI2c}},
		{CharType, ShortType, []byte{classfile.OpI2s}},
		{FloatType, DoubleType, []byte{classfile.OpF2d}},
		{IntType, IntType, nil},
	}
	for _, tt := range tests {
		t.Run(tt.from.Name()+"->"+tt.to.Name(), func(t *testing.T) {
			if got := PrimitiveOps(tt.from, tt.to); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAssignment(t *testing.T) {
	u := newTestUniverse()
	integer := u.Class("java/lang/Integer")
	number := u.Class("java/lang/Number")
	ser := u.Class(SerializableName)
	ints := u.ArrayOf(IntType, 1)

	tests := []struct {
		name     string
		from, to *Type
		want     bool
	}{
		{"int to long", IntType, LongType, true},
		{"byte to short", ByteType, ShortType, true},
		{"char to short", CharType, ShortType, false},
		{"long to int", LongType, IntType, false},
		{"boolean to int", BooleanType, IntType, false},
		{"Integer to Number", integer, number, true},
		{"Integer to Object", integer, u.Object(), true},
		{"Integer to Serializable", integer, ser, true},
		{"Number to Integer", number, integer, false},
		{"null to String", NullType, u.String(), true},
		{"int[] to Object", ints, u.Object(), true},
		{"int[] to Serializable", ints, ser, true},
		{"String to Integer", u.String(), integer, false},
		{"int to Object", IntType, u.Object(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := Assignment{}.Convert(tt.from, tt.to)
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCasting(t *testing.T) {
	u := newTestUniverse()
	integer := u.Class("java/lang/Integer")
	number := u.Class("java/lang/Number")
	runnable := u.Class("java/lang/Runnable")

	tests := []struct {
		name      string
		from, to  *Type
		ok, check bool
	}{
		{"Number to Integer", number, integer, true, true},
		{"Integer to Number", integer, number, true, false},
		{"String to Integer", u.String(), integer, false, true},
		{"Number to Runnable", number, runnable, true, true},
		{"Integer to Runnable", integer, runnable, false, true},
		{"Object to int[]", u.Object(), u.ArrayOf(IntType, 1), true, true},
		{"double to byte", DoubleType, ByteType, true, false},
		{"boolean to int", BooleanType, IntType, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := Casting{}.Convert(tt.from, tt.to)
			if ok != tt.ok {
				t.Fatalf("ok: got %v, want %v", ok, tt.ok)
			}
			if ok && c.Check != tt.check {
				t.Errorf("check: got %v, want %v", c.Check, tt.check)
			}
		})
	}
}

func TestAppendDescriptor(t *testing.T) {
	u := newTestUniverse()
	tests := []struct {
		typ  *Type
		want string
	}{
		{ShortType, "(I)Ljava/lang/StringBuilder;"},
		{CharType, "(C)Ljava/lang/StringBuilder;"},
		{LongType, "(J)Ljava/lang/StringBuilder;"},
		{u.String(), "(Ljava/lang/String;)Ljava/lang/StringBuilder;"},
		{u.Class("java/lang/Integer"), "(Ljava/lang/Object;)Ljava/lang/StringBuilder;"},
	}
	for _, tt := range tests {
		if got := AppendDescriptor(tt.typ); got != tt.want {
			t.Errorf("AppendDescriptor(%v): got %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestGeneratedType(t *testing.T) {
	u := newTestUniverse()
	before := u.Class("com/example/Point")
	gen := u.Generated("com.example.Point")
	if before != gen {
		t.Fatal("Generated should convert an existing entry in place")
	}
	gen.SetSuper(u.Object())
	gen.AddField(&Field{Name: "x", Type: IntType})
	gen.AddMethod(&Method{Name: "len", Return: DoubleType})

	if f := gen.DeclaredField("x"); f == nil || f.Owner != gen {
		t.Errorf("DeclaredField(x): got %+v", f)
	}
	if m := gen.DeclaredMethod("len", nil); m == nil || m.Signature() != "len()" {
		t.Errorf("DeclaredMethod(len): got %+v", m)
	}
	if again := u.Generated("com/example/Point"); len(again.DeclaredFields()) != 1 {
		t.Error("re-registering a generated type should keep its members")
	}
}
