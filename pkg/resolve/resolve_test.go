package resolve

import (
	"testing"

	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/daimatz/jclassgen/pkg/diag"
	"github.com/daimatz/jclassgen/pkg/types"
)

func setup() (*types.Universe, *types.Type, *types.Type) {
	u := types.NewUniverse(nil)
	obj := u.Generated(types.ObjectName)
	obj.AddMethod(&types.Method{Name: "toString", Return: u.String(), Flags: classfile.AccPublic})
	str := u.Generated(types.StringName)
	str.SetSuper(obj)

	base := u.Generated("p/Base")
	base.SetSuper(obj)
	pub := classfile.AccPublic
	for _, m := range []*types.Method{
		{Name: "f", Params: []*types.Type{types.IntType}, Return: types.VoidType, Flags: pub},
		{Name: "f", Params: []*types.Type{types.LongType}, Return: types.VoidType, Flags: pub},
		{Name: "f", Params: []*types.Type{obj}, Return: types.VoidType, Flags: pub},
		{Name: "f", Params: []*types.Type{str}, Return: types.VoidType, Flags: pub},
		{Name: "g", Params: []*types.Type{types.IntType, types.LongType}, Return: types.VoidType, Flags: pub},
		{Name: "g", Params: []*types.Type{types.LongType, types.IntType}, Return: types.VoidType, Flags: pub},
		{Name: "secret", Return: types.VoidType, Flags: classfile.AccPrivate},
		{Name: types.ConstructorName, Return: types.VoidType, Flags: pub},
		{Name: types.ConstructorName, Params: []*types.Type{types.IntType}, Return: types.VoidType, Flags: pub},
	} {
		base.AddMethod(m)
	}
	derived := u.Generated("q/Derived")
	derived.SetSuper(base)
	derived.AddMethod(&types.Method{Name: "f", Params: []*types.Type{types.IntType}, Return: types.VoidType, Flags: pub})
	return u, base, derived
}

func TestSelectMostSpecific(t *testing.T) {
	u, base, _ := setup()
	r := New(u, types.Invocation{})
	tests := []struct {
		name string
		args []*types.Type
		want string
	}{
		{"byte widens to int", []*types.Type{types.ByteType}, "f(int)"},
		{"long exact", []*types.Type{types.LongType}, "f(long)"},
		{"string exact", []*types.Type{u.String()}, "f(java.lang.String)"},
		{"null picks string", []*types.Type{types.NullType}, "f(java.lang.String)"},
		{"array picks object", []*types.Type{u.ArrayOf(types.IntType, 1)}, "f(java.lang.Object)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := r.Method(diag.Pos{}, base, "f", tt.args)
			if err != nil {
				t.Fatalf("Method: %v", err)
			}
			if got := m.Signature(); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestResolveErrors(t *testing.T) {
	u, base, _ := setup()
	r := New(u, types.Invocation{})

	_, err := r.Method(diag.Pos{Line: 7}, base, "g", []*types.Type{types.IntType, types.IntType})
	if !diag.Is(err, diag.KeyAmbiguousCall) {
		t.Errorf("g(int,int): got %v, want ambiguous", err)
	}
	_, err = r.Method(diag.Pos{}, base, "f", []*types.Type{types.BooleanType})
	if !diag.Is(err, diag.KeyNoSuchMethod) {
		t.Errorf("f(boolean): got %v, want no such method", err)
	}
	if diag.KindOf(err) != diag.Resolution {
		t.Errorf("kind: got %v", diag.KindOf(err))
	}
	_, err = r.Constructor(diag.Pos{}, base, []*types.Type{u.String()})
	if !diag.Is(err, diag.KeyNoSuchMethod) {
		t.Errorf("new Base(String): got %v", err)
	}
}

func TestInheritedCandidates(t *testing.T) {
	u, base, derived := setup()
	r := New(u, types.Invocation{})

	m, err := r.Method(diag.Pos{}, derived, "f", []*types.Type{types.IntType})
	if err != nil {
		t.Fatalf("Method: %v", err)
	}
	if m.Owner != derived {
		t.Errorf("override: got owner %v, want q.Derived", m.Owner)
	}
	m, err = r.Method(diag.Pos{}, derived, "f", []*types.Type{types.LongType})
	if err != nil || m.Owner != base {
		t.Errorf("inherited f(long): got %v, %v", m, err)
	}
	if got := len(r.Candidates(derived, "f")); got != 4 {
		t.Errorf("candidates: got %d, want 4", got)
	}
	if got := r.Candidates(derived, "secret"); len(got) != 0 {
		t.Errorf("private method leaked from superclass: %v", got)
	}
	if got := r.Candidates(base, "secret"); len(got) != 1 {
		t.Errorf("own private method: got %d candidates", len(got))
	}
	m, err = r.Method(diag.Pos{}, derived, "toString", nil)
	if err != nil || m.Owner != u.Object() {
		t.Errorf("toString via Object: got %v, %v", m, err)
	}
	c, err := r.Constructor(diag.Pos{}, base, []*types.Type{types.CharType})
	if err != nil || c.Signature() != "<init>(int)" {
		t.Errorf("constructor: got %v, %v", c, err)
	}
}

func TestFieldLookup(t *testing.T) {
	u, base, derived := setup()
	r := New(u, types.Invocation{})
	base.AddField(&types.Field{Name: "count", Type: types.IntType, Flags: classfile.AccProtected})
	base.AddField(&types.Field{Name: "hidden", Type: types.IntType, Flags: classfile.AccPrivate})

	f, err := r.Field(diag.Pos{}, derived, "count")
	if err != nil || f.Owner != base {
		t.Errorf("count: got %v, %v", f, err)
	}
	if _, err := r.Field(diag.Pos{}, derived, "hidden"); !diag.Is(err, diag.KeyNoSuchField) {
		t.Errorf("hidden: got %v, want no such field", err)
	}
}
