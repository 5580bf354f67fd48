package access

import (
	"testing"

	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/daimatz/jclassgen/pkg/diag"
	"github.com/daimatz/jclassgen/pkg/types"
)

type fixture struct {
	owner, samePkg, subclass, unrelated *types.Type
}

func newFixture() fixture {
	u := types.NewUniverse(nil)
	obj := u.Generated(types.ObjectName)
	mk := func(name string, super *types.Type) *types.Type {
		t := u.Generated(name)
		t.SetFlags(classfile.AccPublic)
		t.SetSuper(super)
		return t
	}
	owner := mk("p/Owner", obj)
	return fixture{
		owner:     owner,
		samePkg:   mk("p/Neighbor", obj),
		subclass:  mk("q/Child", owner),
		unrelated: mk("q/Stranger", obj),
	}
}

func TestAccessMatrix(t *testing.T) {
	f := newFixture()
	callers := []struct {
		name string
		typ  *types.Type
	}{
		{"same class", f.owner},
		{"same package", f.samePkg},
		{"subclass other package", f.subclass},
		{"unrelated other package", f.unrelated},
	}
	tests := []struct {
		modifier string
		flags    classfile.AccessFlags
		want     [4]bool
	}{
		{"public", classfile.AccPublic, [4]bool{true, true, true, true}},
		{"protected", classfile.AccProtected, [4]bool{true, true, true, false}},
		{"package", 0, [4]bool{true, true, false, false}},
		{"private", classfile.AccPrivate, [4]bool{true, false, false, false}},
	}
	for _, tt := range tests {
		for i, c := range callers {
			t.Run(tt.modifier+"/"+c.name, func(t *testing.T) {
				got := Allowed(c.typ, f.owner, tt.flags)
				if got != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want[i])
				}
			})
		}
	}
}

func TestProtectedInstanceAccess(t *testing.T) {
	f := newFixture()
	tests := []struct {
		name      string
		qualifier *types.Type
		flags     classfile.AccessFlags
		want      bool
	}{
		{"through own type", f.subclass, classfile.AccProtected, true},
		{"through supertype", f.owner, classfile.AccProtected, false},
		{"static through supertype", f.owner, classfile.AccProtected | classfile.AccStatic, true},
		{"no qualifier", nil, classfile.AccProtected, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AllowedInstance(f.subclass, f.owner, tt.qualifier, tt.flags)
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	// Same package is never restricted.
	if !AllowedInstance(f.samePkg, f.owner, f.owner, classfile.AccProtected) {
		t.Error("same-package protected instance access should be allowed")
	}

	err := CheckMember(diag.Pos{Line: 3}, f.unrelated, f.owner, f.owner, classfile.AccPrivate, "field x")
	if !diag.Is(err, diag.KeyAccessDenied) {
		t.Errorf("CheckMember: got %v, want access denied", err)
	}
	if diag.KindOf(err) != diag.Resolution {
		t.Errorf("kind: got %v, want resolution", diag.KindOf(err))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		target Target
		flags  classfile.AccessFlags
		key    diag.Key
	}{
		{"public final class", Class, classfile.AccPublic | classfile.AccFinal, ""},
		{"static class", Class, classfile.AccStatic, diag.KeyIllegalModifiers},
		{"final abstract class", Class, classfile.AccFinal | classfile.AccAbstract, diag.KeyModifierCombination},
		{"public private field", Field, classfile.AccPublic | classfile.AccPrivate, diag.KeyMultipleAccess},
		{"final volatile field", Field, classfile.AccFinal | classfile.AccVolatile, diag.KeyModifierCombination},
		{"abstract field", Field, classfile.AccAbstract, diag.KeyIllegalModifiers},
		{"public static method", Method, classfile.AccPublic | classfile.AccStatic, ""},
		{"abstract static method", Method, classfile.AccAbstract | classfile.AccStatic, diag.KeyModifierCombination},
		{"abstract native method", Method, classfile.AccAbstract | classfile.AccNative, diag.KeyModifierCombination},
		{"abstract final method", Method, classfile.AccAbstract | classfile.AccFinal, diag.KeyModifierCombination},
		{"static constructor", Constructor, classfile.AccStatic, diag.KeyIllegalModifiers},
		{"final interface", Interface, classfile.AccFinal, diag.KeyIllegalModifiers},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(diag.Pos{}, tt.target, tt.flags)
			if tt.key == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !diag.Is(err, tt.key) {
				t.Errorf("got %v, want key %s", err, tt.key)
			}
			if diag.KindOf(err) != diag.Declaration {
				t.Errorf("kind: got %v, want declaration", diag.KindOf(err))
			}
		})
	}
}

func TestParseModifiers(t *testing.T) {
	flags, err := Parse(diag.Pos{}, "public", "static", "final")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if want := classfile.AccPublic | classfile.AccStatic | classfile.AccFinal; flags != want {
		t.Errorf("got %#x, want %#x", flags, want)
	}
	if got := String(flags); got != "public static final" {
		t.Errorf("String: got %q", got)
	}
	if _, err := Parse(diag.Pos{}, "static", "static"); !diag.Is(err, diag.KeyDuplicateModifier) {
		t.Errorf("repeated modifier: got %v", err)
	}
	if _, err := Parse(diag.Pos{}, "sealed"); !diag.Is(err, diag.KeyIllegalModifiers) {
		t.Errorf("unknown modifier: got %v", err)
	}
}
