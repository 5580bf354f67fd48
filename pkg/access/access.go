// Package access decides member visibility and validates modifier sets.
package access

import (
	"strings"

	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/daimatz/jclassgen/pkg/diag"
	"github.com/daimatz/jclassgen/pkg/types"
)

const accessMask = classfile.AccPublic | classfile.AccProtected | classfile.AccPrivate

// Allowed reports whether code in caller may name a member of target that
// carries flags.
func Allowed(caller, target *types.Type, flags classfile.AccessFlags) bool {
	switch {
	case flags.IsPublic():
		return true
	case flags.IsPrivate():
		return types.Equal(caller, target)
	case flags.IsProtected():
		return samePackage(caller, target) || types.IsSubtype(caller, target)
	default:
		return samePackage(caller, target)
	}
}

// AllowedInstance adds the protected instance restriction to Allowed: when
// caller and target live in different packages, a protected instance
// member may only be reached through a qualifier whose static type is
// caller or a subtype of it. Static members are exempt.
//
// FIXME: review against the language rules once a front-end exercises
// access through super and through outer-class qualifiers.
func AllowedInstance(caller, target, qualifier *types.Type, flags classfile.AccessFlags) bool {
	if !Allowed(caller, target, flags) {
		return false
	}
	if !flags.IsProtected() || flags.IsStatic() || samePackage(caller, target) || qualifier == nil {
		return true
	}
	return types.IsSubtype(qualifier, caller)
}

// ClassAllowed reports whether caller may name class t at all.
func ClassAllowed(caller, t *types.Type) bool {
	t = types.Base(t)
	if !t.IsClass() || t.IsGenerated() && types.Equal(t, caller) {
		return true
	}
	return t.Flags().IsPublic() || samePackage(caller, t)
}

func samePackage(a, b *types.Type) bool {
	return a.Package() == b.Package()
}

// CheckMember returns an access-denied diagnostic when member (of owner,
// reached through qualifier) is invisible from caller.
func CheckMember(pos diag.Pos, caller, owner, qualifier *types.Type, flags classfile.AccessFlags, member string) error {
	if AllowedInstance(caller, owner, qualifier, flags) {
		return nil
	}
	return diag.New(pos, diag.KeyAccessDenied, describe(flags)+" "+member, caller.Name())
}

// CheckClass returns an access-denied diagnostic when t is invisible from caller.
func CheckClass(pos diag.Pos, caller, t *types.Type) error {
	if ClassAllowed(caller, t) {
		return nil
	}
	return diag.New(pos, diag.KeyAccessDenied, "class "+t.Name(), caller.Name())
}

func describe(flags classfile.AccessFlags) string {
	switch {
	case flags.IsPublic():
		return "public"
	case flags.IsProtected():
		return "protected"
	case flags.IsPrivate():
		return "private"
	}
	return "package-private"
}

// Target selects the legal modifier mask.
type Target int

const (
	Class Target = iota
	Interface
	Field
	Method
	Constructor
)

func (t Target) String() string {
	switch t {
	case Class:
		return "class"
	case Interface:
		return "interface"
	case Field:
		return "field"
	case Method:
		return "method"
	case Constructor:
		return "constructor"
	}
	return "member"
}

var legal = map[Target]classfile.AccessFlags{
	Class:     classfile.AccPublic | classfile.AccFinal | classfile.AccAbstract,
	Interface: classfile.AccPublic | classfile.AccAbstract | classfile.AccInterface,
	Field: accessMask | classfile.AccStatic | classfile.AccFinal |
		classfile.AccVolatile | classfile.AccTransient,
	Method: accessMask | classfile.AccStatic | classfile.AccFinal | classfile.AccSynchronized |
		classfile.AccNative | classfile.AccAbstract | classfile.AccStrict,
	Constructor: accessMask,
}

// forbidden pairs: the first set may not be combined with any bit of the second.
var forbidden = map[Target][][2]classfile.AccessFlags{
	Class: {
		{classfile.AccFinal, classfile.AccAbstract},
	},
	Field: {
		{classfile.AccFinal, classfile.AccVolatile},
	},
	Method: {
		{classfile.AccFinal, classfile.AccAbstract},
		{classfile.AccAbstract, classfile.AccStatic | classfile.AccSynchronized |
			classfile.AccNative | classfile.AccPrivate | classfile.AccStrict},
	},
}

// Validate checks flags against the mask for target, the single access
// modifier rule and the forbidden combinations.
func Validate(pos diag.Pos, target Target, flags classfile.AccessFlags) error {
	if extra := flags &^ legal[target]; extra != 0 {
		return diag.New(pos, diag.KeyIllegalModifiers, String(extra), target)
	}
	if a := flags & accessMask; a&(a-1) != 0 {
		return diag.New(pos, diag.KeyMultipleAccess, String(a))
	}
	for _, pair := range forbidden[target] {
		if flags&pair[0] != 0 && flags&pair[1] != 0 {
			return diag.New(pos, diag.KeyModifierCombination, target, String(flags&(pair[0]|pair[1])))
		}
	}
	return nil
}

var names = []struct {
	flag classfile.AccessFlags
	name string
}{
	{classfile.AccPublic, "public"},
	{classfile.AccProtected, "protected"},
	{classfile.AccPrivate, "private"},
	{classfile.AccAbstract, "abstract"},
	{classfile.AccStatic, "static"},
	{classfile.AccFinal, "final"},
	{classfile.AccTransient, "transient"},
	{classfile.AccVolatile, "volatile"},
	{classfile.AccSynchronized, "synchronized"},
	{classfile.AccNative, "native"},
	{classfile.AccStrict, "strictfp"},
	{classfile.AccInterface, "interface"},
}

// String renders flags in source order, e.g. "public static final".
func String(flags classfile.AccessFlags) string {
	var parts []string
	for _, n := range names {
		if flags&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, " ")
}

// Parse maps modifier keywords back to flags. Repeated keywords are an error.
func Parse(pos diag.Pos, words ...string) (classfile.AccessFlags, error) {
	var flags classfile.AccessFlags
	for _, w := range words {
		found := false
		for _, n := range names {
			if n.name != w {
				continue
			}
			if flags&n.flag != 0 {
				return 0, diag.New(pos, diag.KeyDuplicateModifier, w)
			}
			flags |= n.flag
			found = true
		}
		if !found {
			return 0, diag.New(pos, diag.KeyIllegalModifiers, w, "any declaration")
		}
	}
	return flags, nil
}
