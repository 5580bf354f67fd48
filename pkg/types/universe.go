package types

import (
	"fmt"
	"strings"

	cmap "github.com/orcaman/concurrent-map"
)

// Source supplies populators for class types that are not generated in
// the current run.
type Source interface {
	Populator(binary string) Populator
}

// Universe is the canonicalizing table of class and array types for one
// compilation run. Lazy population of a type is serialized by the type
// itself; the table tolerates concurrent readers.
type Universe struct {
	classes cmap.ConcurrentMap
	arrays  cmap.ConcurrentMap
	source  Source
}

// NewUniverse creates an empty universe. src may be nil, in which case
// non-generated classes have no supertypes or members.
func NewUniverse(src Source) *Universe {
	return &Universe{
		classes: cmap.New(),
		arrays:  cmap.New(),
		source:  src,
	}
}

// SetSource installs the populator source used for classes created later.
func (u *Universe) SetSource(src Source) { u.source = src }

// BinaryName converts "java.lang.String" to "java/lang/String".
func BinaryName(name string) string { return strings.ReplaceAll(name, ".", "/") }

func newClass(binary string, ci *classInfo) *Type {
	return &Type{
		kind:   Class,
		name:   strings.ReplaceAll(binary, "/", "."),
		desc:   "L" + binary + ";",
		binary: binary,
		info:   ci,
	}
}

// Lookup returns an already known class type.
func (u *Universe) Lookup(name string) (*Type, bool) {
	v, ok := u.classes.Get(BinaryName(name))
	if !ok {
		return nil, false
	}
	return v.(*Type), true
}

// Class returns the canonical class type for name (dotted or binary),
// creating it with a populator from the source when unknown.
func (u *Universe) Class(name string) *Type {
	binary := BinaryName(name)
	if t, ok := u.Lookup(binary); ok {
		return t
	}
	ci := &classInfo{}
	if u.source != nil {
		ci.populate = u.source.Populator(binary)
	}
	u.classes.SetIfAbsent(binary, newClass(binary, ci))
	t, _ := u.Lookup(binary)
	return t
}

// Generated registers name as a class being generated in this run. An
// existing entry is converted in place so that types already referring to
// it stay canonical; a generated entry is returned unchanged so that a
// second pass sees the members discovered by the first.
func (u *Universe) Generated(name string) *Type {
	t := u.Class(name)
	ci := t.info
	ci.mu.Lock()
	defer ci.mu.Unlock()
	if !ci.generated {
		ci.generated = true
		ci.loaded = true
		ci.loadErr = nil
		ci.populate = nil
		ci.decl = ClassDecl{}
	}
	return t
}

// Object returns java.lang.Object.
func (u *Universe) Object() *Type { return u.Class(ObjectName) }

// String returns java.lang.String.
func (u *Universe) String() *Type { return u.Class(StringName) }

// ArrayOf returns the canonical array type with dims more dimensions than elem.
func (u *Universe) ArrayOf(elem *Type, dims int) *Type {
	t := elem
	for i := 0; i < dims; i++ {
		desc := "[" + t.desc
		if v, ok := u.arrays.Get(desc); ok {
			t = v.(*Type)
			continue
		}
		at := &Type{kind: Array, name: t.name + "[]", desc: desc, elem: t, dims: t.dims + 1}
		u.arrays.SetIfAbsent(desc, at)
		v, _ := u.arrays.Get(desc)
		t = v.(*Type)
	}
	return t
}

// Base returns the innermost element type of an array, t itself otherwise.
func Base(t *Type) *Type {
	for t.kind == Array {
		t = t.elem
	}
	return t
}

// Classes returns every class type currently in the table.
func (u *Universe) Classes() []*Type {
	out := make([]*Type, 0, u.classes.Count())
	for _, v := range u.classes.Items() {
		out = append(out, v.(*Type))
	}
	return out
}

// ParseDescriptor resolves a field descriptor such as "[Ljava/lang/String;".
func (u *Universe) ParseDescriptor(desc string) (*Type, error) {
	t, rest, err := u.parseField(desc)
	if err != nil {
		return nil, err
	}
	if rest != "" {
		return nil, fmt.Errorf("trailing characters in descriptor %q", desc)
	}
	return t, nil
}

// ParseMethodDescriptor resolves "(IJ)V" into parameter and return types.
func (u *Universe) ParseMethodDescriptor(desc string) ([]*Type, *Type, error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, nil, fmt.Errorf("method descriptor %q does not start with '('", desc)
	}
	rest := desc[1:]
	var params []*Type
	for !strings.HasPrefix(rest, ")") {
		if rest == "" {
			return nil, nil, fmt.Errorf("unterminated parameter list in %q", desc)
		}
		var p *Type
		var err error
		p, rest, err = u.parseField(rest)
		if err != nil {
			return nil, nil, fmt.Errorf("method descriptor %q: %w", desc, err)
		}
		params = append(params, p)
	}
	rest = rest[1:]
	if rest == "V" {
		return params, VoidType, nil
	}
	ret, err := u.ParseDescriptor(rest)
	if err != nil {
		return nil, nil, fmt.Errorf("method descriptor %q: %w", desc, err)
	}
	return params, ret, nil
}

func (u *Universe) parseField(s string) (*Type, string, error) {
	if s == "" {
		return nil, "", fmt.Errorf("empty descriptor")
	}
	switch s[0] {
	case 'Z':
		return BooleanType, s[1:], nil
	case 'B':
		return ByteType, s[1:], nil
	case 'C':
		return CharType, s[1:], nil
	case 'S':
		return ShortType, s[1:], nil
	case 'I':
		return IntType, s[1:], nil
	case 'J':
		return LongType, s[1:], nil
	case 'F':
		return FloatType, s[1:], nil
	case 'D':
		return DoubleType, s[1:], nil
	case 'L':
		end := strings.IndexByte(s, ';')
		if end < 2 {
			return nil, "", fmt.Errorf("malformed class descriptor %q", s)
		}
		return u.Class(s[1:end]), s[end+1:], nil
	case '[':
		elem, rest, err := u.parseField(s[1:])
		if err != nil {
			return nil, "", err
		}
		return u.ArrayOf(elem, 1), rest, nil
	}
	return nil, "", fmt.Errorf("unknown descriptor character %q", s[0])
}
