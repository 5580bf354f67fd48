// Package resolve selects fields, methods and constructors for a call site.
package resolve

import (
	"strings"

	"github.com/daimatz/jclassgen/pkg/diag"
	"github.com/daimatz/jclassgen/pkg/types"
)

// Resolver searches class hierarchies using one invocation strategy.
type Resolver struct {
	u    *types.Universe
	conv types.Strategy
}

// New returns a resolver over u. conv decides per-argument applicability.
func New(u *types.Universe, conv types.Strategy) *Resolver {
	return &Resolver{u: u, conv: conv}
}

// Candidates collects the methods named name that are members of t: those
// declared in t, then inherited from superclasses, then from interfaces.
// A method shadows any later one with the same parameter list; private
// methods are only taken from t itself.
func (r *Resolver) Candidates(t *types.Type, name string) []*types.Method {
	var out []*types.Method
	seen := map[*types.Type]bool{}
	add := func(c *types.Type) {
		for _, m := range c.DeclaredMethods() {
			if m.Name != name || m.Flags.IsPrivate() && c != t {
				continue
			}
			shadowed := false
			for _, have := range out {
				if types.SameParams(have.Params, m.Params) {
					shadowed = true
					break
				}
			}
			if !shadowed {
				out = append(out, m)
			}
		}
	}
	var ifaces []*types.Type
	for c := t; c != nil && !seen[c]; c = c.Super() {
		seen[c] = true
		add(c)
		ifaces = append(ifaces, c.Interfaces()...)
	}
	for len(ifaces) > 0 {
		i := ifaces[0]
		ifaces = ifaces[1:]
		if seen[i] {
			continue
		}
		seen[i] = true
		add(i)
		ifaces = append(ifaces, i.Interfaces()...)
	}
	if t.IsInterface() && r.u != nil {
		if obj := r.u.Object(); !seen[obj] {
			add(obj)
		}
	}
	return out
}

// Constructors returns the constructors declared in t.
func (r *Resolver) Constructors(t *types.Type) []*types.Method {
	var out []*types.Method
	for _, m := range t.DeclaredMethods() {
		if m.IsConstructor() {
			out = append(out, m)
		}
	}
	return out
}

func (r *Resolver) applicable(m *types.Method, args []*types.Type) bool {
	if len(m.Params) != len(args) {
		return false
	}
	for i, a := range args {
		if _, ok := r.conv.Convert(a, m.Params[i]); !ok {
			return false
		}
	}
	return true
}

// moreSpecific reports whether every parameter of a converts to b's.
func (r *Resolver) moreSpecific(a, b *types.Method) bool {
	for i := range a.Params {
		if _, ok := r.conv.Convert(a.Params[i], b.Params[i]); !ok {
			return false
		}
	}
	return true
}

// Select picks the most specific applicable candidate. It returns nil and
// the maximal set when the call is ambiguous, and nil, nil when nothing
// applies.
func (r *Resolver) Select(candidates []*types.Method, args []*types.Type) (*types.Method, []*types.Method) {
	var applicable []*types.Method
	for _, m := range candidates {
		if r.applicable(m, args) {
			applicable = append(applicable, m)
		}
	}
	var best []*types.Method
	for _, m := range applicable {
		maximal := true
		for _, n := range applicable {
			if m != n && !r.moreSpecific(m, n) {
				maximal = false
				break
			}
		}
		if maximal {
			best = append(best, m)
		}
	}
	if len(best) == 1 {
		return best[0], nil
	}
	if len(best) == 0 && len(applicable) > 0 {
		return nil, applicable
	}
	return nil, best
}

// Method resolves name(args) against the members of t.
func (r *Resolver) Method(pos diag.Pos, t *types.Type, name string, args []*types.Type) (*types.Method, error) {
	return r.pick(pos, t, name, r.Candidates(t, name), args)
}

// Constructor resolves new t(args).
func (r *Resolver) Constructor(pos diag.Pos, t *types.Type, args []*types.Type) (*types.Method, error) {
	return r.pick(pos, t, types.ConstructorName, r.Constructors(t), args)
}

func (r *Resolver) pick(pos diag.Pos, t *types.Type, name string, candidates []*types.Method, args []*types.Type) (*types.Method, error) {
	if err := t.Load(); err != nil {
		return nil, diag.New(pos, diag.KeyUnknownType, t.Name()+": "+err.Error())
	}
	m, ambiguous := r.Select(candidates, args)
	if m != nil {
		return m, nil
	}
	sig := types.Signature(displayName(t, name), args)
	if len(ambiguous) == 0 {
		return nil, diag.New(pos, diag.KeyNoSuchMethod, sig, t.Name())
	}
	var alts []string
	for _, a := range ambiguous {
		alts = append(alts, a.String())
	}
	return nil, diag.New(pos, diag.KeyAmbiguousCall, sig, t.Name(), strings.Join(alts, " and "))
}

func displayName(t *types.Type, name string) string {
	if name == types.ConstructorName {
		return t.SimpleName()
	}
	return name
}

// Field finds the field named name in t, its superinterfaces, then its
// superclasses. Private fields of supertypes are not inherited.
func (r *Resolver) Field(pos diag.Pos, t *types.Type, name string) (*types.Field, error) {
	if f := findField(t, name, t, map[*types.Type]bool{}); f != nil {
		return f, nil
	}
	return nil, diag.New(pos, diag.KeyNoSuchField, name, t.Name())
}

func findField(c *types.Type, name string, start *types.Type, seen map[*types.Type]bool) *types.Field {
	if c == nil || seen[c] {
		return nil
	}
	seen[c] = true
	if f := c.DeclaredField(name); f != nil && (c == start || !f.Flags.IsPrivate()) {
		return f
	}
	for _, i := range c.Interfaces() {
		if f := findField(i, name, start, seen); f != nil {
			return f
		}
	}
	return findField(c.Super(), name, start, seen)
}
