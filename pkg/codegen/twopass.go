package codegen

import (
	"strings"

	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/daimatz/jclassgen/pkg/types"
)

// Definition describes one class for TwoPass. Build declares the header
// and members; TwoPass ends the class.
type Definition struct {
	Flags classfile.AccessFlags
	// Name is qualified ("com.acme.Counter") or simple with Build calling
	// Package.
	Name  string
	Build func(Builder) error
}

// TwoPass generates classes whose bodies refer to members declared later,
// in the same class or in another class of defs. A discovery pass runs
// every Build with method bodies skipped, so that all declarations are
// known before the second pass emits code.
func TwoPass(ctx *Context, defs ...Definition) ([]*Class, error) {
	for _, d := range defs {
		if binary := types.BinaryName(d.Name); strings.Contains(binary, "/") {
			ctx.Universe.Generated(binary)
		}
	}
	for _, d := range defs {
		if _, err := runDefinition(newGenerator(ctx, d.Flags, d.Name, true), d); err != nil {
			return nil, err
		}
	}
	out := make([]*Class, 0, len(defs))
	for _, d := range defs {
		c, err := runDefinition(newGenerator(ctx, d.Flags, d.Name, false), d)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func runDefinition(g *Generator, d Definition) (*Class, error) {
	if err := d.Build(g); err != nil {
		return nil, g.fail(err)
	}
	return g.EndClass()
}
