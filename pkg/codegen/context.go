// Package codegen is the class generator: callers declare members and
// drive an expression and statement API, and the Generator selects the
// instructions, tracks the operand stack and manages control-flow labels.
package codegen

import (
	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/daimatz/jclassgen/pkg/emit"
	"github.com/daimatz/jclassgen/pkg/loader"
	"github.com/daimatz/jclassgen/pkg/lookup"
	"github.com/daimatz/jclassgen/pkg/resolve"
	"github.com/daimatz/jclassgen/pkg/types"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("jclassgen.codegen")

// Options control the class files a Context produces.
type Options struct {
	MajorVersion uint16
	// DebugInfo emits LineNumberTable and LocalVariableTable.
	DebugInfo bool
	// SourceFile names the SourceFile attribute and diagnostic positions.
	// Empty means "<SimpleName>.java".
	SourceFile string
}

// DefaultOptions targets class version 49 with debug tables.
func DefaultOptions() Options {
	return Options{MajorVersion: classfile.DefaultMajorVersion, DebugInfo: true}
}

// SinkFactory returns the sink receiving the body of one method. pool is
// the constant pool of the class being generated.
type SinkFactory func(pool *classfile.PoolBuilder, method string) emit.Sink

// Context is the state shared by every class generated in one run: the
// type table, the lookup service and the conversion strategies.
type Context struct {
	Universe    *types.Universe
	Lookup      *lookup.Service
	Resolver    *resolve.Resolver
	Conversions types.Conversions
	Options     Options
	// NewSink overrides the default Assembler sink, e.g. with a Printer.
	NewSink SinkFactory
}

// NewContext creates a run context resolving external classes through l.
func NewContext(l loader.ClassLoader, opts Options) *Context {
	u := types.NewUniverse(nil)
	conv := types.DefaultConversions()
	if opts.MajorVersion == 0 {
		opts.MajorVersion = classfile.DefaultMajorVersion
	}
	return &Context{
		Universe:    u,
		Lookup:      lookup.New(u, l),
		Resolver:    resolve.New(u, conv.Invocation),
		Conversions: conv,
		Options:     opts,
	}
}

func (c *Context) sink(pool *classfile.PoolBuilder, method string) emit.Sink {
	if c.NewSink != nil {
		return c.NewSink(pool, method)
	}
	return emit.NewAssembler(pool)
}

// NewClass starts generating a class. name may be simple ("Counter"), in
// which case Package supplies the package, or qualified ("com.acme.Counter").
func (c *Context) NewClass(flags classfile.AccessFlags, name string) *Generator {
	return newGenerator(c, flags, name, false)
}
