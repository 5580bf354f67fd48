package codegen

import (
	"strings"

	"github.com/daimatz/jclassgen/pkg/access"
	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/daimatz/jclassgen/pkg/diag"
	"github.com/daimatz/jclassgen/pkg/emit"
	"github.com/daimatz/jclassgen/pkg/lookup"
	"github.com/daimatz/jclassgen/pkg/types"
)

// Param is a formal parameter of a method or constructor.
type Param struct {
	Type string
	Name string
}

// Class is the result of generating one class.
type Class struct {
	// Name is the binary name, e.g. "com/acme/Counter".
	Name string
	File *classfile.ClassFile
	// Data is the encoded class file. It is nil after the discovery pass and
	// when the method sinks produce listings instead of bytecode.
	Data []byte
}

type phase int

const (
	phasePackage phase = iota
	phaseImports
	phaseSupers
	phaseMembers
	phaseDone
)

func (p phase) String() string {
	switch p {
	case phasePackage:
		return "the class header"
	case phaseImports:
		return "imports"
	case phaseSupers:
		return "extends/implements"
	case phaseMembers:
		return "member declarations"
	}
	return "the end of the class"
}

// Generator builds one class. It is not safe for concurrent use; classes
// of one Context are generated one after another.
type Generator struct {
	ctx       *Context
	flags     classfile.AccessFlags
	pkg       string
	simple    string
	qualified bool
	source    string
	discovery bool

	phase    phase
	imports  lookup.Imports
	extended bool
	class    *types.Type
	pool     *classfile.PoolBuilder
	fields   []classfile.FieldInfo
	methods  []classfile.MethodInfo
	declared map[string]bool
	hasCtor  bool
	listing  bool

	m     *method
	line  int
	label string
	err   error
}

var _ Builder = (*Generator)(nil)

func newGenerator(c *Context, flags classfile.AccessFlags, name string, discovery bool) *Generator {
	g := &Generator{
		ctx:       c,
		flags:     flags,
		discovery: discovery,
		declared:  make(map[string]bool),
		imports:   lookup.Imports{Classes: make(map[string]string)},
	}
	binary := types.BinaryName(name)
	if i := strings.LastIndexByte(binary, '/'); i >= 0 {
		g.pkg, g.simple, g.qualified = binary[:i], binary[i+1:], true
	} else {
		g.simple = binary
	}
	g.source = c.Options.SourceFile
	if g.source == "" {
		g.source = g.simple + ".java"
	}
	target := access.Class
	if flags.IsInterface() {
		target = access.Interface
		g.flags |= classfile.AccAbstract
	}
	if err := access.Validate(g.pos(), target, g.flags); err != nil {
		g.fail(err)
	}
	return g
}

// Err returns the error that aborted generation, if any.
func (g *Generator) Err() error { return g.err }

// Type resolves a type name in the naming context of the class.
func (g *Generator) Type(name string) (*types.Type, error) {
	if g.err != nil {
		return nil, g.err
	}
	t := g.resolveType(name)
	return t, g.err
}

// SetLine attributes the following instructions to a source line.
func (g *Generator) SetLine(line int) { g.line = line }

func (g *Generator) pos() diag.Pos { return diag.Pos{File: g.source, Line: g.line} }

// fail latches the first error; every later call returns it.
func (g *Generator) fail(err error) error {
	if g.err == nil && err != nil {
		g.err = err
		log.Debugf("%s: generation aborted: %s", g.binaryName(), err)
	}
	return g.err
}

func (g *Generator) errorf(key diag.Key, args ...interface{}) error {
	return g.fail(diag.New(g.pos(), key, args...))
}

func (g *Generator) internalf(format string, args ...interface{}) error {
	return g.fail(diag.Internalf(g.pos(), format, args...))
}

func (g *Generator) binaryName() string {
	if g.pkg == "" {
		return g.simple
	}
	return g.pkg + "/" + g.simple
}

func (g *Generator) resolveType(name string) *types.Type {
	g.ensureClass()
	t, err := g.ctx.Lookup.Resolve(name, &g.imports)
	if err != nil {
		g.errorf(diag.KeyUnknownType, name)
		return nil
	}
	if err := access.CheckClass(g.pos(), g.class, t); err != nil {
		g.fail(err)
		return nil
	}
	return t
}

// ensureClass registers the class in the universe once the header is
// complete. A type left by an earlier pass keeps its discovered members.
func (g *Generator) ensureClass() *types.Type {
	if g.class != nil {
		return g.class
	}
	binary := g.binaryName()
	g.imports.Package = g.pkg
	t := g.ctx.Universe.Generated(binary)
	t.SetFlags(g.flags)
	if !g.flags.IsInterface() && t.Super() == nil && binary != types.ObjectName {
		t.SetSuper(g.ctx.Universe.Object())
	}
	g.class = t
	g.pool = classfile.NewPoolBuilder()
	log.Infof("begin class %s", t.Name())
	return t
}

// declare enforces the order package, imports, extends/implements, members.
func (g *Generator) declare(op string, p phase) bool {
	if g.err != nil {
		return false
	}
	if g.m != nil {
		g.errorf(diag.KeyMethodOpen, op, g.m.decl.Signature())
		return false
	}
	if g.phase > p {
		g.errorf(diag.KeyDeclarationOrder, op, g.phase)
		return false
	}
	g.phase = p
	return true
}

// Package sets the package of a class created with a simple name.
func (g *Generator) Package(name string) error {
	if !g.declare("package", phasePackage) {
		return g.err
	}
	pkg := types.BinaryName(name)
	if g.qualified && pkg != g.pkg {
		return g.errorf(diag.KeyPackageMismatch, name, g.binaryName())
	}
	g.pkg = pkg
	g.phase = phaseImports
	return nil
}

// Import adds a single-type import ("java.util.List") or an on-demand
// import ("java.util.*").
func (g *Generator) Import(name string) error {
	if !g.declare("import", phaseImports) {
		return g.err
	}
	binary := types.BinaryName(name)
	if strings.HasSuffix(binary, "/*") {
		g.imports.Packages = append(g.imports.Packages, strings.TrimSuffix(binary, "/*"))
		return nil
	}
	if !g.ctx.Lookup.Exists(binary) {
		return g.errorf(diag.KeyUnknownType, name)
	}
	g.imports.Classes[binary[strings.LastIndexByte(binary, '/')+1:]] = binary
	return nil
}

// Extends sets the superclass, or adds a superinterface when the class is
// an interface.
func (g *Generator) Extends(name string) error {
	if !g.declare("extends", phaseSupers) {
		return g.err
	}
	c := g.ensureClass()
	t := g.resolveType(name)
	if t == nil {
		return g.err
	}
	if c.IsInterface() {
		if !t.IsClass() || !t.IsInterface() {
			return g.errorf(diag.KeyNotInterface, t.Name())
		}
		c.AddInterface(t)
		return nil
	}
	if g.extended {
		return g.errorf(diag.KeyDeclarationOrder, "extends", "extends")
	}
	switch {
	case !t.IsClass():
		return g.errorf(diag.KeyBadSuper, "type", t.Name())
	case t.IsInterface():
		return g.errorf(diag.KeyBadSuper, "interface", t.Name())
	case t.Flags().IsFinal():
		return g.errorf(diag.KeyBadSuper, "final class", t.Name())
	case types.Equal(t, c):
		return g.errorf(diag.KeyBadSuper, "itself:", t.Name())
	}
	g.extended = true
	c.SetSuper(t)
	return nil
}

// Implements adds an implemented interface.
func (g *Generator) Implements(name string) error {
	if !g.declare("implements", phaseSupers) {
		return g.err
	}
	c := g.ensureClass()
	if c.IsInterface() {
		return g.errorf(diag.KeyStatementState, "implements", "interfaces extend other interfaces")
	}
	t := g.resolveType(name)
	if t == nil {
		return g.err
	}
	if !t.IsClass() || !t.IsInterface() {
		return g.errorf(diag.KeyNotInterface, t.Name())
	}
	c.AddInterface(t)
	return nil
}

// Field declares a field. Interface fields are implicitly public static final.
func (g *Generator) Field(flags classfile.AccessFlags, typ, name string) error {
	if !g.declare("field "+name, phaseMembers) {
		return g.err
	}
	c := g.ensureClass()
	if c.IsInterface() {
		flags |= classfile.AccPublic | classfile.AccStatic | classfile.AccFinal
	}
	if err := access.Validate(g.pos(), access.Field, flags); err != nil {
		return g.fail(err)
	}
	t := g.resolveType(typ)
	if t == nil {
		return g.err
	}
	if t.IsVoid() {
		return g.errorf(diag.KeyIncompatibleTypes, "void", "a field type")
	}
	key := "f:" + name
	if g.declared[key] {
		return g.errorf(diag.KeyDuplicateField, name, c.Name())
	}
	g.declared[key] = true
	f := c.DeclaredField(name)
	if f == nil {
		f = &types.Field{Name: name}
		c.AddField(f)
	}
	f.Type, f.Flags = t, flags
	g.fields = append(g.fields, classfile.FieldInfo{AccessFlags: flags, Name: name, Descriptor: t.Descriptor()})
	return nil
}

// declareMethod validates and registers a method or constructor and returns
// it with the parameter names.
func (g *Generator) declareMethod(op string, flags classfile.AccessFlags, ret, name string, params []Param) *types.Method {
	if !g.declare(op, phaseMembers) {
		return nil
	}
	c := g.ensureClass()
	target := access.Method
	switch name {
	case types.ConstructorName:
		target = access.Constructor
		if c.IsInterface() {
			g.errorf(diag.KeyIllegalModifiers, "constructor", "an interface")
			return nil
		}
	case "<clinit>":
	default:
		if c.IsInterface() {
			flags |= classfile.AccPublic | classfile.AccAbstract
		}
	}
	if name != "<clinit>" {
		if err := access.Validate(g.pos(), target, flags); err != nil {
			g.fail(err)
			return nil
		}
	}
	rt := types.VoidType
	if ret != "" && ret != "void" {
		if rt = g.resolveType(ret); rt == nil {
			return nil
		}
	}
	ptypes := make([]*types.Type, len(params))
	seen := make(map[string]bool, len(params))
	for i, p := range params {
		t := g.resolveType(p.Type)
		if t == nil {
			return nil
		}
		if t.IsVoid() {
			g.errorf(diag.KeyIncompatibleTypes, "void", "a parameter type")
			return nil
		}
		if seen[p.Name] {
			g.errorf(diag.KeyDuplicateLocal, p.Name)
			return nil
		}
		seen[p.Name] = true
		ptypes[i] = t
	}
	key := "m:" + types.Signature(name, ptypes)
	if g.declared[key] {
		g.errorf(diag.KeyDuplicateMethod, types.Signature(name, ptypes), c.Name())
		return nil
	}
	g.declared[key] = true
	if name == types.ConstructorName {
		g.hasCtor = true
	}
	m := c.DeclaredMethod(name, ptypes)
	if m == nil {
		m = &types.Method{Name: name, Params: ptypes}
		c.AddMethod(m)
	}
	m.Return, m.Flags = rt, flags
	return m
}

func paramNames(params []Param) []string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return names
}

// BeginMethod declares a method and opens its body.
func (g *Generator) BeginMethod(flags classfile.AccessFlags, ret, name string, params ...Param) error {
	m := g.declareMethod("method "+name, flags, ret, name, params)
	if m == nil {
		return g.err
	}
	if bad := m.Flags & (classfile.AccAbstract | classfile.AccNative); bad != 0 {
		return g.errorf(diag.KeyAbstractBody, access.String(bad), m.Signature())
	}
	g.openMethod(m, paramNames(params))
	return nil
}

// BeginConstructor declares a constructor and opens its body. Unless the
// body starts with BeginSuperCall, the no-argument superclass constructor
// is invoked before its first operation.
func (g *Generator) BeginConstructor(flags classfile.AccessFlags, params ...Param) error {
	m := g.declareMethod("constructor", flags, "void", types.ConstructorName, params)
	if m == nil {
		return g.err
	}
	g.openMethod(m, paramNames(params))
	g.m.needSuper = g.class.Super() != nil
	return nil
}

// BeginStaticInit opens the static initializer.
func (g *Generator) BeginStaticInit() error {
	m := g.declareMethod("static initializer", classfile.AccStatic, "void", "<clinit>", nil)
	if m == nil {
		return g.err
	}
	g.openMethod(m, nil)
	return nil
}

// AbstractMethod declares a method without a body: abstract, native, or
// any method of an interface.
func (g *Generator) AbstractMethod(flags classfile.AccessFlags, ret, name string, params ...Param) error {
	if g.err == nil && g.class != nil && !g.class.IsInterface() && flags&(classfile.AccAbstract|classfile.AccNative) == 0 {
		flags |= classfile.AccAbstract
	}
	m := g.declareMethod("method "+name, flags, ret, name, params)
	if m == nil {
		return g.err
	}
	if m.Flags.IsAbstract() && !g.class.Flags().IsAbstract() {
		return g.errorf(diag.KeyIllegalModifiers, "abstract", "a method of non-abstract class "+g.class.Name())
	}
	g.methods = append(g.methods, classfile.MethodInfo{AccessFlags: m.Flags, Name: m.Name, Descriptor: m.Descriptor()})
	return nil
}

// DefineMethod declares a method whose body is produced by body. In the
// discovery pass only the declaration is recorded.
func (g *Generator) DefineMethod(flags classfile.AccessFlags, ret, name string, params []Param, body func(Builder) error) error {
	if g.discovery {
		g.declareMethod("method "+name, flags, ret, name, params)
		return g.err
	}
	if err := g.BeginMethod(flags, ret, name, params...); err != nil {
		return err
	}
	return g.runBody(body)
}

// DefineConstructor is DefineMethod for constructors.
func (g *Generator) DefineConstructor(flags classfile.AccessFlags, params []Param, body func(Builder) error) error {
	if g.discovery {
		if g.declareMethod("constructor", flags, "void", types.ConstructorName, params) != nil {
			g.hasCtor = true
		}
		return g.err
	}
	if err := g.BeginConstructor(flags, params...); err != nil {
		return err
	}
	return g.runBody(body)
}

func (g *Generator) runBody(body func(Builder) error) error {
	if err := body(g); err != nil {
		if g.err != nil {
			return g.err
		}
		return g.fail(err)
	}
	return g.EndMethod()
}

func (g *Generator) openMethod(m *types.Method, names []string) {
	var sink emit.Sink
	if g.discovery {
		sink = &emit.Discard{}
	} else {
		sink = g.ctx.sink(g.pool, m.Name+m.Descriptor())
	}
	mm := &method{
		decl:      m,
		sink:      sink,
		skip:      g.discovery,
		reachable: true,
		free:      make(map[int][]int),
	}
	mm.stmts = []statement{&methodBody{}}
	g.m = mm
	if !m.IsStatic() {
		g.declareLocal("this", g.class)
	}
	for i, p := range m.Params {
		g.declareLocal(names[i], p)
	}
	log.Debugf("begin method %s", m)
}

// EndMethod closes the open method body. A void method that can complete
// normally gets an implicit return.
func (g *Generator) EndMethod() error {
	if g.err != nil {
		return g.err
	}
	mm := g.m
	if mm == nil {
		return g.errorf(diag.KeyNotInMethod, "end of method")
	}
	if mm.skip {
		g.m = nil
		return nil
	}
	if g.label != "" {
		return g.errorf(diag.KeyLabelPending, g.label)
	}
	if mm.needSuper {
		g.superInit()
	}
	switch {
	case len(mm.logic) > 0:
		return g.errorf(diag.KeyMismatchedEnd, "end of method", mm.logic[len(mm.logic)-1].kind)
	case len(mm.calls) > 0:
		return g.errorf(diag.KeyMismatchedEnd, "end of method", "call of "+mm.calls[len(mm.calls)-1].String())
	case len(mm.stmts) > 1:
		return g.errorf(diag.KeyMismatchedEnd, "end of method", mm.top().kind())
	case len(mm.stack) > 0:
		return g.errorf(diag.KeyStackNotEmpty, "end of method", len(mm.stack))
	}
	if mm.reachable {
		if !mm.decl.Return.IsVoid() {
			return g.errorf(diag.KeyMissingReturn, mm.decl.Signature())
		}
		g.emit(classfile.OpReturn)
	}
	if err := g.popStmt(mm.top()); err != nil {
		return err
	}
	g.closeScope(0)

	var vars []emit.LocalVar
	if g.ctx.Options.DebugInfo {
		for _, l := range mm.locals {
			vars = append(vars, emit.LocalVar{
				Name:       l.Name,
				Descriptor: l.Type.Descriptor(),
				Slot:       l.Slot,
				Start:      l.StartPC,
				End:        l.EndPC,
			})
		}
	}
	code, err := mm.sink.Finish(mm.next, vars)
	if err != nil {
		return g.errorf(diag.KeyCodeTooLarge, mm.decl.Signature(), err.Error())
	}
	if code == nil {
		g.listing = true
	}
	g.methods = append(g.methods, classfile.MethodInfo{
		AccessFlags: mm.decl.Flags,
		Name:        mm.decl.Name,
		Descriptor:  mm.decl.Descriptor(),
		Code:        code,
	})
	log.Debugf("end method %s", mm.decl)
	g.m = nil
	return nil
}

// EndClass finishes the class. A class without constructors gets the
// default one.
func (g *Generator) EndClass() (*Class, error) {
	if g.err != nil {
		return nil, g.err
	}
	if g.m != nil {
		return nil, g.errorf(diag.KeyMethodOpen, "end of class", g.m.decl.Signature())
	}
	c := g.ensureClass()
	if !c.IsInterface() && !g.hasCtor {
		if err := g.BeginConstructor(g.flags & classfile.AccPublic); err != nil {
			return nil, err
		}
		if err := g.EndMethod(); err != nil {
			return nil, err
		}
	}
	if !g.declare("end of class", phaseDone) {
		return nil, g.err
	}
	out := &Class{Name: c.BinaryName()}
	if g.discovery {
		return out, nil
	}

	flags := g.flags
	if !flags.IsInterface() {
		flags |= classfile.AccSuper
	}
	super := types.ObjectName
	if s := c.Super(); s != nil {
		super = s.BinaryName()
	}
	cf := &classfile.ClassFile{
		MajorVersion: g.ctx.Options.MajorVersion,
		AccessFlags:  flags,
		ThisClass:    g.pool.Class(c.BinaryName()),
		Fields:       g.fields,
		Methods:      g.methods,
	}
	if c.BinaryName() != types.ObjectName {
		cf.SuperClass = g.pool.Class(super)
	}
	for _, i := range c.Interfaces() {
		cf.Interfaces = append(cf.Interfaces, g.pool.Class(i.BinaryName()))
	}
	if g.ctx.Options.DebugInfo {
		cf.SourceFile = g.source
	}
	out.File = cf
	if g.listing {
		cf.ConstantPool = g.pool.Entries()
		return out, nil
	}
	data, err := cf.Bytes(g.pool)
	if err != nil {
		return nil, g.errorf(diag.KeyCodeTooLarge, c.Name(), err.Error())
	}
	out.Data = data
	log.Infof("generated %s (%d bytes)", c.Name(), len(data))
	return out, nil
}
