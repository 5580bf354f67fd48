package codegen

import (
	"strings"

	"github.com/daimatz/jclassgen/pkg/access"
	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/daimatz/jclassgen/pkg/diag"
	"github.com/daimatz/jclassgen/pkg/types"
)

type callKind int

const (
	callMethod callKind = iota
	callSuper
	callNew
	callArray
)

// CallStack accumulates the actual parameters of a pending call,
// constructor invocation or array allocation. The values above base on the
// operand stack are its arguments.
type CallStack struct {
	kind   callKind
	base   int
	target *types.Type
	// Args are the types of the arguments marked with Arg so far.
	Args []*types.Type
}

func (c *CallStack) String() string {
	var name string
	switch c.kind {
	case callSuper:
		name = "super"
	case callNew:
		name = "new " + c.target.Name()
	case callArray:
		name = "new " + c.target.Name()
	default:
		name = "method"
	}
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.Name()
	}
	return name + "(" + strings.Join(parts, ",") + ")"
}

func (g *Generator) openCall(kind callKind, target *types.Type) {
	g.m.calls = append(g.m.calls, &CallStack{kind: kind, base: len(g.m.stack), target: target})
}

// closeCall pops the innermost pending call, which must be of kind, and
// returns it with the argument types.
func (g *Generator) closeCall(op string, kind callKind) (*CallStack, []*types.Type) {
	m := g.m
	if len(m.calls) == 0 {
		g.errorf(diag.KeyMismatchedEnd, op, "no pending call")
		return nil, nil
	}
	c := m.calls[len(m.calls)-1]
	if c.kind != kind {
		g.errorf(diag.KeyMismatchedEnd, op, c.String())
		return nil, nil
	}
	if len(m.stack) < c.base {
		g.internalf("call %s lost its base", c)
		return nil, nil
	}
	m.calls = m.calls[:len(m.calls)-1]
	g.settle(2)
	args := make([]*types.Type, 0, len(m.stack)-c.base)
	for _, o := range m.stack[c.base:] {
		args = append(args, o.t)
	}
	return c, args
}

// BeginCall opens an argument list. For instance methods the receiver must
// already be on the stack.
func (g *Generator) BeginCall() error {
	if !g.begin("call") {
		return g.err
	}
	g.openCall(callMethod, nil)
	return nil
}

// Arg marks the value on top as the next argument of the pending call.
func (g *Generator) Arg() (*types.Type, error) {
	if !g.begin("argument") {
		return g.done()
	}
	m := g.m
	if len(m.calls) == 0 {
		g.errorf(diag.KeyStatementState, "argument", "no call is pending")
		return g.done()
	}
	c := m.calls[len(m.calls)-1]
	switch have := len(m.stack) - c.base - len(c.Args); {
	case have < 1:
		g.errorf(diag.KeyStackUnderflow, "argument", 1, 0)
		return g.done()
	case have > 1:
		g.errorf(diag.KeyStackNotEmpty, "argument", have-1)
		return g.done()
	}
	g.settleTop()
	c.Args = append(c.Args, g.peek(0).t)
	return g.done()
}

// convertArgs converts the arguments above base to the parameter types.
func (g *Generator) convertArgs(base int, params []*types.Type) {
	m := g.m
	convs := make([]types.Conversion, len(params))
	last := -1
	for i, p := range params {
		c, ok := g.ctx.Conversions.Invocation.Convert(m.stack[base+i].t, p)
		if !ok {
			g.internalf("selected method does not accept %s as %s", m.stack[base+i].t, p)
			return
		}
		convs[i] = c
		if len(c.Ops) > 0 || c.Check {
			last = i
		}
	}
	if last < 0 {
		return
	}
	if last == len(params)-1 && g.onlyLast(convs) {
		g.apply(convs[last])
		return
	}
	// Spill the arguments and reload them converted.
	slots := make([]int, len(params))
	for i := len(params) - 1; i >= 0; i-- {
		t := m.stack[base+i].t
		slots[i] = g.temp(t)
		g.emitLocal(storeOp(t), slots[i])
		g.pop()
	}
	for i, c := range convs {
		g.emitLocal(loadOp(c.From), slots[i])
		g.push(c.From)
		g.apply(c)
		g.release(c.From, slots[i])
	}
}

func (g *Generator) onlyLast(convs []types.Conversion) bool {
	for _, c := range convs[:len(convs)-1] {
		if len(c.Ops) > 0 || c.Check {
			return false
		}
	}
	return true
}

func (g *Generator) invoke(op byte, owner *types.Type, m *types.Method) {
	iface := op == classfile.OpInvokeinterface
	g.emitInvoke(op, owner.InternalName(), m.Name, m.Descriptor(), iface)
}

// finishCall pops the arguments and the receiver, if any, and pushes the
// result.
func (g *Generator) finishCall(base int, receiver bool, ret *types.Type) {
	m := g.m
	if receiver {
		base--
	}
	m.stack = m.stack[:base]
	g.push(ret)
}

// InvokeVirtual calls the instance method name on the receiver beneath the
// arguments.
func (g *Generator) InvokeVirtual(name string) (*types.Type, error) {
	op := "call of " + name
	if !g.begin(op) {
		return g.done()
	}
	c, args := g.closeCall(op, callMethod)
	if c == nil {
		return g.done()
	}
	if c.base < 1 {
		g.errorf(diag.KeyStackUnderflow, op, len(args)+1, len(args))
		return g.done()
	}
	recv := g.m.stack[c.base-1].t
	if !recv.IsClass() && !recv.IsArray() {
		g.errorf(diag.KeyNotReference, op, recv)
		return g.done()
	}
	q := recv
	if recv.IsArray() {
		q = g.ctx.Universe.Object()
	}
	m, err := g.ctx.Resolver.Method(g.pos(), q, name, args)
	if err != nil && q.IsInterface() {
		// Interfaces answer the public methods of Object.
		if om, oerr := g.ctx.Resolver.Method(g.pos(), g.ctx.Universe.Object(), name, args); oerr == nil && om.Flags.IsPublic() {
			m, err, q = om, nil, g.ctx.Universe.Object()
		}
	}
	if err != nil {
		g.fail(err)
		return g.done()
	}
	if err := access.CheckMember(g.pos(), g.class, m.Owner, q, m.Flags, m.String()); err != nil {
		g.fail(err)
		return g.done()
	}
	if m.IsStatic() {
		g.errorf(diag.KeyStaticViaInstance, m)
		return g.done()
	}
	g.convertArgs(c.base, m.Params)
	switch {
	case m.Flags.IsPrivate():
		g.invoke(classfile.OpInvokespecial, q, m)
	case q.IsInterface():
		g.invoke(classfile.OpInvokeinterface, q, m)
	default:
		g.invoke(classfile.OpInvokevirtual, q, m)
	}
	g.finishCall(c.base, true, m.Return)
	return g.result(m.Return)
}

// InvokeStatic calls the static method class.name; an empty class means
// the class being generated.
func (g *Generator) InvokeStatic(class, name string) (*types.Type, error) {
	op := "call of " + name
	if !g.begin(op) {
		return g.done()
	}
	c, args := g.closeCall(op, callMethod)
	if c == nil {
		return g.done()
	}
	owner := g.class
	if class != "" {
		if owner = g.resolveType(class); owner == nil {
			return g.done()
		}
	}
	if !owner.IsClass() {
		g.errorf(diag.KeyNotReference, op, owner)
		return g.done()
	}
	m, err := g.ctx.Resolver.Method(g.pos(), owner, name, args)
	if err != nil {
		g.fail(err)
		return g.done()
	}
	if err := access.CheckMember(g.pos(), g.class, m.Owner, owner, m.Flags, m.String()); err != nil {
		g.fail(err)
		return g.done()
	}
	if !m.IsStatic() {
		g.errorf(diag.KeyStaticContext, m)
		return g.done()
	}
	g.convertArgs(c.base, m.Params)
	g.invoke(classfile.OpInvokestatic, owner, m)
	g.finishCall(c.base, false, m.Return)
	return g.result(m.Return)
}

// InvokeSuper calls the superclass implementation of name on the receiver
// beneath the arguments, which must be this.
func (g *Generator) InvokeSuper(name string) (*types.Type, error) {
	op := "call of super." + name
	if !g.begin(op) {
		return g.done()
	}
	c, args := g.closeCall(op, callMethod)
	if c == nil {
		return g.done()
	}
	super := g.class.Super()
	switch {
	case g.m.decl.IsStatic():
		g.errorf(diag.KeyStaticContext, "super")
		return g.done()
	case c.base < 1 || !types.Equal(g.m.stack[c.base-1].t, g.class):
		g.errorf(diag.KeyStatementState, op, "the receiver must be this")
		return g.done()
	case super == nil:
		g.errorf(diag.KeyNoSuchMethod, types.Signature(name, args), g.class)
		return g.done()
	}
	m, err := g.ctx.Resolver.Method(g.pos(), super, name, args)
	if err != nil {
		g.fail(err)
		return g.done()
	}
	if err := access.CheckMember(g.pos(), g.class, m.Owner, g.class, m.Flags, m.String()); err != nil {
		g.fail(err)
		return g.done()
	}
	if m.IsStatic() || m.Flags.IsAbstract() {
		g.errorf(diag.KeyStatementState, op, m.String()+" has no superclass implementation")
		return g.done()
	}
	g.convertArgs(c.base, m.Params)
	g.invoke(classfile.OpInvokespecial, super, m)
	g.finishCall(c.base, true, m.Return)
	return g.result(m.Return)
}

// BeginSuperCall opens the explicit superclass constructor invocation,
// which must be the first operation of a constructor.
func (g *Generator) BeginSuperCall() error {
	if g.err != nil {
		return g.err
	}
	if g.m == nil {
		return g.errorf(diag.KeyNotInMethod, "super(...)")
	}
	if g.m.skip {
		return nil
	}
	if !g.m.needSuper {
		return g.errorf(diag.KeyStatementState, "super(...)", "only allowed as the first operation of a constructor")
	}
	g.m.needSuper = false
	if !g.begin("super(...)") {
		return g.err
	}
	g.emitLocal(classfile.OpAload, 0)
	g.push(g.class)
	g.openCall(callSuper, g.class.Super())
	return nil
}

// EndSuperCall invokes the superclass constructor selected by the
// arguments.
func (g *Generator) EndSuperCall() error {
	if !g.begin("super(...)") {
		return g.err
	}
	c, args := g.closeCall("super(...)", callSuper)
	if c == nil {
		return g.err
	}
	if !g.construct(c.target, args, c.base) {
		return g.err
	}
	g.finishCall(c.base, true, types.VoidType)
	g.sync()
	return g.expectEmptyErr("super(...)")
}

func (g *Generator) expectEmptyErr(op string) error {
	g.expectEmpty(op)
	return g.err
}

// construct resolves and invokes the constructor of t for the arguments
// above base.
func (g *Generator) construct(t *types.Type, args []*types.Type, base int) bool {
	m, err := g.ctx.Resolver.Constructor(g.pos(), t, args)
	if err != nil {
		g.fail(err)
		return false
	}
	if err := access.CheckMember(g.pos(), g.class, m.Owner, nil, m.Flags, m.String()); err != nil {
		g.fail(err)
		return false
	}
	g.convertArgs(base, m.Params)
	g.invoke(classfile.OpInvokespecial, t, m)
	return true
}

// superInit emits the implicit super() at the start of a constructor.
func (g *Generator) superInit() {
	g.m.needSuper = false
	super := g.class.Super()
	m, err := g.ctx.Resolver.Constructor(g.pos(), super, nil)
	if err != nil {
		g.fail(err)
		return
	}
	if err := access.CheckMember(g.pos(), g.class, m.Owner, nil, m.Flags, m.String()); err != nil {
		g.fail(err)
		return
	}
	g.peakAt(g.m.words() + 1)
	g.emitLocal(classfile.OpAload, 0)
	g.invoke(classfile.OpInvokespecial, super, m)
}

// BeginNew allocates an instance of class and opens its constructor
// arguments.
func (g *Generator) BeginNew(class string) error {
	if !g.begin("new " + class) {
		return g.err
	}
	t := g.resolveType(class)
	if t == nil {
		return g.err
	}
	if !t.IsClass() {
		return g.errorf(diag.KeyNotReference, "new", t)
	}
	if t.IsInterface() || t.Flags().IsAbstract() {
		return g.errorf(diag.KeyAbstractNew, t)
	}
	g.settle(2)
	g.emitType(classfile.OpNew, t)
	g.push(t)
	g.emit(classfile.OpDup)
	g.push(t)
	g.openCall(callNew, t)
	return nil
}

// EndNew invokes the constructor selected by the arguments, leaving the
// new instance.
func (g *Generator) EndNew() (*types.Type, error) {
	if !g.begin("new") {
		return g.done()
	}
	c, args := g.closeCall("new", callNew)
	if c == nil || !g.construct(c.target, args, c.base) {
		return g.done()
	}
	g.finishCall(c.base, true, types.VoidType)
	return g.done()
}

// BeginNewArray opens the dimension list of an allocation of the array
// type typ, e.g. "int[][]".
func (g *Generator) BeginNewArray(typ string) error {
	if !g.begin("new " + typ) {
		return g.err
	}
	t := g.resolveType(typ)
	if t == nil {
		return g.err
	}
	if !t.IsArray() {
		return g.errorf(diag.KeyNotArray, t)
	}
	g.openCall(callArray, t)
	return nil
}

// EndNewArray allocates the array with the dimension lengths above the
// base, leaving any remaining dimensions unallocated.
func (g *Generator) EndNewArray() (*types.Type, error) {
	if !g.begin("new array") {
		return g.done()
	}
	c, dims := g.closeCall("new array", callArray)
	if c == nil {
		return g.done()
	}
	t := c.target
	switch {
	case len(dims) == 0:
		g.errorf(diag.KeyStackUnderflow, "new "+t.Name(), 1, 0)
		return g.done()
	case len(dims) > t.Dims():
		g.errorf(diag.KeyStackNotEmpty, "new "+t.Name(), len(dims)-t.Dims())
		return g.done()
	}
	for _, d := range dims {
		if !d.IsIntLike() {
			g.errorf(diag.KeyNotIntegral, "array dimension", d)
			return g.done()
		}
	}
	if len(dims) == 1 {
		if elem := t.Elem(); elem.IsPrimitive() {
			g.emitInt(classfile.OpNewarray, newArrayCode(elem))
		} else {
			g.emitType(classfile.OpAnewarray, elem)
		}
	} else if g.m.reachable {
		g.m.sink.EmitMultiANewArray(t.Descriptor(), len(dims))
	}
	g.m.stack = g.m.stack[:c.base]
	g.push(t)
	return g.done()
}
