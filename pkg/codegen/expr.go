package codegen

import (
	"github.com/daimatz/jclassgen/pkg/access"
	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/daimatz/jclassgen/pkg/diag"
	"github.com/daimatz/jclassgen/pkg/types"
)

// apply emits a conversion of the top value and retypes it.
func (g *Generator) apply(c types.Conversion) {
	for _, op := range c.Ops {
		g.emit(op)
	}
	if c.Check {
		g.emitType(classfile.OpCheckcast, c.To)
	}
	g.peek(0).t = c.To
	g.sync()
}

// assignTop converts the top value for storage into a variable of type to.
func (g *Generator) assignTop(to *types.Type) bool {
	g.settleTop()
	from := g.peek(0).t
	c, ok := g.ctx.Conversions.Assignment.Convert(from, to)
	if !ok {
		g.errorf(diag.KeyIncompatibleTypes, from, to)
		return false
	}
	g.apply(c)
	return true
}

// convertTop widens or narrows the primitive on top to to.
func (g *Generator) convertTop(to *types.Type) {
	top := g.peek(0)
	for _, op := range types.PrimitiveOps(top.t, to) {
		g.emit(op)
	}
	top.t = to
	g.sync()
}

// convertBelow converts the primitive beneath the top value.
func (g *Generator) convertBelow(to *types.Type) {
	below := g.peek(1)
	if len(types.PrimitiveOps(below.t, to)) == 0 {
		below.t = to
		return
	}
	g.swapTop()
	g.convertTop(to)
	g.swapTop()
}

func (g *Generator) literal(op string, t *types.Type, v interface{}) (*types.Type, error) {
	if !g.begin(op) {
		return g.done()
	}
	g.prepare()
	if v == nil {
		g.emit(classfile.OpAconstNull)
	} else {
		g.emitLdc(v)
	}
	g.push(t)
	return g.done()
}

func (g *Generator) PushInt(v int32) (*types.Type, error) {
	return g.literal("int literal", types.IntType, v)
}

func (g *Generator) PushLong(v int64) (*types.Type, error) {
	return g.literal("long literal", types.LongType, v)
}

func (g *Generator) PushFloat(v float32) (*types.Type, error) {
	return g.literal("float literal", types.FloatType, v)
}

func (g *Generator) PushDouble(v float64) (*types.Type, error) {
	return g.literal("double literal", types.DoubleType, v)
}

func (g *Generator) PushBoolean(v bool) (*types.Type, error) {
	var i int32
	if v {
		i = 1
	}
	return g.literal("boolean literal", types.BooleanType, i)
}

func (g *Generator) PushChar(v uint16) (*types.Type, error) {
	return g.literal("char literal", types.CharType, int32(v))
}

func (g *Generator) PushByte(v int8) (*types.Type, error) {
	return g.literal("byte literal", types.ByteType, int32(v))
}

func (g *Generator) PushShort(v int16) (*types.Type, error) {
	return g.literal("short literal", types.ShortType, int32(v))
}

func (g *Generator) PushString(v string) (*types.Type, error) {
	return g.literal("string literal", g.ctx.Universe.String(), v)
}

func (g *Generator) PushNull() (*types.Type, error) {
	return g.literal("null", types.NullType, nil)
}

// PushThis pushes the receiver of an instance method or constructor.
func (g *Generator) PushThis() (*types.Type, error) {
	if !g.begin("this") {
		return g.done()
	}
	if g.m.decl.IsStatic() {
		g.errorf(diag.KeyStaticContext, "this")
		return g.done()
	}
	g.prepare()
	g.emitLocal(classfile.OpAload, 0)
	g.push(g.class)
	return g.done()
}

// variable finds name among the locals, then the fields of the class.
func (g *Generator) variable(name string) (*types.Field, bool) {
	if l := g.findLocal(name); l != nil {
		return l, true
	}
	f, err := g.ctx.Resolver.Field(g.pos(), g.class, name)
	if err != nil {
		g.errorf(diag.KeyUnknownVariable, name)
		return nil, false
	}
	if err := access.CheckMember(g.pos(), g.class, f.Owner, g.class, f.Flags, f.String()); err != nil {
		g.fail(err)
		return nil, false
	}
	if !f.IsStatic() && g.m.decl.IsStatic() {
		g.errorf(diag.KeyStaticContext, f.String())
		return nil, false
	}
	return f, true
}

// checkFinal rejects stores to a final field outside the initializer that
// may assign it.
func (g *Generator) checkFinal(f *types.Field) bool {
	if !f.Flags.IsFinal() {
		return true
	}
	if types.Equal(f.Owner, g.class) {
		name := g.m.decl.Name
		if f.IsStatic() && name == "<clinit>" || !f.IsStatic() && name == types.ConstructorName {
			return true
		}
	}
	g.errorf(diag.KeyAssignFinal, f.String())
	return false
}

// Load pushes the value of a local variable, parameter or field of the
// class.
func (g *Generator) Load(name string) (*types.Type, error) {
	if !g.begin("load " + name) {
		return g.done()
	}
	v, ok := g.variable(name)
	if !ok {
		return g.done()
	}
	g.prepare()
	switch {
	case v.IsLocal():
		g.emitLocal(loadOp(v.Type), v.Slot)
	case v.IsStatic():
		g.emitField(classfile.OpGetstatic, g.class, v)
	default:
		g.peakAt(g.m.words() + 1)
		g.emitLocal(classfile.OpAload, 0)
		g.emitField(classfile.OpGetfield, g.class, v)
	}
	g.push(v.Type)
	return g.done()
}

// Store pops the top value into a variable.
func (g *Generator) Store(name string) (*types.Type, error) {
	return g.store("store "+name, name, false)
}

// Assign stores the top value into a variable and leaves it on the stack.
func (g *Generator) Assign(name string) (*types.Type, error) {
	return g.store("assignment to "+name, name, true)
}

func (g *Generator) store(op, name string, keep bool) (*types.Type, error) {
	if !g.begin(op) || !g.need(op, 1) {
		return g.done()
	}
	v, ok := g.variable(name)
	if !ok || !g.assignTop(v.Type) {
		return g.done()
	}
	switch {
	case v.IsLocal():
		if keep {
			g.prepare()
			g.dupTop()
		}
		g.emitLocal(storeOp(v.Type), v.Slot)
		g.pop()
	case !g.checkFinal(v):
		return g.done()
	case v.IsStatic():
		if keep {
			g.prepare()
			g.dupTop()
		}
		g.emitField(classfile.OpPutstatic, g.class, v)
		g.pop()
	default:
		g.prepare()
		g.emitLocal(classfile.OpAload, 0)
		g.push(g.class)
		g.swapTop()
		if keep {
			g.dupUnder(1)
		}
		g.emitField(classfile.OpPutfield, g.class, v)
		g.pop()
		g.pop()
	}
	if keep {
		return g.done()
	}
	return g.void()
}

// member resolves a field of the receiver type t.
func (g *Generator) member(t *types.Type, name string) *types.Field {
	if !t.IsClass() {
		g.errorf(diag.KeyNotReference, "field access "+name, t)
		return nil
	}
	f, err := g.ctx.Resolver.Field(g.pos(), t, name)
	if err != nil {
		g.fail(err)
		return nil
	}
	if err := access.CheckMember(g.pos(), g.class, f.Owner, t, f.Flags, f.String()); err != nil {
		g.fail(err)
		return nil
	}
	return f
}

// GetField replaces the object on top with the value of its field name.
// The length of an array is available as the field "length".
func (g *Generator) GetField(name string) (*types.Type, error) {
	if !g.begin("field "+name) || !g.need("field "+name, 1) {
		return g.done()
	}
	g.settleTop()
	recv := g.peek(0).t
	if recv.IsArray() && name == "length" {
		g.emit(classfile.OpArraylength)
		g.pop()
		g.push(types.IntType)
		return g.done()
	}
	f := g.member(recv, name)
	if f == nil {
		return g.done()
	}
	if f.IsStatic() {
		g.discard()
		g.prepare()
		g.emitField(classfile.OpGetstatic, recv, f)
	} else {
		g.emitField(classfile.OpGetfield, recv, f)
		g.pop()
	}
	g.push(f.Type)
	return g.done()
}

// PutField pops a value and the object beneath it and stores the value in
// the object's field name.
func (g *Generator) PutField(name string) (*types.Type, error) {
	if !g.begin("field "+name) || !g.need("field "+name, 2) {
		return g.done()
	}
	g.settle(2)
	recv := g.peek(1).t
	f := g.member(recv, name)
	if f == nil || !g.checkFinal(f) || !g.assignTop(f.Type) {
		return g.done()
	}
	if f.IsStatic() {
		g.swapTop()
		g.discard()
		g.emitField(classfile.OpPutstatic, recv, f)
		g.pop()
	} else {
		g.emitField(classfile.OpPutfield, recv, f)
		g.pop()
		g.pop()
	}
	return g.void()
}

// staticField resolves class.name; an empty class means the class being
// generated.
func (g *Generator) staticField(class, name string) (*types.Type, *types.Field) {
	owner := g.class
	if class != "" {
		if owner = g.resolveType(class); owner == nil {
			return nil, nil
		}
	}
	f := g.member(owner, name)
	if f == nil {
		return nil, nil
	}
	if !f.IsStatic() {
		g.errorf(diag.KeyStaticContext, f.String())
		return nil, nil
	}
	return owner, f
}

// GetStatic pushes the value of a static field.
func (g *Generator) GetStatic(class, name string) (*types.Type, error) {
	if !g.begin("field " + name) {
		return g.done()
	}
	owner, f := g.staticField(class, name)
	if f == nil {
		return g.done()
	}
	g.prepare()
	g.emitField(classfile.OpGetstatic, owner, f)
	g.push(f.Type)
	return g.done()
}

// PutStatic pops a value into a static field.
func (g *Generator) PutStatic(class, name string) (*types.Type, error) {
	if !g.begin("field "+name) || !g.need("field "+name, 1) {
		return g.done()
	}
	owner, f := g.staticField(class, name)
	if f == nil || !g.checkFinal(f) || !g.assignTop(f.Type) {
		return g.done()
	}
	g.emitField(classfile.OpPutstatic, owner, f)
	g.pop()
	return g.void()
}

// arrayOperands checks an array and an index beneath extra values and
// returns the element type.
func (g *Generator) arrayOperands(op string, extra int) *types.Type {
	arr, idx := g.peek(extra+1).t, g.peek(extra).t
	if !arr.IsArray() {
		g.errorf(diag.KeyNotArray, arr)
		return nil
	}
	if !idx.IsIntLike() {
		g.errorf(diag.KeyNotIntegral, op, idx)
		return nil
	}
	return arr.Elem()
}

// ArrayLoad replaces an array and an index with the element.
func (g *Generator) ArrayLoad() (*types.Type, error) {
	if !g.begin("array access") || !g.need("array access", 2) {
		return g.done()
	}
	g.settle(2)
	elem := g.arrayOperands("array index", 0)
	if elem == nil {
		return g.done()
	}
	g.emit(arrayLoadOp(elem))
	g.pop()
	g.pop()
	g.push(elem)
	return g.done()
}

// ArrayStore pops an array, an index and a value and stores the element.
func (g *Generator) ArrayStore() (*types.Type, error) {
	if !g.begin("array store") || !g.need("array store", 3) {
		return g.done()
	}
	g.settle(2)
	elem := g.arrayOperands("array index", 1)
	if elem == nil || !g.assignTop(elem) {
		return g.done()
	}
	g.emit(arrayStoreOp(elem))
	g.pop()
	g.pop()
	g.pop()
	return g.void()
}

// ArrayLength replaces an array with its length.
func (g *Generator) ArrayLength() (*types.Type, error) {
	if !g.begin("array length") || !g.need("array length", 1) {
		return g.done()
	}
	g.settleTop()
	if t := g.peek(0).t; !t.IsArray() {
		g.errorf(diag.KeyNotArray, t)
		return g.done()
	}
	g.emit(classfile.OpArraylength)
	g.pop()
	g.push(types.IntType)
	return g.done()
}

// Dup duplicates the top value.
func (g *Generator) Dup() (*types.Type, error) {
	if !g.begin("dup") || !g.need("dup", 1) {
		return g.done()
	}
	g.settleTop()
	g.prepare()
	g.dupTop()
	return g.done()
}

// Pop discards the top value.
func (g *Generator) Pop() (*types.Type, error) {
	if !g.begin("pop") || !g.need("pop", 1) {
		return g.done()
	}
	g.discard()
	return g.void()
}

// InstanceOf replaces a reference with whether it is an instance of typ.
func (g *Generator) InstanceOf(typ string) (*types.Type, error) {
	if !g.begin("instanceof") || !g.need("instanceof", 1) {
		return g.done()
	}
	g.settleTop()
	from := g.peek(0).t
	t := g.resolveType(typ)
	if t == nil {
		return g.done()
	}
	if !from.IsReference() {
		g.errorf(diag.KeyNotReference, "instanceof", from)
		return g.done()
	}
	if _, ok := g.ctx.Conversions.Casting.Convert(from, t); !ok || !t.IsReference() {
		g.errorf(diag.KeyInvalidCast, from, t)
		return g.done()
	}
	g.emitType(classfile.OpInstanceof, t)
	g.pop()
	g.push(types.BooleanType)
	return g.done()
}

// Cast converts the top value to typ.
func (g *Generator) Cast(typ string) (*types.Type, error) {
	if !g.begin("cast") || !g.need("cast", 1) {
		return g.done()
	}
	g.settleTop()
	from := g.peek(0).t
	t := g.resolveType(typ)
	if t == nil {
		return g.done()
	}
	c, ok := g.ctx.Conversions.Casting.Convert(from, t)
	if !ok {
		g.errorf(diag.KeyInvalidCast, from, t)
		return g.done()
	}
	g.apply(c)
	return g.done()
}
