package codegen

import (
	"math"

	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/daimatz/jclassgen/pkg/diag"
	"github.com/daimatz/jclassgen/pkg/types"
)

func (g *Generator) PreIncLocal(name string) (*types.Type, error)  { return g.IncLocal(name, 1, false) }
func (g *Generator) PostIncLocal(name string) (*types.Type, error) { return g.IncLocal(name, 1, true) }
func (g *Generator) PreDecLocal(name string) (*types.Type, error)  { return g.IncLocal(name, -1, false) }
func (g *Generator) PostDecLocal(name string) (*types.Type, error) { return g.IncLocal(name, -1, true) }

func incName(delta int, post bool) string {
	op := "++"
	if delta < 0 {
		op = "--"
	}
	if post {
		return "postfix " + op
	}
	return "prefix " + op
}

// addDelta adds delta to the number on top, keeping its type.
func (g *Generator) addDelta(t *types.Type, delta int) {
	p := types.UnaryPromote(t)
	g.peakAt(g.m.words() + p.Width())
	switch p.Kind() {
	case types.Long:
		g.emitLdc(int64(delta))
	case types.Float:
		g.emitLdc(float32(delta))
	case types.Double:
		g.emitLdc(float64(delta))
	default:
		g.emitLdc(int32(delta))
	}
	g.emit(classfile.OpIadd + arithOffset(p))
	if op, ok := types.Truncate(t); ok {
		g.emit(op)
	}
}

// IncLocal adds delta to a local variable or parameter and leaves the old
// (post) or new value.
func (g *Generator) IncLocal(name string, delta int, post bool) (*types.Type, error) {
	op := incName(delta, post)
	if !g.begin(op) {
		return g.done()
	}
	v := g.findLocal(name)
	if v == nil {
		// Fields of the class behave like locals here.
		if _, ok := g.variable(name); !ok {
			return g.done()
		}
		if !g.m.decl.IsStatic() {
			if f, _ := g.ctx.Resolver.Field(g.pos(), g.class, name); f != nil && !f.IsStatic() {
				g.prepare()
				g.emitLocal(classfile.OpAload, 0)
				g.push(g.class)
				return g.incField(op, name, delta, post)
			}
		}
		return g.incStatic(op, g.class, name, delta, post)
	}
	t := v.Type
	if !t.IsNumeric() {
		g.errorf(diag.KeyNotNumeric, op, t)
		return g.done()
	}
	g.prepare()
	if t.Kind() == types.Int && delta >= math.MinInt16 && delta <= math.MaxInt16 {
		if post {
			g.emitLocal(classfile.OpIload, v.Slot)
			g.emitIinc(v.Slot, delta)
		} else {
			g.emitIinc(v.Slot, delta)
			g.emitLocal(classfile.OpIload, v.Slot)
		}
		g.push(t)
		return g.done()
	}
	g.emitLocal(loadOp(t), v.Slot)
	g.push(t)
	if post {
		g.dupTop()
	}
	g.addDelta(t, delta)
	if !post {
		g.dupTop()
	}
	g.emitLocal(storeOp(t), v.Slot)
	g.pop()
	return g.done()
}

// IncField adds delta to the field name of the object on top.
func (g *Generator) IncField(name string, delta int, post bool) (*types.Type, error) {
	op := incName(delta, post)
	if !g.begin(op) || !g.need(op, 1) {
		return g.done()
	}
	g.settleTop()
	return g.incField(op, name, delta, post)
}

func (g *Generator) incField(op, name string, delta int, post bool) (*types.Type, error) {
	recv := g.peek(0).t
	f := g.member(recv, name)
	if f == nil || !g.checkFinal(f) {
		return g.done()
	}
	if !f.Type.IsNumeric() {
		g.errorf(diag.KeyNotNumeric, op, f.Type)
		return g.done()
	}
	if f.IsStatic() {
		g.discard()
		return g.incStatic(op, recv, name, delta, post)
	}
	g.prepare()
	g.dupTop()
	g.emitField(classfile.OpGetfield, recv, f)
	g.peek(0).t = f.Type
	g.sync()
	if post {
		g.dupUnder(1)
	}
	g.addDelta(f.Type, delta)
	if !post {
		g.dupUnder(1)
	}
	g.emitField(classfile.OpPutfield, recv, f)
	g.pop()
	g.pop()
	return g.done()
}

// IncStatic adds delta to a static field; an empty class means the class
// being generated.
func (g *Generator) IncStatic(class, name string, delta int, post bool) (*types.Type, error) {
	op := incName(delta, post)
	if !g.begin(op) {
		return g.done()
	}
	owner := g.class
	if class != "" {
		if owner = g.resolveType(class); owner == nil {
			return g.done()
		}
	}
	return g.incStatic(op, owner, name, delta, post)
}

func (g *Generator) incStatic(op string, owner *types.Type, name string, delta int, post bool) (*types.Type, error) {
	f := g.member(owner, name)
	if f == nil || !g.checkFinal(f) {
		return g.done()
	}
	if !f.IsStatic() {
		g.errorf(diag.KeyStaticContext, f.String())
		return g.done()
	}
	if !f.Type.IsNumeric() {
		g.errorf(diag.KeyNotNumeric, op, f.Type)
		return g.done()
	}
	g.prepare()
	g.emitField(classfile.OpGetstatic, owner, f)
	g.push(f.Type)
	if post {
		g.dupTop()
	}
	g.addDelta(f.Type, delta)
	if !post {
		g.dupTop()
	}
	g.emitField(classfile.OpPutstatic, owner, f)
	g.pop()
	return g.done()
}

// IncArray adds delta to the element selected by the array and index on
// top.
func (g *Generator) IncArray(delta int, post bool) (*types.Type, error) {
	op := incName(delta, post)
	if !g.begin(op) || !g.need(op, 2) {
		return g.done()
	}
	g.settle(2)
	elem := g.arrayOperands("array index", 0)
	if elem == nil {
		return g.done()
	}
	if !elem.IsNumeric() {
		g.errorf(diag.KeyNotNumeric, op, elem)
		return g.done()
	}
	arr, idx := g.peek(1).t, g.peek(0).t
	g.emit(classfile.OpDup2)
	g.push(arr)
	g.push(idx)
	g.emit(arrayLoadOp(elem))
	g.pop()
	g.pop()
	g.push(elem)
	if post {
		g.dupUnder(2)
	}
	g.addDelta(elem, delta)
	if !post {
		g.dupUnder(2)
	}
	g.emit(arrayStoreOp(elem))
	g.pop()
	g.pop()
	g.pop()
	return g.done()
}
