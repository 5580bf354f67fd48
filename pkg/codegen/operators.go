package codegen

import (
	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/daimatz/jclassgen/pkg/diag"
	"github.com/daimatz/jclassgen/pkg/types"
)

// narrowed returns the common type of two identical byte, short or char
// operands, whose int result is truncated back to it.
func narrowed(a, b *types.Type) *types.Type {
	if !types.Equal(a, b) {
		return nil
	}
	switch a.Kind() {
	case types.Byte, types.Short, types.Char:
		return a
	}
	return nil
}

// binary emits op (the int variant) for two numeric operands promoted to
// their common type.
func (g *Generator) binary(sym string, op byte, integral bool) (*types.Type, error) {
	if !g.begin(sym) || !g.need(sym, 2) {
		return g.done()
	}
	g.settle(2)
	a, b := g.peek(1).t, g.peek(0).t
	if integral && a.Kind() == types.Boolean && b.Kind() == types.Boolean {
		g.emit(op)
		g.pop()
		return g.done()
	}
	p, ok := types.BinaryPromote(a, b)
	if !ok || integral && !p.IsIntegral() {
		g.errorf(diag.KeyIncompatibleOperands, sym, a, b)
		return g.done()
	}
	narrow := narrowed(a, b)
	g.convertBelow(p)
	g.convertTop(p)
	g.emit(op + arithOffset(p))
	g.pop()
	g.pop()
	g.push(p)
	if narrow != nil {
		g.truncate(narrow)
	}
	return g.done()
}

// truncate narrows the int on top to t.
func (g *Generator) truncate(t *types.Type) {
	if op, ok := types.Truncate(t); ok {
		g.emit(op)
	}
	g.peek(0).t = t
}

// Add adds two numbers, or concatenates when either operand is a String.
func (g *Generator) Add() (*types.Type, error) {
	if g.err == nil && g.m != nil && !g.m.skip && len(g.m.stack) >= 2 &&
		(types.IsString(g.peek(0).t) || types.IsString(g.peek(1).t)) {
		return g.concat()
	}
	return g.binary("+", classfile.OpIadd, false)
}

func (g *Generator) Sub() (*types.Type, error) { return g.binary("-", classfile.OpIsub, false) }
func (g *Generator) Mul() (*types.Type, error) { return g.binary("*", classfile.OpImul, false) }
func (g *Generator) Div() (*types.Type, error) { return g.binary("/", classfile.OpIdiv, false) }
func (g *Generator) Rem() (*types.Type, error) { return g.binary("%", classfile.OpIrem, false) }

// And, Or and Xor also combine two booleans without short-circuiting.
func (g *Generator) And() (*types.Type, error) { return g.binary("&", classfile.OpIand, true) }
func (g *Generator) Or() (*types.Type, error)  { return g.binary("|", classfile.OpIor, true) }
func (g *Generator) Xor() (*types.Type, error) { return g.binary("^", classfile.OpIxor, true) }

// concat appends the top value to the pending StringBuilder beneath it,
// starting one if the left operand is not pending yet. The result stays
// pending until an operation consumes it as a String.
func (g *Generator) concat() (*types.Type, error) {
	if !g.begin("+") {
		return g.done()
	}
	g.settleTop()
	if g.peek(1).builder {
		g.appendTop()
		return g.done()
	}
	right := g.peek(0).t
	if right.Width() == 2 {
		slot := g.temp(right)
		g.emitLocal(storeOp(right), slot)
		g.pop()
		g.startBuilder()
		g.emitLocal(loadOp(right), slot)
		g.push(right)
		g.release(right, slot)
	} else {
		g.swapTop()
		g.startBuilder()
		g.swapTop()
	}
	g.appendTop()
	return g.done()
}

// startBuilder replaces the top value with a StringBuilder holding its
// string conversion.
func (g *Generator) startBuilder() {
	g.peakAt(g.m.words() + 2)
	g.emitClass(classfile.OpNew, types.StringBuilder)
	g.emit(classfile.OpDup)
	g.emitInvoke(classfile.OpInvokespecial, types.StringBuilder, types.ConstructorName, "()V", false)
	g.m.stack = append(g.m.stack, operand{t: g.ctx.Universe.String(), builder: true})
	g.sync()
	g.swapTop()
	g.appendTop()
}

// appendTop appends the top value to the builder beneath it.
func (g *Generator) appendTop() {
	v := g.pop()
	g.emitInvoke(classfile.OpInvokevirtual, types.StringBuilder, "append", types.AppendDescriptor(v.t), false)
}

// shift emits a shift of the promoted left operand by an int distance.
func (g *Generator) shift(sym string, op byte) (*types.Type, error) {
	if !g.begin(sym) || !g.need(sym, 2) {
		return g.done()
	}
	g.settle(2)
	a, b := g.peek(1).t, g.peek(0).t
	if !a.IsIntegral() || !b.IsIntegral() {
		g.errorf(diag.KeyIncompatibleOperands, sym, a, b)
		return g.done()
	}
	narrow := narrowed(a, b)
	p := types.UnaryPromote(a)
	g.convertTop(types.IntType)
	g.convertBelow(p)
	g.emit(op + arithOffset(p))
	g.pop()
	g.pop()
	g.push(p)
	if narrow != nil {
		g.truncate(narrow)
	}
	return g.done()
}

func (g *Generator) Shl() (*types.Type, error)  { return g.shift("<<", classfile.OpIshl) }
func (g *Generator) Shr() (*types.Type, error)  { return g.shift(">>", classfile.OpIshr) }
func (g *Generator) Ushr() (*types.Type, error) { return g.shift(">>>", classfile.OpIushr) }

// Neg negates the number on top.
func (g *Generator) Neg() (*types.Type, error) {
	if !g.begin("-") || !g.need("-", 1) {
		return g.done()
	}
	t := g.peek(0).t
	if !t.IsNumeric() {
		g.errorf(diag.KeyNotNumeric, "unary -", t)
		return g.done()
	}
	p := types.UnaryPromote(t)
	g.convertTop(p)
	g.emit(classfile.OpIneg + arithOffset(p))
	return g.done()
}

// Complement flips every bit of the integer on top.
func (g *Generator) Complement() (*types.Type, error) {
	if !g.begin("~") || !g.need("~", 1) {
		return g.done()
	}
	t := g.peek(0).t
	if !t.IsIntegral() {
		g.errorf(diag.KeyNotIntegral, "~", t)
		return g.done()
	}
	p := types.UnaryPromote(t)
	g.convertTop(p)
	if p.Kind() == types.Long {
		g.peakAt(g.m.words() + 2)
		g.emitLdc(int64(-1))
		g.emit(classfile.OpLxor)
	} else {
		g.peakAt(g.m.words() + 1)
		g.emitLdc(int32(-1))
		g.emit(classfile.OpIxor)
	}
	return g.done()
}

// Not negates the boolean on top.
func (g *Generator) Not() (*types.Type, error) {
	if !g.begin("!") || !g.need("!", 1) {
		return g.done()
	}
	if t := g.peek(0).t; t.Kind() != types.Boolean {
		g.errorf(diag.KeyNotBoolean, "!", t)
		return g.done()
	}
	g.peakAt(g.m.words() + 1)
	g.emitLdc(int32(1))
	g.emit(classfile.OpIxor)
	return g.done()
}

type relation int

const (
	eq relation = iota
	ne
	lt
	ge
	gt
	le
)

// The branch families list their members in relation order.
var relationSymbols = [...]string{"==", "!=", "<", ">=", ">", "<="}

func (g *Generator) Eq() (*types.Type, error) { return g.compare(eq) }
func (g *Generator) Ne() (*types.Type, error) { return g.compare(ne) }
func (g *Generator) Lt() (*types.Type, error) { return g.compare(lt) }
func (g *Generator) Le() (*types.Type, error) { return g.compare(le) }
func (g *Generator) Gt() (*types.Type, error) { return g.compare(gt) }
func (g *Generator) Ge() (*types.Type, error) { return g.compare(ge) }

// compare replaces two operands with the boolean result of r.
func (g *Generator) compare(r relation) (*types.Type, error) {
	sym := relationSymbols[r]
	if !g.begin(sym) || !g.need(sym, 2) {
		return g.done()
	}
	g.settle(2)
	a, b := g.peek(1).t, g.peek(0).t
	var branch byte
	switch {
	case a.IsNumeric() && b.IsNumeric():
		p, _ := types.BinaryPromote(a, b)
		g.convertBelow(p)
		g.convertTop(p)
		switch p.Kind() {
		case types.Int:
			branch = classfile.OpIfIcmpeq + byte(r)
		case types.Long:
			g.emit(classfile.OpLcmp)
			branch = classfile.OpIfeq + byte(r)
		case types.Float, types.Double:
			// NaN compares false: the g variants yield 1 for < and <=, the
			// l variants -1 for the others.
			cmp := classfile.OpFcmpl
			if r == lt || r == le {
				cmp = classfile.OpFcmpg
			}
			if p.Kind() == types.Double {
				cmp += 2
			}
			g.emit(byte(cmp))
			branch = classfile.OpIfeq + byte(r)
		}
	case a.Kind() == types.Boolean && b.Kind() == types.Boolean && r <= ne:
		branch = classfile.OpIfIcmpeq + byte(r)
	case a.IsReference() && b.IsReference() && r <= ne:
		cast := g.ctx.Conversions.Casting
		if _, ok := cast.Convert(a, b); !ok && !a.IsNull() && !b.IsNull() {
			if _, ok := cast.Convert(b, a); !ok {
				g.errorf(diag.KeyIncompatibleOperands, sym, a, b)
				return g.done()
			}
		}
		branch = classfile.OpIfAcmpeq + byte(r)
	default:
		g.errorf(diag.KeyIncompatibleOperands, sym, a, b)
		return g.done()
	}
	g.pop()
	g.pop()
	g.boolResult(branch)
	return g.done()
}

// boolResult materializes the outcome of a conditional branch as 0 or 1.
func (g *Generator) boolResult(branch byte) {
	yes, end := g.newLabel(), g.newLabel()
	g.jump(branch, yes)
	g.emitLdc(int32(0))
	g.push(types.BooleanType)
	g.jump(classfile.OpGoto, end)
	g.pop()
	g.mark(yes)
	g.emitLdc(int32(1))
	g.push(types.BooleanType)
	g.mark(end)
}

// AndThen evaluates the boolean on top as the left operand of &&: when it
// is false the right operand is skipped and false is the result.
func (g *Generator) AndThen() error {
	return g.shortCircuit("&&", classfile.OpIfeq)
}

// OrElse is AndThen for ||.
func (g *Generator) OrElse() error {
	return g.shortCircuit("||", classfile.OpIfne)
}

// logic is a pending && or ||.
type logic struct {
	kind  string
	end   *label
	depth int
}

func (g *Generator) shortCircuit(sym string, branch byte) error {
	if !g.begin(sym) || !g.need(sym, 1) {
		return g.err
	}
	if t := g.peek(0).t; t.Kind() != types.Boolean {
		return g.errorf(diag.KeyNotBoolean, sym, t)
	}
	l := &logic{kind: sym, end: g.newLabel()}
	g.peakAt(g.m.words() + 1)
	g.emit(classfile.OpDup)
	g.jump(branch, l.end)
	g.discard()
	g.sync()
	l.depth = len(g.m.stack)
	g.m.logic = append(g.m.logic, l)
	return nil
}

// EndAnd completes && with the boolean right operand on top.
func (g *Generator) EndAnd() (*types.Type, error) { return g.endLogic("&&") }

// EndOr completes ||.
func (g *Generator) EndOr() (*types.Type, error) { return g.endLogic("||") }

func (g *Generator) endLogic(sym string) (*types.Type, error) {
	op := "end of " + sym
	if !g.begin(op) {
		return g.done()
	}
	m := g.m
	if len(m.logic) == 0 {
		g.errorf(diag.KeyMismatchedEnd, op, "no pending "+sym)
		return g.done()
	}
	l := m.logic[len(m.logic)-1]
	if l.kind != sym {
		g.errorf(diag.KeyMismatchedEnd, op, l.kind)
		return g.done()
	}
	switch n := len(m.stack) - l.depth; {
	case n < 1:
		g.errorf(diag.KeyStackUnderflow, op, 1, 0)
		return g.done()
	case n > 1:
		g.errorf(diag.KeyStackNotEmpty, op, n-1)
		return g.done()
	}
	if t := g.peek(0).t; t.Kind() != types.Boolean {
		g.errorf(diag.KeyNotBoolean, sym, t)
		return g.done()
	}
	m.logic = m.logic[:len(m.logic)-1]
	g.mark(l.end)
	return g.done()
}
