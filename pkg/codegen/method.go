package codegen

import (
	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/daimatz/jclassgen/pkg/diag"
	"github.com/daimatz/jclassgen/pkg/emit"
	"github.com/daimatz/jclassgen/pkg/types"
)

// operand is one entry of the operand stack model. A builder entry is a
// StringBuilder on the real stack whose logical value is the String it
// will produce.
type operand struct {
	t       *types.Type
	builder bool
}

// method is the state of the body being generated.
type method struct {
	decl *types.Method
	sink emit.Sink
	skip bool

	stack    []operand
	reported int

	stmts  []statement
	calls  []*CallStack
	logic  []*logic
	locals []*types.Field
	level  int
	next   int
	free   map[int][]int

	reachable bool
	needSuper bool
}

func (m *method) words() int {
	n := 0
	for _, o := range m.stack {
		n += o.t.Width()
	}
	return n
}

func (m *method) top() statement { return m.stmts[len(m.stmts)-1] }

// label is a sink label plus the number of reachable jumps to it.
type label struct {
	*emit.Label
	refs int
}

// begin opens a body operation. It reports false when the operation must
// not run: after an error, outside a method, or in the discovery pass.
func (g *Generator) begin(op string) bool {
	if !g.beginStmt(op) {
		return false
	}
	if g.label != "" {
		g.errorf(diag.KeyLabelPending, g.label)
		return false
	}
	return true
}

// beginStmt is begin for operations that may consume a pending label.
func (g *Generator) beginStmt(op string) bool {
	if g.err != nil {
		return false
	}
	if g.m == nil {
		g.errorf(diag.KeyNotInMethod, op)
		return false
	}
	if g.m.skip {
		return false
	}
	if g.m.needSuper {
		g.superInit()
	}
	g.markLine()
	return true
}

// done syncs the sink's stack depth and reports the type on top.
func (g *Generator) done() (*types.Type, error) {
	if g.err != nil {
		return nil, g.err
	}
	if g.m == nil || g.m.skip {
		return types.VoidType, nil
	}
	g.sync()
	if n := len(g.m.stack); n > 0 {
		return g.m.stack[n-1].t, nil
	}
	return types.VoidType, nil
}

// result is done for operations whose result type is known.
func (g *Generator) result(t *types.Type) (*types.Type, error) {
	if _, err := g.done(); err != nil {
		return nil, err
	}
	return t, nil
}

// void syncs the sink after an operation that leaves nothing.
func (g *Generator) void() (*types.Type, error) {
	if g.err != nil {
		return nil, g.err
	}
	if g.m != nil && !g.m.skip {
		g.sync()
	}
	return types.VoidType, nil
}

func (g *Generator) markLine() {
	if g.ctx.Options.DebugInfo && g.line > 0 && g.m.reachable {
		g.m.sink.Line(g.line)
	}
}

// sync reports the model's depth change to the sink.
func (g *Generator) sync() {
	m := g.m
	if d := m.words() - m.reported; d != 0 {
		m.sink.AdjustStack(d)
		m.reported += d
	}
}

// peakAt records a transient depth of words inside an instruction sequence.
func (g *Generator) peakAt(words int) {
	m := g.m
	if d := words - m.reported; d > 0 {
		m.sink.AdjustStack(d)
		m.sink.AdjustStack(-d)
	}
}

// Operand model.

// prepare must precede the instructions of an operation that pushes a new
// value: a pending concatenation may sit at most one entry below the top.
func (g *Generator) prepare() {
	if n := len(g.m.stack); n >= 2 && g.m.stack[n-2].builder {
		g.settleBelow()
	}
}

func (g *Generator) push(t *types.Type) {
	m := g.m
	if t.IsVoid() {
		return
	}
	if n := len(m.stack); n >= 2 && m.stack[n-2].builder {
		g.internalf("concatenation buried under %s", t)
	}
	m.stack = append(m.stack, operand{t: t})
	if m.words() > m.reported {
		g.sync()
	}
}

func (g *Generator) pop() operand {
	m := g.m
	o := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return o
}

func (g *Generator) peek(depth int) *operand {
	m := g.m
	if depth >= len(m.stack) {
		return nil
	}
	return &m.stack[len(m.stack)-1-depth]
}

// need checks that n operands are available.
func (g *Generator) need(op string, n int) bool {
	if have := len(g.m.stack); have < n {
		g.errorf(diag.KeyStackUnderflow, op, n, have)
		return false
	}
	return true
}

// settle turns pending concatenations among the top n entries into Strings.
func (g *Generator) settle(n int) {
	if n >= 1 {
		g.settleTop()
	}
	if n >= 2 {
		g.settleBelow()
	}
}

func (g *Generator) toString() {
	g.emitInvoke(classfile.OpInvokevirtual, types.StringBuilder, "toString", "()Ljava/lang/String;", false)
}

func (g *Generator) settleTop() {
	if o := g.peek(0); o != nil && o.builder {
		g.toString()
		o.builder = false
	}
}

func (g *Generator) settleBelow() {
	o := g.peek(1)
	if o == nil || !o.builder {
		return
	}
	if g.peek(0).t.Width() == 1 {
		g.emit(classfile.OpSwap)
		g.toString()
		g.emit(classfile.OpSwap)
	} else {
		g.peakAt(g.m.words() + 2)
		g.emit(classfile.OpDup2X1)
		g.emit(classfile.OpPop2)
		g.toString()
		g.emit(classfile.OpDupX2)
		g.emit(classfile.OpPop)
	}
	o.builder = false
}

// swapTop exchanges the two top values of any width.
func (g *Generator) swapTop() {
	m := g.m
	n := len(m.stack)
	a, b := m.stack[n-2], m.stack[n-1]
	switch {
	case a.t.Width() == 1 && b.t.Width() == 1:
		g.emit(classfile.OpSwap)
	case a.t.Width() == 1:
		g.peakAt(m.words() + 2)
		g.emit(classfile.OpDup2X1)
		g.emit(classfile.OpPop2)
	case b.t.Width() == 1:
		g.peakAt(m.words() + 1)
		g.emit(classfile.OpDupX2)
		g.emit(classfile.OpPop)
	default:
		g.peakAt(m.words() + 2)
		g.emit(classfile.OpDup2X2)
		g.emit(classfile.OpPop2)
	}
	m.stack[n-2], m.stack[n-1] = b, a
}

// dupTop duplicates the top value: dup or dup2.
func (g *Generator) dupTop() {
	o := g.peek(0)
	if o.t.Width() == 2 {
		g.emit(classfile.OpDup2)
	} else {
		g.emit(classfile.OpDup)
	}
	g.m.stack = append(g.m.stack, operand{t: o.t})
	g.sync()
}

// discard pops the top value off both the model and the real stack.
func (g *Generator) discard() {
	o := g.pop()
	if o.t.Width() == 2 {
		g.emit(classfile.OpPop2)
	} else {
		g.emit(classfile.OpPop)
	}
}

// Emission. Instructions are only written while the current position is
// reachable; the model is maintained either way.

func (g *Generator) emit(op byte) {
	m := g.m
	if !m.reachable {
		return
	}
	m.sink.Emit(op)
	switch op {
	case classfile.OpAthrow, classfile.OpReturn, classfile.OpIreturn, classfile.OpLreturn,
		classfile.OpFreturn, classfile.OpDreturn, classfile.OpAreturn:
		m.reachable = false
	}
}

func (g *Generator) emitInt(op byte, v int) {
	if g.m.reachable {
		g.m.sink.EmitInt(op, v)
	}
}

func (g *Generator) emitLocal(op byte, slot int) {
	if g.m.reachable {
		g.m.sink.EmitLocal(op, slot)
		if op == classfile.OpRet {
			g.m.reachable = false
		}
	}
}

func (g *Generator) emitIinc(slot, delta int) {
	if g.m.reachable {
		g.m.sink.EmitIinc(slot, delta)
	}
}

func (g *Generator) emitLdc(v interface{}) {
	if g.m.reachable {
		g.m.sink.EmitLdc(v)
	}
}

func (g *Generator) emitType(op byte, t *types.Type) {
	if g.m.reachable {
		g.m.sink.EmitType(op, t.InternalName())
	}
}

func (g *Generator) emitField(op byte, owner *types.Type, f *types.Field) {
	if g.m.reachable {
		g.m.sink.EmitField(op, owner.InternalName(), f.Name, f.Type.Descriptor())
	}
}

func (g *Generator) emitInvoke(op byte, owner, name, desc string, iface bool) {
	if g.m.reachable {
		g.m.sink.EmitMethod(op, owner, name, desc, iface)
	}
}

func (g *Generator) newLabel() *label {
	return &label{Label: g.m.sink.NewLabel()}
}

// jump emits a branch. Branches from unreachable code are dropped and do
// not count as references.
func (g *Generator) jump(op byte, l *label) {
	m := g.m
	if !m.reachable {
		return
	}
	l.refs++
	m.sink.EmitJump(op, l.Label)
	if op == classfile.OpGoto {
		m.reachable = false
	}
}

// mark places l. Code after it is reachable if it was already, or if some
// reachable branch targets l.
func (g *Generator) mark(l *label) {
	g.m.sink.Mark(l.Label)
	if l.refs > 0 {
		g.m.reachable = true
	}
}

// markTarget places a label that is entered from outside the normal flow:
// an exception handler, a subroutine, a switch case or a loop step.
func (g *Generator) markTarget(l *label) {
	l.refs++
	g.mark(l)
}

// Locals.

func (g *Generator) findLocal(name string) *types.Field {
	m := g.m
	for i := len(m.locals) - 1; i >= 0; i-- {
		if l := m.locals[i]; l.InScope && l.Name == name {
			return l
		}
	}
	return nil
}

func (g *Generator) declareLocal(name string, t *types.Type) *types.Field {
	m := g.m
	f := &types.Field{
		Name:    name,
		Type:    t,
		Slot:    m.next,
		Level:   m.level,
		StartPC: m.sink.PC(),
		EndPC:   -1,
		InScope: true,
	}
	m.next += t.Width()
	m.locals = append(m.locals, f)
	log.Debugf("local %s %s in slot %d", t, name, f.Slot)
	return f
}

// closeScope takes every local declared at level or deeper out of scope.
func (g *Generator) closeScope(level int) {
	m := g.m
	for _, l := range m.locals {
		if l.InScope && l.Level >= level {
			l.InScope = false
			l.EndPC = m.sink.PC()
		}
	}
}

// temp borrows an unnamed slot for t.
func (g *Generator) temp(t *types.Type) int {
	m := g.m
	w := t.Width()
	if free := m.free[w]; len(free) > 0 {
		slot := free[len(free)-1]
		m.free[w] = free[:len(free)-1]
		return slot
	}
	slot := m.next
	m.next += w
	return slot
}

// release returns a borrowed slot. While a try on the stack may still call
// a finally subroutine the slot stays taken: the subroutine can run while
// it is live.
func (g *Generator) release(t *types.Type, slot int) {
	if g.finallyPending() {
		return
	}
	g.m.free[t.Width()] = append(g.m.free[t.Width()], slot)
}

// Instruction families indexed by type.

func typeOffset(t *types.Type) byte {
	switch t.Kind() {
	case types.Long:
		return 1
	case types.Float:
		return 2
	case types.Double:
		return 3
	case types.Class, types.Array, types.Null:
		return 4
	}
	return 0
}

func loadOp(t *types.Type) byte   { return classfile.OpIload + typeOffset(t) }
func storeOp(t *types.Type) byte  { return classfile.OpIstore + typeOffset(t) }
func returnOp(t *types.Type) byte { return classfile.OpIreturn + typeOffset(t) }

// arithOffset selects the int, long, float or double variant of an
// arithmetic instruction.
func arithOffset(t *types.Type) byte {
	switch t.Kind() {
	case types.Long:
		return 1
	case types.Float:
		return 2
	case types.Double:
		return 3
	}
	return 0
}

func arrayOffset(elem *types.Type) byte {
	switch elem.Kind() {
	case types.Long:
		return 1
	case types.Float:
		return 2
	case types.Double:
		return 3
	case types.Class, types.Array:
		return 4
	case types.Boolean, types.Byte:
		return 5
	case types.Char:
		return 6
	case types.Short:
		return 7
	}
	return 0
}

func arrayLoadOp(elem *types.Type) byte  { return classfile.OpIaload + arrayOffset(elem) }
func arrayStoreOp(elem *types.Type) byte { return classfile.OpIastore + arrayOffset(elem) }

func newArrayCode(elem *types.Type) int {
	switch elem.Kind() {
	case types.Boolean:
		return classfile.ArrayTypeBoolean
	case types.Char:
		return classfile.ArrayTypeChar
	case types.Float:
		return classfile.ArrayTypeFloat
	case types.Double:
		return classfile.ArrayTypeDouble
	case types.Byte:
		return classfile.ArrayTypeByte
	case types.Short:
		return classfile.ArrayTypeShort
	case types.Long:
		return classfile.ArrayTypeLong
	}
	return classfile.ArrayTypeInt
}

// one pushes the constant 1 of t's arithmetic type.
func (g *Generator) one(t *types.Type) {
	switch t.Kind() {
	case types.Long:
		g.emitLdc(int64(1))
	case types.Float:
		g.emitLdc(float32(1))
	case types.Double:
		g.emitLdc(float64(1))
	default:
		g.emitLdc(int32(1))
	}
}

// dupUnder copies the top value beneath the entries below it, which must
// span one or two words: dup_x1, dup_x2, dup2_x1 or dup2_x2.
func (g *Generator) dupUnder(entries int) {
	m := g.m
	n := len(m.stack)
	top := m.stack[n-1]
	at := n - 1 - entries
	under := 0
	for _, o := range m.stack[at : n-1] {
		under += o.t.Width()
	}
	switch {
	case top.t.Width() == 1 && under == 1:
		g.emit(classfile.OpDupX1)
	case top.t.Width() == 1:
		g.emit(classfile.OpDupX2)
	case under == 1:
		g.emit(classfile.OpDup2X1)
	default:
		g.emit(classfile.OpDup2X2)
	}
	m.stack = append(m.stack[:at], append([]operand{{t: top.t}}, m.stack[at:]...)...)
	g.sync()
}

func (g *Generator) emitClass(op byte, name string) {
	if g.m.reachable {
		g.m.sink.EmitType(op, name)
	}
}
