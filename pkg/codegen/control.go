package codegen

import (
	"sort"

	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/daimatz/jclassgen/pkg/diag"
	"github.com/daimatz/jclassgen/pkg/emit"
	"github.com/daimatz/jclassgen/pkg/types"
)

// DeclareLocal declares a local variable in the innermost scope.
func (g *Generator) DeclareLocal(typ, name string) error {
	if !g.begin("declaration of " + name) {
		return g.err
	}
	t := g.resolveType(typ)
	if t == nil {
		return g.err
	}
	if t.IsVoid() {
		return g.errorf(diag.KeyIncompatibleTypes, "void", "a variable type")
	}
	if g.findLocal(name) != nil {
		return g.errorf(diag.KeyDuplicateLocal, name)
	}
	g.declareLocal(name, t)
	return nil
}

// Label attaches name to the next compound statement, making it a target
// for labeled break and continue.
func (g *Generator) Label(name string) error {
	if !g.begin("label " + name) {
		return g.err
	}
	for _, s := range g.m.stmts {
		if s.name() == name {
			return g.errorf(diag.KeyStatementState, "label "+name, "the label is already in use")
		}
	}
	g.label = name
	return nil
}

// Begin opens a block with its own local variable scope.
func (g *Generator) Begin() error {
	if !g.beginStmt("block") || !g.expectEmpty("block") {
		return g.err
	}
	g.pushStmt(&scopeStmt{}, g.newLabel())
	return nil
}

// End closes the block opened by Begin.
func (g *Generator) End() error {
	if !g.begin("end of block") {
		return g.err
	}
	s := g.innermost("end of block", "block")
	if s == nil || !g.expectEmpty("end of block") {
		return g.err
	}
	if err := g.popStmt(s); err != nil {
		return err
	}
	g.mark(s.exit())
	return nil
}

// If consumes a boolean and opens the then-branch.
func (g *Generator) If() error {
	if !g.beginStmt("if") || !g.condition("if") {
		return g.err
	}
	s := &ifStmt{orElse: g.newLabel()}
	g.jump(classfile.OpIfeq, s.orElse)
	g.pushStmt(s, g.newLabel())
	return nil
}

// Else ends the then-branch and opens the else-branch.
func (g *Generator) Else() error {
	if !g.begin("else") {
		return g.err
	}
	top := g.innermost("else", "if")
	if top == nil || !g.expectEmpty("else") {
		return g.err
	}
	s := top.(*ifStmt)
	if s.hasElse {
		return g.errorf(diag.KeyElseTwice)
	}
	s.hasElse = true
	g.closeScope(s.level)
	g.jump(classfile.OpGoto, s.end)
	g.mark(s.orElse)
	return nil
}

// EndIf closes the if statement.
func (g *Generator) EndIf() error {
	if !g.begin("end of if") {
		return g.err
	}
	top := g.innermost("end of if", "if")
	if top == nil || !g.expectEmpty("end of if") {
		return g.err
	}
	s := top.(*ifStmt)
	if err := g.popStmt(s); err != nil {
		return err
	}
	if !s.hasElse {
		g.mark(s.orElse)
	}
	g.mark(s.end)
	return nil
}

// Loop opens a loop. It repeats until a While condition fails or a break
// leaves it.
func (g *Generator) Loop() error {
	return g.openLoop("loop", false)
}

// For opens a loop whose While condition is followed by a Step expression
// that runs after each iteration of the body.
func (g *Generator) For() error {
	return g.openLoop("for", true)
}

func (g *Generator) openLoop(op string, isFor bool) error {
	if !g.beginStmt(op) || !g.expectEmpty(op) {
		return g.err
	}
	s := &loopStmt{begin: g.newLabel(), isFor: isFor}
	g.pushStmt(s, g.newLabel())
	g.mark(s.begin)
	return nil
}

// While consumes a boolean and leaves the innermost loop when it is false.
func (g *Generator) While() error {
	if !g.begin("while") {
		return g.err
	}
	top := g.innermost("while", "loop", "for")
	if top == nil {
		return g.err
	}
	s := top.(*loopStmt)
	if s.isFor && s.hasWhile {
		return g.errorf(diag.KeyStatementState, "while", "the for loop already has a condition")
	}
	if !g.condition("while") {
		return g.err
	}
	g.jump(classfile.OpIfeq, s.end)
	s.exits++
	s.hasWhile = true
	if s.isFor {
		s.body, s.step = g.newLabel(), g.newLabel()
		g.jump(classfile.OpGoto, s.body)
		g.markTarget(s.step)
	}
	return nil
}

// Step ends the step expression of a for loop, discarding its value, and
// opens the body.
func (g *Generator) Step() error {
	if !g.begin("step") {
		return g.err
	}
	top := g.innermost("step", "for")
	if top == nil {
		return g.err
	}
	s := top.(*loopStmt)
	if !s.hasWhile || s.hasStep {
		return g.errorf(diag.KeyStatementState, "step", "a step must directly follow the condition of a for loop")
	}
	switch n := len(g.m.stack); {
	case n == 1:
		g.settleTop()
		g.discard()
		g.sync()
	case n > 1:
		return g.errorf(diag.KeyStackNotEmpty, "step", n)
	}
	s.hasStep = true
	g.jump(classfile.OpGoto, s.begin)
	g.mark(s.body)
	return nil
}

// EndLoop closes the innermost loop.
func (g *Generator) EndLoop() error {
	if !g.begin("end of loop") {
		return g.err
	}
	top := g.innermost("end of loop", "loop", "for")
	if top == nil || !g.expectEmpty("end of loop") {
		return g.err
	}
	s := top.(*loopStmt)
	if s.exits == 0 {
		return g.errorf(diag.KeyLoopWithoutExit)
	}
	switch {
	case s.hasStep:
		g.jump(classfile.OpGoto, s.step)
	case s.isFor && s.hasWhile:
		// No step: the body is where the step would have been.
		g.m.sink.Alias(s.body.Label, s.step.Label)
		g.jump(classfile.OpGoto, s.begin)
	default:
		g.jump(classfile.OpGoto, s.begin)
	}
	if err := g.popStmt(s); err != nil {
		return err
	}
	g.mark(s.end)
	return nil
}

// Switch consumes an int selector and opens a switch. Case and Default
// mark the entry points; control falls through between them.
func (g *Generator) Switch() error {
	if !g.beginStmt("switch") || !g.need("switch", 1) {
		return g.err
	}
	g.settleTop()
	if t := g.peek(0).t; !t.IsIntLike() {
		return g.errorf(diag.KeyNotIntegral, "switch", t)
	}
	g.pop()
	if !g.expectEmpty("switch") {
		return g.err
	}
	s := &switchStmt{
		dispatch: g.newLabel(),
		targets:  make(map[int32]*label),
		line:     g.line,
	}
	// The selector stays on the stack until the dispatch after the bodies.
	g.jump(classfile.OpGoto, s.dispatch)
	g.sync()
	g.pushStmt(s, g.newLabel())
	return nil
}

// Case marks the entry for key.
func (g *Generator) Case(key int32) error {
	if !g.begin("case") {
		return g.err
	}
	top := g.innermost("case", "switch")
	if top == nil || !g.expectEmpty("case") {
		return g.err
	}
	s := top.(*switchStmt)
	if _, dup := s.targets[key]; dup {
		return g.errorf(diag.KeyDuplicateCase, key)
	}
	l := g.newLabel()
	g.markTarget(l)
	s.targets[key] = l
	return nil
}

// Default marks the entry taken when no case matches.
func (g *Generator) Default() error {
	if !g.begin("default") {
		return g.err
	}
	top := g.innermost("default", "switch")
	if top == nil || !g.expectEmpty("default") {
		return g.err
	}
	s := top.(*switchStmt)
	if s.hasDefault {
		return g.errorf(diag.KeyDefaultTwice)
	}
	s.hasDefault = true
	s.dflt = g.newLabel()
	g.markTarget(s.dflt)
	return nil
}

// EndSwitch closes the switch and emits its dispatch: a tableswitch when
// the keys are contiguous, otherwise a lookupswitch.
func (g *Generator) EndSwitch() error {
	if !g.begin("end of switch") {
		return g.err
	}
	top := g.innermost("end of switch", "switch")
	if top == nil || !g.expectEmpty("end of switch") {
		return g.err
	}
	s := top.(*switchStmt)
	if len(s.targets) == 0 {
		return g.errorf(diag.KeyNoCases)
	}
	g.jump(classfile.OpGoto, s.end)
	if !s.hasDefault {
		s.dflt = s.end
	}
	if err := g.popStmt(s); err != nil {
		return err
	}

	g.mark(s.dispatch)
	g.push(types.IntType)
	if g.ctx.Options.DebugInfo && s.line > 0 && g.m.reachable {
		g.m.sink.Line(s.line)
	}
	keys := make([]int32, 0, len(s.targets))
	for k := range s.targets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	targets := make([]*emit.Label, len(keys))
	for i, k := range keys {
		targets[i] = s.targets[k].Label
	}
	op := byte(classfile.OpLookupswitch)
	if int64(keys[len(keys)-1])-int64(keys[0]) == int64(len(keys)-1) {
		op = classfile.OpTableswitch
	}
	if g.m.reachable {
		s.dflt.refs++
		g.m.sink.EmitSwitch(op, s.dflt.Label, keys, targets)
		g.m.reachable = false
	}
	g.pop()
	g.sync()
	g.mark(s.end)
	return nil
}

// Try opens the protected block of a try statement.
func (g *Generator) Try() error {
	if !g.beginStmt("try") || !g.expectEmpty("try") {
		return g.err
	}
	s := &tryStmt{
		start:    g.newLabel(),
		tryEnd:   g.newLabel(),
		after:    g.newLabel(),
		catchAll: g.newLabel(),
		fin:      g.newLabel(),
		retSlot:  g.temp(g.ctx.Universe.Object()),
	}
	g.pushStmt(s, g.newLabel())
	g.mark(s.start)
	return nil
}

// closeBlock ends the try block or the current catch block.
func (g *Generator) closeBlock(s *tryStmt) {
	if s.phase == inTry {
		g.mark(s.tryEnd)
	}
	g.closeScope(s.level)
	g.jump(classfile.OpGoto, s.after)
}

// Catch opens a handler for exceptions of type typ, bound to the local name.
func (g *Generator) Catch(typ, name string) error {
	if !g.begin("catch") {
		return g.err
	}
	top := g.innermost("catch", "try")
	if top == nil || !g.expectEmpty("catch") {
		return g.err
	}
	s := top.(*tryStmt)
	if s.phase == inFinally {
		return g.errorf(diag.KeyStatementState, "catch", "the finally block has started")
	}
	t := g.resolveType(typ)
	if t == nil {
		return g.err
	}
	if !types.IsSubtype(t, g.ctx.Universe.Class(types.ThrowableName)) {
		return g.errorf(diag.KeyNotThrowable, t)
	}
	g.closeBlock(s)
	if g.findLocal(name) != nil {
		return g.errorf(diag.KeyDuplicateLocal, name)
	}
	handler := g.newLabel()
	g.markTarget(handler)
	g.m.sink.AddHandler(s.start.Label, s.tryEnd.Label, handler.Label, t.InternalName())
	g.push(t)
	v := g.declareLocal(name, t)
	g.emitLocal(storeOp(t), v.Slot)
	g.pop()
	g.sync()
	s.phase = inCatch
	return nil
}

// Finally opens the finally block. It runs as a subroutine called on every
// exit from the try and catch blocks, including exceptional ones.
func (g *Generator) Finally() error {
	if !g.begin("finally") {
		return g.err
	}
	top := g.innermost("finally", "try")
	if top == nil || !g.expectEmpty("finally") {
		return g.err
	}
	s := top.(*tryStmt)
	if s.phase == inFinally {
		return g.errorf(diag.KeyStatementState, "finally", "the try already has a finally block")
	}
	g.closeBlock(s)

	// Any exception: save it, run the subroutine, rethrow.
	throwable := g.ctx.Universe.Class(types.ThrowableName)
	g.markTarget(s.catchAll)
	g.m.sink.AddHandler(s.start.Label, s.catchAll.Label, s.catchAll.Label, "")
	g.push(throwable)
	saved := g.temp(throwable)
	s.savedSlot = saved
	g.emitLocal(classfile.OpAstore, saved)
	g.pop()
	g.peakAt(1)
	g.jump(classfile.OpJsr, s.fin)
	g.emitLocal(classfile.OpAload, saved)
	g.push(throwable)
	g.emit(classfile.OpAthrow)
	g.pop()
	g.sync()

	// The subroutine stores its return address first.
	g.markTarget(s.fin)
	g.peakAt(1)
	g.emitLocal(classfile.OpAstore, s.retSlot)
	s.phase = inFinally
	s.hasFinally = true
	return nil
}

// EndTry closes the try statement.
func (g *Generator) EndTry() error {
	if !g.begin("end of try") {
		return g.err
	}
	top := g.innermost("end of try", "try")
	if top == nil || !g.expectEmpty("end of try") {
		return g.err
	}
	s := top.(*tryStmt)
	if s.phase == inTry {
		return g.errorf(diag.KeyTryWithoutHandler)
	}
	if err := g.popStmt(s); err != nil {
		return err
	}
	object := g.ctx.Universe.Object()
	defer g.release(object, s.retSlot)
	if s.hasFinally {
		g.emitLocal(classfile.OpRet, s.retSlot)
		g.release(object, s.savedSlot)
		g.mark(s.after)
		g.callFinally(s)
	} else {
		g.mark(s.after)
		if s.fin.refs > 0 {
			// A jump left the try before it was known to have no finally:
			// give its subroutine calls an empty body.
			reachable := g.m.reachable
			skip := g.newLabel()
			g.jump(classfile.OpGoto, skip)
			g.markTarget(s.fin)
			g.peakAt(1)
			g.emitLocal(classfile.OpAstore, s.retSlot)
			g.emitLocal(classfile.OpRet, s.retSlot)
			g.mark(skip)
			g.m.reachable = reachable
		}
	}
	g.mark(s.end)
	return nil
}

// callFinally calls the finally subroutine of s.
func (g *Generator) callFinally(s *tryStmt) {
	g.peakAt(g.m.words() + 1)
	g.jump(classfile.OpJsr, s.fin)
}

// leave calls the finally subroutines of the try statements in frames,
// innermost first.
func (g *Generator) leave(frames []statement) {
	for i := len(frames) - 1; i >= 0; i-- {
		if s, ok := frames[i].(*tryStmt); ok && s.guarded() {
			g.callFinally(s)
		}
	}
}

// Break leaves the innermost loop or switch, or the statement labeled
// name.
func (g *Generator) Break(name string) error {
	if !g.begin("break") || !g.expectEmpty("break") {
		return g.err
	}
	stmts := g.m.stmts
	i := len(stmts) - 1
	for ; i > 0; i-- {
		s := stmts[i]
		if name == "" {
			if k := s.kind(); k == "loop" || k == "for" || k == "switch" {
				break
			}
		} else if s.name() == name {
			break
		}
	}
	if i == 0 {
		if name == "" {
			return g.errorf(diag.KeyBreakOutside)
		}
		return g.errorf(diag.KeyLabelNotFound, name)
	}
	target := stmts[i]
	if l, ok := target.(*loopStmt); ok && g.m.reachable {
		l.exits++
	}
	g.leave(stmts[i:])
	g.jump(classfile.OpGoto, target.exit())
	return nil
}

// Continue starts the next iteration of the innermost loop, or of the loop
// labeled name.
func (g *Generator) Continue(name string) error {
	if !g.begin("continue") || !g.expectEmpty("continue") {
		return g.err
	}
	stmts := g.m.stmts
	i := len(stmts) - 1
	for ; i > 0; i-- {
		s := stmts[i]
		if name == "" {
			if _, ok := s.(*loopStmt); ok {
				break
			}
		} else if s.name() == name {
			break
		}
	}
	if i == 0 {
		if name == "" {
			return g.errorf(diag.KeyContinueOutside)
		}
		return g.errorf(diag.KeyLabelNotFound, name)
	}
	loop, ok := stmts[i].(*loopStmt)
	if !ok {
		return g.errorf(diag.KeyContinueOutside)
	}
	g.leave(stmts[i+1:])
	g.jump(classfile.OpGoto, loop.continueTarget())
	return nil
}

// Return returns from the method, with the value on top of the stack unless
// the method is void.
func (g *Generator) Return() error {
	if !g.begin("return") {
		return g.err
	}
	decl := g.m.decl
	rt := decl.Return
	if rt.IsVoid() {
		if !g.expectEmpty("return") {
			return g.err
		}
		g.leave(g.m.stmts)
		g.emit(classfile.OpReturn)
		return nil
	}
	if len(g.m.stack) == 0 {
		return g.errorf(diag.KeyReturnMismatch, decl.Signature(), rt, "nothing")
	}
	g.settleTop()
	from := g.peek(0).t
	conv, ok := g.ctx.Conversions.Assignment.Convert(from, rt)
	if !ok {
		return g.errorf(diag.KeyReturnMismatch, decl.Signature(), rt, from)
	}
	g.apply(conv)
	if n := len(g.m.stack); n > 1 {
		return g.errorf(diag.KeyStackNotEmpty, "return", n-1)
	}
	if g.finallyPending() {
		slot := g.temp(rt)
		g.emitLocal(storeOp(rt), slot)
		g.pop()
		g.sync()
		g.leave(g.m.stmts)
		g.emitLocal(loadOp(rt), slot)
		g.push(rt)
		g.release(rt, slot)
	}
	g.emit(returnOp(rt))
	g.pop()
	g.sync()
	return nil
}

func (g *Generator) finallyPending() bool {
	for _, s := range g.m.stmts {
		if t, ok := s.(*tryStmt); ok && t.guarded() {
			return true
		}
	}
	return false
}

// Throw throws the exception on top of the stack.
func (g *Generator) Throw() error {
	if !g.begin("throw") || !g.need("throw", 1) {
		return g.err
	}
	g.settleTop()
	t := g.peek(0).t
	if !t.IsNull() && !types.IsSubtype(t, g.ctx.Universe.Class(types.ThrowableName)) {
		return g.errorf(diag.KeyNotThrowable, t)
	}
	if n := len(g.m.stack); n > 1 {
		return g.errorf(diag.KeyStackNotEmpty, "throw", n-1)
	}
	g.emit(classfile.OpAthrow)
	g.pop()
	g.sync()
	return nil
}
