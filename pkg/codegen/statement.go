package codegen

import (
	"github.com/daimatz/jclassgen/pkg/diag"
	"github.com/daimatz/jclassgen/pkg/types"
)

// statement is an open compound statement. The method body sits at the
// bottom of the stack.
type statement interface {
	kind() string
	// name is the user label attached to the statement, if any.
	name() string
	// exit is where break leaves the statement; nil if it cannot be a
	// break target.
	exit() *label
	base() *stmtBase
}

type stmtBase struct {
	labelName string
	end       *label
	level     int
}

func (s *stmtBase) name() string    { return s.labelName }
func (s *stmtBase) exit() *label    { return s.end }
func (s *stmtBase) base() *stmtBase { return s }

type methodBody struct{ stmtBase }

func (*methodBody) kind() string { return "method body" }

type scopeStmt struct{ stmtBase }

func (*scopeStmt) kind() string { return "block" }

type ifStmt struct {
	stmtBase
	orElse  *label
	hasElse bool
}

func (*ifStmt) kind() string { return "if" }

type loopStmt struct {
	stmtBase
	begin, body, step *label
	isFor             bool
	hasWhile, hasStep bool
	// exits counts the conditions and breaks that leave the loop.
	exits int
}

func (s *loopStmt) kind() string {
	if s.isFor {
		return "for"
	}
	return "loop"
}

// continueTarget is where continue resumes the loop.
func (s *loopStmt) continueTarget() *label {
	if s.hasStep {
		return s.step
	}
	return s.begin
}

type switchStmt struct {
	stmtBase
	dispatch   *label
	dflt       *label
	targets    map[int32]*label
	hasDefault bool
	line       int
}

func (*switchStmt) kind() string { return "switch" }

type tryPhase int

const (
	inTry tryPhase = iota
	inCatch
	inFinally
)

type tryStmt struct {
	stmtBase
	phase tryPhase
	// start and tryEnd delimit the protected range; after is the join point
	// of normal completion, which then runs the finally subroutine fin and
	// falls through to end.
	start, tryEnd, after *label
	catchAll, fin        *label
	hasFinally           bool
	// retSlot holds the subroutine's return address and savedSlot the
	// exception in flight on the catch-all path. Both stay reserved until
	// the try ends.
	retSlot, savedSlot int
}

func (*tryStmt) kind() string { return "try" }

// guarded reports whether leaving the try through a jump must call its
// finally subroutine: a finally is given or may still follow, and the jump
// does not start inside the finally body itself.
func (s *tryStmt) guarded() bool { return s.phase != inFinally }

// takeLabel consumes the pending statement label.
func (g *Generator) takeLabel() string {
	l := g.label
	g.label = ""
	return l
}

// pushStmt opens s with a new local variable scope.
func (g *Generator) pushStmt(s statement, end *label) {
	m := g.m
	m.level++
	b := s.base()
	b.labelName, b.end, b.level = g.takeLabel(), end, m.level
	m.stmts = append(m.stmts, s)
}

// popStmt closes the innermost statement, which must be s.
func (g *Generator) popStmt(s statement) error {
	m := g.m
	if len(m.stmts) == 0 || m.top() != s {
		return g.internalf("statement stack out of order closing %s", s.kind())
	}
	g.closeScope(s.base().level)
	m.stmts = m.stmts[:len(m.stmts)-1]
	if m.level > 0 {
		m.level--
	}
	return nil
}

// innermost returns the innermost statement when it has the wanted kind.
func (g *Generator) innermost(op string, kinds ...string) statement {
	top := g.m.top()
	for _, k := range kinds {
		if top.kind() == k {
			return top
		}
	}
	g.errorf(diag.KeyMismatchedEnd, op, top.kind())
	return nil
}

// expectEmpty checks that a statement boundary leaves no values behind.
func (g *Generator) expectEmpty(op string) bool {
	if n := len(g.m.stack); n > 0 {
		g.errorf(diag.KeyStackNotEmpty, op, n)
		return false
	}
	return true
}

// condition consumes the boolean on top of an otherwise empty stack.
func (g *Generator) condition(op string) bool {
	if !g.need(op, 1) {
		return false
	}
	g.settleTop()
	if t := g.peek(0).t; t.Kind() != types.Boolean {
		g.errorf(diag.KeyNotBoolean, op, t)
		return false
	}
	g.pop()
	if !g.expectEmpty(op) {
		return false
	}
	g.sync()
	return true
}
