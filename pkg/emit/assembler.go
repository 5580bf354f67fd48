package emit

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/daimatz/jclassgen/pkg/classfile"
)

// MaxCodeLength is the largest method body the class-file format allows.
const MaxCodeLength = 65535

type fixup struct {
	at    int // position of the offset operand
	base  int // pc of the branching instruction
	label *Label
	wide  bool
}

type handler struct {
	start, end, target *Label
	catchType          string
}

// Assembler encodes instructions into the bytes of a Code attribute.
// Constants land in the shared pool of the class being generated.
type Assembler struct {
	pool     *classfile.PoolBuilder
	code     []byte
	labels   int
	fixups   []fixup
	handlers []handler
	lines    []classfile.LineNumber
	lastLine int
	depth    int
	maxDepth int
	err      error
}

// NewAssembler creates an assembler writing constants into pool.
func NewAssembler(pool *classfile.PoolBuilder) *Assembler {
	return &Assembler{pool: pool}
}

func (a *Assembler) fail(format string, args ...interface{}) {
	if a.err == nil {
		a.err = fmt.Errorf(format, args...)
	}
}

func (a *Assembler) u1(v byte)   { a.code = append(a.code, v) }
func (a *Assembler) u2(v uint16) { a.code = binary.BigEndian.AppendUint16(a.code, v) }
func (a *Assembler) u4(v uint32) { a.code = binary.BigEndian.AppendUint32(a.code, v) }

func (a *Assembler) PC() int { return len(a.code) }

func (a *Assembler) Emit(op byte) { a.u1(op) }

func (a *Assembler) EmitInt(op byte, v int) {
	switch op {
	case classfile.OpBipush, classfile.OpNewarray:
		a.u1(op)
		a.u1(byte(int8(v)))
	case classfile.OpSipush:
		a.u1(op)
		a.u2(uint16(int16(v)))
	default:
		a.fail("EmitInt: %s takes no immediate", classfile.OpcodeName(op))
	}
}

func (a *Assembler) EmitLocal(op byte, slot int) {
	if slot < 0 || slot > math.MaxUint16 {
		a.fail("local slot %d out of range", slot)
		return
	}
	form, operand := localForm(op, slot)
	switch {
	case !operand:
		a.u1(form)
	case slot <= math.MaxUint8:
		a.u1(form)
		a.u1(byte(slot))
	default:
		a.u1(classfile.OpWide)
		a.u1(form)
		a.u2(uint16(slot))
	}
}

func (a *Assembler) EmitIinc(slot, delta int) {
	if slot <= math.MaxUint8 && delta >= math.MinInt8 && delta <= math.MaxInt8 {
		a.u1(classfile.OpIinc)
		a.u1(byte(slot))
		a.u1(byte(int8(delta)))
		return
	}
	if delta < math.MinInt16 || delta > math.MaxInt16 {
		a.fail("iinc delta %d out of range", delta)
		return
	}
	a.u1(classfile.OpWide)
	a.u1(classfile.OpIinc)
	a.u2(uint16(slot))
	a.u2(uint16(int16(delta)))
}

func (a *Assembler) EmitLdc(v interface{}) {
	op, operand, err := constForm(v)
	if err != nil {
		a.fail("%v", err)
		return
	}
	switch op {
	case classfile.OpBipush, classfile.OpSipush:
		a.EmitInt(op, operand)
		return
	case classfile.OpLdc, classfile.OpLdc2W:
	default:
		a.u1(op)
		return
	}
	var idx uint16
	switch c := v.(type) {
	case int32:
		idx = a.pool.Integer(c)
	case float32:
		idx = a.pool.Float(c)
	case string:
		idx = a.pool.String(c)
	case int64:
		idx = a.pool.Long(c)
	case float64:
		idx = a.pool.Double(c)
	}
	switch {
	case op == classfile.OpLdc2W:
		a.u1(op)
		a.u2(idx)
	case idx <= math.MaxUint8:
		a.u1(classfile.OpLdc)
		a.u1(byte(idx))
	default:
		a.u1(classfile.OpLdcW)
		a.u2(idx)
	}
}

func (a *Assembler) EmitType(op byte, class string) {
	a.u1(op)
	a.u2(a.pool.Class(class))
}

func (a *Assembler) EmitField(op byte, owner, name, desc string) {
	a.u1(op)
	a.u2(a.pool.Fieldref(owner, name, desc))
}

func (a *Assembler) EmitMethod(op byte, owner, name, desc string, iface bool) {
	a.u1(op)
	a.u2(a.pool.Methodref(owner, name, desc, iface))
	if op == classfile.OpInvokeinterface {
		a.u1(byte(InvokeInterfaceCount(desc)))
		a.u1(0)
	}
}

func (a *Assembler) EmitMultiANewArray(desc string, dims int) {
	a.u1(classfile.OpMultianewarray)
	a.u2(a.pool.Class(desc))
	a.u1(byte(dims))
}

func (a *Assembler) EmitJump(op byte, l *Label) {
	base := a.PC()
	a.u1(op)
	a.fixups = append(a.fixups, fixup{at: a.PC(), base: base, label: l})
	a.u2(0)
}

func (a *Assembler) EmitSwitch(op byte, dflt *Label, keys []int32, targets []*Label) {
	if len(keys) != len(targets) {
		a.fail("switch has %d keys but %d targets", len(keys), len(targets))
		return
	}
	base := a.PC()
	a.u1(op)
	for a.PC()%4 != 0 {
		a.u1(0)
	}
	wide := func(l *Label) {
		a.fixups = append(a.fixups, fixup{at: a.PC(), base: base, label: l, wide: true})
		a.u4(0)
	}
	wide(dflt)
	switch op {
	case classfile.OpTableswitch:
		if len(keys) == 0 {
			a.fail("tableswitch without keys")
			return
		}
		a.u4(uint32(keys[0]))
		a.u4(uint32(keys[len(keys)-1]))
		for i, l := range targets {
			if i > 0 && keys[i] != keys[i-1]+1 {
				a.fail("tableswitch keys are not contiguous at %d", keys[i])
			}
			wide(l)
		}
	case classfile.OpLookupswitch:
		a.u4(uint32(len(keys)))
		for i, l := range targets {
			if i > 0 && keys[i] <= keys[i-1] {
				a.fail("lookupswitch keys are not ascending at %d", keys[i])
			}
			a.u4(uint32(keys[i]))
			wide(l)
		}
	default:
		a.fail("EmitSwitch: %s is not a switch", classfile.OpcodeName(op))
	}
}

func (a *Assembler) NewLabel() *Label {
	a.labels++
	return newLabel(a.labels)
}

func (a *Assembler) Mark(l *Label) {
	if l.target != nil || l.pc >= 0 {
		a.fail("label %s marked twice", l)
		return
	}
	l.pc = a.PC()
}

func (a *Assembler) Alias(l, target *Label) {
	if l.pc >= 0 {
		a.fail("cannot alias marked label %s", l)
		return
	}
	l.target = target
}

func (a *Assembler) AddHandler(start, end, target *Label, catchType string) {
	a.handlers = append(a.handlers, handler{start: start, end: end, target: target, catchType: catchType})
}

func (a *Assembler) Line(line int) {
	if line <= 0 || line == a.lastLine {
		return
	}
	a.lastLine = line
	pc := uint16(a.PC())
	if n := len(a.lines); n > 0 && a.lines[n-1].StartPC == pc {
		a.lines[n-1].Line = uint16(line)
		return
	}
	a.lines = append(a.lines, classfile.LineNumber{StartPC: pc, Line: uint16(line)})
}

func (a *Assembler) AdjustStack(delta int) {
	a.depth += delta
	if a.depth < 0 {
		a.fail("operand stack underflow at pc %d", a.PC())
		a.depth = 0
	}
	if a.depth > a.maxDepth {
		a.maxDepth = a.depth
	}
}

// MaxStack is the deepest operand stack seen so far.
func (a *Assembler) MaxStack() int { return a.maxDepth }

func (a *Assembler) Finish(maxLocals int, vars []LocalVar) (*classfile.CodeAttribute, error) {
	if a.err != nil {
		return nil, a.err
	}
	if len(a.code) == 0 {
		return nil, fmt.Errorf("empty method body")
	}
	if len(a.code) > MaxCodeLength {
		return nil, fmt.Errorf("%d bytes exceeds %d", len(a.code), MaxCodeLength)
	}
	for _, f := range a.fixups {
		pc := f.label.PC()
		if pc < 0 {
			return nil, fmt.Errorf("label %s is never marked", f.label)
		}
		off := pc - f.base
		if f.wide {
			binary.BigEndian.PutUint32(a.code[f.at:], uint32(int32(off)))
			continue
		}
		if off < math.MinInt16 || off > math.MaxInt16 {
			return nil, fmt.Errorf("branch from %d to %d out of range", f.base, pc)
		}
		binary.BigEndian.PutUint16(a.code[f.at:], uint16(int16(off)))
	}

	code := &classfile.CodeAttribute{
		MaxStack:    uint16(a.maxDepth),
		MaxLocals:   uint16(maxLocals),
		Code:        a.code,
		LineNumbers: a.lines,
	}
	for _, h := range a.handlers {
		start, end, target := h.start.PC(), h.end.PC(), h.target.PC()
		if start < 0 || end < 0 || target < 0 {
			return nil, fmt.Errorf("exception handler label never marked")
		}
		if start >= end {
			log.Debugf("dropping empty handler range [%d,%d)", start, end)
			continue
		}
		var catchType uint16
		if h.catchType != "" {
			catchType = a.pool.Class(h.catchType)
		}
		code.ExceptionHandlers = append(code.ExceptionHandlers, classfile.ExceptionHandler{
			StartPC: uint16(start), EndPC: uint16(end), HandlerPC: uint16(target), CatchType: catchType,
		})
	}
	for _, v := range vars {
		end := v.End
		if end < 0 || end > len(a.code) {
			end = len(a.code)
		}
		if end < v.Start {
			continue
		}
		code.LocalVariables = append(code.LocalVariables, classfile.LocalVariable{
			StartPC: uint16(v.Start), Length: uint16(end - v.Start),
			Name: v.Name, Descriptor: v.Descriptor, Index: uint16(v.Slot),
		})
	}
	log.Debugf("assembled %d bytes, max_stack=%d, max_locals=%d", len(a.code), a.maxDepth, maxLocals)
	return code, a.pool.Err()
}
