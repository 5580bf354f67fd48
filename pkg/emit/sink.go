// Package emit is the instruction-emission boundary of the generator. The
// generator decides which instructions to emit; a Sink decides what
// emitting means, such as encoding bytecode or printing a listing.
package emit

import (
	"fmt"
	"math"

	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("jclassgen.emit")

// Sink receives the instructions of one method body.
type Sink interface {
	// Emit writes an instruction without operands.
	Emit(op byte)
	// EmitInt writes bipush, sipush or newarray with its immediate operand.
	EmitInt(op byte, v int)
	// EmitLocal writes a load, store or ret of a local slot, choosing the
	// short or wide form.
	EmitLocal(op byte, slot int)
	EmitIinc(slot, delta int)
	// EmitLdc pushes an int32, int64, float32, float64 or string constant
	// using the shortest encoding.
	EmitLdc(v interface{})
	// EmitType writes new, anewarray, checkcast or instanceof.
	EmitType(op byte, class string)
	EmitField(op byte, owner, name, desc string)
	EmitMethod(op byte, owner, name, desc string, iface bool)
	EmitMultiANewArray(desc string, dims int)
	EmitJump(op byte, l *Label)
	// EmitSwitch writes a tableswitch (keys contiguous and ascending) or a
	// lookupswitch (keys ascending).
	EmitSwitch(op byte, dflt *Label, keys []int32, targets []*Label)

	NewLabel() *Label
	Mark(l *Label)
	// Alias makes l resolve to wherever target is marked.
	Alias(l, target *Label)
	// AddHandler registers an exception table entry. An empty catchType
	// catches everything.
	AddHandler(start, end, handler *Label, catchType string)
	// Line attributes the following instructions to a source line.
	Line(line int)
	// AdjustStack records the operand stack effect of the last instruction.
	AdjustStack(delta int)
	PC() int

	// Finish resolves labels and returns the Code attribute, or nil for
	// sinks that do not produce bytecode.
	Finish(maxLocals int, vars []LocalVar) (*classfile.CodeAttribute, error)
}

// LocalVar is one LocalVariableTable entry in pc terms.
type LocalVar struct {
	Name       string
	Descriptor string
	Slot       int
	Start, End int
}

// Label is a code position that may be referenced before it is marked.
type Label struct {
	id     int
	pc     int
	target *Label
}

func newLabel(id int) *Label { return &Label{id: id, pc: -1} }

func (l *Label) resolve() *Label {
	for l.target != nil {
		l = l.target
	}
	return l
}

// Marked reports whether the label (or its alias target) has a position.
func (l *Label) Marked() bool { return l.resolve().pc >= 0 }

// PC is the marked position, or -1.
func (l *Label) PC() int { return l.resolve().pc }

func (l *Label) String() string { return fmt.Sprintf("L%d", l.resolve().id) }

// localForm returns the encoding of a local variable instruction: the
// opcode actually written and whether it carries an operand.
func localForm(op byte, slot int) (byte, bool) {
	if slot > 3 || op == classfile.OpRet {
		return op, true
	}
	switch {
	case op >= classfile.OpIload && op <= classfile.OpAload:
		return classfile.OpIload0 + (op-classfile.OpIload)*4 + byte(slot), false
	case op >= classfile.OpIstore && op <= classfile.OpAstore:
		return classfile.OpIstore0 + (op-classfile.OpIstore)*4 + byte(slot), false
	}
	return op, true
}

// constForm picks the instruction pushing v. operand is the immediate for
// bipush/sipush; ldc forms return the constant itself.
func constForm(v interface{}) (op byte, operand int, err error) {
	switch c := v.(type) {
	case int32:
		switch {
		case c >= -1 && c <= 5:
			return byte(classfile.OpIconst0 + c), 0, nil
		case c >= math.MinInt8 && c <= math.MaxInt8:
			return classfile.OpBipush, int(c), nil
		case c >= math.MinInt16 && c <= math.MaxInt16:
			return classfile.OpSipush, int(c), nil
		}
		return classfile.OpLdc, 0, nil
	case int64:
		if c == 0 || c == 1 {
			return byte(classfile.OpLconst0 + c), 0, nil
		}
		return classfile.OpLdc2W, 0, nil
	case float32:
		if (c == 0 && !math.Signbit(float64(c))) || c == 1 || c == 2 {
			return classfile.OpFconst0 + byte(c), 0, nil
		}
		return classfile.OpLdc, 0, nil
	case float64:
		if (c == 0 && !math.Signbit(c)) || c == 1 {
			return classfile.OpDconst0 + byte(c), 0, nil
		}
		return classfile.OpLdc2W, 0, nil
	case string:
		return classfile.OpLdc, 0, nil
	}
	return 0, 0, fmt.Errorf("unsupported constant %T", v)
}

// InvokeInterfaceCount is the count operand of invokeinterface: one for the
// receiver plus the argument words of desc.
func InvokeInterfaceCount(desc string) int {
	n := 1
	for i := 1; i < len(desc) && desc[i] != ')'; i++ {
		switch desc[i] {
		case 'J', 'D':
			n += 2
		case 'L':
			for desc[i] != ';' {
				i++
			}
			n++
		case '[':
			for desc[i] == '[' {
				i++
			}
			if desc[i] == 'L' {
				for desc[i] != ';' {
					i++
				}
			}
			n++
		default:
			n++
		}
	}
	return n
}

// Discard accepts everything and produces nothing. The discovery pass of
// two-pass generation runs against it.
type Discard struct {
	labels int
}

func (d *Discard) Emit(byte)                                     {}
func (d *Discard) EmitInt(byte, int)                             {}
func (d *Discard) EmitLocal(byte, int)                           {}
func (d *Discard) EmitIinc(int, int)                             {}
func (d *Discard) EmitLdc(interface{})                           {}
func (d *Discard) EmitType(byte, string)                         {}
func (d *Discard) EmitField(byte, string, string, string)        {}
func (d *Discard) EmitMethod(byte, string, string, string, bool) {}
func (d *Discard) EmitMultiANewArray(string, int)                {}
func (d *Discard) EmitJump(byte, *Label)                         {}
func (d *Discard) EmitSwitch(byte, *Label, []int32, []*Label)    {}
func (d *Discard) Mark(*Label)                                   {}
func (d *Discard) Alias(l, target *Label)                        { l.target = target }
func (d *Discard) AddHandler(_, _, _ *Label, _ string)           {}
func (d *Discard) Line(int)                                      {}
func (d *Discard) AdjustStack(int)                               {}
func (d *Discard) PC() int                                       { return 0 }

func (d *Discard) NewLabel() *Label {
	d.labels++
	return newLabel(d.labels)
}

func (d *Discard) Finish(int, []LocalVar) (*classfile.CodeAttribute, error) { return nil, nil }
