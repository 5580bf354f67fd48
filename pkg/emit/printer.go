package emit

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/daimatz/jclassgen/pkg/classfile"
)

// Printer writes a symbolic listing of the instructions a method would
// contain. Positions are instruction counts, not byte offsets.
type Printer struct {
	w        io.Writer
	n        int
	labels   int
	depth    int
	maxDepth int
	lastLine int
	err      error
}

// NewPrinter creates a printer writing to w. header, when not empty, is
// written first on a line of its own.
func NewPrinter(w io.Writer, header string) *Printer {
	p := &Printer{w: w}
	if header != "" {
		p.printf("%s:\n", header)
	}
	return p
}

func (p *Printer) printf(format string, args ...interface{}) {
	if p.err == nil {
		_, p.err = fmt.Fprintf(p.w, format, args...)
	}
}

func (p *Printer) insn(op byte, operands ...string) {
	line := "    " + classfile.OpcodeName(op)
	if len(operands) > 0 {
		line += " " + strings.Join(operands, ", ")
	}
	p.printf("%s\n", line)
	p.n++
}

func (p *Printer) PC() int { return p.n }

func (p *Printer) Emit(op byte) { p.insn(op) }

func (p *Printer) EmitInt(op byte, v int) {
	if op == classfile.OpNewarray {
		p.insn(op, arrayTypeName(v))
		return
	}
	p.insn(op, strconv.Itoa(v))
}

func (p *Printer) EmitLocal(op byte, slot int) {
	form, operand := localForm(op, slot)
	if !operand {
		p.insn(form)
		return
	}
	p.insn(form, strconv.Itoa(slot))
}

func (p *Printer) EmitIinc(slot, delta int) {
	p.insn(classfile.OpIinc, strconv.Itoa(slot), strconv.Itoa(delta))
}

func (p *Printer) EmitLdc(v interface{}) {
	op, operand, err := constForm(v)
	switch {
	case err != nil:
		p.printf("    ; %v\n", err)
	case op == classfile.OpBipush || op == classfile.OpSipush:
		p.insn(op, strconv.Itoa(operand))
	case op == classfile.OpLdc || op == classfile.OpLdc2W:
		if s, ok := v.(string); ok {
			p.insn(op, strconv.Quote(s))
		} else {
			p.insn(op, fmt.Sprintf("%v", v))
		}
	default:
		p.insn(op)
	}
}

func (p *Printer) EmitType(op byte, class string) { p.insn(op, class) }

func (p *Printer) EmitField(op byte, owner, name, desc string) {
	p.insn(op, owner+"."+name+":"+desc)
}

func (p *Printer) EmitMethod(op byte, owner, name, desc string, iface bool) {
	p.insn(op, owner+"."+name+desc)
}

func (p *Printer) EmitMultiANewArray(desc string, dims int) {
	p.insn(classfile.OpMultianewarray, desc, strconv.Itoa(dims))
}

func (p *Printer) EmitJump(op byte, l *Label) { p.insn(op, l.String()) }

func (p *Printer) EmitSwitch(op byte, dflt *Label, keys []int32, targets []*Label) {
	p.insn(op)
	for i, k := range keys {
		p.printf("        %d: %s\n", k, targets[i])
	}
	p.printf("        default: %s\n", dflt)
}

func (p *Printer) NewLabel() *Label {
	p.labels++
	return newLabel(p.labels)
}

func (p *Printer) Mark(l *Label) {
	l.pc = p.n
	p.printf("  %s:\n", l)
}

func (p *Printer) Alias(l, target *Label) {
	l.target = target
}

func (p *Printer) AddHandler(start, end, target *Label, catchType string) {
	if catchType == "" {
		catchType = "any"
	}
	p.printf("    .catch %s from %s to %s using %s\n", catchType, start, end, target)
}

func (p *Printer) Line(line int) {
	if line <= 0 || line == p.lastLine {
		return
	}
	p.lastLine = line
	p.printf("    .line %d\n", line)
}

func (p *Printer) AdjustStack(delta int) {
	p.depth += delta
	if p.depth > p.maxDepth {
		p.maxDepth = p.depth
	}
}

func (p *Printer) Finish(maxLocals int, vars []LocalVar) (*classfile.CodeAttribute, error) {
	for _, v := range vars {
		p.printf("    .var %d is %s %s\n", v.Slot, v.Name, v.Descriptor)
	}
	p.printf("    .limit stack %d\n    .limit locals %d\n", p.maxDepth, maxLocals)
	return nil, p.err
}

func arrayTypeName(code int) string {
	switch code {
	case classfile.ArrayTypeBoolean:
		return "boolean"
	case classfile.ArrayTypeChar:
		return "char"
	case classfile.ArrayTypeFloat:
		return "float"
	case classfile.ArrayTypeDouble:
		return "double"
	case classfile.ArrayTypeByte:
		return "byte"
	case classfile.ArrayTypeShort:
		return "short"
	case classfile.ArrayTypeInt:
		return "int"
	case classfile.ArrayTypeLong:
		return "long"
	}
	return strconv.Itoa(code)
}
