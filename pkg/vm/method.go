package vm

import (
	"fmt"

	"github.com/daimatz/jclassgen/pkg/classfile"
)

// NativeMethod implements a library method in Go. args holds one Value per
// parameter, preceded by the receiver for instance methods.
type NativeMethod func(vm *VM, args []Value) (Value, error)

// Method is a linked method of a loaded class.
type Method struct {
	Class *Class
	Info  *classfile.MethodInfo
	// params holds one descriptor kind per parameter, 'L' for any reference.
	params []byte
	ret    byte
	native NativeMethod
}

func newMethod(c *Class, info *classfile.MethodInfo) (*Method, error) {
	params, ret, err := parseDescriptor(info.Descriptor)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", c.Name, info.Name, err)
	}
	return &Method{Class: c, Info: info, params: params, ret: ret}, nil
}

func (m *Method) Name() string       { return m.Info.Name }
func (m *Method) Descriptor() string { return m.Info.Descriptor }
func (m *Method) IsStatic() bool     { return m.Info.AccessFlags.IsStatic() }
func (m *Method) IsAbstract() bool   { return m.Info.AccessFlags.IsAbstract() }

// argCount is the number of Values the method takes, receiver included.
func (m *Method) argCount() int {
	if m.IsStatic() {
		return len(m.params)
	}
	return len(m.params) + 1
}

func (m *Method) String() string {
	return m.Class.Name + "." + m.Info.Name + m.Info.Descriptor
}

// popArgs pops the arguments of m, and the receiver unless m is static,
// from frame.
func (m *Method) popArgs(frame *Frame) []Value {
	args := make([]Value, m.argCount())
	for i := len(m.params) - 1; i >= 0; i-- {
		v := frame.Pop()
		if isWideKind(m.params[i]) {
			v = frame.Pop()
		}
		args[len(args)-len(m.params)+i] = v
	}
	if !m.IsStatic() {
		args[0] = frame.Pop()
	}
	return args
}

func isWideKind(k byte) bool { return k == 'J' || k == 'D' }

// parseDescriptor splits a method descriptor into one kind per parameter
// and the return kind.
func parseDescriptor(desc string) ([]byte, byte, error) {
	if len(desc) < 3 || desc[0] != '(' {
		return nil, 0, fmt.Errorf("invalid method descriptor: %s", desc)
	}
	var params []byte
	i := 1
	for i < len(desc) && desc[i] != ')' {
		kind, next, err := fieldKind(desc, i)
		if err != nil {
			return nil, 0, err
		}
		params = append(params, kind)
		i = next
	}
	if i+1 >= len(desc) {
		return nil, 0, fmt.Errorf("invalid method descriptor: %s", desc)
	}
	if desc[i+1] == 'V' {
		return params, 'V', nil
	}
	ret, next, err := fieldKind(desc, i+1)
	if err != nil {
		return nil, 0, err
	}
	if next != len(desc) {
		return nil, 0, fmt.Errorf("invalid method descriptor: %s", desc)
	}
	return params, ret, nil
}

// fieldKind reads the field descriptor starting at desc[i] and returns its
// kind and the index after it.
func fieldKind(desc string, i int) (byte, int, error) {
	start := i
	for i < len(desc) && desc[i] == '[' {
		i++
	}
	if i >= len(desc) {
		return 0, 0, fmt.Errorf("invalid type descriptor in %s", desc)
	}
	switch desc[i] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		i++
	case 'L':
		for i < len(desc) && desc[i] != ';' {
			i++
		}
		if i == len(desc) {
			return 0, 0, fmt.Errorf("unterminated class name in %s", desc)
		}
		i++
	default:
		return 0, 0, fmt.Errorf("invalid type descriptor char '%c' in %s", desc[i], desc)
	}
	if desc[start] == '[' || desc[start] == 'L' {
		return 'L', i, nil
	}
	return desc[start], i, nil
}
