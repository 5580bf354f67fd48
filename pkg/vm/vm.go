// Package vm is a small interpreter for the classes the generator emits. It
// runs class version 49 bytecode against the stub library, whose methods it
// implements natively.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/daimatz/jclassgen/pkg/loader"
	"github.com/daimatz/jclassgen/pkg/native"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("jclassgen.vm")

// maxFrameDepth is the maximum number of nested method calls.
const maxFrameDepth = 1024

// VM is the virtual machine that executes Java bytecode. A VM is not safe
// for concurrent use.
type VM struct {
	Loader     loader.ClassLoader
	Stdout     io.Writer
	Stderr     io.Writer
	classes    map[string]*Class
	boxes      map[*native.Integer]*Object
	frameDepth int
	nextHash   int32
}

// New creates a VM loading classes through l.
func New(l loader.ClassLoader) *VM {
	return &VM{
		Loader:  l,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		classes: make(map[string]*Class),
		boxes:   make(map[*native.Integer]*Object),
	}
}

// ExecError reports a failure that is not a Java exception: malformed code,
// a missing class or an unimplemented native.
type ExecError struct {
	Method string
	PC     int
	Err    error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s at pc %d: %s", e.Method, e.PC, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Execute runs public static void main(String[]) of class with an empty
// argument array.
func (vm *VM) Execute(class string, args ...string) error {
	argv := newArray("[Ljava/lang/String;", len(args))
	for i, a := range args {
		argv.Elements[i] = RefValue(a)
	}
	_, err := vm.Invoke(class, "main", "([Ljava/lang/String;)V", RefValue(argv))
	return err
}

// Invoke calls a method directly. For an instance method args[0] is the
// receiver and the call dispatches on its class. A Java exception escaping
// the method is returned as a *JavaException.
func (vm *VM) Invoke(class, name, desc string, args ...Value) (ret Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s.%s%s: %v", class, name, desc, r)
		}
	}()
	c, err := vm.Class(class)
	if err != nil {
		return Value{}, err
	}
	if err := vm.initClass(c); err != nil {
		return Value{}, err
	}
	m := c.lookup(name, desc)
	if m == nil {
		return Value{}, fmt.Errorf("method %s.%s%s not found", class, name, desc)
	}
	if len(args) != m.argCount() {
		return Value{}, fmt.Errorf("%s takes %d arguments, got %d", m, m.argCount(), len(args))
	}
	if !m.IsStatic() {
		if args[0].IsNull() {
			return Value{}, vm.throw(npe, "")
		}
		if m, err = vm.virtual(args[0].Ref, name, desc); err != nil {
			return Value{}, err
		}
	}
	return vm.call(m, args)
}

// Construct allocates an instance of class and runs the constructor with
// descriptor desc.
func (vm *VM) Construct(class, desc string, args ...Value) (Value, error) {
	c, err := vm.Class(class)
	if err != nil {
		return Value{}, err
	}
	if err := vm.initClass(c); err != nil {
		return Value{}, err
	}
	obj := vm.newObject(c)
	ctor := c.declared("<init>", desc)
	if ctor == nil {
		return Value{}, fmt.Errorf("constructor %s%s not found", class, desc)
	}
	if _, err := vm.call(ctor, append([]Value{RefValue(obj)}, args...)); err != nil {
		return Value{}, err
	}
	return RefValue(obj), nil
}

func (vm *VM) newObject(c *Class) *Object {
	vm.nextHash++
	obj := &Object{Class: c, Fields: make(map[string]Value), hash: vm.nextHash*0x61c88647 + 0x1234567}
	for k := c; k != nil; k = k.Super {
		for _, f := range k.File.Fields {
			if !f.AccessFlags.IsStatic() {
				obj.Fields[fieldKey(k, f.Name)] = zeroValue(f.Descriptor)
			}
		}
	}
	return obj
}

// virtual selects the implementation of name+desc for receiver ref.
func (vm *VM) virtual(ref interface{}, name, desc string) (*Method, error) {
	c, err := vm.classOf(ref)
	if err != nil {
		return nil, err
	}
	m := c.dispatch(name, desc)
	if m == nil {
		return nil, fmt.Errorf("no implementation of %s%s in %s", name, desc, c.Name)
	}
	return m, nil
}

// call runs m with args laid out as for NativeMethod.
func (vm *VM) call(m *Method, args []Value) (Value, error) {
	if m.native != nil {
		return m.native(vm, args)
	}
	if m.Info.AccessFlags.IsNative() {
		return Value{}, fmt.Errorf("native method %s is not implemented", m)
	}
	if m.Info.Code == nil {
		return Value{}, fmt.Errorf("method %s has no Code attribute", m)
	}
	return vm.executeMethod(m, args)
}

// executeMethod executes a method with the given arguments and returns its return value.
func (vm *VM) executeMethod(m *Method, args []Value) (Value, error) {
	vm.frameDepth++
	defer func() { vm.frameDepth-- }()
	if vm.frameDepth > maxFrameDepth {
		return Value{}, fmt.Errorf("stack overflow: frame depth exceeded %d", maxFrameDepth)
	}

	code := m.Info.Code
	frame := NewFrame(code.MaxLocals, code.MaxStack, code.Code, m)
	slot := 0
	for _, arg := range args {
		frame.SetLocal(slot, arg)
		slot++
		if arg.IsWide() {
			slot++
		}
	}

	for frame.PC < len(frame.Code) {
		start := frame.PC
		opcode := frame.ReadU8()

		retVal, hasReturn, err := vm.executeInstruction(frame, opcode)
		if err != nil {
			var jex *JavaException
			if !errors.As(err, &jex) {
				var exec *ExecError
				if errors.As(err, &exec) {
					return Value{}, err
				}
				return Value{}, &ExecError{Method: m.String(), PC: start, Err: err}
			}
			handler, ok, herr := vm.findHandler(m, start, jex)
			if herr != nil {
				return Value{}, &ExecError{Method: m.String(), PC: start, Err: herr}
			}
			if !ok {
				return Value{}, err
			}
			frame.SP = 0
			frame.Push(RefValue(jex.Object))
			frame.PC = handler
			continue
		}
		if hasReturn {
			return retVal, nil
		}
	}
	return Value{}, &ExecError{Method: m.String(), PC: frame.PC, Err: errors.New("fell off the end of the code")}
}
