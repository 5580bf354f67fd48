package vm

import (
	"fmt"
	"strings"

	"github.com/daimatz/jclassgen/pkg/classfile"
)

// executeLdc handles ldc, ldc_w and ldc2_w.
func (vm *VM) executeLdc(frame *Frame, index uint16) error {
	pool := frame.Method.Class.File.ConstantPool
	if int(index) >= len(pool) || pool[index] == nil {
		return fmt.Errorf("ldc: invalid constant pool index %d", index)
	}

	switch c := pool[index].(type) {
	case *classfile.ConstantInteger:
		frame.Push(IntValue(c.Value))
	case *classfile.ConstantFloat:
		frame.Push(FloatValue(c.Value))
	case *classfile.ConstantLong:
		frame.Push(LongValue(c.Value))
	case *classfile.ConstantDouble:
		frame.Push(DoubleValue(c.Value))
	case *classfile.ConstantString:
		str, err := classfile.GetUtf8(pool, c.StringIndex)
		if err != nil {
			return fmt.Errorf("ldc: resolving string: %w", err)
		}
		frame.Push(RefValue(str))
	default:
		return fmt.Errorf("ldc: unsupported constant pool entry type at index %d (tag=%d)", index, c.Tag())
	}
	return nil
}

// memberRef resolves the operand of a field or method instruction.
func (vm *VM) memberRef(frame *Frame) (*classfile.MemberRef, error) {
	return classfile.ResolveMemberRef(frame.Method.Class.File.ConstantPool, frame.ReadU16())
}

// staticField resolves a static field and initializes its declaring class.
func (vm *VM) staticField(ref *classfile.MemberRef) (*Class, error) {
	c, err := vm.Class(ref.ClassName)
	if err != nil {
		return nil, err
	}
	owner := c.fieldOwner(ref.Name, true)
	if owner == nil {
		return nil, fmt.Errorf("static field %s.%s not found", ref.ClassName, ref.Name)
	}
	return owner, vm.initClass(owner)
}

// instanceField resolves an instance field to its object key.
func (vm *VM) instanceField(ref *classfile.MemberRef) (string, error) {
	c, err := vm.Class(ref.ClassName)
	if err != nil {
		return "", err
	}
	owner := c.fieldOwner(ref.Name, false)
	if owner == nil {
		return "", fmt.Errorf("field %s.%s not found", ref.ClassName, ref.Name)
	}
	return fieldKey(owner, ref.Name), nil
}

func popField(frame *Frame, desc string) Value {
	if isWideKind(desc[0]) {
		return frame.PopWide()
	}
	return frame.Pop()
}

// executeGetstatic handles the getstatic instruction.
func (vm *VM) executeGetstatic(frame *Frame) error {
	ref, err := vm.memberRef(frame)
	if err != nil {
		return fmt.Errorf("getstatic: %w", err)
	}
	owner, err := vm.staticField(ref)
	if err != nil {
		return fmt.Errorf("getstatic: %w", err)
	}
	frame.Push(owner.Statics[ref.Name])
	return nil
}

// executePutstatic handles the putstatic instruction.
func (vm *VM) executePutstatic(frame *Frame) error {
	ref, err := vm.memberRef(frame)
	if err != nil {
		return fmt.Errorf("putstatic: %w", err)
	}
	owner, err := vm.staticField(ref)
	if err != nil {
		return fmt.Errorf("putstatic: %w", err)
	}
	owner.Statics[ref.Name] = popField(frame, ref.Descriptor)
	return nil
}

func (vm *VM) receiver(v Value) (*Object, error) {
	if v.IsNull() {
		return nil, vm.throw(npe, "")
	}
	obj, ok := v.Ref.(*Object)
	if !ok {
		return nil, fmt.Errorf("receiver %v is not an object", v)
	}
	return obj, nil
}

// executeGetfield handles the getfield instruction.
func (vm *VM) executeGetfield(frame *Frame) error {
	ref, err := vm.memberRef(frame)
	if err != nil {
		return fmt.Errorf("getfield: %w", err)
	}
	key, err := vm.instanceField(ref)
	if err != nil {
		return fmt.Errorf("getfield: %w", err)
	}
	obj, err := vm.receiver(frame.Pop())
	if err != nil {
		return err
	}
	val, ok := obj.Fields[key]
	if !ok {
		return fmt.Errorf("getfield: %s has no field %s", obj.Class.Name, key)
	}
	frame.Push(val)
	return nil
}

// executePutfield handles the putfield instruction.
func (vm *VM) executePutfield(frame *Frame) error {
	ref, err := vm.memberRef(frame)
	if err != nil {
		return fmt.Errorf("putfield: %w", err)
	}
	key, err := vm.instanceField(ref)
	if err != nil {
		return fmt.Errorf("putfield: %w", err)
	}
	value := popField(frame, ref.Descriptor)
	obj, err := vm.receiver(frame.Pop())
	if err != nil {
		return err
	}
	obj.Fields[key] = value
	return nil
}

// resolveMethod finds the method a Methodref or InterfaceMethodref names.
func (vm *VM) resolveMethod(ref *classfile.MemberRef) (*Method, error) {
	c, err := vm.Class(ref.ClassName)
	if err != nil {
		return nil, err
	}
	m := c.lookup(ref.Name, ref.Descriptor)
	if m == nil {
		return nil, fmt.Errorf("method %s.%s%s not found", ref.ClassName, ref.Name, ref.Descriptor)
	}
	return m, nil
}

// invoke calls m with arguments popped from frame and pushes the result.
func (vm *VM) invoke(frame *Frame, m *Method, args []Value) error {
	retVal, err := vm.call(m, args)
	if err != nil {
		return err
	}
	if m.ret != 'V' {
		frame.Push(retVal)
	}
	return nil
}

// executeInvokevirtual handles invokevirtual and invokeinterface.
func (vm *VM) executeInvokevirtual(frame *Frame, iface bool) error {
	ref, err := vm.memberRef(frame)
	if err != nil {
		return fmt.Errorf("invoke: %w", err)
	}
	if iface {
		frame.PC += 2 // count, 0
	}
	resolved, err := vm.resolveMethod(ref)
	if err != nil {
		return err
	}
	if resolved.IsStatic() {
		return fmt.Errorf("invoke: %s is static", resolved)
	}
	args := resolved.popArgs(frame)
	if args[0].IsNull() {
		return vm.throw(npe, "")
	}
	m, err := vm.virtual(args[0].Ref, ref.Name, ref.Descriptor)
	if err != nil {
		return err
	}
	return vm.invoke(frame, m, args)
}

// executeInvokespecial handles constructors, private methods and super
// calls. The resolved method runs without virtual dispatch.
func (vm *VM) executeInvokespecial(frame *Frame) error {
	ref, err := vm.memberRef(frame)
	if err != nil {
		return fmt.Errorf("invokespecial: %w", err)
	}
	m, err := vm.resolveMethod(ref)
	if err != nil {
		return err
	}
	if m.IsAbstract() {
		return fmt.Errorf("invokespecial: %s is abstract", m)
	}
	args := m.popArgs(frame)
	if args[0].IsNull() {
		return vm.throw(npe, "")
	}
	return vm.invoke(frame, m, args)
}

// executeInvokestatic handles the invokestatic instruction.
func (vm *VM) executeInvokestatic(frame *Frame) error {
	ref, err := vm.memberRef(frame)
	if err != nil {
		return fmt.Errorf("invokestatic: %w", err)
	}
	m, err := vm.resolveMethod(ref)
	if err != nil {
		return err
	}
	if !m.IsStatic() {
		return fmt.Errorf("invokestatic: %s is not static", m)
	}
	if err := vm.initClass(m.Class); err != nil {
		return err
	}
	return vm.invoke(frame, m, m.popArgs(frame))
}

// executeNew handles the new instruction.
func (vm *VM) executeNew(frame *Frame) error {
	name, err := classfile.GetClassName(frame.Method.Class.File.ConstantPool, frame.ReadU16())
	if err != nil {
		return fmt.Errorf("new: %w", err)
	}
	c, err := vm.Class(name)
	if err != nil {
		return fmt.Errorf("new: %w", err)
	}
	if c.IsInterface() || c.File.AccessFlags.IsAbstract() {
		return fmt.Errorf("new: %s is abstract", name)
	}
	if err := vm.initClass(c); err != nil {
		return err
	}
	frame.Push(RefValue(vm.newObject(c)))
	return nil
}

var primitiveArrays = map[uint8]string{
	classfile.ArrayTypeBoolean: "[Z",
	classfile.ArrayTypeChar:    "[C",
	classfile.ArrayTypeFloat:   "[F",
	classfile.ArrayTypeDouble:  "[D",
	classfile.ArrayTypeByte:    "[B",
	classfile.ArrayTypeShort:   "[S",
	classfile.ArrayTypeInt:     "[I",
	classfile.ArrayTypeLong:    "[J",
}

func (vm *VM) arrayLength(frame *Frame) (int, error) {
	n := frame.PopInt()
	if n < 0 {
		return 0, vm.throwf(negativeSize, "%d", n)
	}
	return int(n), nil
}

// executeNewarray handles the newarray instruction.
func (vm *VM) executeNewarray(frame *Frame) error {
	atype := frame.ReadU8()
	desc, ok := primitiveArrays[atype]
	if !ok {
		return fmt.Errorf("newarray: invalid array type %d", atype)
	}
	n, err := vm.arrayLength(frame)
	if err != nil {
		return err
	}
	frame.Push(RefValue(newArray(desc, n)))
	return nil
}

// componentDesc turns a constant-pool class name into a field descriptor.
func componentDesc(name string) string {
	if strings.HasPrefix(name, "[") {
		return name
	}
	return "L" + name + ";"
}

// executeAnewarray handles the anewarray instruction.
func (vm *VM) executeAnewarray(frame *Frame) error {
	name, err := classfile.GetClassName(frame.Method.Class.File.ConstantPool, frame.ReadU16())
	if err != nil {
		return fmt.Errorf("anewarray: %w", err)
	}
	n, err := vm.arrayLength(frame)
	if err != nil {
		return err
	}
	frame.Push(RefValue(newArray("["+componentDesc(name), n)))
	return nil
}

// executeMultianewarray handles the multianewarray instruction.
func (vm *VM) executeMultianewarray(frame *Frame) error {
	desc, err := classfile.GetClassName(frame.Method.Class.File.ConstantPool, frame.ReadU16())
	if err != nil {
		return fmt.Errorf("multianewarray: %w", err)
	}
	dims := make([]int, frame.ReadU8())
	for i := len(dims) - 1; i >= 0; i-- {
		if dims[i], err = vm.arrayLength(frame); err != nil {
			return err
		}
	}
	frame.Push(RefValue(multiArray(desc, dims)))
	return nil
}

func multiArray(desc string, dims []int) *Array {
	arr := newArray(desc, dims[0])
	if len(dims) > 1 {
		for i := range arr.Elements {
			arr.Elements[i] = RefValue(multiArray(desc[1:], dims[1:]))
		}
	}
	return arr
}

// arrayOperands pops an index and array reference and checks both.
func (vm *VM) arrayOperands(frame *Frame) (*Array, int32, error) {
	index := frame.PopInt()
	ref := frame.Pop()
	if ref.IsNull() {
		return nil, 0, vm.throw(npe, "")
	}
	arr, ok := ref.Ref.(*Array)
	if !ok {
		return nil, 0, fmt.Errorf("array access: %v is not an array", ref)
	}
	if index < 0 || int(index) >= len(arr.Elements) {
		return nil, 0, vm.throwf(arrayIndex, "Index %d out of bounds for length %d", index, len(arr.Elements))
	}
	return arr, index, nil
}

// executeArrayLoad handles iaload through saload.
func (vm *VM) executeArrayLoad(frame *Frame) error {
	arr, index, err := vm.arrayOperands(frame)
	if err != nil {
		return err
	}
	frame.Push(arr.Elements[index])
	return nil
}

// executeArrayStore handles iastore through sastore, narrowing values
// stored into boolean, byte, char and short arrays.
func (vm *VM) executeArrayStore(frame *Frame, opcode byte) error {
	var value Value
	if opcode == classfile.OpLastore || opcode == classfile.OpDastore {
		value = frame.PopWide()
	} else {
		value = frame.Pop()
	}
	arr, index, err := vm.arrayOperands(frame)
	if err != nil {
		return err
	}
	switch arr.Desc {
	case "[Z":
		value.Int &= 1
	case "[B":
		value.Int = int32(int8(value.Int))
	case "[C":
		value.Int = int32(uint16(value.Int))
	case "[S":
		value.Int = int32(int16(value.Int))
	}
	if opcode == classfile.OpAastore && !value.IsNull() {
		elem := arr.ElemDesc()
		if elem[0] == 'L' {
			elem = elem[1 : len(elem)-1]
		}
		ok, err := vm.isInstance(value.Ref, elem)
		if err != nil {
			return err
		}
		if !ok {
			c, _ := vm.classOf(value.Ref)
			return vm.throw(arrayStore, javaName(c.Name))
		}
	}
	arr.Elements[index] = value
	return nil
}

// executeTypeCheck handles checkcast and instanceof.
func (vm *VM) executeTypeCheck(frame *Frame, cast bool) error {
	name, err := classfile.GetClassName(frame.Method.Class.File.ConstantPool, frame.ReadU16())
	if err != nil {
		return err
	}
	ref := frame.Pop()
	if ref.IsNull() {
		if cast {
			frame.Push(ref)
		} else {
			frame.Push(IntValue(0))
		}
		return nil
	}
	ok, err := vm.isInstance(ref.Ref, name)
	if err != nil {
		return err
	}
	if !cast {
		frame.Push(BoolValue(ok))
		return nil
	}
	if !ok {
		from := "array"
		if c, err := vm.classOf(ref.Ref); err == nil {
			from = javaName(c.Name)
		}
		if arr, isArr := ref.Ref.(*Array); isArr {
			from = arr.Desc
		}
		return vm.throwf(classCast, "class %s cannot be cast to class %s", from, javaName(name))
	}
	frame.Push(ref)
	return nil
}
