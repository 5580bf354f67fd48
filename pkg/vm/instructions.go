package vm

import (
	"fmt"
	"math"

	"github.com/daimatz/jclassgen/pkg/classfile"
)

// executeInstruction executes a single bytecode instruction.
// Returns (returnValue, hasReturn, error).
func (vm *VM) executeInstruction(frame *Frame, opcode byte) (Value, bool, error) {
	start := frame.PC - 1
	switch {
	case opcode >= classfile.OpIload && opcode <= classfile.OpAload:
		frame.Push(frame.GetLocal(int(frame.ReadU8())))
		return Value{}, false, nil
	case opcode >= classfile.OpIload0 && opcode <= classfile.OpAload3:
		frame.Push(frame.GetLocal(int(opcode-classfile.OpIload0) % 4))
		return Value{}, false, nil
	case opcode >= classfile.OpIstore && opcode <= classfile.OpAstore:
		vm.store(frame, int(frame.ReadU8()), opcode-classfile.OpIstore)
		return Value{}, false, nil
	case opcode >= classfile.OpIstore0 && opcode <= classfile.OpAstore3:
		vm.store(frame, int(opcode-classfile.OpIstore0)%4, (opcode-classfile.OpIstore0)/4)
		return Value{}, false, nil
	case opcode >= classfile.OpIaload && opcode <= classfile.OpSaload:
		return Value{}, false, vm.executeArrayLoad(frame)
	case opcode >= classfile.OpIastore && opcode <= classfile.OpSastore:
		return Value{}, false, vm.executeArrayStore(frame, opcode)
	case opcode >= classfile.OpIfeq && opcode <= classfile.OpIfle:
		return vm.executeBranch(frame, start, compare(opcode-classfile.OpIfeq, frame.PopInt(), 0))
	case opcode >= classfile.OpIfIcmpeq && opcode <= classfile.OpIfIcmple:
		b, a := frame.PopInt(), frame.PopInt()
		return vm.executeBranch(frame, start, compare(opcode-classfile.OpIfIcmpeq, a, b))
	}

	switch opcode {
	case classfile.OpNop:
		// do nothing

	// --- Constant load instructions ---
	case classfile.OpAconstNull:
		frame.Push(NullValue())
	case classfile.OpIconstM1, classfile.OpIconst0, classfile.OpIconst1, classfile.OpIconst2, classfile.OpIconst3, classfile.OpIconst4, classfile.OpIconst5:
		frame.Push(IntValue(int32(opcode) - classfile.OpIconst0))
	case classfile.OpLconst0, classfile.OpLconst1:
		frame.Push(LongValue(int64(opcode - classfile.OpLconst0)))
	case classfile.OpFconst0, classfile.OpFconst1, classfile.OpFconst2:
		frame.Push(FloatValue(float32(opcode - classfile.OpFconst0)))
	case classfile.OpDconst0, classfile.OpDconst1:
		frame.Push(DoubleValue(float64(opcode - classfile.OpDconst0)))
	case classfile.OpBipush:
		frame.Push(IntValue(int32(frame.ReadI8())))
	case classfile.OpSipush:
		frame.Push(IntValue(int32(frame.ReadI16())))
	case classfile.OpLdc:
		return Value{}, false, vm.executeLdc(frame, uint16(frame.ReadU8()))
	case classfile.OpLdcW, classfile.OpLdc2W:
		return Value{}, false, vm.executeLdc(frame, frame.ReadU16())

	// --- Stack manipulation, on raw words ---
	case classfile.OpPop:
		frame.Pop()
	case classfile.OpPop2:
		frame.Pop()
		frame.Pop()
	case classfile.OpDup:
		frame.pushWord(frame.Peek(0))
	case classfile.OpDupX1:
		v1, v2 := frame.Pop(), frame.Pop()
		pushWords(frame, v1, v2, v1)
	case classfile.OpDupX2:
		v1, v2, v3 := frame.Pop(), frame.Pop(), frame.Pop()
		pushWords(frame, v1, v3, v2, v1)
	case classfile.OpDup2:
		v1, v2 := frame.Peek(0), frame.Peek(1)
		pushWords(frame, v2, v1)
	case classfile.OpDup2X1:
		v1, v2, v3 := frame.Pop(), frame.Pop(), frame.Pop()
		pushWords(frame, v2, v1, v3, v2, v1)
	case classfile.OpDup2X2:
		v1, v2, v3, v4 := frame.Pop(), frame.Pop(), frame.Pop(), frame.Pop()
		pushWords(frame, v2, v1, v4, v3, v2, v1)
	case classfile.OpSwap:
		v1, v2 := frame.Pop(), frame.Pop()
		pushWords(frame, v1, v2)

	// --- Arithmetic ---
	case classfile.OpIadd:
		b, a := frame.PopInt(), frame.PopInt()
		frame.Push(IntValue(a + b))
	case classfile.OpLadd:
		b, a := frame.PopLong(), frame.PopLong()
		frame.Push(LongValue(a + b))
	case classfile.OpFadd:
		b, a := frame.PopFloat(), frame.PopFloat()
		frame.Push(FloatValue(a + b))
	case classfile.OpDadd:
		b, a := frame.PopDouble(), frame.PopDouble()
		frame.Push(DoubleValue(a + b))
	case classfile.OpIsub:
		b, a := frame.PopInt(), frame.PopInt()
		frame.Push(IntValue(a - b))
	case classfile.OpLsub:
		b, a := frame.PopLong(), frame.PopLong()
		frame.Push(LongValue(a - b))
	case classfile.OpFsub:
		b, a := frame.PopFloat(), frame.PopFloat()
		frame.Push(FloatValue(a - b))
	case classfile.OpDsub:
		b, a := frame.PopDouble(), frame.PopDouble()
		frame.Push(DoubleValue(a - b))
	case classfile.OpImul:
		b, a := frame.PopInt(), frame.PopInt()
		frame.Push(IntValue(a * b))
	case classfile.OpLmul:
		b, a := frame.PopLong(), frame.PopLong()
		frame.Push(LongValue(a * b))
	case classfile.OpFmul:
		b, a := frame.PopFloat(), frame.PopFloat()
		frame.Push(FloatValue(a * b))
	case classfile.OpDmul:
		b, a := frame.PopDouble(), frame.PopDouble()
		frame.Push(DoubleValue(a * b))
	case classfile.OpIdiv, classfile.OpIrem:
		b, a := frame.PopInt(), frame.PopInt()
		if b == 0 {
			return Value{}, false, vm.throw(arithmetic, "/ by zero")
		}
		if opcode == classfile.OpIdiv {
			frame.Push(IntValue(a / b))
		} else {
			frame.Push(IntValue(a % b))
		}
	case classfile.OpLdiv, classfile.OpLrem:
		b, a := frame.PopLong(), frame.PopLong()
		if b == 0 {
			return Value{}, false, vm.throw(arithmetic, "/ by zero")
		}
		if opcode == classfile.OpLdiv {
			frame.Push(LongValue(a / b))
		} else {
			frame.Push(LongValue(a % b))
		}
	case classfile.OpFdiv:
		b, a := frame.PopFloat(), frame.PopFloat()
		frame.Push(FloatValue(a / b))
	case classfile.OpDdiv:
		b, a := frame.PopDouble(), frame.PopDouble()
		frame.Push(DoubleValue(a / b))
	case classfile.OpFrem:
		b, a := frame.PopFloat(), frame.PopFloat()
		frame.Push(FloatValue(float32(math.Mod(float64(a), float64(b)))))
	case classfile.OpDrem:
		b, a := frame.PopDouble(), frame.PopDouble()
		frame.Push(DoubleValue(math.Mod(a, b)))
	case classfile.OpIneg:
		frame.Push(IntValue(-frame.PopInt()))
	case classfile.OpLneg:
		frame.Push(LongValue(-frame.PopLong()))
	case classfile.OpFneg:
		frame.Push(FloatValue(-frame.PopFloat()))
	case classfile.OpDneg:
		frame.Push(DoubleValue(-frame.PopDouble()))

	// --- Shifts and bitwise ---
	case classfile.OpIshl:
		s, a := frame.PopInt(), frame.PopInt()
		frame.Push(IntValue(a << (s & 31)))
	case classfile.OpIshr:
		s, a := frame.PopInt(), frame.PopInt()
		frame.Push(IntValue(a >> (s & 31)))
	case classfile.OpIushr:
		s, a := frame.PopInt(), frame.PopInt()
		frame.Push(IntValue(int32(uint32(a) >> (s & 31))))
	case classfile.OpLshl:
		s, a := frame.PopInt(), frame.PopLong()
		frame.Push(LongValue(a << (s & 63)))
	case classfile.OpLshr:
		s, a := frame.PopInt(), frame.PopLong()
		frame.Push(LongValue(a >> (s & 63)))
	case classfile.OpLushr:
		s, a := frame.PopInt(), frame.PopLong()
		frame.Push(LongValue(int64(uint64(a) >> (s & 63))))
	case classfile.OpIand:
		b, a := frame.PopInt(), frame.PopInt()
		frame.Push(IntValue(a & b))
	case classfile.OpLand:
		b, a := frame.PopLong(), frame.PopLong()
		frame.Push(LongValue(a & b))
	case classfile.OpIor:
		b, a := frame.PopInt(), frame.PopInt()
		frame.Push(IntValue(a | b))
	case classfile.OpLor:
		b, a := frame.PopLong(), frame.PopLong()
		frame.Push(LongValue(a | b))
	case classfile.OpIxor:
		b, a := frame.PopInt(), frame.PopInt()
		frame.Push(IntValue(a ^ b))
	case classfile.OpLxor:
		b, a := frame.PopLong(), frame.PopLong()
		frame.Push(LongValue(a ^ b))
	case classfile.OpIinc:
		index := int(frame.ReadU8())
		delta := int32(frame.ReadI8())
		frame.SetLocal(index, IntValue(frame.GetLocal(index).Int+delta))

	// --- Conversions ---
	case classfile.OpI2l:
		frame.Push(LongValue(int64(frame.PopInt())))
	case classfile.OpI2f:
		frame.Push(FloatValue(float32(frame.PopInt())))
	case classfile.OpI2d:
		frame.Push(DoubleValue(float64(frame.PopInt())))
	case classfile.OpL2i:
		frame.Push(IntValue(int32(frame.PopLong())))
	case classfile.OpL2f:
		frame.Push(FloatValue(float32(frame.PopLong())))
	case classfile.OpL2d:
		frame.Push(DoubleValue(float64(frame.PopLong())))
	case classfile.OpF2i:
		frame.Push(IntValue(toInt32(float64(frame.PopFloat()))))
	case classfile.OpF2l:
		frame.Push(LongValue(toInt64(float64(frame.PopFloat()))))
	case classfile.OpF2d:
		frame.Push(DoubleValue(float64(frame.PopFloat())))
	case classfile.OpD2i:
		frame.Push(IntValue(toInt32(frame.PopDouble())))
	case classfile.OpD2l:
		frame.Push(LongValue(toInt64(frame.PopDouble())))
	case classfile.OpD2f:
		frame.Push(FloatValue(float32(frame.PopDouble())))
	case classfile.OpI2b:
		frame.Push(IntValue(int32(int8(frame.PopInt()))))
	case classfile.OpI2c:
		frame.Push(IntValue(int32(uint16(frame.PopInt()))))
	case classfile.OpI2s:
		frame.Push(IntValue(int32(int16(frame.PopInt()))))

	// --- Comparisons ---
	case classfile.OpLcmp:
		b, a := frame.PopLong(), frame.PopLong()
		frame.Push(IntValue(threeWay(a < b, a > b)))
	case classfile.OpFcmpl, classfile.OpFcmpg:
		b, a := float64(frame.PopFloat()), float64(frame.PopFloat())
		frame.Push(IntValue(fcmp(a, b, opcode == classfile.OpFcmpg)))
	case classfile.OpDcmpl, classfile.OpDcmpg:
		b, a := frame.PopDouble(), frame.PopDouble()
		frame.Push(IntValue(fcmp(a, b, opcode == classfile.OpDcmpg)))

	// --- Control transfer ---
	case classfile.OpIfAcmpeq, classfile.OpIfAcmpne:
		b, a := frame.Pop(), frame.Pop()
		return vm.executeBranch(frame, start, sameRef(a, b) == (opcode == classfile.OpIfAcmpeq))
	case classfile.OpIfnull, classfile.OpIfnonnull:
		v := frame.Pop()
		return vm.executeBranch(frame, start, v.IsNull() == (opcode == classfile.OpIfnull))
	case classfile.OpGoto:
		return vm.executeBranch(frame, start, true)
	case classfile.OpGotoW:
		frame.PC = start + int(frame.ReadI32())
	case classfile.OpJsr:
		offset := int(frame.ReadI16())
		frame.Push(Value{Type: TypeReturnAddress, Int: int32(frame.PC)})
		frame.PC = start + offset
	case classfile.OpJsrW:
		offset := int(frame.ReadI32())
		frame.Push(Value{Type: TypeReturnAddress, Int: int32(frame.PC)})
		frame.PC = start + offset
	case classfile.OpRet:
		return Value{}, false, vm.executeRet(frame, int(frame.ReadU8()))
	case classfile.OpTableswitch:
		vm.executeTableswitch(frame, start)
	case classfile.OpLookupswitch:
		vm.executeLookupswitch(frame, start)

	// --- Returns ---
	case classfile.OpIreturn, classfile.OpFreturn, classfile.OpAreturn:
		return frame.Pop(), true, nil
	case classfile.OpLreturn, classfile.OpDreturn:
		return frame.PopWide(), true, nil
	case classfile.OpReturn:
		return Value{}, true, nil

	// --- Fields, calls and objects ---
	case classfile.OpGetstatic:
		return Value{}, false, vm.executeGetstatic(frame)
	case classfile.OpPutstatic:
		return Value{}, false, vm.executePutstatic(frame)
	case classfile.OpGetfield:
		return Value{}, false, vm.executeGetfield(frame)
	case classfile.OpPutfield:
		return Value{}, false, vm.executePutfield(frame)
	case classfile.OpInvokevirtual, classfile.OpInvokeinterface:
		return Value{}, false, vm.executeInvokevirtual(frame, opcode == classfile.OpInvokeinterface)
	case classfile.OpInvokespecial:
		return Value{}, false, vm.executeInvokespecial(frame)
	case classfile.OpInvokestatic:
		return Value{}, false, vm.executeInvokestatic(frame)
	case classfile.OpNew:
		return Value{}, false, vm.executeNew(frame)
	case classfile.OpNewarray:
		return Value{}, false, vm.executeNewarray(frame)
	case classfile.OpAnewarray:
		return Value{}, false, vm.executeAnewarray(frame)
	case classfile.OpMultianewarray:
		return Value{}, false, vm.executeMultianewarray(frame)
	case classfile.OpArraylength:
		ref := frame.Pop()
		if ref.IsNull() {
			return Value{}, false, vm.throw(npe, "")
		}
		arr, ok := ref.Ref.(*Array)
		if !ok {
			return Value{}, false, fmt.Errorf("arraylength: reference is not an array")
		}
		frame.Push(IntValue(int32(len(arr.Elements))))
	case classfile.OpAthrow:
		ref := frame.Pop()
		if ref.IsNull() {
			return Value{}, false, vm.throw(npe, "")
		}
		obj, ok := ref.Ref.(*Object)
		if !ok {
			return Value{}, false, fmt.Errorf("athrow: %v is not a Throwable", ref)
		}
		return Value{}, false, &JavaException{Object: obj}
	case classfile.OpCheckcast, classfile.OpInstanceof:
		return Value{}, false, vm.executeTypeCheck(frame, opcode == classfile.OpCheckcast)
	case classfile.OpMonitorenter, classfile.OpMonitorexit:
		if frame.Pop().IsNull() {
			return Value{}, false, vm.throw(npe, "")
		}
	case classfile.OpWide:
		return vm.executeWide(frame)

	default:
		return Value{}, false, fmt.Errorf("unsupported opcode %s (0x%02X)", classfile.OpcodeName(opcode), opcode)
	}
	return Value{}, false, nil
}

func pushWords(frame *Frame, words ...Value) {
	for _, w := range words {
		frame.pushWord(w)
	}
}

// store pops a value of kind k (0 int, 1 long, 2 float, 3 double, 4
// reference) into local index.
func (vm *VM) store(frame *Frame, index int, k byte) {
	if k == 1 || k == 3 {
		frame.SetLocal(index, frame.PopWide())
		return
	}
	frame.SetLocal(index, frame.Pop())
}

// compare evaluates the condition of the branch family member cond (eq, ne,
// lt, ge, gt, le).
func compare(cond byte, a, b int32) bool {
	switch cond {
	case 0:
		return a == b
	case 1:
		return a != b
	case 2:
		return a < b
	case 3:
		return a >= b
	case 4:
		return a > b
	}
	return a <= b
}

func threeWay(less, greater bool) int32 {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

// fcmp compares floating values; a NaN operand yields 1 for the g variants
// and -1 for the l variants.
func fcmp(a, b float64, nanGreater bool) int32 {
	if math.IsNaN(a) || math.IsNaN(b) {
		if nanGreater {
			return 1
		}
		return -1
	}
	return threeWay(a < b, a > b)
}

// toInt32 converts with Java's saturating rules.
func toInt32(v float64) int32 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

func toInt64(v float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	}
	return int64(v)
}

func sameRef(a, b Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	return a.Ref == b.Ref
}

// executeBranch reads a 16-bit offset and jumps relative to start when taken.
func (vm *VM) executeBranch(frame *Frame, start int, taken bool) (Value, bool, error) {
	offset := int(frame.ReadI16())
	if taken {
		frame.PC = start + offset
	}
	return Value{}, false, nil
}

func (vm *VM) executeRet(frame *Frame, index int) error {
	addr := frame.GetLocal(index)
	if addr.Type != TypeReturnAddress {
		return fmt.Errorf("ret: local %d holds %v, not a return address", index, addr)
	}
	frame.PC = int(addr.Int)
	return nil
}

// align skips the padding after a switch opcode.
func align(frame *Frame) {
	frame.PC = (frame.PC + 3) &^ 3
}

func (vm *VM) executeTableswitch(frame *Frame, start int) {
	align(frame)
	dflt := frame.ReadI32()
	low := frame.ReadI32()
	high := frame.ReadI32()
	key := frame.PopInt()
	if key < low || key > high {
		frame.PC = start + int(dflt)
		return
	}
	frame.PC += int(key-low) * 4
	frame.PC = start + int(frame.ReadI32())
}

func (vm *VM) executeLookupswitch(frame *Frame, start int) {
	align(frame)
	dflt := frame.ReadI32()
	n := int(frame.ReadI32())
	key := frame.PopInt()
	for i := 0; i < n; i++ {
		match := frame.ReadI32()
		offset := frame.ReadI32()
		if match == key {
			frame.PC = start + int(offset)
			return
		}
	}
	frame.PC = start + int(dflt)
}

// executeWide handles the wide prefix: a 16-bit local index, and for iinc a
// 16-bit increment.
func (vm *VM) executeWide(frame *Frame) (Value, bool, error) {
	opcode := frame.ReadU8()
	index := int(frame.ReadU16())
	switch {
	case opcode >= classfile.OpIload && opcode <= classfile.OpAload:
		frame.Push(frame.GetLocal(index))
	case opcode >= classfile.OpIstore && opcode <= classfile.OpAstore:
		vm.store(frame, index, opcode-classfile.OpIstore)
	case opcode == classfile.OpIinc:
		delta := int32(frame.ReadI16())
		frame.SetLocal(index, IntValue(frame.GetLocal(index).Int+delta))
	case opcode == classfile.OpRet:
		return Value{}, false, vm.executeRet(frame, index)
	default:
		return Value{}, false, fmt.Errorf("wide: unsupported opcode %s", classfile.OpcodeName(opcode))
	}
	return Value{}, false, nil
}
