package vm

import (
	"fmt"
)

// ValueType represents the type of a Value on the stack or in local variables.
type ValueType int

const (
	TypeInt ValueType = iota
	TypeLong
	TypeFloat
	TypeDouble
	TypeRef
	TypeNull
	TypeReturnAddress
	// typeTop fills the second word of a long or double.
	typeTop
)

// Value represents a value on the operand stack or in local variables.
// boolean, byte, char and short travel as TypeInt.
type Value struct {
	Type   ValueType
	Int    int32
	Long   int64
	Float  float32
	Double float64
	Ref    interface{}
}

// IntValue creates an integer Value.
func IntValue(v int32) Value {
	return Value{Type: TypeInt, Int: v}
}

// BoolValue creates the int 1 or 0.
func BoolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}

func LongValue(v int64) Value {
	return Value{Type: TypeLong, Long: v}
}

func FloatValue(v float32) Value {
	return Value{Type: TypeFloat, Float: v}
}

func DoubleValue(v float64) Value {
	return Value{Type: TypeDouble, Double: v}
}

// RefValue creates a reference Value. A nil ref is the null reference.
func RefValue(ref interface{}) Value {
	if ref == nil {
		return NullValue()
	}
	return Value{Type: TypeRef, Ref: ref}
}

// NullValue creates a null reference Value.
func NullValue() Value {
	return Value{Type: TypeNull}
}

// IsNull reports whether v is the null reference.
func (v Value) IsNull() bool {
	return v.Type == TypeNull || v.Type == TypeRef && v.Ref == nil
}

// IsWide reports whether v occupies two words.
func (v Value) IsWide() bool {
	return v.Type == TypeLong || v.Type == TypeDouble
}

func (v Value) String() string {
	switch v.Type {
	case TypeInt:
		return fmt.Sprintf("int(%d)", v.Int)
	case TypeLong:
		return fmt.Sprintf("long(%d)", v.Long)
	case TypeFloat:
		return fmt.Sprintf("float(%g)", v.Float)
	case TypeDouble:
		return fmt.Sprintf("double(%g)", v.Double)
	case TypeRef:
		return fmt.Sprintf("ref(%v)", v.Ref)
	case TypeNull:
		return "null"
	case TypeReturnAddress:
		return fmt.Sprintf("returnAddress(%d)", v.Int)
	}
	return "top"
}

// Frame represents a stack frame for method execution. The operand stack
// and locals are counted in words: a long or double takes two entries, the
// second one a filler, so that dup2 and pop2 work on the raw words.
type Frame struct {
	LocalVars    []Value
	OperandStack []Value
	SP           int
	Code         []byte
	PC           int
	Method       *Method
}

// NewFrame creates a new Frame with the given parameters.
func NewFrame(maxLocals, maxStack uint16, code []byte, method *Method) *Frame {
	return &Frame{
		LocalVars:    make([]Value, maxLocals),
		OperandStack: make([]Value, maxStack),
		Code:         code,
		Method:       method,
	}
}

func (f *Frame) pushWord(v Value) {
	if f.SP >= len(f.OperandStack) {
		panic(fmt.Sprintf("operand stack overflow: SP=%d, max=%d", f.SP, len(f.OperandStack)))
	}
	f.OperandStack[f.SP] = v
	f.SP++
}

// Push pushes a value onto the operand stack.
func (f *Frame) Push(v Value) {
	f.pushWord(v)
	if v.IsWide() {
		f.pushWord(Value{Type: typeTop})
	}
}

// Pop pops one word from the operand stack.
func (f *Frame) Pop() Value {
	if f.SP <= 0 {
		panic("operand stack underflow: SP=0")
	}
	f.SP--
	return f.OperandStack[f.SP]
}

// PopWide pops a long or double.
func (f *Frame) PopWide() Value {
	f.Pop()
	return f.Pop()
}

func (f *Frame) PopInt() int32      { return f.Pop().Int }
func (f *Frame) PopLong() int64     { return f.PopWide().Long }
func (f *Frame) PopFloat() float32  { return f.Pop().Float }
func (f *Frame) PopDouble() float64 { return f.PopWide().Double }

// Peek returns the word depth entries below the top.
func (f *Frame) Peek(depth int) Value {
	return f.OperandStack[f.SP-1-depth]
}

// GetLocal returns the value at the given local variable index.
func (f *Frame) GetLocal(index int) Value {
	if index < 0 || index >= len(f.LocalVars) {
		panic(fmt.Sprintf("local variable index out of range: index=%d, max=%d", index, len(f.LocalVars)))
	}
	return f.LocalVars[index]
}

// SetLocal sets the value at the given local variable index. A long or
// double also claims index+1.
func (f *Frame) SetLocal(index int, v Value) {
	last := index
	if v.IsWide() {
		last++
	}
	if index < 0 || last >= len(f.LocalVars) {
		panic(fmt.Sprintf("local variable index out of range: index=%d, max=%d", index, len(f.LocalVars)))
	}
	f.LocalVars[index] = v
	if v.IsWide() {
		f.LocalVars[last] = Value{Type: typeTop}
	}
}

// ReadU8 reads a uint8 operand and advances PC.
func (f *Frame) ReadU8() uint8 {
	val := f.Code[f.PC]
	f.PC++
	return val
}

// ReadI8 reads an int8 operand and advances PC.
func (f *Frame) ReadI8() int8 {
	val := int8(f.Code[f.PC])
	f.PC++
	return val
}

// ReadU16 reads a uint16 operand (big-endian) and advances PC by 2.
func (f *Frame) ReadU16() uint16 {
	val := uint16(f.Code[f.PC])<<8 | uint16(f.Code[f.PC+1])
	f.PC += 2
	return val
}

// ReadI16 reads an int16 operand (big-endian) and advances PC by 2.
func (f *Frame) ReadI16() int16 {
	return int16(f.ReadU16())
}

// ReadI32 reads an int32 operand (big-endian) and advances PC by 4.
func (f *Frame) ReadI32() int32 {
	hi := uint32(f.ReadU16())
	lo := uint32(f.ReadU16())
	return int32(hi<<16 | lo)
}
