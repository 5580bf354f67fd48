package codegen

import (
	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/daimatz/jclassgen/pkg/types"
)

// Builder is the class generation API. Expression operations return the
// type now on top of the operand stack, or void when they leave nothing.
// The first failing call aborts generation: it and every later call return
// the same error.
type Builder interface {
	// Declarations, in the order package, imports, extends/implements,
	// members.
	Package(name string) error
	Import(name string) error
	Extends(name string) error
	Implements(name string) error
	Field(flags classfile.AccessFlags, typ, name string) error
	BeginMethod(flags classfile.AccessFlags, ret, name string, params ...Param) error
	BeginConstructor(flags classfile.AccessFlags, params ...Param) error
	BeginStaticInit() error
	AbstractMethod(flags classfile.AccessFlags, ret, name string, params ...Param) error
	DefineMethod(flags classfile.AccessFlags, ret, name string, params []Param, body func(Builder) error) error
	DefineConstructor(flags classfile.AccessFlags, params []Param, body func(Builder) error) error
	EndMethod() error
	EndClass() (*Class, error)

	Type(name string) (*types.Type, error)
	SetLine(line int)
	Err() error

	// Literals.
	PushInt(v int32) (*types.Type, error)
	PushLong(v int64) (*types.Type, error)
	PushFloat(v float32) (*types.Type, error)
	PushDouble(v float64) (*types.Type, error)
	PushBoolean(v bool) (*types.Type, error)
	PushChar(v uint16) (*types.Type, error)
	PushByte(v int8) (*types.Type, error)
	PushShort(v int16) (*types.Type, error)
	PushString(v string) (*types.Type, error)
	PushNull() (*types.Type, error)
	PushThis() (*types.Type, error)

	// Variables, fields and arrays.
	Load(name string) (*types.Type, error)
	Store(name string) (*types.Type, error)
	Assign(name string) (*types.Type, error)
	GetField(name string) (*types.Type, error)
	PutField(name string) (*types.Type, error)
	GetStatic(class, name string) (*types.Type, error)
	PutStatic(class, name string) (*types.Type, error)
	ArrayLoad() (*types.Type, error)
	ArrayStore() (*types.Type, error)
	ArrayLength() (*types.Type, error)

	// Operators.
	Add() (*types.Type, error)
	Sub() (*types.Type, error)
	Mul() (*types.Type, error)
	Div() (*types.Type, error)
	Rem() (*types.Type, error)
	Neg() (*types.Type, error)
	And() (*types.Type, error)
	Or() (*types.Type, error)
	Xor() (*types.Type, error)
	Not() (*types.Type, error)
	Complement() (*types.Type, error)
	Shl() (*types.Type, error)
	Shr() (*types.Type, error)
	Ushr() (*types.Type, error)
	Eq() (*types.Type, error)
	Ne() (*types.Type, error)
	Lt() (*types.Type, error)
	Le() (*types.Type, error)
	Gt() (*types.Type, error)
	Ge() (*types.Type, error)
	InstanceOf(typ string) (*types.Type, error)
	Cast(typ string) (*types.Type, error)
	AndThen() error
	EndAnd() (*types.Type, error)
	OrElse() error
	EndOr() (*types.Type, error)

	// Increments.
	PreIncLocal(name string) (*types.Type, error)
	PostIncLocal(name string) (*types.Type, error)
	PreDecLocal(name string) (*types.Type, error)
	PostDecLocal(name string) (*types.Type, error)
	IncLocal(name string, delta int, post bool) (*types.Type, error)
	IncField(name string, delta int, post bool) (*types.Type, error)
	IncStatic(class, name string, delta int, post bool) (*types.Type, error)
	IncArray(delta int, post bool) (*types.Type, error)

	// Calls and allocation.
	BeginCall() error
	Arg() (*types.Type, error)
	InvokeVirtual(name string) (*types.Type, error)
	InvokeStatic(class, name string) (*types.Type, error)
	InvokeSuper(name string) (*types.Type, error)
	BeginSuperCall() error
	EndSuperCall() error
	BeginNew(class string) error
	EndNew() (*types.Type, error)
	BeginNewArray(typ string) error
	EndNewArray() (*types.Type, error)
	Dup() (*types.Type, error)
	Pop() (*types.Type, error)

	// Statements.
	DeclareLocal(typ, name string) error
	Label(name string) error
	Begin() error
	End() error
	If() error
	Else() error
	EndIf() error
	Loop() error
	For() error
	While() error
	Step() error
	EndLoop() error
	Switch() error
	Case(key int32) error
	Default() error
	EndSwitch() error
	Try() error
	Catch(typ, name string) error
	Finally() error
	EndTry() error
	Break(label string) error
	Continue(label string) error
	Return() error
	Throw() error
}
