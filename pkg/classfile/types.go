package classfile

import "fmt"

// AccessFlags is the u2 access_flags bitmask of classes, fields and methods.
type AccessFlags uint16

const (
	AccPublic       AccessFlags = 0x0001
	AccPrivate      AccessFlags = 0x0002
	AccProtected    AccessFlags = 0x0004
	AccStatic       AccessFlags = 0x0008
	AccFinal        AccessFlags = 0x0010
	AccSuper        AccessFlags = 0x0020
	AccSynchronized AccessFlags = 0x0020
	AccVolatile     AccessFlags = 0x0040
	AccBridge       AccessFlags = 0x0040
	AccTransient    AccessFlags = 0x0080
	AccVarargs      AccessFlags = 0x0080
	AccNative       AccessFlags = 0x0100
	AccInterface    AccessFlags = 0x0200
	AccAbstract     AccessFlags = 0x0400
	AccStrict       AccessFlags = 0x0800
	AccSynthetic    AccessFlags = 0x1000
)

func (f AccessFlags) IsPublic() bool    { return f&AccPublic != 0 }
func (f AccessFlags) IsPrivate() bool   { return f&AccPrivate != 0 }
func (f AccessFlags) IsProtected() bool { return f&AccProtected != 0 }
func (f AccessFlags) IsStatic() bool    { return f&AccStatic != 0 }
func (f AccessFlags) IsFinal() bool     { return f&AccFinal != 0 }
func (f AccessFlags) IsInterface() bool { return f&AccInterface != 0 }
func (f AccessFlags) IsAbstract() bool  { return f&AccAbstract != 0 }
func (f AccessFlags) IsNative() bool    { return f&AccNative != 0 }

// DefaultMajorVersion is 49 (Java 5): the last version that needs no
// StackMapTable and still accepts jsr/ret.
const (
	DefaultMajorVersion uint16 = 49
	DefaultMinorVersion uint16 = 0
)

// ClassFile represents a parsed .class file.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	ConstantPool []ConstantPoolEntry
	AccessFlags  AccessFlags
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []FieldInfo
	Methods      []MethodInfo
	SourceFile   string
}

// SuperClassName returns the fully qualified name of the super class.
// Returns "" if this is java/lang/Object (SuperClass == 0).
func (cf *ClassFile) SuperClassName() string {
	if cf.SuperClass == 0 {
		return ""
	}
	name, err := GetClassName(cf.ConstantPool, cf.SuperClass)
	if err != nil {
		return ""
	}
	return name
}

// InterfaceNames returns the binary names of the directly implemented interfaces.
func (cf *ClassFile) InterfaceNames() ([]string, error) {
	names := make([]string, 0, len(cf.Interfaces))
	for _, idx := range cf.Interfaces {
		name, err := GetClassName(cf.ConstantPool, idx)
		if err != nil {
			return nil, fmt.Errorf("resolving interface %d: %w", idx, err)
		}
		names = append(names, name)
	}
	return names, nil
}

// ConstantPoolEntry is an interface implemented by all constant pool types.
type ConstantPoolEntry interface {
	Tag() uint8
}

type ConstantUtf8 struct {
	Value string
}

func (c *ConstantUtf8) Tag() uint8 { return TagUtf8 }

type ConstantInteger struct {
	Value int32
}

func (c *ConstantInteger) Tag() uint8 { return TagInteger }

type ConstantFloat struct {
	Value float32
}

func (c *ConstantFloat) Tag() uint8 { return TagFloat }

type ConstantLong struct {
	Value int64
}

func (c *ConstantLong) Tag() uint8 { return TagLong }

type ConstantDouble struct {
	Value float64
}

func (c *ConstantDouble) Tag() uint8 { return TagDouble }

type ConstantClass struct {
	NameIndex uint16
}

func (c *ConstantClass) Tag() uint8 { return TagClass }

type ConstantString struct {
	StringIndex uint16
}

func (c *ConstantString) Tag() uint8 { return TagString }

type ConstantFieldref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantFieldref) Tag() uint8 { return TagFieldref }

type ConstantMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantMethodref) Tag() uint8 { return TagMethodref }

type ConstantInterfaceMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantInterfaceMethodref) Tag() uint8 { return TagInterfaceMethodref }

type ConstantNameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (c *ConstantNameAndType) Tag() uint8 { return TagNameAndType }

// MethodInfo represents a method in a class file.
type MethodInfo struct {
	AccessFlags AccessFlags
	Name        string
	Descriptor  string
	Attributes  []AttributeInfo
	Code        *CodeAttribute
}

// FieldInfo represents a field in a class file.
type FieldInfo struct {
	AccessFlags AccessFlags
	Name        string
	Descriptor  string
	Attributes  []AttributeInfo
}

// AttributeInfo represents a raw attribute.
type AttributeInfo struct {
	Name string
	Data []byte
}

// ExceptionHandler represents an entry in the exception table.
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
}

// LineNumber maps a code offset to a source line.
type LineNumber struct {
	StartPC uint16
	Line    uint16
}

// LocalVariable is one LocalVariableTable entry.
type LocalVariable struct {
	StartPC    uint16
	Length     uint16
	Name       string
	Descriptor string
	Index      uint16
}

// CodeAttribute represents the Code attribute of a method.
type CodeAttribute struct {
	MaxStack          uint16
	MaxLocals         uint16
	Code              []byte
	ExceptionHandlers []ExceptionHandler
	LineNumbers       []LineNumber
	LocalVariables    []LocalVariable
}
