package classfile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const classMagic = 0xCAFEBABE

// reader is a big-endian reader that latches the first error.
type reader struct {
	r   io.Reader
	buf [8]byte
	err error
}

func (r *reader) read(n int) []byte {
	if r.err != nil {
		return r.buf[:n]
	}
	if _, err := io.ReadFull(r.r, r.buf[:n]); err != nil {
		r.err = err
	}
	return r.buf[:n]
}

func (r *reader) u1() uint8  { return r.read(1)[0] }
func (r *reader) u2() uint16 { return binary.BigEndian.Uint16(r.read(2)) }
func (r *reader) u4() uint32 { return binary.BigEndian.Uint32(r.read(4)) }
func (r *reader) u8() uint64 { return binary.BigEndian.Uint64(r.read(8)) }

func (r *reader) bytes(n int) []byte {
	out := make([]byte, n)
	if r.err == nil {
		if _, err := io.ReadFull(r.r, out); err != nil {
			r.err = err
		}
	}
	return out
}

func (r *reader) skip(n int) {
	if r.err == nil {
		if _, err := io.CopyN(io.Discard, r.r, int64(n)); err != nil {
			r.err = err
		}
	}
}

// ParseFile opens and parses a .class file from the given path.
func ParseFile(path string) (*ClassFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(bufio.NewReader(f))
}

// ParseBytes parses an in-memory class file.
func ParseBytes(data []byte) (*ClassFile, error) {
	return Parse(bytes.NewReader(data))
}

// Parse reads a .class file from the given reader and returns a ClassFile.
func Parse(in io.Reader) (*ClassFile, error) {
	r := &reader{r: in}
	cf := &ClassFile{}

	magic := r.u4()
	if r.err != nil {
		return nil, fmt.Errorf("reading magic number: %w", r.err)
	}
	if magic != classMagic {
		return nil, fmt.Errorf("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic)
	}

	cf.MinorVersion = r.u2()
	cf.MajorVersion = r.u2()
	cpCount := r.u2()
	if r.err != nil {
		return nil, fmt.Errorf("reading class header: %w", r.err)
	}
	pool, err := parseConstantPool(r, cpCount)
	if err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}
	cf.ConstantPool = pool

	cf.AccessFlags = AccessFlags(r.u2())
	cf.ThisClass = r.u2()
	cf.SuperClass = r.u2()
	interfacesCount := r.u2()
	cf.Interfaces = make([]uint16, interfacesCount)
	for i := range cf.Interfaces {
		cf.Interfaces[i] = r.u2()
	}
	if r.err != nil {
		return nil, fmt.Errorf("reading class header: %w", r.err)
	}

	cf.Fields, err = parseFields(r, cf.ConstantPool, r.u2())
	if err != nil {
		return nil, fmt.Errorf("parsing fields: %w", err)
	}
	cf.Methods, err = parseMethods(r, cf.ConstantPool, r.u2())
	if err != nil {
		return nil, fmt.Errorf("parsing methods: %w", err)
	}

	attrs, err := parseAttributeInfos(r, cf.ConstantPool, r.u2())
	if err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}
	for _, attr := range attrs {
		if attr.Name == "SourceFile" && len(attr.Data) == 2 {
			cf.SourceFile, _ = GetUtf8(cf.ConstantPool, binary.BigEndian.Uint16(attr.Data))
		}
	}

	return cf, nil
}

func parseFields(r *reader, pool []ConstantPoolEntry, count uint16) ([]FieldInfo, error) {
	fields := make([]FieldInfo, count)
	for i := range fields {
		flags, name, desc, attrs, err := parseMemberHeader(r, pool)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		fields[i] = FieldInfo{AccessFlags: flags, Name: name, Descriptor: desc, Attributes: attrs}
	}
	return fields, nil
}

func parseMethods(r *reader, pool []ConstantPoolEntry, count uint16) ([]MethodInfo, error) {
	methods := make([]MethodInfo, count)
	for i := range methods {
		flags, name, desc, attrs, err := parseMemberHeader(r, pool)
		if err != nil {
			return nil, fmt.Errorf("method %d: %w", i, err)
		}
		m := MethodInfo{AccessFlags: flags, Name: name, Descriptor: desc, Attributes: attrs}
		for _, attr := range attrs {
			if attr.Name == "Code" {
				code, err := parseCodeAttribute(attr.Data, pool)
				if err != nil {
					return nil, fmt.Errorf("parsing Code attribute for method %s: %w", name, err)
				}
				m.Code = code
				break
			}
		}
		methods[i] = m
	}
	return methods, nil
}

func parseMemberHeader(r *reader, pool []ConstantPoolEntry) (AccessFlags, string, string, []AttributeInfo, error) {
	flags := AccessFlags(r.u2())
	nameIndex := r.u2()
	descIndex := r.u2()
	attrCount := r.u2()
	if r.err != nil {
		return 0, "", "", nil, fmt.Errorf("reading header: %w", r.err)
	}
	name, err := GetUtf8(pool, nameIndex)
	if err != nil {
		return 0, "", "", nil, fmt.Errorf("resolving name: %w", err)
	}
	desc, err := GetUtf8(pool, descIndex)
	if err != nil {
		return 0, "", "", nil, fmt.Errorf("resolving descriptor: %w", err)
	}
	attrs, err := parseAttributeInfos(r, pool, attrCount)
	if err != nil {
		return 0, "", "", nil, err
	}
	return flags, name, desc, attrs, nil
}

func parseAttributeInfos(r *reader, pool []ConstantPoolEntry, count uint16) ([]AttributeInfo, error) {
	attrs := make([]AttributeInfo, 0, count)
	for i := uint16(0); i < count; i++ {
		nameIndex := r.u2()
		length := r.u4()
		data := r.bytes(int(length))
		if r.err != nil {
			return nil, fmt.Errorf("reading attribute %d: %w", i, r.err)
		}
		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}
		attrs = append(attrs, AttributeInfo{Name: name, Data: data})
	}
	return attrs, nil
}

func parseCodeAttribute(data []byte, pool []ConstantPoolEntry) (*CodeAttribute, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("Code attribute too short: %d bytes", len(data))
	}
	r := &reader{r: bytes.NewReader(data)}

	code := &CodeAttribute{MaxStack: r.u2(), MaxLocals: r.u2()}
	codeLength := r.u4()
	if int(codeLength) > len(data)-8 {
		return nil, fmt.Errorf("Code attribute data too short for code_length %d", codeLength)
	}
	code.Code = r.bytes(int(codeLength))

	exTableLen := r.u2()
	code.ExceptionHandlers = make([]ExceptionHandler, exTableLen)
	for i := range code.ExceptionHandlers {
		code.ExceptionHandlers[i] = ExceptionHandler{
			StartPC:   r.u2(),
			EndPC:     r.u2(),
			HandlerPC: r.u2(),
			CatchType: r.u2(),
		}
	}
	if r.err != nil {
		return nil, fmt.Errorf("reading exception table: %w", r.err)
	}

	attrs, err := parseAttributeInfos(r, pool, r.u2())
	if err != nil {
		return nil, fmt.Errorf("parsing Code sub-attributes: %w", err)
	}
	for _, attr := range attrs {
		switch attr.Name {
		case "LineNumberTable":
			code.LineNumbers = parseLineNumbers(attr.Data)
		case "LocalVariableTable":
			code.LocalVariables, err = parseLocalVariables(attr.Data, pool)
			if err != nil {
				return nil, err
			}
		}
	}
	return code, nil
}

func parseLineNumbers(data []byte) []LineNumber {
	r := &reader{r: bytes.NewReader(data)}
	n := r.u2()
	out := make([]LineNumber, 0, n)
	for i := uint16(0); i < n && r.err == nil; i++ {
		out = append(out, LineNumber{StartPC: r.u2(), Line: r.u2()})
	}
	return out
}

func parseLocalVariables(data []byte, pool []ConstantPoolEntry) ([]LocalVariable, error) {
	r := &reader{r: bytes.NewReader(data)}
	n := r.u2()
	out := make([]LocalVariable, 0, n)
	for i := uint16(0); i < n; i++ {
		start, length, nameIdx, descIdx, index := r.u2(), r.u2(), r.u2(), r.u2(), r.u2()
		if r.err != nil {
			return nil, fmt.Errorf("reading LocalVariableTable: %w", r.err)
		}
		name, err := GetUtf8(pool, nameIdx)
		if err != nil {
			return nil, fmt.Errorf("LocalVariableTable name: %w", err)
		}
		desc, err := GetUtf8(pool, descIdx)
		if err != nil {
			return nil, fmt.Errorf("LocalVariableTable descriptor: %w", err)
		}
		out = append(out, LocalVariable{StartPC: start, Length: length, Name: name, Descriptor: desc, Index: index})
	}
	return out, nil
}

// ClassName returns the fully qualified name of this class.
func (cf *ClassFile) ClassName() (string, error) {
	return GetClassName(cf.ConstantPool, cf.ThisClass)
}

// FindMethod finds a method by name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name && cf.Methods[i].Descriptor == descriptor {
			return &cf.Methods[i]
		}
	}
	return nil
}

// FindField finds a field by name.
func (cf *ClassFile) FindField(name string) *FieldInfo {
	for i := range cf.Fields {
		if cf.Fields[i].Name == name {
			return &cf.Fields[i]
		}
	}
	return nil
}
