package classfile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// writer is the big-endian counterpart of reader.
type writer struct {
	buf bytes.Buffer
}

func (w *writer) u1(v uint8)  { w.buf.WriteByte(v) }
func (w *writer) u2(v uint16) { w.buf.Write(binary.BigEndian.AppendUint16(nil, v)) }
func (w *writer) u4(v uint32) { w.buf.Write(binary.BigEndian.AppendUint32(nil, v)) }
func (w *writer) u8(v uint64) { w.buf.Write(binary.BigEndian.AppendUint64(nil, v)) }

// attribute writes one attribute_info with a length prefix.
func (w *writer) attribute(nameIndex uint16, body []byte) {
	w.u2(nameIndex)
	w.u4(uint32(len(body)))
	w.buf.Write(body)
}

// Bytes serializes the class file. Attribute names that are not yet in the
// pool are appended through pb, which must be the builder that produced
// cf.ConstantPool (or nil when the pool already contains them).
func (cf *ClassFile) Bytes(pb *PoolBuilder) ([]byte, error) {
	if pb == nil {
		pb = poolFromEntries(cf.ConstantPool)
	}

	// Pre-register every attribute name so the pool is final before it is written.
	var sourceIdx uint16
	if cf.SourceFile != "" {
		pb.Utf8("SourceFile")
		sourceIdx = pb.Utf8(cf.SourceFile)
	}
	body := &writer{}
	body.u2(uint16(cf.AccessFlags))
	body.u2(cf.ThisClass)
	body.u2(cf.SuperClass)
	body.u2(uint16(len(cf.Interfaces)))
	for _, i := range cf.Interfaces {
		body.u2(i)
	}

	body.u2(uint16(len(cf.Fields)))
	for _, f := range cf.Fields {
		body.u2(uint16(f.AccessFlags))
		body.u2(pb.Utf8(f.Name))
		body.u2(pb.Utf8(f.Descriptor))
		writeRawAttributes(body, pb, f.Attributes)
	}

	body.u2(uint16(len(cf.Methods)))
	for _, m := range cf.Methods {
		body.u2(uint16(m.AccessFlags))
		body.u2(pb.Utf8(m.Name))
		body.u2(pb.Utf8(m.Descriptor))
		n := len(m.Attributes)
		if m.Code != nil {
			n++
		}
		body.u2(uint16(n))
		if m.Code != nil {
			code, err := encodeCode(m.Code, pb)
			if err != nil {
				return nil, fmt.Errorf("encoding Code of %s%s: %w", m.Name, m.Descriptor, err)
			}
			body.attribute(pb.Utf8("Code"), code)
		}
		for _, a := range m.Attributes {
			body.attribute(pb.Utf8(a.Name), a.Data)
		}
	}

	if cf.SourceFile != "" {
		body.u2(1)
		sf := &writer{}
		sf.u2(sourceIdx)
		body.attribute(pb.Utf8("SourceFile"), sf.buf.Bytes())
	} else {
		body.u2(0)
	}
	if err := pb.Err(); err != nil {
		return nil, err
	}
	cf.ConstantPool = pb.Entries()

	out := &writer{}
	out.u4(classMagic)
	out.u2(cf.MinorVersion)
	out.u2(cf.MajorVersion)
	if err := writeConstantPool(out, cf.ConstantPool); err != nil {
		return nil, err
	}
	out.buf.Write(body.buf.Bytes())
	return out.buf.Bytes(), nil
}

// WriteTo writes the serialized class to w.
func (cf *ClassFile) WriteTo(w io.Writer) (int64, error) {
	data, err := cf.Bytes(nil)
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriter(w)
	n, err := bw.Write(data)
	if err != nil {
		return int64(n), err
	}
	return int64(n), bw.Flush()
}

func writeRawAttributes(w *writer, pb *PoolBuilder, attrs []AttributeInfo) {
	w.u2(uint16(len(attrs)))
	for _, a := range attrs {
		w.attribute(pb.Utf8(a.Name), a.Data)
	}
}

func encodeCode(code *CodeAttribute, pb *PoolBuilder) ([]byte, error) {
	if len(code.Code) == 0 || len(code.Code) > 65535 {
		return nil, fmt.Errorf("code length %d out of range", len(code.Code))
	}
	w := &writer{}
	w.u2(code.MaxStack)
	w.u2(code.MaxLocals)
	w.u4(uint32(len(code.Code)))
	w.buf.Write(code.Code)
	w.u2(uint16(len(code.ExceptionHandlers)))
	for _, h := range code.ExceptionHandlers {
		w.u2(h.StartPC)
		w.u2(h.EndPC)
		w.u2(h.HandlerPC)
		w.u2(h.CatchType)
	}

	n := 0
	if len(code.LineNumbers) > 0 {
		n++
	}
	if len(code.LocalVariables) > 0 {
		n++
	}
	w.u2(uint16(n))
	if len(code.LineNumbers) > 0 {
		lt := &writer{}
		lt.u2(uint16(len(code.LineNumbers)))
		for _, ln := range code.LineNumbers {
			lt.u2(ln.StartPC)
			lt.u2(ln.Line)
		}
		w.attribute(pb.Utf8("LineNumberTable"), lt.buf.Bytes())
	}
	if len(code.LocalVariables) > 0 {
		lv := &writer{}
		lv.u2(uint16(len(code.LocalVariables)))
		for _, v := range code.LocalVariables {
			lv.u2(v.StartPC)
			lv.u2(v.Length)
			lv.u2(pb.Utf8(v.Name))
			lv.u2(pb.Utf8(v.Descriptor))
			lv.u2(v.Index)
		}
		w.attribute(pb.Utf8("LocalVariableTable"), lv.buf.Bytes())
	}
	return w.buf.Bytes(), nil
}

func writeConstantPool(w *writer, pool []ConstantPoolEntry) error {
	if len(pool) == 0 {
		pool = []ConstantPoolEntry{nil}
	}
	w.u2(uint16(len(pool)))
	for i := 1; i < len(pool); i++ {
		entry := pool[i]
		if entry == nil {
			return fmt.Errorf("constant pool hole at index %d", i)
		}
		w.u1(entry.Tag())
		switch c := entry.(type) {
		case *ConstantUtf8:
			b := encodeModifiedUTF8(c.Value)
			if len(b) > math.MaxUint16 {
				return fmt.Errorf("Utf8 constant at index %d too long (%d bytes)", i, len(b))
			}
			w.u2(uint16(len(b)))
			w.buf.Write(b)
		case *ConstantInteger:
			w.u4(uint32(c.Value))
		case *ConstantFloat:
			w.u4(math.Float32bits(c.Value))
		case *ConstantLong:
			w.u8(uint64(c.Value))
			i++
		case *ConstantDouble:
			w.u8(math.Float64bits(c.Value))
			i++
		case *ConstantClass:
			w.u2(c.NameIndex)
		case *ConstantString:
			w.u2(c.StringIndex)
		case *ConstantFieldref:
			w.u2(c.ClassIndex)
			w.u2(c.NameAndTypeIndex)
		case *ConstantMethodref:
			w.u2(c.ClassIndex)
			w.u2(c.NameAndTypeIndex)
		case *ConstantInterfaceMethodref:
			w.u2(c.ClassIndex)
			w.u2(c.NameAndTypeIndex)
		case *ConstantNameAndType:
			w.u2(c.NameIndex)
			w.u2(c.DescriptorIndex)
		default:
			return fmt.Errorf("cannot encode constant pool entry %d (tag=%d)", i, entry.Tag())
		}
	}
	return nil
}

// poolFromEntries rebuilds a PoolBuilder around an existing pool so new
// attribute names can be appended without renumbering.
func poolFromEntries(entries []ConstantPoolEntry) *PoolBuilder {
	pb := NewPoolBuilder()
	if len(entries) == 0 {
		return pb
	}
	pb.entries = append([]ConstantPoolEntry(nil), entries...)
	for i, e := range entries {
		if u, ok := e.(*ConstantUtf8); ok {
			if _, seen := pb.index[poolKey{tag: TagUtf8, a: u.Value}]; !seen {
				pb.index[poolKey{tag: TagUtf8, a: u.Value}] = uint16(i)
			}
		}
	}
	return pb
}
