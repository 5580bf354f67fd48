package classfile

import (
	"bytes"
	"math"
	"reflect"
	"testing"
)

// sampleClass builds a class exercising every constant kind and the Code
// sub-attributes the writer emits.
func sampleClass(t *testing.T) (*ClassFile, []byte) {
	t.Helper()
	pb := NewPoolBuilder()
	cf := &ClassFile{
		MajorVersion: DefaultMajorVersion,
		MinorVersion: DefaultMinorVersion,
		AccessFlags:  AccPublic | AccSuper,
		ThisClass:    pb.Class("demo/Sample"),
		SuperClass:   pb.Class("java/lang/Object"),
		Interfaces:   []uint16{pb.Class("java/lang/Runnable")},
		SourceFile:   "Sample.java",
	}
	pb.Integer(-7)
	pb.Float(float32(math.Inf(-1)))
	pb.Long(1 << 40)
	pb.Double(2.5)
	pb.String("héllo \x00 日本 😀")
	pb.Fieldref("demo/Sample", "count", "I")
	pb.Methodref("java/lang/Runnable", "run", "()V", true)
	cf.Fields = []FieldInfo{{AccessFlags: AccPrivate | AccStatic, Name: "count", Descriptor: "I"}}
	cf.Methods = []MethodInfo{
		{
			AccessFlags: AccPublic,
			Name:        "run",
			Descriptor:  "()V",
			Code: &CodeAttribute{
				MaxStack:  2,
				MaxLocals: 1,
				Code:      []byte{OpAload0, OpPop, OpReturn, OpAthrow},
				ExceptionHandlers: []ExceptionHandler{
					{StartPC: 0, EndPC: 2, HandlerPC: 3, CatchType: pb.Class("java/lang/Throwable")},
				},
				LineNumbers:    []LineNumber{{StartPC: 0, Line: 3}, {StartPC: 2, Line: 4}},
				LocalVariables: []LocalVariable{{StartPC: 0, Length: 4, Name: "this", Descriptor: "Ldemo/Sample;", Index: 0}},
			},
		},
		{AccessFlags: AccPublic | AccAbstract, Name: "size", Descriptor: "()I"},
	}
	data, err := cf.Bytes(pb)
	if err != nil {
		t.Fatalf("encoding sample: %v", err)
	}
	return cf, data
}

func TestRoundTrip(t *testing.T) {
	want, data := sampleClass(t)
	got, err := ParseBytes(data)
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}

	if got.MajorVersion != DefaultMajorVersion || got.MinorVersion != DefaultMinorVersion {
		t.Errorf("version = %d.%d", got.MajorVersion, got.MinorVersion)
	}
	if got.AccessFlags != want.AccessFlags {
		t.Errorf("flags = %#x, want %#x", got.AccessFlags, want.AccessFlags)
	}
	if name, _ := got.ClassName(); name != "demo/Sample" {
		t.Errorf("this_class = %q", name)
	}
	if got.SuperClassName() != "java/lang/Object" {
		t.Errorf("super = %q", got.SuperClassName())
	}
	if ifaces, _ := got.InterfaceNames(); !reflect.DeepEqual(ifaces, []string{"java/lang/Runnable"}) {
		t.Errorf("interfaces = %v", ifaces)
	}
	if got.SourceFile != "Sample.java" {
		t.Errorf("SourceFile = %q", got.SourceFile)
	}
	if !reflect.DeepEqual(got.ConstantPool, want.ConstantPool) {
		t.Errorf("constant pool differs:\ngot  %#v\nwant %#v", got.ConstantPool, want.ConstantPool)
	}
	if f := got.FindField("count"); f == nil || f.Descriptor != "I" || !f.AccessFlags.IsStatic() {
		t.Errorf("field count = %+v", f)
	}

	run := got.FindMethod("run", "()V")
	if run == nil || run.Code == nil {
		t.Fatal("run()V or its Code missing")
	}
	if !reflect.DeepEqual(run.Code, want.Methods[0].Code) {
		t.Errorf("Code differs:\ngot  %+v\nwant %+v", run.Code, want.Methods[0].Code)
	}
	if size := got.FindMethod("size", "()I"); size == nil || size.Code != nil {
		t.Errorf("abstract size()I = %+v", size)
	}
}

func TestModifiedUTF8(t *testing.T) {
	_, data := sampleClass(t)
	// NUL and supplementary characters never appear as plain UTF-8 bytes.
	if bytes.Contains(data, []byte("\x00 日")) {
		t.Error("NUL written as a single zero byte")
	}
	if bytes.Contains(data, []byte("😀")) {
		t.Error("supplementary character written as 4-byte UTF-8")
	}
	cf, err := ParseBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range cf.ConstantPool {
		if u, ok := e.(*ConstantUtf8); ok && u.Value == "héllo \x00 日本 😀" {
			found = true
		}
	}
	if !found {
		t.Error("string constant did not survive the round trip")
	}
}

func TestPoolBuilderDeduplicates(t *testing.T) {
	pb := NewPoolBuilder()
	a := pb.Methodref("java/lang/Object", "toString", "()Ljava/lang/String;", false)
	if b := pb.Methodref("java/lang/Object", "toString", "()Ljava/lang/String;", false); b != a {
		t.Errorf("repeated Methodref = %d, want %d", b, a)
	}
	if i := pb.Methodref("java/lang/Object", "toString", "()Ljava/lang/String;", true); i == a {
		t.Error("interface and class method refs share an entry")
	}
	if pb.Class("java/lang/Object") != pb.Class("java/lang/Object") {
		t.Error("Class not deduplicated")
	}

	l := pb.Long(5)
	if next := pb.Integer(5); next != l+2 {
		t.Errorf("entry after a long at %d is %d, want %d", l, next, l+2)
	}
	if pb.Entries()[l+1] != nil {
		t.Error("second slot of a long is not empty")
	}

	negZero := pb.Float(float32(math.Copysign(0, -1)))
	if pb.Float(0) == negZero {
		t.Error("0.0 and -0.0 share an entry")
	}
	nan := pb.Double(math.NaN())
	if pb.Double(math.NaN()) != nan {
		t.Error("identical NaN bit patterns not deduplicated")
	}
}

func TestPoolOverflow(t *testing.T) {
	pb := NewPoolBuilder()
	for i := 0; i < math.MaxUint16; i++ {
		pb.Integer(int32(i))
	}
	if pb.Err() == nil {
		t.Fatal("no error after filling the pool")
	}
	cf := &ClassFile{MajorVersion: DefaultMajorVersion, ThisClass: 1}
	if _, err := cf.Bytes(pb); err == nil {
		t.Error("Bytes succeeded with an overflowed pool")
	}
}

func TestParseErrors(t *testing.T) {
	_, valid := sampleClass(t)
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", []byte{0xDE, 0xAD, 0xBE, 0xEF, 0, 0, 0, 49}},
		{"truncated header", valid[:9]},
		{"truncated pool", valid[:40]},
		{"truncated tail", valid[:len(valid)-12]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseBytes(tt.data); err == nil {
				t.Error("expected an error, got nil")
			}
		})
	}
}

func TestEncodeRejectsEmptyCode(t *testing.T) {
	pb := NewPoolBuilder()
	cf := &ClassFile{
		MajorVersion: DefaultMajorVersion,
		ThisClass:    pb.Class("Empty"),
		Methods:      []MethodInfo{{Name: "f", Descriptor: "()V", Code: &CodeAttribute{}}},
	}
	if _, err := cf.Bytes(pb); err == nil {
		t.Error("empty Code attribute encoded without error")
	}
}

func TestWriteTo(t *testing.T) {
	cf, data := sampleClass(t)
	var buf bytes.Buffer
	n, err := cf.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if int(n) != len(data) || !bytes.Equal(buf.Bytes(), data) {
		t.Errorf("WriteTo wrote %d bytes that differ from Bytes (%d)", n, len(data))
	}
}
