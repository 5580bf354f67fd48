package vm

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/daimatz/jclassgen/pkg/loader"
)

// codeClass builds class T with one public static method f. build receives
// the class's pool and returns the Code attribute.
func codeClass(name, desc string, build func(pb *classfile.PoolBuilder) *classfile.CodeAttribute) *classfile.ClassFile {
	pb := classfile.NewPoolBuilder()
	cf := &classfile.ClassFile{
		MajorVersion: classfile.DefaultMajorVersion,
		AccessFlags:  classfile.AccPublic | classfile.AccSuper,
		ThisClass:    pb.Class(name),
		SuperClass:   pb.Class("java/lang/Object"),
	}
	code := build(pb)
	pb.Utf8("f")
	pb.Utf8(desc)
	cf.Methods = []classfile.MethodInfo{{
		AccessFlags: classfile.AccPublic | classfile.AccStatic,
		Name:        "f",
		Descriptor:  desc,
		Code:        code,
	}}
	cf.ConstantPool = pb.Entries()
	return cf
}

// newTestVM returns a VM over the stub library and the given classes.
func newTestVM(t *testing.T, classes ...*classfile.ClassFile) *VM {
	t.Helper()
	mem := loader.NewMemoryClassLoader()
	for _, cf := range classes {
		if _, err := mem.DefineClass(cf); err != nil {
			t.Fatalf("DefineClass: %v", err)
		}
	}
	v := New(loader.Chain{mem, loader.NewStubClassLoader()})
	var out strings.Builder
	v.Stdout = &out
	return v
}

// run invokes T.f with the given arguments and fails the test on error.
func run(t *testing.T, desc string, build func(pb *classfile.PoolBuilder) *classfile.CodeAttribute, args ...Value) Value {
	t.Helper()
	v := newTestVM(t, codeClass("T", desc, build))
	got, err := v.Invoke("T", "f", desc, args...)
	if err != nil {
		t.Fatalf("T.f%s: %v", desc, err)
	}
	return got
}

func plain(code []byte, maxLocals uint16) func(*classfile.PoolBuilder) *classfile.CodeAttribute {
	return func(*classfile.PoolBuilder) *classfile.CodeAttribute {
		return &classfile.CodeAttribute{MaxStack: 10, MaxLocals: maxLocals, Code: code}
	}
}

// executeAndGetInt runs code as the body of a static method taking the
// locals as int parameters. The bytecodes must end with ireturn.
func executeAndGetInt(t *testing.T, code []byte, locals ...int32) int32 {
	t.Helper()

	maxLocals := uint16(len(locals))
	if maxLocals < 4 {
		maxLocals = 4
	}
	args := make([]Value, len(locals))
	for i, val := range locals {
		args[i] = IntValue(val)
	}
	desc := "(" + strings.Repeat("I", len(locals)) + ")I"
	return run(t, desc, plain(code, maxLocals), args...).Int
}

func TestIconst(t *testing.T) {
	for op, want := classfile.OpIconstM1, int32(-1); op <= classfile.OpIconst5; op, want = op+1, want+1 {
		t.Run(classfile.OpcodeName(byte(op)), func(t *testing.T) {
			if got := executeAndGetInt(t, asm(op, classfile.OpIreturn)); got != want {
				t.Errorf("got %d, want %d", got, want)
			}
		})
	}
}

func TestPushImmediate(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		want int32
	}{
		{"bipush positive", asm(classfile.OpBipush, 42), 42},
		{"bipush negative", asm(classfile.OpBipush, 0xFB), -5},
		{"bipush max", asm(classfile.OpBipush, 127), 127},
		{"bipush min", asm(classfile.OpBipush, 0x80), -128},
		{"sipush positive", asm(classfile.OpSipush, int16(256)), 256},
		{"sipush negative", asm(classfile.OpSipush, int16(-256)), -256},
		{"sipush max", asm(classfile.OpSipush, int16(32767)), 32767},
		{"sipush min", asm(classfile.OpSipush, int16(-32768)), -32768},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := executeAndGetInt(t, append(tt.code, classfile.OpIreturn)); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIntArithmetic(t *testing.T) {
	binary := func(op int) []byte {
		return asm(classfile.OpIload0, classfile.OpIload1, op, classfile.OpIreturn)
	}
	neg := asm(classfile.OpIload0, classfile.OpIneg, classfile.OpIreturn)
	tests := []struct {
		name   string
		code   []byte
		locals []int32
		want   int32
	}{
		{"iadd", binary(classfile.OpIadd), []int32{3, 4}, 7},
		{"isub", binary(classfile.OpIsub), []int32{5, 3}, 2},
		{"imul", binary(classfile.OpImul), []int32{3, 4}, 12},
		{"idiv truncates", binary(classfile.OpIdiv), []int32{-7, 2}, -3},
		{"irem sign of dividend", binary(classfile.OpIrem), []int32{-7, 2}, -1},
		{"idiv MinInt32 by -1", binary(classfile.OpIdiv), []int32{math.MinInt32, -1}, math.MinInt32},
		{"irem MinInt32 by -1", binary(classfile.OpIrem), []int32{math.MinInt32, -1}, 0},
		{"ineg", neg, []int32{5}, -5},
		{"ineg MinInt32", neg, []int32{math.MinInt32}, math.MinInt32},
		{"iadd wraps", binary(classfile.OpIadd), []int32{math.MaxInt32, 1}, math.MinInt32},
		{"isub wraps", binary(classfile.OpIsub), []int32{math.MinInt32, 1}, math.MaxInt32},
		{"imul wraps", binary(classfile.OpImul), []int32{math.MaxInt32, 2}, -2},
		{
			"(2+3)*4",
			asm(classfile.OpIconst2, classfile.OpIconst3, classfile.OpIadd, classfile.OpIconst4, classfile.OpImul, classfile.OpIreturn),
			nil, 20,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := executeAndGetInt(t, tt.code, tt.locals...); got != tt.want {
				t.Errorf("%v: got %d, want %d", tt.locals, got, tt.want)
			}
		})
	}
}

// branch compares local 0 (and local 1 for if_icmp*) and returns 1 when
// the branch is taken.
func branch(op int) []byte {
	cmp := asm(classfile.OpIload0)
	if op >= classfile.OpIfIcmpeq && op <= classfile.OpIfIcmple {
		cmp = append(cmp, classfile.OpIload1)
	}
	// The offset skips iconst_0, ireturn.
	return append(cmp, asm(op, int16(5), classfile.OpIconst0, classfile.OpIreturn, classfile.OpIconst1, classfile.OpIreturn)...)
}

func TestConditionalBranches(t *testing.T) {
	tests := []struct {
		op     int
		locals []int32
		taken  bool
	}{
		{classfile.OpIfeq, []int32{0}, true},
		{classfile.OpIfeq, []int32{1}, false},
		{classfile.OpIfne, []int32{1}, true},
		{classfile.OpIfne, []int32{0}, false},
		{classfile.OpIflt, []int32{-1}, true},
		{classfile.OpIflt, []int32{0}, false},
		{classfile.OpIfge, []int32{0}, true},
		{classfile.OpIfge, []int32{-1}, false},
		{classfile.OpIfgt, []int32{5}, true},
		{classfile.OpIfgt, []int32{0}, false},
		{classfile.OpIfle, []int32{0}, true},
		{classfile.OpIfle, []int32{5}, false},
		{classfile.OpIfIcmpeq, []int32{5, 5}, true},
		{classfile.OpIfIcmpeq, []int32{5, 3}, false},
		{classfile.OpIfIcmpne, []int32{5, 3}, true},
		{classfile.OpIfIcmpne, []int32{5, 5}, false},
		{classfile.OpIfIcmplt, []int32{3, 5}, true},
		{classfile.OpIfIcmplt, []int32{5, 3}, false},
		{classfile.OpIfIcmpge, []int32{5, 5}, true},
		{classfile.OpIfIcmpge, []int32{3, 5}, false},
		{classfile.OpIfIcmpgt, []int32{5, 3}, true},
		{classfile.OpIfIcmpgt, []int32{5, 5}, false},
		{classfile.OpIfIcmple, []int32{5, 5}, true},
		{classfile.OpIfIcmple, []int32{5, 3}, false},
	}
	for _, tt := range tests {
		name := fmt.Sprintf("%s%v", classfile.OpcodeName(byte(tt.op)), tt.locals)
		t.Run(name, func(t *testing.T) {
			want := int32(0)
			if tt.taken {
				want = 1
			}
			if got := executeAndGetInt(t, branch(tt.op), tt.locals...); got != want {
				t.Errorf("got %d, want %d", got, want)
			}
		})
	}
}

func TestGoto(t *testing.T) {
	t.Run("forward", func(t *testing.T) {
		code := asm(classfile.OpGoto, int16(5), classfile.OpIconst1, classfile.OpIreturn, classfile.OpIconst2, classfile.OpIreturn)
		if got := executeAndGetInt(t, code); got != 2 {
			t.Errorf("got %d, want 2", got)
		}
	})
	t.Run("backward loop", func(t *testing.T) {
		// sum = 0; do { sum += n; } while (--n > 0); return sum;
		code := asm(
			classfile.OpIconst0, classfile.OpIstore1, // 0
			classfile.OpIload1, classfile.OpIload0, classfile.OpIadd, classfile.OpIstore1, // 2
			classfile.OpIinc, 0, 0xFF, // 6
			classfile.OpIload0, classfile.OpIfgt, int16(-8), // 9
			classfile.OpIload1, classfile.OpIreturn, // 13
		)
		if got := executeAndGetInt(t, code, 4); got != 10 {
			t.Errorf("got %d, want 10", got)
		}
	})
}

func TestStackOps(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		want int32
	}{
		{"dup", asm(classfile.OpIconst3, classfile.OpDup, classfile.OpIadd), 6},
		{"pop", asm(classfile.OpIconst3, classfile.OpIconst4, classfile.OpPop), 3},
		{"swap", asm(classfile.OpIconst5, classfile.OpIconst2, classfile.OpSwap, classfile.OpIsub), -3},
		{"dup_x1", asm(classfile.OpIconst1, classfile.OpIconst2, classfile.OpDupX1, classfile.OpIsub, classfile.OpIsub), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := executeAndGetInt(t, append(tt.code, classfile.OpIreturn)); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIinc(t *testing.T) {
	tests := []struct {
		initial int32
		inc     int8
		want    int32
	}{
		{10, 5, 15},
		{10, -3, 7},
		{42, 0, 42},
		{100, -128, -28},
		{0, 127, 127},
		{math.MaxInt32, 1, math.MinInt32},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d%+d", tt.initial, tt.inc), func(t *testing.T) {
			code := asm(classfile.OpIinc, 0, int(uint8(tt.inc)), classfile.OpIload0, classfile.OpIreturn)
			if got := executeAndGetInt(t, code, tt.initial); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}
