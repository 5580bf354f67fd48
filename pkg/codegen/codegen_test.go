package codegen

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/daimatz/jclassgen/pkg/diag"
	"github.com/daimatz/jclassgen/pkg/emit"
	"github.com/daimatz/jclassgen/pkg/loader"
	"github.com/daimatz/jclassgen/pkg/types"
	"github.com/daimatz/jclassgen/pkg/vm"
)

const (
	pub       = classfile.AccPublic
	pubStatic = classfile.AccPublic | classfile.AccStatic
)

func newTestContext() *Context {
	return NewContext(loader.NewStubClassLoader(), DefaultOptions())
}

// generate declares class demo.T with build and ends it.
func generate(ctx *Context, build func(b Builder)) (*Class, error) {
	g := ctx.NewClass(pub, "demo.T")
	build(g)
	return g.EndClass()
}

func compile(t *testing.T, build func(b Builder)) *Class {
	t.Helper()
	c, err := generate(newTestContext(), build)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return c
}

// newVM returns a VM with c defined on top of the stub library.
func newVM(t *testing.T, c *Class) *vm.VM {
	t.Helper()
	mem := loader.NewMemoryClassLoader()
	if _, err := mem.Define(c.Data); err != nil {
		t.Fatalf("define %s: %v", c.Name, err)
	}
	v := vm.New(loader.Chain{mem, loader.NewStubClassLoader()})
	v.Stdout = io.Discard
	return v
}

func call(t *testing.T, v *vm.VM, name, desc string, args ...vm.Value) vm.Value {
	t.Helper()
	got, err := v.Invoke("demo/T", name, desc, args...)
	if err != nil {
		t.Fatalf("%s%s: %v", name, desc, err)
	}
	return got
}

func params(typesAndNames ...string) []Param {
	out := make([]Param, 0, len(typesAndNames)/2)
	for i := 0; i+1 < len(typesAndNames); i += 2 {
		out = append(out, Param{Type: typesAndNames[i], Name: typesAndNames[i+1]})
	}
	return out
}

// addTo emits name = name + delta.
func addTo(b Builder, name string, delta int32) {
	b.Load(name)
	b.PushInt(delta)
	b.Add()
	b.Store(name)
}

func TestLiteralRoundTrip(t *testing.T) {
	type literal struct {
		typ, desc string
		push      func(b Builder)
		want      vm.Value
	}
	var lits []literal
	for _, v := range []int32{math.MinInt32, -32769, math.MinInt16, -129, math.MinInt8, -2, -1, 0, 1, 5, 6, math.MaxInt8, 128, math.MaxInt16, 32768, math.MaxInt32} {
		lits = append(lits, literal{"int", "I", func(b Builder) { b.PushInt(v) }, vm.IntValue(v)})
	}
	for _, v := range []int64{math.MinInt64, -1, 0, 1, 2, math.MaxInt32 + 1, math.MaxInt64} {
		lits = append(lits, literal{"long", "J", func(b Builder) { b.PushLong(v) }, vm.LongValue(v)})
	}
	for _, v := range []float32{0, 1, 2, 3, -1.5, 0.1, math.MaxFloat32, math.SmallestNonzeroFloat32} {
		lits = append(lits, literal{"float", "F", func(b Builder) { b.PushFloat(v) }, vm.FloatValue(v)})
	}
	for _, v := range []float64{0, 1, 2, -0.5, 0.1, math.MaxFloat64, math.SmallestNonzeroFloat64} {
		lits = append(lits, literal{"double", "D", func(b Builder) { b.PushDouble(v) }, vm.DoubleValue(v)})
	}
	for _, v := range []int8{math.MinInt8, -1, 0, math.MaxInt8} {
		lits = append(lits, literal{"byte", "B", func(b Builder) { b.PushByte(v) }, vm.IntValue(int32(v))})
	}
	for _, v := range []int16{math.MinInt16, math.MaxInt16} {
		lits = append(lits, literal{"short", "S", func(b Builder) { b.PushShort(v) }, vm.IntValue(int32(v))})
	}
	for _, v := range []uint16{0, 'a', math.MaxUint16} {
		lits = append(lits, literal{"char", "C", func(b Builder) { b.PushChar(v) }, vm.IntValue(int32(v))})
	}

	c := compile(t, func(b Builder) {
		for i, lit := range lits {
			b.DefineMethod(pubStatic, lit.typ, fmt.Sprintf("get%d", i), nil, func(b Builder) error {
				lit.push(b)
				return b.Return()
			})
			// same(x) returns x == literal
			b.DefineMethod(pubStatic, "boolean", fmt.Sprintf("same%d", i), params(lit.typ, "x"), func(b Builder) error {
				b.Load("x")
				lit.push(b)
				b.Eq()
				return b.Return()
			})
		}
	})
	v := newVM(t, c)
	for i, lit := range lits {
		t.Run(fmt.Sprintf("%s %v", lit.typ, lit.want), func(t *testing.T) {
			if got := call(t, v, fmt.Sprintf("get%d", i), "()"+lit.desc); got != lit.want {
				t.Errorf("returned %v, want %v", got, lit.want)
			}
			if got := call(t, v, fmt.Sprintf("same%d", i), "("+lit.desc+")Z", lit.want); got.Int != 1 {
				t.Errorf("comparison with the argument %v was false", lit.want)
			}
		})
	}
}

func TestNarrowArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string // parameter types
		ret      string
		desc     string
		op       func(b Builder) (*types.Type, error)
		x, y     vm.Value
		want     vm.Value
		wantKind types.Kind
	}{
		{"byte + byte wraps", "byte", "byte", "byte", "(BB)B", Builder.Add, vm.IntValue(100), vm.IntValue(100), vm.IntValue(-56), types.Byte},
		{"byte * byte wraps", "byte", "byte", "byte", "(BB)B", Builder.Mul, vm.IntValue(16), vm.IntValue(16), vm.IntValue(0), types.Byte},
		{"short + short wraps", "short", "short", "short", "(SS)S", Builder.Add, vm.IntValue(math.MaxInt16), vm.IntValue(1), vm.IntValue(math.MinInt16), types.Short},
		{"char + char wraps", "char", "char", "char", "(CC)C", Builder.Add, vm.IntValue(math.MaxUint16), vm.IntValue(1), vm.IntValue(0), types.Char},
		{"byte - byte wraps", "byte", "byte", "byte", "(BB)B", Builder.Sub, vm.IntValue(-128), vm.IntValue(1), vm.IntValue(127), types.Byte},
		{"byte + short is int", "byte", "short", "int", "(BS)I", Builder.Add, vm.IntValue(100), vm.IntValue(100), vm.IntValue(200), types.Int},
		{"int + int overflows", "int", "int", "int", "(II)I", Builder.Add, vm.IntValue(math.MaxInt32), vm.IntValue(1), vm.IntValue(math.MinInt32), types.Int},
		{"int + long is long", "int", "long", "long", "(IJ)J", Builder.Add, vm.IntValue(math.MaxInt32), vm.LongValue(1), vm.LongValue(math.MaxInt32 + 1), types.Long},
		{"long * int is long", "long", "int", "long", "(JI)J", Builder.Mul, vm.LongValue(1 << 40), vm.IntValue(4), vm.LongValue(1 << 42), types.Long},
		{"int / double is double", "int", "double", "double", "(ID)D", Builder.Div, vm.IntValue(7), vm.DoubleValue(2), vm.DoubleValue(3.5), types.Double},
		{"char + int is int", "char", "int", "int", "(CI)I", Builder.Add, vm.IntValue('a'), vm.IntValue(1), vm.IntValue('b'), types.Int},
		{"float % float", "float", "float", "float", "(FF)F", Builder.Rem, vm.FloatValue(7.5), vm.FloatValue(2), vm.FloatValue(1.5), types.Float},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result *types.Type
			c := compile(t, func(b Builder) {
				b.DefineMethod(pubStatic, tt.ret, "f", params(tt.a, "a", tt.b, "b"), func(b Builder) error {
					b.Load("a")
					b.Load("b")
					result, _ = tt.op(b)
					return b.Return()
				})
			})
			if result == nil || result.Kind() != tt.wantKind {
				t.Errorf("result type: got %v, want kind %v", result, tt.wantKind)
			}
			if got := call(t, newVM(t, c), "f", tt.desc, tt.x, tt.y); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIncrements(t *testing.T) {
	c := compile(t, func(b Builder) {
		b.Field(pubStatic, "long", "total")
		// byte b = 127; b++ wraps; returns b
		b.DefineMethod(pubStatic, "byte", "wrap", nil, func(b Builder) error {
			b.DeclareLocal("byte", "x")
			b.PushByte(127)
			b.Store("x")
			b.PostIncLocal("x")
			b.Pop()
			b.Load("x")
			return b.Return()
		})
		// returns x++ + ++x for x = 5: 5 + 7
		b.DefineMethod(pubStatic, "int", "mixed", nil, func(b Builder) error {
			b.DeclareLocal("int", "x")
			b.PushInt(5)
			b.Store("x")
			b.PostIncLocal("x")
			b.PreIncLocal("x")
			b.Add()
			return b.Return()
		})
		// total += 1000 twice through the static field; returns the old value of the second
		b.DefineMethod(pubStatic, "long", "statics", nil, func(b Builder) error {
			b.IncStatic("", "total", 1000, false)
			b.Pop()
			b.IncStatic("", "total", 1000, true)
			return b.Return()
		})
		// int[] a = new int[3]; i = 0; a[i++]++ leaves a[0] == 1 and i == 1; returns a[0]*10 + i
		b.DefineMethod(pubStatic, "int", "array", nil, func(b Builder) error {
			b.DeclareLocal("int[]", "a")
			b.DeclareLocal("int", "i")
			b.BeginNewArray("int[]")
			b.PushInt(3)
			b.Arg()
			b.EndNewArray()
			b.Store("a")
			b.PushInt(0)
			b.Store("i")
			b.Load("a")
			b.PostIncLocal("i")
			b.IncArray(1, true)
			b.Pop()
			b.Load("a")
			b.PushInt(0)
			b.ArrayLoad()
			b.PushInt(10)
			b.Mul()
			b.Load("i")
			b.Add()
			return b.Return()
		})
		// double d = 0.5; --d
		b.DefineMethod(pubStatic, "double", "wide", nil, func(b Builder) error {
			b.DeclareLocal("double", "d")
			b.PushDouble(0.5)
			b.Store("d")
			b.PreDecLocal("d")
			return b.Return()
		})
	})
	v := newVM(t, c)
	tests := []struct {
		name, desc string
		want       vm.Value
	}{
		{"wrap", "()B", vm.IntValue(-128)},
		{"mixed", "()I", vm.IntValue(12)},
		{"statics", "()J", vm.LongValue(1000)},
		{"array", "()I", vm.IntValue(11)},
		{"wide", "()D", vm.DoubleValue(-0.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := call(t, v, tt.name, tt.desc); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoopIterations(t *testing.T) {
	c := compile(t, func(b Builder) {
		// int count = 0; while (n > 0) { count++; n--; } return count;
		b.DefineMethod(pubStatic, "int", "countdown", params("int", "n"), func(b Builder) error {
			b.DeclareLocal("int", "count")
			b.PushInt(0)
			b.Store("count")
			b.Loop()
			b.Load("n")
			b.PushInt(0)
			b.Gt()
			b.While()
			addTo(b, "count", 1)
			addTo(b, "n", -1)
			b.EndLoop()
			b.Load("count")
			return b.Return()
		})
		// int i = 0; loop { i++; if (i == 3) break; } return i;
		b.DefineMethod(pubStatic, "int", "breaks", nil, func(b Builder) error {
			b.DeclareLocal("int", "i")
			b.PushInt(0)
			b.Store("i")
			b.Loop()
			addTo(b, "i", 1)
			b.Load("i")
			b.PushInt(3)
			b.Eq()
			b.If()
			b.Break("")
			b.EndIf()
			b.EndLoop()
			b.Load("i")
			return b.Return()
		})
		// for (;;) without a step: sum 0..n-1 using while inside the for
		b.DefineMethod(pubStatic, "int", "forNoStep", params("int", "n"), func(b Builder) error {
			b.DeclareLocal("int", "i")
			b.DeclareLocal("int", "sum")
			b.PushInt(0)
			b.Store("i")
			b.PushInt(0)
			b.Store("sum")
			b.For()
			b.Load("i")
			b.Load("n")
			b.Lt()
			b.While()
			b.Load("sum")
			b.PostIncLocal("i")
			b.Add()
			b.Store("sum")
			b.EndLoop()
			b.Load("sum")
			return b.Return()
		})
	})
	v := newVM(t, c)
	tests := []struct {
		name, desc string
		args       []vm.Value
		want       int32
	}{
		{"countdown", "(I)I", []vm.Value{vm.IntValue(5)}, 5},
		{"countdown", "(I)I", []vm.Value{vm.IntValue(0)}, 0},
		{"breaks", "()I", nil, 3},
		{"forNoStep", "(I)I", []vm.Value{vm.IntValue(5)}, 10},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s%v", tt.name, tt.args), func(t *testing.T) {
			if got := call(t, v, tt.name, tt.desc, tt.args...); got.Int != tt.want {
				t.Errorf("got %d, want %d", got.Int, tt.want)
			}
		})
	}
}

func TestIfElse(t *testing.T) {
	c := compile(t, func(b Builder) {
		// then adds 1, else adds 10
		b.DefineMethod(pubStatic, "int", "withElse", params("boolean", "c"), func(b Builder) error {
			b.DeclareLocal("int", "r")
			b.PushInt(0)
			b.Store("r")
			b.Load("c")
			b.If()
			addTo(b, "r", 1)
			b.Else()
			addTo(b, "r", 10)
			b.EndIf()
			b.Load("r")
			return b.Return()
		})
		b.DefineMethod(pubStatic, "int", "withoutElse", params("boolean", "c"), func(b Builder) error {
			b.DeclareLocal("int", "r")
			b.PushInt(0)
			b.Store("r")
			b.Load("c")
			b.If()
			addTo(b, "r", 1)
			b.EndIf()
			b.Load("r")
			return b.Return()
		})
		// if (!c) return 1; else return 2; nothing follows
		b.DefineMethod(pubStatic, "int", "bothReturn", params("boolean", "c"), func(b Builder) error {
			b.Load("c")
			b.Not()
			b.If()
			b.PushInt(1)
			b.Return()
			b.Else()
			b.PushInt(2)
			b.Return()
			return b.EndIf()
		})
	})
	v := newVM(t, c)
	tests := []struct {
		method string
		cond   bool
		want   int32
	}{
		{"withElse", true, 1},
		{"withElse", false, 10},
		{"withoutElse", true, 1},
		{"withoutElse", false, 0},
		{"bothReturn", true, 2},
		{"bothReturn", false, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s(%t)", tt.method, tt.cond), func(t *testing.T) {
			if got := call(t, v, tt.method, "(Z)I", vm.BoolValue(tt.cond)); got.Int != tt.want {
				t.Errorf("got %d, want %d", got.Int, tt.want)
			}
		})
	}
}

// switchMethod builds static int f(int k) whose cases add 1, 2, 4, ... to
// the result; case i falls through to case i+1 when i is in fallthrough.
// Default adds 100.
func switchMethod(keys []int32, falls map[int]bool) func(b Builder) {
	return func(b Builder) {
		b.DefineMethod(pubStatic, "int", "f", params("int", "k"), func(b Builder) error {
			b.DeclareLocal("int", "r")
			b.PushInt(0)
			b.Store("r")
			b.Load("k")
			b.Switch()
			for i, k := range keys {
				b.Case(k)
				addTo(b, "r", 1<<i)
				if !falls[i] {
					b.Break("")
				}
			}
			b.Default()
			addTo(b, "r", 100)
			b.EndSwitch()
			b.Load("r")
			return b.Return()
		})
	}
}

func TestSwitchDispatch(t *testing.T) {
	tests := []struct {
		name     string
		keys     []int32
		fall     map[int]bool
		dispatch string
		want     map[int32]int32
	}{
		{"contiguous", []int32{1, 2, 3, 4}, map[int]bool{2: true}, "tableswitch",
			map[int32]int32{1: 1, 2: 2, 3: 4 + 8, 4: 8, 0: 100, 5: 100, -1: 100}},
		{"sparse", []int32{1, 5, 100}, nil, "lookupswitch",
			map[int32]int32{1: 1, 5: 2, 100: 4, 2: 100, 99: 100, math.MinInt32: 100}},
		{"negative contiguous", []int32{-1, 0, 1}, nil, "tableswitch",
			map[int32]int32{-1: 1, 0: 2, 1: 4, 2: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var listing strings.Builder
			ctx := newTestContext()
			ctx.NewSink = func(pool *classfile.PoolBuilder, method string) emit.Sink {
				return emit.NewPrinter(&listing, method)
			}
			if _, err := generate(ctx, switchMethod(tt.keys, tt.fall)); err != nil {
				t.Fatal(err)
			}
			other := map[string]string{"tableswitch": "lookupswitch", "lookupswitch": "tableswitch"}[tt.dispatch]
			if !strings.Contains(listing.String(), tt.dispatch) || strings.Contains(listing.String(), other) {
				t.Errorf("expected a %s dispatch:\n%s", tt.dispatch, listing.String())
			}

			v := newVM(t, compile(t, switchMethod(tt.keys, tt.fall)))
			for key, want := range tt.want {
				if got := call(t, v, "f", "(I)I", vm.IntValue(key)); got.Int != want {
					t.Errorf("f(%d): got %d, want %d", key, got.Int, want)
				}
			}
		})
	}
}

func TestFinallyRunsOnce(t *testing.T) {
	finally := func(b Builder) {
		b.Finally()
		b.IncStatic("", "count", 1, false)
		b.Pop()
		b.EndTry()
	}
	throw := func(b Builder, class string) {
		b.BeginNew(class)
		b.PushString("x")
		b.Arg()
		b.EndNew()
		b.Throw()
	}
	c := compile(t, func(b Builder) {
		b.Field(pubStatic, "int", "count")
		b.DefineMethod(pubStatic, "int", "count", nil, func(b Builder) error {
			b.GetStatic("", "count")
			return b.Return()
		})
		b.DefineMethod(pubStatic, "void", "normal", nil, func(b Builder) error {
			b.Try()
			b.PushInt(1)
			b.Pop()
			finally(b)
			return nil
		})
		b.DefineMethod(pubStatic, "void", "caught", nil, func(b Builder) error {
			b.Try()
			throw(b, "RuntimeException")
			b.Catch("RuntimeException", "e")
			finally(b)
			return nil
		})
		b.DefineMethod(pubStatic, "void", "uncaught", nil, func(b Builder) error {
			b.Try()
			throw(b, "IllegalStateException")
			b.Catch("ArithmeticException", "e")
			finally(b)
			return nil
		})
		b.DefineMethod(pubStatic, "void", "throwsFromCatch", nil, func(b Builder) error {
			b.Try()
			throw(b, "IllegalStateException")
			b.Catch("IllegalStateException", "e")
			throw(b, "IllegalArgumentException")
			finally(b)
			return nil
		})
		b.DefineMethod(pubStatic, "int", "returns", nil, func(b Builder) error {
			b.Try()
			b.PushInt(7)
			b.Return()
			finally(b)
			b.PushInt(-1)
			return b.Return()
		})
		b.DefineMethod(pubStatic, "void", "breaks", nil, func(b Builder) error {
			b.Loop()
			b.Try()
			b.Break("")
			finally(b)
			return b.EndLoop()
		})
		// two iterations, each leaving the try through continue
		b.DefineMethod(pubStatic, "void", "continues", nil, func(b Builder) error {
			b.DeclareLocal("int", "i")
			b.PushInt(0)
			b.Store("i")
			b.Loop()
			b.Load("i")
			b.PushInt(2)
			b.Lt()
			b.While()
			addTo(b, "i", 1)
			b.Try()
			b.Continue("")
			finally(b)
			return b.EndLoop()
		})
		// the finally body's own exception replaces the one in flight
		b.DefineMethod(pubStatic, "void", "throwsFromFinally", nil, func(b Builder) error {
			b.Try()
			throw(b, "IllegalArgumentException")
			b.Finally()
			b.IncStatic("", "count", 1, false)
			b.Pop()
			throw(b, "IllegalStateException")
			return b.EndTry()
		})
		// return 5 through two finally blocks
		b.DefineMethod(pubStatic, "int", "nestedReturn", nil, func(b Builder) error {
			b.Try()
			b.Try()
			b.PushInt(5)
			b.Return()
			finally(b)
			finally(b)
			b.PushInt(-1)
			return b.Return()
		})
		b.DefineMethod(pubStatic, "void", "nestedUncaught", nil, func(b Builder) error {
			b.Try()
			b.Try()
			throw(b, "IllegalStateException")
			finally(b)
			finally(b)
			return nil
		})
	})
	tests := []struct {
		name, desc string
		exception  string
		want       int32
		ret        int32
	}{
		{"normal", "()V", "", 1, 0},
		{"caught", "()V", "", 1, 0},
		{"uncaught", "()V", "java/lang/IllegalStateException", 1, 0},
		{"throwsFromCatch", "()V", "java/lang/IllegalArgumentException", 1, 0},
		{"returns", "()I", "", 1, 7},
		{"breaks", "()V", "", 1, 0},
		{"continues", "()V", "", 2, 0},
		{"throwsFromFinally", "()V", "java/lang/IllegalStateException", 1, 0},
		{"nestedReturn", "()I", "", 2, 5},
		{"nestedUncaught", "()V", "java/lang/IllegalStateException", 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newVM(t, c)
			got, err := v.Invoke("demo/T", tt.name, tt.desc)
			if tt.exception == "" {
				if err != nil {
					t.Fatal(err)
				}
			} else {
				var jex *vm.JavaException
				if !errors.As(err, &jex) || jex.ClassName() != tt.exception {
					t.Fatalf("got error %v, want %s", err, tt.exception)
				}
			}
			if strings.HasSuffix(tt.desc, "I") && got.Int != tt.ret {
				t.Errorf("returned %d, want %d", got.Int, tt.ret)
			}
			if n := call(t, v, "count", "()I"); n.Int != tt.want {
				t.Errorf("finally ran %d times, want %d", n.Int, tt.want)
			}
		})
	}
}

func TestCatchOnlyExits(t *testing.T) {
	c := compile(t, func(b Builder) {
		b.DefineMethod(pubStatic, "int", "returns", nil, func(b Builder) error {
			b.Try()
			b.PushInt(42)
			b.Return()
			b.Catch("RuntimeException", "e")
			b.EndTry()
			b.PushInt(-1)
			return b.Return()
		})
		b.DefineMethod(pubStatic, "int", "returnsFromCatch", nil, func(b Builder) error {
			b.Try()
			b.BeginNew("RuntimeException")
			b.EndNew()
			b.Throw()
			b.Catch("RuntimeException", "e")
			b.PushInt(9)
			b.Return()
			b.EndTry()
			b.PushInt(-1)
			return b.Return()
		})
		// int i = 0; loop { try { i++; break; } catch (RuntimeException e) {} } return i;
		b.DefineMethod(pubStatic, "int", "breaks", nil, func(b Builder) error {
			b.DeclareLocal("int", "i")
			b.PushInt(0)
			b.Store("i")
			b.Loop()
			b.Try()
			addTo(b, "i", 1)
			b.Break("")
			b.Catch("RuntimeException", "e")
			b.EndTry()
			b.EndLoop()
			b.Load("i")
			return b.Return()
		})
		// skipped counts the statements after the try that continue jumps over
		b.DefineMethod(pubStatic, "int", "continues", nil, func(b Builder) error {
			b.DeclareLocal("int", "i")
			b.DeclareLocal("int", "skipped")
			b.PushInt(0)
			b.Store("i")
			b.PushInt(0)
			b.Store("skipped")
			b.Loop()
			b.Load("i")
			b.PushInt(3)
			b.Lt()
			b.While()
			addTo(b, "i", 1)
			b.Try()
			b.Continue("")
			b.Catch("RuntimeException", "e")
			b.EndTry()
			addTo(b, "skipped", 100)
			b.EndLoop()
			b.Load("i")
			b.Load("skipped")
			b.Add()
			return b.Return()
		})
	})
	tests := []struct {
		name string
		want int32
	}{
		{"returns", 42},
		{"returnsFromCatch", 9},
		{"breaks", 1},
		{"continues", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := call(t, newVM(t, c), tt.name, "()I"); got.Int != tt.want {
				t.Errorf("got %d, want %d", got.Int, tt.want)
			}
		})
	}
}

func TestMethodBodyErrors(t *testing.T) {
	tests := []struct {
		name string
		ret  string
		body func(b Builder)
		key  diag.Key
		kind diag.Kind
	}{
		{"else twice", "void", func(b Builder) {
			b.PushBoolean(true)
			b.If()
			b.Else()
			b.Else()
		}, diag.KeyElseTwice, diag.ControlFlow},
		{"default twice", "void", func(b Builder) {
			b.PushInt(1)
			b.Switch()
			b.Case(1)
			b.Default()
			b.Default()
		}, diag.KeyDefaultTwice, diag.ControlFlow},
		{"duplicate case", "void", func(b Builder) {
			b.PushInt(1)
			b.Switch()
			b.Case(1)
			b.Case(1)
		}, diag.KeyDuplicateCase, diag.ControlFlow},
		{"switch without cases", "void", func(b Builder) {
			b.PushInt(1)
			b.Switch()
			b.EndSwitch()
		}, diag.KeyNoCases, diag.ControlFlow},
		{"loop without exit", "void", func(b Builder) {
			b.Loop()
			b.EndLoop()
		}, diag.KeyLoopWithoutExit, diag.ControlFlow},
		{"unknown label", "void", func(b Builder) {
			b.Loop()
			b.Break("nowhere")
		}, diag.KeyLabelNotFound, diag.ControlFlow},
		{"break outside", "void", func(b Builder) {
			b.Break("")
		}, diag.KeyBreakOutside, diag.ControlFlow},
		{"continue in switch", "void", func(b Builder) {
			b.PushInt(1)
			b.Switch()
			b.Case(1)
			b.Continue("")
		}, diag.KeyContinueOutside, diag.ControlFlow},
		{"mismatched end", "void", func(b Builder) {
			b.PushBoolean(true)
			b.If()
			b.EndLoop()
		}, diag.KeyMismatchedEnd, diag.ControlFlow},
		{"try without handler", "void", func(b Builder) {
			b.Try()
			b.EndTry()
		}, diag.KeyTryWithoutHandler, diag.ControlFlow},
		{"dangling label", "void", func(b Builder) {
			b.Label("l")
		}, diag.KeyLabelPending, diag.ControlFlow},
		{"label before break", "void", func(b Builder) {
			b.Loop()
			b.Label("l")
			b.Break("")
		}, diag.KeyLabelPending, diag.ControlFlow},
		{"missing return", "int", func(b Builder) {}, diag.KeyMissingReturn, diag.ControlFlow},
		{"if on int", "void", func(b Builder) {
			b.PushInt(1)
			b.If()
		}, diag.KeyNotBoolean, diag.Type},
		{"switch on long", "void", func(b Builder) {
			b.PushLong(1)
			b.Switch()
		}, diag.KeyNotIntegral, diag.Type},
		{"int plus boolean", "void", func(b Builder) {
			b.PushInt(1)
			b.PushBoolean(true)
			b.Add()
		}, diag.KeyIncompatibleOperands, diag.Type},
		{"return mismatch", "int", func(b Builder) {
			b.PushString("x")
			b.Return()
		}, diag.KeyReturnMismatch, diag.Type},
		{"narrowing store", "void", func(b Builder) {
			b.DeclareLocal("int", "x")
			b.PushLong(1)
			b.Store("x")
		}, diag.KeyIncompatibleTypes, diag.Type},
		{"throw a string", "void", func(b Builder) {
			b.PushString("x")
			b.Throw()
		}, diag.KeyNotThrowable, diag.Type},
		{"new abstract class", "void", func(b Builder) {
			b.BeginNew("Number")
		}, diag.KeyAbstractNew, diag.Type},
		{"value left behind", "void", func(b Builder) {
			b.PushInt(1)
		}, diag.KeyStackNotEmpty, diag.Type},
		{"unknown type", "void", func(b Builder) {
			b.DeclareLocal("NoSuchType", "x")
		}, diag.KeyUnknownType, diag.Resolution},
		{"unknown variable", "void", func(b Builder) {
			b.Load("nope")
		}, diag.KeyUnknownVariable, diag.Resolution},
		{"no such method", "void", func(b Builder) {
			b.BeginCall()
			b.InvokeStatic("Math", "nope")
		}, diag.KeyNoSuchMethod, diag.Resolution},
		{"duplicate local", "void", func(b Builder) {
			b.DeclareLocal("int", "x")
			b.DeclareLocal("long", "x")
		}, diag.KeyDuplicateLocal, diag.Declaration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := generate(newTestContext(), func(b Builder) {
				b.BeginMethod(pubStatic, tt.ret, "f")
				tt.body(b)
				b.EndMethod()
			})
			if !diag.Is(err, tt.key) {
				t.Fatalf("got %v, want key %s", err, tt.key)
			}
			if got := diag.KindOf(err); got != tt.kind {
				t.Errorf("kind: got %v, want %v", got, tt.kind)
			}
			if diag.IsInternal(err) {
				t.Errorf("reported as a generator bug: %v", err)
			}
		})
	}
}

func TestDeclarationErrors(t *testing.T) {
	tests := []struct {
		name  string
		flags classfile.AccessFlags
		decl  func(b Builder)
		key   diag.Key
	}{
		{"two access modifiers", pub, func(b Builder) {
			b.Field(classfile.AccPublic|classfile.AccPrivate, "int", "x")
		}, diag.KeyMultipleAccess},
		{"final volatile field", pub, func(b Builder) {
			b.Field(classfile.AccFinal|classfile.AccVolatile, "int", "x")
		}, diag.KeyModifierCombination},
		{"abstract field", pub, func(b Builder) {
			b.Field(classfile.AccAbstract, "int", "x")
		}, diag.KeyIllegalModifiers},
		{"abstract static method", pub | classfile.AccAbstract, func(b Builder) {
			b.AbstractMethod(classfile.AccAbstract|classfile.AccStatic, "void", "f")
		}, diag.KeyModifierCombination},
		{"abstract method in concrete class", pub, func(b Builder) {
			b.AbstractMethod(classfile.AccPublic|classfile.AccAbstract, "void", "f")
		}, diag.KeyIllegalModifiers},
		{"duplicate field", pub, func(b Builder) {
			b.Field(pub, "int", "x")
			b.Field(pub, "long", "x")
		}, diag.KeyDuplicateField},
		{"duplicate method", pub, func(b Builder) {
			b.AbstractMethod(pub|classfile.AccNative, "void", "f", Param{Type: "int", Name: "a"})
			b.AbstractMethod(pub|classfile.AccNative, "int", "f", Param{Type: "int", Name: "b"})
		}, diag.KeyDuplicateMethod},
		{"import after members", pub, func(b Builder) {
			b.Field(pub, "int", "x")
			b.Import("java.util.HashMap")
		}, diag.KeyDeclarationOrder},
		{"extends a final class", pub, func(b Builder) {
			b.Extends("String")
		}, diag.KeyBadSuper},
		{"implements a class", pub, func(b Builder) {
			b.Implements("Object")
		}, diag.KeyNotInterface},
		{"unknown import", pub, func(b Builder) {
			b.Import("no.such.Type")
		}, diag.KeyUnknownType},
		{"body outside method", pub, func(b Builder) {
			b.PushInt(1)
		}, diag.KeyNotInMethod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestContext().NewClass(tt.flags, "demo.T")
			tt.decl(g)
			_, err := g.EndClass()
			if !diag.Is(err, tt.key) {
				t.Fatalf("got %v, want key %s", err, tt.key)
			}
			if diag.KindOf(err) == diag.Internal {
				t.Errorf("reported as a generator bug: %v", err)
			}
		})
	}
}

func TestErrorLatches(t *testing.T) {
	g := newTestContext().NewClass(pub, "demo.T")
	g.BeginMethod(pubStatic, "void", "f")
	g.PushInt(1)
	_, first := g.Load("missing")
	if first == nil {
		t.Fatal("expected an error")
	}
	if _, err := g.PushInt(2); err != first {
		t.Errorf("later call: got %v, want the first error", err)
	}
	if err := g.EndMethod(); err != first {
		t.Errorf("EndMethod: got %v, want the first error", err)
	}
	if _, err := g.EndClass(); err != first {
		t.Errorf("EndClass: got %v, want the first error", err)
	}
}

func TestSourcePosition(t *testing.T) {
	g := newTestContext().NewClass(pub, "demo.T")
	g.BeginMethod(pubStatic, "void", "f")
	g.SetLine(42)
	g.PushInt(1)
	err := g.If()
	var d *diag.Error
	if !errors.As(err, &d) {
		t.Fatalf("got %v, want a diagnostic", err)
	}
	if want := (diag.Pos{File: "T.java", Line: 42}); d.Pos != want {
		t.Errorf("position: got %v, want %v", d.Pos, want)
	}
}

func TestTwoPassForwardReferences(t *testing.T) {
	ctx := newTestContext()
	classes, err := TwoPass(ctx,
		Definition{Flags: pub, Name: "demo.A", Build: func(b Builder) error {
			// A.twice calls B.inc, declared later in another class
			return b.DefineMethod(pubStatic, "int", "twice", params("int", "x"), func(b Builder) error {
				b.BeginCall()
				b.BeginCall()
				b.Load("x")
				b.Arg()
				b.InvokeStatic("B", "inc")
				b.Arg()
				b.InvokeStatic("B", "inc")
				return b.Return()
			})
		}},
		Definition{Flags: pub, Name: "demo.B", Build: func(b Builder) error {
			b.DefineMethod(pubStatic, "int", "inc", params("int", "x"), func(b Builder) error {
				b.BeginCall()
				b.Load("x")
				b.Arg()
				b.InvokeStatic("", "add")
				return b.Return()
			})
			// declared after its caller in the same class
			return b.DefineMethod(classfile.AccPrivate|classfile.AccStatic, "int", "add", params("int", "x"), func(b Builder) error {
				b.Load("x")
				b.PushInt(1)
				b.Add()
				return b.Return()
			})
		}},
	)
	if err != nil {
		t.Fatal(err)
	}
	mem := loader.NewMemoryClassLoader()
	for _, c := range classes {
		if _, err := mem.Define(c.Data); err != nil {
			t.Fatal(err)
		}
	}
	v := vm.New(loader.Chain{mem, loader.NewStubClassLoader()})
	got, err := v.Invoke("demo/A", "twice", "(I)I", vm.IntValue(40))
	if err != nil {
		t.Fatal(err)
	}
	if got.Int != 42 {
		t.Errorf("got %d, want 42", got.Int)
	}
}

func TestGeneratedClassFile(t *testing.T) {
	c := compile(t, func(b Builder) {
		b.Field(classfile.AccPrivate|classfile.AccFinal, "long", "id")
		b.DefineConstructor(pub, params("long", "id"), func(b Builder) error {
			b.PushThis()
			b.Load("id")
			b.PutField("id")
			return nil
		})
	})
	if c.Name != "demo/T" {
		t.Errorf("Name: got %q", c.Name)
	}
	cf, err := classfile.ParseBytes(c.Data)
	if err != nil {
		t.Fatal(err)
	}
	if cf.MajorVersion != classfile.DefaultMajorVersion {
		t.Errorf("major version: got %d", cf.MajorVersion)
	}
	if cf.SourceFile != "T.java" {
		t.Errorf("SourceFile: got %q", cf.SourceFile)
	}
	if len(cf.Methods) != 1 || cf.Methods[0].Name != "<init>" || cf.Methods[0].Descriptor != "(J)V" {
		t.Fatalf("methods: got %+v", cf.Methods)
	}
	code := cf.Methods[0].Code
	// this and the two words of id
	if code.MaxLocals != 3 {
		t.Errorf("max locals: got %d, want 3", code.MaxLocals)
	}
	if code.MaxStack != 3 {
		t.Errorf("max stack: got %d, want 3", code.MaxStack)
	}
	var vars []string
	for _, lv := range code.LocalVariables {
		vars = append(vars, lv.Name)
	}
	if got := strings.Join(vars, ","); got != "this,id" {
		t.Errorf("local variables: got %s", got)
	}
}
