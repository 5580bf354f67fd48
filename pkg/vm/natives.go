package vm

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/daimatz/jclassgen/pkg/native"
)

const (
	stringClass  = "java/lang/String"
	builderClass = "java/lang/StringBuilder"
	integerClass = "java/lang/Integer"
	printStream  = "java/io/PrintStream"
	hashMapClass = "java/util/HashMap"
	objectDesc   = "Ljava/lang/Object;"
	stringDesc   = "Ljava/lang/String;"
)

// natives maps "class.name+descriptor" to the Go implementation.
var natives = make(map[string]NativeMethod)

// staticNatives set up the static fields of library classes.
var staticNatives = map[string]func(vm *VM, c *Class) error{
	"java/lang/System": func(vm *VM, c *Class) error {
		out, err := vm.newPrintStream(vm.Stdout)
		if err != nil {
			return err
		}
		errs, err := vm.newPrintStream(vm.Stderr)
		if err != nil {
			return err
		}
		c.Statics["out"] = out
		c.Statics["err"] = errs
		return nil
	},
	integerClass: func(vm *VM, c *Class) error {
		c.Statics["MIN_VALUE"] = IntValue(math.MinInt32)
		c.Statics["MAX_VALUE"] = IntValue(math.MaxInt32)
		return nil
	},
}

func register(class, name, desc string, fn NativeMethod) {
	natives[class+"."+name+desc] = fn
}

// findNative returns the Go implementation of a method, if any. A native
// method without its own entry inherits one with the same signature from a
// superclass, which covers the constructors of the exception classes.
func (vm *VM) findNative(c *Class, info *classfile.MethodInfo) NativeMethod {
	key := info.Name + info.Descriptor
	if fn, ok := natives[c.Name+"."+key]; ok {
		return fn
	}
	if !info.AccessFlags.IsNative() {
		return nil
	}
	for k := c.Super; k != nil; k = k.Super {
		if fn, ok := natives[k.Name+"."+key]; ok {
			return fn
		}
	}
	return nil
}

var void = Value{}

func str(v Value) string {
	s, _ := v.Ref.(string)
	return s
}

// StringOf converts a reference the way String.valueOf(Object) does,
// dispatching to toString.
func (vm *VM) StringOf(v Value) (string, error) {
	if v.IsNull() {
		return "null", nil
	}
	if s, ok := v.Ref.(string); ok {
		return s, nil
	}
	m, err := vm.virtual(v.Ref, "toString", "()"+stringDesc)
	if err != nil {
		return "", err
	}
	r, err := vm.call(m, []Value{v})
	if err != nil {
		return "", err
	}
	if r.IsNull() {
		return "null", nil
	}
	return str(r), nil
}

// format renders v, whose descriptor starts with kind, as string
// conversion does.
func (vm *VM) format(kind byte, v Value) (string, error) {
	switch kind {
	case 'Z':
		return native.FormatBoolean(v.Int), nil
	case 'C':
		return native.FormatChar(uint16(v.Int)), nil
	case 'B', 'S', 'I':
		return strconv.Itoa(int(v.Int)), nil
	case 'J':
		return strconv.FormatInt(v.Long, 10), nil
	case 'F':
		return native.FormatFloat(v.Float), nil
	case 'D':
		return native.FormatDouble(v.Double), nil
	}
	return vm.StringOf(v)
}

func identityHash(v Value) int32 {
	switch r := v.Ref.(type) {
	case *Object:
		if i, ok := r.Native.(*native.Integer); ok {
			return i.Value
		}
		return r.hash
	case string:
		return stringHash(r)
	}
	return 0
}

func stringHash(s string) int32 {
	var h int32
	for _, u := range native.UTF16(s) {
		h = 31*h + int32(u)
	}
	return h
}

func compareStrings(a, b string) int32 {
	ua, ub := native.UTF16(a), native.UTF16(b)
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			return int32(ua[i]) - int32(ub[i])
		}
	}
	return int32(len(ua) - len(ub))
}

func defaultString(v Value) string {
	switch r := v.Ref.(type) {
	case *Object:
		return r.String()
	case *Array:
		return r.Desc + "@" + strings.TrimPrefix(fmt.Sprintf("%p", r), "0x")
	}
	return str(v)
}

func nativeState[T any](vm *VM, v Value) (T, error) {
	var zero T
	obj, err := vm.receiver(v)
	if err != nil {
		return zero, err
	}
	state, ok := obj.Native.(T)
	if !ok {
		return zero, fmt.Errorf("%s instance is not initialized", obj.Class.Name)
	}
	return state, nil
}

func (vm *VM) newPrintStream(w io.Writer) (Value, error) {
	c, err := vm.Class(printStream)
	if err != nil {
		return Value{}, err
	}
	obj := vm.newObject(c)
	obj.Native = &native.PrintStream{Writer: w}
	return RefValue(obj), nil
}

// box returns an Integer for v, sharing instances for small values.
func (vm *VM) box(v int32) (Value, error) {
	n := native.IntegerValueOf(v)
	if obj, ok := vm.boxes[n]; ok {
		return RefValue(obj), nil
	}
	c, err := vm.Class(integerClass)
	if err != nil {
		return Value{}, err
	}
	obj := vm.newObject(c)
	obj.Native = n
	if v >= -128 && v <= 127 {
		vm.boxes[n] = obj
	}
	return RefValue(obj), nil
}

func integerValue(v Value) (int32, bool) {
	if obj, ok := v.Ref.(*Object); ok {
		if n, ok := obj.Native.(*native.Integer); ok {
			return n.Value, true
		}
	}
	return 0, false
}

// mapKey turns a HashMap key into a native key: boxed integers and strings
// by value, everything else by identity.
func mapKey(v Value) interface{} {
	if obj, ok := v.Ref.(*Object); ok {
		if n, ok := obj.Native.(*native.Integer); ok {
			return n
		}
	}
	return v.Ref
}

func init() {
	registerObject()
	registerString()
	registerStringBuilder()
	registerThrowable()
	registerInteger()
	registerSystem()
	registerHashMap()
}

func registerObject() {
	const c = "java/lang/Object"
	register(c, "<init>", "()V", func(vm *VM, args []Value) (Value, error) {
		return void, nil
	})
	register(c, "toString", "()"+stringDesc, func(vm *VM, args []Value) (Value, error) {
		return RefValue(defaultString(args[0])), nil
	})
	register(c, "equals", "("+objectDesc+")Z", func(vm *VM, args []Value) (Value, error) {
		return BoolValue(sameRef(args[0], args[1])), nil
	})
	register(c, "hashCode", "()I", func(vm *VM, args []Value) (Value, error) {
		return IntValue(identityHash(args[0])), nil
	})
}

func registerString() {
	const c = stringClass
	register(c, "length", "()I", func(vm *VM, args []Value) (Value, error) {
		return IntValue(int32(len(native.UTF16(str(args[0]))))), nil
	})
	register(c, "isEmpty", "()Z", func(vm *VM, args []Value) (Value, error) {
		return BoolValue(str(args[0]) == ""), nil
	})
	register(c, "charAt", "(I)C", func(vm *VM, args []Value) (Value, error) {
		units := native.UTF16(str(args[0]))
		i := args[1].Int
		if i < 0 || int(i) >= len(units) {
			return void, vm.throwf(indexRange, "index %d, length %d", i, len(units))
		}
		return IntValue(int32(units[i])), nil
	})
	register(c, "equals", "("+objectDesc+")Z", func(vm *VM, args []Value) (Value, error) {
		other, ok := args[1].Ref.(string)
		return BoolValue(ok && other == str(args[0])), nil
	})
	register(c, "hashCode", "()I", func(vm *VM, args []Value) (Value, error) {
		return IntValue(stringHash(str(args[0]))), nil
	})
	register(c, "toString", "()"+stringDesc, func(vm *VM, args []Value) (Value, error) {
		return args[0], nil
	})
	register(c, "concat", "("+stringDesc+")"+stringDesc, func(vm *VM, args []Value) (Value, error) {
		if args[1].IsNull() {
			return void, vm.throw(npe, "")
		}
		return RefValue(str(args[0]) + str(args[1])), nil
	})
	register(c, "substring", "(II)"+stringDesc, func(vm *VM, args []Value) (Value, error) {
		units := native.UTF16(str(args[0]))
		begin, end := args[1].Int, args[2].Int
		if begin < 0 || end > int32(len(units)) || begin > end {
			return void, vm.throwf(indexRange, "begin %d, end %d, length %d", begin, end, len(units))
		}
		return RefValue(native.FromUTF16(units[begin:end])), nil
	})
	register(c, "indexOf", "(I)I", func(vm *VM, args []Value) (Value, error) {
		for i, u := range native.UTF16(str(args[0])) {
			if int32(u) == args[1].Int {
				return IntValue(int32(i)), nil
			}
		}
		return IntValue(-1), nil
	})
	compareTo := func(vm *VM, args []Value) (Value, error) {
		if args[1].IsNull() {
			return void, vm.throw(npe, "")
		}
		other, ok := args[1].Ref.(string)
		if !ok {
			return void, vm.throw(classCast, "")
		}
		return IntValue(compareStrings(str(args[0]), other)), nil
	}
	register(c, "compareTo", "("+stringDesc+")I", compareTo)
	register(c, "compareTo", "("+objectDesc+")I", compareTo)
	register(c, "toCharArray", "()[C", func(vm *VM, args []Value) (Value, error) {
		units := native.UTF16(str(args[0]))
		arr := newArray("[C", len(units))
		for i, u := range units {
			arr.Elements[i] = IntValue(int32(u))
		}
		return RefValue(arr), nil
	})
	for _, d := range []string{"Z", "C", "I", "J", "F", "D", objectDesc} {
		kind := d[0]
		register(c, "valueOf", "("+d+")"+stringDesc, func(vm *VM, args []Value) (Value, error) {
			s, err := vm.format(kind, args[0])
			return RefValue(s), err
		})
	}
}

func registerStringBuilder() {
	const c = builderClass
	register(c, "<init>", "()V", func(vm *VM, args []Value) (Value, error) {
		obj, err := vm.receiver(args[0])
		if err != nil {
			return void, err
		}
		obj.Native = native.NewStringBuilder("")
		return void, nil
	})
	register(c, "<init>", "(I)V", func(vm *VM, args []Value) (Value, error) {
		if args[1].Int < 0 {
			return void, vm.throwf(negativeSize, "%d", args[1].Int)
		}
		obj, err := vm.receiver(args[0])
		if err != nil {
			return void, err
		}
		obj.Native = native.NewStringBuilder("")
		return void, nil
	})
	register(c, "<init>", "("+stringDesc+")V", func(vm *VM, args []Value) (Value, error) {
		if args[1].IsNull() {
			return void, vm.throw(npe, "")
		}
		obj, err := vm.receiver(args[0])
		if err != nil {
			return void, err
		}
		obj.Native = native.NewStringBuilder(str(args[1]))
		return void, nil
	})
	for _, d := range []string{"Z", "C", "I", "J", "F", "D", stringDesc, objectDesc} {
		kind := d[0]
		register(c, "append", "("+d+")L"+c+";", func(vm *VM, args []Value) (Value, error) {
			sb, err := nativeState[*native.StringBuilder](vm, args[0])
			if err != nil {
				return void, err
			}
			s, err := vm.format(kind, args[1])
			if err != nil {
				return void, err
			}
			sb.Append(s)
			return args[0], nil
		})
	}
	register(c, "toString", "()"+stringDesc, func(vm *VM, args []Value) (Value, error) {
		sb, err := nativeState[*native.StringBuilder](vm, args[0])
		if err != nil {
			return void, err
		}
		return RefValue(sb.String()), nil
	})
	register(c, "length", "()I", func(vm *VM, args []Value) (Value, error) {
		sb, err := nativeState[*native.StringBuilder](vm, args[0])
		if err != nil {
			return void, err
		}
		return IntValue(int32(sb.Len())), nil
	})
	register(c, "charAt", "(I)C", func(vm *VM, args []Value) (Value, error) {
		sb, err := nativeState[*native.StringBuilder](vm, args[0])
		if err != nil {
			return void, err
		}
		u, ok := sb.CharAt(int(args[1].Int))
		if !ok {
			return void, vm.throwf(indexRange, "index %d,length %d", args[1].Int, sb.Len())
		}
		return IntValue(int32(u)), nil
	})
	register(c, "reverse", "()L"+c+";", func(vm *VM, args []Value) (Value, error) {
		sb, err := nativeState[*native.StringBuilder](vm, args[0])
		if err != nil {
			return void, err
		}
		sb.Reverse()
		return args[0], nil
	})
}

func registerThrowable() {
	const c = throwableClass
	register(c, "<init>", "()V", func(vm *VM, args []Value) (Value, error) {
		return void, nil
	})
	register(c, "<init>", "("+stringDesc+")V", func(vm *VM, args []Value) (Value, error) {
		obj, err := vm.receiver(args[0])
		if err != nil {
			return void, err
		}
		obj.Fields[c+"."+messageField] = args[1]
		return void, nil
	})
	register(c, "getMessage", "()"+stringDesc, func(vm *VM, args []Value) (Value, error) {
		obj, err := vm.receiver(args[0])
		if err != nil {
			return void, err
		}
		msg, _ := obj.Field(c, messageField)
		return RefValue(msg.Ref), nil
	})
	register(c, "toString", "()"+stringDesc, func(vm *VM, args []Value) (Value, error) {
		obj, err := vm.receiver(args[0])
		if err != nil {
			return void, err
		}
		return RefValue((&JavaException{Object: obj}).Error()), nil
	})
}

func registerInteger() {
	const c = integerClass
	register(c, "<init>", "(I)V", func(vm *VM, args []Value) (Value, error) {
		obj, err := vm.receiver(args[0])
		if err != nil {
			return void, err
		}
		obj.Native = &native.Integer{Value: args[1].Int}
		return void, nil
	})
	register(c, "valueOf", "(I)L"+c+";", func(vm *VM, args []Value) (Value, error) {
		return vm.box(args[0].Int)
	})
	register(c, "parseInt", "("+stringDesc+")I", func(vm *VM, args []Value) (Value, error) {
		s := str(args[0])
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return void, vm.throwf(illegalArg, "For input string: \"%s\"", s)
		}
		return IntValue(int32(n)), nil
	})
	register(c, "toString", "(I)"+stringDesc, func(vm *VM, args []Value) (Value, error) {
		return RefValue(strconv.Itoa(int(args[0].Int))), nil
	})
	unboxed := func(convert func(int32) Value) NativeMethod {
		return func(vm *VM, args []Value) (Value, error) {
			n, err := nativeState[*native.Integer](vm, args[0])
			if err != nil {
				return void, err
			}
			return convert(n.Value), nil
		}
	}
	register(c, "intValue", "()I", unboxed(IntValue))
	register(c, "longValue", "()J", unboxed(func(v int32) Value { return LongValue(int64(v)) }))
	register(c, "doubleValue", "()D", unboxed(func(v int32) Value { return DoubleValue(float64(v)) }))
	register(c, "hashCode", "()I", unboxed(IntValue))
	register(c, "toString", "()"+stringDesc, unboxed(func(v int32) Value {
		return RefValue(strconv.Itoa(int(v)))
	}))
	register(c, "equals", "("+objectDesc+")Z", func(vm *VM, args []Value) (Value, error) {
		a, _ := integerValue(args[0])
		b, ok := integerValue(args[1])
		return BoolValue(ok && a == b), nil
	})
	register(c, "compareTo", "("+objectDesc+")I", func(vm *VM, args []Value) (Value, error) {
		if args[1].IsNull() {
			return void, vm.throw(npe, "")
		}
		a, _ := integerValue(args[0])
		b, ok := integerValue(args[1])
		if !ok {
			return void, vm.throw(classCast, "")
		}
		return IntValue(threeWay(a < b, a > b)), nil
	})
}

func registerSystem() {
	const (
		m = "java/lang/Math"
		s = "java/lang/System"
	)
	register(m, "abs", "(I)I", func(vm *VM, args []Value) (Value, error) {
		if v := args[0].Int; v < 0 {
			return IntValue(-v), nil
		}
		return args[0], nil
	})
	register(m, "abs", "(J)J", func(vm *VM, args []Value) (Value, error) {
		if v := args[0].Long; v < 0 {
			return LongValue(-v), nil
		}
		return args[0], nil
	})
	register(m, "abs", "(D)D", func(vm *VM, args []Value) (Value, error) {
		return DoubleValue(math.Abs(args[0].Double)), nil
	})
	register(m, "max", "(II)I", func(vm *VM, args []Value) (Value, error) {
		return IntValue(max(args[0].Int, args[1].Int)), nil
	})
	register(m, "min", "(II)I", func(vm *VM, args []Value) (Value, error) {
		return IntValue(min(args[0].Int, args[1].Int)), nil
	})
	register(m, "max", "(JJ)J", func(vm *VM, args []Value) (Value, error) {
		return LongValue(max(args[0].Long, args[1].Long)), nil
	})
	register(m, "min", "(JJ)J", func(vm *VM, args []Value) (Value, error) {
		return LongValue(min(args[0].Long, args[1].Long)), nil
	})
	register(m, "sqrt", "(D)D", func(vm *VM, args []Value) (Value, error) {
		return DoubleValue(math.Sqrt(args[0].Double)), nil
	})

	register(s, "currentTimeMillis", "()J", func(vm *VM, args []Value) (Value, error) {
		return LongValue(time.Now().UnixMilli()), nil
	})
	register(s, "arraycopy", "("+objectDesc+"I"+objectDesc+"II)V", func(vm *VM, args []Value) (Value, error) {
		if args[0].IsNull() || args[2].IsNull() {
			return void, vm.throw(npe, "")
		}
		src, ok1 := args[0].Ref.(*Array)
		dst, ok2 := args[2].Ref.(*Array)
		if !ok1 || !ok2 {
			return void, vm.throw(arrayStore, "arraycopy: argument type mismatch")
		}
		srcPos, dstPos, n := int(args[1].Int), int(args[3].Int), int(args[4].Int)
		if srcPos < 0 || dstPos < 0 || n < 0 || srcPos+n > len(src.Elements) || dstPos+n > len(dst.Elements) {
			return void, vm.throwf(arrayIndex, "arraycopy: last source index %d out of bounds for length %d", srcPos+n, len(src.Elements))
		}
		if src.Desc != dst.Desc {
			if src.Desc[1] != 'L' && src.Desc[1] != '[' || dst.Desc[1] != 'L' && dst.Desc[1] != '[' {
				return void, vm.throw(arrayStore, "arraycopy: type mismatch")
			}
		}
		copy(dst.Elements[dstPos:dstPos+n], src.Elements[srcPos:srcPos+n])
		return void, nil
	})

	printer := func(newline bool, kind byte) NativeMethod {
		return func(vm *VM, args []Value) (Value, error) {
			ps, err := nativeState[*native.PrintStream](vm, args[0])
			if err != nil {
				return void, err
			}
			var text string
			switch {
			case len(args) == 1:
			case kind == '[':
				text, err = vm.charArray(args[1])
			default:
				text, err = vm.format(kind, args[1])
			}
			if err != nil {
				return void, err
			}
			if newline {
				return void, ps.Println(text)
			}
			return void, ps.Print(text)
		}
	}
	register(printStream, "println", "()V", printer(true, 'V'))
	for _, d := range []string{"Z", "C", "I", "J", "F", "D", "[C", stringDesc, objectDesc} {
		register(printStream, "println", "("+d+")V", printer(true, d[0]))
		register(printStream, "print", "("+d+")V", printer(false, d[0]))
	}
}

func (vm *VM) charArray(v Value) (string, error) {
	if v.IsNull() {
		return "", vm.throw(npe, "")
	}
	arr, ok := v.Ref.(*Array)
	if !ok {
		return "", fmt.Errorf("%v is not a char array", v)
	}
	units := make([]uint16, len(arr.Elements))
	for i, e := range arr.Elements {
		units[i] = uint16(e.Int)
	}
	return native.FromUTF16(units), nil
}

func registerHashMap() {
	const c = hashMapClass
	withMap := func(fn func(m *native.HashMap, args []Value) Value) NativeMethod {
		return func(vm *VM, args []Value) (Value, error) {
			m, err := nativeState[*native.HashMap](vm, args[0])
			if err != nil {
				return void, err
			}
			return fn(m, args), nil
		}
	}
	register(c, "<init>", "()V", func(vm *VM, args []Value) (Value, error) {
		obj, err := vm.receiver(args[0])
		if err != nil {
			return void, err
		}
		obj.Native = native.NewHashMap()
		return void, nil
	})
	register(c, "get", "("+objectDesc+")"+objectDesc, withMap(func(m *native.HashMap, args []Value) Value {
		return RefValue(m.Get(mapKey(args[1])))
	}))
	register(c, "put", "("+objectDesc+objectDesc+")"+objectDesc, withMap(func(m *native.HashMap, args []Value) Value {
		return RefValue(m.Put(mapKey(args[1]), args[2].Ref))
	}))
	register(c, "containsKey", "("+objectDesc+")Z", withMap(func(m *native.HashMap, args []Value) Value {
		return BoolValue(m.ContainsKey(mapKey(args[1])))
	}))
	register(c, "remove", "("+objectDesc+")"+objectDesc, withMap(func(m *native.HashMap, args []Value) Value {
		return RefValue(m.Remove(mapKey(args[1])))
	}))
	register(c, "size", "()I", withMap(func(m *native.HashMap, args []Value) Value {
		return IntValue(int32(m.Size()))
	}))
	register(c, "isEmpty", "()Z", withMap(func(m *native.HashMap, args []Value) Value {
		return BoolValue(m.Size() == 0)
	}))
}
