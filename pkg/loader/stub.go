package loader

import (
	"github.com/daimatz/jclassgen/pkg/classfile"
)

// StubClassLoader synthesizes the small part of java.base that generated
// code commonly touches, so that classes can be generated and executed
// without a JDK. Method bodies are absent: concrete methods are marked
// native and the runtime supplies their behavior.
type StubClassLoader struct {
	classes map[string]*classfile.ClassFile
}

type stubMember struct {
	flags      classfile.AccessFlags
	name, desc string
}

type stubClass struct {
	name    string
	super   string
	flags   classfile.AccessFlags
	ifaces  []string
	fields  []stubMember
	methods []stubMember
}

const (
	pub       = classfile.AccPublic
	pubNative = classfile.AccPublic | classfile.AccNative
	pubStatic = classfile.AccPublic | classfile.AccStatic | classfile.AccNative
	pubConst  = classfile.AccPublic | classfile.AccStatic | classfile.AccFinal
	pubAbs    = classfile.AccPublic | classfile.AccAbstract
	iface     = classfile.AccPublic | classfile.AccInterface | classfile.AccAbstract
)

func ctors(descs ...string) []stubMember {
	out := make([]stubMember, len(descs))
	for i, d := range descs {
		out[i] = stubMember{pubNative, "<init>", d}
	}
	return out
}

// overloads returns one member per argument descriptor, e.g. println(I)V.
func overloads(flags classfile.AccessFlags, name, ret string, args ...string) []stubMember {
	out := make([]stubMember, len(args))
	for i, a := range args {
		out[i] = stubMember{flags, name, "(" + a + ")" + ret}
	}
	return out
}

func concat(lists ...[]stubMember) []stubMember {
	var out []stubMember
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

const (
	tString = "Ljava/lang/String;"
	tObject = "Ljava/lang/Object;"
	tSB     = "Ljava/lang/StringBuilder;"
)

func exception(name, super string) stubClass {
	return stubClass{
		name: name, super: super, flags: pub | classfile.AccSuper,
		methods: ctors("()V", "("+tString+")V"),
	}
}

var stubLibrary = []stubClass{
	{
		name: "java/lang/Object", flags: pub | classfile.AccSuper,
		methods: []stubMember{
			{pubNative, "<init>", "()V"},
			{pubNative, "toString", "()" + tString},
			{pubNative, "equals", "(" + tObject + ")Z"},
			{pubNative, "hashCode", "()I"},
		},
	},
	{name: "java/io/Serializable", flags: iface},
	{name: "java/lang/Cloneable", flags: iface},
	{name: "java/lang/Runnable", flags: iface, methods: []stubMember{{pubAbs, "run", "()V"}}},
	{name: "java/lang/Comparable", flags: iface, methods: []stubMember{{pubAbs, "compareTo", "(" + tObject + ")I"}}},
	{
		name: "java/lang/CharSequence", flags: iface,
		methods: []stubMember{{pubAbs, "length", "()I"}, {pubAbs, "charAt", "(I)C"}},
	},
	{
		name: "java/lang/String", super: "java/lang/Object", flags: pub | classfile.AccFinal | classfile.AccSuper,
		ifaces: []string{"java/io/Serializable", "java/lang/Comparable", "java/lang/CharSequence"},
		methods: concat(
			ctors("()V", "("+tString+")V", "([C)V"),
			[]stubMember{
				{pubNative, "length", "()I"},
				{pubNative, "charAt", "(I)C"},
				{pubNative, "isEmpty", "()Z"},
				{pubNative, "equals", "(" + tObject + ")Z"},
				{pubNative, "hashCode", "()I"},
				{pubNative, "toString", "()" + tString},
				{pubNative, "concat", "(" + tString + ")" + tString},
				{pubNative, "substring", "(II)" + tString},
				{pubNative, "indexOf", "(I)I"},
				{pubNative, "compareTo", "(" + tString + ")I"},
				{pubNative, "compareTo", "(" + tObject + ")I"},
				{pubNative, "toCharArray", "()[C"},
			},
			overloads(pubStatic, "valueOf", tString, "Z", "C", "I", "J", "F", "D", tObject),
		),
	},
	{
		name: "java/lang/StringBuilder", super: "java/lang/Object", flags: pub | classfile.AccFinal | classfile.AccSuper,
		ifaces: []string{"java/io/Serializable", "java/lang/CharSequence"},
		methods: concat(
			ctors("()V", "("+tString+")V", "(I)V"),
			overloads(pubNative, "append", tSB, "Z", "C", "I", "J", "F", "D", tString, tObject),
			[]stubMember{
				{pubNative, "toString", "()" + tString},
				{pubNative, "length", "()I"},
				{pubNative, "charAt", "(I)C"},
				{pubNative, "reverse", "()" + tSB},
			},
		),
	},
	{
		name: "java/lang/Throwable", super: "java/lang/Object", flags: pub | classfile.AccSuper,
		ifaces: []string{"java/io/Serializable"},
		methods: concat(
			ctors("()V", "("+tString+")V"),
			[]stubMember{
				{pubNative, "getMessage", "()" + tString},
				{pubNative, "toString", "()" + tString},
			},
		),
	},
	exception("java/lang/Exception", "java/lang/Throwable"),
	exception("java/lang/Error", "java/lang/Throwable"),
	exception("java/lang/RuntimeException", "java/lang/Exception"),
	exception("java/lang/ArithmeticException", "java/lang/RuntimeException"),
	exception("java/lang/NullPointerException", "java/lang/RuntimeException"),
	exception("java/lang/ClassCastException", "java/lang/RuntimeException"),
	exception("java/lang/NegativeArraySizeException", "java/lang/RuntimeException"),
	exception("java/lang/IllegalArgumentException", "java/lang/RuntimeException"),
	exception("java/lang/IllegalStateException", "java/lang/RuntimeException"),
	exception("java/lang/IndexOutOfBoundsException", "java/lang/RuntimeException"),
	exception("java/lang/ArrayIndexOutOfBoundsException", "java/lang/IndexOutOfBoundsException"),
	exception("java/lang/ArrayStoreException", "java/lang/RuntimeException"),
	{
		name: "java/lang/Number", super: "java/lang/Object", flags: pubAbs | classfile.AccSuper,
		ifaces: []string{"java/io/Serializable"},
		methods: []stubMember{
			{pubNative, "<init>", "()V"},
			{pubAbs, "intValue", "()I"},
			{pubAbs, "longValue", "()J"},
			{pubAbs, "doubleValue", "()D"},
		},
	},
	{
		name: "java/lang/Integer", super: "java/lang/Number", flags: pub | classfile.AccFinal | classfile.AccSuper,
		ifaces: []string{"java/lang/Comparable"},
		fields: []stubMember{
			{pubConst, "MIN_VALUE", "I"},
			{pubConst, "MAX_VALUE", "I"},
		},
		methods: concat(
			ctors("(I)V"),
			[]stubMember{
				{pubStatic, "valueOf", "(I)Ljava/lang/Integer;"},
				{pubStatic, "parseInt", "(" + tString + ")I"},
				{pubStatic, "toString", "(I)" + tString},
				{pubNative, "intValue", "()I"},
				{pubNative, "longValue", "()J"},
				{pubNative, "doubleValue", "()D"},
				{pubNative, "toString", "()" + tString},
				{pubNative, "equals", "(" + tObject + ")Z"},
				{pubNative, "hashCode", "()I"},
				{pubNative, "compareTo", "(" + tObject + ")I"},
			},
		),
	},
	{
		name: "java/lang/Math", super: "java/lang/Object", flags: pub | classfile.AccFinal | classfile.AccSuper,
		methods: concat(
			overloads(pubStatic, "abs", "I", "I"),
			overloads(pubStatic, "abs", "J", "J"),
			overloads(pubStatic, "abs", "D", "D"),
			overloads(pubStatic, "max", "I", "II"),
			overloads(pubStatic, "min", "I", "II"),
			overloads(pubStatic, "max", "J", "JJ"),
			overloads(pubStatic, "min", "J", "JJ"),
			overloads(pubStatic, "sqrt", "D", "D"),
		),
	},
	{
		name: "java/lang/System", super: "java/lang/Object", flags: pub | classfile.AccFinal | classfile.AccSuper,
		fields: []stubMember{
			{pubConst, "out", "Ljava/io/PrintStream;"},
			{pubConst, "err", "Ljava/io/PrintStream;"},
		},
		methods: []stubMember{
			{pubStatic, "currentTimeMillis", "()J"},
			{pubStatic, "arraycopy", "(" + tObject + "I" + tObject + "II)V"},
		},
	},
	{
		name: "java/io/PrintStream", super: "java/lang/Object", flags: pub | classfile.AccSuper,
		methods: concat(
			overloads(pubNative, "println", "V", "", "Z", "C", "I", "J", "F", "D", "[C", tString, tObject),
			overloads(pubNative, "print", "V", "Z", "C", "I", "J", "F", "D", "[C", tString, tObject),
		),
	},
	{
		name: "java/util/HashMap", super: "java/lang/Object", flags: pub | classfile.AccSuper,
		ifaces: []string{"java/io/Serializable", "java/lang/Cloneable"},
		methods: concat(
			ctors("()V"),
			[]stubMember{
				{pubNative, "get", "(" + tObject + ")" + tObject},
				{pubNative, "put", "(" + tObject + tObject + ")" + tObject},
				{pubNative, "containsKey", "(" + tObject + ")Z"},
				{pubNative, "remove", "(" + tObject + ")" + tObject},
				{pubNative, "size", "()I"},
				{pubNative, "isEmpty", "()Z"},
			},
		),
	},
}

// NewStubClassLoader builds the stub library.
func NewStubClassLoader() *StubClassLoader {
	cl := &StubClassLoader{classes: make(map[string]*classfile.ClassFile, len(stubLibrary))}
	for _, sc := range stubLibrary {
		cl.classes[sc.name] = sc.build()
	}
	return cl
}

func (sc stubClass) build() *classfile.ClassFile {
	pb := classfile.NewPoolBuilder()
	cf := &classfile.ClassFile{
		MajorVersion: classfile.DefaultMajorVersion,
		MinorVersion: classfile.DefaultMinorVersion,
		AccessFlags:  sc.flags,
		ThisClass:    pb.Class(sc.name),
	}
	if sc.super != "" {
		cf.SuperClass = pb.Class(sc.super)
	} else if sc.flags.IsInterface() {
		cf.SuperClass = pb.Class("java/lang/Object")
	}
	for _, i := range sc.ifaces {
		cf.Interfaces = append(cf.Interfaces, pb.Class(i))
	}
	for _, f := range sc.fields {
		pb.Utf8(f.name)
		pb.Utf8(f.desc)
		cf.Fields = append(cf.Fields, classfile.FieldInfo{AccessFlags: f.flags, Name: f.name, Descriptor: f.desc})
	}
	for _, m := range sc.methods {
		pb.Utf8(m.name)
		pb.Utf8(m.desc)
		cf.Methods = append(cf.Methods, classfile.MethodInfo{AccessFlags: m.flags, Name: m.name, Descriptor: m.desc})
	}
	cf.ConstantPool = pb.Entries()
	return cf
}

func (cl *StubClassLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	cf, ok := cl.classes[name]
	if !ok {
		return nil, &NotFoundError{Name: name, Where: "stub library"}
	}
	return cf, nil
}

// Names lists the synthesized classes.
func (cl *StubClassLoader) Names() []string {
	names := make([]string, 0, len(stubLibrary))
	for _, sc := range stubLibrary {
		names = append(names, sc.name)
	}
	return names
}
