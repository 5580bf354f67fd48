package vm

import (
	"fmt"

	"github.com/daimatz/jclassgen/pkg/classfile"
)

const (
	npe            = "java/lang/NullPointerException"
	arithmetic     = "java/lang/ArithmeticException"
	arrayIndex     = "java/lang/ArrayIndexOutOfBoundsException"
	indexRange     = "java/lang/IndexOutOfBoundsException"
	classCast      = "java/lang/ClassCastException"
	negativeSize   = "java/lang/NegativeArraySizeException"
	arrayStore     = "java/lang/ArrayStoreException"
	illegalArg     = "java/lang/IllegalArgumentException"
	messageField   = "detailMessage"
	throwableClass = "java/lang/Throwable"
)

// JavaException represents a JVM exception being thrown.
type JavaException struct {
	Object *Object
}

// ClassName returns the binary name of the exception's class.
func (e *JavaException) ClassName() string {
	return e.Object.Class.Name
}

// Message returns the detail message; ok is false when it is null.
func (e *JavaException) Message() (msg string, ok bool) {
	v, _ := e.Object.Field(throwableClass, messageField)
	s, ok := v.Ref.(string)
	return s, ok
}

func (e *JavaException) Error() string {
	if msg, ok := e.Message(); ok {
		return fmt.Sprintf("%s: %s", javaName(e.ClassName()), msg)
	}
	return javaName(e.ClassName())
}

// throw builds an exception of class with message msg ("" for none) and
// returns it as an error.
func (vm *VM) throw(class, msg string) error {
	c, err := vm.Class(class)
	if err != nil {
		return fmt.Errorf("raising %s: %w", class, err)
	}
	obj := vm.newObject(c)
	if msg != "" {
		obj.Fields[throwableClass+"."+messageField] = RefValue(msg)
	}
	return &JavaException{Object: obj}
}

func (vm *VM) throwf(class, format string, args ...interface{}) error {
	return vm.throw(class, fmt.Sprintf(format, args...))
}

// findHandler searches the exception table of m for a handler covering pc
// that accepts exc.
func (vm *VM) findHandler(m *Method, pc int, exc *JavaException) (int, bool, error) {
	pool := m.Class.File.ConstantPool
	for _, h := range m.Info.Code.ExceptionHandlers {
		if pc < int(h.StartPC) || pc >= int(h.EndPC) {
			continue
		}
		if h.CatchType == 0 {
			return int(h.HandlerPC), true, nil
		}
		name, err := classfile.GetClassName(pool, h.CatchType)
		if err != nil {
			return 0, false, err
		}
		c, err := vm.Class(name)
		if err != nil {
			return 0, false, err
		}
		if exc.Object.Class.IsSubclassOf(c) {
			return int(h.HandlerPC), true, nil
		}
	}
	return 0, false, nil
}
