package vm

import (
	"fmt"
	"strings"

	"github.com/daimatz/jclassgen/pkg/classfile"
)

type initState int

const (
	uninitialized initState = iota
	initializing
	initialized
)

// Class is a loaded and linked class.
type Class struct {
	Name       string
	File       *classfile.ClassFile
	Super      *Class
	Interfaces []*Class
	Statics    map[string]Value
	methods    map[string]*Method
	state      initState
}

// IsInterface reports whether c is an interface.
func (c *Class) IsInterface() bool {
	return c.File != nil && c.File.AccessFlags.IsInterface()
}

// IsSubclassOf reports whether c is target, extends it or implements it.
func (c *Class) IsSubclassOf(target *Class) bool {
	if c == nil {
		return false
	}
	if c == target {
		return true
	}
	for _, i := range c.Interfaces {
		if i.IsSubclassOf(target) {
			return true
		}
	}
	return c.Super.IsSubclassOf(target)
}

// declared returns the method c itself declares.
func (c *Class) declared(name, desc string) *Method {
	return c.methods[name+desc]
}

// lookup finds a method in c, its superclasses and then its
// superinterfaces.
func (c *Class) lookup(name, desc string) *Method {
	for k := c; k != nil; k = k.Super {
		if m := k.declared(name, desc); m != nil {
			return m
		}
	}
	return c.lookupInterfaces(name, desc)
}

func (c *Class) lookupInterfaces(name, desc string) *Method {
	for k := c; k != nil; k = k.Super {
		for _, i := range k.Interfaces {
			if m := i.declared(name, desc); m != nil {
				return m
			}
			if m := i.lookupInterfaces(name, desc); m != nil {
				return m
			}
		}
	}
	return nil
}

// dispatch selects the implementation of name+desc for a receiver of class
// c, skipping abstract declarations.
func (c *Class) dispatch(name, desc string) *Method {
	for k := c; k != nil; k = k.Super {
		if m := k.declared(name, desc); m != nil && !m.IsAbstract() {
			return m
		}
	}
	return nil
}

func (c *Class) declaresField(name string, static bool) bool {
	f := c.File.FindField(name)
	return f != nil && f.AccessFlags.IsStatic() == static
}

// fieldOwner finds the class declaring a field, searching superinterfaces
// for statics.
func (c *Class) fieldOwner(name string, static bool) *Class {
	for k := c; k != nil; k = k.Super {
		if k.declaresField(name, static) {
			return k
		}
		if static {
			for _, i := range k.Interfaces {
				if owner := i.fieldOwner(name, true); owner != nil {
					return owner
				}
			}
		}
	}
	return nil
}

func (c *Class) String() string { return c.Name }

// Class loads and links the class with binary name name. It does not run
// static initialization.
func (vm *VM) Class(name string) (*Class, error) {
	if c, ok := vm.classes[name]; ok {
		return c, nil
	}
	if strings.HasPrefix(name, "[") {
		return nil, fmt.Errorf("array type %s has no class", name)
	}
	cf, err := vm.Loader.LoadClass(name)
	if err != nil {
		return nil, err
	}
	c := &Class{
		Name:    name,
		File:    cf,
		Statics: make(map[string]Value),
		methods: make(map[string]*Method, len(cf.Methods)),
	}
	vm.classes[name] = c
	if super := cf.SuperClassName(); super != "" {
		if c.Super, err = vm.Class(super); err != nil {
			delete(vm.classes, name)
			return nil, fmt.Errorf("loading superclass of %s: %w", name, err)
		}
	}
	ifaces, err := cf.InterfaceNames()
	if err != nil {
		delete(vm.classes, name)
		return nil, err
	}
	for _, in := range ifaces {
		i, err := vm.Class(in)
		if err != nil {
			delete(vm.classes, name)
			return nil, fmt.Errorf("loading interface of %s: %w", name, err)
		}
		c.Interfaces = append(c.Interfaces, i)
	}
	for i := range cf.Methods {
		info := &cf.Methods[i]
		m, err := newMethod(c, info)
		if err != nil {
			delete(vm.classes, name)
			return nil, err
		}
		m.native = vm.findNative(c, info)
		c.methods[info.Name+info.Descriptor] = m
	}
	log.Debugf("loaded %s", name)
	return c, nil
}

// initClass runs static initialization of c and its superclasses once.
// Library classes (java.*) get their static state from the natives instead
// of running <clinit>.
func (vm *VM) initClass(c *Class) error {
	if c.state != uninitialized {
		return nil
	}
	c.state = initializing
	if c.Super != nil {
		if err := vm.initClass(c.Super); err != nil {
			return err
		}
	}
	for _, f := range c.File.Fields {
		if f.AccessFlags.IsStatic() {
			c.Statics[f.Name] = zeroValue(f.Descriptor)
		}
	}
	if init, ok := staticNatives[c.Name]; ok {
		if err := init(vm, c); err != nil {
			return err
		}
	}
	if !strings.HasPrefix(c.Name, "java/") {
		if m := c.declared("<clinit>", "()V"); m != nil {
			log.Debugf("initializing %s", c.Name)
			if _, err := vm.call(m, nil); err != nil {
				return err
			}
		}
	}
	c.state = initialized
	return nil
}

// classOf returns the class of a non-null reference.
func (vm *VM) classOf(ref interface{}) (*Class, error) {
	switch r := ref.(type) {
	case *Object:
		return r.Class, nil
	case string:
		return vm.Class("java/lang/String")
	case *Array:
		return vm.Class("java/lang/Object")
	}
	return nil, fmt.Errorf("unknown reference %T", ref)
}

// isInstance implements instanceof and checkcast for a non-null ref against
// a class name or array descriptor taken from the constant pool.
func (vm *VM) isInstance(ref interface{}, target string) (bool, error) {
	if arr, ok := ref.(*Array); ok {
		return vm.arrayAssignable(arr.Desc, target)
	}
	if strings.HasPrefix(target, "[") {
		return false, nil
	}
	c, err := vm.classOf(ref)
	if err != nil {
		return false, err
	}
	t, err := vm.Class(target)
	if err != nil {
		return false, err
	}
	return c.IsSubclassOf(t), nil
}

// arrayAssignable reports whether an array of type desc is assignable to
// target, a class name or array descriptor.
func (vm *VM) arrayAssignable(desc, target string) (bool, error) {
	if !strings.HasPrefix(target, "[") {
		switch target {
		case "java/lang/Object", "java/lang/Cloneable", "java/io/Serializable":
			return true, nil
		}
		return false, nil
	}
	from, to := desc[1:], target[1:]
	switch {
	case from == to:
		return true, nil
	case from[0] == '[':
		return vm.arrayAssignable(from, strings.TrimSuffix(strings.TrimPrefix(to, "L"), ";"))
	case from[0] == 'L' && to[0] == 'L':
		fc, err := vm.Class(from[1 : len(from)-1])
		if err != nil {
			return false, err
		}
		tc, err := vm.Class(to[1 : len(to)-1])
		if err != nil {
			return false, err
		}
		return fc.IsSubclassOf(tc), nil
	}
	return false, nil
}
