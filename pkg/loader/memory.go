package loader

import (
	"fmt"
	"sync"

	"github.com/daimatz/jclassgen/pkg/classfile"
)

// MemoryClassLoader serves classes generated in this process.
type MemoryClassLoader struct {
	mu      sync.RWMutex
	classes map[string]*classfile.ClassFile
}

func NewMemoryClassLoader() *MemoryClassLoader {
	return &MemoryClassLoader{classes: make(map[string]*classfile.ClassFile)}
}

// Define parses data and registers it under its own class name.
func (cl *MemoryClassLoader) Define(data []byte) (string, error) {
	cf, err := classfile.ParseBytes(data)
	if err != nil {
		return "", fmt.Errorf("memory: parsing class: %w", err)
	}
	return cl.DefineClass(cf)
}

// DefineClass registers an already parsed class, replacing any previous
// definition with the same name.
func (cl *MemoryClassLoader) DefineClass(cf *classfile.ClassFile) (string, error) {
	name, err := cf.ClassName()
	if err != nil {
		return "", fmt.Errorf("memory: %w", err)
	}
	cl.mu.Lock()
	cl.classes[name] = cf
	cl.mu.Unlock()
	log.Debugf("defined %s", name)
	return name, nil
}

func (cl *MemoryClassLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	cl.mu.RLock()
	cf, ok := cl.classes[name]
	cl.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Name: name, Where: "memory"}
	}
	return cf, nil
}
