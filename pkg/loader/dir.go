package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/daimatz/jclassgen/pkg/classfile"
)

// DirClassLoader loads classes from a classpath directory laid out by
// package, delegating to its parent first.
type DirClassLoader struct {
	ClassPath string
	Parent    ClassLoader
}

// NewDirClassLoader creates a loader rooted at classPath. parent may be nil.
func NewDirClassLoader(classPath string, parent ClassLoader) *DirClassLoader {
	return &DirClassLoader{ClassPath: classPath, Parent: parent}
}

func (cl *DirClassLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	if cl.Parent != nil {
		cf, err := cl.Parent.LoadClass(name)
		if err == nil {
			return cf, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	path := filepath.Join(cl.ClassPath, filepath.FromSlash(name)+".class")
	cf, err := classfile.ParseFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &NotFoundError{Name: name, Where: "classpath " + cl.ClassPath}
	}
	if err != nil {
		return nil, fmt.Errorf("classpath: loading %s: %w", name, err)
	}
	return cf, nil
}
