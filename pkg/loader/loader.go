// Package loader locates compiled class files by binary name.
package loader

import (
	"fmt"

	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("jclassgen.loader")

// ClassLoader loads .class files by binary name ("java/lang/String").
type ClassLoader interface {
	LoadClass(name string) (*classfile.ClassFile, error)
}

// NotFoundError reports that a loader does not know a class. Other errors
// (unreadable archives, malformed class files) are returned as-is.
type NotFoundError struct {
	Name  string
	Where string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: class %s not found", e.Where, e.Name)
}

// IsNotFound reports whether err means the class is simply absent.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// Chain asks each loader in order and returns the first hit.
type Chain []ClassLoader

func (c Chain) LoadClass(name string) (*classfile.ClassFile, error) {
	for _, l := range c {
		if l == nil {
			continue
		}
		cf, err := l.LoadClass(name)
		if err == nil {
			return cf, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return nil, &NotFoundError{Name: name, Where: "chain"}
}
