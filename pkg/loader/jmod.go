package loader

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/daimatz/jclassgen/pkg/classfile"
)

// jmodMagic prefixes the zip payload of a .jmod file.
var jmodMagic = []byte{'J', 'M', 1, 0}

// JmodClassLoader loads classes from a JDK jmod file such as java.base.jmod.
type JmodClassLoader struct {
	JmodPath string

	once  sync.Once
	err   error
	files map[string]*zip.File
}

// NewJmodClassLoader creates a loader over jmodPath. The archive is opened
// on first use.
func NewJmodClassLoader(jmodPath string) *JmodClassLoader {
	return &JmodClassLoader{JmodPath: jmodPath}
}

func (cl *JmodClassLoader) open() error {
	cl.once.Do(func() {
		data, err := os.ReadFile(cl.JmodPath)
		if err != nil {
			cl.err = fmt.Errorf("jmod: reading %s: %w", cl.JmodPath, err)
			return
		}
		if !bytes.HasPrefix(data, jmodMagic) {
			cl.err = fmt.Errorf("jmod: %s has no JM header", cl.JmodPath)
			return
		}
		data = data[len(jmodMagic):]
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			cl.err = fmt.Errorf("jmod: opening zip: %w", err)
			return
		}
		cl.files = make(map[string]*zip.File, len(zr.File))
		for _, f := range zr.File {
			if name, ok := strings.CutPrefix(f.Name, "classes/"); ok && strings.HasSuffix(name, ".class") {
				cl.files[strings.TrimSuffix(name, ".class")] = f
			}
		}
		log.Infof("indexed %d classes in %s", len(cl.files), cl.JmodPath)
	})
	return cl.err
}

func (cl *JmodClassLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	if err := cl.open(); err != nil {
		return nil, err
	}
	f, ok := cl.files[name]
	if !ok {
		return nil, &NotFoundError{Name: name, Where: "jmod " + filepath.Base(cl.JmodPath)}
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("jmod: opening %s: %w", f.Name, err)
	}
	defer rc.Close()
	cf, err := classfile.Parse(rc)
	if err != nil {
		return nil, fmt.Errorf("jmod: parsing %s: %w", name, err)
	}
	return cf, nil
}

// FindJavaBase locates java.base.jmod from JAVA_BASE_JMOD, then JAVA_HOME,
// then the usual Linux JDK install paths. It returns "" when none exists.
func FindJavaBase() string {
	if env := os.Getenv("JAVA_BASE_JMOD"); env != "" {
		return env
	}
	if javaHome := os.Getenv("JAVA_HOME"); javaHome != "" {
		p := filepath.Join(javaHome, "jmods", "java.base.jmod")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	matches, _ := filepath.Glob("/usr/lib/jvm/java-*-openjdk-*/jmods/java.base.jmod")
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}
