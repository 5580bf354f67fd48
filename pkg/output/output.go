// Package output persists generated classes as class files laid out by
// package under a root directory.
package output

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/daimatz/jclassgen/pkg/types"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("jclassgen.output")

// Dir writes class files below Root, e.g. com.acme.Counter goes to
// Root/com/acme/Counter.class.
type Dir struct {
	Root string
}

func New(root string) *Dir {
	return &Dir{Root: root}
}

// Path returns the file a class is saved to. name may be binary
// ("com/acme/Counter") or qualified ("com.acme.Counter").
func (d *Dir) Path(name string) (string, error) {
	binary := types.BinaryName(name)
	if binary == "" {
		return "", errors.New("output: empty class name")
	}
	for _, seg := range strings.Split(binary, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("output: invalid class name %q", name)
		}
	}
	return filepath.Join(d.Root, filepath.FromSlash(binary)+".class"), nil
}

// Save writes data as the class file of name, creating package
// directories as needed, and returns the path written.
func (d *Dir) Save(name string, data []byte) (string, error) {
	if data == nil {
		return "", fmt.Errorf("output: %s has no class file data", name)
	}
	path, err := d.Path(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("output: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("output: %w", err)
	}
	log.Infof("saved %s (%d bytes)", path, len(data))
	return path, nil
}

// Delete removes the class file of name. A missing file is not an error;
// the result reports whether a file was removed.
func (d *Dir) Delete(name string) (bool, error) {
	path, err := d.Path(name)
	if err != nil {
		return false, err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debugf("nothing to delete at %s", path)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("output: %w", err)
	}
	log.Infof("deleted %s", path)
	return true, nil
}
