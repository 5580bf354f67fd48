package lookup

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/daimatz/jclassgen/pkg/loader"
	"github.com/fxamacker/cbor/v2"
)

// Member is the persisted form of a field or method.
type Member struct {
	Name       string `cbor:"1,keyasint"`
	Descriptor string `cbor:"2,keyasint"`
	Flags      uint16 `cbor:"3,keyasint"`
}

// Descriptor is everything the generator needs to know about a compiled
// class: its supertypes and its member signatures.
type Descriptor struct {
	Name       string   `cbor:"1,keyasint"`
	Super      string   `cbor:"2,keyasint,omitempty"`
	Interfaces []string `cbor:"3,keyasint,omitempty"`
	Flags      uint16   `cbor:"4,keyasint"`
	Fields     []Member `cbor:"5,keyasint,omitempty"`
	Methods    []Member `cbor:"6,keyasint,omitempty"`
}

// Describe extracts the descriptor of a parsed class file.
func Describe(cf *classfile.ClassFile) (*Descriptor, error) {
	name, err := cf.ClassName()
	if err != nil {
		return nil, fmt.Errorf("describe: %w", err)
	}
	ifaces, err := cf.InterfaceNames()
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", name, err)
	}
	d := &Descriptor{
		Name:       name,
		Super:      cf.SuperClassName(),
		Interfaces: ifaces,
		Flags:      uint16(cf.AccessFlags),
	}
	for _, f := range cf.Fields {
		d.Fields = append(d.Fields, Member{Name: f.Name, Descriptor: f.Descriptor, Flags: uint16(f.AccessFlags)})
	}
	for _, m := range cf.Methods {
		d.Methods = append(d.Methods, Member{Name: m.Name, Descriptor: m.Descriptor, Flags: uint16(m.AccessFlags)})
	}
	return d, nil
}

// Index is a persisted set of descriptors, letting later runs resolve
// library types without opening the archives they came from.
type Index struct {
	Classes map[string]*Descriptor
}

type indexFile struct {
	Version     int           `cbor:"1,keyasint"`
	Descriptors []*Descriptor `cbor:"2,keyasint"`
}

const indexVersion = 1

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("lookup: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// BuildIndex describes each named class loaded through l.
func BuildIndex(l loader.ClassLoader, names []string) (*Index, error) {
	idx := &Index{Classes: make(map[string]*Descriptor, len(names))}
	for _, n := range names {
		cf, err := l.LoadClass(n)
		if err != nil {
			return nil, fmt.Errorf("index: %w", err)
		}
		d, err := Describe(cf)
		if err != nil {
			return nil, fmt.Errorf("index: %w", err)
		}
		idx.Classes[d.Name] = d
	}
	return idx, nil
}

// Marshal encodes the index deterministically.
func (x *Index) Marshal() ([]byte, error) {
	f := indexFile{Version: indexVersion}
	names := make([]string, 0, len(x.Classes))
	for n := range x.Classes {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		f.Descriptors = append(f.Descriptors, x.Classes[n])
	}
	return encMode.Marshal(&f)
}

// UnmarshalIndex decodes an index written by Marshal.
func UnmarshalIndex(data []byte) (*Index, error) {
	var f indexFile
	if err := cbor.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("index: unmarshal: %w", err)
	}
	if f.Version != indexVersion {
		return nil, fmt.Errorf("index: unsupported version %d", f.Version)
	}
	idx := &Index{Classes: make(map[string]*Descriptor, len(f.Descriptors))}
	for _, d := range f.Descriptors {
		idx.Classes[d.Name] = d
	}
	return idx, nil
}

// WriteTo writes the encoded index to w.
func (x *Index) WriteTo(w io.Writer) (int64, error) {
	data, err := x.Marshal()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Save writes the index to path.
func (x *Index) Save(path string) error {
	data, err := x.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadIndex reads an index saved with Save.
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	return UnmarshalIndex(data)
}
