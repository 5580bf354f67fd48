// Package lookup maps type names to types, populating class members from
// compiled class metadata on first use.
package lookup

import (
	"fmt"
	"strings"

	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/daimatz/jclassgen/pkg/loader"
	"github.com/daimatz/jclassgen/pkg/types"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("jclassgen.lookup")

// Service is the type-and-member lookup service of one compilation run.
type Service struct {
	u      *types.Universe
	loader loader.ClassLoader
	index  *Index
}

// New creates a service over u and installs it as u's populator source.
// l may be nil when only indexed or generated types are needed.
func New(u *types.Universe, l loader.ClassLoader) *Service {
	s := &Service{u: u, loader: l}
	u.SetSource(s)
	return s
}

// Universe returns the type table the service populates.
func (s *Service) Universe() *types.Universe { return s.u }

// UseIndex makes the service consult idx before the class loader.
func (s *Service) UseIndex(idx *Index) { s.index = idx }

// describe finds the metadata of a compiled class.
func (s *Service) describe(binary string) (*Descriptor, error) {
	if s.index != nil {
		if d, ok := s.index.Classes[binary]; ok {
			return d, nil
		}
	}
	if s.loader == nil {
		return nil, &loader.NotFoundError{Name: binary, Where: "lookup"}
	}
	cf, err := s.loader.LoadClass(binary)
	if err != nil {
		return nil, err
	}
	return Describe(cf)
}

// Exists reports whether a class is generated in this run or can be found
// by the index or loader.
func (s *Service) Exists(binary string) bool {
	if t, ok := s.u.Lookup(binary); ok {
		return t.IsGenerated() || t.Load() == nil
	}
	_, err := s.describe(binary)
	return err == nil
}

// Populator implements types.Source.
func (s *Service) Populator(binary string) types.Populator {
	return func(t *types.Type, d *types.ClassDecl) error {
		desc, err := s.describe(binary)
		if err != nil {
			log.Warningf("no metadata for %s: %s", binary, err)
			return err
		}
		log.Debugf("populating %s", binary)
		return s.populate(desc, d)
	}
}

func (s *Service) populate(desc *Descriptor, d *types.ClassDecl) error {
	d.Flags = classfile.AccessFlags(desc.Flags)
	if desc.Super != "" && !d.Flags.IsInterface() {
		d.Super = s.u.Class(desc.Super)
	}
	for _, i := range desc.Interfaces {
		d.Interfaces = append(d.Interfaces, s.u.Class(i))
	}
	for _, f := range desc.Fields {
		ft, err := s.u.ParseDescriptor(f.Descriptor)
		if err != nil {
			return fmt.Errorf("field %s.%s: %w", desc.Name, f.Name, err)
		}
		d.Fields = append(d.Fields, &types.Field{Name: f.Name, Type: ft, Flags: classfile.AccessFlags(f.Flags)})
	}
	for _, m := range desc.Methods {
		if m.Name == "<clinit>" {
			continue
		}
		params, ret, err := s.u.ParseMethodDescriptor(m.Descriptor)
		if err != nil {
			return fmt.Errorf("method %s.%s: %w", desc.Name, m.Name, err)
		}
		d.Methods = append(d.Methods, &types.Method{Name: m.Name, Return: ret, Params: params, Flags: classfile.AccessFlags(m.Flags)})
	}
	return nil
}

// Type resolves a fully qualified name: a primitive, "void", an array such
// as "java.lang.String[][]", or a dotted or binary class name.
func (s *Service) Type(name string) (*types.Type, error) {
	base, dims := splitArray(name)
	if t, ok := types.Primitive(base); ok {
		if t.IsVoid() && dims > 0 {
			return nil, fmt.Errorf("array of void: %s", name)
		}
		return s.u.ArrayOf(t, dims), nil
	}
	binary := types.BinaryName(base)
	if !s.Exists(binary) {
		return nil, &loader.NotFoundError{Name: binary, Where: "lookup"}
	}
	return s.u.ArrayOf(s.u.Class(binary), dims), nil
}

func splitArray(name string) (string, int) {
	name = strings.TrimSpace(name)
	dims := 0
	for strings.HasSuffix(name, "[]") {
		name = strings.TrimSpace(strings.TrimSuffix(name, "[]"))
		dims++
	}
	return name, dims
}

// Imports is the naming context of a generated class.
type Imports struct {
	// Package is the binary package of the class being generated ("com/acme").
	Package string
	// Classes maps simple names to explicitly imported binary names.
	Classes map[string]string
	// Packages are on-demand imports, in declaration order.
	Packages []string
}

// Resolve looks name up the way a compiler resolves a type name in a
// compilation unit: qualified names directly; simple names through single
// type imports, the current package, on-demand imports, then java.lang.
func (s *Service) Resolve(name string, imp *Imports) (*types.Type, error) {
	base, dims := splitArray(name)
	if _, ok := types.Primitive(base); ok || strings.ContainsAny(base, "./") || imp == nil {
		return s.Type(name)
	}
	var candidates []string
	if full, ok := imp.Classes[base]; ok {
		candidates = append(candidates, full)
	}
	candidates = append(candidates, qualify(imp.Package, base))
	for _, p := range imp.Packages {
		candidates = append(candidates, qualify(p, base))
	}
	candidates = append(candidates, "java/lang/"+base)
	for _, c := range candidates {
		if s.Exists(c) {
			return s.u.ArrayOf(s.u.Class(c), dims), nil
		}
	}
	return nil, &loader.NotFoundError{Name: base, Where: "lookup"}
}

func qualify(pkg, simple string) string {
	if pkg == "" {
		return simple
	}
	return pkg + "/" + simple
}
