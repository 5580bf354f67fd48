package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/daimatz/jclassgen/pkg/access"
	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/daimatz/jclassgen/pkg/loader"
	"github.com/daimatz/jclassgen/pkg/lookup"
	"github.com/daimatz/jclassgen/pkg/types"
	"github.com/daimatz/jclassgen/pkg/vm"
	"gopkg.in/urfave/cli.v1"
)

var (
	runCommand = cli.Command{
		Action:    runClass,
		Name:      "run",
		Usage:     "Execute main of a class file",
		ArgsUsage: "<file.class> [args...]",
		Description: `
The run command executes public static void main(String[]) of the class in
<file.class>. Classes it refers to are loaded from the class file's
classpath root, the configured classpath directories and the bootstrap
stub library.`,
	}
	inspectCommand = cli.Command{
		Action:    inspect,
		Name:      "inspect",
		Usage:     "Print the members the lookup service sees for a class",
		ArgsUsage: "<class>",
	}
	indexCommand = cli.Command{
		Action:    index,
		Name:      "index",
		Usage:     "Write a descriptor index of library classes",
		ArgsUsage: "<class>...",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "o", Usage: "output file", Value: "index.cbor"},
			cli.BoolFlag{Name: "stub", Usage: "index every class of the bootstrap stub library"},
		},
		Description: `
The index command describes the named classes and saves their supertypes
and member signatures. Point [classpath] index at the result so later runs
resolve those classes without opening the jmod archive.`,
	}
)

// classpathRoot returns the directory a class file named binary lives
// under, e.g. out for out/demo/Main.class and demo/Main.
func classpathRoot(file, binary string) string {
	rel := filepath.FromSlash(binary) + ".class"
	if strings.HasSuffix(file, rel) {
		root := strings.TrimSuffix(file, rel)
		if root == "" {
			return "."
		}
		if strings.HasSuffix(root, string(filepath.Separator)) {
			return filepath.Clean(root)
		}
	}
	return filepath.Dir(file)
}

// runtimeClassPath builds the loader the VM executes with.
func runtimeClassPath(mem *loader.MemoryClassLoader, root string) loader.ClassLoader {
	var cl loader.ClassLoader = loader.Chain{mem, loader.NewStubClassLoader()}
	cl = loader.NewDirClassLoader(root, cl)
	for _, d := range cfg.Classpath.Dirs {
		cl = loader.NewDirClassLoader(cfg.Path(d), cl)
	}
	return cl
}

func runClass(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return cli.NewExitError("usage: jclassgen run <file.class> [args...]", 2)
	}
	file := ctx.Args().First()
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	mem := loader.NewMemoryClassLoader()
	name, err := mem.Define(data)
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	root := classpathRoot(file, name)
	log.Infof("running %s with classpath root %s", name, root)
	v := vm.New(runtimeClassPath(mem, root))
	v.Stdout = ctx.App.Writer
	return v.Execute(name, ctx.Args().Tail()...)
}

func inspect(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.NewExitError("usage: jclassgen inspect <class>", 2)
	}
	gen, err := cfg.NewContext()
	if err != nil {
		return err
	}
	t, err := gen.Lookup.Type(ctx.Args().First())
	if err != nil {
		return err
	}
	if err := t.Load(); err != nil {
		return err
	}
	describeType(ctx.App.Writer, t)
	return nil
}

// describeType prints t in a source-like form.
func describeType(w io.Writer, t *types.Type) {
	if !t.IsClass() {
		fmt.Fprintln(w, t.Name())
		return
	}
	kind := "class"
	flags := t.Flags() &^ classfile.AccSuper
	if t.IsInterface() {
		kind = "interface"
		flags &^= classfile.AccInterface | classfile.AccAbstract
	}
	header := strings.TrimSpace(access.String(flags) + " " + kind + " " + t.Name())
	if s := t.Super(); s != nil && !t.IsInterface() {
		header += " extends " + s.Name()
	}
	if ifaces := t.Interfaces(); len(ifaces) > 0 {
		names := make([]string, len(ifaces))
		for i, it := range ifaces {
			names[i] = it.Name()
		}
		if t.IsInterface() {
			header += " extends "
		} else {
			header += " implements "
		}
		header += strings.Join(names, ", ")
	}
	fmt.Fprintln(w, header+" {")
	for _, f := range t.DeclaredFields() {
		fmt.Fprintf(w, "  %s;\n", member(f.Flags, f.Type.Name()+" "+f.Name))
	}
	for _, m := range t.DeclaredMethods() {
		if m.IsConstructor() {
			fmt.Fprintf(w, "  %s;\n", member(m.Flags, types.Signature(t.SimpleName(), m.Params)))
			continue
		}
		fmt.Fprintf(w, "  %s;\n", member(m.Flags, m.Return.Name()+" "+m.Signature()))
	}
	fmt.Fprintln(w, "}")
}

func member(flags classfile.AccessFlags, decl string) string {
	return strings.TrimSpace(access.String(flags) + " " + decl)
}

func index(ctx *cli.Context) error {
	var cl loader.ClassLoader
	names := make([]string, 0, ctx.NArg())
	for _, n := range ctx.Args() {
		names = append(names, types.BinaryName(n))
	}
	if ctx.Bool("stub") {
		stub := loader.NewStubClassLoader()
		cl = stub
		names = append(names, stub.Names()...)
	} else {
		var err error
		if cl, err = cfg.ClassLoader(); err != nil {
			return err
		}
	}
	if len(names) == 0 {
		return cli.NewExitError("usage: jclassgen index [-o file] [--stub] <class>...", 2)
	}
	idx, err := lookup.BuildIndex(cl, names)
	if err != nil {
		return err
	}
	out := ctx.String("o")
	if err := idx.Save(out); err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "indexed %d classes to %s\n", len(idx.Classes), out)
	return nil
}
