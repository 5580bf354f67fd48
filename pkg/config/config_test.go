package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/daimatz/jclassgen/pkg/loader"
	"github.com/daimatz/jclassgen/pkg/lookup"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	if c.Codegen.ClassVersionMajor != classfile.DefaultMajorVersion {
		t.Errorf("class version = %d, want %d", c.Codegen.ClassVersionMajor, classfile.DefaultMajorVersion)
	}
	if !c.Codegen.DebugInfo {
		t.Error("debug info off by default")
	}
	if c.Output.Dir != "out" {
		t.Errorf("output dir = %q, want out", c.Output.Dir)
	}
	if c.Classpath.CacheSize != loader.DefaultCacheSize {
		t.Errorf("cache size = %d, want %d", c.Classpath.CacheSize, loader.DefaultCacheSize)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[codegen]
class_version_major = 48
source_file = "Gen.java"

[classpath]
dirs = ["lib", "/abs/classes"]
cache_size = 16

[output]
dir = "build/classes"

[log]
verbosity = 2
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	opts := c.CodegenOptions()
	if opts.MajorVersion != 48 || opts.SourceFile != "Gen.java" {
		t.Errorf("options = %+v", opts)
	}
	if !opts.DebugInfo {
		t.Error("debug_info absent from file should keep its default")
	}
	if c.Classpath.CacheSize != 16 || c.Log.Verbosity != 2 {
		t.Errorf("classpath = %+v, log = %+v", c.Classpath, c.Log)
	}
	if got, want := c.OutputDir(), filepath.Join(dir, "build", "classes"); got != want {
		t.Errorf("OutputDir = %q, want %q", got, want)
	}
	if got, want := c.Path(c.Classpath.Dirs[0]), filepath.Join(dir, "lib"); got != want {
		t.Errorf("Path(lib) = %q, want %q", got, want)
	}
	if got := c.Path(c.Classpath.Dirs[1]); got != "/abs/classes" {
		t.Errorf("absolute path rewritten to %q", got)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"syntax", "[codegen\n", "parse error"},
		{"unknown key", "[codegen]\noptimize = true\n", "codegen.optimize"},
		{"unknown table", "[server]\nport = 1\n", "unknown keys"},
		{"version too new", "[codegen]\nclass_version_major = 52\n", "not supported"},
		{"negative cache", "[classpath]\ncache_size = -1\n", "cache_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[output]\ndir = \"gen\"\n")
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	c, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if got, want := c.OutputDir(), filepath.Join(root, "gen"); got != want {
		t.Errorf("OutputDir = %q, want %q", got, want)
	}
}

func TestJmodDiscovery(t *testing.T) {
	t.Setenv("JAVA_BASE_JMOD", "/opt/jdk/jmods/java.base.jmod")
	c := Default()
	if got := c.JmodPath(); got != "/opt/jdk/jmods/java.base.jmod" {
		t.Errorf("JmodPath from env = %q", got)
	}
	c.Dir = "/etc/jclassgen"
	c.Classpath.Jmod = "java.base.jmod"
	if got := c.JmodPath(); got != "/etc/jclassgen/java.base.jmod" {
		t.Errorf("configured JmodPath = %q", got)
	}
}

func TestNewContextWithStubAndIndex(t *testing.T) {
	dir := t.TempDir()
	idx, err := lookup.BuildIndex(loader.NewStubClassLoader(), []string{"java/lang/Object", "java/lang/String"})
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if err := idx.Save(filepath.Join(dir, "jdk.cbor")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	t.Setenv("JAVA_BASE_JMOD", "")
	t.Setenv("JAVA_HOME", dir)

	c := Default()
	c.Dir = dir
	c.Classpath.Index = "jdk.cbor"
	cl, err := c.ClassLoader()
	if err != nil {
		t.Fatalf("ClassLoader: %v", err)
	}
	if loader.FindJavaBase() == "" {
		if _, err := cl.LoadClass("java/lang/Integer"); err != nil {
			t.Errorf("stub fallback cannot load Integer: %v", err)
		}
	}
	ctx, err := c.NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if !ctx.Lookup.Exists("java/lang/String") {
		t.Error("indexed String not found")
	}
	if ctx.Options.MajorVersion != classfile.DefaultMajorVersion {
		t.Errorf("context version = %d", ctx.Options.MajorVersion)
	}
}
