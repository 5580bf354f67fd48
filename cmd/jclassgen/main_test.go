package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/daimatz/jclassgen/pkg/lookup"
)

// runApp runs the command line args with a configuration placing output
// in a fresh directory, and returns what the command printed.
func runApp(t *testing.T, dir string, args ...string) string {
	t.Helper()
	conf := filepath.Join(dir, "jclassgen.toml")
	if _, err := os.Stat(conf); os.IsNotExist(err) {
		if err := os.WriteFile(conf, []byte("[output]\ndir = \"classes\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	var out strings.Builder
	app := newApp()
	app.Writer = &out
	argv := append([]string{"jclassgen", "--config", conf}, args...)
	if err := app.Run(argv); err != nil {
		t.Fatalf("%v: %v\noutput so far:\n%s", args, err, out.String())
	}
	return out.String()
}

func TestDemoRun(t *testing.T) {
	dir := t.TempDir()
	got := runApp(t, dir, "demo", "--run")

	outDir := filepath.Join(dir, "classes")
	for _, name := range []string{"Countdown", "Seasons", "Cleanup"} {
		if _, err := os.Stat(filepath.Join(outDir, "demo", name+".class")); err != nil {
			t.Errorf("demo.%s not saved: %v", name, err)
		}
	}
	for _, want := range []string{
		"saved 3 classes to " + outDir + "\n",
		"== demo/Countdown\n3\n2\n1\nliftoff\n",
		"== demo/Seasons\n1 winter\n4 spring\n7 summer\n10 autumn\n13 unknown\n",
		"== demo/Cleanup\nattempt 4 done\n25\nfailed: no input\nattempt 0 done\n-1\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output lacks %q:\n%s", want, got)
		}
	}
}

func TestDemoPrint(t *testing.T) {
	dir := t.TempDir()
	got := runApp(t, dir, "demo", "--print", "-o", filepath.Join(dir, "elsewhere"))
	for _, want := range []string{"season(I)Ljava/lang/String;:", "tableswitch", "jsr", "ret"} {
		if !strings.Contains(got, want) {
			t.Errorf("listing lacks %q:\n%s", want, got)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "elsewhere", "demo", "Seasons.class")); err != nil {
		t.Errorf("-o ignored: %v", err)
	}
}

func TestRunClassFile(t *testing.T) {
	dir := t.TempDir()
	runApp(t, dir, "demo")
	got := runApp(t, dir, "run", filepath.Join(dir, "classes", "demo", "Countdown.class"))
	if want := "3\n2\n1\nliftoff\n"; got != want {
		t.Errorf("run output = %q, want %q", got, want)
	}
}

func TestIndexAndInspect(t *testing.T) {
	dir := t.TempDir()
	idxPath := filepath.Join(dir, "stub.cbor")
	got := runApp(t, dir, "index", "--stub", "-o", idxPath)
	if !strings.HasPrefix(got, "indexed ") {
		t.Errorf("index output = %q", got)
	}
	idx, err := lookup.LoadIndex(idxPath)
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if _, ok := idx.Classes["java/lang/StringBuilder"]; !ok {
		t.Error("StringBuilder missing from stub index")
	}

	got = runApp(t, dir, "inspect", "java.lang.Integer")
	for _, want := range []string{"class java.lang.Integer extends java.lang.Number", "public native int intValue();"} {
		if !strings.Contains(got, want) {
			t.Errorf("inspect output lacks %q:\n%s", want, got)
		}
	}
}

func TestClasspathRoot(t *testing.T) {
	tests := []struct {
		file, binary, want string
	}{
		{filepath.Join("out", "demo", "Main.class"), "demo/Main", "out"},
		{filepath.Join("demo", "Main.class"), "demo/Main", "."},
		{"Main.class", "Main", "."},
		{filepath.Join("tmp", "renamed.class"), "demo/Main", "tmp"},
		{filepath.Join("xdemo", "Main.class"), "demo/Main", "xdemo"},
	}
	for _, tt := range tests {
		if got := classpathRoot(tt.file, tt.binary); got != tt.want {
			t.Errorf("classpathRoot(%q, %q) = %q, want %q", tt.file, tt.binary, got, tt.want)
		}
	}
}
