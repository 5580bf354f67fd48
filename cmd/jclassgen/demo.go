package main

import (
	"fmt"
	"io"

	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/daimatz/jclassgen/pkg/codegen"
	"github.com/daimatz/jclassgen/pkg/emit"
	"github.com/daimatz/jclassgen/pkg/loader"
	"github.com/daimatz/jclassgen/pkg/output"
	"github.com/daimatz/jclassgen/pkg/vm"
	"gopkg.in/urfave/cli.v1"
)

var demoCommand = cli.Command{
	Action: demo,
	Name:   "demo",
	Usage:  "Generate sample classes",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "o", Usage: "output directory (default: [output] dir)"},
		cli.BoolFlag{Name: "print", Usage: "print the instruction listing of every method"},
		cli.BoolFlag{Name: "run", Usage: "execute main of each class after saving it"},
	},
	Description: `
The demo command generates demo.Countdown (a counting for loop),
demo.Seasons (a switch) and demo.Cleanup (try/catch/finally) and saves
them under the output directory.`,
}

const (
	pubStatic = classfile.AccPublic | classfile.AccStatic
)

func mainMethod(b codegen.Builder, body func(b codegen.Builder) error) error {
	return b.DefineMethod(pubStatic, "void", "main", []codegen.Param{{Type: "String[]", Name: "args"}}, body)
}

// printValue prints the value pushed by push.
func printValue(b codegen.Builder, push func()) {
	b.GetStatic("System", "out")
	b.BeginCall()
	push()
	b.Arg()
	b.InvokeVirtual("println")
}

func printString(b codegen.Builder, s string) {
	printValue(b, func() { b.PushString(s) })
}

// countdown:
//
//	for (int i = 3; i > 0; i--) System.out.println(i);
//	System.out.println("liftoff");
func countdown(b codegen.Builder) error {
	return mainMethod(b, func(b codegen.Builder) error {
		b.DeclareLocal("int", "i")
		b.PushInt(3)
		b.Store("i")
		b.For()
		b.Load("i")
		b.PushInt(0)
		b.Gt()
		b.While()
		b.PostDecLocal("i")
		b.Step()
		printValue(b, func() { b.Load("i") })
		b.EndLoop()
		printString(b, "liftoff")
		return nil
	})
}

// seasons maps months to seasons with a switch and prints every third
// month.
func seasons(b codegen.Builder) error {
	b.DefineMethod(pubStatic, "String", "season", []codegen.Param{{Type: "int", Name: "month"}}, func(b codegen.Builder) error {
		names := []struct {
			season string
			months []int32
		}{
			{"winter", []int32{12, 1, 2}},
			{"spring", []int32{3, 4, 5}},
			{"summer", []int32{6, 7, 8}},
			{"autumn", []int32{9, 10, 11}},
		}
		b.Load("month")
		b.Switch()
		for _, n := range names {
			for _, m := range n.months {
				b.Case(m)
			}
			b.PushString(n.season)
			b.Return()
		}
		b.Default()
		b.Break("")
		b.EndSwitch()
		b.PushString("unknown")
		return b.Return()
	})
	return mainMethod(b, func(b codegen.Builder) error {
		b.DeclareLocal("int", "m")
		b.PushInt(1)
		b.Store("m")
		b.For()
		b.Load("m")
		b.PushInt(13)
		b.Le()
		b.While()
		b.IncLocal("m", 3, false)
		b.Step()
		printValue(b, func() {
			b.Load("m")
			b.PushString(" ")
			b.Add()
			b.BeginCall()
			b.Load("m")
			b.Arg()
			b.InvokeStatic("", "season")
			b.Add()
		})
		b.EndLoop()
		return nil
	})
}

// cleanup divides inside a try statement whose finally block always
// reports completion.
func cleanup(b codegen.Builder) error {
	b.DefineMethod(pubStatic, "int", "attempt", []codegen.Param{{Type: "int", Name: "n"}}, func(b codegen.Builder) error {
		b.DeclareLocal("int", "result")
		b.PushInt(-1)
		b.Store("result")
		b.Try()
		b.Load("n")
		b.PushInt(0)
		b.Eq()
		b.If()
		b.BeginNew("IllegalStateException")
		b.PushString("no input")
		b.Arg()
		b.EndNew()
		b.Throw()
		b.EndIf()
		b.PushInt(100)
		b.Load("n")
		b.Div()
		b.Store("result")
		b.Catch("IllegalStateException", "e")
		printValue(b, func() {
			b.PushString("failed: ")
			b.Load("e")
			b.BeginCall()
			b.InvokeVirtual("getMessage")
			b.Add()
		})
		b.Finally()
		printValue(b, func() {
			b.PushString("attempt ")
			b.Load("n")
			b.Add()
			b.PushString(" done")
			b.Add()
		})
		b.EndTry()
		b.Load("result")
		return b.Return()
	})
	return mainMethod(b, func(b codegen.Builder) error {
		for _, n := range []int32{4, 0} {
			printValue(b, func() {
				b.BeginCall()
				b.PushInt(n)
				b.Arg()
				b.InvokeStatic("", "attempt")
			})
		}
		return nil
	})
}

func demoDefinitions() []codegen.Definition {
	return []codegen.Definition{
		{Flags: classfile.AccPublic, Name: "demo.Countdown", Build: countdown},
		{Flags: classfile.AccPublic, Name: "demo.Seasons", Build: seasons},
		{Flags: classfile.AccPublic, Name: "demo.Cleanup", Build: cleanup},
	}
}

// printListings generates the demo classes into instruction listings.
func printListings(w io.Writer) error {
	gen, err := cfg.NewContext()
	if err != nil {
		return err
	}
	gen.NewSink = func(pool *classfile.PoolBuilder, method string) emit.Sink {
		return emit.NewPrinter(w, method)
	}
	_, err = codegen.TwoPass(gen, demoDefinitions()...)
	return err
}

// generateDemo generates the demo classes and saves them below dir.
func generateDemo(dir string) ([]*codegen.Class, error) {
	gen, err := cfg.NewContext()
	if err != nil {
		return nil, err
	}
	classes, err := codegen.TwoPass(gen, demoDefinitions()...)
	if err != nil {
		return nil, err
	}
	out := output.New(dir)
	for _, c := range classes {
		if _, err := out.Save(c.Name, c.Data); err != nil {
			return nil, err
		}
	}
	return classes, nil
}

func demo(ctx *cli.Context) error {
	w := ctx.App.Writer
	if ctx.Bool("print") {
		if err := printListings(w); err != nil {
			return err
		}
	}
	dir := ctx.String("o")
	if dir == "" {
		dir = cfg.OutputDir()
	}
	classes, err := generateDemo(dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "saved %d classes to %s\n", len(classes), dir)
	if !ctx.Bool("run") {
		return nil
	}
	for _, c := range classes {
		fmt.Fprintf(w, "== %s\n", c.Name)
		v := vm.New(runtimeClassPath(loader.NewMemoryClassLoader(), dir))
		v.Stdout = w
		if err := v.Execute(c.Name); err != nil {
			return err
		}
	}
	return nil
}
