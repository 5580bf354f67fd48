// Command jclassgen generates, inspects and runs JVM class files.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/daimatz/jclassgen/pkg/config"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"gopkg.in/urfave/cli.v1"
)

var log = commonlog.GetLogger("jclassgen.cli")

var (
	configFlag = cli.StringFlag{
		Name:  "config, c",
		Usage: "configuration file (default: nearest " + config.FileName + ")",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity, v",
		Usage: "log verbosity, overriding [log] verbosity",
		Value: -1,
	}
)

// cfg is the configuration loaded before any command runs.
var cfg *config.Config

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "jclassgen"
	app.Usage = "generate and run JVM class files"
	app.HideVersion = true
	app.Flags = []cli.Flag{configFlag, verbosityFlag}
	app.Commands = []cli.Command{
		runCommand,
		inspectCommand,
		indexCommand,
		demoCommand,
	}
	sort.Sort(cli.CommandsByName(app.Commands))
	app.Before = func(ctx *cli.Context) error {
		var err error
		if path := ctx.GlobalString("config"); path != "" {
			cfg, err = config.Load(path)
		} else {
			cfg, err = config.FindAndLoad(".")
		}
		if err != nil {
			return err
		}
		if v := ctx.GlobalInt("verbosity"); v >= 0 {
			cfg.Log.Verbosity = v
		}
		cfg.ConfigureLogging()
		return nil
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
