// Package config handles jclassgen.toml run configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/daimatz/jclassgen/pkg/classfile"
	"github.com/daimatz/jclassgen/pkg/codegen"
	"github.com/daimatz/jclassgen/pkg/loader"
	"github.com/daimatz/jclassgen/pkg/lookup"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("jclassgen.config")

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "jclassgen.toml"

// Config is the configuration of one generation run.
type Config struct {
	Codegen   Codegen   `toml:"codegen"`
	Classpath Classpath `toml:"classpath"`
	Output    Output    `toml:"output"`
	Log       Log       `toml:"log"`

	// Dir is the directory relative paths are resolved against (set at
	// load time).
	Dir string `toml:"-"`
}

// Codegen configures the class files produced.
type Codegen struct {
	ClassVersionMajor uint16 `toml:"class_version_major"`
	DebugInfo         bool   `toml:"debug_info"`
	SourceFile        string `toml:"source_file"`
}

// Classpath configures where referenced library classes are found.
type Classpath struct {
	// Jmod is a java.base.jmod archive. Empty means discover it; when none
	// is found the bootstrap stub library is used.
	Jmod      string   `toml:"jmod"`
	Dirs      []string `toml:"dirs"`
	Index     string   `toml:"index"`
	CacheSize int      `toml:"cache_size"`
}

type Output struct {
	Dir string `toml:"dir"`
}

type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Codegen: Codegen{
			ClassVersionMajor: classfile.DefaultMajorVersion,
			DebugInfo:         true,
		},
		Classpath: Classpath{CacheSize: loader.DefaultCacheSize},
		Output:    Output{Dir: "out"},
		Dir:       ".",
	}
}

// Load parses a configuration file. Keys absent from the file keep their
// Default values; unknown keys are an error.
func Load(path string) (*Config, error) {
	c := Default()
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a jclassgen.toml file. It
// returns Default when there is none.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// Validate checks values the decoder cannot.
func (c *Config) Validate() error {
	if v := c.Codegen.ClassVersionMajor; v < 45 || v > 49 {
		// Later versions require StackMapTable frames and forbid jsr.
		return fmt.Errorf("codegen.class_version_major %d not supported (45 to 49)", v)
	}
	if c.Classpath.CacheSize < 0 {
		return fmt.Errorf("classpath.cache_size must not be negative")
	}
	if c.Log.Verbosity < 0 {
		return fmt.Errorf("log.verbosity must not be negative")
	}
	return nil
}

// Path resolves p against the configuration directory.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// CodegenOptions converts the [codegen] table.
func (c *Config) CodegenOptions() codegen.Options {
	return codegen.Options{
		MajorVersion: c.Codegen.ClassVersionMajor,
		DebugInfo:    c.Codegen.DebugInfo,
		SourceFile:   c.Codegen.SourceFile,
	}
}

// JmodPath returns the configured java.base.jmod, falling back to the
// JAVA_BASE_JMOD and JAVA_HOME discovery.
func (c *Config) JmodPath() string {
	if c.Classpath.Jmod != "" {
		return c.Path(c.Classpath.Jmod)
	}
	return loader.FindJavaBase()
}

// ClassLoader builds the loader for referenced classes: the jmod archive
// (or the stub library), then each classpath directory, behind a cache.
func (c *Config) ClassLoader() (loader.ClassLoader, error) {
	var base loader.ClassLoader
	if jmod := c.JmodPath(); jmod != "" {
		log.Infof("using %s", jmod)
		base = loader.NewJmodClassLoader(jmod)
	} else {
		log.Warning("java.base.jmod not found, using the bootstrap stub library")
		base = loader.NewStubClassLoader()
	}
	cl := base
	for _, d := range c.Classpath.Dirs {
		cl = loader.NewDirClassLoader(c.Path(d), cl)
	}
	return loader.NewCached(cl, c.Classpath.CacheSize)
}

// NewContext creates a generation context from the configuration,
// consulting the descriptor index when one is configured.
func (c *Config) NewContext() (*codegen.Context, error) {
	cl, err := c.ClassLoader()
	if err != nil {
		return nil, err
	}
	ctx := codegen.NewContext(cl, c.CodegenOptions())
	if c.Classpath.Index != "" {
		idx, err := lookup.LoadIndex(c.Path(c.Classpath.Index))
		if err != nil {
			return nil, err
		}
		log.Infof("using index of %d classes", len(idx.Classes))
		ctx.Lookup.UseIndex(idx)
	}
	return ctx, nil
}

// OutputDir is the resolved [output] directory.
func (c *Config) OutputDir() string {
	return c.Path(c.Output.Dir)
}

// ConfigureLogging applies the [log] table.
func (c *Config) ConfigureLogging() {
	var path *string
	if c.Log.File != "" {
		p := c.Path(c.Log.File)
		path = &p
	}
	commonlog.Configure(c.Log.Verbosity, path)
}
