package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/jac"
	"github.com/wippyai/jac/engine"
	"github.com/wippyai/jac/translate"
)

const defaultConfigFile = "jac.toml"

type config struct {
	Compile compileConfig `toml:"compile"`
	Log     logConfig     `toml:"log"`
	Runtime runtimeConfig `toml:"runtime"`
}

type compileConfig struct {
	Policy         string `toml:"policy"`
	Parallelism    int    `toml:"parallelism"`
	MemoryPages    uint32 `toml:"memory_pages"`
	MaxMemoryPages uint32 `toml:"max_memory_pages"`
	ArgStackSize   uint32 `toml:"arg_stack_size"`
	NameSection    bool   `toml:"name_section"`
}

type runtimeConfig struct {
	MemoryLimitPages uint32 `toml:"memory_limit_pages"`
	MaxCallDepth     int    `toml:"max_call_depth"`
}

type logConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func defaultConfig() config {
	opts := jac.DefaultOptions()
	return config{
		Compile: compileConfig{
			Policy:         opts.Translate.Policy.String(),
			Parallelism:    opts.Translate.Parallelism,
			MemoryPages:    opts.Codegen.MemoryPages,
			MaxMemoryPages: opts.Codegen.MaxMemoryPages,
			ArgStackSize:   opts.Codegen.ArgStackSize,
			NameSection:    opts.Codegen.NameSection,
		},
		Log: logConfig{Level: "warn", Format: "console"},
	}
}

// loadConfig reads path over the defaults. Keys the file leaves out keep
// their default. An empty path looks for jac.toml in the working directory
// and falls back to the defaults when there is none.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return config{}, fmt.Errorf("failed to stat %q: %w", path, err)
	}

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("compile", "policy") {
		if _, ok := translate.ParsePolicy(cfg.Compile.Policy); !ok {
			return config{}, fmt.Errorf("%s: [compile].policy must be \"function\" or \"none\", got %q", path, cfg.Compile.Policy)
		}
	}
	if meta.IsDefined("runtime", "max_call_depth") && cfg.Runtime.MaxCallDepth <= 0 {
		return config{}, fmt.Errorf("%s: [runtime].max_call_depth must be positive", path)
	}
	if meta.IsDefined("log", "format") && cfg.Log.Format != "console" && cfg.Log.Format != "json" {
		return config{}, fmt.Errorf("%s: [log].format must be \"console\" or \"json\", got %q", path, cfg.Log.Format)
	}
	return cfg, nil
}

// options converts the configuration into library options.
func (c config) options() (jac.Options, error) {
	policy, ok := translate.ParsePolicy(c.Compile.Policy)
	if !ok {
		return jac.Options{}, fmt.Errorf("unknown degrade policy %q", c.Compile.Policy)
	}
	opts := jac.DefaultOptions()
	opts.Translate.Policy = policy
	if c.Compile.Parallelism > 0 {
		opts.Translate.Parallelism = c.Compile.Parallelism
	}
	opts.Codegen.MemoryPages = c.Compile.MemoryPages
	opts.Codegen.MaxMemoryPages = c.Compile.MaxMemoryPages
	opts.Codegen.ArgStackSize = c.Compile.ArgStackSize
	opts.Codegen.NameSection = c.Compile.NameSection
	opts.Engine = &engine.Config{
		MemoryLimitPages: c.Runtime.MemoryLimitPages,
		MaxCallDepth:     c.Runtime.MaxCallDepth,
	}
	return opts, nil
}

// newLogger builds the CLI logger. Logs go to stderr so they never mix
// with command output.
func newLogger(c logConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if verbose {
		zc = zap.NewDevelopmentConfig()
	} else {
		level, err := zap.ParseAtomicLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("[log].level: %w", err)
		}
		zc.Level = level
		zc.Encoding = c.Format
		if c.Format == "console" {
			zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
			zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}
	}
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
