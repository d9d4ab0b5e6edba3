package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wippyai/jac"
	"github.com/wippyai/jac/translate"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	nameColor = color.New(color.FgCyan)
	dimColor  = color.New(color.Faint)
)

func addCompileFlags(fs *pflag.FlagSet) {
	fs.String("policy", "", "what to do with functions that cannot be compiled (function|none)")
	fs.Int("parallelism", 0, "functions translated concurrently (0 = GOMAXPROCS)")
	fs.Uint32("memory-pages", 0, "initial linear memory in 64KiB pages")
	fs.Uint32("arg-stack", 0, "argument stack size in bytes")
	fs.Bool("no-names", false, "omit the wasm name section")
}

// options merges the configuration with the flags the user set.
func (c *cli) options(cmd *cobra.Command) (jac.Options, error) {
	cfg := c.cfg
	fs := cmd.Flags()
	if fs.Changed("policy") {
		cfg.Compile.Policy, _ = fs.GetString("policy")
		if _, ok := translate.ParsePolicy(cfg.Compile.Policy); !ok {
			return jac.Options{}, &flagError{flag: "policy", value: cfg.Compile.Policy, want: "function or none"}
		}
	}
	if fs.Changed("parallelism") {
		cfg.Compile.Parallelism, _ = fs.GetInt("parallelism")
	}
	if fs.Changed("memory-pages") {
		cfg.Compile.MemoryPages, _ = fs.GetUint32("memory-pages")
	}
	if fs.Changed("arg-stack") {
		cfg.Compile.ArgStackSize, _ = fs.GetUint32("arg-stack")
	}
	if fs.Changed("no-names") {
		noNames, _ := fs.GetBool("no-names")
		cfg.Compile.NameSection = !noNames
	}
	if fs.Lookup("max-depth") != nil && fs.Changed("max-depth") {
		cfg.Runtime.MaxCallDepth, _ = fs.GetInt("max-depth")
	}
	if fs.Lookup("memory-limit") != nil && fs.Changed("memory-limit") {
		cfg.Runtime.MemoryLimitPages, _ = fs.GetUint32("memory-limit")
	}
	return cfg.options()
}

func (c *cli) compile(ctx context.Context, path string, opts jac.Options) (*jac.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	a, err := jac.Compile(ctx, data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.log.Debug("compiled",
		zap.String("input", path),
		zap.Int("functions", len(a.Translation.Funcs)),
		zap.Int("compiled", a.Compiled()),
		zap.Int("bytes", len(a.Wasm)))
	return a, nil
}

func (c *cli) compileCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "compile <input> [-o output.wasm]",
		Short: "Compile a bytecode container to a WebAssembly module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.options(cmd)
			if err != nil {
				return err
			}
			a, err := c.compile(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			out := output
			if out == "" {
				out = outputPath(args[0])
			}
			if err := os.WriteFile(out, a.Wasm, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			printSummary(cmd.OutOrStdout(), args[0], out, a)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: input with a .wasm extension)")
	addCompileFlags(cmd.Flags())
	return cmd
}

// outputPath replaces the extension of input with .wasm.
func outputPath(input string) string {
	out := strings.TrimSuffix(input, filepath.Ext(input)) + ".wasm"
	if out == input {
		out += ".wasm"
	}
	return out
}

func printSummary(w io.Writer, input, output string, a *jac.Artifact) {
	okColor.Fprint(w, "compiled ")
	fmt.Fprintf(w, "%s -> %s ", input, output)
	dimColor.Fprintf(w, "(%d bytes)\n", len(a.Wasm))

	degraded := a.Translation.Degraded()
	fmt.Fprintf(w, "  %d functions: %d compiled", len(a.Translation.Funcs), a.Compiled())
	if len(degraded) > 0 {
		fmt.Fprint(w, ", ")
		warnColor.Fprintf(w, "%d interpreted", len(degraded))
	}
	fmt.Fprintln(w)
	for _, f := range degraded {
		fmt.Fprint(w, "  ")
		nameColor.Fprintf(w, "%s %s", f.Index, funcName(f))
		fmt.Fprintf(w, ": %s\n", f.Reason)
	}
}

func funcName(f *translate.FunctionTranslation) string {
	if f.Name == "" {
		return "<anonymous>"
	}
	return f.Name
}
