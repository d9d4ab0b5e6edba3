package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/jac"
	"github.com/wippyai/jac/engine"
	"github.com/wippyai/jac/jacrt"
)

var wasmMagic = []byte("\x00asm")

func (c *cli) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Run a bytecode container or a generated module",
		Long: "run executes the root function and prints its completion value. The input\n" +
			"is either a bytecode container, compiled on the fly, or a module written by\n" +
			"jac compile.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.options(cmd)
			if err != nil {
				return err
			}
			v, err := c.run(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
	addCompileFlags(cmd.Flags())
	cmd.Flags().Int("max-depth", 0, "maximum nested calls (0 = runtime default)")
	cmd.Flags().Uint32("memory-limit", 0, "maximum linear memory in 64KiB pages (0 = unlimited)")
	return cmd
}

func (c *cli) run(ctx context.Context, path string, opts jac.Options) (jacrt.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read input: %w", err)
	}
	wasm := data
	if !bytes.HasPrefix(data, wasmMagic) {
		a, err := c.compile(ctx, path, opts)
		if err != nil {
			return 0, err
		}
		wasm = a.Wasm
	}

	e, err := engine.NewEngine(ctx, opts.Engine)
	if err != nil {
		return 0, err
	}
	defer e.Close(ctx)

	mod, err := e.Load(ctx, wasm)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		return 0, err
	}
	defer inst.Close(ctx)

	v, err := inst.Run(ctx)
	if err != nil {
		return 0, err
	}
	c.log.Debug("run complete", zap.String("input", path), zap.Stringer("result", v))
	return v, nil
}
