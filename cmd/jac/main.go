// Command jac compiles QuickJS bytecode containers to WebAssembly and runs
// them.
package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/jac"
)

// cli is the state shared by every subcommand. It is filled in by the root
// command's PersistentPreRunE.
type cli struct {
	log        *zap.Logger
	cfg        config
	configPath string
	colorMode  string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "error: ")
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "jac",
		Short:         "QuickJS bytecode to WebAssembly compiler",
		Long:          "jac compiles QuickJS bytecode containers ahead of time to WebAssembly modules and runs them on wazero.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ./jac.toml when present)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "development logging at debug level")
	root.PersistentFlags().StringVar(&c.colorMode, "color", "auto", "colorize output (auto|on|off)")

	root.AddCommand(
		c.compileCmd(),
		c.disasmCmd(),
		c.runCmd(),
		c.inspectCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	log, err := newLogger(cfg.Log, c.verbose)
	if err != nil {
		return err
	}
	c.log = log
	jac.SetLogger(log)

	switch c.colorMode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isTerminal(cmd.OutOrStdout())
	default:
		return &flagError{flag: "color", value: c.colorMode, want: "auto, on or off"}
	}
	return nil
}

// isTerminal reports whether w is a file attached to a terminal.
func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type flagError struct {
	flag, value, want string
}

func (e *flagError) Error() string {
	return "--" + e.flag + "=" + e.value + ": want " + e.want
}
