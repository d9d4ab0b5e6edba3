package main

import (
	"github.com/spf13/cobra"

	"github.com/wippyai/jac"
)

func (c *cli) disasmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disasm <input>",
		Short: "Print the analysed functions of a bytecode container",
		Long: "disasm translates a bytecode container and lists every function with its\n" +
			"slot layout, captures, basic blocks and operand stack depths.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.options(cmd)
			if err != nil {
				return err
			}
			a, err := c.compile(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			return jac.Disassemble(cmd.OutOrStdout(), a.Translation)
		},
	}
	addCompileFlags(cmd.Flags())
	return cmd
}
