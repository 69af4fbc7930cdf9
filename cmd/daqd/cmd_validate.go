package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/easternanemone/daqstreams/config"
)

// newValidateCmd creates the validate subcommand: parse a configuration
// file and report problems without starting anything.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			enabled := 0
			for _, ic := range cfg.Instruments {
				if ic.IsEnabled() {
					enabled++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d instruments, %d enabled)\n",
				args[0], len(cfg.Instruments), enabled)
			return nil
		},
	}
}
