package main

import (
	"github.com/spf13/cobra"
)

const version = "1.0.0"

// newRootCmd creates the root daqd command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "daqd",
		Short:         "Laboratory data acquisition daemon",
		Long:          "daqd supervises laboratory instruments from a YAML roster,\nroutes commands to them, and fans measurement streams out to consumers.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newRunCmd(),
		newValidateCmd(),
		newTypesCmd(),
	)
	return cmd
}
