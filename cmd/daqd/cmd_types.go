package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/easternanemone/daqstreams/drivers"
	"github.com/easternanemone/daqstreams/instrument"
)

// newTypesCmd creates the types subcommand: list the built-in instrument
// types available to configurations.
func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List available instrument types",
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := instrument.NewRegistry()
			if err := drivers.RegisterAll(registry); err != nil {
				return err
			}
			for _, name := range registry.Types() {
				reg, _ := registry.Lookup(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", name, reg.Description)
			}
			return nil
		},
	}
}
