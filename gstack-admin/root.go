package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	Verbose bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "gstack-admin",
		Short:         "Prepare raster stacks and dataset registries for gstack",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(newSetDataCommand(opts))
	cmd.AddCommand(newSetupStackCommand(opts))
	cmd.AddCommand(newAddoCommand(opts))
	cmd.AddCommand(newCombineCommand(opts))
	return cmd
}
