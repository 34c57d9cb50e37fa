package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nci/gstack/utils"
	"github.com/spf13/cobra"
)

func newCombineCommand(rootOpts *rootOptions) *cobra.Command {
	var output string
	var names []string
	cmd := &cobra.Command{
		Use:   "combine <registry>...",
		Short: "Merge registry files into one",
		Long: `Merge registry files into one. Dataset names are prefixed with the
matching --names entry, or with the name of the registry's directory, and
relative file paths are resolved against each registry.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefixes := names
			if len(prefixes) == 0 {
				for _, p := range args {
					abs, err := filepath.Abs(p)
					if err != nil {
						return err
					}
					prefixes = append(prefixes, filepath.Base(filepath.Dir(abs)))
				}
			}
			if len(prefixes) != len(args) {
				return fmt.Errorf("%d registries but %d names", len(args), len(prefixes))
			}

			datasets, err := utils.CombineConfigs(args, prefixes)
			if err != nil {
				return err
			}
			config := &utils.Config{Datasets: datasets}
			if err := config.Validate(nil); err != nil {
				return err
			}
			if err := utils.SaveConfigFile(output, datasets); err != nil {
				return err
			}
			if rootOpts.Verbose {
				fmt.Fprintf(cmd.ErrOrStderr(), "prefixes: %s\n", strings.Join(prefixes, ", "))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d datasets to %s\n", len(datasets), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "combined_rasters.json", "registry file to write")
	cmd.Flags().StringSliceVar(&names, "names", nil, "name prefix of each registry")
	return cmd
}
