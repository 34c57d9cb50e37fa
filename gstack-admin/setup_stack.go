package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nci/gstack/utils"
	"github.com/spf13/cobra"
)

// stackProduct is one output of an InSAR time series workflow.
type stackProduct struct {
	name           string
	globs          []string
	usesSpatialRef bool
}

var stackProducts = []stackProduct{
	{name: "time series", globs: []string{"timeseries/2*.tif"}, usesSpatialRef: true},
	{name: "velocity", globs: []string{"timeseries/velocity.tif"}},
	{name: "unwrapped", globs: []string{"unwrapped/2*[0-9].unw.tif"}, usesSpatialRef: true},
	{name: "Connected components", globs: []string{"unwrapped/*.unw.conncomp.tif"}},
	{name: "Correlation", globs: []string{"interferograms/*.cor.tif"}},
	{name: "PS mask", globs: []string{"interferograms/ps_mask_looked.tif"}},
	{name: "Temporal coherence", globs: []string{"interferograms/temporal_coherence.tif"}},
	{name: "Amplitude dispersion", globs: []string{"interferograms/amp_dispersion_looked.tif"}},
	{name: "SHP counts", globs: []string{"interferograms/shp_counts.tif"}},
}

func parseOptionalFloat(v string) (*float64, error) {
	if len(strings.TrimSpace(v)) == 0 {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// detectStack returns a registry entry for every product found under
// workDir. Products with no existing file are skipped.
func detectStack(workDir string, maskCoherence bool) ([]*utils.DatasetConfig, error) {
	workDir = strings.TrimRight(workDir, "/")
	if st, err := os.Stat(workDir); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", workDir)
	}

	coherence := filepath.Join(workDir, "interferograms", "temporal_coherence.tif")
	_, err := os.Stat(coherence)
	hasCoherence := err == nil

	var out []*utils.DatasetConfig
	for _, p := range stackProducts {
		var globs []string
		for _, g := range p.globs {
			globs = append(globs, filepath.Join(workDir, g))
		}
		files, err := findFiles(globs)
		if err != nil {
			return nil, err
		}

		var existing []string
		for _, f := range files {
			if _, err := os.Stat(f); err == nil {
				existing = append(existing, f)
			}
		}
		if len(existing) == 0 {
			continue
		}

		entry := &utils.DatasetConfig{
			Name:           p.name,
			FileList:       existing,
			UsesSpatialRef: p.usesSpatialRef,
		}
		if p.usesSpatialRef {
			entry.Algorithm = "shift"
			if maskCoherence && hasCoherence {
				entry.MaskFileList = []string{coherence}
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func newSetupStackCommand(rootOpts *rootOptions) *cobra.Command {
	var output string
	var maskCoherence bool
	cmd := &cobra.Command{
		Use:   "setup-stack <work-dir>",
		Short: "Write a registry for the outputs of an InSAR time series workflow",
		Long: `Detect the time series, unwrapped phase, connected component and
coherence products of a workflow directory and write one registry entry
per product found.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			datasets, err := detectStack(args[0], maskCoherence)
			if err != nil {
				return err
			}
			if len(datasets) == 0 {
				return fmt.Errorf("no products found under %s", args[0])
			}
			if err := utils.SaveConfigFile(output, datasets); err != nil {
				return err
			}
			for _, d := range datasets {
				if rootOpts.Verbose {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d files\n", d.Name, len(d.FileList))
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d datasets to %s\n", len(datasets), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", utils.DefaultConfigFile, "registry file to write")
	cmd.Flags().BoolVar(&maskCoherence, "mask-coherence", false, "mask relative products with the temporal coherence")
	return cmd
}
