package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nci/gstack/processor"
	"github.com/nci/gstack/utils"
	"github.com/spf13/cobra"
)

type setDataOptions struct {
	Output         string
	Name           string
	Globs          []string
	MaskGlobs      []string
	MaskMinValue   float64
	Algorithm      string
	UsesSpatialRef bool
	NoData         string
	DateFormat     string
}

// findFiles expands globs into a sorted, duplicate free list. Paths
// without glob characters are kept as given so /vsi paths pass through.
func findFiles(globs []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, g := range globs {
		g = strings.Trim(strings.TrimSpace(g), `"'`)
		if len(g) == 0 {
			continue
		}
		var matches []string
		if strings.ContainsAny(g, "*?[") {
			var err error
			if matches, err = filepath.Glob(g); err != nil {
				return nil, fmt.Errorf("invalid glob %q: %v", g, err)
			}
		} else {
			matches = []string{g}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// appendDatasets adds entries to the registry at path, replacing entries
// with the same name.
func appendDatasets(path string, entries ...*utils.DatasetConfig) error {
	var datasets []*utils.DatasetConfig
	if _, err := os.Stat(path); err == nil {
		config, err := utils.LoadConfigFile(path)
		if err != nil {
			return err
		}
		datasets = config.Datasets
	}

	for _, e := range entries {
		replaced := false
		for i, d := range datasets {
			if d.Name == e.Name {
				datasets[i] = e
				replaced = true
			}
		}
		if !replaced {
			datasets = append(datasets, e)
		}
	}

	config := &utils.Config{Datasets: datasets}
	if err := config.Validate(processor.AlgorithmNames); err != nil {
		return err
	}
	return utils.SaveConfigFile(path, datasets)
}

func newSetDataCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &setDataOptions{}
	cmd := &cobra.Command{
		Use:   "set-data",
		Short: "Add a dataset to a registry file",
		Long: `Add a dataset built from file globs to a registry file.

Existing entries with the same name are replaced. Datasets using a relative
spatial reference, such as unwrapped phase, default to the shift algorithm.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetData(rootOpts, opts, cmd)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.Output, "output", "o", utils.DefaultConfigFile, "registry file to update")
	f.StringVar(&opts.Name, "name", "", "dataset name")
	f.StringSliceVarP(&opts.Globs, "files", "f", nil, "file names or glob patterns of the stack")
	f.StringSliceVar(&opts.MaskGlobs, "mask", nil, "mask file names or glob patterns")
	f.Float64Var(&opts.MaskMinValue, "mask-min-value", utils.DefaultMaskMinValue, "mask values below this are invalid")
	f.StringVar(&opts.Algorithm, "algorithm", "", "default algorithm: "+strings.Join(processor.AlgorithmNames, ", "))
	f.BoolVar(&opts.UsesSpatialRef, "uses-spatial-ref", false, "values are relative to a reference point")
	f.StringVar(&opts.NoData, "nodata", "", "nodata override")
	f.StringVar(&opts.DateFormat, "date-fmt", "", "date format of the file names")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("files")
	return cmd
}

func runSetData(rootOpts *rootOptions, opts *setDataOptions, cmd *cobra.Command) error {
	files, err := findFiles(opts.Globs)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found for %v", opts.Globs)
	}
	masks, err := findFiles(opts.MaskGlobs)
	if err != nil {
		return err
	}

	entry := &utils.DatasetConfig{
		Name:           opts.Name,
		FileList:       files,
		MaskFileList:   masks,
		UsesSpatialRef: opts.UsesSpatialRef,
		Algorithm:      opts.Algorithm,
	}
	if cmd.Flags().Changed("mask-min-value") {
		v := opts.MaskMinValue
		entry.MaskMinValue = &v
	}
	if entry.UsesSpatialRef && len(entry.Algorithm) == 0 {
		entry.Algorithm = "shift"
	}
	if entry.NoData, err = parseOptionalFloat(opts.NoData); err != nil {
		return fmt.Errorf("invalid --nodata: %v", err)
	}
	if len(opts.DateFormat) > 0 {
		layout := opts.DateFormat
		entry.FileDateFmt = &layout
	}

	if err := appendDatasets(opts.Output, entry); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %q with %d files to %s\n", entry.Name, len(files), opts.Output)
	if rootOpts.Verbose {
		for _, f := range files {
			fmt.Fprintln(cmd.ErrOrStderr(), "  "+f)
		}
	}
	return nil
}
