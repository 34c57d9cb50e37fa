package main

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/nci/gstack/processor"
	"github.com/nci/gstack/raster"
	"github.com/nci/gstack/utils"
	"github.com/spf13/cobra"
)

var resamplings = []string{"nearest", "average", "lanczos"}

type addoOptions struct {
	Levels     []int
	Resampling string
	External   bool
	Workers    int
}

func validResampling(r string) bool {
	for _, v := range resamplings {
		if v == strings.ToLower(r) {
			return true
		}
	}
	return false
}

// buildOverviews runs raster.BuildOverviews on every file with at most
// opts.Workers files in flight and returns the files that failed.
func buildOverviews(files []string, opts *addoOptions, verbose bool) map[string]error {
	var mu sync.Mutex
	failed := make(map[string]error)

	cLimiter := processor.NewConcLimiter(opts.Workers)
	for _, f := range files {
		cLimiter.Increase()
		go func(f string, conc *processor.ConcLimiter) {
			defer conc.Decrease()
			err := raster.BuildOverviews(f, opts.Levels, strings.ToUpper(opts.Resampling), opts.External)
			if err != nil {
				mu.Lock()
				failed[f] = err
				mu.Unlock()
				return
			}
			if verbose {
				log.Printf("built overviews %v for %s", opts.Levels, f)
			}
		}(f, cLimiter)
	}
	cLimiter.Wait()
	return failed
}

func newAddoCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &addoOptions{}
	cmd := &cobra.Command{
		Use:   "addo <file-or-glob>...",
		Short: "Add LZW compressed overviews to rasters",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !validResampling(opts.Resampling) {
				return fmt.Errorf("invalid resampling %q: must be one of %v", opts.Resampling, resamplings)
			}
			for _, l := range opts.Levels {
				if l < 2 {
					return fmt.Errorf("invalid overview level %d", l)
				}
			}
			files, err := findFiles(args)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no files found for %v", args)
			}

			utils.InitGdal()
			failed := buildOverviews(files, opts, rootOpts.Verbose)
			for f, err := range failed {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", f, err)
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d files failed", len(failed), len(files))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added overviews to %d files\n", len(files))
			return nil
		},
	}
	f := cmd.Flags()
	f.IntSliceVar(&opts.Levels, "levels", raster.DefaultOverviewLevels, "overview decimation factors")
	f.StringVar(&opts.Resampling, "resampling", "nearest", "resampling: "+strings.Join(resamplings, ", "))
	f.BoolVar(&opts.External, "external", false, "write external .ovr files")
	f.IntVarP(&opts.Workers, "workers", "w", 5, "number of files processed in parallel")
	return cmd
}
