package extractor

import (
	"fmt"
	"log"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/nci/gstack/utils"
)

// DefaultGroupPattern groups files by their directory.
const DefaultGroupPattern = `^(?P<dataset>.*)/[^/]+$`

// GroupOptions controls how crawled files become registry entries.
type GroupOptions struct {
	// Group must have a named group "dataset". Files that do not match
	// are skipped.
	Group string
	// Mask selects the mask files of each dataset by base name.
	Mask         string
	MaskMinValue *float64
	NoData       *float64
	Algorithm    string
	FileDateFmt  *string
}

// GroupFiles builds one DatasetConfig per distinct "dataset" match. File
// lists are sorted by path, so date stamped names come out in time order.
// A dataset is left without masks unless it has either one mask file or
// as many mask files as data files.
func GroupFiles(files []*PosixInfo, opts GroupOptions) ([]*utils.DatasetConfig, error) {
	pattern := opts.Group
	if len(pattern) == 0 {
		pattern = DefaultGroupPattern
	}
	groupRe, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid group pattern: %v", err)
	}
	idx := groupRe.SubexpIndex("dataset")
	if idx < 0 {
		return nil, fmt.Errorf("group pattern %q has no (?P<dataset>...) group", pattern)
	}

	var maskRe *regexp.Regexp
	if len(opts.Mask) > 0 {
		if maskRe, err = regexp.Compile(opts.Mask); err != nil {
			return nil, fmt.Errorf("invalid mask pattern: %v", err)
		}
	}

	type group struct {
		data, masks []string
	}
	groups := make(map[string]*group)
	var names []string
	for _, f := range files {
		m := groupRe.FindStringSubmatch(f.FilePath)
		if m == nil || len(m[idx]) == 0 {
			continue
		}
		name := m[idx]
		g, ok := groups[name]
		if !ok {
			g = &group{}
			groups[name] = g
			names = append(names, name)
		}
		if maskRe != nil && maskRe.MatchString(filepath.Base(f.FilePath)) {
			g.masks = append(g.masks, f.FilePath)
		} else {
			g.data = append(g.data, f.FilePath)
		}
	}
	sort.Strings(names)

	var out []*utils.DatasetConfig
	for _, name := range names {
		g := groups[name]
		if len(g.data) == 0 {
			log.Printf("dataset %s has only mask files, skipping", name)
			continue
		}
		sort.Strings(g.data)
		sort.Strings(g.masks)

		cfg := &utils.DatasetConfig{
			Name:         name,
			FileList:     g.data,
			MaskMinValue: opts.MaskMinValue,
			NoData:       opts.NoData,
			Algorithm:    opts.Algorithm,
			FileDateFmt:  opts.FileDateFmt,
		}
		switch {
		case len(g.masks) == 1 || len(g.masks) == len(g.data):
			cfg.MaskFileList = g.masks
		case len(g.masks) > 0:
			log.Printf("dataset %s has %d files but %d masks, ignoring masks", name, len(g.data), len(g.masks))
		}
		out = append(out, cfg)
	}
	return out, nil
}
