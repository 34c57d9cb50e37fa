package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/nci/gstack/raster"
	yaml "gopkg.in/yaml.v2"
)

var EtcDir = "."

const (
	DefaultConfigFile   = "gstack_rasters.json"
	ConfigFileEnv       = "GSTACK_DATASET_CONFIG_FILE"
	DefaultMaskMinValue = 0.1
)

// DatasetConfig is one entry of the dataset registry: an ordered list of
// co-registered rasters with an optional aligned list of mask rasters.
type DatasetConfig struct {
	Name           string   `json:"name" yaml:"name"`
	FileList       []string `json:"file_list" yaml:"file_list"`
	MaskFileList   []string `json:"mask_file_list,omitempty" yaml:"mask_file_list,omitempty"`
	MaskMinValue   *float64 `json:"mask_min_value,omitempty" yaml:"mask_min_value,omitempty"`
	MaskOptional   bool     `json:"mask_optional,omitempty" yaml:"mask_optional,omitempty"`
	NoData         *float64 `json:"nodata" yaml:"nodata"`
	UsesSpatialRef bool     `json:"uses_spatial_ref" yaml:"uses_spatial_ref"`
	Algorithm      string   `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	FileDateFmt    *string  `json:"file_date_fmt,omitempty" yaml:"file_date_fmt,omitempty"`
	Band           int      `json:"band,omitempty" yaml:"band,omitempty"`
	VMin           *float64 `json:"vmin,omitempty" yaml:"vmin,omitempty"`
	VMax           *float64 `json:"vmax,omitempty" yaml:"vmax,omitempty"`
	Colormap       string   `json:"cmap,omitempty" yaml:"cmap,omitempty"`
}

// Config is a parsed registry file.
type Config struct {
	Datasets    []*DatasetConfig `json:"datasets" yaml:"datasets"`
	LabelPolicy LabelPolicy      `json:"label_policy" yaml:"label_policy"`
}

// MaskThreshold is the mask value below which pixels are invalid.
func (d *DatasetConfig) MaskThreshold() float64 {
	if d.MaskMinValue == nil {
		return DefaultMaskMinValue
	}
	return *d.MaskMinValue
}

// DateLayout is the Go time layout used to find dates in file names.
// strftime style formats such as "%Y%m%d" are translated.
func (d *DatasetConfig) DateLayout() string {
	if d.FileDateFmt == nil {
		return raster.DefaultDateFormat
	}
	return DateLayout(*d.FileDateFmt)
}

var strftimeLayouts = strings.NewReplacer(
	"%Y", "2006",
	"%m", "01",
	"%d", "02",
	"%H", "15",
	"%M", "04",
	"%S", "05",
)

// DateLayout translates a strftime format to a Go layout. Formats
// without '%' are assumed to be Go layouts already.
func DateLayout(format string) string {
	if !strings.Contains(format, "%") {
		return format
	}
	return strftimeLayouts.Replace(format)
}

func (d *DatasetConfig) validate() error {
	if len(strings.TrimSpace(d.Name)) == 0 {
		return &raster.ConfigurationError{Msg: "dataset without a name"}
	}
	if len(d.FileList) == 0 {
		return &raster.ConfigurationError{Msg: fmt.Sprintf("dataset %q has an empty file_list", d.Name)}
	}
	if len(d.MaskFileList) > 0 && len(d.MaskFileList) != len(d.FileList) && len(d.MaskFileList) != 1 {
		return &raster.ConfigurationError{Msg: fmt.Sprintf("dataset %q has %d files but %d mask files", d.Name, len(d.FileList), len(d.MaskFileList))}
	}
	if d.Band < 0 {
		return &raster.ConfigurationError{Msg: fmt.Sprintf("dataset %q has invalid band %d", d.Name, d.Band)}
	}
	return nil
}

// MaskFor returns the mask file aligned with file index i. A single mask
// file applies to every member.
func (d *DatasetConfig) MaskFor(i int) string {
	switch len(d.MaskFileList) {
	case 0:
		return ""
	case 1:
		return d.MaskFileList[0]
	default:
		return d.MaskFileList[i]
	}
}

// Validate checks every entry and rejects duplicated names. Algorithm
// names are checked against algorithms when it is not empty.
func (c *Config) Validate(algorithms []string) error {
	known := make(map[string]bool)
	for _, a := range algorithms {
		known[a] = true
	}

	names := make(map[string]bool)
	for _, d := range c.Datasets {
		if err := d.validate(); err != nil {
			return err
		}
		if names[d.Name] {
			return &raster.ConfigurationError{Msg: fmt.Sprintf("duplicated dataset name %q", d.Name)}
		}
		names[d.Name] = true

		if len(d.Algorithm) > 0 && len(known) > 0 {
			for _, a := range strings.Split(d.Algorithm, "+") {
				if !known[strings.ToLower(strings.TrimSpace(a))] {
					return &raster.ConfigurationError{Msg: fmt.Sprintf("dataset %q uses unknown algorithm %q", d.Name, a)}
				}
			}
		}
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadConfigFile parses a JSON or YAML registry. The document is either a
// list of datasets or an object with a "datasets" list.
func LoadConfigFile(configFile string) (*Config, error) {
	cfg, err := ioutil.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("Error while reading config file: %s. Error: %v", configFile, err)
	}

	config := &Config{}
	if isYAML(configFile) {
		var list []*DatasetConfig
		if err = yaml.Unmarshal(cfg, &list); err != nil {
			err = yaml.Unmarshal(cfg, config)
		} else {
			config.Datasets = list
		}
	} else if trimmed := bytes.TrimSpace(cfg); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(cfg, &config.Datasets)
	} else {
		err = json.Unmarshal(cfg, config)
	}
	if err != nil {
		return nil, &raster.ConfigurationError{Msg: fmt.Sprintf("parsing config document %s: %v", configFile, err)}
	}

	if err := config.Validate(nil); err != nil {
		return nil, fmt.Errorf("%s: %w", configFile, err)
	}
	return config, nil
}

// LoadAllConfigFiles merges every registry file found under rootDir.
func LoadAllConfigFiles(rootDir string) (*Config, error) {
	merged := &Config{}
	found := 0
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".json" && !isYAML(path) {
			return nil
		}

		log.Printf("Loading config file: %s\n", path)
		config, e := LoadConfigFile(path)
		if e != nil {
			return e
		}
		found++
		merged.Datasets = append(merged.Datasets, config.Datasets...)
		if config.LabelPolicy != (LabelPolicy{}) {
			merged.LabelPolicy = config.LabelPolicy
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == 0 {
		return nil, fmt.Errorf("No config file found under %s", rootDir)
	}
	if err := merged.Validate(nil); err != nil {
		return nil, err
	}
	return merged, nil
}

// LoadConfig loads the registry file named by GSTACK_DATASET_CONFIG_FILE
// when it is set, otherwise every registry under confDir.
func LoadConfig(confDir string) (*Config, error) {
	if path, ok := os.LookupEnv(ConfigFileEnv); ok && len(path) > 0 {
		return LoadConfigFile(path)
	}
	return LoadAllConfigFiles(confDir)
}

// SaveConfigFile writes datasets as a JSON list, or YAML for .yaml files.
func SaveConfigFile(path string, datasets []*DatasetConfig) error {
	var out []byte
	var err error
	if isYAML(path) {
		out, err = yaml.Marshal(datasets)
	} else {
		out, err = json.MarshalIndent(datasets, "", "  ")
	}
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, out, 0644)
}

// CombineConfigs merges registry files, prefixing dataset names with the
// matching entry of names and resolving relative file paths against the
// directory of each registry. Entries are interleaved across sources.
func CombineConfigs(paths []string, names []string) ([]*DatasetConfig, error) {
	if len(paths) != len(names) {
		return nil, &raster.ConfigurationError{Msg: fmt.Sprintf("%d registries but %d name prefixes", len(paths), len(names))}
	}

	var sources [][]*DatasetConfig
	maxLen := 0
	for i, path := range paths {
		config, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		dir := filepath.Dir(path)
		for _, d := range config.Datasets {
			d.Name = fmt.Sprintf("%s: %s", names[i], d.Name)
			d.FileList = resolvePaths(dir, d.FileList)
			d.MaskFileList = resolvePaths(dir, d.MaskFileList)
		}
		sources = append(sources, config.Datasets)
		if len(config.Datasets) > maxLen {
			maxLen = len(config.Datasets)
		}
	}

	var out []*DatasetConfig
	for i := 0; i < maxLen; i++ {
		for _, src := range sources {
			if i < len(src) {
				out = append(out, src[i])
			}
		}
	}
	return out, nil
}

func resolvePaths(dir string, files []string) []string {
	if files == nil {
		return nil
	}
	out := make([]string, len(files))
	for i, f := range files {
		if filepath.IsAbs(f) || strings.HasPrefix(f, "/vsi") || strings.Contains(f, "://") {
			out[i] = f
		} else {
			out[i] = filepath.Join(dir, f)
		}
	}
	return out
}
