package processor

import (
	"fmt"
	"log"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/nci/gstack/raster"
	"github.com/nci/gstack/utils"
)

// DefaultRegistryConcurrency bounds the number of datasets opened at once.
const DefaultRegistryConcurrency = 4

type RegistryOptions struct {
	OpenWorkers int
	ReadWorkers int
	KeepOpen    bool
	Concurrency int
	Verbose     bool
}

// Dataset is an opened registry entry. Tile readers are created per file
// and open their rasters on first use.
type Dataset struct {
	Config        *utils.DatasetConfig
	Stack         *raster.Stack
	XValues       []interface{}
	ReferenceDate *time.Time
	Algorithm     Algorithm

	readers []*MaskedTileReader
}

// DatasetInfo is the public description of a dataset.
type DatasetInfo struct {
	Name           string        `json:"name"`
	FileList       []string      `json:"file_list"`
	MaskFileList   []string      `json:"mask_file_list,omitempty"`
	MaskMinValue   float64       `json:"mask_min_value"`
	NoData         *float64      `json:"nodata"`
	UsesSpatialRef bool          `json:"uses_spatial_ref"`
	Algorithm      string        `json:"algorithm,omitempty"`
	Bounds         []float64     `json:"bounds"`
	LatLonBounds   []float64     `json:"latlon_bounds"`
	XValues        []interface{} `json:"x_values"`
	ReferenceDate  *string       `json:"reference_date"`
	VMin           *float64      `json:"vmin,omitempty"`
	VMax           *float64      `json:"vmax,omitempty"`
	Colormap       string        `json:"cmap,omitempty"`
}

func datasetOpener(cfg *utils.DatasetConfig) SourceOpener {
	primary := make(map[string]bool)
	for _, f := range cfg.FileList {
		primary[f] = true
	}
	return func(id string) (TileSource, error) {
		opts := []raster.Option{raster.KeepOpen(true), raster.DateFormat(cfg.DateLayout())}
		if primary[id] {
			if cfg.Band > 0 {
				opts = append(opts, raster.Band(cfg.Band))
			}
			if cfg.NoData != nil {
				opts = append(opts, raster.NoData(*cfg.NoData))
			}
		}
		r, err := raster.Open(id, opts...)
		if err != nil {
			return nil, err
		}
		return &RasterSource{Reader: r}, nil
	}
}

// OpenDataset opens the stack of cfg and prepares its tile readers.
func OpenDataset(cfg *utils.DatasetConfig, policy utils.LabelPolicy, opts RegistryOptions) (*Dataset, error) {
	algorithm, err := ParseAlgorithm(cfg.Algorithm, url.Values{})
	if err != nil {
		return nil, &raster.ConfigurationError{Msg: fmt.Sprintf("dataset %q: %v", cfg.Name, err)}
	}

	layout := cfg.DateLayout()
	stack, err := raster.OpenMany(cfg.FileList, raster.StackConfig{
		Band:        cfg.Band,
		KeepOpen:    opts.KeepOpen,
		OpenWorkers: opts.OpenWorkers,
		ReadWorkers: opts.ReadWorkers,
		DateFormat:  &layout,
		NoData:      cfg.NoData,
	})
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", cfg.Name, err)
	}

	dates := stack.Dates()
	d := &Dataset{
		Config:        cfg,
		Stack:         stack,
		XValues:       utils.XValues(dates, policy),
		ReferenceDate: utils.ReferenceDate(dates),
		Algorithm:     algorithm,
	}

	opener := datasetOpener(cfg)
	for i, f := range cfg.FileList {
		d.readers = append(d.readers, NewMaskedTileReader(f, cfg.MaskFor(i), cfg.MaskThreshold(),
			WithOpener(opener), WithMaskOptional(cfg.MaskOptional), WithVerbose(opts.Verbose)))
	}
	return d, nil
}

func (d *Dataset) Name() string { return d.Config.Name }

// Len is the number of files of the dataset.
func (d *Dataset) Len() int { return d.Stack.Len() }

// TileReader returns the masked reader of file index band.
func (d *Dataset) TileReader(band int) (*MaskedTileReader, error) {
	if band < 0 || band >= len(d.readers) {
		return nil, &raster.RangeError{Axis: "band", Index: band, Size: len(d.readers)}
	}
	return d.readers[band], nil
}

// Point reads the time series at lon, lat. Nodata samples are NaN.
func (d *Dataset) Point(lon, lat float64) ([]float64, error) {
	return d.Stack.ReadLonLat(lon, lat)
}

// Chart builds the chart payload at lon, lat, relative to the reference
// location when ref is not nil.
func (d *Dataset) Chart(lon, lat float64, ref *[2]float64) (*ChartData, error) {
	values, err := d.Point(lon, lat)
	if err != nil {
		return nil, err
	}
	if ref != nil {
		refValues, err := d.Point(ref[0], ref[1])
		if err != nil {
			return nil, fmt.Errorf("reading reference point: %w", err)
		}
		if values, err = SubtractReference(values, refValues); err != nil {
			return nil, err
		}
	}
	return BuildChart(d.XValues, d.Stack.Dates(), values)
}

func (d *Dataset) Info() *DatasetInfo {
	cfg := d.Config
	info := &DatasetInfo{
		Name:           cfg.Name,
		FileList:       cfg.FileList,
		MaskFileList:   cfg.MaskFileList,
		MaskMinValue:   cfg.MaskThreshold(),
		NoData:         cfg.NoData,
		UsesSpatialRef: cfg.UsesSpatialRef,
		Algorithm:      cfg.Algorithm,
		Bounds:         d.Stack.Bounds().Slice(),
		LatLonBounds:   d.Stack.LatLonBounds().Slice(),
		XValues:        d.XValues,
		VMin:           cfg.VMin,
		VMax:           cfg.VMax,
		Colormap:       cfg.Colormap,
	}
	if info.NoData == nil && d.Stack.HasNoData {
		nodata := d.Stack.NoData
		info.NoData = &nodata
	}
	if d.ReferenceDate != nil {
		ref := d.ReferenceDate.Format(utils.ISODateFormat)
		info.ReferenceDate = &ref
	}
	return info
}

func (d *Dataset) Close() {
	for _, r := range d.readers {
		r.Close()
	}
	d.Stack.Close()
}

// Registry holds the opened datasets of a registry config by name.
type Registry struct {
	mu       sync.RWMutex
	datasets map[string]*Dataset
	order    []string
	skipped  []SkippedDataset

	refMu   sync.Mutex
	refs    int
	retired bool
}

// SkippedDataset is a registry entry that failed to open.
type SkippedDataset struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// NewRegistry opens every dataset of config. Datasets that fail to open
// are logged and left out; invalid configs fail the whole registry.
func NewRegistry(config *utils.Config, opts RegistryOptions) (*Registry, error) {
	if err := config.Validate(AlgorithmNames); err != nil {
		return nil, err
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultRegistryConcurrency
	}

	opened := make([]*Dataset, len(config.Datasets))
	failures := make([]error, len(config.Datasets))
	cLimiter := NewConcLimiter(opts.Concurrency)
	for i, cfg := range config.Datasets {
		cLimiter.Increase()
		go func(i int, cfg *utils.DatasetConfig, conc *ConcLimiter) {
			defer conc.Decrease()
			d, err := OpenDataset(cfg, config.LabelPolicy, opts)
			if err != nil {
				log.Printf("skipping dataset %q: %v", cfg.Name, err)
				failures[i] = err
				return
			}
			opened[i] = d
		}(i, cfg, cLimiter)
	}
	cLimiter.Wait()

	r := &Registry{datasets: make(map[string]*Dataset)}
	for i, d := range opened {
		if d == nil {
			r.skipped = append(r.skipped, SkippedDataset{Name: config.Datasets[i].Name, Error: failures[i].Error()})
			continue
		}
		r.datasets[d.Name()] = d
		r.order = append(r.order, d.Name())
	}
	if opts.Verbose {
		log.Printf("registry opened %d of %d datasets", len(r.order), len(config.Datasets))
	}
	return r, nil
}

// DatasetNotFoundError is returned by Lookup for unknown names.
type DatasetNotFoundError struct {
	Name string
}

func (e *DatasetNotFoundError) Error() string {
	return fmt.Sprintf("dataset not found: %s", e.Name)
}

func (r *Registry) Lookup(name string) (*Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.datasets[name]
	if !ok {
		return nil, &DatasetNotFoundError{Name: name}
	}
	return d, nil
}

// Datasets returns the datasets in registry order.
func (r *Registry) Datasets() []*Dataset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Dataset, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.datasets[name])
	}
	return out
}

// Names returns the sorted dataset names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Skipped lists the entries that failed to open, in registry order.
func (r *Registry) Skipped() []SkippedDataset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]SkippedDataset(nil), r.skipped...)
}

func (r *Registry) acquire() {
	r.refMu.Lock()
	r.refs++
	r.refMu.Unlock()
}

func (r *Registry) release() {
	r.refMu.Lock()
	r.refs--
	closeNow := r.retired && r.refs == 0
	r.refMu.Unlock()
	if closeNow {
		r.Close()
	}
}

// retire closes the registry once no request holds it.
func (r *Registry) retire() {
	r.refMu.Lock()
	r.retired = true
	closeNow := r.refs == 0
	r.refMu.Unlock()
	if closeNow {
		r.Close()
	}
}

func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.datasets {
		d.Close()
	}
	r.datasets = make(map[string]*Dataset)
	r.order = nil
}

// RegistryHolder swaps registries on reload. The previous registry is
// closed once the requests that acquired it have released it.
type RegistryHolder struct {
	mu      sync.RWMutex
	current *Registry
}

func NewRegistryHolder(r *Registry) *RegistryHolder {
	return &RegistryHolder{current: r}
}

// Get returns the current registry without holding it. Callers that read
// from its datasets use Acquire.
func (h *RegistryHolder) Get() *Registry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Acquire returns the current registry, which stays open until release is
// called. The registry is nil when none is loaded.
func (h *RegistryHolder) Acquire() (*Registry, func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r := h.current
	if r == nil {
		return nil, func() {}
	}
	r.acquire()
	var once sync.Once
	return r, func() { once.Do(r.release) }
}

func (h *RegistryHolder) Swap(r *Registry) {
	h.mu.Lock()
	old := h.current
	h.current = r
	h.mu.Unlock()
	if old != nil && old != r {
		old.retire()
	}
}
