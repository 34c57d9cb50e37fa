package main

/* gstack is a web server exposing stacks of co-registered rasters,
   one file per acquisition, as per pixel time series and as masked,
   post-processed web map tiles. Datasets are declared in registry
   files under conf_dir and optionally in a Postgres table. Point
   reads can be fanned out to gRPC drill backends and are cached in
   memcache when one is configured. */

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"math"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	_ "net/http/pprof"

	reuseport "github.com/kavu/go_reuseport"
	"github.com/nci/gstack/metrics"
	proc "github.com/nci/gstack/processor"
	"github.com/nci/gstack/raster"
	"github.com/nci/gstack/utils"
	"go.elastic.co/apm/module/apmhttp"
)

const (
	tileSize        = 256
	maxBodySize     = 1 << 20
	indexTemplate   = "templates/index.tpl"
	colorbarWidth   = 256
	colorbarHeight  = 20
	pgRegistryConns = 4
)

var (
	port        = flag.Int("p", 8080, "Server listening port.")
	confDir     = flag.String("conf_dir", utils.EtcDir, "Directory of the dataset registry files.")
	dataDir     = flag.String("data_dir", "", "Extra ':' separated directories searched for templates.")
	logDir      = flag.String("log_dir", "", "Metrics log directory, '-' for stdout.")
	memcacheURI = flag.String("memcache", "", "Memcache address used to cache point reads.")
	serviceConf = flag.String("service_conf", "", "JSON service config file.")
	reloadCron  = flag.String("reload_cron", "", "Cron schedule for registry reloads, e.g. '@every 10m'.")
	pgDSN       = flag.String("pg_dsn", "", "Postgres DSN of the gstack_datasets registry table.")
	rpcBackends = flag.String("rpc_backends", "", "Comma separated gRPC drill backends.")
	checkConf   = flag.Bool("check_conf", false, "Validate the dataset registry and exit.")
	verbose     = flag.Bool("v", false, "Verbose mode for more server outputs.")
)

var (
	Error *log.Logger
	Info  *log.Logger
)

func init() {
	Error = log.New(os.Stderr, "gstack: ", log.Ldate|log.Ltime|log.Lshortfile)
	Info = log.New(os.Stdout, "gstack: ", log.Ldate|log.Ltime|log.Lshortfile)
}

type gstackServer struct {
	Registry *proc.RegistryHolder
	Cache    *utils.PointCache
	Config   *utils.ServiceConfig
	Resolver *utils.RuntimeFileResolver
	Metrics  metrics.Logger
	Verbose  bool
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, mc *metrics.MetricsCollector)

type registryKey struct{}

func remoteAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); len(fwd) > 0 {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return r.RemoteAddr
}

// withMetrics records one metrics entry per request.
func (s *gstackServer) withMetrics(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t0 := time.Now()
		mc := metrics.NewMetricsCollector(s.Metrics)
		defer mc.Log(t0)

		if reqURL, err := url.QueryUnescape(r.URL.String()); err == nil {
			mc.Info.URL.RawURL = reqURL
		} else {
			mc.Info.URL.RawURL = r.URL.String()
		}
		mc.Info.RemoteAddr = remoteAddr(r)
		mc.Info.HTTPStatus = 200

		// a reload waits for this request before closing the registry
		reg, release := s.Registry.Acquire()
		defer release()
		r = r.WithContext(context.WithValue(r.Context(), registryKey{}, reg))

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("X-Request-Id", mc.Info.RequestID)
		h(w, r, mc)
	}
}

func errorStatus(err error) int {
	var notFound *proc.DatasetNotFoundError
	var rangeErr *raster.RangeError
	switch {
	case errors.As(err, &notFound):
		return 404
	case errors.As(err, &rangeErr):
		return 400
	default:
		return 500
	}
}

func httpError(w http.ResponseWriter, mc *metrics.MetricsCollector, status int, msg string) {
	mc.Info.HTTPStatus = status
	mc.Info.Error = msg
	http.Error(w, msg, status)
}

func (s *gstackServer) fail(w http.ResponseWriter, mc *metrics.MetricsCollector, err error) {
	status := errorStatus(err)
	if status >= 500 {
		Error.Printf("%s: %v", mc.Info.RequestID, err)
	}
	httpError(w, mc, status, err.Error())
}

func writeJSON(w http.ResponseWriter, mc *metrics.MetricsCollector, v interface{}) {
	out, err := json.Marshal(v)
	if err != nil {
		httpError(w, mc, 500, fmt.Sprintf("Error encoding response: %v", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(out)
}

// registry returns the registry acquired for the request.
func (s *gstackServer) registry(r *http.Request) *proc.Registry {
	reg, _ := r.Context().Value(registryKey{}).(*proc.Registry)
	return reg
}

func (s *gstackServer) lookup(r *http.Request, name string) (*proc.Dataset, error) {
	reg := s.registry(r)
	if reg == nil {
		return nil, &proc.DatasetNotFoundError{Name: name}
	}
	return reg.Lookup(name)
}

func (s *gstackServer) backends() []string {
	if s.Config == nil {
		return nil
	}
	return s.Config.Backends()
}

func seriesKey(dataset string, lon, lat float64) string {
	q := url.Values{}
	q.Set("dataset_name", dataset)
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	return "/point?" + q.Encode()
}

// readSeries returns the time series of ds at lon, lat from the cache,
// the drill backends or the local stack, in that order.
func (s *gstackServer) readSeries(ctx context.Context, ds *proc.Dataset, lon, lat float64, info *metrics.PointInfo) ([]float64, error) {
	key := seriesKey(ds.Name(), lon, lat)
	if values, ok := s.Cache.Get(key); ok {
		info.Cached = true
		return values, nil
	}

	var values []float64
	if backends := s.backends(); len(backends) > 0 {
		info.Remote = true
		reqs := []*proc.DrillRequest{{Dataset: ds.Name(), Lon: lon, Lat: lat}}
		out, err := proc.RemotePoints(ctx, backends, reqs, s.Verbose)
		if err != nil {
			return nil, err
		}
		values = out[0]
	} else {
		var err error
		if values, err = ds.Point(lon, lat); err != nil {
			return nil, err
		}
	}

	s.Cache.Set(key, values)
	return values, nil
}

func countNaN(values []float64) int {
	n := 0
	for _, v := range values {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

func (s *gstackServer) indexHandler(w http.ResponseWriter, r *http.Request, mc *metrics.MetricsCollector) {
	if r.URL.Path != "/" {
		httpError(w, mc, 404, fmt.Sprintf("Not found: %s", r.URL.Path))
		return
	}

	tpl, err := s.Resolver.Lookup(indexTemplate)
	if err != nil {
		httpError(w, mc, 500, fmt.Sprintf("Index template not found: %v", err))
		return
	}

	data := struct {
		Datasets   []*proc.DatasetInfo
		Skipped    []proc.SkippedDataset
		Colormaps  []string
		Algorithms []string
	}{
		Colormaps:  proc.PaletteNames(),
		Algorithms: proc.AlgorithmNames,
	}
	if reg := s.registry(r); reg != nil {
		for _, d := range reg.Datasets() {
			data.Datasets = append(data.Datasets, d.Info())
		}
		data.Skipped = reg.Skipped()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := utils.RenderTemplate(w, tpl, data); err != nil {
		httpError(w, mc, 500, err.Error())
	}
}

// datasetsHandler lists the opened datasets. Entries that failed to open
// are named in X-Skipped-Datasets, and ?skipped=true lists them with
// their errors instead.
func (s *gstackServer) datasetsHandler(w http.ResponseWriter, r *http.Request, mc *metrics.MetricsCollector) {
	infos := []*proc.DatasetInfo{}
	skipped := []proc.SkippedDataset{}
	if reg := s.registry(r); reg != nil {
		for _, d := range reg.Datasets() {
			infos = append(infos, d.Info())
		}
		skipped = append(skipped, reg.Skipped()...)
	}

	if len(skipped) > 0 {
		var names []string
		for _, sk := range skipped {
			names = append(names, url.QueryEscape(sk.Name))
			mc.Info.Skipped = append(mc.Info.Skipped, sk.Name)
		}
		w.Header().Set("X-Skipped-Datasets", strings.Join(names, ","))
	}

	if v := r.URL.Query().Get("skipped"); len(v) > 0 {
		on, err := strconv.ParseBool(v)
		if err != nil {
			httpError(w, mc, 400, fmt.Sprintf("Invalid skipped flag: %v", v))
			return
		}
		if on {
			writeJSON(w, mc, skipped)
			return
		}
	}
	writeJSON(w, mc, infos)
}

func (s *gstackServer) pointHandler(w http.ResponseWriter, r *http.Request, mc *metrics.MetricsCollector) {
	query, err := utils.ParseQuery(r.URL.RawQuery)
	if err != nil {
		httpError(w, mc, 400, fmt.Sprintf("Failed to parse query: %v", err))
		return
	}
	params, err := utils.ParsePointParams(query)
	if err != nil {
		httpError(w, mc, 400, fmt.Sprintf("Malformed point request: %v", err))
		return
	}
	mc.Info.Dataset = params.Dataset

	ds, err := s.lookup(r, params.Dataset)
	if err != nil {
		s.fail(w, mc, err)
		return
	}

	t0 := time.Now()
	mc.Info.Point = &metrics.PointInfo{Lon: params.Lon, Lat: params.Lat}
	values, err := s.readSeries(r.Context(), ds, params.Lon, params.Lat, mc.Info.Point)
	mc.Info.Point.Duration = time.Since(t0)
	if err != nil {
		s.fail(w, mc, err)
		return
	}
	mc.Info.Point.NumValues = len(values)
	mc.Info.Point.NumNaN = countNaN(values)

	writeJSON(w, mc, map[string]interface{}{
		"dataset_name": ds.Name(),
		"lon":          params.Lon,
		"lat":          params.Lat,
		"x_values":     ds.XValues,
		"values":       utils.NullFloats(values),
	})
}

// chartQuery merges the location of a GeoJSON body into the query of a
// POST request.
func chartQuery(r *http.Request) (url.Values, error) {
	query, err := utils.ParseQuery(r.URL.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("Failed to parse query: %v", err)
	}
	if r.Method != "POST" {
		return query, nil
	}

	body, err := ioutil.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("Error reading POST body: %v", err)
	}
	lon, lat, err := utils.ParseFeaturePoint(body)
	if err != nil {
		return nil, err
	}
	query.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	return query, nil
}

func (s *gstackServer) chartHandler(w http.ResponseWriter, r *http.Request, mc *metrics.MetricsCollector) {
	if r.Method != "GET" && r.Method != "POST" {
		httpError(w, mc, 405, fmt.Sprintf("Method not allowed: %s", r.Method))
		return
	}
	query, err := chartQuery(r)
	if err != nil {
		httpError(w, mc, 400, err.Error())
		return
	}
	params, err := utils.ParsePointParams(query)
	if err != nil {
		httpError(w, mc, 400, fmt.Sprintf("Malformed chart request: %v", err))
		return
	}
	mc.Info.Dataset = params.Dataset

	ds, err := s.lookup(r, params.Dataset)
	if err != nil {
		s.fail(w, mc, err)
		return
	}

	t0 := time.Now()
	mc.Info.Point = &metrics.PointInfo{Lon: params.Lon, Lat: params.Lat}
	defer func() { mc.Info.Point.Duration = time.Since(t0) }()

	values, err := s.readSeries(r.Context(), ds, params.Lon, params.Lat, mc.Info.Point)
	if err != nil {
		s.fail(w, mc, err)
		return
	}
	if params.HasReference() {
		ref, err := s.readSeries(r.Context(), ds, *params.RefLon, *params.RefLat, &metrics.PointInfo{})
		if err != nil {
			s.fail(w, mc, fmt.Errorf("reading reference point: %w", err))
			return
		}
		if values, err = proc.SubtractReference(values, ref); err != nil {
			s.fail(w, mc, err)
			return
		}
	}
	mc.Info.Point.NumValues = len(values)
	mc.Info.Point.NumNaN = countNaN(values)

	chart, err := proc.BuildChart(ds.XValues, ds.Stack.Dates(), values)
	if err != nil {
		s.fail(w, mc, err)
		return
	}
	writeJSON(w, mc, chart)
}

// parseTilePath splits /tiles/{dataset}/{z}/{x}/{y}.png. Dataset names
// may contain '/'.
func parseTilePath(p string) (dataset string, z, x, y int, err error) {
	rest := strings.TrimPrefix(p, "/tiles/")
	if !strings.HasSuffix(rest, ".png") {
		return "", 0, 0, 0, fmt.Errorf("tile path must end in .png: %s", p)
	}
	parts := strings.Split(strings.TrimSuffix(rest, ".png"), "/")
	if len(parts) < 4 {
		return "", 0, 0, 0, fmt.Errorf("expected /tiles/{dataset}/{z}/{x}/{y}.png, got %s", p)
	}
	n := len(parts)
	dataset = strings.Join(parts[:n-3], "/")
	if len(dataset) == 0 {
		return "", 0, 0, 0, fmt.Errorf("missing dataset in tile path %s", p)
	}

	coords := make([]int, 3)
	for i, part := range parts[n-3:] {
		if coords[i], err = strconv.Atoi(part); err != nil {
			return "", 0, 0, 0, fmt.Errorf("invalid tile coordinate %q", part)
		}
	}
	return dataset, coords[0], coords[1], coords[2], nil
}

func overlaps(a, b raster.Bounds) bool {
	return a.Left < b.Right && b.Left < a.Right && a.Bottom < b.Top && b.Bottom < a.Top
}

func (s *gstackServer) emptyTileFile() string {
	if s.Config == nil {
		return ""
	}
	return s.Config.EmptyTileFile
}

func writePNG(w http.ResponseWriter, out []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.Write(out)
}

func (s *gstackServer) tileHandler(w http.ResponseWriter, r *http.Request, mc *metrics.MetricsCollector) {
	name, z, x, y, err := parseTilePath(r.URL.Path)
	if err != nil {
		httpError(w, mc, 400, err.Error())
		return
	}
	if err := proc.CheckTile(x, y, z); err != nil {
		httpError(w, mc, 400, err.Error())
		return
	}
	query, err := utils.ParseQuery(r.URL.RawQuery)
	if err != nil {
		httpError(w, mc, 400, fmt.Sprintf("Failed to parse query: %v", err))
		return
	}
	params, err := utils.ParseTileParams(query)
	if err != nil {
		httpError(w, mc, 400, fmt.Sprintf("Malformed tile request: %v", err))
		return
	}
	mc.Info.Dataset = name

	ds, err := s.lookup(r, name)
	if err != nil {
		s.fail(w, mc, err)
		return
	}
	reader, err := ds.TileReader(params.Band)
	if err != nil {
		s.fail(w, mc, err)
		return
	}

	algName := params.Algorithm
	if len(algName) == 0 {
		algName = ds.Config.Algorithm
	}
	// complex samples cannot be scaled directly
	if len(algName) == 0 && raster.IsComplexType(ds.Stack.DType()) {
		algName = "amplitude"
	}
	algorithm, err := proc.ParseAlgorithm(algName, query)
	if err != nil {
		httpError(w, mc, 400, err.Error())
		return
	}

	cmap := params.Colormap
	if len(cmap) == 0 {
		cmap = ds.Config.Colormap
	}
	palette, err := proc.LookupPalette(cmap)
	if err != nil {
		httpError(w, mc, 400, err.Error())
		return
	}

	scale := proc.ScaleParams{VMin: ds.Config.VMin, VMax: ds.Config.VMax}
	if params.VMin != nil {
		scale.VMin = params.VMin
	}
	if params.VMax != nil {
		scale.VMax = params.VMax
	}

	t0 := time.Now()
	mc.Info.Tile = &metrics.TileInfo{Z: z, X: x, Y: y, Band: params.Band, Algorithm: algName}
	defer func() { mc.Info.Tile.Duration = time.Since(t0) }()

	if !overlaps(proc.TileLatLonBounds(x, y, z), ds.Stack.LatLonBounds()) {
		out, err := utils.GetEmptyTile(s.emptyTileFile(), tileSize, tileSize)
		if err != nil {
			s.fail(w, mc, err)
			return
		}
		mc.Info.Tile.Empty = true
		mc.Info.Tile.BytesServed = len(out)
		writePNG(w, out)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errChan := make(chan error, 10)
	tp := proc.InitTilePipeline(ctx, s.Verbose, errChan)
	job := &proc.TileJob{
		Request:   &proc.TileRequest{X: x, Y: y, Z: z, TileSize: tileSize},
		Reader:    reader,
		Algorithm: algorithm,
		Scale:     scale,
		Palette:   palette,
	}

	select {
	case out, ok := <-tp.Process(job):
		if !ok {
			s.fail(w, mc, <-errChan)
			return
		}
		mc.Info.Tile.Empty = job.Bytes != nil && job.Bytes.Empty
		mc.Info.Tile.BytesServed = len(out)
		writePNG(w, out)
	case err := <-errChan:
		s.fail(w, mc, err)
	case <-ctx.Done():
		httpError(w, mc, 503, fmt.Sprintf("Tile request cancelled: %v", ctx.Err()))
	}
}

func (s *gstackServer) colorbarHandler(w http.ResponseWriter, r *http.Request, mc *metrics.MetricsCollector) {
	name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/colorbar/"), ".png")
	palette, err := proc.LookupPalette(name)
	if err != nil {
		httpError(w, mc, 404, err.Error())
		return
	}

	width, height := colorbarWidth, colorbarHeight
	for key, dst := range map[string]*int{"width": &width, "height": &height} {
		if v := r.URL.Query().Get(key); len(v) > 0 {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 4096 {
				httpError(w, mc, 400, fmt.Sprintf("invalid %s: %s", key, v))
				return
			}
			*dst = n
		}
	}

	out, err := proc.EncodeColorbar(palette, width, height)
	if err != nil {
		s.fail(w, mc, err)
		return
	}
	writePNG(w, out)
}

func (s *gstackServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.withMetrics(s.indexHandler))
	mux.HandleFunc("/datasets", s.withMetrics(s.datasetsHandler))
	mux.HandleFunc("/point", s.withMetrics(s.pointHandler))
	mux.HandleFunc("/chart_point", s.withMetrics(s.chartHandler))
	mux.HandleFunc("/tiles/", s.withMetrics(s.tileHandler))
	mux.HandleFunc("/colorbar/", s.withMetrics(s.colorbarHandler))
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	return mux
}

// checkBackends verifies that every drill backend serves each dataset of
// registry with the same shape.
func checkBackends(registry *proc.Registry, backends []string) error {
	for _, backend := range backends {
		for _, d := range registry.Datasets() {
			src, err := proc.OpenGRPCSource([]string{backend}, d.Name())
			if err != nil {
				return fmt.Errorf("backend %s: %v", backend, err)
			}
			bands, rows, cols := d.Stack.Shape()
			b, r, c := src.Shape()
			src.Close()
			if b != bands || r != rows || c != cols {
				return fmt.Errorf("backend %s: %s has shape %dx%dx%d, expected %dx%dx%d", backend, d.Name(), b, r, c, bands, rows, cols)
			}
		}
	}
	return nil
}

func newMetricsLogger(dir string) metrics.Logger {
	if len(dir) == 0 {
		return nil
	}
	if dir == "-" {
		return metrics.NewStdoutLogger()
	}

	maxLogFileSize := int64(0)
	if val, ok := os.LookupEnv("GSTACK_MAX_LOG_FILE_SIZE"); ok {
		valInt, e := strconv.ParseInt(val, 10, 64)
		if e == nil {
			maxLogFileSize = valInt
		} else {
			Error.Printf("invalid GSTACK_MAX_LOG_FILE_SIZE: %v", e)
		}
	}

	maxLogFiles := -1
	if val, ok := os.LookupEnv("GSTACK_MAX_LOG_FILES"); ok {
		valInt, e := strconv.ParseInt(val, 10, 32)
		if e == nil {
			maxLogFiles = int(valInt)
		} else {
			Error.Printf("invalid GSTACK_MAX_LOG_FILES: %v", e)
		}
	}
	return metrics.NewFileLogger(dir, maxLogFileSize, maxLogFiles, *verbose)
}

// registryLoader reads the file registry and, when a DSN is set, merges
// the Postgres registry into it.
func registryLoader(conf *utils.ServiceConfig) func() (*utils.Config, error) {
	return func() (*utils.Config, error) {
		fileConfig, err := utils.LoadConfig(conf.ConfDir)
		if len(conf.PostgresDSN) == 0 {
			return fileConfig, err
		}
		if err != nil {
			Info.Printf("No file registry loaded: %v", err)
			fileConfig = nil
		}

		pg, err := utils.NewPGRegistry(conf.PostgresDSN, pgRegistryConns)
		if err != nil {
			return nil, err
		}
		defer pg.Close()
		pgConfig, err := pg.Load()
		if err != nil {
			return nil, err
		}
		return utils.CombineRegistries(fileConfig, pgConfig)
	}
}

func main() {
	flag.Parse()

	conf, err := utils.LoadServiceConfig(*serviceConf, &utils.ServiceConfig{
		Port:        *port,
		ConfDir:     *confDir,
		LogDir:      *logDir,
		MemcacheURI: *memcacheURI,
		PostgresDSN: *pgDSN,
		ReloadCron:  *reloadCron,
		RPCBackends: *rpcBackends,
		OpenWorkers: raster.DefaultOpenWorkers,
		ReadWorkers: raster.DefaultReadWorkers,
		KeepOpen:    true,
	})
	if err != nil {
		Error.Fatalf("%v", err)
	}

	utils.InitGdal()

	load := registryLoader(conf)
	config, err := load()
	if err != nil {
		Error.Fatalf("Error in loading dataset registry: %v", err)
	}

	opts := proc.RegistryOptions{
		OpenWorkers: conf.OpenWorkers,
		ReadWorkers: conf.ReadWorkers,
		KeepOpen:    conf.KeepOpen,
		Verbose:     *verbose,
	}
	registry, err := proc.NewRegistry(config, opts)
	if err != nil {
		Error.Fatalf("Error in opening dataset registry: %v", err)
	}
	if *checkConf {
		if err := checkBackends(registry, conf.Backends()); err != nil {
			Error.Fatalf("%v", err)
		}
		Info.Printf("Registry is valid: %d datasets", len(registry.Names()))
		os.Exit(0)
	}

	s := &gstackServer{
		Registry: proc.NewRegistryHolder(registry),
		Cache:    utils.NewPointCache(conf.MemcacheURI),
		Config:   conf,
		Resolver: utils.NewRuntimeFileResolver(*dataDir),
		Metrics:  newMetricsLogger(conf.LogDir),
		Verbose:  *verbose,
	}

	reload := func(config *utils.Config) {
		r, err := proc.NewRegistry(config, opts)
		if err != nil {
			Error.Printf("Error in reopening dataset registry: %v", err)
			return
		}
		s.Registry.Swap(r)
	}
	utils.WatchConfig(Info, Error, load, reload)
	if len(conf.ReloadCron) > 0 {
		c, err := utils.ScheduleReload(conf.ReloadCron, Info, Error, load, reload)
		if err != nil {
			Error.Fatalf("Invalid reload schedule %q: %v", conf.ReloadCron, err)
		}
		defer c.Stop()
	}

	ln, err := reuseport.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", conf.Port))
	if err != nil {
		Error.Fatalf("Failed to listen on port %d: %v", conf.Port, err)
	}

	Info.Printf("gstack is ready on %v with %d datasets", ln.Addr(), len(registry.Names()))
	log.Fatal(http.Serve(ln, apmhttp.Wrap(s.routes())))
}
