package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/nci/gstack/utils"
)

type URLInfo struct {
	RawURL string            `json:"raw_url"`
	Host   string            `json:"host"`
	Path   string            `json:"path"`
	Query  map[string]string `json:"query"`
}

// TileInfo describes the tile served by a request.
type TileInfo struct {
	Duration    time.Duration `json:"duration"`
	Z           int           `json:"z"`
	X           int           `json:"x"`
	Y           int           `json:"y"`
	Band        int           `json:"band"`
	Algorithm   string        `json:"algorithm"`
	Empty       bool          `json:"empty"`
	BytesServed int           `json:"bytes_served"`
}

// PointInfo describes a point or chart request.
type PointInfo struct {
	Duration  time.Duration `json:"duration"`
	Lon       float64       `json:"lon"`
	Lat       float64       `json:"lat"`
	NumValues int           `json:"num_values"`
	NumNaN    int           `json:"num_nan"`
	Cached    bool          `json:"cached"`
	Remote    bool          `json:"remote"`
}

type MetricsInfo struct {
	RequestID   string        `json:"request_id"`
	ReqTime     string        `json:"req_time"`
	ReqDuration time.Duration `json:"req_duration"`
	URL         URLInfo       `json:"url"`
	RemoteAddr  string        `json:"remote_addr"`
	RemoteHost  string        `json:"remote_host"`
	RemotePort  string        `json:"remote_port"`
	HTTPStatus  int           `json:"http_status"`
	Dataset     string        `json:"dataset,omitempty"`
	Error       string        `json:"error,omitempty"`
	Skipped     []string      `json:"skipped_datasets,omitempty"`
	Tile        *TileInfo     `json:"tile,omitempty"`
	Point       *PointInfo    `json:"point,omitempty"`
}

type MetricsCollector struct {
	Info   *MetricsInfo
	logger Logger
}

func NewMetricsCollector(logger Logger) *MetricsCollector {
	return &MetricsCollector{
		Info: &MetricsInfo{
			RequestID: uuid.New().String(),
		},
		logger: logger,
	}
}

// Log writes the record with its duration measured from start.
func (m *MetricsCollector) Log(start time.Time) {
	m.Info.ReqTime = start.Format(time.RFC3339)
	m.Info.ReqDuration = time.Since(start)
	if m.logger != nil {
		m.logger.Log(m.Info)
	}
}

func (i *MetricsInfo) ToJSON() (string, error) {
	i.normaliseNetworkAddr(i.RemoteAddr)
	if err := i.normaliseURL(&i.URL); err != nil {
		log.Printf("metrics: normaliseUrl() error: %v", err)
	}

	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(i); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (i *MetricsInfo) normaliseNetworkAddr(addr string) {
	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		i.RemoteHost = host
		i.RemotePort = port
	} else {
		i.RemoteHost = addr
	}
}

func (i *MetricsInfo) normaliseURL(u *URLInfo) error {
	if len(u.RawURL) == 0 {
		return nil
	}
	r, err := url.Parse(u.RawURL)
	if err != nil {
		return err
	}
	if len(r.Host) > 0 {
		u.Host = r.Host
	}
	u.Path = r.Path

	query, err := utils.ParseQuery(r.RawQuery)
	if err != nil {
		return err
	}

	if u.Query == nil {
		u.Query = make(map[string]string)
	}
	for k, v := range query {
		if len(v) == 1 {
			u.Query[k] = v[0]
		} else if len(v) > 1 {
			u.Query[k] = fmt.Sprintf("%v", v)
		} else {
			u.Query[k] = ""
		}
	}
	return nil
}
