package utils

import (
	"fmt"
	"strings"

	"github.com/tkanos/gonfig"
)

// ServiceConfig holds the process settings of the HTTP server that are
// read from a JSON file. Every field can be overridden by the matching
// GSTACK_* environment variable.
type ServiceConfig struct {
	Port          int    `json:"port" env:"GSTACK_PORT"`
	ConfDir       string `json:"conf_dir" env:"GSTACK_CONF_DIR"`
	LogDir        string `json:"log_dir" env:"GSTACK_LOG_DIR"`
	MemcacheURI   string `json:"memcache" env:"GSTACK_MEMCACHE"`
	PostgresDSN   string `json:"pg_dsn" env:"GSTACK_PG_DSN"`
	ReloadCron    string `json:"reload_cron" env:"GSTACK_RELOAD_CRON"`
	RPCBackends   string `json:"rpc_backends" env:"GSTACK_RPC_BACKENDS"`
	EmptyTileFile string `json:"empty_tile" env:"GSTACK_EMPTY_TILE"`
	OpenWorkers   int    `json:"open_workers" env:"GSTACK_OPEN_WORKERS"`
	ReadWorkers   int    `json:"read_workers" env:"GSTACK_READ_WORKERS"`
	KeepOpen      bool   `json:"keep_open" env:"GSTACK_KEEP_OPEN"`
}

// LoadServiceConfig fills defaults from path. An empty path leaves
// defaults untouched so flags keep their values.
func LoadServiceConfig(path string, defaults *ServiceConfig) (*ServiceConfig, error) {
	conf := *defaults
	if len(strings.TrimSpace(path)) == 0 {
		return &conf, nil
	}
	if err := gonfig.GetConf(path, &conf); err != nil {
		return nil, fmt.Errorf("Error reading service config %s: %v", path, err)
	}
	if conf.Port <= 0 {
		return nil, fmt.Errorf("invalid port in service config %s: %d", path, conf.Port)
	}
	return &conf, nil
}

// Backends splits the comma separated list of gRPC drill backends.
func (c *ServiceConfig) Backends() []string {
	var out []string
	for _, b := range strings.Split(c.RPCBackends, ",") {
		if b = strings.TrimSpace(b); len(b) > 0 {
			out = append(out, b)
		}
	}
	return out
}
