package utils

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

const registryQuery = `select name, config from gstack_datasets order by name`

// PGRegistry loads dataset entries from the gstack_datasets table, where
// config holds the JSON document of one DatasetConfig.
type PGRegistry struct {
	db *sql.DB
}

func NewPGRegistry(dsn string, poolSize int) (*PGRegistry, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening registry database: %v", err)
	}
	if poolSize > 0 {
		db.SetMaxIdleConns(poolSize)
		db.SetMaxOpenConns(poolSize)
	}
	return &PGRegistry{db: db}, nil
}

// Load reads every registered dataset. The row name wins over any name
// stored in the document.
func (r *PGRegistry) Load() (*Config, error) {
	rows, err := r.db.Query(registryQuery)
	if err != nil {
		return nil, fmt.Errorf("querying registry: %v", err)
	}
	defer rows.Close()

	config := &Config{}
	for rows.Next() {
		var name string
		var doc []byte
		if err := rows.Scan(&name, &doc); err != nil {
			return nil, fmt.Errorf("scanning registry row: %v", err)
		}
		ds, err := decodeRegistryRow(name, doc)
		if err != nil {
			return nil, err
		}
		config.Datasets = append(config.Datasets, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading registry rows: %v", err)
	}

	if err := config.Validate(nil); err != nil {
		return nil, err
	}
	return config, nil
}

func decodeRegistryRow(name string, doc []byte) (*DatasetConfig, error) {
	ds := &DatasetConfig{}
	if err := json.Unmarshal(doc, ds); err != nil {
		return nil, fmt.Errorf("dataset %q: invalid config document: %v", name, err)
	}
	ds.Name = name
	return ds, nil
}

func (r *PGRegistry) Close() error {
	return r.db.Close()
}

// CombineRegistries appends the datasets of every source in order.
// Duplicated names are rejected by Validate.
func CombineRegistries(configs ...*Config) (*Config, error) {
	out := &Config{}
	for _, c := range configs {
		if c == nil {
			continue
		}
		out.Datasets = append(out.Datasets, c.Datasets...)
		if c.LabelPolicy != (LabelPolicy{}) {
			out.LabelPolicy = c.LabelPolicy
		}
	}
	if err := out.Validate(nil); err != nil {
		return nil, err
	}
	return out, nil
}
