package utils

import (
	"bytes"
	"image/png"
	"testing"
)

func TestLoadServiceConfig(t *testing.T) {
	defaults := &ServiceConfig{Port: 8080, ConfDir: "."}
	conf, err := LoadServiceConfig("", defaults)
	if err != nil {
		t.Fatal(err)
	}
	if conf.Port != 8080 || conf == defaults {
		t.Errorf("expected a copy of defaults, got %+v", conf)
	}

	dir := tempDir(t)
	path := writeFile(t, dir, "service.json", `{"port": 9090, "memcache": "localhost:11211", "rpc_backends": "a:6000, b:6000,"}`)
	conf, err = LoadServiceConfig(path, defaults)
	if err != nil {
		t.Fatal(err)
	}
	if conf.Port != 9090 || conf.MemcacheURI != "localhost:11211" || conf.ConfDir != "." {
		t.Errorf("unexpected config %+v", conf)
	}
	backends := conf.Backends()
	if len(backends) != 2 || backends[1] != "b:6000" {
		t.Errorf("unexpected backends %v", backends)
	}

	path = writeFile(t, dir, "bad.json", `{"port": 0}`)
	if _, err := LoadServiceConfig(path, &ServiceConfig{}); err == nil {
		t.Errorf("expected error for invalid port")
	}
}

func TestGetEmptyTile(t *testing.T) {
	b, err := GetEmptyTile("", 256, 256)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 256 || img.Bounds().Dy() != 256 {
		t.Errorf("unexpected size %v", img.Bounds())
	}
	if _, _, _, a := img.At(10, 10).RGBA(); a != 0 {
		t.Errorf("expected transparent pixel, alpha %d", a)
	}

	if _, err := GetEmptyTile("/nonexistent/tile.png", 256, 256); err == nil {
		t.Errorf("expected error for missing image")
	}
}
