package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	extr "github.com/nci/gstack/crawl/extractor"
	"github.com/nci/gstack/utils"
)

func testDocument() *CrawlDocument {
	threshold := 0.3
	return &CrawlDocument{
		Datasets: []*utils.DatasetConfig{{
			Name:         "la",
			FileList:     []string{"/data/la/disp_20200101_20200113.tif", "/data/la/disp_20200101_20200125.tif"},
			MaskFileList: []string{"/data/la/temporal_coherence.tif"},
			MaskMinValue: &threshold,
		}},
		Files: []*extr.PosixInfo{{FilePath: "/data/la/disp_20200101_20200113.tif", Size: 10, MTime: time.Unix(0, 0).UTC(), ID: "x"}},
	}
}

func TestCrawlDocumentIsRegistry(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"registry.json", "registry.yaml"} {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		format := "json"
		if filepath.Ext(name) == ".yaml" {
			format = "yaml"
		}
		if err := writeDocument(f, testDocument(), format); err != nil {
			t.Fatal(err)
		}
		f.Close()

		config, err := utils.LoadConfigFile(path)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(config.Datasets) != 1 {
			t.Fatalf("%s: expected one dataset, got %d", name, len(config.Datasets))
		}
		d := config.Datasets[0]
		if d.Name != "la" || len(d.FileList) != 2 || d.MaskThreshold() != 0.3 {
			t.Errorf("%s: unexpected dataset %+v", name, d)
		}
	}

	if err := writeDocument(os.Stdout, testDocument(), "xml"); err == nil {
		t.Errorf("expected error for unknown format")
	}
}

func TestOptionalFloat(t *testing.T) {
	if v, err := optionalFloat("nodata", ""); err != nil || v != nil {
		t.Errorf("expected nil for empty value, got %v %v", v, err)
	}
	if v, err := optionalFloat("nodata", "-9999"); err != nil || v == nil || *v != -9999 {
		t.Errorf("unexpected value %v %v", v, err)
	}
	if _, err := optionalFloat("nodata", "abc"); err == nil {
		t.Errorf("expected parse error")
	}
}
