package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	extr "github.com/nci/gstack/crawl/extractor"
	"github.com/nci/gstack/utils"
	yaml "gopkg.in/yaml.v2"
)

// CrawlDocument is a dataset registry with the crawl metadata attached.
// Registry loaders ignore the extra keys.
type CrawlDocument struct {
	Datasets []*utils.DatasetConfig `json:"datasets" yaml:"datasets"`
	Files    []*extr.PosixInfo      `json:"crawl" yaml:"crawl"`
	Rasters  []*extr.RasterInfo     `json:"rasters,omitempty" yaml:"rasters,omitempty"`
}

func ensure(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func optionalFloat(name, v string) (*float64, error) {
	if len(strings.TrimSpace(v)) == 0 {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid -%s: %v", name, err)
	}
	return &f, nil
}

// verifyDatasets opens every data file and drops datasets whose members
// do not share the grid of their first file.
func verifyDatasets(doc *CrawlDocument) {
	var kept []*utils.DatasetConfig
	for _, d := range doc.Datasets {
		var first *extr.RasterInfo
		ok := true
		for _, f := range d.FileList {
			info, err := extr.ExtractRasterInfo(f, d.DateLayout())
			if err != nil {
				log.Printf("dataset %s: %v", d.Name, err)
				ok = false
				break
			}
			if first == nil {
				first = info
			} else if !extr.SameGrid(first, info) {
				log.Printf("dataset %s: %s is not on the grid of %s", d.Name, f, first.FilePath)
				ok = false
				break
			}
			doc.Rasters = append(doc.Rasters, info)
		}
		if ok {
			kept = append(kept, d)
		}
	}
	doc.Datasets = kept
}

func writeDocument(w io.Writer, doc *CrawlDocument, format string) error {
	var out []byte
	var err error
	switch format {
	case "json":
		out, err = json.MarshalIndent(doc, "", "  ")
		out = append(out, '\n')
	case "yaml", "yml":
		out, err = yaml.Marshal(doc)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func main() {
	root := flag.String("root", "", "Root directory or s3://bucket/prefix to crawl. '-' reads it from stdin.")
	conc := flag.Int("conc", 16, "Number of directories read concurrently.")
	pattern := flag.String("pattern", "", "govaluate filter over 'path' and 'type', e.g. \"type=='d' || path=~'\\.tif$'\".")
	group := flag.String("group", extr.DefaultGroupPattern, "Regex with a (?P<dataset>...) group naming the dataset of each file.")
	mask := flag.String("mask", "", "Regex selecting mask files by base name.")
	maskMin := flag.String("mask_min_value", "", "Mask threshold written to each dataset.")
	nodata := flag.String("nodata", "", "Nodata override written to each dataset.")
	algorithm := flag.String("algorithm", "", "Default algorithm written to each dataset.")
	dateFmt := flag.String("date_fmt", "", "Date format of the file names.")
	followSymlink := flag.Bool("follow_symlink", false, "Follow symbolic links.")
	format := flag.String("format", "json", "Output format: json or yaml.")
	output := flag.String("o", "-", "Output file, '-' for stdout. The format follows a .yaml extension.")
	verify := flag.Bool("verify", false, "Open every file with GDAL and drop datasets with mismatched grids.")
	s3Endpoint := flag.String("s3_endpoint", "", "S3 endpoint for s3:// roots.")
	s3SSL := flag.Bool("s3_ssl", true, "Use TLS for the S3 endpoint.")
	flag.Parse()

	path := *root
	if len(path) == 0 && flag.NArg() == 1 {
		path = flag.Arg(0)
	}
	if len(path) == 0 {
		log.Fatal("Please provide a directory, an s3:// URL or '-' for reading from stdin")
	}
	if path == "-" {
		var line string
		_, err := fmt.Fscanln(os.Stdin, &line)
		ensure(err)
		path = line
	}

	var files []*extr.PosixInfo
	var err error
	if extr.IsS3URL(path) {
		files, err = extr.ExtractS3(path, *pattern, extr.S3Options{Endpoint: *s3Endpoint, UseSSL: *s3SSL})
		ensure(err)
	} else {
		files, err = extr.ExtractPosix(path, *conc, *pattern, *followSymlink)
		if err != nil {
			os.Stderr.Write([]byte(err.Error() + "\n"))
		}
	}

	opts := extr.GroupOptions{Group: *group, Mask: *mask, Algorithm: *algorithm}
	opts.MaskMinValue, err = optionalFloat("mask_min_value", *maskMin)
	ensure(err)
	opts.NoData, err = optionalFloat("nodata", *nodata)
	ensure(err)
	if len(*dateFmt) > 0 {
		opts.FileDateFmt = dateFmt
	}

	datasets, err := extr.GroupFiles(files, opts)
	ensure(err)
	doc := &CrawlDocument{Datasets: datasets, Files: files}

	if *verify {
		utils.InitGdal()
		verifyDatasets(doc)
	}

	if *output == "-" {
		ensure(writeDocument(os.Stdout, doc, *format))
		return
	}
	outFormat := *format
	if ext := strings.ToLower(filepath.Ext(*output)); ext == ".yaml" || ext == ".yml" {
		outFormat = "yaml"
	}
	f, err := os.Create(*output)
	ensure(err)
	defer f.Close()
	ensure(writeDocument(f, doc, outFormat))
	log.Printf("Wrote %d datasets from %d files to %s", len(doc.Datasets), len(files), *output)
}
