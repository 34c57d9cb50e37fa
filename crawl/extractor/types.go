package extractor

import "time"

// PosixInfo identifies one crawled file. ID changes whenever the file is
// replaced or modified.
type PosixInfo struct {
	FilePath string    `json:"file_path" yaml:"file_path"`
	INode    uint64    `json:"inode,omitempty" yaml:"inode,omitempty"`
	Size     int64     `json:"size" yaml:"size"`
	MTime    time.Time `json:"mtime" yaml:"mtime"`
	CTime    time.Time `json:"ctime,omitempty" yaml:"ctime,omitempty"`
	ID       string    `json:"id" yaml:"id"`
}

// RasterInfo is the metadata of a raster read with GDAL.
type RasterInfo struct {
	FilePath     string      `json:"file_path" yaml:"file_path"`
	Driver       string      `json:"driver" yaml:"driver"`
	DType        string      `json:"dtype" yaml:"dtype"`
	Rows         int         `json:"rows" yaml:"rows"`
	Cols         int         `json:"cols" yaml:"cols"`
	GeoTransform []float64   `json:"geotransform" yaml:"geotransform"`
	LatLonBounds []float64   `json:"latlon_bounds" yaml:"latlon_bounds"`
	NoData       *float64    `json:"nodata,omitempty" yaml:"nodata,omitempty"`
	Dates        []time.Time `json:"dates,omitempty" yaml:"dates,omitempty"`
}
