package extractor

import (
	"github.com/nci/gstack/raster"
)

// ExtractRasterInfo opens path and reports the metadata used to check
// that the members of a dataset are co-registered.
func ExtractRasterInfo(path string, dateLayout string) (*RasterInfo, error) {
	r, err := raster.Open(path, raster.DateFormat(dateLayout))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	info := &RasterInfo{
		FilePath:     path,
		Driver:       r.Driver,
		DType:        r.DType,
		Rows:         r.Rows,
		Cols:         r.Cols,
		GeoTransform: r.GeoTransform[:],
		LatLonBounds: r.LatLonBounds().Slice(),
		Dates:        r.Dates,
	}
	if r.HasNoData {
		nodata := r.NoData
		info.NoData = &nodata
	}
	return info, nil
}

// SameGrid reports whether two rasters share shape and geotransform.
func SameGrid(a, b *RasterInfo) bool {
	if a.Rows != b.Rows || a.Cols != b.Cols || len(a.GeoTransform) != len(b.GeoTransform) {
		return false
	}
	for i := range a.GeoTransform {
		if a.GeoTransform[i] != b.GeoTransform[i] {
			return false
		}
	}
	return true
}
