package raster

// #include "gdal.h"
// #include "ogr_srs_api.h"
// #include "cpl_string.h"
// #cgo pkg-config: gdal
import "C"

import (
	"fmt"
	"unsafe"
)

// GeoTIFFSpec describes a single band GeoTIFF to create.
type GeoTIFFSpec struct {
	Rows, Cols   int
	GeoTransform [6]float64
	EPSG         int
	DType        string
	NoData       *float64
	Data         []float64
	Complex      []complex128
	BlockSize    int
}

// CreateGeoTIFF writes a single band GeoTIFF. It is used to build small
// fixtures and derived products such as coherence masks.
func CreateGeoTIFF(path string, spec GeoTIFFSpec) error {
	n := spec.Rows * spec.Cols
	if spec.Complex == nil && len(spec.Data) != n {
		return fmt.Errorf("GeoTIFF %s: expected %d values, got %d", path, n, len(spec.Data))
	}
	if spec.Complex != nil && len(spec.Complex) != n {
		return fmt.Errorf("GeoTIFF %s: expected %d complex values, got %d", path, n, len(spec.Complex))
	}
	if len(spec.DType) == 0 {
		spec.DType = "Float32"
		if spec.Complex != nil {
			spec.DType = "CFloat32"
		}
	}

	cDriver := C.CString("GTiff")
	defer C.free(unsafe.Pointer(cDriver))
	hDriver := C.GDALGetDriverByName(cDriver)
	if hDriver == nil {
		return fmt.Errorf("GTiff driver not available")
	}

	cType := C.CString(spec.DType)
	defer C.free(unsafe.Pointer(cType))
	dType := C.GDALGetDataTypeByName(cType)

	var createOpts **C.char
	if spec.BlockSize > 0 {
		for _, opt := range []string{"TILED=YES", fmt.Sprintf("BLOCKXSIZE=%d", spec.BlockSize), fmt.Sprintf("BLOCKYSIZE=%d", spec.BlockSize)} {
			cOpt := C.CString(opt)
			createOpts = C.CSLAddString(createOpts, cOpt)
			C.free(unsafe.Pointer(cOpt))
		}
	}
	defer C.CSLDestroy(createOpts)

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	hDS := C.GDALCreate(hDriver, cPath, C.int(spec.Cols), C.int(spec.Rows), 1, dType, createOpts)
	if hDS == nil {
		return &IOError{Path: path, Op: "create", Err: fmt.Errorf("%s", lastGDALError())}
	}
	defer C.GDALClose(hDS)

	geot := spec.GeoTransform
	C.GDALSetGeoTransform(hDS, (*C.double)(&geot[0]))
	if spec.EPSG > 0 {
		hSRS := C.OSRNewSpatialReference(nil)
		defer C.OSRDestroySpatialReference(hSRS)
		C.OSRImportFromEPSG(hSRS, C.int(spec.EPSG))
		var projWKT *C.char
		C.OSRExportToWkt(hSRS, &projWKT)
		C.GDALSetProjection(hDS, projWKT)
		C.CPLFree(unsafe.Pointer(projWKT))
	}

	hBand := C.GDALGetRasterBand(hDS, 1)
	if spec.NoData != nil {
		C.GDALSetRasterNoDataValue(hBand, C.double(*spec.NoData))
	}

	var cErr C.CPLErr
	if spec.Complex != nil {
		cErr = C.GDALRasterIO(hBand, C.GF_Write, 0, 0, C.int(spec.Cols), C.int(spec.Rows),
			unsafe.Pointer(&spec.Complex[0]), C.int(spec.Cols), C.int(spec.Rows), C.GDT_CFloat64, 0, 0)
	} else {
		cErr = C.GDALRasterIO(hBand, C.GF_Write, 0, 0, C.int(spec.Cols), C.int(spec.Rows),
			unsafe.Pointer(&spec.Data[0]), C.int(spec.Cols), C.int(spec.Rows), C.GDT_Float64, 0, 0)
	}
	if cErr != C.CE_None {
		return &IOError{Path: path, Op: "write", Err: fmt.Errorf("%s", lastGDALError())}
	}
	return nil
}

// DefaultOverviewLevels are the decimation factors built by BuildOverviews.
var DefaultOverviewLevels = []int{4, 8, 16, 32, 64}

// BuildOverviews adds nearest neighbour overviews to path. Files that
// cannot be opened for update get an external .ovr file instead.
func BuildOverviews(path string, levels []int, resampling string, external bool) error {
	if len(levels) == 0 {
		levels = DefaultOverviewLevels
	}
	if len(resampling) == 0 {
		resampling = "NEAREST"
	}
	SetConfigOption("COMPRESS_OVERVIEW", "LZW")

	access := C.GDALAccess(C.GA_Update)
	if external {
		access = C.GA_ReadOnly
	}
	hDS, err := openDataset(path, access)
	if err != nil && !external {
		hDS, err = openDataset(path, C.GA_ReadOnly)
	}
	if err != nil {
		return err
	}
	defer C.GDALClose(hDS)

	cLevels := make([]C.int, len(levels))
	for i, l := range levels {
		cLevels[i] = C.int(l)
	}
	cResampling := C.CString(resampling)
	defer C.free(unsafe.Pointer(cResampling))

	cErr := C.GDALBuildOverviews(hDS, cResampling, C.int(len(cLevels)), &cLevels[0], 0, nil, nil, nil)
	if cErr != C.CE_None {
		return &IOError{Path: path, Op: "build overviews", Err: fmt.Errorf("%s", lastGDALError())}
	}
	return nil
}
