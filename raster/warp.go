package raster

// #include "gdal.h"
// #include "gdalwarper.h"
// #include "ogr_srs_api.h"
// #include "cpl_string.h"
// #cgo pkg-config: gdal
// int
// warp_operation(GDALDatasetH hSrcDS, GDALDatasetH hDstDS, int band, int hasNoData, double nodata)
// {
//        const char *srcProjRef;
//        int err;
//        GDALWarpOptions *psWOptions;
//
//        psWOptions = GDALCreateWarpOptions();
//        psWOptions->nBandCount = 1;
//        psWOptions->panSrcBands = (int *) CPLMalloc(sizeof(int) * 1);
//        psWOptions->panSrcBands[0] = band;
//        psWOptions->panDstBands = (int *) CPLMalloc(sizeof(int) * 1);
//        psWOptions->panDstBands[0] = 1;
//        if(hasNoData) {
//            psWOptions->padfSrcNoDataReal = (double *) CPLMalloc(sizeof(double) * 1);
//            psWOptions->padfSrcNoDataReal[0] = nodata;
//        }
//
//        srcProjRef = GDALGetProjectionRef(hSrcDS);
//        if(strlen(srcProjRef) == 0) {
//            srcProjRef = SRS_WKT_WGS84_LAT_LONG;
//        }
//
//        err = GDALReprojectImage(hSrcDS, srcProjRef, hDstDS, GDALGetProjectionRef(hDstDS), GRA_NearestNeighbour, 0.0, 0.0, NULL, NULL, psWOptions);
//        GDALDestroyWarpOptions(psWOptions);
//
//        return err;
// }
import "C"

import (
	"fmt"
	"log"
	"math"
	"runtime"
	"unsafe"
)

// WarpRequest describes a destination grid to resample a band onto.
type WarpRequest struct {
	EPSG          int
	GeoTransform  [6]float64
	Width, Height int
}

// Warp resamples the reader's band onto the destination grid with nearest
// neighbour sampling. Destination pixels not covered by valid source
// pixels are masked.
func (r *Reader) Warp(req *WarpRequest, debug bool) (*Array, error) {
	dump := func(msg interface{}) error {
		log.Println(
			"warp", r.Path,
			"band", r.Band,
			"width", req.Width,
			"height", req.Height,
			"geotransform", req.GeoTransform,
			"error", msg,
		)
		return &IOError{Path: r.Path, Op: "warp", Err: fmt.Errorf("%v", msg)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	hSrcDS := r.ds
	if hSrcDS == nil {
		var err error
		hSrcDS, err = openDataset(r.Path, C.GA_ReadOnly)
		if err != nil {
			return nil, err
		}
		defer C.GDALClose(hSrcDS)
	}

	size := req.Width * req.Height
	arr := &Array{Shape: []int{req.Height, req.Width}}
	var ptr unsafe.Pointer
	dType := "Float64"
	if r.IsComplex() {
		arr.Complex = make([]complex128, size)
		for i := range arr.Complex {
			arr.Complex[i] = complex(math.NaN(), math.NaN())
		}
		ptr = unsafe.Pointer(&arr.Complex[0])
		dType = "CFloat64"
	} else {
		arr.Data = make([]float64, size)
		for i := range arr.Data {
			arr.Data[i] = math.NaN()
		}
		ptr = unsafe.Pointer(&arr.Data[0])
	}

	memStr := C.CString(fmt.Sprintf("MEM:::DATAPOINTER=%d,PIXELS=%d,LINES=%d,DATATYPE=%s", uintptr(ptr), req.Width, req.Height, dType))
	defer C.free(unsafe.Pointer(memStr))
	hDstDS := C.GDALOpen(memStr, C.GA_Update)
	if hDstDS == nil {
		return nil, dump("GDALOpen() MEM fail")
	}
	defer C.GDALClose(hDstDS)

	hSRS := C.OSRNewSpatialReference(nil)
	defer C.OSRDestroySpatialReference(hSRS)
	C.OSRImportFromEPSG(hSRS, C.int(req.EPSG))
	var projWKT *C.char
	C.OSRExportToWkt(hSRS, &projWKT)
	defer C.CPLFree(unsafe.Pointer(projWKT))

	C.GDALSetProjection(hDstDS, projWKT)
	geot := req.GeoTransform
	C.GDALSetGeoTransform(hDstDS, (*C.double)(&geot[0]))

	hasNoData := 0
	if r.HasNoData {
		hasNoData = 1
	}
	cErr := C.warp_operation(hSrcDS, hDstDS, C.int(r.Band), C.int(hasNoData), C.double(r.NoData))
	if cErr != 0 {
		return nil, dump("warp_operation() fail")
	}
	runtime.KeepAlive(arr)

	if arr.Complex != nil {
		arr.Mask = complexNoDataMask(arr.Complex, math.NaN())
		if r.HasNoData {
			for i, m := range complexNoDataMask(arr.Complex, r.NoData) {
				arr.Mask[i] = arr.Mask[i] || m
			}
		}
	} else {
		arr.Mask = noDataMask(arr.Data, math.NaN())
		if r.HasNoData {
			for i, m := range noDataMask(arr.Data, r.NoData) {
				arr.Mask[i] = arr.Mask[i] || m
			}
		}
	}

	if debug {
		dump("debug")
	}
	return arr, nil
}
