package raster

// #include "gdal.h"
// #include "ogr_srs_api.h"
// #include "cpl_conv.h"
// #cgo pkg-config: gdal
import "C"

import (
	"fmt"
	"math"
	"unsafe"
)

var GDALTypes map[C.GDALDataType]string = map[C.GDALDataType]string{0: "Unknown", 1: "Byte", 2: "UInt16", 3: "Int16",
	4: "UInt32", 5: "Int32", 6: "Float32", 7: "Float64",
	8: "CInt16", 9: "CInt32", 10: "CFloat32", 11: "CFloat64"}

const WGS84WKT = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.01745329251994328,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`

func init() {
	C.GDALAllRegister()
}

// IsComplexType reports whether a GDAL type name holds complex samples.
func IsComplexType(dType string) bool {
	switch dType {
	case "CInt16", "CInt32", "CFloat32", "CFloat64":
		return true
	}
	return false
}

func openDataset(path string, access C.GDALAccess) (C.GDALDatasetH, error) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	ds := C.GDALOpen(cPath, access)
	if ds == nil {
		return nil, &IOError{Path: path, Op: "open", Err: fmt.Errorf("GDAL could not open dataset: %s", lastGDALError())}
	}
	return ds, nil
}

func lastGDALError() string {
	msg := C.GoString(C.CPLGetLastErrorMsg())
	if len(msg) == 0 {
		return "unknown error"
	}
	return msg
}

// readBand reads the window at (xOff, yOff) of size xSize x ySize from band
// into a float64 or complex128 buffer.
func readBand(band C.GDALRasterBandH, xOff, yOff, xSize, ySize int, complexData bool) ([]float64, []complex128, error) {
	n := xSize * ySize
	if complexData {
		buf := make([]complex128, n)
		cErr := C.GDALRasterIO(band, C.GF_Read, C.int(xOff), C.int(yOff), C.int(xSize), C.int(ySize),
			unsafe.Pointer(&buf[0]), C.int(xSize), C.int(ySize), C.GDT_CFloat64, 0, 0)
		if cErr != C.CE_None {
			return nil, nil, fmt.Errorf("GDALRasterIO: %s", lastGDALError())
		}
		return nil, buf, nil
	}

	buf := make([]float64, n)
	cErr := C.GDALRasterIO(band, C.GF_Read, C.int(xOff), C.int(yOff), C.int(xSize), C.int(ySize),
		unsafe.Pointer(&buf[0]), C.int(xSize), C.int(ySize), C.GDT_Float64, 0, 0)
	if cErr != C.CE_None {
		return nil, nil, fmt.Errorf("GDALRasterIO: %s", lastGDALError())
	}
	return buf, nil, nil
}

// transformer converts coordinate pairs between two spatial references.
// OGR coordinate transformations are not reentrant, so calls are serialised
// by the owner.
type transformer struct {
	h C.OGRCoordinateTransformationH
}

func newSRS(wkt string, epsg int) C.OGRSpatialReferenceH {
	hSRS := C.OSRNewSpatialReference(nil)
	if epsg > 0 {
		C.OSRImportFromEPSG(hSRS, C.int(epsg))
	} else {
		cWKT := C.CString(wkt)
		defer C.free(unsafe.Pointer(cWKT))
		C.OSRSetFromUserInput(hSRS, cWKT)
	}
	C.OSRSetAxisMappingStrategy(hSRS, C.OAMS_TRADITIONAL_GIS_ORDER)
	return hSRS
}

func newTransformer(srcWKT string, srcEPSG int, dstWKT string, dstEPSG int) (*transformer, error) {
	src := newSRS(srcWKT, srcEPSG)
	defer C.OSRDestroySpatialReference(src)
	dst := newSRS(dstWKT, dstEPSG)
	defer C.OSRDestroySpatialReference(dst)

	h := C.OCTNewCoordinateTransformation(src, dst)
	if h == nil {
		return nil, fmt.Errorf("OCTNewCoordinateTransformation: %s", lastGDALError())
	}
	return &transformer{h: h}, nil
}

func (t *transformer) transform(xs, ys []float64) error {
	if len(xs) == 0 {
		return nil
	}
	zs := make([]float64, len(xs))
	ok := C.OCTTransform(t.h, C.int(len(xs)), (*C.double)(&xs[0]), (*C.double)(&ys[0]), (*C.double)(&zs[0]))
	if ok == 0 {
		return fmt.Errorf("OCTTransform: %s", lastGDALError())
	}
	return nil
}

// transformBounds reprojects a bounding box by densifying each edge with
// densify intermediate points and taking the extent of the result.
func (t *transformer) transformBounds(b Bounds, densify int) (Bounds, error) {
	var xs, ys []float64
	steps := densify + 1
	for i := 0; i <= steps; i++ {
		f := float64(i) / float64(steps)
		x := b.Left + f*(b.Right-b.Left)
		y := b.Bottom + f*(b.Top-b.Bottom)
		xs = append(xs, x, x, b.Left, b.Right)
		ys = append(ys, b.Bottom, b.Top, y, y)
	}
	if err := t.transform(xs, ys); err != nil {
		return Bounds{}, err
	}

	out := Bounds{Left: math.Inf(1), Bottom: math.Inf(1), Right: math.Inf(-1), Top: math.Inf(-1)}
	for i := range xs {
		if math.IsInf(xs[i], 0) || math.IsInf(ys[i], 0) {
			continue
		}
		out.Left = math.Min(out.Left, xs[i])
		out.Right = math.Max(out.Right, xs[i])
		out.Bottom = math.Min(out.Bottom, ys[i])
		out.Top = math.Max(out.Top, ys[i])
	}
	return out, nil
}

func (t *transformer) close() {
	if t != nil && t.h != nil {
		C.OCTDestroyCoordinateTransformation(t.h)
		t.h = nil
	}
}

// SetConfigOption sets a process wide GDAL configuration option.
func SetConfigOption(key, value string) {
	cKey := C.CString(key)
	defer C.free(unsafe.Pointer(cKey))
	cVal := C.CString(value)
	defer C.free(unsafe.Pointer(cVal))
	C.CPLSetConfigOption(cKey, cVal)
}
