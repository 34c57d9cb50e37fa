package utils

// #include "gdal.h"
// #include "gdal_frmts.h"
// #cgo pkg-config: gdal
import "C"

import (
	"os"
	"path/filepath"
)

// InitGdal sets GDAL defaults suited to many small windowed reads over
// local or HTTP backed rasters and registers the common drivers first.
// Variables already present in the environment are left untouched.
func InitGdal() {
	setDefaultEnv("GDAL_PAM_ENABLED", "NO")
	setDefaultEnv("GDAL_DISABLE_READDIR_ON_OPEN", "EMPTY_DIR")
	setDefaultEnv("GDAL_MAX_DATASET_POOL_SIZE", "100")
	setDefaultEnv("GDAL_CACHEMAX", "800")
	setDefaultEnv("GDAL_HTTP_MULTIPLEX", "YES")
	setDefaultEnv("GDAL_HTTP_MERGE_CONSECUTIVE_RANGES", "YES")
	setDefaultEnv("CPL_VSIL_CURL_CACHE_SIZE", "800")
	setDefaultEnv("VSI_CACHE", "TRUE")
	setDefaultEnv("VSI_CACHE_SIZE", "5000000")

	exeFilePath, err := os.Executable()
	if err == nil {
		setDefaultEnv("GDAL_DRIVER_PATH", filepath.Dir(exeFilePath))
	}

	registerGDALDrivers()
}

func setDefaultEnv(envVar string, defaultVal string) {
	if _, ok := os.LookupEnv(envVar); !ok {
		os.Setenv(envVar, defaultVal)
	}
}

func registerGDALDrivers() {
	// This is a bit nasty, but this is one way to work out which
	// drivers are present in the GDAL shared library. We then
	// load the drivers of interest and then load all of the
	// drivers. This places common drivers at the front of the
	// driver list.
	var haveNetCDF, haveHDF5, haveVRT bool
	var haveGTiff, haveCOG bool

	// Find out which drivers are present
	C.GDALAllRegister()
	for i := 0; i < int(C.GDALGetDriverCount()); i++ {
		driver := C.GDALGetDriver(C.int(i))
		switch C.GoString(C.GDALGetDriverShortName(driver)) {
		case "netCDF":
			haveNetCDF = true
		case "HDF5":
			haveHDF5 = true
		case "VRT":
			haveVRT = true
		case "COG":
			haveCOG = true
		case "GTiff":
			haveGTiff = true
		}
	}

	// De-register all the drivers again
	for C.GDALGetDriverCount() > 0 {
		C.GDALDeregisterDriver(C.GDALGetDriver(0))
	}

	// Register these drivers first for higher performance when
	// opening files (drivers are interrogated in a linear scan)
	if haveGTiff {
		C.GDALRegister_GTiff()
	}
	if haveCOG {
		C.GDALRegister_COG()
	}
	if haveVRT {
		C.GDALRegister_VRT()
	}
	if haveNetCDF {
		C.GDALRegister_netCDF()
	}
	if haveHDF5 {
		C.GDALRegister_HDF5()
	}
	// Now register everything else
	C.GDALAllRegister()
}
