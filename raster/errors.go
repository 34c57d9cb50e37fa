package raster

import "fmt"

// ConfigurationError reports a malformed dataset or stack description.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Msg)
}

// IOError reports a failure to open or read a raster file.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s failed", e.Op, e.Path)
}

func (e *IOError) Unwrap() error { return e.Err }

// RangeError reports a pixel, window or band request outside the raster.
type RangeError struct {
	Axis  string
	Index int
	Size  int
	Msg   string
}

func (e *RangeError) Error() string {
	if len(e.Msg) > 0 {
		return fmt.Sprintf("%s out of range: %s", e.Axis, e.Msg)
	}
	return fmt.Sprintf("%s index %d out of range [0, %d)", e.Axis, e.Index, e.Size)
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}
