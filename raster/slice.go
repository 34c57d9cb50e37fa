package raster

import "fmt"

// Slice selects a half-open range [start, stop) along one axis with a
// positive stride. Negative bounds count from the end of the axis.
// An unset bound covers the axis up to its edge.
type Slice struct {
	start, stop, step int
	hasStart, hasStop bool
	index             bool
}

// All selects the whole axis.
func All() Slice { return Slice{step: 1} }

// Index selects a single position. The axis is squeezed from the result.
func Index(i int) Slice {
	return Slice{start: i, stop: i + 1, step: 1, hasStart: true, hasStop: true, index: true}
}

// Span selects [start, stop).
func Span(start, stop int) Slice {
	return Slice{start: start, stop: stop, step: 1, hasStart: true, hasStop: true}
}

// Range selects [start, stop) taking every step-th element.
func Range(start, stop, step int) Slice {
	return Slice{start: start, stop: stop, step: step, hasStart: true, hasStop: true}
}

// From selects [start, end of axis).
func From(start int) Slice { return Slice{start: start, step: 1, hasStart: true} }

// To selects [0, stop).
func To(stop int) Slice { return Slice{stop: stop, step: 1, hasStop: true} }

// WithStep returns a copy of s with the given stride.
func (s Slice) WithStep(step int) Slice {
	s.step = step
	return s
}

func (s Slice) String() string {
	if s.index {
		return fmt.Sprintf("%d", s.start)
	}
	str := ""
	if s.hasStart {
		str += fmt.Sprintf("%d", s.start)
	}
	str += ":"
	if s.hasStop {
		str += fmt.Sprintf("%d", s.stop)
	}
	if s.step > 1 {
		str += fmt.Sprintf(":%d", s.step)
	}
	return str
}

// Resolve maps s onto an axis of length n. Bounds outside the axis are
// reported as a RangeError and are never clamped.
func (s Slice) Resolve(axis string, n int) (start, stop, step int, err error) {
	step = s.step
	if step == 0 {
		step = 1
	}
	if step < 0 {
		return 0, 0, 0, &RangeError{Axis: axis, Msg: fmt.Sprintf("negative step %d not supported", step)}
	}

	if s.index {
		i := s.start
		if i < 0 {
			i += n
		}
		if i < 0 || i >= n {
			return 0, 0, 0, &RangeError{Axis: axis, Index: s.start, Size: n}
		}
		return i, i + 1, 1, nil
	}

	start = 0
	if s.hasStart {
		start = s.start
		if start < 0 {
			start += n
		}
		if start < 0 || start >= n {
			return 0, 0, 0, &RangeError{Axis: axis, Index: s.start, Size: n}
		}
	}

	stop = n
	if s.hasStop {
		stop = s.stop
		if stop < 0 {
			stop += n
		}
		if stop < 0 || stop > n {
			return 0, 0, 0, &RangeError{Axis: axis, Index: s.stop, Size: n + 1}
		}
	}

	if stop <= start {
		return 0, 0, 0, &RangeError{Axis: axis, Msg: fmt.Sprintf("empty window %s on axis of length %d", s, n)}
	}
	return start, stop, step, nil
}

// Indices lists the positions selected by s on an axis of length n.
func (s Slice) Indices(axis string, n int) ([]int, error) {
	start, stop, step, err := s.Resolve(axis, n)
	if err != nil {
		return nil, err
	}
	var out []int
	for i := start; i < stop; i += step {
		out = append(out, i)
	}
	return out, nil
}

// stepLen is the number of elements taken from [start, stop) with stride step.
func stepLen(start, stop, step int) int {
	return (stop - start + step - 1) / step
}
