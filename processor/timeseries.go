package processor

import (
	"fmt"
	"math"
	"time"

	"github.com/nci/gstack/utils"
	"gonum.org/v1/gonum/stat"
)

const daysPerYear = 365.25

// ChartPoint is one sample of a chart series.
type ChartPoint struct {
	X interface{}     `json:"x"`
	Y utils.NullFloat `json:"y"`
}

type ChartSeries struct {
	Data []ChartPoint `json:"data"`
}

// Trend is a least squares line fitted over days since the first date.
// MMPerYear assumes values in metres.
type Trend struct {
	Slope     utils.NullFloat `json:"slope"`
	Intercept utils.NullFloat `json:"intercept"`
	RSquared  utils.NullFloat `json:"r_squared"`
	MMPerYear utils.NullFloat `json:"mm_per_year"`
}

// ChartData is the chart.js payload of a point time series.
type ChartData struct {
	Datasets []ChartSeries `json:"datasets"`
	Labels   []interface{} `json:"labels"`
	Trend    *Trend        `json:"trend,omitempty"`
}

// SubtractReference returns values minus ref element-wise.
func SubtractReference(values, ref []float64) ([]float64, error) {
	if len(values) != len(ref) {
		return nil, fmt.Errorf("reference series has %d values, expected %d", len(ref), len(values))
	}
	out := make([]float64, len(values))
	for i := range values {
		out[i] = values[i] - ref[i]
	}
	return out, nil
}

// trendAxis returns the day offset of each file from the earliest date,
// using the last date of each file. It returns nil when a file is undated.
func trendAxis(dates [][]time.Time) []float64 {
	if len(dates) == 0 {
		return nil
	}
	var first time.Time
	for i, d := range dates {
		if len(d) == 0 {
			return nil
		}
		if t := d[len(d)-1]; i == 0 || t.Before(first) {
			first = t
		}
	}
	out := make([]float64, len(dates))
	for i, d := range dates {
		out[i] = d[len(d)-1].Sub(first).Hours() / 24
	}
	return out
}

// FitTrend fits values against their dates, skipping NaN samples. Fewer
// than two valid samples yield a zero trend. Undated series have no trend.
func FitTrend(dates [][]time.Time, values []float64) *Trend {
	axis := trendAxis(dates)
	if axis == nil || len(axis) != len(values) {
		return nil
	}

	var xs, ys []float64
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		xs = append(xs, axis[i])
		ys = append(ys, v)
	}
	if len(xs) < 2 {
		return &Trend{}
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, intercept, slope)
	return &Trend{
		Slope:     utils.NullFloat(slope),
		Intercept: utils.NullFloat(intercept),
		RSquared:  utils.NullFloat(r2),
		MMPerYear: utils.NullFloat(slope * 1000 * daysPerYear),
	}
}

// BuildChart pairs values with their x axis labels.
func BuildChart(labels []interface{}, dates [][]time.Time, values []float64) (*ChartData, error) {
	if len(labels) != len(values) {
		return nil, fmt.Errorf("%d labels for %d values", len(labels), len(values))
	}
	series := ChartSeries{Data: make([]ChartPoint, len(values))}
	for i, v := range values {
		series.Data[i] = ChartPoint{X: labels[i], Y: utils.NullFloat(v)}
	}
	return &ChartData{
		Datasets: []ChartSeries{series},
		Labels:   labels,
		Trend:    FitTrend(dates, values),
	}, nil
}
