package utils

import (
	"strings"
	"time"
)

const ISODateFormat = "2006-01-02"

// Label modes for the x axis of a time series.
const (
	LabelAuto      = "auto"
	LabelIndex     = "index"
	LabelPair      = "pair"
	LabelSecondary = "secondary"
)

// LabelPolicy controls how file dates become x axis labels. In auto mode
// date pairs are labelled by their secondary date unless more than
// MaxDuplicateSecondary secondary dates repeat, in which case the full
// pair is used.
type LabelPolicy struct {
	Mode                  string `json:"mode" yaml:"mode"`
	MaxDuplicateSecondary int    `json:"max_duplicate_secondary" yaml:"max_duplicate_secondary"`
}

func indexLabels(n int) []interface{} {
	out := make([]interface{}, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func joinDates(dates []time.Time) string {
	parts := make([]string, len(dates))
	for i, d := range dates {
		parts[i] = d.Format(ISODateFormat)
	}
	return strings.Join(parts, "_")
}

// XValues labels each file of a stack from its parsed dates. Files
// without dates make the whole axis fall back to integer indices.
func XValues(dates [][]time.Time, policy LabelPolicy) []interface{} {
	n := len(dates)
	if policy.Mode == LabelIndex || n == 0 {
		return indexLabels(n)
	}

	pairs := true
	for _, d := range dates {
		if len(d) == 0 {
			return indexLabels(n)
		}
		if len(d) < 2 {
			pairs = false
		}
	}

	out := make([]interface{}, n)
	if !pairs {
		for i, d := range dates {
			out[i] = d[0].Format(ISODateFormat)
		}
		return out
	}

	usePair := policy.Mode == LabelPair
	if policy.Mode != LabelSecondary && !usePair {
		seen := make(map[time.Time]bool)
		dups := 0
		for _, d := range dates {
			sec := d[len(d)-1]
			if seen[sec] {
				dups++
			}
			seen[sec] = true
		}
		usePair = dups > policy.MaxDuplicateSecondary
	}

	for i, d := range dates {
		if usePair {
			out[i] = joinDates(d)
		} else {
			out[i] = d[len(d)-1].Format(ISODateFormat)
		}
	}
	return out
}

// ReferenceDate returns the first date shared by every date pair, or nil.
func ReferenceDate(dates [][]time.Time) *time.Time {
	if len(dates) == 0 {
		return nil
	}
	var ref time.Time
	for i, d := range dates {
		if len(d) < 2 {
			return nil
		}
		if i == 0 {
			ref = d[0]
		} else if !d[0].Equal(ref) {
			return nil
		}
	}
	return &ref
}
