package raster

import (
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

const DefaultDateFormat = "20060102"

var layoutTokens = []struct {
	token string
	expr  string
}{
	{"2006", `\d{4}`},
	{"01", `\d{2}`},
	{"02", `\d{2}`},
	{"15", `\d{2}`},
	{"04", `\d{2}`},
	{"05", `\d{2}`},
}

var datePatterns sync.Map

func layoutPattern(layout string) *regexp.Regexp {
	if re, ok := datePatterns.Load(layout); ok {
		return re.(*regexp.Regexp)
	}

	var expr strings.Builder
	for rest := layout; len(rest) > 0; {
		matched := false
		for _, tk := range layoutTokens {
			if strings.HasPrefix(rest, tk.token) {
				expr.WriteString(tk.expr)
				rest = rest[len(tk.token):]
				matched = true
				break
			}
		}
		if !matched {
			expr.WriteString(regexp.QuoteMeta(rest[:1]))
			rest = rest[1:]
		}
	}

	re := regexp.MustCompile(expr.String())
	datePatterns.Store(layout, re)
	return re
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// ParseDates extracts every date matching layout from the base name of
// path, in the order they appear. Digit runs longer than the layout are
// not split. Unparseable candidates are skipped.
func ParseDates(path string, layout string) []time.Time {
	if len(layout) == 0 {
		return nil
	}
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	var dates []time.Time
	for _, loc := range layoutPattern(layout).FindAllStringIndex(name, -1) {
		if loc[0] > 0 && isDigit(name[loc[0]-1]) && isDigit(name[loc[0]]) {
			continue
		}
		if loc[1] < len(name) && isDigit(name[loc[1]]) && isDigit(name[loc[1]-1]) {
			continue
		}
		t, err := time.Parse(layout, name[loc[0]:loc[1]])
		if err != nil {
			continue
		}
		dates = append(dates, t)
	}
	return dates
}
