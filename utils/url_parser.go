package utils

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	geo "github.com/nci/geometry"
)

func ishex(c byte) bool {
	switch {
	case '0' <= c && c <= '9':
		return true
	case 'a' <= c && c <= 'f':
		return true
	case 'A' <= c && c <= 'F':
		return true
	}
	return false
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

func unescapeUrl(s string) (string, error) {
	n := 0
	for i := 0; i < len(s); {
		switch s[i] {
		case '%':
			notValid := i+2 >= len(s) || !ishex(s[i+1]) || !ishex(s[i+2])
			if notValid {
				i++
			} else {
				n++
				i += 3
			}
		default:
			i++
		}
	}
	t := make([]byte, len(s)-2*n)
	j := 0
	for i := 0; i < len(s); {
		switch s[i] {
		case '%':
			notValid := i+2 >= len(s) || !ishex(s[i+1]) || !ishex(s[i+2])
			if notValid {
				t[j] = s[i]
				j++
				i++
			} else {
				t[j] = unhex(s[i+1])<<4 | unhex(s[i+2])
				j++
				i += 3
			}
		default:
			t[j] = s[i]
			j++
			i++
		}
	}
	return string(t), nil
}

func ParseQuery(query string) (m url.Values, err error) {
	m = make(url.Values)
	for query != "" {
		key := query
		iSep := -1
		for i := 0; i < len(key); i++ {
			if key[i] == '&' {
				if i > 0 && key[i-1] == '\\' {
					continue
				}
				iSep = i
				break
			}
		}
		if iSep >= 0 {
			key, query = key[:iSep], key[iSep+1:]
		} else {
			query = ""
		}
		if key == "" {
			continue
		}
		value := ""
		if i := strings.Index(key, "="); i >= 0 {
			key, value = key[:i], key[i+1:]
			value = strings.Replace(value, "\\&", "&", -1)
		}
		key, err1 := url.QueryUnescape(key)
		if err1 != nil {
			if err == nil {
				err = err1
			}
			continue
		}
		key = strings.ToLower(key)

		if key == "file_list" || key == "mask_file_list" {
			value, err1 = unescapeUrl(value)
		} else {
			value, err1 = url.QueryUnescape(value)
		}
		if err1 != nil {
			if err == nil {
				err = err1
			}
			continue
		}

		m[key] = append(m[key], value)
	}
	return m, err
}

// PointParams locates a pixel in a registered dataset. The reference
// location is optional.
type PointParams struct {
	Dataset string
	Lon     float64
	Lat     float64
	RefLon  *float64
	RefLat  *float64
}

// HasReference reports whether a reference location was given.
func (p *PointParams) HasReference() bool {
	return p.RefLon != nil && p.RefLat != nil
}

func parseFloat(params url.Values, key string) (*float64, error) {
	v, ok := params[key]
	if !ok || len(v) == 0 || len(v[0]) == 0 {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v[0], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value: %s", key, v[0])
	}
	return &f, nil
}

func checkLonLat(lon, lat float64) error {
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %v outside [-180, 180]", lon)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v outside [-90, 90]", lat)
	}
	return nil
}

// ParsePointParams reads dataset_name, lon, lat and the optional ref_lon
// and ref_lat from a query.
func ParsePointParams(params url.Values) (*PointParams, error) {
	p := &PointParams{}
	if v, ok := params["dataset_name"]; ok && len(v) > 0 {
		p.Dataset = v[0]
	} else if v, ok := params["dataset"]; ok && len(v) > 0 {
		p.Dataset = v[0]
	}
	if len(p.Dataset) == 0 {
		return nil, fmt.Errorf("missing dataset_name parameter")
	}

	for _, key := range []string{"lon", "lat"} {
		f, err := parseFloat(params, key)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, fmt.Errorf("missing %s parameter", key)
		}
		if key == "lon" {
			p.Lon = *f
		} else {
			p.Lat = *f
		}
	}
	if err := checkLonLat(p.Lon, p.Lat); err != nil {
		return nil, err
	}

	var err error
	if p.RefLon, err = parseFloat(params, "ref_lon"); err != nil {
		return nil, err
	}
	if p.RefLat, err = parseFloat(params, "ref_lat"); err != nil {
		return nil, err
	}
	if (p.RefLon == nil) != (p.RefLat == nil) {
		return nil, fmt.Errorf("ref_lon and ref_lat must be given together")
	}
	if p.HasReference() {
		if err := checkLonLat(*p.RefLon, *p.RefLat); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ParseFeaturePoint extracts the coordinates of a GeoJSON Point feature,
// or of the first feature of a FeatureCollection.
func ParseFeaturePoint(body []byte) (lon, lat float64, err error) {
	var head struct {
		Type string `json:"type"`
	}
	if err = json.Unmarshal(body, &head); err != nil {
		return 0, 0, fmt.Errorf("Problem unmarshalling GeoJSON object: %v", err)
	}

	var feat geo.Feature
	if head.Type == "FeatureCollection" {
		var fc geo.FeatureCollection
		if err = json.Unmarshal(body, &fc); err != nil {
			return 0, 0, fmt.Errorf("Problem unmarshalling GeoJSON object: %v", err)
		}
		if len(fc.Features) == 0 {
			return 0, 0, fmt.Errorf("feature collection has no features")
		}
		feat.Geometry = fc.Features[0].Geometry
	} else if err = json.Unmarshal(body, &feat); err != nil {
		return 0, 0, fmt.Errorf("Problem unmarshalling GeoJSON object: %v", err)
	}

	switch geom := feat.Geometry.(type) {
	case *geo.Point:
		raw, e := json.Marshal(geom)
		if e != nil {
			return 0, 0, e
		}
		var pt struct {
			Coordinates []float64 `json:"coordinates"`
		}
		if e := json.Unmarshal(raw, &pt); e != nil {
			return 0, 0, e
		}
		if len(pt.Coordinates) < 2 {
			return 0, 0, fmt.Errorf("point geometry needs two coordinates")
		}
		lon, lat = pt.Coordinates[0], pt.Coordinates[1]
	default:
		return 0, 0, fmt.Errorf("Geometry not supported. Only Point features are available")
	}

	if err = checkLonLat(lon, lat); err != nil {
		return 0, 0, err
	}
	return lon, lat, nil
}

// TileParams are the query options of a tile request.
type TileParams struct {
	Band      int
	Algorithm string
	VMin      *float64
	VMax      *float64
	Colormap  string
}

// ParseTileParams reads band, algorithm, vmin, vmax and cmap. Algorithm
// parameters such as shift stay in the query for ParseAlgorithm.
func ParseTileParams(params url.Values) (*TileParams, error) {
	p := &TileParams{}
	if v := params.Get("band"); len(v) > 0 {
		band, err := strconv.Atoi(v)
		if err != nil || band < 0 {
			return nil, fmt.Errorf("invalid band: %s", v)
		}
		p.Band = band
	}
	p.Algorithm = params.Get("algorithm")
	p.Colormap = params.Get("cmap")

	var err error
	if p.VMin, err = parseFloat(params, "vmin"); err != nil {
		return nil, err
	}
	if p.VMax, err = parseFloat(params, "vmax"); err != nil {
		return nil, err
	}
	if p.VMin != nil && p.VMax != nil && *p.VMin >= *p.VMax {
		return nil, fmt.Errorf("vmin must be smaller than vmax")
	}
	return p, nil
}
