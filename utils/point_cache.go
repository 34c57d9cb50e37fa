package utils

import (
	"crypto/md5"
	"encoding/hex"
	"log"
	"math"

	"github.com/golang/protobuf/proto"
	"github.com/nci/gomemcache/memcache"
	"google.golang.org/protobuf/types/known/structpb"
)

// PointCache keeps encoded point series in memcache keyed by request URI.
// A nil *PointCache is valid and never hits.
type PointCache struct {
	mc *memcache.Client
}

func NewPointCache(uri string) *PointCache {
	if len(uri) == 0 {
		return nil
	}
	// lazy connection; errors returned in .Get
	return &PointCache{mc: memcache.New(uri)}
}

// CacheKey is the hex md5 of a request URI.
func CacheKey(requestURI string) string {
	buff := md5.Sum([]byte(requestURI))
	return hex.EncodeToString(buff[:])
}

// Get returns the cached series for requestURI.
func (c *PointCache) Get(requestURI string) ([]float64, bool) {
	if c == nil {
		return nil, false
	}
	item, err := c.mc.Get(CacheKey(requestURI))
	if err != nil {
		return nil, false
	}
	values, err := DecodeSeries(item.Value)
	if err != nil {
		log.Printf("discarding cached point %s: %v", requestURI, err)
		return nil, false
	}
	return values, true
}

// Set stores values. Errors are ignored since memcache may evict the
// entry anyway.
func (c *PointCache) Set(requestURI string, values []float64) {
	if c == nil {
		return
	}
	payload, err := EncodeSeries(values)
	if err != nil {
		return
	}
	c.mc.Set(&memcache.Item{Key: CacheKey(requestURI), Value: payload})
}

// SeriesToList converts a series to a ListValue. NaN becomes null.
func SeriesToList(values []float64) *structpb.ListValue {
	list := &structpb.ListValue{Values: make([]*structpb.Value, len(values))}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			list.Values[i] = structpb.NewNullValue()
		} else {
			list.Values[i] = structpb.NewNumberValue(v)
		}
	}
	return list
}

// ListToSeries is the inverse of SeriesToList.
func ListToSeries(list *structpb.ListValue) []float64 {
	out := make([]float64, len(list.GetValues()))
	for i, v := range list.GetValues() {
		if n, ok := v.GetKind().(*structpb.Value_NumberValue); ok {
			out[i] = n.NumberValue
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

func EncodeSeries(values []float64) ([]byte, error) {
	return proto.Marshal(SeriesToList(values))
}

func DecodeSeries(payload []byte) ([]float64, error) {
	list := &structpb.ListValue{}
	if err := proto.Unmarshal(payload, list); err != nil {
		return nil, err
	}
	return ListToSeries(list), nil
}
