// Package drillservice defines the gstack.Drill gRPC service. Messages are
// the well known Struct and ListValue types, so the service needs no
// generated code.
package drillservice

import (
	"fmt"
	"math"

	"golang.org/x/net/context"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName      = "gstack.Drill"
	describeMethod   = "/gstack.Drill/Describe"
	pointMethod      = "/gstack.Drill/Point"
	DefaultMaxMsgLen = 16 * 1024 * 1024
)

// DrillServer is the server API for the gstack.Drill service.
type DrillServer interface {
	// Describe takes {dataset} and returns {bounds, dates, nodata, shape,
	// dtype}.
	Describe(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Point takes {dataset, lon, lat} and returns the series at that
	// location with nodata as null.
	Point(context.Context, *structpb.Struct) (*structpb.ListValue, error)
}

func RegisterDrillServer(s *grpc.Server, srv DrillServer) {
	s.RegisterService(&drillServiceDesc, srv)
}

func describeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DrillServer).Describe(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: describeMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DrillServer).Describe(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func pointHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DrillServer).Point(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: pointMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DrillServer).Point(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var drillServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DrillServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Describe", Handler: describeHandler},
		{MethodName: "Point", Handler: pointHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "drill.proto",
}

// DrillClient is the client API for the gstack.Drill service.
type DrillClient interface {
	Describe(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Point(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error)
}

type drillClient struct {
	cc grpc.ClientConnInterface
}

func NewDrillClient(cc grpc.ClientConnInterface) DrillClient {
	return &drillClient{cc}
}

func (c *drillClient) Describe(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, describeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *drillClient) Point(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, pointMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func NewPointRequest(dataset string, lon, lat float64) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"dataset": dataset,
		"lon":     lon,
		"lat":     lat,
	})
}

func NewDescribeRequest(dataset string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{"dataset": dataset})
}

func stringField(in *structpb.Struct, key string) (string, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return "", fmt.Errorf("missing %s field", key)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok || len(s.StringValue) == 0 {
		return "", fmt.Errorf("%s must be a non empty string", key)
	}
	return s.StringValue, nil
}

func numberField(in *structpb.Struct, key string) (float64, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return 0, fmt.Errorf("missing %s field", key)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return n.NumberValue, nil
}

// ParseDescribeRequest returns the dataset name of a Describe request.
func ParseDescribeRequest(in *structpb.Struct) (string, error) {
	return stringField(in, "dataset")
}

// ParsePointRequest returns the dataset and location of a Point request.
func ParsePointRequest(in *structpb.Struct) (dataset string, lon, lat float64, err error) {
	if dataset, err = stringField(in, "dataset"); err != nil {
		return
	}
	if lon, err = numberField(in, "lon"); err != nil {
		return
	}
	lat, err = numberField(in, "lat")
	return
}

// Description is the decoded Describe response.
type Description struct {
	Bounds []float64
	Dates  []string
	NoData *float64
	// Shape is (bands, rows, cols).
	Shape []int
	DType string
}

func NewDescribeResponse(d *Description) (*structpb.Struct, error) {
	bounds := make([]interface{}, len(d.Bounds))
	for i, b := range d.Bounds {
		bounds[i] = b
	}
	dates := make([]interface{}, len(d.Dates))
	for i, s := range d.Dates {
		dates[i] = s
	}
	shape := make([]interface{}, len(d.Shape))
	for i, n := range d.Shape {
		shape[i] = float64(n)
	}
	fields := map[string]interface{}{
		"bounds": bounds,
		"dates":  dates,
		"nodata": nil,
		"shape":  shape,
		"dtype":  d.DType,
	}
	if d.NoData != nil && !math.IsNaN(*d.NoData) {
		fields["nodata"] = *d.NoData
	}
	return structpb.NewStruct(fields)
}

func ParseDescribeResponse(out *structpb.Struct) *Description {
	d := &Description{}
	fields := out.GetFields()
	for _, v := range fields["bounds"].GetListValue().GetValues() {
		d.Bounds = append(d.Bounds, v.GetNumberValue())
	}
	for _, v := range fields["dates"].GetListValue().GetValues() {
		d.Dates = append(d.Dates, v.GetStringValue())
	}
	if n, ok := fields["nodata"].GetKind().(*structpb.Value_NumberValue); ok {
		nodata := n.NumberValue
		d.NoData = &nodata
	}
	for _, v := range fields["shape"].GetListValue().GetValues() {
		d.Shape = append(d.Shape, int(v.GetNumberValue()))
	}
	d.DType = fields["dtype"].GetStringValue()
	return d
}
