package processor

import (
	"fmt"
	"time"

	pb "github.com/nci/gstack/grpc_server/drillservice"
	"github.com/nci/gstack/raster"
	"golang.org/x/net/context"
	"google.golang.org/grpc"
)

const describeTimeout = 10 * time.Second

// GRPCSource is a dataset served by drill backends. Only point reads go
// over the wire; window and tile reads are not supported.
type GRPCSource struct {
	Dataset     string
	Backends    []string
	Description *pb.Description
	Verbose     bool
}

// OpenGRPCSource describes dataset on the first backend.
func OpenGRPCSource(backends []string, dataset string) (*GRPCSource, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("no drill backends configured")
	}
	conn, err := grpc.Dial(backends[0], grpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("gRPC connection problem: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), describeTimeout)
	defer cancel()
	req, err := pb.NewDescribeRequest(dataset)
	if err != nil {
		return nil, err
	}
	out, err := pb.NewDrillClient(conn).Describe(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %v", dataset, err)
	}

	desc := pb.ParseDescribeResponse(out)
	if len(desc.Shape) != 3 {
		return nil, fmt.Errorf("describe %s: backend returned shape %v", dataset, desc.Shape)
	}
	return &GRPCSource{Dataset: dataset, Backends: backends, Description: desc}, nil
}

func (s *GRPCSource) Shape() (int, int, int) {
	return s.Description.Shape[0], s.Description.Shape[1], s.Description.Shape[2]
}

func (s *GRPCSource) DType() string { return s.Description.DType }

func (s *GRPCSource) Read(band int, rows, cols raster.Slice) (*raster.Array, error) {
	return nil, fmt.Errorf("%s: window reads are not supported by drill backends", s.Dataset)
}

func (s *GRPCSource) ReadLonLat(lon, lat float64) ([]float64, error) {
	reqs := []*DrillRequest{{Dataset: s.Dataset, Lon: lon, Lat: lat}}
	out, err := RemotePoints(context.Background(), s.Backends, reqs, s.Verbose)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (s *GRPCSource) Tile(ctx context.Context, req *TileRequest) (*Tile, error) {
	return nil, fmt.Errorf("%s: tile reads are not supported by drill backends", s.Dataset)
}

func (s *GRPCSource) Close() {}
