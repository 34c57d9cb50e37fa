package processor

import (
	"math"
	"net"
	"testing"

	pb "github.com/nci/gstack/grpc_server/drillservice"
	"github.com/nci/gstack/utils"
	"golang.org/x/net/context"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

type echoDrill struct{}

func (echoDrill) Describe(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	name, err := pb.ParseDescribeRequest(in)
	if err != nil {
		return nil, err
	}
	if name == "flat" {
		return pb.NewDescribeResponse(&pb.Description{})
	}
	return pb.NewDescribeResponse(&pb.Description{Shape: []int{3, 4, 5}, DType: "Float32"})
}

func (echoDrill) Point(ctx context.Context, in *structpb.Struct) (*structpb.ListValue, error) {
	_, lon, lat, err := pb.ParsePointRequest(in)
	if err != nil {
		return nil, err
	}
	return utils.SeriesToList([]float64{lon, lat, math.NaN()}), nil
}

func startDrillBackend(t *testing.T) string {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen on loopback: %v", err)
	}
	s := grpc.NewServer()
	pb.RegisterDrillServer(s, echoDrill{})
	go s.Serve(lis)
	t.Cleanup(s.Stop)
	return lis.Addr().String()
}

func TestRemotePoints(t *testing.T) {
	addr := startDrillBackend(t)

	var reqs []*DrillRequest
	for i := 0; i < 20; i++ {
		reqs = append(reqs, &DrillRequest{Dataset: "vel", Lon: float64(i), Lat: -float64(i)})
	}
	out, err := RemotePoints(context.Background(), []string{addr, addr}, reqs, false)
	if err != nil {
		t.Fatal(err)
	}
	for i, values := range out {
		if len(values) != 3 || values[0] != float64(i) || values[1] != -float64(i) || !math.IsNaN(values[2]) {
			t.Errorf("unexpected result %d: %v", i, values)
		}
	}

	if _, err := RemotePoints(context.Background(), nil, reqs[:1], false); err == nil {
		t.Errorf("expected error without backends")
	}
}

var _ TileSource = (*GRPCSource)(nil)

func TestGRPCSource(t *testing.T) {
	addr := startDrillBackend(t)

	src, err := OpenGRPCSource([]string{addr}, "vel")
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	if b, r, c := src.Shape(); b != 3 || r != 4 || c != 5 || src.DType() != "Float32" {
		t.Errorf("unexpected shape %d %d %d %s", b, r, c, src.DType())
	}

	values, err := src.ReadLonLat(1.5, 2.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 3 || values[0] != 1.5 || values[1] != 2.5 {
		t.Errorf("unexpected values %v", values)
	}
	if _, err := src.Tile(context.Background(), &TileRequest{}); err == nil {
		t.Errorf("expected tile reads to fail")
	}

	if _, err := OpenGRPCSource([]string{addr}, "flat"); err == nil {
		t.Errorf("expected error for a description without shape")
	}
	if _, err := OpenGRPCSource(nil, "vel"); err == nil {
		t.Errorf("expected error without backends")
	}
}
