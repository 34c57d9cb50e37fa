package processor

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	pb "github.com/nci/gstack/grpc_server/drillservice"
	"github.com/nci/gstack/utils"
	"golang.org/x/net/context"
	"google.golang.org/grpc"
)

const DefaultDrillConcurrency = 16

// DrillGRPC sends point requests to a random backend of Clients.
type DrillGRPC struct {
	Context     context.Context
	In          chan *DrillRequest
	Out         chan *DrillResult
	Error       chan error
	Clients     []string
	Concurrency int
}

func NewDrillGRPC(ctx context.Context, serverAddress []string, errChan chan error) *DrillGRPC {
	return &DrillGRPC{
		Context:     ctx,
		In:          make(chan *DrillRequest, 100),
		Out:         make(chan *DrillResult, 100),
		Error:       errChan,
		Clients:     serverAddress,
		Concurrency: DefaultDrillConcurrency,
	}
}

func (gi *DrillGRPC) Run(verbose bool) {
	defer close(gi.Out)

	if len(gi.Clients) == 0 {
		gi.Error <- fmt.Errorf("no drill backends configured")
		return
	}

	conns := make([]*grpc.ClientConn, len(gi.Clients))
	for i, client := range gi.Clients {
		conn, err := grpc.Dial(client, grpc.WithInsecure(),
			grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(pb.DefaultMaxMsgLen)))
		if err != nil {
			gi.Error <- fmt.Errorf("gRPC connection problem: %v", err)
			return
		}
		defer conn.Close()
		conns[i] = conn
	}

	cLimiter := NewConcLimiter(gi.Concurrency)
	start := time.Now()
	i := 0
	for req := range gi.In {
		i++
		select {
		case <-gi.Context.Done():
			gi.Error <- fmt.Errorf("Drill gRPC context has been cancel: %v", gi.Context.Err())
			cLimiter.Wait()
			return
		default:
			cLimiter.Increase()
			go func(r *DrillRequest, conc *ConcLimiter) {
				defer conc.Decrease()
				c := pb.NewDrillClient(conns[rand.Intn(len(conns))])
				in, err := pb.NewPointRequest(r.Dataset, r.Lon, r.Lat)
				if err != nil {
					gi.Error <- err
					return
				}
				out, err := c.Point(gi.Context, in)
				if err != nil {
					gi.Error <- fmt.Errorf("drill %s at (%v, %v): %v", r.Dataset, r.Lon, r.Lat, err)
					return
				}
				gi.Out <- &DrillResult{Index: r.Index, Values: utils.ListToSeries(out)}
			}(req, cLimiter)
		}
	}
	cLimiter.Wait()
	if verbose {
		log.Println("gRPC Time", time.Since(start), "Processed:", i)
	}
}

// RemotePoints drills every request through backends and returns the
// series in request order.
func RemotePoints(ctx context.Context, backends []string, reqs []*DrillRequest, verbose bool) ([][]float64, error) {
	errChan := make(chan error, len(reqs)+1)
	g := NewDrillGRPC(ctx, backends, errChan)
	go func() {
		for i, r := range reqs {
			r.Index = i
			g.In <- r
		}
		close(g.In)
	}()
	go g.Run(verbose)

	out := make([][]float64, len(reqs))
	for res := range g.Out {
		out[res.Index] = res.Values
	}
	select {
	case err := <-errChan:
		return nil, err
	default:
	}
	return out, nil
}
