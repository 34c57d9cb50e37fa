package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "net/http/pprof"

	pb "github.com/nci/gstack/grpc_server/drillservice"
	"github.com/nci/gstack/processor"
	"github.com/nci/gstack/raster"
	"github.com/nci/gstack/utils"
	"golang.org/x/net/context"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type server struct {
	Registry *processor.RegistryHolder
	Limiter  *processor.ConcLimiter
	Verbose  bool
}

func grpcError(err error) error {
	var notFound *processor.DatasetNotFoundError
	var rangeErr *raster.RangeError
	switch {
	case errors.As(err, &notFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.As(err, &rangeErr):
		return status.Error(codes.OutOfRange, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// lookup finds name in the current registry. The registry stays open
// until release is called.
func (s *server) lookup(name string) (*processor.Dataset, func(), error) {
	r, release := s.Registry.Acquire()
	if r == nil {
		return nil, release, status.Error(codes.Unavailable, "registry not loaded")
	}
	d, err := r.Lookup(name)
	if err != nil {
		release()
		return nil, func() {}, grpcError(err)
	}
	return d, release, nil
}

func (s *server) Describe(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	name, err := pb.ParseDescribeRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	d, release, err := s.lookup(name)
	defer release()
	if err != nil {
		return nil, err
	}

	bands, rows, cols := d.Stack.Shape()
	desc := &pb.Description{
		Bounds: d.Stack.Bounds().Slice(),
		Shape:  []int{bands, rows, cols},
		DType:  d.Stack.DType(),
	}
	for _, dates := range d.Stack.Dates() {
		var parts []string
		for _, t := range dates {
			parts = append(parts, t.Format(utils.ISODateFormat))
		}
		desc.Dates = append(desc.Dates, strings.Join(parts, "_"))
	}
	if d.Stack.HasNoData {
		nodata := d.Stack.NoData
		desc.NoData = &nodata
	}
	return pb.NewDescribeResponse(desc)
}

func (s *server) Point(ctx context.Context, in *structpb.Struct) (*structpb.ListValue, error) {
	name, lon, lat, err := pb.ParsePointRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	d, release, err := s.lookup(name)
	defer release()
	if err != nil {
		return nil, err
	}

	s.Limiter.Increase()
	defer s.Limiter.Decrease()
	if ctx.Err() != nil {
		return nil, status.Error(codes.Canceled, ctx.Err().Error())
	}

	values, err := d.Point(lon, lat)
	if err != nil {
		return nil, grpcError(err)
	}
	if s.Verbose {
		log.Printf("Point %s (%v, %v): %d values", name, lon, lat, len(values))
	}
	return utils.SeriesToList(values), nil
}

func main() {
	port := flag.Int("p", 6000, "gRPC server listening port.")
	confDir := flag.String("conf_dir", utils.EtcDir, "Directory of the dataset registry files.")
	poolSize := flag.Int("n", 8, "Maximum number of point reads handled concurrently.")
	keepOpen := flag.Bool("keep_open", true, "Keep raster handles open between reads.")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	utils.InitGdal()

	infoLog := log.New(os.Stdout, "Info: ", log.Ldate|log.Ltime)
	errLog := log.New(os.Stderr, "Error: ", log.Ldate|log.Ltime|log.Lshortfile)

	opts := processor.RegistryOptions{KeepOpen: *keepOpen, Verbose: *verbose}
	load := func() (*utils.Config, error) { return utils.LoadConfig(*confDir) }

	config, err := load()
	if err != nil {
		log.Fatalf("Failed to load dataset registry: %v", err)
	}
	registry, err := processor.NewRegistry(config, opts)
	if err != nil {
		log.Fatalf("Failed to open dataset registry: %v", err)
	}
	holder := processor.NewRegistryHolder(registry)

	utils.WatchConfig(infoLog, errLog, load, func(config *utils.Config) {
		r, err := processor.NewRegistry(config, opts)
		if err != nil {
			errLog.Printf("Failed to reopen dataset registry: %v", err)
			return
		}
		holder.Swap(r)
	})

	s := grpc.NewServer(grpc.MaxRecvMsgSize(pb.DefaultMaxMsgLen), grpc.MaxSendMsgSize(pb.DefaultMaxMsgLen))
	pb.RegisterDrillServer(s, &server{
		Registry: holder,
		Limiter:  processor.NewConcLimiter(*poolSize),
		Verbose:  *verbose,
	})

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-signals
		infoLog.Println("Shutting down drill server")
		s.GracefulStop()
		holder.Swap(nil)
		os.Exit(1)
	}()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}
	infoLog.Printf("Drill server listening on %v with %d datasets", lis.Addr(), len(registry.Names()))

	if err := s.Serve(lis); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
