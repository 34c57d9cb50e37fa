package processor

import (
	"context"
	"fmt"
	"log"
)

// TileJob carries one tile request through the pipeline stages.
type TileJob struct {
	Request   *TileRequest
	Reader    *MaskedTileReader
	Algorithm Algorithm
	Scale     ScaleParams
	Palette   *Palette

	Tile  *Tile
	Bytes *ByteTile
}

// TileFetcher decodes the masked tile of each job.
type TileFetcher struct {
	Context context.Context
	In      chan *TileJob
	Out     chan *TileJob
	Error   chan error
}

func NewTileFetcher(ctx context.Context, errChan chan error) *TileFetcher {
	return &TileFetcher{
		Context: ctx,
		In:      make(chan *TileJob, 100),
		Out:     make(chan *TileJob, 100),
		Error:   errChan,
	}
}

func (f *TileFetcher) Run(verbose bool) {
	defer close(f.Out)

	for job := range f.In {
		select {
		case <-f.Context.Done():
			f.Error <- fmt.Errorf("Tile fetcher context has been cancel: %v", f.Context.Err())
			return
		default:
		}

		req := job.Request
		tile, err := job.Reader.FetchTile(f.Context, req.X, req.Y, req.Z, req.TileSize, req.Band)
		if err != nil {
			f.Error <- err
			return
		}
		if verbose {
			log.Printf("fetched %v from %s: %d valid pixels", req, job.Reader.Primary, tile.Valid())
		}
		job.Tile = tile
		f.Out <- job
	}
}

// AlgorithmApplier runs the post-processing algorithm of each job.
type AlgorithmApplier struct {
	In    chan *TileJob
	Out   chan *TileJob
	Error chan error
}

func NewAlgorithmApplier(errChan chan error) *AlgorithmApplier {
	return &AlgorithmApplier{
		In:    make(chan *TileJob, 100),
		Out:   make(chan *TileJob, 100),
		Error: errChan,
	}
}

func (a *AlgorithmApplier) Run() {
	defer close(a.Out)

	for job := range a.In {
		if job.Algorithm != nil && !job.Tile.Empty {
			tile, err := job.Algorithm.Apply(job.Tile)
			if err != nil {
				a.Error <- fmt.Errorf("algorithm %s: %v", job.Algorithm.Name(), err)
				return
			}
			job.Tile = tile
		}
		if job.Tile.IsComplex() {
			// Complex tiles without an algorithm are shown as amplitude.
			job.Tile, _ = Amplitude{}.Apply(job.Tile)
		}
		a.Out <- job
	}
}

type TilePipeline struct {
	Context context.Context
	Error   chan error
	Verbose bool
}

func InitTilePipeline(ctx context.Context, verbose bool, errChan chan error) *TilePipeline {
	return &TilePipeline{
		Context: ctx,
		Error:   errChan,
		Verbose: verbose,
	}
}

// Process returns a channel delivering the PNG of job. On failure the
// error is sent on the pipeline error channel before the output closes.
func (tp *TilePipeline) Process(job *TileJob) chan []byte {
	f := NewTileFetcher(tp.Context, tp.Error)
	go func() {
		f.In <- job
		close(f.In)
	}()

	a := NewAlgorithmApplier(tp.Error)
	s := NewTileScaler(tp.Error)
	enc := NewPNGEncoder(tp.Error)

	a.In = f.Out
	s.In = a.Out
	enc.In = s.Out

	go f.Run(tp.Verbose)
	go a.Run()
	go s.Run()
	go enc.Run()

	return enc.Out
}
