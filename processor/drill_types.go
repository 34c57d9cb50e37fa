package processor

// DrillRequest asks a drill backend for the series of one location.
// Index orders the results of a batch.
type DrillRequest struct {
	Index   int
	Dataset string
	Lon     float64
	Lat     float64
}

type DrillResult struct {
	Index  int
	Values []float64
}
