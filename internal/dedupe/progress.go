package dedupe

// Stage identifies a pipeline stage in progress events and skip
// diagnostics.
type Stage string

const (
	StageClassify    Stage = "classify"
	StagePartialHash Stage = "partial-hash"
	StageFullHash    Stage = "full-hash"
	StageResolve     Stage = "resolve"
)

// Event is a progress notification published by the pipeline. The engine
// publishes and moves on; a slow or absent consumer never blocks forward
// progress.
type Event struct {
	Stage Stage
	Path  string
	// Done and Total are stage-level counters where known (0 otherwise).
	Done  int
	Total int
}

// publish sends ev to ch without blocking. Events are dropped when the
// consumer falls behind.
func publish(ch chan<- Event, ev Event) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}
