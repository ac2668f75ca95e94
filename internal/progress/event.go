// Package progress carries ingestion status from a run to its observer.
package progress

// Event is one message on a run's progress stream. The set of
// implementations is closed: Progress, Complete and Failure.
type Event interface {
	// Terminal reports whether the event ends the stream.
	Terminal() bool
	isEvent()
}

// Progress is an intermediate status update.
type Progress struct {
	Message string
	Percent int
}

// Complete ends a successful run.
type Complete struct {
	TotalPosts    int
	NewPosts      int
	ExistingPosts int
}

// Failure ends a run that could not proceed.
type Failure struct {
	Message string
}

func (Progress) Terminal() bool { return false }
func (Complete) Terminal() bool { return true }
func (Failure) Terminal() bool  { return true }

func (Progress) isEvent() {}
func (Complete) isEvent() {}
func (Failure) isEvent()  {}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
