package progress

import "sync"

const defaultBuffer = 64

// Stream is the producer side of one run's event channel. It delivers
// exactly one terminal event and then closes.
type Stream struct {
	mu          sync.Mutex
	ch          chan Event
	closed      bool
	lastPercent int
}

func NewStream(buffer int) *Stream {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Stream{ch: make(chan Event, buffer)}
}

// Events is the consumer side. It is closed after the terminal event.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// Progress sends a status update. Percent never goes backwards within a stream.
func (s *Stream) Progress(message string, percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	percent = clampPercent(percent)
	if percent < s.lastPercent {
		percent = s.lastPercent
	}
	s.lastPercent = percent
	s.ch <- Progress{Message: message, Percent: percent}
}

// Complete sends the success terminal event. Later calls are ignored.
func (s *Stream) Complete(c Complete) {
	s.finish(c)
}

// Fail sends the error terminal event. Later calls are ignored.
func (s *Stream) Fail(message string) {
	s.finish(Failure{Message: message})
}

// Close ends the stream with a Failure if nothing terminal was sent.
func (s *Stream) Close() {
	s.finish(Failure{Message: "ingestion ended without a result"})
}

// Done reports whether the terminal event was sent.
func (s *Stream) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Stream) finish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.ch <- ev
	close(s.ch)
}
