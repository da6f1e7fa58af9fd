package providers

import (
	"io"
	"strings"
)

// Stream is a pull-based sequence of text deltas from one upstream streaming
// call. The consumer paces production: each Recv reads just far enough into
// the upstream body to yield the next delta, so the outbound write remains
// the rate-limiting step. A Stream is finite and not restartable.
type Stream struct {
	next    func() (string, error)
	closeFn func() error

	reasoning strings.Builder
	done      bool
}

// NewStream builds a stream from a pull function. next yields one delta per
// call and io.EOF when the sequence is over; closeFn may be nil.
func NewStream(next func() (string, error), closeFn func() error) *Stream {
	return &Stream{next: next, closeFn: closeFn}
}

// Recv returns the next text delta. It returns io.EOF once the upstream
// sequence completes normally; any other error means the upstream failed
// mid-stream and the sequence is over.
func (s *Stream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}

	delta, err := s.next()
	if err != nil {
		s.done = true
	}

	return delta, err
}

// Reasoning returns any reasoning text accumulated alongside the deltas.
// It is complete only after Recv has returned io.EOF.
func (s *Stream) Reasoning() string {
	return s.reasoning.String()
}

// Close releases the underlying connection. Safe to call at any point;
// abandoning a stream early cancels the in-flight upstream read.
func (s *Stream) Close() error {
	s.done = true
	if s.closeFn != nil {
		return s.closeFn()
	}

	return nil
}

func (s *Stream) addReasoning(text string) {
	s.reasoning.WriteString(text)
}
