package streaming

import (
	"context"
	"io"
	"sync"
)

type chunk struct {
	delta string
	err   error
}

// Stream is a lazy, forward-only sequence of text deltas. It is single-pass
// and not restartable; re-iterating requires re-issuing the network call.
// Backpressure is exerted naturally by the consumer pulling lazily: the
// producer blocks with at most one in-flight frame.
type Stream struct {
	ch        chan chunk
	done      chan struct{}
	closeOnce sync.Once
	final     error
}

// Producer is the write side of a stream, held by the adapter goroutine that
// pumps frames off the wire.
type Producer struct {
	s *Stream
}

// NewPipe creates a connected Stream and Producer pair.
func NewPipe() (*Stream, *Producer) {
	s := &Stream{
		ch:   make(chan chunk),
		done: make(chan struct{}),
	}
	return s, &Producer{s: s}
}

// Recv blocks until the next text delta arrives. It returns io.EOF after the
// last delta has been delivered, or the underlying transport error.
func (s *Stream) Recv() (string, error) {
	if s.final != nil {
		return "", s.final
	}
	c, ok := <-s.ch
	if !ok {
		s.final = io.EOF
		return "", io.EOF
	}
	if c.err != nil {
		s.final = c.err
		return "", c.err
	}
	return c.delta, nil
}

// Close abandons the stream. The producer stops delivering further results;
// an in-flight network call is not guaranteed to stop immediately.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Collect drains the stream into a single string. It honors ctx cancellation
// between pulls.
func (s *Stream) Collect(ctx context.Context) (string, error) {
	var sb []byte
	for {
		if err := ctx.Err(); err != nil {
			s.Close()
			return string(sb), err
		}
		delta, err := s.Recv()
		if err == io.EOF {
			return string(sb), nil
		}
		if err != nil {
			return string(sb), err
		}
		sb = append(sb, delta...)
	}
}

// Send delivers one delta, blocking until the consumer pulls it. It returns
// false when the consumer has closed the stream.
func (p *Producer) Send(delta string) bool {
	select {
	case p.s.ch <- chunk{delta: delta}:
		return true
	case <-p.s.done:
		return false
	}
}

// CloseSend terminates the stream. A nil error yields io.EOF on the consumer
// side; a non-nil error is delivered once, with no further values.
func (p *Producer) CloseSend(err error) {
	if err != nil {
		select {
		case p.s.ch <- chunk{err: err}:
		case <-p.s.done:
		}
	}
	close(p.s.ch)
}

// Done reports consumer abandonment, for producers that poll.
func (p *Producer) Done() <-chan struct{} {
	return p.s.done
}
