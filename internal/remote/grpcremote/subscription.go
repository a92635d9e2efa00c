package grpcremote

import (
	"errors"
	"io"
	"sync"

	"google.golang.org/grpc"

	"dg-agenda/internal/model"
	"dg-agenda/internal/wire"
)

// ErrStreamEnded is the Err of a subscription the server closed cleanly.
var ErrStreamEnded = errors.New("watch stream ended")

type subscription struct {
	events chan model.Event
	cancel func()
	done   chan struct{}

	mu     sync.Mutex
	err    error
	closed bool
}

func (s *subscription) run(stream grpc.ClientStream) {
	defer close(s.done)
	defer close(s.events)
	for {
		ev := &wire.Event{}
		err := stream.RecvMsg(ev)
		if err != nil {
			s.mu.Lock()
			switch {
			case s.closed:
			case errors.Is(err, io.EOF):
				s.err = ErrStreamEnded
			default:
				s.err = convert(err)
			}
			s.mu.Unlock()
			return
		}
		s.events <- model.Event{Kind: model.EventKind(ev.Kind), ID: ev.ID}
	}
}

func (s *subscription) Events() <-chan model.Event { return s.events }

// Err is nil after Close.
func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	// drain so run is never stuck on a full channel
	go func() {
		for range s.events {
		}
	}()
	<-s.done
	return nil
}
