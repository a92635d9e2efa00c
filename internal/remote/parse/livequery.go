package parse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dg-agenda/internal/appointments"
	"dg-agenda/internal/model"
)

const (
	handshakeTimeout = 10 * time.Second
	requestID        = 1
)

// liveMessage covers every LiveQuery frame the driver reads or writes.
type liveMessage struct {
	Op            string     `json:"op"`
	ApplicationID string     `json:"applicationId,omitempty"`
	RESTAPIKey    string     `json:"restAPIKey,omitempty"`
	SessionToken  string     `json:"sessionToken,omitempty"`
	RequestID     int        `json:"requestId,omitempty"`
	Query         *liveQuery `json:"query,omitempty"`
	Object        *object    `json:"object,omitempty"`
	Code          int        `json:"code,omitempty"`
	Error         string     `json:"error,omitempty"`
}

type liveQuery struct {
	ClassName string         `json:"className"`
	Where     map[string]any `json:"where"`
}

var liveKinds = map[string]model.EventKind{
	"create": model.EventCreated,
	"update": model.EventUpdated,
	"enter":  model.EventUpdated,
	"leave":  model.EventUpdated,
	"delete": model.EventDeleted,
}

// Subscribe opens a LiveQuery subscription on the whole Appointment class.
func (b *backend) Subscribe(ctx context.Context) (appointments.Subscription, error) {
	conn, _, err := b.c.dialer.DialContext(ctx, b.c.cfg.LiveQueryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: livequery dial: %w", model.ErrRemote, err)
	}
	if err := b.handshake(conn); err != nil {
		conn.Close()
		return nil, err
	}

	s := &liveSubscription{conn: conn, events: make(chan model.Event, 16), done: make(chan struct{})}
	go s.run()
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	s.mu.Lock()
	s.stop = stop
	s.mu.Unlock()
	return s, nil
}

func (b *backend) handshake(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	cfg := b.c.cfg
	if err := conn.WriteJSON(liveMessage{Op: "connect", ApplicationID: cfg.AppID, RESTAPIKey: cfg.RESTKey, SessionToken: b.token}); err != nil {
		return fmt.Errorf("%w: livequery connect: %w", model.ErrRemote, err)
	}
	if err := expect(conn, "connected"); err != nil {
		return err
	}
	sub := liveMessage{
		Op:           "subscribe",
		RequestID:    requestID,
		Query:        &liveQuery{ClassName: className, Where: map[string]any{}},
		SessionToken: b.token,
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("%w: livequery subscribe: %w", model.ErrRemote, err)
	}
	return expect(conn, "subscribed")
}

// expect reads frames until op arrives or the server reports an error.
func expect(conn *websocket.Conn, op string) error {
	for {
		var m liveMessage
		if err := conn.ReadJSON(&m); err != nil {
			return fmt.Errorf("%w: livequery %s: %w", model.ErrRemote, op, err)
		}
		switch m.Op {
		case op:
			return nil
		case "error":
			return liveError(m)
		}
	}
}

func liveError(m liveMessage) error {
	if m.Code == codeInvalidSessionToken {
		return fmt.Errorf("%w: livequery: %s", model.ErrUnauthenticated, m.Error)
	}
	return fmt.Errorf("%w: livequery: code %d: %s", model.ErrRemote, m.Code, m.Error)
}

type liveSubscription struct {
	conn   *websocket.Conn
	events chan model.Event
	done   chan struct{}
	stop   func() bool

	mu     sync.Mutex
	err    error
	closed bool
	once   sync.Once
}

func (s *liveSubscription) run() {
	defer close(s.done)
	defer close(s.events)
	for {
		var m liveMessage
		err := s.conn.ReadJSON(&m)
		if err == nil && m.Op == "error" {
			err = liveError(m)
		}
		if err != nil {
			s.mu.Lock()
			if !s.closed {
				if !errors.Is(err, model.ErrRemote) {
					err = fmt.Errorf("%w: livequery: %w", model.ErrRemote, err)
				}
				s.err = err
			}
			s.mu.Unlock()
			return
		}
		kind, ok := liveKinds[m.Op]
		if !ok || m.RequestID != requestID {
			continue
		}
		ev := model.Event{Kind: kind}
		if m.Object != nil {
			ev.ID = m.Object.ObjectID
		}
		s.events <- ev
	}
}

func (s *liveSubscription) Events() <-chan model.Event { return s.events }

func (s *liveSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *liveSubscription) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		stop := s.stop
		s.mu.Unlock()
		if stop != nil {
			stop()
		}

		deadline := time.Now().Add(time.Second)
		_ = s.conn.SetWriteDeadline(deadline)
		_ = s.conn.WriteJSON(liveMessage{Op: "unsubscribe", RequestID: requestID})
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = s.conn.Close()

		go func() {
			for range s.events {
			}
		}()
	})
	<-s.done
	return nil
}
