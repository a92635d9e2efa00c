// Package grpcremote is the remote store client for the self-hosted agenda
// service (cmd/server).
package grpcremote

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"dg-agenda/internal/appointments"
	"dg-agenda/internal/model"
	"dg-agenda/internal/rpc"
	"dg-agenda/internal/wire"
)

type Client struct {
	conn *grpc.ClientConn
	log  zerolog.Logger
}

// Dial connects to target lazily; the first call opens the connection.
// Extra options override the plaintext default transport.
func Dial(target string, log zerolog.Logger, opts ...grpc.DialOption) (*Client, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(wire.Codec{})),
	}
	conn, err := grpc.NewClient(target, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("grpcremote: dial %s: %w", target, err)
	}
	return &Client{conn: conn, log: log.With().Str("component", "grpcremote").Logger()}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) Login(ctx context.Context, username, password string) (*model.Session, error) {
	out := &wire.LoginResponse{}
	err := c.conn.Invoke(ctx, rpc.MethodLogin, &wire.LoginRequest{Username: username, Password: password}, out)
	if err != nil {
		return nil, convert(err)
	}
	return &model.Session{
		UserID:      out.UserID,
		Username:    out.Username,
		Role:        model.Role(out.Role),
		DisplayName: out.DisplayName,
		Token:       out.Token,
	}, nil
}

// Logout revokes s on the server. A session the server already rejects is
// treated as logged out.
func (c *Client) Logout(ctx context.Context, s *model.Session) error {
	if s == nil {
		return nil
	}
	err := c.conn.Invoke(withToken(ctx, s.Token), rpc.MethodLogout, &wire.Empty{}, &wire.Empty{})
	if status.Code(err) == codes.Unauthenticated {
		return nil
	}
	return convert(err)
}

// Backend binds the client to s.
func (c *Client) Backend(s *model.Session) appointments.Backend {
	tok := ""
	if s != nil {
		tok = s.Token
	}
	return &backend{c: c, token: tok}
}

func withToken(ctx context.Context, tok string) context.Context {
	if tok == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+tok)
}

// convert maps a grpc status onto the model error taxonomy.
func convert(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", model.ErrRemote, err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %w", model.ErrRemote, err)
	}
	switch st.Code() {
	case codes.NotFound:
		return model.ErrNotFound
	case codes.PermissionDenied:
		return model.ErrPermissionDenied
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", model.ErrUnauthenticated, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %w: %s", model.ErrRemote, model.ErrValidation, st.Message())
	case codes.Canceled:
		return fmt.Errorf("%w: %w", model.ErrRemote, context.Canceled)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %w", model.ErrRemote, context.DeadlineExceeded)
	}
	return fmt.Errorf("%w: %s: %s", model.ErrRemote, st.Code(), st.Message())
}

type backend struct {
	c     *Client
	token string
}

var _ appointments.Backend = (*backend)(nil)

func (b *backend) invoke(ctx context.Context, method string, req, resp wire.Message) error {
	return convert(b.c.conn.Invoke(withToken(ctx, b.token), method, req, resp))
}

func (b *backend) List(ctx context.Context, limit int) ([]model.Appointment, error) {
	out := &wire.ListResponse{}
	if err := b.invoke(ctx, rpc.MethodListAppointments, &wire.ListRequest{Limit: int32(limit)}, out); err != nil {
		return nil, err
	}
	list := make([]model.Appointment, len(out.Appointments))
	for i, a := range out.Appointments {
		list[i] = a.ToModel()
	}
	return list, nil
}

func single(m *wire.AppointmentMessage) (*model.Appointment, error) {
	if m.Appointment == nil {
		return nil, fmt.Errorf("%w: empty response", model.ErrRemote)
	}
	a := m.Appointment.ToModel()
	return &a, nil
}

func (b *backend) Get(ctx context.Context, id string) (*model.Appointment, error) {
	out := &wire.AppointmentMessage{}
	if err := b.invoke(ctx, rpc.MethodGetAppointment, &wire.IDRequest{ID: id}, out); err != nil {
		return nil, err
	}
	return single(out)
}

// Create sends creatorID for completeness; the server always records the caller.
func (b *backend) Create(ctx context.Context, f model.Fields, creatorID string, acl model.ACL) (*model.Appointment, error) {
	req := &wire.CreateRequest{
		Appointment: wire.FromModel(&model.Appointment{Fields: f, CreatorID: creatorID}),
		ACL:         wire.FromACL(acl),
	}
	out := &wire.AppointmentMessage{}
	if err := b.invoke(ctx, rpc.MethodCreateAppointment, req, out); err != nil {
		return nil, err
	}
	return single(out)
}

func (b *backend) Save(ctx context.Context, a *model.Appointment) (*model.Appointment, error) {
	out := &wire.AppointmentMessage{}
	if err := b.invoke(ctx, rpc.MethodUpdateAppointment, &wire.AppointmentMessage{Appointment: wire.FromModel(a)}, out); err != nil {
		return nil, err
	}
	return single(out)
}

func (b *backend) SaveStatus(ctx context.Context, id string, s model.Status) (*model.Appointment, error) {
	out := &wire.AppointmentMessage{}
	if err := b.invoke(ctx, rpc.MethodUpdateStatus, &wire.StatusRequest{ID: id, Status: string(s)}, out); err != nil {
		return nil, err
	}
	return single(out)
}

func (b *backend) Delete(ctx context.Context, id string) error {
	return b.invoke(ctx, rpc.MethodDeleteAppointment, &wire.IDRequest{ID: id}, &wire.Empty{})
}

// Subscribe opens the Watch stream. The stream lives until Close, ctx ends,
// or the server goes away.
func (b *backend) Subscribe(ctx context.Context) (appointments.Subscription, error) {
	sctx, cancel := context.WithCancel(withToken(ctx, b.token))
	stream, err := b.c.conn.NewStream(sctx, &rpc.ServiceDesc.Streams[0], rpc.MethodWatch)
	if err != nil {
		cancel()
		return nil, convert(err)
	}
	if err := stream.SendMsg(&wire.Empty{}); err != nil && !errors.Is(err, io.EOF) {
		cancel()
		return nil, convert(err)
	}
	if err := stream.CloseSend(); err != nil {
		cancel()
		return nil, convert(err)
	}
	// Headers arrive once the server accepted the stream; an auth failure
	// surfaces here rather than as a dropped subscription.
	if _, err := stream.Header(); err != nil {
		cancel()
		return nil, convert(err)
	}

	s := &subscription{events: make(chan model.Event, 16), cancel: cancel, done: make(chan struct{})}
	go s.run(stream)
	return s, nil
}
