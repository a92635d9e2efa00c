package rpc

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"dg-agenda/internal/model"
	"dg-agenda/internal/wire"
)

// fieldsFrom validates the editable part of m. Status may be a code or a label.
func fieldsFrom(m *wire.Appointment) (model.Fields, error) {
	if m == nil {
		return model.Fields{}, status.Error(codes.InvalidArgument, "appointment required")
	}
	f := m.ToModel().Fields
	if m.Status != "" {
		st, err := model.ParseStatus(m.Status)
		if err != nil {
			return model.Fields{}, status.Error(codes.InvalidArgument, err.Error())
		}
		f.Status = st
	}
	if err := f.Validate(); err != nil {
		return model.Fields{}, status.Error(codes.InvalidArgument, err.Error())
	}
	return f, nil
}

func (h *Handler) ListAppointments(ctx context.Context, req *wire.ListRequest) (*wire.ListResponse, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}
	limit := int(req.Limit)
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	apts, err := h.store.ListAppointments(ctx, p, limit)
	if err != nil {
		return nil, h.storeErr(err, "list")
	}

	out := make([]*wire.Appointment, len(apts))
	for i := range apts {
		out[i] = wire.FromModel(&apts[i])
	}
	return &wire.ListResponse{Appointments: out}, nil
}

// CreateAppointment assigns the id and sets the creator to the caller
// whatever the request says. A missing ACL gets the default policy.
func (h *Handler) CreateAppointment(ctx context.Context, req *wire.CreateRequest) (*wire.AppointmentMessage, error) {
	p, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}
	f, err := fieldsFrom(req.Appointment)
	if err != nil {
		return nil, err
	}

	acl := model.DefaultACL(p.UserID)
	if req.ACL != nil {
		acl = req.ACL.ToModel()
		for _, r := range acl.WriteRoles {
			if !r.Valid() {
				return nil, status.Errorf(codes.InvalidArgument, "unknown role %q", r)
			}
		}
	}

	apt := &model.Appointment{
		ID:        uuid.New().String(),
		Fields:    f,
		CreatorID: p.UserID,
	}
	if err := h.store.CreateAppointment(ctx, apt, acl); err != nil {
		return nil, h.storeErr(err, "create")
	}
	return &wire.AppointmentMessage{Appointment: wire.FromModel(apt)}, nil
}

func (h *Handler) GetAppointment(ctx context.Context, req *wire.IDRequest) (*wire.AppointmentMessage, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	p, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}
	apt, err := h.store.GetAppointment(ctx, p, req.ID)
	if err != nil {
		return nil, h.storeErr(err, "get")
	}
	return &wire.AppointmentMessage{Appointment: wire.FromModel(apt)}, nil
}

// UpdateAppointment overwrites every editable field; identity, creator and
// creation time are kept from the stored record.
func (h *Handler) UpdateAppointment(ctx context.Context, req *wire.AppointmentMessage) (*wire.AppointmentMessage, error) {
	if req.Appointment == nil || req.Appointment.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	p, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}
	f, err := fieldsFrom(req.Appointment)
	if err != nil {
		return nil, err
	}

	apt := &model.Appointment{ID: req.Appointment.ID, Fields: f}
	if err := h.store.UpdateAppointment(ctx, p, apt); err != nil {
		return nil, h.storeErr(err, "update")
	}
	return &wire.AppointmentMessage{Appointment: wire.FromModel(apt)}, nil
}

// UpdateAppointmentStatus writes the status alone, so edits committed since
// the caller last read the record are kept.
func (h *Handler) UpdateAppointmentStatus(ctx context.Context, req *wire.StatusRequest) (*wire.AppointmentMessage, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	st, err := model.ParseStatus(req.Status)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	p, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}
	apt, err := h.store.UpdateAppointmentStatus(ctx, p, req.ID, st)
	if err != nil {
		return nil, h.storeErr(err, "update status")
	}
	return &wire.AppointmentMessage{Appointment: wire.FromModel(apt)}, nil
}

func (h *Handler) DeleteAppointment(ctx context.Context, req *wire.IDRequest) (*wire.Empty, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	p, err := h.principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.store.DeleteAppointment(ctx, p, req.ID); err != nil {
		return nil, h.storeErr(err, "delete")
	}
	return &wire.Empty{}, nil
}

// Watch streams change notifications until the client goes away. Events
// carry only kind and id; receivers re-list.
func (h *Handler) Watch(_ *wire.Empty, stream WatchStream) error {
	ctx := stream.Context()
	events, err := h.store.Watch(ctx)
	if err != nil {
		return h.storeErr(err, "watch")
	}
	if err := stream.SendHeader(nil); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return status.Error(codes.Unavailable, "event source closed")
			}
			if err := stream.Send(&wire.Event{Kind: string(ev.Kind), ID: ev.ID}); err != nil {
				return err
			}
		}
	}
}
