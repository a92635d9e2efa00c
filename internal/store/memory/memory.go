// Package memory is an in-process store.Store used for development and tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"dg-agenda/internal/model"
	"dg-agenda/internal/store"
)

type record struct {
	a   model.Appointment
	acl model.ACL
	seq int64
}

type session struct {
	userID    string
	expiresAt time.Time
	revoked   bool
}

type Store struct {
	mu       sync.Mutex
	seq      int64
	appts    map[string]*record
	users    map[string]*model.User
	roles    map[model.Role][]string
	sessions map[string]*session
	watchers map[chan model.Event]struct{}
	now      func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		appts:    map[string]*record{},
		users:    map[string]*model.User{},
		roles:    map[model.Role][]string{},
		sessions: map[string]*session{},
		watchers: map[chan model.Event]struct{}{},
		now:      time.Now,
	}
}

func (s *Store) ListAppointments(_ context.Context, p model.Principal, limit int) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := make([]*record, 0, len(s.appts))
	for _, r := range s.appts {
		if r.acl.CanRead(p) {
			recs = append(recs, r)
		}
	}
	// creation order breaks timestamp ties
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].a.CreatedAt.Equal(recs[j].a.CreatedAt) {
			return recs[i].a.CreatedAt.After(recs[j].a.CreatedAt)
		}
		return recs[i].seq > recs[j].seq
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	out := make([]model.Appointment, len(recs))
	for i, r := range recs {
		out[i] = r.a
	}
	return out, nil
}

func (s *Store) GetAppointment(_ context.Context, p model.Principal, id string) (*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.appts[id]
	if !ok || !r.acl.CanRead(p) {
		return nil, model.ErrNotFound
	}
	a := r.a
	return &a, nil
}

func (s *Store) CreateAppointment(_ context.Context, a *model.Appointment, acl model.ACL) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appts[a.ID]; ok {
		return store.ErrDuplicateID
	}
	now := s.now()
	a.CreatedAt, a.UpdatedAt = now, now
	s.seq++
	s.appts[a.ID] = &record{a: *a, acl: acl, seq: s.seq}
	s.publish(model.Event{Kind: model.EventCreated, ID: a.ID})
	return nil
}

func (s *Store) UpdateAppointment(_ context.Context, p model.Principal, a *model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.appts[a.ID]
	if !ok || !r.acl.CanRead(p) {
		return model.ErrNotFound
	}
	if !r.acl.CanWrite(p) {
		return model.ErrPermissionDenied
	}
	r.a.Fields = a.Fields
	r.a.UpdatedAt = s.now()
	*a = r.a
	s.publish(model.Event{Kind: model.EventUpdated, ID: a.ID})
	return nil
}

func (s *Store) UpdateAppointmentStatus(_ context.Context, p model.Principal, id string, st model.Status) (*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.appts[id]
	if !ok || !r.acl.CanRead(p) {
		return nil, model.ErrNotFound
	}
	if !r.acl.CanWrite(p) {
		return nil, model.ErrPermissionDenied
	}
	r.a.Status = st
	r.a.UpdatedAt = s.now()
	a := r.a
	s.publish(model.Event{Kind: model.EventUpdated, ID: id})
	return &a, nil
}

func (s *Store) DeleteAppointment(_ context.Context, p model.Principal, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.appts[id]
	if !ok || !r.acl.CanRead(p) {
		return model.ErrNotFound
	}
	if !r.acl.CanWrite(p) {
		return model.ErrPermissionDenied
	}
	delete(s.appts, id)
	s.publish(model.Event{Kind: model.EventDeleted, ID: id})
	return nil
}

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.users {
		if x.Username == u.Username {
			return store.ErrDuplicateUser
		}
	}
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) UserByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (s *Store) UserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) AddRoleMember(_ context.Context, role model.Role, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.roles[role], userID) {
		s.roles[role] = append(s.roles[role], userID)
	}
	return nil
}

func (s *Store) RolesOf(_ context.Context, userID string) ([]model.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Role
	for role, members := range s.roles {
		if slices.Contains(members, userID) {
			out = append(out, role)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (s *Store) CreateSession(_ context.Context, id, userID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &session{userID: userID, expiresAt: expiresAt}
	return nil
}

func (s *Store) SessionActive(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ss, ok := s.sessions[id]
	return ok && !ss.revoked && s.now().Before(ss.expiresAt), nil
}

func (s *Store) RevokeSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ss, ok := s.sessions[id]; ok {
		ss.revoked = true
	}
	return nil
}

func (s *Store) Watch(ctx context.Context) (<-chan model.Event, error) {
	ch := make(chan model.Event, 64)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, ch)
		s.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

// publish must be called with mu held. Slow watchers lose events rather than
// block writers; consumers re-list on any event anyway.
func (s *Store) publish(ev model.Event) {
	for ch := range s.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}
