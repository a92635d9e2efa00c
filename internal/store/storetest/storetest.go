// Package storetest holds the behavioural suite every store.Store
// implementation must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dg-agenda/internal/model"
	"dg-agenda/internal/store"
)

func fields(who string) model.Fields {
	return model.Fields{
		Date: "2025-11-07", Time: "15:00", Interlocutor: who,
		Purpose: "Audience", Location: "FDCUIC", Status: model.StatusToValidate,
	}
}

func newUser(t *testing.T, s store.Store, role model.Role) model.Principal {
	t.Helper()
	ctx := context.Background()
	u := &model.User{ID: uuid.NewString(), Username: "u-" + uuid.NewString()[:8], PasswordHash: "x", Role: role}
	require.NoError(t, s.CreateUser(ctx, u))
	require.NoError(t, s.AddRoleMember(ctx, role, u.ID))
	roles, err := s.RolesOf(ctx, u.ID)
	require.NoError(t, err)
	return model.Principal{UserID: u.ID, Roles: roles}
}

func create(t *testing.T, s store.Store, p model.Principal, acl model.ACL, who string) *model.Appointment {
	t.Helper()
	a := &model.Appointment{ID: uuid.NewString(), Fields: fields(who), CreatorID: p.UserID}
	require.NoError(t, s.CreateAppointment(context.Background(), a, acl))
	return a
}

func indexOf(list []model.Appointment, id string) int {
	for i, a := range list {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// Run exercises s. Records are created with fresh ids so the suite tolerates
// a store that already holds data.
func Run(t *testing.T, s store.Store) {
	ctx := context.Background()

	t.Run("CreateGetRoundTrip", func(t *testing.T) {
		p := newUser(t, s, model.RoleSecretary)
		a := create(t, s, p, model.DefaultACL(p.UserID), "KOCCGA")
		assert.False(t, a.CreatedAt.IsZero())

		got, err := s.GetAppointment(ctx, p, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.Fields, got.Fields)
		assert.Equal(t, p.UserID, got.CreatorID)
	})

	t.Run("DuplicateID", func(t *testing.T) {
		p := newUser(t, s, model.RoleSecretary)
		a := create(t, s, p, model.DefaultACL(p.UserID), "dup")
		again := &model.Appointment{ID: a.ID, Fields: fields("dup")}
		assert.ErrorIs(t, s.CreateAppointment(ctx, again, model.DefaultACL("")), store.ErrDuplicateID)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		p := newUser(t, s, model.RoleDirector)
		first := create(t, s, p, model.DefaultACL(p.UserID), "first")
		time.Sleep(5 * time.Millisecond)
		second := create(t, s, p, model.DefaultACL(p.UserID), "second")

		list, err := s.ListAppointments(ctx, p, 100000)
		require.NoError(t, err)
		i, j := indexOf(list, second.ID), indexOf(list, first.ID)
		require.NotEqual(t, -1, i)
		require.NotEqual(t, -1, j)
		assert.Less(t, i, j)

		capped, err := s.ListAppointments(ctx, p, 1)
		require.NoError(t, err)
		assert.Len(t, capped, 1)
	})

	t.Run("UpdateBumpsTimestamp", func(t *testing.T) {
		p := newUser(t, s, model.RoleSecretary)
		a := create(t, s, p, model.DefaultACL(p.UserID), "before")
		created := a.UpdatedAt
		time.Sleep(5 * time.Millisecond)

		upd := *a
		upd.Interlocutor = "after"
		upd.Status = model.StatusConfirmed
		require.NoError(t, s.UpdateAppointment(ctx, p, &upd))
		assert.True(t, upd.UpdatedAt.After(created))
		assert.True(t, upd.CreatedAt.Equal(a.CreatedAt))

		got, err := s.GetAppointment(ctx, p, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "after", got.Interlocutor)
		assert.Equal(t, model.StatusConfirmed, got.Status)
	})

	t.Run("StatusChangeKeepsOtherFields", func(t *testing.T) {
		p := newUser(t, s, model.RoleDirector)
		a := create(t, s, p, model.DefaultACL(p.UserID), "stale")
		time.Sleep(5 * time.Millisecond)

		edit := *a
		edit.Interlocutor = "edited meanwhile"
		edit.Comments = "moved"
		require.NoError(t, s.UpdateAppointment(ctx, p, &edit))

		got, err := s.UpdateAppointmentStatus(ctx, p, a.ID, model.StatusConfirmed)
		require.NoError(t, err)
		assert.Equal(t, model.StatusConfirmed, got.Status)
		assert.Equal(t, "edited meanwhile", got.Interlocutor)
		assert.Equal(t, "moved", got.Comments)
		assert.False(t, got.UpdatedAt.Before(edit.UpdatedAt))

		_, err = s.UpdateAppointmentStatus(ctx, p, uuid.NewString(), model.StatusConfirmed)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("WriteACL", func(t *testing.T) {
		owner := newUser(t, s, model.RoleSecretary)
		acl := model.ACL{PublicRead: true, WriteUsers: []string{owner.UserID}}
		a := create(t, s, owner, acl, "private write")

		outsider := model.Principal{UserID: uuid.NewString()}
		_, err := s.GetAppointment(ctx, outsider, a.ID)
		require.NoError(t, err)

		upd := *a
		upd.Purpose = "hijack"
		assert.ErrorIs(t, s.UpdateAppointment(ctx, outsider, &upd), model.ErrPermissionDenied)
		assert.ErrorIs(t, s.DeleteAppointment(ctx, outsider, a.ID), model.ErrPermissionDenied)
		_, err = s.UpdateAppointmentStatus(ctx, outsider, a.ID, model.StatusCancelled)
		assert.ErrorIs(t, err, model.ErrPermissionDenied)

		roleMember := newUser(t, s, model.RoleDirector)
		assert.ErrorIs(t, s.DeleteAppointment(ctx, roleMember, a.ID), model.ErrPermissionDenied)
		require.NoError(t, s.DeleteAppointment(ctx, owner, a.ID))
	})

	t.Run("PrivateRecordIsInvisible", func(t *testing.T) {
		owner := newUser(t, s, model.RoleSecretary)
		a := create(t, s, owner, model.ACL{WriteUsers: []string{owner.UserID}}, "hidden")

		other := model.Principal{UserID: uuid.NewString()}
		_, err := s.GetAppointment(ctx, other, a.ID)
		assert.ErrorIs(t, err, model.ErrNotFound)
		list, err := s.ListAppointments(ctx, other, 100000)
		require.NoError(t, err)
		assert.Equal(t, -1, indexOf(list, a.ID))
	})

	t.Run("DeleteUnknown", func(t *testing.T) {
		p := newUser(t, s, model.RoleSecretary)
		assert.ErrorIs(t, s.DeleteAppointment(ctx, p, uuid.NewString()), model.ErrNotFound)
		upd := &model.Appointment{ID: uuid.NewString(), Fields: fields("ghost")}
		assert.ErrorIs(t, s.UpdateAppointment(ctx, p, upd), model.ErrNotFound)
	})

	t.Run("Users", func(t *testing.T) {
		u := &model.User{ID: uuid.NewString(), Username: "dg-" + uuid.NewString()[:8], PasswordHash: "h", Role: model.RoleDirector, DisplayName: "DG"}
		require.NoError(t, s.CreateUser(ctx, u))
		dup := *u
		dup.ID = uuid.NewString()
		assert.ErrorIs(t, s.CreateUser(ctx, &dup), store.ErrDuplicateUser)

		got, err := s.UserByUsername(ctx, u.Username)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, model.RoleDirector, got.Role)

		_, err = s.UserByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, store.ErrUserNotFound)

		require.NoError(t, s.AddRoleMember(ctx, model.RoleDirector, u.ID))
		require.NoError(t, s.AddRoleMember(ctx, model.RoleDirector, u.ID))
		roles, err := s.RolesOf(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, []model.Role{model.RoleDirector}, roles)
	})

	t.Run("Sessions", func(t *testing.T) {
		p := newUser(t, s, model.RoleSecretary)
		id := uuid.NewString()
		require.NoError(t, s.CreateSession(ctx, id, p.UserID, time.Now().Add(time.Hour)))
		ok, err := s.SessionActive(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, s.RevokeSession(ctx, id))
		require.NoError(t, s.RevokeSession(ctx, id))
		ok, err = s.SessionActive(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)

		expired := uuid.NewString()
		require.NoError(t, s.CreateSession(ctx, expired, p.UserID, time.Now().Add(-time.Minute)))
		ok, err = s.SessionActive(ctx, expired)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Watch", func(t *testing.T) {
		wctx, cancel := context.WithCancel(ctx)
		events, err := s.Watch(wctx)
		require.NoError(t, err)

		p := newUser(t, s, model.RoleSecretary)
		a := create(t, s, p, model.DefaultACL(p.UserID), "watched")
		require.NoError(t, s.DeleteAppointment(ctx, p, a.ID))

		want := []model.Event{{Kind: model.EventCreated, ID: a.ID}, {Kind: model.EventDeleted, ID: a.ID}}
		var got []model.Event
		timeout := time.After(5 * time.Second)
		for len(got) < len(want) {
			select {
			case ev := <-events:
				if ev.ID == a.ID {
					got = append(got, ev)
				}
			case <-timeout:
				t.Fatalf("got %v, want %v", got, want)
			}
		}
		assert.Equal(t, want, got)

		cancel()
		for range events {
		}
	})
}
