package appointments_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dg-agenda/internal/appointments"
	"dg-agenda/internal/appointments/apptest"
	"dg-agenda/internal/model"
)

var sess = &model.Session{UserID: "u-sec", Username: "secretaire", Role: model.RoleSecretary}

func TestCreateThenGet(t *testing.T) {
	b := apptest.New()
	repo := appointments.New(b, sess)
	ctx := context.Background()

	f := apptest.Fields("KOCCGA")
	created, err := repo.Create(ctx, f)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "u-sec", created.CreatorID)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, f, got.Fields)
}

func TestCreateWithoutSession(t *testing.T) {
	repo := appointments.New(apptest.New(), nil)
	a, err := repo.Create(context.Background(), apptest.Fields("x"))
	require.NoError(t, err)
	assert.Empty(t, a.CreatorID)
}

func TestListIsCapped(t *testing.T) {
	b := apptest.New()
	for i := 0; i < 12; i++ {
		b.Seed(apptest.Fields("x"))
	}
	repo := appointments.New(apptest.ListUncapped{Backend: b}, sess, appointments.WithMaxRetrieval(10))

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 10)
	assert.Equal(t, "rec-012", list[0].ID)
}

func TestUpdateStatusIsIdempotent(t *testing.T) {
	b := apptest.New()
	seeded := b.Seed(apptest.Fields("DJ Taff"))
	repo := appointments.New(b, sess)
	ctx := context.Background()

	first, err := repo.UpdateStatus(ctx, seeded[0].ID, model.StatusConfirmed)
	require.NoError(t, err)
	second, err := repo.UpdateStatus(ctx, seeded[0].ID, model.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, first.Fields, second.Fields)
	assert.Equal(t, model.StatusConfirmed, second.Status)
	assert.Equal(t, seeded[0].Interlocutor, second.Interlocutor)
}

func TestUpdateStatusKeepsConcurrentEdit(t *testing.T) {
	b := apptest.New()
	id := b.Seed(apptest.Fields("KOCCGA"))[0].ID
	repo := appointments.New(b, sess)
	ctx := context.Background()

	// a field edit lands while the status change is on its way
	b.SetHook(func(ctx context.Context, op, _ string) error {
		if op != "status" {
			return nil
		}
		f := apptest.Fields("KOCCGA")
		f.Location = "Salle B"
		_, err := repo.Update(ctx, id, f)
		return err
	})
	got, err := repo.UpdateStatus(ctx, id, model.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)
	assert.Equal(t, "Salle B", got.Location)
	assert.Equal(t, "Salle B", b.Items()[0].Location)
	assert.Equal(t, 1, b.Calls("status"))
	assert.Equal(t, 1, b.Calls("save"))
}

func TestUpdateStatusRejectsUnknown(t *testing.T) {
	b := apptest.New()
	id := b.Seed(apptest.Fields("x"))[0].ID
	_, err := appointments.New(b, sess).UpdateStatus(context.Background(), id, "archived")
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Equal(t, 0, b.Calls("status"))
}

func TestUpdateOverwritesFields(t *testing.T) {
	b := apptest.New()
	seeded := b.Seed(apptest.Fields("before"))
	repo := appointments.New(b, sess)

	f := apptest.Fields("after")
	f.Comments = "Date à confirmer"
	got, err := repo.Update(context.Background(), seeded[0].ID, f)
	require.NoError(t, err)
	assert.Equal(t, f, got.Fields)
	assert.True(t, got.UpdatedAt.After(seeded[0].UpdatedAt))
}

func TestNotFound(t *testing.T) {
	repo := appointments.New(apptest.New(), sess)
	ctx := context.Background()

	err := repo.Delete(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.False(t, errors.Is(err, model.ErrRemote))

	_, err = repo.Update(ctx, "missing", apptest.Fields("x"))
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = repo.UpdateStatus(ctx, "missing", model.StatusPending)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRemoteErrorsAreClassified(t *testing.T) {
	b := apptest.New()
	repo := appointments.New(b, sess)
	b.SetHook(func(context.Context, string, string) error { return errors.New("connection reset") })

	_, err := repo.List(context.Background())
	assert.ErrorIs(t, err, model.ErrRemote)
	assert.Contains(t, err.Error(), "connection reset")

	b.SetHook(func(context.Context, string, string) error { return model.ErrPermissionDenied })
	_, err = repo.Create(context.Background(), apptest.Fields("x"))
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
	assert.ErrorIs(t, err, model.ErrRemote)
}

func TestDeleteChecksExistenceFirst(t *testing.T) {
	b := apptest.New()
	seeded := b.Seed(apptest.Fields("x"))
	repo := appointments.New(b, sess)

	require.NoError(t, repo.Delete(context.Background(), seeded[0].ID))
	assert.Equal(t, 1, b.Calls("get"))
	assert.Equal(t, 1, b.Calls("delete"))
	assert.Empty(t, b.Items())
}
