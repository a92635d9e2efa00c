package reconcile

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dg-agenda/internal/model"
)

// Thursday 2025-11-06 10:00 UTC, ISO week 45.
var now = time.Date(2025, 11, 6, 10, 0, 0, 0, time.UTC)

func appt(id, date, tm string, st model.Status) model.Appointment {
	return model.Appointment{ID: id, Fields: model.Fields{Date: date, Time: tm, Interlocutor: "I-" + id, Purpose: "P", Location: "L", Status: st}}
}

func ids(items []model.Appointment) []string {
	out := make([]string, len(items))
	for i, a := range items {
		out[i] = a.ID
	}
	return out
}

func newView(f Filter) *View {
	return &View{Filter: f, Loc: time.UTC, Now: func() time.Time { return now }}
}

var sample = []model.Appointment{
	appt("later-today", "2025-11-06", "15:00", model.StatusConfirmed),
	appt("earlier-today", "2025-11-06", "08:00", model.StatusPending),
	appt("monday", "2025-11-03", "09:00", model.StatusValidated),
	appt("sunday", "2025-11-09", "11:00", model.StatusToValidate),
	appt("next-week", "2025-11-10", "09:00", model.StatusPostponed),
	appt("last-month", "2025-10-01", "09:00", model.StatusCancelled),
	appt("broken", "soon", "", model.StatusPending),
}

func TestFilters(t *testing.T) {
	cases := map[Filter][]string{
		FilterAll:      {"last-month", "monday", "earlier-today", "later-today", "sunday", "next-week", "broken"},
		FilterToday:    {"earlier-today", "later-today"},
		FilterWeek:     {"monday", "earlier-today", "later-today", "sunday"},
		FilterUpcoming: {"later-today", "sunday", "next-week"},
		FilterPast:     {"monday", "last-month"},
	}
	for f, want := range cases {
		t.Run(string(f), func(t *testing.T) {
			assert.Equal(t, want, ids(newView(f).Visible(sample)))
		})
	}
}

func TestStatusAndQueryFilters(t *testing.T) {
	v := newView(FilterAll)
	v.Status = model.StatusPending
	assert.Equal(t, []string{"earlier-today", "broken"}, ids(v.Visible(sample)))

	v.Status = ""
	v.Query = "i-MONDAY"
	assert.Equal(t, []string{"monday"}, ids(v.Visible(sample)))
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(" Week ")
	require.NoError(t, err)
	assert.Equal(t, FilterWeek, f)
	f, err = ParseFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, f)
	_, err = ParseFilter("tomorrow")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func todays(n int) []model.Appointment {
	out := make([]model.Appointment, n)
	for i := range out {
		out[i] = appt(fmt.Sprintf("t%02d", i), "2025-11-06", fmt.Sprintf("%02d:%02d", 8+i/6, (i%6)*10), model.StatusPending)
	}
	return out
}

func TestPagination(t *testing.T) {
	v := newView(FilterToday)
	v.Page = 2
	p := v.Apply(todays(20))
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 2, p.Pages)
	assert.Equal(t, 20, p.Total)
	assert.Len(t, p.Items, 5)
	assert.Equal(t, "t15", p.Items[0].ID)
}

// Scenario D
func TestPageClampsWhenListShrinks(t *testing.T) {
	v := newView(FilterToday)
	v.Page = 2
	require.Equal(t, 2, v.Apply(todays(20)).Page)

	p := v.Apply(todays(10))
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 1, v.Page)
	assert.Len(t, p.Items, 10)

	p = v.Apply(nil)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 1, p.Pages)
	assert.Empty(t, p.Items)

	v.Page = -3
	assert.Equal(t, 1, v.Apply(todays(3)).Page)
}

func TestStats(t *testing.T) {
	s := Stats(sample)
	assert.Equal(t, 7, s[""])
	assert.Equal(t, 2, s[model.StatusPending])
	assert.Equal(t, 1, s[model.StatusCancelled])
	assert.Len(t, s, len(model.Statuses)+1)
}

func TestSelectionIsPruned(t *testing.T) {
	v := newView(FilterAll)
	v.Select("monday", "sunday", "gone")
	v.Apply(sample)
	assert.False(t, v.IsSelected("gone"))
	assert.Equal(t, []string{"monday", "sunday"}, ids(v.Selected(sample)))

	v.Deselect("sunday")
	assert.Equal(t, []string{"monday"}, ids(v.Selected(sample)))
	v.ClearSelection()
	assert.Empty(t, v.Selected(sample))
}
