package reconcile

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"dg-agenda/internal/model"
)

type Filter string

const (
	FilterAll      Filter = "all"
	FilterToday    Filter = "today"
	FilterWeek     Filter = "week"
	FilterUpcoming Filter = "upcoming"
	FilterPast     Filter = "past"
)

var Filters = []Filter{FilterAll, FilterToday, FilterWeek, FilterUpcoming, FilterPast}

func ParseFilter(s string) (Filter, error) {
	f := Filter(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FilterAll, nil
	}
	if slices.Contains(Filters, f) {
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown filter %q", model.ErrValidation, s)
}

// DefaultPageSize is the number of rows per page.
const DefaultPageSize = 15

// View turns a list into what a screen displays: filtered, sorted, paged,
// with a selection of ids for export. The zero value shows everything on
// pages of DefaultPageSize in the local zone.
type View struct {
	Filter Filter
	// Status, when set, keeps only records with that status.
	Status model.Status
	// Query keeps records whose interlocutor, purpose or location contains
	// it, case-insensitively.
	Query    string
	PageSize int
	// Page is 1-based and clamped by every Apply.
	Page int
	Loc  *time.Location
	Now  func() time.Time

	selected map[string]bool
}

// Page is one rendered page of a View.
type Page struct {
	Items []model.Appointment
	Page  int
	Pages int
	// Total counts the records matching the view, across all pages.
	Total int
}

func (v *View) loc() *time.Location {
	if v.Loc == nil {
		return time.Local
	}
	return v.Loc
}

func (v *View) now() time.Time {
	if v.Now == nil {
		return time.Now().In(v.loc())
	}
	return v.Now().In(v.loc())
}

func (v *View) pageSize() int {
	if v.PageSize <= 0 {
		return DefaultPageSize
	}
	return v.PageSize
}

// Visible returns every record matching the view, sorted: chronologically,
// or most recent first for FilterPast.
func (v *View) Visible(items []model.Appointment) []model.Appointment {
	loc, now := v.loc(), v.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	year, week := now.ISOWeek()
	q := strings.ToLower(strings.TrimSpace(v.Query))

	out := make([]model.Appointment, 0, len(items))
	for _, a := range items {
		if v.Status != "" && a.Status != v.Status {
			continue
		}
		if q != "" && !matches(a, q) {
			continue
		}
		day, dayOK := a.Day(loc)
		start, startOK := a.Start(loc)
		keep := true
		switch v.Filter {
		case FilterToday:
			keep = dayOK && day.Equal(today)
		case FilterWeek:
			if dayOK {
				y, w := day.ISOWeek()
				keep = y == year && w == week
			} else {
				keep = false
			}
		case FilterUpcoming:
			keep = startOK && start.After(now)
		case FilterPast:
			keep = startOK && start.Before(now) && !day.Equal(today)
		}
		if keep {
			out = append(out, a)
		}
	}

	desc := v.Filter == FilterPast
	slices.SortStableFunc(out, func(a, b model.Appointment) int {
		sa, oka := a.Start(loc)
		sb, okb := b.Start(loc)
		switch {
		case !oka && !okb:
			return strings.Compare(a.ID, b.ID)
		case !oka:
			return 1
		case !okb:
			return -1
		}
		c := sa.Compare(sb)
		if desc {
			c = -c
		}
		if c == 0 {
			return strings.Compare(a.ID, b.ID)
		}
		return c
	})
	return out
}

func matches(a model.Appointment, q string) bool {
	for _, s := range []string{a.Interlocutor, a.Purpose, a.Location} {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}

// Apply computes the current page, clamping Page into [1, max(1, pages)] so a
// shrinking list never leaves the view on an empty out-of-range page. It also
// drops selected ids that are no longer in items.
func (v *View) Apply(items []model.Appointment) Page {
	vis := v.Visible(items)
	size := v.pageSize()
	pages := max(1, (len(vis)+size-1)/size)
	v.Page = min(max(v.Page, 1), pages)
	v.prune(items)

	lo := (v.Page - 1) * size
	hi := min(lo+size, len(vis))
	return Page{Items: vis[lo:hi], Page: v.Page, Pages: pages, Total: len(vis)}
}

// Stats counts records per status, plus the total under the empty status.
func Stats(items []model.Appointment) map[model.Status]int {
	out := make(map[model.Status]int, len(model.Statuses)+1)
	for _, s := range model.Statuses {
		out[s] = 0
	}
	for _, a := range items {
		out[a.Status]++
	}
	out[""] = len(items)
	return out
}

func (v *View) Select(ids ...string) {
	if v.selected == nil {
		v.selected = map[string]bool{}
	}
	for _, id := range ids {
		v.selected[id] = true
	}
}

func (v *View) Deselect(ids ...string) {
	for _, id := range ids {
		delete(v.selected, id)
	}
}

func (v *View) ClearSelection() { v.selected = nil }

func (v *View) IsSelected(id string) bool { return v.selected[id] }

// Selected returns the selected records among items, in view order.
func (v *View) Selected(items []model.Appointment) []model.Appointment {
	var out []model.Appointment
	for _, a := range v.Visible(items) {
		if v.selected[a.ID] {
			out = append(out, a)
		}
	}
	return out
}

func (v *View) prune(items []model.Appointment) {
	if len(v.selected) == 0 {
		return
	}
	present := make(map[string]bool, len(items))
	for _, a := range items {
		present[a.ID] = true
	}
	for id := range v.selected {
		if !present[id] {
			delete(v.selected, id)
		}
	}
}
