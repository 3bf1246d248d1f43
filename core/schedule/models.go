package schedule

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/atelierhq/atelier/core"
)

// Time-off kinds
const (
	KindHoliday = "holiday"
	KindSick    = "sick"
	KindOther   = "other"
)

// Time-off statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDeclined = "declined"
)

var kindLabels = map[string]string{
	KindHoliday: "Holiday",
	KindSick:    "Sick leave",
	KindOther:   "Time off",
}

type TimeOff struct {
	ID         string    `json:"id"`
	StaffID    string    `json:"staff_id"`
	Kind       string    `json:"kind"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"` // inclusive
	Notes      string    `json:"notes"`
	Status     string    `json:"status"`
	ReviewedBy string    `json:"reviewed_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Days counts the calendar days covered, both ends included.
func (to TimeOff) Days() int {
	return int(core.Day(to.EndDate).Sub(core.Day(to.StartDate)).Hours()/24) + 1
}

// Overlaps reports whether the time-off covers any day of [from, until].
func (to TimeOff) Overlaps(from, until time.Time) bool {
	return !core.Day(to.StartDate).After(core.Day(until)) && !core.Day(to.EndDate).Before(core.Day(from))
}

func (to TimeOff) IsActive() bool { return to.Status != StatusDeclined }

type Entry struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	AllDay      bool      `json:"all_day"`
	StaffID     string    `json:"staff_id,omitempty"`
	ProjectID   string    `json:"project_id,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Overlaps reports whether the entry touches any day of [from, until].
func (e Entry) Overlaps(from, until time.Time) bool {
	return e.StartsAt.Before(core.Day(until).AddDate(0, 0, 1)) && !e.EndsAt.Before(core.Day(from))
}

// AgendaItem is one line of the calendar: an entry or approved time-off.
type AgendaItem struct {
	Kind      string    `json:"kind"` // "entry" | "time_off"
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StaffID   string    `json:"staff_id,omitempty"`
	ProjectID string    `json:"project_id,omitempty"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	AllDay    bool      `json:"all_day"`
}

// BuildAgenda merges entries and time-off into items sorted by start.
func BuildAgenda(entries []Entry, timeOffs []TimeOff) []AgendaItem {
	items := make([]AgendaItem, 0, len(entries)+len(timeOffs))
	for _, e := range entries {
		items = append(items, AgendaItem{
			Kind:      "entry",
			ID:        e.ID,
			Title:     e.Title,
			StaffID:   e.StaffID,
			ProjectID: e.ProjectID,
			Start:     e.StartsAt,
			End:       e.EndsAt,
			AllDay:    e.AllDay,
		})
	}
	for _, to := range timeOffs {
		items = append(items, AgendaItem{
			Kind:    "time_off",
			ID:      to.ID,
			Title:   kindLabels[to.Kind],
			StaffID: to.StaffID,
			Start:   core.Day(to.StartDate),
			End:     core.Day(to.EndDate),
			AllDay:  true,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Start.Equal(items[j].Start) {
			return items[i].Title < items[j].Title
		}
		return items[i].Start.Before(items[j].Start)
	})
	return items
}

type NewTimeOff struct {
	StaffID   string    `json:"staff_id" validate:"omitempty,uuid"`
	Kind      string    `json:"kind" validate:"required,oneof=holiday sick other"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	Notes     string    `json:"notes"`
}

func (nt *NewTimeOff) Validate(validate *validator.Validate) error {
	nt.Kind = core.CleanString(nt.Kind, true /* lower */)
	if nt.Kind == "" {
		nt.Kind = KindHoliday
	}
	nt.Notes = core.CleanString(nt.Notes)
	if !nt.StartDate.IsZero() {
		nt.StartDate = core.Day(nt.StartDate)
	}
	if !nt.EndDate.IsZero() {
		nt.EndDate = core.Day(nt.EndDate)
	}
	if err := validate.Struct(nt); err != nil {
		return err
	}
	if nt.EndDate.Before(nt.StartDate) {
		return core.NewFieldError("end_date", ErrEndBeforeStart)
	}
	return nil
}

type ReviewTimeOff struct {
	Status string `json:"status" validate:"required,oneof=approved declined"`
}

// TimeOffFilter selects time-off. From and To keep requests overlapping those days.
type TimeOffFilter struct {
	StaffID string    `query:"staff_id"`
	Status  []string  `query:"status"`
	From    time.Time `query:"from"`
	To      time.Time `query:"to"`
}

type NewEntry struct {
	Title       string    `json:"title" validate:"required,notblank,max=255"`
	Description string    `json:"description"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at"`
	AllDay      bool      `json:"all_day"`
	StaffID     string    `json:"staff_id" validate:"omitempty,uuid"`
	ProjectID   string    `json:"project_id" validate:"omitempty,uuid"`
}

func (ne *NewEntry) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.Description = core.CleanString(ne.Description)
	if ne.EndsAt.IsZero() {
		ne.EndsAt = ne.StartsAt
	}
	if ne.AllDay && !ne.StartsAt.IsZero() {
		ne.StartsAt, ne.EndsAt = core.Day(ne.StartsAt), core.Day(ne.EndsAt)
	}
	if err := validate.Struct(ne); err != nil {
		return err
	}
	if ne.EndsAt.Before(ne.StartsAt) {
		return core.NewFieldError("ends_at", ErrEndBeforeStart)
	}
	return nil
}

type UpdateEntry struct {
	Title       *string    `json:"title" validate:"omitempty,notblank,max=255"`
	Description *string    `json:"description"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	AllDay      *bool      `json:"all_day"`
	StaffID     *string    `json:"staff_id" validate:"omitempty,uuid"`
	ProjectID   *string    `json:"project_id" validate:"omitempty,uuid"`
}

func (ue *UpdateEntry) Validate(orig Entry, validate *validator.Validate) error {
	if err := validate.Struct(ue); err != nil {
		return err
	}
	e := orig
	ue.apply(&e)
	if e.EndsAt.Before(e.StartsAt) {
		return core.NewFieldError("ends_at", ErrEndBeforeStart)
	}
	return nil
}

func (ue UpdateEntry) apply(e *Entry) {
	if ue.Title != nil {
		e.Title = core.CleanString(*ue.Title)
	}
	if ue.Description != nil {
		e.Description = core.CleanString(*ue.Description)
	}
	if ue.StartsAt != nil {
		e.StartsAt = ue.StartsAt.UTC()
	}
	if ue.EndsAt != nil {
		e.EndsAt = ue.EndsAt.UTC()
	}
	if ue.AllDay != nil {
		e.AllDay = *ue.AllDay
	}
	if e.AllDay {
		e.StartsAt, e.EndsAt = core.Day(e.StartsAt), core.Day(e.EndsAt)
	}
	if ue.StaffID != nil {
		e.StaffID = *ue.StaffID
	}
	if ue.ProjectID != nil {
		e.ProjectID = *ue.ProjectID
	}
}

// EntryFilter selects calendar entries. From and To keep entries overlapping those days.
type EntryFilter struct {
	StaffID   string    `query:"staff_id"`
	ProjectID string    `query:"project_id"`
	From      time.Time `query:"from"`
	To        time.Time `query:"to"`
}
