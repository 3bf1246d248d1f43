package inmemdb

import (
	"cmp"
	"context"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/schedule"
)

var (
	timeOffOrdering = comparators[schedule.TimeOff]{
		"start_date": func(a, b schedule.TimeOff) int { return timeCmp(a.StartDate, b.StartDate) },
		"created_at": func(a, b schedule.TimeOff) int { return timeCmp(a.CreatedAt, b.CreatedAt) },
	}
	entryOrdering = comparators[schedule.Entry]{
		"starts_at": func(a, b schedule.Entry) int { return timeCmp(a.StartsAt, b.StartsAt) },
		"title":     func(a, b schedule.Entry) int { return cmp.Compare(a.Title, b.Title) },
	}
)

type scheduleRepository struct {
	timeOffs *table[schedule.TimeOff]
	entries  *table[schedule.Entry]
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(db *DB) *scheduleRepository {
	return &scheduleRepository{timeOffs: db.timeOffs, entries: db.entries}
}

// Time-off

func (r *scheduleRepository) CreateTimeOff(_ context.Context, to schedule.TimeOff) (schedule.TimeOff, error) {
	to.ID = uuid.NewString()
	to.StartDate, to.EndDate = core.Day(to.StartDate), core.Day(to.EndDate)
	r.timeOffs.insert(to.ID, to)
	return to, nil
}

func (r *scheduleRepository) QueryTimeOff(_ context.Context, filter *schedule.TimeOffFilter) ([]schedule.TimeOff, error) {
	timeOffs := r.timeOffs.filter(func(to schedule.TimeOff) bool {
		if filter == nil {
			return true
		}
		if filter.StaffID != "" && to.StaffID != filter.StaffID {
			return false
		}
		if len(filter.Status) > 0 && !core.Contains(filter.Status, to.Status) {
			return false
		}
		if !filter.From.IsZero() && to.EndDate.Before(core.Day(filter.From)) {
			return false
		}
		if !filter.To.IsZero() && to.StartDate.After(core.Day(filter.To)) {
			return false
		}
		return true
	})
	sortRows(timeOffs, nil, timeOffOrdering,
		core.DBOrdering{Field: "start_date", Ascending: true}, core.DBOrdering{Field: "created_at", Ascending: true})
	return timeOffs, nil
}

func (r *scheduleRepository) GetTimeOffByID(_ context.Context, id string) (schedule.TimeOff, error) {
	if to, ok := r.timeOffs.get(id); ok {
		return to, nil
	}
	return schedule.TimeOff{}, schedule.ErrNotFound
}

func (r *scheduleRepository) UpdateTimeOff(_ context.Context, to schedule.TimeOff) (schedule.TimeOff, error) {
	if !r.timeOffs.update(to.ID, to) {
		return schedule.TimeOff{}, schedule.ErrNotFound
	}
	return to, nil
}

func (r *scheduleRepository) DeleteTimeOff(_ context.Context, id string) error {
	if !r.timeOffs.remove(id) {
		return schedule.ErrNotFound
	}
	return nil
}

// Calendar entries

func (r *scheduleRepository) CreateEntry(_ context.Context, e schedule.Entry) (schedule.Entry, error) {
	e.ID = uuid.NewString()
	r.entries.insert(e.ID, e)
	return e, nil
}

func (r *scheduleRepository) QueryEntries(_ context.Context, filter *schedule.EntryFilter) ([]schedule.Entry, error) {
	entries := r.entries.filter(func(e schedule.Entry) bool {
		if filter == nil {
			return true
		}
		if filter.StaffID != "" && e.StaffID != filter.StaffID {
			return false
		}
		if filter.ProjectID != "" && e.ProjectID != filter.ProjectID {
			return false
		}
		if !filter.From.IsZero() && e.EndsAt.Before(core.Day(filter.From)) {
			return false
		}
		if !filter.To.IsZero() && !e.StartsAt.Before(core.Day(filter.To).AddDate(0, 0, 1)) {
			return false
		}
		return true
	})
	sortRows(entries, nil, entryOrdering,
		core.DBOrdering{Field: "starts_at", Ascending: true}, core.DBOrdering{Field: "title", Ascending: true})
	return entries, nil
}

func (r *scheduleRepository) GetEntryByID(_ context.Context, id string) (schedule.Entry, error) {
	if e, ok := r.entries.get(id); ok {
		return e, nil
	}
	return schedule.Entry{}, schedule.ErrEntryNotFound
}

func (r *scheduleRepository) UpdateEntry(_ context.Context, e schedule.Entry) (schedule.Entry, error) {
	if !r.entries.update(e.ID, e) {
		return schedule.Entry{}, schedule.ErrEntryNotFound
	}
	return e, nil
}

func (r *scheduleRepository) DeleteEntry(_ context.Context, id string) error {
	if !r.entries.remove(id) {
		return schedule.ErrEntryNotFound
	}
	return nil
}
