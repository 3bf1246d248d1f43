package pgrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/schedule"
)

const (
	timeOffColumns = "id, staff_id, kind, start_date, end_date, notes, status, reviewed_by, created_at, updated_at"
	entryColumns   = "id, title, description, starts_at, ends_at, all_day, staff_id, project_id, created_by, created_at, updated_at"
)

type (
	timeOffRow struct {
		ID         string      `db:"id"`
		StaffID    string      `db:"staff_id"`
		Kind       string      `db:"kind"`
		StartDate  time.Time   `db:"start_date"`
		EndDate    time.Time   `db:"end_date"`
		Notes      string      `db:"notes"`
		Status     string      `db:"status"`
		ReviewedBy null.String `db:"reviewed_by"`
		CreatedAt  time.Time   `db:"created_at"`
		UpdatedAt  time.Time   `db:"updated_at"`
	}

	entryRow struct {
		ID          string      `db:"id"`
		Title       string      `db:"title"`
		Description string      `db:"description"`
		StartsAt    time.Time   `db:"starts_at"`
		EndsAt      time.Time   `db:"ends_at"`
		AllDay      bool        `db:"all_day"`
		StaffID     null.String `db:"staff_id"`
		ProjectID   null.String `db:"project_id"`
		CreatedBy   null.String `db:"created_by"`
		CreatedAt   time.Time   `db:"created_at"`
		UpdatedAt   time.Time   `db:"updated_at"`
	}
)

func toTimeOffRow(to schedule.TimeOff) timeOffRow {
	return timeOffRow{
		ID:         to.ID,
		StaffID:    to.StaffID,
		Kind:       to.Kind,
		StartDate:  core.Day(to.StartDate),
		EndDate:    core.Day(to.EndDate),
		Notes:      to.Notes,
		Status:     to.Status,
		ReviewedBy: null.NewString(to.ReviewedBy, to.ReviewedBy != ""),
		CreatedAt:  to.CreatedAt.UTC(),
		UpdatedAt:  to.UpdatedAt.UTC(),
	}
}

func (row timeOffRow) timeOff() schedule.TimeOff {
	return schedule.TimeOff{
		ID:         row.ID,
		StaffID:    row.StaffID,
		Kind:       row.Kind,
		StartDate:  core.Day(row.StartDate),
		EndDate:    core.Day(row.EndDate),
		Notes:      row.Notes,
		Status:     row.Status,
		ReviewedBy: row.ReviewedBy.String,
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
}

func toEntryRow(e schedule.Entry) entryRow {
	return entryRow{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		StartsAt:    e.StartsAt.UTC(),
		EndsAt:      e.EndsAt.UTC(),
		AllDay:      e.AllDay,
		StaffID:     null.NewString(e.StaffID, e.StaffID != ""),
		ProjectID:   null.NewString(e.ProjectID, e.ProjectID != ""),
		CreatedBy:   null.NewString(e.CreatedBy, e.CreatedBy != ""),
		CreatedAt:   e.CreatedAt.UTC(),
		UpdatedAt:   e.UpdatedAt.UTC(),
	}
}

func (row entryRow) entry() schedule.Entry {
	return schedule.Entry{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		StartsAt:    row.StartsAt.UTC(),
		EndsAt:      row.EndsAt.UTC(),
		AllDay:      row.AllDay,
		StaffID:     row.StaffID.String,
		ProjectID:   row.ProjectID.String,
		CreatedBy:   row.CreatedBy.String,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

type scheduleRepository struct {
	repo
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(db *sqlx.DB) *scheduleRepository {
	return &scheduleRepository{repo{db: db}}
}

// Time-off

func (r *scheduleRepository) CreateTimeOff(ctx context.Context, to schedule.TimeOff) (schedule.TimeOff, error) {
	to.ID = uuid.NewString()
	_, err := r.namedExec(ctx, `
		INSERT INTO time_off (`+timeOffColumns+`)
		VALUES (:id, :staff_id, :kind, :start_date, :end_date, :notes, :status, :reviewed_by, :created_at, :updated_at)`,
		toTimeOffRow(to))
	if err != nil {
		return schedule.TimeOff{}, errors.Wrap(err, "inserting time-off")
	}
	return to, nil
}

func (r *scheduleRepository) QueryTimeOff(ctx context.Context, filter *schedule.TimeOffFilter) ([]schedule.TimeOff, error) {
	w := &where{}
	if filter != nil {
		if filter.StaffID != "" {
			if !validID(filter.StaffID) {
				return []schedule.TimeOff{}, nil
			}
			w.and("staff_id = ?", filter.StaffID)
		}
		if len(filter.Status) > 0 {
			w.and("status IN (?)", filter.Status)
		}
		if !filter.From.IsZero() {
			w.and("end_date >= ?", core.Day(filter.From))
		}
		if !filter.To.IsZero() {
			w.and("start_date <= ?", core.Day(filter.To))
		}
	}

	var rows []timeOffRow
	query := "SELECT " + timeOffColumns + " FROM time_off" + w.String() + " ORDER BY start_date, created_at"
	if err := r.selectAll(ctx, &rows, query, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying time-off")
	}
	timeOffs := make([]schedule.TimeOff, 0, len(rows))
	for _, row := range rows {
		timeOffs = append(timeOffs, row.timeOff())
	}
	return timeOffs, nil
}

func (r *scheduleRepository) GetTimeOffByID(ctx context.Context, id string) (schedule.TimeOff, error) {
	if !validID(id) {
		return schedule.TimeOff{}, schedule.ErrNotFound
	}
	var row timeOffRow
	if err := r.get(ctx, &row, "SELECT "+timeOffColumns+" FROM time_off WHERE id = ?", id); err != nil {
		return schedule.TimeOff{}, trapNoRowsErr(err, schedule.ErrNotFound, "finding time-off by ID")
	}
	return row.timeOff(), nil
}

func (r *scheduleRepository) UpdateTimeOff(ctx context.Context, to schedule.TimeOff) (schedule.TimeOff, error) {
	n, err := r.namedExec(ctx, `
		UPDATE time_off
		SET kind = :kind, start_date = :start_date, end_date = :end_date, notes = :notes, status = :status,
		    reviewed_by = :reviewed_by, updated_at = :updated_at
		WHERE id = :id`,
		toTimeOffRow(to))
	if err != nil {
		return schedule.TimeOff{}, errors.Wrap(err, "updating time-off")
	}
	if n == 0 {
		return schedule.TimeOff{}, schedule.ErrNotFound
	}
	return to, nil
}

func (r *scheduleRepository) DeleteTimeOff(ctx context.Context, id string) error {
	if !validID(id) {
		return schedule.ErrNotFound
	}
	n, err := r.exec(ctx, "DELETE FROM time_off WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting time-off")
	}
	if n == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

// Calendar entries

func (r *scheduleRepository) CreateEntry(ctx context.Context, e schedule.Entry) (schedule.Entry, error) {
	e.ID = uuid.NewString()
	_, err := r.namedExec(ctx, `
		INSERT INTO calendar_entries (`+entryColumns+`)
		VALUES (:id, :title, :description, :starts_at, :ends_at, :all_day, :staff_id, :project_id, :created_by,
		        :created_at, :updated_at)`,
		toEntryRow(e))
	if err != nil {
		return schedule.Entry{}, errors.Wrap(err, "inserting calendar entry")
	}
	return e, nil
}

func (r *scheduleRepository) QueryEntries(ctx context.Context, filter *schedule.EntryFilter) ([]schedule.Entry, error) {
	w := &where{}
	if filter != nil {
		if filter.StaffID != "" {
			if !validID(filter.StaffID) {
				return []schedule.Entry{}, nil
			}
			w.and("staff_id = ?", filter.StaffID)
		}
		if filter.ProjectID != "" {
			if !validID(filter.ProjectID) {
				return []schedule.Entry{}, nil
			}
			w.and("project_id = ?", filter.ProjectID)
		}
		if !filter.From.IsZero() {
			w.and("ends_at >= ?", core.Day(filter.From))
		}
		if !filter.To.IsZero() {
			w.and("starts_at < ?", core.Day(filter.To).AddDate(0, 0, 1))
		}
	}

	var rows []entryRow
	query := "SELECT " + entryColumns + " FROM calendar_entries" + w.String() + " ORDER BY starts_at, title"
	if err := r.selectAll(ctx, &rows, query, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying calendar entries")
	}
	entries := make([]schedule.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.entry())
	}
	return entries, nil
}

func (r *scheduleRepository) GetEntryByID(ctx context.Context, id string) (schedule.Entry, error) {
	if !validID(id) {
		return schedule.Entry{}, schedule.ErrEntryNotFound
	}
	var row entryRow
	if err := r.get(ctx, &row, "SELECT "+entryColumns+" FROM calendar_entries WHERE id = ?", id); err != nil {
		return schedule.Entry{}, trapNoRowsErr(err, schedule.ErrEntryNotFound, "finding calendar entry by ID")
	}
	return row.entry(), nil
}

func (r *scheduleRepository) UpdateEntry(ctx context.Context, e schedule.Entry) (schedule.Entry, error) {
	n, err := r.namedExec(ctx, `
		UPDATE calendar_entries
		SET title = :title, description = :description, starts_at = :starts_at, ends_at = :ends_at, all_day = :all_day,
		    staff_id = :staff_id, project_id = :project_id, updated_at = :updated_at
		WHERE id = :id`,
		toEntryRow(e))
	if err != nil {
		return schedule.Entry{}, errors.Wrap(err, "updating calendar entry")
	}
	if n == 0 {
		return schedule.Entry{}, schedule.ErrEntryNotFound
	}
	return e, nil
}

func (r *scheduleRepository) DeleteEntry(ctx context.Context, id string) error {
	if !validID(id) {
		return schedule.ErrEntryNotFound
	}
	n, err := r.exec(ctx, "DELETE FROM calendar_entries WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting calendar entry")
	}
	if n == 0 {
		return schedule.ErrEntryNotFound
	}
	return nil
}
