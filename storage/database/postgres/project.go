package pgrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/project"
)

const (
	projectColumns = "id, client_id, name, description, stage, value, lead_staff_id, start_date, due_date, created_at, updated_at"
	stageColumns   = "id, name, position, billing_percent, colour, is_closed"
	bookingColumns = "id, project_id, staff_id, date, hours, notes, created_at"
)

var projectOrdering = map[string]string{
	"name":       "name",
	"stage":      "stage",
	"value":      "value",
	"start_date": "start_date",
	"due_date":   "due_date",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

type (
	projectRow struct {
		ID          string          `db:"id"`
		ClientID    string          `db:"client_id"`
		Name        string          `db:"name"`
		Description string          `db:"description"`
		Stage       string          `db:"stage"`
		Value       decimal.Decimal `db:"value"`
		LeadStaffID null.String     `db:"lead_staff_id"`
		StartDate   null.Time       `db:"start_date"`
		DueDate     null.Time       `db:"due_date"`
		CreatedAt   time.Time       `db:"created_at"`
		UpdatedAt   time.Time       `db:"updated_at"`
	}

	stageRow struct {
		ID             string          `db:"id"`
		Name           string          `db:"name"`
		Position       int             `db:"position"`
		BillingPercent decimal.Decimal `db:"billing_percent"`
		Colour         string          `db:"colour"`
		IsClosed       bool            `db:"is_closed"`
	}

	bookingRow struct {
		ID        string    `db:"id"`
		ProjectID string    `db:"project_id"`
		StaffID   string    `db:"staff_id"`
		Date      time.Time `db:"date"`
		Hours     float64   `db:"hours"`
		Notes     string    `db:"notes"`
		CreatedAt time.Time `db:"created_at"`
	}
)

func timePtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

func toProjectRow(p project.Project) projectRow {
	return projectRow{
		ID:          p.ID,
		ClientID:    p.ClientID,
		Name:        p.Name,
		Description: p.Description,
		Stage:       p.Stage,
		Value:       p.Value,
		LeadStaffID: null.NewString(p.LeadStaffID, p.LeadStaffID != ""),
		StartDate:   null.TimeFromPtr(p.StartDate),
		DueDate:     null.TimeFromPtr(p.DueDate),
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
}

func (row projectRow) project() project.Project {
	return project.Project{
		ID:          row.ID,
		ClientID:    row.ClientID,
		Name:        row.Name,
		Description: row.Description,
		Stage:       row.Stage,
		Value:       row.Value,
		LeadStaffID: row.LeadStaffID.String,
		StartDate:   timePtr(row.StartDate),
		DueDate:     timePtr(row.DueDate),
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func (row stageRow) stage() project.Stage {
	return project.Stage(row)
}

func (row bookingRow) booking() project.Booking {
	return project.Booking{
		ID:        row.ID,
		ProjectID: row.ProjectID,
		StaffID:   row.StaffID,
		Date:      core.Day(row.Date),
		Hours:     row.Hours,
		Notes:     row.Notes,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

type projectRepository struct {
	repo
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db *sqlx.DB) *projectRepository {
	return &projectRepository{repo{db: db}}
}

// Projects

func (r *projectRepository) CreateProject(ctx context.Context, p project.Project) (project.Project, error) {
	p.ID = uuid.NewString()
	_, err := r.namedExec(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (:id, :client_id, :name, :description, :stage, :value, :lead_staff_id, :start_date, :due_date,
		        :created_at, :updated_at)`,
		toProjectRow(p))
	if err != nil {
		return project.Project{}, errors.Wrap(err, "inserting project")
	}
	return p, nil
}

func (r *projectRepository) QueryProjects(ctx context.Context, filter *project.QueryFilter, ordering []core.DBOrdering) ([]project.Project, error) {
	w := &where{}
	if filter != nil {
		if filter.Search != "" {
			w.and("(name ILIKE ? OR description ILIKE ?)", like(filter.Search), like(filter.Search))
		}
		if filter.ClientID != "" {
			if !validID(filter.ClientID) {
				return []project.Project{}, nil
			}
			w.and("client_id = ?", filter.ClientID)
		}
		if len(filter.Stages) > 0 {
			w.and("stage IN (?)", filter.Stages)
		}
		if filter.LeadStaffID != "" {
			if !validID(filter.LeadStaffID) {
				return []project.Project{}, nil
			}
			w.and("lead_staff_id = ?", filter.LeadStaffID)
		}
	}
	query := "SELECT " + projectColumns + " FROM projects" + w.String() +
		" ORDER BY " + core.OrderBy(ordering, projectOrdering, "created_at DESC")

	var rows []projectRow
	if err := r.selectAll(ctx, &rows, query, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying projects")
	}
	projects := make([]project.Project, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, row.project())
	}
	return projects, nil
}

func (r *projectRepository) GetProjectByID(ctx context.Context, id string) (project.Project, error) {
	if !validID(id) {
		return project.Project{}, project.ErrNotFound
	}
	var row projectRow
	if err := r.get(ctx, &row, "SELECT "+projectColumns+" FROM projects WHERE id = ?", id); err != nil {
		return project.Project{}, trapNoRowsErr(err, project.ErrNotFound, "finding project by ID")
	}
	return row.project(), nil
}

func (r *projectRepository) UpdateProject(ctx context.Context, p project.Project) (project.Project, error) {
	n, err := r.namedExec(ctx, `
		UPDATE projects
		SET client_id = :client_id, name = :name, description = :description, stage = :stage, value = :value,
		    lead_staff_id = :lead_staff_id, start_date = :start_date, due_date = :due_date, updated_at = :updated_at
		WHERE id = :id`,
		toProjectRow(p))
	if err != nil {
		return project.Project{}, errors.Wrap(err, "updating project")
	}
	if n == 0 {
		return project.Project{}, project.ErrNotFound
	}
	return p, nil
}

func (r *projectRepository) DeleteProject(ctx context.Context, id string) error {
	if !validID(id) {
		return project.ErrNotFound
	}
	n, err := r.exec(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting project")
	}
	if n == 0 {
		return project.ErrNotFound
	}
	return nil
}

// Stages

func (r *projectRepository) CreateStage(ctx context.Context, s project.Stage) (project.Stage, error) {
	s.ID = uuid.NewString()
	_, err := r.namedExec(ctx, `
		INSERT INTO project_stages (`+stageColumns+`)
		VALUES (:id, :name, :position, :billing_percent, :colour, :is_closed)`,
		stageRow(s))
	if err != nil {
		if _, ok := uniqueViolated(err); ok {
			return project.Stage{}, project.ErrStageExists
		}
		return project.Stage{}, errors.Wrap(err, "inserting stage")
	}
	return s, nil
}

func (r *projectRepository) QueryStages(ctx context.Context) ([]project.Stage, error) {
	var rows []stageRow
	if err := r.selectAll(ctx, &rows, "SELECT "+stageColumns+" FROM project_stages ORDER BY position, name"); err != nil {
		return nil, errors.Wrap(err, "querying stages")
	}
	stages := make([]project.Stage, 0, len(rows))
	for _, row := range rows {
		stages = append(stages, row.stage())
	}
	return stages, nil
}

func (r *projectRepository) GetStageByName(ctx context.Context, name string) (project.Stage, error) {
	var row stageRow
	if err := r.get(ctx, &row, "SELECT "+stageColumns+" FROM project_stages WHERE name = ?", name); err != nil {
		return project.Stage{}, trapNoRowsErr(err, project.ErrStageNotFound, "finding stage by name")
	}
	return row.stage(), nil
}

func (r *projectRepository) UpdateStage(ctx context.Context, s project.Stage) (project.Stage, error) {
	n, err := r.namedExec(ctx, `
		UPDATE project_stages
		SET position = :position, billing_percent = :billing_percent, colour = :colour, is_closed = :is_closed
		WHERE id = :id`,
		stageRow(s))
	if err != nil {
		return project.Stage{}, errors.Wrap(err, "updating stage")
	}
	if n == 0 {
		return project.Stage{}, project.ErrStageNotFound
	}
	return s, nil
}

func (r *projectRepository) DeleteStage(ctx context.Context, name string) error {
	n, err := r.exec(ctx, "DELETE FROM project_stages WHERE name = ?", name)
	if err != nil {
		return errors.Wrap(err, "deleting stage")
	}
	if n == 0 {
		return project.ErrStageNotFound
	}
	return nil
}

// Bookings

func (r *projectRepository) CreateBooking(ctx context.Context, b project.Booking) (project.Booking, error) {
	b.ID = uuid.NewString()
	_, err := r.namedExec(ctx, `
		INSERT INTO project_bookings (`+bookingColumns+`)
		VALUES (:id, :project_id, :staff_id, :date, :hours, :notes, :created_at)`,
		bookingRow{
			ID:        b.ID,
			ProjectID: b.ProjectID,
			StaffID:   b.StaffID,
			Date:      core.Day(b.Date),
			Hours:     b.Hours,
			Notes:     b.Notes,
			CreatedAt: b.CreatedAt.UTC(),
		})
	if err != nil {
		return project.Booking{}, errors.Wrap(err, "inserting booking")
	}
	return b, nil
}

func (r *projectRepository) QueryBookings(ctx context.Context, filter project.BookingFilter) ([]project.Booking, error) {
	w := &where{}
	if filter.ProjectID != "" {
		if !validID(filter.ProjectID) {
			return []project.Booking{}, nil
		}
		w.and("project_id = ?", filter.ProjectID)
	}
	if filter.StaffID != "" {
		if !validID(filter.StaffID) {
			return []project.Booking{}, nil
		}
		w.and("staff_id = ?", filter.StaffID)
	}
	if !filter.From.IsZero() {
		w.and("date >= ?", core.Day(filter.From))
	}
	if !filter.To.IsZero() {
		w.and("date <= ?", core.Day(filter.To))
	}

	var rows []bookingRow
	query := "SELECT " + bookingColumns + " FROM project_bookings" + w.String() + " ORDER BY date, created_at"
	if err := r.selectAll(ctx, &rows, query, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying bookings")
	}
	bookings := make([]project.Booking, 0, len(rows))
	for _, row := range rows {
		bookings = append(bookings, row.booking())
	}
	return bookings, nil
}

func (r *projectRepository) GetBookingByID(ctx context.Context, id string) (project.Booking, error) {
	if !validID(id) {
		return project.Booking{}, project.ErrBookingNotFound
	}
	var row bookingRow
	if err := r.get(ctx, &row, "SELECT "+bookingColumns+" FROM project_bookings WHERE id = ?", id); err != nil {
		return project.Booking{}, trapNoRowsErr(err, project.ErrBookingNotFound, "finding booking by ID")
	}
	return row.booking(), nil
}

func (r *projectRepository) DeleteBooking(ctx context.Context, id string) error {
	if !validID(id) {
		return project.ErrBookingNotFound
	}
	n, err := r.exec(ctx, "DELETE FROM project_bookings WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting booking")
	}
	if n == 0 {
		return project.ErrBookingNotFound
	}
	return nil
}
