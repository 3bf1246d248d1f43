package pgrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/staff"
)

const staffColumns = "id, user_id, name, email, phone, role, job_title, colour, available_hours, is_active, created_at, updated_at"

var staffOrdering = map[string]string{
	"name":            "name",
	"email":           "email",
	"role":            "role",
	"job_title":       "job_title",
	"available_hours": "available_hours",
	"created_at":      "created_at",
}

type staffRow struct {
	ID             string      `db:"id"`
	UserID         null.String `db:"user_id"`
	Name           string      `db:"name"`
	Email          string      `db:"email"`
	Phone          string      `db:"phone"`
	Role           string      `db:"role"`
	JobTitle       string      `db:"job_title"`
	Colour         string      `db:"colour"`
	AvailableHours float64     `db:"available_hours"`
	IsActive       bool        `db:"is_active"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func toStaffRow(s staff.Staff) staffRow {
	return staffRow{
		ID:             s.ID,
		UserID:         null.NewString(s.UserID, s.UserID != ""),
		Name:           s.Name,
		Email:          s.Email,
		Phone:          s.Phone,
		Role:           s.Role,
		JobTitle:       s.JobTitle,
		Colour:         s.Colour,
		AvailableHours: s.AvailableHours,
		IsActive:       s.IsActive,
		CreatedAt:      s.CreatedAt.UTC(),
		UpdatedAt:      s.UpdatedAt.UTC(),
	}
}

func (row staffRow) staff() staff.Staff {
	return staff.Staff{
		ID:             row.ID,
		UserID:         row.UserID.String,
		Name:           row.Name,
		Email:          row.Email,
		Phone:          row.Phone,
		Role:           row.Role,
		JobTitle:       row.JobTitle,
		Colour:         row.Colour,
		AvailableHours: row.AvailableHours,
		IsActive:       row.IsActive,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

type staffRepository struct {
	repo
}

var _ staff.Repository = (*staffRepository)(nil) // interface compliance check

func NewStaffRepository(db *sqlx.DB) *staffRepository {
	return &staffRepository{repo{db: db}}
}

func (r *staffRepository) CreateStaff(ctx context.Context, s staff.Staff) (staff.Staff, error) {
	s.ID = uuid.NewString()
	_, err := r.namedExec(ctx, `
		INSERT INTO staff (`+staffColumns+`)
		VALUES (:id, :user_id, :name, :email, :phone, :role, :job_title, :colour, :available_hours, :is_active,
		        :created_at, :updated_at)`,
		toStaffRow(s))
	if err != nil {
		if _, ok := uniqueViolated(err); ok {
			return staff.Staff{}, staff.ErrEmailExists
		}
		return staff.Staff{}, errors.Wrap(err, "inserting staff")
	}
	return s, nil
}

func (r *staffRepository) QueryStaff(ctx context.Context, filter *staff.QueryFilter, ordering []core.DBOrdering) ([]staff.Staff, error) {
	w := &where{}
	if filter != nil {
		if filter.Search != "" {
			w.and("(name ILIKE ? OR email ILIKE ? OR job_title ILIKE ?)", like(filter.Search), like(filter.Search), like(filter.Search))
		}
		if filter.Role != "" {
			w.and("role = ?", filter.Role)
		}
		if filter.IsActive != nil {
			w.and("is_active = ?", *filter.IsActive)
		}
	}
	query := "SELECT " + staffColumns + " FROM staff" + w.String() +
		" ORDER BY " + core.OrderBy(ordering, staffOrdering, "name ASC")

	var rows []staffRow
	if err := r.selectAll(ctx, &rows, query, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying staff")
	}
	members := make([]staff.Staff, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.staff())
	}
	return members, nil
}

func (r *staffRepository) getBy(ctx context.Context, column, value, msg string) (staff.Staff, error) {
	var row staffRow
	if err := r.get(ctx, &row, "SELECT "+staffColumns+" FROM staff WHERE "+column+" = ?", value); err != nil {
		return staff.Staff{}, trapNoRowsErr(err, staff.ErrNotFound, msg)
	}
	return row.staff(), nil
}

func (r *staffRepository) GetStaffByID(ctx context.Context, id string) (staff.Staff, error) {
	if !validID(id) {
		return staff.Staff{}, staff.ErrNotFound
	}
	return r.getBy(ctx, "id", id, "finding staff by ID")
}

func (r *staffRepository) GetStaffByUserID(ctx context.Context, userID string) (staff.Staff, error) {
	if !validID(userID) {
		return staff.Staff{}, staff.ErrNotFound
	}
	return r.getBy(ctx, "user_id", userID, "finding staff by user ID")
}

func (r *staffRepository) GetStaffByEmail(ctx context.Context, email string) (staff.Staff, error) {
	return r.getBy(ctx, "email", email, "finding staff by email")
}

func (r *staffRepository) UpdateStaff(ctx context.Context, s staff.Staff) (staff.Staff, error) {
	n, err := r.namedExec(ctx, `
		UPDATE staff
		SET user_id = :user_id, name = :name, email = :email, phone = :phone, role = :role, job_title = :job_title,
		    colour = :colour, available_hours = :available_hours, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`,
		toStaffRow(s))
	if err != nil {
		if constraint, ok := uniqueViolated(err); ok {
			if constraint == "staff_user_id_key" {
				return staff.Staff{}, staff.ErrAlreadyLinked
			}
			return staff.Staff{}, staff.ErrEmailExists
		}
		return staff.Staff{}, errors.Wrap(err, "updating staff")
	}
	if n == 0 {
		return staff.Staff{}, staff.ErrNotFound
	}
	return s, nil
}

func (r *staffRepository) DeleteStaff(ctx context.Context, id string) error {
	if !validID(id) {
		return staff.ErrNotFound
	}
	n, err := r.exec(ctx, "DELETE FROM staff WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting staff")
	}
	if n == 0 {
		return staff.ErrNotFound
	}
	return nil
}
