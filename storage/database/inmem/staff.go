package inmemdb

import (
	"cmp"
	"context"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/staff"
)

var staffOrdering = comparators[staff.Staff]{
	"name":            func(a, b staff.Staff) int { return foldCmp(a.Name, b.Name) },
	"email":           func(a, b staff.Staff) int { return cmp.Compare(a.Email, b.Email) },
	"role":            func(a, b staff.Staff) int { return cmp.Compare(a.Role, b.Role) },
	"job_title":       func(a, b staff.Staff) int { return foldCmp(a.JobTitle, b.JobTitle) },
	"available_hours": func(a, b staff.Staff) int { return cmp.Compare(a.AvailableHours, b.AvailableHours) },
	"created_at":      func(a, b staff.Staff) int { return timeCmp(a.CreatedAt, b.CreatedAt) },
}

type staffRepository struct {
	db *table[staff.Staff]
}

var _ staff.Repository = (*staffRepository)(nil) // interface compliance check

func NewStaffRepository(db *DB) *staffRepository {
	return &staffRepository{db: db.staff}
}

func (r *staffRepository) CreateStaff(_ context.Context, s staff.Staff) (staff.Staff, error) {
	s.ID = uuid.NewString()
	if !r.db.insertUnique(s.ID, s, func(o staff.Staff) bool { return o.Email == s.Email }) {
		return staff.Staff{}, staff.ErrEmailExists
	}
	return s, nil
}

func (r *staffRepository) QueryStaff(_ context.Context, filter *staff.QueryFilter, ordering []core.DBOrdering) ([]staff.Staff, error) {
	members := r.db.filter(func(s staff.Staff) bool {
		if filter == nil {
			return true
		}
		if filter.Search != "" && !contains(s.Name, filter.Search) && !contains(s.Email, filter.Search) &&
			!contains(s.JobTitle, filter.Search) {
			return false
		}
		if filter.Role != "" && s.Role != filter.Role {
			return false
		}
		if filter.IsActive != nil && s.IsActive != *filter.IsActive {
			return false
		}
		return true
	})
	sortRows(members, ordering, staffOrdering, core.DBOrdering{Field: "name", Ascending: true})
	return members, nil
}

func (r *staffRepository) GetStaffByID(_ context.Context, id string) (staff.Staff, error) {
	if s, ok := r.db.get(id); ok {
		return s, nil
	}
	return staff.Staff{}, staff.ErrNotFound
}

func (r *staffRepository) GetStaffByUserID(_ context.Context, userID string) (staff.Staff, error) {
	if userID == "" {
		return staff.Staff{}, staff.ErrNotFound
	}
	if s, ok := r.db.find(func(s staff.Staff) bool { return s.UserID == userID }); ok {
		return s, nil
	}
	return staff.Staff{}, staff.ErrNotFound
}

func (r *staffRepository) GetStaffByEmail(_ context.Context, email string) (staff.Staff, error) {
	if s, ok := r.db.find(func(s staff.Staff) bool { return s.Email == email }); ok {
		return s, nil
	}
	return staff.Staff{}, staff.ErrNotFound
}

func (r *staffRepository) UpdateStaff(_ context.Context, s staff.Staff) (staff.Staff, error) {
	var linked bool
	found, unique := r.db.updateUnique(s.ID, s, func(o staff.Staff) bool {
		if s.UserID != "" && o.UserID == s.UserID {
			linked = true
			return true
		}
		return o.Email == s.Email
	})
	switch {
	case !found:
		return staff.Staff{}, staff.ErrNotFound
	case linked:
		return staff.Staff{}, staff.ErrAlreadyLinked
	case !unique:
		return staff.Staff{}, staff.ErrEmailExists
	}
	return s, nil
}

func (r *staffRepository) DeleteStaff(_ context.Context, id string) error {
	if !r.db.remove(id) {
		return staff.ErrNotFound
	}
	return nil
}
