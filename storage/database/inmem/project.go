package inmemdb

import (
	"cmp"
	"context"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/project"
)

var projectOrdering = comparators[project.Project]{
	"name":       func(a, b project.Project) int { return foldCmp(a.Name, b.Name) },
	"stage":      func(a, b project.Project) int { return cmp.Compare(a.Stage, b.Stage) },
	"value":      func(a, b project.Project) int { return a.Value.Cmp(b.Value) },
	"start_date": func(a, b project.Project) int { return timePtrCmp(a.StartDate, b.StartDate) },
	"due_date":   func(a, b project.Project) int { return timePtrCmp(a.DueDate, b.DueDate) },
	"created_at": func(a, b project.Project) int { return timeCmp(a.CreatedAt, b.CreatedAt) },
	"updated_at": func(a, b project.Project) int { return timeCmp(a.UpdatedAt, b.UpdatedAt) },
}

type projectRepository struct {
	projects *table[project.Project]
	stages   *table[project.Stage]
	bookings *table[project.Booking]
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db *DB) *projectRepository {
	return &projectRepository{projects: db.projects, stages: db.stages, bookings: db.bookings}
}

func (r *projectRepository) CreateProject(_ context.Context, p project.Project) (project.Project, error) {
	p.ID = uuid.NewString()
	p.StartDate, p.DueDate = core.DayPtr(p.StartDate), core.DayPtr(p.DueDate)
	r.projects.insert(p.ID, p)
	return p, nil
}

func (r *projectRepository) QueryProjects(_ context.Context, filter *project.QueryFilter, ordering []core.DBOrdering) ([]project.Project, error) {
	projects := r.projects.filter(func(p project.Project) bool {
		if filter == nil {
			return true
		}
		if filter.Search != "" && !contains(p.Name, filter.Search) && !contains(p.Description, filter.Search) {
			return false
		}
		if filter.ClientID != "" && p.ClientID != filter.ClientID {
			return false
		}
		if len(filter.Stages) > 0 && !core.Contains(filter.Stages, p.Stage) {
			return false
		}
		if filter.LeadStaffID != "" && p.LeadStaffID != filter.LeadStaffID {
			return false
		}
		return true
	})
	sortRows(projects, ordering, projectOrdering, core.DBOrdering{Field: "created_at"})
	return projects, nil
}

func (r *projectRepository) GetProjectByID(_ context.Context, id string) (project.Project, error) {
	if p, ok := r.projects.get(id); ok {
		return p, nil
	}
	return project.Project{}, project.ErrNotFound
}

func (r *projectRepository) UpdateProject(_ context.Context, p project.Project) (project.Project, error) {
	p.StartDate, p.DueDate = core.DayPtr(p.StartDate), core.DayPtr(p.DueDate)
	if !r.projects.update(p.ID, p) {
		return project.Project{}, project.ErrNotFound
	}
	return p, nil
}

// DeleteProject cascades to the project's bookings like the foreign key does.
func (r *projectRepository) DeleteProject(_ context.Context, id string) error {
	if !r.projects.remove(id) {
		return project.ErrNotFound
	}
	r.bookings.removeWhere(func(b project.Booking) bool { return b.ProjectID == id })
	return nil
}

// Stages

func (r *projectRepository) CreateStage(_ context.Context, s project.Stage) (project.Stage, error) {
	s.ID = uuid.NewString()
	if !r.stages.insertUnique(s.ID, s, func(o project.Stage) bool { return o.Name == s.Name }) {
		return project.Stage{}, project.ErrStageExists
	}
	return s, nil
}

func (r *projectRepository) QueryStages(_ context.Context) ([]project.Stage, error) {
	stages := r.stages.filter(nil)
	sortRows(stages, nil, comparators[project.Stage]{
		"position": func(a, b project.Stage) int { return cmp.Compare(a.Position, b.Position) },
		"name":     func(a, b project.Stage) int { return cmp.Compare(a.Name, b.Name) },
	}, core.DBOrdering{Field: "position", Ascending: true}, core.DBOrdering{Field: "name", Ascending: true})
	return stages, nil
}

func (r *projectRepository) GetStageByName(_ context.Context, name string) (project.Stage, error) {
	if s, ok := r.stages.find(func(s project.Stage) bool { return s.Name == name }); ok {
		return s, nil
	}
	return project.Stage{}, project.ErrStageNotFound
}

func (r *projectRepository) UpdateStage(_ context.Context, s project.Stage) (project.Stage, error) {
	if !r.stages.update(s.ID, s) {
		return project.Stage{}, project.ErrStageNotFound
	}
	return s, nil
}

func (r *projectRepository) DeleteStage(_ context.Context, name string) error {
	if r.stages.removeWhere(func(s project.Stage) bool { return s.Name == name }) == 0 {
		return project.ErrStageNotFound
	}
	return nil
}

// Bookings

func (r *projectRepository) CreateBooking(_ context.Context, b project.Booking) (project.Booking, error) {
	b.ID = uuid.NewString()
	b.Date = core.Day(b.Date)
	r.bookings.insert(b.ID, b)
	return b, nil
}

func (r *projectRepository) QueryBookings(_ context.Context, filter project.BookingFilter) ([]project.Booking, error) {
	bookings := r.bookings.filter(func(b project.Booking) bool {
		if filter.ProjectID != "" && b.ProjectID != filter.ProjectID {
			return false
		}
		if filter.StaffID != "" && b.StaffID != filter.StaffID {
			return false
		}
		return inDays(b.Date, filter.From, filter.To)
	})
	sortRows(bookings, nil, comparators[project.Booking]{
		"date":       func(a, b project.Booking) int { return timeCmp(a.Date, b.Date) },
		"created_at": func(a, b project.Booking) int { return timeCmp(a.CreatedAt, b.CreatedAt) },
	}, core.DBOrdering{Field: "date", Ascending: true}, core.DBOrdering{Field: "created_at", Ascending: true})
	return bookings, nil
}

func (r *projectRepository) GetBookingByID(_ context.Context, id string) (project.Booking, error) {
	if b, ok := r.bookings.get(id); ok {
		return b, nil
	}
	return project.Booking{}, project.ErrBookingNotFound
}

func (r *projectRepository) DeleteBooking(_ context.Context, id string) error {
	if !r.bookings.remove(id) {
		return project.ErrBookingNotFound
	}
	return nil
}
