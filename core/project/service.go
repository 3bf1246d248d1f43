package project

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/atelierhq/atelier/core"
)

var (
	// errors
	ErrNotFound        = errors.New("project not found")
	ErrStageNotFound   = errors.New("stage not found")
	ErrStageExists     = errors.New("a stage with this name already exists")
	ErrStageInUse      = errors.New("stage is used by projects")
	ErrBookingNotFound = errors.New("booking not found")
	ErrDueBeforeStart  = errors.New("due date cannot be before the start date")
)

type (
	Repository interface {
		CreateProject(ctx context.Context, p Project) (Project, error)
		// QueryProjects matches QueryFilter.Search case-insensitively on Name or Description.
		QueryProjects(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Project, error)
		GetProjectByID(ctx context.Context, id string) (Project, error)
		UpdateProject(ctx context.Context, p Project) (Project, error)
		DeleteProject(ctx context.Context, id string) error

		CreateStage(ctx context.Context, s Stage) (Stage, error)
		// QueryStages returns the pipeline ordered by position.
		QueryStages(ctx context.Context) ([]Stage, error)
		GetStageByName(ctx context.Context, name string) (Stage, error)
		UpdateStage(ctx context.Context, s Stage) (Stage, error)
		DeleteStage(ctx context.Context, name string) error

		CreateBooking(ctx context.Context, b Booking) (Booking, error)
		QueryBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
		GetBookingByID(ctx context.Context, id string) (Booking, error)
		DeleteBooking(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Projects

func (svc *Service) Create(ctx context.Context, np NewProject) (Project, error) {
	stage := np.Stage
	if stage == "" {
		stages, err := svc.Stages(ctx)
		if err != nil {
			return Project{}, err
		}
		if len(stages) == 0 {
			return Project{}, core.NewFieldError("stage", ErrStageNotFound)
		}
		stage = stages[0].Name
	} else if _, err := svc.Stage(ctx, stage); err != nil {
		if err == ErrStageNotFound {
			return Project{}, core.NewFieldError("stage", err)
		}
		return Project{}, err
	}

	now := time.Now().UTC()
	p, err := svc.repo.CreateProject(ctx, Project{
		ClientID:    np.ClientID,
		Name:        np.Name,
		Description: np.Description,
		Stage:       stage,
		Value:       np.Value.Round(2),
		LeadStaffID: np.LeadStaffID,
		StartDate:   np.StartDate,
		DueDate:     np.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return p, errors.Wrap(err, "creating project")
}

func (svc *Service) Get(ctx context.Context, id string) (Project, error) {
	return svc.repo.GetProjectByID(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Project, error) {
	return svc.repo.QueryProjects(ctx, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, orig Project, up UpdateProject) (Project, error) {
	up.apply(&orig)
	orig.Value = orig.Value.Round(2)
	orig.UpdatedAt = time.Now().UTC()
	p, err := svc.repo.UpdateProject(ctx, orig)
	return p, errors.Wrap(err, "updating project")
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteProject(ctx, id)
}

// ChangeStage moves the project to another stage of the pipeline and returns the new stage.
// Last write wins: no transition rules apply between stages.
func (svc *Service) ChangeStage(ctx context.Context, orig Project, stageName string) (Project, Stage, error) {
	stage, err := svc.Stage(ctx, core.CleanString(stageName))
	if err != nil {
		if err == ErrStageNotFound {
			return Project{}, Stage{}, core.NewFieldError("stage", err)
		}
		return Project{}, Stage{}, err
	}
	orig.Stage = stage.Name
	orig.UpdatedAt = time.Now().UTC()
	p, err := svc.repo.UpdateProject(ctx, orig)
	if err != nil {
		return Project{}, Stage{}, errors.Wrap(err, "updating project stage")
	}
	return p, stage, nil
}

// Stages

func (svc *Service) Stages(ctx context.Context) ([]Stage, error) {
	stages, err := svc.repo.QueryStages(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying stages")
	}
	sort.SliceStable(stages, func(i, j int) bool { return stages[i].Position < stages[j].Position })
	return stages, nil
}

func (svc *Service) Stage(ctx context.Context, name string) (Stage, error) {
	return svc.repo.GetStageByName(ctx, name)
}

// ClosedStages returns the names of the stages marked closed.
func (svc *Service) ClosedStages(ctx context.Context) (map[string]bool, error) {
	stages, err := svc.Stages(ctx)
	if err != nil {
		return nil, err
	}
	closed := make(map[string]bool)
	for _, s := range stages {
		if s.IsClosed {
			closed[s.Name] = true
		}
	}
	return closed, nil
}

func (svc *Service) CreateStage(ctx context.Context, ns NewStage) (Stage, error) {
	if _, err := svc.repo.GetStageByName(ctx, ns.Name); err == nil {
		return Stage{}, core.NewFieldError("name", ErrStageExists)
	} else if err != ErrStageNotFound {
		return Stage{}, errors.Wrap(err, "finding stage")
	}
	s, err := svc.repo.CreateStage(ctx, Stage{
		Name:           ns.Name,
		Position:       ns.Position,
		BillingPercent: ns.BillingPercent.Round(2),
		Colour:         ns.Colour,
		IsClosed:       ns.IsClosed,
	})
	return s, errors.Wrap(err, "creating stage")
}

func (svc *Service) UpdateStage(ctx context.Context, orig Stage, us UpdateStage) (Stage, error) {
	us.apply(&orig)
	orig.BillingPercent = orig.BillingPercent.Round(2)
	s, err := svc.repo.UpdateStage(ctx, orig)
	return s, errors.Wrap(err, "updating stage")
}

func (svc *Service) DeleteStage(ctx context.Context, name string) error {
	projects, err := svc.repo.QueryProjects(ctx, &QueryFilter{Stages: []string{name}}, nil)
	if err != nil {
		return errors.Wrap(err, "querying projects")
	}
	if len(projects) > 0 {
		return core.NewFieldError("stage", ErrStageInUse)
	}
	return svc.repo.DeleteStage(ctx, name)
}

// Bookings

func (svc *Service) Book(ctx context.Context, nb NewBooking) (Booking, error) {
	if _, err := svc.repo.GetProjectByID(ctx, nb.ProjectID); err != nil {
		if err == ErrNotFound {
			return Booking{}, core.NewFieldError("project_id", err)
		}
		return Booking{}, errors.Wrap(err, "finding project")
	}
	b, err := svc.repo.CreateBooking(ctx, Booking{
		ProjectID: nb.ProjectID,
		StaffID:   nb.StaffID,
		Date:      core.Day(nb.Date),
		Hours:     nb.Hours,
		Notes:     nb.Notes,
		CreatedAt: time.Now().UTC(),
	})
	return b, errors.Wrap(err, "creating booking")
}

func (svc *Service) Bookings(ctx context.Context, filter BookingFilter) ([]Booking, error) {
	return svc.repo.QueryBookings(ctx, normaliseBookingFilter(filter))
}

func (svc *Service) Booking(ctx context.Context, id string) (Booking, error) {
	return svc.repo.GetBookingByID(ctx, id)
}

func (svc *Service) CancelBooking(ctx context.Context, id string) error {
	return svc.repo.DeleteBooking(ctx, id)
}

// BookedHours sums the hours booked for a staff member between from and to (inclusive days).
func (svc *Service) BookedHours(ctx context.Context, staffID string, from, to time.Time) (float64, error) {
	bookings, err := svc.Bookings(ctx, BookingFilter{StaffID: staffID, From: from, To: to})
	if err != nil {
		return 0, errors.Wrap(err, "querying bookings")
	}
	return TotalHours(bookings), nil
}

func normaliseBookingFilter(f BookingFilter) BookingFilter {
	if !f.From.IsZero() {
		f.From = core.Day(f.From)
	}
	if !f.To.IsZero() {
		f.To = core.Day(f.To)
	}
	return f
}
