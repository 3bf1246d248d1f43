package schedule

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/atelierhq/atelier/core"
)

var (
	// errors
	ErrNotFound       = errors.New("time-off not found")
	ErrEntryNotFound  = errors.New("calendar entry not found")
	ErrEndBeforeStart = errors.New("end cannot be before start")
	ErrOverlap        = errors.New("overlaps another time-off request")
	ErrNotPending     = errors.New("only pending requests can be reviewed")
	ErrForbidden      = errors.New("only the requester or an admin can cancel time-off")
)

type (
	Repository interface {
		CreateTimeOff(ctx context.Context, to TimeOff) (TimeOff, error)
		// QueryTimeOff returns requests ordered by start date.
		QueryTimeOff(ctx context.Context, filter *TimeOffFilter) ([]TimeOff, error)
		GetTimeOffByID(ctx context.Context, id string) (TimeOff, error)
		UpdateTimeOff(ctx context.Context, to TimeOff) (TimeOff, error)
		DeleteTimeOff(ctx context.Context, id string) error

		CreateEntry(ctx context.Context, e Entry) (Entry, error)
		// QueryEntries returns entries ordered by start.
		QueryEntries(ctx context.Context, filter *EntryFilter) ([]Entry, error)
		GetEntryByID(ctx context.Context, id string) (Entry, error)
		UpdateEntry(ctx context.Context, e Entry) (Entry, error)
		DeleteEntry(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
		now  func() time.Time
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Time-off

// RequestTimeOff files a pending request for nt.StaffID.
func (svc *Service) RequestTimeOff(ctx context.Context, nt NewTimeOff) (TimeOff, error) {
	existing, err := svc.repo.QueryTimeOff(ctx, &TimeOffFilter{
		StaffID: nt.StaffID,
		Status:  []string{StatusPending, StatusApproved},
		From:    nt.StartDate,
		To:      nt.EndDate,
	})
	if err != nil {
		return TimeOff{}, errors.Wrap(err, "querying time-off")
	}
	if len(existing) > 0 {
		return TimeOff{}, core.NewFieldError("start_date", ErrOverlap)
	}

	now := svc.now().UTC()
	to, err := svc.repo.CreateTimeOff(ctx, TimeOff{
		StaffID:   nt.StaffID,
		Kind:      nt.Kind,
		StartDate: nt.StartDate,
		EndDate:   nt.EndDate,
		Notes:     nt.Notes,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return to, errors.Wrap(err, "creating time-off")
}

func (svc *Service) TimeOff(ctx context.Context, id string) (TimeOff, error) {
	return svc.repo.GetTimeOffByID(ctx, id)
}

func (svc *Service) TimeOffs(ctx context.Context, filter *TimeOffFilter) ([]TimeOff, error) {
	return svc.repo.QueryTimeOff(ctx, filter)
}

// Review approves or declines a pending request.
func (svc *Service) Review(ctx context.Context, orig TimeOff, status, reviewerID string) (TimeOff, error) {
	if orig.Status != StatusPending {
		return TimeOff{}, core.NewFieldError("status", ErrNotPending)
	}
	orig.Status = status
	orig.ReviewedBy = reviewerID
	orig.UpdatedAt = svc.now().UTC()
	to, err := svc.repo.UpdateTimeOff(ctx, orig)
	return to, errors.Wrap(err, "updating time-off")
}

// CancelTimeOff withdraws a request. staffID is the caller's staff record, empty for non-staff.
func (svc *Service) CancelTimeOff(ctx context.Context, to TimeOff, staffID string, isAdmin bool) error {
	if !isAdmin && (staffID == "" || to.StaffID != staffID) {
		return ErrForbidden
	}
	return svc.repo.DeleteTimeOff(ctx, to.ID)
}

// Calendar entries

func (svc *Service) CreateEntry(ctx context.Context, ne NewEntry, createdBy string) (Entry, error) {
	now := svc.now().UTC()
	e, err := svc.repo.CreateEntry(ctx, Entry{
		Title:       ne.Title,
		Description: ne.Description,
		StartsAt:    ne.StartsAt.UTC(),
		EndsAt:      ne.EndsAt.UTC(),
		AllDay:      ne.AllDay,
		StaffID:     ne.StaffID,
		ProjectID:   ne.ProjectID,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return e, errors.Wrap(err, "creating calendar entry")
}

func (svc *Service) Entry(ctx context.Context, id string) (Entry, error) {
	return svc.repo.GetEntryByID(ctx, id)
}

func (svc *Service) Entries(ctx context.Context, filter *EntryFilter) ([]Entry, error) {
	return svc.repo.QueryEntries(ctx, filter)
}

func (svc *Service) UpdateEntry(ctx context.Context, orig Entry, ue UpdateEntry) (Entry, error) {
	ue.apply(&orig)
	orig.UpdatedAt = svc.now().UTC()
	e, err := svc.repo.UpdateEntry(ctx, orig)
	return e, errors.Wrap(err, "updating calendar entry")
}

func (svc *Service) DeleteEntry(ctx context.Context, id string) error {
	return svc.repo.DeleteEntry(ctx, id)
}

// Agenda lists what happens between from and until (inclusive days).
// With a staffID, only that person's items and agency-wide entries are kept.
func (svc *Service) Agenda(ctx context.Context, from, until time.Time, staffID string) ([]AgendaItem, error) {
	from, until = core.Day(from), core.Day(until)
	if until.Before(from) {
		return nil, core.NewFieldError("to", ErrEndBeforeStart)
	}

	entries, err := svc.repo.QueryEntries(ctx, &EntryFilter{From: from, To: until})
	if err != nil {
		return nil, errors.Wrap(err, "querying calendar entries")
	}
	if staffID != "" {
		kept := entries[:0]
		for _, e := range entries {
			if e.StaffID == "" || e.StaffID == staffID {
				kept = append(kept, e)
			}
		}
		entries = kept
	}

	timeOffs, err := svc.repo.QueryTimeOff(ctx, &TimeOffFilter{
		StaffID: staffID,
		Status:  []string{StatusApproved},
		From:    from,
		To:      until,
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying time-off")
	}
	return BuildAgenda(entries, timeOffs), nil
}
