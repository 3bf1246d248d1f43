package staff

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/atelierhq/atelier/core"
)

var (
	// errors
	ErrNotFound      = errors.New("staff member not found")
	ErrEmailExists   = errors.New("a staff member with this email already exists")
	ErrAlreadyLinked = errors.New("staff member is already linked to a user")
)

type (
	Repository interface {
		CreateStaff(ctx context.Context, s Staff) (Staff, error)
		QueryStaff(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Staff, error)
		GetStaffByID(ctx context.Context, id string) (Staff, error)
		GetStaffByUserID(ctx context.Context, userID string) (Staff, error)
		GetStaffByEmail(ctx context.Context, email string) (Staff, error)
		UpdateStaff(ctx context.Context, s Staff) (Staff, error)
		DeleteStaff(ctx context.Context, id string) error
	}

	Service struct {
		repo         Repository
		defaultHours float64
		dir          *directory
	}

	// directory caches the active staff list shared by chat and calendar views.
	directory struct {
		mu      sync.RWMutex
		entries []Staff
		gen     uint64 // bumped by invalidate
		expires time.Time
		ttl     time.Duration
		now     func() time.Time
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{
		repo:         repo,
		defaultHours: conf.Staff.DefaultAvailableHours,
		dir:          &directory{ttl: conf.Staff.DirectoryTTL, now: time.Now},
	}
}

// get returns a copy of the cached entries, or the generation a fresh read must be stored under.
func (d *directory) get() ([]Staff, uint64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.entries == nil || d.now().After(d.expires) {
		return nil, d.gen, false
	}
	return slices.Clone(d.entries), d.gen, true
}

// set stores entries read during generation gen, unless a write invalidated them since.
func (d *directory) set(entries []Staff, gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		return
	}
	d.entries = slices.Clone(entries)
	d.expires = d.now().Add(d.ttl)
}

func (d *directory) invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = nil
	d.gen++
}

func (svc *Service) CheckUniqueness(ctx context.Context, email string, excludedIDs ...string) error {
	s, err := svc.repo.GetStaffByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil
		}
		return errors.Wrap(err, "finding staff by email")
	}
	if core.Contains(excludedIDs, s.ID) {
		return nil
	}
	return core.NewFieldError("email", ErrEmailExists)
}

func (svc *Service) Create(ctx context.Context, ns NewStaff) (Staff, error) {
	now := time.Now().UTC()
	s := Staff{
		Name:           ns.Name,
		Email:          ns.Email,
		Phone:          core.CleanString(ns.Phone),
		Role:           ns.Role,
		JobTitle:       core.CleanString(ns.JobTitle),
		Colour:         ns.Colour,
		AvailableHours: svc.defaultHours,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if ns.AvailableHours != nil {
		s.AvailableHours = *ns.AvailableHours
	}
	s, err := svc.repo.CreateStaff(ctx, s)
	if err != nil {
		return Staff{}, errors.Wrap(err, "creating staff")
	}
	svc.dir.invalidate()
	return s, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Staff, error) {
	return svc.repo.GetStaffByID(ctx, id)
}

func (svc *Service) GetByUserID(ctx context.Context, userID string) (Staff, error) {
	return svc.repo.GetStaffByUserID(ctx, userID)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Staff, error) {
	return svc.repo.QueryStaff(ctx, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, orig Staff, us UpdateStaff) (Staff, error) {
	us.apply(&orig)
	orig.UpdatedAt = time.Now().UTC()
	s, err := svc.repo.UpdateStaff(ctx, orig)
	if err != nil {
		return Staff{}, errors.Wrap(err, "updating staff")
	}
	svc.dir.invalidate()
	return s, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.repo.DeleteStaff(ctx, id); err != nil {
		return err
	}
	svc.dir.invalidate()
	return nil
}

// LinkUser attaches a login to the staff record.
func (svc *Service) LinkUser(ctx context.Context, id, userID string) error {
	s, err := svc.repo.GetStaffByID(ctx, id)
	if err != nil {
		return err
	}
	if s.UserID != "" && s.UserID != userID {
		return ErrAlreadyLinked
	}
	s.UserID = userID
	s.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateStaff(ctx, s); err != nil {
		return errors.Wrap(err, "linking user")
	}
	svc.dir.invalidate()
	return nil
}

// LinkedUserID returns the ID of the user linked to the staff record, if any.
func (svc *Service) LinkedUserID(ctx context.Context, id string) (string, error) {
	s, err := svc.repo.GetStaffByID(ctx, id)
	if err != nil {
		return "", err
	}
	return s.UserID, nil
}

// Directory returns the active staff, served from cache until the TTL elapses or a write happens.
func (svc *Service) Directory(ctx context.Context) ([]Staff, error) {
	entries, gen, ok := svc.dir.get()
	if ok {
		return entries, nil
	}
	active := true
	entries, err := svc.repo.QueryStaff(ctx, &QueryFilter{IsActive: &active}, []core.DBOrdering{{Field: "name", Ascending: true}})
	if err != nil {
		return nil, errors.Wrap(err, "querying staff directory")
	}
	if entries == nil {
		entries = []Staff{}
	}
	svc.dir.set(entries, gen)
	return entries, nil
}
