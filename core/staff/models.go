package staff

import (
	"context"
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/atelierhq/atelier/core"
)

// Staff roles
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

type Staff struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id,omitempty"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Role           string    `json:"role"`
	JobTitle       string    `json:"job_title"`
	Colour         string    `json:"colour"`
	AvailableHours float64   `json:"available_hours"` // per week
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Utilisation returns booked over available hours as a rounded percentage, 0 when nothing is available.
func Utilisation(booked, available float64) int {
	if available <= 0 {
		return 0
	}
	return int(math.Round(booked / available * 100))
}

// AvailableHoursBetween scales weekly available hours to the [from, to] day range.
func AvailableHoursBetween(weekly float64, from, to time.Time) float64 {
	days := core.Day(to).Sub(core.Day(from)).Hours()/24 + 1
	if days <= 0 {
		return 0
	}
	return weekly * days / 7
}

type UtilisationReport struct {
	StaffID        string  `json:"staff_id"`
	Name           string  `json:"name"`
	AvailableHours float64 `json:"available_hours"`
	BookedHours    float64 `json:"booked_hours"`
	Percent        int     `json:"percent"`
}

type NewStaff struct {
	Name           string   `json:"name" validate:"required,notblank"`
	Email          string   `json:"email" validate:"required,email"`
	Phone          string   `json:"phone" validate:"omitempty,max=64"`
	Role           string   `json:"role" validate:"omitempty,oneof=admin staff"`
	JobTitle       string   `json:"job_title" validate:"omitempty,max=255"`
	Colour         string   `json:"colour" validate:"omitempty,hexcolor"`
	AvailableHours *float64 `json:"available_hours" validate:"omitempty,gte=0,lte=168"`
}

func (ns *NewStaff) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Role = core.CleanString(ns.Role, true /* lower */)
	if ns.Role == "" {
		ns.Role = RoleStaff
	}
	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, ns.Email)
}

type UpdateStaff struct {
	Name           *string  `json:"name" validate:"omitempty,notblank"`
	Email          *string  `json:"email" validate:"omitempty,email"`
	Phone          *string  `json:"phone" validate:"omitempty,max=64"`
	Role           *string  `json:"role" validate:"omitempty,oneof=admin staff"`
	JobTitle       *string  `json:"job_title" validate:"omitempty,max=255"`
	Colour         *string  `json:"colour" validate:"omitempty,hexcolor"`
	AvailableHours *float64 `json:"available_hours" validate:"omitempty,gte=0,lte=168"`
	IsActive       *bool    `json:"is_active"`
}

func (us *UpdateStaff) Validate(ctx context.Context, orig Staff, validate *validator.Validate, svc *Service) error {
	if us.Email != nil {
		email := core.CleanString(*us.Email, true /* lower */)
		us.Email = &email
	}
	if err := validate.Struct(us); err != nil {
		return err
	}
	if us.Email != nil {
		return svc.CheckUniqueness(ctx, *us.Email, orig.ID)
	}
	return nil
}

func (us UpdateStaff) apply(s *Staff) {
	if us.Name != nil {
		s.Name = core.CleanString(*us.Name)
	}
	if us.Email != nil {
		s.Email = *us.Email
	}
	if us.Phone != nil {
		s.Phone = core.CleanString(*us.Phone)
	}
	if us.Role != nil {
		s.Role = *us.Role
	}
	if us.JobTitle != nil {
		s.JobTitle = core.CleanString(*us.JobTitle)
	}
	if us.Colour != nil {
		s.Colour = *us.Colour
	}
	if us.AvailableHours != nil {
		s.AvailableHours = *us.AvailableHours
	}
	if us.IsActive != nil {
		s.IsActive = *us.IsActive
	}
}

type QueryFilter struct {
	Search   string `query:"search"`
	Role     string `query:"role"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
}
