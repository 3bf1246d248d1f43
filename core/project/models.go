package project

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/atelierhq/atelier/core"
)

// Seeded pipeline stages. Stage names are plain labels: any stage created at runtime is valid too.
const (
	StageIncoming   = "incoming"
	StageInProgress = "in_progress"
	StageReview     = "review"
	StageCompleted  = "completed"
	StageClosed     = "closed"
)

type Project struct {
	ID          string          `json:"id"`
	ClientID    string          `json:"client_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Stage       string          `json:"stage"`
	Value       decimal.Decimal `json:"value"`
	LeadStaffID string          `json:"lead_staff_id,omitempty"`
	StartDate   *time.Time      `json:"start_date"`
	DueDate     *time.Time      `json:"due_date"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// IsOverdue reports whether the project was due before today and is still open.
func (p Project) IsOverdue(today time.Time, closed bool) bool {
	return !closed && p.DueDate != nil && p.DueDate.Before(core.Day(today))
}

type Stage struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Position       int             `json:"position"`
	BillingPercent decimal.Decimal `json:"billing_percent"`
	Colour         string          `json:"colour"`
	IsClosed       bool            `json:"is_closed"`
}

type Booking struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	StaffID   string    `json:"staff_id"`
	Date      time.Time `json:"date"`
	Hours     float64   `json:"hours"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

type NewProject struct {
	ClientID    string          `json:"client_id" validate:"required,uuid"`
	Name        string          `json:"name" validate:"required,notblank"`
	Description string          `json:"description"`
	Stage       string          `json:"stage"`
	Value       decimal.Decimal `json:"value" validate:"gte=0"`
	LeadStaffID string          `json:"lead_staff_id" validate:"omitempty,uuid"`
	StartDate   *time.Time      `json:"start_date"`
	DueDate     *time.Time      `json:"due_date"`
}

func (np *NewProject) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	np.Description = core.CleanString(np.Description)
	np.Stage = core.CleanString(np.Stage)
	np.StartDate = core.DayPtr(np.StartDate)
	np.DueDate = core.DayPtr(np.DueDate)
	if err := validate.Struct(np); err != nil {
		return err
	}
	return checkDates(np.StartDate, np.DueDate)
}

type UpdateProject struct {
	ClientID    *string          `json:"client_id" validate:"omitempty,uuid"`
	Name        *string          `json:"name" validate:"omitempty,notblank"`
	Description *string          `json:"description"`
	Value       *decimal.Decimal `json:"value" validate:"omitempty,gte=0"`
	LeadStaffID *string          `json:"lead_staff_id" validate:"omitempty,uuid"`
	StartDate   *time.Time       `json:"start_date"`
	DueDate     *time.Time       `json:"due_date"`
}

func (up *UpdateProject) Validate(orig Project, validate *validator.Validate) error {
	up.StartDate = core.DayPtr(up.StartDate)
	up.DueDate = core.DayPtr(up.DueDate)
	if err := validate.Struct(up); err != nil {
		return err
	}
	start, due := orig.StartDate, orig.DueDate
	if up.StartDate != nil {
		start = up.StartDate
	}
	if up.DueDate != nil {
		due = up.DueDate
	}
	return checkDates(start, due)
}

func (up UpdateProject) apply(p *Project) {
	if up.ClientID != nil {
		p.ClientID = *up.ClientID
	}
	if up.Name != nil {
		p.Name = core.CleanString(*up.Name)
	}
	if up.Description != nil {
		p.Description = core.CleanString(*up.Description)
	}
	if up.Value != nil {
		p.Value = *up.Value
	}
	if up.LeadStaffID != nil {
		p.LeadStaffID = *up.LeadStaffID
	}
	if up.StartDate != nil {
		p.StartDate = up.StartDate
	}
	if up.DueDate != nil {
		p.DueDate = up.DueDate
	}
}

func checkDates(start, due *time.Time) error {
	if start != nil && due != nil && due.Before(*start) {
		return core.NewFieldError("due_date", ErrDueBeforeStart)
	}
	return nil
}

type ChangeStage struct {
	Stage string `json:"stage" validate:"required,notblank"`
}

type NewStage struct {
	Name           string          `json:"name" validate:"required,max=64,alphanum_"`
	Position       int             `json:"position" validate:"gte=0"`
	BillingPercent decimal.Decimal `json:"billing_percent" validate:"gte=0,lte=100"`
	Colour         string          `json:"colour" validate:"omitempty,hexcolor"`
	IsClosed       bool            `json:"is_closed"`
}

func (ns *NewStage) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name, true /* lower */)
	return validate.Struct(ns)
}

type UpdateStage struct {
	Position       *int             `json:"position" validate:"omitempty,gte=0"`
	BillingPercent *decimal.Decimal `json:"billing_percent" validate:"omitempty,gte=0,lte=100"`
	Colour         *string          `json:"colour" validate:"omitempty,hexcolor"`
	IsClosed       *bool            `json:"is_closed"`
}

func (us *UpdateStage) Validate(validate *validator.Validate) error { return validate.Struct(us) }

func (us UpdateStage) apply(s *Stage) {
	if us.Position != nil {
		s.Position = *us.Position
	}
	if us.BillingPercent != nil {
		s.BillingPercent = *us.BillingPercent
	}
	if us.Colour != nil {
		s.Colour = *us.Colour
	}
	if us.IsClosed != nil {
		s.IsClosed = *us.IsClosed
	}
}

type NewBooking struct {
	ProjectID string    `json:"project_id" validate:"required,uuid"`
	StaffID   string    `json:"staff_id" validate:"required,uuid"`
	Date      time.Time `json:"date" validate:"required"`
	Hours     float64   `json:"hours" validate:"gt=0,lte=24"`
	Notes     string    `json:"notes"`
}

func (nb *NewBooking) Validate(validate *validator.Validate) error {
	nb.Notes = core.CleanString(nb.Notes)
	if !nb.Date.IsZero() {
		nb.Date = core.Day(nb.Date)
	}
	return validate.Struct(nb)
}

type QueryFilter struct {
	Search      string   `query:"search"`
	ClientID    string   `query:"client_id"`
	Stages      []string `query:"stage"`
	LeadStaffID string   `query:"lead_staff_id"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ClientID = core.CleanString(qf.ClientID)
	qf.LeadStaffID = core.CleanString(qf.LeadStaffID)
}

// BookingFilter selects bookings; zero fields are ignored. From and To are inclusive days.
type BookingFilter struct {
	ProjectID string    `query:"project_id"`
	StaffID   string    `query:"staff_id"`
	From      time.Time `query:"from"`
	To        time.Time `query:"to"`
}

// TotalHours sums booked hours.
func TotalHours(bookings []Booking) float64 {
	var total float64
	for _, b := range bookings {
		total += b.Hours
	}
	return total
}
