package dashboard

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/billing"
	"github.com/atelierhq/atelier/core/client"
	"github.com/atelierhq/atelier/core/project"
	"github.com/atelierhq/atelier/core/schedule"
	"github.com/atelierhq/atelier/core/staff"
)

type (
	Projects interface {
		Query(ctx context.Context, filter *project.QueryFilter, ordering []core.DBOrdering) ([]project.Project, error)
		ClosedStages(ctx context.Context) (map[string]bool, error)
		Bookings(ctx context.Context, filter project.BookingFilter) ([]project.Booking, error)
	}

	StaffDirectory interface {
		Directory(ctx context.Context) ([]staff.Staff, error)
	}

	TimeOffs interface {
		TimeOffs(ctx context.Context, filter *schedule.TimeOffFilter) ([]schedule.TimeOff, error)
	}

	Billing interface {
		Summary(ctx context.Context, from, to time.Time) (billing.Summary, error)
		Outstanding(ctx context.Context, clientID string) (decimal.Decimal, error)
	}

	Clients interface {
		Query(ctx context.Context, filter *client.QueryFilter, ordering []core.DBOrdering) ([]client.Client, error)
	}

	// Viewer scopes the to-do list: admins see the agency, staff their own work.
	Viewer struct {
		StaffID string
		IsAdmin bool
	}

	Overview struct {
		ActiveProjects  int             `json:"active_projects"`
		ActiveClients   int             `json:"active_clients"`
		StaffCount      int             `json:"staff_count"`
		BilledThisMonth decimal.Decimal `json:"billed_this_month"`
		VATThisMonth    decimal.Decimal `json:"vat_this_month"`
		Outstanding     decimal.Decimal `json:"outstanding"`
		Utilisation     int             `json:"utilisation"` // mean over staff, this week
	}

	Service struct {
		projects Projects
		staff    StaffDirectory
		timeOffs TimeOffs
		billing  Billing
		clients  Clients
		conf     core.DashboardConfig
		now      func() time.Time
	}
)

func NewService(projects Projects, staff StaffDirectory, timeOffs TimeOffs, billing Billing, clients Clients, conf *core.Config) *Service {
	return &Service{
		projects: projects,
		staff:    staff,
		timeOffs: timeOffs,
		billing:  billing,
		clients:  clients,
		conf:     conf.Dashboard,
		now:      time.Now,
	}
}

func (svc *Service) Todos(ctx context.Context, v Viewer) ([]Todo, error) {
	if !v.IsAdmin && v.StaffID == "" {
		return []Todo{}, nil
	}
	now := svc.now().UTC()
	today := core.Day(now)

	pf := &project.QueryFilter{}
	bf := project.BookingFilter{From: today, To: today.AddDate(0, 0, svc.conf.BookingHorizonDays)}
	if !v.IsAdmin {
		pf.LeadStaffID = v.StaffID
		bf.StaffID = v.StaffID
	}
	projects, err := svc.projects.Query(ctx, pf, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying projects")
	}
	closed, err := svc.projects.ClosedStages(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying stages")
	}
	bookings, err := svc.projects.Bookings(ctx, bf)
	if err != nil {
		return nil, errors.Wrap(err, "querying bookings")
	}
	if !v.IsAdmin && len(bookings) > 0 {
		// booking titles name projects the viewer may not lead
		all, err := svc.projects.Query(ctx, &project.QueryFilter{}, nil)
		if err != nil {
			return nil, errors.Wrap(err, "querying projects")
		}
		projects = withNames(projects, all)
	}

	var timeOffs []schedule.TimeOff
	if v.IsAdmin {
		timeOffs, err = svc.timeOffs.TimeOffs(ctx, &schedule.TimeOffFilter{Status: []string{schedule.StatusPending}})
		if err != nil {
			return nil, errors.Wrap(err, "querying time-off")
		}
	}

	return BuildTodos(TodoInput{
		Now:          now,
		Projects:     projects,
		ClosedStages: closed,
		Bookings:     bookings,
		TimeOffs:     timeOffs,
		DueSoonDays:  svc.conf.DueSoonDays,
		HorizonDays:  svc.conf.BookingHorizonDays,
	}), nil
}

// withNames adds the projects of all missing from led, closing their due dates
// so they only name bookings.
func withNames(led, all []project.Project) []project.Project {
	seen := make(map[string]bool, len(led))
	for _, p := range led {
		seen[p.ID] = true
	}
	for _, p := range all {
		if !seen[p.ID] {
			p.DueDate = nil
			led = append(led, p)
		}
	}
	return led
}

// Utilisation reports booked against available hours per active staff member over [from, to].
func (svc *Service) Utilisation(ctx context.Context, from, to time.Time) ([]staff.UtilisationReport, error) {
	from, to = core.Day(from), core.Day(to)
	if to.Before(from) {
		return nil, core.NewFieldError("to", errors.New("to cannot be before from"))
	}
	members, err := svc.staff.Directory(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing staff")
	}
	bookings, err := svc.projects.Bookings(ctx, project.BookingFilter{From: from, To: to})
	if err != nil {
		return nil, errors.Wrap(err, "querying bookings")
	}
	booked := make(map[string]float64)
	for _, b := range bookings {
		booked[b.StaffID] += b.Hours
	}

	reports := make([]staff.UtilisationReport, 0, len(members))
	for _, s := range members {
		available := staff.AvailableHoursBetween(s.AvailableHours, from, to)
		reports = append(reports, staff.UtilisationReport{
			StaffID:        s.ID,
			Name:           s.Name,
			AvailableHours: math.Round(available*100) / 100,
			BookedHours:    booked[s.ID],
			Percent:        staff.Utilisation(booked[s.ID], available),
		})
	}
	return reports, nil
}

// Overview gathers the headline figures of the agency.
func (svc *Service) Overview(ctx context.Context) (Overview, error) {
	today := core.Day(svc.now())
	var ov Overview

	projects, err := svc.projects.Query(ctx, &project.QueryFilter{}, nil)
	if err != nil {
		return ov, errors.Wrap(err, "querying projects")
	}
	closed, err := svc.projects.ClosedStages(ctx)
	if err != nil {
		return ov, errors.Wrap(err, "querying stages")
	}
	for _, p := range projects {
		if !closed[p.Stage] {
			ov.ActiveProjects++
		}
	}

	active := true
	clients, err := svc.clients.Query(ctx, &client.QueryFilter{IsActive: &active}, nil)
	if err != nil {
		return ov, errors.Wrap(err, "querying clients")
	}
	ov.ActiveClients = len(clients)

	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	sum, err := svc.billing.Summary(ctx, monthStart, today)
	if err != nil {
		return ov, errors.Wrap(err, "summarising billing")
	}
	ov.BilledThisMonth, ov.VATThisMonth = sum.Billed, sum.VAT

	if ov.Outstanding, err = svc.billing.Outstanding(ctx, ""); err != nil {
		return ov, errors.Wrap(err, "computing outstanding amount")
	}

	weekStart, weekEnd := Week(today)
	reports, err := svc.Utilisation(ctx, weekStart, weekEnd)
	if err != nil {
		return ov, err
	}
	ov.StaffCount = len(reports)
	ov.Utilisation = MeanUtilisation(reports)
	return ov, nil
}

// Week returns the Monday and Sunday of t's week.
func Week(t time.Time) (time.Time, time.Time) {
	day := core.Day(t)
	offset := (int(day.Weekday()) + 6) % 7 // days since Monday
	start := day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 6)
}

// MeanUtilisation averages report percentages, 0 for no reports.
func MeanUtilisation(reports []staff.UtilisationReport) int {
	if len(reports) == 0 {
		return 0
	}
	var total int
	for _, r := range reports {
		total += r.Percent
	}
	return int(math.Round(float64(total) / float64(len(reports))))
}
