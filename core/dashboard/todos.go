package dashboard

import (
	"fmt"
	"sort"
	"time"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/project"
	"github.com/atelierhq/atelier/core/schedule"
)

// To-do kinds
const (
	KindOverdue         = "overdue"
	KindDueSoon         = "due_soon"
	KindUpcomingBooking = "upcoming_booking"
	KindPendingTimeOff  = "pending_timeoff"
)

// Priorities
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

var (
	todoKinds = map[string]struct {
		Label    string
		Priority string
	}{
		KindOverdue:         {Label: "Overdue project", Priority: PriorityHigh},
		KindDueSoon:         {Label: "Due soon", Priority: PriorityMedium},
		KindUpcomingBooking: {Label: "Upcoming booking", Priority: PriorityLow},
		KindPendingTimeOff:  {Label: "Time-off to review", Priority: PriorityMedium},
	}

	priorityRank = map[string]int{PriorityHigh: 0, PriorityMedium: 1, PriorityLow: 2}
)

type Todo struct {
	Kind      string    `json:"kind"`
	Label     string    `json:"label"`
	Priority  string    `json:"priority"`
	Title     string    `json:"title"`
	Date      time.Time `json:"date"`
	ProjectID string    `json:"project_id,omitempty"`
	StaffID   string    `json:"staff_id,omitempty"`
	RefID     string    `json:"ref_id"`
}

func newTodo(kind, title string, date time.Time, refID string) Todo {
	k := todoKinds[kind]
	return Todo{Kind: kind, Label: k.Label, Priority: k.Priority, Title: title, Date: date, RefID: refID}
}

// TodoInput is what the to-do list is derived from.
type TodoInput struct {
	Now          time.Time
	Projects     []project.Project
	ClosedStages map[string]bool
	Bookings     []project.Booking
	TimeOffs     []schedule.TimeOff
	DueSoonDays  int
	HorizonDays  int
}

// BuildTodos derives the to-do list, sorted by date then priority.
//   - open project due before today: overdue, high
//   - open project due within DueSoonDays: due soon, medium
//   - booking within HorizonDays: upcoming booking, low
//   - pending time-off request: medium
func BuildTodos(in TodoInput) []Todo {
	today := core.Day(in.Now)
	dueSoon := today.AddDate(0, 0, in.DueSoonDays)
	horizon := today.AddDate(0, 0, in.HorizonDays)

	names := make(map[string]string, len(in.Projects))
	todos := make([]Todo, 0)
	for _, p := range in.Projects {
		names[p.ID] = p.Name
		if p.DueDate == nil || in.ClosedStages[p.Stage] {
			continue
		}
		due := core.Day(*p.DueDate)
		var t Todo
		switch {
		case p.IsOverdue(today, false):
			t = newTodo(KindOverdue, p.Name, due, p.ID)
		case !due.After(dueSoon):
			t = newTodo(KindDueSoon, p.Name, due, p.ID)
		default:
			continue
		}
		t.ProjectID = p.ID
		t.StaffID = p.LeadStaffID
		todos = append(todos, t)
	}

	for _, b := range in.Bookings {
		date := core.Day(b.Date)
		if date.Before(today) || date.After(horizon) {
			continue
		}
		title := fmt.Sprintf("%s (%gh)", names[b.ProjectID], b.Hours)
		t := newTodo(KindUpcomingBooking, title, date, b.ID)
		t.ProjectID = b.ProjectID
		t.StaffID = b.StaffID
		todos = append(todos, t)
	}

	for _, to := range in.TimeOffs {
		if to.Status != schedule.StatusPending {
			continue
		}
		title := fmt.Sprintf("%s request, %d day(s)", to.Kind, to.Days())
		t := newTodo(KindPendingTimeOff, title, core.Day(to.StartDate), to.ID)
		t.StaffID = to.StaffID
		todos = append(todos, t)
	}

	sort.SliceStable(todos, func(i, j int) bool {
		a, b := todos[i], todos[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if priorityRank[a.Priority] != priorityRank[b.Priority] {
			return priorityRank[a.Priority] < priorityRank[b.Priority]
		}
		return a.Title < b.Title
	})
	return todos
}
