package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier/core/project"
	"github.com/atelierhq/atelier/core/schedule"
	"github.com/atelierhq/atelier/core/staff"
)

func datePtr(m time.Month, d int) *time.Time {
	t := time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestBuildTodos(t *testing.T) {
	now := time.Date(2024, time.May, 6, 9, 30, 0, 0, time.UTC) // Monday

	in := TodoInput{
		Now: now,
		Projects: []project.Project{
			{ID: "p1", Name: "Rebrand", Stage: project.StageInProgress, DueDate: datePtr(5, 3)},
			{ID: "p2", Name: "Launch", Stage: project.StageReview, DueDate: datePtr(5, 9)},
			{ID: "p3", Name: "Archive", Stage: project.StageClosed, DueDate: datePtr(4, 1)},
			{ID: "p4", Name: "Later", Stage: project.StageIncoming, DueDate: datePtr(5, 10)},
			{ID: "p5", Name: "Undated", Stage: project.StageIncoming},
		},
		ClosedStages: map[string]bool{project.StageClosed: true},
		Bookings: []project.Booking{
			{ID: "b1", ProjectID: "p5", StaffID: "s1", Date: *datePtr(5, 6), Hours: 4},
			{ID: "b2", ProjectID: "p2", StaffID: "s1", Date: *datePtr(5, 20), Hours: 8},
			{ID: "b3", ProjectID: "p2", StaffID: "s1", Date: *datePtr(5, 5), Hours: 8},
		},
		TimeOffs: []schedule.TimeOff{
			{ID: "t1", StaffID: "s2", Kind: schedule.KindHoliday, Status: schedule.StatusPending, StartDate: *datePtr(5, 6), EndDate: *datePtr(5, 8)},
			{ID: "t2", StaffID: "s2", Kind: schedule.KindSick, Status: schedule.StatusApproved, StartDate: *datePtr(5, 7), EndDate: *datePtr(5, 7)},
		},
		DueSoonDays: 3,
		HorizonDays: 7,
	}

	todos := BuildTodos(in)
	require.Len(t, todos, 4)

	ids := make([]string, len(todos))
	for i, td := range todos {
		ids[i] = td.RefID
	}
	assert.Equal(t, []string{"p1", "t1", "b1", "p2"}, ids)

	assert.Equal(t, KindOverdue, todos[0].Kind)
	assert.Equal(t, PriorityHigh, todos[0].Priority)
	assert.Equal(t, "Overdue project", todos[0].Label)

	assert.Equal(t, KindPendingTimeOff, todos[1].Kind)
	assert.Equal(t, "holiday request, 3 day(s)", todos[1].Title)

	assert.Equal(t, KindUpcomingBooking, todos[2].Kind)
	assert.Equal(t, PriorityLow, todos[2].Priority)
	assert.Equal(t, "Undated (4h)", todos[2].Title)

	assert.Equal(t, KindDueSoon, todos[3].Kind)
	assert.Equal(t, PriorityMedium, todos[3].Priority)
}

func TestBuildTodos_Empty(t *testing.T) {
	todos := BuildTodos(TodoInput{Now: time.Now()})
	assert.NotNil(t, todos)
	assert.Empty(t, todos)
}

func TestWeek(t *testing.T) {
	sunday := time.Date(2024, time.May, 12, 22, 0, 0, 0, time.UTC)
	start, end := Week(sunday)
	assert.Equal(t, time.Date(2024, time.May, 6, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, time.May, 12, 0, 0, 0, 0, time.UTC), end)

	start, _ = Week(start)
	assert.Equal(t, time.Date(2024, time.May, 6, 0, 0, 0, 0, time.UTC), start, "Monday is its own week start")
}

func TestMeanUtilisation(t *testing.T) {
	assert.Equal(t, 0, MeanUtilisation(nil))
	assert.Equal(t, 51, MeanUtilisation([]staff.UtilisationReport{{Percent: 40}, {Percent: 61}}))
}
