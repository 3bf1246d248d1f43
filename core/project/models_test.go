package project

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier/core"
)

func newTestValidator() *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())
	return validate
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestProject_IsOverdue(t *testing.T) {
	today := time.Date(2024, time.May, 6, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		due    *time.Time
		closed bool
		want   bool
	}{
		{name: "no due date", due: nil},
		{name: "due yesterday", due: date(2024, time.May, 5), want: true},
		{name: "due today", due: date(2024, time.May, 6)},
		{name: "due tomorrow", due: date(2024, time.May, 7)},
		{name: "closed", due: date(2024, time.April, 1), closed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Project{DueDate: tt.due}
			assert.Equal(t, tt.want, p.IsOverdue(today, tt.closed))
		})
	}
}

func TestNewProject_Validate(t *testing.T) {
	validate := newTestValidator()
	clientID := "2f0d3cde-4d58-4b42-9c0e-4d1f4b7a0c11"

	np := NewProject{
		ClientID:  clientID,
		Name:      "  Spring campaign ",
		Value:     decimal.NewFromInt(5000),
		StartDate: date(2024, time.May, 10),
		DueDate:   date(2024, time.May, 1),
	}
	err := np.Validate(validate)
	require.Error(t, err)
	vErr, ok := err.(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, "due_date", vErr.Fields[0].Field)
	assert.Equal(t, ErrDueBeforeStart, vErr.Err)
	assert.Equal(t, "Spring campaign", np.Name)

	np.DueDate = date(2024, time.June, 1)
	assert.NoError(t, np.Validate(validate))

	np.Value = decimal.NewFromInt(-1)
	err = np.Validate(validate)
	require.Error(t, err)
	vErrs, ok := err.(validator.ValidationErrors)
	require.True(t, ok)
	assert.Equal(t, "value", vErrs[0].Field())
}

func TestUpdateProject_Validate(t *testing.T) {
	validate := newTestValidator()
	orig := Project{StartDate: date(2024, time.May, 10), DueDate: date(2024, time.June, 1)}

	up := UpdateProject{DueDate: date(2024, time.May, 9)}
	assert.Error(t, up.Validate(orig, validate), "checked against the original start date")

	up = UpdateProject{StartDate: date(2024, time.May, 20)}
	require.NoError(t, up.Validate(orig, validate))
	up.apply(&orig)
	assert.Equal(t, date(2024, time.May, 20), orig.StartDate)
	assert.Equal(t, date(2024, time.June, 1), orig.DueDate)
}

func TestNewStage_Validate(t *testing.T) {
	validate := newTestValidator()

	ns := NewStage{Name: " On_Hold ", BillingPercent: decimal.NewFromInt(10), Colour: "#aabbcc"}
	require.NoError(t, ns.Validate(validate))
	assert.Equal(t, "on_hold", ns.Name)

	tests := []struct {
		name  string
		stage NewStage
		field string
	}{
		{name: "spaces", stage: NewStage{Name: "on hold"}, field: "name"},
		{name: "percent over 100", stage: NewStage{Name: "x", BillingPercent: decimal.NewFromInt(101)}, field: "billing_percent"},
		{name: "bad colour", stage: NewStage{Name: "x", Colour: "red"}, field: "colour"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.stage.Validate(validate)
			require.Error(t, err)
			vErrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok)
			assert.Equal(t, tt.field, vErrs[0].Field())
		})
	}
}

func TestNewBooking_Validate(t *testing.T) {
	validate := newTestValidator()
	nb := NewBooking{
		ProjectID: "2f0d3cde-4d58-4b42-9c0e-4d1f4b7a0c11",
		StaffID:   "7b1c3d2e-1f4a-4b5c-8d6e-9f0a1b2c3d4e",
		Date:      time.Date(2024, time.May, 6, 14, 0, 0, 0, time.UTC),
		Hours:     7.5,
	}
	require.NoError(t, nb.Validate(validate))
	assert.Equal(t, *date(2024, time.May, 6), nb.Date)

	nb.Hours = 0
	assert.Error(t, nb.Validate(validate))
	nb.Hours = 25
	assert.Error(t, nb.Validate(validate))
}

func TestTotalHours(t *testing.T) {
	assert.Equal(t, 0.0, TotalHours(nil))
	assert.Equal(t, 11.5, TotalHours([]Booking{{Hours: 4}, {Hours: 7.5}}))
}
