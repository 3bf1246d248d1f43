package project_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/project"
	inmemdb "github.com/atelierhq/atelier/storage/database/inmem"
	testutil "github.com/atelierhq/atelier/tests"
)

const unknownID = "3c0d8b9e-8f57-4c1e-9a43-000000000000"

func fieldOf(t *testing.T, err error) string {
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "expected a validation error, got %v", err)
	return verr.Fields[0].Field
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc := project.NewService(inmemdb.NewProjectRepository(inmemdb.NewDB()))

	p, err := svc.Create(ctx, project.NewProject{ClientID: unknownID, Name: "Rebrand", Value: decimal.RequireFromString("999.999")})
	require.NoError(t, err)
	assert.Equal(t, "incoming", p.Stage, "new projects start in the first stage")
	assert.True(t, decimal.NewFromInt(1000).Equal(p.Value))

	_, err = svc.Create(ctx, project.NewProject{ClientID: unknownID, Name: "Site", Stage: "nope"})
	assert.Equal(t, "stage", fieldOf(t, err))

	p, err = svc.Create(ctx, project.NewProject{ClientID: unknownID, Name: "Site", Stage: "review"})
	require.NoError(t, err)
	assert.Equal(t, "review", p.Stage)

	found, err := svc.Query(ctx, &project.QueryFilter{Search: "SIT"}, nil)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, p.ID, found[0].ID)
}

func TestService_ChangeStage(t *testing.T) {
	ctx := context.Background()
	svc := project.NewService(inmemdb.NewProjectRepository(inmemdb.NewDB()))
	p, err := svc.Create(ctx, project.NewProject{ClientID: unknownID, Name: "Rebrand"})
	require.NoError(t, err)

	p, st, err := svc.ChangeStage(ctx, p, " completed ")
	require.NoError(t, err)
	assert.Equal(t, "completed", p.Stage)
	assert.True(t, decimal.NewFromInt(50).Equal(st.BillingPercent))

	// any stage can follow any other
	p, _, err = svc.ChangeStage(ctx, p, "incoming")
	require.NoError(t, err)
	assert.Equal(t, "incoming", p.Stage)

	_, _, err = svc.ChangeStage(ctx, p, "archived")
	assert.Equal(t, "stage", fieldOf(t, err))
}

func TestService_Stages(t *testing.T) {
	ctx := context.Background()
	svc := project.NewService(inmemdb.NewProjectRepository(inmemdb.NewDB()))

	stages, err := svc.Stages(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(stages))
	for _, s := range stages {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"incoming", "in_progress", "review", "completed", "closed"}, names)

	closed, err := svc.ClosedStages(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"closed": true}, closed)

	_, err = svc.CreateStage(ctx, project.NewStage{Name: "review"})
	assert.Equal(t, "name", fieldOf(t, err))

	st, err := svc.CreateStage(ctx, project.NewStage{Name: "pitch", Position: 0, Colour: "#ffffff"})
	require.NoError(t, err)
	stages, err = svc.Stages(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pitch", stages[0].Name)

	pct := decimal.NewFromInt(10)
	st, err = svc.UpdateStage(ctx, st, project.UpdateStage{BillingPercent: &pct})
	require.NoError(t, err)
	assert.True(t, pct.Equal(st.BillingPercent))

	_, err = svc.Create(ctx, project.NewProject{ClientID: unknownID, Name: "Pitch deck", Stage: "pitch"})
	require.NoError(t, err)
	assert.Equal(t, "stage", fieldOf(t, svc.DeleteStage(ctx, "pitch")), "stage in use")
	assert.NoError(t, svc.DeleteStage(ctx, "review"))
	assert.Equal(t, project.ErrStageNotFound, svc.DeleteStage(ctx, "review"))
}

func TestService_Bookings(t *testing.T) {
	ctx := context.Background()
	svc := project.NewService(inmemdb.NewProjectRepository(inmemdb.NewDB()))
	p, err := svc.Create(ctx, project.NewProject{ClientID: unknownID, Name: "Rebrand"})
	require.NoError(t, err)

	staffID := "6f1c2b3a-0000-4000-8000-000000000001"
	monday := testutil.Date(2024, 5, 6)
	for i, hours := range []float64{8, 6, 4} {
		_, err := svc.Book(ctx, project.NewBooking{
			ProjectID: p.ID,
			StaffID:   staffID,
			Date:      monday.AddDate(0, 0, i*4).Add(10 * time.Hour),
			Hours:     hours,
		})
		require.NoError(t, err)
	}

	_, err = svc.Book(ctx, project.NewBooking{ProjectID: unknownID, StaffID: staffID, Date: monday, Hours: 1})
	assert.Equal(t, "project_id", fieldOf(t, err))

	hours, err := svc.BookedHours(ctx, staffID, monday, monday.AddDate(0, 0, 6))
	require.NoError(t, err)
	assert.Equal(t, 14.0, hours, "the third booking falls the next week")

	bookings, err := svc.Bookings(ctx, project.BookingFilter{ProjectID: p.ID})
	require.NoError(t, err)
	require.Len(t, bookings, 3)
	assert.Equal(t, monday, bookings[0].Date, "dates are stored as days")

	require.NoError(t, svc.CancelBooking(ctx, bookings[0].ID))
	assert.Equal(t, project.ErrBookingNotFound, svc.CancelBooking(ctx, bookings[0].ID))

	require.NoError(t, svc.Delete(ctx, p.ID))
	bookings, err = svc.Bookings(ctx, project.BookingFilter{StaffID: staffID})
	require.NoError(t, err)
	assert.Empty(t, bookings, "bookings go with their project")
}
