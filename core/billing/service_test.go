package billing_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/billing"
	"github.com/atelierhq/atelier/core/project"
	inmemdb "github.com/atelierhq/atelier/storage/database/inmem"
	testutil "github.com/atelierhq/atelier/tests"
)

func newService(t *testing.T) (*billing.Service, *project.Service, project.Project) {
	db := inmemdb.NewDB()
	conf := testutil.NewConfig()
	projects := project.NewService(inmemdb.NewProjectRepository(db))
	c := testutil.CreateClient(t, inmemdb.NewClientRepository(db), "Acme")
	p := testutil.CreateProject(t, inmemdb.NewProjectRepository(db), c.ID, "Rebrand", "incoming", 10000, nil)
	return billing.NewService(inmemdb.NewBillingRepository(db), projects, conf), projects, p
}

func validationField(t *testing.T, err error) string {
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "expected a validation error, got %v", err)
	return verr.Fields[0].Field
}

func TestService_GenerateForStage(t *testing.T) {
	ctx := context.Background()
	svc, projects, p := newService(t)

	st, err := projects.Stage(ctx, "in_progress")
	require.NoError(t, err)

	rec, err := svc.GenerateForStage(ctx, p, st)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusDraft, rec.Status)
	assert.Equal(t, "in_progress", rec.Stage)
	assert.Equal(t, p.ClientID, rec.ClientID)
	assert.True(t, decimal.NewFromInt(5000).Equal(rec.Amount), rec.Amount.String())
	assert.Equal(t, "Rebrand: 50% on in progress", rec.Description)

	_, err = svc.GenerateForStage(ctx, p, st)
	assert.Equal(t, billing.ErrAlreadyBilled, err)

	review, err := projects.Stage(ctx, "review")
	require.NoError(t, err)
	_, err = svc.GenerateForStage(ctx, p, review)
	assert.Equal(t, billing.ErrNothingToBill, err)

	p.Value = decimal.Zero
	completed, err := projects.Stage(ctx, "completed")
	require.NoError(t, err)
	_, err = svc.GenerateForStage(ctx, p, completed)
	assert.Equal(t, billing.ErrNothingToBill, err)
}

func TestService_SetStatus(t *testing.T) {
	ctx := context.Background()
	svc, _, p := newService(t)

	rec, err := svc.Create(ctx, billing.NewRecord{ProjectID: p.ID, Description: "Extra print run", Amount: decimal.RequireFromString("250.555")})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("250.56").Equal(rec.Amount))
	assert.Empty(t, rec.InvoiceNumber)

	rec, err = svc.SetStatus(ctx, rec, billing.StatusInvoiced)
	require.NoError(t, err)
	assert.Regexp(t, `^INV-\d{6}-[0-9A-F]{6}$`, rec.InvoiceNumber)
	require.NotNil(t, rec.IssuedAt)
	require.NotNil(t, rec.DueAt)
	assert.Equal(t, 30*24, int(rec.DueAt.Sub(*rec.IssuedAt).Hours()))
	number := rec.InvoiceNumber

	outstanding, err := svc.Outstanding(ctx, "")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("300.67").Equal(outstanding), outstanding.String())

	_, err = svc.SetStatus(ctx, rec, billing.StatusDraft)
	assert.Equal(t, "status", validationField(t, err), "records only move forward")

	rec, err = svc.SetStatus(ctx, rec, billing.StatusPaid)
	require.NoError(t, err)
	assert.Equal(t, number, rec.InvoiceNumber, "paying keeps the invoice number")
	assert.NotNil(t, rec.PaidAt)

	outstanding, err = svc.Outstanding(ctx, "")
	require.NoError(t, err)
	assert.True(t, outstanding.IsZero())

	err = svc.Delete(ctx, rec)
	assert.Equal(t, "status", validationField(t, err), "only drafts can be deleted")
}

func TestService_DraftStraightToPaid(t *testing.T) {
	ctx := context.Background()
	svc, _, p := newService(t)

	rec, err := svc.Create(ctx, billing.NewRecord{ProjectID: p.ID, Description: "Deposit", Amount: decimal.NewFromInt(100)})
	require.NoError(t, err)
	rec, err = svc.SetStatus(ctx, rec, billing.StatusPaid)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.InvoiceNumber)
	assert.NotNil(t, rec.IssuedAt)
	assert.NotNil(t, rec.PaidAt)
}

func TestService_CreateUnknownProject(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Create(context.Background(), billing.NewRecord{
		ProjectID:   "3c0d8b9e-8f57-4c1e-9a43-000000000000",
		Description: "Ghost",
		Amount:      decimal.NewFromInt(1),
	})
	assert.Equal(t, "project_id", validationField(t, err))
}

func TestService_DeleteDraft(t *testing.T) {
	ctx := context.Background()
	svc, _, p := newService(t)

	rec, err := svc.Create(ctx, billing.NewRecord{ProjectID: p.ID, Description: "Mistake", Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, rec))
	_, err = svc.Get(ctx, rec.ID)
	assert.Equal(t, billing.ErrNotFound, err)
}

func TestService_Expenses(t *testing.T) {
	ctx := context.Background()
	svc, _, p := newService(t)

	e, err := svc.CreateExpense(ctx, billing.NewExpense{
		ProjectID:   p.ID,
		Description: "Stock photos",
		Category:    "assets",
		Amount:      decimal.RequireFromString("49.99"),
		IncurredAt:  testutil.Date(2024, 5, 2),
	})
	require.NoError(t, err)
	_, err = svc.CreateExpense(ctx, billing.NewExpense{
		Description: "Fonts",
		Category:    "assets",
		Amount:      decimal.NewFromInt(20),
		IncurredAt:  testutil.Date(2024, 6, 1),
	})
	require.NoError(t, err)

	may, err := svc.Expenses(ctx, &billing.ExpenseFilter{From: testutil.Date(2024, 5, 1), To: testutil.Date(2024, 5, 31)})
	require.NoError(t, err)
	require.Len(t, may, 1)
	assert.Equal(t, e.ID, may[0].ID)

	desc := "Stock photography"
	e, err = svc.UpdateExpense(ctx, e, billing.UpdateExpense{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, desc, e.Description)

	all, err := svc.Expenses(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Fonts", all[0].Description, "newest first")

	require.NoError(t, svc.DeleteExpense(ctx, e.ID))
	assert.Equal(t, billing.ErrExpenseNotFound, svc.DeleteExpense(ctx, e.ID))
}
