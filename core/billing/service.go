package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/project"
)

var (
	// errors
	ErrNotFound          = errors.New("billing record not found")
	ErrExpenseNotFound   = errors.New("expense not found")
	ErrNothingToBill     = errors.New("stage does not bill anything")
	ErrAlreadyBilled     = errors.New("project has already been billed for this stage")
	ErrInvalidTransition = errors.New("invalid status change")
	ErrNotDraft          = errors.New("only draft records can be deleted")
)

// allowed status changes: records move forward only
var transitions = map[string][]string{
	StatusDraft:    {StatusInvoiced, StatusPaid},
	StatusInvoiced: {StatusPaid},
}

type (
	Repository interface {
		CreateRecord(ctx context.Context, r Record) (Record, error)
		QueryRecords(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Record, error)
		GetRecordByID(ctx context.Context, id string) (Record, error)
		GetRecordByProjectStage(ctx context.Context, projectID, stage string) (Record, error)
		UpdateRecord(ctx context.Context, r Record) (Record, error)
		DeleteRecord(ctx context.Context, id string) error

		CreateExpense(ctx context.Context, e Expense) (Expense, error)
		QueryExpenses(ctx context.Context, filter *ExpenseFilter) ([]Expense, error)
		GetExpenseByID(ctx context.Context, id string) (Expense, error)
		UpdateExpense(ctx context.Context, e Expense) (Expense, error)
		DeleteExpense(ctx context.Context, id string) error
	}

	// ProjectGetter resolves the project a manual record is billed against.
	ProjectGetter interface {
		Get(ctx context.Context, id string) (project.Project, error)
	}

	Service struct {
		repo        Repository
		projects    ProjectGetter
		vatRate     decimal.Decimal
		paymentDays int
		now         func() time.Time
	}
)

func NewService(repo Repository, projects ProjectGetter, conf *core.Config) *Service {
	return &Service{
		repo:        repo,
		projects:    projects,
		vatRate:     decimal.NewFromFloat(conf.Billing.VATRate),
		paymentDays: conf.Billing.PaymentDays,
		now:         time.Now,
	}
}

func (svc *Service) VATRate() decimal.Decimal { return svc.vatRate }

// GenerateForStage creates the draft record billing the stage's share of the project value.
func (svc *Service) GenerateForStage(ctx context.Context, p project.Project, st project.Stage) (Record, error) {
	if !st.BillingPercent.IsPositive() || !p.Value.IsPositive() {
		return Record{}, ErrNothingToBill
	}
	if _, err := svc.repo.GetRecordByProjectStage(ctx, p.ID, st.Name); err == nil {
		return Record{}, ErrAlreadyBilled
	} else if err != ErrNotFound {
		return Record{}, errors.Wrap(err, "finding stage record")
	}

	r, err := svc.repo.CreateRecord(ctx, Record{
		ProjectID:   p.ID,
		ClientID:    p.ClientID,
		Stage:       st.Name,
		Description: fmt.Sprintf("%s: %s%% on %s", p.Name, st.BillingPercent.String(), strings.ReplaceAll(st.Name, "_", " ")),
		Percent:     st.BillingPercent,
		Amount:      StageAmount(p.Value, st.BillingPercent),
		Status:      StatusDraft,
		CreatedAt:   svc.now().UTC(),
	})
	return r, errors.Wrap(err, "creating billing record")
}

// Create adds a manual record, not tied to a stage.
func (svc *Service) Create(ctx context.Context, nr NewRecord) (Record, error) {
	p, err := svc.projects.Get(ctx, nr.ProjectID)
	if err != nil {
		if errors.Cause(err) == project.ErrNotFound {
			return Record{}, core.NewFieldError("project_id", err)
		}
		return Record{}, errors.Wrap(err, "finding project")
	}
	r, err := svc.repo.CreateRecord(ctx, Record{
		ProjectID:   p.ID,
		ClientID:    p.ClientID,
		Description: nr.Description,
		Amount:      nr.Amount.Round(2),
		Status:      StatusDraft,
		CreatedAt:   svc.now().UTC(),
	})
	return r, errors.Wrap(err, "creating billing record")
}

func (svc *Service) Get(ctx context.Context, id string) (Record, error) {
	return svc.repo.GetRecordByID(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Record, error) {
	if filter != nil {
		if !filter.From.IsZero() {
			filter.From = core.Day(filter.From)
		}
		if !filter.To.IsZero() {
			filter.To = core.Day(filter.To)
		}
	}
	return svc.repo.QueryRecords(ctx, filter, ordering)
}

// SetStatus moves a record forward: invoicing numbers and dates it, paying stamps PaidAt.
func (svc *Service) SetStatus(ctx context.Context, r Record, status string) (Record, error) {
	if r.Status == status {
		return r, nil
	}
	if !core.Contains(transitions[r.Status], status) {
		return Record{}, core.NewFieldError("status", ErrInvalidTransition)
	}

	now := svc.now().UTC()
	if r.InvoiceNumber == "" {
		r.InvoiceNumber = InvoiceNumber(now)
		issued := now
		due := now.AddDate(0, 0, svc.paymentDays)
		r.IssuedAt, r.DueAt = &issued, &due
	}
	if status == StatusPaid {
		r.PaidAt = &now
	}
	r.Status = status
	r, err := svc.repo.UpdateRecord(ctx, r)
	return r, errors.Wrap(err, "updating billing record")
}

func (svc *Service) Delete(ctx context.Context, r Record) error {
	if r.Status != StatusDraft {
		return core.NewFieldError("status", ErrNotDraft)
	}
	return svc.repo.DeleteRecord(ctx, r.ID)
}

// InvoiceNumber returns a new number like INV-202405-3F9A1C.
func InvoiceNumber(t time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("INV-%s-%s", t.UTC().Format("200601"), suffix)
}

// Summary totals billing and expenses per month over [from, to].
func (svc *Service) Summary(ctx context.Context, from, to time.Time) (Summary, error) {
	records, err := svc.repo.QueryRecords(ctx, nil, nil)
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying billing records")
	}
	expenses, err := svc.repo.QueryExpenses(ctx, &ExpenseFilter{From: core.Day(from), To: core.Day(to)})
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying expenses")
	}
	return MonthlySummary(records, expenses, from, to, svc.vatRate), nil
}

// Outstanding returns the gross amount invoiced but not yet paid.
func (svc *Service) Outstanding(ctx context.Context, clientID string) (decimal.Decimal, error) {
	records, err := svc.repo.QueryRecords(ctx, &QueryFilter{ClientID: clientID, Status: []string{StatusInvoiced}}, nil)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "querying billing records")
	}
	billed := Sum(records)
	return billed.Add(VAT(billed, svc.vatRate)), nil
}

// Expenses

func (svc *Service) CreateExpense(ctx context.Context, ne NewExpense) (Expense, error) {
	e, err := svc.repo.CreateExpense(ctx, Expense{
		ProjectID:   ne.ProjectID,
		Description: ne.Description,
		Category:    ne.Category,
		Amount:      ne.Amount.Round(2),
		IncurredAt:  ne.IncurredAt,
		CreatedAt:   svc.now().UTC(),
	})
	return e, errors.Wrap(err, "creating expense")
}

func (svc *Service) Expense(ctx context.Context, id string) (Expense, error) {
	return svc.repo.GetExpenseByID(ctx, id)
}

func (svc *Service) Expenses(ctx context.Context, filter *ExpenseFilter) ([]Expense, error) {
	if filter != nil {
		if !filter.From.IsZero() {
			filter.From = core.Day(filter.From)
		}
		if !filter.To.IsZero() {
			filter.To = core.Day(filter.To)
		}
	}
	return svc.repo.QueryExpenses(ctx, filter)
}

func (svc *Service) UpdateExpense(ctx context.Context, orig Expense, ue UpdateExpense) (Expense, error) {
	ue.apply(&orig)
	e, err := svc.repo.UpdateExpense(ctx, orig)
	return e, errors.Wrap(err, "updating expense")
}

func (svc *Service) DeleteExpense(ctx context.Context, id string) error {
	return svc.repo.DeleteExpense(ctx, id)
}
