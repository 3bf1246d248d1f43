package inmemdb

import (
	"cmp"
	"context"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/billing"
)

var recordOrdering = comparators[billing.Record]{
	"amount":         func(a, b billing.Record) int { return a.Amount.Cmp(b.Amount) },
	"status":         func(a, b billing.Record) int { return cmp.Compare(a.Status, b.Status) },
	"invoice_number": func(a, b billing.Record) int { return cmp.Compare(a.InvoiceNumber, b.InvoiceNumber) },
	"issued_at":      func(a, b billing.Record) int { return timePtrCmp(a.IssuedAt, b.IssuedAt) },
	"due_at":         func(a, b billing.Record) int { return timePtrCmp(a.DueAt, b.DueAt) },
	"paid_at":        func(a, b billing.Record) int { return timePtrCmp(a.PaidAt, b.PaidAt) },
	"created_at":     func(a, b billing.Record) int { return timeCmp(a.CreatedAt, b.CreatedAt) },
}

var expenseOrdering = comparators[billing.Expense]{
	"incurred_at": func(a, b billing.Expense) int { return timeCmp(a.IncurredAt, b.IncurredAt) },
	"created_at":  func(a, b billing.Expense) int { return timeCmp(a.CreatedAt, b.CreatedAt) },
}

type billingRepository struct {
	records  *table[billing.Record]
	expenses *table[billing.Expense]
}

var _ billing.Repository = (*billingRepository)(nil) // interface compliance check

func NewBillingRepository(db *DB) *billingRepository {
	return &billingRepository{records: db.records, expenses: db.expenses}
}

func (r *billingRepository) CreateRecord(_ context.Context, rec billing.Record) (billing.Record, error) {
	rec.ID = uuid.NewString()
	sameStage := func(o billing.Record) bool {
		return rec.Stage != "" && o.ProjectID == rec.ProjectID && o.Stage == rec.Stage
	}
	if !r.records.insertUnique(rec.ID, rec, sameStage) {
		return billing.Record{}, billing.ErrAlreadyBilled
	}
	return rec, nil
}

func (r *billingRepository) QueryRecords(_ context.Context, filter *billing.QueryFilter, ordering []core.DBOrdering) ([]billing.Record, error) {
	records := r.records.filter(func(rec billing.Record) bool {
		if filter == nil {
			return true
		}
		if filter.ProjectID != "" && rec.ProjectID != filter.ProjectID {
			return false
		}
		if filter.ClientID != "" && rec.ClientID != filter.ClientID {
			return false
		}
		if len(filter.Status) > 0 && !core.Contains(filter.Status, rec.Status) {
			return false
		}
		return inDays(rec.CreatedAt, filter.From, filter.To)
	})
	sortRows(records, ordering, recordOrdering, core.DBOrdering{Field: "created_at"})
	return records, nil
}

func (r *billingRepository) GetRecordByID(_ context.Context, id string) (billing.Record, error) {
	if rec, ok := r.records.get(id); ok {
		return rec, nil
	}
	return billing.Record{}, billing.ErrNotFound
}

func (r *billingRepository) GetRecordByProjectStage(_ context.Context, projectID, stage string) (billing.Record, error) {
	rec, ok := r.records.find(func(rec billing.Record) bool { return rec.ProjectID == projectID && rec.Stage == stage })
	if !ok {
		return billing.Record{}, billing.ErrNotFound
	}
	return rec, nil
}

func (r *billingRepository) UpdateRecord(_ context.Context, rec billing.Record) (billing.Record, error) {
	if !r.records.update(rec.ID, rec) {
		return billing.Record{}, billing.ErrNotFound
	}
	return rec, nil
}

func (r *billingRepository) DeleteRecord(_ context.Context, id string) error {
	if !r.records.remove(id) {
		return billing.ErrNotFound
	}
	return nil
}

// Expenses

func (r *billingRepository) CreateExpense(_ context.Context, e billing.Expense) (billing.Expense, error) {
	e.ID = uuid.NewString()
	e.IncurredAt = core.Day(e.IncurredAt)
	r.expenses.insert(e.ID, e)
	return e, nil
}

func (r *billingRepository) QueryExpenses(_ context.Context, filter *billing.ExpenseFilter) ([]billing.Expense, error) {
	expenses := r.expenses.filter(func(e billing.Expense) bool {
		if filter == nil {
			return true
		}
		if filter.ProjectID != "" && e.ProjectID != filter.ProjectID {
			return false
		}
		if filter.Category != "" && e.Category != filter.Category {
			return false
		}
		return inDays(e.IncurredAt, filter.From, filter.To)
	})
	sortRows(expenses, nil, expenseOrdering, core.DBOrdering{Field: "incurred_at"}, core.DBOrdering{Field: "created_at"})
	return expenses, nil
}

func (r *billingRepository) GetExpenseByID(_ context.Context, id string) (billing.Expense, error) {
	if e, ok := r.expenses.get(id); ok {
		return e, nil
	}
	return billing.Expense{}, billing.ErrExpenseNotFound
}

func (r *billingRepository) UpdateExpense(_ context.Context, e billing.Expense) (billing.Expense, error) {
	e.IncurredAt = core.Day(e.IncurredAt)
	if !r.expenses.update(e.ID, e) {
		return billing.Expense{}, billing.ErrExpenseNotFound
	}
	return e, nil
}

func (r *billingRepository) DeleteExpense(_ context.Context, id string) error {
	if !r.expenses.remove(id) {
		return billing.ErrExpenseNotFound
	}
	return nil
}
