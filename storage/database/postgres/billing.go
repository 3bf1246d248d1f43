package pgrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/billing"
)

const (
	recordColumns  = "id, project_id, client_id, stage, description, percent, amount, status, invoice_number, issued_at, due_at, paid_at, created_at"
	expenseColumns = "id, project_id, description, category, amount, incurred_at, created_at"
)

var recordOrdering = map[string]string{
	"amount":         "amount",
	"status":         "status",
	"invoice_number": "invoice_number",
	"issued_at":      "issued_at",
	"due_at":         "due_at",
	"paid_at":        "paid_at",
	"created_at":     "created_at",
}

type (
	recordRow struct {
		ID            string          `db:"id"`
		ProjectID     string          `db:"project_id"`
		ClientID      string          `db:"client_id"`
		Stage         string          `db:"stage"`
		Description   string          `db:"description"`
		Percent       decimal.Decimal `db:"percent"`
		Amount        decimal.Decimal `db:"amount"`
		Status        string          `db:"status"`
		InvoiceNumber null.String     `db:"invoice_number"`
		IssuedAt      null.Time       `db:"issued_at"`
		DueAt         null.Time       `db:"due_at"`
		PaidAt        null.Time       `db:"paid_at"`
		CreatedAt     time.Time       `db:"created_at"`
	}

	expenseRow struct {
		ID          string          `db:"id"`
		ProjectID   null.String     `db:"project_id"`
		Description string          `db:"description"`
		Category    string          `db:"category"`
		Amount      decimal.Decimal `db:"amount"`
		IncurredAt  time.Time       `db:"incurred_at"`
		CreatedAt   time.Time       `db:"created_at"`
	}
)

func toRecordRow(r billing.Record) recordRow {
	return recordRow{
		ID:            r.ID,
		ProjectID:     r.ProjectID,
		ClientID:      r.ClientID,
		Stage:         r.Stage,
		Description:   r.Description,
		Percent:       r.Percent,
		Amount:        r.Amount,
		Status:        r.Status,
		InvoiceNumber: null.NewString(r.InvoiceNumber, r.InvoiceNumber != ""),
		IssuedAt:      null.TimeFromPtr(r.IssuedAt),
		DueAt:         null.TimeFromPtr(r.DueAt),
		PaidAt:        null.TimeFromPtr(r.PaidAt),
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

func (row recordRow) record() billing.Record {
	return billing.Record{
		ID:            row.ID,
		ProjectID:     row.ProjectID,
		ClientID:      row.ClientID,
		Stage:         row.Stage,
		Description:   row.Description,
		Percent:       row.Percent,
		Amount:        row.Amount,
		Status:        row.Status,
		InvoiceNumber: row.InvoiceNumber.String,
		IssuedAt:      timePtr(row.IssuedAt),
		DueAt:         timePtr(row.DueAt),
		PaidAt:        timePtr(row.PaidAt),
		CreatedAt:     row.CreatedAt.UTC(),
	}
}

func toExpenseRow(e billing.Expense) expenseRow {
	return expenseRow{
		ID:          e.ID,
		ProjectID:   null.NewString(e.ProjectID, e.ProjectID != ""),
		Description: e.Description,
		Category:    e.Category,
		Amount:      e.Amount,
		IncurredAt:  core.Day(e.IncurredAt),
		CreatedAt:   e.CreatedAt.UTC(),
	}
}

func (row expenseRow) expense() billing.Expense {
	return billing.Expense{
		ID:          row.ID,
		ProjectID:   row.ProjectID.String,
		Description: row.Description,
		Category:    row.Category,
		Amount:      row.Amount,
		IncurredAt:  core.Day(row.IncurredAt),
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

type billingRepository struct {
	repo
}

var _ billing.Repository = (*billingRepository)(nil) // interface compliance check

func NewBillingRepository(db *sqlx.DB) *billingRepository {
	return &billingRepository{repo{db: db}}
}

// Records

func (r *billingRepository) CreateRecord(ctx context.Context, rec billing.Record) (billing.Record, error) {
	rec.ID = uuid.NewString()
	_, err := r.namedExec(ctx, `
		INSERT INTO billing_records (`+recordColumns+`)
		VALUES (:id, :project_id, :client_id, :stage, :description, :percent, :amount, :status, :invoice_number,
		        :issued_at, :due_at, :paid_at, :created_at)`,
		toRecordRow(rec))
	if err != nil {
		if _, ok := uniqueViolated(err); ok {
			return billing.Record{}, billing.ErrAlreadyBilled
		}
		return billing.Record{}, errors.Wrap(err, "inserting billing record")
	}
	return rec, nil
}

func (r *billingRepository) QueryRecords(ctx context.Context, filter *billing.QueryFilter, ordering []core.DBOrdering) ([]billing.Record, error) {
	w := &where{}
	if filter != nil {
		if filter.ProjectID != "" {
			if !validID(filter.ProjectID) {
				return []billing.Record{}, nil
			}
			w.and("project_id = ?", filter.ProjectID)
		}
		if filter.ClientID != "" {
			if !validID(filter.ClientID) {
				return []billing.Record{}, nil
			}
			w.and("client_id = ?", filter.ClientID)
		}
		if len(filter.Status) > 0 {
			w.and("status IN (?)", filter.Status)
		}
		if !filter.From.IsZero() {
			w.and("created_at >= ?", core.Day(filter.From))
		}
		if !filter.To.IsZero() {
			w.and("created_at < ?", core.Day(filter.To).AddDate(0, 0, 1))
		}
	}
	query := "SELECT " + recordColumns + " FROM billing_records" + w.String() +
		" ORDER BY " + core.OrderBy(ordering, recordOrdering, "created_at DESC")

	var rows []recordRow
	if err := r.selectAll(ctx, &rows, query, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying billing records")
	}
	records := make([]billing.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (r *billingRepository) GetRecordByID(ctx context.Context, id string) (billing.Record, error) {
	if !validID(id) {
		return billing.Record{}, billing.ErrNotFound
	}
	var row recordRow
	if err := r.get(ctx, &row, "SELECT "+recordColumns+" FROM billing_records WHERE id = ?", id); err != nil {
		return billing.Record{}, trapNoRowsErr(err, billing.ErrNotFound, "finding billing record by ID")
	}
	return row.record(), nil
}

func (r *billingRepository) GetRecordByProjectStage(ctx context.Context, projectID, stage string) (billing.Record, error) {
	if !validID(projectID) {
		return billing.Record{}, billing.ErrNotFound
	}
	var row recordRow
	err := r.get(ctx, &row, "SELECT "+recordColumns+" FROM billing_records WHERE project_id = ? AND stage = ?", projectID, stage)
	if err != nil {
		return billing.Record{}, trapNoRowsErr(err, billing.ErrNotFound, "finding billing record by stage")
	}
	return row.record(), nil
}

func (r *billingRepository) UpdateRecord(ctx context.Context, rec billing.Record) (billing.Record, error) {
	n, err := r.namedExec(ctx, `
		UPDATE billing_records
		SET description = :description, amount = :amount, status = :status, invoice_number = :invoice_number,
		    issued_at = :issued_at, due_at = :due_at, paid_at = :paid_at
		WHERE id = :id`,
		toRecordRow(rec))
	if err != nil {
		return billing.Record{}, errors.Wrap(err, "updating billing record")
	}
	if n == 0 {
		return billing.Record{}, billing.ErrNotFound
	}
	return rec, nil
}

func (r *billingRepository) DeleteRecord(ctx context.Context, id string) error {
	if !validID(id) {
		return billing.ErrNotFound
	}
	n, err := r.exec(ctx, "DELETE FROM billing_records WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting billing record")
	}
	if n == 0 {
		return billing.ErrNotFound
	}
	return nil
}

// Expenses

func (r *billingRepository) CreateExpense(ctx context.Context, e billing.Expense) (billing.Expense, error) {
	e.ID = uuid.NewString()
	_, err := r.namedExec(ctx, `
		INSERT INTO expenses (`+expenseColumns+`)
		VALUES (:id, :project_id, :description, :category, :amount, :incurred_at, :created_at)`,
		toExpenseRow(e))
	if err != nil {
		return billing.Expense{}, errors.Wrap(err, "inserting expense")
	}
	return e, nil
}

func (r *billingRepository) QueryExpenses(ctx context.Context, filter *billing.ExpenseFilter) ([]billing.Expense, error) {
	w := &where{}
	if filter != nil {
		if filter.ProjectID != "" {
			if !validID(filter.ProjectID) {
				return []billing.Expense{}, nil
			}
			w.and("project_id = ?", filter.ProjectID)
		}
		if filter.Category != "" {
			w.and("category = ?", filter.Category)
		}
		if !filter.From.IsZero() {
			w.and("incurred_at >= ?", core.Day(filter.From))
		}
		if !filter.To.IsZero() {
			w.and("incurred_at <= ?", core.Day(filter.To))
		}
	}

	var rows []expenseRow
	query := "SELECT " + expenseColumns + " FROM expenses" + w.String() + " ORDER BY incurred_at DESC, created_at DESC"
	if err := r.selectAll(ctx, &rows, query, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying expenses")
	}
	expenses := make([]billing.Expense, 0, len(rows))
	for _, row := range rows {
		expenses = append(expenses, row.expense())
	}
	return expenses, nil
}

func (r *billingRepository) GetExpenseByID(ctx context.Context, id string) (billing.Expense, error) {
	if !validID(id) {
		return billing.Expense{}, billing.ErrExpenseNotFound
	}
	var row expenseRow
	if err := r.get(ctx, &row, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id); err != nil {
		return billing.Expense{}, trapNoRowsErr(err, billing.ErrExpenseNotFound, "finding expense by ID")
	}
	return row.expense(), nil
}

func (r *billingRepository) UpdateExpense(ctx context.Context, e billing.Expense) (billing.Expense, error) {
	n, err := r.namedExec(ctx, `
		UPDATE expenses
		SET project_id = :project_id, description = :description, category = :category, amount = :amount,
		    incurred_at = :incurred_at
		WHERE id = :id`,
		toExpenseRow(e))
	if err != nil {
		return billing.Expense{}, errors.Wrap(err, "updating expense")
	}
	if n == 0 {
		return billing.Expense{}, billing.ErrExpenseNotFound
	}
	return e, nil
}

func (r *billingRepository) DeleteExpense(ctx context.Context, id string) error {
	if !validID(id) {
		return billing.ErrExpenseNotFound
	}
	n, err := r.exec(ctx, "DELETE FROM expenses WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting expense")
	}
	if n == 0 {
		return billing.ErrExpenseNotFound
	}
	return nil
}
