package billing

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/atelierhq/atelier/core"
)

// Record statuses
const (
	StatusDraft    = "draft"
	StatusInvoiced = "invoiced"
	StatusPaid     = "paid"
)

var hundred = decimal.NewFromInt(100)

type Record struct {
	ID            string          `json:"id"`
	ProjectID     string          `json:"project_id"`
	ClientID      string          `json:"client_id"`
	Stage         string          `json:"stage"`
	Description   string          `json:"description"`
	Percent       decimal.Decimal `json:"percent"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	IssuedAt      *time.Time      `json:"issued_at"`
	DueAt         *time.Time      `json:"due_at"`
	PaidAt        *time.Time      `json:"paid_at"`
	CreatedAt     time.Time       `json:"created_at"`
}

// BilledAt is the date a record counts towards: its issue date once invoiced, its creation date before.
func (r Record) BilledAt() time.Time {
	if r.IssuedAt != nil {
		return *r.IssuedAt
	}
	return r.CreatedAt
}

type Expense struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id,omitempty"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	IncurredAt  time.Time       `json:"incurred_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

// VAT returns the tax due on amount, rounded to the cent.
func VAT(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Round(2)
}

// StageAmount is the share of value billed when a project enters a stage.
func StageAmount(value, percent decimal.Decimal) decimal.Decimal {
	return value.Mul(percent).Div(hundred).Round(2)
}

// Sum adds up record amounts.
func Sum(records []Record) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	return total
}

// SumExpenses adds up expense amounts.
func SumExpenses(expenses []Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

type MonthTotals struct {
	Month    string          `json:"month"` // YYYY-MM
	Billed   decimal.Decimal `json:"billed"`
	VAT      decimal.Decimal `json:"vat"`
	Gross    decimal.Decimal `json:"gross"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

type Summary struct {
	From     time.Time       `json:"from"`
	To       time.Time       `json:"to"`
	VATRate  decimal.Decimal `json:"vat_rate"`
	Months   []MonthTotals   `json:"months"`
	Billed   decimal.Decimal `json:"billed"`
	VAT      decimal.Decimal `json:"vat"`
	Gross    decimal.Decimal `json:"gross"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

// MonthlySummary groups records and expenses falling in [from, to] by calendar month and totals them.
// VAT applies to billed amounts. Net is billed minus expenses, before tax.
func MonthlySummary(records []Record, expenses []Expense, from, to time.Time, rate decimal.Decimal) Summary {
	from, to = core.Day(from), core.Day(to).AddDate(0, 0, 1) // to is inclusive
	inRange := func(t time.Time) bool { return !t.Before(from) && t.Before(to) }

	byMonth := make(map[string]*MonthTotals)
	month := func(t time.Time) *MonthTotals {
		key := t.UTC().Format("2006-01")
		mt, ok := byMonth[key]
		if !ok {
			mt = &MonthTotals{Month: key, Billed: decimal.Zero, Expenses: decimal.Zero}
			byMonth[key] = mt
		}
		return mt
	}

	for _, r := range records {
		if at := r.BilledAt(); inRange(at) {
			mt := month(at)
			mt.Billed = mt.Billed.Add(r.Amount)
		}
	}
	for _, e := range expenses {
		if inRange(e.IncurredAt) {
			mt := month(e.IncurredAt)
			mt.Expenses = mt.Expenses.Add(e.Amount)
		}
	}

	sum := Summary{
		From:     from,
		To:       to.AddDate(0, 0, -1),
		VATRate:  rate,
		Months:   make([]MonthTotals, 0, len(byMonth)),
		Billed:   decimal.Zero,
		Expenses: decimal.Zero,
	}
	for _, mt := range byMonth {
		mt.VAT = VAT(mt.Billed, rate)
		mt.Gross = mt.Billed.Add(mt.VAT)
		mt.Net = mt.Billed.Sub(mt.Expenses)
		sum.Months = append(sum.Months, *mt)
		sum.Billed = sum.Billed.Add(mt.Billed)
		sum.Expenses = sum.Expenses.Add(mt.Expenses)
	}
	sort.Slice(sum.Months, func(i, j int) bool { return sum.Months[i].Month < sum.Months[j].Month })
	sum.VAT = VAT(sum.Billed, rate)
	sum.Gross = sum.Billed.Add(sum.VAT)
	sum.Net = sum.Billed.Sub(sum.Expenses)
	return sum
}

type NewRecord struct {
	ProjectID   string          `json:"project_id" validate:"required,uuid"`
	Description string          `json:"description" validate:"required,notblank"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
}

func (nr *NewRecord) Validate(validate *validator.Validate) error {
	nr.Description = core.CleanString(nr.Description)
	return validate.Struct(nr)
}

type SetStatus struct {
	Status string `json:"status" validate:"required,oneof=draft invoiced paid"`
}

type NewExpense struct {
	ProjectID   string          `json:"project_id" validate:"omitempty,uuid"`
	Description string          `json:"description" validate:"required,notblank"`
	Category    string          `json:"category" validate:"omitempty,max=64"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	IncurredAt  time.Time       `json:"incurred_at" validate:"required"`
}

func (ne *NewExpense) Validate(validate *validator.Validate) error {
	ne.Description = core.CleanString(ne.Description)
	ne.Category = core.CleanString(ne.Category, true /* lower */)
	if !ne.IncurredAt.IsZero() {
		ne.IncurredAt = core.Day(ne.IncurredAt)
	}
	return validate.Struct(ne)
}

type UpdateExpense struct {
	Description *string          `json:"description" validate:"omitempty,notblank"`
	Category    *string          `json:"category" validate:"omitempty,max=64"`
	Amount      *decimal.Decimal `json:"amount" validate:"omitempty,gt=0"`
	IncurredAt  *time.Time       `json:"incurred_at"`
}

func (ue *UpdateExpense) Validate(validate *validator.Validate) error { return validate.Struct(ue) }

func (ue UpdateExpense) apply(e *Expense) {
	if ue.Description != nil {
		e.Description = core.CleanString(*ue.Description)
	}
	if ue.Category != nil {
		e.Category = core.CleanString(*ue.Category, true /* lower */)
	}
	if ue.Amount != nil {
		e.Amount = ue.Amount.Round(2)
	}
	if ue.IncurredAt != nil {
		e.IncurredAt = core.Day(*ue.IncurredAt)
	}
}

// QueryFilter selects billing records. From and To bound the creation date (inclusive days).
type QueryFilter struct {
	ProjectID string    `query:"project_id"`
	ClientID  string    `query:"client_id"`
	Status    []string  `query:"status"`
	From      time.Time `query:"from"`
	To        time.Time `query:"to"`
}

// ExpenseFilter selects expenses. From and To bound IncurredAt (inclusive days).
type ExpenseFilter struct {
	ProjectID string    `query:"project_id"`
	Category  string    `query:"category"`
	From      time.Time `query:"from"`
	To        time.Time `query:"to"`
}
