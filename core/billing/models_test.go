package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestVAT(t *testing.T) {
	rate := dec("0.20")
	records := []Record{{Amount: dec("10")}, {Amount: dec("20")}}

	assert.True(t, dec("30").Equal(Sum(records)))
	assert.True(t, dec("6").Equal(VAT(Sum(records), rate)))
	assert.True(t, decimal.Zero.Equal(VAT(Sum(nil), rate)))
	assert.True(t, dec("2.47").Equal(VAT(dec("12.34"), rate)), "rounded to the cent")
}

func TestStageAmount(t *testing.T) {
	assert.True(t, dec("2500").Equal(StageAmount(dec("5000"), dec("50"))))
	assert.True(t, dec("333.33").Equal(StageAmount(dec("1000"), dec("33.333"))))
	assert.True(t, decimal.Zero.Equal(StageAmount(dec("1000"), decimal.Zero)))
}

func TestMonthlySummary(t *testing.T) {
	day := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 10, 0, 0, 0, time.UTC) }
	issued := day(time.March, 2)

	records := []Record{
		{Amount: dec("10"), CreatedAt: day(time.January, 5)},
		{Amount: dec("20"), CreatedAt: day(time.January, 31)},
		{Amount: dec("100"), CreatedAt: day(time.February, 27), IssuedAt: &issued}, // counts in March
		{Amount: dec("999"), CreatedAt: day(time.April, 1)},                       // out of range
	}
	expenses := []Expense{
		{Amount: dec("5"), IncurredAt: day(time.January, 10)},
		{Amount: dec("7.50"), IncurredAt: day(time.February, 14)},
	}

	sum := MonthlySummary(records, expenses, day(time.January, 1), day(time.March, 31), dec("0.2"))

	require.Len(t, sum.Months, 3)
	assert.Equal(t, []string{"2024-01", "2024-02", "2024-03"},
		[]string{sum.Months[0].Month, sum.Months[1].Month, sum.Months[2].Month})

	jan := sum.Months[0]
	assert.True(t, dec("30").Equal(jan.Billed))
	assert.True(t, dec("6").Equal(jan.VAT))
	assert.True(t, dec("36").Equal(jan.Gross))
	assert.True(t, dec("25").Equal(jan.Net))

	feb := sum.Months[1]
	assert.True(t, decimal.Zero.Equal(feb.Billed))
	assert.True(t, dec("-7.5").Equal(feb.Net))

	assert.True(t, dec("130").Equal(sum.Billed))
	assert.True(t, dec("26").Equal(sum.VAT))
	assert.True(t, dec("12.5").Equal(sum.Expenses))
	assert.True(t, dec("117.5").Equal(sum.Net))
	assert.Equal(t, time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC), sum.To)
}

func TestInvoiceNumber(t *testing.T) {
	n := InvoiceNumber(time.Date(2024, time.May, 6, 0, 0, 0, 0, time.UTC))
	assert.Regexp(t, `^INV-202405-[0-9A-F]{6}$`, n)
}
