package echoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/atelierhq/atelier/core"
)

var (
	orderingParam = "ordering"

	// query dates may be plain days or full timestamps
	dateLayouts = []string{"2006-01-02", time.RFC3339}
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=name,-created_at`: a leading "-" sorts descending.
func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

func parseDate(s string) (time.Time, error) {
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

// dateParam binds a date query param to dest, leaving it untouched when absent.
func dateParam(b *echo.ValueBinder, name string, dest *time.Time) *echo.ValueBinder {
	return b.CustomFunc(name, func(values []string) []error {
		if len(values) == 0 || values[0] == "" {
			return nil
		}
		t, err := parseDate(values[0])
		if err != nil {
			return []error{echo.NewBindingError(name, values[0:1], "invalid date", err)}
		}
		*dest = t
		return nil
	})
}

// bindDateRange reads `from` and `to`, defaulting to the given range.
func bindDateRange(ctx echo.Context, from, to time.Time) (time.Time, time.Time, error) {
	b := echo.QueryParamsBinder(ctx)
	dateParam(b, "from", &from)
	dateParam(b, "to", &to)
	if err := b.BindError(); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if core.Day(to).Before(core.Day(from)) {
		return time.Time{}, time.Time{}, echo.NewHTTPError(http.StatusBadRequest, echo.Map{"to": "must not be before from"})
	}
	return core.Day(from), core.Day(to), nil
}

// monthRange returns the first and last day of t's month.
func monthRange(t time.Time) (time.Time, time.Time) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}
