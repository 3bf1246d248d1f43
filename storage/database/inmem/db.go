package inmemdb

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/billing"
	"github.com/atelierhq/atelier/core/chat"
	"github.com/atelierhq/atelier/core/client"
	"github.com/atelierhq/atelier/core/invitation"
	"github.com/atelierhq/atelier/core/project"
	"github.com/atelierhq/atelier/core/schedule"
	"github.com/atelierhq/atelier/core/staff"
	"github.com/atelierhq/atelier/core/user"
)

// DB keeps every table in memory. It backs the tests and the `memory` database engine.
type DB struct {
	users       *table[user.User]
	staff       *table[staff.Staff]
	clients     *table[client.Client]
	projects    *table[project.Project]
	stages      *table[project.Stage]
	bookings    *table[project.Booking]
	records     *table[billing.Record]
	expenses    *table[billing.Expense]
	invitations *table[invitation.Invitation]
	timeOffs    *table[schedule.TimeOff]
	entries     *table[schedule.Entry]
	channels    *table[chat.Channel]
	messages    *table[chat.Message]
}

func NewDB() *DB {
	db := &DB{
		users:       newTable[user.User](),
		staff:       newTable[staff.Staff](),
		clients:     newTable[client.Client](),
		projects:    newTable[project.Project](),
		stages:      newTable[project.Stage](),
		bookings:    newTable[project.Booking](),
		records:     newTable[billing.Record](),
		expenses:    newTable[billing.Expense](),
		invitations: newTable[invitation.Invitation](),
		timeOffs:    newTable[schedule.TimeOff](),
		entries:     newTable[schedule.Entry](),
		channels:    newTable[chat.Channel](),
		messages:    newTable[chat.Message](),
	}
	db.seedStages()
	return db
}

// seedStages mirrors the pipeline installed by the migrations.
func (db *DB) seedStages() {
	for i, st := range []struct {
		name    string
		percent int64
		colour  string
		closed  bool
	}{
		{"incoming", 0, "#9e9e9e", false},
		{"in_progress", 50, "#2196f3", false},
		{"review", 0, "#ff9800", false},
		{"completed", 50, "#4caf50", false},
		{"closed", 0, "#607d8b", true},
	} {
		s := project.Stage{
			ID:             uuid.NewString(),
			Name:           st.name,
			Position:       i + 1,
			BillingPercent: decimal.NewFromInt(st.percent),
			Colour:         st.colour,
			IsClosed:       st.closed,
		}
		db.stages.insert(s.ID, s)
	}
}

// Transactor runs fn straight away: writes are not rolled back when fn fails.
type Transactor struct{}

var _ core.Transactor = Transactor{} // interface compliance check

func (Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// table is a concurrency safe map keeping insertion order.
type table[T any] struct {
	mu   sync.RWMutex
	rows map[string]T
	ids  []string
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

func (t *table[T]) insert(id string, row T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.put(id, row)
}

func (t *table[T]) put(id string, row T) {
	if _, ok := t.rows[id]; !ok {
		t.ids = append(t.ids, id)
	}
	t.rows[id] = row
}

// insertUnique inserts row unless an existing row conflicts with it.
func (t *table[T]) insertUnique(id string, row T, conflicts func(T) bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, existing := range t.rows {
		if conflicts(existing) {
			return false
		}
	}
	t.put(id, row)
	return true
}

// updateUnique is update guarded like insertUnique. conflicts is not called on the row being replaced.
func (t *table[T]) updateUnique(id string, row T, conflicts func(T) bool) (found, unique bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[id]; !ok {
		return false, true
	}
	for otherID, existing := range t.rows {
		if otherID != id && conflicts(existing) {
			return true, false
		}
	}
	t.rows[id] = row
	return true, true
}

func (t *table[T]) get(id string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	row, ok := t.rows[id]
	return row, ok
}

// update replaces an existing row. It reports false when the row does not exist.
func (t *table[T]) update(id string, row T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[id]; !ok {
		return false
	}
	t.rows[id] = row
	return true
}

func (t *table[T]) remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	t.ids = slices.DeleteFunc(t.ids, func(s string) bool { return s == id })
	return true
}

// removeWhere deletes the matching rows and returns how many went.
func (t *table[T]) removeWhere(match func(T) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	var n int
	t.ids = slices.DeleteFunc(t.ids, func(id string) bool {
		if match(t.rows[id]) {
			delete(t.rows, id)
			n++
			return true
		}
		return false
	})
	return n
}

func (t *table[T]) find(match func(T) bool) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, id := range t.ids {
		if row := t.rows[id]; match(row) {
			return row, true
		}
	}
	var zero T
	return zero, false
}

// filter returns the matching rows in insertion order. A nil match keeps everything.
func (t *table[T]) filter(match func(T) bool) []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rows := make([]T, 0, len(t.ids))
	for _, id := range t.ids {
		if row := t.rows[id]; match == nil || match(row) {
			rows = append(rows, row)
		}
	}
	return rows
}

// comparators compare two rows on an orderable field.
type comparators[T any] map[string]func(a, b T) int

// sortRows sorts rows by the allowed orderings, falling back to fallback when none apply.
func sortRows[T any](rows []T, ordering []core.DBOrdering, cmps comparators[T], fallback ...core.DBOrdering) {
	valid := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if _, ok := cmps[ord.Field]; ok {
			valid = append(valid, ord)
		}
	}
	if len(valid) == 0 {
		valid = fallback
	}
	slices.SortStableFunc(rows, func(a, b T) int {
		for _, ord := range valid {
			c := cmps[ord.Field](a, b)
			if !ord.Ascending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

func foldCmp(a, b string) int {
	return cmp.Compare(strings.ToLower(a), strings.ToLower(b))
}

func timeCmp(a, b time.Time) int { return a.Compare(b) }

func timePtrCmp(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

func boolCmp(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

// contains is the ILIKE '%s%' of the postgres repositories.
func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func inDays(t, from, to time.Time) bool {
	d := core.Day(t)
	if !from.IsZero() && d.Before(core.Day(from)) {
		return false
	}
	if !to.IsZero() && d.After(core.Day(to)) {
		return false
	}
	return true
}
