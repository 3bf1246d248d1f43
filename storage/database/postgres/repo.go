package pgrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/atelierhq/atelier/core"
)

const uniqueViolation = "23505"

type txKey struct{}

// Transactor starts transactions the repositories join through the context.
type Transactor struct {
	db *sqlx.DB
}

var _ core.Transactor = (*Transactor)(nil) // interface compliance check

func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTx commits when fn succeeds and rolls back otherwise. Nested calls join the outer transaction.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// repo holds what every repository shares.
type repo struct {
	db *sqlx.DB
}

// getExec returns the transaction carried by ctx, or the pool.
func (r repo) getExec(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return r.db
}

// bind expands slice arguments and rewrites `?` placeholders for postgres.
func (r repo) bind(query string, args []interface{}) (string, []interface{}, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return r.db.Rebind(query), args, nil
}

func (r repo) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	query, args, err := r.bind(query, args)
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, r.getExec(ctx), dest, query, args...)
}

func (r repo) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	query, args, err := r.bind(query, args)
	if err != nil {
		return err
	}
	return sqlx.GetContext(ctx, r.getExec(ctx), dest, query, args...)
}

// exec runs a statement and returns the number of affected rows.
func (r repo) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	query, args, err := r.bind(query, args)
	if err != nil {
		return 0, err
	}
	res, err := r.getExec(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// namedExec runs a statement with :name parameters bound from arg.
func (r repo) namedExec(ctx context.Context, query string, arg interface{}) (int64, error) {
	res, err := sqlx.NamedExecContext(ctx, r.getExec(ctx), query, arg)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// where collects AND-ed conditions using `?` placeholders.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) and(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// uniqueViolated reports whether err breaks a unique constraint and which one.
func uniqueViolated(err error) (string, bool) {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// validID filters out what cannot be a primary key: postgres rejects malformed UUIDs.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func validIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

func like(s string) string {
	return "%" + s + "%"
}
