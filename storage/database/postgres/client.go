package pgrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/client"
)

const clientColumns = "id, user_id, name, contact_name, email, phone, address, website, notes, is_active, created_at, updated_at"

var clientOrdering = map[string]string{
	"name":         "name",
	"contact_name": "contact_name",
	"email":        "email",
	"created_at":   "created_at",
}

type clientRow struct {
	ID          string      `db:"id"`
	UserID      null.String `db:"user_id"`
	Name        string      `db:"name"`
	ContactName string      `db:"contact_name"`
	Email       string      `db:"email"`
	Phone       string      `db:"phone"`
	Address     string      `db:"address"`
	Website     string      `db:"website"`
	Notes       string      `db:"notes"`
	IsActive    bool        `db:"is_active"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func toClientRow(c client.Client) clientRow {
	return clientRow{
		ID:          c.ID,
		UserID:      null.NewString(c.UserID, c.UserID != ""),
		Name:        c.Name,
		ContactName: c.ContactName,
		Email:       c.Email,
		Phone:       c.Phone,
		Address:     c.Address,
		Website:     c.Website,
		Notes:       c.Notes,
		IsActive:    c.IsActive,
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}
}

func (row clientRow) client() client.Client {
	return client.Client{
		ID:          row.ID,
		UserID:      row.UserID.String,
		Name:        row.Name,
		ContactName: row.ContactName,
		Email:       row.Email,
		Phone:       row.Phone,
		Address:     row.Address,
		Website:     row.Website,
		Notes:       row.Notes,
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

type clientRepository struct {
	repo
}

var _ client.Repository = (*clientRepository)(nil) // interface compliance check

func NewClientRepository(db *sqlx.DB) *clientRepository {
	return &clientRepository{repo{db: db}}
}

func (r *clientRepository) CreateClient(ctx context.Context, c client.Client) (client.Client, error) {
	c.ID = uuid.NewString()
	_, err := r.namedExec(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES (:id, :user_id, :name, :contact_name, :email, :phone, :address, :website, :notes, :is_active,
		        :created_at, :updated_at)`,
		toClientRow(c))
	if err != nil {
		return client.Client{}, errors.Wrap(err, "inserting client")
	}
	return c, nil
}

func (r *clientRepository) QueryClients(ctx context.Context, filter *client.QueryFilter, ordering []core.DBOrdering) ([]client.Client, error) {
	w := &where{}
	if filter != nil {
		if filter.Search != "" {
			w.and("(name ILIKE ? OR contact_name ILIKE ? OR email ILIKE ?)", like(filter.Search), like(filter.Search), like(filter.Search))
		}
		if filter.IsActive != nil {
			w.and("is_active = ?", *filter.IsActive)
		}
	}
	query := "SELECT " + clientColumns + " FROM clients" + w.String() +
		" ORDER BY " + core.OrderBy(ordering, clientOrdering, "name ASC")

	var rows []clientRow
	if err := r.selectAll(ctx, &rows, query, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying clients")
	}
	clients := make([]client.Client, 0, len(rows))
	for _, row := range rows {
		clients = append(clients, row.client())
	}
	return clients, nil
}

func (r *clientRepository) GetClientByID(ctx context.Context, id string) (client.Client, error) {
	if !validID(id) {
		return client.Client{}, client.ErrNotFound
	}
	var row clientRow
	if err := r.get(ctx, &row, "SELECT "+clientColumns+" FROM clients WHERE id = ?", id); err != nil {
		return client.Client{}, trapNoRowsErr(err, client.ErrNotFound, "finding client by ID")
	}
	return row.client(), nil
}

func (r *clientRepository) GetClientByUserID(ctx context.Context, userID string) (client.Client, error) {
	if !validID(userID) {
		return client.Client{}, client.ErrNotFound
	}
	var row clientRow
	if err := r.get(ctx, &row, "SELECT "+clientColumns+" FROM clients WHERE user_id = ?", userID); err != nil {
		return client.Client{}, trapNoRowsErr(err, client.ErrNotFound, "finding client by user ID")
	}
	return row.client(), nil
}

func (r *clientRepository) UpdateClient(ctx context.Context, c client.Client) (client.Client, error) {
	n, err := r.namedExec(ctx, `
		UPDATE clients
		SET user_id = :user_id, name = :name, contact_name = :contact_name, email = :email, phone = :phone,
		    address = :address, website = :website, notes = :notes, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`,
		toClientRow(c))
	if err != nil {
		if _, ok := uniqueViolated(err); ok {
			return client.Client{}, client.ErrAlreadyLinked
		}
		return client.Client{}, errors.Wrap(err, "updating client")
	}
	if n == 0 {
		return client.Client{}, client.ErrNotFound
	}
	return c, nil
}

func (r *clientRepository) DeleteClient(ctx context.Context, id string) error {
	if !validID(id) {
		return client.ErrNotFound
	}
	n, err := r.exec(ctx, "DELETE FROM clients WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting client")
	}
	if n == 0 {
		return client.ErrNotFound
	}
	return nil
}
