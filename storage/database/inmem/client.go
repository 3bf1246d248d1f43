package inmemdb

import (
	"cmp"
	"context"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/client"
)

var clientOrdering = comparators[client.Client]{
	"name":         func(a, b client.Client) int { return foldCmp(a.Name, b.Name) },
	"contact_name": func(a, b client.Client) int { return foldCmp(a.ContactName, b.ContactName) },
	"email":        func(a, b client.Client) int { return cmp.Compare(a.Email, b.Email) },
	"created_at":   func(a, b client.Client) int { return timeCmp(a.CreatedAt, b.CreatedAt) },
}

type clientRepository struct {
	db *table[client.Client]
}

var _ client.Repository = (*clientRepository)(nil) // interface compliance check

func NewClientRepository(db *DB) *clientRepository {
	return &clientRepository{db: db.clients}
}

func (r *clientRepository) CreateClient(_ context.Context, c client.Client) (client.Client, error) {
	c.ID = uuid.NewString()
	r.db.insert(c.ID, c)
	return c, nil
}

func (r *clientRepository) QueryClients(_ context.Context, filter *client.QueryFilter, ordering []core.DBOrdering) ([]client.Client, error) {
	clients := r.db.filter(func(c client.Client) bool {
		if filter == nil {
			return true
		}
		if filter.Search != "" && !contains(c.Name, filter.Search) && !contains(c.ContactName, filter.Search) &&
			!contains(c.Email, filter.Search) {
			return false
		}
		if filter.IsActive != nil && c.IsActive != *filter.IsActive {
			return false
		}
		return true
	})
	sortRows(clients, ordering, clientOrdering, core.DBOrdering{Field: "name", Ascending: true})
	return clients, nil
}

func (r *clientRepository) GetClientByID(_ context.Context, id string) (client.Client, error) {
	if c, ok := r.db.get(id); ok {
		return c, nil
	}
	return client.Client{}, client.ErrNotFound
}

func (r *clientRepository) GetClientByUserID(_ context.Context, userID string) (client.Client, error) {
	if userID == "" {
		return client.Client{}, client.ErrNotFound
	}
	if c, ok := r.db.find(func(c client.Client) bool { return c.UserID == userID }); ok {
		return c, nil
	}
	return client.Client{}, client.ErrNotFound
}

func (r *clientRepository) UpdateClient(_ context.Context, c client.Client) (client.Client, error) {
	found, unique := r.db.updateUnique(c.ID, c, func(o client.Client) bool {
		return c.UserID != "" && o.UserID == c.UserID
	})
	if !found {
		return client.Client{}, client.ErrNotFound
	}
	if !unique {
		return client.Client{}, client.ErrAlreadyLinked
	}
	return c, nil
}

func (r *clientRepository) DeleteClient(_ context.Context, id string) error {
	if !r.db.remove(id) {
		return client.ErrNotFound
	}
	return nil
}
