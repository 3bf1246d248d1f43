package client

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/atelierhq/atelier/core"
)

var (
	// errors
	ErrNotFound      = errors.New("client not found")
	ErrAlreadyLinked = errors.New("client is already linked to a user")
)

type (
	Repository interface {
		CreateClient(ctx context.Context, c Client) (Client, error)
		// QueryClients matches QueryFilter.Search case-insensitively on Name, ContactName or Email.
		QueryClients(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Client, error)
		GetClientByID(ctx context.Context, id string) (Client, error)
		GetClientByUserID(ctx context.Context, userID string) (Client, error)
		UpdateClient(ctx context.Context, c Client) (Client, error)
		DeleteClient(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, nc NewClient) (Client, error) {
	now := time.Now().UTC()
	c, err := svc.repo.CreateClient(ctx, Client{
		Name:        nc.Name,
		ContactName: nc.ContactName,
		Email:       nc.Email,
		Phone:       nc.Phone,
		Address:     core.CleanString(nc.Address),
		Website:     nc.Website,
		Notes:       core.CleanString(nc.Notes),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return c, errors.Wrap(err, "creating client")
}

func (svc *Service) Get(ctx context.Context, id string) (Client, error) {
	return svc.repo.GetClientByID(ctx, id)
}

func (svc *Service) GetByUserID(ctx context.Context, userID string) (Client, error) {
	return svc.repo.GetClientByUserID(ctx, userID)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Client, error) {
	return svc.repo.QueryClients(ctx, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, orig Client, uc UpdateClient) (Client, error) {
	uc.apply(&orig)
	orig.UpdatedAt = time.Now().UTC()
	c, err := svc.repo.UpdateClient(ctx, orig)
	return c, errors.Wrap(err, "updating client")
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteClient(ctx, id)
}

// LinkUser gives the client a portal login.
func (svc *Service) LinkUser(ctx context.Context, id, userID string) error {
	c, err := svc.repo.GetClientByID(ctx, id)
	if err != nil {
		return err
	}
	if c.UserID != "" && c.UserID != userID {
		return ErrAlreadyLinked
	}
	c.UserID = userID
	c.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateClient(ctx, c)
	return errors.Wrap(err, "linking user")
}

// LinkedUserID returns the ID of the portal user linked to the client, if any.
func (svc *Service) LinkedUserID(ctx context.Context, id string) (string, error) {
	c, err := svc.repo.GetClientByID(ctx, id)
	if err != nil {
		return "", err
	}
	return c.UserID, nil
}
