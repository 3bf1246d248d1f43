package client

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/atelierhq/atelier/core"
)

type Client struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id,omitempty"`
	Name        string    `json:"name"`
	ContactName string    `json:"contact_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	Website     string    `json:"website"`
	Notes       string    `json:"notes"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type NewClient struct {
	Name        string `json:"name" validate:"required,notblank"`
	ContactName string `json:"contact_name" validate:"omitempty,max=255"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone" validate:"omitempty,max=64"`
	Address     string `json:"address"`
	Website     string `json:"website" validate:"omitempty,url"`
	Notes       string `json:"notes"`
}

func (nc *NewClient) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.ContactName = core.CleanString(nc.ContactName)
	nc.Email = core.CleanString(nc.Email, true /* lower */)
	nc.Phone = core.CleanString(nc.Phone)
	nc.Website = core.CleanString(nc.Website)
	return validate.Struct(nc)
}

type UpdateClient struct {
	Name        *string `json:"name" validate:"omitempty,notblank"`
	ContactName *string `json:"contact_name" validate:"omitempty,max=255"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Phone       *string `json:"phone" validate:"omitempty,max=64"`
	Address     *string `json:"address"`
	Website     *string `json:"website" validate:"omitempty,url"`
	Notes       *string `json:"notes"`
	IsActive    *bool   `json:"is_active"`
}

func (uc *UpdateClient) Validate(validate *validator.Validate) error {
	if uc.Email != nil {
		email := core.CleanString(*uc.Email, true /* lower */)
		uc.Email = &email
	}
	return validate.Struct(uc)
}

func (uc UpdateClient) apply(c *Client) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = core.CleanString(*src)
		}
	}
	set(&c.Name, uc.Name)
	set(&c.ContactName, uc.ContactName)
	set(&c.Email, uc.Email)
	set(&c.Phone, uc.Phone)
	set(&c.Address, uc.Address)
	set(&c.Website, uc.Website)
	set(&c.Notes, uc.Notes)
	if uc.IsActive != nil {
		c.IsActive = *uc.IsActive
	}
}

type QueryFilter struct {
	Search   string `query:"search"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
