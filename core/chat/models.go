package chat

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/atelierhq/atelier/core"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

type Channel struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ProjectID   string    `json:"project_id,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Message is also the payload of the database change feed.
type Message struct {
	ID         string    `json:"id"`
	ChannelID  string    `json:"channel_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

type NewChannel struct {
	Name        string `json:"name" validate:"required,notblank,max=128"`
	Description string `json:"description"`
	ProjectID   string `json:"project_id" validate:"omitempty,uuid"`
}

func (nc *NewChannel) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name, true /* lower */)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

type NewMessage struct {
	Body string `json:"body" validate:"required,notblank,max=4000"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Body = core.CleanString(nm.Body)
	return validate.Struct(nm)
}

// MessageQuery pages backwards through a channel: messages created before Before, newest first.
type MessageQuery struct {
	Before time.Time `query:"before"`
	Limit  int       `query:"limit"`
}

func (mq *MessageQuery) Clean() {
	switch {
	case mq.Limit <= 0:
		mq.Limit = DefaultPageSize
	case mq.Limit > MaxPageSize:
		mq.Limit = MaxPageSize
	}
}
