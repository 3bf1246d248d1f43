package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/chat"
)

type chatRepository struct {
	channels *table[chat.Channel]
	messages *table[chat.Message]
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *DB) *chatRepository {
	return &chatRepository{channels: db.channels, messages: db.messages}
}

func (r *chatRepository) CreateChannel(_ context.Context, c chat.Channel) (chat.Channel, error) {
	c.ID = uuid.NewString()
	if !r.channels.insertUnique(c.ID, c, func(o chat.Channel) bool { return o.Name == c.Name }) {
		return chat.Channel{}, chat.ErrChannelExists
	}
	return c, nil
}

func (r *chatRepository) QueryChannels(_ context.Context, projectID string) ([]chat.Channel, error) {
	channels := r.channels.filter(func(c chat.Channel) bool {
		return projectID == "" || c.ProjectID == projectID
	})
	sortRows(channels, nil, comparators[chat.Channel]{
		"name": func(a, b chat.Channel) int { return foldCmp(a.Name, b.Name) },
	}, core.DBOrdering{Field: "name", Ascending: true})
	return channels, nil
}

func (r *chatRepository) GetChannelByID(_ context.Context, id string) (chat.Channel, error) {
	if c, ok := r.channels.get(id); ok {
		return c, nil
	}
	return chat.Channel{}, chat.ErrNotFound
}

func (r *chatRepository) GetChannelByName(_ context.Context, name string) (chat.Channel, error) {
	if c, ok := r.channels.find(func(c chat.Channel) bool { return c.Name == name }); ok {
		return c, nil
	}
	return chat.Channel{}, chat.ErrNotFound
}

// DeleteChannel cascades to the channel's messages.
func (r *chatRepository) DeleteChannel(_ context.Context, id string) error {
	if !r.channels.remove(id) {
		return chat.ErrNotFound
	}
	r.messages.removeWhere(func(m chat.Message) bool { return m.ChannelID == id })
	return nil
}

func (r *chatRepository) CreateMessage(_ context.Context, m chat.Message) (chat.Message, error) {
	m.ID = uuid.NewString()
	r.messages.insert(m.ID, m)
	return m, nil
}

func (r *chatRepository) GetMessageByID(_ context.Context, id string) (chat.Message, error) {
	if m, ok := r.messages.get(id); ok {
		return m, nil
	}
	return chat.Message{}, chat.ErrMessageNotFound
}

func (r *chatRepository) QueryMessages(_ context.Context, channelID string, before time.Time, limit int) ([]chat.Message, error) {
	msgs := r.messages.filter(func(m chat.Message) bool {
		return m.ChannelID == channelID && m.CreatedAt.Before(before)
	})
	sortRows(msgs, nil, comparators[chat.Message]{
		"created_at": func(a, b chat.Message) int { return timeCmp(a.CreatedAt, b.CreatedAt) },
	}, core.DBOrdering{Field: "created_at"})
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}
