package pgrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/atelierhq/atelier/core/chat"
)

const (
	channelColumns = "id, name, description, project_id, created_by, created_at"
	messageColumns = "id, channel_id, sender_id, sender_name, body, created_at"
)

type (
	channelRow struct {
		ID          string      `db:"id"`
		Name        string      `db:"name"`
		Description string      `db:"description"`
		ProjectID   null.String `db:"project_id"`
		CreatedBy   null.String `db:"created_by"`
		CreatedAt   time.Time   `db:"created_at"`
	}

	messageRow struct {
		ID         string      `db:"id"`
		ChannelID  string      `db:"channel_id"`
		SenderID   null.String `db:"sender_id"`
		SenderName string      `db:"sender_name"`
		Body       string      `db:"body"`
		CreatedAt  time.Time   `db:"created_at"`
	}
)

func (row channelRow) channel() chat.Channel {
	return chat.Channel{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		ProjectID:   row.ProjectID.String,
		CreatedBy:   row.CreatedBy.String,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

func (row messageRow) message() chat.Message {
	return chat.Message{
		ID:         row.ID,
		ChannelID:  row.ChannelID,
		SenderID:   row.SenderID.String,
		SenderName: row.SenderName,
		Body:       row.Body,
		CreatedAt:  row.CreatedAt.UTC(),
	}
}

type chatRepository struct {
	repo
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *sqlx.DB) *chatRepository {
	return &chatRepository{repo{db: db}}
}

func (r *chatRepository) CreateChannel(ctx context.Context, c chat.Channel) (chat.Channel, error) {
	c.ID = uuid.NewString()
	_, err := r.namedExec(ctx, `
		INSERT INTO channels (`+channelColumns+`)
		VALUES (:id, :name, :description, :project_id, :created_by, :created_at)`,
		channelRow{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			ProjectID:   null.NewString(c.ProjectID, c.ProjectID != ""),
			CreatedBy:   null.NewString(c.CreatedBy, c.CreatedBy != ""),
			CreatedAt:   c.CreatedAt.UTC(),
		})
	if err != nil {
		if _, ok := uniqueViolated(err); ok {
			return chat.Channel{}, chat.ErrChannelExists
		}
		return chat.Channel{}, errors.Wrap(err, "inserting channel")
	}
	return c, nil
}

func (r *chatRepository) QueryChannels(ctx context.Context, projectID string) ([]chat.Channel, error) {
	w := &where{}
	if projectID != "" {
		if !validID(projectID) {
			return []chat.Channel{}, nil
		}
		w.and("project_id = ?", projectID)
	}

	var rows []channelRow
	if err := r.selectAll(ctx, &rows, "SELECT "+channelColumns+" FROM channels"+w.String()+" ORDER BY name", w.args...); err != nil {
		return nil, errors.Wrap(err, "querying channels")
	}
	channels := make([]chat.Channel, 0, len(rows))
	for _, row := range rows {
		channels = append(channels, row.channel())
	}
	return channels, nil
}

func (r *chatRepository) GetChannelByID(ctx context.Context, id string) (chat.Channel, error) {
	if !validID(id) {
		return chat.Channel{}, chat.ErrNotFound
	}
	var row channelRow
	if err := r.get(ctx, &row, "SELECT "+channelColumns+" FROM channels WHERE id = ?", id); err != nil {
		return chat.Channel{}, trapNoRowsErr(err, chat.ErrNotFound, "finding channel by ID")
	}
	return row.channel(), nil
}

func (r *chatRepository) GetChannelByName(ctx context.Context, name string) (chat.Channel, error) {
	var row channelRow
	if err := r.get(ctx, &row, "SELECT "+channelColumns+" FROM channels WHERE name = ?", name); err != nil {
		return chat.Channel{}, trapNoRowsErr(err, chat.ErrNotFound, "finding channel by name")
	}
	return row.channel(), nil
}

func (r *chatRepository) DeleteChannel(ctx context.Context, id string) error {
	if !validID(id) {
		return chat.ErrNotFound
	}
	n, err := r.exec(ctx, "DELETE FROM channels WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting channel")
	}
	if n == 0 {
		return chat.ErrNotFound
	}
	return nil
}

func (r *chatRepository) CreateMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	m.ID = uuid.NewString()
	_, err := r.namedExec(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES (:id, :channel_id, :sender_id, :sender_name, :body, :created_at)`,
		messageRow{
			ID:         m.ID,
			ChannelID:  m.ChannelID,
			SenderID:   null.NewString(m.SenderID, m.SenderID != ""),
			SenderName: m.SenderName,
			Body:       m.Body,
			CreatedAt:  m.CreatedAt.UTC(),
		})
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "inserting message")
	}
	return m, nil
}

func (r *chatRepository) GetMessageByID(ctx context.Context, id string) (chat.Message, error) {
	if !validID(id) {
		return chat.Message{}, chat.ErrMessageNotFound
	}
	var row messageRow
	if err := r.get(ctx, &row, "SELECT "+messageColumns+" FROM messages WHERE id = ?", id); err != nil {
		return chat.Message{}, trapNoRowsErr(err, chat.ErrMessageNotFound, "finding message by ID")
	}
	return row.message(), nil
}

func (r *chatRepository) QueryMessages(ctx context.Context, channelID string, before time.Time, limit int) ([]chat.Message, error) {
	if !validID(channelID) {
		return []chat.Message{}, nil
	}
	var rows []messageRow
	err := r.selectAll(ctx, &rows,
		"SELECT "+messageColumns+" FROM messages WHERE channel_id = ? AND created_at < ? ORDER BY created_at DESC LIMIT ?",
		channelID, before.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	msgs := make([]chat.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.message())
	}
	return msgs, nil
}
