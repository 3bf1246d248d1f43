package chat

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("channel not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrChannelExists   = errors.New("a channel with this name already exists")
)

type (
	Repository interface {
		CreateChannel(ctx context.Context, c Channel) (Channel, error)
		// QueryChannels returns channels by name. A projectID keeps that project's channels.
		QueryChannels(ctx context.Context, projectID string) ([]Channel, error)
		GetChannelByID(ctx context.Context, id string) (Channel, error)
		GetChannelByName(ctx context.Context, name string) (Channel, error)
		DeleteChannel(ctx context.Context, id string) error

		CreateMessage(ctx context.Context, m Message) (Message, error)
		GetMessageByID(ctx context.Context, id string) (Message, error)
		// QueryMessages returns up to limit messages of the channel created before `before`, newest first.
		QueryMessages(ctx context.Context, channelID string, before time.Time, limit int) ([]Message, error)
	}

	Service struct {
		repo Repository
		hub  *Hub
		// when the database feed is on, it publishes inserted messages itself
		publish bool
		now     func() time.Time
	}
)

func NewService(repo Repository, hub *Hub, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		hub:     hub,
		publish: !conf.Realtime.ListenNotify,
		now:     time.Now,
	}
}

func (svc *Service) CreateChannel(ctx context.Context, nc NewChannel, createdBy string) (Channel, error) {
	if _, err := svc.repo.GetChannelByName(ctx, nc.Name); err == nil {
		return Channel{}, core.NewFieldError("name", ErrChannelExists)
	} else if errors.Cause(err) != ErrNotFound {
		return Channel{}, errors.Wrap(err, "finding channel")
	}
	c, err := svc.repo.CreateChannel(ctx, Channel{
		Name:        nc.Name,
		Description: nc.Description,
		ProjectID:   nc.ProjectID,
		CreatedBy:   createdBy,
		CreatedAt:   svc.now().UTC(),
	})
	return c, errors.Wrap(err, "creating channel")
}

func (svc *Service) Channel(ctx context.Context, id string) (Channel, error) {
	return svc.repo.GetChannelByID(ctx, id)
}

func (svc *Service) Channels(ctx context.Context, projectID string) ([]Channel, error) {
	return svc.repo.QueryChannels(ctx, projectID)
}

func (svc *Service) DeleteChannel(ctx context.Context, id string) error {
	return svc.repo.DeleteChannel(ctx, id)
}

// Post stores a message and delivers it to the channel's live subscribers.
func (svc *Service) Post(ctx context.Context, sender user.User, channelID string, nm NewMessage) (Message, error) {
	if _, err := svc.repo.GetChannelByID(ctx, channelID); err != nil {
		return Message{}, err
	}
	m, err := svc.repo.CreateMessage(ctx, Message{
		ChannelID:  channelID,
		SenderID:   sender.ID,
		SenderName: sender.Name,
		Body:       nm.Body,
		CreatedAt:  svc.now().UTC(),
	})
	if err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}
	if svc.publish {
		svc.hub.Publish(m)
	}
	return m, nil
}

// Messages returns a page of the channel's history in chronological order.
func (svc *Service) Messages(ctx context.Context, channelID string, mq MessageQuery) ([]Message, error) {
	mq.Clean()
	if mq.Before.IsZero() {
		mq.Before = svc.now().UTC().Add(time.Second)
	}
	msgs, err := svc.repo.QueryMessages(ctx, channelID, mq.Before, mq.Limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Subscribe follows new messages of an existing channel. Callers must Close the subscription.
func (svc *Service) Subscribe(ctx context.Context, channelID string) (*Subscription, error) {
	if _, err := svc.repo.GetChannelByID(ctx, channelID); err != nil {
		return nil, err
	}
	return svc.hub.Subscribe(channelID)
}
