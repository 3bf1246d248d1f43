package chat

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/user"
)

// memRepo keeps one channel's history in memory.
type memRepo struct {
	Repository
	channels map[string]Channel
	messages []Message
}

func (r *memRepo) GetChannelByID(_ context.Context, id string) (Channel, error) {
	if c, ok := r.channels[id]; ok {
		return c, nil
	}
	return Channel{}, ErrNotFound
}

func (r *memRepo) CreateMessage(_ context.Context, m Message) (Message, error) {
	m.ID = m.Body
	r.messages = append(r.messages, m)
	return m, nil
}

func (r *memRepo) QueryMessages(_ context.Context, channelID string, before time.Time, limit int) ([]Message, error) {
	var msgs []Message
	for _, m := range r.messages {
		if m.ChannelID == channelID && m.CreatedAt.Before(before) {
			msgs = append(msgs, m)
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.After(msgs[j].CreatedAt) })
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func newTestService(listenNotify bool) (*Service, *Hub) {
	hub := NewHub(4)
	repo := &memRepo{channels: map[string]Channel{"general": {ID: "general", Name: "general"}}}
	svc := NewService(repo, hub, &core.Config{Realtime: core.RealtimeConfig{ListenNotify: listenNotify}})
	clock := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc, hub
}

func TestService_Post(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(false)
	sender := user.User{ID: "u1", Name: "Ada"}

	sub, err := svc.Subscribe(ctx, "general")
	require.NoError(t, err)
	defer sub.Close()

	m, err := svc.Post(ctx, sender, "general", NewMessage{Body: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", m.SenderName)

	select {
	case got := <-sub.C:
		assert.Equal(t, m, got)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	_, err = svc.Post(ctx, sender, "random", NewMessage{Body: "hello"})
	assert.Equal(t, ErrNotFound, err)
	_, err = svc.Subscribe(ctx, "random")
	assert.Equal(t, ErrNotFound, err)
}

func TestService_PostWithDatabaseFeed(t *testing.T) {
	ctx := context.Background()
	svc, hub := newTestService(true)

	sub, err := svc.Subscribe(ctx, "general")
	require.NoError(t, err)
	defer sub.Close()

	_, err = svc.Post(ctx, user.User{ID: "u1", Name: "Ada"}, "general", NewMessage{Body: "hello"})
	require.NoError(t, err)
	assert.Len(t, sub.C, 0, "the database feed publishes instead")
	assert.Equal(t, 1, hub.Subscribers("general"))
}

func TestService_Messages(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(false)
	sender := user.User{ID: "u1", Name: "Ada"}
	for _, body := range []string{"one", "two", "three", "four", "five"} {
		_, err := svc.Post(ctx, sender, "general", NewMessage{Body: body})
		require.NoError(t, err)
	}

	page, err := svc.Messages(ctx, "general", MessageQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "four", page[0].Body, "latest page in chronological order")
	assert.Equal(t, "five", page[1].Body)

	page, err = svc.Messages(ctx, "general", MessageQuery{Before: page[0].CreatedAt, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, []string{"two", "three"}, []string{page[0].Body, page[1].Body})

	page, err = svc.Messages(ctx, "general", MessageQuery{})
	require.NoError(t, err)
	assert.Len(t, page, 5)
}
