package pgrepos

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier/core/chat"
	inmemdb "github.com/atelierhq/atelier/storage/database/inmem"
	testutil "github.com/atelierhq/atelier/tests"
)

func TestChatListener_relay(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewChatRepository(inmemdb.NewDB())
	ch, err := repo.CreateChannel(ctx, chat.Channel{Name: "general", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	body := strings.Repeat("€", 4000)
	msg, err := repo.CreateMessage(ctx, chat.Message{ChannelID: ch.ID, Body: body, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	hub := chat.NewHub(4)
	defer hub.Close()
	sub, err := hub.Subscribe(ch.ID)
	require.NoError(t, err)

	l := NewChatListener("", repo, hub, testutil.NewLogger(testutil.NewConfig()))

	// unknown rows and garbage payloads are skipped
	l.relay(ctx, `{"id": "0b5c7a3e-1f0a-4d8e-9b7f-2c3d4e5f6a7b", "channel_id": "`+ch.ID+`"}`)
	l.relay(ctx, `not json`)
	l.relay(ctx, `{"id": "`+msg.ID+`", "channel_id": "`+ch.ID+`"}`)

	select {
	case got := <-sub.C:
		assert.Equal(t, msg.ID, got.ID)
		assert.Equal(t, body, got.Body)
	case <-time.After(time.Second):
		t.Fatal("message not published")
	}
	select {
	case got := <-sub.C:
		t.Fatalf("unexpected message %s", got.ID)
	default:
	}
}
