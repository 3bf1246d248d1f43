package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_Publish(t *testing.T) {
	hub := NewHub(2)

	a, err := hub.Subscribe("general")
	require.NoError(t, err)
	b, err := hub.Subscribe("general")
	require.NoError(t, err)
	other, err := hub.Subscribe("random")
	require.NoError(t, err)

	assert.Equal(t, 2, hub.Publish(Message{ID: "m1", ChannelID: "general"}))
	assert.Equal(t, "m1", (<-a.C).ID)
	assert.Equal(t, "m1", (<-b.C).ID)
	assert.Len(t, other.C, 0, "filtered by channel")

	b.Close()
	b.Close()
	_, open := <-b.C
	assert.False(t, open)
	assert.Equal(t, 1, hub.Subscribers("general"))
	assert.Equal(t, 1, hub.Publish(Message{ID: "m2", ChannelID: "general"}))
	assert.Equal(t, "m2", (<-a.C).ID)
}

func TestHub_DropsWhenFull(t *testing.T) {
	hub := NewHub(1)
	sub, err := hub.Subscribe("general")
	require.NoError(t, err)

	assert.Equal(t, 1, hub.Publish(Message{ID: "m1", ChannelID: "general"}))
	assert.Equal(t, 0, hub.Publish(Message{ID: "m2", ChannelID: "general"}))
	assert.Equal(t, uint64(1), hub.Dropped())
	assert.Equal(t, "m1", (<-sub.C).ID)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(4)
	sub, err := hub.Subscribe("general")
	require.NoError(t, err)

	hub.Close()
	_, open := <-sub.C
	assert.False(t, open)
	sub.Close()

	_, err = hub.Subscribe("general")
	assert.Equal(t, ErrHubClosed, err)
	assert.Equal(t, 0, hub.Publish(Message{ChannelID: "general"}))
}

func TestHub_Concurrent(t *testing.T) {
	hub := NewHub(8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub, err := hub.Subscribe("general")
			if err != nil {
				return
			}
			sub.Close()
		}()
		go func() {
			defer wg.Done()
			hub.Publish(Message{ChannelID: "general"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, hub.Subscribers("general"))
}

func TestMessageQuery_Clean(t *testing.T) {
	mq := MessageQuery{}
	mq.Clean()
	assert.Equal(t, DefaultPageSize, mq.Limit)

	mq = MessageQuery{Limit: 1000}
	mq.Clean()
	assert.Equal(t, MaxPageSize, mq.Limit)

	mq = MessageQuery{Limit: 10}
	mq.Clean()
	assert.Equal(t, 10, mq.Limit)
}
