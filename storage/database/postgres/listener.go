package pgrepos

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/atelierhq/atelier/core"
	"github.com/atelierhq/atelier/core/chat"
)

// ChatNotifyChannel is the channel the messages insert trigger notifies on.
const ChatNotifyChannel = "chat_messages"

const (
	listenerLoadTimeout  = 5 * time.Second
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

// ChatListener relays the messages inserted by any app instance to the local hub.
// Notifications only carry the message and channel IDs; the message is loaded from repo.
type ChatListener struct {
	connStr string
	repo    chat.Repository
	hub     *chat.Hub
	logger  core.Logger
}

type chatNotification struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

func NewChatListener(connStr string, repo chat.Repository, hub *chat.Hub, logger core.Logger) *ChatListener {
	return &ChatListener{connStr: connStr, repo: repo, hub: hub, logger: logger}
}

// Run listens until ctx is done.
func (l *ChatListener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.connStr, listenerMinReconnect, listenerMaxReconnect, l.event)
	//goland:noinspection GoUnhandledErrorResult
	defer listener.Close()

	if err := listener.Listen(ChatNotifyChannel); err != nil {
		return err
	}

	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			if n == nil { // connection re-established: notifications may have been lost
				continue
			}
			l.relay(ctx, n.Extra)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					l.logger.Warn(fmt.Sprintf("chat listener ping: %v", err))
				}
			}()
		}
	}
}

func (l *ChatListener) relay(ctx context.Context, payload string) {
	var n chatNotification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		l.logger.Error(fmt.Sprintf("decoding chat notification: %v", err), err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, listenerLoadTimeout)
	defer cancel()
	msg, err := l.repo.GetMessageByID(ctx, n.ID)
	if err != nil {
		// the channel may have been deleted in the meantime
		if errors.Cause(err) != chat.ErrMessageNotFound {
			l.logger.Error(fmt.Sprintf("loading chat message %s: %v", n.ID, err), err)
		}
		return
	}
	l.hub.Publish(msg)
}

func (l *ChatListener) event(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnectionAttemptFailed:
		l.logger.Warn(fmt.Sprintf("chat listener connection failed: %v", err))
	case pq.ListenerEventDisconnected:
		l.logger.Warn(fmt.Sprintf("chat listener disconnected: %v", err))
	case pq.ListenerEventReconnected:
		l.logger.Info("chat listener reconnected")
	}
}
