package ws

import (
	"context"
	"time"

	"github.com/vedran77/tandem/internal/domain"
	"github.com/vedran77/tandem/internal/livesync"
	"github.com/vedran77/tandem/internal/service"
)

const (
	TopicAccount        = "account"
	TopicChat           = "chat"
	TopicTyping         = "typing"
	TopicRequests       = "requests"
	TopicMailbox        = "mailbox"
	TopicGoalsPersonal  = "goals.personal"
	TopicGoalsShared    = "goals.shared"
	TopicEvents         = "events"
	TopicEventsUpcoming = "events.upcoming"
	TopicMemories       = "memories"
	TopicNotes          = "notes"
)

// Services are the live sources a client can subscribe to.
type Services struct {
	Profiles      *service.ProfileService
	Pairing       *service.PairingService
	Notifications *service.NotificationService
	Chat          *service.ChatService
	Typing        *service.TypingService
	Goals         *service.GoalService
	Events        *service.EventService
	Memories      *service.MemoryService
	Notes         *service.NoteService
}

// topicFunc opens a topic for c and streams it until ctx is done.
type topicFunc func(ctx context.Context, c *Client, topic string) error

// Topics are resolved against the caller's pairing at subscribe time. A
// client that sees its account snapshot change partner resubscribes.
func (s Services) topics() map[string]topicFunc {
	upcoming := func(ctx context.Context, sess domain.Session) (*livesync.Subscription[domain.Event], error) {
		return s.Events.SubscribeUpcoming(ctx, sess, time.Now())
	}

	return map[string]topicFunc{
		TopicAccount:        stream(s.Profiles.SubscribeAccount),
		TopicChat:           stream(s.Chat.Subscribe),
		TopicTyping:         stream(s.Typing.Subscribe),
		TopicRequests:       stream(s.Pairing.SubscribeIncoming),
		TopicMailbox:        stream(s.Notifications.Subscribe),
		TopicGoalsPersonal:  stream(s.Goals.SubscribePersonal),
		TopicGoalsShared:    stream(s.Goals.SubscribeShared),
		TopicEvents:         stream(s.Events.Subscribe),
		TopicEventsUpcoming: stream(upcoming),
		TopicMemories:       stream(s.Memories.Subscribe),
		TopicNotes:          stream(s.Notes.Subscribe),
	}
}

func stream[T any](open func(context.Context, domain.Session) (*livesync.Subscription[T], error)) topicFunc {
	return func(ctx context.Context, c *Client, topic string) error {
		sub, err := open(ctx, c.session)
		if err != nil {
			return err
		}
		go pump(ctx, c, topic, sub)
		return nil
	}
}

// pump forwards every snapshot and connectivity change of sub to c.
func pump[T any](ctx context.Context, c *Client, topic string, sub *livesync.Subscription[T]) {
	defer sub.Close()

	for {
		select {
		case items := <-sub.Updates():
			if items == nil {
				items = []T{}
			}
			c.sendEvent(EventTypeSnapshot, topic, SnapshotPayload{Items: items})

		case st := <-sub.States():
			p := SyncStatePayload{Online: st.Online}
			if st.Err != nil {
				p.Error = st.Err.Error()
			}
			c.sendEvent(EventTypeSyncState, topic, p)

		case <-sub.Done():
			return

		case <-ctx.Done():
			return
		}
	}
}
