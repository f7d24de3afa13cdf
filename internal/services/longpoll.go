package services

import (
	"context"
	"log"
	"time"

	"support-chat/internal/models"
	"support-chat/internal/observability"
	"support-chat/internal/repositories"
)

// Event types each side of a chat is interested in. The filter is combined
// with the counterpart sender role, so a poller only wakes on occurrences
// authored by the other party.
var (
	clientPollTypes = []models.EventType{
		models.EventMessageSent,
		models.EventMessageDelivered,
		models.EventMessageRead,
		models.EventMessageEdited,
		models.EventTypingStart,
		models.EventTypingEnd,
		models.EventChatClosed,
	}
	operatorPollTypes = append(clientPollTypes, models.EventClientNameUpdated)
)

// ChatSnapshot is the batch returned by a message poll: the chat's current
// messages, the transient typing projection and the new cursor position.
type ChatSnapshot struct {
	Messages     []models.Message     `json:"messages"`
	TypingEvents []models.TypingEvent `json:"typing_events"`
	LastEventID  int64                `json:"last_event_id"`
	ChatStatus   models.ChatStatus    `json:"chat_status"`
	ChatClosed   bool                 `json:"chat_closed"`
	ClientName   string               `json:"client_name,omitempty"`
}

// ChatListSnapshot is the batch returned by the operator chat-list poll.
type ChatListSnapshot struct {
	Chats       []models.ChatSummary `json:"chats"`
	LastEventID int64                `json:"last_event_id"`
}

// PollerConfig bounds the wait loops. Timeouts are server-enforced regardless
// of client behavior.
type PollerConfig struct {
	Interval         time.Duration
	Timeout          time.Duration
	ChatListInterval time.Duration
	ChatListTimeout  time.Duration
}

// Poller blocks a request until new events exist for its scope or the
// configured timeout elapses. Each iteration is an independent short read; no
// lock or transaction is held across the sleep.
type Poller struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	events   repositories.EventRepository
	delivery *DeliveryService
	cfg      PollerConfig

	// Injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller builds a Poller with the real clock.
func NewPoller(
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
	events repositories.EventRepository,
	delivery *DeliveryService,
	cfg PollerConfig,
) *Poller {
	return &Poller{
		chats:    chats,
		messages: messages,
		events:   events,
		delivery: delivery,
		cfg:      cfg,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func pollTypesFor(kind models.SenderKind) []models.EventType {
	if kind == models.SenderOperator {
		return operatorPollTypes
	}
	return clientPollTypes
}

// PollChat waits for chat events newer than afterID authored by the viewer's
// counterpart. Observing a counterpart message_sent acknowledges delivery
// before the snapshot is built. On timeout the snapshot is empty and the
// cursor is unchanged.
func (p *Poller) PollChat(ctx context.Context, chatID int64, viewer models.Identity, afterID int64) (ChatSnapshot, error) {
	start := p.now()
	defer func() {
		observability.ObservePoll("chat", time.Since(start).Seconds())
	}()

	chat, err := p.chats.GetChat(ctx, chatID)
	if err != nil {
		return ChatSnapshot{}, err
	}
	if err := authorizeParticipant(chat, viewer); err != nil {
		return ChatSnapshot{}, err
	}

	types := pollTypesFor(viewer.Kind)
	counterpart := viewer.Kind.Counterpart()
	deadline := start.Add(p.cfg.Timeout)

	for {
		events, err := p.events.ListChatEventsSince(ctx, chatID, afterID, types, counterpart)
		if err != nil {
			return ChatSnapshot{}, err
		}

		if len(events) > 0 {
			observability.IncPollWakeup("chat", "events")
			return p.buildSnapshot(ctx, chatID, viewer, events)
		}

		if !p.now().Before(deadline) {
			break
		}
		if err := p.sleep(ctx, p.cfg.Interval); err != nil {
			return ChatSnapshot{}, err
		}
	}

	observability.IncPollWakeup("chat", "timeout")
	current, err := p.chats.GetChat(ctx, chatID)
	if err != nil {
		return ChatSnapshot{}, err
	}
	return ChatSnapshot{
		Messages:     []models.Message{},
		TypingEvents: []models.TypingEvent{},
		LastEventID:  afterID,
		ChatStatus:   current.Status,
	}, nil
}

func (p *Poller) buildSnapshot(ctx context.Context, chatID int64, viewer models.Identity, events []models.Event) (ChatSnapshot, error) {
	// Polling acknowledges delivery of counterpart messages implicitly.
	for _, event := range events {
		if event.EventType != models.EventMessageSent || event.Data.MessageID == 0 {
			continue
		}
		if _, err := p.delivery.MarkDelivered(ctx, event.Data.MessageID, viewer); err != nil {
			log.Printf("mark delivered message %d: %v", event.Data.MessageID, err)
		}
	}

	messages, err := p.messages.ListByChat(ctx, chatID)
	if err != nil {
		return ChatSnapshot{}, err
	}
	if messages == nil {
		messages = []models.Message{}
	}

	snapshot := ChatSnapshot{
		Messages:     messages,
		TypingEvents: []models.TypingEvent{},
	}
	for _, event := range events {
		if event.ID > snapshot.LastEventID {
			snapshot.LastEventID = event.ID
		}
		switch event.EventType {
		case models.EventTypingStart, models.EventTypingEnd:
			snapshot.TypingEvents = append(snapshot.TypingEvents, models.TypingEvent{
				EventType:  event.EventType,
				SenderKind: event.SenderKind,
			})
		case models.EventChatClosed:
			snapshot.ChatClosed = true
		case models.EventClientNameUpdated:
			snapshot.ClientName = event.Data.Name
		}
	}

	chat, err := p.chats.GetChat(ctx, chatID)
	if err != nil {
		return ChatSnapshot{}, err
	}
	snapshot.ChatStatus = chat.Status
	return snapshot, nil
}

// PollOperatorChats waits for new chat_assigned events addressed to the
// operator and returns the refreshed active chat list. On timeout the current
// list is returned with the cursor unchanged.
func (p *Poller) PollOperatorChats(ctx context.Context, operatorID int64, afterID int64) (ChatListSnapshot, error) {
	start := p.now()
	defer func() {
		observability.ObservePoll("chat_list", time.Since(start).Seconds())
	}()

	deadline := start.Add(p.cfg.ChatListTimeout)

	for {
		events, err := p.events.ListAssignedSince(ctx, operatorID, afterID)
		if err != nil {
			return ChatListSnapshot{}, err
		}

		if len(events) > 0 {
			observability.IncPollWakeup("chat_list", "events")
			chats, err := p.chats.ListActiveByOperator(ctx, operatorID)
			if err != nil {
				return ChatListSnapshot{}, err
			}
			maxID := afterID
			for _, event := range events {
				if event.ID > maxID {
					maxID = event.ID
				}
			}
			return ChatListSnapshot{Chats: chats, LastEventID: maxID}, nil
		}

		if !p.now().Before(deadline) {
			break
		}
		if err := p.sleep(ctx, p.cfg.ChatListInterval); err != nil {
			return ChatListSnapshot{}, err
		}
	}

	observability.IncPollWakeup("chat_list", "timeout")
	chats, err := p.chats.ListActiveByOperator(ctx, operatorID)
	if err != nil {
		return ChatListSnapshot{}, err
	}
	return ChatListSnapshot{Chats: chats, LastEventID: afterID}, nil
}
