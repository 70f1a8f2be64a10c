package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/riskibarqy/scrim-scheduler/internal/domain/channel"
)

const DefaultBotID = "scrim-bot"

// Channel is an in-process Announcement Channel backed by a Hub.
type Channel struct {
	hub   *Hub
	botID string
}

func NewChannel(hub *Hub) *Channel {
	if hub == nil {
		hub = NewHub()
	}
	return &Channel{hub: hub, botID: DefaultBotID}
}

func (c *Channel) Hub() *Hub {
	return c.hub
}

func (c *Channel) PostMessage(ctx context.Context, msg channel.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref, err := c.hub.Post(msg)
	if err != nil {
		return "", fmt.Errorf("%w: %w", channel.ErrUnavailable, err)
	}
	return ref, nil
}

func (c *Channel) AddReaction(ctx context.Context, messageRef, symbol string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.hub.mu.Lock()
	unavailable := c.hub.unavailable
	c.hub.mu.Unlock()
	if unavailable {
		return fmt.Errorf("%w: %w", channel.ErrUnavailable, errHubUnavailable)
	}
	c.hub.React(messageRef, symbol, c.botID, true, true)
	return nil
}

func (c *Channel) ObserveReactions(ctx context.Context, messageRef string) (<-chan channel.Reaction, error) {
	if messageRef == "" {
		return nil, fmt.Errorf("message ref is required")
	}
	return c.hub.Subscribe(ctx, messageRef), nil
}

func (c *Channel) CurrentReactors(_ context.Context, messageRef, symbol string) ([]string, error) {
	return c.hub.Reactors(messageRef, symbol), nil
}

// Calendar keeps scheduled events in memory.
type Calendar struct {
	mu     sync.Mutex
	seq    int
	events map[string]channel.CalendarEvent
	fail   error
}

func NewCalendar() *Calendar {
	return &Calendar{events: make(map[string]channel.CalendarEvent)}
}

// FailWith makes every following call return err. A nil err clears it.
func (c *Calendar) FailWith(err error) {
	c.mu.Lock()
	c.fail = err
	c.mu.Unlock()
}

func (c *Calendar) CreateEvent(_ context.Context, event channel.CalendarEvent) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fail != nil {
		return "", c.fail
	}
	c.seq++
	eventID := "event-" + strconv.Itoa(c.seq)
	c.events[eventID] = event
	return eventID, nil
}

func (c *Calendar) DeleteEvent(_ context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fail != nil {
		return c.fail
	}
	if _, ok := c.events[eventID]; !ok {
		return fmt.Errorf("calendar event %s not found", eventID)
	}
	delete(c.events, eventID)
	return nil
}

func (c *Calendar) Events() map[string]channel.CalendarEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]channel.CalendarEvent, len(c.events))
	for k, v := range c.events {
		out[k] = v
	}
	return out
}
