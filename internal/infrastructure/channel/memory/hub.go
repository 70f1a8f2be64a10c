package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/riskibarqy/scrim-scheduler/internal/domain/channel"
)

const defaultSubscriberBuffer = 64

var errHubUnavailable = errors.New("channel hub unavailable")

type PostedMessage struct {
	Ref     string
	Message channel.Message
}

type reactorEntry struct {
	id  string
	bot bool
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan channel.Reaction
	done   <-chan struct{}
	closed bool
}

func (s *subscriber) send(r channel.Reaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- r:
	case <-s.done:
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Hub keeps posted messages and reaction state in process and fans reaction changes
// out to observers. Reactions are sets: a repeated add or a remove of an absent
// reactor changes nothing and is not published.
type Hub struct {
	mu          sync.Mutex
	seq         int
	messages    []PostedMessage
	reactions   map[string]map[string][]reactorEntry
	subs        map[string][]*subscriber
	unavailable bool
	buffer      int
}

func NewHub() *Hub {
	return &Hub{
		reactions: make(map[string]map[string][]reactorEntry),
		subs:      make(map[string][]*subscriber),
		buffer:    defaultSubscriberBuffer,
	}
}

// SetUnavailable makes posting and bot reactions fail until reset.
func (h *Hub) SetUnavailable(unavailable bool) {
	h.mu.Lock()
	h.unavailable = unavailable
	h.mu.Unlock()
}

func (h *Hub) Post(msg channel.Message) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.unavailable {
		return "", errHubUnavailable
	}
	h.seq++
	ref := "msg-" + strconv.Itoa(h.seq)
	h.messages = append(h.messages, PostedMessage{Ref: ref, Message: msg})
	return ref, nil
}

// Track records a message posted elsewhere so its reactions are kept.
func (h *Hub) Track(ref string, msg channel.Message) {
	h.mu.Lock()
	h.messages = append(h.messages, PostedMessage{Ref: ref, Message: msg})
	h.mu.Unlock()
}

func (h *Hub) Messages() []PostedMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]PostedMessage(nil), h.messages...)
}

// Ingest applies a reaction change and publishes it when it changed state.
func (h *Hub) Ingest(r channel.Reaction) bool {
	h.mu.Lock()
	changed := h.applyLocked(r)
	var subs []*subscriber
	if changed {
		subs = append(subs, h.subs[r.MessageRef]...)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.send(r)
	}
	return changed
}

// React is Ingest for callers that have no Reaction value at hand.
func (h *Hub) React(ref, symbol, participantID string, added, bot bool) bool {
	return h.Ingest(channel.Reaction{
		MessageRef:    ref,
		Symbol:        symbol,
		ParticipantID: participantID,
		Added:         added,
		Bot:           bot,
	})
}

func (h *Hub) applyLocked(r channel.Reaction) bool {
	bySymbol, ok := h.reactions[r.MessageRef]
	if !ok {
		bySymbol = make(map[string][]reactorEntry)
		h.reactions[r.MessageRef] = bySymbol
	}
	entries := bySymbol[r.Symbol]
	at := -1
	for i, e := range entries {
		if e.id == r.ParticipantID {
			at = i
			break
		}
	}

	if r.Added {
		if at >= 0 {
			return false
		}
		bySymbol[r.Symbol] = append(entries, reactorEntry{id: r.ParticipantID, bot: r.Bot})
		return true
	}
	if at < 0 {
		return false
	}
	bySymbol[r.Symbol] = append(entries[:at], entries[at+1:]...)
	return true
}

// Reactors lists the non-bot reactors of symbol on ref in reaction order.
func (h *Hub) Reactors(ref, symbol string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries := h.reactions[ref][symbol]
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.bot {
			out = append(out, e.id)
		}
	}
	return out
}

// Subscribe streams reaction changes on ref until ctx is done, then closes the
// stream.
func (h *Hub) Subscribe(ctx context.Context, ref string) <-chan channel.Reaction {
	sub := &subscriber{
		ch:   make(chan channel.Reaction, h.buffer),
		done: ctx.Done(),
	}

	h.mu.Lock()
	h.subs[ref] = append(h.subs[ref], sub)
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		list := h.subs[ref]
		for i, s := range list {
			if s == sub {
				h.subs[ref] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(h.subs[ref]) == 0 {
			delete(h.subs, ref)
		}
		h.mu.Unlock()
		sub.close()
	}()

	return sub.ch
}

// Subscribers reports how many observers are attached to ref.
func (h *Hub) Subscribers(ref string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[ref])
}
