package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ferre795/chatrelay/pkg/provider"
)

// conversation is the server-side context of one session: the message
// history replayed to the provider on every turn.
type conversation struct {
	messages []provider.Message
	lastSeen time.Time
}

// Conversations tracks live conversation contexts by session id.
type Conversations struct {
	mu   sync.RWMutex
	byID map[string]*conversation
	ttl  time.Duration
	now  func() time.Time
}

// NewConversations creates a registry. Contexts idle longer than ttl
// are removed by Prune; ttl 0 disables expiry.
func NewConversations(ttl time.Duration) *Conversations {
	return &Conversations{
		byID: make(map[string]*conversation),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Create registers a fresh conversation and returns its id.
func (c *Conversations) Create() string {
	id := uuid.NewString()

	c.mu.Lock()
	c.byID[id] = &conversation{lastSeen: c.now()}
	c.mu.Unlock()

	return id
}

// History returns a copy of the conversation's messages. The second
// return is false for unknown ids.
func (c *Conversations) History(id string) ([]provider.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	conv, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	out := make([]provider.Message, len(conv.messages))
	copy(out, conv.messages)
	return out, true
}

// AppendTurn records one completed exchange and refreshes the
// conversation's idle clock.
func (c *Conversations) AppendTurn(id, userText, replyText string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv, ok := c.byID[id]
	if !ok {
		return
	}
	conv.messages = append(conv.messages,
		provider.Message{Role: provider.RoleUser, Text: userText},
		provider.Message{Role: provider.RoleAssistant, Text: replyText},
	)
	conv.lastSeen = c.now()
}

// Touch refreshes the idle clock without recording messages.
func (c *Conversations) Touch(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conv, ok := c.byID[id]; ok {
		conv.lastSeen = c.now()
	}
}

// Len reports the number of live conversations.
func (c *Conversations) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// Prune removes conversations idle longer than the ttl and returns how
// many were dropped.
func (c *Conversations) Prune() int {
	if c.ttl <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.ttl)
	var dropped int
	for id, conv := range c.byID {
		if conv.lastSeen.Before(cutoff) {
			delete(c.byID, id)
			dropped++
		}
	}
	return dropped
}
