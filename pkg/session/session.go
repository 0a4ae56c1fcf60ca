// Package session maintains the in-memory registry of chat sessions and
// their ordered message logs, writing the full snapshot through to a
// durable store after every mutation.
package session

import (
	"strings"
	"time"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderBot    Sender = "bot"
	SenderSystem Sender = "system"
)

// TitleLimit is where derived session titles are truncated.
const TitleLimit = 20

// Message is a single transcript entry. Messages are immutable once
// appended; streaming mutation happens on the client's placeholder
// bubble, not here.
type Message struct {
	Text   string `json:"text"`
	Sender Sender `json:"sender"`
}

// Session is one named conversation: an opaque id and its message log
// in chronological order.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Messages  []Message `json:"messages"`
}

// Title derives the display title from the first user message,
// truncated at TitleLimit, falling back to a generic placeholder.
func (s *Session) Title() string {
	for _, msg := range s.Messages {
		if msg.Sender != SenderUser {
			continue
		}
		return TruncateTitle(msg.Text)
	}
	return PlaceholderTitle(s.ID)
}

// TruncateTitle shortens text to TitleLimit runes with an ellipsis.
func TruncateTitle(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= TitleLimit {
		return string(runes)
	}
	return string(runes[:TitleLimit]) + "..."
}

// PlaceholderTitle is the title shown before a session's first user
// message is known.
func PlaceholderTitle(id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return "New Chat - " + short
}
