// Package chat implements the client core: a single controller that
// reconciles an incrementally arriving token stream with the persisted
// session registry, behind pluggable display surfaces.
package chat

import (
	"github.com/ferre795/chatrelay/pkg/session"
)

// Bubble is a mutable handle to one rendered message. The streaming
// controller holds a bubble for the in-flight bot reply and mutates it
// as increments arrive.
type Bubble interface {
	// AppendText adds text to the end of the bubble's content.
	AppendText(text string)

	// SetText replaces the bubble's content entirely.
	SetText(text string)
}

// Transcript renders the conversation view of the active session.
type Transcript interface {
	// Clear empties the visible transcript.
	Clear()

	// Append renders one message and returns its handle. The handle is
	// only mutated for the empty bot placeholder created before
	// streaming begins.
	Append(text string, sender session.Sender) Bubble

	// ScrollToEnd keeps the newest message in view.
	ScrollToEnd()
}

// HistoryPanel renders the selectable list of sessions. Exactly one
// entry is visually active at a time.
type HistoryPanel interface {
	// AddEntry inserts a new entry at the top of the list and marks it
	// active, deactivating all others.
	AddEntry(id, title string)

	// RemoveEntry deletes the visual entry.
	RemoveEntry(id string)

	// SetActive toggles the active highlight onto id.
	SetActive(id string)

	// UpdateTitle rewrites a displayed title.
	UpdateTitle(id, title string)

	// Clear removes every entry.
	Clear()
}

// InputControl manages the message entry affordances.
type InputControl interface {
	SetEnabled(enabled bool)

	// Reset clears any typed text.
	Reset()

	Focus()
}

// Prompter surfaces blocking notices and destructive-action
// confirmations to the user.
type Prompter interface {
	// Confirm asks a yes/no question and blocks for the answer.
	Confirm(question string) bool

	// Alert shows a blocking notice.
	Alert(message string)
}

// Renderer is the markup-to-display transform applied to finalized bot
// messages. Implementations are pure and must escape unsafe content.
type Renderer func(text string) string
