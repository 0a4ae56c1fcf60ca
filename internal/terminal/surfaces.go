// Package terminal renders the chat surfaces on a line-based terminal.
package terminal

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ferre795/chatrelay/pkg/chat"
	"github.com/ferre795/chatrelay/pkg/session"
)

// Transcript writes the conversation to an output stream. Messages are
// prefixed by sender; the in-flight bot reply streams onto the line as
// increments arrive.
type Transcript struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTranscript creates a transcript writing to out.
func NewTranscript(out io.Writer) *Transcript {
	return &Transcript{out: out}
}

// Clear marks a session boundary. A line terminal cannot erase what is
// already on screen, so the boundary is drawn instead.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, "\n----------------------------------------")
}

// Append renders one message and returns its handle.
func (t *Transcript) Append(text string, sender session.Sender) chat.Bubble {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := &bubble{transcript: t, streamed: text}
	fmt.Fprintf(t.out, "%s%s", prefixFor(sender), text)
	if sender != session.SenderBot || text != "" {
		fmt.Fprintln(t.out)
		b.closed = true
	}
	return b
}

// ScrollToEnd is a no-op; a line terminal always shows the newest
// output.
func (t *Transcript) ScrollToEnd() {}

func prefixFor(sender session.Sender) string {
	switch sender {
	case session.SenderUser:
		return "You: "
	case session.SenderSystem:
		return "* "
	default:
		return "Bot: "
	}
}

// bubble is the handle to one printed message. The empty bot
// placeholder stays open so stream increments land on its line.
type bubble struct {
	transcript *Transcript
	streamed   string
	closed     bool
}

func (b *bubble) AppendText(text string) {
	b.transcript.mu.Lock()
	defer b.transcript.mu.Unlock()

	b.streamed += text
	fmt.Fprint(b.transcript.out, text)
}

// SetText finalizes the bubble. Printed characters cannot be recalled,
// so a replacement that differs from what streamed is printed on a new
// line.
func (b *bubble) SetText(text string) {
	b.transcript.mu.Lock()
	defer b.transcript.mu.Unlock()

	if text == b.streamed {
		if !b.closed {
			fmt.Fprintln(b.transcript.out)
			b.closed = true
		}
		return
	}

	if !b.closed {
		fmt.Fprintln(b.transcript.out)
		b.closed = true
	}
	fmt.Fprintln(b.transcript.out, text)
	b.streamed = text
}

// HistoryPanel keeps the selectable session list. It renders on demand
// rather than continuously; the REPL prints it for the history command.
type HistoryPanel struct {
	mu       sync.Mutex
	entries  []historyEntry
	activeID string
}

type historyEntry struct {
	ID    string
	Title string
}

// NewHistoryPanel creates an empty panel.
func NewHistoryPanel() *HistoryPanel {
	return &HistoryPanel{}
}

// AddEntry inserts at the top and activates the entry.
func (h *HistoryPanel) AddEntry(id, title string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append([]historyEntry{{ID: id, Title: title}}, h.entries...)
	h.activeID = id
}

// RemoveEntry drops the entry for id.
func (h *HistoryPanel) RemoveEntry(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.entries[:0]
	for _, e := range h.entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	h.entries = kept
}

// SetActive moves the highlight to id.
func (h *HistoryPanel) SetActive(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.activeID = id
}

// UpdateTitle rewrites a displayed title.
func (h *HistoryPanel) UpdateTitle(id, title string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.entries {
		if h.entries[i].ID == id {
			h.entries[i].Title = title
		}
	}
}

// Clear removes every entry.
func (h *HistoryPanel) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	h.activeID = ""
}

// Entries returns the panel content top-down.
func (h *HistoryPanel) Entries() []struct{ ID, Title string } {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]struct{ ID, Title string }, len(h.entries))
	for i, e := range h.entries {
		out[i] = struct{ ID, Title string }{e.ID, e.Title}
	}
	return out
}

// ActiveID returns the highlighted entry's id.
func (h *HistoryPanel) ActiveID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.activeID
}

// Render writes the panel as a numbered list, newest first, marking the
// active entry.
func (h *HistoryPanel) Render(out io.Writer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) == 0 {
		fmt.Fprintln(out, "No chats yet.")
		return
	}
	for i, e := range h.entries {
		marker := " "
		if e.ID == h.activeID {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %d. %s\n", marker, i+1, e.Title)
	}
}

// Input tracks whether the REPL accepts a message. Reset and Focus are
// meaningless on a line terminal and do nothing.
type Input struct {
	mu      sync.Mutex
	enabled bool
}

// NewInput creates an enabled input control.
func NewInput() *Input {
	return &Input{enabled: true}
}

func (i *Input) SetEnabled(enabled bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.enabled = enabled
}

func (i *Input) Reset() {}
func (i *Input) Focus() {}

// Enabled reports whether a message may be submitted.
func (i *Input) Enabled() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.enabled
}

// Prompter asks blocking questions on the terminal.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter creates a prompter reading answers from in.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Confirm asks a yes/no question. Anything but y or yes declines.
func (p *Prompter) Confirm(question string) bool {
	fmt.Fprintf(p.out, "%s [y/N]: ", question)
	line, err := p.in.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// Alert prints a blocking notice.
func (p *Prompter) Alert(message string) {
	fmt.Fprintf(p.out, "! %s\n", message)
}
