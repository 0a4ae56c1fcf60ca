package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferre795/chatrelay/pkg/session"
	"github.com/ferre795/chatrelay/pkg/sse"
)

// ---- headless surface fakes ----

type fakeBubble struct {
	text   string
	sender session.Sender
}

func (b *fakeBubble) AppendText(text string) { b.text += text }
func (b *fakeBubble) SetText(text string)    { b.text = text }

type fakeTranscript struct {
	bubbles []*fakeBubble
	clears  int
}

func (t *fakeTranscript) Clear() {
	t.bubbles = nil
	t.clears++
}

func (t *fakeTranscript) Append(text string, sender session.Sender) Bubble {
	b := &fakeBubble{text: text, sender: sender}
	t.bubbles = append(t.bubbles, b)
	return b
}

func (t *fakeTranscript) ScrollToEnd() {}

func (t *fakeTranscript) last() *fakeBubble {
	return t.bubbles[len(t.bubbles)-1]
}

type historyEntry struct {
	id    string
	title string
}

type fakeHistory struct {
	entries  []historyEntry
	activeID string
}

func (h *fakeHistory) AddEntry(id, title string) {
	h.entries = append([]historyEntry{{id: id, title: title}}, h.entries...)
	h.activeID = id
}

func (h *fakeHistory) RemoveEntry(id string) {
	out := h.entries[:0]
	for _, e := range h.entries {
		if e.id != id {
			out = append(out, e)
		}
	}
	h.entries = out
}

func (h *fakeHistory) SetActive(id string) { h.activeID = id }

func (h *fakeHistory) UpdateTitle(id, title string) {
	for i := range h.entries {
		if h.entries[i].id == id {
			h.entries[i].title = title
		}
	}
}

func (h *fakeHistory) Clear() {
	h.entries = nil
	h.activeID = ""
}

func (h *fakeHistory) titleOf(id string) string {
	for _, e := range h.entries {
		if e.id == id {
			return e.title
		}
	}
	return ""
}

type fakeInput struct {
	enabled bool
	resets  int
	focuses int
}

func (i *fakeInput) SetEnabled(enabled bool) { i.enabled = enabled }
func (i *fakeInput) Reset()                  { i.resets++ }
func (i *fakeInput) Focus()                  { i.focuses++ }

type fakePrompter struct {
	answer   bool
	confirms []string
	alerts   []string
}

func (p *fakePrompter) Confirm(question string) bool {
	p.confirms = append(p.confirms, question)
	return p.answer
}

func (p *fakePrompter) Alert(message string) {
	p.alerts = append(p.alerts, message)
}

// ---- API fakes ----

type scriptedTurn struct {
	events []sse.Event
	onNext func() // invoked before the first event is delivered
	closed bool
	pos    int
}

func (t *scriptedTurn) Next() (sse.Event, error) {
	if t.onNext != nil {
		hook := t.onNext
		t.onNext = nil
		hook()
	}
	if t.pos >= len(t.events) {
		return sse.Event{}, io.EOF
	}
	ev := t.events[t.pos]
	t.pos++
	return ev, nil
}

func (t *scriptedTurn) Close() error {
	t.closed = true
	return nil
}

type fakeAPI struct {
	ids    []string
	idErr  error
	turnFn func(sessionID, message string) (TurnStream, error)
}

func (a *fakeAPI) NewSession(ctx context.Context) (string, error) {
	if a.idErr != nil {
		return "", a.idErr
	}
	if len(a.ids) == 0 {
		return "", errors.New("fakeAPI: out of session ids")
	}
	id := a.ids[0]
	a.ids = a.ids[1:]
	return id, nil
}

func (a *fakeAPI) ChatTurn(ctx context.Context, sessionID, message string) (TurnStream, error) {
	if a.turnFn == nil {
		return &scriptedTurn{}, nil
	}
	return a.turnFn(sessionID, message)
}

// memStore mirrors the registry tests' in-memory store.
type memStore struct {
	sessions []byte
	activeID string
	present  bool
}

func (m *memStore) Save(sessions []byte, activeID string) error {
	m.sessions = append([]byte(nil), sessions...)
	m.activeID = activeID
	m.present = true
	return nil
}

func (m *memStore) Load() ([]byte, string, bool, error) {
	if !m.present {
		return nil, "", false, nil
	}
	return m.sessions, m.activeID, true, nil
}

func (m *memStore) Clear() error {
	m.sessions = nil
	m.activeID = ""
	m.present = false
	return nil
}

func (m *memStore) Close() error { return nil }

type fixture struct {
	client     *Client
	registry   *session.Registry
	store      *memStore
	api        *fakeAPI
	transcript *fakeTranscript
	history    *fakeHistory
	input      *fakeInput
	prompter   *fakePrompter
}

func newFixture(t *testing.T, api *fakeAPI) *fixture {
	t.Helper()

	st := &memStore{}
	reg := session.NewRegistry(st, zerolog.Nop())
	f := &fixture{
		registry:   reg,
		store:      st,
		api:        api,
		transcript: &fakeTranscript{},
		history:    &fakeHistory{},
		input:      &fakeInput{},
		prompter:   &fakePrompter{answer: true},
	}

	client, err := NewClient(Options{
		Registry:   reg,
		API:        api,
		Transcript: f.transcript,
		History:    f.history,
		Input:      f.input,
		Prompter:   f.prompter,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	f.client = client
	return f
}

func textEvent(text string) sse.Event {
	return sse.Event{Data: []byte(fmt.Sprintf(`{"text":%q}`, text))}
}

func botMessages(s *session.Session) []session.Message {
	var out []session.Message
	for _, m := range s.Messages {
		if m.Sender == session.SenderBot {
			out = append(out, m)
		}
	}
	return out
}

// ---- tests ----

func TestSendFirstExchange(t *testing.T) {
	// Scenario: "Hello" -> "Hi", " there" -> done
	api := &fakeAPI{ids: []string{"sess-1"}}
	var turn *scriptedTurn
	api.turnFn = func(sessionID, message string) (TurnStream, error) {
		assert.Equal(t, "sess-1", sessionID)
		assert.Equal(t, "Hello", message)
		turn = &scriptedTurn{events: []sse.Event{
			textEvent("Hi"),
			textEvent(" there"),
			{Name: "done"},
		}}
		return turn, nil
	}

	f := newFixture(t, api)
	require.NoError(t, f.client.StartNewChat(context.Background()))
	require.NoError(t, f.client.Send(context.Background(), "Hello"))

	// Persisted log: welcome system message, user message, bot reply
	s, ok := f.registry.Get("sess-1")
	require.True(t, ok)
	require.Len(t, s.Messages, 3)
	assert.Equal(t, session.SenderSystem, s.Messages[0].Sender)
	assert.Equal(t, session.Message{Text: "Hello", Sender: session.SenderUser}, s.Messages[1])
	assert.Equal(t, session.Message{Text: "Hi there", Sender: session.SenderBot}, s.Messages[2])

	// Bubble holds the full reply; title derived from the first user
	// message
	assert.Equal(t, "Hi there", f.transcript.last().text)
	assert.Equal(t, "Hello", f.history.titleOf("sess-1"))

	// Controls restored
	assert.True(t, f.input.enabled)
	assert.Equal(t, StateIdle, f.client.State())
	assert.True(t, turn.closed)
}

func TestSendLiveBubbleGrowsInOrder(t *testing.T) {
	api := &fakeAPI{ids: []string{"sess-1"}}
	var f *fixture
	api.turnFn = func(sessionID, message string) (TurnStream, error) {
		return &scriptedTurn{events: []sse.Event{
			textEvent("Hi"),
			textEvent(" there"),
			{Name: "done"},
		}}, nil
	}

	f = newFixture(t, api)
	require.NoError(t, f.client.StartNewChat(context.Background()))

	// Substitution marker distinguishes the finalized render from raw
	// incremental content
	f.client.render = func(text string) string { return "<p>" + text + "</p>" }

	require.NoError(t, f.client.Send(context.Background(), "Hello"))
	assert.Equal(t, "<p>Hi there</p>", f.transcript.last().text)
}

func TestSendTransportFailure(t *testing.T) {
	// Scenario: 500 before any stream data
	api := &fakeAPI{ids: []string{"sess-1"}}
	api.turnFn = func(sessionID, message string) (TurnStream, error) {
		return nil, errors.New("server streaming error: status 500")
	}

	f := newFixture(t, api)
	require.NoError(t, f.client.StartNewChat(context.Background()))

	err := f.client.Send(context.Background(), "Hello")
	require.Error(t, err)

	// No bot message persisted; the user message stays
	s, _ := f.registry.Get("sess-1")
	assert.Empty(t, botMessages(s))
	assert.Equal(t, "Hello", s.Messages[len(s.Messages)-1].Text)

	// Placeholder shows the failure notice; input is usable again
	assert.Contains(t, f.transcript.last().text, "Streaming failed")
	assert.True(t, f.input.enabled)
	assert.Equal(t, StateIdle, f.client.State())
}

func TestSendFailedFirstTurnStillNamesSession(t *testing.T) {
	// Scenario: the first turn dies in transport, the retry succeeds.
	// The panel title must track the registry's derived title either way.
	api := &fakeAPI{ids: []string{"sess-1"}}
	failing := true
	api.turnFn = func(sessionID, message string) (TurnStream, error) {
		if failing {
			return nil, errors.New("server streaming error: status 500")
		}
		return &scriptedTurn{events: []sse.Event{
			textEvent("Hi"),
			{Name: "done"},
		}}, nil
	}

	f := newFixture(t, api)
	require.NoError(t, f.client.StartNewChat(context.Background()))

	require.Error(t, f.client.Send(context.Background(), "Hello"))

	// The user message persisted, so the title is already derived
	s, _ := f.registry.Get("sess-1")
	assert.Equal(t, "Hello", s.Title())
	assert.Equal(t, "Hello", f.history.titleOf("sess-1"))

	failing = false
	require.NoError(t, f.client.Send(context.Background(), "Hello again"))

	// The retry does not regress the title to the second message
	assert.Equal(t, "Hello", f.history.titleOf("sess-1"))
}

func TestSendInBandError(t *testing.T) {
	// Scenario: mid-stream event: error {"error":"quota exceeded"}
	api := &fakeAPI{ids: []string{"sess-1"}}
	api.turnFn = func(sessionID, message string) (TurnStream, error) {
		return &scriptedTurn{events: []sse.Event{
			textEvent("partial"),
			{Name: "error", Data: []byte(`{"error":"quota exceeded"}`)},
		}}, nil
	}

	f := newFixture(t, api)
	require.NoError(t, f.client.StartNewChat(context.Background()))
	require.NoError(t, f.client.Send(context.Background(), "Hello"))

	// The error is recorded as the bot message, marked as an error;
	// no unfinalized placeholder remains
	s, _ := f.registry.Get("sess-1")
	bots := botMessages(s)
	require.Len(t, bots, 1)
	assert.Equal(t, "Error: quota exceeded", bots[0].Text)

	assert.Equal(t, "partial[Error: quota exceeded]", f.transcript.last().text)
	assert.Equal(t, StateIdle, f.client.State())
	assert.True(t, f.input.enabled)
}

func TestSendEmptyReplyPersistsNothing(t *testing.T) {
	api := &fakeAPI{ids: []string{"sess-1"}}
	api.turnFn = func(sessionID, message string) (TurnStream, error) {
		return &scriptedTurn{events: []sse.Event{{Name: "done"}}}, nil
	}

	f := newFixture(t, api)
	require.NoError(t, f.client.StartNewChat(context.Background()))
	require.NoError(t, f.client.Send(context.Background(), "Hello"))

	s, _ := f.registry.Get("sess-1")
	assert.Empty(t, botMessages(s))
	assert.Empty(t, f.transcript.last().text)
	assert.True(t, f.input.enabled)
}

func TestSendTransportCloseFinalizesAccumulated(t *testing.T) {
	// Stream ends without a done event: keep what arrived
	api := &fakeAPI{ids: []string{"sess-1"}}
	api.turnFn = func(sessionID, message string) (TurnStream, error) {
		return &scriptedTurn{events: []sse.Event{textEvent("partial reply")}}, nil
	}

	f := newFixture(t, api)
	require.NoError(t, f.client.StartNewChat(context.Background()))
	require.NoError(t, f.client.Send(context.Background(), "Hello"))

	s, _ := f.registry.Get("sess-1")
	bots := botMessages(s)
	require.Len(t, bots, 1)
	assert.Equal(t, "partial reply", bots[0].Text)
}

func TestSendSkipsMalformedFrames(t *testing.T) {
	api := &fakeAPI{ids: []string{"sess-1"}}
	api.turnFn = func(sessionID, message string) (TurnStream, error) {
		return &scriptedTurn{events: []sse.Event{
			{Data: []byte(`{broken`)},
			textEvent("ok"),
			{Name: "done"},
		}}, nil
	}

	f := newFixture(t, api)
	require.NoError(t, f.client.StartNewChat(context.Background()))
	require.NoError(t, f.client.Send(context.Background(), "Hello"))

	s, _ := f.registry.Get("sess-1")
	bots := botMessages(s)
	require.Len(t, bots, 1)
	assert.Equal(t, "ok", bots[0].Text)
}

func TestSendSingleFlight(t *testing.T) {
	api := &fakeAPI{ids: []string{"sess-1"}}
	f := newFixture(t, api)

	var reentrant error
	api.turnFn = func(sessionID, message string) (TurnStream, error) {
		return &scriptedTurn{
			events: []sse.Event{textEvent("hi"), {Name: "done"}},
			onNext: func() {
				// A second submit while the first is streaming
				reentrant = f.client.Send(context.Background(), "again")
			},
		}, nil
	}

	require.NoError(t, f.client.StartNewChat(context.Background()))
	require.NoError(t, f.client.Send(context.Background(), "Hello"))

	assert.ErrorIs(t, reentrant, ErrBusy)

	// Only the first exchange was recorded
	s, _ := f.registry.Get("sess-1")
	require.Len(t, s.Messages, 3)
}

func TestSendRequiresActiveSession(t *testing.T) {
	f := newFixture(t, &fakeAPI{})
	assert.ErrorIs(t, f.client.Send(context.Background(), "Hello"), ErrNoSession)
}

func TestSendIgnoresEmptyInput(t *testing.T) {
	api := &fakeAPI{ids: []string{"sess-1"}}
	called := false
	api.turnFn = func(sessionID, message string) (TurnStream, error) {
		called = true
		return &scriptedTurn{}, nil
	}

	f := newFixture(t, api)
	require.NoError(t, f.client.StartNewChat(context.Background()))
	require.NoError(t, f.client.Send(context.Background(), "   \n"))
	assert.False(t, called)
}

func TestStartNewChatFailureMakesNoStateChange(t *testing.T) {
	f := newFixture(t, &fakeAPI{idErr: errors.New("connection refused")})

	err := f.client.StartNewChat(context.Background())
	require.Error(t, err)

	assert.Equal(t, 0, f.registry.Len())
	assert.Empty(t, f.history.entries)
	require.Len(t, f.prompter.alerts, 1)
	assert.Contains(t, f.prompter.alerts[0], "connection refused")
}

func TestDeleteChatFallsBackToNewestRemaining(t *testing.T) {
	api := &fakeAPI{ids: []string{"sess-1", "sess-2"}}
	f := newFixture(t, api)

	require.NoError(t, f.client.StartNewChat(context.Background()))
	require.NoError(t, f.client.StartNewChat(context.Background()))
	assert.Equal(t, "sess-2", f.client.ActiveID())

	require.NoError(t, f.client.DeleteChat(context.Background(), "sess-2"))

	assert.Equal(t, "sess-1", f.client.ActiveID())
	assert.Equal(t, "sess-1", f.history.activeID)
	require.Len(t, f.history.entries, 1)
}

func TestDeleteOnlySessionCreatesFreshOne(t *testing.T) {
	// Scenario: deleting the only session never leaves zero sessions
	api := &fakeAPI{ids: []string{"sess-1", "sess-2"}}
	f := newFixture(t, api)

	require.NoError(t, f.client.StartNewChat(context.Background()))
	require.NoError(t, f.client.DeleteChat(context.Background(), "sess-1"))

	assert.Equal(t, 1, f.registry.Len())
	assert.Equal(t, "sess-2", f.client.ActiveID())
	_, ok := f.registry.Get("sess-1")
	assert.False(t, ok)
}

func TestDeleteChatDeclined(t *testing.T) {
	api := &fakeAPI{ids: []string{"sess-1"}}
	f := newFixture(t, api)
	require.NoError(t, f.client.StartNewChat(context.Background()))

	f.prompter.answer = false
	require.NoError(t, f.client.DeleteChat(context.Background(), "sess-1"))

	// Declined confirmation changes nothing
	assert.Equal(t, 1, f.registry.Len())
	require.Len(t, f.history.entries, 1)
}

func TestRemoveAllChats(t *testing.T) {
	api := &fakeAPI{ids: []string{"sess-1", "sess-2", "sess-3"}}
	f := newFixture(t, api)

	require.NoError(t, f.client.StartNewChat(context.Background()))
	require.NoError(t, f.client.StartNewChat(context.Background()))
	require.NoError(t, f.client.RemoveAllChats(context.Background()))

	// Everything cleared, then exactly one fresh session
	assert.Equal(t, 1, f.registry.Len())
	assert.Equal(t, "sess-3", f.client.ActiveID())
	require.Len(t, f.history.entries, 1)
	assert.NotEmpty(t, f.prompter.alerts)
}

func TestRestoreFromSnapshot(t *testing.T) {
	// Seed a snapshot through one client, restore through another
	seed := newFixture(t, &fakeAPI{ids: []string{"sess-1", "sess-2"}})
	require.NoError(t, seed.client.StartNewChat(context.Background()))
	require.NoError(t, seed.registry.Append("sess-1", session.Message{Text: "older chat", Sender: session.SenderUser}))
	require.NoError(t, seed.client.StartNewChat(context.Background()))
	require.NoError(t, seed.client.ShowSession("sess-1"))

	f := newFixture(t, &fakeAPI{})
	f.store.sessions = seed.store.sessions
	f.store.activeID = seed.store.activeID
	f.store.present = true

	require.NoError(t, f.client.Restore(context.Background()))

	assert.Equal(t, 2, f.registry.Len())
	assert.Equal(t, "sess-1", f.client.ActiveID())

	// Panel is newest-first with derived titles
	require.Len(t, f.history.entries, 2)
	assert.Equal(t, "sess-2", f.history.entries[0].id)
	assert.Equal(t, "sess-1", f.history.entries[1].id)
	assert.Equal(t, "older chat", f.history.titleOf("sess-1"))

	// Transcript shows exactly the active session's log
	require.NotEmpty(t, f.transcript.bubbles)
	assert.Equal(t, "older chat", f.transcript.last().text)
}

func TestRestoreCorruptSnapshotStartsFresh(t *testing.T) {
	// Scenario: unparseable snapshot behaves like a first run
	f := newFixture(t, &fakeAPI{ids: []string{"sess-1"}})
	f.store.sessions = []byte("{definitely not json")
	f.store.present = true

	require.NoError(t, f.client.Restore(context.Background()))

	assert.Equal(t, 1, f.registry.Len())
	assert.Equal(t, "sess-1", f.client.ActiveID())
}

func TestRestoreEmptyStoreStartsFresh(t *testing.T) {
	f := newFixture(t, &fakeAPI{ids: []string{"sess-1"}})

	require.NoError(t, f.client.Restore(context.Background()))
	assert.Equal(t, 1, f.registry.Len())
}

func TestShowSessionNoCrossSessionBleed(t *testing.T) {
	api := &fakeAPI{ids: []string{"sess-1", "sess-2"}}
	f := newFixture(t, api)

	require.NoError(t, f.client.StartNewChat(context.Background()))
	require.NoError(t, f.registry.Append("sess-1", session.Message{Text: "from one", Sender: session.SenderUser}))
	require.NoError(t, f.client.StartNewChat(context.Background()))
	require.NoError(t, f.registry.Append("sess-2", session.Message{Text: "from two", Sender: session.SenderUser}))

	require.NoError(t, f.client.ShowSession("sess-1"))

	for _, b := range f.transcript.bubbles {
		assert.NotEqual(t, "from two", b.text)
	}
	assert.Equal(t, "sess-1", f.history.activeID)
}

func TestMessageCountProperty(t *testing.T) {
	// Persisted log length = user sends + non-empty bot finalizations
	api := &fakeAPI{ids: []string{"sess-1"}}
	replies := [][]sse.Event{
		{textEvent("one"), {Name: "done"}},
		{{Name: "done"}}, // empty finalization
		{textEvent("three"), {Name: "done"}},
	}
	turn := 0
	api.turnFn = func(sessionID, message string) (TurnStream, error) {
		events := replies[turn]
		turn++
		return &scriptedTurn{events: events}, nil
	}

	f := newFixture(t, api)
	require.NoError(t, f.client.StartNewChat(context.Background()))
	for i := 0; i < 3; i++ {
		require.NoError(t, f.client.Send(context.Background(), fmt.Sprintf("msg %d", i)))
	}

	s, _ := f.registry.Get("sess-1")
	// 1 welcome + 3 user + 2 non-empty bot finalizations
	assert.Len(t, s.Messages, 6)
	assert.Len(t, botMessages(s), 2)
}

func TestTypewriterDeliversEveryRune(t *testing.T) {
	b := &fakeBubble{}
	tw := &typewriter{bubble: b, delay: 0}
	tw.AppendText("héllo")
	assert.Equal(t, "héllo", b.text)

	tw.SetText("replaced")
	assert.Equal(t, "replaced", b.text)
}
