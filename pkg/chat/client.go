package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ferre795/chatrelay/pkg/session"
)

// State is the streaming controller's position in its turn lifecycle.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateFinalizing
)

// String names the state for logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

var (
	// ErrBusy is returned for a send attempted while a turn is in
	// flight. The controller is single-flight.
	ErrBusy = errors.New("a message is already in flight")

	// ErrNoSession is returned for a send with no active session.
	ErrNoSession = errors.New("no active session")
)

// DefaultWelcome opens every new session.
const DefaultWelcome = "Welcome! I'm ready for a new conversation. Ask me anything."

// Options configures a Client. Registry, API, and the surfaces are
// required.
type Options struct {
	Registry   *session.Registry
	API        API
	Transcript Transcript
	History    HistoryPanel
	Input      InputControl
	Prompter   Prompter

	// Render transforms finalized bot text for display. Nil keeps the
	// raw text.
	Render Renderer

	// TypeDelay inserts a pause between rendered characters of each
	// increment. Zero disables the typewriter effect.
	TypeDelay time.Duration

	// Welcome overrides the system message of fresh sessions.
	Welcome string

	Logger zerolog.Logger
}

// Client owns the whole client-side chat state: the registry, the
// active-session pointer, the in-flight bubble handle, and the turn
// state machine. All methods run on a single logical thread.
type Client struct {
	registry   *session.Registry
	api        API
	transcript Transcript
	history    HistoryPanel
	input      InputControl
	prompter   Prompter
	render     Renderer
	typeDelay  time.Duration
	welcome    string
	logger     zerolog.Logger

	state  State
	bubble Bubble
}

// NewClient wires a client from options.
func NewClient(opts Options) (*Client, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.API == nil {
		return nil, fmt.Errorf("api client is required")
	}
	if opts.Transcript == nil || opts.History == nil || opts.Input == nil || opts.Prompter == nil {
		return nil, fmt.Errorf("all display surfaces are required")
	}

	render := opts.Render
	if render == nil {
		render = func(text string) string { return text }
	}
	welcome := opts.Welcome
	if welcome == "" {
		welcome = DefaultWelcome
	}

	return &Client{
		registry:   opts.Registry,
		api:        opts.API,
		transcript: opts.Transcript,
		history:    opts.History,
		input:      opts.Input,
		prompter:   opts.Prompter,
		render:     render,
		typeDelay:  opts.TypeDelay,
		welcome:    welcome,
		logger:     opts.Logger.With().Str("component", "chat").Logger(),
		state:      StateIdle,
	}, nil
}

// State reports the controller's current turn state.
func (c *Client) State() State {
	return c.state
}

// ActiveID returns the active session id, empty when none.
func (c *Client) ActiveID() string {
	return c.registry.ActiveID()
}

// ShowSession makes id the active session and re-renders its full log:
// clear, then every message in order, then input restored. The
// transcript never mixes messages from two sessions.
func (c *Client) ShowSession(id string) error {
	s, ok := c.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	if err := c.registry.SetActive(id); err != nil {
		return err
	}

	c.transcript.Clear()
	for _, msg := range s.Messages {
		text := msg.Text
		if msg.Sender == session.SenderBot {
			text = c.render(text)
		}
		c.transcript.Append(text, msg.Sender)
	}
	c.transcript.ScrollToEnd()

	c.history.SetActive(id)
	c.input.SetEnabled(true)
	c.input.Focus()

	c.logger.Debug().Str("sessionId", id).Int("messages", len(s.Messages)).Msg("Session rendered")
	return nil
}
