package chat

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/ferre795/chatrelay/pkg/session"
)

// errorPrefix marks a persisted bot message that carries an in-band
// stream error instead of a normal reply.
const errorPrefix = "Error: "

// Send runs one full chat turn: append the user message, stream the
// reply into a placeholder bubble, then finalize and persist it.
//
// The controller is single-flight; a send while a turn is in flight
// fails with ErrBusy. Whatever happens, input is re-enabled and the
// controller returns to idle before Send returns.
func (c *Client) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if c.state != StateIdle {
		return ErrBusy
	}
	id := c.registry.ActiveID()
	if id == "" {
		return ErrNoSession
	}

	c.state = StateSending
	defer c.finishTurn()

	// Show and persist the user message, then put up the empty bot
	// placeholder and lock the input
	c.transcript.Append(text, session.SenderUser)
	if err := c.registry.Append(id, session.Message{Text: text, Sender: session.SenderUser}); err != nil {
		return err
	}
	// The first user message names the session, even if the turn later
	// fails; repeats are no-ops since the derived title never changes
	if s, ok := c.registry.Get(id); ok {
		c.history.UpdateTitle(id, s.Title())
	}
	c.bubble = c.transcript.Append("", session.SenderBot)
	c.transcript.ScrollToEnd()
	c.input.Reset()
	c.input.SetEnabled(false)

	turn, err := c.api.ChatTurn(ctx, id, text)
	if err != nil {
		// Transport failure before any bytes: show the notice in the
		// placeholder, persist nothing
		c.bubble.SetText("Streaming failed: " + err.Error())
		c.logger.Error().Err(err).Str("sessionId", id).Msg("Chat turn failed before streaming")
		return err
	}
	defer turn.Close()

	c.state = StateStreaming
	full, errored := c.consumeStream(turn)

	c.state = StateFinalizing
	if full == "" {
		// Server finished without producing text; the empty placeholder
		// is discarded on the next full render
		c.logger.Debug().Str("sessionId", id).Msg("Empty reply, nothing persisted")
		return nil
	}

	if !errored {
		// Substitute the rendered form for the raw incremental content
		c.bubble.SetText(c.render(full))
	}

	if err := c.registry.Append(id, session.Message{Text: full, Sender: session.SenderBot}); err != nil {
		return err
	}

	c.logger.Info().Str("sessionId", id).Int("chars", len(full)).Msg("Turn finalized")
	return nil
}

// consumeStream applies stream events in receipt order until a terminal
// signal or the transport closes. It returns the accumulated reply and
// whether it came from an in-band error event.
func (c *Client) consumeStream(turn TurnStream) (string, bool) {
	live := c.liveBubble()
	var acc strings.Builder

	for {
		ev, err := turn.Next()
		if err != nil {
			// Transport closing is a terminal success signal; keep
			// whatever accumulated
			if err != io.EOF {
				c.logger.Warn().Err(err).Msg("Stream closed unexpectedly")
			}
			return acc.String(), false
		}

		switch ev.Name {
		case "":
			var inc struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(ev.Data, &inc); err != nil {
				// Malformed frame: log and skip, never abort the stream
				c.logger.Warn().Err(err).Str("frame", string(ev.Data)).Msg("Skipping malformed stream frame")
				continue
			}
			if inc.Text == "" {
				continue
			}
			acc.WriteString(inc.Text)
			live.AppendText(inc.Text)

		case "done":
			return acc.String(), false

		case "error":
			var in struct {
				Error string `json:"error"`
			}
			msg := "stream error"
			if err := json.Unmarshal(ev.Data, &in); err == nil && in.Error != "" {
				msg = in.Error
			}
			// Terminal: the error text becomes the bot message, marked
			// distinctly from normal replies
			c.bubble.AppendText("[Error: " + msg + "]")
			c.logger.Warn().Str("error", msg).Msg("In-band stream error")
			return errorPrefix + msg, true

		default:
			c.logger.Debug().Str("event", ev.Name).Msg("Ignoring unknown stream event")
		}
	}
}

// finishTurn restores the idle affordances: input enabled and focused,
// placeholder handle released.
func (c *Client) finishTurn() {
	c.state = StateIdle
	c.input.SetEnabled(true)
	c.input.Focus()
	c.bubble = nil
}
