package chat

import (
	"context"

	"github.com/ferre795/chatrelay/pkg/session"
)

// StartNewChat requests a fresh session id from the server, registers
// the session with its welcome message, and activates it. On failure a
// blocking notice is shown and no state changes.
func (c *Client) StartNewChat(ctx context.Context) error {
	id, err := c.api.NewSession(ctx)
	if err != nil {
		c.prompter.Alert("Error starting new chat: " + err.Error())
		c.logger.Error().Err(err).Msg("Failed to start new chat")
		return err
	}

	if _, err := c.registry.Create(id); err != nil {
		return err
	}
	if err := c.registry.Append(id, session.Message{Text: c.welcome, Sender: session.SenderSystem}); err != nil {
		return err
	}

	c.history.AddEntry(id, session.PlaceholderTitle(id))
	return c.ShowSession(id)
}

// DeleteChat removes a session after confirmation. Deleting the active
// session activates the most recently created remaining one, or starts
// a brand-new chat when none remain. Declining the confirmation aborts
// with no state change.
func (c *Client) DeleteChat(ctx context.Context, id string) error {
	if !c.prompter.Confirm("Delete this chat? This cannot be undone.") {
		return nil
	}

	wasActive := c.registry.ActiveID() == id
	if err := c.registry.Delete(id); err != nil {
		return err
	}
	c.history.RemoveEntry(id)

	if !wasActive {
		return nil
	}

	if remaining := c.registry.List(); len(remaining) > 0 {
		return c.ShowSession(remaining[0].ID)
	}
	c.transcript.Clear()
	return c.StartNewChat(ctx)
}

// RemoveAllChats clears the store, registry, and panel after
// confirmation, then immediately starts a fresh session; the client is
// never left without one.
func (c *Client) RemoveAllChats(ctx context.Context) error {
	if !c.prompter.Confirm("Are you sure you want to remove all chat history? This cannot be undone.") {
		return nil
	}

	if err := c.registry.Clear(); err != nil {
		return err
	}
	c.history.Clear()
	c.transcript.Clear()
	c.prompter.Alert("All chat history has been cleared.")

	return c.StartNewChat(ctx)
}

// Restore loads the persisted snapshot at startup. An absent or corrupt
// snapshot yields the same initial state as a first run: one fresh
// session. Otherwise the panel is rebuilt newest-first and the restored
// active session rendered.
func (c *Client) Restore(ctx context.Context) error {
	restored, err := c.registry.Restore()
	if err != nil {
		return err
	}
	if !restored {
		return c.StartNewChat(ctx)
	}

	// Entries are added oldest-first; each insertion lands on top, so
	// the newest session ends up first
	list := c.registry.List()
	for i := len(list) - 1; i >= 0; i-- {
		c.history.AddEntry(list[i].ID, list[i].Title())
	}

	return c.ShowSession(c.registry.ActiveID())
}
