package provider

import (
	"context"
	"strings"
)

// ScriptedProvider replays canned responses, chunked on word
// boundaries. It backs tests and offline runs where no API key exists.
type ScriptedProvider struct {
	name    string
	respond func(req Request) (string, error)
}

// NewScripted creates a provider whose replies come from respond.
func NewScripted(respond func(req Request) (string, error)) *ScriptedProvider {
	return &ScriptedProvider{name: "scripted", respond: respond}
}

// NewScriptedEcho creates a scripted provider that repeats the last
// user message back.
func NewScriptedEcho() *ScriptedProvider {
	return NewScripted(func(req Request) (string, error) {
		for i := len(req.Messages) - 1; i >= 0; i-- {
			if req.Messages[i].Role == RoleUser {
				return "You said: " + req.Messages[i].Text, nil
			}
		}
		return "Hello! Ask me anything.", nil
	})
}

// Name returns the provider name.
func (p *ScriptedProvider) Name() string {
	return p.name
}

// Stream delivers the scripted reply one word at a time.
func (p *ScriptedProvider) Stream(ctx context.Context, req Request, onDelta func(text string)) error {
	text, err := p.respond(req)
	if err != nil {
		return err
	}

	words := strings.SplitAfter(text, " ")
	for _, word := range words {
		if word == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		onDelta(word)
	}

	return nil
}
