package chat

import "time"

// typewriter is a presentation decorator that plays each increment onto
// the underlying bubble one character at a time. It only shapes how
// text appears; accumulation and persistence never go through it.
type typewriter struct {
	bubble Bubble
	delay  time.Duration
}

func (tw *typewriter) AppendText(text string) {
	for _, r := range text {
		tw.bubble.AppendText(string(r))
		time.Sleep(tw.delay)
	}
}

func (tw *typewriter) SetText(text string) {
	tw.bubble.SetText(text)
}

// liveBubble returns the handle streaming increments render through,
// wrapped in the typewriter when animation is enabled.
func (c *Client) liveBubble() Bubble {
	if c.typeDelay <= 0 {
		return c.bubble
	}
	return &typewriter{bubble: c.bubble, delay: c.typeDelay}
}
