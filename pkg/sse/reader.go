// Package sse implements Server-Sent Events framing for the chat relay:
// a buffering reader that reassembles events across arbitrary chunk
// boundaries, and a writer that emits well-formed frames with flushing.
package sse

import (
	"bufio"
	"bytes"
	"io"
)

// Event is a single decoded SSE frame. Name is empty for plain data
// frames; Data holds the joined payload of all data lines.
type Event struct {
	Name string
	Data []byte
}

// Reader decodes SSE frames from a byte stream. Partial frames are
// buffered internally, so the underlying reader may deliver bytes in
// chunks of any size.
type Reader struct {
	reader *bufio.Reader
}

// NewReader creates a Reader on top of r.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		reader: bufio.NewReader(r),
	}
}

// Next reads the next complete event from the stream. It returns io.EOF
// when the stream ends. A frame carrying only unknown fields or comments
// is skipped rather than surfaced.
func (r *Reader) Next() (Event, error) {
	var event Event
	var dataLines [][]byte
	haveField := false

	for {
		// ReadBytes hands back any residual unterminated line together
		// with the error, so fields are parsed before the error check
		line, err := r.reader.ReadBytes('\n')
		line = bytes.TrimRight(line, "\r\n")

		if len(line) > 0 && line[0] != ':' {
			switch {
			case bytes.HasPrefix(line, []byte("event:")):
				event.Name = string(bytes.TrimSpace(line[6:]))
				haveField = true
			case bytes.HasPrefix(line, []byte("data:")):
				data := line[5:]
				if len(data) > 0 && data[0] == ' ' {
					data = data[1:]
				}
				dataLines = append(dataLines, data)
				haveField = true
			}
			// Other fields (id:, retry:) are ignored
		}

		if err != nil {
			if err == io.EOF {
				// Flush a final unterminated event before EOF
				if haveField {
					event.Data = bytes.Join(dataLines, []byte("\n"))
					return event, nil
				}
				return Event{}, io.EOF
			}
			return Event{}, err
		}

		// Blank line terminates the event
		if len(line) == 0 {
			if haveField {
				event.Data = bytes.Join(dataLines, []byte("\n"))
				return event, nil
			}
			continue
		}
	}
}
