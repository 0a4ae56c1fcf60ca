package sse

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader delivers the underlying data n bytes at a time to
// exercise frame reassembly across chunk boundaries.
type chunkReader struct {
	data []byte
	n    int
	pos  int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if c.pos >= len(c.data) {
		return 0, io.EOF
	}
	end := c.pos + c.n
	if end > len(c.data) {
		end = len(c.data)
	}
	n := copy(p, c.data[c.pos:end])
	c.pos += n
	return n, nil
}

func TestReaderDataFrames(t *testing.T) {
	r := NewReader(strings.NewReader("data: {\"text\":\"Hi\"}\n\ndata: {\"text\":\" there\"}\n\n"))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Empty(t, ev.Name)
	assert.Equal(t, `{"text":"Hi"}`, string(ev.Data))

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"text":" there"}`, string(ev.Data))

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReaderNamedEvents(t *testing.T) {
	input := "event: error\ndata: {\"error\":\"quota exceeded\"}\n\nevent: done\n\n"
	r := NewReader(strings.NewReader(input))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "error", ev.Name)
	assert.Equal(t, `{"error":"quota exceeded"}`, string(ev.Data))

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "done", ev.Name)
	assert.Empty(t, ev.Data)
}

func TestReaderSplitAcrossChunks(t *testing.T) {
	input := []byte("data: {\"text\":\"Hello world\"}\n\nevent: done\n\n")

	// Every chunk size must reassemble to the same events
	for n := 1; n <= len(input); n++ {
		r := NewReader(&chunkReader{data: input, n: n})

		ev, err := r.Next()
		require.NoError(t, err, "chunk size %d", n)
		assert.Equal(t, `{"text":"Hello world"}`, string(ev.Data), "chunk size %d", n)

		ev, err = r.Next()
		require.NoError(t, err, "chunk size %d", n)
		assert.Equal(t, "done", ev.Name, "chunk size %d", n)
	}
}

func TestReaderMultilineData(t *testing.T) {
	r := NewReader(strings.NewReader("data: line one\ndata: line two\n\n"))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", string(ev.Data))
}

func TestReaderIgnoresCommentsAndUnknownFields(t *testing.T) {
	r := NewReader(strings.NewReader(": keepalive\nid: 42\nretry: 1000\ndata: x\n\n"))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "x", string(ev.Data))
}

func TestReaderCRLF(t *testing.T) {
	r := NewReader(strings.NewReader("data: hi\r\n\r\n"))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "hi", string(ev.Data))
}

func TestReaderUnterminatedFinalEvent(t *testing.T) {
	r := NewReader(strings.NewReader("data: tail"))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "tail", string(ev.Data))

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReaderUnterminatedNamedEventAfterFrame(t *testing.T) {
	r := NewReader(strings.NewReader("data: first\n\nevent: error\ndata: boom"))

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "first", string(ev.Data))

	// The residual line arrives together with EOF and still parses
	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "error", ev.Name)
	assert.Equal(t, "boom", string(ev.Data))

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}
