package sse

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenRead(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteData(&buf, []byte(`{"type":"start"}`)))
	require.NoError(t, WriteData(&buf, []byte(`{"type":"complete"}`)))
	assert.Equal(t, "data: {\"type\":\"start\"}\n\ndata: {\"type\":\"complete\"}\n\n", buf.String())

	r := NewReader(&buf)
	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"start"}`, string(first))
	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"complete"}`, string(second))
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderTolerance(t *testing.T) {
	stream := ": keep-alive\n\nevent: x\ndata:a\ndata: b\n\ndata: truncated"
	r := NewReader(strings.NewReader(stream))

	got, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "a\nb", string(got))

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}
