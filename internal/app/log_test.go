package app

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCircularBuffer(t *testing.T) {
	buf := newBuffer(2)

	_, _ = buf.Write([]byte("hello"))
	_, _ = buf.Write([]byte(" world"))

	var w bytes.Buffer
	_, err := buf.WriteTo(&w)
	require.NoError(t, err)
	require.Equal(t, "hello world", w.String())

	buf.Reset()
	w.Reset()
	_, _ = buf.WriteTo(&w)
	require.Empty(t, w.String())
}

func TestCircularBufferOverflow(t *testing.T) {
	buf := newBuffer(2)

	chunk := bytes.Repeat([]byte{'a'}, chunkSize)
	_, _ = buf.Write(chunk)
	_, _ = buf.Write(bytes.Repeat([]byte{'b'}, chunkSize))
	_, _ = buf.Write([]byte("c"))

	// oldest chunk dropped
	var w bytes.Buffer
	_, _ = buf.WriteTo(&w)
	require.Equal(t, chunkSize+1, w.Len())
	require.Equal(t, byte('b'), w.Bytes()[0])
	require.Equal(t, byte('c'), w.Bytes()[w.Len()-1])
}

func TestGetLogger(t *testing.T) {
	prev := modules
	t.Cleanup(func() { modules = prev })

	Logger = zerolog.New(nil).Level(zerolog.InfoLevel)
	modules = map[string]string{
		"capture":   "debug",
		"libcamera": "warn",
		"api":       "bad",
	}

	require.Equal(t, zerolog.DebugLevel, GetLogger("capture").GetLevel())
	require.Equal(t, zerolog.WarnLevel, GetLogger("libcamera").GetLevel())
	require.Equal(t, zerolog.InfoLevel, GetLogger("api").GetLevel())
	require.Equal(t, zerolog.InfoLevel, GetLogger("other").GetLevel())
}
