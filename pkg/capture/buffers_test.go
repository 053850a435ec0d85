package capture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/camsrc/camsrc/pkg/libcamera"
	"github.com/stretchr/testify/require"
)

func TestBufferMap(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "buffer"))
	require.Nil(t, err)
	defer f.Close()

	_, err = f.Write([]byte("0123456789abcdef"))
	require.Nil(t, err)

	fd := int(f.Fd())

	b1 := libcamera.NewFrameBuffer([]libcamera.Plane{{FD: fd, Length: 16}}, 0)
	b2 := libcamera.NewFrameBuffer([]libcamera.Plane{{FD: fd, Length: 8}}, 1)
	b3 := libcamera.NewFrameBuffer(nil, 2)

	var m bufferMap
	require.Nil(t, m.Map(b1))
	require.Nil(t, m.Map(b2))
	require.NotNil(t, m.Map(b3))
	require.Equal(t, 2, m.Len())

	data, ok := m.Get(b1)
	require.True(t, ok)
	require.Equal(t, "0123456789abcdef", string(data))

	data, ok = m.Get(b2)
	require.True(t, ok)
	require.Len(t, data, 8)

	require.False(t, m.Has(b3))

	require.Nil(t, m.Clear())
	require.Equal(t, 0, m.Len())
	require.False(t, m.Has(b1))

	// second clear has nothing to unmap
	require.Nil(t, m.Clear())
}
