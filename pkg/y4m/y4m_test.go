package y4m

import (
	"bytes"
	"image"
	"testing"

	"github.com/stretchr/testify/require"
)

// 4x2 frame with 4 bytes of padding at the end of every line
var yuyv = []byte{
	10, 20, 11, 30, 12, 21, 13, 31, 0, 0, 0, 0,
	14, 22, 15, 32, 16, 23, 17, 33, 0, 0, 0, 0,
}

var planar = []byte{
	10, 11, 12, 13, 14, 15, 16, 17,
	20, 21, 22, 23,
	30, 31, 32, 33,
}

func TestToPlanar(t *testing.T) {
	dst := make([]byte, PlanarSize(4, 2))
	YUYV.ToPlanar(dst, yuyv, 4, 2, 12)
	require.Equal(t, planar, dst)

	uyvy := []byte{
		20, 10, 30, 11, 21, 12, 31, 13,
		22, 14, 32, 15, 23, 16, 33, 17,
	}
	clear(dst)
	UYVY.ToPlanar(dst, uyvy, 4, 2, 8)
	require.Equal(t, planar, dst)

	yvyu := []byte{
		10, 30, 11, 20, 12, 31, 13, 21,
		14, 32, 15, 22, 16, 33, 17, 23,
	}
	clear(dst)
	YVYU.ToPlanar(dst, yvyu, 4, 2, 8)
	require.Equal(t, planar, dst)
}

func TestWriter(t *testing.T) {
	buf := bytes.NewBuffer(nil)

	w := NewWriter(buf, YUYV, 4, 2, 12, 30)
	require.Nil(t, w.WriteFrame(yuyv))
	require.Nil(t, w.WriteFrame(yuyv))
	require.ErrorIs(t, w.WriteFrame(yuyv[:12]), ErrFrameSize)

	b := buf.Bytes()
	i := bytes.IndexByte(b, '\n')
	require.Equal(t, "YUV4MPEG2 W4 H2 F30:1 Ip A1:1 C422", string(b[:i]))

	b = b[i+1:]
	for n := 0; n < 2; n++ {
		require.Equal(t, frameHdr, string(b[:len(frameHdr)]))
		b = b[len(frameHdr):]
		require.Equal(t, planar, b[:16])
		b = b[16:]
	}
	require.Len(t, b, 0)
}

func TestPackedImage(t *testing.T) {
	img := YUYV.Image(yuyv, 4, 2, 12)
	require.Equal(t, image.Rect(0, 0, 4, 2), img.Bounds())
	require.Equal(t, planar[:8], img.Y)
	require.Equal(t, planar[8:12], img.Cb)
	require.Equal(t, planar[12:], img.Cr)
}
