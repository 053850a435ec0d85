package v4l2

import (
	"testing"

	"github.com/camsrc/camsrc/pkg/libcamera"
	"github.com/camsrc/camsrc/pkg/v4l2/device"
	"github.com/stretchr/testify/require"
)

func TestPixelFormats(t *testing.T) {
	fourCC, ok := ToV4L2(libcamera.YUYV)
	require.True(t, ok)
	require.Equal(t, uint32(device.V4L2_PIX_FMT_YUYV), fourCC)

	fourCC, _ = ToV4L2(libcamera.BGR888)
	require.Equal(t, uint32(device.V4L2_PIX_FMT_RGB24), fourCC)
	require.Equal(t, "RGB3", device.FormatName(fourCC))

	format, ok := FromV4L2(device.V4L2_PIX_FMT_ARGB32)
	require.True(t, ok)
	require.Equal(t, libcamera.BGRA8888, format)

	_, ok = ToV4L2(libcamera.PixelFormat(0))
	require.False(t, ok)

	_, ok = FromV4L2(uint32(libcamera.FourCC('H', '2', '6', '4')))
	require.False(t, ok)

	for _, f := range pixelFormats {
		back, ok := FromV4L2(f.v4l2)
		require.True(t, ok)
		require.Equal(t, f.drm, back)
	}
}

func TestNearest(t *testing.T) {
	sizes := []libcamera.Size{
		{Width: 640, Height: 480},
		{Width: 1280, Height: 720},
		{Width: 1920, Height: 1080},
	}

	require.Equal(t, libcamera.Size{Width: 1280, Height: 720}, nearest(sizes, libcamera.Size{Width: 1280, Height: 720}))
	require.Equal(t, libcamera.Size{Width: 640, Height: 480}, nearest(sizes, libcamera.Size{Width: 320, Height: 240}))
	require.Equal(t, libcamera.Size{Width: 1280, Height: 720}, nearest(sizes, libcamera.Size{Width: 1200, Height: 700}))
	require.Equal(t, libcamera.Size{Width: 1920, Height: 1080}, nearest(sizes, libcamera.Size{Width: 4000, Height: 3000}))

	// no sizes, keep requested
	require.Equal(t, libcamera.Size{Width: 10, Height: 10}, nearest(nil, libcamera.Size{Width: 10, Height: 10}))
}
