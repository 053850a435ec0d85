// Package v4l2 implements libcamera cameras on top of V4L2 capture nodes.
// Buffers are exported as dmabuf fds, so they can be mapped without the device fd.
package v4l2

import (
	"github.com/camsrc/camsrc/pkg/libcamera"
	"github.com/camsrc/camsrc/pkg/v4l2/device"
)

// pixelFormats - DRM to V4L2 fourcc, both describe the same memory layout
var pixelFormats = []struct {
	drm  libcamera.PixelFormat
	v4l2 uint32
}{
	{libcamera.YUYV, device.V4L2_PIX_FMT_YUYV},
	{libcamera.YVYU, device.V4L2_PIX_FMT_YVYU},
	{libcamera.UYVY, device.V4L2_PIX_FMT_UYVY},
	{libcamera.VYUY, device.V4L2_PIX_FMT_VYUY},
	{libcamera.BGR888, device.V4L2_PIX_FMT_RGB24},
	{libcamera.RGB888, device.V4L2_PIX_FMT_BGR24},
	{libcamera.BGRX8888, device.V4L2_PIX_FMT_XRGB32},
	{libcamera.BGRA8888, device.V4L2_PIX_FMT_ARGB32},
	{libcamera.RGBA8888, device.V4L2_PIX_FMT_BGRA32},
	{libcamera.NV12, device.V4L2_PIX_FMT_NV12},
	{libcamera.MJPEG, device.V4L2_PIX_FMT_MJPEG},
}

func ToV4L2(format libcamera.PixelFormat) (uint32, bool) {
	for _, f := range pixelFormats {
		if f.drm == format {
			return f.v4l2, true
		}
	}
	return 0, false
}

func FromV4L2(fourCC uint32) (libcamera.PixelFormat, bool) {
	for _, f := range pixelFormats {
		if f.v4l2 == fourCC {
			return f.drm, true
		}
	}
	return 0, false
}

// nearest - closest size by area difference, exact match wins
func nearest(sizes []libcamera.Size, size libcamera.Size) libcamera.Size {
	best := size
	var bestDiff int64 = -1

	for _, s := range sizes {
		if s == size {
			return s
		}
		diff := int64(s.Width)*int64(s.Height) - int64(size.Width)*int64(size.Height)
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			best, bestDiff = s, diff
		}
	}

	return best
}
