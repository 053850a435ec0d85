package capture

import (
	"fmt"

	"github.com/camsrc/camsrc/pkg/libcamera"
)

type Format struct {
	Pixel         libcamera.PixelFormat
	Video         VideoFormat
	BytesPerPixel uint32
}

// Formats - packed formats with an exact VideoFormat match, in preference order.
// TODO: NV12 and I420 need multi plane output
var Formats = []Format{
	{libcamera.YUYV, VideoFormatYUY2, 2},
	{libcamera.YVYU, VideoFormatYVYU, 2},
	{libcamera.UYVY, VideoFormatUYVY, 2},
	{libcamera.RGBA8888, VideoFormatRGBA, 4},
	{libcamera.BGRA8888, VideoFormatBGRA, 4},
	{libcamera.BGRX8888, VideoFormatBGRX, 4},
	{libcamera.BGR888, VideoFormatBGR3, 3},
}

// Negotiate - apply first candidate format the camera accepts without substitution
// at the requested size. Camera must be acquired.
func Negotiate(cam libcamera.Camera, opts Options) (libcamera.CameraConfiguration, Layout, error) {
	config, err := cam.GenerateConfiguration(libcamera.RoleViewfinder)
	if err != nil {
		return nil, Layout{}, fmt.Errorf("%w: %s: %w", ErrConfiguration, cam.ID(), err)
	}
	if config == nil || config.Len() == 0 {
		return nil, Layout{}, fmt.Errorf("%w: %s: empty configuration", ErrConfiguration, cam.ID())
	}

	sc := config.At(0)

	var found *Format

	for i := range opts.Formats {
		candidate := &opts.Formats[i]

		sc.PixelFormat = candidate.Pixel
		sc.Size = libcamera.Size{Width: opts.Width, Height: opts.Height}

		// validate can silently switch to the camera preferred format
		if config.Validate() != libcamera.Invalid && sc.PixelFormat == candidate.Pixel {
			found = candidate
			break
		}
	}

	if found == nil {
		return nil, Layout{}, fmt.Errorf("%w: %s", ErrConfiguration, cam.ID())
	}

	if err = cam.Configure(config); err != nil {
		return nil, Layout{}, fmt.Errorf("%w: %s: %s: %w", ErrApply, cam.ID(), sc, err)
	}

	layout := Layout{
		Format:      found.Video,
		PixelFormat: found.Pixel,
		Width:       sc.Size.Width,
		Height:      sc.Size.Height,
		Linesize:    sc.Size.Width * found.BytesPerPixel,
	}

	return config, layout, nil
}
