// Package capture binds a camera to a video source: it negotiates the pixel format,
// allocates and maps frame buffers and keeps a closed loop of capture requests
// that turns every completed request into a Frame for the Sink.
//
// Control calls (AssignDevice, ReleaseDevice, ReassignDevice, Start, Stop) must come
// from one serialized control path, the Registry does this for its sessions.
// Completion callbacks arrive from the camera goroutine.
package capture

import (
	"errors"

	"github.com/camsrc/camsrc/pkg/libcamera"
)

var (
	ErrAcquire             = errors.New("capture: acquire camera")
	ErrConfiguration       = errors.New("capture: no compatible format")
	ErrApply               = errors.New("capture: apply configuration")
	ErrAllocation          = errors.New("capture: allocate buffers")
	ErrRequestConstruction = errors.New("capture: create request")
	ErrBufferBind          = errors.New("capture: add buffer")
	ErrMapping             = errors.New("capture: map buffer")
	ErrStart               = errors.New("capture: start camera")
	ErrDeviceBound         = errors.New("capture: camera already assigned")
)

// VideoFormat - pixel layout of the output frame, names follow the libobs video_format
type VideoFormat byte

const (
	VideoFormatNone VideoFormat = iota
	VideoFormatYUY2
	VideoFormatYVYU
	VideoFormatUYVY
	VideoFormatRGBA
	VideoFormatBGRA
	VideoFormatBGRX
	VideoFormatBGR3
)

func (f VideoFormat) String() string {
	switch f {
	case VideoFormatYUY2:
		return "YUY2"
	case VideoFormatYVYU:
		return "YVYU"
	case VideoFormatUYVY:
		return "UYVY"
	case VideoFormatRGBA:
		return "RGBA"
	case VideoFormatBGRA:
		return "BGRA"
	case VideoFormatBGRX:
		return "BGRX"
	case VideoFormatBGR3:
		return "BGR3"
	}
	return "none"
}

func (f VideoFormat) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

const MaxPlanes = 8

// Frame - output frame descriptor. Data points into the mapped capture buffer
// and is valid only until Sink.OutputVideo returns.
type Frame struct {
	Data      [MaxPlanes][]byte
	Linesize  [MaxPlanes]uint32
	Width     uint32
	Height    uint32
	Timestamp uint64
	Format    VideoFormat

	ColorMatrix   [16]float32
	ColorRangeMin [3]float32
	ColorRangeMax [3]float32
	FullRange     bool
	Flip          bool
}

// Sink - host frame output, must copy Data if it needs it later
type Sink interface {
	OutputVideo(frame *Frame)
}

type SinkFunc func(frame *Frame)

func (f SinkFunc) OutputVideo(frame *Frame) {
	f(frame)
}

// Layout - pixel layout contract of the applied configuration
type Layout struct {
	Format      VideoFormat           `json:"format"`
	PixelFormat libcamera.PixelFormat `json:"-"`
	Width       uint32                `json:"width"`
	Height      uint32                `json:"height"`
	Linesize    uint32                `json:"linesize"`
}

// Size - bytes of one frame
func (l Layout) Size() int {
	return int(l.Linesize) * int(l.Height)
}

// ColorMatrixBT709Full - YUV to RGB, BT.709 full range
var ColorMatrixBT709Full = [16]float32{
	1.000000, 0.000000, 1.581000, -0.793600,
	1.000000, -0.188062, -0.469967, 0.330305,
	1.000000, 1.862906, 0.000000, -0.935106,
	0.000000, 0.000000, 0.000000, 1.000000,
}

type Options struct {
	Width  uint32
	Height uint32

	// Formats - candidates in preference order
	Formats []Format

	FullRange     bool
	ColorMatrix   [16]float32
	ColorRangeMin [3]float32
	ColorRangeMax [3]float32
}

func DefaultOptions() Options {
	return Options{
		Width:         960,
		Height:        540,
		Formats:       Formats,
		FullRange:     true,
		ColorMatrix:   ColorMatrixBT709Full,
		ColorRangeMin: [3]float32{0, 0, 0},
		ColorRangeMax: [3]float32{1, 1, 1},
	}
}

type State byte

const (
	StateUnbound State = iota
	StateIdle
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
