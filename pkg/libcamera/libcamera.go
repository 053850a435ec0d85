// Package libcamera describes the capture driver capability set: camera discovery, exclusive
// acquisition, configuration generation/validation/apply, buffer export and the request queue
// with its completion handler. Concrete drivers live in the v4l2 and virtual subpackages.
package libcamera

import (
	"errors"
	"fmt"
)

var (
	ErrBusy        = errors.New("libcamera: camera busy")
	ErrNotAcquired = errors.New("libcamera: camera not acquired")
	ErrNotRunning  = errors.New("libcamera: camera not running")
	ErrInvalid     = errors.New("libcamera: invalid argument")
)

type StreamRole byte

const (
	RoleRaw StreamRole = iota
	RoleStillCapture
	RoleVideoRecording
	RoleViewfinder
)

func (r StreamRole) String() string {
	switch r {
	case RoleRaw:
		return "raw"
	case RoleStillCapture:
		return "still"
	case RoleVideoRecording:
		return "video"
	case RoleViewfinder:
		return "viewfinder"
	}
	return "unknown"
}

type CameraManager interface {
	Start() error
	Stop()

	// Cameras - list of cameras known right now, rescanned on every call
	Cameras() []Camera

	// Get - camera by ID or nil
	Get(id string) Camera
}

// Camera follows the libcamera state rules: Acquire before Configure, Configure before
// Start, requests only queued while running.
type Camera interface {
	ID() string

	// Properties - static info, "Model" key for a human readable name
	Properties() map[string]string

	Acquire() error
	Release() error

	GenerateConfiguration(roles ...StreamRole) (CameraConfiguration, error)
	Configure(config CameraConfiguration) error

	CreateRequest(cookie uint64) (*Request, error)
	QueueRequest(req *Request) error

	Start() error

	// Stop - return only after every queued request has been completed or cancelled
	// through the completion handler
	Stop() error

	// OnRequestCompleted - replace completion handler, nil disconnects.
	// Handler is called from the camera goroutine.
	OnRequestCompleted(handler func(req *Request))

	ExportFrameBuffers(stream *Stream) ([]*FrameBuffer, error)
	ReleaseFrameBuffers(stream *Stream) error
}

type ConfigStatus byte

const (
	Valid ConfigStatus = iota
	Adjusted
	Invalid
)

func (s ConfigStatus) String() string {
	switch s {
	case Valid:
		return "valid"
	case Adjusted:
		return "adjusted"
	}
	return "invalid"
}

// CameraConfiguration - set of stream configurations. Validate may change the
// stream configurations to the nearest supported values.
type CameraConfiguration interface {
	Len() int
	At(i int) *StreamConfiguration
	Validate() ConfigStatus
}

type Size struct {
	Width  uint32
	Height uint32
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

type StreamConfiguration struct {
	PixelFormat PixelFormat
	Size        Size
	Stride      uint32
	FrameSize   uint32
	BufferCount uint32

	stream *Stream
}

// Stream - valid only after the configuration has been applied to the camera
func (s *StreamConfiguration) Stream() *Stream {
	return s.stream
}

// SetStream used by camera implementations on Configure
func (s *StreamConfiguration) SetStream(stream *Stream) {
	s.stream = stream
}

func (s StreamConfiguration) String() string {
	return s.Size.String() + "-" + s.PixelFormat.String()
}

// Stream - opaque stream handle, owned by the camera
type Stream struct {
	Index int
}

// StreamConfigurations - simple CameraConfiguration storage for camera implementations
type StreamConfigurations []*StreamConfiguration

func (c StreamConfigurations) Len() int {
	return len(c)
}

func (c StreamConfigurations) At(i int) *StreamConfiguration {
	if i < 0 || i >= len(c) {
		return nil
	}
	return c[i]
}
