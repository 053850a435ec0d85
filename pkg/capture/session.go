package capture

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/camsrc/camsrc/pkg/libcamera"
	"github.com/rs/zerolog"
)

// Session - one video source bound to at most one camera.
//
// State (actual hardware state) and activated (host wants video) are independent:
// Stop and ReleaseDevice clear activated, Start sets it even without a camera,
// so a later ReassignDevice can resume streaming on its own.
type Session struct {
	opts Options
	sink Sink
	log  zerolog.Logger

	camera    libcamera.Camera
	config    libcamera.CameraConfiguration
	allocator *libcamera.FrameBufferAllocator
	stream    *libcamera.Stream
	requests  []*libcamera.Request
	buffers   bufferMap
	layout    Layout

	state     State
	activated bool

	delivered     atomic.Uint64
	cancelled     atomic.Uint64
	requeueFailed atomic.Uint64
	inflight      atomic.Int64
}

type Stats struct {
	Delivered     uint64 `json:"delivered"`
	Cancelled     uint64 `json:"cancelled"`
	RequeueFailed uint64 `json:"requeue_failed,omitempty"`
	InFlight      int64  `json:"in_flight"`
}

func NewSession(sink Sink, opts Options, log zerolog.Logger) *Session {
	defaults := DefaultOptions()
	if opts.Width == 0 || opts.Height == 0 {
		opts.Width, opts.Height = defaults.Width, defaults.Height
	}
	if opts.Formats == nil {
		opts.Formats = defaults.Formats
	}
	if sink == nil {
		sink = SinkFunc(func(*Frame) {})
	}
	return &Session{opts: opts, sink: sink, log: log}
}

func (s *Session) Camera() libcamera.Camera {
	return s.camera
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) Running() bool {
	return s.state == StateRunning
}

func (s *Session) Activated() bool {
	return s.activated
}

// Layout - negotiated layout, valid while running
func (s *Session) Layout() Layout {
	return s.layout
}

func (s *Session) Stats() Stats {
	return Stats{
		Delivered:     s.delivered.Load(),
		Cancelled:     s.cancelled.Load(),
		RequeueFailed: s.requeueFailed.Load(),
		InFlight:      s.inflight.Load(),
	}
}

// MappedCount - entries of the buffer table
func (s *Session) MappedCount() int {
	return s.buffers.Len()
}

// RequestCount - size of the request pool
func (s *Session) RequestCount() int {
	return len(s.requests)
}

// AssignDevice - acquire camera, session must not have one.
// On error session stays without camera.
func (s *Session) AssignDevice(cam libcamera.Camera) error {
	if cam == nil {
		return fmt.Errorf("%w: no camera", ErrAcquire)
	}
	if s.camera != nil {
		return fmt.Errorf("%w: %s", ErrDeviceBound, s.camera.ID())
	}

	if err := cam.Acquire(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrAcquire, cam.ID(), err)
	}

	cam.OnRequestCompleted(func(req *libcamera.Request) {
		s.requestComplete(cam, req)
	})

	s.camera = cam
	s.allocator = libcamera.NewFrameBufferAllocator(cam)
	s.state = StateIdle

	s.log.Info().Str("camera", cam.ID()).Msg("[capture] acquired camera")

	return nil
}

// ReleaseDevice - stop if running and give the camera back
func (s *Session) ReleaseDevice() error {
	if s.camera == nil {
		return nil
	}

	var err error

	if s.state == StateRunning {
		err = s.Stop()
	}

	s.activated = false

	err = errors.Join(err, s.allocator.Close())

	s.camera.OnRequestCompleted(nil)
	err = errors.Join(err, s.camera.Release())

	s.log.Info().Str("camera", s.camera.ID()).Msg("[capture] released camera")

	s.camera = nil
	s.config = nil
	s.allocator = nil
	s.state = StateUnbound

	return err
}

// ReassignDevice - switch to another camera, resume streaming if it was
// running or the host wants it running
func (s *Session) ReassignDevice(cam libcamera.Camera) error {
	s.log.Info().Msg("[capture] restarting with new camera")

	wasRunning := s.state == StateRunning
	wasActivated := s.activated

	err := s.ReleaseDevice()

	// keep host intent for the next camera
	s.activated = wasRunning || wasActivated

	if err2 := s.AssignDevice(cam); err2 != nil {
		return errors.Join(err, err2)
	}

	if s.activated {
		return errors.Join(err, s.Start())
	}

	return err
}

// Start - negotiate, allocate, map and queue all requests. Mark session as
// activated even if it can't run right now.
func (s *Session) Start() error {
	s.activated = true

	if s.camera == nil {
		s.log.Info().Msg("[capture] no camera set")
		return nil
	}

	if s.state == StateRunning {
		s.log.Info().Msg("[capture] already running")
		return nil
	}

	s.log.Info().Str("camera", s.camera.ID()).Msg("[capture] starting camera")

	config, layout, err := Negotiate(s.camera, s.opts)
	if err != nil {
		return err
	}

	s.config = config
	s.layout = layout

	stream := config.At(0).Stream()

	n, err := s.allocator.Allocate(stream)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrAllocation, s.camera.ID(), err)
	}

	s.stream = stream

	s.log.Debug().Int("count", n).Msg("[capture] allocated buffers")

	if err = s.prepareRequests(); err != nil {
		s.teardown()
		return err
	}

	s.log.Debug().Msg("[capture] done mapping buffers")

	if err = s.camera.Start(); err != nil {
		s.teardown()
		return fmt.Errorf("%w: %s: %w", ErrStart, s.camera.ID(), err)
	}

	s.state = StateRunning

	for _, req := range s.requests {
		s.queueRequest(s.camera, req)
	}

	s.log.Info().Str("camera", s.camera.ID()).Stringer("layout", layout.Format).
		Uint32("width", layout.Width).Uint32("height", layout.Height).Msg("[capture] done starting camera")

	return nil
}

// Stop - clear activated, halt the camera and drop requests, buffers and mappings
func (s *Session) Stop() error {
	s.activated = false

	if s.camera == nil || s.state != StateRunning {
		return nil
	}

	s.log.Info().Str("camera", s.camera.ID()).Msg("[capture] stopping camera")

	// returns after all requests completed or cancelled
	err := s.camera.Stop()

	err = errors.Join(err, s.teardown())

	s.state = StateIdle

	s.log.Info().Str("camera", s.camera.ID()).Msg("[capture] camera stopped")

	return err
}

// Close - release camera, session can't be used after
func (s *Session) Close() error {
	return s.ReleaseDevice()
}

func (s *Session) prepareRequests() error {
	buffers := s.allocator.Buffers(s.stream)

	for i, buffer := range buffers {
		req, err := s.camera.CreateRequest(uint64(i))
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrRequestConstruction, s.camera.ID(), err)
		}
		if req == nil {
			return fmt.Errorf("%w: %s", ErrRequestConstruction, s.camera.ID())
		}

		if err = req.AddBuffer(s.stream, buffer); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrBufferBind, s.camera.ID(), err)
		}

		if err = s.buffers.Map(buffer); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrMapping, s.camera.ID(), err)
		}

		s.requests = append(s.requests, req)
	}

	return nil
}

// teardown - undo prepareRequests and Allocate, camera must be stopped
func (s *Session) teardown() error {
	s.requests = nil

	// unmap before free, driver can't free mapped buffers
	err := s.buffers.Clear()

	if s.stream != nil {
		err = errors.Join(err, s.allocator.Free(s.stream))
		s.stream = nil
	}

	return err
}
