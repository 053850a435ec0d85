//go:build linux && (amd64 || arm64)

package v4l2

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/camsrc/camsrc/pkg/libcamera"
	"github.com/camsrc/camsrc/pkg/v4l2/device"
	"golang.org/x/sys/unix"
)

const (
	defaultBufferCount = 4
	maxBufferCount     = 32
)

type state byte

const (
	stateAvailable state = iota
	stateAcquired
	stateConfigured
	stateRunning
)

type Camera struct {
	path string
	caps *device.Capability

	// enumerated formats in driver order and their discrete sizes
	formats []libcamera.PixelFormat
	sizes   map[libcamera.PixelFormat][]libcamera.Size

	dev     *device.Device
	state   state
	handler func(req *libcamera.Request)

	// fps - requested with S_PARM on Configure, zero keeps the driver default
	fps uint32

	stream  libcamera.Stream
	applied libcamera.StreamConfiguration
	buffers []*libcamera.FrameBuffer
	index   map[*libcamera.FrameBuffer]uint32
	queued  map[uint32]*libcamera.Request

	wake int // eventfd, stops the worker
	done chan struct{}

	mu sync.Mutex
}

func newCamera(path string, caps *device.Capability, fps uint32) *Camera {
	return &Camera{
		path:   path,
		caps:   caps,
		fps:    fps,
		sizes:  map[libcamera.PixelFormat][]libcamera.Size{},
		index:  map[*libcamera.FrameBuffer]uint32{},
		queued: map[uint32]*libcamera.Request{},
		wake:   -1,
	}
}

func (c *Camera) ID() string {
	return c.path
}

func (c *Camera) Properties() map[string]string {
	return map[string]string{
		"Model":    c.caps.Card,
		"Driver":   c.caps.Driver,
		"BusInfo":  c.caps.BusInfo,
		"Version":  c.caps.Version,
		"Location": "external",
	}
}

func (c *Camera) Acquired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != stateAvailable
}

func (c *Camera) Acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateAvailable {
		return libcamera.ErrBusy
	}

	dev, err := device.Open(c.path)
	if err != nil {
		return err
	}

	if err = dev.Lock(); err != nil {
		_ = dev.Close()
		if errors.Is(err, device.ErrLocked) {
			return fmt.Errorf("%w: %w", libcamera.ErrBusy, err)
		}
		return err
	}

	c.dev = dev
	c.state = stateAcquired
	return nil
}

func (c *Camera) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateAvailable:
		return nil
	case stateRunning:
		return libcamera.ErrBusy
	}

	err := c.freeBuffers()
	err = errors.Join(err, c.dev.Close())

	c.dev = nil
	c.state = stateAvailable
	return err
}

func (c *Camera) GenerateConfiguration(roles ...libcamera.StreamRole) (libcamera.CameraConfiguration, error) {
	if len(roles) != 1 {
		return nil, fmt.Errorf("v4l2: unsupported roles %v", roles)
	}

	format := c.formats[0]

	size := libcamera.Size{Width: 640, Height: 480}
	if sizes := c.sizes[format]; len(sizes) > 0 {
		size = sizes[0]
	}

	sc := &libcamera.StreamConfiguration{
		PixelFormat: format,
		Size:        size,
		BufferCount: defaultBufferCount,
	}

	cfg := &configuration{
		StreamConfigurations: libcamera.StreamConfigurations{sc},
		camera:               c,
	}
	cfg.Validate()
	return cfg, nil
}

func (c *Camera) Configure(config libcamera.CameraConfiguration) error {
	cfg, ok := config.(*configuration)
	if !ok || cfg.camera != c {
		return libcamera.ErrInvalid
	}

	if cfg.Validate() == libcamera.Invalid {
		return libcamera.ErrInvalid
	}

	sc := cfg.At(0)

	fourCC, _ := ToV4L2(sc.PixelFormat)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateAvailable:
		return libcamera.ErrNotAcquired
	case stateRunning:
		return libcamera.ErrBusy
	}

	if len(c.buffers) > 0 {
		return libcamera.ErrBusy
	}

	f, err := c.dev.SetFormat(sc.Size.Width, sc.Size.Height, fourCC)
	if err != nil {
		return err
	}

	// driver changed its mind after validation
	if f.PixelFormat != fourCC || f.Width != sc.Size.Width || f.Height != sc.Size.Height {
		return fmt.Errorf("%w: driver applied %dx%d-%s", libcamera.ErrInvalid, f.Width, f.Height, device.FormatName(f.PixelFormat))
	}

	if c.fps > 0 {
		// not every driver supports frame intervals
		_ = c.dev.SetParam(c.fps)
	}

	sc.Stride = f.BytesPerLine
	sc.FrameSize = f.SizeImage
	sc.SetStream(&c.stream)

	c.applied = *sc
	c.state = stateConfigured
	return nil
}

func (c *Camera) CreateRequest(cookie uint64) (*libcamera.Request, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateAvailable {
		return nil, libcamera.ErrNotAcquired
	}

	return libcamera.NewRequest(cookie), nil
}

func (c *Camera) QueueRequest(req *libcamera.Request) error {
	fb := req.FindBuffer(&c.stream)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateRunning {
		return libcamera.ErrNotRunning
	}

	index, ok := c.index[fb]
	if !ok {
		return libcamera.ErrInvalid
	}

	if err := c.dev.Queue(index); err != nil {
		return err
	}

	c.queued[index] = req
	return nil
}

func (c *Camera) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateAvailable:
		return libcamera.ErrNotAcquired
	case stateAcquired:
		return errors.New("v4l2: camera not configured")
	case stateRunning:
		return libcamera.ErrBusy
	}

	wake, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return err
	}

	if err = c.dev.StreamOn(); err != nil {
		_ = unix.Close(wake)
		return err
	}

	c.wake = wake
	c.done = make(chan struct{})
	c.state = stateRunning

	go c.worker(c.dev, wake, c.done)

	return nil
}

func (c *Camera) Stop() error {
	c.mu.Lock()
	if c.state != stateRunning {
		c.mu.Unlock()
		return nil
	}

	c.state = stateConfigured

	_, _ = unix.Write(c.wake, binary.NativeEndian.AppendUint64(nil, 1))
	done := c.done
	c.mu.Unlock()

	// worker may be inside the completion handler
	<-done

	c.mu.Lock()
	err := c.dev.StreamOff()
	_ = unix.Close(c.wake)
	c.wake = -1

	queued := c.queued
	c.queued = map[uint32]*libcamera.Request{}
	handler := c.handler
	c.mu.Unlock()

	for _, req := range queued {
		for _, fb := range req.Buffers() {
			fb.SetMetadata(libcamera.FrameMetadata{Status: libcamera.FrameCancelled})
		}
		req.Complete(libcamera.RequestCancelled)
		if handler != nil {
			handler(req)
		}
	}

	return err
}

func (c *Camera) OnRequestCompleted(handler func(req *libcamera.Request)) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

func (c *Camera) ExportFrameBuffers(stream *libcamera.Stream) ([]*libcamera.FrameBuffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if stream != &c.stream || c.state != stateConfigured {
		return nil, libcamera.ErrInvalid
	}
	if len(c.buffers) > 0 {
		return nil, libcamera.ErrBusy
	}

	n, err := c.dev.RequestBuffers(c.applied.BufferCount)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.New("v4l2: driver allocated no buffers")
	}

	for i := uint32(0); i < n; i++ {
		_, length, err := c.dev.QueryBuffer(i)
		if err != nil {
			_ = c.freeBuffers()
			return nil, err
		}

		fd, err := c.dev.ExportBuffer(i)
		if err != nil {
			_ = c.freeBuffers()
			return nil, err
		}

		fb := libcamera.NewFrameBuffer([]libcamera.Plane{{FD: fd, Length: length}}, uint64(i))
		c.buffers = append(c.buffers, fb)
		c.index[fb] = i
	}

	return append([]*libcamera.FrameBuffer(nil), c.buffers...), nil
}

func (c *Camera) ReleaseFrameBuffers(stream *libcamera.Stream) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if stream != &c.stream {
		return libcamera.ErrInvalid
	}
	if c.state == stateRunning {
		return libcamera.ErrBusy
	}

	return c.freeBuffers()
}

// freeBuffers must be called under lock
func (c *Camera) freeBuffers() (err error) {
	for _, fb := range c.buffers {
		for _, plane := range fb.Planes() {
			err = errors.Join(err, unix.Close(plane.FD))
		}
	}

	c.buffers = nil
	c.index = map[*libcamera.FrameBuffer]uint32{}

	_, err2 := c.dev.RequestBuffers(0)
	return errors.Join(err, err2)
}

func (c *Camera) worker(dev *device.Device, wake int, done chan struct{}) {
	defer close(done)

	fds := []unix.PollFd{
		{Fd: int32(dev.Fd()), Events: unix.POLLIN},
		{Fd: int32(wake), Events: unix.POLLIN},
	}

	for {
		if _, err := unix.Poll(fds, -1); err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return
		}

		if fds[1].Revents != 0 {
			return
		}

		// POLLERR while nothing is queued, wait for the next request
		if fds[0].Revents&unix.POLLIN == 0 {
			time.Sleep(5 * time.Millisecond)
			continue
		}

		for {
			buf, err := dev.Dequeue()
			if err != nil {
				break
			}
			c.complete(buf)
		}
	}
}

func (c *Camera) complete(buf *device.Buffer) {
	c.mu.Lock()
	req := c.queued[buf.Index]
	delete(c.queued, buf.Index)
	handler := c.handler
	c.mu.Unlock()

	if req == nil {
		return
	}

	status := libcamera.FrameSuccess
	if buf.Error {
		status = libcamera.FrameError
	}

	if fb := req.FindBuffer(&c.stream); fb != nil {
		fb.SetMetadata(libcamera.FrameMetadata{
			Status:    status,
			Sequence:  buf.Sequence,
			Timestamp: uint64(buf.Timestamp),
			Planes:    []libcamera.PlaneMetadata{{BytesUsed: buf.BytesUsed}},
		})
	}

	req.Complete(libcamera.RequestComplete)

	if handler != nil {
		handler(req)
	}
}

type configuration struct {
	libcamera.StreamConfigurations
	camera *Camera
}

// Validate - ask the driver with TRY_FMT when the camera is acquired,
// otherwise check against the enumerated formats and sizes
func (c *configuration) Validate() libcamera.ConfigStatus {
	if c.Len() != 1 {
		return libcamera.Invalid
	}

	cam := c.camera
	sc := c.At(0)
	status := libcamera.Valid

	if !supported(cam.formats, sc.PixelFormat) {
		sc.PixelFormat = cam.formats[0]
		status = libcamera.Adjusted
	}

	if sc.BufferCount == 0 {
		sc.BufferCount = defaultBufferCount
		status = libcamera.Adjusted
	} else if sc.BufferCount > maxBufferCount {
		sc.BufferCount = maxBufferCount
		status = libcamera.Adjusted
	}

	cam.mu.Lock()
	dev := cam.dev
	running := cam.state == stateRunning
	cam.mu.Unlock()

	// TRY_FMT is allowed while streaming, but the answer is useless then
	if dev == nil || running {
		if size := nearest(cam.sizes[sc.PixelFormat], sc.Size); size != sc.Size {
			sc.Size = size
			status = libcamera.Adjusted
		}
		sc.Stride = sc.Size.Width * sc.PixelFormat.BytesPerPixel()
		sc.FrameSize = sc.Stride * sc.Size.Height
		return status
	}

	fourCC, _ := ToV4L2(sc.PixelFormat)

	f, err := dev.TryFormat(sc.Size.Width, sc.Size.Height, fourCC)
	if err != nil {
		return libcamera.Invalid
	}

	if f.PixelFormat != fourCC {
		format, ok := FromV4L2(f.PixelFormat)
		if !ok {
			return libcamera.Invalid
		}
		sc.PixelFormat = format
		status = libcamera.Adjusted
	}

	if f.Width != sc.Size.Width || f.Height != sc.Size.Height {
		sc.Size = libcamera.Size{Width: f.Width, Height: f.Height}
		status = libcamera.Adjusted
	}

	sc.Stride = f.BytesPerLine
	sc.FrameSize = f.SizeImage

	return status
}

func supported(formats []libcamera.PixelFormat, format libcamera.PixelFormat) bool {
	for _, f := range formats {
		if f == format {
			return true
		}
	}
	return false
}
