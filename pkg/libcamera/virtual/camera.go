package virtual

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/camsrc/camsrc/pkg/libcamera"
	"golang.org/x/sys/unix"
)

// Faults - errors returned by the next driver calls, zero value fails nothing
type Faults struct {
	Acquire   error
	Configure error
	Export    error
	Start     error

	// CreateRequest fails after CreateRequestAfter successful calls
	CreateRequest      error
	CreateRequestAfter int

	// DuplicateBuffer - export the same buffer twice, so binding it fails
	DuplicateBuffer bool

	// BadPlane - last exported buffer has an unmappable plane
	BadPlane bool
}

type state byte

const (
	stateAvailable state = iota
	stateAcquired
	stateConfigured
	stateRunning
)

type buffer struct {
	fb   *libcamera.FrameBuffer
	fd   int
	data []byte
}

type Camera struct {
	cfg Config

	state   state
	handler func(req *libcamera.Request)
	faults  Faults
	created int

	stream  libcamera.Stream
	applied libcamera.StreamConfiguration
	buffers []*buffer

	queue    []*libcamera.Request
	sequence uint32
	epoch    time.Time

	stop chan struct{}
	done chan struct{}

	acquires  int
	releases  int
	delivered int

	mu sync.Mutex
}

func newCamera(cfg Config) *Camera {
	return &Camera{cfg: cfg, epoch: time.Now()}
}

func (c *Camera) ID() string {
	return c.cfg.ID
}

func (c *Camera) Properties() map[string]string {
	return map[string]string{
		"Model":    c.cfg.Model,
		"Location": "virtual",
	}
}

func (c *Camera) Acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateAvailable {
		return libcamera.ErrBusy
	}
	if err := c.faults.Acquire; err != nil {
		return err
	}

	c.state = stateAcquired
	c.acquires++
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

	c.freeBuffers()
	c.state = stateAvailable
	c.releases++
	return nil
}

func (c *Camera) GenerateConfiguration(roles ...libcamera.StreamRole) (libcamera.CameraConfiguration, error) {
	if len(roles) != 1 {
		return nil, fmt.Errorf("virtual: unsupported roles %v", roles)
	}

	sc := &libcamera.StreamConfiguration{
		PixelFormat: c.cfg.Formats[0],
		Size:        libcamera.Size{Width: 1280, Height: 720},
		BufferCount: uint32(c.cfg.BufferCount),
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

	if err := c.faults.Configure; err != nil {
		return err
	}

	if cfg.Validate() == libcamera.Invalid {
		return libcamera.ErrInvalid
	}

	sc := cfg.At(0)
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

	if err := c.faults.CreateRequest; err != nil {
		if c.created >= c.faults.CreateRequestAfter {
			return nil, err
		}
	}

	c.created++
	return libcamera.NewRequest(cookie), nil
}

func (c *Camera) QueueRequest(req *libcamera.Request) error {
	if req.FindBuffer(&c.stream) == nil {
		return libcamera.ErrInvalid
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateRunning {
		return libcamera.ErrNotRunning
	}

	c.queue = append(c.queue, req)
	return nil
}

func (c *Camera) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateAvailable:
		return libcamera.ErrNotAcquired
	case stateAcquired:
		return errors.New("virtual: camera not configured")
	case stateRunning:
		return libcamera.ErrBusy
	}

	if err := c.faults.Start; err != nil {
		return err
	}

	c.state = stateRunning
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go c.worker(c.stop, c.done, time.Second/time.Duration(c.cfg.FPS))

	return nil
}

func (c *Camera) Stop() error {
	c.mu.Lock()
	if c.state != stateRunning {
		c.mu.Unlock()
		return nil
	}

	c.state = stateConfigured
	close(c.stop)
	done := c.done
	c.mu.Unlock()

	// worker may be inside the completion handler
	<-done

	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	handler := c.handler
	c.mu.Unlock()

	for _, req := range queue {
		for _, fb := range req.Buffers() {
			fb.SetMetadata(libcamera.FrameMetadata{Status: libcamera.FrameCancelled})
		}
		req.Complete(libcamera.RequestCancelled)
		if handler != nil {
			handler(req)
		}
	}

	return nil
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
	if err := c.faults.Export; err != nil {
		return nil, err
	}

	size := int(c.applied.FrameSize)

	for i := 0; i < int(c.applied.BufferCount); i++ {
		fd, err := newMemory(fmt.Sprintf("%s-%d", c.cfg.ID, i), size)
		if err != nil {
			c.freeBuffers()
			return nil, err
		}

		data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			_ = unix.Close(fd)
			c.freeBuffers()
			return nil, err
		}

		plane := libcamera.Plane{FD: fd, Length: uint32(size)}
		if c.faults.BadPlane && i == int(c.applied.BufferCount)-1 {
			plane.FD = -1
		}

		fb := libcamera.NewFrameBuffer([]libcamera.Plane{plane}, uint64(i))
		c.buffers = append(c.buffers, &buffer{fb: fb, fd: fd, data: data})
	}

	fbs := make([]*libcamera.FrameBuffer, len(c.buffers))
	for i, b := range c.buffers {
		fbs[i] = b.fb
	}
	if c.faults.DuplicateBuffer && len(fbs) > 1 {
		fbs[len(fbs)-1] = fbs[0]
	}
	return fbs, nil
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

	c.freeBuffers()
	return nil
}

// InjectFaults - replace active faults
func (c *Camera) InjectFaults(faults Faults) {
	c.mu.Lock()
	c.faults = faults
	c.created = 0
	c.mu.Unlock()
}

// Acquired - camera is held by someone
func (c *Camera) Acquired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != stateAvailable
}

func (c *Camera) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateRunning
}

// Counters - number of Acquire and Release calls that changed ownership
func (c *Camera) Counters() (acquires, releases int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquires, c.releases
}

// Queued - requests waiting for a frame
func (c *Camera) Queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Exported - buffers currently exported
func (c *Camera) Exported() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffers)
}

// Delivered - completed (not cancelled) requests since creation
func (c *Camera) Delivered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delivered
}

func (c *Camera) Configured() libcamera.StreamConfiguration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applied
}

func (c *Camera) worker(stop, done chan struct{}, interval time.Duration) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			continue
		}

		req := c.queue[0]
		c.queue = c.queue[1:]
		c.sequence++
		c.delivered++
		sequence := c.sequence
		handler := c.handler
		c.mu.Unlock()

		c.fill(req, sequence)
		req.Complete(libcamera.RequestComplete)

		if handler != nil {
			handler(req)
		}
	}
}

func (c *Camera) fill(req *libcamera.Request, sequence uint32) {
	ts := uint64(time.Since(c.epoch))

	fb := req.FindBuffer(&c.stream)

	for _, b := range c.buffers {
		if b.fb != fb {
			continue
		}
		pattern(b.data, c.applied, sequence)
		fb.SetMetadata(libcamera.FrameMetadata{
			Status:    libcamera.FrameSuccess,
			Sequence:  sequence,
			Timestamp: ts,
			Planes:    []libcamera.PlaneMetadata{{BytesUsed: uint32(len(b.data))}},
		})
		return
	}
}

// freeBuffers must be called under lock
func (c *Camera) freeBuffers() {
	for _, b := range c.buffers {
		_ = unix.Munmap(b.data)
		_ = unix.Close(b.fd)
	}
	c.buffers = nil
}

type configuration struct {
	libcamera.StreamConfigurations
	camera *Camera
}

func (c *configuration) Validate() libcamera.ConfigStatus {
	if c.Len() != 1 {
		return libcamera.Invalid
	}

	cfg := c.camera.cfg
	sc := c.At(0)
	status := libcamera.Valid

	if !supported(cfg.Formats, sc.PixelFormat) {
		sc.PixelFormat = cfg.Substitute
		status = libcamera.Adjusted
	}

	if sc.Size.Width == 0 || sc.Size.Width > cfg.MaxWidth {
		sc.Size.Width = cfg.MaxWidth
		status = libcamera.Adjusted
	}
	if sc.Size.Height == 0 || sc.Size.Height > cfg.MaxHeight {
		sc.Size.Height = cfg.MaxHeight
		status = libcamera.Adjusted
	}

	if sc.BufferCount == 0 {
		sc.BufferCount = uint32(cfg.BufferCount)
		status = libcamera.Adjusted
	}

	bpp := sc.PixelFormat.BytesPerPixel()
	if bpp == 0 {
		return libcamera.Invalid
	}

	sc.Stride = sc.Size.Width * bpp
	sc.FrameSize = sc.Stride * sc.Size.Height

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

// pattern - moving gray bars, enough to see frames change
func pattern(b []byte, sc libcamera.StreamConfiguration, sequence uint32) {
	stride := int(sc.Stride)
	if stride == 0 {
		return
	}
	for y := 0; y*stride < len(b); y++ {
		line := b[y*stride : min(len(b), (y+1)*stride)]
		v := byte(y + int(sequence)*4)
		for i := range line {
			line[i] = v
		}
	}
}
