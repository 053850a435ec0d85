package libcamera

import (
	"errors"
	"fmt"
)

// Plane - part of buffer memory that can be mapped with mmap(fd, offset, length)
type Plane struct {
	FD     int
	Offset uint32
	Length uint32
}

type FrameStatus byte

const (
	FrameSuccess FrameStatus = iota
	FrameError
	FrameCancelled
)

type PlaneMetadata struct {
	BytesUsed uint32
}

type FrameMetadata struct {
	Status    FrameStatus
	Sequence  uint32
	Timestamp uint64 // nanoseconds, capture clock domain
	Planes    []PlaneMetadata
}

type FrameBuffer struct {
	planes   []Plane
	metadata FrameMetadata
	cookie   uint64
	request  *Request
}

func NewFrameBuffer(planes []Plane, cookie uint64) *FrameBuffer {
	return &FrameBuffer{planes: planes, cookie: cookie}
}

func (b *FrameBuffer) Planes() []Plane {
	return b.planes
}

func (b *FrameBuffer) Cookie() uint64 {
	return b.cookie
}

func (b *FrameBuffer) Request() *Request {
	return b.request
}

func (b *FrameBuffer) Metadata() FrameMetadata {
	return b.metadata
}

// SetMetadata used by camera implementations on request completion
func (b *FrameBuffer) SetMetadata(metadata FrameMetadata) {
	b.metadata = metadata
}

// FrameBufferAllocator - buffers exported by the camera, per stream
type FrameBufferAllocator struct {
	camera  Camera
	buffers map[*Stream][]*FrameBuffer
}

func NewFrameBufferAllocator(camera Camera) *FrameBufferAllocator {
	return &FrameBufferAllocator{
		camera:  camera,
		buffers: map[*Stream][]*FrameBuffer{},
	}
}

// Allocate - return number of allocated buffers
func (a *FrameBufferAllocator) Allocate(stream *Stream) (int, error) {
	if stream == nil {
		return 0, ErrInvalid
	}
	if _, ok := a.buffers[stream]; ok {
		return 0, errors.New("libcamera: buffers already allocated for stream")
	}

	buffers, err := a.camera.ExportFrameBuffers(stream)
	if err != nil {
		return 0, err
	}
	if len(buffers) == 0 {
		return 0, fmt.Errorf("libcamera: camera %s exported no buffers", a.camera.ID())
	}

	a.buffers[stream] = buffers
	return len(buffers), nil
}

func (a *FrameBufferAllocator) Free(stream *Stream) error {
	if _, ok := a.buffers[stream]; !ok {
		return ErrInvalid
	}

	delete(a.buffers, stream)
	return a.camera.ReleaseFrameBuffers(stream)
}

func (a *FrameBufferAllocator) Buffers(stream *Stream) []*FrameBuffer {
	return a.buffers[stream]
}

func (a *FrameBufferAllocator) Allocated() bool {
	return len(a.buffers) > 0
}

// Close - free buffers of all streams
func (a *FrameBufferAllocator) Close() (err error) {
	for stream := range a.buffers {
		err = errors.Join(err, a.Free(stream))
	}
	return
}
