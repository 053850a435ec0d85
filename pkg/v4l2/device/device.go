//go:build linux && (amd64 || arm64)

package device

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/camsrc/camsrc/pkg/ioctl"
	"golang.org/x/sys/unix"
)

var ErrLocked = errors.New("v4l2: device locked by another process")

type Device struct {
	fd   int
	path string
}

// Open - non blocking, so Dequeue never waits inside the driver
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	return &Device{fd: fd, path: path}, nil
}

func (d *Device) Path() string {
	return d.path
}

func (d *Device) Fd() int {
	return d.fd
}

// Lock - exclusive advisory lock, released on Close
func (d *Device) Lock() error {
	if err := unix.Flock(d.fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return ErrLocked
		}
		return err
	}
	return nil
}

type Capability struct {
	Driver  string
	Card    string
	BusInfo string
	Version string
	Caps    uint32
}

// Capture - device node can stream video frames
func (c *Capability) Capture() bool {
	const mask = V4L2_CAP_VIDEO_CAPTURE | V4L2_CAP_STREAMING
	return c.Caps&mask == mask
}

func (d *Device) Capability() (*Capability, error) {
	c := v4l2_capability{}
	if err := ioctl.Ioctl(d.fd, VIDIOC_QUERYCAP, unsafe.Pointer(&c)); err != nil {
		return nil, err
	}

	caps := c.capabilities
	if caps&V4L2_CAP_DEVICE_CAPS != 0 {
		caps = c.device_caps
	}

	return &Capability{
		Driver:  ioctl.Str(c.driver[:]),
		Card:    ioctl.Str(c.card[:]),
		BusInfo: ioctl.Str(c.bus_info[:]),
		Version: fmt.Sprintf("%d.%d.%d", byte(c.version>>16), byte(c.version>>8), byte(c.version)),
		Caps:    caps,
	}, nil
}

func (d *Device) ListFormats() ([]uint32, error) {
	var items []uint32

	for i := uint32(0); ; i++ {
		fd := v4l2_fmtdesc{
			index: i,
			typ:   V4L2_BUF_TYPE_VIDEO_CAPTURE,
		}
		if err := ioctl.Ioctl(d.fd, VIDIOC_ENUM_FMT, unsafe.Pointer(&fd)); err != nil {
			if !errors.Is(err, unix.EINVAL) {
				return nil, err
			}
			break
		}

		items = append(items, fd.pixelformat)
	}

	return items, nil
}

func (d *Device) ListSizes(pixFmt uint32) ([][2]uint32, error) {
	var items [][2]uint32

	for i := uint32(0); ; i++ {
		fs := v4l2_frmsizeenum{
			index:        i,
			pixel_format: pixFmt,
		}
		if err := ioctl.Ioctl(d.fd, VIDIOC_ENUM_FRAMESIZES, unsafe.Pointer(&fs)); err != nil {
			if !errors.Is(err, unix.EINVAL) {
				return nil, err
			}
			break
		}

		if fs.typ != V4L2_FRMSIZE_TYPE_DISCRETE {
			continue
		}

		items = append(items, [2]uint32{fs.discrete.width, fs.discrete.height})
	}

	return items, nil
}

// PixFormat - values after the driver adjusted them
type PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	BytesPerLine uint32
	SizeImage    uint32
}

func (d *Device) TryFormat(width, height, pixFmt uint32) (*PixFormat, error) {
	return d.format(VIDIOC_TRY_FMT, width, height, pixFmt)
}

func (d *Device) SetFormat(width, height, pixFmt uint32) (*PixFormat, error) {
	return d.format(VIDIOC_S_FMT, width, height, pixFmt)
}

func (d *Device) format(req uintptr, width, height, pixFmt uint32) (*PixFormat, error) {
	f := v4l2_format{
		typ: V4L2_BUF_TYPE_VIDEO_CAPTURE,
		pix: v4l2_pix_format{
			width:       width,
			height:      height,
			pixelformat: pixFmt,
			field:       V4L2_FIELD_NONE,
			colorspace:  V4L2_COLORSPACE_DEFAULT,
		},
	}
	if err := ioctl.Ioctl(d.fd, req, unsafe.Pointer(&f)); err != nil {
		return nil, err
	}
	return &PixFormat{
		Width:        f.pix.width,
		Height:       f.pix.height,
		PixelFormat:  f.pix.pixelformat,
		BytesPerLine: f.pix.bytesperline,
		SizeImage:    f.pix.sizeimage,
	}, nil
}

func (d *Device) SetParam(fps uint32) error {
	p := v4l2_streamparm{
		typ: V4L2_BUF_TYPE_VIDEO_CAPTURE,
		capture: v4l2_captureparm{
			timeperframe: v4l2_fract{numerator: 1, denominator: fps},
		},
	}
	return ioctl.Ioctl(d.fd, VIDIOC_S_PARM, unsafe.Pointer(&p))
}

// RequestBuffers - return number of buffers the driver allocated, zero count frees them
func (d *Device) RequestBuffers(count uint32) (uint32, error) {
	rb := v4l2_requestbuffers{
		count:  count,
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	if err := ioctl.Ioctl(d.fd, VIDIOC_REQBUFS, unsafe.Pointer(&rb)); err != nil {
		return 0, err
	}
	return rb.count, nil
}

// QueryBuffer - return offset and length for mmap on the device fd
func (d *Device) QueryBuffer(index uint32) (offset, length uint32, err error) {
	qb := v4l2_buffer{
		index:  index,
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	if err = ioctl.Ioctl(d.fd, VIDIOC_QUERYBUF, unsafe.Pointer(&qb)); err != nil {
		return
	}
	return uint32(qb.offset), qb.length, nil
}

// ExportBuffer - dmabuf fd of the buffer, caller must close it
func (d *Device) ExportBuffer(index uint32) (int, error) {
	eb := v4l2_exportbuffer{
		typ:   V4L2_BUF_TYPE_VIDEO_CAPTURE,
		index: index,
		flags: unix.O_RDONLY | unix.O_CLOEXEC,
	}
	if err := ioctl.Ioctl(d.fd, VIDIOC_EXPBUF, unsafe.Pointer(&eb)); err != nil {
		return -1, err
	}
	return int(eb.fd), nil
}

func (d *Device) Queue(index uint32) error {
	qb := v4l2_buffer{
		index:  index,
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	return ioctl.Ioctl(d.fd, VIDIOC_QBUF, unsafe.Pointer(&qb))
}

type Buffer struct {
	Index     uint32
	BytesUsed uint32
	Sequence  uint32
	Timestamp time.Duration // driver clock, usually CLOCK_MONOTONIC
	Error     bool
}

// Dequeue - return unix.EAGAIN if no buffer is ready
func (d *Device) Dequeue() (*Buffer, error) {
	dq := v4l2_buffer{
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	if err := ioctl.Ioctl(d.fd, VIDIOC_DQBUF, unsafe.Pointer(&dq)); err != nil {
		return nil, err
	}
	return &Buffer{
		Index:     dq.index,
		BytesUsed: dq.bytesused,
		Sequence:  dq.sequence,
		Timestamp: time.Duration(dq.tv_sec)*time.Second + time.Duration(dq.tv_usec)*time.Microsecond,
		Error:     dq.flags&V4L2_BUF_FLAG_ERROR != 0,
	}, nil
}

func (d *Device) StreamOn() error {
	typ := uint32(V4L2_BUF_TYPE_VIDEO_CAPTURE)
	return ioctl.Ioctl(d.fd, VIDIOC_STREAMON, unsafe.Pointer(&typ))
}

// StreamOff - also returns all queued buffers to the application
func (d *Device) StreamOff() error {
	typ := uint32(V4L2_BUF_TYPE_VIDEO_CAPTURE)
	return ioctl.Ioctl(d.fd, VIDIOC_STREAMOFF, unsafe.Pointer(&typ))
}

func (d *Device) Close() error {
	return unix.Close(d.fd)
}
