package libcamera_test

import (
	"errors"
	"testing"

	"github.com/camsrc/camsrc/pkg/libcamera"
	"github.com/camsrc/camsrc/pkg/libcamera/virtual"
	"github.com/stretchr/testify/require"
)

func TestPixelFormat(t *testing.T) {
	require.Equal(t, "YUYV", libcamera.YUYV.String())
	require.Equal(t, "BGRA8888", libcamera.BGRA8888.String())
	require.Equal(t, "<INVALID>", libcamera.PixelFormat(0).String())

	require.Equal(t, libcamera.YUYV, libcamera.FourCC('Y', 'U', 'Y', 'V'))
	require.Equal(t, libcamera.BGRX8888, libcamera.ParsePixelFormat("BGRX8888"))
	require.Equal(t, libcamera.UYVY, libcamera.ParsePixelFormat("UYVY"))
	require.Equal(t, libcamera.PixelFormat(0), libcamera.ParsePixelFormat("bad"))

	require.Equal(t, uint32(2), libcamera.YVYU.BytesPerPixel())
	require.Equal(t, uint32(3), libcamera.BGR888.BytesPerPixel())
	require.Equal(t, uint32(4), libcamera.RGBA8888.BytesPerPixel())
	require.Equal(t, uint32(0), libcamera.NV12.BytesPerPixel())
}

func TestRequest(t *testing.T) {
	stream1 := &libcamera.Stream{}
	stream2 := &libcamera.Stream{Index: 1}
	buffer1 := libcamera.NewFrameBuffer(nil, 1)
	buffer2 := libcamera.NewFrameBuffer(nil, 2)

	req := libcamera.NewRequest(7)
	require.Equal(t, uint64(7), req.Cookie())
	require.Equal(t, libcamera.RequestPending, req.Status())

	require.ErrorIs(t, req.AddBuffer(nil, buffer1), libcamera.ErrInvalid)
	require.Nil(t, req.AddBuffer(stream1, buffer1))
	require.NotNil(t, req.AddBuffer(stream1, buffer2))
	require.Equal(t, req, buffer1.Request())
	require.Equal(t, buffer1, req.FindBuffer(stream1))

	// one buffer can't be in two requests
	other := libcamera.NewRequest(8)
	require.NotNil(t, other.AddBuffer(stream2, buffer1))

	req.Complete(libcamera.RequestComplete)
	req.Reuse(libcamera.ReuseBuffers)
	require.Equal(t, libcamera.RequestPending, req.Status())
	require.Equal(t, buffer1, req.FindBuffer(stream1))

	req.Reuse(libcamera.ReuseDefault)
	require.Empty(t, req.Buffers())
	require.Nil(t, buffer1.Request())
	require.Nil(t, other.AddBuffer(stream2, buffer1))
}

func TestAllocator(t *testing.T) {
	m := virtual.NewManager(virtual.Config{ID: "cam1", BufferCount: 3})
	cam := m.Get("cam1")
	require.Nil(t, cam.Acquire())

	alloc := libcamera.NewFrameBufferAllocator(cam)

	_, err := alloc.Allocate(nil)
	require.ErrorIs(t, err, libcamera.ErrInvalid)

	config, err := cam.GenerateConfiguration(libcamera.RoleViewfinder)
	require.Nil(t, err)
	require.Equal(t, libcamera.Valid, config.Validate())
	require.Nil(t, cam.Configure(config))

	stream := config.At(0).Stream()
	require.NotNil(t, stream)

	n, err := alloc.Allocate(stream)
	require.Nil(t, err)
	require.Equal(t, 3, n)
	require.Len(t, alloc.Buffers(stream), 3)
	require.True(t, alloc.Allocated())

	_, err = alloc.Allocate(stream)
	require.NotNil(t, err)

	for _, buffer := range alloc.Buffers(stream) {
		planes := buffer.Planes()
		require.Len(t, planes, 1)
		require.Equal(t, config.At(0).FrameSize, planes[0].Length)
	}

	require.Nil(t, alloc.Free(stream))
	require.False(t, alloc.Allocated())
	require.ErrorIs(t, alloc.Free(stream), libcamera.ErrInvalid)

	_, err = alloc.Allocate(stream)
	require.Nil(t, err)
	require.Nil(t, alloc.Close())
	require.Nil(t, cam.Release())
}

func TestAllocatorExportError(t *testing.T) {
	m := virtual.NewManager(virtual.Config{ID: "cam1"})
	cam := m.Camera("cam1")
	require.Nil(t, cam.Acquire())

	config, _ := cam.GenerateConfiguration(libcamera.RoleViewfinder)
	require.Nil(t, cam.Configure(config))

	fault := errors.New("no memory")
	cam.InjectFaults(virtual.Faults{Export: fault})

	alloc := libcamera.NewFrameBufferAllocator(cam)
	_, err := alloc.Allocate(config.At(0).Stream())
	require.ErrorIs(t, err, fault)
	require.False(t, alloc.Allocated())
}
