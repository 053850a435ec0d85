package capture

import (
	"errors"
	"sync"

	"github.com/camsrc/camsrc/pkg/libcamera"
	"golang.org/x/sys/unix"
)

// bufferMap - process mappings of the first plane of every allocated buffer.
// Every mapping is created by Map and released once by Clear.
type bufferMap struct {
	items map[*libcamera.FrameBuffer][]byte
	mu    sync.Mutex
}

func (m *bufferMap) Map(buffer *libcamera.FrameBuffer) error {
	planes := buffer.Planes()
	if len(planes) == 0 {
		return errors.New("buffer without planes")
	}

	plane := planes[0]

	data, err := unix.Mmap(plane.FD, int64(plane.Offset), int(plane.Length), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.items == nil {
		m.items = map[*libcamera.FrameBuffer][]byte{}
	}
	if old, ok := m.items[buffer]; ok {
		_ = unix.Munmap(old)
	}
	m.items[buffer] = data

	return nil
}

func (m *bufferMap) Get(buffer *libcamera.FrameBuffer) ([]byte, bool) {
	m.mu.Lock()
	data, ok := m.items[buffer]
	m.mu.Unlock()
	return data, ok
}

// Clear - unmap all buffers and empty the table
func (m *bufferMap) Clear() (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for buffer, data := range m.items {
		err = errors.Join(err, unix.Munmap(data))
		delete(m.items, buffer)
	}

	return
}

func (m *bufferMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Has - buffer is mapped
func (m *bufferMap) Has(buffer *libcamera.FrameBuffer) bool {
	_, ok := m.Get(buffer)
	return ok
}
