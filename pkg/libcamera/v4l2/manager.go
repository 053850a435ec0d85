//go:build linux && (amd64 || arm64)

package v4l2

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/camsrc/camsrc/pkg/libcamera"
	"github.com/camsrc/camsrc/pkg/v4l2/device"
)

type Manager struct {
	dir     string
	fps     uint32
	cameras map[string]*Camera
	started bool
	mu      sync.Mutex
}

func NewManager() *Manager {
	return NewManagerDir("/dev")
}

// NewManagerDir - scan another directory for video nodes
func NewManagerDir(dir string) *Manager {
	return &Manager{dir: dir, cameras: map[string]*Camera{}}
}

// SetFrameRate - applied by cameras opened after the call
func (m *Manager) SetFrameRate(fps uint32) {
	m.mu.Lock()
	m.fps = fps
	m.mu.Unlock()
}

func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(m.dir); err != nil {
		return err
	}

	m.started = true
	return nil
}

func (m *Manager) Stop() {
	m.mu.Lock()
	m.started = false
	m.mu.Unlock()
}

func (m *Manager) Cameras() []libcamera.Camera {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}

	m.scan()

	paths := make([]string, 0, len(m.cameras))
	for path := range m.cameras {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	cameras := make([]libcamera.Camera, len(paths))
	for i, path := range paths {
		cameras[i] = m.cameras[path]
	}
	return cameras
}

func (m *Manager) Get(id string) libcamera.Camera {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}

	if cam, ok := m.cameras[id]; ok {
		return cam
	}

	m.scan()

	if cam, ok := m.cameras[id]; ok {
		return cam
	}
	return nil
}

// scan - open new nodes and forget vanished ones, must be called under lock
func (m *Manager) scan() {
	files, err := os.ReadDir(m.dir)
	if err != nil {
		return
	}

	seen := map[string]bool{}

	for _, file := range files {
		if !strings.HasPrefix(file.Name(), "video") {
			continue
		}

		path := filepath.Join(m.dir, file.Name())
		seen[path] = true

		if _, ok := m.cameras[path]; ok {
			continue
		}

		if cam, err := openCamera(path, m.fps); err == nil {
			m.cameras[path] = cam
		}
	}

	for path, cam := range m.cameras {
		// acquired camera keeps working until released
		if !seen[path] && !cam.Acquired() {
			delete(m.cameras, path)
		}
	}
}

var errNoCapture = errors.New("v4l2: not a capture device")

func openCamera(path string, fps uint32) (*Camera, error) {
	dev, err := device.Open(path)
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	caps, err := dev.Capability()
	if err != nil {
		return nil, err
	}
	if !caps.Capture() {
		return nil, errNoCapture
	}

	fourCCs, err := dev.ListFormats()
	if err != nil {
		return nil, err
	}

	cam := newCamera(path, caps, fps)

	for _, fourCC := range fourCCs {
		format, ok := FromV4L2(fourCC)
		if !ok {
			continue
		}

		cam.formats = append(cam.formats, format)

		sizes, _ := dev.ListSizes(fourCC)
		for _, size := range sizes {
			cam.sizes[format] = append(cam.sizes[format], libcamera.Size{Width: size[0], Height: size[1]})
		}
	}

	if len(cam.formats) == 0 {
		return nil, errNoCapture
	}

	return cam, nil
}
