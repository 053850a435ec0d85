// Package virtual implements in-process cameras with memfd backed frame buffers.
// Frames are produced by a ticker at the configured rate and every driver call
// can be made to fail through Faults.
package virtual

import (
	"sort"
	"sync"

	"github.com/camsrc/camsrc/pkg/libcamera"
)

type Config struct {
	ID    string `yaml:"id"`
	Model string `yaml:"model"`
	FPS   int    `yaml:"fps"`

	// Formats - supported formats, YUYV only by default
	Formats []libcamera.PixelFormat `yaml:"-"`

	// Substitute - format selected by Validate for unsupported requests,
	// first of Formats by default
	Substitute libcamera.PixelFormat `yaml:"-"`

	MaxWidth    uint32 `yaml:"max_width"`
	MaxHeight   uint32 `yaml:"max_height"`
	BufferCount int    `yaml:"buffers"`
}

const (
	defaultFPS         = 30
	defaultBufferCount = 4
	defaultMaxWidth    = 1920
	defaultMaxHeight   = 1080
)

type Manager struct {
	cameras map[string]*Camera
	started bool
	mu      sync.Mutex
}

func NewManager(configs ...Config) *Manager {
	m := &Manager{cameras: map[string]*Camera{}}
	for _, cfg := range configs {
		m.Add(cfg)
	}
	return m
}

func (m *Manager) Start() error {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	return nil
}

func (m *Manager) Stop() {
	m.mu.Lock()
	m.started = false
	m.mu.Unlock()
}

func (m *Manager) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func (m *Manager) Cameras() []libcamera.Camera {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.cameras))
	for id := range m.cameras {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	cameras := make([]libcamera.Camera, len(ids))
	for i, id := range ids {
		cameras[i] = m.cameras[id]
	}
	return cameras
}

func (m *Manager) Get(id string) libcamera.Camera {
	if cam := m.Camera(id); cam != nil {
		return cam
	}
	// nil *Camera in interface is not nil
	return nil
}

// Camera - concrete camera for fault injection and counters
func (m *Manager) Camera(id string) *Camera {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cameras[id]
}

// Add - hotplug new camera, replace config for existing ID
func (m *Manager) Add(cfg Config) *Camera {
	if cfg.FPS <= 0 {
		cfg.FPS = defaultFPS
	}
	if cfg.BufferCount <= 0 {
		cfg.BufferCount = defaultBufferCount
	}
	if cfg.MaxWidth == 0 {
		cfg.MaxWidth = defaultMaxWidth
	}
	if cfg.MaxHeight == 0 {
		cfg.MaxHeight = defaultMaxHeight
	}
	if len(cfg.Formats) == 0 {
		cfg.Formats = []libcamera.PixelFormat{libcamera.YUYV}
	}
	if cfg.Substitute == 0 {
		cfg.Substitute = cfg.Formats[0]
	}
	if cfg.Model == "" {
		cfg.Model = "Virtual Camera"
	}

	cam := newCamera(cfg)

	m.mu.Lock()
	m.cameras[cfg.ID] = cam
	m.mu.Unlock()

	return cam
}

// Remove - unplug camera, sessions holding it keep a stale handle
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.cameras, id)
	m.mu.Unlock()
}
