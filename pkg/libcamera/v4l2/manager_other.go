//go:build !(linux && (amd64 || arm64))

package v4l2

import (
	"errors"

	"github.com/camsrc/camsrc/pkg/libcamera"
)

var ErrUnsupported = errors.New("v4l2: unsupported platform")

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

func NewManagerDir(string) *Manager {
	return &Manager{}
}

func (m *Manager) SetFrameRate(uint32) {}

func (m *Manager) Start() error {
	return ErrUnsupported
}

func (m *Manager) Stop() {}

func (m *Manager) Cameras() []libcamera.Camera {
	return nil
}

func (m *Manager) Get(string) libcamera.Camera {
	return nil
}
