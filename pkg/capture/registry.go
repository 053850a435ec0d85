package capture

import (
	"fmt"
	"sort"
	"sync"

	"github.com/camsrc/camsrc/pkg/libcamera"
	"github.com/rs/zerolog"
)

// Handle - session key, never reused by the same Registry
type Handle uint64

// Settings - host settings of a source
type Settings map[string]any

const SettingDeviceID = "device_id"

func (s Settings) String(key string) string {
	switch v := s[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Property - item of the device list, ID is the setting value
type Property struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type Info struct {
	Handle    Handle  `json:"id"`
	Camera    string  `json:"device_id,omitempty"`
	State     State   `json:"state"`
	Activated bool    `json:"activated"`
	Layout    *Layout `json:"layout,omitempty"`
	Stats     Stats   `json:"stats"`
	Mapped    int     `json:"mapped"`
	Requests  int     `json:"requests"`
}

// Registry - owns all sessions and the camera manager. Every control call
// is serialized with one mutex, so sessions never see concurrent control.
type Registry struct {
	manager libcamera.CameraManager
	opts    Options
	log     zerolog.Logger

	started  bool
	sessions map[Handle]*Session
	counter  Handle

	mu sync.Mutex
}

func NewRegistry(manager libcamera.CameraManager, opts Options, log zerolog.Logger) *Registry {
	return &Registry{
		manager:  manager,
		opts:     opts,
		log:      log,
		sessions: map[Handle]*Session{},
	}
}

// init - start camera manager on first use
func (r *Registry) init() {
	if r.started {
		return
	}
	if err := r.manager.Start(); err != nil {
		r.log.Error().Err(err).Msg("[capture] start camera manager")
		return
	}
	r.started = true
}

func (r *Registry) camera(id string) libcamera.Camera {
	if id == "" || !r.started {
		return nil
	}
	return r.manager.Get(id)
}

// Create - new session, bound to the camera from settings if there is one
func (r *Registry) Create(settings Settings, sink Sink) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.init()

	r.counter++
	handle := r.counter

	session := NewSession(sink, r.opts, r.log.With().Uint64("source", uint64(handle)).Logger())

	// TODO: handle other settings
	if id := settings.String(SettingDeviceID); id != "" {
		if cam := r.camera(id); cam != nil {
			if err := session.AssignDevice(cam); err != nil {
				r.log.Error().Err(err).Uint64("source", uint64(handle)).Msg("[capture] create")
			}
		} else {
			r.log.Warn().Str("camera", id).Msg("[capture] camera not found")
		}
	}

	r.sessions[handle] = session

	return handle
}

// Destroy - remove session and release its camera
func (r *Registry) Destroy(handle Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[handle]
	if !ok {
		return
	}

	delete(r.sessions, handle)

	if err := session.Close(); err != nil {
		r.log.Warn().Err(err).Uint64("source", uint64(handle)).Msg("[capture] destroy")
	}
}

// Update - apply new settings: assign and start the first camera, or move
// the session to another camera
func (r *Registry) Update(handle Handle, settings Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[handle]
	if !ok {
		return
	}

	r.init()

	id := settings.String(SettingDeviceID)
	newCam := r.camera(id)

	oldCam := session.Camera()
	if oldCam == nil {
		if id == "" {
			return
		}
		if newCam == nil {
			r.log.Warn().Str("camera", id).Msg("[capture] camera not found")
			return
		}
		if err := session.AssignDevice(newCam); err != nil {
			r.log.Error().Err(err).Uint64("source", uint64(handle)).Msg("[capture] update")
			return
		}
		if err := session.Start(); err != nil {
			r.log.Error().Err(err).Uint64("source", uint64(handle)).Msg("[capture] update")
		}
		return
	}

	if oldCam.ID() != id && newCam != nil {
		if err := session.ReassignDevice(newCam); err != nil {
			r.log.Error().Err(err).Uint64("source", uint64(handle)).Msg("[capture] update")
		}
	}
}

func (r *Registry) Activate(handle Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.sessions[handle]; ok {
		if err := session.Start(); err != nil {
			r.log.Error().Err(err).Uint64("source", uint64(handle)).Msg("[capture] activate")
		}
	}
}

func (r *Registry) Deactivate(handle Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.sessions[handle]; ok {
		if err := session.Stop(); err != nil {
			r.log.Warn().Err(err).Uint64("source", uint64(handle)).Msg("[capture] deactivate")
		}
	}
}

// Enumerate - device list for the UI, rescanned on every call
func (r *Registry) Enumerate() []Property {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.init()

	if !r.started {
		return nil
	}

	var props []Property
	for _, cam := range r.manager.Cameras() {
		label := cam.Properties()["Model"]
		if label == "" {
			label = cam.ID()
		}
		props = append(props, Property{ID: cam.ID(), Label: label})
	}
	return props
}

func (r *Registry) Info(handle Handle) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[handle]
	if !ok {
		return Info{}, false
	}
	return info(handle, session), true
}

// List - info about all sessions, ordered by handle
func (r *Registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := make([]Info, 0, len(r.sessions))
	for handle, session := range r.sessions {
		items = append(items, info(handle, session))
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Handle < items[j].Handle
	})
	return items
}

// Close - destroy all sessions and stop the camera manager
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for handle, session := range r.sessions {
		delete(r.sessions, handle)
		if err := session.Close(); err != nil {
			r.log.Warn().Err(err).Uint64("source", uint64(handle)).Msg("[capture] close")
		}
	}

	if r.started {
		r.manager.Stop()
		r.started = false
	}
}

func info(handle Handle, session *Session) Info {
	i := Info{
		Handle:    handle,
		State:     session.State(),
		Activated: session.Activated(),
		Stats:     session.Stats(),
		Mapped:    session.MappedCount(),
		Requests:  session.RequestCount(),
	}
	if cam := session.Camera(); cam != nil {
		i.Camera = cam.ID()
	}
	if session.Running() {
		layout := session.Layout()
		i.Layout = &layout
	}
	return i
}
