package libcamera

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/camsrc/camsrc/internal/api"
	"github.com/camsrc/camsrc/internal/api/ws"
	"github.com/camsrc/camsrc/internal/app"
	"github.com/camsrc/camsrc/pkg/capture"
	"github.com/camsrc/camsrc/pkg/libcamera"
	"github.com/camsrc/camsrc/pkg/libcamera/v4l2"
	"github.com/camsrc/camsrc/pkg/libcamera/virtual"
	"github.com/rs/zerolog"
)

func Init() {
	var cfg struct {
		Mod struct {
			Backend string           `yaml:"backend"`
			Dir     string           `yaml:"dir"`
			Width   uint32           `yaml:"width"`
			Height  uint32           `yaml:"height"`
			FPS     uint32           `yaml:"fps"`
			Formats []string         `yaml:"formats"`
			Virtual []virtual.Config `yaml:"virtual"`
		} `yaml:"libcamera"`
		Sources map[string]SourceConfig `yaml:"sources"`
	}

	cfg.Mod.Backend = "v4l2"
	cfg.Mod.Dir = "/dev"

	app.LoadConfig(&cfg)

	log = app.GetLogger("libcamera")

	var manager libcamera.CameraManager
	switch cfg.Mod.Backend {
	case "virtual":
		manager = virtual.NewManager(cfg.Mod.Virtual...)
	case "v4l2":
		m := v4l2.NewManagerDir(cfg.Mod.Dir)
		m.SetFrameRate(cfg.Mod.FPS)
		manager = m
	default:
		log.Error().Str("backend", cfg.Mod.Backend).Msg("[libcamera] unknown backend")
		return
	}

	opts := capture.DefaultOptions()
	if cfg.Mod.Width > 0 && cfg.Mod.Height > 0 {
		opts.Width = cfg.Mod.Width
		opts.Height = cfg.Mod.Height
	}
	if formats := ParseFormats(cfg.Mod.Formats); formats != nil {
		opts.Formats = formats
	}

	start(manager, opts)

	names := make([]string, 0, len(cfg.Sources))
	for name := range cfg.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := New(name, cfg.Sources[name]); err != nil {
			log.Error().Err(err).Str("source", name).Msg("[libcamera] create")
		}
	}

	api.HandleFunc("api/libcamera", apiLibcamera)
	api.HandleFunc("api/sources", apiSources)
	api.HandleFunc("api/sources/activate", apiActivate)
	api.HandleFunc("api/sources/deactivate", apiActivate)
	api.HandleFunc("api/frame.raw", apiFrame)
	api.HandleFunc("api/frame.jpeg", apiFrameJPEG)
	api.HandleFunc("api/stream.mjpeg", apiStreamMJPEG)
	api.HandleFunc("api/stream.y4m", apiStreamY4M)

	ws.HandleFunc("frames", handlerWS)
}

var log zerolog.Logger

var registry *capture.Registry

func start(manager libcamera.CameraManager, opts capture.Options) {
	registry = capture.NewRegistry(manager, opts, log)
}

// ParseFormats - filter default candidates by output names (YUY2, UYVY, BGRA...),
// keeping the order of names
func ParseFormats(names []string) []capture.Format {
	var formats []capture.Format
	for _, name := range names {
		for _, format := range capture.Formats {
			if strings.EqualFold(format.Video.String(), name) {
				formats = append(formats, format)
				break
			}
		}
	}
	return formats
}

type SourceConfig struct {
	DeviceID string `yaml:"device_id" json:"device_id,omitempty"`
	Active   *bool  `yaml:"active,omitempty" json:"active,omitempty"`
}

func (c SourceConfig) active() bool {
	return c.Active == nil || *c.Active
}

func (c SourceConfig) settings() capture.Settings {
	return capture.Settings{capture.SettingDeviceID: c.DeviceID}
}

type Source struct {
	Name   string
	Config SourceConfig

	handle capture.Handle
	hub    *Hub
}

func (s *Source) Hub() *Hub {
	return s.hub
}

func (s *Source) Info() capture.Info {
	info, _ := registry.Info(s.handle)
	return info
}

var (
	ErrExists         = errors.New("source already exists")
	ErrNotFound       = errors.New(api.SourceNotFound)
	ErrNoDevice       = errors.New("device_id required")
	ErrCameraNotFound = errors.New("camera not found")
)

var sources = map[string]*Source{}
var sourcesMu sync.Mutex

// New - create source and start it if active
func New(name string, cfg SourceConfig) (*Source, error) {
	sourcesMu.Lock()
	defer sourcesMu.Unlock()

	if _, ok := sources[name]; ok {
		return nil, ErrExists
	}

	src := &Source{Name: name, Config: cfg, hub: NewHub()}
	src.handle = registry.Create(cfg.settings(), src.hub)
	sources[name] = src

	log.Debug().Str("source", name).Str("camera", cfg.DeviceID).Msg("[libcamera] new source")

	if cfg.active() {
		registry.Activate(src.handle)
	}

	return src, nil
}

func Get(name string) *Source {
	sourcesMu.Lock()
	defer sourcesMu.Unlock()
	return sources[name]
}

// Patch - move source to another camera, config is kept when the camera can't be bound
func Patch(name, deviceID string) (*Source, error) {
	if deviceID == "" {
		return nil, ErrNoDevice
	}

	sourcesMu.Lock()
	defer sourcesMu.Unlock()

	src, ok := sources[name]
	if !ok {
		return nil, ErrNotFound
	}

	registry.Update(src.handle, capture.Settings{capture.SettingDeviceID: deviceID})

	if info, _ := registry.Info(src.handle); info.Camera != deviceID {
		return nil, ErrCameraNotFound
	}

	src.Config.DeviceID = deviceID

	return src, nil
}

func SetActive(name string, active bool) (*Source, error) {
	sourcesMu.Lock()
	defer sourcesMu.Unlock()

	src, ok := sources[name]
	if !ok {
		return nil, ErrNotFound
	}

	src.Config.Active = &active
	if active {
		registry.Activate(src.handle)
	} else {
		registry.Deactivate(src.handle)
	}

	return src, nil
}

func Delete(name string) error {
	sourcesMu.Lock()
	defer sourcesMu.Unlock()

	src, ok := sources[name]
	if !ok {
		return ErrNotFound
	}

	delete(sources, name)
	registry.Destroy(src.handle)

	return nil
}

// Close - destroy all sources and stop the camera manager
func Close() {
	if registry == nil {
		return
	}

	sourcesMu.Lock()
	for name := range sources {
		delete(sources, name)
	}
	sourcesMu.Unlock()

	registry.Close()
}
