package libcamera

import (
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/camsrc/camsrc/internal/api"
	"github.com/camsrc/camsrc/internal/app"
	"github.com/camsrc/camsrc/pkg/capture"
	"github.com/camsrc/camsrc/pkg/mjpeg"
	"github.com/camsrc/camsrc/pkg/y4m"
)

func apiLibcamera(w http.ResponseWriter, r *http.Request) {
	var items []*api.Source
	for _, prop := range registry.Enumerate() {
		items = append(items, &api.Source{
			ID:   prop.ID,
			Name: prop.Label,
			URL:  "device_id=" + prop.ID,
		})
	}
	api.ResponseSources(w, items)
}

type sourceInfo struct {
	Name string `json:"name"`
	capture.Info
	Subscribers int `json:"subscribers"`
}

func newSourceInfo(src *Source) *sourceInfo {
	return &sourceInfo{Name: src.Name, Info: src.Info(), Subscribers: src.hub.Subscribers()}
}

func apiSources(w http.ResponseWriter, r *http.Request) {
	if app.ConfigReadOnly {
		switch r.Method {
		case "POST", "PATCH", "DELETE":
			http.Error(w, "config is read-only", http.StatusForbidden)
			return
		}
	}

	query := r.URL.Query()
	name := query.Get("src")

	// without source - return all sources list
	if name == "" {
		if r.Method != "GET" {
			http.Error(w, "", http.StatusBadRequest)
			return
		}

		sourcesMu.Lock()
		items := make([]*sourceInfo, 0, len(sources))
		for _, src := range sources {
			items = append(items, newSourceInfo(src))
		}
		sourcesMu.Unlock()

		sort.Slice(items, func(i, j int) bool {
			return items[i].Handle < items[j].Handle
		})

		api.ResponseJSON(w, items)
		return
	}

	switch r.Method {
	case "GET":
		src := Get(name)
		if src == nil {
			http.Error(w, api.SourceNotFound, http.StatusNotFound)
			return
		}
		api.ResponsePrettyJSON(w, newSourceInfo(src))

	case "POST":
		cfg := SourceConfig{DeviceID: query.Get("device_id")}
		if query.Has("active") {
			active := query.Get("active") != "false" && query.Get("active") != "0"
			cfg.Active = &active
		}

		src, err := New(name, cfg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}

		saveConfig(src)
		api.ResponseJSON(w, newSourceInfo(src))

	case "PATCH":
		src, err := Patch(name, query.Get("device_id"))
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		saveConfig(src)
		api.ResponseJSON(w, newSourceInfo(src))

	case "DELETE":
		if err := Delete(name); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		if err := app.PatchConfig([]string{"sources", name}, nil); err != nil {
			log.Debug().Err(err).Msg("[libcamera] save config")
		}

	default:
		http.Error(w, "", http.StatusMethodNotAllowed)
	}
}

func apiActivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	active := strings.HasSuffix(r.URL.Path, "/activate")

	src, err := SetActive(r.URL.Query().Get("src"), active)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	if !app.ConfigReadOnly {
		saveConfig(src)
	}
	api.ResponseJSON(w, newSourceInfo(src))
}

func saveConfig(src *Source) {
	if err := app.PatchConfig([]string{"sources", src.Name}, src.Config); err != nil {
		log.Debug().Err(err).Msg("[libcamera] save config")
	}
}

// apiFrame - latest frame as is, layout goes in headers
func apiFrame(w http.ResponseWriter, r *http.Request) {
	src := Get(r.URL.Query().Get("src"))
	if src == nil {
		http.Error(w, api.SourceNotFound, http.StatusNotFound)
		return
	}

	pic := src.hub.Latest()
	if pic == nil {
		http.Error(w, "no frame", http.StatusNotFound)
		return
	}

	h := w.Header()
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Format", pic.Format.String())
	h.Set("X-Width", strconv.FormatUint(uint64(pic.Width), 10))
	h.Set("X-Height", strconv.FormatUint(uint64(pic.Height), 10))
	h.Set("X-Linesize", strconv.FormatUint(uint64(pic.Linesize), 10))
	h.Set("X-Timestamp", strconv.FormatUint(pic.Timestamp, 10))

	api.Response(w, pic.Data, "application/octet-stream")
}

var errNotPacked = errors.New("layout is not packed YUV")

func packing(format capture.VideoFormat) (y4m.Packed, error) {
	switch format {
	case capture.VideoFormatYUY2:
		return y4m.YUYV, nil
	case capture.VideoFormatYVYU:
		return y4m.YVYU, nil
	case capture.VideoFormatUYVY:
		return y4m.UYVY, nil
	}
	return y4m.Packed{}, errNotPacked
}

func apiStreamY4M(w http.ResponseWriter, r *http.Request) {
	src := Get(r.URL.Query().Get("src"))
	if src == nil {
		http.Error(w, api.SourceNotFound, http.StatusNotFound)
		return
	}

	sub := src.hub.Subscribe()
	defer src.hub.Unsubscribe(sub)

	h := w.Header()
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "close")
	h.Set("Pragma", "no-cache")

	flusher, _ := w.(http.Flusher)

	var wr *y4m.Writer
	var first *Picture

	for {
		var pic *Picture
		select {
		case pic = <-sub.C():
		case <-r.Context().Done():
			return
		}

		if wr == nil {
			packed, err := packing(pic.Format)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
				return
			}

			h.Set("Content-Type", "video/x-yuv4mpeg")
			wr = y4m.NewWriter(w, packed, int(pic.Width), int(pic.Height), int(pic.Linesize), 0)
			first = pic
		} else if pic.Format != first.Format || pic.Width != first.Width || pic.Height != first.Height {
			// y4m can't change layout in the middle of the stream
			return
		}

		if err := wr.WriteFrame(pic.Data); err != nil {
			log.Trace().Err(err).Msg("[libcamera] y4m")
			return
		}

		if flusher != nil {
			flusher.Flush()
		}
	}
}

func encodeJPEG(pic *Picture) ([]byte, error) {
	packed, err := packing(pic.Format)
	if err != nil {
		return nil, err
	}
	img := packed.Image(pic.Data, int(pic.Width), int(pic.Height), int(pic.Linesize))
	return mjpeg.Encode(img, 0)
}

func apiFrameJPEG(w http.ResponseWriter, r *http.Request) {
	src := Get(r.URL.Query().Get("src"))
	if src == nil {
		http.Error(w, api.SourceNotFound, http.StatusNotFound)
		return
	}

	pic := src.hub.Latest()
	if pic == nil {
		http.Error(w, "no frame", http.StatusNotFound)
		return
	}

	b, err := encodeJPEG(pic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	api.Response(w, b, "image/jpeg")
}

func apiStreamMJPEG(w http.ResponseWriter, r *http.Request) {
	src := Get(r.URL.Query().Get("src"))
	if src == nil {
		http.Error(w, api.SourceNotFound, http.StatusNotFound)
		return
	}

	sub := src.hub.Subscribe()
	defer src.hub.Unsubscribe(sub)

	h := w.Header()
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "close")
	h.Set("Pragma", "no-cache")

	var wr io.Writer

	for {
		var pic *Picture
		select {
		case pic = <-sub.C():
		case <-r.Context().Done():
			return
		}

		b, err := encodeJPEG(pic)
		if err != nil {
			if wr == nil {
				http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
			}
			return
		}

		if wr == nil {
			wr = mjpeg.NewWriter(w)
		}

		if _, err = wr.Write(b); err != nil {
			log.Trace().Err(err).Msg("[libcamera] mjpeg")
			return
		}
	}
}
