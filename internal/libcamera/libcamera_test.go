package libcamera

import (
	"bufio"
	"context"
	"encoding/json"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/camsrc/camsrc/internal/api"
	"github.com/camsrc/camsrc/internal/app"
	"github.com/camsrc/camsrc/pkg/capture"
	"github.com/camsrc/camsrc/pkg/libcamera/virtual"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) {
	log = zerolog.Nop()

	opts := capture.DefaultOptions()
	opts.Width = 320
	opts.Height = 240

	start(virtual.NewManager(
		virtual.Config{ID: "cam0", Model: "Desk Camera", FPS: 100},
		virtual.Config{ID: "cam1", FPS: 100},
	), opts)

	t.Cleanup(Close)
}

func waitFrame(t *testing.T, src *Source) *Picture {
	require.Eventually(t, func() bool {
		return src.Hub().Latest() != nil
	}, 5*time.Second, 5*time.Millisecond)
	return src.Hub().Latest()
}

func TestHub(t *testing.T) {
	hub := NewHub()

	data := []byte{1, 2, 3, 4}
	frame := &capture.Frame{Width: 2, Height: 1, Format: capture.VideoFormatYUY2}
	frame.Data[0] = data
	frame.Linesize[0] = 4

	sub := hub.Subscribe()
	require.Equal(t, 1, hub.Subscribers())

	hub.OutputVideo(frame)
	data[0] = 9
	hub.OutputVideo(frame)
	hub.OutputVideo(frame)

	require.Equal(t, []byte{9, 2, 3, 4}, hub.Latest().Data)

	pic := <-sub.C()
	require.Equal(t, uint64(3), pic.Sequence)
	require.Equal(t, uint64(2), sub.Dropped())

	hub.Unsubscribe(sub)
	require.Equal(t, 0, hub.Subscribers())

	hub.OutputVideo(frame)
	require.Len(t, sub.C(), 0)
	require.Equal(t, uint64(4), hub.Latest().Sequence)
}

func TestParseFormats(t *testing.T) {
	formats := ParseFormats([]string{"uyvy", "BGRA", "NV12"})
	require.Len(t, formats, 2)
	require.Equal(t, capture.VideoFormatUYVY, formats[0].Video)
	require.Equal(t, capture.VideoFormatBGRA, formats[1].Video)

	require.Nil(t, ParseFormats(nil))
}

func TestSources(t *testing.T) {
	setup(t)

	src, err := New("desk", SourceConfig{DeviceID: "cam0"})
	require.Nil(t, err)

	_, err = New("desk", SourceConfig{})
	require.ErrorIs(t, err, ErrExists)

	pic := waitFrame(t, src)
	require.Equal(t, capture.VideoFormatYUY2, pic.Format)
	require.Equal(t, uint32(320), pic.Width)
	require.Equal(t, uint32(640), pic.Linesize)
	require.Len(t, pic.Data, 640*240)

	info := src.Info()
	require.Equal(t, capture.StateRunning, info.State)
	require.Equal(t, "cam0", info.Camera)

	_, err = SetActive("desk", false)
	require.Nil(t, err)
	require.Equal(t, capture.StateIdle, src.Info().State)
	require.False(t, src.Info().Activated)

	// inactive source keeps the intent after moving to another camera
	_, err = Patch("desk", "cam1")
	require.Nil(t, err)
	info = src.Info()
	require.Equal(t, "cam1", info.Camera)
	require.Equal(t, capture.StateIdle, info.State)

	_, err = SetActive("desk", true)
	require.Nil(t, err)
	require.Equal(t, capture.StateRunning, src.Info().State)

	// unknown camera leaves the source and its config untouched
	_, err = Patch("desk", "cam9")
	require.ErrorIs(t, err, ErrCameraNotFound)
	require.Equal(t, "cam1", src.Config.DeviceID)
	info = src.Info()
	require.Equal(t, "cam1", info.Camera)
	require.Equal(t, capture.StateRunning, info.State)

	_, err = Patch("desk", "")
	require.ErrorIs(t, err, ErrNoDevice)
	require.Equal(t, "cam1", src.Config.DeviceID)

	inactive := false
	idle, err := New("idle", SourceConfig{DeviceID: "cam0", Active: &inactive})
	require.Nil(t, err)
	require.Equal(t, capture.StateIdle, idle.Info().State)

	require.Nil(t, Delete("desk"))
	require.ErrorIs(t, Delete("desk"), ErrNotFound)
	require.Nil(t, Get("desk"))

	_, err = Patch("desk", "cam0")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAPILibcamera(t *testing.T) {
	setup(t)

	w := httptest.NewRecorder()
	apiLibcamera(w, httptest.NewRequest("GET", "/api/libcamera", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Sources []*api.Source `json:"sources"`
	}
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Sources, 2)
	require.Equal(t, "cam0", res.Sources[0].ID)
	require.Equal(t, "Desk Camera", res.Sources[0].Name)
	require.Equal(t, "Virtual Camera", res.Sources[1].Name)
}

func TestAPISources(t *testing.T) {
	setup(t)

	app.ConfigPath = filepath.Join(t.TempDir(), "camsrc.yaml")
	t.Cleanup(func() { app.ConfigPath = "" })

	serve := func(method, url string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		apiSources(w, httptest.NewRequest(method, url, nil))
		return w
	}

	w := serve("POST", "/api/sources?src=desk&device_id=cam0")
	require.Equal(t, http.StatusOK, w.Code)

	w = serve("POST", "/api/sources?src=desk&device_id=cam1")
	require.Equal(t, http.StatusConflict, w.Code)

	b, err := os.ReadFile(app.ConfigPath)
	require.Nil(t, err)
	require.Equal(t, "sources:\n  desk:\n    device_id: cam0\n", string(b))

	w = serve("PATCH", "/api/sources?src=desk&device_id=cam1")
	require.Equal(t, http.StatusOK, w.Code)

	w = serve("PATCH", "/api/sources?src=desk&device_id=cam9")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = serve("PATCH", "/api/sources?src=desk")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = serve("PATCH", "/api/sources?src=nope&device_id=cam0")
	require.Equal(t, http.StatusNotFound, w.Code)

	b, err = os.ReadFile(app.ConfigPath)
	require.Nil(t, err)
	require.Equal(t, "sources:\n  desk:\n    device_id: cam1\n", string(b))

	w = serve("GET", "/api/sources")
	require.Equal(t, http.StatusOK, w.Code)

	var items []struct {
		Name      string `json:"name"`
		ID        uint64 `json:"id"`
		DeviceID  string `json:"device_id"`
		State     string `json:"state"`
		Activated bool   `json:"activated"`
	}
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	require.Equal(t, "desk", items[0].Name)
	require.Equal(t, "cam1", items[0].DeviceID)
	require.Equal(t, "running", items[0].State)
	require.True(t, items[0].Activated)

	w = httptest.NewRecorder()
	apiActivate(w, httptest.NewRequest("POST", "/api/sources/deactivate?src=desk", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, capture.StateIdle, Get("desk").Info().State)

	w = httptest.NewRecorder()
	apiActivate(w, httptest.NewRequest("POST", "/api/sources/activate?src=nope", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	app.ConfigReadOnly = true
	w = serve("DELETE", "/api/sources?src=desk")
	require.Equal(t, http.StatusForbidden, w.Code)
	app.ConfigReadOnly = false

	w = serve("DELETE", "/api/sources?src=desk")
	require.Equal(t, http.StatusOK, w.Code)

	w = serve("GET", "/api/sources?src=desk")
	require.Equal(t, http.StatusNotFound, w.Code)

	b, err = os.ReadFile(app.ConfigPath)
	require.Nil(t, err)
	require.NotContains(t, string(b), "desk")
}

func TestAPIFrame(t *testing.T) {
	setup(t)

	w := httptest.NewRecorder()
	apiFrame(w, httptest.NewRequest("GET", "/api/frame.raw?src=desk", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	src, err := New("desk", SourceConfig{DeviceID: "cam0"})
	require.Nil(t, err)
	waitFrame(t, src)

	w = httptest.NewRecorder()
	apiFrame(w, httptest.NewRequest("GET", "/api/frame.raw?src=desk", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "YUY2", w.Header().Get("X-Format"))
	require.Equal(t, "320", w.Header().Get("X-Width"))
	require.Equal(t, "240", w.Header().Get("X-Height"))
	require.Equal(t, "640", w.Header().Get("X-Linesize"))
	require.Equal(t, 640*240, w.Body.Len())
}

func TestAPIStreamY4M(t *testing.T) {
	setup(t)

	_, err := New("desk", SourceConfig{DeviceID: "cam0"})
	require.Nil(t, err)

	server := httptest.NewServer(http.HandlerFunc(apiStreamY4M))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", server.URL+"/api/stream.y4m?src=desk", nil)
	require.Nil(t, err)

	res, err := http.DefaultClient.Do(req)
	require.Nil(t, err)
	defer res.Body.Close()

	require.Equal(t, "video/x-yuv4mpeg", res.Header.Get("Content-Type"))

	rd := bufio.NewReader(res.Body)

	line, err := rd.ReadString('\n')
	require.Nil(t, err)
	require.Equal(t, "YUV4MPEG2 W320 H240 Ip A1:1 C422\n", line)

	for i := 0; i < 2; i++ {
		line, err = rd.ReadString('\n')
		require.Nil(t, err)
		require.Equal(t, "FRAME\n", line)

		_, err = io.ReadFull(rd, make([]byte, 320*240*2))
		require.Nil(t, err)
	}

	w := httptest.NewRecorder()
	apiStreamY4M(w, httptest.NewRequest("GET", "/api/stream.y4m?src=nope", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIFrameJPEG(t *testing.T) {
	setup(t)

	src, err := New("desk", SourceConfig{DeviceID: "cam0"})
	require.Nil(t, err)
	waitFrame(t, src)

	w := httptest.NewRecorder()
	apiFrameJPEG(w, httptest.NewRequest("GET", "/api/frame.jpeg?src=desk", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))

	img, err := jpeg.Decode(w.Body)
	require.Nil(t, err)
	require.Equal(t, image.Rect(0, 0, 320, 240), img.Bounds())
}
