package capture

import (
	"github.com/camsrc/camsrc/pkg/libcamera"
)

// requestComplete - called from the camera goroutine
func (s *Session) requestComplete(cam libcamera.Camera, req *libcamera.Request) {
	s.inflight.Add(-1)

	// stop cancels everything in flight, nothing to deliver or requeue
	if req.Status() == libcamera.RequestCancelled {
		s.cancelled.Add(1)
		return
	}

	s.processRequest(cam, req)
}

func (s *Session) processRequest(cam libcamera.Camera, req *libcamera.Request) {
	var buffer *libcamera.FrameBuffer
	for _, b := range req.Buffers() {
		buffer = b
		break
	}
	if buffer == nil {
		return
	}

	layout := s.layout

	frame := &Frame{
		Width:         layout.Width,
		Height:        layout.Height,
		Format:        layout.Format,
		Timestamp:     buffer.Metadata().Timestamp,
		FullRange:     s.opts.FullRange,
		ColorMatrix:   s.opts.ColorMatrix,
		ColorRangeMin: s.opts.ColorRangeMin,
		ColorRangeMax: s.opts.ColorRangeMax,
	}
	frame.Linesize[0] = layout.Linesize

	// lock only for lookup, delivery may block on the host side
	if data, ok := s.buffers.Get(buffer); ok {
		if size := layout.Size(); size > 0 && size <= len(data) {
			data = data[:size]
		}
		frame.Data[0] = data

		s.sink.OutputVideo(frame)
		s.delivered.Add(1)
	} else {
		s.log.Debug().Uint64("cookie", buffer.Cookie()).Msg("[capture] unmapped buffer")
	}

	req.Reuse(libcamera.ReuseBuffers)
	s.queueRequest(cam, req)
}

func (s *Session) queueRequest(cam libcamera.Camera, req *libcamera.Request) {
	s.inflight.Add(1)

	if err := cam.QueueRequest(req); err != nil {
		s.inflight.Add(-1)
		s.requeueFailed.Add(1)
		// normal while camera is stopping
		s.log.Debug().Err(err).Uint64("cookie", req.Cookie()).Msg("[capture] queue request")
	}
}
