package libcamera

import "errors"

type RequestStatus byte

const (
	RequestPending RequestStatus = iota
	RequestComplete
	RequestCancelled
)

func (s RequestStatus) String() string {
	switch s {
	case RequestPending:
		return "pending"
	case RequestComplete:
		return "complete"
	case RequestCancelled:
		return "cancelled"
	}
	return "unknown"
}

type ReuseFlag byte

const (
	ReuseDefault ReuseFlag = 0
	ReuseBuffers ReuseFlag = 1 << 0
)

// Request - one unit of work for the camera. Not safe for concurrent use:
// the camera owns it between QueueRequest and the completion handler call.
type Request struct {
	cookie  uint64
	status  RequestStatus
	buffers map[*Stream]*FrameBuffer
}

func NewRequest(cookie uint64) *Request {
	return &Request{
		cookie:  cookie,
		buffers: map[*Stream]*FrameBuffer{},
	}
}

func (r *Request) Cookie() uint64 {
	return r.cookie
}

func (r *Request) Status() RequestStatus {
	return r.status
}

func (r *Request) AddBuffer(stream *Stream, buffer *FrameBuffer) error {
	if stream == nil || buffer == nil {
		return ErrInvalid
	}
	if _, ok := r.buffers[stream]; ok {
		return errors.New("libcamera: stream already has a buffer")
	}
	if buffer.request != nil && buffer.request != r {
		return errors.New("libcamera: buffer already bound to another request")
	}

	buffer.request = r
	r.buffers[stream] = buffer
	return nil
}

func (r *Request) Buffers() map[*Stream]*FrameBuffer {
	return r.buffers
}

func (r *Request) FindBuffer(stream *Stream) *FrameBuffer {
	return r.buffers[stream]
}

// Reuse - reset request for queueing again, keeps buffers with ReuseBuffers flag
func (r *Request) Reuse(flags ReuseFlag) {
	r.status = RequestPending

	if flags&ReuseBuffers != 0 {
		return
	}

	for stream, buffer := range r.buffers {
		buffer.request = nil
		delete(r.buffers, stream)
	}
}

// Complete used by camera implementations before calling the completion handler
func (r *Request) Complete(status RequestStatus) {
	r.status = status
}
