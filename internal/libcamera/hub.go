package libcamera

import (
	"sync"
	"sync/atomic"

	"github.com/camsrc/camsrc/pkg/capture"
)

// Picture - own copy of a delivered frame, shared read-only between subscribers
type Picture struct {
	Data      []byte
	Format    capture.VideoFormat
	Width     uint32
	Height    uint32
	Linesize  uint32
	Timestamp uint64
	Sequence  uint64
}

// Hub - capture.Sink that keeps the latest frame and fans it out to subscribers
type Hub struct {
	latest   atomic.Pointer[Picture]
	sequence uint64

	subs map[*Subscriber]struct{}
	mu   sync.Mutex
}

func NewHub() *Hub {
	return &Hub{subs: map[*Subscriber]struct{}{}}
}

// OutputVideo - called from the camera goroutine, never blocks on subscribers
func (h *Hub) OutputVideo(frame *capture.Frame) {
	h.sequence++

	pic := &Picture{
		Data:      append([]byte(nil), frame.Data[0]...),
		Format:    frame.Format,
		Width:     frame.Width,
		Height:    frame.Height,
		Linesize:  frame.Linesize[0],
		Timestamp: frame.Timestamp,
		Sequence:  h.sequence,
	}
	h.latest.Store(pic)

	h.mu.Lock()
	for sub := range h.subs {
		sub.push(pic)
	}
	h.mu.Unlock()
}

func (h *Hub) Latest() *Picture {
	return h.latest.Load()
}

func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{ch: make(chan *Picture, 1)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Subscriber - single slot mailbox, a slow reader only sees the newest frame
type Subscriber struct {
	ch      chan *Picture
	dropped atomic.Uint64
}

func (s *Subscriber) C() <-chan *Picture {
	return s.ch
}

func (s *Subscriber) Dropped() uint64 {
	return s.dropped.Load()
}

// push - must be called from one goroutine
func (s *Subscriber) push(pic *Picture) {
	for {
		select {
		case s.ch <- pic:
			return
		default:
		}

		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}
