package libcamera

import (
	"errors"

	"github.com/camsrc/camsrc/internal/api"
	"github.com/camsrc/camsrc/internal/api/ws"
)

type frameEvent struct {
	Source    string `json:"source"`
	Sequence  uint64 `json:"sequence"`
	Timestamp uint64 `json:"timestamp"`
	Format    string `json:"format"`
	Width     uint32 `json:"width"`
	Height    uint32 `json:"height"`
	Size      int    `json:"size"`
	Dropped   uint64 `json:"dropped"`
}

// handlerWS - value is the source name, every delivered frame becomes a "frame" message
func handlerWS(tr *ws.Transport, msg *ws.Message) error {
	name := msg.String()

	src := Get(name)
	if src == nil {
		return errors.New(api.SourceNotFound)
	}

	sub := src.hub.Subscribe()
	done := make(chan struct{})

	tr.OnClose(func() {
		src.hub.Unsubscribe(sub)
		close(done)
	})

	tr.Write(&ws.Message{Type: "frames", Value: name})

	go func() {
		for {
			select {
			case pic := <-sub.C():
				tr.Write(&ws.Message{Type: "frame", Value: &frameEvent{
					Source:    name,
					Sequence:  pic.Sequence,
					Timestamp: pic.Timestamp,
					Format:    pic.Format.String(),
					Width:     pic.Width,
					Height:    pic.Height,
					Size:      len(pic.Data),
					Dropped:   sub.Dropped(),
				}})
			case <-done:
				return
			}
		}
	}()

	return nil
}
