package y4m

import (
	"errors"
	"fmt"
	"io"
)

var ErrFrameSize = errors.New("y4m: short frame")

// Writer - YUV4MPEG2 stream from packed 4:2:2 frames, output colorspace is planar 422
type Writer struct {
	wr      io.Writer
	packed  Packed
	width   int
	height  int
	stride  int
	fps     int
	buf     []byte
	started bool
}

func NewWriter(wr io.Writer, packed Packed, width, height, stride, fps int) *Writer {
	if stride == 0 {
		stride = width * 2
	}
	return &Writer{
		wr:     wr,
		packed: packed,
		width:  width,
		height: height,
		stride: stride,
		fps:    fps,
		buf:    make([]byte, len(frameHdr)+PlanarSize(width, height)),
	}
}

func (w *Writer) Header() string {
	if w.fps > 0 {
		return fmt.Sprintf("%sW%d H%d F%d:1 Ip A1:1 C422\n", magic, w.width, w.height, w.fps)
	}
	return fmt.Sprintf("%sW%d H%d Ip A1:1 C422\n", magic, w.width, w.height)
}

// WriteFrame - header goes before the first frame
func (w *Writer) WriteFrame(frame []byte) error {
	if len(frame) < w.stride*(w.height-1)+w.width*2 {
		return ErrFrameSize
	}

	if !w.started {
		if _, err := io.WriteString(w.wr, w.Header()); err != nil {
			return err
		}
		w.started = true
	}

	copy(w.buf, frameHdr)
	w.packed.ToPlanar(w.buf[len(frameHdr):], frame, w.width, w.height, w.stride)

	_, err := w.wr.Write(w.buf)
	return err
}
