package mjpeg

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 16, 8))
	for i := range img.Pix {
		img.Pix[i] = 128
	}

	b, err := Encode(img, 0)
	require.Nil(t, err)
	require.Equal(t, []byte{0xFF, 0xD8}, b[:2])

	dec, err := jpeg.Decode(bytes.NewReader(b))
	require.Nil(t, err)
	require.Equal(t, img.Bounds(), dec.Bounds())

	y := color.GrayModel.Convert(dec.At(3, 3)).(color.Gray).Y
	require.InDelta(t, 128, int(y), 2)
}

func TestWriter(t *testing.T) {
	w := httptest.NewRecorder()

	wr := NewWriter(w)
	n, err := wr.Write([]byte("abc"))
	require.Nil(t, err)
	require.Equal(t, 3, n)

	_, _ = wr.Write([]byte("de"))

	require.Equal(t, "multipart/x-mixed-replace; boundary=frame", w.Header().Get("Content-Type"))
	require.Equal(t,
		"--frame\r\nContent-Type: image/jpeg\r\nContent-Length: 3\r\n\r\nabc\r\n"+
			"--frame\r\nContent-Type: image/jpeg\r\nContent-Length: 2\r\n\r\nde\r\n",
		w.Body.String(),
	)
	require.True(t, w.Flushed)
}
