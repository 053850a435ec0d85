package mjpeg

import (
	"bytes"
	"image"
	"image/jpeg"
)

const DefaultQuality = 85

func Encode(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 {
		quality = DefaultQuality
	}

	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
