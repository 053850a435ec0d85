package y4m

import "image"

// Packed - byte positions of Y0, U, Y1, V inside one 4 byte macropixel of packed 4:2:2
type Packed [4]byte

var (
	YUYV = Packed{0, 1, 2, 3}
	YVYU = Packed{0, 3, 2, 1}
	UYVY = Packed{1, 0, 3, 2}
	VYUY = Packed{1, 2, 3, 0}
)

// PlanarSize - bytes of one planar 4:2:2 frame
func PlanarSize(width, height int) int {
	return width * height * 2
}

// ToPlanar convert packed 4:2:2 with line stride to planar Y, U, V.
// Width must be even, dst must have PlanarSize bytes.
func (p Packed) ToPlanar(dst, src []byte, width, height, stride int) {
	iy := 0
	iu := width * height
	iv := iu + iu/2

	for y := 0; y < height; y++ {
		line := src[y*stride : y*stride+width*2]
		for i := 0; i < len(line); i += 4 {
			dst[iy] = line[i+int(p[0])]
			dst[iy+1] = line[i+int(p[2])]
			iy += 2
			dst[iu] = line[i+int(p[1])]
			iu++
			dst[iv] = line[i+int(p[3])]
			iv++
		}
	}
}

// Image - planar copy of the packed frame
func (p Packed) Image(src []byte, width, height, stride int) *image.YCbCr {
	buf := make([]byte, PlanarSize(width, height))
	p.ToPlanar(buf, src, width, height, stride)

	i1 := width * height
	i2 := i1 + i1/2

	return &image.YCbCr{
		Y:              buf[:i1],
		Cb:             buf[i1:i2],
		Cr:             buf[i2:],
		YStride:        width,
		CStride:        width / 2,
		SubsampleRatio: image.YCbCrSubsampleRatio422,
		Rect:           image.Rect(0, 0, width, height),
	}
}
