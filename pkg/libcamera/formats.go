package libcamera

import "encoding/binary"

// PixelFormat - DRM fourcc, the same values libcamera uses
type PixelFormat uint32

func FourCC(a, b, c, d byte) PixelFormat {
	return PixelFormat(a) | PixelFormat(b)<<8 | PixelFormat(c)<<16 | PixelFormat(d)<<24
}

const (
	YUYV PixelFormat = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24
	YVYU PixelFormat = 'Y' | 'V'<<8 | 'Y'<<16 | 'U'<<24
	UYVY PixelFormat = 'U' | 'Y'<<8 | 'V'<<16 | 'Y'<<24
	VYUY PixelFormat = 'V' | 'Y'<<8 | 'U'<<16 | 'Y'<<24

	RGBA8888 PixelFormat = 'R' | 'A'<<8 | '2'<<16 | '4'<<24
	BGRA8888 PixelFormat = 'B' | 'A'<<8 | '2'<<16 | '4'<<24
	BGRX8888 PixelFormat = 'B' | 'X'<<8 | '2'<<16 | '4'<<24
	BGR888   PixelFormat = 'B' | 'G'<<8 | '2'<<16 | '4'<<24
	RGB888   PixelFormat = 'R' | 'G'<<8 | '2'<<16 | '4'<<24

	NV12  PixelFormat = 'N' | 'V'<<8 | '1'<<16 | '2'<<24
	MJPEG PixelFormat = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24
)

var names = map[PixelFormat]string{
	RGBA8888: "RGBA8888",
	BGRA8888: "BGRA8888",
	BGRX8888: "BGRX8888",
	BGR888:   "BGR888",
	RGB888:   "RGB888",
}

func (f PixelFormat) String() string {
	if f == 0 {
		return "<INVALID>"
	}
	if name, ok := names[f]; ok {
		return name
	}
	return string(binary.LittleEndian.AppendUint32(nil, uint32(f)))
}

// BytesPerPixel - for packed single plane formats, 0 for others
func (f PixelFormat) BytesPerPixel() uint32 {
	switch f {
	case YUYV, YVYU, UYVY, VYUY:
		return 2
	case BGR888, RGB888:
		return 3
	case RGBA8888, BGRA8888, BGRX8888:
		return 4
	}
	return 0
}

func ParsePixelFormat(name string) PixelFormat {
	for f, s := range names {
		if s == name {
			return f
		}
	}
	if len(name) == 4 {
		return FourCC(name[0], name[1], name[2], name[3])
	}
	return 0
}
