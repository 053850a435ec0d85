package device

const (
	V4L2_PIX_FMT_YUYV   = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24
	V4L2_PIX_FMT_YVYU   = 'Y' | 'V'<<8 | 'Y'<<16 | 'U'<<24
	V4L2_PIX_FMT_UYVY   = 'U' | 'Y'<<8 | 'V'<<16 | 'Y'<<24
	V4L2_PIX_FMT_VYUY   = 'V' | 'Y'<<8 | 'U'<<16 | 'Y'<<24
	V4L2_PIX_FMT_RGB24  = 'R' | 'G'<<8 | 'B'<<16 | '3'<<24
	V4L2_PIX_FMT_BGR24  = 'B' | 'G'<<8 | 'R'<<16 | '3'<<24
	V4L2_PIX_FMT_XRGB32 = 'B' | 'X'<<8 | '2'<<16 | '4'<<24
	V4L2_PIX_FMT_ARGB32 = 'B' | 'A'<<8 | '2'<<16 | '4'<<24
	V4L2_PIX_FMT_BGRA32 = 'R' | 'A'<<8 | '2'<<16 | '4'<<24
	V4L2_PIX_FMT_NV12   = 'N' | 'V'<<8 | '1'<<16 | '2'<<24
	V4L2_PIX_FMT_MJPEG  = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24
)

// FormatName - fourcc as text, like RGB3 or YUYV
func FormatName(fourCC uint32) string {
	return string([]byte{byte(fourCC), byte(fourCC >> 8), byte(fourCC >> 16), byte(fourCC >> 24)})
}
