//go:build linux && (amd64 || arm64)

package device

import (
	"unsafe"

	"github.com/camsrc/camsrc/pkg/ioctl"
)

// https://github.com/torvalds/linux/blob/master/include/uapi/linux/videodev2.h

var (
	VIDIOC_QUERYCAP  = ioctl.IOR('V', 0, uint16(unsafe.Sizeof(v4l2_capability{})))
	VIDIOC_ENUM_FMT  = ioctl.IORW('V', 2, uint16(unsafe.Sizeof(v4l2_fmtdesc{})))
	VIDIOC_S_FMT     = ioctl.IORW('V', 5, uint16(unsafe.Sizeof(v4l2_format{})))
	VIDIOC_REQBUFS   = ioctl.IORW('V', 8, uint16(unsafe.Sizeof(v4l2_requestbuffers{})))
	VIDIOC_QUERYBUF  = ioctl.IORW('V', 9, uint16(unsafe.Sizeof(v4l2_buffer{})))
	VIDIOC_QBUF      = ioctl.IORW('V', 15, uint16(unsafe.Sizeof(v4l2_buffer{})))
	VIDIOC_EXPBUF    = ioctl.IORW('V', 16, uint16(unsafe.Sizeof(v4l2_exportbuffer{})))
	VIDIOC_DQBUF     = ioctl.IORW('V', 17, uint16(unsafe.Sizeof(v4l2_buffer{})))
	VIDIOC_STREAMON  = ioctl.IOW('V', 18, 4)
	VIDIOC_STREAMOFF = ioctl.IOW('V', 19, 4)
	VIDIOC_S_PARM    = ioctl.IORW('V', 22, uint16(unsafe.Sizeof(v4l2_streamparm{})))
	VIDIOC_TRY_FMT   = ioctl.IORW('V', 64, uint16(unsafe.Sizeof(v4l2_format{})))

	VIDIOC_ENUM_FRAMESIZES = ioctl.IORW('V', 74, uint16(unsafe.Sizeof(v4l2_frmsizeenum{})))
)

const (
	V4L2_BUF_TYPE_VIDEO_CAPTURE = 1
	V4L2_CAP_VIDEO_CAPTURE      = 0x00000001
	V4L2_CAP_STREAMING          = 0x04000000
	V4L2_CAP_DEVICE_CAPS        = 0x80000000
	V4L2_COLORSPACE_DEFAULT     = 0
	V4L2_FIELD_NONE             = 1
	V4L2_FRMSIZE_TYPE_DISCRETE  = 1
	V4L2_MEMORY_MMAP            = 1
	V4L2_BUF_FLAG_ERROR         = 0x00000040
)

type v4l2_capability struct { // size 104
	driver       [16]byte  // offset 0
	card         [32]byte  // offset 16
	bus_info     [32]byte  // offset 48
	version      uint32    // offset 80
	capabilities uint32    // offset 84
	device_caps  uint32    // offset 88
	reserved     [3]uint32 // offset 92
}

type v4l2_format struct { // size 208
	typ uint32          // offset 0
	_   uint32          // union is 8 byte aligned
	pix v4l2_pix_format // offset 8
	_   [152]byte       // rest of union
}

type v4l2_pix_format struct { // size 48
	width        uint32 // offset 0
	height       uint32 // offset 4
	pixelformat  uint32 // offset 8
	field        uint32 // offset 12
	bytesperline uint32 // offset 16
	sizeimage    uint32 // offset 20
	colorspace   uint32 // offset 24
	priv         uint32 // offset 28
	flags        uint32 // offset 32
	ycbcr_enc    uint32 // offset 36
	quantization uint32 // offset 40
	xfer_func    uint32 // offset 44
}

type v4l2_streamparm struct { // size 204
	typ     uint32           // offset 0
	capture v4l2_captureparm // offset 4
	_       [160]byte        // rest of union
}

type v4l2_captureparm struct { // size 40
	capability   uint32     // offset 0
	capturemode  uint32     // offset 4
	timeperframe v4l2_fract // offset 8
	extendedmode uint32     // offset 16
	readbuffers  uint32     // offset 20
	reserved     [4]uint32  // offset 24
}

type v4l2_fract struct { // size 8
	numerator   uint32
	denominator uint32
}

type v4l2_requestbuffers struct { // size 20
	count        uint32   // offset 0
	typ          uint32   // offset 4
	memory       uint32   // offset 8
	capabilities uint32   // offset 12
	flags        uint8    // offset 16
	reserved     [3]uint8 // offset 17
}

type v4l2_buffer struct { // size 88
	index      uint32        // offset 0
	typ        uint32        // offset 4
	bytesused  uint32        // offset 8
	flags      uint32        // offset 12
	field      uint32        // offset 16
	_          uint32        // align
	tv_sec     int64         // offset 24
	tv_usec    int64         // offset 32
	timecode   v4l2_timecode // offset 40
	sequence   uint32        // offset 56
	memory     uint32        // offset 60
	offset     uint64        // offset 64, union with userptr, planes and fd
	length     uint32        // offset 72
	reserved2  uint32        // offset 76
	request_fd int32         // offset 80
	_          uint32        // align
}

type v4l2_timecode struct { // size 16
	typ      uint32
	flags    uint32
	frames   uint8
	seconds  uint8
	minutes  uint8
	hours    uint8
	userbits [4]uint8
}

type v4l2_exportbuffer struct { // size 64
	typ      uint32     // offset 0
	index    uint32     // offset 4
	plane    uint32     // offset 8
	flags    uint32     // offset 12
	fd       int32      // offset 16
	reserved [11]uint32 // offset 20
}

type v4l2_fmtdesc struct { // size 64
	index       uint32    // offset 0
	typ         uint32    // offset 4
	flags       uint32    // offset 8
	description [32]byte  // offset 12
	pixelformat uint32    // offset 44
	mbus_code   uint32    // offset 48
	reserved    [3]uint32 // offset 52
}

type v4l2_frmsizeenum struct { // size 44
	index        uint32                // offset 0
	pixel_format uint32                // offset 4
	typ          uint32                // offset 8
	discrete     v4l2_frmsize_discrete // offset 12, union with stepwise
	_            [16]byte              // rest of union
	reserved     [2]uint32             // offset 36
}

type v4l2_frmsize_discrete struct { // size 8
	width  uint32
	height uint32
}
