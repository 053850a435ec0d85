package y4m

// https://manned.org/yuv4mpeg.5
const magic = "YUV4MPEG2 "

const frameHdr = "FRAME\n"
