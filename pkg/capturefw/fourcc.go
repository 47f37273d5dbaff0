package capturefw

// FourCC is a little-endian four character code.
type FourCC uint32

// Native media subtypes.
const (
	SubtypeComponentVideoUnsigned = FourCC('y' | 'u'<<8 | 'v'<<16 | 's'<<24) // 'yuvs'
	SubtypeYUV420v                = FourCC('4' | '2'<<8 | '0'<<16 | 'v'<<24) // '420v'
	SubtypeYUYV                   = FourCC('Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24) // V4L2 'YUYV'
	SubtypeYU12                   = FourCC('Y' | 'U'<<8 | '1'<<16 | '2'<<24) // V4L2 'YU12'
	SubtypeNV12                   = FourCC('N' | 'V'<<8 | '1'<<16 | '2'<<24) // V4L2 'NV12'
	SubtypeMJPEG                  = FourCC('M' | 'J'<<8 | 'P'<<16 | 'G'<<24) // V4L2 'MJPG'
)

// MakeFourCC builds a code from the first four bytes of s.
func MakeFourCC(s string) FourCC {
	var b [4]byte
	copy(b[:], s)
	return FourCC(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

func (f FourCC) String() string {
	b := []byte{
		byte(f & 0xFF),
		byte((f >> 8) & 0xFF),
		byte((f >> 16) & 0xFF),
		byte((f >> 24) & 0xFF),
	}
	return string(b)
}
