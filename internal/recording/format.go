package recording

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"skelrec/internal/skeleton"
)

// FieldsPerJoint is the number of values written for each joint:
// camera X, Y, Z followed by depth-space X, Y.
const FieldsPerJoint = 5

// Line ending modes accepted by NewWriter.
const (
	LineEndingPlatform = "platform"
	LineEndingLF       = "lf"
	LineEndingCRLF     = "crlf"
)

// Newline resolves a line ending mode to its byte sequence.
func Newline(mode string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", LineEndingPlatform:
		if runtime.GOOS == "windows" {
			return "\r\n", nil
		}
		return "\n", nil
	case LineEndingLF:
		return "\n", nil
	case LineEndingCRLF:
		return "\r\n", nil
	default:
		return "", fmt.Errorf("unknown line ending %q", mode)
	}
}

// AppendLine appends one playback line for a body to dst. Joints are
// written in enumeration order with a single space between every field
// and no trailing separator, then newline.
func AppendLine(dst []byte, joints *skeleton.JointSnapshot, projected *skeleton.ProjectedSnapshot, newline string) []byte {
	for i := range joints {
		if i > 0 {
			dst = append(dst, ' ')
		}
		pos := joints[i].Position
		dst = appendFloat(dst, pos.X)
		dst = append(dst, ' ')
		dst = appendFloat(dst, pos.Y)
		dst = append(dst, ' ')
		dst = appendFloat(dst, pos.Z)
		dst = append(dst, ' ')
		dst = appendFloat(dst, projected[i].X)
		dst = append(dst, ' ')
		dst = appendFloat(dst, projected[i].Y)
	}
	return append(dst, newline...)
}

// appendFloat writes the shortest decimal that round-trips to v.
func appendFloat(dst []byte, v float32) []byte {
	return strconv.AppendFloat(dst, float64(v), 'g', -1, 32)
}
