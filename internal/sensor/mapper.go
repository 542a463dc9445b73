package sensor

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"skelrec/internal/skeleton"
)

// Intrinsics describes a pinhole depth camera.
type Intrinsics struct {
	Width  int
	Height int
	FX     float32
	FY     float32
	CX     float32
	CY     float32
}

// DefaultDepthIntrinsics approximates the Kinect v2 depth camera.
var DefaultDepthIntrinsics = Intrinsics{
	Width:  512,
	Height: 424,
	FX:     365.456,
	FY:     365.456,
	CX:     254.878,
	CY:     205.395,
}

// PinholeMapper projects camera space into depth space without lens
// distortion. Camera space has +Y up; depth space has +Y down.
type PinholeMapper struct {
	k mgl32.Mat3
}

// NewPinholeMapper builds a mapper for in.
func NewPinholeMapper(in Intrinsics) *PinholeMapper {
	// Column-major camera matrix with the Y axis flipped.
	k := mgl32.Mat3{
		in.FX, 0, 0,
		0, -in.FY, 0,
		in.CX, in.CY, 1,
	}
	return &PinholeMapper{k: k}
}

// MapCameraPointToDepthSpace projects p. A point on the camera plane
// (Z == 0) maps to (-Inf, -Inf), matching the sensor SDK.
func (m *PinholeMapper) MapCameraPointToDepthSpace(p skeleton.CameraSpacePoint) (skeleton.DepthSpacePoint, error) {
	if m == nil {
		return skeleton.DepthSpacePoint{}, ErrMapperUnavailable
	}
	if p.Z == 0 {
		inf := float32(math.Inf(-1))
		return skeleton.DepthSpacePoint{X: inf, Y: inf}, nil
	}
	h := m.k.Mul3x1(mgl32.Vec3{p.X, p.Y, p.Z})
	return skeleton.DepthSpacePoint{X: h.X() / h.Z(), Y: h.Y() / h.Z()}, nil
}
