package skeleton

// InferredZPositionClamp replaces negative camera-space depth before
// projection. Inferred joints occasionally report Z < 0, which makes the
// depth mapping return -Inf.
const InferredZPositionClamp float32 = 0.1

// CameraSpacePoint is a sensor-native 3D position in metres.
type CameraSpacePoint struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// DepthSpacePoint is a 2D position in depth-image pixels.
type DepthSpacePoint struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// ClampDepth returns p with a negative Z replaced by InferredZPositionClamp.
// X and Y are never modified.
func ClampDepth(p CameraSpacePoint) CameraSpacePoint {
	if p.Z < 0 {
		p.Z = InferredZPositionClamp
	}
	return p
}

// Joint is one landmark of a body as reported by the sensor.
type Joint struct {
	Type          JointType        `json:"type"`
	Position      CameraSpacePoint `json:"position"`
	TrackingState TrackingState    `json:"tracking_state"`
}

// JointSnapshot holds every joint of one body for one frame. It is indexed
// by JointType, so it always covers the full enumeration.
type JointSnapshot [JointCount]Joint

// NewJointSnapshot returns a snapshot with each slot's Type set and all
// joints NotTracked at the origin.
func NewJointSnapshot() JointSnapshot {
	var s JointSnapshot
	for i := range s {
		s[i].Type = JointType(i)
	}
	return s
}

// Get returns the joint for t.
func (s *JointSnapshot) Get(t JointType) Joint {
	return s[t]
}

// Set stores j under its own Type.
func (s *JointSnapshot) Set(j Joint) {
	s[j.Type] = j
}

// ProjectedSnapshot holds the depth-space projection of a JointSnapshot.
type ProjectedSnapshot [JointCount]DepthSpacePoint

// Body is one skeleton slot of a body frame.
type Body struct {
	TrackingID uint64
	IsTracked  bool
	Joints     JointSnapshot
}
