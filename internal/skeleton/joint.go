package skeleton

import (
	"fmt"
	"strings"
)

// JointType identifies one body landmark. The declaration order is the
// on-disk field order of playback files and must never change.
type JointType int

const (
	SpineBase JointType = iota
	SpineMid
	Neck
	Head
	ShoulderLeft
	ElbowLeft
	WristLeft
	HandLeft
	ShoulderRight
	ElbowRight
	WristRight
	HandRight
	HipLeft
	KneeLeft
	AnkleLeft
	FootLeft
	HipRight
	KneeRight
	AnkleRight
	FootRight
	SpineShoulder
	HandTipLeft
	ThumbLeft
	HandTipRight
	ThumbRight
)

// JointCount is the number of joint types reported per body.
const JointCount = int(ThumbRight) + 1

var jointNames = [JointCount]string{
	"SpineBase",
	"SpineMid",
	"Neck",
	"Head",
	"ShoulderLeft",
	"ElbowLeft",
	"WristLeft",
	"HandLeft",
	"ShoulderRight",
	"ElbowRight",
	"WristRight",
	"HandRight",
	"HipLeft",
	"KneeLeft",
	"AnkleLeft",
	"FootLeft",
	"HipRight",
	"KneeRight",
	"AnkleRight",
	"FootRight",
	"SpineShoulder",
	"HandTipLeft",
	"ThumbLeft",
	"HandTipRight",
	"ThumbRight",
}

// AllJointTypes returns every joint type in declaration order.
func AllJointTypes() []JointType {
	out := make([]JointType, JointCount)
	for i := range out {
		out[i] = JointType(i)
	}
	return out
}

// Valid reports whether t is a member of the enumeration.
func (t JointType) Valid() bool {
	return t >= 0 && int(t) < JointCount
}

func (t JointType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("JointType(%d)", int(t))
	}
	return jointNames[t]
}

// ParseJointType resolves a joint identifier case-insensitively.
func ParseJointType(name string) (JointType, error) {
	trimmed := strings.TrimSpace(name)
	for i, candidate := range jointNames {
		if strings.EqualFold(candidate, trimmed) {
			return JointType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown joint type %q", name)
}

// TrackingState is the sensor's confidence in a joint position.
type TrackingState int

const (
	NotTracked TrackingState = iota
	Inferred
	Tracked
)

func (s TrackingState) String() string {
	switch s {
	case Tracked:
		return "tracked"
	case Inferred:
		return "inferred"
	default:
		return "not_tracked"
	}
}

// ParseTrackingState maps the textual state used by sensor bridges.
func ParseTrackingState(value string) (TrackingState, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "tracked":
		return Tracked, nil
	case "inferred":
		return Inferred, nil
	case "not_tracked", "nottracked", "":
		return NotTracked, nil
	default:
		return NotTracked, fmt.Errorf("unknown tracking state %q", value)
	}
}
