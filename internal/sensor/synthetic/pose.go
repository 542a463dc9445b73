package synthetic

import (
	"math"

	"skelrec/internal/skeleton"
)

// restPose is a standing skeleton relative to SpineBase, in metres.
var restPose = [skeleton.JointCount]skeleton.CameraSpacePoint{
	skeleton.SpineBase:     {X: 0, Y: 0, Z: 0},
	skeleton.SpineMid:      {X: 0, Y: 0.30, Z: 0},
	skeleton.Neck:          {X: 0, Y: 0.55, Z: 0},
	skeleton.Head:          {X: 0, Y: 0.70, Z: 0},
	skeleton.ShoulderLeft:  {X: -0.18, Y: 0.50, Z: 0},
	skeleton.ElbowLeft:     {X: -0.25, Y: 0.25, Z: 0},
	skeleton.WristLeft:     {X: -0.28, Y: 0.02, Z: 0},
	skeleton.HandLeft:      {X: -0.29, Y: -0.05, Z: 0},
	skeleton.ShoulderRight: {X: 0.18, Y: 0.50, Z: 0},
	skeleton.ElbowRight:    {X: 0.25, Y: 0.25, Z: 0},
	skeleton.WristRight:    {X: 0.28, Y: 0.02, Z: 0},
	skeleton.HandRight:     {X: 0.29, Y: -0.05, Z: 0},
	skeleton.HipLeft:       {X: -0.09, Y: -0.03, Z: 0},
	skeleton.KneeLeft:      {X: -0.10, Y: -0.45, Z: 0},
	skeleton.AnkleLeft:     {X: -0.10, Y: -0.85, Z: 0},
	skeleton.FootLeft:      {X: -0.10, Y: -0.90, Z: -0.08},
	skeleton.HipRight:      {X: 0.09, Y: -0.03, Z: 0},
	skeleton.KneeRight:     {X: 0.10, Y: -0.45, Z: 0},
	skeleton.AnkleRight:    {X: 0.10, Y: -0.85, Z: 0},
	skeleton.FootRight:     {X: 0.10, Y: -0.90, Z: -0.08},
	skeleton.SpineShoulder: {X: 0, Y: 0.50, Z: 0},
	skeleton.HandTipLeft:   {X: -0.30, Y: -0.12, Z: 0},
	skeleton.ThumbLeft:     {X: -0.26, Y: -0.06, Z: -0.03},
	skeleton.HandTipRight:  {X: 0.30, Y: -0.12, Z: 0},
	skeleton.ThumbRight:    {X: 0.26, Y: -0.06, Z: -0.03},
}

// swing is the fraction of the arm/leg swing each joint receives and its
// side: left limbs swing opposite to right limbs.
var swing = map[skeleton.JointType]float64{
	skeleton.ElbowLeft:    0.5,
	skeleton.WristLeft:    0.9,
	skeleton.HandLeft:     1,
	skeleton.HandTipLeft:  1,
	skeleton.ThumbLeft:    1,
	skeleton.ElbowRight:   -0.5,
	skeleton.WristRight:   -0.9,
	skeleton.HandRight:    -1,
	skeleton.HandTipRight: -1,
	skeleton.ThumbRight:   -1,
	skeleton.KneeLeft:     -0.4,
	skeleton.AnkleLeft:    -0.8,
	skeleton.FootLeft:     -0.8,
	skeleton.KneeRight:    0.4,
	skeleton.AnkleRight:   0.8,
	skeleton.FootRight:    0.8,
}

const (
	rootDepth     = 2.2
	rootHeight    = -0.1
	bodySpacing   = 0.8
	swingAmp      = 0.18
	stridePeriod  = 1.2
	inferredEvery = 45
)

// Pose returns the joints of synthetic body index at frame n. Every
// inferredEvery frames the left foot is reported Inferred behind the
// camera plane, as real sensors do for occluded joints.
func Pose(index int, n uint64, frameRate int) skeleton.JointSnapshot {
	if frameRate <= 0 {
		frameRate = 30
	}
	t := float64(n) / float64(frameRate)
	phase := 2*math.Pi*t/stridePeriod + float64(index)*math.Pi/3
	s := math.Sin(phase)

	root := skeleton.CameraSpacePoint{
		X: float32(float64(index)*bodySpacing - 0.4*math.Sin(2*math.Pi*t/10)),
		Y: float32(rootHeight + 0.02*math.Abs(s)),
		Z: float32(rootDepth + 0.3*math.Sin(2*math.Pi*t/7)),
	}

	snap := skeleton.NewJointSnapshot()
	for _, jt := range skeleton.AllJointTypes() {
		rest := restPose[jt]
		p := skeleton.CameraSpacePoint{
			X: root.X + rest.X,
			Y: root.Y + rest.Y,
			Z: root.Z + rest.Z + float32(swingAmp*swing[jt]*s),
		}
		snap.Set(skeleton.Joint{Type: jt, Position: p, TrackingState: skeleton.Tracked})
	}

	if n > 0 && n%inferredEvery == 0 {
		foot := snap.Get(skeleton.FootLeft)
		foot.Position.Z = -0.05
		foot.TrackingState = skeleton.Inferred
		snap.Set(foot)
	}
	return snap
}
