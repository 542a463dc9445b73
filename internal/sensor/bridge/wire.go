package bridge

import (
	"encoding/json"
	"fmt"

	"skelrec/internal/skeleton"
)

// wireFrame is one line emitted by a sensor bridge:
//
//	{"bodies":[{"tracking_id":7,"tracked":true,"joints":[{"type":"Head","x":0.1,"y":0.6,"z":2.1,"state":"tracked"}]}]}
type wireFrame struct {
	Bodies []wireBody `json:"bodies"`
}

type wireBody struct {
	TrackingID uint64      `json:"tracking_id"`
	Tracked    bool        `json:"tracked"`
	Joints     []wireJoint `json:"joints"`
}

type wireJoint struct {
	Type  string  `json:"type"`
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	Z     float32 `json:"z"`
	State string  `json:"state"`
}

// DecodeFrame parses one bridge line into exactly bodyCount body slots.
// Slots the bridge did not report are untracked. Joints a tracked body
// omits stay NotTracked at the origin, so every snapshot is total.
func DecodeFrame(line []byte, bodyCount int) ([]skeleton.Body, error) {
	var frame wireFrame
	if err := json.Unmarshal(line, &frame); err != nil {
		return nil, fmt.Errorf("decode bridge frame: %w", err)
	}
	if len(frame.Bodies) > bodyCount {
		return nil, fmt.Errorf("bridge frame reports %d bodies, device supports %d", len(frame.Bodies), bodyCount)
	}

	bodies := make([]skeleton.Body, bodyCount)
	for i := range bodies {
		bodies[i].Joints = skeleton.NewJointSnapshot()
	}
	for i, wb := range frame.Bodies {
		body := &bodies[i]
		body.TrackingID = wb.TrackingID
		body.IsTracked = wb.Tracked
		for _, wj := range wb.Joints {
			jt, err := skeleton.ParseJointType(wj.Type)
			if err != nil {
				return nil, fmt.Errorf("body %d: %w", i, err)
			}
			state, err := skeleton.ParseTrackingState(wj.State)
			if err != nil {
				return nil, fmt.Errorf("body %d joint %s: %w", i, jt, err)
			}
			body.Joints.Set(skeleton.Joint{
				Type:          jt,
				Position:      skeleton.CameraSpacePoint{X: wj.X, Y: wj.Y, Z: wj.Z},
				TrackingState: state,
			})
		}
	}
	return bodies, nil
}

// EncodeFrame renders bodies in the bridge wire format. Only tracked
// bodies are emitted.
func EncodeFrame(bodies []skeleton.Body) ([]byte, error) {
	frame := wireFrame{Bodies: make([]wireBody, 0, len(bodies))}
	for _, b := range bodies {
		if !b.IsTracked {
			continue
		}
		wb := wireBody{TrackingID: b.TrackingID, Tracked: true, Joints: make([]wireJoint, 0, skeleton.JointCount)}
		for _, j := range b.Joints {
			wb.Joints = append(wb.Joints, wireJoint{
				Type:  j.Type.String(),
				X:     j.Position.X,
				Y:     j.Position.Y,
				Z:     j.Position.Z,
				State: j.TrackingState.String(),
			})
		}
		frame.Bodies = append(frame.Bodies, wb)
	}
	return json.Marshal(frame)
}
