package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"skelrec/internal/sensor"
	"skelrec/internal/skeleton"
)

// Recorder receives every tracked body while armed.
type Recorder interface {
	IsRecording() bool
	WriteBody(joints *skeleton.JointSnapshot, projected *skeleton.ProjectedSnapshot) error
}

// Published is the most recent tracked body made available to display
// consumers. Joints are unclamped; Projected was computed from clamped
// positions.
type Published struct {
	TrackingID  uint64
	Joints      skeleton.JointSnapshot
	Projected   skeleton.ProjectedSnapshot
	Frame       uint64
	PublishedAt time.Time
}

// Stats summarises processor activity.
type Stats struct {
	Frames        uint64
	Skipped       uint64
	Failed        uint64
	TrackedBodies int
	LinesRecorded uint64
}

// Processor turns body frames into published snapshots and playback lines.
type Processor struct {
	mapper   sensor.CoordinateMapper
	recorder Recorder
	now      func() time.Time

	// bodies is allocated on the first acquired frame and refreshed in
	// place afterwards.
	bodies []skeleton.Body

	mu        sync.Mutex
	latest    Published
	hasLatest bool
	stats     Stats
}

// NewProcessor builds a processor projecting with mapper and writing to
// recorder. recorder may be nil.
func NewProcessor(mapper sensor.CoordinateMapper, recorder Recorder) *Processor {
	return &Processor{mapper: mapper, recorder: recorder, now: time.Now}
}

// ProcessFrame handles one frame arrival. A reference whose frame has
// expired is skipped without error. A projection or write error aborts the
// rest of the frame; bodies already handled stay published and recorded.
func (p *Processor) ProcessFrame(ref sensor.FrameReference) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame, ok := ref.AcquireFrame()
	if !ok || frame == nil {
		p.stats.Skipped++
		return nil
	}
	if p.bodies == nil || len(p.bodies) != frame.BodyCount() {
		p.bodies = make([]skeleton.Body, frame.BodyCount())
	}
	err := frame.GetAndRefreshBodyData(p.bodies)
	if closeErr := frame.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		p.stats.Failed++
		return fmt.Errorf("refresh body data: %w", err)
	}
	p.stats.Frames++

	tracked := 0
	for i := range p.bodies {
		body := &p.bodies[i]
		if !body.IsTracked {
			continue
		}
		tracked++

		var projected skeleton.ProjectedSnapshot
		if err := p.project(&body.Joints, &projected); err != nil {
			p.stats.Failed++
			p.stats.TrackedBodies = tracked
			return fmt.Errorf("body %d: %w", body.TrackingID, err)
		}

		p.latest = Published{
			TrackingID:  body.TrackingID,
			Joints:      body.Joints,
			Projected:   projected,
			Frame:       p.stats.Frames,
			PublishedAt: p.now(),
		}
		p.hasLatest = true

		if p.recorder != nil && p.recorder.IsRecording() {
			if err := p.recorder.WriteBody(&body.Joints, &projected); err != nil {
				p.stats.Failed++
				p.stats.TrackedBodies = tracked
				return err
			}
			p.stats.LinesRecorded++
		}
	}
	p.stats.TrackedBodies = tracked
	return nil
}

func (p *Processor) project(joints *skeleton.JointSnapshot, out *skeleton.ProjectedSnapshot) error {
	if p.mapper == nil {
		return sensor.ErrMapperUnavailable
	}
	for i := range joints {
		point, err := p.mapper.MapCameraPointToDepthSpace(skeleton.ClampDepth(joints[i].Position))
		if err != nil {
			if errors.Is(err, sensor.ErrMapperUnavailable) {
				return err
			}
			return fmt.Errorf("project %s: %w", joints[i].Type, err)
		}
		out[i] = point
	}
	return nil
}

// Latest returns a copy of the most recently published body.
func (p *Processor) Latest() (Published, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest, p.hasLatest
}

// Stats returns a copy of the processor counters.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
