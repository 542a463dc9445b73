package sensor

import (
	"context"
	"errors"

	"skelrec/internal/skeleton"
)

var (
	// ErrDeviceUnavailable is returned by drivers that cannot reach the sensor.
	ErrDeviceUnavailable = errors.New("sensor device unavailable")
	// ErrMapperUnavailable is returned when a coordinate mapping cannot be computed.
	ErrMapperUnavailable = errors.New("coordinate mapper unavailable")
	// ErrReaderClosed is returned after a body frame reader has been closed.
	ErrReaderClosed = errors.New("body frame reader closed")
)

// Device is the sensor driver surface consumed by a Session.
type Device interface {
	// Name identifies the driver in logs and status output.
	Name() string
	Open(ctx context.Context) error
	Close() error
	IsAvailable() bool
	// OnAvailabilityChanged registers fn for availability transitions.
	OnAvailabilityChanged(fn func(available bool))
	CoordinateMapper() CoordinateMapper
	OpenBodyReader() (BodyFrameReader, error)
}

// BodyFrameReader delivers frame-arrival notifications.
type BodyFrameReader interface {
	// Arrivals is closed when the reader is closed.
	Arrivals() <-chan FrameReference
	Close() error
}

// FrameReference is one arrival notification. The frame it points at may
// already be gone by the time it is acquired.
type FrameReference interface {
	AcquireFrame() (BodyFrame, bool)
}

// BodyFrame is an acquired frame; callers must Close it.
type BodyFrame interface {
	// BodyCount is the maximum number of bodies the device reports.
	BodyCount() int
	// GetAndRefreshBodyData overwrites bodies in place. len(bodies) must
	// equal BodyCount.
	GetAndRefreshBodyData(bodies []skeleton.Body) error
	Close() error
}

// CoordinateMapper projects camera-space points into depth space.
type CoordinateMapper interface {
	MapCameraPointToDepthSpace(p skeleton.CameraSpacePoint) (skeleton.DepthSpacePoint, error)
}
