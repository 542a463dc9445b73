package daemon

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"skelrec/internal/config"
	"skelrec/internal/sensor"
	"skelrec/internal/sensor/bridge"
	"skelrec/internal/sensor/hotplug"
	"skelrec/internal/sensor/synthetic"
)

// NewDevice builds the sensor driver selected by cfg. With hotplug enabled
// the driver is only available while the USB sensor is attached.
func NewDevice(cfg *config.Config, logger *slog.Logger) (sensor.Device, error) {
	if cfg == nil {
		return nil, errors.New("device requires configuration")
	}

	var device sensor.Device
	switch cfg.Sensor.Driver {
	case config.DriverSynthetic:
		device = synthetic.New(synthetic.Options{
			FrameRate:     cfg.Sensor.FrameRate,
			BodyCount:     cfg.Sensor.BodyCount,
			TrackedBodies: cfg.Sensor.TrackedBodies,
		})
	case config.DriverBridge:
		dev, err := bridge.New(bridge.Options{
			Address:        cfg.Sensor.BridgeAddress,
			RedialInterval: time.Duration(cfg.Sensor.RedialSeconds) * time.Second,
			BodyCount:      cfg.Sensor.BodyCount,
			Logger:         logger,
		})
		if err != nil {
			return nil, fmt.Errorf("bridge device: %w", err)
		}
		device = dev
	default:
		return nil, fmt.Errorf("unknown sensor driver %q", cfg.Sensor.Driver)
	}

	if !cfg.Sensor.Hotplug {
		return device, nil
	}
	monitor, err := hotplug.NewMonitor(cfg.Sensor.USBVendorID, cfg.Sensor.USBProductID, logger)
	if err != nil {
		return nil, fmt.Errorf("hotplug monitor: %w", err)
	}
	return hotplug.NewGate(device, monitor), nil
}
