// Package synthetic implements a sensor.Device that renders walking
// skeletons from a deterministic pose model. It backs demos, tests and the
// "external capture tool" workflow where no physical sensor is attached.
package synthetic
