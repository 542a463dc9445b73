// Package capture implements the per-frame pipeline between the sensor
// session and the recording writer.
//
// For each frame the processor refreshes its body slots, skips untracked
// bodies, clamps negative depth, projects every joint to depth space,
// publishes the result to a single slot that the last tracked body wins,
// and hands each tracked body to the recorder while it is armed.
package capture
