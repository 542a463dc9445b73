// Package preflight provides readiness checks for the filesystem paths and
// the sensor bridge that skelrec depends on.
//
// These checks run in three contexts:
//   - The daemon calls RunAll at startup and logs every failure.
//   - StartRecording calls CheckRecordingTarget before creating a file.
//   - The CLI "skelrec status" command renders RunAll results.
package preflight
