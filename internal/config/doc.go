// Package config loads, normalizes, and validates skelrec configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the SKELREC_BRIDGE_ADDRESS
// environment fallback. The Config type centralizes every knob the daemon
// and CLI need: sensor driver selection, playback directory, and logging.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical driver names, and clear validation errors.
package config
