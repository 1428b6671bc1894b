// Package config loads and validates the TOML configuration shared by
// every pipeline entry point.
//
// Load applies repository defaults first, decodes the user's file over them,
// expands filesystem paths, and rejects unusable values before anything else
// starts. The embedded sample config documents every knob.
package config
