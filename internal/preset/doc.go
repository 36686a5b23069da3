// Package preset loads named run presets from disk.
//
// A preset is a JSON file that overrides selected run settings.
// Optional fields are pointers so a preset can distinguish "not set"
// from an explicit zero.
package preset
