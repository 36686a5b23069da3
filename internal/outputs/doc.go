// Package outputs persists generated images and mirrors them to a
// remote destination.
//
// Local layout is one directory per batch with a JSON sidecar next to
// each image. The remote mirror is organized by date and batch and
// keeps a metadata.json manifest that accumulates one entry per synced
// file.
package outputs
