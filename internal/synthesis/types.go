package synthesis

import (
	"context"
	"sync/atomic"

	"easel/internal/quality"
)

// Request describes one image to generate. InputImage and Conditioning
// are optional; when set they steer generation from an existing image.
type Request struct {
	Prompt         string            `json:"prompt"`
	NegativePrompt string            `json:"negative_prompt,omitempty"`
	Seed           int64             `json:"seed,omitempty"`
	Steps          int               `json:"steps,omitempty"`
	Width          int               `json:"width,omitempty"`
	Height         int               `json:"height,omitempty"`
	InputImage     []byte            `json:"input_image,omitempty"`
	Conditioning   []byte            `json:"conditioning,omitempty"`
	Params         map[string]string `json:"params,omitempty"`
}

// Result is one generated image together with the backend's own
// measurements of it.
type Result struct {
	Image    []byte
	Stats    quality.SampleStats
	Seed     int64
	Metadata map[string]string
}

// Pipeline generates images. Release frees backend-side resources held
// for the current item and must be safe to call after a failed Invoke.
type Pipeline interface {
	Invoke(ctx context.Context, req Request) (Result, error)
	Release(ctx context.Context) error
}

// Preparer derives conditioning data from an input image. Preparation
// is expensive, so callers cache results keyed by the input bytes.
type Preparer interface {
	Prepare(ctx context.Context, image []byte) ([]byte, error)
}

// InterruptFlag is a shared stop signal. The lifecycle machine raises
// it on cancellation and the pipeline client checks it between
// requests.
type InterruptFlag struct {
	active atomic.Bool
}

func (f *InterruptFlag) Set()         { f.active.Store(true) }
func (f *InterruptFlag) Clear()       { f.active.Store(false) }
func (f *InterruptFlag) Active() bool { return f.active.Load() }

// Observe matches the lifecycle machine's interrupt observer signature.
func (f *InterruptFlag) Observe(active bool) {
	f.active.Store(active)
}
