// Package image defines the contract for product image generators.
package image

import (
	"context"
	"errors"
)

// ErrEmptyOutput is returned when a provider responds without image bytes.
var ErrEmptyOutput = errors.New("image: provider returned no image")

// Request is a normalized generation request passed to any provider.
type Request struct {
	JobID       string
	Instruction string
	Input       []byte
	InputMIME   string
	Width       int
	Height      int
}

// Output is a single generated image.
type Output struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Generator is the contract implemented by all image providers.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Output, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (*Output, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Output, error) {
	return f(ctx, req)
}
