package image

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	stdimage "image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"

	"github.com/rs/zerolog"
)

const defaultSize = 1024

// Synthetic renders deterministic placeholder PNGs. It is used when no
// provider credentials are configured so the pipeline stays exercisable in
// local and CI environments.
type Synthetic struct {
	logger zerolog.Logger
}

// NewSynthetic builds a Synthetic generator.
func NewSynthetic(logger zerolog.Logger) *Synthetic {
	return &Synthetic{logger: logger.With().Str("provider", "synthetic").Logger()}
}

// Generate returns a PNG whose colors are derived from the request.
func (s *Synthetic) Generate(ctx context.Context, req Request) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	width, height := req.Width, req.Height
	if width <= 0 {
		width = defaultSize
	}
	if height <= 0 {
		height = defaultSize
	}
	seed := DeterministicSeed(req.Instruction, fmt.Sprintf("%x", sha256.Sum256(req.Input)), width, height)
	data, err := renderSyntheticImage(width, height, seed)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().
		Str("job_id", req.JobID).
		Str("seed", seed).
		Int("bytes", len(data)).
		Msg("generated synthetic image")
	return &Output{Data: data, MIME: "image/png", Width: width, Height: height}, nil
}

func renderSyntheticImage(width, height int, seed string) ([]byte, error) {
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, width, height))
	base := colorFromSeed(seed, 0)
	accent := colorFromSeed(seed, 1)
	draw.Draw(img, img.Bounds(), &stdimage.Uniform{base}, stdimage.Point{}, draw.Src)

	stripeHeight := max(32, height/12)
	for y := 0; y < height; y += stripeHeight * 2 {
		stripe := stdimage.Rect(0, y, width, min(height, y+stripeHeight))
		draw.Draw(img, stripe, &stdimage.Uniform{accent}, stdimage.Point{}, draw.Over)
	}

	diagonal := colorFromSeed(seed, 2)
	for x := 0; x < max(width, height); x += max(16, width/32) {
		for y := 0; y < height && x+y < width; y++ {
			img.Set(x+y, y, diagonal)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("image: encode synthetic png: %w", err)
	}
	return buf.Bytes(), nil
}

func colorFromSeed(seed string, shift int) color.RGBA {
	if len(seed) < 6 {
		seed = "000000"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.RGBA{R: hexByte(segment[0:2]), G: hexByte(segment[2:4]), B: hexByte(segment[4:6]), A: 255}
}

func hexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

// DeterministicSeed hashes parts into a short stable hex string.
func DeterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(hasher, "%v|", part)
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}
