package image

import (
	"bytes"
	"fmt"
	stdimage "image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"net/http"
)

// EnsurePNG rewrites out as PNG when a provider answered in another format,
// and fills Width and Height from the decoded image. Outputs are always stored
// as PNG under a .png key.
func EnsurePNG(out *Output) error {
	if out == nil || len(out.Data) == 0 {
		return ErrEmptyOutput
	}
	if http.DetectContentType(out.Data) == "image/png" {
		cfg, err := png.DecodeConfig(bytes.NewReader(out.Data))
		if err != nil {
			return fmt.Errorf("image: decode png output: %w", err)
		}
		out.MIME, out.Width, out.Height = "image/png", cfg.Width, cfg.Height
		return nil
	}

	img, format, err := stdimage.Decode(bytes.NewReader(out.Data))
	if err != nil {
		return fmt.Errorf("image: unsupported output format %q: %w", out.MIME, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("image: re-encode %s output: %w", format, err)
	}
	bounds := img.Bounds()
	out.Data = buf.Bytes()
	out.MIME, out.Width, out.Height = "image/png", bounds.Dx(), bounds.Dy()
	return nil
}
