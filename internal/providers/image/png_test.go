package image

import (
	"bytes"
	stdimage "image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func sampleImage(w, h int) stdimage.Image {
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 180, G: 40, B: 90, A: 255})
	}
	return img
}

func TestEnsurePNGReencodesJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, sampleImage(12, 8), nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	out := &Output{Data: buf.Bytes(), MIME: "image/jpeg"}
	if err := EnsurePNG(out); err != nil {
		t.Fatalf("EnsurePNG: %v", err)
	}
	if out.MIME != "image/png" || out.Width != 12 || out.Height != 8 {
		t.Fatalf("unexpected output metadata %+v", out)
	}
	if _, err := png.Decode(bytes.NewReader(out.Data)); err != nil {
		t.Fatalf("output is not png: %v", err)
	}
}

func TestEnsurePNGKeepsPNGBytes(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, sampleImage(5, 3)); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	original := append([]byte(nil), buf.Bytes()...)
	out := &Output{Data: buf.Bytes(), MIME: "", Width: 1024, Height: 1024}
	if err := EnsurePNG(out); err != nil {
		t.Fatalf("EnsurePNG: %v", err)
	}
	if !bytes.Equal(out.Data, original) {
		t.Fatalf("png bytes were rewritten")
	}
	if out.MIME != "image/png" || out.Width != 5 || out.Height != 3 {
		t.Fatalf("unexpected output metadata %+v", out)
	}
}

func TestEnsurePNGRejectsUnknownData(t *testing.T) {
	if err := EnsurePNG(&Output{Data: []byte("not an image"), MIME: "image/png"}); err == nil {
		t.Fatalf("expected error for undecodable output")
	}
	if err := EnsurePNG(&Output{}); err != ErrEmptyOutput {
		t.Fatalf("empty output err = %v, want ErrEmptyOutput", err)
	}
}
