package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 50), G: uint8(y * 50), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding sample png: %s", err)
	}
	return buf.Bytes()
}

func TestStdTranscoderProducesJPEG(t *testing.T) {
	tr := NewStdTranscoder()
	out, mime, err := tr.Transcode(samplePNG(t), 90)
	if err != nil {
		t.Fatalf("Transcode: %s", err)
	}
	if mime != "image/jpeg" {
		t.Errorf("mime = %q, want image/jpeg", mime)
	}
	if _, _, err := image.Decode(bytes.NewReader(out)); err != nil {
		t.Errorf("Transcode output does not decode as a valid image: %s", err)
	}
}

func TestStdTranscoderDefaultsInvalidQuality(t *testing.T) {
	tr := NewStdTranscoder()
	if _, _, err := tr.Transcode(samplePNG(t), 0); err != nil {
		t.Errorf("Transcode with quality=0 should fall back to the default, got error: %s", err)
	}
	if _, _, err := tr.Transcode(samplePNG(t), 500); err != nil {
		t.Errorf("Transcode with quality=500 should fall back to the default, got error: %s", err)
	}
}

func TestStdTranscoderRejectsGarbageInput(t *testing.T) {
	tr := NewStdTranscoder()
	if _, _, err := tr.Transcode([]byte("not an image"), 85); err == nil {
		t.Errorf("Transcode accepted non-image input without error")
	}
}

func TestPassthroughTranscoderReturnsInputUnchanged(t *testing.T) {
	data := samplePNG(t)
	tr := NewPassthroughTranscoder()
	out, mime, err := tr.Transcode(data, 0)
	if err != nil {
		t.Fatalf("Transcode: %s", err)
	}
	if mime != "image/png" {
		t.Errorf("mime = %q, want image/png", mime)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("PassthroughTranscoder modified the input bytes")
	}
}
