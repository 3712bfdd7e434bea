// Package imaging defines the transcoder boundary between the pipeline and
// whatever image backend a deployment wires in, plus a default
// standard-library-backed implementation.
//
// Grounded on the teacher's common.ConvertImageTo / common.SaveImageAs
// (common/util.go), trimmed to the formats this pipeline's chapter images
// actually arrive in: png, gif, webp, jpg. The teacher's avif/bmp/tiff
// encode paths and its gen2brain/avif and golang.org/x/image/{bmp,tiff}
// dependencies serve a manga/illustration workflow this package doesn't
// need; webp is kept, decode-only, since it's one of the formats the
// chapter-image pipeline produces.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Transcoder converts raw image bytes to a normalized output format at the
// given quality (meaningful for lossy encoders; ignored otherwise). It is
// the seam a deployment can replace with a native or GPU-backed encoder
// without touching the packaging pipeline.
type Transcoder interface {
	Transcode(data []byte, quality int) (out []byte, mime string, err error)
}

// StdTranscoder decodes png/gif/webp/jpg via the standard library (plus
// golang.org/x/image/webp for decode) and re-encodes as JPEG, the one
// format every e-reader and the epub packager can rely on uniformly.
type StdTranscoder struct{}

// NewStdTranscoder constructs the default transcoder.
func NewStdTranscoder() *StdTranscoder { return &StdTranscoder{} }

const defaultQuality = 85

// Transcode decodes data as png, gif, webp, or jpeg and re-encodes it as
// JPEG at quality (85 is used instead when quality is outside [1,100]),
// returning the encoded bytes and "image/jpeg".
func (StdTranscoder) Transcode(data []byte, quality int) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("imaging: decode failed: %w", err)
	}

	if quality <= 0 || quality > 100 {
		quality = defaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, "", fmt.Errorf("imaging: encode %s as jpeg failed: %w", format, err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

// PassthroughTranscoder returns data unchanged, inferring its mime type
// from image.DecodeConfig without a full decode. Used when the packager
// embeds already-acceptable images without needing a format change.
type PassthroughTranscoder struct{}

func NewPassthroughTranscoder() *PassthroughTranscoder { return &PassthroughTranscoder{} }

func (PassthroughTranscoder) Transcode(data []byte, _ int) ([]byte, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("imaging: decode config failed: %w", err)
	}
	return data, mimeFor(format), nil
}

func mimeFor(format string) string {
	switch format {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
