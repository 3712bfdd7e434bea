// Package epubpkg assembles the canonical on-disk form (metadata.json,
// Volume Records, images/) into a merged or per-volume epub container
// (spec §4.G).
//
// Grounded on the teacher's make_epub/make_epub.go for go-epub wiring
// (AddSection/AddCSS/Write) and on original_source/lib/epub_builder.py for
// the intro/separator/chapter HTML shapes, image-cache memoization, and
// output-path rules this package's Go port follows literally.
package epubpkg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cobaltgrove/hakodl/internal/imaging"
	"github.com/cobaltgrove/hakodl/internal/slugutil"
)

// Packager builds epub containers from one novel's base directory.
type Packager struct {
	baseDir    string
	cfg        Config
	transcoder imaging.Transcoder
	imageCache map[string]processedImage
}

type processedImage struct {
	ok     bool
	data   []byte
	mime   string
	newRel string
}

// New constructs a Packager rooted at baseDir, using transcoder to
// compress images when cfg.CompressImages is set.
func New(baseDir string, cfg Config, transcoder imaging.Transcoder) *Packager {
	return &Packager{
		baseDir:    baseDir,
		cfg:        cfg,
		transcoder: transcoder,
		imageCache: make(map[string]processedImage),
	}
}

// ClearCache empties the build session's memoized image cache.
func (p *Packager) ClearCache() {
	p.imageCache = make(map[string]processedImage)
}

var extMime = map[string]string{
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

func mimeForExt(rel string) string {
	if m, ok := extMime[strings.ToLower(filepath.Ext(rel))]; ok {
		return m
	}
	return "application/octet-stream"
}

// ProcessImage reads baseDir/rel, optionally transcoding it to JPEG per
// cfg.CompressImages, and returns the bytes to embed, their MIME type, and
// the (possibly re-extensioned) relative path they're now associated with.
// Results are memoized per rel for the lifetime of the Packager. ok is
// false when the file is missing or empty.
func (p *Packager) ProcessImage(rel string) (data []byte, mime string, newRel string, ok bool) {
	if cached, hit := p.imageCache[rel]; hit {
		return cached.data, cached.mime, cached.newRel, cached.ok
	}

	raw, err := os.ReadFile(filepath.Join(p.baseDir, rel))
	if err != nil || len(raw) == 0 {
		p.imageCache[rel] = processedImage{}
		return nil, "", "", false
	}

	var result processedImage
	if !p.cfg.CompressImages {
		result = processedImage{ok: true, data: raw, mime: mimeForExt(rel), newRel: rel}
	} else if out, outMime, terr := p.transcoder.Transcode(raw, compressQuality); terr == nil {
		ext := filepath.Ext(rel)
		result = processedImage{
			ok:     true,
			data:   out,
			mime:   outMime,
			newRel: strings.TrimSuffix(rel, ext) + ".jpg",
		}
	} else {
		result = processedImage{ok: true, data: raw, mime: mimeForExt(rel), newRel: rel}
	}

	p.imageCache[rel] = result
	return result.data, result.mime, result.newRel, result.ok
}

func (p *Packager) novelSlugDir(novelName string) string {
	return filepath.Join(p.cfg.OutputDir, slugutil.Slug(novelName))
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

func (p *Packager) compressedOrOriginal() string {
	if p.cfg.CompressImages {
		return "compressed"
	}
	return "original"
}

func wrapf(context string, err error) error {
	return fmt.Errorf("epubpkg: %s: %w", context, err)
}
