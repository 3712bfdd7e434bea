package epubpkg

// Config holds the Packager's build settings, one per build session.
type Config struct {
	// CompressImages transcodes every embedded image to JPEG quality 75.
	CompressImages bool
	OutputDir      string
}

const compressQuality = 75
