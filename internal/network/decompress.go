package network

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

type decompressorFactory = func(io.Reader) (io.Reader, error)

// decompressResponse reads and decompresses resp.Body according to its
// Content-Encoding header.
//
// Ported from the teacher's network.DecompressResponseBody /
// getBodyDecompressFunc, which operate on *colly.Response; this fabric has
// no colly dependency, so the switch table here reads straight off
// *http.Response instead.
func decompressResponse(resp *http.Response) ([]byte, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	factory, err := decompressFactoryFor(resp.Header.Get("content-encoding"))
	if err != nil {
		return nil, err
	}

	reader, err := factory(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	out, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress response: %w", err)
	}
	return out, nil
}

func decompressFactoryFor(encoding string) (decompressorFactory, error) {
	switch encoding {
	case "br":
		return func(r io.Reader) (io.Reader, error) { return brotli.NewReader(r), nil }, nil
	case "deflate":
		return func(r io.Reader) (io.Reader, error) { return flate.NewReader(r), nil }, nil
	case "gzip":
		return func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) }, nil
	case "zstd":
		return func(r io.Reader) (io.Reader, error) { return zstd.NewReader(r) }, nil
	case "", "identity":
		return func(r io.Reader) (io.Reader, error) { return r, nil }, nil
	default:
		return nil, fmt.Errorf("unknown content-encoding: %s", encoding)
	}
}
