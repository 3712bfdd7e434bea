// Package booksindex maintains books.json, the ordered, duplicate-free list
// of novel folder slugs every successful Unpack/Download run registers
// itself into.
//
// Grounded on original_source/lib/utils.py's read_books_list/
// write_books_list/add_book_to_list: read-missing-returns-empty,
// write-sorted-deduplicated, add-iff-absent. Index reads use a best-effort
// fallback to empty on a corrupt file rather than failing, matching the
// Python original's bare except around json.JSONDecodeError/IOError.
package booksindex

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

const defaultFilename = "books.json"

type indexFile struct {
	Books []string `json:"books"`
}

// Index wraps the books.json file at Path. The zero value is not usable;
// construct with New.
type Index struct {
	Path string
}

// New returns an Index pointed at books.json inside dir.
func New(dir string) *Index {
	return &Index{Path: dir + string(os.PathSeparator) + defaultFilename}
}

// Read returns the current ordered, duplicate-free list of slugs. A missing
// or corrupt file reads back as an empty list rather than an error, so
// callers never need to special-case "no index yet".
func (idx *Index) Read() ([]string, error) {
	raw, err := os.ReadFile(idx.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", idx.Path, err)
	}

	var f indexFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, nil
	}
	return f.Books, nil
}

// write persists books, deduplicated and sorted, matching the Python
// original's sorted(list(set(books))) normalization on every write.
func (idx *Index) write(books []string) error {
	seen := make(map[string]bool, len(books))
	out := make([]string, 0, len(books))
	for _, b := range books {
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	sort.Strings(out)

	raw, err := json.MarshalIndent(indexFile{Books: out}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(idx.Path, raw, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", idx.Path, err)
	}
	return nil
}

// Add appends slug to the index iff it isn't already present. Re-reads the
// file immediately before the append so two sequential Add calls against the
// same on-disk file (even from separate processes) stay idempotent.
func (idx *Index) Add(slug string) error {
	if slug == "" {
		return nil
	}

	books, err := idx.Read()
	if err != nil {
		return err
	}
	for _, b := range books {
		if b == slug {
			return nil
		}
	}
	return idx.write(append(books, slug))
}
