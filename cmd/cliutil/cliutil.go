// Package cliutil holds the --proxy flag's validate-before-any-work
// discipline (spec §7: "proxy argument fails validation (non-zero exit
// before any work)"). The fetch subcommand is its only caller; fetch
// builds its own network.Config.
//
// Grounded on the teacher's cmd/book_dl/book_dl.go command shape
// (flags -> options struct -> Action closure).
package cliutil

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/cobaltgrove/hakodl/internal/proxypool"
)

// BuildProxyPool validates every comma-separated entry in raw against the
// proxy grammar before constructing anything, per spec §7's fatal-before-
// any-work policy. An empty raw returns a nil pool, not an error. When
// verbose is set, the pool's sanitized descriptors are logged.
func BuildProxyPool(raw string, verbose bool) (*proxypool.Pool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	entries := strings.Split(raw, ",")
	for i, e := range entries {
		entries[i] = strings.TrimSpace(e)
		if !proxypool.Validate(entries[i]) {
			return nil, fmt.Errorf("invalid proxy entry %q", entries[i])
		}
	}

	pool, err := proxypool.New(entries)
	if err != nil {
		return nil, fmt.Errorf("building proxy pool: %w", err)
	}

	if verbose {
		for _, d := range pool.All() {
			log.Infof("proxy: %s", proxypool.SanitizeForDisplay(proxypool.Reconstruct(d)))
		}
	}
	return pool, nil
}
