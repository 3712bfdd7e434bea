// Package slugutil implements the filesystem-safe name derivation rule from
// spec §6, grounded on the teacher's common.InvalidPathCharReplace — adapted
// from "substitute with a lookalike Unicode glyph" (delite targets a
// cross-platform *display* name) to "strip outright" since spec §6 requires
// removal, not substitution, plus a truncation and NFC-normalization pass
// for Hako-family Vietnamese titles (SPEC_FULL §4 ambient note).
package slugutil

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const maxLen = 100

var invalidChars = []rune{'\\', '/', '*', '?', ':', '"', '<', '>', '|'}

// Slug applies the §6 filename slug rule: strip the forbidden character
// class, replace spaces with underscores, trim, truncate to 100 runes.
// Idempotent: Slug(Slug(x)) == Slug(x).
func Slug(name string) string {
	normalized := norm.NFC.String(name)

	var b strings.Builder
	b.Grow(len(normalized))
	for _, r := range normalized {
		if isInvalid(r) {
			continue
		}
		if r == ' ' {
			b.WriteRune('_')
			continue
		}
		b.WriteRune(r)
	}

	out := strings.TrimSpace(b.String())

	runes := []rune(out)
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}
	return string(runes)
}

func isInvalid(r rune) bool {
	for _, c := range invalidChars {
		if r == c {
			return true
		}
	}
	return false
}
