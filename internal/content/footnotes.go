package content

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var noteDivIDRe = regexp.MustCompile(`^note\d+$`)

// markerPatternOne matches an optional "(12)" or "[12]" counter prefix
// followed by a [noteK] marker; group 1 is the trimmed preceding group
// (empty when absent), group 2 is the note id.
var markerPatternOne = regexp.MustCompile(`(\(\d+\)|\[\d+\])?\s*\[(note\d+)\]`)

// markerPatternTwo matches an anchor whose href is a local "#noteK"
// fragment; group 1 is the note id, group 2 is the anchor's text.
var markerPatternTwo = regexp.MustCompile(`(?is)<a[^>]*href=["']#(note\d+)["'][^>]*>([^<]*)</a>`)

// ExtractFootnoteDefinitions scans html for div[id] elements whose id
// matches ^note\d+$ and records id -> trimmed content, preferring a
// descendant span.note-content_real's text when present, else the div's
// own text. Empty content is skipped.
func ExtractFootnoteDefinitions(input string) map[string]string {
	defs := map[string]string{}
	nodes, err := parseFragment(input)
	if err != nil {
		return defs
	}
	for _, n := range nodes {
		walkNoteDivs(n, defs)
	}
	return defs
}

func walkNoteDivs(node *html.Node, defs map[string]string) {
	if node.Type == html.ElementNode {
		if id, ok := attrVal(node, "id"); ok && noteDivIDRe.MatchString(id) {
			content := noteContentOf(node)
			if content != "" {
				defs[id] = content
			}
		}
	}
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		walkNoteDivs(c, defs)
	}
}

func noteContentOf(div *html.Node) string {
	if real := findByClass(div, "note-content_real"); real != nil {
		return strings.TrimSpace(textContent(real))
	}
	return strings.TrimSpace(textContent(div))
}

func findByClass(root *html.Node, class string) *html.Node {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && classSet(c)[class] {
			return c
		}
		if found := findByClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

// ConvertFootnoteMarkers applies the two ordered substitution passes from
// spec §4.E, sharing one label counter across both, and returns the
// rewritten html plus the ordered, duplicate-free list of ids actually
// referenced.
func ConvertFootnoteMarkers(input string, defs map[string]string, slug string) (string, []string) {
	counter := 1
	seen := map[string]bool{}
	var used []string

	record := func(id string) {
		if !seen[id] {
			seen[id] = true
			used = append(used, id)
		}
	}

	out := markerPatternOne.ReplaceAllStringFunc(input, func(match string) string {
		m := markerPatternOne.FindStringSubmatch(match)
		prefix, id := m[1], m[2]
		if _, ok := defs[id]; !ok {
			return match
		}
		record(id)

		var label string
		if prefix != "" {
			label = strings.TrimSpace(prefix)
		} else {
			label = fmt.Sprintf("[%d]", counter)
			counter++
		}
		return fmt.Sprintf(`<a epub:type="noteref" href="#%s_%s" class="footnote-link">%s</a>`, slug, id, label)
	})

	out = markerPatternTwo.ReplaceAllStringFunc(out, func(match string) string {
		m := markerPatternTwo.FindStringSubmatch(match)
		id, text := m[1], m[2]
		if _, ok := defs[id]; !ok {
			return match
		}
		record(id)

		label := strings.TrimSpace(text)
		if label == "" {
			label = fmt.Sprintf("[%d]", counter)
			counter++
		}
		return fmt.Sprintf(`<a epub:type="noteref" href="#%s_%s" class="footnote-link">%s</a>`, slug, id, label)
	})

	return out, used
}

// GenerateFootnoteAsides emits one <aside> per id in used, in order, then
// (when includeUnused) one more per remaining map entry in its insertion
// order, under a distinct header.
func GenerateFootnoteAsides(used []string, defs orderedDefs, slug string, includeUnused bool) string {
	var b strings.Builder
	for _, id := range used {
		writeAside(&b, slug, id, defs.get(id), "Ghi chú:")
	}
	if includeUnused {
		usedSet := map[string]bool{}
		for _, id := range used {
			usedSet[id] = true
		}
		for _, id := range defs.order {
			if usedSet[id] {
				continue
			}
			writeAside(&b, slug, id, defs.get(id), "Ghi chú (Thêm):")
		}
	}
	return b.String()
}

func writeAside(b *strings.Builder, slug, id, content, header string) {
	fmt.Fprintf(b, "<aside id=\"%s_%s\" epub:type=\"footnote\" class=\"footnote-content\">\n", slug, id)
	fmt.Fprintf(b, "  <div class=\"note-header\">%s</div>\n", header)
	fmt.Fprintf(b, "  <p>%s</p>\n", content)
	b.WriteString("</aside>\n")
}

// orderedDefs pairs a map with the insertion order of its keys, since plain
// Go maps don't preserve iteration order and GenerateFootnoteAsides's
// includeUnused pass must walk definitions in the order they were scanned.
type orderedDefs struct {
	values map[string]string
	order  []string
}

func newOrderedDefs() orderedDefs {
	return orderedDefs{values: map[string]string{}}
}

func (o *orderedDefs) set(id, content string) {
	if _, exists := o.values[id]; !exists {
		o.order = append(o.order, id)
	}
	o.values[id] = content
}

func (o orderedDefs) get(id string) string { return o.values[id] }

// extractFootnoteDefinitionsOrdered is ExtractFootnoteDefinitions's
// order-preserving sibling, used by ProcessFootnotes so
// GenerateFootnoteAsides's includeUnused pass has a stable iteration order.
// It also detaches each matched div (and any .note-reg container) from the
// tree it scans, returning the pruned html alongside the definitions.
func extractFootnoteDefinitionsOrdered(input string) (orderedDefs, string) {
	defs := newOrderedDefs()
	nodes, err := parseFragment(input)
	if err != nil {
		return defs, input
	}

	for _, n := range nodes {
		collectAndPrune(n, &defs)
	}

	out, err := renderFragment(nodes)
	if err != nil {
		return defs, input
	}
	return defs, out
}

func collectAndPrune(node *html.Node, defs *orderedDefs) {
	for c := node.FirstChild; c != nil; {
		next := c.NextSibling
		collectAndPrune(c, defs)
		c = next
	}

	for c := node.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			if id, ok := attrVal(c, "id"); ok && noteDivIDRe.MatchString(id) {
				content := noteContentOf(c)
				if content != "" {
					defs.set(id, content)
				}
				removeNode(c)
				c = next
				continue
			}
			if classSet(c)["note-reg"] {
				removeNode(c)
				c = next
				continue
			}
		}
		c = next
	}
}

// ProcessFootnotes extracts and removes footnote-definition divs and any
// .note-reg container, converts inline markers to noterefs, and appends the
// resulting asides (including unreferenced definitions).
func ProcessFootnotes(input string, slug string) string {
	defs, pruned := extractFootnoteDefinitionsOrdered(input)

	flat := make(map[string]string, len(defs.order))
	for _, id := range defs.order {
		flat[id] = defs.get(id)
	}

	converted, used := ConvertFootnoteMarkers(pruned, flat, slug)
	asides := GenerateFootnoteAsides(used, defs, slug, true)
	return converted + asides
}

// ProcessContent is the full per-chapter pipeline: clean the DOM, resolve
// footnotes, then sanitize the resulting markup string.
func ProcessContent(input string, slug string) string {
	return SanitizeXhtml(ProcessFootnotes(CleanHtml(input), slug))
}
