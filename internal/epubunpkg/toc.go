package epubunpkg

import (
	"archive/zip"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// tocEntry is one node of the table of contents, parsed from either a
// nav.xhtml document (nested <ol><li><a>) or an NCX document
// (<navPoint> tree).
type tocEntry struct {
	Title    string
	Href     string
	Children []tocEntry
}

// findTag walks root's subtree depth-first and returns the first element
// (including root itself) whose tag matches, ignoring any namespace
// prefix. Generalizes the teacher's findXHTMLTag to match by local name so
// it works across both XHTML nav documents and NCX documents.
func findTag(root *etree.Element, tag string) *etree.Element {
	if localName(root.Tag) == tag {
		return root
	}
	for _, child := range root.ChildElements() {
		if found := findTag(child, tag); found != nil {
			return found
		}
	}
	return nil
}

func localName(tag string) string {
	if i := strings.LastIndex(tag, ":"); i >= 0 {
		return tag[i+1:]
	}
	return tag
}

func stripFragment(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i]
	}
	return href
}

// parseNavDocument parses an EPUB3 nav.xhtml document's toc <nav> into a
// tocEntry tree.
func parseNavDocument(data []byte) ([]tocEntry, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parsing nav document: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, nil
	}

	nav := findNavElement(root)
	if nav == nil {
		return nil, nil
	}
	ol := findTag(nav, "ol")
	if ol == nil {
		return nil, nil
	}
	return parseOl(ol), nil
}

// findNavElement prefers a <nav> carrying epub:type="toc", falling back to
// the first <nav> element found.
func findNavElement(root *etree.Element) *etree.Element {
	var fallback *etree.Element
	var walk func(n *etree.Element) *etree.Element
	walk = func(n *etree.Element) *etree.Element {
		if localName(n.Tag) == "nav" {
			if fallback == nil {
				fallback = n
			}
			if attrContains(n, "type", "toc") {
				return n
			}
		}
		for _, child := range n.ChildElements() {
			if found := walk(child); found != nil {
				return found
			}
		}
		return nil
	}
	if found := walk(root); found != nil {
		return found
	}
	return fallback
}

func attrContains(el *etree.Element, localAttr, value string) bool {
	for _, attr := range el.Attr {
		if localName(attr.Key) == localAttr && strings.Contains(attr.Value, value) {
			return true
		}
	}
	return false
}

func parseOl(ol *etree.Element) []tocEntry {
	var entries []tocEntry
	for _, li := range ol.SelectElements("li") {
		a := findTag(li, "a")
		title, href := "", ""
		if a != nil {
			title = strings.TrimSpace(a.Text())
			href = a.SelectAttrValue("href", "")
		}

		var children []tocEntry
		if childOl := findTag(li, "ol"); childOl != nil {
			children = parseOl(childOl)
		}

		entries = append(entries, tocEntry{Title: title, Href: stripFragment(href), Children: children})
	}
	return entries
}

// parseNCXDocument parses an EPUB2 NCX document's <navMap> into a tocEntry
// tree.
func parseNCXDocument(data []byte) ([]tocEntry, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parsing ncx document: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, nil
	}
	navMap := findTag(root, "navMap")
	if navMap == nil {
		return nil, nil
	}
	return parseNavPoints(navMap.SelectElements("navPoint")), nil
}

func parseNavPoints(points []*etree.Element) []tocEntry {
	var out []tocEntry
	for _, np := range points {
		title, href := "", ""
		if label := findTag(np, "navLabel"); label != nil {
			if textEl := findTag(label, "text"); textEl != nil {
				title = strings.TrimSpace(textEl.Text())
			}
		}
		if content := findTag(np, "content"); content != nil {
			href = content.SelectAttrValue("src", "")
		}
		children := parseNavPoints(np.SelectElements("navPoint"))
		out = append(out, tocEntry{Title: title, Href: stripFragment(href), Children: children})
	}
	return out
}

// locateTOC finds the navigation document referenced by pack (a manifest
// item of application/xhtml+xml whose href contains "nav", else the NCX
// named by the spine's toc attribute) and parses it.
func locateTOC(zr *zip.ReadCloser, pack *packageDocument) ([]tocEntry, error) {
	for _, item := range pack.Manifest {
		if item.MediaType == "application/xhtml+xml" && strings.Contains(item.Href, "nav") {
			data, err := readZipContent(zr, pack.resolveHref(item.Href))
			if err != nil {
				return nil, fmt.Errorf("reading nav document %s: %w", item.Href, err)
			}
			return parseNavDocument(data)
		}
	}

	if pack.Spine.TOC != "" {
		for _, item := range pack.Manifest {
			if item.ID == pack.Spine.TOC {
				data, err := readZipContent(zr, pack.resolveHref(item.Href))
				if err != nil {
					return nil, fmt.Errorf("reading ncx document %s: %w", item.Href, err)
				}
				return parseNCXDocument(data)
			}
		}
	}

	return nil, nil
}

// volumeDefinition is an intermediate grouping of TOC hrefs before chapter
// materialization, mirroring the Python original's volume_definitions.
type volumeDefinition struct {
	Name  string
	Hrefs map[string]bool
}

// buildVolumeDefinitions implements the spec's volume-derivation rule: if
// any top-level TOC entry has children, each such entry becomes a volume;
// otherwise every TOC href is gathered into one volume named novelName; if
// the TOC is empty entirely, the caller falls back to the full spine.
func buildVolumeDefinitions(toc []tocEntry, novelName string) []volumeDefinition {
	hasNestedVolumes := false
	for _, e := range toc {
		if len(e.Children) > 0 {
			hasNestedVolumes = true
			break
		}
	}

	if hasNestedVolumes {
		var defs []volumeDefinition
		for _, e := range toc {
			if len(e.Children) == 0 {
				continue
			}
			hrefs := make(map[string]bool, len(e.Children))
			for _, c := range e.Children {
				if c.Href != "" {
					hrefs[c.Href] = true
				}
			}
			if len(hrefs) == 0 {
				continue
			}
			defs = append(defs, volumeDefinition{Name: e.Title, Hrefs: hrefs})
		}
		return defs
	}

	hrefs := make(map[string]bool)
	collectHrefs(toc, hrefs)
	if len(hrefs) == 0 {
		return nil
	}
	return []volumeDefinition{{Name: novelName, Hrefs: hrefs}}
}

func collectHrefs(entries []tocEntry, out map[string]bool) {
	for _, e := range entries {
		if e.Href != "" {
			out[e.Href] = true
		}
		collectHrefs(e.Children, out)
	}
}

// buildTitleMap flattens the TOC into href -> title, used to recover a
// chapter's display title independent of which volume grouping it fell
// into.
func buildTitleMap(entries []tocEntry) map[string]string {
	out := make(map[string]string)
	var walk func([]tocEntry)
	walk = func(es []tocEntry) {
		for _, e := range es {
			if e.Href != "" {
				out[e.Href] = e.Title
			}
			walk(e.Children)
		}
	}
	walk(entries)
	return out
}

// tocOrder lists every href in the TOC in depth-first document order,
// de-duplicated, used as a chapter-order fallback when a volume's hrefs
// don't intersect the spine at all.
func tocOrder(entries []tocEntry) []string {
	var order []string
	seen := make(map[string]bool)
	var walk func([]tocEntry)
	walk = func(es []tocEntry) {
		for _, e := range es {
			if e.Href != "" && !seen[e.Href] {
				seen[e.Href] = true
				order = append(order, e.Href)
			}
			walk(e.Children)
		}
	}
	walk(entries)
	return order
}
