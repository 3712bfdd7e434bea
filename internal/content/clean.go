package content

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var dropClasses = map[string]bool{
	"d-none":       true,
	"d-md-block":   true,
	"flex":         true,
	"note-content": true,
}

var emptyableTags = map[atom.Atom]bool{
	atom.P:    true,
	atom.Div:  true,
	atom.Span: true,
}

// CleanHtml applies the four-step DOM cleanup of spec §4.E: drop comment
// nodes, drop target=_blank/__blank elements, drop elements carrying any of
// a fixed class list, and drop empty p/div/span elements with no
// descendant img.
func CleanHtml(input string) string {
	nodes, err := parseFragment(input)
	if err != nil {
		return input
	}

	for _, n := range nodes {
		CleanNode(n)
	}

	kept := nodes[:0]
	for _, n := range nodes {
		if !shouldFlag(n) && !isEmptyNode(n) {
			kept = append(kept, n)
		}
	}

	out, err := renderFragment(kept)
	if err != nil {
		return input
	}
	return out
}

// CleanNode applies the full four-step cleanup in place to an
// already-parsed subtree's descendants (not to root itself), for callers
// that need to keep manipulating the DOM afterward instead of
// round-tripping through a string.
func CleanNode(root *html.Node) {
	StripFlagged(root)
	DropEmptyNodes(root)
}

// StripFlagged removes comment nodes, target=_blank/__blank elements, and
// elements carrying any of the fixed drop-class list, from root's
// descendants. Separated from DropEmptyNodes because the chapter
// downloader's pipeline runs this pass before downloading in-body images
// and the empty-node pass after, once failed downloads have pruned their
// <img> tags.
func StripFlagged(root *html.Node) {
	for c := root.FirstChild; c != nil; {
		next := c.NextSibling
		StripFlagged(c)
		c = next
	}
	for c := root.FirstChild; c != nil; {
		next := c.NextSibling
		if shouldFlag(c) {
			removeNode(c)
		}
		c = next
	}
}

// DropEmptyNodes removes p/div/span descendants of root whose trimmed text
// is empty and which contain no descendant img.
func DropEmptyNodes(root *html.Node) {
	for c := root.FirstChild; c != nil; {
		next := c.NextSibling
		DropEmptyNodes(c)
		c = next
	}
	for c := root.FirstChild; c != nil; {
		next := c.NextSibling
		if isEmptyNode(c) {
			removeNode(c)
		}
		c = next
	}
}

func shouldFlag(n *html.Node) bool {
	if n.Type == html.CommentNode {
		return true
	}
	if n.Type != html.ElementNode {
		return false
	}
	if target, ok := attrVal(n, "target"); ok && (target == "_blank" || target == "__blank") {
		return true
	}
	classes := classSet(n)
	for cls := range dropClasses {
		if classes[cls] {
			return true
		}
	}
	return false
}

func isEmptyNode(n *html.Node) bool {
	if !emptyableTags[n.DataAtom] || n.Type != html.ElementNode {
		return false
	}
	return strings.TrimSpace(textContent(n)) == "" && !hasDescendant(n, atom.Img)
}
