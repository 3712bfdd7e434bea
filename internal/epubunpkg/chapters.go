package epubunpkg

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/cobaltgrove/hakodl/internal/content"
)

// chapterReader materializes chapter documents out of one container,
// deduplicating images across the whole unpack session the way the
// Python original's image_map does.
type chapterReader struct {
	zr           *zip.ReadCloser
	pack         *packageDocument
	baseDir      string
	imageMap     map[string]string // resolved container path -> already-saved images/... rel path
	titlesByHref map[string]string // href -> TOC title, flattened across the whole tree
	tocHrefOrder []string          // every TOC href in depth-first document order, deduplicated
}

func newChapterReader(zr *zip.ReadCloser, pack *packageDocument, baseDir string) *chapterReader {
	return &chapterReader{zr: zr, pack: pack, baseDir: baseDir, imageMap: make(map[string]string)}
}

type materializedChapter struct {
	Title   string
	Content string
}

// materializeChapter reads href's document, applies the cover/TOC skip
// heuristics, rewrites and saves its images, extracts the body content,
// and runs it through the footnote/clean-html pipeline. ok is false when
// the chapter should be dropped outright (not an error).
func (r *chapterReader) materializeChapter(href, tocTitle, volSlug string, chapterIndex int) (materializedChapter, bool, error) {
	resolved := r.pack.resolveHref(href)
	data, err := readZipContent(r.zr, resolved)
	if err != nil {
		return materializedChapter{}, false, fmt.Errorf("reading chapter document %s: %w", resolved, err)
	}

	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return materializedChapter{}, false, fmt.Errorf("parsing chapter document %s: %w", resolved, err)
	}

	title := strings.TrimSpace(tocTitle)
	if title == "" {
		title = headingText(root)
	}
	if title == "" {
		title = fmt.Sprintf("Chapter %d", chapterIndex+1)
	}

	textLen := len([]rune(strings.TrimSpace(textContentOf(root))))
	lowerTitle := strings.ToLower(title)
	if textLen < 100 && strings.Contains(lowerTitle, "cover") {
		return materializedChapter{}, false, nil
	}
	if textLen < 50 && containsAny(lowerTitle, "toc", "contents", "mục lục") {
		return materializedChapter{}, false, nil
	}

	if err := r.rewriteAndSaveImages(root, href, volSlug, chapterIndex); err != nil {
		return materializedChapter{}, false, err
	}

	body := findTagNode(root, atom.Body)
	var inner string
	if body != nil {
		inner, err = renderChildren(body)
	} else {
		inner, err = renderChildren(root)
	}
	if err != nil {
		return materializedChapter{}, false, fmt.Errorf("rendering chapter body %s: %w", resolved, err)
	}

	chapterSlug := fmt.Sprintf("%s_chap_%d", volSlug, chapterIndex)
	cleaned := content.CleanHtml(content.ProcessFootnotes(inner, chapterSlug))

	return materializedChapter{Title: title, Content: cleaned}, true, nil
}

// rewriteAndSaveImages resolves every <img src> against href's directory,
// locates its bytes in the container, saves a copy under
// <base>/images/<volSlug>_chap_<chapterIndex>_img_<m>.<ext>, and rewrites
// src to that relative path. Images that can't be resolved are dropped.
func (r *chapterReader) rewriteAndSaveImages(root *html.Node, href, volSlug string, chapterIndex int) error {
	imgs := collectByTag(root, atom.Img)
	chapterDir := path.Dir(href)

	for m, img := range imgs {
		src, ok := nodeAttr(img, "src")
		if !ok || src == "" {
			detachNode(img)
			continue
		}

		resolvedSrc := path.Clean(path.Join(chapterDir, src))

		if rel, hit := r.imageMap[resolvedSrc]; hit {
			setAttr(img, "src", rel)
			continue
		}

		data, ext, found := r.lookupImageBytes(resolvedSrc)
		if !found {
			detachNode(img)
			continue
		}

		filename := fmt.Sprintf("%s_chap_%d_img_%d.%s", volSlug, chapterIndex, m, ext)
		rel := path.Join("images", filename)
		if err := os.MkdirAll(filepath.Join(r.baseDir, "images"), 0o755); err != nil {
			return fmt.Errorf("creating images directory: %w", err)
		}
		if err := os.WriteFile(filepath.Join(r.baseDir, filepath.FromSlash(rel)), data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", rel, err)
		}

		r.imageMap[resolvedSrc] = rel
		setAttr(img, "src", rel)
	}
	return nil
}

// lookupImageBytes tries, in order: opf-base joined to resolvedSrc, then
// resolvedSrc alone, then a basename match against manifest image items.
func (r *chapterReader) lookupImageBytes(resolvedSrc string) (data []byte, ext string, found bool) {
	for _, candidate := range []string{r.pack.resolveHref(resolvedSrc), resolvedSrc} {
		if data, err := readZipContent(r.zr, candidate); err == nil {
			return data, extOf(candidate), true
		}
	}

	base := path.Base(resolvedSrc)
	for _, item := range r.pack.Manifest {
		if !strings.HasPrefix(item.MediaType, "image/") || path.Base(item.Href) != base {
			continue
		}
		full := r.pack.resolveHref(item.Href)
		if data, err := readZipContent(r.zr, full); err == nil {
			return data, extOf(item.Href), true
		}
	}
	return nil, "", false
}

var allowedImageExt = map[string]string{".jpg": "jpg", ".jpeg": "jpg", ".png": "png", ".gif": "gif", ".webp": "webp"}

func extOf(p string) string {
	if ext, ok := allowedImageExt[strings.ToLower(path.Ext(p))]; ok {
		return ext
	}
	return "jpeg"
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func headingText(root *html.Node) string {
	for _, a := range []atom.Atom{atom.H1, atom.H2, atom.H3} {
		if n := findTagNode(root, a); n != nil {
			return strings.TrimSpace(textContentOf(n))
		}
	}
	return ""
}

func findTagNode(root *html.Node, a atom.Atom) *html.Node {
	if root.Type == html.ElementNode && root.DataAtom == a {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := findTagNode(c, a); found != nil {
			return found
		}
	}
	return nil
}

func collectByTag(root *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == a {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func textContentOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func nodeAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func detachNode(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

func renderChildren(n *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}
