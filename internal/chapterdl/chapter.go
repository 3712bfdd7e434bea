package chapterdl

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/cobaltgrove/hakodl/internal/content"
	"github.com/cobaltgrove/hakodl/internal/model"
)

var imgSrcRe = regexp.MustCompile(`<img\b[^>]*\bsrc=["']([^"']+)["']`)

// imgSrcsReferencing returns every <img src="..."> value in html that
// begins with prefix.
func imgSrcsReferencing(htmlStr, prefix string) []string {
	var out []string
	for _, m := range imgSrcRe.FindAllStringSubmatch(htmlStr, -1) {
		if strings.HasPrefix(m[1], prefix) {
			out = append(out, m[1])
		}
	}
	return out
}

// extensionFor picks a chapter-image file extension by substring test of
// the source URL, defaulting to jpg.
func extensionFor(rawURL string) string {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lower, ".png"):
		return "png"
	case strings.Contains(lower, ".gif"):
		return "gif"
	case strings.Contains(lower, ".webp"):
		return "webp"
	default:
		return "jpg"
	}
}

// ProcessChapter fetches ch.url, extracts #chapter-content, strips banners
// and tracking attributes, downloads and renames in-body images, resolves
// footnotes, and returns the finished ChapterContent. Returns (nil, nil)
// when the page has no #chapter-content subtree.
func (d *Downloader) ProcessChapter(ctx context.Context, i int, ch model.Chapter, volSlug string) (*model.ChapterContent, error) {
	resp, err := d.fabric.FetchWithRetry(ctx, ch.URL, nil, 0)
	if err != nil {
		return nil, err
	}

	root, err := html.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, err
	}

	contentNode := findByID(root, "chapter-content")
	if contentNode == nil {
		return nil, nil
	}

	content.StripFlagged(contentNode)

	if err := d.downloadAndRewriteImages(ctx, contentNode, volSlug, i); err != nil {
		return nil, err
	}

	content.DropEmptyNodes(contentNode)

	rendered, err := renderChildren(contentNode)
	if err != nil {
		return nil, err
	}

	slug := fmt.Sprintf("%s_ch%d", volSlug, i)
	final := content.ProcessContent(rendered, slug)

	return &model.ChapterContent{Title: ch.Name, URL: ch.URL, Content: final, Index: i}, nil
}

func findByID(root *html.Node, id string) *html.Node {
	if root.Type == html.ElementNode {
		for _, a := range root.Attr {
			if a.Key == "id" && a.Val == id {
				return root
			}
		}
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// downloadAndRewriteImages walks root's <img> elements in document order,
// dropping banner/empty-src images, downloading the rest into the volume's
// images directory under the spec's naming scheme, and rewriting src to
// the relative path. Images whose download fails are removed entirely.
func (d *Downloader) downloadAndRewriteImages(ctx context.Context, root *html.Node, volSlug string, chapterIndex int) error {
	imgs := collectImgs(root)
	for m, img := range imgs {
		src, _ := nodeAttr(img, "src")
		if src == "" || strings.Contains(src, "chapter-banners") {
			detach(img)
			continue
		}

		ext := extensionFor(src)
		filename := fmt.Sprintf("%s_chap_%d_img_%d.%s", volSlug, chapterIndex, m, ext)
		rel := filepath.Join("images", filename)
		full := filepath.Join(d.baseDir, rel)

		if !d.fabric.DownloadToFile(ctx, src, full) {
			detach(img)
			continue
		}

		setAttr(img, "src", rel)
		removeAttr(img, "style")
		removeAttr(img, "onclick")
	}
	return nil
}

func nodeAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

func collectImgs(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Img {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
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

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}

func renderChildren(n *html.Node) (string, error) {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}
