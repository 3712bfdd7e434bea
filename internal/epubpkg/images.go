package epubpkg

import (
	"regexp"
	"strings"

	"github.com/vincent-petithory/dataurl"
)

var imgTagRe = regexp.MustCompile(`<img\b[^>]*>`)
var srcAttrRe = regexp.MustCompile(`\bsrc=["']([^"']+)["']`)

// rewriteImagesToDataURI replaces every <img src="images/..."> reference in
// html with a base64 data: URI produced by ProcessImage, per spec §4.G/§6
// ("images are embedded inline as base64 data URIs within their
// referencing document"). Images ProcessImage can't resolve are dropped
// entirely, along with their <img> tag.
func (p *Packager) rewriteImagesToDataURI(html string) string {
	return imgTagRe.ReplaceAllStringFunc(html, func(tag string) string {
		m := srcAttrRe.FindStringSubmatch(tag)
		if m == nil {
			return tag
		}
		src := m[1]

		data, mime, _, ok := p.ProcessImage(src)
		if !ok {
			return ""
		}

		uri := dataurl.New(data, mime).String()
		return srcAttrRe.ReplaceAllString(tag, `src="`+strings.ReplaceAll(uri, `"`, "&quot;")+`"`)
	})
}
