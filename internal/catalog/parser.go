// Package catalog parses a Hako-family novel landing page into a Catalog
// (spec §4.D).
//
// Grounded on the teacher's goquery usage in
// cmd/book_dl/internal/bilinovel/bilinovel.go (e.DOM.Find/.ForEach/.Text/.Attr
// idiom) and cmd/book_dl/internal/syosetu/syosetu.go, adapted from colly's
// OnHTML callback style to a direct goquery.NewDocumentFromReader call since
// this parser consumes a Network Fabric Response rather than a colly
// collector event.
package catalog

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cobaltgrove/hakodl/internal/ferr"
	"github.com/cobaltgrove/hakodl/internal/model"
	"github.com/cobaltgrove/hakodl/internal/network"
)

var coverURLRe = regexp.MustCompile(`url\(['"]?([^'")\s]+)`)

var removeFromSummary = []string{
	"a.see-more", "div.less-state", "div.more-state",
	"span.see-more", "span.less-state", "span.more-state",
}

// Parse validates rawURL against primaryHosts, fetches the page through f,
// and extracts a Catalog.
func Parse(ctx context.Context, f *network.Fabric, primaryHosts []string, rawURL string) (*model.Catalog, error) {
	host, err := validateHakoDomain(rawURL, primaryHosts)
	if err != nil {
		return nil, err
	}

	resp, err := f.FetchWithRetry(ctx, rawURL, nil, 0)
	if err != nil {
		return nil, ferr.Wrap(ferr.KindParseFailed, err.Error(), err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, ferr.Wrap(ferr.KindParseFailed, "malformed HTML", err)
	}

	canonicalHost := canonicalPrimaryHost(rawURL, primaryHosts, host)

	cat := &model.Catalog{
		URL:       rawURL,
		Name:      parseTitle(doc),
		Author:    parseAuthor(doc),
		Summary:   parseSummary(doc),
		MainCover: parseMainCover(doc),
		Tags:      parseTags(doc),
		Volumes:   parseVolumes(doc, rawURL, canonicalHost),
	}

	return cat, nil
}

func validateHakoDomain(rawURL string, primaryHosts []string) (string, error) {
	host, ok := hostOf(rawURL)
	if !ok {
		return "", ferr.Wrap(ferr.KindInvalidURL, rawURL, nil)
	}
	for _, d := range primaryHosts {
		if host == d || strings.HasSuffix(host, "."+d) {
			return host, nil
		}
	}
	return "", ferr.Wrap(ferr.KindInvalidDomain,
		fmt.Sprintf("Invalid domain: %s. Must be a Hako domain (%s)", host, strings.Join(primaryHosts, ", ")), nil)
}

func hostOf(rawURL string) (string, bool) {
	idx := strings.Index(rawURL, "://")
	if idx == -1 {
		return "", false
	}
	rest := rawURL[idx+3:]
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return "", false
	}
	end := strings.IndexAny(rest, "/?#")
	hostport := rest
	if end != -1 {
		hostport = rest[:end]
	}
	if hostport == "" {
		return "", false
	}
	if at := strings.LastIndex(hostport, "@"); at != -1 {
		hostport = hostport[at+1:]
	}
	if colon := strings.LastIndex(hostport, ":"); colon != -1 {
		hostport = hostport[:colon]
	}
	return hostport, true
}

func canonicalPrimaryHost(rawURL string, primaryHosts []string, observedHost string) string {
	for _, d := range primaryHosts {
		if strings.Contains(rawURL, d) {
			return d
		}
	}
	if len(primaryHosts) > 0 {
		return primaryHosts[0]
	}
	return observedHost
}

func parseTitle(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("span.series-name").First().Text())
	if title == "" {
		return "Unknown"
	}
	return title
}

func parseAuthor(doc *goquery.Document) string {
	var author string
	doc.Find("div.series-information > div.info-item").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name := s.Find("span.info-name").First().Text()
		if strings.Contains(name, "Tác giả") {
			author = strings.TrimSpace(s.Find("span.info-value").First().Text())
			return false
		}
		return true
	})
	return author
}

func parseSummary(doc *goquery.Document) string {
	sel := doc.Find("div.summary-content").First()
	if sel.Length() == 0 {
		return ""
	}
	clone := sel.Clone()
	for _, rem := range removeFromSummary {
		clone.Find(rem).Remove()
	}
	html, err := clone.Html()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(html)
}

func parseMainCover(doc *goquery.Document) string {
	style, _ := doc.Find("div.series-cover div.img-in-ratio").First().Attr("style")
	return extractCoverURL(style)
}

func extractCoverURL(style string) string {
	m := coverURLRe.FindStringSubmatch(style)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

func parseTags(doc *goquery.Document) []string {
	var tags []string
	doc.Find("div.series-gernes a, div.series-genres a").Each(func(_ int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if t != "" {
			tags = append(tags, t)
		}
	})
	return tags
}

func parseVolumes(doc *goquery.Document, baseURL, canonicalHost string) []model.Volume {
	var volumes []model.Volume
	doc.Find("section.volume-list").Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.Find("span.sect-title").First().Text())
		if name == "" {
			name = "Unknown Volume"
		}

		coverHref, _ := s.Find("div.volume-cover a[href]").First().Attr("href")
		coverLink := toAbsolute(coverHref, baseURL, canonicalHost)

		coverStyle, _ := s.Find("div.volume-cover div.img-in-ratio").First().Attr("style")
		coverImg := extractCoverURL(coverStyle)

		var chapters []model.Chapter
		s.Find("ul.list-chapters li a").Each(func(_ int, a *goquery.Selection) {
			text := strings.TrimSpace(a.Text())
			href, _ := a.Attr("href")
			chapters = append(chapters, model.Chapter{
				Name: text,
				URL:  toAbsolute(href, baseURL, canonicalHost),
			})
		})

		volumes = append(volumes, model.Volume{
			Name:     name,
			URL:      coverLink,
			CoverImg: coverImg,
			Chapters: chapters,
		})
	})
	return volumes
}

// toAbsolute expands href against base when relative, swapping in the
// canonical primary host observed in base so every catalog URL points at
// the same mirror the user started from.
func toAbsolute(href, base, canonicalHost string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	scheme := "https"
	if strings.HasPrefix(base, "http://") {
		scheme = "http"
	}
	if strings.HasPrefix(href, "/") {
		return scheme + "://" + canonicalHost + href
	}
	return scheme + "://" + canonicalHost + "/" + href
}
