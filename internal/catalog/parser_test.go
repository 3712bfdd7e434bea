package catalog

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/cobaltgrove/hakodl/internal/ferr"
)

var primaryHosts = []string{"docln.net", "ln.hako.vn", "docln.sbs"}

func TestValidateHakoDomainAccepts(t *testing.T) {
	host, err := validateHakoDomain("https://docln.net/truyen/5", primaryHosts)
	if err != nil {
		t.Fatalf("validateHakoDomain error: %v", err)
	}
	if host != "docln.net" {
		t.Errorf("host = %q, want docln.net", host)
	}
}

func TestValidateHakoDomainRejectsScenarioS2(t *testing.T) {
	_, err := validateHakoDomain("https://example.com/x", primaryHosts)
	var fe *ferr.Error
	if !errors.As(err, &fe) || fe.Kind != ferr.KindInvalidDomain {
		t.Fatalf("error = %v, want KindInvalidDomain", err)
	}
	if !strings.Contains(fe.Message, "Invalid domain: example.com") {
		t.Errorf("message = %q, want prefix 'Invalid domain: example.com'", fe.Message)
	}
}

func TestParseTitleAuthorScenarioS1(t *testing.T) {
	html := `<html><body>
		<span class="series-name">T</span>
		<div class="series-information">
			<div class="info-item"><span class="info-name">Tác giả</span><span class="info-value"> A </span></div>
		</div>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	if title := parseTitle(doc); title != "T" {
		t.Errorf("parseTitle = %q, want T", title)
	}
	if author := parseAuthor(doc); author != "A" {
		t.Errorf("parseAuthor = %q, want A", author)
	}
	if vols := parseVolumes(doc, "https://docln.net/truyen/5", "docln.net"); len(vols) != 0 {
		t.Errorf("parseVolumes = %+v, want empty", vols)
	}
}

func TestParseTitleFallsBackToUnknown(t *testing.T) {
	doc, _ := goquery.NewDocumentFromReader(bytes.NewReader([]byte(`<html><body></body></html>`)))
	if got := parseTitle(doc); got != "Unknown" {
		t.Errorf("parseTitle = %q, want Unknown", got)
	}
}

func TestParseVolumesAndChapters(t *testing.T) {
	html := `<html><body>
		<section class="volume-list">
			<span class="sect-title">Vol 1</span>
			<div class="volume-cover"><a href="/truyen/5/vol-1"><div class="img-in-ratio" style="background-image: url('/img/v1.jpg')"></div></a></div>
			<ul class="list-chapters">
				<li><a href="/truyen/5/vol-1/chap-1">Chapter 1</a></li>
				<li><a href="/truyen/5/vol-1/chap-2">Chapter 2</a></li>
			</ul>
		</section>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	vols := parseVolumes(doc, "https://docln.net/truyen/5", "docln.net")
	if len(vols) != 1 {
		t.Fatalf("len(vols) = %d, want 1", len(vols))
	}
	v := vols[0]
	if v.Name != "Vol 1" {
		t.Errorf("volume name = %q, want Vol 1", v.Name)
	}
	if v.URL != "https://docln.net/truyen/5/vol-1" {
		t.Errorf("volume URL = %q, want absolute", v.URL)
	}
	if v.CoverImg != "/img/v1.jpg" {
		t.Errorf("volume cover = %q, want /img/v1.jpg", v.CoverImg)
	}
	if len(v.Chapters) != 2 {
		t.Fatalf("len(chapters) = %d, want 2", len(v.Chapters))
	}
	if v.Chapters[0].Name != "Chapter 1" || v.Chapters[0].URL != "https://docln.net/truyen/5/vol-1/chap-1" {
		t.Errorf("chapter[0] = %+v", v.Chapters[0])
	}
}

func TestExtractCoverURL(t *testing.T) {
	got := extractCoverURL(`background-image: url("/img/cover.jpg")`)
	if got != "/img/cover.jpg" {
		t.Errorf("extractCoverURL = %q, want /img/cover.jpg", got)
	}
}
