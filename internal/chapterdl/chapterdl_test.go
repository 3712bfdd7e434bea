package chapterdl

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"

	"github.com/cobaltgrove/hakodl/internal/model"
	"github.com/cobaltgrove/hakodl/internal/network"
)

func testDownloader(t *testing.T, catalog *model.Catalog) (*Downloader, string) {
	t.Helper()
	dir := t.TempDir()
	fab := network.New(network.DefaultConfig())
	return New(catalog, dir, fab), dir
}

func TestValidateCachedRejectsShortContent(t *testing.T) {
	d, _ := testDownloader(t, &model.Catalog{})
	cc := model.ChapterContent{Content: "too short"}
	if d.ValidateCached(cc) {
		t.Errorf("ValidateCached accepted content shorter than the floor")
	}
}

func TestValidateCachedRejectsMissingReferencedImage(t *testing.T) {
	d, _ := testDownloader(t, &model.Catalog{})
	body := make([]byte, 0, 200)
	for len(body) < 140 {
		body = append(body, []byte("filler text ")...)
	}
	cc := model.ChapterContent{Content: string(body) + `<img src="images/missing.jpg">`}
	if d.ValidateCached(cc) {
		t.Errorf("ValidateCached accepted content referencing a missing image")
	}
}

// TestScenarioS5CachedChapterValidation mirrors the spec scenario: a
// 140-character body with no image references passes, while the same body
// referencing a missing images/... file fails.
func TestScenarioS5CachedChapterValidation(t *testing.T) {
	d, dir := testDownloader(t, &model.Catalog{})

	body := ""
	for len(body) < 140 {
		body += "x"
	}
	if len(body) != 140 {
		t.Fatalf("test body length = %d, want 140", len(body))
	}

	okCC := model.ChapterContent{Content: "<p>" + body + "</p>"}
	if !d.ValidateCached(okCC) {
		t.Errorf("ValidateCached rejected a 140-char body with no image references")
	}

	badCC := model.ChapterContent{Content: "<p>" + body + `</p><img src="images/ch1_chap_0_img_0.jpg">`}
	if d.ValidateCached(badCC) {
		t.Errorf("ValidateCached accepted a body referencing an image absent from disk")
	}

	if err := os.MkdirAll(filepath.Join(dir, "images"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "images", "ch1_chap_0_img_0.jpg"), []byte("not empty"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !d.ValidateCached(badCC) {
		t.Errorf("ValidateCached rejected a body whose referenced image now exists on disk")
	}
}

func TestValidateCachedRejectsEmptyReferencedImage(t *testing.T) {
	d, dir := testDownloader(t, &model.Catalog{})
	if err := os.MkdirAll(filepath.Join(dir, "images"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "images", "empty.jpg"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	body := ""
	for len(body) < 140 {
		body += "x"
	}
	cc := model.ChapterContent{Content: "<p>" + body + `</p><img src="images/empty.jpg">`}
	if d.ValidateCached(cc) {
		t.Errorf("ValidateCached accepted content referencing a zero-size image file")
	}
}

var chapterImageNameRe = regexp.MustCompile(`^[a-z0-9-]+_chap_\d+_img_\d+\.(png|gif|webp|jpg)$`)

func TestChapterImageNamingScheme(t *testing.T) {
	cases := []struct {
		volSlug      string
		chapterIndex int
		imgIndex     int
		src          string
	}{
		{"volume-1", 0, 0, "https://cdn.example.com/a.png"},
		{"volume-1", 3, 2, "https://cdn.example.com/b.gif"},
		{"volume-2", 12, 0, "https://cdn.example.com/c.webp"},
		{"volume-2", 1, 5, "https://cdn.example.com/d.unknownext"},
	}
	for _, c := range cases {
		ext := extensionFor(c.src)
		name := c.volSlug + "_chap_" + strconv.Itoa(c.chapterIndex) + "_img_" + strconv.Itoa(c.imgIndex) + "." + ext
		if !chapterImageNameRe.MatchString(name) {
			t.Errorf("generated image name %q does not match the naming scheme", name)
		}
	}
}

func TestExtensionForDefaultsToJpg(t *testing.T) {
	if extensionFor("https://cdn.example.com/image-without-extension") != "jpg" {
		t.Errorf("extensionFor did not default to jpg for an extensionless URL")
	}
}

func TestImgSrcsReferencingFiltersByPrefix(t *testing.T) {
	html := `<p><img src="images/a.jpg"><img src="https://cdn.example.com/b.jpg"><img src="images/c.png"></p>`
	got := imgSrcsReferencing(html, "images/")
	if len(got) != 2 || got[0] != "images/a.jpg" || got[1] != "images/c.png" {
		t.Errorf("imgSrcsReferencing = %v, want [images/a.jpg images/c.png]", got)
	}
}

func TestCreateMetadataFileSchema(t *testing.T) {
	catalog := &model.Catalog{
		Name:    "Test Novel",
		URL:     "https://ln.hako.vn/truyen/test",
		Author:  "Author Name",
		Summary: "A summary.",
		Tags:    []string{"tag1", "tag2"},
		Volumes: []model.Volume{
			{Name: "Volume 1", URL: "https://ln.hako.vn/truyen/test/vol1"},
			{Name: "Volume 2", URL: "https://ln.hako.vn/truyen/test/vol2"},
		},
	}
	d, dir := testDownloader(t, catalog)

	if err := d.CreateMetadataFile(context.Background()); err != nil {
		t.Fatalf("CreateMetadataFile: %s", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		t.Fatalf("reading metadata.json: %s", err)
	}

	var rec model.NovelRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("metadata.json does not round-trip through model.NovelRecord: %s", err)
	}

	if rec.NovelName != catalog.Name || rec.Author != catalog.Author || rec.URL != catalog.URL {
		t.Errorf("metadata.json core fields mismatch: %+v", rec)
	}
	if len(rec.Volumes) != 2 {
		t.Fatalf("len(rec.Volumes) = %d, want 2", len(rec.Volumes))
	}
	if rec.Volumes[0].Order != 1 || rec.Volumes[1].Order != 2 {
		t.Errorf("volume order not 1-indexed in catalog order: %+v", rec.Volumes)
	}
	if rec.Volumes[0].Filename == "" || rec.Volumes[1].Filename == "" {
		t.Errorf("volume descriptor missing filename: %+v", rec.Volumes)
	}

	if _, err := os.Stat(filepath.Join(dir, "images")); err != nil {
		t.Errorf("CreateMetadataFile did not create the images directory: %s", err)
	}
}
