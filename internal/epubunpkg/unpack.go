package epubunpkg

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/cobaltgrove/hakodl/internal/booksindex"
	"github.com/cobaltgrove/hakodl/internal/model"
	"github.com/cobaltgrove/hakodl/internal/slugutil"
)

// Options configures an Unpack run. CleanVolumeName, when set, transforms a
// TOC-derived volume title before it's used as a Volume's display name and
// slug (e.g. stripping a "vol-1-book-name.epub" suffix a merged source
// container left behind); an empty result falls back to the raw title.
type Options struct {
	OutputDir       string
	CleanVolumeName func(string) string
}

// Unpack reads the epub container at path and reconstructs the canonical
// on-disk form (metadata.json, one Volume Record per volume, images/)
// under a novel-named directory inside opts.OutputDir, returning that
// directory.
func Unpack(path string, opts Options) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("opening %s as a zip archive: %w", path, err)
	}
	defer zr.Close()

	pack, err := loadPackageDocument(zr)
	if err != nil {
		return "", err
	}

	novelName := strings.TrimSpace(pack.Metadata.Title)
	if novelName == "" {
		novelName = "Unknown Novel"
	}

	baseDir := filepath.Join(opts.OutputDir, slugutil.Slug(novelName))
	if err := os.MkdirAll(filepath.Join(baseDir, "images"), 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	author := "Unknown"
	if len(pack.Metadata.Creator) > 0 && strings.TrimSpace(pack.Metadata.Creator[0]) != "" {
		author = strings.TrimSpace(pack.Metadata.Creator[0])
	}
	summary := strings.TrimSpace(pack.Metadata.Description)
	var tags []string
	for _, s := range pack.Metadata.Subject {
		if s = strings.TrimSpace(s); s != "" {
			tags = append(tags, s)
		}
	}

	reader := newChapterReader(zr, pack, baseDir)
	coverRel := reader.extractCover(pack)

	toc, err := locateTOC(zr, pack)
	if err != nil {
		return "", err
	}
	reader.titlesByHref = buildTitleMap(toc)
	reader.tocHrefOrder = tocOrder(toc)

	volumes := resolveVolumes(toc, pack, novelName, opts.CleanVolumeName)

	var descriptors []model.VolumeDescriptor
	order := 0
	for _, vol := range volumes {
		chapters := reader.materializeVolume(vol, order)
		if len(chapters) == 0 {
			continue
		}

		filename := slugutil.Slug(vol.name) + ".json"
		record := model.VolumeRecord{VolumeName: vol.name, Chapters: chapters}
		raw, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(filepath.Join(baseDir, filename), raw, 0o644); err != nil {
			return "", fmt.Errorf("writing %s: %w", filename, err)
		}

		descriptors = append(descriptors, model.VolumeDescriptor{Order: order + 1, Name: vol.name, Filename: filename})
		order++
	}

	meta := model.NovelRecord{
		NovelName:       novelName,
		Author:          author,
		Tags:            tags,
		Summary:         summary,
		CoverImageLocal: coverRel,
		Volumes:         descriptors,
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(baseDir, "metadata.json"), raw, 0o644); err != nil {
		return "", fmt.Errorf("writing metadata.json: %w", err)
	}

	if err := booksindex.New(opts.OutputDir).Add(filepath.Base(baseDir)); err != nil {
		log.Warnf("epubunpkg: could not update books index: %s", err)
	}

	return baseDir, nil
}

// resolvedVolume is a volume definition carrying its final display name
// (post CleanVolumeName) and the hrefs that belong to it.
type resolvedVolume struct {
	name  string
	hrefs map[string]bool
}

// resolveVolumes builds volume definitions from the TOC, falling back to
// one volume covering the full spine when the TOC yields nothing (spec
// §4.H step 5).
func resolveVolumes(toc []tocEntry, pack *packageDocument, novelName string, clean func(string) string) []resolvedVolume {
	defs := buildVolumeDefinitions(toc, novelName)
	if len(defs) == 0 {
		hrefs := make(map[string]bool)
		for _, item := range pack.Manifest {
			if item.MediaType != "application/xhtml+xml" {
				continue
			}
			hrefs[item.Href] = true
		}
		spineSet := make(map[string]bool)
		for _, h := range pack.spineHrefs() {
			spineSet[h] = true
		}
		filtered := make(map[string]bool)
		for h := range hrefs {
			if spineSet[h] {
				filtered[h] = true
			}
		}
		if len(filtered) == 0 {
			return nil
		}
		return []resolvedVolume{{name: novelName, hrefs: filtered}}
	}

	out := make([]resolvedVolume, 0, len(defs))
	for _, d := range defs {
		name := d.Name
		if clean != nil {
			if cleaned := strings.TrimSpace(clean(name)); cleaned != "" {
				name = cleaned
			}
		}
		out = append(out, resolvedVolume{name: name, hrefs: d.Hrefs})
	}
	return out
}

// materializeVolume derives chapter order for vol (spine order intersected
// with vol.hrefs, falling back to TOC order, then to the hrefs sorted
// lexicographically), materializes each
// chapter sequentially, and renumbers the surviving chapters [0, n).
func (r *chapterReader) materializeVolume(vol resolvedVolume, volumeOrder int) []model.ChapterContent {
	volSlug := strings.ToLower(slugutil.Slug(vol.name))

	ordered := intersectInOrder(r.pack.spineHrefs(), vol.hrefs)
	if len(ordered) == 0 {
		ordered = intersectInOrder(r.tocHrefOrder, vol.hrefs)
	}
	if len(ordered) == 0 {
		ordered = sortedHrefs(vol.hrefs)
	}

	titles := r.titlesByHref
	var chapters []model.ChapterContent
	for i, href := range ordered {
		mc, ok, err := r.materializeChapter(href, titles[href], volSlug, i)
		if err != nil {
			log.Warnf("epubunpkg: skipping chapter %s: %s", href, err)
			continue
		}
		if !ok {
			continue
		}
		chapters = append(chapters, model.ChapterContent{Title: mc.Title, Content: mc.Content, Index: len(chapters)})
	}
	return chapters
}

func intersectInOrder(spineHrefs []string, hrefs map[string]bool) []string {
	var out []string
	seen := make(map[string]bool)
	for _, h := range spineHrefs {
		if hrefs[h] && !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}

func sortedHrefs(hrefs map[string]bool) []string {
	out := make([]string, 0, len(hrefs))
	for h := range hrefs {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// extractCover saves the container's cover image (if any) under
// <base>/images/main_cover.<ext>, locating it via a <meta name="cover">
// reference or a manifest item carrying properties="cover-image".
func (r *chapterReader) extractCover(pack *packageDocument) string {
	var coverItem *manifestItem
	byID := pack.manifestByID()

	for _, m := range pack.Metadata.Meta {
		if m.Name == "cover" {
			if item, ok := byID[m.Content]; ok {
				coverItem = &item
			}
			break
		}
	}
	if coverItem == nil {
		for _, item := range pack.Manifest {
			if strings.Contains(item.Properties, "cover-image") {
				it := item
				coverItem = &it
				break
			}
		}
	}
	if coverItem == nil {
		return ""
	}

	data, err := readZipContent(r.zr, pack.resolveHref(coverItem.Href))
	if err != nil {
		log.Warnf("epubunpkg: could not read cover image %s: %s", coverItem.Href, err)
		return ""
	}

	filename := "main_cover." + extOf(coverItem.Href)
	if err := os.WriteFile(filepath.Join(r.baseDir, "images", filename), data, 0o644); err != nil {
		log.Warnf("epubunpkg: could not save cover image: %s", err)
		return ""
	}
	return "images/" + filename
}
