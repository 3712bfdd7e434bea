package epubpkg

import (
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	epub "github.com/go-shiori/go-epub"
	"github.com/vincent-petithory/dataurl"

	"github.com/cobaltgrove/hakodl/internal/content"
	"github.com/cobaltgrove/hakodl/internal/model"
	"github.com/cobaltgrove/hakodl/internal/slugutil"
)

const introTitle = "Giới thiệu"

func (p *Packager) loadMetadata() (model.NovelRecord, error) {
	raw, err := os.ReadFile(filepath.Join(p.baseDir, "metadata.json"))
	if err != nil {
		return model.NovelRecord{}, wrapf("reading metadata.json", err)
	}
	var rec model.NovelRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.NovelRecord{}, wrapf("parsing metadata.json", err)
	}
	return rec, nil
}

func (p *Packager) loadVolumeRecord(filename string) (model.VolumeRecord, error) {
	raw, err := os.ReadFile(filepath.Join(p.baseDir, filename))
	if err != nil {
		return model.VolumeRecord{}, wrapf("reading "+filename, err)
	}
	var rec model.VolumeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.VolumeRecord{}, wrapf("parsing "+filename, err)
	}
	return rec, nil
}

// sortByMetadataOrder orders filenames by their Volume Descriptor's order
// in meta, sorting filenames absent from meta's volume list last.
func sortByMetadataOrder(filenames []string, meta model.NovelRecord) []string {
	order := make(map[string]int, len(meta.Volumes))
	for _, v := range meta.Volumes {
		order[v.Filename] = v.Order
	}

	const missing = 1 << 30
	out := append([]string(nil), filenames...)
	sort.SliceStable(out, func(i, j int) bool {
		oi, oj := missing, missing
		if v, ok := order[out[i]]; ok {
			oi = v
		}
		if v, ok := order[out[j]]; ok {
			oj = v
		}
		return oi < oj
	})
	return out
}

func (p *Packager) newBook(title, author, summary string) (*epub.Epub, error) {
	book, err := epub.NewEpub(title)
	if err != nil {
		return nil, wrapf("creating epub", err)
	}
	book.SetAuthor(author)
	book.SetLang("vi")
	if summary != "" {
		book.SetDescription(summary)
	}
	return book, nil
}

func (p *Packager) introSection(novelName, author, summary, mainCoverLocal string, tags []string, subtitle string) string {
	tagsHTML := ""
	if len(tags) > 0 {
		tagsHTML = fmt.Sprintf(`<p><b>Thể loại:</b> %s</p>`, html.EscapeString(strings.Join(tags, ", ")))
	}

	coverHTML := ""
	if mainCoverLocal != "" {
		if data, mime, _, ok := p.ProcessImage(mainCoverLocal); ok {
			uri := dataURI(data, mime)
			coverHTML = fmt.Sprintf(`<div style="text-align:center; margin: 2em 0; page-break-after: always;"><img src="%s" alt="Cover"/></div>`, uri)
		}
	}

	subtitleHTML := ""
	if subtitle != "" {
		subtitleHTML = fmt.Sprintf(`<h3 style="margin-bottom: 0.5em;">%s</h3>`, html.EscapeString(subtitle))
	}

	return content.SanitizeXhtml(fmt.Sprintf(`
<div style="text-align: center; margin-top: 5%%;">
  <h1>%s</h1>
  %s
  <p><b>Tác giả:</b> %s</p>
  %s
  %s
  <div style="text-align: justify;">%s</div>
</div>`, html.EscapeString(novelName), subtitleHTML, html.EscapeString(author), tagsHTML, coverHTML, content.SanitizeXhtml(summary)))
}

func (p *Packager) volumeSeparatorSection(volumeName, coverLocal string) string {
	coverHTML := ""
	if coverLocal != "" {
		if data, mime, _, ok := p.ProcessImage(coverLocal); ok {
			uri := dataURI(data, mime)
			coverHTML = fmt.Sprintf(`<img src="%s" alt="Vol Cover" style="max-height: 50vh;"/>`, uri)
		}
	}
	return fmt.Sprintf(`
<div style="text-align: center; margin-top: 30vh;">
  %s
  <h1>%s</h1>
</div>`, coverHTML, html.EscapeString(volumeName))
}

func (p *Packager) chapterSection(cc model.ChapterContent) string {
	rewritten := p.rewriteImagesToDataURI(cc.Content)
	return fmt.Sprintf(`<h2>%s</h2>%s`, html.EscapeString(cc.Title), rewritten)
}

func dataURI(data []byte, mime string) string {
	return dataurl.New(data, mime).String()
}

// addStylesheet writes the package-wide CSS to a temp file (go-epub's
// AddCSS reads from a filesystem path, not raw content) and registers it
// with book, returning the internal path to pass to AddSection and a
// cleanup function the caller must run once the build finishes.
func addStylesheet(book *epub.Epub) (internalPath string, cleanup func(), err error) {
	tmp, err := os.CreateTemp("", "hakodl-style-*.css")
	if err != nil {
		return "", func() {}, wrapf("creating stylesheet temp file", err)
	}
	cleanup = func() { os.Remove(tmp.Name()) }

	if _, err := tmp.WriteString(stylesheet); err != nil {
		tmp.Close()
		return "", cleanup, wrapf("writing stylesheet temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return "", cleanup, wrapf("closing stylesheet temp file", err)
	}

	internalPath, err = book.AddCSS(tmp.Name(), "style.css")
	if err != nil {
		return "", cleanup, wrapf("adding stylesheet", err)
	}
	return internalPath, cleanup, nil
}

// BuildMerged assembles every volume named by volumeRecordFilenames, in
// metadata order, into one container covering the whole novel.
func (p *Packager) BuildMerged(volumeRecordFilenames []string) (string, error) {
	p.ClearCache()

	meta, err := p.loadMetadata()
	if err != nil {
		return "", err
	}
	ordered := sortByMetadataOrder(volumeRecordFilenames, meta)

	book, err := p.newBook(meta.NovelName, meta.Author, meta.Summary)
	if err != nil {
		return "", err
	}
	cssPath, cleanup, err := addStylesheet(book)
	defer cleanup()
	if err != nil {
		return "", err
	}

	intro := p.introSection(meta.NovelName, meta.Author, meta.Summary, meta.CoverImageLocal, meta.Tags, "Toàn tập")
	if _, err := book.AddSection(intro, introTitle, "intro.xhtml", cssPath); err != nil {
		return "", wrapf("adding intro section", err)
	}

	for i, filename := range ordered {
		vol, err := p.loadVolumeRecord(filename)
		if err != nil {
			return "", err
		}

		sep := p.volumeSeparatorSection(vol.VolumeName, vol.CoverImageLocal)
		sepFile := "vol_" + strconv.Itoa(i) + ".xhtml"
		if _, err := book.AddSection(sep, vol.VolumeName, sepFile, cssPath); err != nil {
			return "", wrapf("adding volume separator for "+vol.VolumeName, err)
		}

		chapters := append([]model.ChapterContent(nil), vol.Chapters...)
		sort.Slice(chapters, func(a, b int) bool { return chapters[a].Index < chapters[b].Index })

		for _, cc := range chapters {
			cFile := fmt.Sprintf("v%d_c%d.xhtml", i, cc.Index)
			if _, err := book.AddSection(p.chapterSection(cc), cc.Title, cFile, cssPath); err != nil {
				return "", wrapf("adding chapter "+cc.Title, err)
			}
		}
	}

	outPath := p.mergedOutputPath(meta.NovelName)
	if err := ensureDir(outPath); err != nil {
		return "", wrapf("creating output directory", err)
	}
	if err := book.Write(outPath); err != nil {
		return "", wrapf("writing "+outPath, err)
	}
	return outPath, nil
}

// BuildVolume assembles one volume named by volumeRecordFilename into its
// own container.
func (p *Packager) BuildVolume(volumeRecordFilename string) (string, error) {
	p.ClearCache()

	meta, err := p.loadMetadata()
	if err != nil {
		return "", err
	}
	vol, err := p.loadVolumeRecord(volumeRecordFilename)
	if err != nil {
		return "", err
	}

	title := fmt.Sprintf("%s - %s", vol.VolumeName, meta.NovelName)
	book, err := p.newBook(title, meta.Author, meta.Summary)
	if err != nil {
		return "", err
	}
	cssPath, cleanup, err := addStylesheet(book)
	defer cleanup()
	if err != nil {
		return "", err
	}

	intro := p.introSection(meta.NovelName, meta.Author, meta.Summary, meta.CoverImageLocal, meta.Tags, vol.VolumeName)
	if _, err := book.AddSection(intro, introTitle, "intro.xhtml", cssPath); err != nil {
		return "", wrapf("adding intro section", err)
	}

	chapters := append([]model.ChapterContent(nil), vol.Chapters...)
	sort.Slice(chapters, func(a, b int) bool { return chapters[a].Index < chapters[b].Index })

	for _, cc := range chapters {
		cFile := fmt.Sprintf("c%d.xhtml", cc.Index)
		if _, err := book.AddSection(p.chapterSection(cc), cc.Title, cFile, cssPath); err != nil {
			return "", wrapf("adding chapter "+cc.Title, err)
		}
	}

	outPath := p.volumeOutputPath(meta.NovelName, vol.VolumeName)
	if err := ensureDir(outPath); err != nil {
		return "", wrapf("creating output directory", err)
	}
	if err := book.Write(outPath); err != nil {
		return "", wrapf("writing "+outPath, err)
	}
	return outPath, nil
}

func (p *Packager) mergedOutputPath(novelName string) string {
	filename := slugutil.Slug(novelName+" Full") + ".epub"
	if !p.cfg.CompressImages {
		return filepath.Join(p.cfg.OutputDir, filename)
	}
	return filepath.Join(p.novelSlugDir(novelName), "compressed", filename)
}

func (p *Packager) volumeOutputPath(novelName, volumeName string) string {
	filename := slugutil.Slug(volumeName) + ".epub"
	return filepath.Join(p.novelSlugDir(novelName), p.compressedOrOriginal(), filename)
}
