package epubpkg

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cobaltgrove/hakodl/internal/imaging"
	"github.com/cobaltgrove/hakodl/internal/model"
)

func samplePNGBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding sample png: %s", err)
	}
	return buf.Bytes()
}

func sampleJPEGBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{B: 200, A: 255})
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encoding sample jpeg: %s", err)
	}
	return buf.Bytes()
}

// seedBaseDir writes a metadata.json, two volume records (with one chapter
// each, each chapter referencing one images/... file), and the referenced
// image files, returning the base directory and the volume record
// filenames in declared order.
func seedBaseDir(t *testing.T) (dir string, volumeFiles []string) {
	t.Helper()
	dir = t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "images"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "images", "main_cover.png"), samplePNGBytes(t), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "images", "vol_cover_v1.jpg"), sampleJPEGBytes(t), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "images", "v1_chap_0_img_0.png"), samplePNGBytes(t), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "images", "v2_chap_0_img_0.jpg"), sampleJPEGBytes(t), 0o644); err != nil {
		t.Fatal(err)
	}

	meta := model.NovelRecord{
		NovelName:       "Sample Novel",
		Author:          "Sample Author",
		Summary:         "A summary.",
		Tags:            []string{"fantasy"},
		CoverImageLocal: "images/main_cover.png",
		URL:             "https://ln.hako.vn/truyen/sample",
		Volumes: []model.VolumeDescriptor{
			{Order: 1, Name: "Volume 1", Filename: "volume-1.json"},
			{Order: 2, Name: "Volume 2", Filename: "volume-2.json"},
		},
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), raw, 0o644); err != nil {
		t.Fatal(err)
	}

	vol1 := model.VolumeRecord{
		VolumeName:      "Volume 1",
		CoverImageLocal: "images/vol_cover_v1.jpg",
		Chapters: []model.ChapterContent{
			{Title: "Chapter 1", Content: `<p>hello</p><img src="images/v1_chap_0_img_0.png">`, Index: 0},
		},
	}
	writeJSON(t, filepath.Join(dir, "volume-1.json"), vol1)

	vol2 := model.VolumeRecord{
		VolumeName: "Volume 2",
		Chapters: []model.ChapterContent{
			{Title: "Chapter 1", Content: `<p>world</p><img src="images/v2_chap_0_img_0.jpg">`, Index: 0},
		},
	}
	writeJSON(t, filepath.Join(dir, "volume-2.json"), vol2)

	return dir, []string{"volume-1.json", "volume-2.json"}
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
}

func zipFileNames(t *testing.T, path string) []string {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("opening %s as zip: %s", path, err)
	}
	defer r.Close()
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names
}

func zipFileContent(t *testing.T, path, name string) string {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("opening %s as zip: %s", path, err)
	}
	defer r.Close()
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, name) {
			rc, err := f.Open()
			if err != nil {
				t.Fatal(err)
			}
			defer rc.Close()
			var buf bytes.Buffer
			if _, err := buf.ReadFrom(rc); err != nil {
				t.Fatal(err)
			}
			return buf.String()
		}
	}
	t.Fatalf("no file matching %q in %s; files: %v", name, path, zipFileNames(t, path))
	return ""
}

// TestBuildMergedVolumeAndIntroSectionCount covers property #15: BuildMerged
// produces exactly |files| volume separator sections plus one intro.
func TestBuildMergedVolumeAndIntroSectionCount(t *testing.T) {
	dir, files := seedBaseDir(t)
	out := t.TempDir()

	p := New(dir, Config{OutputDir: out}, imaging.NewStdTranscoder())
	epubPath, err := p.BuildMerged(files)
	if err != nil {
		t.Fatalf("BuildMerged: %s", err)
	}

	names := zipFileNames(t, epubPath)
	introCount, sepCount := 0, 0
	for _, n := range names {
		if strings.HasSuffix(n, "intro.xhtml") {
			introCount++
		}
		if strings.Contains(n, "vol_") && strings.HasSuffix(n, ".xhtml") {
			sepCount++
		}
	}
	if introCount != 1 {
		t.Errorf("intro section count = %d, want 1 (files: %v)", introCount, names)
	}
	if sepCount != len(files) {
		t.Errorf("volume separator section count = %d, want %d (files: %v)", sepCount, len(files), names)
	}
}

// TestBuildVolumeProducesDistinctContainers covers property #16.
func TestBuildVolumeProducesDistinctContainers(t *testing.T) {
	dir, files := seedBaseDir(t)
	out := t.TempDir()
	p := New(dir, Config{OutputDir: out}, imaging.NewStdTranscoder())

	var paths []string
	for _, f := range files {
		path, err := p.BuildVolume(f)
		if err != nil {
			t.Fatalf("BuildVolume(%s): %s", f, err)
		}
		paths = append(paths, path)
	}

	if paths[0] == paths[1] {
		t.Errorf("BuildVolume produced the same output path for distinct volumes: %s", paths[0])
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("BuildVolume output missing on disk: %s: %s", path, err)
		}
	}
}

// TestCompressionModeMimeInvariance covers property #17: with
// compressImages=true every embedded image is image/jpeg; with false, MIME
// matches the source extension.
func TestCompressionModeMimeInvariance(t *testing.T) {
	dir, files := seedBaseDir(t)

	t.Run("uncompressed", func(t *testing.T) {
		out := t.TempDir()
		p := New(dir, Config{OutputDir: out, CompressImages: false}, imaging.NewStdTranscoder())
		epubPath, err := p.BuildMerged(files)
		if err != nil {
			t.Fatalf("BuildMerged: %s", err)
		}

		ch1 := zipFileContent(t, epubPath, "v0_c0.xhtml")
		if !strings.Contains(ch1, "data:image/png;base64,") {
			t.Errorf("uncompressed volume-1 chapter image is not image/png: %s", ch1)
		}
		ch2 := zipFileContent(t, epubPath, "v1_c0.xhtml")
		if !strings.Contains(ch2, "data:image/jpeg;base64,") {
			t.Errorf("uncompressed volume-2 chapter image is not image/jpeg: %s", ch2)
		}
	})

	t.Run("compressed", func(t *testing.T) {
		out := t.TempDir()
		p := New(dir, Config{OutputDir: out, CompressImages: true}, imaging.NewStdTranscoder())
		epubPath, err := p.BuildMerged(files)
		if err != nil {
			t.Fatalf("BuildMerged: %s", err)
		}

		ch1 := zipFileContent(t, epubPath, "v0_c0.xhtml")
		if !strings.Contains(ch1, "data:image/jpeg;base64,") {
			t.Errorf("compressed volume-1 chapter image is not image/jpeg: %s", ch1)
		}
		ch2 := zipFileContent(t, epubPath, "v1_c0.xhtml")
		if !strings.Contains(ch2, "data:image/jpeg;base64,") {
			t.Errorf("compressed volume-2 chapter image is not image/jpeg: %s", ch2)
		}
	})
}

func TestProcessImageMemoizesAndRejectsMissing(t *testing.T) {
	dir, _ := seedBaseDir(t)
	p := New(dir, Config{OutputDir: t.TempDir()}, imaging.NewStdTranscoder())

	_, _, _, ok := p.ProcessImage("images/does-not-exist.png")
	if ok {
		t.Errorf("ProcessImage accepted a missing file")
	}

	data1, mime1, rel1, ok1 := p.ProcessImage("images/main_cover.png")
	if !ok1 || mime1 != "image/png" || rel1 != "images/main_cover.png" {
		t.Fatalf("ProcessImage(main_cover.png) = %v %v %v %v", data1 != nil, mime1, rel1, ok1)
	}

	data2, mime2, rel2, ok2 := p.ProcessImage("images/main_cover.png")
	if !ok2 || mime2 != mime1 || rel2 != rel1 || string(data2) != string(data1) {
		t.Errorf("ProcessImage did not return a memoized identical result on second call")
	}
}

func TestMergedOutputPathRules(t *testing.T) {
	p := New(t.TempDir(), Config{OutputDir: "out", CompressImages: false}, imaging.NewStdTranscoder())
	got := p.mergedOutputPath("My Novel")
	want := filepath.Join("out", "My_Novel_Full.epub")
	if got != want {
		t.Errorf("mergedOutputPath(uncompressed) = %q, want %q", got, want)
	}

	p2 := New(t.TempDir(), Config{OutputDir: "out", CompressImages: true}, imaging.NewStdTranscoder())
	got2 := p2.mergedOutputPath("My Novel")
	want2 := filepath.Join("out", "My_Novel", "compressed", "My_Novel_Full.epub")
	if got2 != want2 {
		t.Errorf("mergedOutputPath(compressed) = %q, want %q", got2, want2)
	}
}
