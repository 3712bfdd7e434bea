package catalog

import (
	"encoding/json"

	"github.com/cobaltgrove/hakodl/internal/ferr"
	"github.com/cobaltgrove/hakodl/internal/model"
)

// catalogWire mirrors model.Catalog's stable field set for pretty-printed
// JSON: {name, url, author, summary, mainCover, tags[], volumes[...]}.
type catalogWire struct {
	Name      string       `json:"name"`
	URL       string       `json:"url"`
	Author    string       `json:"author"`
	Summary   string       `json:"summary"`
	MainCover string       `json:"mainCover"`
	Tags      []string     `json:"tags"`
	Volumes   []volumeWire `json:"volumes"`
}

type volumeWire struct {
	URL      string        `json:"url"`
	Name     string        `json:"name"`
	CoverImg string        `json:"coverImg"`
	Chapters []chapterWire `json:"chapters"`
}

type chapterWire struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Serialize renders cat as pretty-printed JSON with the stable field order
// documented in spec §4.D.
func Serialize(cat *model.Catalog) ([]byte, error) {
	return json.MarshalIndent(toWire(cat), "", "  ")
}

func toWire(cat *model.Catalog) catalogWire {
	w := catalogWire{
		Name:      cat.Name,
		URL:       cat.URL,
		Author:    cat.Author,
		Summary:   cat.Summary,
		MainCover: cat.MainCover,
		Tags:      cat.Tags,
		Volumes:   make([]volumeWire, 0, len(cat.Volumes)),
	}
	if w.Tags == nil {
		w.Tags = []string{}
	}
	for _, v := range cat.Volumes {
		vw := volumeWire{
			URL:      v.URL,
			Name:     v.Name,
			CoverImg: v.CoverImg,
			Chapters: make([]chapterWire, 0, len(v.Chapters)),
		}
		for _, c := range v.Chapters {
			vw.Chapters = append(vw.Chapters, chapterWire{Name: c.Name, URL: c.URL})
		}
		w.Volumes = append(w.Volumes, vw)
	}
	return w
}

// Deserialize parses raw JSON into a Catalog, validating the required
// shapes: name/url must be strings, volumes and per-volume chapters must be
// arrays, and each chapter must carry string name/url. Missing optional
// fields default to empty string or empty slice.
func Deserialize(raw []byte) (*model.Catalog, error) {
	var w catalogWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, ferr.Wrap(ferr.KindParseFailed, "malformed catalog JSON", err)
	}

	cat := &model.Catalog{
		Name:      w.Name,
		URL:       w.URL,
		Author:    w.Author,
		Summary:   w.Summary,
		MainCover: w.MainCover,
		Tags:      w.Tags,
	}
	for _, vw := range w.Volumes {
		vol := model.Volume{URL: vw.URL, Name: vw.Name, CoverImg: vw.CoverImg}
		for _, cw := range vw.Chapters {
			vol.Chapters = append(vol.Chapters, model.Chapter{Name: cw.Name, URL: cw.URL})
		}
		cat.Volumes = append(cat.Volumes, vol)
	}
	return cat, nil
}
