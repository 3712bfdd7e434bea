// Package model holds the data shapes shared across the acquisition,
// content-normalization and packaging stages (spec §3).
package model

// Chapter is the catalog form of a chapter: a display name and its source
// page URL. It carries no content until the Chapter Downloader materializes
// it into a ChapterContent.
type Chapter struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Volume is an ordered sequence of Chapters under one display name.
type Volume struct {
	Name     string    `json:"name"`
	URL      string    `json:"url"`
	CoverImg string    `json:"coverImg"`
	Chapters []Chapter `json:"chapters"`
}

// Catalog is the parsed representation of a novel landing page.
type Catalog struct {
	Name      string   `json:"name"`
	URL       string   `json:"url"`
	Author    string   `json:"author"`
	Summary   string   `json:"summary"`
	MainCover string   `json:"mainCover"`
	Tags      []string `json:"tags"`
	Volumes   []Volume `json:"volumes"`
}

// ChapterContent is a materialized chapter: fetched, cleaned and indexed
// within its volume.
type ChapterContent struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Index   int    `json:"index"`
}

// VolumeRecord is the on-disk, persisted form of one volume's download
// state (one JSON file per volume, §6).
type VolumeRecord struct {
	VolumeName      string           `json:"volumeName"`
	VolumeURL       string           `json:"volumeUrl"`
	CoverImageLocal string           `json:"coverImageLocal"`
	Chapters        []ChapterContent `json:"chapters"`
}

// VolumeDescriptor is one entry of a Novel Record's volume list.
type VolumeDescriptor struct {
	Order    int    `json:"order"`
	Name     string `json:"name"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// NovelRecord is the persisted `metadata.json` shape for a novel's base
// directory.
type NovelRecord struct {
	NovelName       string             `json:"novelName"`
	Author          string             `json:"author"`
	Tags            []string           `json:"tags"`
	Summary         string             `json:"summary"`
	CoverImageLocal string             `json:"coverImageLocal"`
	URL             string             `json:"url"`
	Volumes         []VolumeDescriptor `json:"volumes"`
}

// Header is a name/value request-header pair. No CLI flag reads this
// shape; the fabric takes its headers from network.Config.Headers.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
