package catalog

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cobaltgrove/hakodl/internal/model"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	cat := &model.Catalog{
		Name:      "T",
		URL:       "https://docln.net/truyen/5",
		Author:    "A",
		Summary:   "<p>summary</p>",
		MainCover: "https://i.docln.net/cover.jpg",
		Tags:      []string{"Fantasy", "Romance"},
		Volumes: []model.Volume{
			{
				Name:     "Volume 1",
				URL:      "https://docln.net/truyen/5/vol-1",
				CoverImg: "https://i.docln.net/v1.jpg",
				Chapters: []model.Chapter{
					{Name: "Chapter 1", URL: "https://docln.net/truyen/5/vol-1/chap-1"},
				},
			},
		},
	}

	raw, err := Serialize(cat)
	if err != nil {
		t.Fatalf("Serialize error: %v", err)
	}

	got, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("Deserialize error: %v", err)
	}
	if diff := cmp.Diff(cat, got); diff != "" {
		t.Fatalf("Deserialize(Serialize(x)) mismatch (-want +got):\n%s", diff)
	}

	raw2, err := Serialize(got)
	if err != nil {
		t.Fatalf("second Serialize error: %v", err)
	}
	if string(raw) != string(raw2) {
		t.Errorf("Serialize(Deserialize(Serialize(x))) != Serialize(x)")
	}
}

func TestDeserializeDefaultsMissingOptionalFields(t *testing.T) {
	raw := []byte(`{"name":"T","url":"https://docln.net/truyen/5"}`)
	cat, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("Deserialize error: %v", err)
	}
	if cat.Author != "" || cat.Summary != "" || cat.MainCover != "" {
		t.Errorf("expected empty optional string fields, got %+v", cat)
	}
	if len(cat.Tags) != 0 || len(cat.Volumes) != 0 {
		t.Errorf("expected empty optional array fields, got %+v", cat)
	}
}

func TestScenarioS1NoVolumes(t *testing.T) {
	cat := &model.Catalog{Name: "T", URL: "https://docln.net/truyen/5", Author: "A"}
	raw, err := Serialize(cat)
	if err != nil {
		t.Fatalf("Serialize error: %v", err)
	}
	got, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("Deserialize error: %v", err)
	}
	if got.Name != "T" || got.Author != "A" || len(got.Volumes) != 0 {
		t.Fatalf("got %+v, want name=T author=A volumes=[]", got)
	}
}
