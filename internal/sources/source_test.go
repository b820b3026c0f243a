package sources

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"blogherald/internal/models"
)

func TestDefaultsAreValid(t *testing.T) {
	list := Defaults()
	if len(list) == 0 {
		t.Fatal("default watch list is empty")
	}
	if err := Validate(list); err != nil {
		t.Fatalf("Validate(Defaults()): %v", err)
	}
}

func TestLoadWithoutPathUsesDefaults(t *testing.T) {
	list, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(list) != len(Defaults()) {
		t.Errorf("got %d sources, want the %d defaults", len(list), len(Defaults()))
	}
}

func TestLoadYAMLFile(t *testing.T) {
	doc := `sources:
  - name: My Blog
    feedUrl: https://my.blog/rss.xml
    contentType: technical
  - name: Launch Notes
    indexUrl: https://launch.example/news
    linkSelector: 'a[href^="/news/"]'
    baseUrl: https://launch.example
    contentType: announcement
`
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	list, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d sources, want 2", len(list))
	}
	if list[0].Name != "My Blog" || list[0].FeedURL != "https://my.blog/rss.xml" {
		t.Errorf("first source = %+v", list[0])
	}
	if list[1].LinkSelector != `a[href^="/news/"]` {
		t.Errorf("selector = %q", list[1].LinkSelector)
	}
	if list[1].ContentType != models.ContentAnnouncement {
		t.Errorf("content type = %q", list[1].ContentType)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for a missing sources file")
	}
}

func TestValidateRejectsBadSources(t *testing.T) {
	cases := []struct {
		name string
		src  Source
		want string
	}{
		{
			name: "no strategy",
			src:  Source{Name: "X", ContentType: models.ContentTechnical},
			want: "neither",
		},
		{
			name: "both strategies",
			src: Source{
				Name: "X", FeedURL: "https://a/f", IndexURL: "https://a/i",
				LinkSelector: "a", BaseURL: "https://a", ContentType: models.ContentTechnical,
			},
			want: "both",
		},
		{
			name: "index without selector",
			src:  Source{Name: "X", IndexURL: "https://a/i", BaseURL: "https://a", ContentType: models.ContentTechnical},
			want: "linkSelector",
		},
		{
			name: "bad content type",
			src:  Source{Name: "X", FeedURL: "https://a/f", ContentType: "spicy"},
			want: "contentType",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate([]Source{tc.src})
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q should mention %q", err, tc.want)
			}
		})
	}
}

func TestValidateRejectsDuplicateNames(t *testing.T) {
	list := []Source{
		{Name: "Same", FeedURL: "https://a/f", ContentType: models.ContentTechnical},
		{Name: "Same", FeedURL: "https://b/f", ContentType: models.ContentTechnical},
	}
	err := Validate(list)
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("want duplicate-name error, got %v", err)
	}
}
