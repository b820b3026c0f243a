package sources

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"blogherald/internal/models"
)

// Source describes one watched blog and how its articles are discovered.
// Exactly one of FeedURL or IndexURL is set; index sources also carry the
// link selector and the base URL that relative hrefs resolve against.
type Source struct {
	Name         string             `yaml:"name"`
	FeedURL      string             `yaml:"feedUrl,omitempty"`
	IndexURL     string             `yaml:"indexUrl,omitempty"`
	LinkSelector string             `yaml:"linkSelector,omitempty"`
	BaseURL      string             `yaml:"baseUrl,omitempty"`
	ContentType  models.ContentType `yaml:"contentType"`
}

// Defaults is the built-in watch list.
func Defaults() []Source {
	return []Source{
		{
			Name:        "GitHub Engineering",
			FeedURL:     "https://github.blog/engineering/feed/",
			ContentType: models.ContentTechnical,
		},
		{
			Name:        "Cloudflare Blog",
			FeedURL:     "https://blog.cloudflare.com/rss/",
			ContentType: models.ContentTechnical,
		},
		{
			Name:        "Netflix TechBlog",
			FeedURL:     "https://netflixtechblog.com/feed",
			ContentType: models.ContentTechnical,
		},
		{
			Name:         "OpenAI News",
			IndexURL:     "https://openai.com/news/",
			LinkSelector: `a[href^="/index/"]`,
			BaseURL:      "https://openai.com",
			ContentType:  models.ContentAnnouncement,
		},
		{
			Name:         "Anthropic News",
			IndexURL:     "https://www.anthropic.com/news",
			LinkSelector: `a[href^="/news/"]`,
			BaseURL:      "https://www.anthropic.com",
			ContentType:  models.ContentAnnouncement,
		},
		{
			Name:         "Hugging Face Blog",
			IndexURL:     "https://huggingface.co/blog",
			LinkSelector: `a[href^="/blog/"]`,
			BaseURL:      "https://huggingface.co",
			ContentType:  models.ContentTechnical,
		},
	}
}

// Load returns the watch list from a YAML file when path is set, otherwise
// the defaults. Either way the list is validated before use.
func Load(path string) ([]Source, error) {
	if path == "" {
		return Defaults(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	var doc struct {
		Sources []Source `yaml:"sources"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}
	if len(doc.Sources) == 0 {
		return nil, fmt.Errorf("sources file %s lists no sources", path)
	}
	if err := Validate(doc.Sources); err != nil {
		return nil, fmt.Errorf("sources file %s: %w", path, err)
	}
	return doc.Sources, nil
}

// Validate checks that every source is well-formed and names are unique.
func Validate(list []Source) error {
	names := make(map[string]struct{}, len(list))
	for _, src := range list {
		if src.Name == "" {
			return fmt.Errorf("source with empty name")
		}
		if _, dup := names[src.Name]; dup {
			return fmt.Errorf("duplicate source name %q", src.Name)
		}
		names[src.Name] = struct{}{}

		switch {
		case src.FeedURL != "" && src.IndexURL != "":
			return fmt.Errorf("source %q sets both feedUrl and indexUrl", src.Name)
		case src.FeedURL == "" && src.IndexURL == "":
			return fmt.Errorf("source %q sets neither feedUrl nor indexUrl", src.Name)
		case src.IndexURL != "" && (src.LinkSelector == "" || src.BaseURL == ""):
			return fmt.Errorf("source %q needs linkSelector and baseUrl for index scraping", src.Name)
		}

		if !src.ContentType.Valid() {
			return fmt.Errorf("source %q has unknown contentType %q", src.Name, src.ContentType)
		}
	}
	return nil
}
