package sources

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"blogherald/internal/models"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Fetcher discovers candidate article URLs for a source and extracts
// readable text from individual pages.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

func NewFetcher(timeout time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// ListCandidates returns the deduplicated candidate article URLs discovered
// for src, in discovery order.
func (f *Fetcher) ListCandidates(ctx context.Context, src Source) ([]string, error) {
	var (
		urls []string
		err  error
	)
	if src.FeedURL != "" {
		urls, err = f.listFromFeed(ctx, src)
	} else {
		urls, err = f.listFromIndex(ctx, src)
	}
	if err != nil {
		return nil, err
	}
	f.logger.Debug("candidates listed", "source", src.Name, "count", len(urls))
	return urls, nil
}

// listFromFeed pulls entry links out of an RSS/Atom document. gofeed already
// prefers the alternate link relation; entries that only carry a bare link
// list fall back to its first element.
func (f *Fetcher) listFromFeed(ctx context.Context, src Source) ([]string, error) {
	body, err := f.get(ctx, src.FeedURL)
	if err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", src.FeedURL, err)
	}

	urls := make([]string, 0, len(feed.Items))
	seen := make(map[string]struct{}, len(feed.Items))
	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" && len(item.Links) > 0 {
			link = strings.TrimSpace(item.Links[0])
		}
		if link == "" {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		urls = append(urls, link)
	}
	return urls, nil
}

// listFromIndex scrapes a listing page with the source's CSS selector,
// resolves hrefs against the base URL, and keeps only paths that look like
// individual posts.
func (f *Fetcher) listFromIndex(ctx context.Context, src Source) ([]string, error) {
	body, err := f.get(ctx, src.IndexURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse index %s: %w", src.IndexURL, err)
	}
	base, err := url.Parse(src.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %s: %w", src.BaseURL, err)
	}

	var urls []string
	seen := make(map[string]struct{})
	doc.Find(src.LinkSelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		if !looksLikeArticle(abs.Path) {
			return
		}
		u := abs.String()
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	})
	return urls, nil
}

// looksLikeArticle rejects paths with fewer than two non-empty segments,
// which are almost always section listings rather than posts.
func looksLikeArticle(path string) bool {
	segments := 0
	for _, part := range strings.Split(path, "/") {
		if strings.TrimSpace(part) != "" {
			segments++
		}
	}
	return segments >= 2
}

// FetchArticle downloads a page and extracts its readable title and text.
func (f *Fetcher) FetchArticle(ctx context.Context, rawURL string) (models.Article, error) {
	body, err := f.get(ctx, rawURL)
	if err != nil {
		return models.Article{}, err
	}
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return models.Article{}, fmt.Errorf("parse url %s: %w", rawURL, err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return models.Article{}, fmt.Errorf("extract %s: %w", rawURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(spaceBlocks(article.Content)))
	if err != nil {
		return models.Article{}, fmt.Errorf("flatten %s: %w", rawURL, err)
	}
	text := normalizeText(doc.Text())
	if text == "" {
		return models.Article{}, fmt.Errorf("no readable content at %s", rawURL)
	}

	return models.Article{
		URL:   rawURL,
		Title: strings.TrimSpace(article.Title),
		Text:  text,
	}, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", rawURL, err)
	}
	return body, nil
}

var (
	reBlockOpen = regexp.MustCompile(`<(p|div|br|li|td|tr|h[1-6])\b`)
	reSpaces    = regexp.MustCompile(`\s+`)
)

// spaceBlocks pads block-level tags so flattening the HTML to text does not
// glue adjacent words together.
func spaceBlocks(html string) string {
	return reBlockOpen.ReplaceAllString(html, " <$1")
}

func normalizeText(s string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}
