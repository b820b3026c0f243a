package ai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"blogherald/internal/config"
	"blogherald/internal/models"
)

func chatJSON(content string) string {
	raw, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
	})
	return string(raw)
}

func newTestClient(t *testing.T, handler http.Handler, research, images bool) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		OpenAIAPIKey:   "sk-test",
		OpenAIBaseURL:  srv.URL,
		SummaryModel:   "gpt-4o",
		ResearchModel:  "gpt-4o-mini",
		EnableResearch: research,
		EnableImages:   images,
	}
	return NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSplitSummary(t *testing.T) {
	cases := []struct {
		name         string
		raw          string
		wantHeadline string
		wantAnalysis string
	}{
		{
			name:         "verse hook and analysis",
			raw:          "line one\nline two\nline three\n\na hook sentence\n---\nthe deeper analysis",
			wantHeadline: "line one\nline two\nline three\n\na hook sentence",
			wantAnalysis: "the deeper analysis",
		},
		{
			name:         "missing separator keeps everything in the headline",
			raw:          "just a headline, no analysis",
			wantHeadline: "just a headline, no analysis",
			wantAnalysis: "",
		},
		{
			name:         "whitespace around the separator is trimmed",
			raw:          "  head  \n---\n  body  ",
			wantHeadline: "head",
			wantAnalysis: "body",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitSummary(tc.raw)
			if got.Headline != tc.wantHeadline {
				t.Errorf("Headline = %q, want %q", got.Headline, tc.wantHeadline)
			}
			if got.Analysis != tc.wantAnalysis {
				t.Errorf("Analysis = %q, want %q", got.Analysis, tc.wantAnalysis)
			}
		})
	}
}

func TestTruncateRuneSafe(t *testing.T) {
	if got := truncate("short", 100); got != "short" {
		t.Errorf("truncate below limit changed the string: %q", got)
	}

	s := strings.Repeat("é", 10) // 2 bytes per rune
	got := truncate(s, 11)
	if len(got) != 10 {
		t.Errorf("truncate split a rune: got %d bytes", len(got))
	}
	for _, r := range got {
		if r != 'é' {
			t.Fatalf("truncate produced garbage rune %q", r)
		}
	}
}

func TestSummarize(t *testing.T) {
	prompts := make(chan string, 1)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		select {
		case prompts <- string(body):
		default:
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, chatJSON("quiet cache wakes up\nkeys rebuilt before they rot\ndogpile goes hungry\n\nA rebuild strategy that ends cache stampedes.\n---\nThe post walks through the lease-based rebuild design."))
	})
	client := newTestClient(t, handler, false, false)

	art := models.Article{
		URL:   "https://blog.example/posts/stampede",
		Title: "Anatomy of a Cache Stampede",
		Text:  strings.Repeat("x", maxArticleChars) + "TAIL-MARKER",
		Type:  models.ContentTechnical,
	}
	sum, err := client.Summarize(context.Background(), art)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	wantHead := "quiet cache wakes up\nkeys rebuilt before they rot\ndogpile goes hungry\n\nA rebuild strategy that ends cache stampedes."
	if sum.Headline != wantHead {
		t.Errorf("Headline = %q", sum.Headline)
	}
	if sum.Analysis != "The post walks through the lease-based rebuild design." {
		t.Errorf("Analysis = %q", sum.Analysis)
	}

	prompt := <-prompts
	if strings.Contains(prompt, "TAIL-MARKER") {
		t.Error("article text was not truncated before prompting")
	}
	if !strings.Contains(prompt, "Anatomy of a Cache Stampede") {
		t.Error("prompt should carry the article title")
	}
}

func TestResearchPrefersSearch(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/responses":
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"output":[{"type":"reasoning"},{"type":"message","content":[{"type":"output_text","text":"- grounded context bullet"}]}]}`)
		default:
			t.Errorf("unexpected call to %s", r.URL.Path)
			http.NotFound(w, r)
		}
	})
	client := newTestClient(t, handler, true, false)

	got := client.Research(context.Background(), models.Article{URL: "https://a/b", Title: "T", Text: "body"})
	if got != "- grounded context bullet" {
		t.Errorf("Research = %q", got)
	}
}

func TestResearchFallsBackToPlainCompletion(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/responses":
			http.Error(w, `{"error":{"message":"tool not available"}}`, http.StatusBadRequest)
		case "/chat/completions":
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, chatJSON("- fallback context bullet"))
		default:
			http.NotFound(w, r)
		}
	})
	client := newTestClient(t, handler, true, false)

	got := client.Research(context.Background(), models.Article{URL: "https://a/b", Title: "T", Text: "body"})
	if got != "- fallback context bullet" {
		t.Errorf("Research = %q", got)
	}
}

func TestResearchDegradesToUnavailable(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"nope"}}`, http.StatusBadRequest)
	})
	client := newTestClient(t, handler, true, false)

	got := client.Research(context.Background(), models.Article{URL: "https://a/b", Title: "T", Text: "body"})
	if got != researchUnavailable {
		t.Errorf("Research = %q, want the fixed unavailable string", got)
	}
}

func TestResearchDisabledSkipsAPI(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	})
	client := newTestClient(t, handler, false, false)

	got := client.Research(context.Background(), models.Article{URL: "https://a/b"})
	if got != researchUnavailable {
		t.Errorf("Research = %q", got)
	}
	if calls.Load() != 0 {
		t.Errorf("disabled research still made %d API calls", calls.Load())
	}
}

func TestIllustrate(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"created":1,"data":[{"url":"https://images.example/gen.png"}]}`)
	})
	client := newTestClient(t, handler, false, true)

	url, err := client.Illustrate(context.Background(), "quiet cache wakes up")
	if err != nil {
		t.Fatalf("Illustrate: %v", err)
	}
	if url != "https://images.example/gen.png" {
		t.Errorf("url = %q", url)
	}
}

func TestIllustrateDisabled(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	})
	client := newTestClient(t, handler, false, false)

	url, err := client.Illustrate(context.Background(), "verse")
	if err != nil || url != "" {
		t.Fatalf("disabled Illustrate = (%q, %v), want empty and nil", url, err)
	}
	if calls.Load() != 0 {
		t.Errorf("disabled images still made %d API calls", calls.Load())
	}
}
