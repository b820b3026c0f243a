package ai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"blogherald/internal/config"
	"blogherald/internal/models"
)

// maxArticleChars bounds how much article text goes into a prompt.
const maxArticleChars = 15000

// summarySeparator divides the headline unit from the deeper analysis in
// raw model output.
const summarySeparator = "---"

const defaultResponsesURL = "https://api.openai.com/v1/responses"

// Client wraps every OpenAI-backed step: summarizing, research, and
// illustration.
type Client struct {
	api             openai.Client
	httpClient      *http.Client
	apiKey          string
	summaryModel    string
	researchModel   string
	responsesURL    string
	researchEnabled bool
	imagesEnabled   bool
	logger          *slog.Logger
}

func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAIAPIKey)}
	responsesURL := defaultResponsesURL
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
		responsesURL = strings.TrimSuffix(cfg.OpenAIBaseURL, "/") + "/responses"
	}
	return &Client{
		api:             openai.NewClient(opts...),
		httpClient:      &http.Client{Timeout: 120 * time.Second},
		apiKey:          cfg.OpenAIAPIKey,
		summaryModel:    cfg.SummaryModel,
		researchModel:   cfg.ResearchModel,
		responsesURL:    responsesURL,
		researchEnabled: cfg.EnableResearch,
		imagesEnabled:   cfg.EnableImages,
		logger:          logger,
	}
}

// Summarize turns article text into the two-part thread summary. The model
// is asked to put a separator line between the headline unit and the longer
// analysis; output without one degrades to headline-only.
func (c *Client) Summarize(ctx context.Context, art models.Article) (models.Summary, error) {
	response, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.summaryModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(summarySystemPrompt),
			openai.UserMessage(summaryPrompt(art, truncate(art.Text, maxArticleChars))),
		},
		Temperature: openai.Float(0.7),
		MaxTokens:   openai.Int(1200),
	})
	if err != nil {
		return models.Summary{}, fmt.Errorf("openai request failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return models.Summary{}, fmt.Errorf("no response from openai")
	}
	return SplitSummary(response.Choices[0].Message.Content), nil
}

// SplitSummary splits raw model output on the first separator. A missing
// separator leaves everything in the headline.
func SplitSummary(raw string) models.Summary {
	head, rest, found := strings.Cut(raw, summarySeparator)
	summary := models.Summary{Headline: strings.TrimSpace(head)}
	if found {
		summary.Analysis = strings.TrimSpace(rest)
	}
	return summary
}

// Illustrate renders a thread illustration from the headline verse and
// returns its URL, or "" when image generation is switched off. OpenAI image
// URLs expire quickly, so callers should post them right away.
func (c *Client) Illustrate(ctx context.Context, headline string) (string, error) {
	if !c.imagesEnabled {
		return "", nil
	}

	prompt := "A minimalist ink-wash illustration inspired by this haiku. No text, no lettering.\n\n" + headline
	response, err := c.api.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModelDallE3,
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize1024x1024,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("image generation failed: %w", err)
	}
	if len(response.Data) == 0 || response.Data[0].URL == "" {
		return "", fmt.Errorf("no image in response")
	}
	return response.Data[0].URL, nil
}

const summarySystemPrompt = "You are blogherald, a careful reader of engineering blogs. You announce new posts to a busy team channel and never oversell."

func summaryPrompt(art models.Article, text string) string {
	angle := "what was built, why an engineer should care, and how it works underneath"
	if art.Type == models.ContentAnnouncement {
		angle = "what was announced, who it affects, and what changes in practice"
	}
	return fmt.Sprintf(`Summarize this article for a team chat thread.

Write a haiku (three short lines) that captures the essence, then a blank
line, then one plain sentence that makes someone want to open the link.

After that, write a line containing only %s, and below it a longer
explanation covering %s. Short paragraphs, no headers.

Title: %s
URL: %s

Article text:
%s`, summarySeparator, angle, art.Title, art.URL, text)
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
