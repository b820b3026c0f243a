package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v2"

	"blogherald/internal/models"
)

// researchUnavailable is what the thread shows when every research path has
// failed. It is a fixed string so the publisher can always post reply two.
const researchUnavailable = "_No outside context found for this one. The search came up dry._"

type responsesRequest struct {
	Model           string          `json:"model"`
	Input           string          `json:"input"`
	Tools           []responsesTool `json:"tools,omitempty"`
	MaxOutputTokens int             `json:"max_output_tokens,omitempty"`
}

type responsesTool struct {
	Type string `json:"type"`
}

// responsesReply mirrors just the slice of the Responses API we read: output
// messages carrying text parts.
type responsesReply struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// Research builds a web-search-grounded context report for an article. It is
// best-effort by contract: a failed search call falls back to a plain
// completion, and a failed fallback yields the fixed unavailable string.
// Research never returns an error.
func (c *Client) Research(ctx context.Context, art models.Article) string {
	if !c.researchEnabled {
		return researchUnavailable
	}

	report, err := c.searchResearch(ctx, art)
	if err == nil && strings.TrimSpace(report) != "" {
		return strings.TrimSpace(report)
	}
	if err != nil {
		c.logger.Warn("search-backed research failed, falling back", "url", art.URL, "error", err)
	}

	report, err = c.plainResearch(ctx, art)
	if err != nil || strings.TrimSpace(report) == "" {
		if err != nil {
			c.logger.Warn("fallback research failed", "url", art.URL, "error", err)
		}
		return researchUnavailable
	}
	return strings.TrimSpace(report)
}

// searchResearch calls the Responses API directly over HTTP with the
// web_search tool enabled.
func (c *Client) searchResearch(ctx context.Context, art models.Article) (string, error) {
	payload, err := json.Marshal(responsesRequest{
		Model:           c.researchModel,
		Input:           researchPrompt(art, true),
		Tools:           []responsesTool{{Type: "web_search"}},
		MaxOutputTokens: 900,
	})
	if err != nil {
		return "", fmt.Errorf("marshal responses request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.responsesURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build responses request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("responses request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("responses api %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var reply responsesReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("decode responses reply: %w", err)
	}

	var sb strings.Builder
	for _, item := range reply.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Text != "" {
				sb.WriteString(part.Text)
			}
		}
	}
	return sb.String(), nil
}

// plainResearch retries without search, same prompt minus the search lead.
func (c *Client) plainResearch(ctx context.Context, art models.Article) (string, error) {
	response, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.researchModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(researchPrompt(art, false)),
		},
		Temperature: openai.Float(0.4),
		MaxTokens:   openai.Int(900),
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}
	return response.Choices[0].Message.Content, nil
}

func researchPrompt(art models.Article, withSearch bool) string {
	lead := "From what you already know, put this article in context."
	if withSearch {
		lead = "Search the web for reactions to and context around this article."
	}
	return fmt.Sprintf(`%s

Article: %s
URL: %s

Article text:
%s

Write 3-5 short bullet points: related work, prior art, notable caveats,
how this fits the current landscape. Include a markdown link when you cite
something. Finish with a one-line take on whether the post lives up to its
title.`, lead, art.Title, art.URL, truncate(art.Text, 4000))
}
