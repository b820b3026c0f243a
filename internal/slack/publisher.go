package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	slackapi "github.com/slack-go/slack"

	"blogherald/internal/models"
)

const (
	analysisLabel = "*Why it matters*"
	researchLabel = "*Field notes*"
)

// emptyAnalysisFallback keeps reply one postable when the model skipped the
// separator and everything landed in the headline.
const emptyAnalysisFallback = "_The model kept it all in the haiku this time._"

// Publisher posts article threads and operational notices to Slack.
type Publisher struct {
	api     *slackapi.Client
	primary string
	logger  *slog.Logger
}

func NewPublisher(token, primaryChannel string, logger *slog.Logger, opts ...slackapi.Option) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		api:     slackapi.New(token, opts...),
		primary: primaryChannel,
		logger:  logger,
	}
}

// PrimaryChannel is the one destination whose posts are deduplicated
// through seen-state.
func (p *Publisher) PrimaryChannel() string {
	return p.primary
}

// PostThread publishes the root message and its two fixed replies and
// returns the thread timestamp. When placeholderTS names an existing
// progress message, that message is rewritten into the root instead of
// posting a new one. A failed root is an error; a failed reply is logged
// and the thread stands.
func (p *Publisher) PostThread(ctx context.Context, art models.Article, sum models.Summary, research, channel, placeholderTS string) (string, error) {
	if channel == "" {
		channel = p.primary
	}
	root := FormatRoot(sum.Headline, art.URL)

	var threadTS string
	if placeholderTS != "" {
		_, ts, _, err := p.api.UpdateMessageContext(ctx, channel, placeholderTS, slackapi.MsgOptionText(root, false))
		if err != nil {
			return "", fmt.Errorf("convert placeholder into root: %w", err)
		}
		threadTS = ts
	} else {
		_, ts, err := p.api.PostMessageContext(ctx, channel, slackapi.MsgOptionText(root, false))
		if err != nil {
			return "", fmt.Errorf("post thread root: %w", err)
		}
		threadTS = ts
	}

	analysis := strings.TrimSpace(sum.Analysis)
	if analysis == "" {
		analysis = emptyAnalysisFallback
	}
	replies := []string{
		labeled(analysisLabel, Mrkdwn(analysis)),
		labeled(researchLabel, Mrkdwn(research)),
	}
	for i, text := range replies {
		_, _, err := p.api.PostMessageContext(ctx, channel,
			slackapi.MsgOptionText(text, false),
			slackapi.MsgOptionTS(threadTS),
		)
		if err != nil {
			p.logger.Warn("thread reply failed", "channel", channel, "reply", i+1, "error", err)
		}
	}
	return threadTS, nil
}

func labeled(label, body string) string {
	return label + "\n" + Truncate(body, blockLimit-len(label)-1)
}

// PostStatus sends a standalone notice. An empty channel means the primary.
func (p *Publisher) PostStatus(ctx context.Context, channel, text string) error {
	if channel == "" {
		channel = p.primary
	}
	_, _, err := p.api.PostMessageContext(ctx, channel, slackapi.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("post status: %w", err)
	}
	return nil
}

// PostImageReply attaches a generated illustration to an existing thread.
func (p *Publisher) PostImageReply(ctx context.Context, channel, threadTS, imageURL, caption string) error {
	if channel == "" {
		channel = p.primary
	}
	var title *slackapi.TextBlockObject
	if caption != "" {
		title = slackapi.NewTextBlockObject(slackapi.PlainTextType, caption, false, false)
	}
	_, _, err := p.api.PostMessageContext(ctx, channel,
		slackapi.MsgOptionBlocks(slackapi.NewImageBlock(imageURL, "generated illustration", "", title)),
		slackapi.MsgOptionTS(threadTS),
	)
	if err != nil {
		return fmt.Errorf("post image reply: %w", err)
	}
	return nil
}

// PostProgress drops a transient status message and returns its timestamp
// handle.
func (p *Publisher) PostProgress(ctx context.Context, channel, text string) (string, error) {
	if channel == "" {
		channel = p.primary
	}
	_, ts, err := p.api.PostMessageContext(ctx, channel, slackapi.MsgOptionText(text, false))
	if err != nil {
		return "", fmt.Errorf("post progress: %w", err)
	}
	return ts, nil
}

// UpdateProgress rewrites a transient status message in place.
func (p *Publisher) UpdateProgress(ctx context.Context, channel, ts, text string) error {
	if channel == "" {
		channel = p.primary
	}
	_, _, _, err := p.api.UpdateMessageContext(ctx, channel, ts, slackapi.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// DeleteProgress removes a transient status message.
func (p *Publisher) DeleteProgress(ctx context.Context, channel, ts string) error {
	if channel == "" {
		channel = p.primary
	}
	_, _, err := p.api.DeleteMessageContext(ctx, channel, ts)
	if err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}
