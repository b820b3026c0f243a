package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"blogherald/internal/models"
	"blogherald/internal/state"
)

// manualSource is the source label recorded for ad-hoc posts.
const manualSource = "manual"

// ErrAlreadyPosted reports an attempted repost of a primary-channel article.
var ErrAlreadyPosted = errors.New("article was already posted to the primary channel")

// FetchFailedError carries the offending URL so callers can show a useful
// message to whoever asked for the post.
type FetchFailedError struct {
	URL string
	Err error
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("could not fetch a readable article from %s: %v", e.URL, e.Err)
}

func (e *FetchFailedError) Unwrap() error { return e.Err }

// SingleRequest is one ad-hoc article invocation, from the CLI or a slash
// command.
type SingleRequest struct {
	URL         string
	ContentType models.ContentType

	// Channel is the destination; empty means the primary channel.
	Channel string

	// Placeholder, when set, is called right before the root post, once the
	// summary and research are ready. It returns the timestamp of a progress
	// message to rewrite into the root, or "" for none.
	Placeholder func() string

	// OnPublished fires immediately after the root post lands, before
	// slower enrichment runs.
	OnPublished func(threadTS string)
}

// RunSingle drives the per-article chain for one URL outside the source
// loop. Seen-state is consulted and updated only when the destination is
// the primary channel; posts elsewhere neither check nor record anything.
func (p *Pipeline) RunSingle(ctx context.Context, req SingleRequest) (string, error) {
	channel := req.Channel
	if channel == "" {
		channel = p.publisher.PrimaryChannel()
	}
	primary := channel == p.publisher.PrimaryChannel()

	st := p.store.Load()
	if primary && st.IsSeen(req.URL) {
		return "", ErrAlreadyPosted
	}

	art, err := p.fetcher.FetchArticle(ctx, req.URL)
	if err != nil {
		return "", &FetchFailedError{URL: req.URL, Err: err}
	}
	art.Source = manualSource
	art.Type = req.ContentType
	if !art.Type.Valid() {
		art.Type = models.ContentTechnical
	}

	sum, err := p.summarizer.Summarize(ctx, art)
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", req.URL, err)
	}
	research := p.researcher.Research(ctx, art)

	var placeholderTS string
	if req.Placeholder != nil {
		placeholderTS = req.Placeholder()
	}
	threadTS, err := p.publisher.PostThread(ctx, art, sum, research, channel, placeholderTS)
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", req.URL, err)
	}
	if req.OnPublished != nil {
		req.OnPublished(threadTS)
	}

	p.attachIllustration(ctx, channel, threadTS, sum)

	if primary {
		st = st.MarkSeen(req.URL, state.SeenRecord{
			URL:         req.URL,
			Title:       art.Title,
			Source:      manualSource,
			ContentType: art.Type,
			PostedAt:    time.Now().UTC(),
		})
		if err := p.store.Save(st); err != nil {
			return threadTS, fmt.Errorf("save state: %w", err)
		}
	}
	return threadTS, nil
}
