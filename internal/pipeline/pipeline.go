package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"blogherald/internal/models"
	"blogherald/internal/sources"
	"blogherald/internal/state"
)

// seedTitle marks records created by seed runs, which never fetch the page.
const seedTitle = "(seeded)"

// ContentFetcher discovers candidate URLs for a source and pulls readable
// article text. Satisfied by *sources.Fetcher.
type ContentFetcher interface {
	ListCandidates(ctx context.Context, src sources.Source) ([]string, error)
	FetchArticle(ctx context.Context, url string) (models.Article, error)
}

// Summarizer produces the two-part thread summary.
type Summarizer interface {
	Summarize(ctx context.Context, art models.Article) (models.Summary, error)
}

// Researcher builds the best-effort context report. It degrades internally
// and never fails.
type Researcher interface {
	Research(ctx context.Context, art models.Article) string
}

// Illustrator renders an optional thread illustration, returning "" when
// imagery is switched off.
type Illustrator interface {
	Illustrate(ctx context.Context, headline string) (string, error)
}

// Publisher is the messaging side of the pipeline. Satisfied by
// *slack.Publisher.
type Publisher interface {
	PostThread(ctx context.Context, art models.Article, sum models.Summary, research, channel, placeholderTS string) (string, error)
	PostStatus(ctx context.Context, channel, text string) error
	PostImageReply(ctx context.Context, channel, threadTS, imageURL, caption string) error
	PrimaryChannel() string
}

// OpsNotifier mirrors alerts out of band. Optional.
type OpsNotifier interface {
	Notify(ctx context.Context, text string)
}

// Deps wires the collaborators into a Pipeline.
type Deps struct {
	Fetcher     ContentFetcher
	Summarizer  Summarizer
	Researcher  Researcher
	Illustrator Illustrator
	Publisher   Publisher
	Ops         OpsNotifier
	Store       *state.Store
	Sources     []sources.Source
	Logger      *slog.Logger

	// ArticleDelay paces successive articles within a source.
	ArticleDelay time.Duration
}

// Pipeline walks the watch list, turns unseen articles into Slack threads,
// and keeps the seen/alert state current. Sources are processed strictly in
// order; one bad source never stops the others.
type Pipeline struct {
	fetcher     ContentFetcher
	summarizer  Summarizer
	researcher  Researcher
	illustrator Illustrator
	publisher   Publisher
	ops         OpsNotifier
	store       *state.Store
	sources     []sources.Source
	logger      *slog.Logger
	delay       time.Duration
}

func New(deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.ArticleDelay <= 0 {
		deps.ArticleDelay = 5 * time.Second
	}
	return &Pipeline{
		fetcher:     deps.Fetcher,
		summarizer:  deps.Summarizer,
		researcher:  deps.Researcher,
		illustrator: deps.Illustrator,
		publisher:   deps.Publisher,
		ops:         deps.Ops,
		store:       deps.Store,
		sources:     deps.Sources,
		logger:      deps.Logger,
		delay:       deps.ArticleDelay,
	}
}

// Result summarizes one batch run.
type Result struct {
	Sources   int
	Published int
	Seeded    int
	Skipped   int
	Failed    int
}

// RunBatch processes every source once. In seed mode candidates are marked
// seen without fetching, summarizing, or posting anything. State is
// persisted exactly once, at the end of the run.
func (p *Pipeline) RunBatch(ctx context.Context, seed bool) (Result, error) {
	st := p.store.Load()
	res := Result{Sources: len(p.sources)}

	p.logger.Info("batch starting", "sources", len(p.sources), "seed", seed, "known", len(st.Seen))
	for _, src := range p.sources {
		next, err := p.processSource(ctx, st, src, seed, &res)
		st = next
		if err != nil {
			res.Failed++
			p.logger.Error("source failed", "source", src.Name, "error", err)
			if !seed {
				p.alert(ctx, fmt.Sprintf("⚠️ Scraper error on %s: %v", src.Name, err))
			}
		}
		if ctx.Err() != nil {
			p.logger.Warn("batch cancelled", "error", ctx.Err())
			break
		}
	}

	if err := p.store.Save(st); err != nil {
		return res, fmt.Errorf("save state: %w", err)
	}
	p.logger.Info("batch finished",
		"published", res.Published, "seeded", res.Seeded,
		"skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

// processSource handles one source end to end and returns the updated
// state. Panics are contained here so a single broken source cannot take
// down the batch.
func (p *Pipeline) processSource(ctx context.Context, st state.State, src sources.Source, seed bool, res *Result) (out state.State, err error) {
	out = st
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	log := p.logger.With("source", src.Name)

	candidates, err := p.fetcher.ListCandidates(ctx, src)
	if err != nil {
		// A fetch or parse failure counts as zero candidates for alerting.
		log.Warn("listing failed", "error", err)
		candidates = nil
		err = nil
	}

	if len(candidates) == 0 {
		if out.IsAlerted(src.Name) {
			log.Debug("still broken, alert already latched")
			return out, nil
		}
		out = out.MarkAlerted(src.Name, time.Now().UTC())
		log.Warn("no candidates, latching alert")
		// Seed runs latch the episode but post nothing.
		if !seed {
			p.alert(ctx, fmt.Sprintf("🚨 %s returned no article links. The scraper or feed may be broken.", src.Name))
		}
		return out, nil
	}

	if out.IsAlerted(src.Name) {
		out = out.ClearAlert(src.Name)
		log.Info("source recovered, alert cleared")
	}

	fresh := 0
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return out, nil
		}
		if out.IsSeen(candidate) {
			continue
		}
		fresh++

		if seed {
			out = out.MarkSeen(candidate, state.SeenRecord{
				URL:         candidate,
				Title:       seedTitle,
				Source:      src.Name,
				ContentType: src.ContentType,
				PostedAt:    time.Now().UTC(),
			})
			res.Seeded++
			continue
		}

		next, aErr := p.processArticle(ctx, out, candidate, src)
		out = next
		if aErr != nil {
			res.Skipped++
			log.Warn("article skipped", "url", candidate, "error", aErr)
		} else {
			res.Published++
			log.Info("article published", "url", candidate)
		}
		if !sleepCtx(ctx, p.delay) {
			return out, nil
		}
	}
	if fresh == 0 {
		log.Debug("nothing new", "candidates", len(candidates))
	}
	return out, nil
}

// processArticle runs the per-article chain: fetch, summarize, research,
// publish, then mark seen. Only a successful root post advances the state;
// any earlier failure leaves the article eligible for the next run.
func (p *Pipeline) processArticle(ctx context.Context, st state.State, rawURL string, src sources.Source) (out state.State, err error) {
	out = st
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	art, err := p.fetcher.FetchArticle(ctx, rawURL)
	if err != nil {
		return st, err
	}
	art.Source = src.Name
	art.Type = src.ContentType

	sum, err := p.summarizer.Summarize(ctx, art)
	if err != nil {
		return st, fmt.Errorf("summarize %s: %w", rawURL, err)
	}

	research := p.researcher.Research(ctx, art)

	threadTS, err := p.publisher.PostThread(ctx, art, sum, research, p.publisher.PrimaryChannel(), "")
	if err != nil {
		return st, fmt.Errorf("publish %s: %w", rawURL, err)
	}

	p.attachIllustration(ctx, p.publisher.PrimaryChannel(), threadTS, sum)

	return st.MarkSeen(rawURL, state.SeenRecord{
		URL:         rawURL,
		Title:       art.Title,
		Source:      src.Name,
		ContentType: src.ContentType,
		PostedAt:    time.Now().UTC(),
	}), nil
}

// attachIllustration is best-effort enrichment of an already-live thread.
func (p *Pipeline) attachIllustration(ctx context.Context, channel, threadTS string, sum models.Summary) {
	if p.illustrator == nil {
		return
	}
	imageURL, err := p.illustrator.Illustrate(ctx, sum.Headline)
	if err != nil {
		p.logger.Warn("illustration failed", "error", err)
		return
	}
	if imageURL == "" {
		return
	}
	if err := p.publisher.PostImageReply(ctx, channel, threadTS, imageURL, ""); err != nil {
		p.logger.Warn("image reply failed", "error", err)
	}
}

// alert posts to the primary channel and mirrors to ops.
func (p *Pipeline) alert(ctx context.Context, text string) {
	if err := p.publisher.PostStatus(ctx, "", text); err != nil {
		p.logger.Error("alert post failed", "error", err)
	}
	if p.ops != nil {
		p.ops.Notify(ctx, text)
	}
}

// sleepCtx waits d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
