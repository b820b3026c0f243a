package server

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	slackapi "github.com/slack-go/slack"

	"blogherald/internal/config"
	"blogherald/internal/models"
	"blogherald/internal/pipeline"
	"blogherald/internal/slack"
	"blogherald/internal/state"
)

// Server exposes the deployment surface: health and stats probes, the async
// cron trigger, and the signed slash command.
type Server struct {
	cfg    *config.Config
	pipe   *pipeline.Pipeline
	pub    *slack.Publisher
	store  *state.Store
	logger *slog.Logger

	mu   sync.Mutex
	busy bool

	httpServer *http.Server
}

func New(cfg *config.Config, pipe *pipeline.Pipeline, pub *slack.Publisher, store *state.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, pipe: pipe, pub: pub, store: store, logger: logger}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/cron", s.handleCron)
	mux.HandleFunc("/slack/command", s.handleSlashCommand)
	return mux
}

// Run serves until ctx is cancelled, then shuts down with a grace period.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    ":" + s.cfg.ServerPort,
		Handler: s.routes(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("shutdown failed", "error", err)
		}
	}()

	s.logger.Info("listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"healthy","timestamp":%q}`, time.Now().Format(time.RFC3339))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.store.Load()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"seen":           len(st.Seen),
		"alertedSources": len(st.Alerted),
		"busy":           s.isBusy(),
	})
}

// handleCron kicks off a batch in the background and answers immediately.
// Overlapping triggers are refused rather than queued.
func (s *Server) handleCron(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.cfg.CronSecret != "" {
		want := "Bearer " + s.cfg.CronSecret
		got := r.Header.Get("Authorization")
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	seedParam := r.URL.Query().Get("seed")
	seed := seedParam == "1" || seedParam == "true"

	if !s.tryAcquire() {
		http.Error(w, "a batch is already running", http.StatusConflict)
		return
	}

	go func() {
		defer s.release()
		res, err := s.pipe.RunBatch(context.Background(), seed)
		if err != nil {
			s.logger.Error("batch failed", "error", err)
			return
		}
		s.logger.Info("batch finished",
			"published", res.Published, "seeded", res.Seeded,
			"skipped", res.Skipped, "failed", res.Failed)
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintf(w, `{"status":"started","seed":%t}`, seed)
}

// handleSlashCommand verifies the Slack signature, parses the requested URL,
// and runs the single-article pipeline in the background while a progress
// message keeps the channel informed.
func (s *Server) handleSlashCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.cfg.SlackSigningSecret == "" {
		http.Error(w, "slash commands are not configured", http.StatusNotImplemented)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	verifier, err := slackapi.NewSecretsVerifier(r.Header, s.cfg.SlackSigningSecret)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	verifier.Write(body)
	if err := verifier.Ensure(); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	cmd, err := slackapi.SlashCommandParse(r)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	articleURL, contentType, err := parseCommandText(cmd.Text)
	if err != nil {
		// Slash command errors go back as an ephemeral message, not an
		// HTTP failure.
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "%v. Usage: %s <article-url> [technical|announcement]", err, cmd.Command)
		return
	}

	go s.runManual(cmd.ChannelID, articleURL, contentType)
	w.WriteHeader(http.StatusOK)
}

// runManual drives one slash-command post with a progress placeholder that
// is converted into the thread root on success or rewritten on failure.
func (s *Server) runManual(channelID, articleURL string, contentType models.ContentType) {
	ctx := context.Background()
	log := s.logger.With("component", "manual", "url", articleURL)

	anim := slack.NewAnimator(s.pub, channelID)
	if err := anim.Start(ctx); err != nil {
		// No placeholder, but the post itself can still go out.
		log.Warn("progress placeholder failed", "error", err)
	}

	ts, err := s.pipe.RunSingle(ctx, pipeline.SingleRequest{
		URL:         articleURL,
		ContentType: contentType,
		Channel:     channelID,
		Placeholder: anim.Stop,
		OnPublished: func(threadTS string) {
			log.Info("root posted", "thread", threadTS)
		},
	})
	if err != nil {
		log.Error("manual post failed", "error", err)
		notice := "❌ " + userFacing(err)
		if pts := anim.Stop(); pts != "" {
			if uerr := s.pub.UpdateProgress(ctx, channelID, pts, notice); uerr != nil {
				log.Warn("failure notice failed", "error", uerr)
			}
		} else if perr := s.pub.PostStatus(ctx, channelID, notice); perr != nil {
			log.Warn("failure notice failed", "error", perr)
		}
		return
	}
	log.Info("manual post complete", "thread", ts)
}

// userFacing turns pipeline errors into something worth showing in channel.
func userFacing(err error) string {
	var fetchErr *pipeline.FetchFailedError
	switch {
	case errors.Is(err, pipeline.ErrAlreadyPosted):
		return "That article has already been posted here."
	case errors.As(err, &fetchErr):
		return fetchErr.Error()
	default:
		return fmt.Sprintf("Something went wrong: %v", err)
	}
}

// parseCommandText extracts the article URL and the optional classification
// from slash-command text such as "<https://x/y|x.y> announcement".
func parseCommandText(text string) (string, models.ContentType, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return "", "", fmt.Errorf("no URL given")
	}

	raw := unwrapSlackURL(fields[0])
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("%q does not look like a URL", fields[0])
	}

	contentType := models.ContentTechnical
	if len(fields) > 1 {
		switch strings.ToLower(fields[1]) {
		case "technical", "tech":
			contentType = models.ContentTechnical
		case "announcement", "news":
			contentType = models.ContentAnnouncement
		default:
			return "", "", fmt.Errorf("unknown content type %q", fields[1])
		}
	}
	return raw, contentType, nil
}

// unwrapSlackURL strips Slack's angle-bracket link syntax, <url> or
// <url|label>.
func unwrapSlackURL(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		s = s[1 : len(s)-1]
		if i := strings.IndexByte(s, '|'); i >= 0 {
			s = s[:i]
		}
	}
	return s
}

func (s *Server) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *Server) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func (s *Server) isBusy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}
