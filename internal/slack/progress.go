package slack

import (
	"context"
	"time"
)

// Animator keeps a transient "working on it" message alive while a slow
// pipeline step runs. Start posts the placeholder and begins cycling frames;
// Stop cancels the loop, waits for it to exit, and hands back the
// placeholder timestamp so the caller can rewrite or delete it. After Stop
// returns, nothing touches the message again.
type Animator struct {
	pub      *Publisher
	channel  string
	frames   []string
	interval time.Duration

	ts     string
	cancel context.CancelFunc
	done   chan struct{}
}

func NewAnimator(pub *Publisher, channel string) *Animator {
	return &Animator{
		pub:     pub,
		channel: channel,
		frames: []string{
			":hourglass_flowing_sand: Reading the article…",
			":hourglass: Reading the article…",
		},
		interval: 2 * time.Second,
	}
}

// Start posts the placeholder and launches the frame loop.
func (a *Animator) Start(ctx context.Context) error {
	ts, err := a.pub.PostProgress(ctx, a.channel, a.frames[0])
	if err != nil {
		return err
	}
	a.ts = ts

	loopCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.loop(loopCtx)
	return nil
}

func (a *Animator) loop(ctx context.Context) {
	defer close(a.done)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame++
			if err := a.pub.UpdateProgress(ctx, a.channel, a.ts, a.frames[frame%len(a.frames)]); err != nil {
				return
			}
		}
	}
}

// Stop cancels the frame loop, joins it, and returns the placeholder
// timestamp ("" when Start never ran or failed). Safe to call more than
// once.
func (a *Animator) Stop() string {
	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
	return a.ts
}
