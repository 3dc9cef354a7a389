package metadata

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
)

// Fetcher retrieves the raw MDS blob bytes. An *http.Client via
// HTTPFetcher is the production implementation; tests supply a fake.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// HTTPFetcher fetches the MDS blob over HTTPS.
type HTTPFetcher struct {
	Client *http.Client
	URL    string
}

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Refresher periodically fetches, verifies, and decodes the MDS blob,
// publishing successes into Registry. Failures are retried with
// exponential backoff capped at the refresh interval, so a transient
// outage doesn't either hammer the endpoint or stall refreshes
// indefinitely once connectivity returns.
type Refresher struct {
	Fetcher   Fetcher
	Processor *Processor
	Registry  *Registry
	Clock     clockwork.Clock
	Interval  time.Duration
	Logger    *slog.Logger
}

// NewRefresher returns a Refresher with a real clock and a default
// logger; callers needing deterministic tests override Clock.
func NewRefresher(fetcher Fetcher, processor *Processor, registry *Registry, interval time.Duration) *Refresher {
	return &Refresher{
		Fetcher:   fetcher,
		Processor: processor,
		Registry:  registry,
		Clock:     clockwork.NewRealClock(),
		Interval:  interval,
		Logger:    slog.Default(),
	}
}

// Run blocks, refreshing on Interval until ctx is canceled.
func (r *Refresher) Run(ctx context.Context) {
	for {
		if err := r.refreshWithBackoff(ctx); err != nil {
			r.Logger.Error("metadata refresh exhausted retries", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-r.Clock.After(r.Interval):
		}
	}
}

func (r *Refresher) refreshWithBackoff(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = r.Interval
	bo.Clock = r.Clock

	return backoff.Retry(func() error {
		return r.refreshOnce(ctx)
	}, backoff.WithContext(bo, ctx))
}

func (r *Refresher) refreshOnce(ctx context.Context) error {
	blob, err := r.Fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	outcome, err := r.Processor.ProcessBlob(blob, r.Clock.Now())
	if err != nil {
		return err
	}
	if outcome.AllFailed() {
		r.Logger.Error("metadata blob decoded with no usable entries", "errors", len(outcome.Errors))
		return nil
	}
	for _, decodeErr := range outcome.Errors {
		r.Logger.Warn("metadata entry decode failed", "error", decodeErr)
	}
	r.Registry.Replace(outcome.Entries)
	r.Logger.Info("metadata registry refreshed", "entries", len(outcome.Entries), "next_update", outcome.NextUpdate)
	return nil
}
