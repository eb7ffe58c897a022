package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/observerai/companion/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// ModelsPath is probed on every candidate server.
	ModelsPath = "/v1/models"
	// DefaultProbeTimeout bounds each probe request.
	DefaultProbeTimeout = 2500 * time.Millisecond
)

// Prober checks which inference servers are reachable.
type Prober struct {
	client  *http.Client
	timeout time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// ProberConfig configures a Prober.
type ProberConfig struct {
	Client  *http.Client
	Timeout time.Duration
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

// NewProber creates a prober.
func NewProber(cfg ProberConfig) *Prober {
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProbeTimeout
	}
	return &Prober{
		client:  cfg.Client,
		timeout: cfg.Timeout,
		metrics: cfg.Metrics,
		logger:  cfg.Logger.With().Str("component", "backend-prober").Logger(),
	}
}

// Check probes every url concurrently and returns the ones answering with a
// 2xx status, in input order. apiKey, when non-empty, is sent as a bearer token.
func (p *Prober) Check(ctx context.Context, urls []string, apiKey string) []string {
	ok := make([]bool, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	for i, url := range urls {
		g.Go(func() error {
			if err := p.probe(gctx, url, apiKey); err != nil {
				p.logger.Warn().Err(err).Str("url", url).Msg("Server check failed")
				p.metrics.RecordProbe("unreachable")
				return nil
			}
			p.logger.Info().Str("url", url).Msg("Server reachable")
			p.metrics.RecordProbe("reachable")
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	reachable := make([]string, 0, len(urls))
	for i, url := range urls {
		if ok[i] {
			reachable = append(reachable, url)
		}
	}

	p.logger.Info().Strs("reachable", reachable).Msg("Server check complete")
	return reachable
}

func (p *Prober) probe(ctx context.Context, url, apiKey string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(url, "/")+ModelsPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return nil
}
