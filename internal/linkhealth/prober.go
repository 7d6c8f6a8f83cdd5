// Package linkhealth classifies the reachability of booking and research
// links referenced by a decision package.
package linkhealth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pitabwire/tripflow/model"
)

const tracerName = "github.com/pitabwire/tripflow/internal/linkhealth"

// Link kinds.
const (
	KindResearch = "research"
	KindLodging  = "lodging"
	KindCar      = "car"
)

// Defaults applied to a zero Config.
const (
	DefaultTimeout        = 5 * time.Second
	DefaultMaxConcurrency = 4
	DefaultMaxTargets     = 10
	DefaultUserAgent      = "tripflow-linkcheck/1.0"
	topBookingLinks       = 2
)

// Target is one URL to probe.
type Target struct {
	URL         string
	ItineraryID string
	Kind        string
}

// Config bounds a probe pass.
type Config struct {
	Timeout          time.Duration
	MaxConcurrency   int
	MaxTargets       int
	UserAgent        string
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// Recorder observes probe outcomes.
type Recorder interface {
	RecordLinkProbe(status string, duration time.Duration)
}

// Prober issues HEAD requests, falling back to GET where HEAD is refused,
// and classifies each URL as ok, warning, or broken.
type Prober struct {
	client   *http.Client
	cfg      Config
	now      func() time.Time
	logger   *zap.Logger
	recorder Recorder
	breaker  *hostBreaker
}

// Option configures a Prober.
type Option func(*Prober)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Prober) { p.client = c }
}

// WithClock sets the clock used for CheckedAt and breaker cooldowns.
func WithClock(now func() time.Time) Option {
	return func(p *Prober) { p.now = now }
}

// WithLogger sets the prober logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Prober) { p.logger = l }
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Prober) { p.recorder = r }
}

// NewProber creates a Prober. Zero config fields take the package defaults.
func NewProber(cfg Config, opts ...Option) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.MaxTargets <= 0 {
		cfg.MaxTargets = DefaultMaxTargets
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	p := &Prober{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxConnsPerHost:     4,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
		cfg:    cfg,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.breaker = newHostBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown, p.now)
	return p
}

// CollectTargets lists every externally facing URL of the decision: research
// links plus the top lodging and car booking links of each itinerary. URLs
// are deduplicated; the first reference wins.
func CollectTargets(decision model.DecisionPackage) []Target {
	seen := make(map[string]bool)
	var out []Target
	add := func(raw, itineraryID, kind string) {
		raw = strings.TrimSpace(raw)
		if raw == "" || seen[raw] {
			return
		}
		seen[raw] = true
		out = append(out, Target{URL: raw, ItineraryID: itineraryID, Kind: kind})
	}

	for _, it := range decision.Itineraries {
		for _, link := range it.ResearchLinks {
			add(link, it.ID, KindResearch)
		}
		for i, opt := range it.Lodging.Options {
			if i == topBookingLinks {
				break
			}
			add(opt.BookingURL, it.ID, KindLodging)
		}
		for i, opt := range it.Cars.Options {
			if i == topBookingLinks {
				break
			}
			add(opt.BookingURL, it.ID, KindCar)
		}
	}
	return out
}

// Malformed reports whether raw is not an absolute http(s) URL.
func Malformed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return true
	}
	return (u.Scheme != "http" && u.Scheme != "https") || u.Host == ""
}

// Probe classifies up to MaxTargets targets concurrently. A failed probe
// yields a warning record; it never fails the pass.
func (p *Prober) Probe(ctx context.Context, targets []Target) []model.LinkRecord {
	if len(targets) > p.cfg.MaxTargets {
		targets = targets[:p.cfg.MaxTargets]
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "linkhealth.probe")
	defer span.End()
	span.SetAttributes(attribute.Int("tripflow.link_targets", len(targets)))

	records := make([]model.LinkRecord, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxConcurrency)
	for i, t := range targets {
		g.Go(func() error {
			start := time.Now()
			records[i] = p.probeOne(gctx, t)
			if p.recorder != nil {
				p.recorder.RecordLinkProbe(records[i].Status, time.Since(start))
			}
			return nil
		})
	}
	_ = g.Wait()

	broken := 0
	for _, r := range records {
		if r.Status == model.LinkBroken {
			broken++
		}
	}
	if broken > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d broken links", broken))
	}
	return records
}

func (p *Prober) probeOne(ctx context.Context, t Target) model.LinkRecord {
	rec := model.LinkRecord{
		URL:         t.URL,
		ItineraryID: t.ItineraryID,
		Kind:        t.Kind,
	}

	if Malformed(t.URL) {
		rec.Status = model.LinkBroken
		rec.Error = "malformed URL"
		rec.CheckedAt = p.now().UTC()
		return rec
	}

	host := hostOf(t.URL)
	if !p.breaker.Allow(host) {
		rec.Status = model.LinkWarning
		rec.Error = "host unavailable; recent probes failed"
		rec.CheckedAt = p.now().UTC()
		return rec
	}

	status, err := p.request(ctx, http.MethodHead, t.URL)
	rec.Method = http.MethodHead
	if err == nil && (status == http.StatusForbidden || status == http.StatusMethodNotAllowed) {
		status, err = p.request(ctx, http.MethodGet, t.URL)
		rec.Method = http.MethodGet
	}

	switch {
	case err != nil:
		rec.Status = model.LinkWarning
		rec.Error = err.Error()
		p.breaker.RecordFailure(host)
	case status >= 200 && status < 300:
		rec.Status = model.LinkOK
		rec.HTTPStatus = status
		p.breaker.RecordSuccess(host)
	case status >= 500:
		rec.Status = model.LinkWarning
		rec.HTTPStatus = status
		p.breaker.RecordFailure(host)
	default:
		rec.Status = model.LinkBroken
		rec.HTTPStatus = status
		p.breaker.RecordSuccess(host)
	}

	if rec.Status != model.LinkOK {
		p.logger.Debug("link probe not ok",
			zap.String("url", t.URL),
			zap.String("status", rec.Status),
			zap.Int("http_status", rec.HTTPStatus),
			zap.String("error", rec.Error),
		)
	}
	rec.CheckedAt = p.now().UTC()
	return rec
}

// request issues one bounded request and returns the final status code
// after redirects.
func (p *Prober) request(ctx context.Context, method, rawURL string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("building %s request: %w", method, err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
