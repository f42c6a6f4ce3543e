// Package service provides the fail-soft DPE fetch orchestration with caching.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dpehub_backend/internal/dpe/cache"
	"dpehub_backend/internal/dpe/client"
	"dpehub_backend/internal/dpe/domain"
	"dpehub_backend/internal/dpe/normalize"
	"dpehub_backend/platform/logger"
	"dpehub_backend/platform/metrics"

	"golang.org/x/sync/singleflight"
)

// DefaultFetchSize caps a single upstream fetch.
const DefaultFetchSize = 1000

// LinesFetcher is the upstream dependency of the service.
type LinesFetcher interface {
	FetchLines(ctx context.Context, commune string, size int) (*client.Lines, error)
	Ping(ctx context.Context) error
}

// FetchOutcome is the result of a fetch. It is always well formed: on
// failure Total is 0 and Results is empty.
type FetchOutcome struct {
	Total   int
	Results []domain.DpeResult
}

type fetchOptions struct {
	size      int
	onFailure func(error)
	fresh     bool
}

// FetchOption tunes a single Fetch call.
type FetchOption func(*fetchOptions)

// WithSize overrides the result cap for one call.
func WithSize(size int) FetchOption {
	return func(o *fetchOptions) {
		if size > 0 {
			o.size = size
		}
	}
}

// WithFailureHook receives the error of a failed fetch. The outcome itself
// never carries it.
func WithFailureHook(fn func(error)) FetchOption {
	return func(o *fetchOptions) {
		o.onFailure = fn
	}
}

// ApplyFailureHook reports err to the failure hook carried by opts, if any.
// Every Fetch implementation reports failures through it.
func ApplyFailureHook(err error, opts ...FetchOption) {
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.onFailure != nil {
		o.onFailure(err)
	}
}

// WithFreshData skips the cache read; the fetched result is still cached.
func WithFreshData() FetchOption {
	return func(o *fetchOptions) {
		o.fresh = true
	}
}

// Service fetches, caches and normalizes DPE records.
type Service struct {
	client     LinesFetcher
	normalizer *normalize.Normalizer
	cache      cache.Store
	metrics    *metrics.Recorder
	log        *logger.Logger
	datasetID  string
	size       int
	group      singleflight.Group
}

// Config carries the optional collaborators of the service.
type Config struct {
	DatasetID  string
	FetchSize  int
	Cache      cache.Store
	Normalizer *normalize.Normalizer
	Metrics    *metrics.Recorder
}

// New creates a new DPE service.
func New(c LinesFetcher, cfg Config, log *logger.Logger) *Service {
	size := cfg.FetchSize
	if size <= 0 {
		size = DefaultFetchSize
	}
	n := cfg.Normalizer
	if n == nil {
		n = normalize.New()
	}
	return &Service{
		client:     c,
		normalizer: n,
		cache:      cfg.Cache,
		metrics:    cfg.Metrics,
		log:        log,
		datasetID:  cfg.DatasetID,
		size:       size,
	}
}

// Fetch returns the normalized records of a commune. It never fails:
// network, status and decoding errors are logged, handed to the failure
// hook and turned into an empty outcome. There are no automatic retries.
func (s *Service) Fetch(ctx context.Context, commune string, opts ...FetchOption) FetchOutcome {
	o := fetchOptions{size: s.size}
	for _, opt := range opts {
		opt(&o)
	}

	commune = strings.TrimSpace(commune)
	lines, err := s.lines(ctx, commune, o)
	if err != nil {
		s.log.WithContext(ctx).UpstreamError("fetch_dpe", commune, err)
		s.metrics.ObserveFetch(metrics.OutcomeFailure)
		ApplyFailureHook(err, opts...)
		return FetchOutcome{Total: 0, Results: []domain.DpeResult{}}
	}

	return FetchOutcome{
		Total:   lines.Total,
		Results: s.normalizer.NormalizeAll(lines.Results, commune),
	}
}

// Warm refreshes the cached response of a commune. Unlike Fetch it reports
// failures so background jobs can record them.
func (s *Service) Warm(ctx context.Context, commune string) error {
	var failure error
	s.Fetch(ctx, commune, WithFreshData(), WithFailureHook(func(err error) { failure = err }))
	return failure
}

// Ping checks if the upstream API is available.
func (s *Service) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// ClearCache removes all cached responses.
func (s *Service) ClearCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Clear(ctx)
}

func (s *Service) lines(ctx context.Context, commune string, o fetchOptions) (*client.Lines, error) {
	key := s.cacheKey(commune, o.size)

	if !o.fresh {
		if lines, ok := s.getFromCache(ctx, key); ok {
			s.metrics.ObserveFetch(metrics.OutcomeCacheHit)
			return lines, nil
		}
		s.metrics.ObserveFetch(metrics.OutcomeCacheMiss)
	}

	// The shared call outlives any single caller; each caller still gives up
	// on its own context.
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		start := time.Now()
		lines, err := s.client.FetchLines(fetchCtx, commune, o.size)
		if err != nil {
			return nil, err
		}
		if lines == nil {
			return nil, fmt.Errorf("empty upstream response")
		}
		s.metrics.ObserveUpstream(time.Since(start).Seconds(), len(lines.Results))
		s.metrics.ObserveFetch(metrics.OutcomeSuccess)
		s.setCache(fetchCtx, key, lines)
		return lines, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*client.Lines), nil
	}
}

func (s *Service) getFromCache(ctx context.Context, key string) (*client.Lines, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.CacheError("get", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var lines client.Lines
	if err := json.Unmarshal(data, &lines); err != nil {
		s.log.CacheError("decode", err)
		return nil, false
	}
	return &lines, true
}

func (s *Service) setCache(ctx context.Context, key string, lines *client.Lines) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(lines)
	if err != nil {
		s.log.CacheError("encode", err)
		return
	}
	if err := s.cache.Set(ctx, key, data); err != nil {
		s.log.CacheError("set", err)
	}
}

// cacheKey uses the commune exactly as it is sent upstream: two casings are
// two different queries.
func (s *Service) cacheKey(commune string, size int) string {
	return "lines:" + s.datasetID + ":" + commune + ":" + strconv.Itoa(size)
}
