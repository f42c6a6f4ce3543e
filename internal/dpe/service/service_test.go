package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dpehub_backend/internal/dpe/cache"
	"dpehub_backend/internal/dpe/client"
	"dpehub_backend/internal/dpe/normalize"
	"dpehub_backend/platform/logger"
	"dpehub_backend/platform/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu       sync.Mutex
	calls    atomic.Int32
	lines    *client.Lines
	err      error
	delay    time.Duration
	sizes    []int
	communes []string
	pingErr  error
}

func (f *fakeFetcher) FetchLines(ctx context.Context, commune string, size int) (*client.Lines, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.sizes = append(f.sizes, size)
	f.communes = append(f.communes, commune)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.lines, nil
}

func (f *fakeFetcher) Ping(context.Context) error { return f.pingErr }

func sampleLines() *client.Lines {
	return &client.Lines{
		Total: 42,
		Results: []json.RawMessage{
			json.RawMessage(`{"n_dpe": "A1", "etiquette_dpe": "F", "annee_construction": 1975}`),
			json.RawMessage(`{"n_dpe": "A2", "etiquette_dpe": "c"}`),
		},
	}
}

func newService(f LinesFetcher, store cache.Store, rec *metrics.Recorder) *Service {
	return New(f, Config{
		DatasetID: "dpe03existant",
		FetchSize: 1000,
		Cache:     store,
		Metrics:   rec,
	}, logger.Discard())
}

func TestFetch_NormalizesUpstreamRecords(t *testing.T) {
	svc := newService(&fakeFetcher{lines: sampleLines()}, nil, nil)

	out := svc.Fetch(context.Background(), "Thil")

	assert.Equal(t, 42, out.Total)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "A1", out.Results[0].ID)
	assert.Equal(t, "F", out.Results[0].DPEGrade)
	assert.Equal(t, "1975", out.Results[0].ConstructionYear)
	assert.Equal(t, "C", out.Results[1].DPEGrade)
	assert.Equal(t, "Thil", out.Results[1].Municipality)
}

func TestFetch_FailureYieldsEmptyOutcome(t *testing.T) {
	upstream := errors.New("upstream returned status 500")
	svc := newService(&fakeFetcher{err: upstream}, nil, nil)

	var reported error
	out := svc.Fetch(context.Background(), "Thil", WithFailureHook(func(err error) { reported = err }))

	assert.Equal(t, 0, out.Total)
	assert.NotNil(t, out.Results)
	assert.Empty(t, out.Results)
	assert.ErrorIs(t, reported, upstream)
}

func TestFetch_FailureWithoutHookDoesNotPanic(t *testing.T) {
	svc := newService(&fakeFetcher{err: errors.New("boom")}, nil, nil)
	assert.NotPanics(t, func() {
		out := svc.Fetch(context.Background(), "Thil")
		assert.Empty(t, out.Results)
	})
}

func TestFetch_NilLinesIsAFailure(t *testing.T) {
	svc := newService(&fakeFetcher{}, nil, nil)

	var reported error
	out := svc.Fetch(context.Background(), "Thil", WithFailureHook(func(err error) { reported = err }))
	assert.Error(t, reported)
	assert.Empty(t, out.Results)
}

func TestFetch_UsesCacheOnSecondCall(t *testing.T) {
	f := &fakeFetcher{lines: sampleLines()}
	rec := metrics.New()
	svc := newService(f, cache.NewMemory(8, time.Minute), rec)

	first := svc.Fetch(context.Background(), "Thil")
	second := svc.Fetch(context.Background(), " Thil ")

	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, first.Total, second.Total)
	assert.Equal(t, first.Results[0].ID, second.Results[0].ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Fetches().WithLabelValues(metrics.OutcomeCacheHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Fetches().WithLabelValues(metrics.OutcomeSuccess)))
}

func TestFetch_GeneratedIDsAreNotStableAcrossCacheHits(t *testing.T) {
	f := &fakeFetcher{lines: &client.Lines{Total: 1, Results: []json.RawMessage{json.RawMessage(`{}`)}}}
	i := 0
	ids := normalize.IDGeneratorFunc(func() string {
		i++
		return []string{"aaaaa", "bbbbb"}[(i-1)%2]
	})
	svc := New(f, Config{
		Cache:      cache.NewMemory(8, time.Minute),
		Normalizer: normalize.New(normalize.WithIDGenerator(ids)),
	}, logger.Discard())

	first := svc.Fetch(context.Background(), "Thil")
	second := svc.Fetch(context.Background(), "Thil")
	assert.NotEqual(t, first.Results[0].ID, second.Results[0].ID)
}

func TestFetch_FailuresAreNotCached(t *testing.T) {
	f := &fakeFetcher{err: errors.New("timeout")}
	svc := newService(f, cache.NewMemory(8, time.Minute), nil)

	svc.Fetch(context.Background(), "Thil")
	f.err = nil
	f.lines = sampleLines()
	out := svc.Fetch(context.Background(), "Thil")

	assert.Equal(t, int32(2), f.calls.Load())
	assert.Len(t, out.Results, 2)
}

func TestFetch_WithSizeChangesCacheKeyAndRequest(t *testing.T) {
	f := &fakeFetcher{lines: sampleLines()}
	svc := newService(f, cache.NewMemory(8, time.Minute), nil)

	svc.Fetch(context.Background(), "Thil")
	svc.Fetch(context.Background(), "Thil", WithSize(10))

	assert.Equal(t, int32(2), f.calls.Load())
	assert.Equal(t, []int{1000, 10}, f.sizes)
}

func TestFetch_ConcurrentCallsShareOneUpstreamRequest(t *testing.T) {
	f := &fakeFetcher{lines: sampleLines(), delay: 50 * time.Millisecond}
	svc := newService(f, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := svc.Fetch(context.Background(), "Thil")
			assert.Len(t, out.Results, 2)
		}()
	}
	wg.Wait()

	assert.Less(t, f.calls.Load(), int32(8))
}

func TestFetch_CancelledCallerDoesNotFailOthers(t *testing.T) {
	f := &fakeFetcher{lines: sampleLines(), delay: 100 * time.Millisecond}
	svc := newService(f, cache.NewMemory(8, time.Minute), nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	var errA error
	doneA := make(chan struct{})
	go func() {
		defer close(doneA)
		svc.Fetch(ctxA, "Thil", WithFailureHook(func(err error) { errA = err }))
	}()

	time.Sleep(20 * time.Millisecond)

	var errB error
	doneB := make(chan FetchOutcome, 1)
	go func() {
		doneB <- svc.Fetch(context.Background(), "Thil", WithFailureHook(func(err error) { errB = err }))
	}()

	time.Sleep(20 * time.Millisecond)
	cancelA()
	<-doneA
	outB := <-doneB

	assert.ErrorIs(t, errA, context.Canceled)
	assert.NoError(t, errB)
	assert.Len(t, outB.Results, 2)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestFetch_CommuneCasingIsPartOfTheCacheKey(t *testing.T) {
	f := &fakeFetcher{lines: sampleLines()}
	svc := newService(f, cache.NewMemory(8, time.Minute), nil)

	svc.Fetch(context.Background(), "aumetz")
	svc.Fetch(context.Background(), "AUMETZ")
	svc.Fetch(context.Background(), "AUMETZ ")

	assert.Equal(t, []string{"aumetz", "AUMETZ"}, f.communes)
}

func TestWarm_BypassesCacheAndReportsErrors(t *testing.T) {
	f := &fakeFetcher{lines: sampleLines()}
	store := cache.NewMemory(8, time.Minute)
	svc := newService(f, store, nil)

	require.NoError(t, svc.Warm(context.Background(), "Thil"))
	require.NoError(t, svc.Warm(context.Background(), "Thil"))
	assert.Equal(t, int32(2), f.calls.Load())
	assert.Equal(t, 1, store.Len())

	f.err = errors.New("down")
	assert.Error(t, svc.Warm(context.Background(), "Thil"))
}

func TestClearCache(t *testing.T) {
	f := &fakeFetcher{lines: sampleLines()}
	store := cache.NewMemory(8, time.Minute)
	svc := newService(f, store, nil)

	svc.Fetch(context.Background(), "Thil")
	require.NoError(t, svc.ClearCache(context.Background()))
	svc.Fetch(context.Background(), "Thil")
	assert.Equal(t, int32(2), f.calls.Load())

	require.NoError(t, newService(f, nil, nil).ClearCache(context.Background()))
}

func TestPing(t *testing.T) {
	assert.NoError(t, newService(&fakeFetcher{}, nil, nil).Ping(context.Background()))
	assert.Error(t, newService(&fakeFetcher{pingErr: errors.New("x")}, nil, nil).Ping(context.Background()))
}
