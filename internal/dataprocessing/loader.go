package dataprocessing

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"salesdash/internal/infrastructure"
	"salesdash/pkg/contracts/domain"
)

const tracerName = "salesdash/dataprocessing"

// Resolver maps a source identifier to a Source.
type Resolver interface {
	Resolve(ctx context.Context, id string) (Source, error)
}

// LoaderStats is a snapshot of cache activity.
type LoaderStats struct {
	Entries  int   `json:"entries"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Fetches  int64 `json:"fetches"`
	Failures int64 `json:"failures"`
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithMetrics records load and cache metrics.
func WithMetrics(m *infrastructure.Metrics) LoaderOption {
	return func(l *Loader) { l.metrics = m }
}

// WithFetchTimeout bounds a single fetch independently of caller contexts.
func WithFetchTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) { l.fetchTimeout = d }
}

// Loader fetches and caches base tables keyed by source identifier.
// Concurrent first loads of one identifier share a single fetch. Failed
// loads are not cached.
type Loader struct {
	resolver     Resolver
	parser       *Parser
	logger       *slog.Logger
	metrics      *infrastructure.Metrics
	tracer       trace.Tracer
	fetchTimeout time.Duration

	mu    sync.RWMutex
	cache map[string]*domain.SalesTable
	// generation changes on Invalidate and Clear so a fetch that started
	// before either cannot repopulate the cache.
	generation map[string]uint64
	epoch      uint64
	// inflight counts running fetches per source so Clear can detach them
	// from the singleflight group.
	inflight map[string]int

	group singleflight.Group

	hits     atomic.Int64
	misses   atomic.Int64
	fetches  atomic.Int64
	failures atomic.Int64
}

// NewLoader creates a Loader.
func NewLoader(resolver Resolver, parser *Parser, logger *slog.Logger, opts ...LoaderOption) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if parser == nil {
		parser = NewParser(logger)
	}
	l := &Loader{
		resolver:   resolver,
		parser:     parser,
		logger:     logger.With(slog.String("component", "loader")),
		tracer:     otel.Tracer(tracerName),
		cache:      make(map[string]*domain.SalesTable),
		generation: make(map[string]uint64),
		inflight:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the base table for source, fetching it on first use. A
// cached table is returned as the same pointer on every call.
func (l *Loader) Load(ctx context.Context, source string) (*domain.SalesTable, error) {
	l.mu.RLock()
	table, ok := l.cache[source]
	l.mu.RUnlock()

	if ok {
		l.hits.Add(1)
		l.metrics.RecordCacheLookup(ctx, true)
		return table, nil
	}

	l.misses.Add(1)
	l.metrics.RecordCacheLookup(ctx, false)

	ch := l.group.DoChan(source, func() (interface{}, error) {
		return l.fetch(ctx, source)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.SalesTable), nil
	}
}

// fetch runs detached from the caller's cancellation so that callers
// sharing the flight are not failed by the first caller leaving.
func (l *Loader) fetch(parent context.Context, source string) (*domain.SalesTable, error) {
	ctx := context.WithoutCancel(parent)
	if l.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.fetchTimeout)
		defer cancel()
	}

	l.mu.Lock()
	if table, ok := l.cache[source]; ok {
		l.mu.Unlock()
		return table, nil
	}
	gen := l.generationLocked(source)
	l.inflight[source]++
	l.mu.Unlock()
	defer l.doneFetching(source)

	ctx, span := l.tracer.Start(ctx, "dataset.load",
		trace.WithAttributes(attribute.String("dataset.source", source)))
	defer span.End()

	l.fetches.Add(1)
	start := time.Now()

	table, err := l.fetchAndParse(ctx, source)
	duration := time.Since(start)

	rows := 0
	if table != nil {
		rows = table.Len()
	}
	l.metrics.RecordLoad(ctx, source, rows, duration, err)

	if err != nil {
		l.failures.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.ErrorContext(ctx, "dataset load failed",
			slog.String("source", source),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, err
	}

	span.SetAttributes(attribute.Int("dataset.rows", rows))

	l.mu.Lock()
	if l.generationLocked(source) == gen {
		l.cache[source] = table
	}
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "dataset loaded",
		slog.String("source", source),
		slog.Int("rows", rows),
		slog.Duration("duration", duration))

	return table, nil
}

func (l *Loader) fetchAndParse(ctx context.Context, source string) (*domain.SalesTable, error) {
	src, err := l.resolver.Resolve(ctx, source)
	if err != nil {
		return nil, err
	}

	sheets, err := src.Sheets(ctx)
	if err != nil {
		return nil, err
	}

	return l.parser.Parse(ctx, source, sheets)
}

func (l *Loader) doneFetching(source string) {
	l.mu.Lock()
	if l.inflight[source]--; l.inflight[source] <= 0 {
		delete(l.inflight, source)
	}
	l.mu.Unlock()
}

func (l *Loader) generationLocked(source string) uint64 {
	return l.epoch<<32 | l.generation[source]
}

// Invalidate drops the cached table for source. The next Load refetches.
func (l *Loader) Invalidate(source string) {
	l.mu.Lock()
	delete(l.cache, source)
	l.generation[source]++
	l.mu.Unlock()

	l.group.Forget(source)
	l.logger.Info("dataset cache invalidated", slog.String("source", source))
}

// Clear drops every cached table. Fetches still running are detached, so
// a Load after Clear starts a fresh fetch and their results are discarded.
func (l *Loader) Clear() {
	l.mu.Lock()
	entries := len(l.cache)
	keys := make([]string, 0, entries+len(l.inflight))
	for k := range l.cache {
		keys = append(keys, k)
	}
	for k := range l.inflight {
		if _, cached := l.cache[k]; !cached {
			keys = append(keys, k)
		}
	}
	l.cache = make(map[string]*domain.SalesTable)
	l.epoch++
	l.mu.Unlock()

	for _, k := range keys {
		l.group.Forget(k)
	}
	l.logger.Info("dataset cache cleared", slog.Int("entries", entries))
}

// Cached reports whether source currently has a cached table.
func (l *Loader) Cached(source string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.cache[source]
	return ok
}

// Stats returns cache counters.
func (l *Loader) Stats() LoaderStats {
	l.mu.RLock()
	entries := len(l.cache)
	l.mu.RUnlock()

	return LoaderStats{
		Entries:  entries,
		Hits:     l.hits.Load(),
		Misses:   l.misses.Load(),
		Fetches:  l.fetches.Load(),
		Failures: l.failures.Load(),
	}
}
