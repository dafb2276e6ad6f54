package loadercache

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/sync/singleflight"

	"github.com/mpapenbr/lapviewer-go/log"
	"github.com/mpapenbr/lapviewer-go/pkg/utils/cache"
)

// based on github.com/kittpat1413/go-common/framework/cache/localcache/localcache.go
//
// Entries never expire. Concurrent Get calls for a missing key share a single
// loader call. Invalidate/InvalidateAll drop the in-flight marker so the next
// Get starts a new load; a load that was started before the invalidation still
// answers its own callers but does not store its result.

type (
	Option[K comparable, V any] func(*config[K, V])
	LoaderFunc[K comparable, V any] func(ctx context.Context, key K) (*V, error)
	config[K comparable, V any]     struct {
		name            string
		loader          LoaderFunc[K, V]
		l               *log.Logger
		keyFunc         func(K) string
		onStore         func(K, *V)
		onInvalidate    func(K)
		onInvalidateAll func()
	}
	loaderCache[K comparable, V any] struct {
		mutex    sync.Mutex
		items    map[K]*V
		gen      map[K]uint64 // bumped on Invalidate
		epoch    uint64       // bumped on InvalidateAll
		inflight map[K]int
		group    singleflight.Group
		config   *config[K, V]
		metrics  *cacheMetrics
	}
	cacheMetrics struct {
		hits        metric.Int64Counter
		misses      metric.Int64Counter
		loads       metric.Int64Counter
		loadErrors  metric.Int64Counter
		invalidated metric.Int64Counter
		attrs       metric.MeasurementOption
	}
)

var _ cache.Cache[string, string] = (*loaderCache[string, string])(nil)

func WithLoader[K comparable, V any](lf LoaderFunc[K, V]) Option[K, V] {
	return func(c *config[K, V]) {
		c.loader = lf
	}
}

func WithLogger[K comparable, V any](arg *log.Logger) Option[K, V] {
	return func(c *config[K, V]) {
		c.l = arg
	}
}

// WithName is used as metric attribute to tell several caches apart.
func WithName[K comparable, V any](name string) Option[K, V] {
	return func(c *config[K, V]) {
		c.name = name
	}
}

// WithKeyFunc sets the function that maps a key to the string used for
// request coalescing. Defaults to fmt.Sprint.
func WithKeyFunc[K comparable, V any](f func(K) string) Option[K, V] {
	return func(c *config[K, V]) {
		c.keyFunc = f
	}
}

// WithOnStore registers a callback invoked after a loaded value was stored.
// It is called without holding the cache lock.
func WithOnStore[K comparable, V any](f func(K, *V)) Option[K, V] {
	return func(c *config[K, V]) {
		c.onStore = f
	}
}

func WithOnInvalidate[K comparable, V any](f func(K)) Option[K, V] {
	return func(c *config[K, V]) {
		c.onInvalidate = f
	}
}

func WithOnInvalidateAll[K comparable, V any](f func()) Option[K, V] {
	return func(c *config[K, V]) {
		c.onInvalidateAll = f
	}
}

func New[K comparable, V any](opts ...Option[K, V]) cache.Cache[K, V] {
	c := &config[K, V]{
		name:    "default",
		l:       log.Default().Named("cache"),
		keyFunc: func(k K) string { return fmt.Sprint(k) },
	}
	for _, opt := range opts {
		opt(c)
	}
	return &loaderCache[K, V]{
		mutex:    sync.Mutex{},
		items:    make(map[K]*V),
		gen:      make(map[K]uint64),
		inflight: make(map[K]int),
		config:   c,
		metrics:  newCacheMetrics(c.name, c.l),
	}
}

func (c *loaderCache[K, V]) Get(ctx context.Context, key K) (*V, error) {
	c.mutex.Lock()
	if v, ok := c.items[key]; ok {
		c.mutex.Unlock()
		c.metrics.hits.Add(ctx, 1, c.metrics.attrs)
		return v, nil
	}
	c.mutex.Unlock()
	c.metrics.misses.Add(ctx, 1, c.metrics.attrs)

	if c.config.loader == nil {
		return nil, cache.ErrCacheMiss
	}
	// the shared load must not be canceled by the caller that happened to start it
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(c.config.keyFunc(key), func() (any, error) {
		return c.load(loadCtx, key)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		v, _ := res.Val.(*V)
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load runs at most once per key at a time (guarded by the singleflight group)
func (c *loaderCache[K, V]) load(ctx context.Context, key K) (*V, error) {
	c.mutex.Lock()
	// a load that finished between the miss in Get and joining the group
	if v, ok := c.items[key]; ok {
		c.mutex.Unlock()
		return v, nil
	}
	startGen, startEpoch := c.gen[key], c.epoch
	c.inflight[key]++
	c.mutex.Unlock()

	c.config.l.Debug("loaderCache.load", log.Any("key", key))
	c.metrics.loads.Add(ctx, 1, c.metrics.attrs)
	v, err := c.config.loader(ctx, key)

	c.mutex.Lock()
	if c.inflight[key]--; c.inflight[key] <= 0 {
		delete(c.inflight, key)
	}
	if err != nil {
		c.mutex.Unlock()
		c.metrics.loadErrors.Add(ctx, 1, c.metrics.attrs)
		c.config.l.Debug("error loading entry", log.Any("key", key), log.ErrorField(err))
		return nil, err
	}
	stored := false
	if c.gen[key] == startGen && c.epoch == startEpoch {
		c.items[key] = v
		stored = true
	}
	c.mutex.Unlock()

	if !stored {
		c.config.l.Debug("discarding result of invalidated load", log.Any("key", key))
		return v, nil
	}
	if c.config.onStore != nil {
		c.config.onStore(key, v)
	}
	return v, nil
}

func (c *loaderCache[K, V]) Peek(key K) (*V, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *loaderCache[K, V]) Keys() []K {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	ret := make([]K, 0, len(c.items))
	for k := range c.items {
		ret = append(ret, k)
	}
	return ret
}

func (c *loaderCache[K, V]) Invalidate(ctx context.Context, key K) {
	c.mutex.Lock()
	c.config.l.Debug("Invalidate", log.Any("key", key))
	delete(c.items, key)
	c.gen[key]++
	c.group.Forget(c.config.keyFunc(key))
	c.config.l.Debug("Invalidate", log.Int("remain items", len(c.items)))
	c.mutex.Unlock()

	c.metrics.invalidated.Add(ctx, 1, c.metrics.attrs)
	if c.config.onInvalidate != nil {
		c.config.onInvalidate(key)
	}
}

func (c *loaderCache[K, V]) InvalidateAll(ctx context.Context) {
	c.mutex.Lock()
	num := len(c.items)
	c.config.l.Debug("InvalidateAll", log.Int("items", num),
		log.Int("inflight", len(c.inflight)))
	c.items = make(map[K]*V)
	c.epoch++
	for k := range c.inflight {
		c.group.Forget(c.config.keyFunc(k))
	}
	c.mutex.Unlock()

	c.metrics.invalidated.Add(ctx, int64(num), c.metrics.attrs)
	if c.config.onInvalidateAll != nil {
		c.config.onInvalidateAll()
	}
}

func newCacheMetrics(name string, l *log.Logger) *cacheMetrics {
	meter := otel.GetMeterProvider().Meter("lv.cache")
	counter := func(metricName, desc string) metric.Int64Counter {
		ret, err := meter.Int64Counter(metricName,
			metric.WithDescription(desc),
			metric.WithUnit("{count}"))
		if err != nil {
			l.Error("failed to register metric",
				log.String("metric", metricName),
				log.ErrorField(err))
			return noop.Int64Counter{}
		}
		return ret
	}
	return &cacheMetrics{
		hits:        counter("lv.cache.hits", "Number of cache hits"),
		misses:      counter("lv.cache.misses", "Number of cache misses"),
		loads:       counter("lv.cache.loads", "Number of loader calls"),
		loadErrors:  counter("lv.cache.load_errors", "Number of failed loader calls"),
		invalidated: counter("lv.cache.invalidated", "Number of invalidated entries"),
		attrs:       metric.WithAttributes(attribute.String("name", name)),
	}
}
