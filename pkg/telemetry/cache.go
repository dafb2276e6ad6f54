package telemetry

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/lapviewer-go/log"
	"github.com/mpapenbr/lapviewer-go/pkg/model"
	"github.com/mpapenbr/lapviewer-go/pkg/utils/broadcast"
	utilsCache "github.com/mpapenbr/lapviewer-go/pkg/utils/cache"
	"github.com/mpapenbr/lapviewer-go/pkg/utils/cache/loadercache"
)

type EventType string

const (
	EventStored      EventType = "stored"
	EventInvalidated EventType = "invalidated"
	EventCleared     EventType = "cleared"
)

// Event notifies subscribers about changes of the cache content.
//
//nolint:tagliatelle // json api
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId"`
	LapID     int       `json:"lapId,omitempty"`
}

// LapEntry is a cached lap as handed to consumers.
type LapEntry struct {
	LapID     int
	Telemetry *model.LapTelemetry
}

type (
	Option func(*Cache)
	// Cache holds the telemetry of the laps of one analysis session.
	// Concurrent requests for the same lap share a single fetch.
	// All returned values are copies.
	Cache struct {
		sessionID string
		fetcher   Fetcher
		store     utilsCache.Cache[int, model.LapTelemetry]
		events    chan Event
		bcst      broadcast.BroadcastServer[Event]
		l         *log.Logger
		tracer    trace.Tracer
	}
)

func WithFetcher(f Fetcher) Option {
	return func(c *Cache) {
		c.fetcher = f
	}
}

func WithSessionID(id string) Option {
	return func(c *Cache) {
		c.sessionID = id
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Cache) {
		c.l = l
	}
}

func NewCache(opts ...Option) *Cache {
	c := &Cache{
		l:      log.Default().Named("telemetry.cache"),
		events: make(chan Event, 64),
		tracer: otel.Tracer("lv.telemetry"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.bcst = broadcast.NewBroadcastServer("telemetry."+c.sessionID, c.events,
		broadcast.WithLogger[Event](c.l.Named("bcst")),
		broadcast.WithListenerBuffer[Event](16))
	c.store = loadercache.New(
		loadercache.WithName[int, model.LapTelemetry]("telemetry"),
		loadercache.WithLogger[int, model.LapTelemetry](c.l),
		loadercache.WithLoader[int, model.LapTelemetry](c.load),
		loadercache.WithOnStore(func(lapID int, _ *model.LapTelemetry) {
			c.publish(Event{Type: EventStored, LapID: lapID})
		}),
		loadercache.WithOnInvalidate[int, model.LapTelemetry](func(lapID int) {
			c.publish(Event{Type: EventInvalidated, LapID: lapID})
		}),
		loadercache.WithOnInvalidateAll[int, model.LapTelemetry](func() {
			c.publish(Event{Type: EventCleared})
		}),
	)
	return c
}

// GetTelemetryForLap returns the telemetry of the lap, fetching it if needed.
// sessionID is only used for logging and tracing, laps are identified by lapID.
//
//nolint:whitespace // can't make both editor and linter happy
func (c *Cache) GetTelemetryForLap(
	ctx context.Context,
	sessionID string,
	lapID int,
) (*model.LapTelemetry, error) {
	ctx, span := c.tracer.Start(ctx, "telemetry.GetTelemetryForLap",
		trace.WithAttributes(
			attribute.String("session", sessionID),
			attribute.Int("lap", lapID)))
	defer span.End()

	v, err := c.store.Get(ctx, lapID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return v.Clone(), nil
}

// Invalidate removes the lap and its in-flight marker. A running fetch is not
// canceled but its result will not be stored.
func (c *Cache) Invalidate(ctx context.Context, lapID int) {
	c.store.Invalidate(ctx, lapID)
}

// ClearAll removes all laps.
func (c *Cache) ClearAll(ctx context.Context) {
	c.store.InvalidateAll(ctx)
}

// Snapshot returns copies of the requested laps in the given order.
// Laps not present in the cache are skipped.
func (c *Cache) Snapshot(lapIDs ...int) []LapEntry {
	ret := make([]LapEntry, 0, len(lapIDs))
	for _, id := range lapIDs {
		if v, ok := c.store.Peek(id); ok {
			ret = append(ret, LapEntry{LapID: id, Telemetry: v.Clone()})
		}
	}
	return ret
}

// Cached returns the ids of the cached laps in ascending order.
func (c *Cache) Cached() []int {
	ret := c.store.Keys()
	slices.Sort(ret)
	return ret
}

func (c *Cache) Subscribe() <-chan Event {
	return c.bcst.Subscribe()
}

func (c *Cache) CancelSubscription(ch <-chan Event) {
	c.bcst.CancelSubscription(ch)
}

func (c *Cache) Close() {
	c.bcst.Close()
}

func (c *Cache) load(ctx context.Context, lapID int) (*model.LapTelemetry, error) {
	if c.fetcher == nil {
		return nil, &FetchError{LapID: lapID, Err: errors.New("no fetcher configured")}
	}
	ctx, span := c.tracer.Start(ctx, "telemetry.fetch",
		trace.WithAttributes(attribute.Int("lap", lapID)))
	defer span.End()

	data, err := c.fetcher.GetLapData(ctx, lapID)
	if err == nil && data == nil {
		err = ErrLapNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.l.Error("error fetching telemetry",
			log.String("session", c.sessionID),
			log.Int("lap", lapID),
			log.ErrorField(err))
		return nil, &FetchError{LapID: lapID, Err: err}
	}
	if !slices.IsSortedFunc(data.Points, byDistance) {
		c.l.Debug("sorting points by distance", log.Int("lap", lapID))
		slices.SortStableFunc(data.Points, byDistance)
	}
	span.SetAttributes(attribute.Int("points", len(data.Points)))
	c.l.Debug("fetched telemetry",
		log.String("session", c.sessionID),
		log.Int("lap", lapID),
		log.Int("points", len(data.Points)),
		log.Bool("mapData", data.MapDataAvailable))
	return data, nil
}

func (c *Cache) publish(e Event) {
	e.SessionID = c.sessionID
	select {
	case c.events <- e:
	default:
		c.l.Warn("event queue full, dropping cache event",
			log.String("type", string(e.Type)), log.Int("lap", e.LapID))
	}
}

func byDistance(a, b model.TelemetryPoint) int {
	return cmp.Compare(a.Distance, b.Distance)
}
