package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/lapviewer-go/log"
)

//nolint:lll // by design
// see https://betterprogramming.pub/how-to-broadcast-messages-in-go-using-channels-b68f42bdf32e

type BroadcastServer[T any] interface {
	Subscribe() <-chan T
	CancelSubscription(<-chan T)
	Close()
}

type broadcastServer[T any] struct {
	name           string
	source         <-chan T
	listeners      []chan T
	addListener    chan chan T
	removeListener chan (<-chan T)
	ctx            context.Context
	cancel         context.CancelFunc
	sendTimeout    time.Duration
	bufferSize     int
	l              *log.Logger
	numRcv         atomic.Int64
	numSnd         atomic.Int64
	numSkip        atomic.Int64
	numListener    atomic.Int64
	meterProvider  metric.MeterProvider
	metricReg      metric.Registration
	closeOnce      sync.Once
}

type Option[T any] func(*broadcastServer[T])

// WithSendTimeout sets how long a message waits for a slow listener before
// it is skipped for that listener.
func WithSendTimeout[T any](d time.Duration) Option[T] {
	return func(b *broadcastServer[T]) {
		b.sendTimeout = d
	}
}

// WithListenerBuffer sets the channel buffer of each subscription.
func WithListenerBuffer[T any](size int) Option[T] {
	return func(b *broadcastServer[T]) {
		b.bufferSize = size
	}
}

// WithMeterProvider sets where the gauges are reported. Defaults to the
// global provider.
func WithMeterProvider[T any](mp metric.MeterProvider) Option[T] {
	return func(b *broadcastServer[T]) {
		b.meterProvider = mp
	}
}

func WithLogger[T any](l *log.Logger) Option[T] {
	return func(b *broadcastServer[T]) {
		b.l = l
	}
}

// Subscribe returns a channel that receives every message published after the
// call. The channel is closed on CancelSubscription or Close.
func (b *broadcastServer[T]) Subscribe() <-chan T {
	ch := make(chan T, b.bufferSize)
	select {
	case b.addListener <- ch:
	case <-b.ctx.Done():
		close(ch)
	}
	return ch
}

func (b *broadcastServer[T]) CancelSubscription(ch <-chan T) {
	select {
	case b.removeListener <- ch:
	case <-b.ctx.Done():
	}
}

func (b *broadcastServer[T]) Close() {
	b.l.Info("Closing broadcast server",
		log.String("name", b.name),
		log.Int64("rcv", b.numRcv.Load()),
		log.Int64("snd", b.numSnd.Load()),
		log.Int64("skip", b.numSkip.Load()))
	b.closeOnce.Do(b.unregisterMetrics)
	b.cancel()
}

//nolint:whitespace // false positive
func NewBroadcastServer[T any](
	name string,
	source <-chan T,
	opts ...Option[T],
) BroadcastServer[T] {
	ctx, cancel := context.WithCancel(context.Background())
	b := &broadcastServer[T]{
		name:           name,
		source:         source,
		addListener:    make(chan chan T),
		removeListener: make(chan (<-chan T)),
		ctx:            ctx,
		cancel:         cancel,
		sendTimeout:    50 * time.Millisecond,
		bufferSize:     1,
		l:              log.Default().Named("broadcast"),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.setupMetrics()
	go b.serve()
	return b
}

func (b *broadcastServer[T]) setupMetrics() {
	meter := b.meterProvider.Meter("lv.broadcast")
	type data struct {
		name  string
		desc  string
		value func() int64
	}
	gauges := []*data{
		{"lv.broadcast.rcv", "Number of received messages", b.numRcv.Load},
		{"lv.broadcast.snd", "Number of sent messages", b.numSnd.Load},
		{"lv.broadcast.skip", "Number of skipped messages", b.numSkip.Load},
		{"lv.broadcast.listener", "Number of listeners", b.numListener.Load},
	}
	instruments := make([]metric.Int64ObservableGauge, 0, len(gauges))
	observables := make([]metric.Observable, 0, len(gauges))
	values := make([]func() int64, 0, len(gauges))
	for _, d := range gauges {
		g, err := meter.Int64ObservableGauge(d.name,
			metric.WithDescription(d.desc),
			metric.WithUnit("{count}"))
		if err != nil {
			b.l.Error("failed to register metric",
				log.String("metric", d.name),
				log.ErrorField(err))
			continue
		}
		instruments = append(instruments, g)
		observables = append(observables, g)
		values = append(values, d.value)
	}
	if len(observables) == 0 {
		return
	}
	attrs := metric.WithAttributes(attribute.String("name", b.name))
	reg, err := meter.RegisterCallback(
		func(_ context.Context, o metric.Observer) error {
			for i, g := range instruments {
				o.ObserveInt64(g, values[i](), attrs)
			}
			return nil
		}, observables...)
	if err != nil {
		b.l.Error("failed to register metric callback",
			log.String("name", b.name),
			log.ErrorField(err))
		return
	}
	b.metricReg = reg
}

// unregisterMetrics stops reporting gauges for this server.
func (b *broadcastServer[T]) unregisterMetrics() {
	if b.metricReg == nil {
		return
	}
	if err := b.metricReg.Unregister(); err != nil {
		b.l.Warn("failed to unregister metric callback",
			log.String("name", b.name),
			log.ErrorField(err))
	}
}

//nolint:funlen,cyclop,gocognit // by design
func (b *broadcastServer[T]) serve() {
	defer func() {
		b.l.Debug("Closing listeners", log.String("name", b.name))
		for _, listener := range b.listeners {
			close(listener)
		}
		b.listeners = nil
		b.numListener.Store(0)
	}()
	for {
		select {
		case <-b.ctx.Done():
			b.l.Debug("broadcast server about to be closed", log.String("name", b.name))
			return
		case ch := <-b.addListener:
			b.listeners = append(b.listeners, ch)
			b.numListener.Store(int64(len(b.listeners)))
		case ch := <-b.removeListener:
			for i, listener := range b.listeners {
				if listener == ch {
					b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
					close(listener)
					break
				}
			}
			b.numListener.Store(int64(len(b.listeners)))
			b.l.Debug("removed listener",
				log.String("name", b.name), log.Int("len", len(b.listeners)))
		case msg, ok := <-b.source:
			if !ok {
				b.l.Debug("source closed", log.String("name", b.name))
				b.cancel()
				return
			}
			b.numRcv.Add(1)
			for _, listener := range b.listeners {
				select {
				case listener <- msg:
					b.numSnd.Add(1)
				// don't wait too long, a slow listener must not block the others
				case <-time.After(b.sendTimeout):
					b.numSkip.Add(1)
				}
			}
		}
	}
}
