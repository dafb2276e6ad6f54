package nats

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mpapenbr/lapviewer-go/log"
	"github.com/mpapenbr/lapviewer-go/pkg/telemetry"
)

// Responder answers lap requests of other instances from a local fetcher.
type Responder struct {
	conn    *nats.Conn
	fetcher telemetry.Fetcher
	cfg     *config
	sub     *nats.Subscription
	kv      jetstream.KeyValue
}

// Serve subscribes to lap requests. Requests are handled concurrently.
//
//nolint:whitespace // can't make both editor and linter happy
func Serve(
	conn *nats.Conn,
	fetcher telemetry.Fetcher,
	opts ...Option,
) (*Responder, error) {
	ret := &Responder{conn: conn, fetcher: fetcher, cfg: newConfig(opts)}
	if ret.cfg.bucket != "" {
		kv, err := setupKV(conn, ret.cfg.bucket)
		if err != nil {
			return nil, err
		}
		ret.kv = kv
	}
	sub, err := conn.QueueSubscribe(ret.cfg.prefix+".*", queueGroup,
		func(msg *nats.Msg) {
			go ret.handle(msg)
		})
	if err != nil {
		return nil, err
	}
	ret.sub = sub
	ret.cfg.l.Info("serving lap requests", log.String("subject", sub.Subject))
	return ret, nil
}

func (r *Responder) handle(msg *nats.Msg) {
	lapID, err := LapIDFromSubject(r.cfg.prefix, msg.Subject)
	if err != nil {
		r.cfg.l.Warn("ignoring request", log.String("subject", msg.Subject),
			log.ErrorField(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.timeout)
	defer cancel()
	start := time.Now()
	lap, err := r.fetcher.GetLapData(ctx, lapID)
	if err == nil && r.kv != nil {
		if kvErr := putKV(ctx, r.kv, lapID, lap); kvErr != nil {
			r.cfg.l.Warn("could not store lap in kv", log.Int("lap", lapID),
				log.ErrorField(kvErr))
		}
	}
	if respErr := msg.Respond(encodeReply(lap, err)); respErr != nil {
		r.cfg.l.Error("could not respond", log.Int("lap", lapID),
			log.ErrorField(respErr))
		return
	}
	r.cfg.l.Debug("answered lap request",
		log.Int("lap", lapID),
		log.Duration("duration", time.Since(start)),
		log.ErrorField(err))
}

func (r *Responder) Close() error {
	return r.sub.Drain()
}
