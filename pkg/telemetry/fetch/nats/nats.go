// Package nats exchanges lap telemetry between lapviewer instances.
//
// A Responder answers requests on lv.telemetry.lap.<lapID> from its own
// fetcher, a Fetcher sends such requests. Optionally both share a JetStream
// key value bucket so that a lap fetched once is available to all instances.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mpapenbr/lapviewer-go/log"
	"github.com/mpapenbr/lapviewer-go/pkg/model"
	"github.com/mpapenbr/lapviewer-go/pkg/telemetry"
)

const (
	DefaultSubjectPrefix = "lv.telemetry.lap"
	DefaultBucket        = "lv_laps"
	queueGroup           = "lv"
)

var ErrRemote = errors.New("remote fetch failed")

// reply is the payload answered by the responder
type reply struct {
	Lap      *model.LapTelemetry `json:"lap,omitempty"`
	Error    string              `json:"error,omitempty"`
	NotFound bool                `json:"notFound,omitempty"`
}

type (
	Option func(*config)
	config struct {
		prefix  string
		timeout time.Duration
		bucket  string
		l       *log.Logger
	}
	Fetcher struct {
		conn *nats.Conn
		cfg  *config
		kv   jetstream.KeyValue
	}
)

var _ telemetry.Fetcher = (*Fetcher)(nil)

func WithSubjectPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = prefix
	}
}

// WithTimeout limits the wait for a reply.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithBucket enables the shared key value store. An empty name disables it.
func WithBucket(name string) Option {
	return func(c *config) {
		c.bucket = name
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *config) {
		c.l = l
	}
}

func newConfig(opts []Option) *config {
	ret := &config{
		prefix:  DefaultSubjectPrefix,
		timeout: 30 * time.Second,
		l:       log.Default().Named("fetch.nats"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func NewFetcher(conn *nats.Conn, opts ...Option) (*Fetcher, error) {
	ret := &Fetcher{conn: conn, cfg: newConfig(opts)}
	if ret.cfg.bucket != "" {
		kv, err := setupKV(conn, ret.cfg.bucket)
		if err != nil {
			return nil, err
		}
		ret.kv = kv
	}
	return ret, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (f *Fetcher) GetLapData(
	ctx context.Context,
	lapID int,
) (*model.LapTelemetry, error) {
	if f.kv != nil {
		if lap, err := getKV(ctx, f.kv, lapID); err == nil {
			f.cfg.l.Debug("lap from kv", log.Int("lap", lapID))
			return lap, nil
		} else if !errors.Is(err, jetstream.ErrKeyNotFound) {
			f.cfg.l.Warn("could not read lap from kv", log.Int("lap", lapID),
				log.ErrorField(err))
		}
	}
	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.timeout)
	defer cancel()
	msg, err := f.conn.RequestWithContext(reqCtx, Subject(f.cfg.prefix, lapID), nil)
	if err != nil {
		return nil, fmt.Errorf("nats request: %w", err)
	}
	lap, err := decodeReply(msg.Data)
	if err != nil {
		return nil, err
	}
	if f.kv != nil {
		if err := putKV(ctx, f.kv, lapID, lap); err != nil {
			f.cfg.l.Warn("could not store lap in kv", log.Int("lap", lapID),
				log.ErrorField(err))
		}
	}
	return lap, nil
}

// Subject returns the request subject of a lap.
func Subject(prefix string, lapID int) string {
	return fmt.Sprintf("%s.%d", prefix, lapID)
}

// LapIDFromSubject extracts the lap id of a request subject.
func LapIDFromSubject(prefix, subject string) (int, error) {
	rest, ok := strings.CutPrefix(subject, prefix+".")
	if !ok {
		return 0, fmt.Errorf("unexpected subject %q", subject)
	}
	return strconv.Atoi(rest)
}

func encodeReply(lap *model.LapTelemetry, err error) []byte {
	r := reply{Lap: lap}
	if err != nil {
		r.Lap = nil
		r.Error = err.Error()
		r.NotFound = errors.Is(err, telemetry.ErrLapNotFound)
	}
	//nolint:errchkjson // plain structs
	data, _ := json.Marshal(r)
	return data
}

func decodeReply(data []byte) (*model.LapTelemetry, error) {
	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	switch {
	case r.NotFound:
		return nil, telemetry.ErrLapNotFound
	case r.Error != "":
		return nil, fmt.Errorf("%w: %s", ErrRemote, r.Error)
	case r.Lap == nil:
		return nil, telemetry.ErrLapNotFound
	}
	return r.Lap, nil
}

func setupKV(conn *nats.Conn, bucket string) (jetstream.KeyValue, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, err
	}
	return js.CreateOrUpdateKeyValue(context.Background(), jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "lap telemetry shared by lapviewer instances",
	})
}

func kvKey(lapID int) string {
	return fmt.Sprintf("lap.%d", lapID)
}

func getKV(ctx context.Context, kv jetstream.KeyValue, lapID int) (*model.LapTelemetry, error) {
	entry, err := kv.Get(ctx, kvKey(lapID))
	if err != nil {
		return nil, err
	}
	ret := &model.LapTelemetry{}
	if err := json.Unmarshal(entry.Value(), ret); err != nil {
		return nil, err
	}
	return ret, nil
}

//nolint:whitespace // can't make both editor and linter happy
func putKV(
	ctx context.Context,
	kv jetstream.KeyValue,
	lapID int,
	lap *model.LapTelemetry,
) error {
	data, err := json.Marshal(lap)
	if err != nil {
		return err
	}
	_, err = kv.Put(ctx, kvKey(lapID), data)
	return err
}
