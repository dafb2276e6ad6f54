// Package graphql fetches lap telemetry from a Paddock style GraphQL endpoint.
package graphql

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mpapenbr/lapviewer-go/log"
	"github.com/mpapenbr/lapviewer-go/pkg/model"
	"github.com/mpapenbr/lapviewer-go/pkg/telemetry"
)

const DefaultURL = "http://telemetry.b4mad.racing:30050/graphql"

const DefaultQuery = `query LapTelemetry($lapId: Int!) {
  lapTelemetry(lapId: $lapId) {
    mapDataAvailable
    points { distance speed throttle brake handbrake gear delta lapTime x y }
  }
}`

// DefaultMaxResponseSize limits the bytes read from a response.
const DefaultMaxResponseSize = 64 << 20

var (
	ErrGraphQL          = errors.New("graphql error")
	ErrResponseTooLarge = errors.New("graphql response too large")
)

var (
	errorsPath = jp.MustParseString("$.errors[*].message")
	dataPath   = jp.MustParseString("$.data.lapTelemetry")
)

type (
	Option  func(*Fetcher)
	Fetcher struct {
		url     string
		query   string
		headers http.Header
		client  *http.Client
		timeout time.Duration
		maxSize int64
		l       *log.Logger
	}
)

var _ telemetry.Fetcher = (*Fetcher)(nil)

func WithURL(url string) Option {
	return func(f *Fetcher) {
		f.url = url
	}
}

// WithQuery replaces the query. It must accept $lapId and select lapTelemetry.
func WithQuery(q string) Option {
	return func(f *Fetcher) {
		f.query = q
	}
}

func WithHeader(key, value string) Option {
	return func(f *Fetcher) {
		f.headers.Add(key, value)
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithTimeout limits a single request. It applies to custom clients too.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithMaxResponseSize limits the size of a response body in bytes.
func WithMaxResponseSize(n int64) Option {
	return func(f *Fetcher) {
		f.maxSize = n
	}
}

func WithLogger(l *log.Logger) Option {
	return func(f *Fetcher) {
		f.l = l
	}
}

func New(opts ...Option) *Fetcher {
	ret := &Fetcher{
		url:     DefaultURL,
		query:   DefaultQuery,
		headers: http.Header{},
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxSize: DefaultMaxResponseSize,
		l:       log.Default().Named("fetch.graphql"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.timeout > 0 {
		ret.client.Timeout = ret.timeout
	}
	return ret
}

//nolint:whitespace // can't make both editor and linter happy
func (f *Fetcher) GetLapData(
	ctx context.Context,
	lapID int,
) (*model.LapTelemetry, error) {
	body := oj.JSON(map[string]any{
		"query":     f.query,
		"variables": map[string]any{"lapId": lapID},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url,
		bytes.NewBufferString(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range f.headers {
		req.Header[k] = v
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphql request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("graphql response: %w", err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, f.maxSize)
	}
	f.l.Debug("graphql response",
		log.Int("lap", lapID),
		log.Int("status", resp.StatusCode),
		log.Int("bytes", len(data)),
		log.Duration("duration", time.Since(start)))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrGraphQL, resp.StatusCode)
	}
	return ParseResponse(data)
}

// ParseResponse extracts the lap telemetry of a GraphQL response.
// A null lapTelemetry yields telemetry.ErrLapNotFound.
func ParseResponse(data []byte) (*model.LapTelemetry, error) {
	obj, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse graphql response: %w", err)
	}
	if msgs := errorsPath.Get(obj); len(msgs) > 0 {
		texts := make([]string, 0, len(msgs))
		for _, m := range msgs {
			texts = append(texts, fmt.Sprint(m))
		}
		return nil, fmt.Errorf("%w: %s", ErrGraphQL, strings.Join(texts, "; "))
	}
	res := dataPath.Get(obj)
	if len(res) == 0 || res[0] == nil {
		return nil, telemetry.ErrLapNotFound
	}
	ret := &model.LapTelemetry{}
	if err := oj.Unmarshal([]byte(oj.JSON(res[0])), ret); err != nil {
		return nil, fmt.Errorf("decode lap telemetry: %w", err)
	}
	return ret, nil
}
