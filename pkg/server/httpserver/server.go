// Package httpserver exposes the sessions over HTTP: telemetry, the shared
// zoom window, landmark selection, composed charts and a server-sent event
// stream.
package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mpapenbr/lapviewer-go/log"
	"github.com/mpapenbr/lapviewer-go/pkg/landmark"
	"github.com/mpapenbr/lapviewer-go/pkg/session"
)

const requestIDHeader = "X-Request-ID"

type (
	Option func(*Server)
	Server struct {
		registry  *session.Registry
		landmarks landmark.Source
		router    *gin.Engine
		mu        sync.Mutex
		servers   []*http.Server
		keepAlive time.Duration
		l         *log.Logger
	}
)

func WithRegistry(r *session.Registry) Option {
	return func(s *Server) {
		s.registry = r
	}
}

// WithLandmarks sets the source for track landmarks. Without one every
// track is treated as having no landmarks.
func WithLandmarks(src landmark.Source) Option {
	return func(s *Server) {
		s.landmarks = src
	}
}

// WithKeepAlive sets the interval of ping events on the event stream.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) {
		s.keepAlive = d
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		s.l = l
	}
}

func New(opts ...Option) *Server {
	ret := &Server{
		keepAlive: 15 * time.Second,
		l:         log.Default().Named("http"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.registry == nil {
		ret.registry = session.NewRegistry()
	}
	ret.router = ret.setupRouter()
	return ret
}

// Router returns the gin engine without the outer http wrappers.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Handler returns the router wrapped with tracing, CORS and h2c support.
func (s *Server) Handler() http.Handler {
	return h2c.NewHandler(
		newCORS().Handler(otelhttp.NewHandler(s.router, "lapviewer")),
		&http2.Server{})
}

// Start listens on addr and serves in the background. A non-nil tlsConfig
// enables TLS. Start may be called more than once to serve several addresses.
//
//nolint:whitespace // can't make both editor and linter happy
func (s *Server) Start(
	ctx context.Context,
	addr string,
	tlsConfig *tls.Config,
) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         tlsConfig,
	}
	s.mu.Lock()
	s.servers = append(s.servers, server)
	s.mu.Unlock()
	s.l.Info("Starting http server",
		log.String("addr", listener.Addr().String()),
		log.Bool("tls", tlsConfig != nil))
	go func() {
		var err error
		if tlsConfig != nil {
			err = server.ServeTLS(listener, "", "")
		} else {
			err = server.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Error("http server stopped", log.ErrorField(err))
		}
	}()
	return nil
}

// Stop shuts all listeners down and waits up to 5s for running requests.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errs := make([]error, 0, len(s.servers))
	for _, server := range s.servers {
		errs = append(errs, server.Shutdown(ctx))
	}
	s.servers = nil
	return errors.Join(errs...)
}

func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/graphs", s.handleGraphs)
	api.GET("/tracks/:track/landmarks", s.handleGetLandmarks)

	sess := api.Group("/sessions/:session")
	sess.GET("/laps", s.handleCachedLaps)
	sess.GET("/laps/:lap/telemetry", s.handleGetTelemetry)
	sess.DELETE("/laps/:lap/telemetry", s.handleInvalidate)
	sess.DELETE("/telemetry", s.handleClearAll)
	sess.GET("/zoom", s.handleGetZoom)
	sess.PUT("/zoom", s.handleSetZoom)
	sess.DELETE("/zoom", s.handleResetZoom)
	sess.PUT("/annotations", s.handleAnnotations)
	sess.POST("/landmark", s.handleSelectLandmark)
	sess.GET("/charts/:graph", s.handleChart)
	sess.GET("/charts/:graph/preview", s.handlePreview)
	sess.GET("/events", s.handleEvents)
	sess.DELETE("", s.handleRemoveSession)
	return r
}

// requestLogger assigns a request id and puts a logger carrying it into the
// request context.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		l := s.l.With(log.String("requestId", id))
		c.Request = c.Request.WithContext(log.AddToContext(c.Request.Context(), l))
		start := time.Now()
		c.Next()
		l.Debug("request",
			log.String("method", c.Request.Method),
			log.String("path", c.FullPath()),
			log.Int("status", c.Writer.Status()),
			log.Duration("duration", time.Since(start)))
	}
}

func newCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{
			"Accept",
			"Accept-Encoding",
			"Content-Encoding",
			requestIDHeader,
		},
		MaxAge: int(2 * time.Hour / time.Second),
	})
}
