package server

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // by design
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/mpapenbr/lapviewer-go/log"
	"github.com/mpapenbr/lapviewer-go/pkg/cmd/util"
	"github.com/mpapenbr/lapviewer-go/pkg/config"
	"github.com/mpapenbr/lapviewer-go/pkg/landmark"
	landmarkFile "github.com/mpapenbr/lapviewer-go/pkg/landmark/file"
	landmarkPg "github.com/mpapenbr/lapviewer-go/pkg/landmark/postgres"
	"github.com/mpapenbr/lapviewer-go/pkg/server/httpserver"
	"github.com/mpapenbr/lapviewer-go/pkg/session"
	natsFetch "github.com/mpapenbr/lapviewer-go/pkg/telemetry/fetch/nats"
	"github.com/mpapenbr/lapviewer-go/pkg/utils/certs"
)

//nolint:funlen // by design
func NewServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "starts the http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&config.Addr,
		"addr",
		"a",
		"localhost:8080",
		"http server listen address")
	cmd.Flags().StringVar(&config.TLSAddr,
		"tls-addr",
		"",
		"https server listen address (requires cert settings)")
	cmd.Flags().StringVar(&config.TLSCertFile,
		"tls-cert",
		"",
		"file containing the server certificate")
	cmd.Flags().StringVar(&config.TLSKeyFile,
		"tls-key",
		"",
		"file containing the server key")
	cmd.Flags().StringVar(&config.TLSCAFile,
		"tls-ca",
		"",
		"file containing the CA for client certificates")
	cmd.Flags().StringVar(&config.TraefikCerts,
		"traefik-certs",
		"",
		"traefik acme file to take the server certificate from")
	cmd.Flags().StringVar(&config.TraefikCertDomain,
		"traefik-cert-domain",
		"",
		"domain to look up in the traefik acme file")
	cmd.Flags().BoolVar(&config.ServeNats,
		"serve-nats",
		false,
		"answer lap requests of other instances received via nats")
	cmd.Flags().IntVar(&config.MaxSessions,
		"max-sessions",
		100,
		"maximum number of analysis sessions (0: no limit)")
	cmd.Flags().StringVar(&config.LandmarksSource,
		"landmarks-source",
		"",
		"where track landmarks are read from (file, postgres)")
	cmd.Flags().StringVar(&config.LandmarksFile,
		"landmarks-file",
		"landmarks.yml",
		"landmarks yaml file, reloaded on change")
	cmd.Flags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	cmd.Flags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data")
	cmd.Flags().BoolVar(&config.TelemetryStdout,
		"telemetry-stdout",
		false,
		"write telemetry data to stdout instead of the endpoint")
	cmd.Flags().IntVar(&config.ProfilingPort,
		"profiling-port",
		0,
		"port to use for providing profiling data")
	return cmd
}

//nolint:funlen,cyclop // by design
func startServer(parent context.Context) error {
	logger, sqlLogger := util.SetupLogger()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(log.AddToContext(parent, logger),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	appConfig, err := util.AppConfig()
	if err != nil {
		return err
	}
	log.Debug("Config:",
		log.String("fetcher", appConfig.Fetcher),
		log.String("db", config.DB),
		log.String("nats", config.NatsURL),
		log.String("landmarks", appConfig.LandmarksSource),
	)

	if config.ProfilingPort > 0 {
		log.Info("Starting profiling server on port", log.Int("port", config.ProfilingPort))
		go func() {
			//nolint:gosec // by design
			err := http.ListenAndServe(
				fmt.Sprintf("localhost:%d", config.ProfilingPort),
				nil)
			if err != nil {
				log.Error("Profiling server stopped", log.ErrorField(err))
			}
		}()
	}

	var telemetry *config.Telemetry
	if config.EnableTelemetry {
		log.Info("Enabling telemetry")
		if telemetry, err = config.SetupTelemetry(ctx); err != nil {
			log.Warn("Could not setup telemetry", log.ErrorField(err))
		}
		err = otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
		if err != nil {
			log.Warn("Could not start runtime metrics", log.ErrorField(err))
		}
	}

	util.WaitForRequiredServices(ctx, appConfig)
	backends, err := util.Connect(ctx, appConfig, sqlLogger, telemetry != nil)
	if err != nil {
		log.Error("could not connect backends", log.ErrorField(err))
		return err
	}
	defer backends.Close()

	fetcher, err := util.NewFetcher(appConfig, backends)
	if err != nil {
		return err
	}
	landmarks, err := setupLandmarks(ctx, appConfig, backends)
	if err != nil {
		return err
	}

	if appConfig.ServeNats {
		responder, err := natsFetch.Serve(backends.Nats, fetcher,
			natsFetch.WithTimeout(appConfig.FetchTimeout),
			natsFetch.WithBucket(config.NatsBucket))
		if err != nil {
			log.Error("could not serve nats requests", log.ErrorField(err))
			return err
		}
		defer responder.Close()
	}

	registry := session.NewRegistry(
		session.WithFetcher(fetcher),
		session.WithMaxSessions(config.MaxSessions),
		session.WithLogger(logger.Named("session")))
	defer registry.Close()

	srv := httpserver.New(
		httpserver.WithRegistry(registry),
		httpserver.WithLandmarks(landmarks),
		httpserver.WithLogger(logger.Named("http")))
	if err := srv.Start(ctx, config.Addr, nil); err != nil {
		log.Error("server could not be started", log.ErrorField(err))
		return err
	}
	if config.TLSAddr != "" {
		tlsConfig, err := certs.NewTLSConfig(ctx, certs.Files{
			CertFile:      config.TLSCertFile,
			KeyFile:       config.TLSKeyFile,
			CAFile:        config.TLSCAFile,
			TraefikCerts:  config.TraefikCerts,
			TraefikDomain: config.TraefikCertDomain,
		})
		if err != nil {
			log.Error("tls setup failed", log.ErrorField(err))
			return err
		}
		if err := srv.Start(ctx, config.TLSAddr, tlsConfig); err != nil {
			log.Error("tls server could not be started", log.ErrorField(err))
			return err
		}
	}
	log.Info("Server started")
	setupGoRoutinesDump()

	<-ctx.Done()
	log.Debug("Got signal")
	if err := srv.Stop(); err != nil {
		log.Warn("http shutdown", log.ErrorField(err))
	}
	if telemetry != nil {
		telemetry.Shutdown()
	}
	log.Info("Server terminated")
	return nil
}

// setupLandmarks returns nil if no source is configured.
//
//nolint:whitespace // can't make both editor and linter happy
func setupLandmarks(
	ctx context.Context,
	appConfig *config.Config,
	backends *util.Backends,
) (landmark.Source, error) {
	switch appConfig.LandmarksSource {
	case config.LandmarksFromFile:
		src, err := landmarkFile.New(config.LandmarksFile)
		if err != nil {
			log.Error("could not read landmarks", log.ErrorField(err))
			return nil, err
		}
		go func() {
			if err := src.Watch(ctx); err != nil {
				log.Warn("landmark file is not watched", log.ErrorField(err))
			}
		}()
		return src, nil
	case config.LandmarksFromPostgres:
		return landmarkPg.New(backends.DB), nil
	}
	return nil, nil
}

func setupGoRoutinesDump() {
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGQUIT)
		buf := make([]byte, 1<<20)
		for {
			<-sigs
			stacklen := runtime.Stack(buf, true)
			fmt.Printf("=== received SIGQUIT ===\n*** goroutine dump...\n%s\n*** end\n",
				buf[:stacklen])
		}
	}()
}
