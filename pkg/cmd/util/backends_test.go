package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/lapviewer-go/pkg/config"
	"github.com/mpapenbr/lapviewer-go/pkg/telemetry/fetch/graphql"
)

func setConfig(t *testing.T, fetcher, landmarks string, serveNats bool) {
	t.Helper()
	oldFetcher, oldLandmarks, oldServe, oldTimeout := config.Fetcher,
		config.LandmarksSource, config.ServeNats, config.FetchTimeout
	t.Cleanup(func() {
		config.Fetcher, config.LandmarksSource = oldFetcher, oldLandmarks
		config.ServeNats, config.FetchTimeout = oldServe, oldTimeout
	})
	config.Fetcher = fetcher
	config.LandmarksSource = landmarks
	config.ServeNats = serveNats
	config.FetchTimeout = "5s"
}

func TestAppConfig(t *testing.T) {
	tests := []struct {
		name      string
		fetcher   string
		landmarks string
		serveNats bool
		wantErr   bool
		needsDB   bool
		needsNats bool
	}{
		{name: "graphql only", fetcher: config.FetcherGraphQL},
		{name: "postgres", fetcher: config.FetcherPostgres, needsDB: true},
		{
			name: "graphql with pg landmarks", fetcher: config.FetcherGraphQL,
			landmarks: config.LandmarksFromPostgres, needsDB: true,
		},
		{name: "nats", fetcher: config.FetcherNats, needsNats: true},
		{
			name: "responder", fetcher: config.FetcherPostgres, serveNats: true,
			needsDB: true, needsNats: true,
		},
		{name: "nats loop", fetcher: config.FetcherNats, serveNats: true, wantErr: true},
		{name: "unknown landmarks", fetcher: config.FetcherGraphQL, landmarks: "s3", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setConfig(t, tt.fetcher, tt.landmarks, tt.serveNats)
			got, err := AppConfig()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 5*time.Second, got.FetchTimeout)
			assert.Equal(t, tt.needsDB, got.NeedsDB())
			assert.Equal(t, tt.needsNats, got.NeedsNats())
		})
	}
}

func TestNewFetcher(t *testing.T) {
	f, err := NewFetcher(&config.Config{Fetcher: config.FetcherGraphQL}, &Backends{})
	require.NoError(t, err)
	assert.IsType(t, &graphql.Fetcher{}, f)

	_, err = NewFetcher(&config.Config{Fetcher: "carrier-pigeon"}, &Backends{})
	assert.ErrorIs(t, err, ErrConfig)
}
