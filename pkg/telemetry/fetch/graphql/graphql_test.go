//nolint:funlen // ok for tests
package graphql

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"gotest.tools/v3/assert"

	"github.com/mpapenbr/lapviewer-go/pkg/model"
	"github.com/mpapenbr/lapviewer-go/pkg/telemetry"
)

const sampleResponse = `{
  "data": {
    "lapTelemetry": {
      "mapDataAvailable": true,
      "points": [
        {"distance": 0, "speed": 101.5, "throttle": 100, "brake": 0, "handbrake": 0,
         "gear": 4, "delta": 0, "lapTime": 0.1, "x": 1, "y": 2},
        {"distance": 12.5, "speed": 110, "throttle": 90, "brake": 0, "handbrake": 0,
         "gear": 5, "delta": -0.05, "lapTime": 0.5, "x": 3, "y": 4}
      ]
    }
  }
}`

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    *model.LapTelemetry
		wantErr error
	}{
		{
			name: "lap",
			in:   sampleResponse,
			want: &model.LapTelemetry{
				MapDataAvailable: true,
				Points: []model.TelemetryPoint{
					{Distance: 0, Speed: 101.5, Throttle: 100, Gear: 4, LapTime: 0.1, X: 1, Y: 2},
					{
						Distance: 12.5, Speed: 110, Throttle: 90, Gear: 5,
						Delta: -0.05, LapTime: 0.5, X: 3, Y: 4,
					},
				},
			},
		},
		{
			name:    "null lap",
			in:      `{"data":{"lapTelemetry":null}}`,
			wantErr: telemetry.ErrLapNotFound,
		},
		{
			name:    "graphql errors",
			in:      `{"errors":[{"message":"lap does not exist"}],"data":null}`,
			wantErr: ErrGraphQL,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse([]byte(tt.in))
			if tt.wantErr != nil {
				assert.Assert(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			assert.NilError(t, err)
			assert.DeepEqual(t, got, tt.want)
		})
	}
}

func TestParseResponse_invalidJSON(t *testing.T) {
	_, err := ParseResponse([]byte(`{"data":`))
	assert.ErrorContains(t, err, "parse graphql response")
}

func TestGetLapData(t *testing.T) {
	var gotLap any
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		obj, err := oj.Parse(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if res := jp.MustParseString("$.variables.lapId").Get(obj); len(res) > 0 {
			gotLap = res[0]
		}
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	f := New(WithURL(srv.URL), WithHeader("Authorization", "Bearer abc"))
	lap, err := f.GetLapData(context.Background(), 42)
	assert.NilError(t, err)
	assert.Equal(t, len(lap.Points), 2)
	assert.Assert(t, lap.MapDataAvailable)
	assert.Equal(t, gotLap, int64(42))
	assert.Equal(t, gotAuth, "Bearer abc")
}

func TestGetLapData_httpError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(WithURL(srv.URL)).GetLapData(context.Background(), 1)
	assert.Assert(t, errors.Is(err, ErrGraphQL))
	assert.Assert(t, strings.Contains(err.Error(), "500"))
}

func TestGetLapData_responseSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	limit := int64(len(sampleResponse))
	_, err := New(WithURL(srv.URL), WithMaxResponseSize(limit-1)).
		GetLapData(context.Background(), 1)
	assert.Assert(t, errors.Is(err, ErrResponseTooLarge), "got %v", err)

	lap, err := New(WithURL(srv.URL), WithMaxResponseSize(limit)).
		GetLapData(context.Background(), 1)
	assert.NilError(t, err)
	assert.Equal(t, len(lap.Points), 2)
}
