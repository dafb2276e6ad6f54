package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/mpapenbr/lapviewer-go/pkg/model"
)

// Fetcher retrieves the telemetry of a single lap from a backend.
type Fetcher interface {
	GetLapData(ctx context.Context, lapID int) (*model.LapTelemetry, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, lapID int) (*model.LapTelemetry, error)

func (f FetcherFunc) GetLapData(ctx context.Context, lapID int) (*model.LapTelemetry, error) {
	return f(ctx, lapID)
}

var (
	ErrFetchFailed = errors.New("telemetry fetch failed")
	ErrLapNotFound = errors.New("lap not found")
)

// FetchError is returned to every caller waiting for a failed lap fetch.
type FetchError struct {
	LapID int
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch telemetry for lap %d: %v", e.LapID, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetchFailed, e.Err}
}
