package fetch

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/lapviewer-go/log"
	"github.com/mpapenbr/lapviewer-go/pkg/cmd/util"
	"github.com/mpapenbr/lapviewer-go/pkg/session"
	"github.com/mpapenbr/lapviewer-go/pkg/telemetry"
	"github.com/mpapenbr/lapviewer-go/pkg/utils/laptime"
)

func NewFetchCmd() *cobra.Command {
	var laps []int
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "fetches laps through the telemetry cache and prints a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fetchLaps(cmd.Context(), os.Stdout, laps)
		},
	}
	cmd.Flags().IntSliceVar(&laps, "lap", nil, "lap id to fetch (repeatable)")
	_ = cmd.MarkFlagRequired("lap")
	return cmd
}

func fetchLaps(ctx context.Context, w io.Writer, laps []int) error {
	_, sqlLogger := util.SetupLogger()
	if ctx == nil {
		ctx = context.Background()
	}
	appConfig, err := util.AppConfig()
	if err != nil {
		return err
	}
	util.WaitForRequiredServices(ctx, appConfig)
	backends, err := util.Connect(ctx, appConfig, sqlLogger, false)
	if err != nil {
		return err
	}
	defer backends.Close()
	fetcher, err := util.NewFetcher(appConfig, backends)
	if err != nil {
		return err
	}
	return run(ctx, w, fetcher, laps)
}

// run loads the laps with one shared cache and writes one line per lap.
//
//nolint:whitespace // can't make both editor and linter happy
func run(
	ctx context.Context,
	w io.Writer,
	fetcher telemetry.Fetcher,
	laps []int,
) error {
	registry := session.NewRegistry(session.WithFetcher(fetcher))
	defer registry.Close()
	sess := registry.Get("cli")
	entries, err := sess.Laps(ctx, laps)
	if err != nil {
		log.Error("fetch failed", log.ErrorField(err))
		return err
	}
	fmt.Fprintf(w, "%-8s %8s %10s %10s %s\n", "lap", "points", "distance", "laptime", "map")
	for _, e := range entries {
		lt := laptime.NotAvailable
		if len(e.Telemetry.Points) > 0 {
			lt = laptime.Format(e.Telemetry.LastLapTime())
		}
		fmt.Fprintf(w, "%-8d %8d %10.1f %10s %t\n",
			e.LapID, len(e.Telemetry.Points), e.Telemetry.Length(), lt,
			e.Telemetry.MapDataAvailable)
	}
	return nil
}
