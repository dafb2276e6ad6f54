package migrate

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/lapviewer-go/log"
	"github.com/mpapenbr/lapviewer-go/pkg/cmd/util"
	"github.com/mpapenbr/lapviewer-go/pkg/config"
	dbMigrate "github.com/mpapenbr/lapviewer-go/pkg/db/migrate"
	"github.com/mpapenbr/lapviewer-go/pkg/utils"
)

func NewMigrateCmd() *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "performs database migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startMigration(cmd, down)
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "revert all migrations")
	return cmd
}

func startMigration(cmd *cobra.Command, down bool) error {
	util.SetupLogger()
	// wait for database
	timeout := config.ParseDuration(config.WaitForServices, 60*time.Second)
	if postgresAddr := utils.ExtractAddr(config.DB); postgresAddr != "" {
		if err := utils.WaitForTCP(cmd.Context(), postgresAddr, timeout); err != nil {
			log.Fatal("database not ready", log.ErrorField(err))
		}
	}
	if down {
		log.Info("Reverting migrations")
		return dbMigrate.MigrateDown(config.DB)
	}
	log.Info("Applying migrations")
	return dbMigrate.MigrateDb(config.DB)
}
