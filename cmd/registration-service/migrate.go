package main

import (
	"fmt"
	"strconv"

	"ms-registration/internal/database/migrations"
	"ms-registration/internal/store/db"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|to VERSION]",
	Short: "Apply the postgres schema migrations",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	d, err := db.OpenPostgres(cfg.Store.PostgresDSN)
	if err != nil {
		return err
	}
	defer d.Close()
	runner := migrations.NewRunner(d.Bun.DB, log)
	defer runner.Close()

	switch args[0] {
	case "up":
		return runner.MigrateUp()
	case "down":
		return runner.MigrateDown()
	case "to":
		if len(args) != 2 {
			return fmt.Errorf("migrate to needs a version")
		}
		version, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		return runner.MigrateTo(uint(version))
	}
	return fmt.Errorf("unknown migrate command %q", args[0])
}
