package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warp/quote-engine/config"
	"github.com/warp/quote-engine/store"
)

func migrateCMD(cfgPath *string) *cobra.Command {
	var direction string
	var steps int

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := store.Direction(direction)
			if dir != store.MigrateUp && dir != store.MigrateDown {
				return fmt.Errorf("direction must be up or down, got %q", direction)
			}
			if steps < 0 {
				return fmt.Errorf("steps must not be negative, got %d", steps)
			}

			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			gw, err := openStore(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer gw.Close()

			if err := gw.Migrate(dir, steps); err != nil {
				return err
			}
			version, dirty, err := gw.SchemaVersion()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")

	return migrate
}
