package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atlascore/atlas/internal/cache"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired response cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, cleanup, err := setup(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		store, err := cache.NewSQLStore(e.pool)
		if err != nil {
			return err
		}
		manager, err := cache.NewManager(store, e.cfg.Cache, e.logger)
		if err != nil {
			return err
		}

		deleted, err := manager.SweepExpired(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d expired cache entries\n", deleted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
