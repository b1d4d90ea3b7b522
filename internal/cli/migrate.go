package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/chatadmin/internal/store"
)

func newMigrateCmd() *cobra.Command {
	var flagDB string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply session store migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("db") {
				cfg.DBPath = flagDB
			}
			dbPath, err := resolveDBPath(cfg.DBPath)
			if err != nil {
				return err
			}
			st, err := store.NewSQLiteStore(dbPath, logger)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer st.Close()

			if err := st.Migrate(context.Background()); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
			logger.Info("migrations applied", "path", dbPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&flagDB, "db", "", "Session database path (default ~/.chatadmin/sessions.db)")
	return cmd
}
