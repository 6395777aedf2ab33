package main

import (
	"github.com/spf13/cobra"
)

var (
	migrateDir   string
	migrateSteps int
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply the SQL migrations in --dir. With --steps 0 every pending migration
is applied; a positive value applies that many, a negative value rolls back.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		dir := migrateDir
		if dir == "" {
			dir = cfg.Database.MigrationsDir
		}
		return db.Migrate(dir, migrateSteps)
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDir, "dir", "", "migrations directory (default DB_MIGRATIONS_DIR)")
	migrateCmd.Flags().IntVar(&migrateSteps, "steps", 0, "number of migrations to apply; negative rolls back")
}
