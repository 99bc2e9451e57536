package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/factory-data-core/internal/infrastructure/config"
	"github.com/nerrad567/factory-data-core/internal/infrastructure/database"
)

func newMigrateCommand(configPath func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openForMigration(configPath())
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // CLI exit

			n, err := db.Migrate(commandContext(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openForMigration(configPath())
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // CLI exit

			if err := db.MigrateDown(commandContext(cmd)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "rolled back one migration")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openForMigration(configPath())
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // CLI exit

			applied, pending, err := db.GetMigrationStatus(commandContext(cmd))
			if err != nil {
				return err
			}
			return printMigrationStatus(cmd.OutOrStdout(), applied, pending)
		},
	})

	return cmd
}

// openForMigration opens the configured database without migrating it.
func openForMigration(configPath string) (*database.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func printMigrationStatus(w io.Writer, applied, pending []database.MigrationRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED AT")
	for _, rec := range applied {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", rec.Version, rec.Name, rec.AppliedAt.UTC().Format(time.RFC3339))
	}
	for _, rec := range pending {
		fmt.Fprintf(tw, "%d\t%s\tpending\n", rec.Version, rec.Name)
	}
	return tw.Flush()
}
