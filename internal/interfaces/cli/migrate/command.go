// Package migrate implements the `plexward migrate` command group.
package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"plexward/internal/infrastructure/config"
	"plexward/internal/infrastructure/database"
	"plexward/internal/infrastructure/migration"
	"plexward/internal/shared/biztime"
	"plexward/internal/shared/logger"
)

var env string

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
		Long:  `Apply the database schema and inspect its current state.`,
	}

	cmd.PersistentFlags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")

	cmd.AddCommand(
		newUpCommand(),
		newStatusCommand(),
	)

	return cmd
}

func newUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply the schema",
		Long:  `Bring the database schema up to date, including data migrations and partial indexes.`,
		RunE:  runUp,
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show schema status",
		Long:  `List the managed tables and whether each exists in the database.`,
		RunE:  runStatus,
	}
}

func initEnv() error {
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger, cfg.Server.Mode); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	biztime.MustInit("UTC")

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

func runUp(cmd *cobra.Command, args []string) error {
	if err := initEnv(); err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	manager := migration.NewManager(env)
	if err := manager.Migrate(database.Get(), migration.AutoMigrateModels()...); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("schema is up to date", "strategy", manager.GetStrategy().GetName())
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := initEnv(); err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	migrator := database.Get().Migrator()
	for _, model := range migration.AutoMigrateModels() {
		exists := migrator.HasTable(model)
		fmt.Printf("%-40T exists=%v\n", model, exists)
	}
	return nil
}
