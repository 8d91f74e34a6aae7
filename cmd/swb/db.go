package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/stationhouse/switchboard/internal/config"
	"github.com/stationhouse/switchboard/internal/db"
	"gorm.io/gorm"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the delivery journal database",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBMigrateCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the journal database and schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd.OutOrStdout(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func newDBMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Upgrade the journal schema in place",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd.OutOrStdout(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func runDBInit(out io.Writer, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Fprintf(out, "Connecting to %s...\n", describeDB(cfg))
	gormDB, err := db.Connect(dbConfig(cfg))
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Creating journal schema...")
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	fmt.Fprintln(out, "Database ready.")
	return nil
}

func runDBMigrate(out io.Writer, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(dbConfig(cfg))
	if err != nil {
		return err
	}

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	fmt.Fprintf(out, "Schema is current for %s.\n", describeDB(cfg))
	return nil
}

// dbConfig maps the YAML database section onto the journal's connection
// config.
func dbConfig(cfg *config.Config) db.Config {
	return db.Config{
		Driver:   cfg.Database.Driver,
		Path:     cfg.Database.Path,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Name:     cfg.Database.Name,
	}
}

// describeDB names the configured journal for display.
func describeDB(cfg *config.Config) string {
	if cfg.Database.Driver == "mysql" {
		return fmt.Sprintf("mysql %s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
	}
	return fmt.Sprintf("sqlite %s", cfg.Database.Path)
}

// connectFromConfig loads the config and opens the journal database.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(dbConfig(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to journal: %w", err)
	}

	return cfg, gormDB, nil
}
