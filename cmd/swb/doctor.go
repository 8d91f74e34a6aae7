package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/stationhouse/switchboard/internal/config"
	"github.com/stationhouse/switchboard/internal/db"
	"github.com/stationhouse/switchboard/internal/registry"
)

func newDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on the Switchboard environment",
		Long:  "Runs diagnostic checks: the xdotool binary, config and registry validity, inbox root writability, journal reachability, and notifier configuration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.OutOrStdout(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

type checkResult struct {
	name   string
	status string // PASS, FAIL, or WARN
	detail string
}

func runDoctor(out io.Writer, configPath string) error {
	fmt.Fprintln(out, "Switchboard Doctor")
	fmt.Fprintln(out, "==================")

	var checks []checkResult
	checks = append(checks, checkXdotool())

	cfg, err := config.Load(configPath)
	checks = append(checks, checkConfig(configPath, err))
	if cfg != nil {
		checks = append(checks,
			checkRegistry(cfg),
			checkInboxRoot(cfg),
			checkDatabase(cfg),
			checkNotifiers(cfg),
		)
	}

	passed, failed, warned := 0, 0, 0
	for _, c := range checks {
		fmt.Fprintf(out, "[%s] %s: %s\n", c.status, c.name, c.detail)
		switch c.status {
		case "PASS":
			passed++
		case "FAIL":
			failed++
		case "WARN":
			warned++
		}
	}

	fmt.Fprintf(out, "\n%d passed, %d failed, %d warning\n", passed, failed, warned)
	if failed > 0 {
		return fmt.Errorf("doctor: %d check(s) failed", failed)
	}
	return nil
}

// checkXdotool reports whether direct actuation is possible. A missing
// binary is a warning, not a failure: deliveries still land as inbox
// drops.
func checkXdotool() checkResult {
	path, err := exec.LookPath("xdotool")
	if err != nil {
		return checkResult{"xdotool", "WARN", "not found in PATH; deliveries will fall back to inbox drops"}
	}
	return checkResult{"xdotool", "PASS", path}
}

func checkConfig(configPath string, err error) checkResult {
	if err != nil {
		return checkResult{"config", "FAIL", err.Error()}
	}
	return checkResult{"config", "PASS", configPath}
}

func checkRegistry(cfg *config.Config) checkResult {
	reg, err := registry.Load(cfg.Registry)
	if err != nil {
		return checkResult{"registry", "FAIL", err.Error()}
	}
	return checkResult{"registry", "PASS", fmt.Sprintf("%d agent(s) on %d monitor(s)", len(reg.Agents), len(reg.Monitors))}
}

func checkInboxRoot(cfg *config.Config) checkResult {
	if err := os.MkdirAll(cfg.InboxRoot, 0o755); err != nil {
		return checkResult{"inbox root", "FAIL", err.Error()}
	}
	probe := filepath.Join(cfg.InboxRoot, ".swb-doctor")
	if err := os.WriteFile(probe, []byte("probe"), 0o644); err != nil {
		return checkResult{"inbox root", "FAIL", fmt.Sprintf("not writable: %v", err)}
	}
	os.Remove(probe)
	return checkResult{"inbox root", "PASS", cfg.InboxRoot}
}

func checkDatabase(cfg *config.Config) checkResult {
	gormDB, err := db.Connect(dbConfig(cfg))
	if err != nil {
		return checkResult{"database", "FAIL", err.Error()}
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return checkResult{"database", "FAIL", err.Error()}
	}
	if err := sqlDB.Ping(); err != nil {
		return checkResult{"database", "FAIL", err.Error()}
	}
	return checkResult{"database", "PASS", describeDB(cfg)}
}

func checkNotifiers(cfg *config.Config) checkResult {
	notifiers, err := buildNotifier(cfg)
	if err != nil {
		return checkResult{"notifiers", "FAIL", err.Error()}
	}
	if len(notifiers) == 0 {
		return checkResult{"notifiers", "WARN", "none configured; incidents only reach the watch daemon's stdout"}
	}
	return checkResult{"notifiers", "PASS", fmt.Sprintf("%d adapter(s) configured", len(notifiers))}
}
