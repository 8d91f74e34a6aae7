package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stationhouse/switchboard/internal/config"
)

// --- doctor command tests ---

func TestDoctorCmd_Help(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"doctor", "--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("doctor --help failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "diagnostic checks") {
		t.Errorf("expected help to mention 'diagnostic checks', got: %s", out)
	}
	if !strings.Contains(out, "--config") {
		t.Errorf("expected --config flag in help, got: %s", out)
	}
}

func TestNewDoctorCmd(t *testing.T) {
	cmd := newDoctorCmd()
	if cmd.Use != "doctor" {
		t.Errorf("Use = %q, want %q", cmd.Use, "doctor")
	}

	cfgFlag := cmd.Flags().Lookup("config")
	if cfgFlag == nil {
		t.Fatal("expected --config flag")
	}
	if cfgFlag.DefValue != "switchboard.yaml" {
		t.Errorf("--config default = %q, want %q", cfgFlag.DefValue, "switchboard.yaml")
	}
	if cfgFlag.Shorthand != "c" {
		t.Errorf("--config shorthand = %q, want %q", cfgFlag.Shorthand, "c")
	}
}

func TestCheckXdotool(t *testing.T) {
	// xdotool may or may not be installed; if missing it must be WARN,
	// not FAIL, because deliveries degrade to inbox drops.
	result := checkXdotool()
	if result.status == "FAIL" {
		t.Errorf("xdotool should be WARN when missing, not FAIL; got %s: %s", result.status, result.detail)
	}
	if result.status == "WARN" && !strings.Contains(result.detail, "not found") {
		t.Errorf("expected WARN detail to contain 'not found', got: %s", result.detail)
	}
}

func TestCheckConfig(t *testing.T) {
	pass := checkConfig("switchboard.yaml", nil)
	if pass.status != "PASS" {
		t.Errorf("expected PASS for loadable config, got %s: %s", pass.status, pass.detail)
	}

	_, err := config.Load("/nonexistent/switchboard.yaml")
	fail := checkConfig("/nonexistent/switchboard.yaml", err)
	if fail.status != "FAIL" {
		t.Errorf("expected FAIL for missing config, got %s: %s", fail.status, fail.detail)
	}
}

func TestCheckRegistry(t *testing.T) {
	dir := t.TempDir()
	writeTestRegistry(t, dir)
	cfgPath := writeTestConfig(t, dir)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	result := checkRegistry(cfg)
	if result.status != "PASS" {
		t.Errorf("expected PASS, got %s: %s", result.status, result.detail)
	}
	if !strings.Contains(result.detail, "2 agent(s) on 1 monitor(s)") {
		t.Errorf("detail = %q, want agent and monitor counts", result.detail)
	}
}

func TestCheckRegistry_Missing(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	result := checkRegistry(cfg)
	if result.status != "FAIL" {
		t.Errorf("expected FAIL for missing registry file, got %s: %s", result.status, result.detail)
	}
}

func TestCheckInboxRoot(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{InboxRoot: filepath.Join(dir, "inbox")}

	result := checkInboxRoot(cfg)
	if result.status != "PASS" {
		t.Errorf("expected PASS for writable inbox root, got %s: %s", result.status, result.detail)
	}
}

func TestCheckNotifiers_NoneConfigured(t *testing.T) {
	result := checkNotifiers(&config.Config{})
	if result.status != "WARN" {
		t.Errorf("expected WARN with no notifiers, got %s: %s", result.status, result.detail)
	}
	if !strings.Contains(result.detail, "none configured") {
		t.Errorf("detail = %q, want to contain 'none configured'", result.detail)
	}
}

func TestCheckNotifiers_Configured(t *testing.T) {
	cfg := &config.Config{}
	cfg.Notify.Slack.Token = "xoxb-test"
	cfg.Notify.Slack.Channel = "#ops"
	cfg.Notify.Discord.Token = "discord-test"
	cfg.Notify.Discord.Channel = "123456"

	result := checkNotifiers(cfg)
	if result.status != "PASS" {
		t.Fatalf("expected PASS, got %s: %s", result.status, result.detail)
	}
	if !strings.Contains(result.detail, "2 adapter(s)") {
		t.Errorf("detail = %q, want 2 adapters", result.detail)
	}
}

func TestRunDoctor_ConfigFailureSkipsDependentChecks(t *testing.T) {
	buf := new(bytes.Buffer)
	err := runDoctor(buf, "/nonexistent/switchboard.yaml")
	if err == nil {
		t.Fatal("expected doctor to report failed checks")
	}
	if !strings.Contains(err.Error(), "check(s) failed") {
		t.Errorf("error = %q, want to contain 'check(s) failed'", err.Error())
	}

	out := buf.String()
	if !strings.Contains(out, "Switchboard Doctor") {
		t.Errorf("expected header, got: %s", out)
	}
	if !strings.Contains(out, "[FAIL] config:") {
		t.Errorf("expected config FAIL line, got: %s", out)
	}
	if strings.Contains(out, "registry:") {
		t.Errorf("registry check should be skipped when config fails, got: %s", out)
	}
}

func TestRootCmd_HasDoctorSubcommand(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("root --help failed: %v", err)
	}

	if !strings.Contains(buf.String(), "doctor") {
		t.Error("root help should list 'doctor' subcommand")
	}
}
