package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// writeTestConfig writes a minimal config into dir and returns its path.
// The registry, inbox root, and journal all live inside dir.
func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	cfgYAML := fmt.Sprintf(`
registry: %s
inbox_root: %s
database:
  driver: sqlite
  path: %s
`, filepath.Join(dir, "fleet.yaml"), filepath.Join(dir, "inbox"), filepath.Join(dir, "journal.db"))

	path := filepath.Join(dir, "switchboard.yaml")
	if err := os.WriteFile(path, []byte(cfgYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// writeTestRegistry writes a two-agent registry into dir.
func writeTestRegistry(t *testing.T, dir string) string {
	t.Helper()
	regYAML := `
monitors:
  - name: primary
    origin_x: 0
    origin_y: 0
    width: 2560
    height: 1440
agents:
  - id: ash
    role: build engineer
    active: true
    coordinates:
      primary:
        x: 120
        y: 640
  - id: birch
    role: reviewer
    active: false
    coordinates:
      primary:
        x: 1900
        y: 640
`
	path := filepath.Join(dir, "fleet.yaml")
	if err := os.WriteFile(path, []byte(regYAML), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	return path
}
