// Package registry holds the coordinate table mapping logical agent
// identities to the physical screen locations their windows occupy.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownAgent is returned by Resolve for ids absent from the table.
var ErrUnknownAgent = errors.New("registry: unknown agent")

// Monitor declares one display surface coordinates may land on.
type Monitor struct {
	Name    string `yaml:"name"`
	OriginX int    `yaml:"origin_x"`
	OriginY int    `yaml:"origin_y"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
}

// Contains reports whether a point falls inside the monitor's bounds.
func (m Monitor) Contains(c Coordinate) bool {
	return c.X >= m.OriginX && c.X < m.OriginX+m.Width &&
		c.Y >= m.OriginY && c.Y < m.OriginY+m.Height
}

// Coordinate is a screen position in global display space.
type Coordinate struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// Endpoint is one registered agent: a stable id, a coordinate per monitor
// context it may appear on, and an active flag. Endpoints are created by
// explicit registry operations, never by message traffic.
type Endpoint struct {
	ID          string                `yaml:"id"`
	Role        string                `yaml:"role,omitempty"`
	Active      bool                  `yaml:"active"`
	Coordinates map[string]Coordinate `yaml:"coordinates"`
}

// CoordinateOn returns the endpoint's coordinate for a monitor context.
func (e Endpoint) CoordinateOn(monitor string) (Coordinate, bool) {
	c, ok := e.Coordinates[monitor]
	return c, ok
}

// Table is a loaded coordinate registry. It is read-mostly: safe for any
// number of concurrent readers once loaded; mutations happen through the
// explicit update operations before dispatching starts.
type Table struct {
	Monitors []Monitor  `yaml:"monitors"`
	Agents   []Endpoint `yaml:"agents"`

	index map[string]int
}

// Load reads and validates a registry file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses and validates registry YAML.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("registry: parse: %w", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	t.reindex()
	return &t, nil
}

// validate rejects duplicate ids, coordinates on undeclared monitors, and
// coordinates outside their monitor's bounds. Every problem is reported,
// not just the first.
func (t *Table) validate() error {
	var errs []string

	if len(t.Monitors) == 0 {
		errs = append(errs, "at least one monitor is required")
	}
	monitors := make(map[string]Monitor, len(t.Monitors))
	for i, m := range t.Monitors {
		switch {
		case m.Name == "":
			errs = append(errs, fmt.Sprintf("monitors[%d].name is required", i))
		case monitors[m.Name].Name != "":
			errs = append(errs, fmt.Sprintf("monitors[%d]: duplicate monitor %q", i, m.Name))
		default:
			monitors[m.Name] = m
		}
		if m.Width <= 0 || m.Height <= 0 {
			errs = append(errs, fmt.Sprintf("monitors[%d]: width and height must be positive", i))
		}
	}

	ids := make(map[string]bool, len(t.Agents))
	for i, a := range t.Agents {
		if a.ID == "" {
			errs = append(errs, fmt.Sprintf("agents[%d].id is required", i))
			continue
		}
		if ids[a.ID] {
			errs = append(errs, fmt.Sprintf("agents[%d]: duplicate id %q", i, a.ID))
			continue
		}
		ids[a.ID] = true

		if len(a.Coordinates) == 0 {
			errs = append(errs, fmt.Sprintf("agents[%d] (%s): at least one coordinate is required", i, a.ID))
		}
		for name, c := range a.Coordinates {
			mon, ok := monitors[name]
			if !ok {
				errs = append(errs, fmt.Sprintf("agents[%d] (%s): coordinate references undeclared monitor %q", i, a.ID, name))
				continue
			}
			if !mon.Contains(c) {
				errs = append(errs, fmt.Sprintf("agents[%d] (%s): coordinate (%d,%d) outside monitor %q bounds", i, a.ID, c.X, c.Y, name))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Agents))
	for i, a := range t.Agents {
		t.index[a.ID] = i
	}
}

// Resolve returns the endpoint registered under an id.
func (t *Table) Resolve(agentID string) (Endpoint, error) {
	i, ok := t.index[agentID]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrUnknownAgent, agentID)
	}
	return t.Agents[i], nil
}

// ActiveEndpoints returns the active endpoints in table (insertion) order.
func (t *Table) ActiveEndpoints() []Endpoint {
	out := make([]Endpoint, 0, len(t.Agents))
	for _, a := range t.Agents {
		if a.Active {
			out = append(out, a)
		}
	}
	return out
}

// Add registers a new endpoint, validating it against the declared
// monitors before it joins the table.
func (t *Table) Add(ep Endpoint) error {
	if ep.ID == "" {
		return fmt.Errorf("registry: add: id is required")
	}
	if _, ok := t.index[ep.ID]; ok {
		return fmt.Errorf("registry: add: duplicate id %q", ep.ID)
	}
	if len(ep.Coordinates) == 0 {
		return fmt.Errorf("registry: add %s: at least one coordinate is required", ep.ID)
	}
	monitors := make(map[string]Monitor, len(t.Monitors))
	for _, m := range t.Monitors {
		monitors[m.Name] = m
	}
	for name, c := range ep.Coordinates {
		mon, ok := monitors[name]
		if !ok {
			return fmt.Errorf("registry: add %s: undeclared monitor %q", ep.ID, name)
		}
		if !mon.Contains(c) {
			return fmt.Errorf("registry: add %s: coordinate (%d,%d) outside monitor %q bounds", ep.ID, c.X, c.Y, name)
		}
	}
	t.Agents = append(t.Agents, ep)
	t.reindex()
	return nil
}

// SetActive flips an endpoint's active flag.
func (t *Table) SetActive(agentID string, active bool) error {
	i, ok := t.index[agentID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAgent, agentID)
	}
	t.Agents[i].Active = active
	return nil
}

// Save writes the table back to disk atomically (temp file + rename) so a
// crash mid-write never leaves a truncated registry.
func (t *Table) Save(path string) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("registry: marshal: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("registry: save %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(dir, ".registry-*.yaml")
	if err != nil {
		return fmt.Errorf("registry: save %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("registry: save %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("registry: save %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("registry: save %s: %w", path, err)
	}
	return nil
}
