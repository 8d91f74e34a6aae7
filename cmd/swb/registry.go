package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stationhouse/switchboard/internal/config"
	"github.com/stationhouse/switchboard/internal/registry"
)

func newRegistryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Manage the coordinate registry",
		Long:  "Registry commands inspect and update the table mapping agent ids to the screen coordinates their windows occupy. Endpoints only change through these commands, never through message traffic.",
	}

	cmd.AddCommand(newRegistryListCmd())
	cmd.AddCommand(newRegistryShowCmd())
	cmd.AddCommand(newRegistryAddCmd())
	cmd.AddCommand(newRegistryEnableCmd())
	cmd.AddCommand(newRegistryDisableCmd())
	return cmd
}

func newRegistryListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegistryList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func runRegistryList(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	reg, err := loadRegistry(configPath)
	if err != nil {
		return err
	}

	if len(reg.Agents) == 0 {
		fmt.Fprintln(out, "No agents registered.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROLE\tACTIVE\tCOORDINATES")
	for _, ep := range reg.Agents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ep.ID, ep.Role, activeLabel(ep.Active), coordSummary(ep))
	}
	return w.Flush()
}

func newRegistryShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <agent-id>",
		Short: "Show one agent's registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegistryShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func runRegistryShow(cmd *cobra.Command, configPath, agentID string) error {
	out := cmd.OutOrStdout()

	reg, err := loadRegistry(configPath)
	if err != nil {
		return err
	}

	ep, err := reg.Resolve(agentID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "ID:     %s\n", ep.ID)
	fmt.Fprintf(out, "Role:   %s\n", ep.Role)
	fmt.Fprintf(out, "Active: %s\n", activeLabel(ep.Active))
	fmt.Fprintln(out, "Coordinates:")
	for _, name := range sortedMonitors(ep) {
		c := ep.Coordinates[name]
		fmt.Fprintf(out, "  %s: (%d, %d)\n", name, c.X, c.Y)
	}
	return nil
}

func newRegistryAddCmd() *cobra.Command {
	var (
		configPath string
		id         string
		role       string
		coords     []string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new agent endpoint",
		Long:  "Registers an agent id with its screen coordinates. Coordinates are given per monitor as monitor:x,y and validated against the declared monitor bounds before the table is saved.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegistryAdd(cmd, configPath, id, role, coords)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().StringVar(&id, "id", "", "agent id to register")
	cmd.Flags().StringVar(&role, "role", "", "free-form role label")
	cmd.Flags().StringArrayVar(&coords, "coord", nil, "coordinate as monitor:x,y (repeatable)")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("coord")
	return cmd
}

func runRegistryAdd(cmd *cobra.Command, configPath, id, role string, coordSpecs []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	reg, err := registry.Load(cfg.Registry)
	if err != nil {
		return err
	}

	coords, err := parseCoords(coordSpecs)
	if err != nil {
		return err
	}

	ep := registry.Endpoint{
		ID:          id,
		Role:        role,
		Active:      true,
		Coordinates: coords,
	}
	if err := reg.Add(ep); err != nil {
		return err
	}
	if err := reg.Save(cfg.Registry); err != nil {
		return err
	}

	fmt.Fprintf(out, "Registered %s with %d coordinate(s)\n", id, len(coords))
	return nil
}

func newRegistryEnableCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "enable <agent-id>",
		Short: "Mark an agent active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegistrySetActive(cmd, configPath, args[0], true)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func newRegistryDisableCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "disable <agent-id>",
		Short: "Mark an agent inactive",
		Long:  "Inactive agents stay registered but are skipped by broadcasts. Direct dispatches to them still resolve.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegistrySetActive(cmd, configPath, args[0], false)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func runRegistrySetActive(cmd *cobra.Command, configPath, agentID string, active bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	reg, err := registry.Load(cfg.Registry)
	if err != nil {
		return err
	}

	if err := reg.SetActive(agentID, active); err != nil {
		return err
	}
	if err := reg.Save(cfg.Registry); err != nil {
		return err
	}

	if active {
		fmt.Fprintf(out, "Enabled %s\n", agentID)
	} else {
		fmt.Fprintf(out, "Disabled %s\n", agentID)
	}
	return nil
}

// loadRegistry resolves the registry path through the config file.
func loadRegistry(configPath string) (*registry.Table, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return registry.Load(cfg.Registry)
}

// parseCoords parses repeated monitor:x,y flags into a coordinate map.
func parseCoords(specs []string) (map[string]registry.Coordinate, error) {
	coords := make(map[string]registry.Coordinate, len(specs))
	for _, spec := range specs {
		monitor, pos, ok := strings.Cut(spec, ":")
		if !ok {
			return nil, fmt.Errorf("invalid coordinate %q (want monitor:x,y)", spec)
		}
		xs, ys, ok := strings.Cut(pos, ",")
		if !ok {
			return nil, fmt.Errorf("invalid coordinate %q (want monitor:x,y)", spec)
		}
		x, err := strconv.Atoi(strings.TrimSpace(xs))
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate %q: x is not a number", spec)
		}
		y, err := strconv.Atoi(strings.TrimSpace(ys))
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate %q: y is not a number", spec)
		}
		coords[strings.TrimSpace(monitor)] = registry.Coordinate{X: x, Y: y}
	}
	return coords, nil
}

func activeLabel(active bool) string {
	if active {
		return "yes"
	}
	return "no"
}

// coordSummary renders an endpoint's coordinates on one line, monitors
// sorted for stable output.
func coordSummary(ep registry.Endpoint) string {
	parts := make([]string, 0, len(ep.Coordinates))
	for _, name := range sortedMonitors(ep) {
		c := ep.Coordinates[name]
		parts = append(parts, fmt.Sprintf("%s:(%d,%d)", name, c.X, c.Y))
	}
	return strings.Join(parts, " ")
}

func sortedMonitors(ep registry.Endpoint) []string {
	names := make([]string, 0, len(ep.Coordinates))
	for name := range ep.Coordinates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
