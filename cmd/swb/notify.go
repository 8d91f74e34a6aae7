package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/stationhouse/switchboard/internal/config"
	"github.com/stationhouse/switchboard/internal/report"
	"github.com/stationhouse/switchboard/internal/report/discord"
	"github.com/stationhouse/switchboard/internal/report/github"
	"github.com/stationhouse/switchboard/internal/report/slack"
)

func newNotifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Manage incident notifiers",
	}

	cmd.AddCommand(newNotifyTestCmd())
	cmd.AddCommand(newNotifyLoginCmd())
	return cmd
}

func newNotifyTestCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Send a test event to every configured notifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotifyTest(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func runNotifyTest(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	notifiers, err := buildNotifier(cfg)
	if err != nil {
		return err
	}
	if len(notifiers) == 0 {
		return fmt.Errorf("notify: no notifiers configured in %s", configPath)
	}
	defer notifiers.Close()

	if err := notifiers.Notify(context.Background(), report.FormatTest()); err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	fmt.Fprintf(out, "Test event sent to %d notifier(s)\n", len(notifiers))
	return nil
}

func newNotifyLoginCmd() *cobra.Command {
	var (
		configPath string
		channel    string
		owner      string
		repo       string
	)

	cmd := &cobra.Command{
		Use:   "login <slack|discord|github>",
		Short: "Store a notifier token in the config file",
		Long:  "Prompts for a platform token without echoing it and writes it into the config file. Channel and repository details can be set with flags at the same time.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotifyLogin(cmd, configPath, args[0], loginOpts{
				channel: channel,
				owner:   owner,
				repo:    repo,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().StringVar(&channel, "channel", "", "channel id for chat platforms")
	cmd.Flags().StringVar(&owner, "owner", "", "repository owner for github")
	cmd.Flags().StringVar(&repo, "repo", "", "repository name for github")
	return cmd
}

type loginOpts struct {
	channel string
	owner   string
	repo    string
}

func runNotifyLogin(cmd *cobra.Command, configPath, platform string, opts loginOpts) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// The platform and its flags are checked before the token prompt.
	var setToken func(string)
	switch platform {
	case "slack":
		if opts.channel != "" {
			cfg.Notify.Slack.Channel = opts.channel
		}
		if cfg.Notify.Slack.Channel == "" {
			return fmt.Errorf("notify: slack needs a channel (--channel)")
		}
		setToken = func(tok string) { cfg.Notify.Slack.Token = tok }
	case "discord":
		if opts.channel != "" {
			cfg.Notify.Discord.Channel = opts.channel
		}
		if cfg.Notify.Discord.Channel == "" {
			return fmt.Errorf("notify: discord needs a channel (--channel)")
		}
		setToken = func(tok string) { cfg.Notify.Discord.Token = tok }
	case "github":
		if opts.owner != "" {
			cfg.Notify.GitHub.Owner = opts.owner
		}
		if opts.repo != "" {
			cfg.Notify.GitHub.Repo = opts.repo
		}
		if cfg.Notify.GitHub.Owner == "" || cfg.Notify.GitHub.Repo == "" {
			return fmt.Errorf("notify: github needs --owner and --repo")
		}
		setToken = func(tok string) { cfg.Notify.GitHub.Token = tok }
	default:
		return fmt.Errorf("notify: unknown platform %q (slack, discord, or github)", platform)
	}

	token, err := promptToken(out)
	if err != nil {
		return err
	}
	setToken(token)

	if err := writeConfig(configPath, cfg); err != nil {
		return err
	}

	fmt.Fprintf(out, "Stored %s token in %s\n", platform, configPath)
	return nil
}

// promptToken reads a token from the terminal without echoing it.
func promptToken(out io.Writer) (string, error) {
	fmt.Fprint(out, "Token: ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("notify: read token: %w", err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", fmt.Errorf("notify: empty token")
	}
	return token, nil
}

// writeConfig rewrites the config file. Comments in the original file do
// not survive the round trip; the token keeps the file at owner-only
// access.
func writeConfig(path string, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("notify: marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("notify: write %s: %w", path, err)
	}
	// WriteFile keeps the old mode on an existing file.
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("notify: chmod %s: %w", path, err)
	}
	return nil
}

// buildNotifier assembles the configured notifier adapters. An adapter
// is enabled by the presence of its token.
func buildNotifier(cfg *config.Config) (report.Multi, error) {
	var notifiers report.Multi

	if cfg.Notify.Slack.Token != "" {
		n, err := slack.New(slack.Opts{
			Token:     cfg.Notify.Slack.Token,
			ChannelID: cfg.Notify.Slack.Channel,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}

	if cfg.Notify.Discord.Token != "" {
		n, err := discord.New(discord.Opts{
			Token:     cfg.Notify.Discord.Token,
			ChannelID: cfg.Notify.Discord.Channel,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}

	if cfg.Notify.GitHub.Token != "" {
		n, err := github.New(github.Opts{
			Token:  cfg.Notify.GitHub.Token,
			Owner:  cfg.Notify.GitHub.Owner,
			Repo:   cfg.Notify.GitHub.Repo,
			Labels: cfg.Notify.GitHub.Labels,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}

	return notifiers, nil
}
