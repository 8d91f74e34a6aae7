package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/stationhouse/switchboard/internal/actuate"
	"github.com/stationhouse/switchboard/internal/config"
	"github.com/stationhouse/switchboard/internal/db"
	"github.com/stationhouse/switchboard/internal/dispatch"
	"github.com/stationhouse/switchboard/internal/envelope"
	"github.com/stationhouse/switchboard/internal/registry"
	"github.com/stationhouse/switchboard/internal/tracker"
	"gorm.io/gorm"
)

func newSendCmd() *cobra.Command {
	var (
		configPath   string
		from         string
		to           []string
		body         string
		priority     string
		tags         []string
		frame        string
		expectReply  bool
		replyTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message to one agent or broadcast to all",
		Long: `Builds an envelope and delivers it by typing into the recipient's
window, falling back to an inbox drop when direct delivery is exhausted.
Passing --to all broadcasts to every active agent in registry order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, configPath, sendOpts{
				from:         from,
				to:           to,
				body:         body,
				priority:     priority,
				tags:         tags,
				frame:        frame,
				expectReply:  expectReply,
				replyTimeout: replyTimeout,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().StringVar(&from, "from", "", "sender agent id")
	cmd.Flags().StringSliceVar(&to, "to", nil, "recipient agent id (repeatable), or \"all\" to broadcast")
	cmd.Flags().StringVar(&body, "body", "", "message body")
	cmd.Flags().StringVar(&priority, "priority", "normal", "delivery priority: normal, high, or urgent")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag attached to the envelope (repeatable)")
	cmd.Flags().StringVar(&frame, "frame", "auto", "frame kind: auto, agent, system, human, coordinator, or generic")
	cmd.Flags().BoolVar(&expectReply, "expect-reply", false, "track the request until a correlated reply arrives")
	cmd.Flags().DurationVar(&replyTimeout, "reply-timeout", 0, "how long to wait for the reply (default 10m)")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("body")
	return cmd
}

type sendOpts struct {
	from         string
	to           []string
	body         string
	priority     string
	tags         []string
	frame        string
	expectReply  bool
	replyTimeout time.Duration
}

func runSend(cmd *cobra.Command, configPath string, opts sendOpts) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pri, err := envelope.ParsePriority(opts.priority)
	if err != nil {
		return err
	}
	frame, err := envelope.ParseFrameKind(opts.frame)
	if err != nil {
		return err
	}

	d, _, err := openDispatcher(out, cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()

	if len(opts.to) == 1 && opts.to[0] == "all" {
		return runBroadcast(ctx, out, d, opts, pri, frame)
	}

	env, err := envelope.Build(opts.from, opts.to, opts.body, envelope.BuildOpts{
		Priority: pri,
		Tags:     opts.tags,
		Frame:    frame,
	})
	if err != nil {
		return err
	}

	failed := 0
	for _, recipient := range env.Recipients {
		res, err := d.Dispatch(ctx, env, recipient, dispatch.SendOpts{
			ExpectReply:  opts.expectReply,
			ReplyTimeout: opts.replyTimeout,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %s\n", recipient, describeResult(res))
		if !res.Success {
			failed++
		}
	}

	if opts.expectReply && failed < len(env.Recipients) {
		fmt.Fprintf(out, "Tracking %s for a reply\n", shortID(env.ID))
	}
	if failed > 0 {
		return fmt.Errorf("send: %d of %d deliveries failed", failed, len(env.Recipients))
	}
	return nil
}

func runBroadcast(ctx context.Context, out io.Writer, d *dispatch.Dispatcher, opts sendOpts, pri envelope.Priority, frame envelope.FrameKind) error {
	results, err := d.Broadcast(ctx, dispatch.Template{
		Sender:       opts.from,
		Body:         opts.body,
		Priority:     pri,
		Tags:         opts.tags,
		Frame:        frame,
		ExpectReply:  opts.expectReply,
		ReplyTimeout: opts.replyTimeout,
	})
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	failed := 0
	for _, id := range ids {
		res := results[id]
		fmt.Fprintf(out, "%s: %s\n", id, describeResult(res))
		if !res.Success {
			failed++
		}
	}

	fmt.Fprintf(out, "Broadcast reached %d of %d active agent(s)\n", len(ids)-failed, len(ids))
	if failed > 0 {
		return fmt.Errorf("send: %d of %d deliveries failed", failed, len(ids))
	}
	return nil
}

func newNudgeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "nudge <agent-id>",
		Short: "Poke a stalled agent without sending a payload",
		Long:  "Focuses the agent's window and presses Return, re-triggering input handling on an endpoint that has stopped consuming its prompt.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNudge(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func runNudge(cmd *cobra.Command, configPath, agentID string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	d, _, err := openDispatcher(out, cfg)
	if err != nil {
		return err
	}

	res, err := d.Unstall(context.Background(), agentID)
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("nudge %s: %v", agentID, res.Err)
	}

	fmt.Fprintf(out, "Nudged %s\n", agentID)
	return nil
}

// openDispatcher builds the dispatch stack from config. The journal is
// optional: a dead database downgrades to unjournaled delivery rather
// than blocking it.
func openDispatcher(out io.Writer, cfg *config.Config) (*dispatch.Dispatcher, *gorm.DB, error) {
	reg, err := registry.Load(cfg.Registry)
	if err != nil {
		return nil, nil, err
	}

	var input actuate.Input
	if t := cfg.Dispatch.AttemptTimeout.Std(); t > 0 {
		input = actuate.RealInput{Timeout: t}
	}
	act, err := actuate.New(actuate.Opts{Input: input, InboxRoot: cfg.InboxRoot})
	if err != nil {
		return nil, nil, err
	}

	gormDB, err := db.Connect(dbConfig(cfg))
	if err != nil {
		fmt.Fprintf(out, "Warning: journal unavailable, deliveries will not be recorded: %v\n", err)
		gormDB = nil
	}

	d, err := dispatch.New(dispatch.Opts{
		Registry:       reg,
		Actuator:       act,
		Tracker:        tracker.New(tracker.Opts{}),
		DB:             gormDB,
		Monitor:        cfg.Monitor,
		MaxAttempts:    cfg.Dispatch.MaxAttempts,
		Backoff:        cfg.Dispatch.Backoff.Std(),
		DedupWindow:    cfg.Dispatch.DedupWindow.Std(),
		ReplyTimeout:   cfg.Dispatch.ReplyTimeout.Std(),
		BroadcastDelay: cfg.Dispatch.BroadcastDelay.Std(),
	})
	if err != nil {
		return nil, nil, err
	}
	return d, gormDB, nil
}

// describeResult renders one delivery outcome for display.
func describeResult(res actuate.Result) string {
	switch {
	case res.Success && res.Channel == actuate.ChannelFile:
		return fmt.Sprintf("delivered to inbox after %d attempt(s)", res.Attempts)
	case res.Success:
		return fmt.Sprintf("delivered after %d attempt(s)", res.Attempts)
	case res.Err != nil:
		return fmt.Sprintf("failed after %d attempt(s): %v", res.Attempts, res.Err)
	default:
		return fmt.Sprintf("failed after %d attempt(s)", res.Attempts)
	}
}
