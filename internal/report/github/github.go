// Package github implements a report Notifier that files GitHub issues.
// Chat notifiers carry every event; this one files an issue only for
// the kinds that need a human to act (escalations and expiry batches
// unless configured otherwise).
package github

import (
	"context"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v68/github"
	"github.com/stationhouse/switchboard/internal/report"
	"golang.org/x/oauth2"
)

// defaultKinds are the event kinds that warrant an issue when Opts.Kinds
// is empty.
var defaultKinds = []report.Kind{report.KindEscalation, report.KindExpiry}

// issueCreator abstracts the Issues service method we use, enabling
// test mocks. *gh.IssuesService satisfies it.
type issueCreator interface {
	Create(ctx context.Context, owner, repo string, issue *gh.IssueRequest) (*gh.Issue, *gh.Response, error)
}

// Notifier files events as issues in one repository.
type Notifier struct {
	issues issueCreator
	owner  string
	repo   string
	labels []string
	kinds  map[report.Kind]bool
}

// Opts holds parameters for creating a GitHub Notifier.
type Opts struct {
	Token  string // personal access token with issues scope
	Owner  string
	Repo   string
	Labels []string      // applied to every filed issue
	Kinds  []report.Kind // kinds that warrant an issue; defaults to escalation and expiry
	// For testing: inject a mock issue creator instead of the real API.
	Issues issueCreator
}

// New creates a GitHub Notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Issues == nil && opts.Token == "" {
		return nil, fmt.Errorf("github: token is required")
	}
	if opts.Owner == "" {
		return nil, fmt.Errorf("github: owner is required")
	}
	if opts.Repo == "" {
		return nil, fmt.Errorf("github: repo is required")
	}

	issues := opts.Issues
	if issues == nil {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		tc := oauth2.NewClient(context.Background(), ts)
		issues = gh.NewClient(tc).Issues
	}

	kindList := opts.Kinds
	if len(kindList) == 0 {
		kindList = defaultKinds
	}
	kinds := make(map[report.Kind]bool, len(kindList))
	for _, k := range kindList {
		kinds[k] = true
	}

	return &Notifier{
		issues: issues,
		owner:  opts.Owner,
		repo:   opts.Repo,
		labels: opts.Labels,
		kinds:  kinds,
	}, nil
}

// Notify files the event as an issue. Events whose kind is not
// configured are skipped with a nil error.
func (n *Notifier) Notify(ctx context.Context, ev report.Event) error {
	if !n.kinds[ev.Kind] {
		return nil
	}

	req := &gh.IssueRequest{
		Title: gh.String(ev.Title),
		Body:  gh.String(issueBody(ev)),
	}
	if len(n.labels) > 0 {
		labels := append([]string(nil), n.labels...)
		req.Labels = &labels
	}

	if _, _, err := n.issues.Create(ctx, n.owner, n.repo, req); err != nil {
		return fmt.Errorf("github: create issue in %s/%s: %w", n.owner, n.repo, err)
	}
	return nil
}

// Close is a no-op.
func (n *Notifier) Close() error { return nil }

// issueBody renders the event detail and fields as issue markdown.
func issueBody(ev report.Event) string {
	var b strings.Builder
	if ev.Body != "" {
		b.WriteString(ev.Body)
		b.WriteString("\n")
	}
	if len(ev.Fields) > 0 {
		b.WriteString("\n| Field | Value |\n| --- | --- |\n")
		for _, f := range ev.Fields {
			fmt.Fprintf(&b, "| %s | %s |\n", f.Name, f.Value)
		}
	}
	b.WriteString("\nFiled automatically by the switchboard watch daemon.")
	return b.String()
}
