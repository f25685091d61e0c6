// Package jj wraps the jj CLI, the workspace adapter capability described in
// spec.md §4.6 and §6. It knows nothing about bookmarks, segments, or PRs; it
// only speaks jj's own vocabulary (revsets, templates, remotes). The
// internal/graph package turns its output into the domain model.
package jj

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Executor defines the function signature for running shell commands.
type Executor func(ctx context.Context, args ...string) (stdout string, err error)

// defaultExecutor implements Executor using os/exec to run "jj".
func defaultExecutor(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "jj", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("command failed: jj %s\nerror: %w\nstderr: %s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.String(), nil
}

// fieldSep separates templated fields on one line. jj names and change IDs
// never contain control characters, so the unit separator is safe.
const fieldSep = "\x1f"

// Remote is a single configured git remote.
type Remote struct {
	Name string
	URL  string
}

// CommitNode is one change in the commit graph beneath the repository's
// bookmarks, along with whatever local bookmarks point directly at it.
type CommitNode struct {
	ChangeID    string
	Parents     []string // change IDs, empty for the root
	Bookmarks   []string // local bookmark names pointing at this change, sorted
	Description string
}

// BookmarkRemoteState describes a local bookmark's relationship to one
// remote, as observed at graph-build time.
type BookmarkRemoteState struct {
	Name      string
	ChangeID  string
	HasRemote bool // a tracked remote ref named {remote}/{name} exists
	IsSynced  bool // that remote ref points at the same change as the local bookmark
}

// Client defines the interface for interacting with Jujutsu.
type Client interface {
	Run(context.Context, ...string) (string, error)
	Root(context.Context) (string, error)
	GitDir(context.Context) (string, error)

	GitRemotes(context.Context) ([]Remote, error)
	GitFetch(ctx context.Context, remote string) error
	GitPush(ctx context.Context, remote, bookmark string, forceWithLease bool) error

	// DefaultBranch resolves jj's notion of the trunk bookmark name.
	DefaultBranch(context.Context) (string, error)

	// CommitGraph returns every mutable commit reachable from a local
	// bookmark, so callers can walk parent edges without re-invoking jj
	// once per node.
	CommitGraph(context.Context) ([]*CommitNode, error)

	// BookmarkRemoteStates reports, for every local bookmark, its sync
	// state against the given remote.
	BookmarkRemoteStates(ctx context.Context, remote string) ([]BookmarkRemoteState, error)
}

type client struct {
	repository string
	executor   Executor
}

// NewClient creates a client with the default executor.
func NewClient(repository string) Client {
	return &client{repository: repository, executor: defaultExecutor}
}

// NewClientWithExecutor creates a client with a custom executor.
func NewClientWithExecutor(repository string, exec Executor) Client {
	return &client{repository: repository, executor: exec}
}

// Run executes a jj command and returns its output.
func (j *client) Run(ctx context.Context, args ...string) (string, error) {
	if j.repository != "" {
		args = append([]string{"-R", j.repository}, args...)
	}
	return j.executor(ctx, args...)
}

// Root returns the repo root path.
func (j *client) Root(ctx context.Context) (string, error) {
	out, err := j.Run(ctx, "root")
	if err != nil {
		return "", fmt.Errorf("failed to get root path: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// GitDir returns the absolute path to the backing git directory.
func (j *client) GitDir(ctx context.Context) (string, error) {
	out, err := j.Run(ctx, "git", "root")
	if err != nil {
		return "", fmt.Errorf("failed to get git root: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("git root is empty")
	}
	return out, nil
}

// GitRemotes lists configured git remotes.
func (j *client) GitRemotes(ctx context.Context) ([]Remote, error) {
	out, err := j.Run(ctx, "git", "remote", "list")
	if err != nil {
		return nil, fmt.Errorf("failed to list remotes: %w", err)
	}
	var remotes []Remote
	for _, line := range splitLines(out) {
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		remotes = append(remotes, Remote{Name: parts[0], URL: parts[1]})
	}
	return remotes, nil
}

// GitFetch fetches from the given remote.
func (j *client) GitFetch(ctx context.Context, remote string) error {
	if _, err := j.Run(ctx, "git", "fetch", "--remote", remote); err != nil {
		return fmt.Errorf("fetch from %s: %w", remote, err)
	}
	return nil
}

// GitPush pushes a single bookmark to the given remote. jj always verifies
// the remote's current position before pushing (its own lease check);
// forceWithLease additionally allows the push to move the remote bookmark
// backward or sideways, which jj otherwise refuses.
func (j *client) GitPush(ctx context.Context, remote, bookmark string, forceWithLease bool) error {
	args := []string{"git", "push", "--remote", remote, "--bookmark", bookmark, "--allow-new"}
	if forceWithLease {
		args = append(args, "--allow-backwards")
	}
	if _, err := j.Run(ctx, args...); err != nil {
		return fmt.Errorf("push %s to %s: %w", bookmark, remote, err)
	}
	return nil
}

// DefaultBranch resolves jj's trunk() revset to a bookmark name.
func (j *client) DefaultBranch(ctx context.Context) (string, error) {
	out, err := j.Run(ctx, "log", "--no-graph", "--template", `bookmarks.map(|b| b.name()).join(",")`, "-r", "trunk()")
	if err != nil {
		return "", fmt.Errorf("resolve trunk: %w", err)
	}
	names := strings.Split(strings.TrimSpace(out), ",")
	if len(names) == 0 || names[0] == "" {
		return "main", nil
	}
	return names[0], nil
}

// commitGraphTplParts: change_id, parents, local bookmark names,
// JSON-escaped description (so embedded newlines survive the line protocol).
var commitGraphTplParts = []string{
	"change_id.short()",
	`parents.map(|c| c.change_id().short()).join(",")`,
	`bookmarks.map(|b| b.name()).join(",")`,
	"description.escape_json()",
}

// CommitGraph returns every mutable commit reachable from a local bookmark.
func (j *client) CommitGraph(ctx context.Context) ([]*CommitNode, error) {
	tpl := strings.Join(commitGraphTplParts, `++"`+fieldSep+`"++`) + `++"\n"`
	out, err := j.Run(ctx, "log", "--no-graph", "--template", tpl, "-r", "::bookmarks() & mutable()")
	if err != nil {
		return nil, fmt.Errorf("failed to read commit graph: %w", err)
	}
	var nodes []*CommitNode
	for _, line := range splitLines(out) {
		parts := strings.Split(line, fieldSep)
		if len(parts) != len(commitGraphTplParts) {
			return nil, fmt.Errorf("unexpected log entry format: %q", line)
		}
		var description string
		if err := json.Unmarshal([]byte(parts[3]), &description); err != nil {
			return nil, fmt.Errorf("bad json encoding in commit graph: %w", err)
		}
		nodes = append(nodes, &CommitNode{
			ChangeID:    parts[0],
			Parents:     splitNonEmpty(parts[1], ","),
			Bookmarks:   splitNonEmpty(parts[2], ","),
			Description: description,
		})
	}
	return nodes, nil
}

// BookmarkRemoteStates reports each local bookmark's position relative to
// the given remote.
func (j *client) BookmarkRemoteStates(ctx context.Context, remote string) ([]BookmarkRemoteState, error) {
	tplParts := []string{
		"name",
		"normal_target.change_id().short()",
		fmt.Sprintf(`remote_bookmarks.filter(|b| b.remote() == %s).map(|b| b.target().change_id().short()).join(",")`, strconv.Quote(remote)),
	}
	tpl := strings.Join(tplParts, `++"`+fieldSep+`"++`) + `++"\n"`
	out, err := j.Run(ctx, "bookmark", "list", "--template", tpl)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	var states []BookmarkRemoteState
	for _, line := range splitLines(out) {
		fields := strings.Split(line, fieldSep)
		if len(fields) != 3 {
			return nil, fmt.Errorf("unexpected bookmark list entry: %q", line)
		}
		name, changeID, remoteChangeIDs := fields[0], fields[1], fields[2]
		remoteIDs := splitNonEmpty(remoteChangeIDs, ",")
		state := BookmarkRemoteState{
			Name:      name,
			ChangeID:  changeID,
			HasRemote: len(remoteIDs) > 0,
		}
		for _, id := range remoteIDs {
			if id == changeID {
				state.IsSynced = true
				break
			}
		}
		states = append(states, state)
	}
	return states, nil
}

func splitLines(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, sep)
}
