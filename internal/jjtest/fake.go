// Package jjtest provides test utilities for testing code that interacts
// with jj, at two levels: a Scenario that drives jj.Client through a
// scripted Executor (for exercising internal/jj itself), and a FakeClient
// that implements jj.Client directly from an in-memory repo shape (for
// exercising internal/graph and internal/submit without jj's template
// string protocol).
package jjtest

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"testing"

	"github.com/msuozzo/jj-ryu/internal/jj"
)

// Call represents an expected call to the jj executor.
type Call struct {
	// Args are the expected arguments (excluding "jj" and "-R repo").
	Args []string
	// Output is the stdout to return.
	Output string
	// Err is the error to return.
	Err error
}

// Scenario implements an executor that validates calls against an expected
// sequence, in order.
type Scenario struct {
	T     *testing.T
	Repo  string
	Calls []Call
	idx   int
}

// NewScenario creates a scenario for testing.
func NewScenario(t *testing.T, repo string, calls ...Call) *Scenario {
	return &Scenario{T: t, Repo: repo, Calls: calls}
}

// Executor returns an executor function for use with jj.NewClientWithExecutor.
func (s *Scenario) Executor() jj.Executor {
	return func(ctx context.Context, args ...string) (string, error) {
		s.T.Helper()

		cmdArgs := args
		if len(args) > 1 && args[0] == "-R" {
			cmdArgs = args[2:]
		}

		if s.idx >= len(s.Calls) {
			s.T.Fatalf("unexpected call: jj %v", cmdArgs)
		}
		call := s.Calls[s.idx]
		s.idx++

		if !slices.Equal(call.Args, cmdArgs) {
			s.T.Fatalf("arg mismatch at call %d:\nwant: %v\ngot:  %v", s.idx, call.Args, cmdArgs)
		}
		return call.Output, call.Err
	}
}

// Verify checks that all expected calls were made.
func (s *Scenario) Verify() {
	s.T.Helper()
	if s.idx < len(s.Calls) {
		s.T.Fatalf("expected call not made: %v", s.Calls[s.idx].Args)
	}
}

// Client returns a jj.Client configured with this scenario's executor.
func (s *Scenario) Client() jj.Client {
	return jj.NewClientWithExecutor(s.Repo, s.Executor())
}

// Commit is one node in a fake commit graph.
type Commit struct {
	ChangeID    string
	Parents     []string
	Description string
}

// BookmarkState places a bookmark on a change. HasRemote reports whether a
// remote ref exists for it; RemoteChangeID is the change that remote ref
// points at, and the bookmark counts as synced when HasRemote is set and
// RemoteChangeID equals ChangeID.
type BookmarkState struct {
	Name           string
	ChangeID       string
	RemoteChangeID string
	HasRemote      bool
}

// FakeClient implements jj.Client directly from in-memory state, without
// going through jj's template-string wire protocol.
type FakeClient struct {
	DefaultBranchName string
	Commits           []Commit
	Bookmarks         []BookmarkState
	RunFunc           func(ctx context.Context, args ...string) (string, error)
	PushedBookmarks   []string
	FetchedRemotes    []string
}

var _ jj.Client = (*FakeClient)(nil)

func (f *FakeClient) Run(ctx context.Context, args ...string) (string, error) {
	if f.RunFunc != nil {
		return f.RunFunc(ctx, args...)
	}
	return "", fmt.Errorf("unexpected jj invocation: %v", args)
}

func (f *FakeClient) Root(ctx context.Context) (string, error)   { return "/fake/repo", nil }
func (f *FakeClient) GitDir(ctx context.Context) (string, error) { return "/fake/repo/.git", nil }

func (f *FakeClient) GitRemotes(ctx context.Context) ([]jj.Remote, error) {
	return []jj.Remote{{Name: "origin", URL: "git@github.com:owner/repo.git"}}, nil
}

func (f *FakeClient) GitFetch(ctx context.Context, remote string) error {
	f.FetchedRemotes = append(f.FetchedRemotes, remote)
	return nil
}

func (f *FakeClient) GitPush(ctx context.Context, remote, bookmark string, forceWithLease bool) error {
	f.PushedBookmarks = append(f.PushedBookmarks, bookmark)
	for i, b := range f.Bookmarks {
		if b.Name == bookmark {
			f.Bookmarks[i].RemoteChangeID = b.ChangeID
			f.Bookmarks[i].HasRemote = true
		}
	}
	return nil
}

func (f *FakeClient) DefaultBranch(ctx context.Context) (string, error) {
	if f.DefaultBranchName == "" {
		return "main", nil
	}
	return f.DefaultBranchName, nil
}

func (f *FakeClient) CommitGraph(ctx context.Context) ([]*jj.CommitNode, error) {
	bookmarksByChange := map[string][]string{}
	for _, b := range f.Bookmarks {
		bookmarksByChange[b.ChangeID] = append(bookmarksByChange[b.ChangeID], b.Name)
	}
	for id := range bookmarksByChange {
		sort.Strings(bookmarksByChange[id])
	}
	nodes := make([]*jj.CommitNode, 0, len(f.Commits))
	for _, c := range f.Commits {
		nodes = append(nodes, &jj.CommitNode{
			ChangeID:    c.ChangeID,
			Parents:     c.Parents,
			Bookmarks:   bookmarksByChange[c.ChangeID],
			Description: c.Description,
		})
	}
	return nodes, nil
}

func (f *FakeClient) BookmarkRemoteStates(ctx context.Context, remote string) ([]jj.BookmarkRemoteState, error) {
	states := make([]jj.BookmarkRemoteState, 0, len(f.Bookmarks))
	for _, b := range f.Bookmarks {
		states = append(states, jj.BookmarkRemoteState{
			Name:      b.Name,
			ChangeID:  b.ChangeID,
			HasRemote: b.HasRemote,
			IsSynced:  b.HasRemote && b.RemoteChangeID == b.ChangeID,
		})
	}
	return states, nil
}
