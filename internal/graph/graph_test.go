package graph

import (
	"context"
	"testing"

	"github.com/msuozzo/jj-ryu/internal/jjtest"
)

func freshStackClient() *jjtest.FakeClient {
	return &jjtest.FakeClient{
		DefaultBranchName: "main",
		Commits: []jjtest.Commit{
			{ChangeID: "root"},
			{ChangeID: "m1", Parents: []string{"root"}, Description: "trunk tip"},
			{ChangeID: "a1", Parents: []string{"m1"}, Description: "add feature a"},
			{ChangeID: "b1", Parents: []string{"a1"}, Description: "add feature b"},
			{ChangeID: "c1", Parents: []string{"b1"}, Description: "add feature c"},
		},
		Bookmarks: []jjtest.BookmarkState{
			{Name: "main", ChangeID: "m1"},
			{Name: "feat-a", ChangeID: "a1"},
			{Name: "feat-b", ChangeID: "b1"},
			{Name: "feat-c", ChangeID: "c1"},
		},
	}
}

func TestBuild_FreshStack(t *testing.T) {
	g, err := Build(context.Background(), freshStackClient(), "origin")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if g.DefaultBranch != "main" {
		t.Fatalf("DefaultBranch = %q, want main", g.DefaultBranch)
	}
	if len(g.Stacks) != 1 {
		t.Fatalf("len(Stacks) = %d, want 1", len(g.Stacks))
	}
	st := g.Stacks[0]
	if len(st.Segments) != 3 {
		t.Fatalf("len(Segments) = %d, want 3", len(st.Segments))
	}
	wantOrder := []string{"feat-a", "feat-b", "feat-c"}
	for i, seg := range st.Segments {
		if len(seg.Bookmarks) != 1 || seg.Bookmarks[0].Name != wantOrder[i] {
			t.Errorf("Segments[%d].Bookmarks = %v, want [%s]", i, seg.Bookmarks, wantOrder[i])
		}
		if seg.ParentSegment != i-1 {
			t.Errorf("Segments[%d].ParentSegment = %d, want %d", i, seg.ParentSegment, i-1)
		}
	}
}

func TestBuild_MergeCommitExcluded(t *testing.T) {
	client := &jjtest.FakeClient{
		DefaultBranchName: "main",
		Commits: []jjtest.Commit{
			{ChangeID: "root"},
			{ChangeID: "m1", Parents: []string{"root"}},
			{ChangeID: "a1", Parents: []string{"m1"}},
			{ChangeID: "b1", Parents: []string{"m1"}},
			{ChangeID: "merge1", Parents: []string{"a1", "b1"}},
			{ChangeID: "c1", Parents: []string{"merge1"}},
		},
		Bookmarks: []jjtest.BookmarkState{
			{Name: "main", ChangeID: "m1"},
			{Name: "feat-a", ChangeID: "a1"},
			{Name: "feat-b", ChangeID: "b1"},
			{Name: "feat-c", ChangeID: "c1"},
		},
	}

	g, err := Build(context.Background(), client, "origin")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for _, st := range g.Stacks {
		if st.IndexOfBookmark("feat-c") >= 0 {
			t.Errorf("feat-c reachable only through a merge commit should not appear in any stack")
		}
	}
	if len(g.Stacks) != 2 {
		t.Fatalf("len(Stacks) = %d, want 2 (feat-a and feat-b each their own stack)", len(g.Stacks))
	}
}

func TestSegmentRepresentative(t *testing.T) {
	seg := &Segment{Bookmarks: []Bookmark{{Name: "zeta"}, {Name: "alpha"}, {Name: "mid"}}}
	if got := seg.Representative(""); got.Name != "alpha" {
		t.Errorf("Representative(\"\") = %s, want alpha (lexicographic tie-break)", got.Name)
	}
	if got := seg.Representative("mid"); got.Name != "mid" {
		t.Errorf("Representative(\"mid\") = %s, want mid (preferred wins)", got.Name)
	}
}
