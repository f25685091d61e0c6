package submit

import (
	"testing"

	"github.com/msuozzo/jj-ryu/internal/engine"
	"github.com/msuozzo/jj-ryu/internal/graph"
)

// branchingGraph builds a -> b, with b forking into c and d:
//
//	main -> a -> b -> c
//	             \-> d
func branchingGraph() *graph.ChangeGraph {
	segA := &graph.Segment{Bookmarks: []graph.Bookmark{{Name: "a", ChangeID: "a"}}, ParentSegment: -1, ChangeIDs: []string{"a"}, TipDescription: "feat: a"}
	segB := &graph.Segment{Bookmarks: []graph.Bookmark{{Name: "b", ChangeID: "b"}}, ParentSegment: 0, ChangeIDs: []string{"b"}, TipDescription: "feat: b"}
	segC := &graph.Segment{Bookmarks: []graph.Bookmark{{Name: "c", ChangeID: "c"}}, ParentSegment: 1, ChangeIDs: []string{"c"}, TipDescription: "feat: c"}
	segD := &graph.Segment{Bookmarks: []graph.Bookmark{{Name: "d", ChangeID: "d"}}, ParentSegment: 1, ChangeIDs: []string{"d"}, TipDescription: "feat: d"}
	stack := &graph.Stack{Segments: []*graph.Segment{segA, segB, segC, segD}}
	return &graph.ChangeGraph{
		DefaultBranch: "main",
		Bookmarks: []graph.Bookmark{
			{Name: "a", ChangeID: "a"}, {Name: "b", ChangeID: "b"}, {Name: "c", ChangeID: "c"}, {Name: "d", ChangeID: "d"},
		},
		Stacks: []*graph.Stack{stack},
	}
}

func TestAnalyze_unknownBookmark(t *testing.T) {
	g := branchingGraph()
	if _, err := Analyze(g, "nope"); err == nil {
		t.Fatal("expected error for unknown bookmark")
	}
}

func TestAnalyzeStack_unionsBothBranchesPastTarget(t *testing.T) {
	g := branchingGraph()

	analysis, err := AnalyzeStack(g, "b")
	if err != nil {
		t.Fatalf("AnalyzeStack: %v", err)
	}
	if analysis.TargetBookmark != "b" {
		t.Fatalf("expected target bookmark b, got %q", analysis.TargetBookmark)
	}

	got := map[string]bool{}
	for _, seg := range analysis.Segments {
		got[seg.RepresentativeBookmark] = true
	}
	for _, want := range []string{"a", "b", "c", "d"} {
		if !got[want] {
			t.Errorf("expected %q in the unioned stack, got %+v", want, got)
		}
	}
	if len(analysis.Segments) != 4 {
		t.Fatalf("expected 4 deduplicated segments, got %d: %+v", len(analysis.Segments), analysis.Segments)
	}
}

func TestAnalyzeStack_leafTargetFallsBackToItsOwnAnalysis(t *testing.T) {
	g := branchingGraph()

	analysis, err := AnalyzeStack(g, "c")
	if err != nil {
		t.Fatalf("AnalyzeStack: %v", err)
	}
	if len(analysis.Segments) != 3 {
		t.Fatalf("expected the 3-segment ancestor chain a,b,c, got %d", len(analysis.Segments))
	}
}

func TestAnalysis_Upto_unknownBookmarkFails(t *testing.T) {
	analysis := threeSegmentAnalysis()
	_, err := analysis.Upto("nope")
	if !engine.IsKind(err, engine.KindInvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestAnalysis_Only_midStackWithoutParentPRFails(t *testing.T) {
	analysis := threeSegmentAnalysis()
	_, err := analysis.Only(func(string) bool { return false })
	if !engine.IsKind(err, engine.KindInvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}
