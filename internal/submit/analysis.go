// Package submit implements the three-phase submission engine: Analysis
// turns a change graph into an ordered intent (this file), Planner
// reconciles that intent against remote platform state (plan.go), and
// Executor carries out the resulting script (execute.go).
package submit

import (
	"strings"

	"github.com/msuozzo/jj-ryu/internal/engine"
	"github.com/msuozzo/jj-ryu/internal/graph"
)

// SegmentAnalysis is one segment's contribution to a SubmissionAnalysis:
// its representative bookmark, its desired base, and its derived title.
type SegmentAnalysis struct {
	Segment                *graph.Segment
	RepresentativeBookmark string
	BaseBranch             string
	Title                  string
}

// Analysis is the output of analyze_submission: intent, not yet
// reconciled against any remote state.
type Analysis struct {
	TargetBookmark string
	Segments       []SegmentAnalysis
}

// Analyze derives the ordered list of segments that make up the stack
// ending at targetBookmark, per spec.md §4.1.
func Analyze(g *graph.ChangeGraph, targetBookmark string) (*Analysis, error) {
	if _, ok := g.FindBookmark(targetBookmark); !ok {
		return nil, graph.ErrBookmarkNotFound(targetBookmark)
	}

	st, idx := g.StackContaining(targetBookmark)
	if st == nil {
		return nil, graph.ErrBookmarkNotFound(targetBookmark)
	}

	// Follow ParentSegment links from the target back to trunk, so a fork
	// elsewhere in the stack never lands in this segment list.
	var collected []*graph.Segment
	for i := idx; i >= 0; {
		seg := st.Segments[i]
		collected = append([]*graph.Segment{seg}, collected...)
		if seg.ParentSegment >= i {
			break
		}
		i = seg.ParentSegment
	}
	segments := make([]SegmentAnalysis, len(collected))
	prevRepresentative := ""
	for i, seg := range collected {
		preferred := ""
		if i == len(collected)-1 {
			preferred = targetBookmark
		}
		rep := seg.Representative(preferred).Name

		base := g.DefaultBranch
		if i > 0 {
			base = prevRepresentative
		}

		segments[i] = SegmentAnalysis{
			Segment:                seg,
			RepresentativeBookmark: rep,
			BaseBranch:             base,
			Title:                  deriveTitle(seg, rep),
		}
		prevRepresentative = rep
	}

	return &Analysis{TargetBookmark: targetBookmark, Segments: segments}, nil
}

// deriveTitle takes the first line of the segment tip's commit message,
// falling back to the representative bookmark name when the message is
// empty (spec.md §4.1 step 5).
func deriveTitle(seg *graph.Segment, representative string) string {
	if line := firstLine(seg.TipDescription); line != "" {
		return line
	}
	return representative
}

// Upto truncates an Analysis's segments at the one carrying bookmark b,
// inclusive. Fails InvalidArgument if b is not among the collected
// segments (spec.md §4.1 "upto").
func (a *Analysis) Upto(b string) (*Analysis, error) {
	for i, seg := range a.Segments {
		for _, bm := range seg.Segment.Bookmarks {
			if bm.Name == b {
				return &Analysis{TargetBookmark: a.TargetBookmark, Segments: a.Segments[:i+1]}, nil
			}
		}
	}
	return nil, engine.New(engine.KindInvalidArgument, "bookmark %q is not part of the stack ending at %q", b, a.TargetBookmark)
}

// Only keeps just the target's segment. If it is not the first segment of
// the stack, the would-be base bookmark must already have an open PR,
// which the caller checks via hasOpenPR (spec.md §4.1 "only").
func (a *Analysis) Only(hasOpenPR func(bookmark string) bool) (*Analysis, error) {
	if len(a.Segments) == 0 {
		return a, nil
	}
	last := a.Segments[len(a.Segments)-1]
	only := []SegmentAnalysis{last}
	if len(a.Segments) > 1 {
		base := last.BaseBranch
		if !hasOpenPR(base) {
			return nil, engine.New(engine.KindInvalidArgument,
				"cannot submit %q with --only: base %q has no open PR; use --upto %s first", a.TargetBookmark, base, base)
		}
	}
	return &Analysis{TargetBookmark: a.TargetBookmark, Segments: only}, nil
}

// UnionStack merges several Analyses (one per descendant of the target
// across all stacks) by representative bookmark, de-duplicated, preserving
// encounter order across the supplied analyses (spec.md §4.1 "stack").
func UnionStack(analyses []*Analysis) *Analysis {
	seen := map[string]bool{}
	var merged []SegmentAnalysis
	var target string
	for _, a := range analyses {
		if target == "" {
			target = a.TargetBookmark
		}
		for _, seg := range a.Segments {
			if seen[seg.RepresentativeBookmark] {
				continue
			}
			seen[seg.RepresentativeBookmark] = true
			merged = append(merged, seg)
		}
	}
	return &Analysis{TargetBookmark: target, Segments: merged}
}

// AnalyzeStack computes the "--stack" scope operator (spec.md §4.1): the
// union of the Analyses of every descendant of target within its stack,
// so a submission covers the whole stack rather than just target's own
// ancestor chain. A descendant is a leaf segment (one no other segment
// points at via ParentSegment) whose ParentSegment chain passes through
// target's segment.
func AnalyzeStack(g *graph.ChangeGraph, target string) (*Analysis, error) {
	st, idx := g.StackContaining(target)
	if st == nil {
		return nil, graph.ErrBookmarkNotFound(target)
	}

	hasChild := make([]bool, len(st.Segments))
	for _, seg := range st.Segments {
		if seg.ParentSegment >= 0 {
			hasChild[seg.ParentSegment] = true
		}
	}

	var analyses []*Analysis
	for i, seg := range st.Segments {
		if hasChild[i] {
			continue // not a leaf: covered via union
		}
		p := i
		for p > idx && st.Segments[p].ParentSegment < p {
			p = st.Segments[p].ParentSegment
		}
		if p != idx {
			continue // leaf on a branch that does not grow from target
		}
		leaf := seg.Bookmarks[0].Name
		a, err := Analyze(g, leaf)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}
	if len(analyses) == 0 {
		return Analyze(g, target)
	}
	merged := UnionStack(analyses)
	merged.TargetBookmark = target
	return merged, nil
}

// firstLine returns the first non-empty line of s, trimmed.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}
