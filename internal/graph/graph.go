// Package graph holds the immutable value types for bookmarks, segments,
// stacks, and the change graph they live in, plus the builder that turns a
// jj.Client's raw commit data into that model. It knows nothing about
// platforms or plans; internal/submit consumes it.
package graph

import (
	"context"
	"sort"

	"github.com/msuozzo/jj-ryu/internal/engine"
	"github.com/msuozzo/jj-ryu/internal/jj"
)

// Bookmark is a named local ref, snapshotted at graph-build time.
type Bookmark struct {
	Name      string
	ChangeID  string
	HasRemote bool
	IsSynced  bool
}

// Segment is one contiguous run of change-graph nodes whose tip carries one
// or more bookmarks. ParentSegment is an index into the owning Stack's
// Segments slice, or -1 when the segment sits directly atop trunk.
type Segment struct {
	Bookmarks      []Bookmark
	ParentSegment  int
	ChangeIDs      []string // trunk-to-leaf order within the segment, tip last
	TipDescription string   // commit message of the tip change
}

// Tip is the change_id all of the segment's bookmarks point at.
func (s *Segment) Tip() string {
	return s.ChangeIDs[len(s.ChangeIDs)-1]
}

// Representative picks the bookmark that stands in for the segment when a
// single name is needed, e.g. as a PR head. preferred, if non-empty and
// present on the segment, always wins; otherwise the lexicographically
// smallest name wins, matching spec.md §4.1 step 3.
func (s *Segment) Representative(preferred string) Bookmark {
	best := s.Bookmarks[0]
	for _, b := range s.Bookmarks[1:] {
		if b.Name == preferred {
			return b
		}
		if b.Name < best.Name {
			best = b
		}
	}
	if preferred != "" {
		for _, b := range s.Bookmarks {
			if b.Name == preferred {
				return b
			}
		}
	}
	return best
}

// Stack is an ordered sequence of segments from trunk toward leaf.
type Stack struct {
	Segments []*Segment
}

// IndexOfBookmark returns the index of the segment carrying bookmark name,
// or -1 if none does.
func (s *Stack) IndexOfBookmark(name string) int {
	for i, seg := range s.Segments {
		for _, b := range seg.Bookmarks {
			if b.Name == name {
				return i
			}
		}
	}
	return -1
}

// ChangeGraph is the global, immutable view built once per invocation.
type ChangeGraph struct {
	DefaultBranch     string
	Bookmarks         []Bookmark
	BookmarkToChangeID map[string]string
	Stacks            []*Stack
}

// StackContaining returns the stack holding bookmark name and that
// bookmark's segment index within it, or (nil, -1) if not found.
func (g *ChangeGraph) StackContaining(name string) (*Stack, int) {
	for _, st := range g.Stacks {
		if idx := st.IndexOfBookmark(name); idx >= 0 {
			return st, idx
		}
	}
	return nil, -1
}

// Build walks the client's commit graph and bookmark remote states into a
// ChangeGraph. Merge commits (more than one parent among mutable ancestors)
// are excluded from stacks, per spec §3/§9: histories that fork are not
// represented as diamonds, they simply stop contributing further segments
// along the branch that merges.
func Build(ctx context.Context, client jj.Client, remote string) (*ChangeGraph, error) {
	defaultBranch, err := client.DefaultBranch(ctx)
	if err != nil {
		return nil, engine.Wrap(engine.KindWorkspace, err, "resolve default branch")
	}

	remoteStates, err := client.BookmarkRemoteStates(ctx, remote)
	if err != nil {
		return nil, engine.Wrap(engine.KindWorkspace, err, "read bookmark remote state")
	}
	bookmarksByChangeID := map[string][]Bookmark{}
	var allBookmarks []Bookmark
	for _, rs := range remoteStates {
		bm := Bookmark{Name: rs.Name, ChangeID: rs.ChangeID, HasRemote: rs.HasRemote, IsSynced: rs.IsSynced}
		bookmarksByChangeID[rs.ChangeID] = append(bookmarksByChangeID[rs.ChangeID], bm)
		allBookmarks = append(allBookmarks, bm)
	}
	for id, bms := range bookmarksByChangeID {
		sort.Slice(bms, func(i, j int) bool { return bms[i].Name < bms[j].Name })
		bookmarksByChangeID[id] = bms
	}

	nodes, err := client.CommitGraph(ctx)
	if err != nil {
		return nil, engine.Wrap(engine.KindWorkspace, err, "read commit graph")
	}
	byID := make(map[string]*jj.CommitNode, len(nodes))
	childrenOf := map[string][]string{}
	for _, n := range nodes {
		byID[n.ChangeID] = n
		for _, p := range n.Parents {
			childrenOf[p] = append(childrenOf[p], n.ChangeID)
		}
	}

	bookmarkToChangeID := make(map[string]string, len(allBookmarks))
	for _, bm := range allBookmarks {
		bookmarkToChangeID[bm.Name] = bm.ChangeID
	}

	b := &builder{
		byID:               byID,
		childrenOf:         childrenOf,
		bookmarksByChangeID: bookmarksByChangeID,
		segmentIndexByChange: map[string]segmentRef{},
	}
	stacks := b.buildStacks(defaultBranch)

	return &ChangeGraph{
		DefaultBranch:      defaultBranch,
		Bookmarks:          allBookmarks,
		BookmarkToChangeID: bookmarkToChangeID,
		Stacks:             stacks,
	}, nil
}

type segmentRef struct {
	stack *Stack
	index int
}

type builder struct {
	byID                 map[string]*jj.CommitNode
	childrenOf           map[string][]string
	bookmarksByChangeID  map[string][]Bookmark
	segmentIndexByChange map[string]segmentRef
}

// buildStacks finds every bookmarked change reachable from trunk and grows
// one stack per bookmarked run that starts at a child of trunk. A change
// contributes a new segment only when it carries a bookmark; runs of
// unbookmarked changes are folded into the segment of the bookmark they
// feed. A fork above a stack's first segment does not start a new stack:
// every branch of it is appended to the same stack, each segment's
// ParentSegment naming the segment it grows from, so a stack's Segments are
// not always a single linear chain.
func (b *builder) buildStacks(defaultBranch string) []*Stack {
	trunkChangeID, ok := b.resolveTrunkChangeID(defaultBranch)
	if !ok {
		return nil
	}

	var stacks []*Stack
	visited := map[string]bool{}

	var walk func(stack *Stack, parentSegment int, fromChangeID string)
	walk = func(stack *Stack, parentSegment int, fromChangeID string) {
		for _, childID := range sortedChildren(b.childrenOf[fromChangeID]) {
			if visited[childID] {
				continue
			}
			node := b.byID[childID]
			if node == nil || len(node.Parents) > 1 {
				// Merge commit: excluded, its branch stops contributing here.
				continue
			}
			segChangeIDs, tipID := b.collectSegmentRun(childID, visited)
			bms := b.bookmarksByChangeID[tipID]
			if len(bms) == 0 {
				// Unbookmarked run with no bookmarked descendant: not part
				// of any stack.
				continue
			}
			seg := &Segment{Bookmarks: bms, ParentSegment: parentSegment, ChangeIDs: segChangeIDs, TipDescription: b.descriptionOf(tipID)}
			stack.Segments = append(stack.Segments, seg)
			nextParent := len(stack.Segments) - 1
			walk(stack, nextParent, tipID)
		}
	}

	for _, childID := range sortedChildren(b.childrenOf[trunkChangeID]) {
		if visited[childID] {
			continue
		}
		node := b.byID[childID]
		if node == nil || len(node.Parents) > 1 {
			continue
		}
		segChangeIDs, tipID := b.collectSegmentRun(childID, visited)
		bms := b.bookmarksByChangeID[tipID]
		if len(bms) == 0 {
			continue
		}
		st := &Stack{}
		seg := &Segment{Bookmarks: bms, ParentSegment: -1, ChangeIDs: segChangeIDs, TipDescription: b.descriptionOf(tipID)}
		st.Segments = append(st.Segments, seg)
		walk(st, 0, tipID)
		stacks = append(stacks, st)
	}
	return stacks
}

// collectSegmentRun walks forward from startID through a linear (non-merge,
// unbookmarked-or-not) run of changes until it hits a change carrying a
// bookmark, marking every visited change id along the way. It returns the
// change ids covered (trunk-to-leaf order, tip last) and the tip's id.
// If no descendant in the linear run carries a bookmark, it still returns
// the chain walked so the caller can recognize an empty segment.
func (b *builder) collectSegmentRun(startID string, visited map[string]bool) ([]string, string) {
	ids := []string{startID}
	visited[startID] = true
	cur := startID
	if len(b.bookmarksByChangeID[cur]) > 0 {
		return ids, cur
	}
	for {
		children := b.childrenOf[cur]
		if len(children) != 1 {
			// Branch point or dead end with no bookmark: stop here: this
			// segment has no bookmarked tip in the linear continuation.
			return ids, cur
		}
		next := children[0]
		node := b.byID[next]
		if node == nil || len(node.Parents) > 1 || visited[next] {
			return ids, cur
		}
		ids = append(ids, next)
		visited[next] = true
		cur = next
		if len(b.bookmarksByChangeID[cur]) > 0 {
			return ids, cur
		}
	}
}

func (b *builder) descriptionOf(changeID string) string {
	if n := b.byID[changeID]; n != nil {
		return n.Description
	}
	return ""
}

func (b *builder) resolveTrunkChangeID(defaultBranch string) (string, bool) {
	for id, bms := range b.bookmarksByChangeID {
		for _, bm := range bms {
			if bm.Name == defaultBranch {
				return id, true
			}
		}
	}
	return "", false
}

func sortedChildren(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

// FindBookmark looks up a bookmark by name across the whole graph.
func (g *ChangeGraph) FindBookmark(name string) (Bookmark, bool) {
	for _, b := range g.Bookmarks {
		if b.Name == name {
			return b, true
		}
	}
	return Bookmark{}, false
}

// ErrBookmarkNotFound is a convenience constructor for the common
// BookmarkNotFound case, used by callers across analysis and planning.
func ErrBookmarkNotFound(name string) error {
	return engine.New(engine.KindBookmarkNotFound, "bookmark not found: %s", name)
}
