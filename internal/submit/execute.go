package submit

import (
	"context"

	"github.com/msuozzo/jj-ryu/internal/engine"
	"github.com/msuozzo/jj-ryu/internal/forge"
	"github.com/msuozzo/jj-ryu/internal/graph"
	"github.com/msuozzo/jj-ryu/internal/jj"
)

// SubmissionResult aggregates everything a submission did, successes and
// failures alike (spec.md §4.3). Execute never aborts the whole run on a
// single step's failure: it drops only the steps that depended on it and
// keeps going, recording the failure in Errors.
type SubmissionResult struct {
	Success         bool
	PushedBookmarks []string
	CreatedPRs      []*forge.PullRequest
	UpdatedPRs      []*forge.PullRequest
	Errors          []error
}

// graphBookmarkState adapts a *graph.ChangeGraph to the planner's
// bookmarkSyncState capability, looked up by bookmark name.
type graphBookmarkState struct {
	g *graph.ChangeGraph
}

func (s graphBookmarkState) HasRemoteRef(name string) bool {
	bm, ok := s.g.FindBookmark(name)
	return ok && bm.HasRemote
}

func (s graphBookmarkState) IsSynced(name string) bool {
	bm, ok := s.g.FindBookmark(name)
	return ok && bm.IsSynced
}

// NewBookmarkSyncState exposes graphBookmarkState for callers building a
// SubmissionPlan directly from a ChangeGraph.
func NewBookmarkSyncState(g *graph.ChangeGraph) interface {
	HasRemoteRef(name string) bool
	IsSynced(name string) bool
} {
	return graphBookmarkState{g: g}
}

// Execute carries out a SubmissionPlan's ExecutionSteps in order, reporting
// progress as it goes (spec.md §4.3). When dryRun is true, no mutation
// reaches the workspace or the platform: every step is simulated and
// reported as if it had succeeded, so callers can preview a plan end to end.
func Execute(ctx context.Context, client jj.Client, platform forge.Platform, plan *SubmissionPlan, progress Progress, dryRun bool) *SubmissionResult {
	if progress == nil {
		progress = NoopProgress{}
	}

	result := &SubmissionResult{Success: true}
	failed := map[string]bool{}
	prByBookmark := map[string]*forge.PullRequest{}
	for bookmark, pr := range plan.ExistingPRs {
		prByBookmark[bookmark] = pr
	}

	progress.OnPhase(PhaseExecuting)

	for _, step := range plan.ExecutionSteps {
		if step.Kind != StepWriteComment {
			// A step depending on a bookmark via its head (step.Bookmark) or
			// its expected base (step.Base, for creates and base updates)
			// must be dropped once that bookmark has failed (spec.md §4.3),
			// and cascades: dropping this step fails step.Bookmark in turn
			// so anything based on it further up the stack also drops.
			baseFailed := (step.Kind == StepCreatePR || step.Kind == StepUpdateBase) && failed[step.Base]
			if failed[step.Bookmark] || baseFailed {
				failed[step.Bookmark] = true
				continue
			}
		}

		switch step.Kind {
		case StepPush:
			executePush(ctx, client, plan, step, progress, dryRun, result, failed)

		case StepCreatePR:
			executeCreatePR(ctx, platform, step, progress, dryRun, result, failed, prByBookmark)

		case StepUpdateBase:
			executeUpdateBase(ctx, platform, step, progress, dryRun, result, failed, prByBookmark)

		case StepPublish:
			executePublish(ctx, platform, step, progress, dryRun, result, failed, prByBookmark)
		}
	}

	progress.OnPhase(PhaseAddingComments)
	entries := buildStackCommentEntries(plan, prByBookmark)
	for _, step := range plan.ExecutionSteps {
		if step.Kind != StepWriteComment || failed[step.Bookmark] {
			continue
		}
		writeStackComment(ctx, platform, step.Bookmark, entries, prByBookmark, progress, dryRun, result)
	}

	progress.OnPhase(PhaseComplete)
	return result
}

func executePush(ctx context.Context, client jj.Client, plan *SubmissionPlan, step ExecutionStep, progress Progress, dryRun bool, result *SubmissionResult, failed map[string]bool) {
	progress.OnBookmarkPush(step.Bookmark, PushStatus{State: PushStarted})
	if dryRun {
		progress.OnBookmarkPush(step.Bookmark, PushStatus{State: PushSuccess})
		result.PushedBookmarks = append(result.PushedBookmarks, step.Bookmark)
		return
	}
	if err := client.GitPush(ctx, plan.Remote, step.Bookmark, true); err != nil {
		wrapped := engine.Wrap(engine.KindWorkspace, err, "push %s to %s", step.Bookmark, plan.Remote)
		progress.OnBookmarkPush(step.Bookmark, PushStatus{State: PushFailed, Message: err.Error()})
		progress.OnError(wrapped)
		result.Errors = append(result.Errors, wrapped)
		result.Success = false
		failed[step.Bookmark] = true
		return
	}
	progress.OnBookmarkPush(step.Bookmark, PushStatus{State: PushSuccess})
	result.PushedBookmarks = append(result.PushedBookmarks, step.Bookmark)
}

func executeCreatePR(ctx context.Context, platform forge.Platform, step ExecutionStep, progress Progress, dryRun bool, result *SubmissionResult, failed map[string]bool, prByBookmark map[string]*forge.PullRequest) {
	if dryRun {
		pr := &forge.PullRequest{HeadRef: step.Bookmark, BaseRef: step.Base, Title: step.Title, IsDraft: step.Draft}
		prByBookmark[step.Bookmark] = pr
		result.CreatedPRs = append(result.CreatedPRs, pr)
		progress.OnPRCreated(step.Bookmark, pr)
		return
	}
	pr, err := platform.CreatePRWithOptions(ctx, forge.CreateOptions{Head: step.Bookmark, Base: step.Base, Title: step.Title, Draft: step.Draft})
	if err != nil {
		wrapped := engine.Wrap(engine.KindPlatformAPI, err, "create PR for %s", step.Bookmark)
		progress.OnError(wrapped)
		result.Errors = append(result.Errors, wrapped)
		result.Success = false
		failed[step.Bookmark] = true
		return
	}
	prByBookmark[step.Bookmark] = pr
	result.CreatedPRs = append(result.CreatedPRs, pr)
	progress.OnPRCreated(step.Bookmark, pr)
}

func executeUpdateBase(ctx context.Context, platform forge.Platform, step ExecutionStep, progress Progress, dryRun bool, result *SubmissionResult, failed map[string]bool, prByBookmark map[string]*forge.PullRequest) {
	existing := prByBookmark[step.Bookmark]
	if existing == nil {
		return
	}
	if dryRun {
		updated := *existing
		updated.BaseRef = step.Base
		prByBookmark[step.Bookmark] = &updated
		result.UpdatedPRs = append(result.UpdatedPRs, &updated)
		progress.OnPRUpdated(step.Bookmark, &updated)
		return
	}
	pr, err := platform.UpdatePRBase(ctx, step.PRNumber, step.Base)
	if err != nil {
		wrapped := engine.Wrap(engine.KindPlatformAPI, err, "update base of PR #%d for %s", step.PRNumber, step.Bookmark)
		progress.OnError(wrapped)
		result.Errors = append(result.Errors, wrapped)
		result.Success = false
		failed[step.Bookmark] = true
		return
	}
	prByBookmark[step.Bookmark] = pr
	result.UpdatedPRs = append(result.UpdatedPRs, pr)
	progress.OnPRUpdated(step.Bookmark, pr)
}

func executePublish(ctx context.Context, platform forge.Platform, step ExecutionStep, progress Progress, dryRun bool, result *SubmissionResult, failed map[string]bool, prByBookmark map[string]*forge.PullRequest) {
	existing := prByBookmark[step.Bookmark]
	if existing == nil {
		return
	}
	if dryRun {
		published := *existing
		published.IsDraft = false
		prByBookmark[step.Bookmark] = &published
		result.UpdatedPRs = append(result.UpdatedPRs, &published)
		progress.OnPRUpdated(step.Bookmark, &published)
		return
	}
	pr, err := platform.PublishPR(ctx, step.PRNumber)
	if err != nil {
		wrapped := engine.Wrap(engine.KindPlatformAPI, err, "publish PR #%d for %s", step.PRNumber, step.Bookmark)
		progress.OnError(wrapped)
		result.Errors = append(result.Errors, wrapped)
		result.Success = false
		failed[step.Bookmark] = true
		return
	}
	prByBookmark[step.Bookmark] = pr
	result.UpdatedPRs = append(result.UpdatedPRs, pr)
	progress.OnPRUpdated(step.Bookmark, pr)
}

// buildStackCommentEntries walks the plan's segments trunk-to-leaf and
// collects one entry per segment that ended up with a known PR, matching
// spec.md §4.4's stack comment contents.
func buildStackCommentEntries(plan *SubmissionPlan, prByBookmark map[string]*forge.PullRequest) []StackCommentEntry {
	var entries []StackCommentEntry
	for _, seg := range plan.Segments {
		pr := prByBookmark[seg.RepresentativeBookmark]
		if pr == nil {
			continue
		}
		entries = append(entries, StackCommentEntry{Number: pr.Number, Title: seg.Title})
	}
	return entries
}

// writeStackComment rewrites the stack comment on the PR for bookmark,
// updating an existing sentinel block in place rather than duplicating it
// (spec.md §4.4/§9). Comment writes are best-effort: failures are reported
// via progress.OnError and collected into result.Errors but never flip
// result.Success, which tracks only push/create/base-update/publish steps.
func writeStackComment(ctx context.Context, platform forge.Platform, bookmark string, entries []StackCommentEntry, prByBookmark map[string]*forge.PullRequest, progress Progress, dryRun bool, result *SubmissionResult) {
	pr := prByBookmark[bookmark]
	if pr == nil {
		return
	}
	body := BuildStackComment(StackCommentData{Entries: entries, Current: pr.Number})
	if dryRun {
		return
	}

	comments, err := platform.ListPRComments(ctx, pr.Number)
	if err != nil {
		wrapped := engine.Wrap(engine.KindPlatformAPI, err, "list comments on PR #%d for %s", pr.Number, bookmark)
		progress.OnError(wrapped)
		result.Errors = append(result.Errors, wrapped)
		return
	}

	for _, c := range comments {
		if IsStackComment(c.Body) {
			if err := platform.UpdatePRComment(ctx, pr.Number, c.ID, body); err != nil {
				wrapped := engine.Wrap(engine.KindPlatformAPI, err, "update stack comment on PR #%d for %s", pr.Number, bookmark)
				progress.OnError(wrapped)
				result.Errors = append(result.Errors, wrapped)
			}
			return
		}
	}

	if err := platform.CreatePRComment(ctx, pr.Number, body); err != nil {
		wrapped := engine.Wrap(engine.KindPlatformAPI, err, "create stack comment on PR #%d for %s", pr.Number, bookmark)
		progress.OnError(wrapped)
		result.Errors = append(result.Errors, wrapped)
	}
}
