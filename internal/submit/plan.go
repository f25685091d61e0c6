package submit

import (
	"context"

	"github.com/msuozzo/jj-ryu/internal/engine"
	"github.com/msuozzo/jj-ryu/internal/forge"
)

// PrToCreate describes a PR the plan wants created.
type PrToCreate struct {
	Head  string
	Base  string
	Title string
	Draft bool
}

// PrBaseUpdate describes an existing PR whose base must be reparented.
type PrBaseUpdate struct {
	Number       int
	CurrentBase  string
	ExpectedBase string
}

// StepKind identifies one ExecutionStep's operation.
type StepKind int

const (
	StepPush StepKind = iota
	StepUpdateBase
	StepCreatePR
	StepPublish
	StepWriteComment
)

func (k StepKind) String() string {
	switch k {
	case StepPush:
		return "push"
	case StepUpdateBase:
		return "update-base"
	case StepCreatePR:
		return "create-pr"
	case StepPublish:
		return "publish"
	case StepWriteComment:
		return "write-comment"
	default:
		return "unknown"
	}
}

// ExecutionStep is one typed, human-describable unit of the execution
// script, in the totally ordered sequence the plan produces (spec.md
// §4.2's ExecutionStep ordering constraints).
type ExecutionStep struct {
	Kind        StepKind
	Description string

	Bookmark string // StepPush (pushed bookmark); StepUpdateBase, StepCreatePR, StepPublish, StepWriteComment (PR head)
	PRNumber int    // StepUpdateBase, StepPublish: the PR acted on
	Base     string // StepUpdateBase, StepCreatePR: the (new) base
	Title    string // StepCreatePR
	Draft    bool   // StepCreatePR
}

// SubmissionPlan is the output of create_submission_plan: the reconciled
// state between Analysis intent and remote reality (spec.md §3).
type SubmissionPlan struct {
	Segments             []SegmentAnalysis
	Remote               string
	DefaultBranch        string
	ExistingPRs          map[string]*forge.PullRequest // bookmark -> PR
	BookmarksNeedingPush []string
	PrsToCreate          []PrToCreate
	PrsToUpdateBase      []PrBaseUpdate
	PrsToPublish         []int // PR numbers
	ExecutionSteps       []ExecutionStep
}

// PlanOptions carries the submit command's modifiers (spec.md §4.2).
type PlanOptions struct {
	Draft      bool // set the draft flag on newly created PRs
	Publish    bool // publish existing draft PRs in the stack
	UpdateOnly bool // drop prs_to_create and pushes for bookmarks with no PR yet
}

// bookmarkSyncState is the subset of graph.Bookmark the planner needs,
// looked up by representative bookmark name.
type bookmarkSyncState interface {
	HasRemoteRef(name string) bool
	IsSynced(name string) bool
}

// segPlan is the per-segment reconciliation result CreatePlan derives
// before linearizing it into ExecutionSteps, trunk-to-leaf in analysis
// order (analysis.Segments is already ordered that way).
type segPlan struct {
	bookmark    string
	base        string
	title       string
	existing    *forge.PullRequest
	willCreate  bool
	willUpdate  bool
	willPublish bool
	pushNeeded  bool
}

// CreatePlan reconciles analysis against remote platform state, producing
// an ordered SubmissionPlan (spec.md §4.2).
func CreatePlan(
	ctx context.Context,
	analysis *Analysis,
	platform forge.Platform,
	remote, defaultBranch string,
	bookmarks bookmarkSyncState,
	opts PlanOptions,
) (*SubmissionPlan, error) {
	plan := &SubmissionPlan{
		Segments:      analysis.Segments,
		Remote:        remote,
		DefaultBranch: defaultBranch,
		ExistingPRs:   map[string]*forge.PullRequest{},
	}

	var segPlans []segPlan

	for _, seg := range analysis.Segments {
		existing, err := platform.FindExistingPR(ctx, seg.RepresentativeBookmark)
		if err != nil {
			return nil, engine.Wrap(engine.KindPlatformAPI, err, "find existing PR for %s", seg.RepresentativeBookmark)
		}
		if existing != nil {
			plan.ExistingPRs[seg.RepresentativeBookmark] = existing
		}

		sp := segPlan{bookmark: seg.RepresentativeBookmark, base: seg.BaseBranch, title: seg.Title, existing: existing}

		pushNeeded := !bookmarks.HasRemoteRef(seg.RepresentativeBookmark) ||
			!bookmarks.IsSynced(seg.RepresentativeBookmark) ||
			existing == nil
		sp.pushNeeded = pushNeeded

		if existing == nil {
			sp.willCreate = true
		} else if existing.BaseRef != seg.BaseBranch {
			sp.willUpdate = true
		}
		if opts.Publish && existing != nil && existing.IsDraft {
			sp.willPublish = true
		}

		segPlans = append(segPlans, sp)
	}

	if opts.UpdateOnly {
		var filtered []segPlan
		for _, sp := range segPlans {
			if sp.existing == nil {
				continue // drop: update-only never creates
			}
			sp.willCreate = false
			sp.pushNeeded = sp.pushNeeded && sp.existing != nil
			filtered = append(filtered, sp)
		}
		segPlans = filtered
	}

	for _, sp := range segPlans {
		if sp.pushNeeded {
			plan.BookmarksNeedingPush = append(plan.BookmarksNeedingPush, sp.bookmark)
		}
		if sp.willCreate {
			plan.PrsToCreate = append(plan.PrsToCreate, PrToCreate{
				Head: sp.bookmark, Base: sp.base, Title: sp.title, Draft: opts.Draft,
			})
		}
		if sp.willUpdate {
			plan.PrsToUpdateBase = append(plan.PrsToUpdateBase, PrBaseUpdate{
				Number: sp.existing.Number, CurrentBase: sp.existing.BaseRef, ExpectedBase: sp.base,
			})
		}
		if sp.willPublish {
			plan.PrsToPublish = append(plan.PrsToPublish, sp.existing.Number)
		}
	}

	plan.ExecutionSteps = buildExecutionSteps(segPlans, opts)
	return plan, nil
}

// buildExecutionSteps linearizes the plan following spec.md §4.2's
// ordering constraints: pushes before any dependent create/update, base
// updates and creates trunk-to-leaf, publishing after mutations for that
// segment, comment writes last of all. segPlans is already trunk-to-leaf
// ordered, mirroring analysis.Segments.
func buildExecutionSteps(segPlans []segPlan, opts PlanOptions) []ExecutionStep {
	var steps []ExecutionStep

	for _, sp := range segPlans {
		if sp.pushNeeded {
			steps = append(steps, ExecutionStep{
				Kind:        StepPush,
				Description: "push " + sp.bookmark,
				Bookmark:    sp.bookmark,
			})
		}
	}

	for _, sp := range segPlans {
		if sp.willUpdate {
			steps = append(steps, ExecutionStep{
				Kind:        StepUpdateBase,
				Description: "update base of PR for " + sp.bookmark + " to " + sp.base,
				Bookmark:    sp.bookmark,
				PRNumber:    sp.existing.Number,
				Base:        sp.base,
			})
		}
	}

	for _, sp := range segPlans {
		if sp.willCreate {
			steps = append(steps, ExecutionStep{
				Kind:        StepCreatePR,
				Description: "create PR for " + sp.bookmark + " against " + sp.base,
				Bookmark:    sp.bookmark,
				Base:        sp.base,
				Title:       sp.title,
				Draft:       opts.Draft,
			})
		}
	}

	for _, sp := range segPlans {
		if sp.willPublish {
			steps = append(steps, ExecutionStep{
				Kind:        StepPublish,
				Description: "publish PR for " + sp.bookmark,
				Bookmark:    sp.bookmark,
				PRNumber:    sp.existing.Number,
			})
		}
	}

	for _, sp := range segPlans {
		if sp.pushNeeded || sp.willCreate || sp.willUpdate || sp.willPublish {
			steps = append(steps, ExecutionStep{
				Kind:        StepWriteComment,
				Description: "write stack comment on PR for " + sp.bookmark,
				Bookmark:    sp.bookmark,
			})
		}
	}

	return steps
}
