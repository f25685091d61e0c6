// Package forgetest provides an in-memory forge.Platform for exercising
// internal/submit without reaching a real API,
// mirroring the role internal/jjtest plays for jj.Client.
package forgetest

import (
	"context"
	"fmt"
	"sort"

	"github.com/msuozzo/jj-ryu/internal/forge"
)

// FakePlatform implements forge.Platform against in-memory state, keyed by
// head branch for lookups and by PR number for mutations.
type FakePlatform struct {
	Cfg forge.Config

	NextNumber    int
	PRs           map[int]*forge.PullRequest
	Comments      map[int][]forge.Comment
	nextCommentID int

	// Errs lets tests inject a failure for a named method, returned once
	// then cleared.
	Errs map[string]error
}

// NewFakePlatform returns an empty FakePlatform bound to cfg.
func NewFakePlatform(cfg forge.Config) *FakePlatform {
	return &FakePlatform{
		Cfg:        cfg,
		NextNumber: 1,
		PRs:        map[int]*forge.PullRequest{},
		Comments:   map[int][]forge.Comment{},
		Errs:       map[string]error{},
	}
}

var _ forge.Platform = (*FakePlatform)(nil)

func (f *FakePlatform) takeErr(method string) error {
	if err, ok := f.Errs[method]; ok {
		delete(f.Errs, method)
		return err
	}
	return nil
}

func (f *FakePlatform) Config() forge.Config { return f.Cfg }

// SeedPR registers an existing PR directly, bypassing CreatePRWithOptions,
// for tests that start from a non-empty remote state.
func (f *FakePlatform) SeedPR(pr forge.PullRequest) *forge.PullRequest {
	stored := pr
	f.PRs[pr.Number] = &stored
	if pr.Number >= f.NextNumber {
		f.NextNumber = pr.Number + 1
	}
	return &stored
}

func (f *FakePlatform) FindExistingPR(ctx context.Context, headBranch string) (*forge.PullRequest, error) {
	if err := f.takeErr("FindExistingPR"); err != nil {
		return nil, err
	}
	var best *forge.PullRequest
	for _, pr := range f.PRs {
		if pr.HeadRef != headBranch {
			continue
		}
		if best == nil || pr.Number < best.Number {
			best = pr
		}
	}
	return best, nil
}

func (f *FakePlatform) CreatePRWithOptions(ctx context.Context, opts forge.CreateOptions) (*forge.PullRequest, error) {
	if err := f.takeErr("CreatePRWithOptions"); err != nil {
		return nil, err
	}
	number := f.NextNumber
	f.NextNumber++
	pr := &forge.PullRequest{
		Number:  number,
		HTMLURL: fmt.Sprintf("https://example.invalid/%s/%s/pull/%d", f.Cfg.Owner, f.Cfg.Repo, number),
		BaseRef: opts.Base,
		HeadRef: opts.Head,
		Title:   opts.Title,
		NodeID:  fmt.Sprintf("node-%d", number),
		IsDraft: opts.Draft,
	}
	f.PRs[number] = pr
	return pr, nil
}

func (f *FakePlatform) UpdatePRBase(ctx context.Context, number int, newBase string) (*forge.PullRequest, error) {
	if err := f.takeErr("UpdatePRBase"); err != nil {
		return nil, err
	}
	pr, ok := f.PRs[number]
	if !ok {
		return nil, fmt.Errorf("no such PR #%d", number)
	}
	pr.BaseRef = newBase
	return pr, nil
}

func (f *FakePlatform) PublishPR(ctx context.Context, number int) (*forge.PullRequest, error) {
	if err := f.takeErr("PublishPR"); err != nil {
		return nil, err
	}
	pr, ok := f.PRs[number]
	if !ok {
		return nil, fmt.Errorf("no such PR #%d", number)
	}
	pr.IsDraft = false
	return pr, nil
}

func (f *FakePlatform) ListPRComments(ctx context.Context, number int) ([]forge.Comment, error) {
	if err := f.takeErr("ListPRComments"); err != nil {
		return nil, err
	}
	out := make([]forge.Comment, len(f.Comments[number]))
	copy(out, f.Comments[number])
	return out, nil
}

func (f *FakePlatform) CreatePRComment(ctx context.Context, number int, body string) error {
	if err := f.takeErr("CreatePRComment"); err != nil {
		return err
	}
	f.nextCommentID++
	f.Comments[number] = append(f.Comments[number], forge.Comment{ID: fmt.Sprint(f.nextCommentID), Body: body})
	return nil
}

func (f *FakePlatform) UpdatePRComment(ctx context.Context, number int, commentID string, body string) error {
	if err := f.takeErr("UpdatePRComment"); err != nil {
		return err
	}
	for i, c := range f.Comments[number] {
		if c.ID == commentID {
			f.Comments[number][i].Body = body
			return nil
		}
	}
	return fmt.Errorf("no such comment %s on PR #%d", commentID, number)
}

// SortedPRNumbers returns every PR number in this fake, ascending, useful
// for assertions that don't want to depend on map iteration order.
func (f *FakePlatform) SortedPRNumbers() []int {
	nums := make([]int, 0, len(f.PRs))
	for n := range f.PRs {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}
