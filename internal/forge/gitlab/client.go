// Package gitlab implements forge.Platform over the GitLab REST API via
// gitlab.com/gitlab-org/api/client-go, treating merge requests as the PR
// equivalent. GitLab has no separate draft flag: draft state is encoded as
// a "Draft: " title prefix, and publishing means stripping it (the
// UpdateMergeRequest call the rest of this adapter already uses).
package gitlab

import (
	"context"
	"fmt"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/msuozzo/jj-ryu/internal/engine"
	"github.com/msuozzo/jj-ryu/internal/forge"
)

const draftPrefix = "Draft: "

// Client implements forge.Platform against one project on gitlab.com or a
// self-managed GitLab instance.
type Client struct {
	gl  *gitlab.Client
	cfg forge.Config
}

// New builds a Client authenticated with token. cfg.Owner is the project's
// group/namespace path; an empty cfg.Host targets gitlab.com.
func New(token string, cfg forge.Config) (*Client, error) {
	opts := []gitlab.ClientOptionFunc{}
	if cfg.Host != "" && cfg.Host != "gitlab.com" {
		opts = append(opts, gitlab.WithBaseURL("https://"+cfg.Host))
	}
	gl, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, engine.Wrap(engine.KindConfig, err, "build GitLab client for %s", cfg.Host)
	}
	return &Client{gl: gl, cfg: cfg}, nil
}

func (c *Client) Config() forge.Config { return c.cfg }

func (c *Client) projectPath() string {
	return fmt.Sprintf("%s/%s", c.cfg.Owner, c.cfg.Repo)
}

func fromMergeRequest(mr *gitlab.BasicMergeRequest) *forge.PullRequest {
	return &forge.PullRequest{
		Number:  mr.IID,
		HTMLURL: mr.WebURL,
		BaseRef: mr.TargetBranch,
		HeadRef: mr.SourceBranch,
		Title:   strings.TrimPrefix(mr.Title, draftPrefix),
		IsDraft: mr.WorkInProgress || strings.HasPrefix(mr.Title, draftPrefix),
	}
}

// FindExistingPR searches open MRs whose source branch is headBranch,
// returning the lowest-IID match when more than one is open.
func (c *Client) FindExistingPR(ctx context.Context, headBranch string) (*forge.PullRequest, error) {
	state := "opened"
	opts := &gitlab.ListProjectMergeRequestsOptions{
		SourceBranch: &headBranch,
		State:        &state,
		ListOptions:  gitlab.ListOptions{PerPage: 100},
	}
	var best *gitlab.BasicMergeRequest
	for {
		mrs, resp, err := c.gl.MergeRequests.ListProjectMergeRequests(c.projectPath(), opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, engine.Wrap(engine.KindPlatformAPI, err, "list merge requests for source %s", headBranch)
		}
		for _, mr := range mrs {
			if best == nil || mr.IID < best.IID {
				best = mr
			}
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	if best == nil {
		return nil, nil
	}
	return fromMergeRequest(best), nil
}

func (c *Client) CreatePRWithOptions(ctx context.Context, opts forge.CreateOptions) (*forge.PullRequest, error) {
	title := opts.Title
	if opts.Draft {
		title = draftPrefix + title
	}
	createOpts := &gitlab.CreateMergeRequestOptions{
		Title:        &title,
		SourceBranch: &opts.Head,
		TargetBranch: &opts.Base,
	}
	mr, _, err := c.gl.MergeRequests.CreateMergeRequest(c.projectPath(), createOpts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, engine.Wrap(engine.KindPlatformAPI, err, "create merge request %s -> %s", opts.Head, opts.Base)
	}
	return fromMergeRequest(&mr.BasicMergeRequest), nil
}

func (c *Client) UpdatePRBase(ctx context.Context, number int, newBase string) (*forge.PullRequest, error) {
	updateOpts := &gitlab.UpdateMergeRequestOptions{TargetBranch: &newBase}
	mr, _, err := c.gl.MergeRequests.UpdateMergeRequest(c.projectPath(), number, updateOpts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, engine.Wrap(engine.KindPlatformAPI, err, "update target branch of MR !%d", number)
	}
	return fromMergeRequest(&mr.BasicMergeRequest), nil
}

// PublishPR strips the "Draft: " title prefix GitLab uses to mark an MR
// not ready for review; there is no separate ready-for-review endpoint.
func (c *Client) PublishPR(ctx context.Context, number int) (*forge.PullRequest, error) {
	mr, _, err := c.gl.MergeRequests.GetMergeRequest(c.projectPath(), number, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, engine.Wrap(engine.KindPlatformAPI, err, "fetch MR !%d before publish", number)
	}
	title := strings.TrimPrefix(mr.Title, draftPrefix)
	updateOpts := &gitlab.UpdateMergeRequestOptions{Title: &title}
	updated, _, err := c.gl.MergeRequests.UpdateMergeRequest(c.projectPath(), number, updateOpts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, engine.Wrap(engine.KindPlatformAPI, err, "publish MR !%d", number)
	}
	return fromMergeRequest(&updated.BasicMergeRequest), nil
}

func (c *Client) ListPRComments(ctx context.Context, number int) ([]forge.Comment, error) {
	opts := &gitlab.ListMergeRequestNotesOptions{PerPage: 100}
	var out []forge.Comment
	for {
		notes, resp, err := c.gl.Notes.ListMergeRequestNotes(c.projectPath(), number, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, engine.Wrap(engine.KindPlatformAPI, err, "list notes on MR !%d", number)
		}
		for _, n := range notes {
			if n.System {
				continue
			}
			out = append(out, forge.Comment{ID: fmt.Sprint(n.ID), Body: n.Body})
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (c *Client) CreatePRComment(ctx context.Context, number int, body string) error {
	opts := &gitlab.CreateMergeRequestNoteOptions{Body: &body}
	_, _, err := c.gl.Notes.CreateMergeRequestNote(c.projectPath(), number, opts, gitlab.WithContext(ctx))
	if err != nil {
		return engine.Wrap(engine.KindPlatformAPI, err, "create note on MR !%d", number)
	}
	return nil
}

func (c *Client) UpdatePRComment(ctx context.Context, number int, commentID string, body string) error {
	var noteID int
	if _, err := fmt.Sscan(commentID, &noteID); err != nil {
		return engine.Wrap(engine.KindPlatformAPI, err, "parse note id %q", commentID)
	}
	opts := &gitlab.UpdateMergeRequestNoteOptions{Body: &body}
	_, _, err := c.gl.Notes.UpdateMergeRequestNote(c.projectPath(), number, noteID, opts, gitlab.WithContext(ctx))
	if err != nil {
		return engine.Wrap(engine.KindPlatformAPI, err, "update note %s on MR !%d", commentID, number)
	}
	return nil
}

var _ forge.Platform = (*Client)(nil)
