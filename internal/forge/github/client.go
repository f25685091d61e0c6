// Package github implements forge.Platform over the GitHub REST and GraphQL
// APIs: google/go-github for everything but publish, shurcooL/githubv4 for
// the one mutation REST has no equivalent for.
package github

import (
	"context"
	"fmt"

	"github.com/google/go-github/v68/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/msuozzo/jj-ryu/internal/engine"
	"github.com/msuozzo/jj-ryu/internal/forge"
)

// Client implements forge.Platform against one owner/repo on github.com or
// a GitHub Enterprise host.
type Client struct {
	rest    *github.Client
	graphQL *githubv4.Client
	cfg     forge.Config
}

// New builds a Client authenticated with token. An empty host targets
// github.com; any other host is treated as a GitHub Enterprise Server
// instance (REST at https://{host}/api/v3, GraphQL at https://{host}/api/graphql).
func New(ctx context.Context, token string, cfg forge.Config) (*Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(ctx, ts)

	rest := github.NewClient(httpClient)
	graphQL := githubv4.NewClient(httpClient)
	if cfg.Host != "" && cfg.Host != "github.com" {
		var err error
		rest, err = rest.WithEnterpriseURLs("https://"+cfg.Host, "https://"+cfg.Host)
		if err != nil {
			return nil, engine.Wrap(engine.KindConfig, err, "configure GitHub Enterprise host %s", cfg.Host)
		}
		graphQL = githubv4.NewEnterpriseClient("https://"+cfg.Host+"/api/graphql", httpClient)
	}

	return &Client{rest: rest, graphQL: graphQL, cfg: cfg}, nil
}

func (c *Client) Config() forge.Config { return c.cfg }

func fromGitHubPR(pr *github.PullRequest) *forge.PullRequest {
	return &forge.PullRequest{
		Number:  pr.GetNumber(),
		HTMLURL: pr.GetHTMLURL(),
		BaseRef: pr.GetBase().GetRef(),
		HeadRef: pr.GetHead().GetRef(),
		Title:   pr.GetTitle(),
		NodeID:  pr.GetNodeID(),
		IsDraft: pr.GetDraft(),
	}
}

// FindExistingPR searches open PRs whose head is owner:headBranch, returning
// the lowest-numbered match when more than one is open (spec.md §9's
// documented tie-break).
func (c *Client) FindExistingPR(ctx context.Context, headBranch string) (*forge.PullRequest, error) {
	head := fmt.Sprintf("%s:%s", c.cfg.Owner, headBranch)
	opts := &github.PullRequestListOptions{
		Head:        head,
		State:       "open",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var best *github.PullRequest
	for {
		prs, resp, err := c.rest.PullRequests.List(ctx, c.cfg.Owner, c.cfg.Repo, opts)
		if err != nil {
			return nil, engine.Wrap(engine.KindPlatformAPI, err, "list PRs for head %s", head)
		}
		for _, pr := range prs {
			if best == nil || pr.GetNumber() < best.GetNumber() {
				best = pr
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	if best == nil {
		return nil, nil
	}
	return fromGitHubPR(best), nil
}

func (c *Client) CreatePRWithOptions(ctx context.Context, opts forge.CreateOptions) (*forge.PullRequest, error) {
	newPR := &github.NewPullRequest{
		Title: github.String(opts.Title),
		Head:  github.String(opts.Head),
		Base:  github.String(opts.Base),
		Draft: github.Bool(opts.Draft),
	}
	pr, _, err := c.rest.PullRequests.Create(ctx, c.cfg.Owner, c.cfg.Repo, newPR)
	if err != nil {
		return nil, engine.Wrap(engine.KindPlatformAPI, err, "create PR %s -> %s", opts.Head, opts.Base)
	}
	return fromGitHubPR(pr), nil
}

func (c *Client) UpdatePRBase(ctx context.Context, number int, newBase string) (*forge.PullRequest, error) {
	update := &github.PullRequest{Base: &github.PullRequestBranch{Ref: github.String(newBase)}}
	pr, _, err := c.rest.PullRequests.Edit(ctx, c.cfg.Owner, c.cfg.Repo, number, update)
	if err != nil {
		return nil, engine.Wrap(engine.KindPlatformAPI, err, "update base of PR #%d", number)
	}
	return fromGitHubPR(pr), nil
}

// markPullRequestReadyForReview is the one GraphQL mutation REST has no
// equivalent for: converting a draft PR to ready-for-review.
type markPullRequestReadyForReviewMutation struct {
	MarkPullRequestReadyForReview struct {
		PullRequest struct {
			Number      githubv4.Int
			URL         githubv4.String
			BaseRefName githubv4.String
			HeadRefName githubv4.String
			Title       githubv4.String
			ID          githubv4.ID
			IsDraft     githubv4.Boolean
		}
	} `graphql:"markPullRequestReadyForReview(input: $input)"`
}

func (c *Client) PublishPR(ctx context.Context, number int) (*forge.PullRequest, error) {
	pr, _, err := c.rest.PullRequests.Get(ctx, c.cfg.Owner, c.cfg.Repo, number)
	if err != nil {
		return nil, engine.Wrap(engine.KindPlatformAPI, err, "fetch PR #%d before publish", number)
	}
	nodeID := pr.GetNodeID()
	if nodeID == "" {
		return nil, engine.New(engine.KindPlatformAPI, "PR #%d has no node id for the publish mutation", number)
	}

	var mutation markPullRequestReadyForReviewMutation
	input := githubv4.MarkPullRequestReadyForReviewInput{PullRequestID: githubv4.ID(nodeID)}
	if err := c.graphQL.Mutate(ctx, &mutation, input, nil); err != nil {
		return nil, engine.Wrap(engine.KindPlatformAPI, err, "publish PR #%d", number)
	}

	result := mutation.MarkPullRequestReadyForReview.PullRequest
	return &forge.PullRequest{
		Number:  int(result.Number),
		HTMLURL: string(result.URL),
		BaseRef: string(result.BaseRefName),
		HeadRef: string(result.HeadRefName),
		Title:   string(result.Title),
		NodeID:  fmt.Sprint(result.ID),
		IsDraft: bool(result.IsDraft),
	}, nil
}

func (c *Client) ListPRComments(ctx context.Context, number int) ([]forge.Comment, error) {
	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	var out []forge.Comment
	for {
		comments, resp, err := c.rest.Issues.ListComments(ctx, c.cfg.Owner, c.cfg.Repo, number, opts)
		if err != nil {
			return nil, engine.Wrap(engine.KindPlatformAPI, err, "list comments on PR #%d", number)
		}
		for _, cm := range comments {
			out = append(out, forge.Comment{ID: fmt.Sprint(cm.GetID()), Body: cm.GetBody()})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (c *Client) CreatePRComment(ctx context.Context, number int, body string) error {
	_, _, err := c.rest.Issues.CreateComment(ctx, c.cfg.Owner, c.cfg.Repo, number, &github.IssueComment{Body: github.String(body)})
	if err != nil {
		return engine.Wrap(engine.KindPlatformAPI, err, "create comment on PR #%d", number)
	}
	return nil
}

func (c *Client) UpdatePRComment(ctx context.Context, number int, commentID string, body string) error {
	var id int64
	if _, err := fmt.Sscan(commentID, &id); err != nil {
		return engine.Wrap(engine.KindPlatformAPI, err, "parse comment id %q", commentID)
	}
	_, _, err := c.rest.Issues.EditComment(ctx, c.cfg.Owner, c.cfg.Repo, id, &github.IssueComment{Body: github.String(body)})
	if err != nil {
		return engine.Wrap(engine.KindPlatformAPI, err, "update comment %s on PR #%d", commentID, number)
	}
	return nil
}

var _ forge.Platform = (*Client)(nil)
