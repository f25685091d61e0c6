// Package azuredevops implements forge.Platform over the Azure DevOps Git
// REST API. Azure DevOps has no official Go SDK in wide use, so this
// adapter speaks the REST surface directly via hashicorp/go-retryablehttp,
// ported from the reference implementation's reqwest-based service.
package azuredevops

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/msuozzo/jj-ryu/internal/engine"
	"github.com/msuozzo/jj-ryu/internal/forge"
)

const apiVersion = "7.1-preview"

// Client implements forge.Platform against one repository in one Azure
// DevOps organization/project.
type Client struct {
	http         *retryablehttp.Client
	token        string
	host         string
	organization string
	project      string
	cfg          forge.Config
}

// New builds a Client authenticated with a PAT. cfg.Owner must be
// "{organization}/{project}"; an empty cfg.Host targets dev.azure.com.
func New(token string, cfg forge.Config) (*Client, error) {
	parts := strings.SplitN(cfg.Owner, "/", 2)
	if len(parts) != 2 {
		return nil, engine.New(engine.KindConfig, "Azure DevOps owner must be in format 'org/project', got: %s", cfg.Owner)
	}
	host := cfg.Host
	if host == "" {
		host = "dev.azure.com"
	}

	httpClient := retryablehttp.NewClient()
	httpClient.Logger = nil

	return &Client{
		http:         httpClient,
		token:        token,
		host:         host,
		organization: parts[0],
		project:      parts[1],
		cfg:          cfg,
	}, nil
}

func (c *Client) Config() forge.Config { return c.cfg }

func (c *Client) apiURL(path string) string {
	return fmt.Sprintf("https://%s/%s/%s/_apis%s", c.host, c.organization, c.project, path)
}

func (c *Client) authHeader() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(":"+c.token))
}

// branchRef qualifies a bare branch name into the full refs/heads/ form
// Azure DevOps' Git API requires, leaving an already-qualified ref alone.
func branchRef(branch string) string {
	if strings.HasPrefix(branch, "refs/") {
		return branch
	}
	return "refs/heads/" + branch
}

func stripRefsHeads(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}

func (c *Client) do(ctx context.Context, method, rawURL string, query url.Values, payload any) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-version", apiVersion)
	u.RawQuery = query.Encode()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("Azure DevOps returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

type pullRequestResponse struct {
	PullRequestID int    `json:"pullRequestId"`
	SourceRefName string `json:"sourceRefName"`
	TargetRefName string `json:"targetRefName"`
	Title         string `json:"title"`
	IsDraft       bool   `json:"isDraft"`
	Repository    struct {
		WebURL string `json:"webUrl"`
	} `json:"repository"`
}

func (r pullRequestResponse) toPullRequest() *forge.PullRequest {
	htmlURL := ""
	if r.Repository.WebURL != "" {
		htmlURL = fmt.Sprintf("%s/pullrequest/%d", strings.TrimRight(r.Repository.WebURL, "/"), r.PullRequestID)
	}
	return &forge.PullRequest{
		Number:  r.PullRequestID,
		HTMLURL: htmlURL,
		BaseRef: stripRefsHeads(r.TargetRefName),
		HeadRef: stripRefsHeads(r.SourceRefName),
		Title:   r.Title,
		IsDraft: r.IsDraft,
	}
}

type pullRequestListResponse struct {
	Value []pullRequestResponse `json:"value"`
}

type comment struct {
	ID      int    `json:"id"`
	Content string `json:"content"`
	// CommentType distinguishes text comments (1) from system comments (2);
	// only text comments surface through forge.Comment.
	CommentType int `json:"commentType"`
}

type thread struct {
	ID       int       `json:"id"`
	Comments []comment `json:"comments"`
}

type threadListResponse struct {
	Value []thread `json:"value"`
}

func (c *Client) reposPath() string {
	return fmt.Sprintf("/git/repositories/%s/pullrequests", url.PathEscape(c.cfg.Repo))
}

// FindExistingPR returns the active PR whose source branch is headBranch,
// picking the lowest PR id when more than one is active.
func (c *Client) FindExistingPR(ctx context.Context, headBranch string) (*forge.PullRequest, error) {
	query := url.Values{
		"searchCriteria.sourceRefName": {branchRef(headBranch)},
		"searchCriteria.status":        {"active"},
	}
	body, err := c.do(ctx, http.MethodGet, c.apiURL(c.reposPath()), query, nil)
	if err != nil {
		return nil, engine.Wrap(engine.KindPlatformAPI, err, "find existing PR for %s", headBranch)
	}
	var list pullRequestListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, engine.Wrap(engine.KindPlatformAPI, err, "parse PR list response")
	}
	if len(list.Value) == 0 {
		return nil, nil
	}
	best := list.Value[0]
	for _, pr := range list.Value[1:] {
		if pr.PullRequestID < best.PullRequestID {
			best = pr
		}
	}
	return best.toPullRequest(), nil
}

func (c *Client) CreatePRWithOptions(ctx context.Context, opts forge.CreateOptions) (*forge.PullRequest, error) {
	payload := map[string]any{
		"sourceRefName": branchRef(opts.Head),
		"targetRefName": branchRef(opts.Base),
		"title":         opts.Title,
	}
	if opts.Draft {
		payload["isDraft"] = true
	}
	body, err := c.do(ctx, http.MethodPost, c.apiURL(c.reposPath()), nil, payload)
	if err != nil {
		return nil, engine.Wrap(engine.KindPlatformAPI, err, "create PR %s -> %s", opts.Head, opts.Base)
	}
	var pr pullRequestResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, engine.Wrap(engine.KindPlatformAPI, err, "parse created PR response")
	}
	return pr.toPullRequest(), nil
}

func (c *Client) prPath(number int) string {
	return fmt.Sprintf("/git/repositories/%s/pullrequests/%d", url.PathEscape(c.cfg.Repo), number)
}

func (c *Client) UpdatePRBase(ctx context.Context, number int, newBase string) (*forge.PullRequest, error) {
	payload := map[string]any{"targetRefName": branchRef(newBase)}
	body, err := c.do(ctx, http.MethodPatch, c.apiURL(c.prPath(number)), nil, payload)
	if err != nil {
		return nil, engine.Wrap(engine.KindPlatformAPI, err, "update base of PR #%d", number)
	}
	var pr pullRequestResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, engine.Wrap(engine.KindPlatformAPI, err, "parse updated PR response")
	}
	return pr.toPullRequest(), nil
}

func (c *Client) PublishPR(ctx context.Context, number int) (*forge.PullRequest, error) {
	payload := map[string]any{"isDraft": false}
	body, err := c.do(ctx, http.MethodPatch, c.apiURL(c.prPath(number)), nil, payload)
	if err != nil {
		return nil, engine.Wrap(engine.KindPlatformAPI, err, "publish PR #%d", number)
	}
	var pr pullRequestResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, engine.Wrap(engine.KindPlatformAPI, err, "parse published PR response")
	}
	return pr.toPullRequest(), nil
}

func (c *Client) threadsPath(number int) string {
	return fmt.Sprintf("/git/repositories/%s/pullrequests/%d/threads", url.PathEscape(c.cfg.Repo), number)
}

func (c *Client) listThreads(ctx context.Context, number int) ([]thread, error) {
	body, err := c.do(ctx, http.MethodGet, c.apiURL(c.threadsPath(number)), nil, nil)
	if err != nil {
		return nil, err
	}
	var list threadListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("parse thread list response: %w", err)
	}
	return list.Value, nil
}

// ListPRComments flattens every thread's comments, keeping only text
// comments (commentType 1): system comments (type 2, e.g. "changed target
// branch to main") never surface as forge.Comment.
func (c *Client) ListPRComments(ctx context.Context, number int) ([]forge.Comment, error) {
	threads, err := c.listThreads(ctx, number)
	if err != nil {
		return nil, engine.Wrap(engine.KindPlatformAPI, err, "list comment threads on PR #%d", number)
	}
	var out []forge.Comment
	for _, th := range threads {
		for _, cm := range th.Comments {
			if cm.CommentType != 1 {
				continue
			}
			out = append(out, forge.Comment{ID: fmt.Sprint(cm.ID), Body: cm.Content})
		}
	}
	return out, nil
}

// CreatePRComment opens a new top-level thread: Azure DevOps has no
// standalone comment concept, only threads of comments.
func (c *Client) CreatePRComment(ctx context.Context, number int, body string) error {
	payload := map[string]any{
		"comments": []map[string]any{
			{"parentCommentId": 0, "content": body, "commentType": 1},
		},
		"status": 1,
	}
	if _, err := c.do(ctx, http.MethodPost, c.apiURL(c.threadsPath(number)), nil, payload); err != nil {
		return engine.Wrap(engine.KindPlatformAPI, err, "create comment thread on PR #%d", number)
	}
	return nil
}

// UpdatePRComment must first locate which thread owns commentID, since
// Azure DevOps addresses comments as {thread}/comments/{comment}.
func (c *Client) UpdatePRComment(ctx context.Context, number int, commentID string, body string) error {
	var id int
	if _, err := fmt.Sscan(commentID, &id); err != nil {
		return engine.Wrap(engine.KindPlatformAPI, err, "parse comment id %q", commentID)
	}
	threads, err := c.listThreads(ctx, number)
	if err != nil {
		return engine.Wrap(engine.KindPlatformAPI, err, "list comment threads on PR #%d", number)
	}
	threadID := -1
	for _, th := range threads {
		for _, cm := range th.Comments {
			if cm.ID == id {
				threadID = th.ID
				break
			}
		}
		if threadID != -1 {
			break
		}
	}
	if threadID == -1 {
		return engine.New(engine.KindPlatformAPI, "comment %s not found in any thread on PR #%d", commentID, number)
	}

	path := fmt.Sprintf("/git/repositories/%s/pullrequests/%d/threads/%d/comments/%d", url.PathEscape(c.cfg.Repo), number, threadID, id)
	payload := map[string]any{"content": body}
	if _, err := c.do(ctx, http.MethodPatch, c.apiURL(path), nil, payload); err != nil {
		return engine.Wrap(engine.KindPlatformAPI, err, "update comment %s on PR #%d", commentID, number)
	}
	return nil
}

var _ forge.Platform = (*Client)(nil)
