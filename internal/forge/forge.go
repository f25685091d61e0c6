// Package forge defines the Platform capability (spec.md §4.5/§6): a
// uniform PR surface over GitHub, GitLab, and Azure DevOps. The planner
// and executor depend only on this interface; internal/forge/github,
// internal/forge/gitlab, and internal/forge/azuredevops provide the three
// concrete wire implementations.
package forge

import "context"

// PullRequest is the platform-side artifact a stack's PR maps to.
type PullRequest struct {
	Number  int
	HTMLURL string
	BaseRef string
	HeadRef string
	Title   string
	NodeID  string // optional opaque id (GraphQL node id on GitHub)
	IsDraft bool
}

// Comment is a single PR/MR comment or thread, as far as the planner and
// executor need to see it: its id (opaque, platform-specific) and body.
type Comment struct {
	ID   string
	Body string
}

// CreateOptions parameterizes PR creation.
type CreateOptions struct {
	Head  string
	Base  string
	Title string
	Draft bool
}

// Config describes the repository a Platform instance is bound to.
type Config struct {
	Platform string // "github", "gitlab", "azuredevops"
	Owner    string // org/group, or "{org}/{project}" for Azure DevOps
	Repo     string
	Host     string // empty means the platform's default host
}

// Platform is the capability exposing the operations in spec.md §6. All
// methods are suspending (take a context) since every implementation makes
// an outbound HTTP call.
type Platform interface {
	// FindExistingPR returns the open PR whose head ref equals headBranch,
	// or nil if none exists. When more than one open PR shares a head
	// (allowed on some platforms), implementations return the one with
	// the lowest PR number, a documented deterministic tie-break.
	FindExistingPR(ctx context.Context, headBranch string) (*PullRequest, error)

	CreatePRWithOptions(ctx context.Context, opts CreateOptions) (*PullRequest, error)
	UpdatePRBase(ctx context.Context, number int, newBase string) (*PullRequest, error)

	// PublishPR converts a draft PR to ready-for-review.
	PublishPR(ctx context.Context, number int) (*PullRequest, error)

	ListPRComments(ctx context.Context, number int) ([]Comment, error)
	CreatePRComment(ctx context.Context, number int, body string) error
	UpdatePRComment(ctx context.Context, number int, commentID string, body string) error

	Config() Config
}
