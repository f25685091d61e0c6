package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v68/github"
	gitlab "gitlab.com/gitlab-org/api/client-go"
	"golang.org/x/oauth2"

	"github.com/msuozzo/jj-ryu/internal/engine"
)

// TestGitHub verifies a GitHub credential actually authenticates, returning
// the viewer's login.
func TestGitHub(ctx context.Context, a GitHubAuth) (string, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: a.Token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))
	if a.Host != "" && a.Host != "github.com" {
		var err error
		client, err = client.WithEnterpriseURLs("https://"+a.Host, "https://"+a.Host)
		if err != nil {
			return "", engine.Wrap(engine.KindAuth, err, "configure GitHub Enterprise host %s", a.Host)
		}
	}
	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return "", engine.Wrap(engine.KindAuth, err, "verify GitHub authentication")
	}
	return user.GetLogin(), nil
}

// TestGitLab verifies a GitLab credential, returning the current user's
// username.
func TestGitLab(ctx context.Context, a GitLabAuth) (string, error) {
	opts := []gitlab.ClientOptionFunc{}
	if a.Host != "" && a.Host != "gitlab.com" {
		opts = append(opts, gitlab.WithBaseURL("https://"+a.Host))
	}
	client, err := gitlab.NewClient(a.Token, opts...)
	if err != nil {
		return "", engine.Wrap(engine.KindAuth, err, "build GitLab client")
	}
	user, _, err := client.Users.CurrentUser(gitlab.WithContext(ctx))
	if err != nil {
		return "", engine.Wrap(engine.KindAuth, err, "verify GitLab authentication")
	}
	return user.Username, nil
}

// azureDevOpsHTTPClient builds a plain *http.Client with a sane timeout; the
// profile probe is a single request and does not need retryablehttp's retry
// policy, unlike the adapter's PR traffic.
var azureDevOpsHTTPClient = &http.Client{Timeout: 30 * time.Second}

// TestAzureDevOps verifies an Azure DevOps PAT, returning the authenticated
// display name. When an organization is known it probes the
// organization-scoped connectionData endpoint; otherwise it falls back to
// the account-level profile endpoint, matching the original Rust auth
// probe's two-endpoint strategy.
func TestAzureDevOps(ctx context.Context, a AzureDevOpsAuth) (string, error) {
	var url string
	orgScoped := a.Organization != ""
	if orgScoped {
		url = fmt.Sprintf("https://%s/%s/_apis/connectionData?api-version=7.1-preview", a.Host, a.Organization)
	} else {
		url = "https://app.vssps.visualstudio.com/_apis/profile/profiles/me?api-version=7.1-preview"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", engine.Wrap(engine.KindAuth, err, "build Azure DevOps identity request")
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(":" + a.Token))
	req.Header.Set("Authorization", "Basic "+encoded)

	resp, err := azureDevOpsHTTPClient.Do(req)
	if err != nil {
		return "", engine.Wrap(engine.KindAuth, err, "verify Azure DevOps authentication")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", engine.New(engine.KindAuth, "Azure DevOps rejected the token: status %d", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", engine.Wrap(engine.KindAuth, err, "parse Azure DevOps identity response")
	}

	if orgScoped {
		if u, ok := payload["authenticatedUser"].(map[string]any); ok {
			if name, ok := u["providerDisplayName"].(string); ok && name != "" {
				return name, nil
			}
		}
		return "Unknown User", nil
	}
	if name, ok := payload["displayName"].(string); ok && name != "" {
		return name, nil
	}
	return "Unknown User", nil
}
