// Package auth discovers platform credentials the way the rest of the
// ecosystem does it: environment variables first, then the matching vendor
// CLI's own stored config as a fallback (spec.md §12's supplemented auth
// subcommand leans on these same collaborators).
package auth

import (
	"os"
	"os/exec"
	"strings"

	ghAuth "github.com/cli/go-gh/v2/pkg/auth"
)

// Source identifies where a discovered token came from.
type Source int

const (
	SourceEnvVar Source = iota
	SourceCLI
)

func (s Source) String() string {
	if s == SourceCLI {
		return "CLI"
	}
	return "environment variable"
}

// GitHubAuth is a resolved GitHub credential.
type GitHubAuth struct {
	Token  string
	Source Source
	Host   string
}

// DiscoverGitHub resolves a GitHub token for host (empty means github.com),
// checking GH_TOKEN/GITHUB_TOKEN before falling back to gh's own stored
// config via cli/go-gh.
func DiscoverGitHub(host string) (GitHubAuth, error) {
	if host == "" {
		host = "github.com"
	}
	token, src := ghAuth.TokenForHost(host)
	if token == "" {
		return GitHubAuth{}, errNoCredentials("GitHub", "GH_TOKEN or GITHUB_TOKEN, or run `gh auth login`")
	}
	source := SourceCLI
	if src == "GH_TOKEN" || src == "GITHUB_TOKEN" {
		source = SourceEnvVar
	}
	return GitHubAuth{Token: token, Source: source, Host: host}, nil
}

// GitLabAuth is a resolved GitLab credential.
type GitLabAuth struct {
	Token  string
	Source Source
	Host   string
}

// DiscoverGitLab resolves a GitLab token, checking GITLAB_TOKEN/GL_TOKEN
// (and GITLAB_HOST for self-hosted instances) before falling back to the
// glab CLI's stored config.
func DiscoverGitLab(host string) (GitLabAuth, error) {
	if host == "" {
		if h := os.Getenv("GITLAB_HOST"); h != "" {
			host = h
		} else {
			host = "gitlab.com"
		}
	}
	if token := strings.TrimSpace(os.Getenv("GITLAB_TOKEN")); token != "" {
		return GitLabAuth{Token: token, Source: SourceEnvVar, Host: host}, nil
	}
	if token := strings.TrimSpace(os.Getenv("GL_TOKEN")); token != "" {
		return GitLabAuth{Token: token, Source: SourceEnvVar, Host: host}, nil
	}
	if token, ok := glabCLIToken(host); ok {
		return GitLabAuth{Token: token, Source: SourceCLI, Host: host}, nil
	}
	return GitLabAuth{}, errNoCredentials("GitLab", "GITLAB_TOKEN or GL_TOKEN, or run `glab auth login`")
}

// glabCLIToken shells out to glab's own config reader, mirroring the way
// go-gh exposes gh's stored token.
func glabCLIToken(host string) (string, bool) {
	out, err := exec.Command("glab", "config", "get", "token", "--host", host).Output()
	if err != nil {
		return "", false
	}
	token := strings.TrimSpace(string(out))
	if token == "" {
		return "", false
	}
	return token, true
}

// AzureDevOpsAuth is a resolved Azure DevOps credential.
type AzureDevOpsAuth struct {
	Token        string
	Source       Source
	Host         string
	Organization string // optional, used only to pick the identity test endpoint
}

// DiscoverAzureDevOps resolves an Azure DevOps PAT, checking
// AZURE_DEVOPS_PAT then AZURE_DEVOPS_TOKEN, falling back to a best-effort
// scrape of `az devops configure --list` (az CLI does not store PATs by
// default, so this rarely succeeds; env vars remain the reliable path).
func DiscoverAzureDevOps(host string) (AzureDevOpsAuth, error) {
	if host == "" {
		if h := os.Getenv("AZURE_DEVOPS_HOST"); h != "" {
			host = h
		} else {
			host = "dev.azure.com"
		}
	}
	org := os.Getenv("AZURE_DEVOPS_ORGANIZATION")

	if token := strings.TrimSpace(os.Getenv("AZURE_DEVOPS_PAT")); token != "" {
		return AzureDevOpsAuth{Token: token, Source: SourceEnvVar, Host: host, Organization: org}, nil
	}
	if token := strings.TrimSpace(os.Getenv("AZURE_DEVOPS_TOKEN")); token != "" {
		return AzureDevOpsAuth{Token: token, Source: SourceEnvVar, Host: host, Organization: org}, nil
	}
	if token, ok := azCLIToken(); ok {
		return AzureDevOpsAuth{Token: token, Source: SourceCLI, Host: host, Organization: org}, nil
	}
	return AzureDevOpsAuth{}, errNoCredentials("Azure DevOps", "AZURE_DEVOPS_PAT (create one at https://dev.azure.com/{org}/_usersSettings/tokens)")
}

// azCLIToken best-effort scrapes `az devops configure --list` for a stored
// token line. az does not persist PATs by default, so this usually fails
// and callers should rely on AZURE_DEVOPS_PAT instead.
func azCLIToken() (string, bool) {
	if _, err := exec.Command("az", "--version").Output(); err != nil {
		return "", false
	}
	out, err := exec.Command("az", "devops", "configure", "--list").Output()
	if err != nil {
		return "", false
	}
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(line, "token") || !strings.Contains(line, "=") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		token := strings.TrimSpace(parts[1])
		if token != "" {
			return token, true
		}
	}
	return "", false
}

type noCredentialsError struct {
	platform string
	hint     string
}

func (e *noCredentialsError) Error() string {
	return "no " + e.platform + " authentication found; set " + e.hint
}

func errNoCredentials(platform, hint string) error {
	return &noCredentialsError{platform: platform, hint: hint}
}
