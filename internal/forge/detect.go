package forge

import (
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/msuozzo/jj-ryu/internal/engine"
)

// Platform name constants, used both as Config.Platform values and as the
// argument to the `auth <platform>` CLI subcommand.
const (
	PlatformGitHub      = "github"
	PlatformGitLab      = "gitlab"
	PlatformAzureDevOps = "azuredevops"
)

// Remote-URL grammar, ported from the reference implementation's platform
// detection: SSH and HTTPS shapes for GitHub/GitLab, plus the narrower
// Azure DevOps shapes (spec.md §6).
var (
	reSSH        = regexp.MustCompile(`^git@[^:]+:(.+?)(?:\.git)?$`)
	reHTTPS      = regexp.MustCompile(`^https?://[^/]+/(.+?)(?:\.git)?$`)
	reAzureSSH   = regexp.MustCompile(`^git@ssh\.dev\.azure\.com:v3/([^/]+)/([^/]+)/(.+?)(?:\.git)?$`)
	reAzureHTTPS = regexp.MustCompile(`^https?://(?:[^@]+@)?dev\.azure\.com/([^/]+)/([^/]+)/_git/(.+?)(?:\.git)?$`)
)

// DetectPlatform identifies which of the three platforms a remote URL
// belongs to, consulting the GH_HOST/GITLAB_HOST/AZURE_DEVOPS_HOST
// overrides for self-hosted instances. Returns "" when none match.
func DetectPlatform(remoteURL string) string {
	ghHost := os.Getenv("GH_HOST")
	gitlabHost := os.Getenv("GITLAB_HOST")
	azureHost := os.Getenv("AZURE_DEVOPS_HOST")

	if reAzureSSH.MatchString(remoteURL) || reAzureHTTPS.MatchString(remoteURL) {
		return PlatformAzureDevOps
	}

	hostname := extractHostname(remoteURL)
	if hostname == "" {
		return ""
	}

	switch {
	case hostname == "dev.azure.com" || hostname == "ssh.dev.azure.com" || (azureHost != "" && hostname == azureHost):
		return PlatformAzureDevOps
	case hostname == "github.com" || strings.HasSuffix(hostname, ".github.com") || (ghHost != "" && hostname == ghHost):
		return PlatformGitHub
	case hostname == "gitlab.com" || strings.HasSuffix(hostname, ".gitlab.com") || (gitlabHost != "" && hostname == gitlabHost):
		return PlatformGitLab
	default:
		return ""
	}
}

// ParseRepoInfo detects the platform from remoteURL and extracts its
// Config, decoding any URL-encoded path segments (Azure DevOps project
// names routinely contain spaces).
func ParseRepoInfo(remoteURL string) (Config, error) {
	trimmed := strings.TrimRight(remoteURL, "/")

	platform := DetectPlatform(trimmed)
	if platform == "" {
		return Config{}, engine.New(engine.KindNoSupportedRemotes, "no supported platform detected for remote URL: %s", remoteURL)
	}

	if platform == PlatformAzureDevOps {
		return parseAzureDevOpsURL(trimmed)
	}

	hostname := extractHostname(trimmed)

	var path string
	if m := reSSH.FindStringSubmatch(trimmed); m != nil {
		path = m[1]
	} else if m := reHTTPS.FindStringSubmatch(trimmed); m != nil {
		path = m[1]
	} else {
		return Config{}, engine.New(engine.KindParse, "cannot parse remote URL: %s", remoteURL)
	}

	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return Config{}, engine.New(engine.KindParse, "invalid repo path: %s", path)
	}
	repo := parts[len(parts)-1]
	owner := strings.Join(parts[:len(parts)-1], "/")

	host := ""
	switch platform {
	case PlatformGitHub:
		if hostname != "github.com" {
			host = hostname
		}
	case PlatformGitLab:
		if hostname != "gitlab.com" {
			host = hostname
		}
	}

	return Config{Platform: platform, Owner: owner, Repo: repo, Host: host}, nil
}

func parseAzureDevOpsURL(remoteURL string) (Config, error) {
	var m []string
	if m = reAzureSSH.FindStringSubmatch(remoteURL); m == nil {
		m = reAzureHTTPS.FindStringSubmatch(remoteURL)
	}
	if m == nil {
		return Config{}, engine.New(engine.KindParse, "cannot parse Azure DevOps URL: %s", remoteURL)
	}
	org, err := url.PathUnescape(m[1])
	if err != nil {
		return Config{}, engine.Wrap(engine.KindParse, err, "invalid URL encoding in org")
	}
	project, err := url.PathUnescape(m[2])
	if err != nil {
		return Config{}, engine.Wrap(engine.KindParse, err, "invalid URL encoding in project")
	}
	repo, err := url.PathUnescape(m[3])
	if err != nil {
		return Config{}, engine.Wrap(engine.KindParse, err, "invalid URL encoding in repo")
	}
	return Config{
		Platform: PlatformAzureDevOps,
		Owner:    org + "/" + project,
		Repo:     repo,
	}, nil
}

func extractHostname(remoteURL string) string {
	if strings.HasPrefix(remoteURL, "git@") {
		rest := strings.TrimPrefix(remoteURL, "git@")
		if idx := strings.Index(rest, ":"); idx >= 0 {
			return rest[:idx]
		}
		return ""
	}
	u, err := url.Parse(remoteURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
