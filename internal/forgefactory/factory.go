// Package forgefactory resolves credentials and constructs the
// forge.Platform matching a repository's detected platform, mirroring the
// reference implementation's create_platform_service dispatch. It lives
// outside internal/forge itself so the three adapter packages (which
// import internal/forge) don't form an import cycle with their factory.
package forgefactory

import (
	"context"

	"github.com/msuozzo/jj-ryu/internal/auth"
	"github.com/msuozzo/jj-ryu/internal/engine"
	"github.com/msuozzo/jj-ryu/internal/forge"
	"github.com/msuozzo/jj-ryu/internal/forge/azuredevops"
	"github.com/msuozzo/jj-ryu/internal/forge/github"
	"github.com/msuozzo/jj-ryu/internal/forge/gitlab"
)

// New resolves credentials for cfg.Platform and constructs the matching
// Platform implementation.
func New(ctx context.Context, cfg forge.Config) (forge.Platform, error) {
	switch cfg.Platform {
	case forge.PlatformGitHub:
		a, err := auth.DiscoverGitHub(cfg.Host)
		if err != nil {
			return nil, err
		}
		return github.New(ctx, a.Token, cfg)

	case forge.PlatformGitLab:
		a, err := auth.DiscoverGitLab(cfg.Host)
		if err != nil {
			return nil, err
		}
		cfg.Host = a.Host
		return gitlab.New(a.Token, cfg)

	case forge.PlatformAzureDevOps:
		a, err := auth.DiscoverAzureDevOps(cfg.Host)
		if err != nil {
			return nil, err
		}
		cfg.Host = a.Host
		return azuredevops.New(a.Token, cfg)

	default:
		return nil, engine.New(engine.KindConfig, "unsupported platform %q", cfg.Platform)
	}
}
