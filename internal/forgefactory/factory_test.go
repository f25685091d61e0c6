package forgefactory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msuozzo/jj-ryu/internal/engine"
	"github.com/msuozzo/jj-ryu/internal/forge"
	"github.com/msuozzo/jj-ryu/internal/forge/azuredevops"
	"github.com/msuozzo/jj-ryu/internal/forge/github"
	"github.com/msuozzo/jj-ryu/internal/forge/gitlab"
)

func TestNew_dispatchesToTheMatchingAdapter(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "gh-token")
	t.Setenv("GITLAB_TOKEN", "gl-token")
	t.Setenv("AZURE_DEVOPS_PAT", "az-token")

	tests := []struct {
		name string
		cfg  forge.Config
		want any
	}{
		{name: "github", cfg: forge.Config{Platform: forge.PlatformGitHub, Owner: "acme", Repo: "widgets"}, want: &github.Client{}},
		{name: "gitlab", cfg: forge.Config{Platform: forge.PlatformGitLab, Owner: "acme", Repo: "widgets"}, want: &gitlab.Client{}},
		{name: "azuredevops", cfg: forge.Config{Platform: forge.PlatformAzureDevOps, Owner: "acme/widgets-project", Repo: "widgets"}, want: &azuredevops.Client{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			platform, err := New(context.Background(), tt.cfg)
			require.NoError(t, err)
			assert.IsType(t, tt.want, platform)
		})
	}
}

func TestNew_unsupportedPlatform(t *testing.T) {
	_, err := New(context.Background(), forge.Config{Platform: "bitbucket"})
	require.Error(t, err)
	assert.True(t, engine.IsKind(err, engine.KindConfig))
}
