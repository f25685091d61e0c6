package forge

import (
	"context"
	"fmt"
	"strings"

	"github.com/msuozzo/jj-ryu/internal/jj"
	"github.com/pelletier/go-toml/v2"
)

// Preferences is the [jj-ryu] section of the jj config: ambient defaults
// only. Spec.md §6/§9 rules out persisted PR↔change state entirely; all
// PR bookkeeping lives on the platform, not here.
type Preferences struct {
	DefaultRemote     string `toml:"default-remote,omitempty"`
	DefaultDraft      bool   `toml:"default-draft,omitempty"`
	VerboseNavComment bool   `toml:"verbose-nav-comment,omitempty"`
}

// ConfigManager reads jj-ryu's ambient preferences from jj config.
type ConfigManager struct {
	client jj.Client
}

// NewConfigManager creates a new ConfigManager.
func NewConfigManager(client jj.Client) *ConfigManager {
	return &ConfigManager{client: client}
}

// GetPreferences retrieves the jj-ryu preferences section, defaulting
// every field when unset.
func (m *ConfigManager) GetPreferences(ctx context.Context) (Preferences, error) {
	output, err := m.client.Run(ctx, "config", "list", "--repo", "jj-ryu")
	if err != nil {
		return Preferences{}, err
	}
	output = strings.TrimSpace(output)
	if output == "" {
		return Preferences{}, nil
	}
	var wrapper struct {
		Preferences `toml:"jj-ryu,omitempty"`
	}
	if err := toml.Unmarshal([]byte(output), &wrapper); err != nil {
		return Preferences{}, fmt.Errorf("failed to parse jj-ryu config: %w", err)
	}
	return wrapper.Preferences, nil
}
