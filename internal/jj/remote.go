package jj

import (
	"sort"
	"strings"

	"github.com/msuozzo/jj-ryu/internal/engine"
)

// SelectRemote resolves which configured remote a command should operate
// against. A single remote is chosen automatically; with more than one,
// preferred must name one of them explicitly, and an empty preferred is a
// KindInvalidArgument error listing every available remote name so the
// caller knows what to pass via --remote.
func SelectRemote(remotes []Remote, preferred string) (string, error) {
	if len(remotes) == 0 {
		return "", engine.New(engine.KindNoSupportedRemotes, "no remotes configured in this repository")
	}

	if preferred != "" {
		for _, r := range remotes {
			if r.Name == preferred {
				return r.Name, nil
			}
		}
		return "", engine.New(engine.KindRemoteNotFound, "remote %q not found (available: %s)", preferred, remoteNames(remotes))
	}

	if len(remotes) == 1 {
		return remotes[0].Name, nil
	}

	return "", engine.New(engine.KindInvalidArgument, "multiple remotes configured, pass --remote to choose one (available: %s)", remoteNames(remotes))
}

func remoteNames(remotes []Remote) string {
	names := make([]string, len(remotes))
	for i, r := range remotes {
		names[i] = r.Name
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
