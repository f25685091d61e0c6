package main

import (
	"fmt"

	"github.com/msuozzo/jj-ryu/internal/forge"
	"github.com/msuozzo/jj-ryu/internal/submit"
)

// cliProgress renders submit.Progress notifications to stdout/stderr.
// verbose mode (submit) prints every phase transition in full; compact mode
// (sync) indents its output one level, since sync prints its own top-level
// status line for each stack around it.
type cliProgress struct {
	verbose bool
}

func verboseProgress() *cliProgress { return &cliProgress{verbose: true} }
func compactProgress() *cliProgress { return &cliProgress{verbose: false} }

var _ submit.Progress = (*cliProgress)(nil)

func (p *cliProgress) OnPhase(phase submit.Phase) {
	if p.verbose {
		fmt.Printf("%s...\n", phase)
		return
	}
	switch phase {
	case submit.PhaseExecuting, submit.PhaseAddingComments:
		fmt.Printf("  %s...\n", phase)
	}
}

func (p *cliProgress) OnBookmarkPush(bookmark string, status submit.PushStatus) {
	indent := "  "
	if !p.verbose {
		indent = "    "
	}
	switch status.State {
	case submit.PushStarted:
		fmt.Printf("%sPushing %s...\n", indent, bookmark)
	case submit.PushSuccess:
		fmt.Printf("%s✓ Pushed %s\n", indent, bookmark)
	case submit.PushAlreadySynced:
		fmt.Printf("%s- %s already synced\n", indent, bookmark)
	case submit.PushFailed:
		fmt.Printf("%s✗ Failed to push %s: %s\n", indent, bookmark, status.Message)
	}
}

func (p *cliProgress) OnPRCreated(bookmark string, pr *forge.PullRequest) {
	indent := "  "
	if !p.verbose {
		indent = "    "
	}
	fmt.Printf("%s✓ Created PR #%d for %s\n", indent, pr.Number, bookmark)
	fmt.Printf("%s  %s\n", indent, pr.HTMLURL)
}

func (p *cliProgress) OnPRUpdated(bookmark string, pr *forge.PullRequest) {
	indent := "  "
	if !p.verbose {
		indent = "    "
	}
	fmt.Printf("%s✓ Updated PR #%d for %s\n", indent, pr.Number, bookmark)
}

func (p *cliProgress) OnError(err error) {
	indent := ""
	if !p.verbose {
		indent = "    "
	}
	fmt.Printf("%sError: %v\n", indent, err)
}

func (p *cliProgress) OnMessage(message string) {
	indent := ""
	if !p.verbose {
		indent = "  "
	}
	fmt.Printf("%s%s\n", indent, message)
}
