package submit

import "github.com/msuozzo/jj-ryu/internal/forge"

// Phase names one stage of a submission, emitted in order as the engine
// moves through analysis, planning, execution, and comment writes.
type Phase int

const (
	PhaseAnalyzing Phase = iota
	PhasePlanning
	PhaseExecuting
	PhaseAddingComments
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseAnalyzing:
		return "Analyzing"
	case PhasePlanning:
		return "Planning"
	case PhaseExecuting:
		return "Executing"
	case PhaseAddingComments:
		return "Updating stack comments"
	case PhaseComplete:
		return "Done"
	default:
		return "Unknown"
	}
}

// PushStatus is the lifecycle of one bookmark push, always observed in the
// order Started -> (Success|AlreadySynced|Failed), per spec.md §5.
type PushStatus struct {
	State   PushState
	Message string // populated only when State == PushFailed
}

type PushState int

const (
	PushStarted PushState = iota
	PushSuccess
	PushAlreadySynced
	PushFailed
)

func (s PushStatus) String() string {
	switch s.State {
	case PushStarted:
		return "started"
	case PushSuccess:
		return "success"
	case PushAlreadySynced:
		return "already synced"
	case PushFailed:
		return "failed: " + s.Message
	default:
		return "unknown"
	}
}

// Progress is the capability receiving notifications during a submission
// (spec.md §4.7). Implementations may render verbose or compact CLI
// output, or ship events over a transport; none of their methods are
// permitted to block the engine indefinitely, but they are themselves
// suspending operations since they may perform I/O.
type Progress interface {
	OnPhase(phase Phase)
	OnBookmarkPush(bookmark string, status PushStatus)
	OnPRCreated(bookmark string, pr *forge.PullRequest)
	OnPRUpdated(bookmark string, pr *forge.PullRequest)
	OnError(err error)
	OnMessage(message string)
}

// NoopProgress discards every notification. Used in tests and whenever a
// caller doesn't care about progress reporting.
type NoopProgress struct{}

func (NoopProgress) OnPhase(Phase)                          {}
func (NoopProgress) OnBookmarkPush(string, PushStatus)      {}
func (NoopProgress) OnPRCreated(string, *forge.PullRequest) {}
func (NoopProgress) OnPRUpdated(string, *forge.PullRequest) {}
func (NoopProgress) OnError(error)                          {}
func (NoopProgress) OnMessage(string)                       {}

var _ Progress = NoopProgress{}
