package submit

import (
	"context"
	"fmt"
	"testing"

	"github.com/msuozzo/jj-ryu/internal/forge"
	"github.com/msuozzo/jj-ryu/internal/forgetest"
	"github.com/msuozzo/jj-ryu/internal/jjtest"
)

func planForExecute(t *testing.T, platform *forgetest.FakePlatform, opts PlanOptions) *SubmissionPlan {
	t.Helper()
	analysis := threeSegmentAnalysis()
	state := fakeSyncState{remote: map[string]bool{}, synced: map[string]bool{}}
	plan, err := CreatePlan(context.Background(), analysis, platform, "origin", "main", state, opts)
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	return plan
}

func TestExecute_createsPRsAndWritesStackComment(t *testing.T) {
	platform := forgetest.NewFakePlatform(forge.Config{Platform: "github", Owner: "acme", Repo: "widgets"})
	plan := planForExecute(t, platform, PlanOptions{})
	client := &jjtest.FakeClient{}

	result := Execute(context.Background(), client, platform, plan, NoopProgress{}, false)

	if !result.Success {
		t.Fatalf("expected success, got errors: %v", result.Errors)
	}
	if len(result.CreatedPRs) != 3 {
		t.Fatalf("expected 3 created PRs, got %d", len(result.CreatedPRs))
	}
	if len(client.PushedBookmarks) != 3 {
		t.Fatalf("expected 3 pushed bookmarks, got %v", client.PushedBookmarks)
	}

	for _, num := range platform.SortedPRNumbers() {
		comments := platform.Comments[num]
		if len(comments) != 1 {
			t.Fatalf("expected exactly one stack comment on PR #%d, got %d", num, len(comments))
		}
		if !IsStackComment(comments[0].Body) {
			t.Fatalf("comment on PR #%d is not a stack comment: %q", num, comments[0].Body)
		}
	}
}

func TestExecute_rewritesExistingStackCommentInPlace(t *testing.T) {
	platform := forgetest.NewFakePlatform(forge.Config{Platform: "github", Owner: "acme", Repo: "widgets"})
	plan := planForExecute(t, platform, PlanOptions{})
	client := &jjtest.FakeClient{}

	_ = Execute(context.Background(), client, platform, plan, NoopProgress{}, false)

	// Re-run against the now-existing PRs; the comment must be updated, not duplicated.
	platform2 := forgetest.NewFakePlatform(forge.Config{Platform: "github", Owner: "acme", Repo: "widgets"})
	for num, pr := range platform.PRs {
		platform2.SeedPR(*pr)
		platform2.Comments[num] = platform.Comments[num]
	}
	plan2 := planForExecute(t, platform2, PlanOptions{})
	client2 := &jjtest.FakeClient{}
	_ = Execute(context.Background(), client2, platform2, plan2, NoopProgress{}, false)

	for num := range platform2.PRs {
		if len(platform2.Comments[num]) != 1 {
			t.Fatalf("expected exactly one stack comment on PR #%d after re-run, got %d", num, len(platform2.Comments[num]))
		}
	}
}

func TestExecute_pushFailureSkipsDependentStepsButNotOtherBookmarks(t *testing.T) {
	platform := forgetest.NewFakePlatform(forge.Config{Platform: "github", Owner: "acme", Repo: "widgets"})
	plan := planForExecute(t, platform, PlanOptions{})

	client := &jjtest.FakeClient{
		RunFunc: func(ctx context.Context, args ...string) (string, error) { return "", nil },
	}
	failingClient := &failOnPushClient{FakeClient: client, failBookmark: "b"}

	result := Execute(context.Background(), failingClient, platform, plan, NoopProgress{}, false)

	if result.Success {
		t.Fatal("expected overall failure when a push fails")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected exactly one error, got %v", result.Errors)
	}

	// Only a (independent, below the failure) should be created: b's push
	// failed directly, and c's base is b so it's dropped transitively.
	var haveA, haveB, haveC bool
	for _, pr := range platform.PRs {
		switch pr.HeadRef {
		case "a":
			haveA = true
		case "b":
			haveB = true
		case "c":
			haveC = true
		}
	}
	if !haveA {
		t.Fatalf("expected a's PR created despite b's push failure: a=%v", haveA)
	}
	if haveB {
		t.Fatal("expected b's PR creation to be skipped after its push failed")
	}
	if haveC {
		t.Fatal("expected c's PR creation to be skipped: its base b never got pushed or created")
	}
}

func TestExecute_publishRecordsUpdatedPR(t *testing.T) {
	analysis := threeSegmentAnalysis()
	platform := forgetest.NewFakePlatform(forge.Config{Platform: "github", Owner: "acme", Repo: "widgets"})
	bases := map[string]string{"a": "main", "b": "a", "c": "b"}
	for bookmark, base := range bases {
		platform.SeedPR(forge.PullRequest{Number: len(platform.PRs) + 1, HeadRef: bookmark, BaseRef: base, IsDraft: true})
	}
	state := fakeSyncState{
		remote: map[string]bool{"a": true, "b": true, "c": true},
		synced: map[string]bool{"a": true, "b": true, "c": true},
	}

	plan, err := CreatePlan(context.Background(), analysis, platform, "origin", "main", state, PlanOptions{Publish: true})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	client := &jjtest.FakeClient{}

	result := Execute(context.Background(), client, platform, plan, NoopProgress{}, false)

	if !result.Success {
		t.Fatalf("expected success, got errors: %v", result.Errors)
	}
	if len(result.UpdatedPRs) != 3 {
		t.Fatalf("expected 3 published PRs recorded in UpdatedPRs, got %d: %+v", len(result.UpdatedPRs), result.UpdatedPRs)
	}
	for _, pr := range result.UpdatedPRs {
		if pr.IsDraft {
			t.Fatalf("expected PR #%d to be recorded as published (not draft)", pr.Number)
		}
	}
	for num, pr := range platform.PRs {
		if pr.IsDraft {
			t.Fatalf("expected PR #%d to be published on the platform", num)
		}
	}
}

func TestExecute_dryRunNeverCallsThePlatformOrWorkspace(t *testing.T) {
	platform := forgetest.NewFakePlatform(forge.Config{Platform: "github", Owner: "acme", Repo: "widgets"})
	plan := planForExecute(t, platform, PlanOptions{})
	client := &jjtest.FakeClient{}

	result := Execute(context.Background(), client, platform, plan, NoopProgress{}, true)

	if !result.Success {
		t.Fatalf("expected dry run to report success, got %v", result.Errors)
	}
	if len(client.PushedBookmarks) != 0 {
		t.Fatal("dry run must not push")
	}
	if len(platform.PRs) != 0 {
		t.Fatal("dry run must not create PRs on the platform")
	}
	if len(result.CreatedPRs) != 3 {
		t.Fatalf("expected 3 simulated created PRs, got %d", len(result.CreatedPRs))
	}
}

// failOnPushClient wraps a jj.Client, failing GitPush for one bookmark only.
type failOnPushClient struct {
	*jjtest.FakeClient
	failBookmark string
}

func (f *failOnPushClient) GitPush(ctx context.Context, remote, bookmark string, forceWithLease bool) error {
	if bookmark == f.failBookmark {
		return fmt.Errorf("simulated push failure for %s", bookmark)
	}
	return f.FakeClient.GitPush(ctx, remote, bookmark, forceWithLease)
}
