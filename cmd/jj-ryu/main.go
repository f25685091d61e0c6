package main

import (
	"context"
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/msuozzo/jj-ryu/internal/auth"
	"github.com/msuozzo/jj-ryu/internal/engine"
	"github.com/msuozzo/jj-ryu/internal/forge"
	"github.com/msuozzo/jj-ryu/internal/forgefactory"
	"github.com/msuozzo/jj-ryu/internal/graph"
	"github.com/msuozzo/jj-ryu/internal/jj"
	"github.com/msuozzo/jj-ryu/internal/submit"
)

var (
	repoPath string
	logger   = charmlog.NewWithOptions(os.Stderr, charmlog.Options{ReportTimestamp: false})
)

func main() {
	ctx := context.Background()

	rootCmd := &cobra.Command{
		Use:   "jj-ryu",
		Short: "jj-ryu submits a stack of jj bookmarks as a chain of linked pull requests",
	}
	rootCmd.PersistentFlags().StringVarP(&repoPath, "repo", "R", "", "path to the repository")

	rootCmd.AddCommand(newSubmitCmd(ctx))
	rootCmd.AddCommand(newSyncCmd(ctx))
	rootCmd.AddCommand(newAuthCmd(ctx))

	if err := rootCmd.Execute(); err != nil {
		logger.Error(err)
		exitCode := 2
		var engErr *engine.Error
		if as, ok := err.(*engine.Error); ok {
			engErr = as
		}
		if engErr != nil {
			exitCode = engErr.Kind.ExitCode()
		}
		os.Exit(exitCode)
	}
}

// openPlatform resolves the target remote, detects its platform from the
// remote URL, and builds a forgefactory-constructed forge.Platform, mirroring
// the shared preamble of the reference implementation's submit/sync commands.
func openPlatform(ctx context.Context, client jj.Client, remoteFlag string) (forge.Platform, string, error) {
	remotes, err := client.GitRemotes(ctx)
	if err != nil {
		return nil, "", err
	}
	remoteName, err := jj.SelectRemote(remotes, remoteFlag)
	if err != nil {
		return nil, "", err
	}

	var remoteURL string
	for _, r := range remotes {
		if r.Name == remoteName {
			remoteURL = r.URL
		}
	}

	cfg, err := forge.ParseRepoInfo(remoteURL)
	if err != nil {
		return nil, "", err
	}

	platform, err := forgefactory.New(ctx, cfg)
	if err != nil {
		return nil, "", err
	}
	return platform, remoteName, nil
}

func newSubmitCmd(ctx context.Context) *cobra.Command {
	var (
		remoteFlag string
		upto       string
		onlyFlag   bool
		stackFlag  bool
		draft      bool
		publish    bool
		updateOnly bool
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "submit BOOKMARK",
		Short: "Submit the stack containing BOOKMARK as a chain of linked PRs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookmark := args[0]
			client := jj.NewClient(repoPath)

			prefs, err := forge.NewConfigManager(client).GetPreferences(ctx)
			if err != nil {
				logger.Warn("failed to read jj-ryu preferences, using defaults", "err", err)
			}
			if remoteFlag == "" {
				remoteFlag = prefs.DefaultRemote
			}
			if !cmd.Flags().Changed("draft") {
				draft = prefs.DefaultDraft
			}

			platform, remoteName, err := openPlatform(ctx, client, remoteFlag)
			if err != nil {
				return err
			}

			g, err := graph.Build(ctx, client, remoteName)
			if err != nil {
				return err
			}

			scopeFlags := 0
			for _, set := range []bool{upto != "", onlyFlag, stackFlag} {
				if set {
					scopeFlags++
				}
			}
			if scopeFlags > 1 {
				return engine.New(engine.KindInvalidArgument, "--upto, --only, and --stack are mutually exclusive")
			}

			var analysis *submit.Analysis
			switch {
			case stackFlag:
				analysis, err = submit.AnalyzeStack(g, bookmark)
			default:
				analysis, err = submit.Analyze(g, bookmark)
			}
			if err != nil {
				return err
			}
			if upto != "" {
				analysis, err = analysis.Upto(upto)
				if err != nil {
					return err
				}
			}
			if onlyFlag {
				analysis, err = analysis.Only(func(b string) bool {
					pr, err := platform.FindExistingPR(ctx, b)
					return err == nil && pr != nil
				})
				if err != nil {
					return err
				}
			}

			progress := verboseProgress()
			progress.OnPhase(submit.PhaseAnalyzing)

			progress.OnPhase(submit.PhasePlanning)
			plan, err := submit.CreatePlan(ctx, analysis, platform, remoteName, g.DefaultBranch,
				submit.NewBookmarkSyncState(g), submit.PlanOptions{Draft: draft, Publish: publish, UpdateOnly: updateOnly})
			if err != nil {
				return err
			}

			progress.OnPhase(submit.PhaseExecuting)
			result := submit.Execute(ctx, client, platform, plan, progress, dryRun)
			progress.OnPhase(submit.PhaseComplete)

			for _, e := range result.Errors {
				progress.OnError(e)
			}
			fmt.Printf("\nPushed %d bookmark(s), created %d PR(s), updated %d PR(s)\n",
				len(result.PushedBookmarks), len(result.CreatedPRs), len(result.UpdatedPRs))
			if !result.Success {
				return engine.New(engine.KindWorkspace, "submission completed with %d error(s)", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&remoteFlag, "remote", "", "remote to submit against (auto-selected if only one is configured)")
	cmd.Flags().StringVar(&upto, "upto", "", "submit only up to and including this bookmark")
	cmd.Flags().BoolVar(&onlyFlag, "only", false, "submit only BOOKMARK itself; its base bookmark must already have an open PR")
	cmd.Flags().BoolVar(&stackFlag, "stack", false, "submit every descendant of BOOKMARK across the stack, not just its ancestor chain")
	cmd.Flags().BoolVar(&draft, "draft", false, "create new PRs as drafts")
	cmd.Flags().BoolVar(&publish, "publish", false, "publish any draft PRs already in the stack")
	cmd.Flags().BoolVar(&updateOnly, "update-only", false, "never create new PRs, only update existing ones")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview the plan without pushing or calling the platform")
	return cmd
}

func newSyncCmd(ctx context.Context) *cobra.Command {
	var (
		remoteFlag string
		stackOf    string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Submit every stack in the repository that has an open bookmark",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := jj.NewClient(repoPath)

			platform, remoteName, err := openPlatform(ctx, client, remoteFlag)
			if err != nil {
				return err
			}

			if !dryRun {
				fmt.Printf("Fetching from %s...\n", remoteName)
				if err := client.GitFetch(ctx, remoteName); err != nil {
					return err
				}
			}

			g, err := graph.Build(ctx, client, remoteName)
			if err != nil {
				return err
			}
			if len(g.Stacks) == 0 {
				fmt.Println("No stacks to sync")
				return nil
			}

			stacksToSync := g.Stacks
			if stackOf != "" {
				st, _ := g.StackContaining(stackOf)
				if st == nil {
					return graph.ErrBookmarkNotFound(stackOf)
				}
				stacksToSync = []*graph.Stack{st}
			}

			progress := compactProgress()
			var totalPushed, totalCreated, totalUpdated int
			var failures int

			for _, stack := range stacksToSync {
				if len(stack.Segments) == 0 {
					continue
				}
				leaf := stack.Segments[len(stack.Segments)-1].Bookmarks[0].Name
				fmt.Printf("Syncing stack: %s\n", leaf)

				analysis, err := submit.Analyze(g, leaf)
				if err != nil {
					logger.Error("analyze stack", "bookmark", leaf, "err", err)
					failures++
					continue
				}
				plan, err := submit.CreatePlan(ctx, analysis, platform, remoteName, g.DefaultBranch,
					submit.NewBookmarkSyncState(g), submit.PlanOptions{})
				if err != nil {
					logger.Error("plan stack", "bookmark", leaf, "err", err)
					failures++
					continue
				}
				result := submit.Execute(ctx, client, platform, plan, progress, dryRun)
				totalPushed += len(result.PushedBookmarks)
				totalCreated += len(result.CreatedPRs)
				totalUpdated += len(result.UpdatedPRs)
				if !result.Success {
					failures += len(result.Errors)
				}
			}

			fmt.Println()
			if dryRun {
				fmt.Println("Dry run complete")
			} else {
				fmt.Printf("Sync complete: %d bookmarks pushed, %d PRs created, %d PRs updated\n",
					totalPushed, totalCreated, totalUpdated)
			}
			if failures > 0 {
				return engine.New(engine.KindWorkspace, "sync completed with %d error(s)", failures)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&remoteFlag, "remote", "", "remote to sync against (auto-selected if only one is configured)")
	cmd.Flags().StringVar(&stackOf, "stack", "", "sync only the stack containing this bookmark, instead of every stack")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview every stack's plan without pushing or calling the platform")
	return cmd
}

func newAuthCmd(ctx context.Context) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Test or set up platform credentials",
	}

	var host string
	testCmd := &cobra.Command{
		Use:   "test {github|gitlab|azuredevops}",
		Short: "Verify a platform credential actually authenticates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case forge.PlatformGitHub:
				a, err := auth.DiscoverGitHub(host)
				if err != nil {
					return err
				}
				username, err := auth.TestGitHub(ctx, a)
				if err != nil {
					return err
				}
				fmt.Printf("Authenticated as: %s\n", username)
				fmt.Printf("  Token source: %s\n", a.Source)
			case forge.PlatformGitLab:
				a, err := auth.DiscoverGitLab(host)
				if err != nil {
					return err
				}
				username, err := auth.TestGitLab(ctx, a)
				if err != nil {
					return err
				}
				fmt.Printf("Authenticated as: %s\n", username)
				fmt.Printf("  Token source: %s\n", a.Source)
				fmt.Printf("  Host: %s\n", a.Host)
			case forge.PlatformAzureDevOps:
				a, err := auth.DiscoverAzureDevOps(host)
				if err != nil {
					return err
				}
				username, err := auth.TestAzureDevOps(ctx, a)
				if err != nil {
					return err
				}
				fmt.Printf("Authenticated as: %s\n", username)
				fmt.Printf("  Token source: %s\n", a.Source)
				fmt.Printf("  Host: %s\n", a.Host)
			default:
				return engine.New(engine.KindInvalidArgument, "unknown platform %q (want github, gitlab, or azuredevops)", args[0])
			}
			return nil
		},
	}
	testCmd.Flags().StringVar(&host, "host", "", "self-hosted instance hostname (defaults to the public SaaS host)")

	setupCmd := &cobra.Command{
		Use:   "setup {github|gitlab|azuredevops}",
		Short: "Print setup instructions for a platform credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printAuthSetup(args[0])
		},
	}

	authCmd.AddCommand(testCmd)
	authCmd.AddCommand(setupCmd)
	return authCmd
}

func printAuthSetup(platform string) error {
	switch platform {
	case forge.PlatformGitHub:
		fmt.Println("GitHub Authentication Setup")
		fmt.Println()
		fmt.Println("Option 1: GitHub CLI (recommended)")
		fmt.Println("  Install: https://cli.github.com/")
		fmt.Println("  Run: gh auth login")
		fmt.Println()
		fmt.Println("Option 2: Environment variable")
		fmt.Println("  Set GITHUB_TOKEN or GH_TOKEN")
		fmt.Println()
		fmt.Println("For GitHub Enterprise:")
		fmt.Println("  Set GH_HOST to your instance hostname")
	case forge.PlatformGitLab:
		fmt.Println("GitLab Authentication Setup")
		fmt.Println()
		fmt.Println("Option 1: GitLab CLI (glab)")
		fmt.Println("  Install: https://gitlab.com/gitlab-org/cli")
		fmt.Println("  Run: glab auth login")
		fmt.Println()
		fmt.Println("Option 2: Environment variable")
		fmt.Println("  Set GITLAB_TOKEN or GL_TOKEN")
		fmt.Println()
		fmt.Println("For self-hosted GitLab:")
		fmt.Println("  Set GITLAB_HOST to your instance hostname")
	case forge.PlatformAzureDevOps:
		fmt.Println("Azure DevOps Authentication Setup")
		fmt.Println()
		fmt.Println("Recommended: Personal Access Token (PAT)")
		fmt.Println()
		fmt.Println("Step 1: Create a PAT")
		fmt.Println("  1. Go to: https://dev.azure.com/{your-org}/_usersSettings/tokens")
		fmt.Println("  2. Click 'New Token'")
		fmt.Println("  3. Set name: jj-ryu")
		fmt.Println("  4. Select scopes: Code (Read & Write), Pull Requests (Read & Write)")
		fmt.Println("  5. Click 'Create' and copy the token")
		fmt.Println()
		fmt.Println("Step 2: Set environment variables")
		fmt.Println("  export AZURE_DEVOPS_PAT=<your-token>")
		fmt.Println("  export AZURE_DEVOPS_ORGANIZATION=<your-org>  # optional but recommended")
	default:
		return engine.New(engine.KindInvalidArgument, "unknown platform %q (want github, gitlab, or azuredevops)", platform)
	}
	return nil
}
