package gitrepo_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/courseops/reposync/internal/execshell"
	"github.com/courseops/reposync/internal/gitrepo"
)

type stubGitExecutor struct {
	outputs          map[string]execshell.ExecutionResult
	failures         map[string]error
	recordedCommands []string
}

func (executor *stubGitExecutor) ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	key := strings.Join(details.Arguments, " ")
	executor.recordedCommands = append(executor.recordedCommands, key)
	if failure, found := executor.failures[key]; found {
		return execshell.ExecutionResult{}, failure
	}
	if result, found := executor.outputs[key]; found {
		return result, nil
	}
	return execshell.ExecutionResult{}, fmt.Errorf("unexpected git command: %s", key)
}

func TestNewRepositoryManagerRequiresExecutor(testInstance *testing.T) {
	manager, constructionError := gitrepo.NewRepositoryManager(nil)
	require.ErrorIs(testInstance, constructionError, gitrepo.ErrGitExecutorNotConfigured)
	require.Nil(testInstance, manager)
}

func TestGetRemoteURLTrimsOutput(testInstance *testing.T) {
	executor := &stubGitExecutor{outputs: map[string]execshell.ExecutionResult{
		"remote get-url origin": {StandardOutput: "https://git.example.com/org/s24001-project.git\n"},
	}}
	manager, constructionError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, constructionError)

	remoteURL, lookupError := manager.GetRemoteURL(context.Background(), "/tmp/s24001", "origin")
	require.NoError(testInstance, lookupError)
	require.Equal(testInstance, "https://git.example.com/org/s24001-project.git", remoteURL)
}

func TestListRemoteBranchesFiltersHeadAlias(testInstance *testing.T) {
	branchListing := "  origin/HEAD -> origin/main\n  origin/main\n  origin/feature/login\n  upstream/main\n"
	executor := &stubGitExecutor{outputs: map[string]execshell.ExecutionResult{
		"branch -r": {StandardOutput: branchListing},
	}}
	manager, constructionError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, constructionError)

	branchNames, listError := manager.ListRemoteBranches(context.Background(), "/tmp/s24001", "origin")
	require.NoError(testInstance, listError)
	require.Equal(testInstance, []string{"main", "feature/login"}, branchNames)
}

func TestLocalBranchExistsDistinguishesFailureModes(testInstance *testing.T) {
	missingBranchCommand := "show-ref --verify --quiet refs/heads/feature/login"
	executor := &stubGitExecutor{
		outputs: map[string]execshell.ExecutionResult{
			"show-ref --verify --quiet refs/heads/main": {},
		},
		failures: map[string]error{
			missingBranchCommand: execshell.CommandFailedError{Result: execshell.ExecutionResult{ExitCode: 1}},
		},
	}
	manager, constructionError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, constructionError)

	mainExists, mainError := manager.LocalBranchExists(context.Background(), "/tmp/s24001", "main")
	require.NoError(testInstance, mainError)
	require.True(testInstance, mainExists)

	featureExists, featureError := manager.LocalBranchExists(context.Background(), "/tmp/s24001", "feature/login")
	require.NoError(testInstance, featureError)
	require.False(testInstance, featureExists)
}

func TestGetUpstreamBranchReturnsEmptyWhenUnconfigured(testInstance *testing.T) {
	upstreamCommand := "rev-parse --abbrev-ref --symbolic-full-name @{u}"
	executor := &stubGitExecutor{failures: map[string]error{
		upstreamCommand: execshell.CommandFailedError{Result: execshell.ExecutionResult{ExitCode: 128}},
	}}
	manager, constructionError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, constructionError)

	require.Empty(testInstance, manager.GetUpstreamBranch(context.Background(), "/tmp/s24001"))

	executor.outputs = map[string]execshell.ExecutionResult{
		upstreamCommand: {StandardOutput: "origin/main\n"},
	}
	executor.failures = nil
	require.Equal(testInstance, "origin/main", manager.GetUpstreamBranch(context.Background(), "/tmp/s24001"))
}

func TestGetRemoteHeadBranchParsesRemoteShowOutput(testInstance *testing.T) {
	testCases := []struct {
		name           string
		remoteShow     string
		expectedBranch string
	}{
		{
			name:           "head_branch_advertised",
			remoteShow:     "* remote origin\n  Fetch URL: https://git.example.com/org/s24001-project.git\n  HEAD branch: develop\n",
			expectedBranch: "develop",
		},
		{
			name:           "head_branch_unknown",
			remoteShow:     "* remote origin\n  HEAD branch: (unknown)\n",
			expectedBranch: "",
		},
		{
			name:           "head_branch_missing",
			remoteShow:     "* remote origin\n",
			expectedBranch: "",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &stubGitExecutor{outputs: map[string]execshell.ExecutionResult{
				"remote show origin": {StandardOutput: testCase.remoteShow},
			}}
			manager, constructionError := gitrepo.NewRepositoryManager(executor)
			require.NoError(testInstance, constructionError)

			headBranch, lookupError := manager.GetRemoteHeadBranch(context.Background(), "/tmp/s24001", "origin")
			require.NoError(testInstance, lookupError)
			require.Equal(testInstance, testCase.expectedBranch, headBranch)
		})
	}
}

func TestResolveSymbolicHeadStripsRemotePrefix(testInstance *testing.T) {
	executor := &stubGitExecutor{outputs: map[string]execshell.ExecutionResult{
		"symbolic-ref refs/remotes/origin/HEAD": {StandardOutput: "refs/remotes/origin/main\n"},
	}}
	manager, constructionError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, constructionError)

	headBranch, resolveError := manager.ResolveSymbolicHead(context.Background(), "/tmp/s24001", "origin")
	require.NoError(testInstance, resolveError)
	require.Equal(testInstance, "main", headBranch)
}

func TestBranchMutationsIssueExpectedCommands(testInstance *testing.T) {
	expectedCommands := []string{
		"branch --track feature/login origin/feature/login",
		"branch --set-upstream-to=origin/main main",
		"fetch --all --prune",
		"pull --ff-only",
		"checkout develop",
		"clone https://git.example.com/org/s24001.git s24001",
	}
	commandOutputs := map[string]execshell.ExecutionResult{}
	for _, expectedCommand := range expectedCommands {
		commandOutputs[expectedCommand] = execshell.ExecutionResult{}
	}
	executor := &stubGitExecutor{outputs: commandOutputs}
	manager, constructionError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, constructionError)

	require.NoError(testInstance, manager.CreateTrackingBranch(context.Background(), "/tmp/s24001", "feature/login", "origin"))
	require.NoError(testInstance, manager.SetUpstreamBranch(context.Background(), "/tmp/s24001", "main", "origin"))
	require.NoError(testInstance, manager.Fetch(context.Background(), "/tmp/s24001"))
	require.NoError(testInstance, manager.PullFastForward(context.Background(), "/tmp/s24001"))
	require.NoError(testInstance, manager.CheckoutBranch(context.Background(), "/tmp/s24001", "develop"))
	require.NoError(testInstance, manager.CloneRepository(context.Background(), "/tmp", "https://git.example.com/org/s24001.git", "s24001"))

	require.Equal(testInstance, expectedCommands, executor.recordedCommands)
}
