package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/courseops/reposync/internal/execshell"
)

const (
	gitExecutorNotConfiguredMessageConstant = "git executor not configured"
	remoteSubcommandConstant                = "remote"
	remoteGetURLSubcommandConstant          = "get-url"
	remoteSetURLSubcommandConstant          = "set-url"
	remoteShowSubcommandConstant            = "show"
	revParseSubcommandConstant              = "rev-parse"
	abbrevRefFlagConstant                   = "--abbrev-ref"
	symbolicFullNameFlagConstant            = "--symbolic-full-name"
	upstreamReferenceArgumentConstant       = "@{u}"
	headReferenceConstant                   = "HEAD"
	showRefSubcommandConstant               = "show-ref"
	verifyFlagConstant                      = "--verify"
	quietFlagConstant                       = "--quiet"
	localBranchReferencePrefixConstant      = "refs/heads/"
	branchSubcommandConstant                = "branch"
	remoteBranchesFlagConstant              = "-r"
	trackFlagConstant                       = "--track"
	setUpstreamToFlagTemplateConstant       = "--set-upstream-to=%s/%s"
	fetchSubcommandConstant                 = "fetch"
	allRemotesFlagConstant                  = "--all"
	pruneFlagConstant                       = "--prune"
	pullSubcommandConstant                  = "pull"
	fastForwardOnlyFlagConstant             = "--ff-only"
	cloneSubcommandConstant                 = "clone"
	checkoutSubcommandConstant              = "checkout"
	symbolicRefSubcommandConstant           = "symbolic-ref"
	remoteHeadReferenceTemplateConstant     = "refs/remotes/%s/%s"
	remoteBranchAliasSeparatorConstant      = " -> "
	remoteBranchPrefixTemplateConstant      = "%s/"
	headBranchLinePrefixConstant            = "HEAD branch:"
	unknownHeadBranchValueConstant          = "(unknown)"
	terminalPromptEnvironmentNameConstant   = "GIT_TERMINAL_PROMPT"
	terminalPromptDisabledValueConstant     = "0"
)

// ErrGitExecutorNotConfigured indicates a repository manager was constructed without an executor.
var ErrGitExecutorNotConfigured = errors.New(gitExecutorNotConfiguredMessageConstant)

// GitExecutor exposes the subset of shell execution used by repository operations.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// RepositoryManager performs git operations against local repositories.
type RepositoryManager struct {
	gitExecutor GitExecutor
}

// NewRepositoryManager validates dependencies and constructs a RepositoryManager.
func NewRepositoryManager(gitExecutor GitExecutor) (*RepositoryManager, error) {
	if gitExecutor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &RepositoryManager{gitExecutor: gitExecutor}, nil
}

func (manager *RepositoryManager) runGit(executionContext context.Context, workingDirectory string, arguments []string) (execshell.ExecutionResult, error) {
	commandDetails := execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: workingDirectory,
		EnvironmentVariables: map[string]string{
			terminalPromptEnvironmentNameConstant: terminalPromptDisabledValueConstant,
		},
	}
	return manager.gitExecutor.ExecuteGit(executionContext, commandDetails)
}

// GetRemoteURL resolves the configured URL for the named remote.
func (manager *RepositoryManager) GetRemoteURL(executionContext context.Context, repositoryPath string, remoteName string) (string, error) {
	executionResult, executionError := manager.runGit(executionContext, repositoryPath, []string{remoteSubcommandConstant, remoteGetURLSubcommandConstant, remoteName})
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}

// SetRemoteURL updates the URL for the named remote.
func (manager *RepositoryManager) SetRemoteURL(executionContext context.Context, repositoryPath string, remoteName string, remoteURL string) error {
	_, executionError := manager.runGit(executionContext, repositoryPath, []string{remoteSubcommandConstant, remoteSetURLSubcommandConstant, remoteName, remoteURL})
	return executionError
}

// GetCurrentBranch reports the branch the repository currently has checked out.
func (manager *RepositoryManager) GetCurrentBranch(executionContext context.Context, repositoryPath string) (string, error) {
	executionResult, executionError := manager.runGit(executionContext, repositoryPath, []string{revParseSubcommandConstant, abbrevRefFlagConstant, headReferenceConstant})
	if executionError != nil {
		return "", executionError
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}

// GetUpstreamBranch resolves the upstream tracking reference of the current branch.
// An empty result indicates no upstream is configured.
func (manager *RepositoryManager) GetUpstreamBranch(executionContext context.Context, repositoryPath string) string {
	executionResult, executionError := manager.runGit(executionContext, repositoryPath, []string{revParseSubcommandConstant, abbrevRefFlagConstant, symbolicFullNameFlagConstant, upstreamReferenceArgumentConstant})
	if executionError != nil {
		return ""
	}
	return strings.TrimSpace(executionResult.StandardOutput)
}

// GetBranchUpstream resolves the upstream tracking reference configured for the named branch.
// An empty result indicates no upstream is configured.
func (manager *RepositoryManager) GetBranchUpstream(executionContext context.Context, repositoryPath string, branchName string) string {
	branchUpstreamReference := branchName + upstreamReferenceArgumentConstant
	executionResult, executionError := manager.runGit(executionContext, repositoryPath, []string{revParseSubcommandConstant, abbrevRefFlagConstant, symbolicFullNameFlagConstant, branchUpstreamReference})
	if executionError != nil {
		return ""
	}
	return strings.TrimSpace(executionResult.StandardOutput)
}

// LocalBranchExists reports whether the repository has a local branch with the provided name.
func (manager *RepositoryManager) LocalBranchExists(executionContext context.Context, repositoryPath string, branchName string) (bool, error) {
	branchReference := localBranchReferencePrefixConstant + branchName
	_, executionError := manager.runGit(executionContext, repositoryPath, []string{showRefSubcommandConstant, verifyFlagConstant, quietFlagConstant, branchReference})
	if executionError != nil {
		var commandFailure execshell.CommandFailedError
		if errors.As(executionError, &commandFailure) {
			return false, nil
		}
		return false, executionError
	}
	return true, nil
}

// ListRemoteBranches enumerates branch names on the named remote, excluding the HEAD alias.
func (manager *RepositoryManager) ListRemoteBranches(executionContext context.Context, repositoryPath string, remoteName string) ([]string, error) {
	executionResult, executionError := manager.runGit(executionContext, repositoryPath, []string{branchSubcommandConstant, remoteBranchesFlagConstant})
	if executionError != nil {
		return nil, executionError
	}

	remoteBranchPrefix := fmt.Sprintf(remoteBranchPrefixTemplateConstant, remoteName)
	branchNames := []string{}
	for _, outputLine := range strings.Split(executionResult.StandardOutput, "\n") {
		trimmedLine := strings.TrimSpace(outputLine)
		if len(trimmedLine) == 0 {
			continue
		}
		if strings.Contains(trimmedLine, remoteBranchAliasSeparatorConstant) {
			continue
		}
		if !strings.HasPrefix(trimmedLine, remoteBranchPrefix) {
			continue
		}
		branchName := strings.TrimPrefix(trimmedLine, remoteBranchPrefix)
		if len(branchName) == 0 || branchName == headReferenceConstant {
			continue
		}
		branchNames = append(branchNames, branchName)
	}
	return branchNames, nil
}

// CreateTrackingBranch creates a local branch tracking the same branch on the named remote.
func (manager *RepositoryManager) CreateTrackingBranch(executionContext context.Context, repositoryPath string, branchName string, remoteName string) error {
	remoteReference := fmt.Sprintf("%s/%s", remoteName, branchName)
	_, executionError := manager.runGit(executionContext, repositoryPath, []string{branchSubcommandConstant, trackFlagConstant, branchName, remoteReference})
	return executionError
}

// SetUpstreamBranch points an existing local branch at the same branch on the named remote.
func (manager *RepositoryManager) SetUpstreamBranch(executionContext context.Context, repositoryPath string, branchName string, remoteName string) error {
	setUpstreamFlag := fmt.Sprintf(setUpstreamToFlagTemplateConstant, remoteName, branchName)
	_, executionError := manager.runGit(executionContext, repositoryPath, []string{branchSubcommandConstant, setUpstreamFlag, branchName})
	return executionError
}

// Fetch updates all remote tracking references and prunes stale ones.
func (manager *RepositoryManager) Fetch(executionContext context.Context, repositoryPath string) error {
	_, executionError := manager.runGit(executionContext, repositoryPath, []string{fetchSubcommandConstant, allRemotesFlagConstant, pruneFlagConstant})
	return executionError
}

// PullFastForward advances the current branch using fast-forward merges only.
func (manager *RepositoryManager) PullFastForward(executionContext context.Context, repositoryPath string) error {
	_, executionError := manager.runGit(executionContext, repositoryPath, []string{pullSubcommandConstant, fastForwardOnlyFlagConstant})
	return executionError
}

// CloneRepository clones the remote URL into targetDirectory beneath parentDirectory.
func (manager *RepositoryManager) CloneRepository(executionContext context.Context, parentDirectory string, remoteURL string, targetDirectory string) error {
	_, executionError := manager.runGit(executionContext, parentDirectory, []string{cloneSubcommandConstant, remoteURL, targetDirectory})
	return executionError
}

// CheckoutBranch switches the repository worktree to the named branch.
func (manager *RepositoryManager) CheckoutBranch(executionContext context.Context, repositoryPath string, branchName string) error {
	_, executionError := manager.runGit(executionContext, repositoryPath, []string{checkoutSubcommandConstant, branchName})
	return executionError
}

// GetRemoteHeadBranch asks the named remote which branch its HEAD points at.
// An empty result indicates the remote did not advertise a head branch.
func (manager *RepositoryManager) GetRemoteHeadBranch(executionContext context.Context, repositoryPath string, remoteName string) (string, error) {
	executionResult, executionError := manager.runGit(executionContext, repositoryPath, []string{remoteSubcommandConstant, remoteShowSubcommandConstant, remoteName})
	if executionError != nil {
		return "", executionError
	}

	for _, outputLine := range strings.Split(executionResult.StandardOutput, "\n") {
		trimmedLine := strings.TrimSpace(outputLine)
		if !strings.HasPrefix(trimmedLine, headBranchLinePrefixConstant) {
			continue
		}
		headBranch := strings.TrimSpace(strings.TrimPrefix(trimmedLine, headBranchLinePrefixConstant))
		if headBranch == unknownHeadBranchValueConstant {
			return "", nil
		}
		return headBranch, nil
	}
	return "", nil
}

// ResolveSymbolicHead resolves the locally recorded HEAD reference for the named remote.
func (manager *RepositoryManager) ResolveSymbolicHead(executionContext context.Context, repositoryPath string, remoteName string) (string, error) {
	remoteHeadReference := fmt.Sprintf(remoteHeadReferenceTemplateConstant, remoteName, headReferenceConstant)
	executionResult, executionError := manager.runGit(executionContext, repositoryPath, []string{symbolicRefSubcommandConstant, remoteHeadReference})
	if executionError != nil {
		return "", executionError
	}

	resolvedReference := strings.TrimSpace(executionResult.StandardOutput)
	branchPrefix := fmt.Sprintf(remoteBranchPrefixTemplateConstant, remoteName)
	resolvedReference = strings.TrimPrefix(resolvedReference, "refs/remotes/")
	resolvedReference = strings.TrimPrefix(resolvedReference, branchPrefix)
	return resolvedReference, nil
}
