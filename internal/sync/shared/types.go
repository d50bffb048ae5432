// Package shared declares the collaborator contracts used across the sync packages.
package shared

import (
	"context"
	"io/fs"

	"github.com/courseops/reposync/internal/execshell"
)

// GitExecutor exposes the subset of shell execution used by sync services.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// FileSystem exposes filesystem operations required by sync services.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	Abs(path string) (string, error)
	MkdirAll(path string, permissions fs.FileMode) error
	ReadFile(path string) ([]byte, error)
}

// GitRepositoryManager exposes repository-level git operations used by sync services.
type GitRepositoryManager interface {
	GetRemoteURL(executionContext context.Context, repositoryPath string, remoteName string) (string, error)
	SetRemoteURL(executionContext context.Context, repositoryPath string, remoteName string, remoteURL string) error
	GetCurrentBranch(executionContext context.Context, repositoryPath string) (string, error)
	GetUpstreamBranch(executionContext context.Context, repositoryPath string) string
	GetBranchUpstream(executionContext context.Context, repositoryPath string, branchName string) string
	LocalBranchExists(executionContext context.Context, repositoryPath string, branchName string) (bool, error)
	ListRemoteBranches(executionContext context.Context, repositoryPath string, remoteName string) ([]string, error)
	CreateTrackingBranch(executionContext context.Context, repositoryPath string, branchName string, remoteName string) error
	SetUpstreamBranch(executionContext context.Context, repositoryPath string, branchName string, remoteName string) error
	Fetch(executionContext context.Context, repositoryPath string) error
	PullFastForward(executionContext context.Context, repositoryPath string) error
	CloneRepository(executionContext context.Context, parentDirectory string, remoteURL string, targetDirectory string) error
	CheckoutBranch(executionContext context.Context, repositoryPath string, branchName string) error
	GetRemoteHeadBranch(executionContext context.Context, repositoryPath string, remoteName string) (string, error)
	ResolveSymbolicHead(executionContext context.Context, repositoryPath string, remoteName string) (string, error)
}
