package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/courseops/reposync/internal/gitrepo"
	"github.com/courseops/reposync/internal/sync/shared"
)

const (
	repositoryManagerMissingMessageConstant = "repository manager not configured"
	fileSystemMissingMessageConstant        = "file system not configured"
	manifestPathRequiredMessageConstant     = "manifest path must be provided"
	remoteNameRequiredMessageConstant       = "remote name must be provided"
	rootResolveFailureTemplateConstant      = "failed to resolve root directory %s: %w"
	rootCreateFailureTemplateConstant       = "failed to create root directory %s: %w"
	rootDirectoryPermissionsConstant        = 0o755
	currentDirectoryConstant                = "."
	fallbackMainBranchNameConstant          = "main"
	fallbackMasterBranchNameConstant        = "master"
	remoteReferenceSeparatorConstant        = "/"
	warningNoIdentifierTemplateConstant     = "WARNING: no identifier in %s; skipping\n"
	clonedStatusTemplateConstant            = "CLONED: %s (%s)\n"
	clonedUnresolvedBranchLabelConstant     = "default branch unresolved"
	defaultBranchLabelTemplateConstant      = "default branch %s"
	updatedStatusTemplateConstant           = "UPDATED: %s\n"
	pullSkipStatusTemplateConstant          = "UPDATE-SKIP-PULL: %s (branch %s has no upstream)\n"
	failedStatusTemplateConstant            = "FAILED: %s (%s)\n"
	setRemoteFailureDetailTemplateConstant  = "failed to set remote URL: %s"
	fetchFailureDetailTemplateConstant      = "failed to fetch: %s"
	pullFailureDetailTemplateConstant       = "failed to pull: %s"
	cloneFailureDetailTemplateConstant      = "failed to clone: %s"
	checkoutFailureDetailTemplateConstant   = "failed to checkout %s: %s"
	noIdentifierDetailConstant              = "no identifier in URL"
	pullSkippedDetailTemplateConstant       = "pull skipped: branch %s has no upstream"
	trackingBranchFailureMessageConstant    = "tracking branch operation failed"
	repositoryFieldNameConstant             = "repository"
	branchFieldNameConstant                 = "branch"
)

// ErrRepositoryManagerNotConfigured indicates the repository manager dependency was missing.
var ErrRepositoryManagerNotConfigured = errors.New(repositoryManagerMissingMessageConstant)

// ErrFileSystemNotConfigured indicates the file system dependency was missing.
var ErrFileSystemNotConfigured = errors.New(fileSystemMissingMessageConstant)

// ErrManifestPathRequired indicates the manifest path option was empty.
var ErrManifestPathRequired = errors.New(manifestPathRequiredMessageConstant)

// ErrRemoteNameRequired indicates the remote name option was empty.
var ErrRemoteNameRequired = errors.New(remoteNameRequiredMessageConstant)

// Outcome classifies the result of processing one manifest entry.
type Outcome string

// Entry outcomes.
const (
	OutcomeCloned  Outcome = Outcome("cloned")
	OutcomeSynced  Outcome = Outcome("synced")
	OutcomeSkipped Outcome = Outcome("skipped")
	OutcomeFailed  Outcome = Outcome("failed")
)

// EntryReport captures the result of processing one manifest entry.
type EntryReport struct {
	RepositoryURL string
	Identifier    string
	TargetPath    string
	Outcome       Outcome
	Detail        string
}

// Report aggregates the per-entry results of a sync run.
type Report struct {
	Entries []EntryReport
}

// Options configures a sync run.
type Options struct {
	ManifestPath  string
	RemoteName    string
	RootDirectory string
	Output        io.Writer
}

// Dependencies enumerates external collaborators required by the sync service.
type Dependencies struct {
	Logger            *zap.Logger
	RepositoryManager shared.GitRepositoryManager
	FileSystem        shared.FileSystem
}

// Service clones and updates the repositories named by a manifest.
type Service struct {
	logger            *zap.Logger
	repositoryManager shared.GitRepositoryManager
	fileSystem        shared.FileSystem
}

// NewService constructs a Service from the provided dependencies.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.RepositoryManager == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}
	if dependencies.FileSystem == nil {
		return nil, ErrFileSystemNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		logger:            logger,
		repositoryManager: dependencies.RepositoryManager,
		fileSystem:        dependencies.FileSystem,
	}, nil
}

// SyncAll processes every manifest entry in order and returns a per-entry report.
// Only manifest-level failures abort the run; repository operations record
// their outcome and processing continues with the next entry.
func (service *Service) SyncAll(executionContext context.Context, options Options) (Report, error) {
	trimmedManifestPath := strings.TrimSpace(options.ManifestPath)
	if len(trimmedManifestPath) == 0 {
		return Report{}, ErrManifestPathRequired
	}

	trimmedRemoteName := strings.TrimSpace(options.RemoteName)
	if len(trimmedRemoteName) == 0 {
		return Report{}, ErrRemoteNameRequired
	}

	rootDirectory := strings.TrimSpace(options.RootDirectory)
	if len(rootDirectory) == 0 {
		rootDirectory = currentDirectoryConstant
	}
	resolvedRoot, rootError := service.fileSystem.Abs(rootDirectory)
	if rootError != nil {
		return Report{}, fmt.Errorf(rootResolveFailureTemplateConstant, rootDirectory, rootError)
	}
	if mkdirError := service.fileSystem.MkdirAll(resolvedRoot, rootDirectoryPermissionsConstant); mkdirError != nil {
		return Report{}, fmt.Errorf(rootCreateFailureTemplateConstant, resolvedRoot, mkdirError)
	}

	manifestEntries, manifestError := LoadManifest(service.fileSystem, trimmedManifestPath)
	if manifestError != nil {
		return Report{}, manifestError
	}

	output := options.Output
	if output == nil {
		output = io.Discard
	}

	report := Report{}
	for _, manifestEntry := range manifestEntries {
		entryReport := service.syncEntry(executionContext, manifestEntry, trimmedRemoteName, resolvedRoot, output)
		report.Entries = append(report.Entries, entryReport)
	}
	return report, nil
}

func (service *Service) syncEntry(executionContext context.Context, manifestEntry ManifestEntry, remoteName string, rootDirectory string, output io.Writer) EntryReport {
	entryReport := EntryReport{
		RepositoryURL: manifestEntry.RepositoryURL,
		Identifier:    manifestEntry.Identifier,
	}

	if len(manifestEntry.Identifier) == 0 {
		fmt.Fprintf(output, warningNoIdentifierTemplateConstant, manifestEntry.RepositoryURL)
		entryReport.Outcome = OutcomeSkipped
		entryReport.Detail = noIdentifierDetailConstant
		return entryReport
	}

	targetPath := filepath.Join(rootDirectory, manifestEntry.Identifier)
	entryReport.TargetPath = targetPath

	if _, statError := service.fileSystem.Stat(targetPath); statError == nil {
		return service.updateRepository(executionContext, entryReport, manifestEntry, remoteName, targetPath, output)
	}
	return service.cloneRepository(executionContext, entryReport, manifestEntry, remoteName, rootDirectory, targetPath, output)
}

func (service *Service) updateRepository(executionContext context.Context, entryReport EntryReport, manifestEntry ManifestEntry, remoteName string, targetPath string, output io.Writer) EntryReport {
	currentRemoteURL, remoteURLError := service.repositoryManager.GetRemoteURL(executionContext, targetPath, remoteName)
	if remoteURLError != nil || !remoteURLsEquivalent(currentRemoteURL, manifestEntry.RepositoryURL) {
		if setRemoteError := service.repositoryManager.SetRemoteURL(executionContext, targetPath, remoteName, manifestEntry.RepositoryURL); setRemoteError != nil {
			entryReport.Outcome = OutcomeFailed
			entryReport.Detail = fmt.Sprintf(setRemoteFailureDetailTemplateConstant, setRemoteError)
			fmt.Fprintf(output, failedStatusTemplateConstant, targetPath, entryReport.Detail)
			return entryReport
		}
	}

	if fetchError := service.repositoryManager.Fetch(executionContext, targetPath); fetchError != nil {
		entryReport.Outcome = OutcomeFailed
		entryReport.Detail = fmt.Sprintf(fetchFailureDetailTemplateConstant, fetchError)
		fmt.Fprintf(output, failedStatusTemplateConstant, targetPath, entryReport.Detail)
		return entryReport
	}

	service.EnsureTrackingBranches(executionContext, targetPath, remoteName)

	currentBranch, branchError := service.repositoryManager.GetCurrentBranch(executionContext, targetPath)
	if branchError != nil {
		currentBranch = ""
	}

	if service.currentBranchHasLiveUpstream(executionContext, targetPath, remoteName) {
		if pullError := service.repositoryManager.PullFastForward(executionContext, targetPath); pullError != nil {
			entryReport.Outcome = OutcomeFailed
			entryReport.Detail = fmt.Sprintf(pullFailureDetailTemplateConstant, pullError)
			fmt.Fprintf(output, failedStatusTemplateConstant, targetPath, entryReport.Detail)
			return entryReport
		}
	} else {
		entryReport.Detail = fmt.Sprintf(pullSkippedDetailTemplateConstant, currentBranch)
		fmt.Fprintf(output, pullSkipStatusTemplateConstant, targetPath, currentBranch)
	}

	entryReport.Outcome = OutcomeSynced
	fmt.Fprintf(output, updatedStatusTemplateConstant, targetPath)
	return entryReport
}

func (service *Service) cloneRepository(executionContext context.Context, entryReport EntryReport, manifestEntry ManifestEntry, remoteName string, rootDirectory string, targetPath string, output io.Writer) EntryReport {
	if cloneError := service.repositoryManager.CloneRepository(executionContext, rootDirectory, manifestEntry.RepositoryURL, manifestEntry.Identifier); cloneError != nil {
		entryReport.Outcome = OutcomeFailed
		entryReport.Detail = fmt.Sprintf(cloneFailureDetailTemplateConstant, cloneError)
		fmt.Fprintf(output, failedStatusTemplateConstant, targetPath, entryReport.Detail)
		return entryReport
	}

	if fetchError := service.repositoryManager.Fetch(executionContext, targetPath); fetchError != nil {
		entryReport.Outcome = OutcomeFailed
		entryReport.Detail = fmt.Sprintf(fetchFailureDetailTemplateConstant, fetchError)
		fmt.Fprintf(output, failedStatusTemplateConstant, targetPath, entryReport.Detail)
		return entryReport
	}

	service.EnsureTrackingBranches(executionContext, targetPath, remoteName)

	defaultBranchLabel := clonedUnresolvedBranchLabelConstant
	defaultBranch := service.ResolveDefaultBranch(executionContext, targetPath, remoteName)
	if len(defaultBranch) > 0 {
		if checkoutError := service.repositoryManager.CheckoutBranch(executionContext, targetPath, defaultBranch); checkoutError != nil {
			entryReport.Outcome = OutcomeFailed
			entryReport.Detail = fmt.Sprintf(checkoutFailureDetailTemplateConstant, defaultBranch, checkoutError)
			fmt.Fprintf(output, failedStatusTemplateConstant, targetPath, entryReport.Detail)
			return entryReport
		}
		defaultBranchLabel = fmt.Sprintf(defaultBranchLabelTemplateConstant, defaultBranch)
	}

	entryReport.Outcome = OutcomeCloned
	fmt.Fprintf(output, clonedStatusTemplateConstant, targetPath, defaultBranchLabel)
	return entryReport
}

// EnsureTrackingBranches creates or repairs local tracking branches for every
// branch on the named remote, excluding the remote's HEAD alias. Individual
// branch operations are best-effort; failures are logged and swallowed.
func (service *Service) EnsureTrackingBranches(executionContext context.Context, repositoryPath string, remoteName string) {
	remoteBranches, listError := service.repositoryManager.ListRemoteBranches(executionContext, repositoryPath, remoteName)
	if listError != nil {
		service.logger.Debug(trackingBranchFailureMessageConstant,
			zap.String(repositoryFieldNameConstant, repositoryPath),
			zap.Error(listError))
		return
	}

	for _, branchName := range remoteBranches {
		branchExists, existsError := service.repositoryManager.LocalBranchExists(executionContext, repositoryPath, branchName)
		if existsError != nil {
			service.logger.Debug(trackingBranchFailureMessageConstant,
				zap.String(repositoryFieldNameConstant, repositoryPath),
				zap.String(branchFieldNameConstant, branchName),
				zap.Error(existsError))
			continue
		}

		if branchExists {
			if len(service.repositoryManager.GetBranchUpstream(executionContext, repositoryPath, branchName)) > 0 {
				continue
			}
			if upstreamError := service.repositoryManager.SetUpstreamBranch(executionContext, repositoryPath, branchName, remoteName); upstreamError != nil {
				service.logger.Debug(trackingBranchFailureMessageConstant,
					zap.String(repositoryFieldNameConstant, repositoryPath),
					zap.String(branchFieldNameConstant, branchName),
					zap.Error(upstreamError))
			}
			continue
		}

		if createError := service.repositoryManager.CreateTrackingBranch(executionContext, repositoryPath, branchName, remoteName); createError != nil {
			service.logger.Debug(trackingBranchFailureMessageConstant,
				zap.String(repositoryFieldNameConstant, repositoryPath),
				zap.String(branchFieldNameConstant, branchName),
				zap.Error(createError))
		}
	}
}

// ResolveDefaultBranch determines the remote's default branch. Resolution
// tries the remote's advertised HEAD branch, then the locally recorded
// symbolic HEAD, then falls back to "main" or "master" when either exists on
// the remote. An empty result indicates resolution failed.
func (service *Service) ResolveDefaultBranch(executionContext context.Context, repositoryPath string, remoteName string) string {
	advertisedHead, advertisedError := service.repositoryManager.GetRemoteHeadBranch(executionContext, repositoryPath, remoteName)
	if advertisedError == nil && len(advertisedHead) > 0 {
		return advertisedHead
	}

	symbolicHead, symbolicError := service.repositoryManager.ResolveSymbolicHead(executionContext, repositoryPath, remoteName)
	if symbolicError == nil && len(symbolicHead) > 0 {
		return symbolicHead
	}

	remoteBranches, listError := service.repositoryManager.ListRemoteBranches(executionContext, repositoryPath, remoteName)
	if listError != nil {
		return ""
	}
	for _, fallbackBranch := range []string{fallbackMainBranchNameConstant, fallbackMasterBranchNameConstant} {
		for _, remoteBranch := range remoteBranches {
			if remoteBranch == fallbackBranch {
				return fallbackBranch
			}
		}
	}
	return ""
}

// remoteURLsEquivalent treats two remote URLs as the same remote when they
// agree on protocol, host, owner, and repository after normalization.
func remoteURLsEquivalent(firstURL string, secondURL string) bool {
	if firstURL == secondURL {
		return true
	}
	firstParsed, firstParseError := gitrepo.ParseRemoteURL(firstURL)
	if firstParseError != nil {
		return false
	}
	secondParsed, secondParseError := gitrepo.ParseRemoteURL(secondURL)
	if secondParseError != nil {
		return false
	}
	return firstParsed == secondParsed
}

func (service *Service) currentBranchHasLiveUpstream(executionContext context.Context, repositoryPath string, remoteName string) bool {
	upstreamReference := service.repositoryManager.GetUpstreamBranch(executionContext, repositoryPath)
	if len(upstreamReference) == 0 {
		return false
	}

	remoteBranches, listError := service.repositoryManager.ListRemoteBranches(executionContext, repositoryPath, remoteName)
	if listError != nil {
		return false
	}
	upstreamBranch := strings.TrimPrefix(upstreamReference, remoteName+remoteReferenceSeparatorConstant)
	for _, remoteBranch := range remoteBranches {
		if remoteBranch == upstreamBranch {
			return true
		}
	}
	return false
}
