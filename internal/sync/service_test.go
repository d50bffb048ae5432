package sync_test

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/courseops/reposync/internal/sync"
)

type fakeRepositoryManager struct {
	remoteBranches   []string
	localBranches    map[string]bool
	branchUpstreams  map[string]string
	currentBranch    string
	currentUpstream  string
	remoteHeadBranch string
	symbolicHead     string
	setRemoteError   error
	fetchError       error
	pullError        error
	cloneError       error
	checkoutError    error
	remoteURL        string
	recordedCalls    []string
	onClone          func(targetDirectory string)
}

func newFakeRepositoryManager() *fakeRepositoryManager {
	return &fakeRepositoryManager{
		localBranches:   map[string]bool{},
		branchUpstreams: map[string]string{},
	}
}

func (manager *fakeRepositoryManager) record(callDescription string) {
	manager.recordedCalls = append(manager.recordedCalls, callDescription)
}

func (manager *fakeRepositoryManager) GetRemoteURL(_ context.Context, repositoryPath string, remoteName string) (string, error) {
	return manager.remoteURL, nil
}

func (manager *fakeRepositoryManager) SetRemoteURL(_ context.Context, repositoryPath string, remoteName string, remoteURL string) error {
	manager.record(fmt.Sprintf("set-remote-url %s %s %s", repositoryPath, remoteName, remoteURL))
	return manager.setRemoteError
}

func (manager *fakeRepositoryManager) GetCurrentBranch(_ context.Context, repositoryPath string) (string, error) {
	return manager.currentBranch, nil
}

func (manager *fakeRepositoryManager) GetUpstreamBranch(_ context.Context, repositoryPath string) string {
	return manager.currentUpstream
}

func (manager *fakeRepositoryManager) GetBranchUpstream(_ context.Context, repositoryPath string, branchName string) string {
	return manager.branchUpstreams[branchName]
}

func (manager *fakeRepositoryManager) LocalBranchExists(_ context.Context, repositoryPath string, branchName string) (bool, error) {
	return manager.localBranches[branchName], nil
}

func (manager *fakeRepositoryManager) ListRemoteBranches(_ context.Context, repositoryPath string, remoteName string) ([]string, error) {
	return manager.remoteBranches, nil
}

func (manager *fakeRepositoryManager) CreateTrackingBranch(_ context.Context, repositoryPath string, branchName string, remoteName string) error {
	manager.record(fmt.Sprintf("create-tracking %s %s/%s", repositoryPath, remoteName, branchName))
	manager.localBranches[branchName] = true
	manager.branchUpstreams[branchName] = remoteName + "/" + branchName
	return nil
}

func (manager *fakeRepositoryManager) SetUpstreamBranch(_ context.Context, repositoryPath string, branchName string, remoteName string) error {
	manager.record(fmt.Sprintf("set-upstream %s %s/%s", repositoryPath, remoteName, branchName))
	manager.branchUpstreams[branchName] = remoteName + "/" + branchName
	return nil
}

func (manager *fakeRepositoryManager) Fetch(_ context.Context, repositoryPath string) error {
	manager.record(fmt.Sprintf("fetch %s", repositoryPath))
	return manager.fetchError
}

func (manager *fakeRepositoryManager) PullFastForward(_ context.Context, repositoryPath string) error {
	manager.record(fmt.Sprintf("pull %s", repositoryPath))
	return manager.pullError
}

func (manager *fakeRepositoryManager) CloneRepository(_ context.Context, parentDirectory string, remoteURL string, targetDirectory string) error {
	manager.record(fmt.Sprintf("clone %s into %s/%s", remoteURL, parentDirectory, targetDirectory))
	if manager.cloneError != nil {
		return manager.cloneError
	}
	if manager.onClone != nil {
		manager.onClone(targetDirectory)
	}
	return nil
}

func (manager *fakeRepositoryManager) CheckoutBranch(_ context.Context, repositoryPath string, branchName string) error {
	manager.record(fmt.Sprintf("checkout %s %s", repositoryPath, branchName))
	return manager.checkoutError
}

func (manager *fakeRepositoryManager) GetRemoteHeadBranch(_ context.Context, repositoryPath string, remoteName string) (string, error) {
	return manager.remoteHeadBranch, nil
}

func (manager *fakeRepositoryManager) ResolveSymbolicHead(_ context.Context, repositoryPath string, remoteName string) (string, error) {
	return manager.symbolicHead, nil
}

func newServiceForTest(testInstance *testing.T, manager *fakeRepositoryManager, fileSystem *fakeFileSystem) *sync.Service {
	service, creationError := sync.NewService(sync.Dependencies{
		Logger:            zap.NewNop(),
		RepositoryManager: manager,
		FileSystem:        fileSystem,
	})
	require.NoError(testInstance, creationError)
	return service
}

func TestNewServiceValidatesDependencies(testInstance *testing.T) {
	_, missingManagerError := sync.NewService(sync.Dependencies{FileSystem: newFakeFileSystem()})
	require.ErrorIs(testInstance, missingManagerError, sync.ErrRepositoryManagerNotConfigured)

	_, missingFileSystemError := sync.NewService(sync.Dependencies{RepositoryManager: newFakeRepositoryManager()})
	require.ErrorIs(testInstance, missingFileSystemError, sync.ErrFileSystemNotConfigured)
}

func TestSyncAllValidatesOptions(testInstance *testing.T) {
	service := newServiceForTest(testInstance, newFakeRepositoryManager(), newFakeFileSystem())

	_, missingManifestError := service.SyncAll(context.Background(), sync.Options{RemoteName: "origin"})
	require.ErrorIs(testInstance, missingManifestError, sync.ErrManifestPathRequired)

	_, missingRemoteError := service.SyncAll(context.Background(), sync.Options{ManifestPath: "repos.txt"})
	require.ErrorIs(testInstance, missingRemoteError, sync.ErrRemoteNameRequired)
}

func TestSyncAllAbortsWhenManifestUnreadable(testInstance *testing.T) {
	fileSystem := newFakeFileSystem()
	service := newServiceForTest(testInstance, newFakeRepositoryManager(), fileSystem)

	_, syncError := service.SyncAll(context.Background(), sync.Options{ManifestPath: "repos.txt", RemoteName: "origin"})
	require.Error(testInstance, syncError)
	require.ErrorContains(testInstance, syncError, "failed to read manifest")
}

func TestSyncAllClonesAndWarnsPerManifestLine(testInstance *testing.T) {
	manifestContent := "https://git.example.com/org/s24001-project.git\n" +
		"\n" +
		"# comment\n" +
		"https://git.example.com/org/nostudentid.git\n"

	fileSystem := newFakeFileSystem()
	fileSystem.files["repos.txt"] = []byte(manifestContent)

	manager := newFakeRepositoryManager()
	manager.remoteBranches = []string{"main", "feature-a"}
	manager.onClone = func(targetDirectory string) {
		fileSystem.existingPaths[filepath.Join("/work", targetDirectory)] = true
	}

	service := newServiceForTest(testInstance, manager, fileSystem)

	outputBuffer := &bytes.Buffer{}
	report, syncError := service.SyncAll(context.Background(), sync.Options{
		ManifestPath: "repos.txt",
		RemoteName:   "origin",
		Output:       outputBuffer,
	})
	require.NoError(testInstance, syncError)
	require.Len(testInstance, report.Entries, 2)

	clonedEntry := report.Entries[0]
	require.Equal(testInstance, sync.OutcomeCloned, clonedEntry.Outcome)
	require.Equal(testInstance, "s24001", clonedEntry.Identifier)
	require.Equal(testInstance, "/work/s24001", clonedEntry.TargetPath)

	skippedEntry := report.Entries[1]
	require.Equal(testInstance, sync.OutcomeSkipped, skippedEntry.Outcome)
	require.Empty(testInstance, skippedEntry.TargetPath)

	require.Contains(testInstance, outputBuffer.String(), "CLONED: /work/s24001 (default branch main)")
	require.Contains(testInstance, outputBuffer.String(), "WARNING: no identifier in https://git.example.com/org/nostudentid.git; skipping")

	require.Contains(testInstance, manager.recordedCalls, "clone https://git.example.com/org/s24001-project.git into /work/s24001")
	require.Contains(testInstance, manager.recordedCalls, "fetch /work/s24001")
	require.Contains(testInstance, manager.recordedCalls, "create-tracking /work/s24001 origin/main")
	require.Contains(testInstance, manager.recordedCalls, "create-tracking /work/s24001 origin/feature-a")
	require.Contains(testInstance, manager.recordedCalls, "checkout /work/s24001 main")
	for _, recordedCall := range manager.recordedCalls {
		require.NotContains(testInstance, recordedCall, "nostudentid")
	}
}

func TestSyncAllUpdatesExistingTargetAndSkipsPullWithoutUpstream(testInstance *testing.T) {
	fileSystem := newFakeFileSystem()
	fileSystem.files["repos.txt"] = []byte("https://git.example.com/org/s24001-project.git\n")
	fileSystem.existingPaths["/work/s24001"] = true

	manager := newFakeRepositoryManager()
	manager.remoteBranches = []string{"main"}
	manager.currentBranch = "experiment"
	manager.currentUpstream = ""

	service := newServiceForTest(testInstance, manager, fileSystem)

	outputBuffer := &bytes.Buffer{}
	report, syncError := service.SyncAll(context.Background(), sync.Options{
		ManifestPath: "repos.txt",
		RemoteName:   "origin",
		Output:       outputBuffer,
	})
	require.NoError(testInstance, syncError)
	require.Len(testInstance, report.Entries, 1)
	require.Equal(testInstance, sync.OutcomeSynced, report.Entries[0].Outcome)
	require.Contains(testInstance, report.Entries[0].Detail, "pull skipped")

	require.Contains(testInstance, manager.recordedCalls, "set-remote-url /work/s24001 origin https://git.example.com/org/s24001-project.git")
	require.Contains(testInstance, manager.recordedCalls, "fetch /work/s24001")
	require.NotContains(testInstance, manager.recordedCalls, "pull /work/s24001")
	require.Contains(testInstance, outputBuffer.String(), "UPDATE-SKIP-PULL: /work/s24001 (branch experiment has no upstream)")
	require.Contains(testInstance, outputBuffer.String(), "UPDATED: /work/s24001")
}

func TestSyncAllPullsWhenUpstreamStillExists(testInstance *testing.T) {
	fileSystem := newFakeFileSystem()
	fileSystem.files["repos.txt"] = []byte("https://git.example.com/org/s24001-project.git\n")
	fileSystem.existingPaths["/work/s24001"] = true

	manager := newFakeRepositoryManager()
	manager.remoteBranches = []string{"main"}
	manager.currentBranch = "main"
	manager.currentUpstream = "origin/main"
	manager.localBranches["main"] = true
	manager.branchUpstreams["main"] = "origin/main"

	service := newServiceForTest(testInstance, manager, fileSystem)

	report, syncError := service.SyncAll(context.Background(), sync.Options{
		ManifestPath: "repos.txt",
		RemoteName:   "origin",
	})
	require.NoError(testInstance, syncError)
	require.Equal(testInstance, sync.OutcomeSynced, report.Entries[0].Outcome)
	require.Contains(testInstance, manager.recordedCalls, "pull /work/s24001")
}

func TestSyncAllSkipsPullWhenUpstreamBranchDisappeared(testInstance *testing.T) {
	fileSystem := newFakeFileSystem()
	fileSystem.files["repos.txt"] = []byte("https://git.example.com/org/s24001-project.git\n")
	fileSystem.existingPaths["/work/s24001"] = true

	manager := newFakeRepositoryManager()
	manager.remoteBranches = []string{"main"}
	manager.currentBranch = "retired"
	manager.currentUpstream = "origin/retired"
	manager.localBranches["retired"] = true
	manager.branchUpstreams["retired"] = "origin/retired"
	manager.localBranches["main"] = true
	manager.branchUpstreams["main"] = "origin/main"

	service := newServiceForTest(testInstance, manager, fileSystem)

	report, syncError := service.SyncAll(context.Background(), sync.Options{
		ManifestPath: "repos.txt",
		RemoteName:   "origin",
	})
	require.NoError(testInstance, syncError)
	require.Equal(testInstance, sync.OutcomeSynced, report.Entries[0].Outcome)
	require.NotContains(testInstance, manager.recordedCalls, "pull /work/s24001")
}

func TestEnsureTrackingBranchesRepairsMissingUpstreams(testInstance *testing.T) {
	manager := newFakeRepositoryManager()
	manager.remoteBranches = []string{"main", "feature-a"}
	manager.localBranches["main"] = true

	service := newServiceForTest(testInstance, manager, newFakeFileSystem())
	service.EnsureTrackingBranches(context.Background(), "/work/s24001", "origin")

	require.Contains(testInstance, manager.recordedCalls, "set-upstream /work/s24001 origin/main")
	require.Contains(testInstance, manager.recordedCalls, "create-tracking /work/s24001 origin/feature-a")
	require.Equal(testInstance, "origin/main", manager.branchUpstreams["main"])
	require.Equal(testInstance, "origin/feature-a", manager.branchUpstreams["feature-a"])
}

func TestEnsureTrackingBranchesLeavesConfiguredUpstreamsAlone(testInstance *testing.T) {
	manager := newFakeRepositoryManager()
	manager.remoteBranches = []string{"main"}
	manager.localBranches["main"] = true
	manager.branchUpstreams["main"] = "origin/main"

	service := newServiceForTest(testInstance, manager, newFakeFileSystem())
	service.EnsureTrackingBranches(context.Background(), "/work/s24001", "origin")

	require.Empty(testInstance, manager.recordedCalls)
}

func TestResolveDefaultBranchFallbackOrder(testInstance *testing.T) {
	testCases := []struct {
		name             string
		remoteHeadBranch string
		symbolicHead     string
		remoteBranches   []string
		expectedBranch   string
	}{
		{
			name:             "advertised_head_wins",
			remoteHeadBranch: "develop",
			symbolicHead:     "main",
			remoteBranches:   []string{"main", "develop"},
			expectedBranch:   "develop",
		},
		{
			name:           "symbolic_head_when_no_advertised",
			symbolicHead:   "trunk",
			remoteBranches: []string{"trunk", "main"},
			expectedBranch: "trunk",
		},
		{
			name:           "main_fallback",
			remoteBranches: []string{"feature-a", "main"},
			expectedBranch: "main",
		},
		{
			name:           "master_fallback",
			remoteBranches: []string{"feature-a", "master"},
			expectedBranch: "master",
		},
		{
			name:           "unresolved",
			remoteBranches: []string{"feature-a"},
			expectedBranch: "",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			manager := newFakeRepositoryManager()
			manager.remoteHeadBranch = testCase.remoteHeadBranch
			manager.symbolicHead = testCase.symbolicHead
			manager.remoteBranches = testCase.remoteBranches

			service := newServiceForTest(testInstance, manager, newFakeFileSystem())
			resolvedBranch := service.ResolveDefaultBranch(context.Background(), "/work/s24001", "origin")
			require.Equal(testInstance, testCase.expectedBranch, resolvedBranch)
		})
	}
}

// Two URLs deriving the same identifier are not deduplicated: the later entry
// re-syncs the directory created by the earlier one (last one wins).
func TestSyncAllIdentifierCollisionLastOneWins(testInstance *testing.T) {
	manifestContent := "https://git.example.com/org/s24001-project.git\n" +
		"https://git.example.com/other/s24001-fork.git\n"

	fileSystem := newFakeFileSystem()
	fileSystem.files["repos.txt"] = []byte(manifestContent)

	manager := newFakeRepositoryManager()
	manager.remoteBranches = []string{"main"}
	manager.currentBranch = "main"
	manager.currentUpstream = "origin/main"
	manager.onClone = func(targetDirectory string) {
		fileSystem.existingPaths[filepath.Join("/work", targetDirectory)] = true
	}

	service := newServiceForTest(testInstance, manager, fileSystem)

	report, syncError := service.SyncAll(context.Background(), sync.Options{
		ManifestPath: "repos.txt",
		RemoteName:   "origin",
	})
	require.NoError(testInstance, syncError)
	require.Len(testInstance, report.Entries, 2)
	require.Equal(testInstance, sync.OutcomeCloned, report.Entries[0].Outcome)
	require.Equal(testInstance, sync.OutcomeSynced, report.Entries[1].Outcome)
	require.Equal(testInstance, report.Entries[0].TargetPath, report.Entries[1].TargetPath)
	require.Contains(testInstance, manager.recordedCalls, "set-remote-url /work/s24001 origin https://git.example.com/other/s24001-fork.git")
}

func TestSyncAllLeavesMatchingRemoteURLAlone(testInstance *testing.T) {
	fileSystem := newFakeFileSystem()
	fileSystem.files["repos.txt"] = []byte("https://git.example.com/org/s24001-project.git\n")
	fileSystem.existingPaths["/work/s24001"] = true

	manager := newFakeRepositoryManager()
	manager.remoteBranches = []string{"main"}
	manager.currentBranch = "main"
	manager.currentUpstream = "origin/main"
	manager.remoteURL = "https://git.example.com/org/s24001-project"

	service := newServiceForTest(testInstance, manager, fileSystem)

	report, syncError := service.SyncAll(context.Background(), sync.Options{
		ManifestPath: "repos.txt",
		RemoteName:   "origin",
	})
	require.NoError(testInstance, syncError)
	require.Equal(testInstance, sync.OutcomeSynced, report.Entries[0].Outcome)
	for _, recordedCall := range manager.recordedCalls {
		require.NotContains(testInstance, recordedCall, "set-remote-url")
	}
}

func TestSyncAllRecordsFailedOutcomes(testInstance *testing.T) {
	fileSystem := newFakeFileSystem()
	fileSystem.files["repos.txt"] = []byte("https://git.example.com/org/s24001-project.git\n")

	manager := newFakeRepositoryManager()
	manager.cloneError = fmt.Errorf("network unreachable")

	service := newServiceForTest(testInstance, manager, fileSystem)

	outputBuffer := &bytes.Buffer{}
	report, syncError := service.SyncAll(context.Background(), sync.Options{
		ManifestPath: "repos.txt",
		RemoteName:   "origin",
		Output:       outputBuffer,
	})
	require.NoError(testInstance, syncError)
	require.Len(testInstance, report.Entries, 1)
	require.Equal(testInstance, sync.OutcomeFailed, report.Entries[0].Outcome)
	require.Contains(testInstance, report.Entries[0].Detail, "failed to clone")
	require.Contains(testInstance, outputBuffer.String(), "FAILED: /work/s24001")
}
