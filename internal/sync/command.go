package sync

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/courseops/reposync/internal/sync/dependencies"
	"github.com/courseops/reposync/internal/sync/shared"
	"github.com/courseops/reposync/internal/utils"
)

const (
	commandUseConstant              = "sync"
	commandShortDescriptionConstant = "Clone or update the repositories listed in a manifest"
	commandLongDescriptionConstant  = "sync reads repository URLs from a manifest file, derives each local directory name from the identifier embedded in the URL, clones missing repositories, refreshes existing ones, and ensures every remote branch has a local tracking branch."
	manifestFlagNameConstant        = "manifest"
	manifestFlagDescriptionConstant = "Path to the manifest file listing repository URLs"
	remoteFlagNameConstant          = "remote"
	remoteFlagDescriptionConstant   = "Name of the git remote to synchronize against"
	rootFlagNameConstant            = "root"
	rootFlagDescriptionConstant     = "Directory under which repository working copies are created"
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the sync command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	GitExecutor                  shared.GitExecutor
	RepositoryManager            shared.GitRepositoryManager
	FileSystem                   shared.FileSystem
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
}

// Build constructs the sync command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	defaults := DefaultCommandConfiguration()

	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	command.Flags().String(manifestFlagNameConstant, defaults.ManifestPath, manifestFlagDescriptionConstant)
	command.Flags().String(remoteFlagNameConstant, defaults.RemoteName, remoteFlagDescriptionConstant)
	command.Flags().String(rootFlagNameConstant, defaults.RootDirectory, rootFlagDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()

	manifestPath, manifestError := resolveStringFlag(command, manifestFlagNameConstant, configuration.ManifestPath)
	if manifestError != nil {
		return manifestError
	}
	remoteName, remoteError := resolveStringFlag(command, remoteFlagNameConstant, configuration.RemoteName)
	if remoteError != nil {
		return remoteError
	}
	rootDirectory, rootError := resolveStringFlag(command, rootFlagNameConstant, configuration.RootDirectory)
	if rootError != nil {
		return rootError
	}

	logger := builder.resolveLogger()
	humanReadableLogging := false
	if builder.HumanReadableLoggingProvider != nil {
		humanReadableLogging = builder.HumanReadableLoggingProvider()
	}

	gitExecutor, executorError := dependencies.ResolveGitExecutor(builder.GitExecutor, logger, humanReadableLogging)
	if executorError != nil {
		return executorError
	}

	repositoryManager, managerError := dependencies.ResolveGitRepositoryManager(builder.RepositoryManager, gitExecutor)
	if managerError != nil {
		return managerError
	}

	service, serviceCreationError := NewService(Dependencies{
		Logger:            logger,
		RepositoryManager: repositoryManager,
		FileSystem:        dependencies.ResolveFileSystem(builder.FileSystem),
	})
	if serviceCreationError != nil {
		return serviceCreationError
	}

	_, syncError := service.SyncAll(command.Context(), Options{
		ManifestPath:  manifestPath,
		RemoteName:    remoteName,
		RootDirectory: rootDirectory,
		Output:        utils.NewFlushingWriter(command.OutOrStdout()),
	})
	return syncError
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func resolveStringFlag(command *cobra.Command, flagName string, configuredValue string) (string, error) {
	if command == nil || !command.Flags().Changed(flagName) {
		return configuredValue, nil
	}
	return command.Flags().GetString(flagName)
}
