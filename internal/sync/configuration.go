package sync

import "strings"

const (
	configurationManifestKeyConstant = "manifest"
	configurationRemoteKeyConstant   = "remote"
	configurationRootKeyConstant     = "root"
	configurationKeySeparator        = "."
	defaultManifestPathConstant      = "repos.txt"
	defaultRemoteNameConstant        = "origin"
	defaultRootDirectoryConstant     = "."
)

// CommandConfiguration captures configuration values for the sync command.
type CommandConfiguration struct {
	ManifestPath  string `mapstructure:"manifest"`
	RemoteName    string `mapstructure:"remote"`
	RootDirectory string `mapstructure:"root"`
}

// DefaultCommandConfiguration provides baseline configuration values for sync.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		ManifestPath:  defaultManifestPathConstant,
		RemoteName:    defaultRemoteNameConstant,
		RootDirectory: defaultRootDirectoryConstant,
	}
}

// Sanitize trims configuration values and restores defaults for empty fields.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	defaults := DefaultCommandConfiguration()

	sanitized.ManifestPath = strings.TrimSpace(configuration.ManifestPath)
	if len(sanitized.ManifestPath) == 0 {
		sanitized.ManifestPath = defaults.ManifestPath
	}
	sanitized.RemoteName = strings.TrimSpace(configuration.RemoteName)
	if len(sanitized.RemoteName) == 0 {
		sanitized.RemoteName = defaults.RemoteName
	}
	sanitized.RootDirectory = strings.TrimSpace(configuration.RootDirectory)
	if len(sanitized.RootDirectory) == 0 {
		sanitized.RootDirectory = defaults.RootDirectory
	}
	return sanitized
}

// DefaultConfigurationValues produces Viper defaults for the sync command.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		rootKey + configurationKeySeparator + configurationManifestKeyConstant: defaults.ManifestPath,
		rootKey + configurationKeySeparator + configurationRemoteKeyConstant:   defaults.RemoteName,
		rootKey + configurationKeySeparator + configurationRootKeyConstant:     defaults.RootDirectory,
	}
}
