package sync

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/courseops/reposync/internal/sync/shared"
)

const (
	identifierPatternConstant           = "s[0-9]{5}"
	commentLinePrefixConstant           = "#"
	manifestReadFailureTemplateConstant = "failed to read manifest %s: %w"
	manifestLineSeparatorConstant       = "\n"
	carriageReturnSuffixConstant        = "\r"
)

var identifierExpression = regexp.MustCompile(identifierPatternConstant)

// ManifestEntry describes one repository URL from the manifest file.
type ManifestEntry struct {
	RepositoryURL string
	Identifier    string
	LineNumber    int
}

// ExtractIdentifier returns the first identifier match in the repository URL.
// The second return value reports whether a match was found.
func ExtractIdentifier(repositoryURL string) (string, bool) {
	match := identifierExpression.FindString(repositoryURL)
	return match, len(match) > 0
}

// LoadManifest reads the manifest file and returns its repository entries in order.
// Blank lines and lines whose first non-whitespace character is '#' are skipped.
func LoadManifest(fileSystem shared.FileSystem, manifestPath string) ([]ManifestEntry, error) {
	manifestContent, readError := fileSystem.ReadFile(manifestPath)
	if readError != nil {
		return nil, fmt.Errorf(manifestReadFailureTemplateConstant, manifestPath, readError)
	}

	manifestEntries := []ManifestEntry{}
	for lineIndex, rawLine := range strings.Split(string(manifestContent), manifestLineSeparatorConstant) {
		trimmedLine := strings.TrimSpace(strings.TrimSuffix(rawLine, carriageReturnSuffixConstant))
		if len(trimmedLine) == 0 {
			continue
		}
		if strings.HasPrefix(trimmedLine, commentLinePrefixConstant) {
			continue
		}

		identifier, _ := ExtractIdentifier(trimmedLine)
		manifestEntries = append(manifestEntries, ManifestEntry{
			RepositoryURL: trimmedLine,
			Identifier:    identifier,
			LineNumber:    lineIndex + 1,
		})
	}
	return manifestEntries, nil
}
