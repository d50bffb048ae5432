// Package gitrepo provides repository-level git operations built on the shell executor.
package gitrepo
