// Package sync clones or updates the repositories listed in a manifest file
// and ensures every remote branch has a local tracking branch.
package sync
