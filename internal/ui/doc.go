// Package ui adapts command lifecycle events into human-readable console
// output for runs configured with the console log format.
package ui
