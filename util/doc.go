// Package util provides small helpers shared across the module: membership
// checks, human-readable size parsing, and secret masking for logs.
package util
