// Package git wraps go-git with the four repository operations gsb relies on:
// InitOrOpen, Fetch, FastForwardOrMerge and CommitAll. gsb never pushes.
package git
