// Package workspace locates the gsb repository and serializes work on it.
//
// The repository root is the nearest ancestor of the working directory that
// holds a gsb config file, unless a root is given explicitly. Every sequence
// that reads or writes the working tree (plan, transfer, commit, fetch,
// fast-forward) runs inside Workspace.WithLock so that git never observes a
// half-written tree. The lock is held across processes through a file lock
// in .git, so a running daemon and a manual collect never interleave.
package workspace
