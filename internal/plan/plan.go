// Package plan turns the configured items into the list of transfers one
// device performs for one direction.
package plan

import (
	"fmt"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/gsb/internal/config"
	"git.home.luguber.info/inful/gsb/internal/device"
	gsberrors "git.home.luguber.info/inful/gsb/internal/errors"
	"git.home.luguber.info/inful/gsb/internal/resolve"
)

// Direction selects which way content flows.
type Direction string

const (
	Collect Direction = "collect"
	Restore Direction = "restore"
)

// ParseDirection accepts "collect" or "restore".
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Collect:
		return Collect, nil
	case Restore:
		return Restore, nil
	default:
		return "", gsberrors.ValidationFailed("direction", fmt.Sprintf("unknown direction %q", s))
	}
}

// Action is one planned transfer. RepoPath is absolute.
type Action struct {
	Item       string
	RepoPath   string
	LocalPath  string
	IsHardlink bool
	Direction  Direction
}

// SkipReason explains why an item produced no action.
type SkipReason string

const (
	ReasonNoLocalPath           SkipReason = "no-local-path"
	ReasonIgnored               SkipReason = "ignored"
	ReasonInvalidHardlinkTarget SkipReason = "invalid-hardlink-target"
	ReasonOverlapsRepository    SkipReason = "overlaps-repository"
)

// Skip records an item left out of the plan.
type Skip struct {
	Item   string
	Reason SkipReason
	Err    error
}

// Result is the outcome of planning. Actions keep configuration order.
type Result struct {
	Direction Direction
	Actions   []Action
	Skipped   []Skip
}

// Plan resolves every item for dev and keeps those that apply in direction.
// It performs no I/O.
func Plan(items []config.Item, dev string, aliases device.Aliases, repoRoot string, direction Direction) Result {
	res := Result{Direction: direction}
	for _, item := range items {
		r := resolve.Resolve(item, dev, aliases)
		if !r.HasLocalPath() {
			res.Skipped = append(res.Skipped, Skip{Item: item.PathInRepo, Reason: ReasonNoLocalPath})
			continue
		}
		if (direction == Collect && r.SkipCollect) || (direction == Restore && r.SkipRestore) {
			res.Skipped = append(res.Skipped, Skip{Item: item.PathInRepo, Reason: ReasonIgnored})
			continue
		}
		if repoRoot != "" && overlaps(r.LocalPath, repoRoot) {
			res.Skipped = append(res.Skipped, Skip{
				Item:   item.PathInRepo,
				Reason: ReasonOverlapsRepository,
				Err:    gsberrors.InvalidItem(item.PathInRepo, "local path "+r.LocalPath+" overlaps the repository "+repoRoot),
			})
			continue
		}
		res.Actions = append(res.Actions, Action{
			Item:       item.PathInRepo,
			RepoPath:   filepath.Join(repoRoot, filepath.FromSlash(r.RepoPath)),
			LocalPath:  r.LocalPath,
			IsHardlink: r.IsHardlink,
			Direction:  direction,
		})
	}
	return res
}

// overlaps reports whether a and b are the same path or one contains the other.
func overlaps(a, b string) bool {
	return within(a, b) || within(b, a)
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Inspector answers the one filesystem question the hardlink check needs.
type Inspector interface {
	IsDir(path string) (bool, error)
}

// InspectorFunc adapts a function to Inspector.
type InspectorFunc func(path string) (bool, error)

func (f InspectorFunc) IsDir(path string) (bool, error) { return f(path) }

// CheckHardlinks moves hardlink actions whose repository path is a directory
// into Skipped. Inspection errors leave the action in place for the transfer
// engine to report.
func CheckHardlinks(res Result, in Inspector) Result {
	out := Result{Direction: res.Direction, Skipped: append([]Skip(nil), res.Skipped...)}
	for _, a := range res.Actions {
		if a.IsHardlink {
			if dir, err := in.IsDir(a.RepoPath); err == nil && dir {
				out.Skipped = append(out.Skipped, Skip{
					Item:   a.Item,
					Reason: ReasonInvalidHardlinkTarget,
					Err:    gsberrors.InvalidHardlinkTarget(a.Item, a.RepoPath),
				})
				continue
			}
		}
		out.Actions = append(out.Actions, a)
	}
	return out
}

// Invalid returns the skips that count as failures.
func (r Result) Invalid() []Skip {
	var out []Skip
	for _, s := range r.Skipped {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}
