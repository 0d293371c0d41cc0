// Package resolve computes the effective local path and skip flags of one
// configured item for one device. Everything here is pure.
package resolve

import (
	"sort"

	"git.home.luguber.info/inful/gsb/internal/config"
	"git.home.luguber.info/inful/gsb/internal/device"
)

// ResolvedItem is an item as seen from one device. An empty LocalPath means
// the item is not applicable on this device.
type ResolvedItem struct {
	RepoPath    string
	LocalPath   string
	SkipCollect bool
	SkipRestore bool
	IsHardlink  bool
}

// HasLocalPath reports whether a local path is configured for the device.
func (r ResolvedItem) HasLocalPath() bool { return r.LocalPath != "" }

// Resolve resolves item for dev. Source keys and ignore entries are passed
// through aliases before comparison.
func Resolve(item config.Item, dev string, aliases device.Aliases) ResolvedItem {
	r := ResolvedItem{
		RepoPath:   item.PathInRepo,
		LocalPath:  localPath(item, dev, aliases),
		IsHardlink: item.IsHardlink,
	}

	r.SkipCollect = aliases.Matches(item.IgnoreCollect, dev) || aliases.Matches(item.Ignore, dev)
	r.SkipRestore = aliases.Matches(item.IgnoreRestore, dev) || aliases.Matches(item.Ignore, dev)

	if !r.HasLocalPath() {
		r.SkipCollect = true
		r.SkipRestore = true
	}
	return r
}

// localPath picks the device-specific source, else the default source.
// Tokens are visited in sorted order so that two tokens resolving to the same
// id always yield the same path.
func localPath(item config.Item, dev string, aliases device.Aliases) string {
	if dev != device.Unknown && len(item.Sources) > 0 {
		tokens := make([]string, 0, len(item.Sources))
		for tok := range item.Sources {
			tokens = append(tokens, tok)
		}
		sort.Strings(tokens)
		for _, tok := range tokens {
			if aliases.Resolve(tok) == dev {
				return item.Sources[tok]
			}
		}
	}
	return item.DefaultSource
}
