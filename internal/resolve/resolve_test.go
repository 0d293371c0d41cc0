package resolve

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/gsb/internal/config"
	"git.home.luguber.info/inful/gsb/internal/device"
)

func TestResolve(t *testing.T) {
	aliases := device.NewAliases(map[string]string{"laptop": "id-laptop", "work": "id-work"})

	tests := []struct {
		name string
		item config.Item
		dev  string
		want ResolvedItem
	}{
		{
			name: "default source on unaliased device",
			item: config.Item{PathInRepo: "a", DefaultSource: "/a"},
			dev:  "id-other",
			want: ResolvedItem{RepoPath: "a", LocalPath: "/a"},
		},
		{
			name: "alias keyed source overrides default",
			item: config.Item{PathInRepo: "a", DefaultSource: "/a", Sources: map[string]string{"laptop": "/home/me/a"}},
			dev:  "id-laptop",
			want: ResolvedItem{RepoPath: "a", LocalPath: "/home/me/a"},
		},
		{
			name: "raw id keyed source",
			item: config.Item{PathInRepo: "a", Sources: map[string]string{"id-raw": "/raw/a"}},
			dev:  "id-raw",
			want: ResolvedItem{RepoPath: "a", LocalPath: "/raw/a"},
		},
		{
			name: "no source and no default is skipped both ways",
			item: config.Item{PathInRepo: "a", Sources: map[string]string{"laptop": "/x"}},
			dev:  "id-work",
			want: ResolvedItem{RepoPath: "a", SkipCollect: true, SkipRestore: true},
		},
		{
			name: "ignore_collect by alias",
			item: config.Item{PathInRepo: "a", DefaultSource: "/a", IgnoreCollect: []string{"work"}},
			dev:  "id-work",
			want: ResolvedItem{RepoPath: "a", LocalPath: "/a", SkipCollect: true},
		},
		{
			name: "ignore_restore by raw id",
			item: config.Item{PathInRepo: "a", DefaultSource: "/a", IgnoreRestore: []string{"id-work"}},
			dev:  "id-work",
			want: ResolvedItem{RepoPath: "a", LocalPath: "/a", SkipRestore: true},
		},
		{
			name: "ignore is a union with both directions",
			item: config.Item{PathInRepo: "a", DefaultSource: "/a", Ignore: []string{"laptop"}, IgnoreCollect: []string{"work"}},
			dev:  "id-laptop",
			want: ResolvedItem{RepoPath: "a", LocalPath: "/a", SkipCollect: true, SkipRestore: true},
		},
		{
			name: "hardlink flag copied verbatim",
			item: config.Item{PathInRepo: "a", DefaultSource: "/a", IsHardlink: true},
			dev:  "id-laptop",
			want: ResolvedItem{RepoPath: "a", LocalPath: "/a", IsHardlink: true},
		},
		{
			name: "unknown device uses default and ignores nothing",
			item: config.Item{PathInRepo: "a", DefaultSource: "/a", Sources: map[string]string{"": "/empty"}, Ignore: []string{""}},
			dev:  device.Unknown,
			want: ResolvedItem{RepoPath: "a", LocalPath: "/a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Resolve(tt.item, tt.dev, aliases))
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	aliases := device.NewAliases(map[string]string{"laptop": "id-1", "lap": "id-1"})
	item := config.Item{
		PathInRepo: "a",
		Sources:    map[string]string{"laptop": "/one", "lap": "/two", "id-1": "/three"},
		Ignore:     []string{"x"},
	}

	first := Resolve(item, "id-1", aliases)
	for range 50 {
		require.Equal(t, first, Resolve(item, "id-1", aliases))
	}
	require.Equal(t, "/three", first.LocalPath)
}
