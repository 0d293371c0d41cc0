package device

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	gsberrors "git.home.luguber.info/inful/gsb/internal/errors"
)

func TestAliasesResolve(t *testing.T) {
	a := NewAliases(map[string]string{"laptop": "id-1", "desktop": "id-2"})

	require.Equal(t, "id-1", a.Resolve("laptop"))
	require.Equal(t, "id-2", a.Resolve("desktop"))
	require.Equal(t, "id-9", a.Resolve("id-9"), "unknown tokens resolve to themselves")
	require.Equal(t, "nope", a.Resolve("nope"))
}

func TestAliasesNameOf(t *testing.T) {
	a := NewAliases(map[string]string{"zeta": "id-1", "alpha": "id-1", "desktop": "id-2"})

	name, ok := a.NameOf("id-1")
	require.True(t, ok)
	require.Equal(t, "alpha", name)

	_, ok = a.NameOf("id-3")
	require.False(t, ok)

	require.Equal(t, "desktop (id-2)", a.Display("id-2"))
	require.Equal(t, "id-3", a.Display("id-3"))
	require.Equal(t, "<unknown device>", a.Display(Unknown))
}

func TestAliasesMatches(t *testing.T) {
	a := NewAliases(map[string]string{"laptop": "id-1"})

	require.True(t, a.Matches([]string{"laptop"}, "id-1"))
	require.True(t, a.Matches([]string{"x", "id-1"}, "id-1"))
	require.False(t, a.Matches([]string{"laptop"}, "id-2"))
	require.False(t, a.Matches(nil, "id-1"))
	require.False(t, a.Matches([]string{""}, Unknown), "unknown device never matches")
}

func TestIdentityCachesFirstResult(t *testing.T) {
	var calls atomic.Int32
	id := NewIdentity(ReaderFunc(func() (string, error) {
		calls.Add(1)
		return " abc123\n", nil
	}))

	for range 3 {
		got, err := id.ID()
		require.NoError(t, err)
		require.Equal(t, "abc123", got)
	}
	require.Equal(t, int32(1), calls.Load())
}

func TestIdentityUnavailable(t *testing.T) {
	id := NewIdentity(ReaderFunc(func() (string, error) {
		return "", errors.New("permission denied")
	}))

	_, err := id.ID()
	require.Error(t, err)
	require.True(t, gsberrors.IsCategory(err, gsberrors.CategoryIdentity))
	require.Equal(t, Unknown, id.IDOrUnknown(nil))

	empty := NewIdentity(ReaderFunc(func() (string, error) { return "  ", nil }))
	_, err = empty.ID()
	require.True(t, gsberrors.IsCategory(err, gsberrors.CategoryIdentity))
}
