package device

import (
	"sort"
)

// Aliases maps human-readable names to device ids.
type Aliases struct {
	byName map[string]string
	byID   map[string]string
}

// NewAliases builds the lookup tables from the configured name → id table.
// When several names alias the same id, NameOf reports the lexicographically
// first one.
func NewAliases(table map[string]string) Aliases {
	a := Aliases{
		byName: make(map[string]string, len(table)),
		byID:   make(map[string]string, len(table)),
	}
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		id := table[name]
		a.byName[name] = id
		if _, ok := a.byID[id]; !ok {
			a.byID[id] = name
		}
	}
	return a
}

// Resolve returns the aliased id when token names an alias, otherwise token
// itself. Unknown aliases are not an error.
func (a Aliases) Resolve(token string) string {
	if id, ok := a.byName[token]; ok {
		return id
	}
	return token
}

// NameOf returns the alias registered for id, for display only.
func (a Aliases) NameOf(id string) (string, bool) {
	name, ok := a.byID[id]
	return name, ok
}

// Display renders id with its alias when one exists.
func (a Aliases) Display(id string) string {
	if id == Unknown {
		return "<unknown device>"
	}
	if name, ok := a.NameOf(id); ok {
		return name + " (" + id + ")"
	}
	return id
}

// Matches reports whether any token resolves to id. The unknown device
// matches nothing.
func (a Aliases) Matches(tokens []string, id string) bool {
	if id == Unknown {
		return false
	}
	for _, tok := range tokens {
		if a.Resolve(tok) == id {
			return true
		}
	}
	return false
}
