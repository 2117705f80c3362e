package supervisor

import (
	"sort"
	"strings"
)

// Overlay is the environment handed to one child launch: a snapshot of the
// base environment with overrides applied. It is never mutated after
// construction; a new Overlay is built for every launch.
type Overlay struct {
	vars map[string]string
}

// NewOverlay merges overrides onto base, a list of KEY=VALUE pairs.
// Later layers win; within base the last occurrence of a key wins.
func NewOverlay(base []string, layers ...map[string]string) Overlay {
	vars := make(map[string]string, len(base))
	for _, kv := range base {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		vars[key] = value
	}
	for _, layer := range layers {
		for key, value := range layer {
			vars[key] = value
		}
	}
	return Overlay{vars: vars}
}

// Lookup returns the value for key.
func (o Overlay) Lookup(key string) (string, bool) {
	value, ok := o.vars[key]
	return value, ok
}

// Environ returns the overlay as sorted KEY=VALUE pairs.
func (o Overlay) Environ() []string {
	keys := make([]string, 0, len(o.vars))
	for key := range o.vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, key := range keys {
		env = append(env, key+"="+o.vars[key])
	}
	return env
}
