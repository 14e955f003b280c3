package prompts

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// PromptRegistry holds every registered version of each prompt. Callers
// always get the newest one; older versions stay registered so a rollback is
// a one-line change in assistant.go.
type PromptRegistry struct {
	mu      sync.RWMutex
	prompts map[string][]*Prompt // ID -> versions, newest last
}

var (
	defaultRegistry     *PromptRegistry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the registry the assistant prompts are loaded into.
func DefaultRegistry() *PromptRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewPromptRegistry()
	})
	return defaultRegistry
}

func NewPromptRegistry() *PromptRegistry {
	return &PromptRegistry{prompts: make(map[string][]*Prompt)}
}

// Register adds p, replacing a prompt with the same ID and version.
func (r *PromptRegistry) Register(p *Prompt) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	versions := slices.DeleteFunc(r.prompts[p.ID], func(q *Prompt) bool { return q.Version == p.Version })
	versions = append(versions, p)
	slices.SortStableFunc(versions, func(a, b *Prompt) int { return compareVersions(a.Version, b.Version) })
	r.prompts[p.ID] = versions
}

// Latest returns the newest version of the prompt.
func (r *PromptRegistry) Latest(id string) (*Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.prompts[id]
	if len(versions) == 0 {
		return nil, fmt.Errorf("prompt not found: %s", id)
	}
	return versions[len(versions)-1], nil
}

// MustLatest is Latest for prompts registered by this package at init.
func (r *PromptRegistry) MustLatest(id string) *Prompt {
	p, err := r.Latest(id)
	if err != nil {
		panic(err)
	}
	return p
}

// compareVersions orders dotted numeric versions ("1.10.0" > "1.9.2").
// Non-numeric parts compare as strings.
func compareVersions(a, b PromptVersion) int {
	as, bs := strings.Split(string(a), "."), strings.Split(string(b), ".")
	for i := 0; i < max(len(as), len(bs)); i++ {
		var x, y string
		if i < len(as) {
			x = as[i]
		}
		if i < len(bs) {
			y = bs[i]
		}
		xn, xerr := strconv.Atoi(x)
		yn, yerr := strconv.Atoi(y)
		if xerr == nil && yerr == nil {
			if c := xn - yn; c != 0 {
				return c
			}
			continue
		}
		if c := strings.Compare(x, y); c != 0 {
			return c
		}
	}
	return 0
}
