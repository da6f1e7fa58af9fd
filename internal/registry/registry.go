// Package registry holds the table mapping public model names to upstream
// (provider, model) targets.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"ollama-bridge/internal/providers"
)

var (
	ErrUnknownModel        = errors.New("unknown model")
	ErrProviderUnavailable = errors.New("provider has no configured credential")
)

// Entry maps a public model name to its upstream target.
type Entry struct {
	Name     string
	Provider providers.Kind
	Model    string
}

type fileEntry struct {
	Provider providers.Kind `json:"provider"`
	Model    string         `json:"model"`
}

// Registry is the immutable name → target table, built once at startup and
// safe for unsynchronized concurrent reads afterwards.
type Registry struct {
	entries []Entry
	index   map[string]Entry
	active  providers.Set
}

func builtinTable() map[string]fileEntry {
	return map[string]fileEntry{
		"gpt-4o":       {Provider: providers.KindOpenAI, Model: "gpt-4o"},
		"gpt-4o-mini":  {Provider: providers.KindOpenAI, Model: "gpt-4o-mini"},
		"gemini-pro":   {Provider: providers.KindGoogle, Model: "gemini-2.5-pro"},
		"gemini-flash": {Provider: providers.KindGoogle, Model: "gemini-2.5-flash"},
		"llama3":       {Provider: providers.KindOpenRouter, Model: "meta-llama/llama-3.3-70b-instruct"},
		"deepseek-r1":  {Provider: providers.KindOpenRouter, Model: "deepseek/deepseek-r1"},
	}
}

// Load builds the registry from the model-table file at path when it exists,
// otherwise from the built-in table. The two are never merged, and a
// malformed file aborts startup rather than silently falling back — that
// could mask operator error.
func Load(path string, active providers.Set) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return newRegistry(builtinTable(), active), nil
		}

		return nil, fmt.Errorf("read model table %s: %w", path, err)
	}

	var table map[string]fileEntry
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse model table %s: %w", path, err)
	}

	for name, fe := range table {
		switch fe.Provider {
		case providers.KindOpenAI, providers.KindGoogle, providers.KindOpenRouter:
		default:
			return nil, fmt.Errorf("model table %s: entry %q has unknown provider %q", path, name, fe.Provider)
		}

		if fe.Model == "" {
			return nil, fmt.Errorf("model table %s: entry %q has no upstream model", path, name)
		}
	}

	return newRegistry(table, active), nil
}

func newRegistry(table map[string]fileEntry, active providers.Set) *Registry {
	r := &Registry{
		index:  make(map[string]Entry, len(table)),
		active: active,
	}

	for name, fe := range table {
		entry := Entry{Name: name, Provider: fe.Provider, Model: fe.Model}
		r.index[name] = entry
		r.entries = append(r.entries, entry)
	}

	sort.Slice(r.entries, func(i, j int) bool { return r.entries[i].Name < r.entries[j].Name })

	return r
}

// Resolve looks up a public model name, case-sensitive exact match. The
// provider's credential presence is checked at resolution time, not at load
// time, so a table may legitimately reference inactive providers.
func (r *Registry) Resolve(name string) (Entry, error) {
	entry, ok := r.index[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}

	if !r.active.Has(entry.Provider) {
		return Entry{}, fmt.Errorf("%w: %q requires %s", ErrProviderUnavailable, name, entry.Provider)
	}

	return entry, nil
}

// Entries returns every entry in name order.
func (r *Registry) Entries() []Entry {
	return r.entries
}

// Active returns the entries whose provider has an active adapter, in name
// order. Credentials are only checked against the startup set; keys revoked
// after startup are not revalidated.
func (r *Registry) Active() []Entry {
	var out []Entry

	for _, e := range r.entries {
		if r.active.Has(e.Provider) {
			out = append(out, e)
		}
	}

	return out
}
