package summarization

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/codebuildervaibhav/video-summarizer/internal/config"
)

// ErrUnknownModel is returned for a summary model name not in the catalog.
var ErrUnknownModel = errors.New("unknown summary model")

// BuildFunc constructs the Generator for a catalog entry.
type BuildFunc func(ctx context.Context, entry config.ModelEntry) (Generator, error)

// Catalog resolves summary model names to generators, building each on first use.
type Catalog struct {
	entries []config.ModelEntry
	build   BuildFunc

	mu   sync.Mutex
	gens map[string]Generator
}

func NewCatalog(entries []config.ModelEntry, build BuildFunc) *Catalog {
	return &Catalog{
		entries: entries,
		build:   build,
		gens:    make(map[string]Generator),
	}
}

// Names lists the model names in declaration order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		names = append(names, e.Name)
	}
	return names
}

// Has reports whether name is declared.
func (c *Catalog) Has(name string) bool {
	_, ok := c.entry(name)
	return ok
}

func (c *Catalog) entry(name string) (config.ModelEntry, bool) {
	for _, e := range c.entries {
		if e.Name == name {
			return e, true
		}
	}
	return config.ModelEntry{}, false
}

// Get returns the generator for name. A failed build is not cached.
func (c *Catalog) Get(ctx context.Context, name string) (Generator, error) {
	entry, ok := c.entry(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen, ok := c.gens[name]; ok {
		return gen, nil
	}
	gen, err := c.build(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("load model %q: %w", name, err)
	}
	c.gens[name] = gen
	return gen, nil
}
