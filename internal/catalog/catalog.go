package catalog

import (
	"errors"
	"fmt"
	"strings"

	"headshot/internal/domain"
)

// ErrDuplicateID is returned when two presets share an id.
var ErrDuplicateID = errors.New("catalog: duplicate style id")

// StylePreset is an immutable style definition.
type StylePreset struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Instruction string `json:"-"`
	Custom      bool   `json:"is_custom"`
}

// Catalog is an ordered, read-only list of presets.
type Catalog struct {
	presets []StylePreset
	index   map[string]int
}

// New builds a catalog preserving the given order.
func New(presets ...StylePreset) (*Catalog, error) {
	c := &Catalog{
		presets: make([]StylePreset, 0, len(presets)),
		index:   make(map[string]int, len(presets)),
	}
	for _, p := range presets {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, errors.New("catalog: style id is required")
		}
		if _, ok := c.index[id]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		p.ID = id
		c.index[id] = len(c.presets)
		c.presets = append(c.presets, p)
	}
	return c, nil
}

// MustNew is New for static tables.
func MustNew(presets ...StylePreset) *Catalog {
	c, err := New(presets...)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns every preset in catalog order.
func (c *Catalog) All() []StylePreset {
	out := make([]StylePreset, len(c.presets))
	copy(out, c.presets)
	return out
}

// Standard returns the non-custom presets in catalog order.
func (c *Catalog) Standard() []StylePreset {
	out := make([]StylePreset, 0, len(c.presets))
	for _, p := range c.presets {
		if !p.Custom {
			out = append(out, p)
		}
	}
	return out
}

// Lookup resolves a preset by id.
func (c *Catalog) Lookup(id string) (StylePreset, error) {
	idx, ok := c.index[strings.TrimSpace(id)]
	if !ok {
		return StylePreset{}, fmt.Errorf("%w: %s", domain.ErrStyleNotFound, id)
	}
	return c.presets[idx], nil
}

// Len returns the number of presets.
func (c *Catalog) Len() int {
	return len(c.presets)
}
