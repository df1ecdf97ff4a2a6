package modules

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var seedCatalog []byte

// Definition is a catalog entry. Code is opaque rendering source that is
// served to clients and never executed here.
type Definition struct {
	ID           string       `yaml:"id" json:"id"`
	Name         string       `yaml:"name" json:"name"`
	Description  string       `yaml:"description" json:"description"`
	Code         string       `yaml:"code" json:"code"`
	ConfigSchema ConfigSchema `yaml:"configSchema" json:"configSchema"`
	Category     string       `yaml:"category" json:"category"`
	Icon         string       `yaml:"icon" json:"icon"`
	Version      string       `yaml:"version" json:"version"`
	IsActive     bool         `yaml:"isActive" json:"isActive"`
	CreatedAt    time.Time    `yaml:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time    `yaml:"updatedAt" json:"updatedAt"`
}

// View is the listing shape of a Definition. Code is omitted unless the
// caller asked for it.
type View struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Code         *string      `json:"code,omitempty"`
	ConfigSchema ConfigSchema `json:"configSchema"`
	Category     string       `json:"category"`
	Icon         string       `json:"icon"`
	Version      string       `json:"version"`
	IsActive     bool         `json:"isActive"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

func (d Definition) View(includeCode bool) View {
	v := View{
		ID:           d.ID,
		Name:         d.Name,
		Description:  d.Description,
		ConfigSchema: d.ConfigSchema,
		Category:     d.Category,
		Icon:         d.Icon,
		Version:      d.Version,
		IsActive:     d.IsActive,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if includeCode {
		code := d.Code
		v.Code = &code
	}
	return v
}

type ListFilter struct {
	Category    string
	ActiveOnly  bool
	IncludeCode bool
}

// DefaultListFilter lists active modules without their code.
func DefaultListFilter() ListFilter {
	return ListFilter{ActiveOnly: true}
}

// Catalog is the read-only set of module definitions, kept in seed order.
type Catalog struct {
	defs []Definition
	byID map[string]int
}

type catalogFile struct {
	Modules []Definition `yaml:"modules"`
}

func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		defs: make([]Definition, 0, len(defs)),
		byID: make(map[string]int, len(defs)),
	}
	for i, def := range defs {
		def.ID = strings.TrimSpace(def.ID)
		if def.ID == "" {
			return nil, fmt.Errorf("module %d: id is required", i)
		}
		if _, dup := c.byID[def.ID]; dup {
			return nil, fmt.Errorf("module %q: duplicate id", def.ID)
		}
		c.byID[def.ID] = len(c.defs)
		c.defs = append(c.defs, def)
	}
	return c, nil
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode module catalog: %w", err)
	}
	return NewCatalog(file.Modules)
}

// Load returns the catalog at path, or the embedded seed when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(seedCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module catalog: %w", err)
	}
	return Parse(data)
}

func (c *Catalog) List(filter ListFilter) []View {
	out := make([]View, 0, len(c.defs))
	for _, def := range c.defs {
		if filter.Category != "" && def.Category != filter.Category {
			continue
		}
		if filter.ActiveOnly && !def.IsActive {
			continue
		}
		out = append(out, def.View(filter.IncludeCode))
	}
	return out
}

// FindActiveByID returns the definition only when it exists and is active.
func (c *Catalog) FindActiveByID(id string) (Definition, bool) {
	def, ok := c.FindByID(id)
	if !ok || !def.IsActive {
		return Definition{}, false
	}
	return def, true
}

func (c *Catalog) FindByID(id string) (Definition, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return Definition{}, false
	}
	return c.defs[idx], true
}

func (c *Catalog) Len() int {
	return len(c.defs)
}

// Counts reports how many definitions exist per category and active flag.
func (c *Catalog) Counts() []CategoryCount {
	counts := map[CategoryCount]int{}
	for _, def := range c.defs {
		counts[CategoryCount{Category: def.Category, Active: def.IsActive}]++
	}
	out := make([]CategoryCount, 0, len(counts))
	for key, n := range counts {
		key.Count = n
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return !out[i].Active && out[j].Active
	})
	return out
}

type CategoryCount struct {
	Category string
	Active   bool
	Count    int
}
