package round

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
)

// Map is one playable map reference within a category.
type Map struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Catalog groups maps by category key, e.g. "4" for four-versus-four maps.
type Catalog struct {
	categories map[string][]Map
	names      map[string]string
}

func NewCatalog(categories map[string][]Map) *Catalog {
	c := &Catalog{
		categories: make(map[string][]Map, len(categories)),
		names:      make(map[string]string),
	}
	for key, maps := range categories {
		c.categories[key] = append([]Map(nil), maps...)
		for _, m := range maps {
			if m.Value != "" && m.Name != "" {
				c.names[m.Value] = m.Name
			}
		}
	}
	return c
}

// ParseCatalog decodes `{ "<category>": [{"name": "...", "value": "..."}] }`.
func ParseCatalog(data []byte) (*Catalog, error) {
	var raw map[string][]Map
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode map catalog: %w", err)
	}
	return NewCatalog(raw), nil
}

func LoadCatalog(filePath string) (*Catalog, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read map catalog %s: %w", filePath, err)
	}
	return ParseCatalog(data)
}

func (c *Catalog) Maps(category string) []Map {
	if c == nil {
		return nil
	}
	return append([]Map(nil), c.categories[category]...)
}

func (c *Catalog) Categories() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.categories))
	for key := range c.categories {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// DisplayName returns the catalog name of a map reference, falling back to the
// last path segment of the reference.
func (c *Catalog) DisplayName(ref string) string {
	if c != nil {
		if name, ok := c.names[ref]; ok {
			return name
		}
	}
	trimmed := strings.TrimRight(ref, "/")
	if trimmed == "" {
		return ref
	}
	base := path.Base(trimmed)
	if idx := strings.IndexAny(base, "?#"); idx > 0 {
		base = base[:idx]
	}
	return strings.TrimSuffix(base, path.Ext(base))
}
