// Package niches holds the catalog of supported business niches.
package niches

import (
	_ "embed"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DefaultKey is the fallback entry. It is never listed publicly.
const DefaultKey = "default"

//go:embed niches.yaml
var embedded []byte

// Niche describes one business category.
type Niche struct {
	Label          string   `yaml:"label" json:"label"`
	SearchTerm     string   `yaml:"search_term" json:"-"`
	CommonServices []string `yaml:"common_services" json:"common_services"`
}

// Catalog maps niche keys to their descriptions.
type Catalog struct {
	entries map[string]Niche
}

// Load reads the catalog at path, or the embedded catalog when path is
// empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(embedded)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reading niche catalog %s", path)
	}
	return Parse(data)
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(embedded)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse decodes a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string]Niche
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "parsing niche catalog")
	}
	entries := make(map[string]Niche, len(raw))
	for key, n := range raw {
		key = normalizeKey(key)
		if n.Label == "" {
			n.Label = key
		}
		if n.CommonServices == nil {
			n.CommonServices = []string{}
		}
		entries[key] = n
	}
	return &Catalog{entries: entries}, nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Lookup returns the entry for key. Unknown keys get the default entry
// labelled with the key itself; ok reports whether key was found.
func (c *Catalog) Lookup(key string) (Niche, bool) {
	k := normalizeKey(key)
	if n, ok := c.entries[k]; ok && k != DefaultKey {
		return n, true
	}
	n, ok := c.entries[DefaultKey]
	if !ok {
		n = Niche{CommonServices: []string{}}
	}
	if label := strings.TrimSpace(key); label != "" {
		n.Label = label
	}
	return n, false
}

// SearchTerm returns the maps query term for key. Unknown niches are
// searched verbatim.
func (c *Catalog) SearchTerm(key string) string {
	if n, ok := c.Lookup(key); ok && n.SearchTerm != "" {
		return n.SearchTerm
	}
	return strings.TrimSpace(key)
}

// Public returns every entry except the default.
func (c *Catalog) Public() map[string]Niche {
	out := make(map[string]Niche, len(c.entries))
	for key, n := range c.entries {
		if key != DefaultKey {
			out[key] = n
		}
	}
	return out
}

// Keys returns the public keys in sorted order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		if key != DefaultKey {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
