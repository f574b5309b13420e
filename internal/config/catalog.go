package config

import (
	_ "embed"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"finresearch/internal/errors"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Entity is a company the system knows documents and market data for
type Entity struct {
	Name    string   `yaml:"name"`
	Ticker  string   `yaml:"ticker"`
	Aliases []string `yaml:"aliases"`
}

// Catalog is the known vocabulary: entities and the fiscal years indexed
// for document retrieval.
type Catalog struct {
	Entities []Entity `yaml:"entities"`
	Years    []int    `yaml:"years"`
}

// LoadCatalog reads a YAML catalog from path, or the built-in one when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read catalog %s", path)
		}
		data = raw
	}
	return ParseCatalog(data)
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseCatalog decodes and validates catalog YAML
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if len(c.Entities) == 0 {
		return nil, errors.ConfigInvalid("catalog has no entities")
	}
	if len(c.Years) == 0 {
		return nil, errors.ConfigInvalid("catalog has no years")
	}
	for i, e := range c.Entities {
		if e.Name == "" || e.Ticker == "" {
			return nil, errors.ConfigInvalid("catalog entity needs name and ticker")
		}
		aliases := make([]string, 0, len(e.Aliases))
		for _, a := range e.Aliases {
			if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
				aliases = append(aliases, a)
			}
		}
		c.Entities[i].Aliases = aliases
	}
	return &c, nil
}

// EntityNames returns entity names in catalog order
func (c *Catalog) EntityNames() []string {
	names := make([]string, len(c.Entities))
	for i, e := range c.Entities {
		names[i] = e.Name
	}
	return names
}

// AllYears returns a copy of the indexed years
func (c *Catalog) AllYears() []int {
	return append([]int(nil), c.Years...)
}

// CanonicalEntity resolves a name, ticker or alias to the catalog entity name.
func (c *Catalog) CanonicalEntity(s string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return "", false
	}
	for _, e := range c.Entities {
		if strings.ToLower(e.Name) == key || strings.ToLower(e.Ticker) == key {
			return e.Name, true
		}
		for _, a := range e.Aliases {
			if a == key {
				return e.Name, true
			}
		}
	}
	return "", false
}

// HasYear reports whether year is indexed
func (c *Catalog) HasYear(year int) bool {
	for _, y := range c.Years {
		if y == year {
			return true
		}
	}
	return false
}

// TickersIn returns the tickers whose aliases occur in text, case-insensitively,
// in catalog order without duplicates.
func (c *Catalog) TickersIn(text string) []string {
	lower := strings.ToLower(text)
	var tickers []string
	for _, e := range c.Entities {
		for _, a := range e.Aliases {
			if strings.Contains(lower, a) {
				tickers = append(tickers, e.Ticker)
				break
			}
		}
	}
	return tickers
}
