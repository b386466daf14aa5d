package services

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/roomviz-backend/internal/platform/logger"
)

//go:embed catalog_default.yaml
var defaultCatalog []byte

type MaterialCategory string

const (
	CategoryQuickPick MaterialCategory = "quick_pick"
	CategorySponsored MaterialCategory = "sponsored"
)

type Material struct {
	ID          string           `yaml:"id" json:"id"`
	Name        string           `yaml:"name" json:"name"`
	Kind        string           `yaml:"kind" json:"kind"`
	Category    MaterialCategory `yaml:"category" json:"category"`
	Sponsor     string           `yaml:"sponsor,omitempty" json:"sponsor,omitempty"`
	PricePerM2  float64          `yaml:"price_per_m2" json:"price_per_m2"`
	Description string           `yaml:"description,omitempty" json:"description,omitempty"`
	ImageURL    string           `yaml:"image_url,omitempty" json:"image_url,omitempty"`
}

func (m Material) Sponsored() bool { return m.Category == CategorySponsored }

type catalogFile struct {
	Currency        string     `yaml:"currency"`
	PaintPricePerM2 float64    `yaml:"paint_price_per_m2"`
	Materials       []Material `yaml:"materials"`
}

type Catalog interface {
	Lookup(id string) (Material, bool)
	DisplayName(id string) (string, bool)
	List(kind string) []Material
	Currency() string
	PaintPricePerM2() float64
}

type catalog struct {
	file catalogFile
	byID map[string]Material
}

// LoadCatalog reads the material catalog from path, or the built-in one when path is empty.
func LoadCatalog(log *logger.Logger, path string) (Catalog, error) {
	raw := defaultCatalog
	if p := strings.TrimSpace(path); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		raw = b
	}
	c, err := ParseCatalog(raw)
	if err != nil {
		return nil, err
	}
	log.With("service", "Catalog").Info("Material catalog loaded", "path", path, "materials", len(c.(*catalog).byID))
	return c, nil
}

func ParseCatalog(raw []byte) (Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if f.Currency == "" {
		f.Currency = "USD"
	}
	c := &catalog{file: f, byID: make(map[string]Material, len(f.Materials))}
	for _, m := range f.Materials {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			return nil, fmt.Errorf("catalog material %q has no id", m.Name)
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("duplicate catalog material id %q", id)
		}
		switch m.Category {
		case CategoryQuickPick, CategorySponsored:
		case "":
			m.Category = CategoryQuickPick
		default:
			return nil, fmt.Errorf("catalog material %q: unknown category %q", id, m.Category)
		}
		if m.Category == CategorySponsored && strings.TrimSpace(m.Sponsor) == "" {
			return nil, fmt.Errorf("sponsored material %q needs a sponsor", id)
		}
		m.ID = id
		c.byID[id] = m
	}
	return c, nil
}

func (c *catalog) Lookup(id string) (Material, bool) {
	m, ok := c.byID[strings.TrimSpace(id)]
	return m, ok
}

func (c *catalog) DisplayName(id string) (string, bool) {
	m, ok := c.Lookup(id)
	if !ok {
		return "", false
	}
	return m.Name, true
}

// List returns materials of one kind (or all when kind is empty), sponsored first.
func (c *catalog) List(kind string) []Material {
	out := make([]Material, 0, len(c.byID))
	for _, m := range c.byID {
		if kind == "" || m.Kind == kind {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sponsored() != out[j].Sponsored() {
			return out[i].Sponsored()
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (c *catalog) Currency() string { return c.file.Currency }

func (c *catalog) PaintPricePerM2() float64 { return c.file.PaintPricePerM2 }
