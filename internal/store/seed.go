package store

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"bakery-pos/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed seed/catalog.yaml
var defaultCatalog []byte

// Catalog is the initial content of the catalog store
type Catalog struct {
	Categories []models.Category `yaml:"categories"`
	Products   []models.Product  `yaml:"products"`
}

// LoadCatalog reads a YAML catalog from path, or the built-in bakery catalog
// when path is empty
func LoadCatalog(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog file: %w", err)
		}
		data = b
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog
func ParseCatalog(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := catalog.validate(); err != nil {
		return nil, err
	}
	return &catalog, nil
}

func (c *Catalog) validate() error {
	categories := make(map[int64]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			return fmt.Errorf("category %d: %w", cat.ID, models.ErrEmptyName)
		}
		if categories[cat.ID] {
			return fmt.Errorf("duplicate category id %d", cat.ID)
		}
		categories[cat.ID] = true
	}

	products := make(map[int64]bool, len(c.Products))
	for _, p := range c.Products {
		if products[p.ID] {
			return fmt.Errorf("duplicate product id %d", p.ID)
		}
		products[p.ID] = true
		if !categories[p.CategoryID] {
			return fmt.Errorf("product %d references unknown category %d", p.ID, p.CategoryID)
		}
		if p.Price.IsNegative() || p.CurrentStock.IsNegative() ||
			!models.FitsPlaces(p.Price, models.MoneyPlaces) || !models.FitsPlaces(p.CurrentStock, models.QuantityPlaces) {
			return fmt.Errorf("product %d: %w", p.ID, models.ErrInvalidAmount)
		}
	}
	return nil
}
