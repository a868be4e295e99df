package catalog

import (
	"fmt"

	"github.com/af-corp/aegis-dispatch/internal/config"
)

// FromConfig builds a catalog from catalog.yaml entries, preserving file order.
func FromConfig(cfg *config.CatalogConfig) (*Catalog, error) {
	c := New()
	for i, e := range cfg.Models {
		err := c.Register(ModelConfig{
			Name:        e.Name,
			Description: e.Description,
			Cost:        e.Cost,
			Speed:       e.Speed,
			Quality:     e.Quality,
		})
		if err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
	}
	return c, nil
}
