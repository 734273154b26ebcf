package order

import (
	"math"
	"strings"
)

type Product struct {
	ID       string  `json:"_id"`
	Name     string  `json:"nombre"`
	Category string  `json:"categoria"`
	Price    float64 `json:"precio"`
}

// Catalog indexes products by id.
type Catalog map[string]Product

func NewCatalog(products []Product) Catalog {
	c := make(Catalog, len(products))
	for _, p := range products {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			continue
		}
		c[id] = p
	}
	return c
}

func (c Catalog) Lookup(id string) (Product, bool) {
	p, ok := c[strings.TrimSpace(id)]
	return p, ok
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
