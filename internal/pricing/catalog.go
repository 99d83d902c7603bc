/**
 * @description
 * The assisted-service price catalog. This is the only source of truth for
 * what a line item costs: checkout and project submission resolve prices from
 * here by id and ignore any price fields the client sends. A client can
 * choose WHAT to buy, never what it costs.
 */

package pricing

import (
	"fmt"
	"sort"
)

// CatalogEntry describes one purchasable assisted-service offering.
type CatalogEntry struct {
	ID           string
	Category     string
	Label        string
	BaseUSDCents int64
}

// Catalog resolves line-item ids to authoritative prices.
type Catalog struct {
	entries map[string]CatalogEntry
}

// ErrUnknownItem is returned when a submitted line-item id has no catalog entry.
type ErrUnknownItem struct {
	ID string
}

func (e *ErrUnknownItem) Error() string {
	return fmt.Sprintf("unknown assisted-service item %q", e.ID)
}

// NewCatalog builds a catalog from the given entries. Later duplicates of an
// id win, which lets deployments override defaults.
func NewCatalog(entries []CatalogEntry) *Catalog {
	m := make(map[string]CatalogEntry, len(entries))
	for _, e := range entries {
		m[e.ID] = e
	}
	return &Catalog{entries: m}
}

// DefaultCatalog returns the built-in assisted-service offerings.
func DefaultCatalog() *Catalog {
	return NewCatalog([]CatalogEntry{
		{ID: "vision-workshop", Category: "vision", Label: "Product vision workshop", BaseUSDCents: 1500},
		{ID: "user-research", Category: "users", Label: "User research & personas", BaseUSDCents: 2000},
		{ID: "feature-mapping", Category: "functionality", Label: "Feature mapping session", BaseUSDCents: 2000},
		{ID: "backend-architecture", Category: "backend", Label: "Backend architecture review", BaseUSDCents: 2500},
		{ID: "brand-identity", Category: "identity", Label: "Brand identity package", BaseUSDCents: 3000},
		{ID: "deployment-setup", Category: "deployment", Label: "Deployment & hosting setup", BaseUSDCents: 2500},
	})
}

// Entry returns the catalog entry for id.
func (c *Catalog) Entry(id string) (CatalogEntry, error) {
	e, ok := c.entries[id]
	if !ok {
		return CatalogEntry{}, &ErrUnknownItem{ID: id}
	}
	return e, nil
}

// PriceFor returns the base USD price (in cents) for id.
func (c *Catalog) PriceFor(id string) (int64, error) {
	e, err := c.Entry(id)
	if err != nil {
		return 0, err
	}
	return e.BaseUSDCents, nil
}

// TotalFor sums the catalog prices of the given ids. Duplicate ids are
// counted once, mirroring the cart's duplicate-add rejection. Any unknown id
// fails the whole computation.
func (c *Catalog) TotalFor(ids []string) (int64, error) {
	seen := make(map[string]bool, len(ids))
	var total int64
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		price, err := c.PriceFor(id)
		if err != nil {
			return 0, err
		}
		total += price
	}
	return total, nil
}

// Entries returns all catalog entries sorted by id, for listing endpoints.
func (c *Catalog) Entries() []CatalogEntry {
	out := make([]CatalogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
