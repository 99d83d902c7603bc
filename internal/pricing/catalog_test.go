package pricing

import (
	"errors"
	"testing"
)

func testCatalog() *Catalog {
	return NewCatalog([]CatalogEntry{
		{ID: "a", Category: "vision", Label: "Item A", BaseUSDCents: 1500},
		{ID: "b", Category: "users", Label: "Item B", BaseUSDCents: 2000},
	})
}

func TestCatalogPriceFor(t *testing.T) {
	c := testCatalog()
	price, err := c.PriceFor("a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if price != 1500 {
		t.Fatalf("expected 1500, got %d", price)
	}
}

func TestCatalogUnknownItem(t *testing.T) {
	c := testCatalog()
	_, err := c.PriceFor("ghost")
	var unknown *ErrUnknownItem
	if !errors.As(err, &unknown) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
	if unknown.ID != "ghost" {
		t.Fatalf("error should name the offending id, got %q", unknown.ID)
	}
}

func TestCatalogTotalForDeduplicates(t *testing.T) {
	c := testCatalog()
	total, err := c.TotalFor([]string{"a", "b", "a", "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3500 {
		t.Fatalf("expected duplicate ids counted once (3500), got %d", total)
	}
}

func TestCatalogTotalForFailsOnUnknownID(t *testing.T) {
	c := testCatalog()
	if _, err := c.TotalFor([]string{"a", "ghost"}); err == nil {
		t.Fatal("expected error for unknown id in total computation")
	}
}

func TestCatalogEntriesSorted(t *testing.T) {
	c := testCatalog()
	entries := c.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != "a" || entries[1].ID != "b" {
		t.Fatalf("entries not sorted by id: %v", entries)
	}
}
