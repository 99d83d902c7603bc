/**
 * @description
 * Session-scoped cart for assisted-service line items selected during the
 * onboarding wizard. The cart localizes each item's base USD price to the
 * session's detected country and keeps a derived total that is always the
 * sum of the current items' localized amounts.
 *
 * One Cart belongs to one onboarding session. It is created at the top of
 * the flow and handed to each page by reference rather than living as a
 * package-level singleton, so sessions reset cleanly and tests stay isolated.
 *
 * @notes
 * - Mutations and total recomputation happen inside one critical section, so
 *   no reader ever observes items in mixed currencies or a stale total.
 */

package cart

import (
	"sync"

	"github.com/devlaunch/onboarding-service/internal/domain"
	"github.com/devlaunch/onboarding-service/internal/pricing"
)

// ItemDefinition is the static description an assisted-service toggle binds
// to: what the item is, not what it currently costs in local terms.
type ItemDefinition struct {
	ID           string
	Category     string
	Label        string
	BaseUSDCents int64
}

// ItemPatch is a shallow update applied by UpdateItem. Nil fields are left
// untouched.
type ItemPatch struct {
	Category     *string
	Label        *string
	BaseUSDCents *int64
}

// Cart holds the selected line items for one onboarding session.
type Cart struct {
	mu          sync.Mutex
	countryCode string
	items       []domain.LineItem // insertion order preserved for display
	totalMinor  int64
	currency    string
}

// New creates an empty cart localizing to the given country code.
func New(countryCode string) *Cart {
	c := &Cart{countryCode: countryCode}
	c.recomputeLocked()
	return c
}

// AddItem localizes def at the cart's current country and appends it.
// Adding an id that is already present is a no-op.
func (c *Cart) AddItem(def ItemDefinition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.indexOfLocked(def.ID) >= 0 {
		return
	}
	lp := pricing.Localize(def.BaseUSDCents, c.countryCode)
	c.items = append(c.items, domain.LineItem{
		ID:            def.ID,
		Category:      def.Category,
		Label:         def.Label,
		BaseUSDCents:  def.BaseUSDCents,
		LocalAmount:   lp.AmountMinor,
		LocalCurrency: lp.Currency,
	})
	c.recomputeLocked()
}

// RemoveItem deletes the item with the given id if present.
func (c *Cart) RemoveItem(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOfLocked(id)
	if i < 0 {
		return
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.recomputeLocked()
}

// SetItemSelected is the single toggle entry point: selected adds the bound
// definition, deselected removes it by id. Both directions are no-ops when
// the cart is already in the requested state.
func (c *Cart) SetItemSelected(def ItemDefinition, selected bool) {
	if selected {
		c.AddItem(def)
		return
	}
	c.RemoveItem(def.ID)
}

// UpdateItem shallow-merges patch into the item with the given id. A price
// change re-localizes that item. No-op if the id is absent.
func (c *Cart) UpdateItem(id string, patch ItemPatch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOfLocked(id)
	if i < 0 {
		return
	}
	if patch.Category != nil {
		c.items[i].Category = *patch.Category
	}
	if patch.Label != nil {
		c.items[i].Label = *patch.Label
	}
	if patch.BaseUSDCents != nil {
		c.items[i].BaseUSDCents = *patch.BaseUSDCents
		lp := pricing.Localize(*patch.BaseUSDCents, c.countryCode)
		c.items[i].LocalAmount = lp.AmountMinor
		c.items[i].LocalCurrency = lp.Currency
	}
	c.recomputeLocked()
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = nil
	c.recomputeLocked()
}

// UpdateCurrency switches the cart to a new country and re-localizes every
// item plus the total before releasing the lock, so items never straddle two
// currencies observably.
func (c *Cart) UpdateCurrency(countryCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.countryCode = countryCode
	for i := range c.items {
		lp := pricing.Localize(c.items[i].BaseUSDCents, countryCode)
		c.items[i].LocalAmount = lp.AmountMinor
		c.items[i].LocalCurrency = lp.Currency
	}
	c.recomputeLocked()
}

// HasItem reports whether an item with the given id is in the cart.
func (c *Cart) HasItem(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexOfLocked(id) >= 0
}

// Items returns the line items in insertion order.
func (c *Cart) Items() []domain.LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.LineItem, len(c.items))
	copy(out, c.items)
	return out
}

// ItemIDs returns the ids of the current items in insertion order.
func (c *Cart) ItemIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, len(c.items))
	for i, it := range c.items {
		ids[i] = it.ID
	}
	return ids
}

// ItemsByCategory returns the items belonging to the given category.
func (c *Cart) ItemsByCategory(category string) []domain.LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []domain.LineItem
	for _, it := range c.items {
		if it.Category == category {
			out = append(out, it)
		}
	}
	return out
}

// Total returns the derived total in minor units of Currency.
func (c *Cart) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalMinor
}

// Currency returns the currency the cart is currently localized to.
func (c *Cart) Currency() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currency
}

// TotalUSDCents returns the total of the items' base USD prices, independent
// of display localization. This is what feeds checkout.
func (c *Cart) TotalUSDCents() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, it := range c.items {
		total += it.BaseUSDCents
	}
	return total
}

// TotalFormatted formats the aggregate base-USD total through the resolver,
// so a $35 cart in country NG renders as naira at the NG rate.
func (c *Cart) TotalFormatted() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var baseTotal int64
	for _, it := range c.items {
		baseTotal += it.BaseUSDCents
	}
	return pricing.Localize(baseTotal, c.countryCode).Formatted
}

// indexOfLocked returns the position of id in items, or -1. Callers hold mu.
func (c *Cart) indexOfLocked(id string) int {
	for i, it := range c.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// recomputeLocked rebuilds the derived total and currency from the current
// item set. Callers hold mu. The total is only ever this sum, so it cannot
// drift from the items.
func (c *Cart) recomputeLocked() {
	var total int64
	for _, it := range c.items {
		total += it.LocalAmount
	}
	c.totalMinor = total
	c.currency = pricing.Localize(0, c.countryCode).Currency
}
