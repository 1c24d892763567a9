package warehouse

import "strings"

const keySep = "\x1f"

// Index is an immutable stock lookup built from one inventory snapshot.
//
// Lookup walks the fallback chain from most to least specific:
// (productName, category, level), then (productName, category), then
// productName alone. The first populated tier wins. The partial tiers hold
// stock summed across the rows they collapse, so a line that omits level
// sees the total on hand across levels.
type Index struct {
	exact     map[string]int64
	byNameCat map[string]int64
	byName    map[string]int64
}

// NewIndex builds the lookup from a snapshot of items.
func NewIndex(items []Item) *Index {
	idx := &Index{
		exact:     make(map[string]int64, len(items)),
		byNameCat: make(map[string]int64, len(items)),
		byName:    make(map[string]int64, len(items)),
	}
	for _, it := range items {
		it = it.Normalize()
		idx.exact[join(it.ProductName, it.Category, it.Level)] += it.CurrentStock
		idx.byNameCat[join(it.ProductName, it.Category)] += it.CurrentStock
		idx.byName[it.ProductName] += it.CurrentStock
	}
	return idx
}

func join(parts ...string) string {
	return strings.Join(parts, keySep)
}

// Lookup resolves stock for the key, reporting whether any tier matched.
func (x *Index) Lookup(productName, category, level string) (int64, bool) {
	name := NormalizeKey(productName)
	cat := NormalizeKey(category)
	lvl := NormalizeKey(level)

	if stock, ok := x.exact[join(name, cat, lvl)]; ok {
		return stock, true
	}
	if stock, ok := x.byNameCat[join(name, cat)]; ok {
		return stock, true
	}
	if stock, ok := x.byName[name]; ok {
		return stock, true
	}
	return 0, false
}

// Len reports how many distinct exact keys the snapshot holds.
func (x *Index) Len() int {
	return len(x.exact)
}
