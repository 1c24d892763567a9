package dc

import "fmt"

// InventoryIndex is the read-only stock oracle consulted when deriving line
// availability. Lookup resolves a (productName, category, level) key through
// the fallback chain owned by the warehouse package: exact key first, then
// (productName, category), then productName alone. A miss returns ok=false
// and the caller treats stock as zero.
type InventoryIndex interface {
	Lookup(productName, category, level string) (stock int64, ok bool)
}

// lineDriver returns the multiplier used for a line total. Early in the
// pipeline the client commitment is sized by cohort strength; once a challan
// is accepted into fulfilment the shippable quantity drives the money.
func lineDriver(status DCStatus, l ProductLine) int64 {
	switch status {
	case StatusCreated, StatusPOSubmitted, StatusSaved, StatusRequested:
		return l.Strength
	default:
		return l.Quantity
	}
}

// ReconcileTotals recomputes every line total and the challan roll-ups.
//
// Supplied totals are never trusted: whatever the caller sent, the computed
// value wins. Quantity inconsistencies (negative remaining, deliverable above
// availability) are flagged with ErrInconsistentQuantity and left uncorrected
// for the reviewer; the roll-ups are still written so the reviewer sees the
// offending numbers.
func ReconcileTotals(dc *DeliveryChallan) error {
	var requested, available, deliverable int64
	var inconsistent []int
	for i := range dc.Lines {
		l := &dc.Lines[i]
		l.Total = l.Price * float64(lineDriver(dc.Status, *l))
		requested += l.Quantity
		if l.AvailabilityDerived() {
			avail := *l.AvailableQuantity
			l.RemainingQuantity = avail - l.DeliverableQuantity
			if l.DeliverableQuantity > avail || l.RemainingQuantity < 0 {
				inconsistent = append(inconsistent, i+1)
			}
			available += avail
			deliverable += l.DeliverableQuantity
		}
	}
	dc.RequestedQuantity = requested
	dc.AvailableQuantity = available
	dc.DeliverableQuantity = deliverable
	if len(inconsistent) > 0 {
		return fmt.Errorf("%w: lines %v", ErrInconsistentQuantity, inconsistent)
	}
	return nil
}

// DeriveAvailability snapshots warehouse stock onto a line. Pure over the
// given index, so re-running it against the same snapshot is idempotent; the
// caller persists the result.
//
// A lookup miss is not an error: the line gets zero availability and the
// challan heads towards hold through the normal sufficiency checks.
func DeriveAvailability(l ProductLine, idx InventoryIndex) ProductLine {
	name := l.ProductName
	if name == "" {
		name = l.Product
	}
	stock, ok := idx.Lookup(name, l.Category, l.Level)
	if !ok {
		stock = 0
	}
	avail := stock
	l.AvailableQuantity = &avail
	l.DeliverableQuantity = min(l.Quantity, avail)
	l.RemainingQuantity = avail - l.DeliverableQuantity
	return l
}

// DeriveAllAvailability derives every line on the challan against one
// snapshot and refreshes the roll-ups.
func DeriveAllAvailability(dc *DeliveryChallan, idx InventoryIndex) error {
	for i := range dc.Lines {
		dc.Lines[i] = DeriveAvailability(dc.Lines[i], idx)
	}
	return ReconcileTotals(dc)
}

// ValidateNewLines checks the line set required to open a challan: at least
// one line, each with positive quantity and strength.
func ValidateNewLines(lines []ProductLine) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: at least one product line required", ErrInvalidTransition)
	}
	for i, l := range lines {
		if l.Product == "" && l.ProductName == "" {
			return fmt.Errorf("%w: line %d has no product", ErrInvalidTransition, i+1)
		}
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: line %d quantity must be positive", ErrInvalidTransition, i+1)
		}
		if l.Strength <= 0 {
			return fmt.Errorf("%w: line %d strength must be positive", ErrInvalidTransition, i+1)
		}
	}
	return nil
}
