// Package allocation maps a requested exit quantity onto specific lots,
// validating availability and producing the lot deltas to persist.
package allocation

import (
	"merx/internal/core/apperror"
	"merx/internal/core/id"
	"merx/internal/domain/lots"
)

// State tracks the lifecycle of one exit line's lot selection.
type State string

const (
	// StateUnselected: no lot rows chosen yet.
	StateUnselected State = "unselected"
	// StateSelecting: rows are being edited, not yet validated.
	StateSelecting State = "selecting"
	// StateValid: every row fits its lot and the total is positive.
	StateValid State = "valid"
	// StateCommitted: deductions have been written.
	StateCommitted State = "committed"
)

// Line is one (lot, quantity) selection row.
type Line struct {
	LotID    id.ID `json:"lotId"`
	Quantity int64 `json:"quantity"`
}

// Allocation is the selection for a single product exit.
// Validation never mutates lots; the ledger applies the deductions inside
// its transaction after re-validating against freshly locked rows.
type Allocation struct {
	productID id.ID
	state     State
	lines     []Line
}

// New creates an empty allocation for a product.
func New(productID id.ID) *Allocation {
	return &Allocation{
		productID: productID,
		state:     StateUnselected,
	}
}

// FromLines builds an allocation pre-populated with selection rows,
// as supplied by a checkout request.
func FromLines(productID id.ID, selected []Line) *Allocation {
	a := New(productID)
	for _, l := range selected {
		a.SetLine(l.LotID, l.Quantity)
	}
	return a
}

// ProductID returns the product this allocation is for.
func (a *Allocation) ProductID() id.ID { return a.productID }

// State returns the current lifecycle state.
func (a *Allocation) State() State { return a.state }

// Lines returns a copy of the current selection rows.
func (a *Allocation) Lines() []Line {
	out := make([]Line, len(a.lines))
	copy(out, a.lines)
	return out
}

// SetLine adds or replaces a selection row for the lot.
// Any edit drops the allocation back to Selecting.
func (a *Allocation) SetLine(lotID id.ID, quantity int64) {
	for i := range a.lines {
		if a.lines[i].LotID == lotID {
			a.lines[i].Quantity = quantity
			a.state = StateSelecting
			return
		}
	}
	a.lines = append(a.lines, Line{LotID: lotID, Quantity: quantity})
	a.state = StateSelecting
}

// RemoveLine drops the selection row for the lot.
func (a *Allocation) RemoveLine(lotID id.ID) {
	for i := range a.lines {
		if a.lines[i].LotID == lotID {
			a.lines = append(a.lines[:i], a.lines[i+1:]...)
			break
		}
	}
	if len(a.lines) == 0 {
		a.state = StateUnselected
		return
	}
	a.state = StateSelecting
}

// Total returns the summed quantity across all rows.
func (a *Allocation) Total() int64 {
	var total int64
	for _, l := range a.lines {
		total += l.Quantity
	}
	return total
}

// Validate checks every row against the supplied current lot state and
// transitions to Valid. The lots must be the product's live state (locked
// rows when called inside the commit transaction, not a stale snapshot).
//
// Fails with ExceedsLotStock naming the offending lot, with
// NoQuantitySelected on a zero total, and with validation errors for
// unknown lots or negative rows. State is left unchanged on failure.
func (a *Allocation) Validate(available []*lots.Lot) error {
	if a.state == StateCommitted {
		return apperror.NewConflict("allocation already committed")
	}

	byID := make(map[id.ID]*lots.Lot, len(available))
	for _, l := range available {
		byID[l.ID] = l
	}

	for _, line := range a.lines {
		if line.Quantity < 0 {
			return apperror.NewValidation("allocation row quantity cannot be negative")
		}
		lot, ok := byID[line.LotID]
		if !ok {
			return apperror.NewNotFound("lot", line.LotID)
		}
		// Taking a lot down to exactly zero is allowed.
		if line.Quantity > lot.Quantity {
			return apperror.NewExceedsLotStock(
				lot.ID.String(), lot.LotNumber, line.Quantity, lot.Quantity)
		}
	}

	if a.Total() <= 0 {
		return apperror.NewNoQuantitySelected()
	}

	a.state = StateValid
	return nil
}

// MarkCommitted transitions a validated allocation to Committed.
func (a *Allocation) MarkCommitted() error {
	if a.state != StateValid {
		return apperror.NewConflict("allocation must be validated before commit")
	}
	a.state = StateCommitted
	return nil
}
