package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merx/internal/core/apperror"
	"merx/internal/core/entity"
	"merx/internal/core/id"
	"merx/internal/domain/lots"
)

func makeLot(number string, quantity int64) *lots.Lot {
	return &lots.Lot{
		BaseEntity: entity.NewBaseEntity(),
		ProductID:  id.New(),
		LotNumber:  number,
		Quantity:   quantity,
	}
}

func TestAllocation_StateProgression(t *testing.T) {
	lotA := makeLot("A", 5)
	a := New(lotA.ProductID)
	assert.Equal(t, StateUnselected, a.State())

	a.SetLine(lotA.ID, 3)
	assert.Equal(t, StateSelecting, a.State())

	require.NoError(t, a.Validate([]*lots.Lot{lotA}))
	assert.Equal(t, StateValid, a.State())

	require.NoError(t, a.MarkCommitted())
	assert.Equal(t, StateCommitted, a.State())

	// Committed allocations cannot be re-validated or re-committed.
	assert.Error(t, a.Validate([]*lots.Lot{lotA}))
	assert.Error(t, a.MarkCommitted())
}

func TestAllocation_ExceedsLotStockNamesLot(t *testing.T) {
	lotA := makeLot("A", 5)
	lotB := makeLot("B", 3)

	a := New(lotA.ProductID)
	a.SetLine(lotA.ID, 2)
	a.SetLine(lotB.ID, 6)

	err := a.Validate([]*lots.Lot{lotA, lotB})
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeExceedsLotStock, appErr.Code)
	assert.Equal(t, "B", appErr.Details["lot_number"])
	assert.Equal(t, int64(6), appErr.Details["requested"])
	assert.Equal(t, int64(3), appErr.Details["available"])

	// Failed validation leaves the allocation editable.
	assert.Equal(t, StateSelecting, a.State())
}

func TestAllocation_FullLotIsAllowed(t *testing.T) {
	lotA := makeLot("A", 5)
	a := New(lotA.ProductID)
	a.SetLine(lotA.ID, 5)

	require.NoError(t, a.Validate([]*lots.Lot{lotA}))
	assert.Equal(t, int64(5), a.Total())
}

func TestAllocation_NoQuantitySelected(t *testing.T) {
	lotA := makeLot("A", 5)
	lotB := makeLot("B", 3)

	a := New(lotA.ProductID)
	a.SetLine(lotA.ID, 0)
	a.SetLine(lotB.ID, 0)

	err := a.Validate([]*lots.Lot{lotA, lotB})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeNoQuantitySelected))
}

func TestAllocation_UnknownLotRejected(t *testing.T) {
	lotA := makeLot("A", 5)
	a := New(lotA.ProductID)
	a.SetLine(id.New(), 1)

	err := a.Validate([]*lots.Lot{lotA})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestAllocation_SetAndRemoveLines(t *testing.T) {
	lotA := makeLot("A", 5)
	lotB := makeLot("B", 3)

	a := New(lotA.ProductID)
	a.SetLine(lotA.ID, 2)
	a.SetLine(lotB.ID, 1)
	a.SetLine(lotA.ID, 4) // replace, not append
	assert.Len(t, a.Lines(), 2)
	assert.Equal(t, int64(5), a.Total())

	a.RemoveLine(lotB.ID)
	assert.Equal(t, int64(4), a.Total())

	a.RemoveLine(lotA.ID)
	assert.Equal(t, StateUnselected, a.State())
}
