package dto

import (
	"merx/internal/core/apperror"
	"merx/internal/core/id"
	"merx/internal/core/types"
	"merx/internal/domain/allocation"
	"merx/internal/domain/cart"
)

// CartLineRequest is one draft line in PUT /cart.
type CartLineRequest struct {
	ProductID   string           `json:"productId" binding:"required"`
	ProductName string           `json:"productName"`
	Quantity    int64            `json:"quantity" binding:"required"`
	UnitPrice   string           `json:"unitPrice" binding:"required"`
	Allocations []AllocationLine `json:"allocations"`
}

// SaveCartRequest replaces the operator's held cart.
type SaveCartRequest struct {
	Lines          []CartLineRequest `json:"lines"`
	Discount       string            `json:"discount"`
	AmountReceived string            `json:"amountReceived"`
}

// ToDraft converts the request into the domain draft.
func (r SaveCartRequest) ToDraft() (*cart.Draft, error) {
	draft := &cart.Draft{}

	var err error
	draft.Discount, err = parseMoney(r.Discount, "discount")
	if err != nil {
		return nil, err
	}
	draft.AmountReceived, err = parseMoney(r.AmountReceived, "amountReceived")
	if err != nil {
		return nil, err
	}

	for i, lr := range r.Lines {
		productID, err := id.Parse(lr.ProductID)
		if err != nil {
			return nil, apperror.NewValidation("invalid product id").WithDetail("line", i)
		}
		price, err := parseMoney(lr.UnitPrice, "unitPrice")
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return nil, appErr.WithDetail("line", i)
			}
			return nil, err
		}

		line := cart.Line{
			ProductID:   productID,
			ProductName: lr.ProductName,
			Quantity:    lr.Quantity,
			UnitPrice:   price,
		}
		for _, a := range lr.Allocations {
			lotID, err := id.Parse(a.LotID)
			if err != nil {
				return nil, apperror.NewValidation("invalid lot id").WithDetail("line", i)
			}
			line.Allocations = append(line.Allocations, allocation.Line{LotID: lotID, Quantity: a.Quantity})
		}
		draft.Lines = append(draft.Lines, line)
	}

	return draft, nil
}

func parseMoney(s, field string) (types.Money, error) {
	if s == "" {
		return types.Zero(), nil
	}
	m, err := types.NewMoneyFromString(s)
	if err != nil {
		return types.Zero(), apperror.NewValidation("invalid " + field)
	}
	return m, nil
}
