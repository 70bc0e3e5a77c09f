package handlers

import (
	"github.com/gin-gonic/gin"

	"merx/internal/domain/lots"
	"merx/internal/infrastructure/http/v1/dto"
)

// LotHandler handles lot registry endpoints.
type LotHandler struct {
	*BaseHandler
	service *lots.Service
}

// NewLotHandler creates a new lot handler.
func NewLotHandler(base *BaseHandler, service *lots.Service) *LotHandler {
	return &LotHandler{
		BaseHandler: base,
		service:     service,
	}
}

// ListByProduct handles GET /products/:id/lots
func (h *LotHandler) ListByProduct(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	result, err := h.service.List(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(result))
}

// Create handles POST /products/:id/lots
func (h *LotHandler) Create(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.CreateLotRequest
	if !h.BindJSON(c, &req) {
		return
	}

	lot := req.ToLot(productID)
	if err := h.service.Create(c.Request.Context(), lot); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, lot.ID.String())
}

// AdjustQuantity handles PUT /lots/:id/quantity
func (h *LotHandler) AdjustQuantity(c *gin.Context) {
	lotID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.AdjustLotRequest
	if !h.BindJSON(c, &req) {
		return
	}

	lot, err := h.service.AdjustQuantity(c.Request.Context(), lotID, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, lot)
}

// Delete handles DELETE /lots/:id
func (h *LotHandler) Delete(c *gin.Context) {
	lotID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), lotID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}
