package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"merx/internal/core/apperror"
	"merx/internal/core/id"
	"merx/internal/domain/allocation"
	"merx/internal/domain/audit"
	"merx/internal/domain/ledger"
	"merx/internal/infrastructure/http/v1/dto"
)

// HistorySource supplies the recorded audit trail for an entity.
type HistorySource interface {
	EntityHistory(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error)
}

// MovementHandler handles movement ledger endpoints.
type MovementHandler struct {
	*BaseHandler
	service *ledger.Service
	history HistorySource
}

// NewMovementHandler creates a new movement handler.
func NewMovementHandler(base *BaseHandler, service *ledger.Service, history HistorySource) *MovementHandler {
	return &MovementHandler{
		BaseHandler: base,
		service:     service,
		history:     history,
	}
}

// Record handles POST /movements
func (h *MovementHandler) Record(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.RecordMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	m, err := req.ToMovement()
	if err != nil {
		h.Error(c, err)
		return
	}

	var alloc *allocation.Allocation
	if len(req.Allocations) > 0 {
		lines := make([]allocation.Line, 0, len(req.Allocations))
		for _, a := range req.Allocations {
			lotID, err := id.Parse(a.LotID)
			if err != nil {
				h.Error(c, apperror.NewValidation("invalid lot id").WithDetail("lot_id", a.LotID))
				return
			}
			lines = append(lines, allocation.Line{LotID: lotID, Quantity: a.Quantity})
		}
		alloc = allocation.FromLines(m.ProductID, lines)
	}

	movementID, err := h.service.Record(ctx, m, alloc)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, movementID.String())
}

// Get handles GET /movements/:id
func (h *MovementHandler) Get(c *gin.Context) {
	movementID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	m, err := h.service.GetByID(c.Request.Context(), movementID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, m)
}

// ListByProduct handles GET /products/:id/movements
func (h *MovementHandler) ListByProduct(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var query dto.MovementQuery
	if !h.BindQuery(c, &query) {
		return
	}

	movements, err := h.service.ListByProduct(c.Request.Context(), productID, query.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(movements))
}

// History handles GET /movements/:id/history
func (h *MovementHandler) History(c *gin.Context) {
	movementID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	limit := h.ParseIntQuery(c, "limit", 50)
	entries, err := h.history.EntityHistory(c.Request.Context(), "movement", movementID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.AuditEntryResponse{
			Operator:   e.Operator,
			Action:     e.Action,
			Payload:    e.Payload,
			OccurredAt: e.OccurredAt,
		})
	}
	h.OK(c, dto.NewListResponse(items))
}

// ChangeStatus handles POST /movements/:id/status
func (h *MovementHandler) ChangeStatus(c *gin.Context) {
	movementID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.ChangeStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}

	m, err := h.service.ChangeStatus(c.Request.Context(), movementID, ledger.Status(req.Status))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, m)
}

// Remove handles DELETE /movements/:id
func (h *MovementHandler) Remove(c *gin.Context) {
	movementID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Remove(c.Request.Context(), movementID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}
