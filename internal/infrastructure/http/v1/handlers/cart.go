package handlers

import (
	"github.com/gin-gonic/gin"

	"merx/internal/domain/cart"
	"merx/internal/infrastructure/http/v1/dto"
)

// CartHandler handles held-cart endpoints.
type CartHandler struct {
	*BaseHandler
	service *cart.Service
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(base *BaseHandler, service *cart.Service) *CartHandler {
	return &CartHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Get handles GET /cart
func (h *CartHandler) Get(c *gin.Context) {
	draft, err := h.service.Get(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, draft)
}

// Save handles PUT /cart
func (h *CartHandler) Save(c *gin.Context) {
	var req dto.SaveCartRequest
	if !h.BindJSON(c, &req) {
		return
	}

	draft, err := req.ToDraft()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Save(c.Request.Context(), draft); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, draft)
}

// Clear handles DELETE /cart
func (h *CartHandler) Clear(c *gin.Context) {
	if err := h.service.Clear(c.Request.Context()); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// Checkout handles POST /cart/checkout
func (h *CartHandler) Checkout(c *gin.Context) {
	result, err := h.service.Checkout(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, result)
}
