package handlers

import (
	"github.com/gin-gonic/gin"

	"merx/internal/domain/product"
	"merx/internal/domain/valuation"
	"merx/internal/infrastructure/http/v1/dto"
)

// ProductHandler handles catalog read endpoints.
type ProductHandler struct {
	*BaseHandler
	products  *product.Service
	valuation *valuation.Service
}

// NewProductHandler creates a new product handler.
func NewProductHandler(base *BaseHandler, products *product.Service, valuationSvc *valuation.Service) *ProductHandler {
	return &ProductHandler{
		BaseHandler: base,
		products:    products,
		valuation:   valuationSvc,
	}
}

// List handles GET /products
func (h *ProductHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	filter := product.ListFilter{
		Search: c.Query("search"),
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}
	if v := c.Query("managedByLots"); v != "" {
		managed := v == "true"
		filter.ManagedByLots = &managed
	}

	products, err := h.products.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(products))
}

// Get handles GET /products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	p, err := h.products.GetByID(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, p)
}

// Valuation handles GET /products/:id/valuation
func (h *ProductHandler) Valuation(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	v, err := h.valuation.ForProduct(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, v)
}
