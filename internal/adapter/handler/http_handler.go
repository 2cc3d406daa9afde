package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/logger"
)

const (
	userIDHeader         = "X-User-ID"
	idempotencyKeyHeader = "Idempotency-Key"
	userIDKey            = "user_id"
)

type HTTPHandler struct {
	catalog  *service.CatalogService
	carts    *service.CartService
	checkout *service.CheckoutService
	orders   *service.OrderService
}

type AddLineRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

type UpdateLineRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

type RemoveLinesRequest struct {
	ProductIDs []string `json:"product_ids" binding:"required"`
}

type CheckoutHTTPRequest struct {
	ShippingAddress string `json:"shipping_address"`
}

type CheckoutHTTPResponse struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type PaymentRequest struct {
	Reference string `json:"reference" binding:"required"`
}

type ErrorBody struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Conflicts []domain.StockConflict `json:"conflicts,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func NewHTTPHandler(
	catalog *service.CatalogService,
	carts *service.CartService,
	checkout *service.CheckoutService,
	orders *service.OrderService,
) *HTTPHandler {
	return &HTTPHandler{
		catalog:  catalog,
		carts:    carts,
		checkout: checkout,
		orders:   orders,
	}
}

func (h *HTTPHandler) Register(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api")
	api.GET("/products/:id", h.GetProduct)

	// Order progression is driven by fulfilment, not by the buyer.
	api.PATCH("/orders/:id/status", h.AdvanceStatus)
	api.POST("/orders/:id/payment", h.AttachPayment)

	user := api.Group("", requireUser)
	user.GET("/cart", h.GetCart)
	user.GET("/cart/summary", h.Summarize)
	user.POST("/cart/items", h.AddLine)
	user.PUT("/cart/items/:productId", h.UpdateLine)
	user.DELETE("/cart/items/:productId", h.RemoveLine)
	user.POST("/cart/items/remove", h.RemoveLines)
	user.DELETE("/cart", h.ClearCart)
	user.POST("/cart/reconcile", h.Reconcile)
	user.POST("/checkout", h.Checkout)
	user.GET("/orders", h.ListOrders)
	user.GET("/orders/:id", h.GetOrder)
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) GetProduct(c *gin.Context) {
	p, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *HTTPHandler) GetCart(c *gin.Context) {
	cart, err := h.carts.GetCart(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		writeError(c, err)
		return
	}
	writeCart(c, cart)
}

func (h *HTTPHandler) Summarize(c *gin.Context) {
	summary, err := h.carts.Summarize(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *HTTPHandler) AddLine(c *gin.Context) {
	var req AddLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "product_id and quantity are required")
		return
	}

	cart, err := h.carts.AddLine(c.Request.Context(), c.GetString(userIDKey), req.ProductID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	writeCart(c, cart)
}

func (h *HTTPHandler) UpdateLine(c *gin.Context) {
	var req UpdateLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "quantity is required")
		return
	}

	cart, err := h.carts.UpdateLine(c.Request.Context(), c.GetString(userIDKey), c.Param("productId"), req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	writeCart(c, cart)
}

func (h *HTTPHandler) RemoveLine(c *gin.Context) {
	cart, err := h.carts.RemoveLine(c.Request.Context(), c.GetString(userIDKey), c.Param("productId"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeCart(c, cart)
}

func (h *HTTPHandler) RemoveLines(c *gin.Context) {
	var req RemoveLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "product_ids is required")
		return
	}

	cart, err := h.carts.RemoveLines(c.Request.Context(), c.GetString(userIDKey), req.ProductIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	writeCart(c, cart)
}

func (h *HTTPHandler) ClearCart(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context(), c.GetString(userIDKey)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) Reconcile(c *gin.Context) {
	adjustments, err := h.carts.Reconcile(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		writeError(c, err)
		return
	}
	if adjustments == nil {
		adjustments = []domain.Adjustment{}
	}
	c.JSON(http.StatusOK, gin.H{"adjustments": adjustments})
}

func (h *HTTPHandler) Checkout(c *gin.Context) {
	var req CheckoutHTTPRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	receipt, err := h.checkout.Checkout(c.Request.Context(), service.CheckoutRequest{
		UserID:          c.GetString(userIDKey),
		ShippingAddress: req.ShippingAddress,
		IdempotencyKey:  c.GetHeader(idempotencyKeyHeader),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CheckoutHTTPResponse{
		OrderID:     receipt.OrderID,
		OrderNumber: receipt.OrderNumber,
		TotalAmount: receipt.TotalAmount,
	})
}

func (h *HTTPHandler) ListOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		writeError(c, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *HTTPHandler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.GetString(userIDKey), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *HTTPHandler) AdvanceStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}
	next, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	order, err := h.orders.AdvanceStatus(c.Request.Context(), c.Param("id"), next)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *HTTPHandler) AttachPayment(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "reference is required")
		return
	}

	order, err := h.orders.AttachPaymentReference(c.Request.Context(), c.Param("id"), req.Reference)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func requireUser(c *gin.Context) {
	userID := c.GetHeader(userIDHeader)
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: ErrorBody{
			Code:    "MISSING_USER",
			Message: userIDHeader + " header is required",
		}})
		return
	}
	c.Set(userIDKey, userID)
	c.Next()
}

func writeCart(c *gin.Context, cart *domain.Cart) {
	if cart.Lines == nil {
		cart.Lines = []domain.CartLine{}
	}
	c.JSON(http.StatusOK, cart)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: ErrorBody{Code: "INVALID_INPUT", Message: message}})
}

// writeError maps service errors to HTTP responses. Unexpected errors are
// logged and reported without detail.
func writeError(c *gin.Context, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed", zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, ErrorResponse{Error: body})
}

func classify(err error) (int, ErrorBody) {
	var stockErr *domain.StockError
	switch {
	case errors.As(err, &stockErr):
		return http.StatusConflict, ErrorBody{Code: "INSUFFICIENT_STOCK", Message: "insufficient stock", Conflicts: stockErr.Conflicts}
	case errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict, ErrorBody{Code: "DUPLICATE_REQUEST", Message: "duplicate request"}
	case errors.Is(err, domain.ErrEmptyCart):
		return http.StatusUnprocessableEntity, ErrorBody{Code: "EMPTY_CART", Message: "cart is empty"}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, ErrorBody{Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, ErrorBody{Code: "INVALID_INPUT", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, ErrorBody{Code: "INVALID_TRANSITION", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, ErrorBody{Code: "INVALID_STATE", Message: err.Error()}
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable, ErrorBody{Code: "PERSISTENCE_FAILURE", Message: "storage unavailable, retry later"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorBody{Code: "TIMEOUT", Message: "request timed out"}
	default:
		return http.StatusInternalServerError, ErrorBody{Code: "INTERNAL", Message: "internal error"}
	}
}
