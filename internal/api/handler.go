package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"marketplace-service/internal/service"
	"marketplace-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	buyerIDKey   = "buyer_id"
	buyerRoleKey = "buyer_role"

	roleAdmin = "admin"
)

// Handler contains HTTP handlers
type Handler struct {
	checkoutService *service.CheckoutService
	reviewService   *service.ReviewService
}

// NewHandler creates a new HTTP handler
func NewHandler(checkoutService *service.CheckoutService, reviewService *service.ReviewService) *Handler {
	return &Handler{
		checkoutService: checkoutService,
		reviewService:   reviewService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(buyerIdentity())
	{
		v1.POST("/orders/checkout", h.checkout)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)

		v1.POST("/reviews", h.createReview)
		v1.PUT("/reviews/:id", h.updateReview)
		v1.DELETE("/reviews/:id", h.deleteReview)
		v1.PUT("/reviews/:id/activate", requireAdmin(), h.activateReview)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// checkout converts the buyer's cart into an order.
func (h *Handler) checkout(c *gin.Context) {
	buyerID := c.GetInt64(buyerIDKey)
	idempotencyKey := c.GetHeader("Idempotency-Key")

	order, err := h.checkoutService.CreateOrder(c.Request.Context(), buyerID, idempotencyKey)
	if err != nil {
		h.writeCheckoutError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	buyerID := c.GetInt64(buyerIDKey)

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, err := h.checkoutService.GetOrder(c.Request.Context(), orderID, buyerID)
	if errors.Is(err, service.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load order"})
		return
	}

	c.JSON(http.StatusOK, order)
}

// listOrders handles paginated order history
func (h *Handler) listOrders(c *gin.Context) {
	buyerID := c.GetInt64(buyerIDKey)

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page"})
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page_size"})
		return
	}

	orders, err := h.checkoutService.ListOrders(c.Request.Context(), buyerID, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list orders"})
		return
	}

	c.JSON(http.StatusOK, orders)
}

type reviewRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Grade     int    `json:"grade" binding:"required,min=1,max=5"`
	Comment   string `json:"comment"`
}

// reviewUpdateRequest is the edit payload. The product is fixed at creation
// and never part of an update.
type reviewUpdateRequest struct {
	Grade   int    `json:"grade" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// createReview handles review creation
func (h *Handler) createReview(c *gin.Context) {
	buyerID := c.GetInt64(buyerIDKey)

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	review, err := h.reviewService.CreateReview(c.Request.Context(), buyerID, req.ProductID, req.Grade, req.Comment)
	if err != nil {
		h.writeReviewError(c, err)
		return
	}

	c.JSON(http.StatusCreated, review)
}

// updateReview handles review edits
func (h *Handler) updateReview(c *gin.Context) {
	buyerID := c.GetInt64(buyerIDKey)

	reviewID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid review ID"})
		return
	}

	var req reviewUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	review, err := h.reviewService.UpdateReview(c.Request.Context(), reviewID, buyerID, req.Grade, req.Comment)
	if err != nil {
		h.writeReviewError(c, err)
		return
	}

	c.JSON(http.StatusOK, review)
}

// deleteReview soft-deletes a review
func (h *Handler) deleteReview(c *gin.Context) {
	buyerID := c.GetInt64(buyerIDKey)

	reviewID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid review ID"})
		return
	}

	if err := h.reviewService.DeactivateReview(c.Request.Context(), reviewID, buyerID); err != nil {
		h.writeReviewError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Review deleted"})
}

// activateReview restores a soft-deleted review
func (h *Handler) activateReview(c *gin.Context) {
	reviewID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid review ID"})
		return
	}

	if err := h.reviewService.ReactivateReview(c.Request.Context(), reviewID); err != nil {
		h.writeReviewError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Review activated"})
}

// writeCheckoutError maps the checkout failure taxonomy onto HTTP statuses.
// User-correctable aborts are 4xx; integrity and infrastructure faults 5xx.
func (h *Handler) writeCheckoutError(c *gin.Context, err error) {
	var unavailable *service.ProductUnavailableError
	var invalid *service.InvalidProductStateError
	var stock *service.InsufficientStockError

	switch {
	case errors.Is(err, service.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrIdempotencyConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &unavailable):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "product_id": unavailable.ProductID})
	case errors.As(err, &stock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "product_id": stock.ProductID})
	case errors.As(err, &invalid):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "product_id": invalid.ProductID})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Checkout failed, safe to retry"})
	}
}

func (h *Handler) writeReviewError(c *gin.Context, err error) {
	var unavailable *service.ProductUnavailableError

	switch {
	case errors.Is(err, service.ErrReviewNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrDuplicateReview), errors.Is(err, service.ErrNotReviewOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &unavailable):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

// buyerIdentity resolves the authenticated buyer from the X-Buyer-ID and
// X-User-Role headers set by the API gateway. Token verification itself
// happens upstream; an absent role means a regular buyer.
func buyerIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		buyerID, err := strconv.ParseInt(c.GetHeader("X-Buyer-ID"), 10, 64)
		if err != nil || buyerID < 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing buyer identity"})
			return
		}
		c.Set(buyerIDKey, buyerID)
		c.Set(buyerRoleKey, c.GetHeader("X-User-Role"))
		c.Next()
	}
}

// requireAdmin guards endpoints reserved for back-office users.
func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(buyerRoleKey) != roleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
