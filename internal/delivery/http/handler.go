package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nombiemugi/rastreador-de-precios/internal/domain"
	"github.com/nombiemugi/rastreador-de-precios/internal/usecase"
	logx "github.com/nombiemugi/rastreador-de-precios/pkg/logger"
)

// PriceChecker runs a reconciliation pass over every tracked product
type PriceChecker interface {
	Run(ctx context.Context) (domain.RunSummary, error)
}

// ProductManager is the user-facing product API
type ProductManager interface {
	AddProduct(ctx context.Context, userID, rawURL string) (*usecase.AddResult, error)
	ListProducts(ctx context.Context, userID string) ([]domain.TrackedProduct, error)
	DeleteProduct(ctx context.Context, productID string) error
	PriceHistory(ctx context.Context, productID string) ([]domain.PriceHistoryEntry, error)
	SaveUser(ctx context.Context, user *domain.User) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	checker  PriceChecker
	products ProductManager
}

// NewHandler creates a new HTTP handler
func NewHandler(checker PriceChecker, products ProductManager) *Handler {
	return &Handler{
		checker:  checker,
		products: products,
	}
}

// RunResponse is the price check payload
type RunResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Results domain.RunSummary `json:"results"`
}

// AddProductRequest represents the request body for tracking a product
type AddProductRequest struct {
	URL string `json:"url" binding:"required"`
}

// SaveUserRequest represents the request body for creating or updating a user
type SaveUserRequest struct {
	Email          string `json:"email"`
	TelegramChatID int64  `json:"telegramChatId"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pricewatch",
		"version": "1.0.0",
	})
}

// CheckPricesInfo is the read-only view of the price check trigger
func (h *Handler) CheckPricesInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Price check endpoint is working. Use POST to trigger.",
	})
}

// CheckPrices runs one price check and returns its summary
func (h *Handler) CheckPrices(c *gin.Context) {
	// The run outlives an impatient caller; partial runs leave no useful summary.
	ctx := context.WithoutCancel(c.Request.Context())

	summary, err := h.checker.Run(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrRunInProgress) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
			return
		}
		logx.Error().Err(err).Msg("price check run failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, RunResponse{
		Success: true,
		Message: "Price check completed",
		Results: summary,
	})
}

// SaveUser creates or updates a product owner
func (h *Handler) SaveUser(c *gin.Context) {
	var req SaveUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	user := &domain.User{
		ID:             c.Param("userID"),
		Email:          strings.TrimSpace(req.Email),
		TelegramChatID: req.TelegramChatID,
	}
	if err := h.products.SaveUser(c.Request.Context(), user); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// AddProduct starts tracking a product link for a user
func (h *Handler) AddProduct(c *gin.Context) {
	var req AddProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}

	result, err := h.products.AddProduct(c.Request.Context(), c.Param("userID"), req.URL)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"product": result.Product,
		"created": result.Created,
	})
}

// ListProducts returns a user's tracked products
func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.products.ListProducts(c.Request.Context(), c.Param("userID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// PriceHistory returns the recorded prices of a product
func (h *Handler) PriceHistory(c *gin.Context) {
	history, err := h.products.PriceHistory(c.Request.Context(), c.Param("productID"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// DeleteProduct stops tracking a product
func (h *Handler) DeleteProduct(c *gin.Context) {
	if err := h.products.DeleteProduct(c.Request.Context(), c.Param("productID")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// respondError maps domain errors to status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateProduct):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrExtractionFailed),
		errors.Is(err, domain.ErrIncompleteExtraction),
		errors.Is(err, domain.ErrInvalidPrice):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		logx.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, ErrorResponse{Error: "Internal server error"})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}
