package interaction

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dustin/showfinder/internal/catalog"
	"github.com/dustin/showfinder/internal/utils"
	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for interaction operations
type Handler struct {
	service Service
}

// NewHandler creates a new interaction handler
func NewHandler(service Service) *Handler {
	return &Handler{
		service: service,
	}
}

func parseShowID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("showId"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid show ID"})
		return 0, false
	}
	return id, true
}

// Record handles creating or updating an interaction
func (h *Handler) Record(c *gin.Context) {
	var req RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := utils.GetUserIDFromToken(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	showID, ok := parseShowID(c)
	if !ok {
		return
	}

	interaction, err := h.service.Record(userID, showID, req)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Show not found"})
		case errors.Is(err, ErrInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record interaction"})
		}
		return
	}

	c.JSON(http.StatusOK, interaction)
}

// Get handles getting a single interaction
func (h *Handler) Get(c *gin.Context) {
	userID, err := utils.GetUserIDFromToken(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	showID, ok := parseShowID(c)
	if !ok {
		return
	}

	interaction, err := h.service.Get(userID, showID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Interaction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get interaction"})
		return
	}

	c.JSON(http.StatusOK, interaction)
}

// List handles listing the user's interactions, newest first
func (h *Handler) List(c *gin.Context) {
	userID, err := utils.GetUserIDFromToken(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	page, limit := utils.ParsePagination(c, 20, 100)

	items, total, err := h.service.List(userID, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list interactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"interactions": items,
		"pagination":   utils.CalculatePagination(total, page, limit),
	})
}

// Delete handles interaction deletion
func (h *Handler) Delete(c *gin.Context) {
	userID, err := utils.GetUserIDFromToken(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	showID, ok := parseShowID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(userID, showID); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Interaction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete interaction"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Interaction deleted successfully"})
}

// RegisterRoutes registers all interaction routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	interactions := router.Group("/interactions")
	interactions.Use(authMiddleware)
	{
		interactions.GET("", h.List)
		interactions.PUT("/shows/:showId", h.Record)
		interactions.GET("/shows/:showId", h.Get)
		interactions.DELETE("/shows/:showId", h.Delete)
	}
}
