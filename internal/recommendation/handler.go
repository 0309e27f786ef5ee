package recommendation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dustin/showfinder/internal/utils"
	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for recommendation operations
type Handler struct {
	service Service
}

// NewHandler creates a new recommendation handler
func NewHandler(service Service) *Handler {
	return &Handler{
		service: service,
	}
}

// GetRecommendations returns the stored list for the authenticated user
func (h *Handler) GetRecommendations(c *gin.Context) {
	userID, err := utils.GetUserIDFromToken(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		limit = 10
	}

	response, err := h.service.GetRecommendations(userID, limit)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No recommendations yet"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get recommendations"})
		return
	}

	c.JSON(http.StatusOK, response)
}

// Refresh recomputes the authenticated user's list synchronously
func (h *Handler) Refresh(c *gin.Context) {
	userID, err := utils.GetUserIDFromToken(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	ids, err := h.service.Refresh(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh recommendations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"show_ids": ids, "count": len(ids)})
}

// RegisterRoutes registers all recommendation routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	recommendations := router.Group("/recommendations")
	recommendations.Use(authMiddleware)
	{
		recommendations.GET("", h.GetRecommendations)
		recommendations.POST("/refresh", h.Refresh)
	}
}
