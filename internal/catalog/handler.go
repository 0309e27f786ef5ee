package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for catalog reads
type Handler struct {
	service Service
}

// NewHandler creates a new catalog handler
func NewHandler(service Service) *Handler {
	return &Handler{
		service: service,
	}
}

// GetShow returns one show
func (h *Handler) GetShow(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid show ID"})
		return
	}

	show, err := h.service.GetShow(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Show not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get show"})
		return
	}

	c.JSON(http.StatusOK, show)
}

// ListGenres returns every genre name
func (h *Handler) ListGenres(c *gin.Context) {
	genres, err := h.service.ListGenres()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list genres"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"genres": genres, "count": len(genres)})
}

// RegisterRoutes registers catalog routes; they are public
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/shows/:id", h.GetShow)
	router.GET("/genres", h.ListGenres)
}
