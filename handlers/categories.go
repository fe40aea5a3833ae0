package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"pharmacy-service/internal/categories"
	"pharmacy-service/pkg/ctxmanage"
	"pharmacy-service/pkg/logkey"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateCategory(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var nc categories.NewCategory
	if err := c.ShouldBindJSON(&nc); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}
	if err := h.validate.Struct(nc); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "name value missing"})
		return
	}

	cat, err := h.cat.InsertCategory(c.Request.Context(), nc)
	if err != nil {
		if errors.Is(err, categories.ErrDuplicate) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Category already exists"})
			return
		}
		slog.Error("error creating category", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Category Creation Failed"})
		return
	}

	c.JSON(http.StatusCreated, cat)
}

func (h *Handler) ListCategories(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	list, err := h.cat.ListCategories(c.Request.Context())
	if err != nil {
		slog.Error("error listing categories", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch categories"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": list})
}

func (h *Handler) GetCategory(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	cat, err := h.cat.GetCategoryByIDOrSlug(c.Request.Context(), c.Param("idOrSlug"))
	if err != nil {
		if errors.Is(err, categories.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Category not found"})
			return
		}
		slog.Error("error fetching category", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch category"})
		return
	}

	c.JSON(http.StatusOK, cat)
}

func (h *Handler) UpdateCategory(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	var nc categories.NewCategory
	if err := c.ShouldBindJSON(&nc); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}
	if err := h.validate.Struct(nc); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "name value missing"})
		return
	}

	cat, err := h.cat.UpdateCategory(c.Request.Context(), c.Param("idOrSlug"), nc)
	if err != nil {
		switch {
		case errors.Is(err, categories.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		case errors.Is(err, categories.ErrDuplicate):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Category already exists"})
		default:
			slog.Error("error updating category", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Category Update Failed"})
		}
		return
	}

	c.JSON(http.StatusOK, cat)
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	err := h.cat.DeleteCategory(c.Request.Context(), c.Param("idOrSlug"))
	if err != nil {
		switch {
		case errors.Is(err, categories.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		case errors.Is(err, categories.ErrInUse):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Category still has products"})
		default:
			slog.Error("error deleting category", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Category Deletion Failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Category deleted successfully"})
}
