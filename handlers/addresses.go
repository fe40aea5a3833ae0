package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"pharmacy-service/internal/addresses"
	"pharmacy-service/pkg/ctxmanage"
	"pharmacy-service/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func (h *Handler) ListAddresses(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsFromRequest(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	list, err := h.addr.ListAddresses(c.Request.Context(), claims.Subject)
	if err != nil {
		slog.Error("error listing addresses", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch addresses"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"addresses": list})
}

func (h *Handler) CreateAddress(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsFromRequest(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var na addresses.NewAddress
	if err := c.ShouldBindJSON(&na); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}
	if err := h.validate.Struct(na); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) && len(vErrs) > 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErrs[0].Field() + " value missing"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	addr, err := h.addr.InsertAddress(c.Request.Context(), claims.Subject, na)
	if err != nil {
		slog.Error("error creating address", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Address Creation Failed"})
		return
	}

	c.JSON(http.StatusCreated, addr)
}

func (h *Handler) GetAddress(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsFromRequest(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	addr, err := h.addr.GetAddressByID(c.Request.Context(), claims.Subject, c.Param("id"))
	if err != nil {
		if errors.Is(err, addresses.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Address not found"})
			return
		}
		slog.Error("error fetching address", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch address"})
		return
	}

	c.JSON(http.StatusOK, addr)
}

func (h *Handler) UpdateAddress(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsFromRequest(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var na addresses.NewAddress
	if err := c.ShouldBindJSON(&na); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}
	if err := h.validate.Struct(na); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) && len(vErrs) > 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErrs[0].Field() + " value missing"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	addr, err := h.addr.UpdateAddress(c.Request.Context(), claims.Subject, c.Param("id"), na)
	if err != nil {
		if errors.Is(err, addresses.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Address not found"})
			return
		}
		slog.Error("error updating address", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Address Update Failed"})
		return
	}

	c.JSON(http.StatusOK, addr)
}

func (h *Handler) DeleteAddress(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsFromRequest(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	err := h.addr.DeleteAddress(c.Request.Context(), claims.Subject, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, addresses.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Address not found"})
		case errors.Is(err, addresses.ErrInUse):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Address is used by existing orders"})
		default:
			slog.Error("error deleting address", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Address Deletion Failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Address deleted successfully"})
}
