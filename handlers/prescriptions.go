package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pharmacy-service/internal/auth"
	"pharmacy-service/internal/prescriptions"
	"pharmacy-service/internal/stores/kafka"
	"pharmacy-service/pkg/ctxmanage"
	"pharmacy-service/pkg/logkey"

	"github.com/gin-gonic/gin"
)

func (h *Handler) UploadPrescription(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsFromRequest(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var np prescriptions.NewPrescription
	if err := c.ShouldBindJSON(&np); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}
	if err := h.validate.Struct(np); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "image value missing"})
		return
	}

	p, err := h.rx.InsertPrescription(c.Request.Context(), claims.Subject, np)
	if err != nil {
		slog.Error("error uploading prescription", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Prescription Upload Failed"})
		return
	}

	c.JSON(http.StatusCreated, p)
}

// ListPrescriptions shows customers their own prescriptions; reviewers see
// everyone's and can filter by status.
func (h *Handler) ListPrescriptions(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsFromRequest(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	page, limit := pageParams(c)
	f := prescriptions.ListFilters{
		Status: strings.ToUpper(c.Query("status")),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if !auth.IsAllowed(claims.Role, auth.RoleAdmin, auth.RolePharmacist) {
		f.UserID = claims.Subject
	}

	list, total, err := h.rx.ListPrescriptions(c.Request.Context(), f)
	if err != nil {
		slog.Error("error listing prescriptions", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch prescriptions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"prescriptions": list, "pagination": paginationEnvelope(total, page, limit)})
}

func (h *Handler) GetPrescription(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsFromRequest(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	p, err := h.rx.GetPrescriptionByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, prescriptions.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Prescription not found"})
			return
		}
		slog.Error("error fetching prescription", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch prescription"})
		return
	}

	// owner or reviewer only
	if p.UserID != claims.Subject && !auth.IsAllowed(claims.Role, auth.RoleAdmin, auth.RolePharmacist) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Prescription not found"})
		return
	}

	c.JSON(http.StatusOK, p)
}

func (h *Handler) ReviewPrescription(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsFromRequest(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var request struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	p, err := h.rx.ReviewPrescription(c.Request.Context(), c.Param("id"), strings.ToUpper(request.Status), request.Notes)
	if err != nil {
		switch {
		case errors.Is(err, prescriptions.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Prescription not found"})
		case errors.Is(err, prescriptions.ErrInvalidStatus):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "status must be APPROVED, REJECTED or PENDING"})
		default:
			slog.Error("error reviewing prescription", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Prescription Review Failed"})
		}
		return
	}

	go func(p prescriptions.Prescription, reviewer string) {
		data, err := json.Marshal(kafka.PrescriptionReviewedEvent{
			PrescriptionID: p.ID,
			UserID:         p.UserID,
			Status:         p.Status,
			ReviewedBy:     reviewer,
			ReviewedAt:     time.Now().UTC(),
		})
		if err != nil {
			slog.Error("failed to marshal PrescriptionReviewedEvent", slog.String(logkey.ERROR, err.Error()))
			return
		}
		if err := h.k.ProduceMessage(kafka.TopicPrescriptionReviewed, []byte(p.ID), data); err != nil {
			slog.Error("failed to produce message", slog.String(logkey.ERROR, err.Error()))
		}
	}(p, claims.Subject)

	c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePrescription(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	claims, ok := claimsFromRequest(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	p, err := h.rx.GetPrescriptionByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, prescriptions.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Prescription not found"})
			return
		}
		slog.Error("error fetching prescription", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch prescription"})
		return
	}
	if p.UserID != claims.Subject && !auth.IsAllowed(claims.Role, auth.RoleAdmin) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Prescription not found"})
		return
	}

	if err := h.rx.DeletePrescription(c.Request.Context(), p.ID); err != nil {
		switch {
		case errors.Is(err, prescriptions.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Prescription not found"})
		case errors.Is(err, prescriptions.ErrInUse):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Prescription is linked to existing orders"})
		default:
			slog.Error("error deleting prescription", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Prescription Deletion Failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Prescription deleted successfully"})
}
