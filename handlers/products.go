package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"pharmacy-service/internal/products"
	"pharmacy-service/pkg/ctxmanage"
	"pharmacy-service/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func (h *Handler) CreateProduct(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	if c.Request.ContentLength > 5*1024 {
		slog.Error("request body limit breached", slog.String(logkey.TraceID, traceId), slog.Int64("Size Received", c.Request.ContentLength))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Request body too large."})
		return
	}

	var np products.NewProduct
	if err := c.ShouldBindJSON(&np); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	if err := h.validate.Struct(np); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			for _, vErr := range vErrs {
				switch vErr.Tag() {
				case "required":
					c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Field() + " value missing"})
					return
				case "min":
					c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": vErr.Field() + " value is less than " + vErr.Param()})
					return
				}
			}
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}

	if np.Price.LessThanOrEqual(decimal.Zero) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "price must be greater than zero"})
		return
	}

	product, err := h.p.InsertProduct(c.Request.Context(), np)
	if err != nil {
		if errors.Is(err, products.ErrCategoryNotFound) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Category not found"})
			return
		}
		slog.Error("error in creating the product", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Product Creation Failed"})
		return
	}

	c.JSON(http.StatusCreated, product)
}

func (h *Handler) GetProduct(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	product, err := h.p.GetProductByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		slog.Error("error fetching product", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) ListProducts(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	page, limit := pageParams(c)
	f := products.ListFilters{
		Query:        c.Query("q"),
		CategoryID:   c.Query("category_id"),
		CategorySlug: c.Query("category"),
		Sort:         c.Query("sort"),
		Order:        c.Query("order"),
		Limit:        limit,
		Offset:       (page - 1) * limit,
	}
	if v := c.Query("min_price"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "min_price is not a valid number"})
			return
		}
		f.MinPrice = &d
	}
	if v := c.Query("max_price"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "max_price is not a valid number"})
			return
		}
		f.MaxPrice = &d
	}
	if v := c.Query("requires_prescription"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "requires_prescription must be true or false"})
			return
		}
		f.RequiresPrescription = &b
	}

	list, total, err := h.p.ListProductsFromDB(c.Request.Context(), f)
	if err != nil {
		slog.Error("error listing products", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": list, "pagination": paginationEnvelope(total, page, limit)})
}

func (h *Handler) UpdateProduct(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	existing, err := h.p.GetProductByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		slog.Error("error fetching product", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}

	// partial update: absent fields keep their current values
	if err := c.ShouldBindJSON(&existing); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": http.StatusText(http.StatusBadRequest)})
		return
	}
	if existing.Price.LessThanOrEqual(decimal.Zero) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "price must be greater than zero"})
		return
	}
	if existing.Inventory < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "inventory cannot be negative"})
		return
	}

	product, err := h.p.UpdateProductInDB(c.Request.Context(), c.Param("id"), existing)
	if err != nil {
		switch {
		case errors.Is(err, products.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		case errors.Is(err, products.ErrCategoryNotFound):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Category not found"})
		default:
			slog.Error("error updating product", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Product Update Failed"})
		}
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) DeleteProduct(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)

	err := h.p.DeleteProductFromDB(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		slog.Error("error deleting product", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Product Deletion Failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}
