package ctxmanage

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TraceIDKey is the gin context key under which the per-request trace id is stored.
const TraceIDKey = "trace-id"

// SetTraceIdOfRequest assigns a fresh trace id to the request and returns it.
func SetTraceIdOfRequest(c *gin.Context) string {
	traceId := uuid.NewString()
	c.Set(TraceIDKey, traceId)
	return traceId
}

// GetTraceIdOfRequest returns the trace id set by the logging middleware.
// A request that skipped the middleware still gets a usable id.
func GetTraceIdOfRequest(c *gin.Context) string {
	if v, ok := c.Get(TraceIDKey); ok {
		if traceId, ok := v.(string); ok {
			return traceId
		}
	}
	return SetTraceIdOfRequest(c)
}
