// Package logkey holds the slog attribute keys shared by every handler so
// log lines stay greppable across the service.
package logkey

const (
	TraceID = "TRACE ID"
	ERROR   = "ERROR"
	UserID  = "UserID"
	OrderID = "OrderID"
)
