package api

import (
	"log/slog"
	"net/http"

	"github.com/ashish9731/email-responder/internal/api/respond"
	"github.com/ashish9731/email-responder/internal/monitor"
)

// statusFor maps a failure category onto an HTTP status code
func statusFor(cat monitor.Category) int {
	switch cat {
	case monitor.CategoryNotFound:
		return http.StatusNotFound
	case monitor.CategoryConflict:
		return http.StatusConflict
	case monitor.CategoryInvalid:
		return http.StatusBadRequest
	case monitor.CategoryNotConnected, monitor.CategoryAuthExpired, monitor.CategoryUnavailable:
		return http.StatusServiceUnavailable
	case monitor.CategorySendFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeErr renders err as {"error","category"}. Client errors carry the
// error text; everything else gets the category description only.
func writeErr(w http.ResponseWriter, logger *slog.Logger, err error) {
	cat := monitor.Categorize(err)
	code := statusFor(cat)

	msg := cat.Describe()
	switch cat {
	case monitor.CategoryNotFound, monitor.CategoryConflict, monitor.CategoryInvalid:
		msg = err.Error()
	}
	if code >= http.StatusInternalServerError {
		logger.Error("request failed", "category", string(cat), "error", err)
	}
	respond.WriteError(w, code, string(cat), msg)
}
