package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/orchidlab/labpredict/internal/errors"
	"github.com/orchidlab/labpredict/internal/logger"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates an error body with a fresh correlation ID
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString()[:8],
	}
}

// statusFor maps an error category to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.IsCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsConflict(err):
		return http.StatusConflict
	case errors.IsCategory(err, errors.CategoryLimit):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// handleError writes an error reply and logs server-side failures
func (s *Server) handleError(c echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)
	if code >= http.StatusInternalServerError {
		s.log.Error("api error",
			logger.String("correlation_id", resp.CorrelationID),
			logger.String("path", c.Path()),
			logger.String("message", message),
			logger.Error(err))
	}
	return c.JSON(code, resp)
}

// errorHandler renders echo's own errors (routing, body limit) in the
// same shape as handler errors
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		}
	}
	_ = s.handleError(c, err, message, code)
}
