package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kaybank-ledger/internal/api_gateway/middleware"
	"github.com/kaybank-ledger/internal/domain/account"
	"github.com/kaybank-ledger/internal/domain/shared"
)

// Response represents a standard API response
type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Meta          *MetaInfo   `json:"meta,omitempty"`
}

// ErrorInfo represents error information in a response
type ErrorInfo struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// FieldError names a rejected request field
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// MetaInfo represents metadata in a list response
type MetaInfo struct {
	Limit int `json:"limit"`
	Count int `json:"count"`
}

// Error codes returned in ErrorInfo.Code
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeInvalidAmount      = "INVALID_AMOUNT"
	CodeInvalidOperation   = "INVALID_OPERATION"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_SERVER_ERROR"
)

// NewResponse creates a new response with data
func NewResponse(data interface{}) *Response {
	return &Response{
		Data: data,
	}
}

// NewErrorResponse creates a new error response
func NewErrorResponse(code, message string) *Response {
	return &Response{
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// RespondWithData sends a JSON response with data
func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	response := NewResponse(data)
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

// RespondWithList sends a JSON response with a list and its metadata
func RespondWithList(c *gin.Context, data interface{}, limit, count int) {
	response := NewResponse(data)
	response.Meta = &MetaInfo{Limit: limit, Count: count}
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(http.StatusOK, response)
}

// RespondWithError sends a JSON response with an error
func RespondWithError(c *gin.Context, statusCode int, code, message string) {
	response := NewErrorResponse(code, message)
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

// RespondOK sends a 200 OK response with data
func RespondOK(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusOK, data)
}

// RespondCreated sends a 201 Created response with data
func RespondCreated(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusCreated, data)
}

// RespondBadRequest sends a 400 Bad Request response with an error
func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, CodeBadRequest, message)
}

// RespondUnauthorized sends a 401 Unauthorized response with an error
func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Unauthorized"
	}
	RespondWithError(c, http.StatusUnauthorized, CodeUnauthorized, message)
}

// RespondInternalError sends a 500 Internal Server Error response with an error
func RespondInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, CodeInternal, "An internal server error occurred")
}

// RespondValidationFailed sends a 400 response listing every rejected field
func RespondValidationFailed(c *gin.Context, errs shared.ValidationErrors) {
	response := NewErrorResponse(CodeValidationFailed, "Request validation failed")
	for _, e := range errs {
		response.Error.Details = append(response.Error.Details, FieldError{Field: e.Field, Reason: e.Reason})
	}
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(http.StatusBadRequest, response)
}

// RespondDomainError maps an error returned by the ledger engine to an HTTP
// response. Client errors are logged at warn level, server errors at error level.
func RespondDomainError(c *gin.Context, logger *slog.Logger, op string, err error) {
	logger = logger.With("operation", op)
	if correlationID := middleware.GetCorrelationID(c); correlationID != "" {
		logger = logger.With("correlation_id", correlationID)
	}

	var validationErrs shared.ValidationErrors
	var validationErr shared.ValidationError
	var conflict account.ErrConflict

	switch {
	case errors.As(err, &validationErrs):
		logger.Warn("Request rejected", "error", err)
		RespondValidationFailed(c, validationErrs)
	case errors.As(err, &validationErr):
		logger.Warn("Request rejected", "error", err)
		RespondValidationFailed(c, shared.ValidationErrors{validationErr})
	case errors.Is(err, account.ErrInvalidAmount):
		logger.Warn("Request rejected", "error", err)
		RespondWithError(c, http.StatusBadRequest, CodeInvalidAmount, "Amount must be positive")
	case errors.Is(err, shared.ErrInvalidOperation):
		logger.Warn("Request rejected", "error", err)
		RespondWithError(c, http.StatusBadRequest, CodeInvalidOperation, err.Error())
	case errors.Is(err, shared.ErrAuthenticationFailed):
		logger.Warn("Authentication failed")
		RespondUnauthorized(c, "Invalid username or password")
	case errors.Is(err, account.ErrAccountNotFound{}):
		logger.Warn("Account not found", "error", err)
		RespondWithError(c, http.StatusNotFound, CodeNotFound, "Account not found")
	case errors.As(err, &conflict):
		logger.Warn("Uniqueness conflict", "field", conflict.Field)
		RespondWithError(c, http.StatusConflict, CodeConflict, "An account with this "+conflict.Field+" already exists")
	case errors.Is(err, account.ErrInsufficientFunds):
		logger.Warn("Request rejected", "error", err)
		RespondWithError(c, http.StatusUnprocessableEntity, CodeInsufficientFunds, "Insufficient funds")
	case shared.IsRetryable(err):
		logger.Error("Operation failed, client may retry", "error", err)
		c.Header("Retry-After", "1")
		RespondWithError(c, http.StatusServiceUnavailable, CodeServiceUnavailable, "The service is busy, please retry")
	default:
		logger.Error("Operation failed", "error", err)
		RespondInternalError(c)
	}
}
