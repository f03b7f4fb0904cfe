package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harbor-academy/backend/internal/apperr"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Error: err})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Error: err})
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, err string) {
	c.JSON(http.StatusServiceUnavailable, Body{Success: false, Error: err})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation, apperr.KindCapacityExceeded, apperr.KindInvalidState:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error sends a classified domain error with its mapped status. Unclassified
// errors become a 500 carrying fallback instead of the internal message.
func Error(c *gin.Context, err error, fallback string) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		Internal(c, fallback)
		return
	}
	c.JSON(status, Body{Success: false, Error: apperr.Message(err), Code: string(apperr.KindOf(err))})
}

// Outcome sends a non-success envelope that still carries data, for results
// like a refused gate scan where the caller needs the snapshot.
func Outcome(c *gin.Context, status int, msg string, data interface{}) {
	c.JSON(status, Body{Success: false, Error: msg, Data: data})
}
