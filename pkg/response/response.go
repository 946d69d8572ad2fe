package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studymeta/backend/internal/errs"
)

// Body is the error envelope. Success payloads are written as-is so clients see the documented fields at top level.
type Body struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err})
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

// Error sends the status mapped from a domain error with a short message.
// Only the sentinel's text is exposed; server-side failures get msg so upstream detail is not leaked.
func Error(c *gin.Context, err error, msg string) {
	status := errs.HTTPStatus(err)
	text := errs.Message(err)
	if status >= http.StatusInternalServerError && msg != "" || text == "" {
		text = msg
	}
	c.JSON(status, Body{Success: false, Error: text})
}

// ErrorWithDetails is Error plus the underlying error text for operator debugging.
func ErrorWithDetails(c *gin.Context, err error, msg, details string) {
	status := errs.HTTPStatus(err)
	text := err.Error()
	if msg != "" {
		text = msg
	}
	c.JSON(status, Body{Success: false, Error: text, Details: details})
}
