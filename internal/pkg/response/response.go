package response

import (
	"errors"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/wikiquiz/server/internal/pkg/apperr"
)

// Pagination metadata returned with paginated responses.
type Pagination struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	TotalPage   int   `json:"total_page"`
	Size        int   `json:"size"`
	HasNextPage bool  `json:"has_next_page"`
}

// pagedResponse is the envelope for paginated list responses.
type pagedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// OK sends a 200 response. Arrays/slices are wrapped in {data: [...]}.
func OK(c *gin.Context, data interface{}) {
	if data != nil {
		v := reflect.ValueOf(data)
		if v.Kind() == reflect.Slice {
			c.JSON(http.StatusOK, gin.H{"data": data})
			return
		}
	}
	c.JSON(http.StatusOK, data)
}

// Paged sends a paginated response.
func Paged(c *gin.Context, data interface{}, pagination Pagination) {
	c.JSON(http.StatusOK, pagedResponse{
		Data:       data,
		Pagination: pagination,
	})
}

// Message sends {"message": msg} with 200.
func Message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func abort(c *gin.Context, status int, kind apperr.Kind, message string) {
	abortRetry(c, status, kind, message, false)
}

func abortRetry(c *gin.Context, status int, kind apperr.Kind, message string, retryable bool) {
	c.AbortWithStatusJSON(status, gin.H{
		"ok":        0,
		"code":      status,
		"kind":      kind,
		"message":   message,
		"retryable": retryable,
	})
}

// BadRequest sends a 400 error response.
func BadRequest(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, apperr.KindBadRequest, message)
}

// NotFoundMsg sends a 404 error with a custom message.
func NotFoundMsg(c *gin.Context, message string) {
	abort(c, http.StatusNotFound, apperr.KindNotFound, message)
}

// TooManyRequests sends a 429 error response.
func TooManyRequests(c *gin.Context) {
	abortRetry(c, http.StatusTooManyRequests, apperr.KindRateLimit, "Too many requests, slow down", true)
}

// Error maps err to a status by its apperr kind. Only the classified
// message is sent; wrapped causes stay in the logs. Store and unclassified
// failures get a generic message.
func Error(c *gin.Context, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		abort(c, http.StatusInternalServerError, apperr.KindInternal, "Internal server error")
		return
	}

	status := apperr.Status(ae.Kind)
	message := ae.Message
	switch {
	case ae.Kind == apperr.KindStore:
		message = "Database error"
	case ae.Kind == apperr.KindInternal, message == "":
		message = "Internal server error"
	}
	abortRetry(c, status, ae.Kind, message, ae.Retryable())
}
