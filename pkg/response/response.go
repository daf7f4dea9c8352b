package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// Accepted sends a 202 JSON response, used when work is scheduled for later.
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) { fail(c, http.StatusBadRequest, err, nil) }

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) { fail(c, http.StatusUnauthorized, err, nil) }

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) { fail(c, http.StatusForbidden, err, nil) }

// NotFound sends 404.
func NotFound(c *gin.Context, err string) { fail(c, http.StatusNotFound, err, nil) }

// Conflict sends 409.
func Conflict(c *gin.Context, err string) { fail(c, http.StatusConflict, err, nil) }

// BadGateway sends 502 when an upstream (Telegram, LLM) rejected every attempt; data carries details.
func BadGateway(c *gin.Context, err string, data interface{}) { fail(c, http.StatusBadGateway, err, data) }

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, err string) { fail(c, http.StatusServiceUnavailable, err, nil) }

// Internal sends 500.
func Internal(c *gin.Context, err string) { fail(c, http.StatusInternalServerError, err, nil) }

func fail(c *gin.Context, status int, err string, data interface{}) {
	c.JSON(status, Body{Success: false, Error: err, Data: data})
}
