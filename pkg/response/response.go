package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/advising-api/pkg/errors"
)

// Meta carries auxiliary response attributes such as counts or the requested scope.
type Meta map[string]interface{}

// Envelope is the body of every JSON response: data on success, error otherwise.
type Envelope struct {
	Data  interface{}      `json:"data,omitempty"`
	Error *appErrors.Error `json:"error,omitempty"`
	Meta  Meta             `json:"meta,omitempty"`
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}

// JSON writes data with the given status.
func JSON(c *gin.Context, status int, data interface{}, meta Meta) {
	noStore(c)
	c.JSON(status, Envelope{Data: data, Meta: meta})
}

// OK responds with 200 and optional meta.
func OK(c *gin.Context, data interface{}, meta ...Meta) {
	var m Meta
	if len(meta) > 0 {
		m = meta[0]
	}
	JSON(c, http.StatusOK, data, m)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error converts err to its public form and writes it with the mapped status.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	noStore(c)
	c.JSON(appErr.Status, Envelope{Error: appErr})
}

// Abort writes err and stops the handler chain.
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
