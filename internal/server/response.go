package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// list wraps slices in {"data": [...]}.
func list(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "code": status, "message": message})
}

func badRequest(c *gin.Context, message string) { abort(c, http.StatusBadRequest, message) }

func unauthorized(c *gin.Context) { abort(c, http.StatusUnauthorized, "not logged in") }

func notFound(c *gin.Context, message string) { abort(c, http.StatusNotFound, message) }

func conflict(c *gin.Context, message string) { abort(c, http.StatusConflict, message) }

// internalError records err for the request log and hides it from the client.
func internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	abort(c, http.StatusInternalServerError, "internal server error")
}
