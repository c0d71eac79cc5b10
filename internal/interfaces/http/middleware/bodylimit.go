package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/commercesync/backend/internal/interfaces/http/dto"
)

// BodyLimit caps the request body size. Requests declaring a larger
// Content-Length are rejected up front, chunked bodies are capped while
// reading.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponseWithRequestID(dto.ErrCodePayloadTooLarge, "Request body too large", GetRequestID(c)))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
