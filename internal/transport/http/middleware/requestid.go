package middleware

import (
	"github.com/ErlanBelekov/marketplace/internal/requestid"
	"github.com/gin-gonic/gin"
)

// RequestID resolves the request's correlation ID and sets it on the context
// and the response. The inbound header is rewritten to the same value.
// Client IDs that fail requestid.FromHeader are replaced.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := requestid.FromHeader(c.GetHeader(requestid.Header))
		c.Request.Header.Set(requestid.Header, id)
		c.Request = c.Request.WithContext(requestid.WithRequestID(c.Request.Context(), id))
		c.Header(requestid.Header, id)
		c.Next()
	}
}
