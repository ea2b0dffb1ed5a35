package middleware

import "github.com/gin-gonic/gin"

// apiHeaders apply to every JSON response. Handlers that serve other content,
// such as the in-process image route, override Cache-Control and CSP.
var apiHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
	{"Strict-Transport-Security", "max-age=63072000; includeSubDomains"},
	{"Cache-Control", "no-store"},
}

// Security sets response headers suited to a credentialed JSON API.
func Security() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		for _, kv := range apiHeaders {
			h.Set(kv[0], kv[1])
		}
		c.Next()
	}
}
