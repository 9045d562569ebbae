// Package middleware holds Gin middleware shared by the web routes.
package middleware

import "github.com/gin-gonic/gin"

// SecurityHeaders sets conservative browser security headers on every response.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Set("X-Content-Type-Options", "nosniff")
		header.Set("X-Frame-Options", "DENY")
		header.Set("Referrer-Policy", "no-referrer")
		c.Next()
	}
}
