// Package auth resolves the caller identity on every request. The registry
// itself performs no authentication: identity is delivered by the hosting
// layer, either as a signed JWT or, behind a trusted gateway, as a plain
// header.
package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// CallerHeader carries the caller address when no JWT secret is configured.
const CallerHeader = "X-Caller-Address"

// JWT extracts the caller address from the "addr" claim of a bearer token.
func JWT(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer := c.GetHeader("Authorization")
		if !strings.HasPrefix(bearer, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := jwt.Parse(bearer[7:], func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			return
		}
		addr, _ := claims["addr"].(string)
		if addr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing addr claim"})
			return
		}
		c.Set("addr", addr)
		c.Next()
	}
}

// TrustedHeader reads the caller address from CallerHeader. Only for
// deployments where a trusted gateway sets the header.
func TrustedHeader() gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := c.GetHeader(CallerHeader)
		if addr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing caller address"})
			return
		}
		c.Set("addr", addr)
		c.Next()
	}
}
