package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const claimsKey = "claims"

// Claims is the verified caller identity handlers work with.
type Claims struct {
	UserID primitive.ObjectID
	Email  string
	Role   string
}

// AuthGuard validates the bearer token and, when roles are given, requires
// one of them. It is the single authorization check for every protected
// route; handlers never re-inspect the raw token.
func AuthGuard(secret string, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		parts := strings.Split(raw, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		mapClaims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		sub, _ := mapClaims["sub"].(string)
		userID, err := primitive.ObjectIDFromHex(strings.TrimSpace(sub))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		email, _ := mapClaims["email"].(string)
		role, _ := mapClaims["role"].(string)

		if len(allowedRoles) > 0 {
			match := false
			for _, r := range allowedRoles {
				if role == r {
					match = true
					break
				}
			}
			if !match {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
				return
			}
		}

		c.Set(claimsKey, Claims{UserID: userID, Email: email, Role: role})
		c.Next()
	}
}

// ClaimsFrom returns the verified claims placed by AuthGuard.
func ClaimsFrom(c *gin.Context) (Claims, bool) {
	value, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := value.(Claims)
	return claims, ok
}
