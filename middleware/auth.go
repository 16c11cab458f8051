package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"sharedish/pkg/config"
	tokenstore "sharedish/pkg/token"
)

const (
	ContextUserIDKey   = "current_user_id"
	ContextUsernameKey = "current_username"
	ContextJTIKey      = "current_jti"
)

var errInvalidToken = errors.New("invalid token")

// ParseToken validates a signed JWT and returns its subject (user id),
// username claim and jti. Shared by the HTTP middleware and the websocket
// handshake, which carries the token as a query parameter.
func ParseToken(tokenStr string) (userID, username, jti string, err error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		// only accept HMAC signing
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return []byte(config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", "", "", errInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", "", errInvalidToken
	}

	jti, _ = claims["jti"].(string)
	if tokenstore.IsRevoked(jti) {
		return "", "", "", errors.New("token has been revoked")
	}

	if sub, ok := claims["sub"].(string); ok {
		userID = sub
	} else if subf, ok := claims["sub"].(float64); ok {
		// jwt lib may parse numeric as float64
		userID = strconv.Itoa(int(subf))
	}
	if userID == "" {
		return "", "", "", errors.New("invalid subject in token")
	}
	username, _ = claims["name"].(string)
	return userID, username, jti, nil
}

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "missing authorization header"})
			return
		}
		parts := strings.Fields(auth)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "invalid authorization header"})
			return
		}

		userID, username, jti, err := ParseToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Set(ContextUsernameKey, username)
		c.Set(ContextJTIKey, jti)
		c.Next()
	}
}
