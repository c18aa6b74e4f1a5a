package playapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const claimsContextKey = "session_claims"

// sessionClaims is the cookie payload issued by the auth frontend. Subject
// carries the stable user identifier.
type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// sessionMiddleware validates the HS256 session cookie and stashes its claims
// in the gin context. Requests without a valid cookie are rejected before any
// handler runs.
func sessionMiddleware(cfg Config) gin.HandlerFunc {
	signingKey := []byte(cfg.SessionSigningKey)
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.SessionIssuer),
	}
	return func(ctx *gin.Context) {
		cookie, err := ctx.Cookie(cfg.SessionCookieName)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
			return
		}
		claims := &sessionClaims{}
		token, err := jwt.ParseWithClaims(cookie, claims, func(*jwt.Token) (any, error) {
			return signingKey, nil
		}, parserOptions...)
		if err != nil || !token.Valid {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid session"))
			return
		}
		if claims.Subject == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "session missing subject"))
			return
		}
		ctx.Set(claimsContextKey, claims)
		ctx.Next()
	}
}

func getClaims(ctx *gin.Context) *sessionClaims {
	claimsValue, ok := ctx.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*sessionClaims)
	return claims
}
