package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	srvErrors "github.com/kubev2v/asyncqueue/pkg/errors"
)

const bearerPrefix = "Bearer "

// JWTAuth rejects requests without a bearer token signed with secret (HS256).
// The validated claims are stored in the context under "claims".
func JWTAuth(secret string) gin.HandlerFunc {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	keyFn := func(*jwt.Token) (any, error) { return []byte(secret), nil }

	return func(c *gin.Context) {
		claims, err := authenticate(parser, keyFn, c.GetHeader("Authorization"))
		if err != nil {
			zap.S().Named("auth").Debugw("request rejected", "path", c.Request.URL.Path, "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set("claims", claims)
		c.Next()
	}
}

func authenticate(parser *jwt.Parser, keyFn jwt.Keyfunc, header string) (*jwt.RegisteredClaims, error) {
	if header == "" {
		return nil, srvErrors.NewUnauthorizedError("missing authorization header")
	}
	raw, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok || raw == "" {
		return nil, srvErrors.NewUnauthorizedError("expected a bearer token")
	}

	claims := &jwt.RegisteredClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, keyFn); err != nil {
		return nil, srvErrors.NewUnauthorizedError(err.Error())
	}
	return claims, nil
}
