package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/capdir/auth/authctx"
	apperrors "github.com/kbukum/capdir/errors"
)

// TokenValidator parses a bearer token into claims.
type TokenValidator func(token string) (any, error)

// Auth requires a valid bearer token and stores its claims in the request
// context with authctx.
func Auth(validate TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, apperrors.Unauthorized("Authorization header required."))
			return
		}
		token, ok := authctx.BearerToken(header)
		if !ok {
			abort(c, apperrors.Unauthorized("Invalid authorization header format."))
			return
		}
		claims, err := validate(token)
		if err != nil {
			abort(c, apperrors.InvalidToken().WithCause(err))
			return
		}
		c.Request = c.Request.WithContext(authctx.Set(c.Request.Context(), claims))
		c.Next()
	}
}

func abort(c *gin.Context, err *apperrors.AppError) {
	status := err.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, err.ToResponse())
}
