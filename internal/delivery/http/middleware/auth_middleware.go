package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"

	"curation-grid/internal/pkg/jwt"
)

const (
	CtxCuratorIDKey   = "curator_id"
	CtxCuratorNameKey = "curator_name"
)

type AuthMiddleware struct {
	jwt jwt.Service
}

func NewAuthMiddleware(jwtSvc jwt.Service) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwtSvc}
}

// Middleware accepts the token from the Authorization header, or from the
// access_token query parameter for websocket upgrades where browsers cannot
// set headers.
func (m *AuthMiddleware) Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, ok := bearerTokenFromHeader(c.Get("Authorization"))
		if !ok {
			token = strings.TrimSpace(c.Query("access_token"))
			ok = token != ""
		}
		if !ok {
			return NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
		}

		claims, err := m.jwt.ValidateToken(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return NewAppError(fiber.StatusUnauthorized, "Token expired", nil, err)
			}
			return NewAppError(fiber.StatusUnauthorized, "Invalid token", nil, err)
		}

		c.Locals(CtxCuratorIDKey, claims.CuratorID.String())
		c.Locals(CtxCuratorNameKey, claims.Name)

		return c.Next()
	}
}

// CuratorFromCtx returns the authenticated curator id set by the auth
// middleware.
func CuratorFromCtx(c fiber.Ctx) (string, bool) {
	id, ok := c.Locals(CtxCuratorIDKey).(string)
	return id, ok && id != ""
}

func bearerTokenFromHeader(authHeader string) (string, bool) {
	authHeader = strings.TrimSpace(authHeader)
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
