package httpapi

import (
	"github.com/labstack/echo/v4"

	"github.com/sandgraal/retro-games-sub003/internal/auth"
	"github.com/sandgraal/retro-games-sub003/internal/moderation"
)

const principalKey = "auth.principal"

// resolvePrincipal attaches the caller identity to every request. Requests
// without a verifiable bearer token proceed as anonymous.
func (s *Server) resolvePrincipal() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(principalKey, s.resolver.Resolve(c.Request()))
			return next(c)
		}
	}
}

func (s *Server) requireModerator() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !principalFromContext(c).CanModerate() {
				return failForbidden(c)
			}
			return next(c)
		}
	}
}

func principalFromContext(c echo.Context) auth.Principal {
	if c == nil {
		return auth.Anonymous()
	}
	principal, ok := c.Get(principalKey).(auth.Principal)
	if !ok {
		return auth.Anonymous()
	}
	return principal
}

func authorFromPrincipal(p auth.Principal) moderation.Author {
	return moderation.Author{
		Role:      string(p.Role),
		SessionID: p.SessionID,
		Email:     p.Email,
	}
}
