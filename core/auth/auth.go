package auth

import (
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"lendhub.GO/config"
	"lendhub.GO/core/identity"
)

// Middleware returns the transport auth middleware based on AUTH_TYPE env var.
func Middleware() echo.MiddlewareFunc {
	skipper := buildSkipper()
	switch os.Getenv("AUTH_TYPE") {
	case "key":
		return keyAuth(skipper)
	default:
		return basicAuth(skipper)
	}
}

func buildSkipper() middleware.Skipper {
	skipPaths := config.GetAuthSkipperPaths()
	return func(c echo.Context) bool {
		path := c.Path()
		for _, skip := range skipPaths {
			if path == skip {
				return true
			}
		}
		return false
	}
}

func basicAuth(skipper middleware.Skipper) echo.MiddlewareFunc {
	return middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Validator: func(username, password string, c echo.Context) (bool, error) {
			return username == os.Getenv("API_USER") && password == os.Getenv("API_PASS"), nil
		},
		Skipper: skipper,
	})
}

func keyAuth(skipper middleware.Skipper) echo.MiddlewareFunc {
	apiKey := os.Getenv("API_KEY")
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		Validator: func(key string, c echo.Context) (bool, error) {
			return key == apiKey, nil
		},
		Skipper: skipper,
	})
}

// ActorFromRequest reads the session provider's identity headers. Empty ID
// means unauthenticated; handlers answer 401.
func ActorFromRequest(c echo.Context) identity.Actor {
	role := identity.Role(c.Request().Header.Get("X-User-Role"))
	switch role {
	case identity.RoleAdmin, identity.RoleFaculty, identity.RoleStudent:
	default:
		role = identity.RoleStudent
	}
	return identity.Actor{
		ID:   c.Request().Header.Get("X-User-Id"),
		Role: role,
	}
}
