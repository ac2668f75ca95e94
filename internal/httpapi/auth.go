package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const basicAuthRealm = "leadscout"

// requireDashboardAuth guards the API with the shared dashboard login.
// Health stays open for probes.
func (s *Server) requireDashboardAuth() echo.MiddlewareFunc {
	creds := s.opts.Credentials
	return middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Realm: basicAuthRealm,
		Skipper: func(c echo.Context) bool {
			return c.Request().Method == http.MethodOptions || c.Path() == "/api/v1/health"
		},
		Validator: func(username, password string, c echo.Context) (bool, error) {
			ok := creds.Verify(username, password)
			if !ok {
				s.logger.Warn().Str("remote_ip", c.RealIP()).Msg("dashboard login rejected")
			}
			return ok, nil
		},
	})
}
