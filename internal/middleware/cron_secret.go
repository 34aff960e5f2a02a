package middleware

import (
	"crypto/subtle"
	"net/http"

	"FxPipe/internal/service/metrics"
	xhttp "FxPipe/pkg/http"

	"github.com/labstack/echo/v4"
)

// CronSecretHeader carries the shared secret sent by the scheduler.
const CronSecretHeader = "x-cron-secret"

// RequirePOST rejects every method except POST with 405.
func RequirePOST() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method != http.MethodPost {
				metrics.TriggerErrors.WithLabelValues(c.Param("name"), "method").Inc()
				return xhttp.JobErrorResponse(c, http.StatusMethodNotAllowed, "Method not allowed")
			}
			return next(c)
		}
	}
}

// CronSecret enforces the x-cron-secret header. An empty secret disables
// the check.
func CronSecret(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				return next(c)
			}
			got := c.Request().Header.Get(CronSecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				metrics.TriggerErrors.WithLabelValues(c.Param("name"), "unauthorized").Inc()
				return xhttp.JobErrorResponse(c, http.StatusUnauthorized, "Unauthorized")
			}
			return next(c)
		}
	}
}
