package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/logger"
)

// RequestLogging logs every request with method, path, status and
// latency.
func RequestLogging(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			log.Debug("request",
				logger.String("method", c.Request().Method),
				logger.String("path", c.Request().URL.Path),
				logger.Int("status", c.Response().Status),
				logger.Duration("latency", time.Since(start)),
			)
			return err
		}
	}
}
