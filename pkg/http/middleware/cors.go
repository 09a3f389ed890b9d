package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// CORS allows browser dashboards to query the read API from the given
// origins ("*" for any). The surface is GET-only, so the preflight
// answer is static.
func CORS(origins []string) echo.MiddlewareFunc {
	any := len(origins) == 1 && origins[0] == "*"
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	methods := strings.Join([]string{http.MethodGet, http.MethodOptions}, ", ")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := c.Request().Header.Get(echo.HeaderOrigin)
			_, ok := allowed[origin]
			if origin == "" || (!any && !ok) {
				return next(c)
			}

			h := c.Response().Header()
			if any {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add(echo.HeaderVary, echo.HeaderOrigin)
			}
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", strings.Join([]string{
				echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept,
			}, ", "))

			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}
