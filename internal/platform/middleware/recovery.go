package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medops/triage/internal/platform/auth"
)

const maxPanicStack = 8 << 10

// Recovery turns a handler panic into a bare 500 and logs it against the
// matched route and the calling user. http.ErrAbortHandler is re-raised.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}

				stack := make([]byte, maxPanicStack)
				stack = stack[:runtime.Stack(stack, false)]

				req := c.Request()
				route := c.Path()
				if route == "" {
					route = req.URL.Path
				}
				evt := logger.Error().
					Str("request_id", requestID(c)).
					Str("method", req.Method).
					Str("route", route).
					Str("user_id", auth.UserIDFromContext(req.Context())).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", stack)
				if perr, ok := r.(error); ok {
					evt = evt.Err(perr)
				}
				evt.Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}
