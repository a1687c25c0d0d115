package router

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	apperrors "accpanel/internal/errors"
)

// NewHTTPErrorHandler maps the domain error taxonomy onto HTTP responses.
// Validation, conflict and not-found outcomes are expected results and are not
// logged; everything unclassified is logged as an unhandled error and returned
// as a generic 500.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		// Echo's own errors: bind failures, router 404s, policy rejections.
		var he *echo.HTTPError
		if errors.As(err, &he) {
			_ = c.JSON(he.Code, apperrors.ErrorResponse{
				Error: fmt.Sprintf("%v", he.Message),
				Code:  http.StatusText(he.Code),
			})
			return
		}

		httpErr := apperrors.MapErrorToHTTP(err)
		if httpErr.StatusCode >= http.StatusInternalServerError {
			log.Error().
				Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Msg("unhandled error")
		}
		_ = c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
}
