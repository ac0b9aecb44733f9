package server

import (
	"net/http"

	"github.com/aman-zulfiqar/sql-query-buddy/internal/models"

	"github.com/labstack/echo/v4"
)

// JSONErrorHandler renders every unhandled error, including 404s and rate
// limit rejections, as a models.ErrorResponse.
func JSONErrorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if he, ok := err.(*echo.HTTPError); ok {
			detail := http.StatusText(he.Code)
			if msg, ok := he.Message.(string); ok && msg != "" {
				detail = msg
			}
			_ = c.JSON(he.Code, models.ErrorResponse{Detail: detail, Code: he.Code})
			return
		}

		_ = c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Detail: "internal server error",
			Code:   http.StatusInternalServerError,
		})
	}
}
