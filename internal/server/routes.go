package server

import (
	"net/http"

	"github.com/aman-zulfiqar/sql-query-buddy/internal/constants"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = JSONErrorHandler()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.Use(SetJSONContentType)
	e.Use(SetNoCacheHeaders)

	e.GET("/", h.Root)
	e.GET("/health", h.Health)
	e.GET("/tables", h.ListTables)
	e.POST("/metadata", h.Metadata)

	askRate := cfg.AskRate
	if askRate <= 0 {
		askRate = constants.AskRateLimit
	}
	e.POST("/ask", h.Ask, middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(askRate),
		Burst:     constants.AskRateBurst,
		ExpiresIn: constants.AskRateExpiresIn,
	})))

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, models.ErrorResponse{Detail: "not found", Code: http.StatusNotFound})
	})
}
