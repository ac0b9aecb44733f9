package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aman-zulfiqar/sql-query-buddy/internal/constants"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/metadata"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/models"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/storage"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Store     storage.MetadataStore // Redis-backed table metadata
	Answers   storage.AnswerCache   // Optional answer cache (can be nil)
	Generator storage.SQLGenerator  // LLM-backed SQL generator
	Model     string                // Model name reported by /health
	DevMode   bool                  // Enable detailed error responses in development
	Logger    *logrus.Logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := models.ErrorResponse{Detail: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// Root describes the API
func (h *Handlers) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, models.APIInfo{
		Message: constants.APIName,
		Version: constants.APIVersion,
		Status:  "running",
		Endpoints: map[string]string{
			"ask":      "POST /ask - generate a SQL query",
			"metadata": "POST /metadata - add table metadata",
			"tables":   "GET /tables - list known tables",
			"health":   "GET /health - service status",
		},
	})
}

// Health pings the metadata store and the LLM
func (h *Handlers) Health(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	if err := h.Store.Ping(ctx); err != nil {
		h.Logger.WithError(err).Warn("health check: metadata store unreachable")
		return h.err(c, http.StatusInternalServerError, fmt.Sprintf("health check failed: %v", err), nil)
	}
	if err := h.Generator.Ping(ctx); err != nil {
		h.Logger.WithError(err).Warn("health check: llm unreachable")
		return h.err(c, http.StatusInternalServerError, fmt.Sprintf("health check failed: %v", err), nil)
	}

	cacheStatus := "disabled"
	if h.Answers != nil {
		cacheStatus = "operational"
	}

	return c.JSON(http.StatusOK, models.HealthStatus{
		Status: "healthy",
		Services: map[string]string{
			"metadata_store": "operational",
			"sql_generator":  "operational",
			"llm":            "operational",
			"answer_cache":   cacheStatus,
		},
		Config: map[string]string{
			"model": h.Model,
		},
	})
}

// ListTables lists every stored table
func (h *Handlers) ListTables(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), constants.StoreOpTimeout)
	defer cancel()

	items, err := h.Store.List(ctx)
	if err != nil {
		h.Logger.WithError(err).Error("failed to list tables")
		return h.err(c, http.StatusInternalServerError, fmt.Sprintf("internal server error: %v", err), nil)
	}
	return c.JSON(http.StatusOK, models.TablesResponse{Tables: items, TotalCount: len(items)})
}

// Ask generates SQL for a natural language question.
// Answers are served from the cache when present.
func (h *Handlers) Ask(c echo.Context) error {
	var req models.AskRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return h.err(c, http.StatusBadRequest, "question must not be empty", map[string]any{"question": "required"})
	}
	if n := utf8.RuneCountInString(question); n > models.MaxQuestionLength {
		return h.err(c, http.StatusBadRequest,
			fmt.Sprintf("question must be at most %d characters", models.MaxQuestionLength),
			map[string]any{"question": n})
	}

	logger := h.Logger.WithField("question", question)

	if h.Answers != nil {
		cctx, cancel := h.withTimeout(c.Request().Context(), constants.StoreOpTimeout)
		cached, err := h.Answers.Get(cctx, question)
		cancel()
		switch {
		case err == nil:
			logger.Debug("answer served from cache")
			return c.JSON(http.StatusOK, cached)
		case !errors.Is(err, storage.ErrNotFound):
			logger.WithError(err).Warn("answer cache lookup failed")
		}
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 45*time.Second)
	defer cancel()

	start := time.Now()
	res, err := h.Generator.Generate(ctx, question)
	if err != nil {
		logger.WithError(err).Error("sql generation failed")
		return h.err(c, http.StatusInternalServerError, fmt.Sprintf("internal server error: %v", err), nil)
	}
	logger.WithField("took_ms", time.Since(start).Milliseconds()).Info("sql generated")

	if h.Answers != nil {
		if err := h.Answers.Set(ctx, question, res); err != nil {
			logger.WithError(err).Warn("failed to cache answer")
		}
	}

	return c.JSON(http.StatusOK, res)
}

// Metadata adds or replaces a table description and invalidates cached answers
func (h *Handlers) Metadata(c echo.Context) error {
	var req models.MetadataRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	req.TableName = strings.TrimSpace(req.TableName)
	req.SchemaInfo = strings.TrimSpace(req.SchemaInfo)
	if req.TableName == "" || req.SchemaInfo == "" {
		return h.err(c, http.StatusBadRequest, "table name and schema info are required", nil)
	}
	if err := metadata.ValidateTableName(req.TableName); err != nil {
		return h.err(c, http.StatusBadRequest, err.Error(), map[string]any{"table_name": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), constants.StoreOpTimeout)
	defer cancel()

	saved, err := h.Store.Upsert(ctx, models.TableMetadata{
		TableName:   req.TableName,
		SchemaInfo:  req.SchemaInfo,
		Description: req.Description,
	})
	if err != nil {
		h.Logger.WithError(err).WithField("table", req.TableName).Error("failed to store table metadata")
		return h.err(c, http.StatusInternalServerError, fmt.Sprintf("internal server error: %v", err), nil)
	}

	if h.Answers != nil {
		if err := h.Answers.Purge(ctx); err != nil {
			h.Logger.WithError(err).Warn("failed to purge answer cache")
		}
	}

	h.Logger.WithField("table", saved.TableName).Info("table metadata stored")
	return c.JSON(http.StatusOK, models.MetadataAck{
		Message:   fmt.Sprintf("metadata for table '%s' added successfully", saved.TableName),
		TableName: saved.TableName,
		Status:    "success",
	})
}
