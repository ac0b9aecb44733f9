package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/aman-zulfiqar/sql-query-buddy/internal/constants"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/models"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/storage"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// GeneratorConfig holds configuration for the SQL generator.
type GeneratorConfig struct {
	// OpenRouter / LLM settings. Ignored when LLM is set.
	APIKey  string
	BaseURL string
	// Model name as understood by OpenRouter, e.g. "openai/gpt-4.1-mini".
	Model string

	// LLM overrides the OpenAI-compatible client.
	LLM llms.Model

	// Tables supplies schema context for prompts. May be nil.
	Tables storage.MetadataStore

	Logger *logrus.Logger
}

// Generator produces SQL from natural-language questions using an LLM and
// the stored table metadata.
type Generator struct {
	llm    llms.Model
	model  string
	tables storage.MetadataStore
	logger *logrus.Logger
}

var _ storage.SQLGenerator = (*Generator)(nil)

// NewGenerator creates a Generator, building an OpenRouter client unless cfg.LLM is set.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	llm := cfg.LLM
	if llm == nil {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OPENROUTER_API_KEY is required")
		}
		if cfg.Model == "" {
			cfg.Model = "openai/gpt-4.1-mini"
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://openrouter.ai/api/v1"
		}

		var err error
		llm, err = openai.New(
			openai.WithToken(cfg.APIKey),
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}

		cfg.Logger.WithFields(logrus.Fields{
			"base_url": cfg.BaseURL,
			"model":    cfg.Model,
		}).Info("initialized SQL generator")
	}

	return &Generator{
		llm:    llm,
		model:  cfg.Model,
		tables: cfg.Tables,
		logger: cfg.Logger,
	}, nil
}

// Model reports the configured model name, empty when an LLM override is used
// without one.
func (g *Generator) Model() string { return g.model }

// Generate asks the model for SQL answering question over the most relevant tables.
func (g *Generator) Generate(ctx context.Context, question string) (*models.QueryResult, error) {
	tables, err := g.relevantTables(ctx, question)
	if err != nil {
		return nil, err
	}

	resp, err := llms.GenerateFromSinglePrompt(
		ctx,
		g.llm,
		buildPrompt(question, tables),
		llms.WithTemperature(0),
		llms.WithMaxTokens(constants.MaxGenerationToken),
	)
	if err != nil {
		return nil, fmt.Errorf("LLM SQL generation failed: %w", err)
	}

	res, err := decodeAnswer(resp)
	if err != nil {
		g.logger.WithError(err).WithField("response", resp).Warn("unusable model response")
		return nil, err
	}

	g.logger.WithFields(logrus.Fields{
		"sql":    res.SQLQuery,
		"tables": len(tables),
	}).Debug("generated SQL from question")
	return res, nil
}

// Ping checks that the model answers a trivial prompt.
func (g *Generator) Ping(ctx context.Context) error {
	resp, err := llms.GenerateFromSinglePrompt(
		ctx,
		g.llm,
		"Reply with the single word OK.",
		llms.WithTemperature(0),
		llms.WithMaxTokens(5),
	)
	if err != nil {
		return fmt.Errorf("LLM ping failed: %w", err)
	}
	if !strings.Contains(strings.ToUpper(resp), "OK") {
		return fmt.Errorf("unexpected LLM ping reply %q", strings.TrimSpace(resp))
	}
	return nil
}

func (g *Generator) relevantTables(ctx context.Context, question string) ([]models.TableMetadata, error) {
	if g.tables == nil {
		return nil, nil
	}
	all, err := g.tables.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load table metadata: %w", err)
	}
	return rankTables(question, all, constants.MaxContextTables), nil
}
