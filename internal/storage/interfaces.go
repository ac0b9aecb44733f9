package storage

import (
	"context"
	"errors"

	"github.com/aman-zulfiqar/sql-query-buddy/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// MetadataStore defines persistent storage for table metadata
type MetadataStore interface {
	// Upsert stores meta, replacing any entry with the same table name
	Upsert(ctx context.Context, meta models.TableMetadata) (*models.TableMetadata, error)

	// Get returns one table or ErrNotFound
	Get(ctx context.Context, tableName string) (*models.TableMetadata, error)

	// List returns every stored table ordered by name
	List(ctx context.Context) ([]models.TableMetadata, error)

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error
}

// AnswerCache caches generated answers by question
type AnswerCache interface {
	// Get returns a cached answer, or ErrNotFound on a miss
	Get(ctx context.Context, question string) (*models.QueryResult, error)

	// Set caches an answer for question
	Set(ctx context.Context, question string, result *models.QueryResult) error

	// Purge drops every cached answer
	Purge(ctx context.Context) error
}

// SQLGenerator turns natural-language questions into SQL
type SQLGenerator interface {
	// Generate produces SQL, an explanation and optimization notes for question
	Generate(ctx context.Context, question string) (*models.QueryResult, error)

	// Ping checks if the model answers
	Ping(ctx context.Context) error
}
