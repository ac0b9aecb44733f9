// Package buddy exposes the backend operations of SQL Query Buddy as values:
// every call returns a Result and never an error.
package buddy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aman-zulfiqar/sql-query-buddy/internal/apierror"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/client"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/models"
)

// Backend endpoints.
const (
	EndpointRoot     = "/"
	EndpointHealth   = "/health"
	EndpointTables   = "/tables"
	EndpointAsk      = "/ask"
	EndpointMetadata = "/metadata"
)

// Service adapts the backend client into named operations.
type Service struct {
	client *client.Client
}

func NewService(c *client.Client) *Service {
	return &Service{client: c}
}

// AskQuestion asks the backend to generate SQL for question.
func (s *Service) AskQuestion(ctx context.Context, question string) Result[models.QueryResult] {
	raw, err := s.client.Post(ctx, EndpointAsk, models.AskRequest{Question: question})
	return decode[models.QueryResult](raw, err)
}

// CheckHealth probes backend liveness.
func (s *Service) CheckHealth(ctx context.Context) Result[models.HealthStatus] {
	raw, err := s.client.Get(ctx, EndpointHealth, nil)
	return decode[models.HealthStatus](raw, err)
}

// GetTables lists the tables the backend knows about.
func (s *Service) GetTables(ctx context.Context) Result[models.TablesResponse] {
	raw, err := s.client.Get(ctx, EndpointTables, nil)
	return decode[models.TablesResponse](raw, err)
}

// AddTableMetadata registers or replaces a table description on the backend.
func (s *Service) AddTableMetadata(ctx context.Context, tableName, schemaInfo, description string) Result[models.MetadataAck] {
	raw, err := s.client.Post(ctx, EndpointMetadata, models.MetadataRequest{
		TableName:   tableName,
		SchemaInfo:  schemaInfo,
		Description: description,
	})
	return decode[models.MetadataAck](raw, err)
}

// GetAPIInfo fetches the backend's service information.
func (s *Service) GetAPIInfo(ctx context.Context) Result[models.APIInfo] {
	raw, err := s.client.Get(ctx, EndpointRoot, nil)
	return decode[models.APIInfo](raw, err)
}

// decode is the single point where executor errors become values.
func decode[T any](raw json.RawMessage, err error) Result[T] {
	if err != nil {
		return Fail[T](apierror.From(err))
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return Fail[T](apierror.NewConnection(fmt.Sprintf("connection error: unexpected response payload: %v", err)))
	}
	return OK(out)
}
