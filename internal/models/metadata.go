package models

import "time"

// TableMetadata describes one table the SQL generator may use.
type TableMetadata struct {
	TableName   string    `json:"table_name" yaml:"table_name"`
	SchemaInfo  string    `json:"schema_info" yaml:"schema_info"`
	Description string    `json:"description" yaml:"description"`
	UpdatedAt   time.Time `json:"updated_at,omitempty" yaml:"-"`
}

// MetadataRequest is the body of POST /metadata.
type MetadataRequest struct {
	TableName   string `json:"table_name"`
	SchemaInfo  string `json:"schema_info"`
	Description string `json:"description"`
}

// MetadataAck confirms a stored table.
type MetadataAck struct {
	Message   string `json:"message"`
	TableName string `json:"table_name"`
	Status    string `json:"status"`
}

// TablesResponse is the body of GET /tables.
type TablesResponse struct {
	Tables     []TableMetadata `json:"tables"`
	TotalCount int             `json:"total_count"`
}
