// Package querytool runs ad-hoc read-only SQL against an external database.
// Failures are reported in Outcome.Error rather than as Go errors.
package querytool

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aman-zulfiqar/sql-query-buddy/internal/constants"

	"github.com/sirupsen/logrus"
)

// Runner executes one read-only query.
type Runner interface {
	Query(ctx context.Context, query string) (*Rows, error)
	Close() error
}

// Rows is a materialized result set.
type Rows struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Truncated bool             `json:"truncated,omitempty"`
}

// Outcome carries either rows or an error message.
type Outcome struct {
	Rows  *Rows  `json:"rows,omitempty"`
	Error string `json:"error,omitempty"`
}

// Execute validates query and runs it. It never returns a Go error.
func Execute(ctx context.Context, r Runner, query string) Outcome {
	q, err := Normalize(query)
	if err != nil {
		return Outcome{Error: err.Error()}
	}
	if r == nil {
		return Outcome{Error: "query tool is not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, constants.QueryToolTimeout)
	defer cancel()

	rows, err := r.Query(ctx, q)
	if err != nil {
		return Outcome{Error: err.Error()}
	}
	return Outcome{Rows: rows}
}

// dbRunner runs queries on a database/sql handle.
type dbRunner struct {
	db *sql.DB
	// readOnlyTx wraps each query in a read-only transaction.
	readOnlyTx bool
	logger     *logrus.Logger
}

func (r *dbRunner) Query(ctx context.Context, query string) (*Rows, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if r.readOnlyTx {
		tx, txErr := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
		if txErr != nil {
			return nil, fmt.Errorf("failed to begin read-only transaction: %w", txErr)
		}
		defer func() { _ = tx.Rollback() }()
		rows, err = tx.QueryContext(ctx, query)
	} else {
		rows, err = r.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	out, err := scanRows(rows, constants.MaxQueryToolRows)
	if err != nil {
		return nil, err
	}
	r.logger.WithFields(logrus.Fields{
		"rows":      len(out.Rows),
		"truncated": out.Truncated,
	}).Debug("query tool returned rows")
	return out, nil
}

func (r *dbRunner) Close() error {
	return r.db.Close()
}

func scanRows(rows *sql.Rows, maxRows int) (*Rows, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	out := &Rows{Columns: cols, Rows: []map[string]any{}}
	for rows.Next() {
		if len(out.Rows) == maxRows {
			out.Truncated = true
			break
		}
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}
