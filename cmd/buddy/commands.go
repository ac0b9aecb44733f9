package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aman-zulfiqar/sql-query-buddy/internal/controller"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/models"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/querytool"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newAskCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Generate SQL for a natural-language question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := controller.ValidateQuestion(strings.Join(args, " "))
			if err != nil {
				return err
			}
			return emit(a, a.svc.AskQuestion(cmd.Context(), q), renderQueryResult)
		},
	}
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check backend health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return emit(a, a.svc.CheckHealth(cmd.Context()), renderHealth)
		},
	}
}

func newTablesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables known to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return emit(a, a.svc.GetTables(cmd.Context()), renderTables)
		},
	}
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show backend service information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return emit(a, a.svc.GetAPIInfo(cmd.Context()), renderInfo)
		},
	}
}

func newMetadataCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Register table metadata used for SQL generation",
	}

	var table, schema, description string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add or replace one table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return emit(a, a.svc.AddTableMetadata(cmd.Context(), table, schema, description), renderAck)
		},
	}
	add.Flags().StringVar(&table, "table", "", "table name")
	add.Flags().StringVar(&schema, "schema", "", "schema, e.g. \"id INT, name TEXT\"")
	add.Flags().StringVar(&description, "description", "", "what the table holds")
	_ = add.MarkFlagRequired("table")
	_ = add.MarkFlagRequired("schema")

	upload := &cobra.Command{
		Use:   "upload <file.yaml>",
		Short: "Add every table listed in a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.upload(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(add, upload)
	return cmd
}

// metadataFile is the layout read by `metadata upload`.
type metadataFile struct {
	Tables []models.TableMetadata `yaml:"tables"`
}

func loadMetadataFile(path string) ([]models.TableMetadata, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata file: %w", err)
	}
	var f metadataFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse metadata file %s: %w", path, err)
	}
	if len(f.Tables) == 0 {
		return nil, fmt.Errorf("metadata file %s lists no tables", path)
	}
	return f.Tables, nil
}

func (a *app) upload(ctx context.Context, path string) error {
	tables, err := loadMetadataFile(path)
	if err != nil {
		return err
	}

	failed := 0
	for _, t := range tables {
		res := a.svc.AddTableMetadata(ctx, t.TableName, t.SchemaInfo, t.Description)
		if !res.Success {
			failed++
		}
		if a.jsonOut {
			if err := printJSON(a.out, res); err != nil {
				return err
			}
			continue
		}
		if res.Success {
			renderAck(a.out, res.Data)
		} else {
			renderFailure(a.out, fmt.Sprintf("%s: %s", t.TableName, res.Error), res.Details)
		}
	}

	a.logger.WithField("tables", len(tables)).WithField("failed", failed).Debug("metadata upload finished")
	if failed > 0 {
		return errReported
	}
	return nil
}

func newRunSQLCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run-sql <sql>",
		Short: "Run a read-only query against the configured database",
		Long:  "Runs a single read-only statement using QUERY_TOOL_DRIVER (postgres or clickhouse).",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := a.runSQL(cmd.Context(), strings.Join(args, " "))
			if a.jsonOut {
				if err := printJSON(a.out, out); err != nil {
					return err
				}
			} else if out.Error == "" {
				renderRows(a.out, out.Rows)
			} else {
				renderFailure(a.out, out.Error, nil)
			}
			if out.Error != "" {
				return errReported
			}
			return nil
		},
	}
}

func (a *app) runSQL(ctx context.Context, query string) querytool.Outcome {
	if _, err := querytool.Normalize(query); err != nil {
		return querytool.Outcome{Error: err.Error()}
	}
	runner, err := querytool.Open(ctx, a.cfg, a.logger)
	if err != nil {
		return querytool.Outcome{Error: err.Error()}
	}
	defer runner.Close()
	return querytool.Execute(ctx, runner, query)
}
