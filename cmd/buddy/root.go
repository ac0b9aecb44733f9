package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aman-zulfiqar/sql-query-buddy/internal/buddy"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/client"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// errReported marks a failure that has already been rendered to the user.
var errReported = errors.New("request failed")

type rootOptions struct {
	apiURL   string
	timeout  time.Duration
	jsonOut  bool
	logLevel string
}

// app is the state shared by every subcommand once flags are resolved.
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	svc     *buddy.Service
	out     io.Writer
	jsonOut bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	a := &app{}

	root := &cobra.Command{
		Use:           "buddy",
		Short:         "Turn natural-language questions into SQL",
		Long:          "buddy talks to a SQL Query Buddy backend: ask questions, inspect tables and register table metadata.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd, opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "backend base URL (default $BUDDY_API_URL or http://localhost:8000)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "per-request timeout (default $REQUEST_TIMEOUT or 30s)")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print raw result envelopes as JSON")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (default $LOG_LEVEL or info)")

	root.AddCommand(
		newAskCmd(a),
		newReplCmd(a),
		newHealthCmd(a),
		newTablesCmd(a),
		newInfoCmd(a),
		newMetadataCmd(a),
		newRunSQLCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command, opts *rootOptions) error {
	cfg := config.Load()
	if opts.apiURL != "" {
		cfg.APIBaseURL = opts.apiURL
	}
	if opts.timeout != 0 {
		cfg.RequestTimeout = opts.timeout
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(cfg.Level())

	a.cfg = cfg
	a.logger = logger
	a.out = cmd.OutOrStdout()
	a.jsonOut = opts.jsonOut
	a.svc = buddy.NewService(client.NewClient(client.ClientConfig{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
	}))

	logger.WithFields(logrus.Fields{
		"api_url": cfg.APIBaseURL,
		"timeout": cfg.RequestTimeout,
	}).Debug("client configured")
	return nil
}
