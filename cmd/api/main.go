package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/aman-zulfiqar/sql-query-buddy/internal/ai"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/cache"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/config"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/metadata"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/server"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/storage"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// loadEnv reads .env from the project root when present.
func loadEnv(logger *logrus.Logger) {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	logger.SetLevel(cfg.Level())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	rclient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   0,
	})
	defer rclient.Close()
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	store, err := metadata.NewStore(rclient)
	if err != nil {
		logger.WithError(err).Fatal("failed to create metadata store")
	}

	// A zero TTL disables answer caching.
	var answers storage.AnswerCache
	if cfg.AnswerCacheTTL > 0 {
		ac, err := cache.NewAnswerCache(rclient, cfg.AnswerCacheTTL)
		if err != nil {
			logger.WithError(err).Fatal("failed to create answer cache")
		}
		answers = ac
	}

	gen, err := ai.NewGenerator(ai.GeneratorConfig{
		APIKey:  cfg.OpenRouterAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
		Tables:  store,
		Logger:  logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize sql generator")
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: &server.Handlers{
			Store:     store,
			Answers:   answers,
			Generator: gen,
			Model:     gen.Model(),
			DevMode:   cfg.DevMode,
			Logger:    logger,
		},
		Config: server.ServerConfig{
			Addr:           cfg.APIAddr,
			DevMode:        cfg.DevMode,
			AllowedOrigins: cfg.AllowedOrigins,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	logger.WithField("addr", cfg.APIAddr).Info("api server starting")
	if err := serve(srv, sigCh, cancel, logger); err != nil {
		logger.WithError(err).Fatal("api server failed")
	}
}

type httpServer interface {
	Start() error
	Shutdown(ctx context.Context) error
	WaitClosed(ctx context.Context) error
}

// serve runs srv until stop fires, then returns once Shutdown has drained
// in-flight requests.
func serve(srv httpServer, stop <-chan os.Signal, onStop func(), logger *logrus.Logger) error {
	go func() {
		<-stop
		logger.Info("shutting down")
		onStop()
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("server did not close cleanly")
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return srv.WaitClosed(context.Background())
}
