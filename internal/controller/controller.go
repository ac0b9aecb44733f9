// Package controller owns the interaction state of a SQL Query Buddy session:
// backend connectivity on one axis and the question lifecycle on the other.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/aman-zulfiqar/sql-query-buddy/internal/buddy"
	"github.com/aman-zulfiqar/sql-query-buddy/internal/models"

	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidQuestion is returned for empty questions and questions longer
	// than models.MaxQuestionLength characters after trimming.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrNothingToRetry is returned by Retry when no question was submitted.
	ErrNothingToRetry = errors.New("no question to retry")
)

const unknownFailure = "unknown error while generating SQL"

// Operations is the subset of the domain operations the controller drives.
type Operations interface {
	AskQuestion(ctx context.Context, question string) buddy.Result[models.QueryResult]
	CheckHealth(ctx context.Context) buddy.Result[models.HealthStatus]
}

// Options configures a Controller.
type Options struct {
	Logger *logrus.Logger
	// OnChange receives a snapshot after every transition. It runs while the
	// controller is locked and must not call back into it.
	OnChange func(State)
}

// Controller coordinates health checks and question submissions.
// Each started submission and health check is tagged with a generation;
// a completion is applied only if no newer one has started since.
type Controller struct {
	ops      Operations
	logger   *logrus.Logger
	onChange func(State)

	mu        sync.Mutex
	state     State
	submitGen uint64
	healthGen uint64
}

func New(ops Operations, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	return &Controller{
		ops:      ops,
		logger:   opts.Logger,
		onChange: opts.OnChange,
		state:    initialState(),
	}
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// ValidateQuestion trims q and checks its length.
func ValidateQuestion(q string) (string, error) {
	trimmed := strings.TrimSpace(q)
	if trimmed == "" {
		return "", fmt.Errorf("%w: question must not be empty", ErrInvalidQuestion)
	}
	if n := utf8.RuneCountInString(trimmed); n > models.MaxQuestionLength {
		return "", fmt.Errorf("%w: question has %d characters, max %d", ErrInvalidQuestion, n, models.MaxQuestionLength)
	}
	return trimmed, nil
}

// Start runs the startup health check in the background. The returned
// channel is closed once that check has completed.
func (c *Controller) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.CheckHealth(ctx)
	}()
	return done
}

// CheckHealth moves connectivity to checking, probes the backend and records
// the outcome. It returns the connectivity in effect once the call completes.
func (c *Controller) CheckHealth(ctx context.Context) Connectivity {
	c.mu.Lock()
	c.healthGen++
	gen := c.healthGen
	c.state.Connectivity = ConnectivityChecking
	c.notifyLocked()
	c.mu.Unlock()

	res := c.ops.CheckHealth(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.healthGen {
		c.logger.WithField("generation", gen).Debug("discarding superseded health check")
		return c.state.Connectivity
	}
	if res.Success {
		c.state.Connectivity = ConnectivityHealthy
	} else {
		c.state.Connectivity = ConnectivityUnreachable
		c.logger.WithField("error", res.Error).Warn("backend health check failed")
	}
	c.notifyLocked()
	return c.state.Connectivity
}

// MonitorHealth re-checks the backend every interval until ctx is done.
func (c *Controller) MonitorHealth(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.WithField("interval", interval).Debug("starting health monitor")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := ctx.Err(); err != nil {
				return err
			}
			c.CheckHealth(ctx)
		}
	}
}

// Submit validates question and, if it is acceptable, asks the backend.
// Rejected questions never reach the network and leave the state untouched.
func (c *Controller) Submit(ctx context.Context, question string) error {
	q, err := ValidateQuestion(question)
	if err != nil {
		return err
	}
	c.run(ctx, q)
	return nil
}

// Retry reissues the last submitted question exactly as stored.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	q := c.state.LastQuestion
	c.mu.Unlock()

	if q == "" {
		return ErrNothingToRetry
	}
	c.run(ctx, q)
	return nil
}

// NewQuery clears the result, error and last question from any state.
// A submission still in flight is discarded when it completes.
func (c *Controller) NewQuery() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitGen++
	c.state.Submission = SubmissionIdle
	c.state.Result = nil
	c.state.Error = ""
	c.state.LastQuestion = ""
	c.notifyLocked()
}

func (c *Controller) run(ctx context.Context, q string) {
	c.mu.Lock()
	c.submitGen++
	gen := c.submitGen
	c.state.Submission = SubmissionSubmitting
	c.state.Result = nil
	c.state.Error = ""
	c.state.LastQuestion = q
	c.notifyLocked()
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"generation": gen,
		"question":   q,
	}).Debug("submitting question")

	res := c.ops.AskQuestion(ctx, q)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.submitGen {
		c.logger.WithField("generation", gen).Debug("discarding superseded submission")
		return
	}
	if res.Success && res.Data != nil {
		r := *res.Data
		c.state.Submission = SubmissionSuccess
		c.state.Result = &r
		c.state.Error = ""
	} else {
		msg := res.Error
		if msg == "" {
			msg = unknownFailure
		}
		c.state.Submission = SubmissionFailed
		c.state.Result = nil
		c.state.Error = msg
		c.logger.WithField("error", msg).Warn("question submission failed")
	}
	c.notifyLocked()
}

func (c *Controller) notifyLocked() {
	if c.onChange != nil {
		c.onChange(c.state.clone())
	}
}
