package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aman-zulfiqar/sql-query-buddy/internal/controller"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

const replHelp = `Type a question and press Enter.
  :retry   resubmit the last question
  :new     clear the current result
  :health  re-check the backend
  :tables  list known tables
  :quit    exit`

func newReplCmd(a *app) *cobra.Command {
	var watch time.Duration
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive question loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch < 0 {
				return fmt.Errorf("--watch must not be negative, got %s", watch)
			}
			return a.repl(cmd.Context(), cmd.InOrStdin(), watch)
		},
	}
	cmd.Flags().DurationVar(&watch, "watch", 0, "re-check backend health at this interval (0 disables)")
	return cmd
}

// lockedWriter serializes writes from the input loop and background health checks.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// stateRenderer prints controller transitions as they happen.
type stateRenderer struct {
	a    *app
	prev controller.State
}

func (r *stateRenderer) onChange(s controller.State) {
	w := r.a.out
	if r.a.jsonOut {
		_ = printJSON(w, s)
		r.prev = s
		return
	}

	if s.Connectivity != r.prev.Connectivity {
		switch s.Connectivity {
		case controller.ConnectivityHealthy:
			fmt.Fprint(w, pterm.Success.Sprintln("backend is reachable"))
		case controller.ConnectivityUnreachable:
			fmt.Fprint(w, pterm.Warning.Sprintln("backend is unreachable; questions may fail (:health to re-check)"))
		}
	}

	if s.Submission != r.prev.Submission || s.LastQuestion != r.prev.LastQuestion {
		switch s.Submission {
		case controller.SubmissionSubmitting:
			fmt.Fprint(w, pterm.Info.Sprintln("generating SQL..."))
		case controller.SubmissionSuccess:
			renderQueryResult(w, s.Result)
		case controller.SubmissionFailed:
			fmt.Fprint(w, pterm.Error.Sprintln(s.Error))
			fmt.Fprintln(w, "  :retry to try again")
		}
	}
	r.prev = s
}

func (a *app) repl(ctx context.Context, in io.Reader, watch time.Duration) error {
	out := a.out
	a.out = &lockedWriter{w: out}
	defer func() { a.out = out }()

	r := &stateRenderer{a: a}
	ctl := controller.New(a.svc, controller.Options{
		Logger:   a.logger,
		OnChange: r.onChange,
	})
	r.prev = ctl.State()

	if !a.jsonOut {
		fmt.Fprintln(a.out, pterm.NewStyle(pterm.FgLightCyan, pterm.Bold).Sprint("SQL Query Buddy"))
		fmt.Fprintln(a.out, replHelp)
		fmt.Fprintln(a.out)
	}
	started := ctl.Start(ctx)

	watchCtx, stopWatch := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		<-started
		stopWatch()
		wg.Wait()
	}()
	if watch > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ctl.MonitorHealth(watchCtx, watch)
		}()
	}

	scanner := bufio.NewScanner(in)
	for {
		if !a.jsonOut {
			fmt.Fprint(a.out, "> ")
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case ":quit", ":q", ":exit":
			return nil
		case ":help":
			fmt.Fprintln(a.out, replHelp)
		case ":retry":
			if err := ctl.Retry(ctx); errors.Is(err, controller.ErrNothingToRetry) {
				fmt.Fprint(a.out, pterm.Warning.Sprintln("nothing to retry yet"))
			}
		case ":new":
			ctl.NewQuery()
			fmt.Fprintln(a.out, "ready for a new question")
		case ":health":
			ctl.CheckHealth(ctx)
		case ":tables":
			_ = emit(a, a.svc.GetTables(ctx), renderTables)
		default:
			if strings.HasPrefix(line, ":") {
				fmt.Fprint(a.out, pterm.Warning.Sprintln("unknown command "+line+" (:help)"))
				continue
			}
			if err := ctl.Submit(ctx, line); err != nil {
				fmt.Fprint(a.out, pterm.Warning.Sprintln(err.Error()))
			}
		}
	}
}
