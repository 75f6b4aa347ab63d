package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/phrazzld/throttleq/internal/config"
	"github.com/phrazzld/throttleq/internal/events"
	"github.com/phrazzld/throttleq/internal/fetch"
	"github.com/phrazzld/throttleq/internal/journal"
	"github.com/phrazzld/throttleq/internal/platform/postgres"
	"github.com/phrazzld/throttleq/internal/progress"
	"github.com/phrazzld/throttleq/internal/redact"
	"github.com/phrazzld/throttleq/internal/service/auth"
	"github.com/phrazzld/throttleq/internal/store"
	"github.com/phrazzld/throttleq/internal/task"
	"github.com/phrazzld/throttleq/internal/tokenfile"
	"golang.org/x/sync/errgroup"
)

// application holds the process-wide dependencies and releases them on cleanup.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// journal is nil when journal.driver is none
	journal      store.JournalStore
	closeJournal func() error

	queue      *task.TaskQueue
	jwtService auth.JWTService
	reporter   *progress.Reporter
	pager      *fetch.Pager
}

// newApplication wires every component the configuration enables. Progress
// snapshots are written to progressOut.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, progressOut io.Writer) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	if err := app.setupJournal(ctx); err != nil {
		app.cleanup()
		return nil, err
	}

	opts := []task.Option{task.WithErrorHandler(app.reportTaskError)}
	if app.journal != nil {
		opts = append(opts, task.WithJournal(app.journal))
	}
	queue, err := task.NewTaskQueue(cfg.Queue.TaskConfig(), logger, opts...)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create task queue: %w", err)
	}
	app.queue = queue

	if cfg.Server.Enabled {
		app.jwtService, err = auth.NewJWTService(cfg.Auth)
		if err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
		}
		logger.Info("JWT authentication service initialized", "token_lifetime", cfg.Auth.TokenLifetime)
	}

	if cfg.Progress.Enabled {
		app.reporter = progress.New(queue, progressOut, logger,
			progress.WithClearScreen(isTerminal(progressOut)))
		queue.On(events.All, app.reporter.Observe)
	}

	if cfg.Fetch.BaseURL != "" {
		token, err := fetchToken(cfg.Fetch)
		if err != nil {
			app.cleanup()
			return nil, err
		}
		app.pager, err = fetch.NewPager(fetch.Config{
			BaseURL:     cfg.Fetch.BaseURL,
			CursorParam: cfg.Fetch.CursorParam,
			StartCursor: cfg.Fetch.StartCursor,
			Token:       token,
			Timeout:     cfg.Fetch.Timeout,
		}, queue, logger)
		if err != nil {
			app.cleanup()
			return nil, err
		}
	}

	logger.Info("application initialized",
		"journal", cfg.Journal.Driver,
		"server", cfg.Server.Enabled,
		"fetch", app.pager != nil,
		"progress", app.reporter != nil)
	return app, nil
}

// setupJournal opens the configured result journal.
func (app *application) setupJournal(ctx context.Context) error {
	cfg := app.config

	switch cfg.Journal.Driver {
	case config.JournalDriverNone:
		return nil

	case config.JournalDriverFile:
		fj, err := journal.Open(cfg.Journal.Path, journal.WithLogger(app.logger))
		if err != nil {
			return err
		}
		app.journal, app.closeJournal = fj, fj.Close
		app.logger.Info("file journal opened", "path", fj.Path())

	case config.JournalDriverPostgres:
		db, err := setupAppDatabase(ctx, cfg, app.logger)
		if err != nil {
			return err
		}
		app.db = db
		if _, err := postgres.Migrate(ctx, db, app.logger); err != nil {
			return err
		}
		js := postgres.NewJournalStore(db, cfg.Journal.Name, app.logger)
		app.journal = js
		app.logger.Info("postgres journal opened", "journal", js.Path())

	default:
		return fmt.Errorf("unknown journal driver %q", cfg.Journal.Driver)
	}

	if cfg.Journal.Reset {
		if err := app.journal.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset journal: %w", err)
		}
		app.logger.Info("journal reset")
	}
	return nil
}

// Run drives the enabled components until the fetch job finishes (and no
// admin server is running) or ctx is cancelled. Fetched entries are written
// to out as one JSON value per line.
func (app *application) Run(ctx context.Context, out io.Writer) error {
	if app.pager == nil && !app.config.Server.Enabled {
		return errors.New("nothing to run: set fetch.base_url or enable the admin server")
	}

	g, gctx := errgroup.WithContext(ctx)
	reporterCtx, stopReporter := context.WithCancel(gctx)
	defer stopReporter()

	if app.config.Server.Enabled {
		router := app.setupRouter()
		g.Go(func() error {
			return app.startHTTPServer(gctx, router)
		})
	}

	if app.reporter != nil {
		g.Go(func() error {
			return app.reporter.Run(reporterCtx, app.config.Progress.Interval)
		})
	}

	if app.pager != nil {
		g.Go(func() error {
			defer stopReporter()
			return app.runFetch(gctx, out)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (app *application) runFetch(ctx context.Context, out io.Writer) error {
	entries, err := app.pager.Run(ctx)
	if werr := writeEntries(out, entries); werr != nil && err == nil {
		err = werr
	}

	switch {
	case errors.Is(err, context.Canceled):
		app.logger.Warn("fetch interrupted, rerun with the same journal to resume",
			"entries", len(entries))
		return err
	case err != nil:
		return fmt.Errorf("fetch failed: %w", err)
	}

	app.logger.Info("fetch finished", "entries", len(entries))
	return nil
}

// reportTaskError logs listener and journal failures reported by the queue.
func (app *application) reportTaskError(h *task.Handle, err error) {
	attrs := []any{"error", redact.Error(err)}
	if h != nil {
		attrs = append(attrs, "task_id", h.ID(), "name", h.Name())
	}
	if errors.Is(err, task.ErrJournalWrite) {
		app.logger.Error("failed to journal task result", attrs...)
		return
	}
	app.logger.Warn("task event listener failed", attrs...)
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.queue != nil {
		app.queue.Close()
	}
	if app.closeJournal != nil {
		if err := app.closeJournal(); err != nil {
			app.logger.Error("error closing journal", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}
	app.logger.Info("application shutdown completed")
}

// fetchToken resolves the remote API token from configuration.
func fetchToken(cfg config.FetchConfig) (string, error) {
	if cfg.Token != "" {
		return cfg.Token, nil
	}
	loc := tokenfile.Location{Identifier: cfg.TokenIdentifier, Path: cfg.TokenFile}
	if loc.IsZero() {
		return "", nil
	}
	token, err := tokenfile.Load(loc)
	if err != nil {
		return "", fmt.Errorf("failed to load fetch token: %w", err)
	}
	return token, nil
}

func writeEntries(w io.Writer, entries []json.RawMessage) error {
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
