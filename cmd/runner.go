package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pureplaylist/internal/models"
	"github.com/desertthunder/pureplaylist/internal/repositories"
	"github.com/desertthunder/pureplaylist/internal/services"
	"github.com/desertthunder/pureplaylist/internal/shared"
	"github.com/desertthunder/pureplaylist/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// CommitLog records commit attempts and lists them back for the history command.
type CommitLog interface {
	tasks.CommitRecorder
	List(ctx context.Context, playlistID string, limit int) ([]*models.CommitRecord, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Dependencies not supplied through [RunnerOpts] are built on first use from the config file.
type Runner struct {
	config     *shared.Config
	configPath string
	service    services.Service
	tokens     services.TokenStore
	store      shared.KeyValueStore
	history    CommitLog
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	db         *sql.DB
	closers    []func() error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Service    services.Service
	Tokens     services.TokenStore
	Store      shared.KeyValueStore
	History    CommitLog
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = "config.toml"
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		service:    opts.Service,
		tokens:     opts.Tokens,
		store:      opts.Store,
		history:    opts.History,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playlistsCommand, tracksCommand, historyCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before reads the --config flag and applies the configured log level.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	config, err := r.Config()
	if err != nil {
		return ctx, err
	}
	if err := shared.ApplyLogLevel(r.logger, config.Logging.Level); err != nil {
		r.logger.Warn("ignoring log level", "error", err)
	}
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	return ctx, nil
}

// Close releases the database and store connections opened by the runner.
func (r *Runner) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Config returns the loaded configuration, reading the config file on first use.
func (r *Runner) Config() (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}
	config, err := shared.LoadConfigOrDefault(r.configPath)
	if err != nil {
		return nil, err
	}
	r.config = config
	return config, nil
}

// Database opens the configured SQLite database and runs pending migrations.
func (r *Runner) Database(ctx context.Context) (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	config, err := r.Config()
	if err != nil {
		return nil, err
	}

	r.logger.Debug("opening database", "path", config.Database.Path)
	db, err := shared.OpenDatabase(ctx, config.Database)
	if err != nil {
		return nil, err
	}
	r.db = db
	r.closers = append(r.closers, db.Close)
	return db, nil
}

// Store returns the favorites store selected by the [store] section.
func (r *Runner) Store(ctx context.Context) (shared.KeyValueStore, error) {
	if r.store != nil {
		return r.store, nil
	}
	config, err := r.Config()
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if config.Store.Backend == "" || config.Store.Backend == shared.StoreSQLite {
		if db, err = r.Database(ctx); err != nil {
			return nil, err
		}
	}

	store, closeStore, err := repositories.OpenStore(ctx, config.Store, db)
	if err != nil {
		return nil, err
	}
	r.store = store
	r.closers = append(r.closers, closeStore)
	return store, nil
}

// History returns the commit log kept in the local database.
func (r *Runner) History(ctx context.Context) (CommitLog, error) {
	if r.history != nil {
		return r.history, nil
	}
	db, err := r.Database(ctx)
	if err != nil {
		return nil, err
	}
	r.history = repositories.NewCommitLogRepository(db)
	return r.history, nil
}

// TokenStore returns where OAuth tokens are persisted.
func (r *Runner) TokenStore() (services.TokenStore, error) {
	if r.tokens != nil {
		return r.tokens, nil
	}
	config, err := r.Config()
	if err != nil {
		return nil, err
	}
	tokens, err := services.NewTokenStore(config, r.configPath)
	if err != nil {
		return nil, err
	}
	r.tokens = tokens
	return tokens, nil
}

// spotifyService builds an unauthenticated client from the configured credentials.
func (r *Runner) spotifyService() (*services.SpotifyService, error) {
	config, err := r.Config()
	if err != nil {
		return nil, err
	}
	svc, err := services.NewSpotifyService(config.Credentials.Spotify.Map())
	if err != nil {
		return nil, fmt.Errorf("%w: set client_id and client_secret in %s", err, r.configPath)
	}
	svc.SetHTTPClient(r.httpClient)
	svc.SetRateLimit(config.Client.RateLimit)
	return svc, nil
}

// Service returns an authenticated remote client. Refreshed tokens are written back to the token store.
func (r *Runner) Service(ctx context.Context) (services.Service, error) {
	if r.service != nil {
		return r.service, nil
	}

	svc, err := r.spotifyService()
	if err != nil {
		return nil, err
	}
	tokens, err := r.TokenStore()
	if err != nil {
		return nil, err
	}
	token, err := tokens.Load()
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, fmt.Errorf("%w: run 'ppl auth login' first", shared.ErrNotAuthenticated)
	}
	if err := svc.OAuthenticate(ctx, token); err != nil {
		return nil, err
	}

	if session, ok := svc.Session().(*services.OAuthSession); ok {
		session.SetHTTPClient(r.httpClient)
		session.SetTokenRefreshCallback(func(t *oauth2.Token) {
			if err := tokens.Save(t); err != nil {
				r.logger.Warn("failed to persist refreshed token", "error", err)
				return
			}
			r.logger.Debug("refreshed token saved")
		})
	}

	r.service = svc
	return svc, nil
}

// Editor builds a [tasks.Editor] over the authenticated service using the [client] settings.
func (r *Runner) Editor(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.Editor, error) {
	svc, err := r.Service(ctx)
	if err != nil {
		return nil, err
	}
	store, err := r.Store(ctx)
	if err != nil {
		return nil, err
	}
	config, err := r.Config()
	if err != nil {
		return nil, err
	}

	opts := tasks.EditorOpts{
		Service:      svc,
		Store:        store,
		PageSize:     config.Client.PageSize,
		FeatureBatch: config.Client.FeatureBatch,
		ChunkSize:    config.Client.ChunkSize,
		Locale:       config.Client.Locale,
		Logger:       r.logger,
		Progress:     progress,
	}
	if history, err := r.History(ctx); err != nil {
		r.logger.Warn("commit history disabled", "error", err)
	} else {
		opts.Recorder = history
	}
	return tasks.NewEditor(ctx, opts)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
