package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cfgpush/internal/cfgpush"
	"cfgpush/internal/config"
	"cfgpush/internal/database"
	"cfgpush/internal/encryption"
	"cfgpush/internal/fs"
	"cfgpush/internal/gitlab"
	"cfgpush/internal/model"
	"cfgpush/internal/notify"
	"cfgpush/internal/vault"
	"cfgpush/internal/watch"
)

// Options tunes how an App is built.
type Options struct {
	// Command names the CLI command, recorded on the run.
	Command string

	// Verbose enables debug logging.
	Verbose bool
}

// App is the layer between the CLI and the arrival pipeline. It builds every
// dependency from config and owns their lifecycle; call Close when done.
type App struct {
	cfg       *config.Config
	run       *Run
	logger    cfgpush.Logger
	logFile   *os.File
	clock     cfgpush.Clock
	db        cfgpush.Database
	vault     cfgpush.Vault
	encryptor cfgpush.Encryptor
	fsmgr     *fs.OSFilesystemManager
	namer     *cfgpush.NameDeriver

	// Set when the API section is usable; apiErr says why not otherwise.
	// oneShot skips the settle wait for files named on the command line.
	pusher  *cfgpush.Pusher
	oneShot *cfgpush.Pusher
	apiErr  error
}

// NewApp creates a fully wired App from cfg.
func NewApp(cfg *config.Config, opts Options) (*App, error) {
	clock := cfgpush.RealClock{}
	run := NewRun(opts.Command, clock, cfgpush.UUIDGenerator{})

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	sl, logFile, err := newLogger(cfg.LogDir, run.ID, level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: sl}

	a := &App{
		cfg:     cfg,
		run:     run,
		logger:  logger,
		logFile: logFile,
		clock:   clock,
		namer:   cfgpush.NewNameDeriver(cfg.Watch.Extension, cfg.Watch.SegmentIndex),
	}

	if err := a.init(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init() error {
	cfg := a.cfg

	ignore := fs.NewIgnoreMatcher(cfg.Watch.Ignore)
	if cfg.Watch.Root != "" {
		m, err := fs.LoadIgnore(cfg.Watch.Root, cfg.Watch.Ignore)
		if err != nil {
			return fmt.Errorf("loading ignore rules: %w", err)
		}
		ignore = m
	}
	a.fsmgr = fs.NewOSFilesystemManager(cfg.Watch.Root, ignore)

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	a.db = db

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	a.encryptor = enc

	v, err := vault.NewVaultFromConfig(cfg.Archive.Vault)
	if err != nil {
		return fmt.Errorf("creating vault: %w", err)
	}
	a.vault = v

	if cfg.Archive.Enabled {
		if err := v.ValidateSetup(); err != nil {
			return fmt.Errorf("archive vault not usable: %w", err)
		}
		if cfg.Archive.Encrypt && !enc.IsConfigured() {
			return fmt.Errorf("archive encryption is enabled but no keys exist; run `cfgpush keys init`")
		}
	}

	if err := cfg.Validate(); err != nil {
		a.apiErr = err
		return nil
	}
	client, err := gitlab.NewClient(cfg.API, a.logger, a.clock)
	if err != nil {
		a.apiErr = err
		return nil
	}

	notifier := notify.NewNotifierFromConfig(cfg.Notify, a.logger)
	reporter := cfgpush.NewReporter(notifier, a.logger)

	opts := cfgpush.Options{
		Extension:         cfg.Watch.Extension,
		SettleDelay:       cfg.Watch.SettleDelay.Duration,
		StabilityInterval: cfg.Watch.StabilityInterval.Duration,
		StabilityTimeout:  cfg.Watch.StabilityTimeout.Duration,
		FallbackDelay:     cfg.Watch.FallbackDelay.Duration,
		DeleteOnSuccess:   cfg.Watch.DeleteOnSuccess,
		Archive:           cfg.Archive.Enabled,
		Encrypt:           cfg.Archive.Encrypt,
	}
	newPusher := func(o cfgpush.Options) *cfgpush.Pusher {
		return cfgpush.NewPusher(client, a.fsmgr, a.namer, a.db, a.vault, a.encryptor, reporter, a.logger, a.clock, cfgpush.UUIDGenerator{}, o)
	}
	a.pusher = newPusher(opts)

	opts.SettleDelay = 0
	opts.StabilityInterval = 0
	a.oneShot = newPusher(opts)
	return nil
}

// Logger returns the run's logger.
func (a *App) Logger() cfgpush.Logger {
	return a.logger
}

// RunID returns the identifier tagging this invocation's log lines.
func (a *App) RunID() string {
	return a.run.ID
}

// Watch handles arrivals under the configured root until ctx is cancelled.
func (a *App) Watch(ctx context.Context, scanExisting bool) error {
	if a.pusher == nil {
		return fmt.Errorf("api not configured: %w", a.apiErr)
	}
	if a.cfg.Watch.Root == "" {
		return fmt.Errorf("watch.root is required")
	}

	w := watch.New(a.fsmgr, a.handle, a.logger, watch.Options{
		Root:         a.cfg.Watch.Root,
		Extension:    a.cfg.Watch.Extension,
		ScanExisting: scanExisting,
	})
	err := w.Run(ctx)
	a.logger.Info("watch finished", "elapsed", a.run.Elapsed(a.clock))
	return err
}

func (a *App) handle(ctx context.Context, path string) {
	res := a.pusher.HandleArrival(ctx, path)
	switch {
	case res.OK():
		a.logger.Info("arrival done", "path", path, "identifier", res.Identifier)
	case res.Outcome != nil:
		a.logger.Warn("arrival not committed", "path", path, "outcome", string(res.Outcome.Message))
	}
}

// Push runs the pipeline once for the file at rawPath without the settle
// wait. A non-archive path returns cfgpush.ErrNotArchive.
func (a *App) Push(ctx context.Context, rawPath string) (*cfgpush.Result, error) {
	if a.oneShot == nil {
		return nil, fmt.Errorf("api not configured: %w", a.apiErr)
	}
	abs, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	res := a.oneShot.HandleArrival(ctx, abs)
	if res.Skipped {
		return res, fmt.Errorf("%s: %w (want %s)", abs, cfgpush.ErrNotArchive, a.cfg.Watch.Extension)
	}
	return res, nil
}

// Derive returns the identifier rawPath would be committed under.
func (a *App) Derive(rawPath string) (string, error) {
	abs, err := filepath.Abs(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	return a.namer.Derive(abs)
}

// History returns the most recent arrivals, newest first.
func (a *App) History(limit int) ([]*model.ArrivalRecord, error) {
	return a.db.ListArrivals(limit)
}

// SetupKeys generates the archive key pair.
func (a *App) SetupKeys(passphrase string) error {
	return a.encryptor.Setup(passphrase)
}

// KeysConfigured reports whether the archive key pair exists.
func (a *App) KeysConfigured() bool {
	return a.encryptor.IsConfigured()
}

// ArchiveGet writes the archived configuration stored under key to w.
// Encrypted copies (".age" keys) need passphrase to unlock the private key.
func (a *App) ArchiveGet(key, passphrase string, w io.Writer) error {
	var stored bytes.Buffer
	if err := a.vault.GetContent(key, &stored); err != nil {
		return fmt.Errorf("reading archive: %w", err)
	}

	if !strings.HasSuffix(key, ".age") {
		_, err := io.Copy(w, &stored)
		return err
	}

	dc, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking key: %w", err)
	}
	if err := dc.Decrypt(&stored, w); err != nil {
		return fmt.Errorf("decrypting archive: %w", err)
	}
	return nil
}

// Close releases the database and the log file.
func (a *App) Close() error {
	var firstErr error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
