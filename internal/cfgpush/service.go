package cfgpush

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"cfgpush/internal/model"
)

// Options tunes the arrival pipeline. Zero durations disable the corresponding wait.
type Options struct {
	// Extension is the archive suffix an arrival must carry, e.g. ".gz".
	Extension string

	// SettleDelay is waited before the file is first looked at; the producer
	// may still be flushing when the create event fires.
	SettleDelay time.Duration

	// StabilityInterval, when positive, polls the file's size and mtime after
	// the settle delay until two consecutive observations agree.
	StabilityInterval time.Duration

	// StabilityTimeout bounds the polling; the file is read anyway once it expires.
	StabilityTimeout time.Duration

	// FallbackDelay is waited between creating a missing path and retrying the update.
	FallbackDelay time.Duration

	// DeleteOnSuccess removes the source archive after a successful commit.
	DeleteOnSuccess bool

	// Archive stores a copy of the committed text in the vault.
	Archive bool

	// Encrypt encrypts archived copies with the Encryptor.
	Encrypt bool
}

// Pusher is the orchestration layer that turns one arrived archive into a commit.
type Pusher struct {
	api       CommitAPI
	fsmgr     FilesystemManager
	namer     *NameDeriver
	database  Database
	vault     Vault
	encryptor Encryptor
	reporter  *Reporter
	logger    Logger
	clock     Clock
	idgen     IDGenerator
	opts      Options
}

// NewPusher creates a new Pusher with the provided dependencies.
// vault and encryptor may be nil when archiving is disabled.
func NewPusher(api CommitAPI, fsmgr FilesystemManager, namer *NameDeriver, database Database, vault Vault, encryptor Encryptor, reporter *Reporter, logger Logger, clock Clock, idgen IDGenerator, opts Options) *Pusher {
	return &Pusher{
		api:       api,
		fsmgr:     fsmgr,
		namer:     namer,
		database:  database,
		vault:     vault,
		encryptor: encryptor,
		reporter:  reporter,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		opts:      opts,
	}
}

// HandleArrival settles, decompresses and commits the archive at path,
// creating the remote path first if it does not exist yet.
//
// It never returns an error and never panics: every failure is routed through
// the Reporter and recorded on the Result, so a watcher can keep going.
func (p *Pusher) HandleArrival(ctx context.Context, path string) (res *Result) {
	arrival := &Arrival{
		ID:         p.idgen.New(),
		Path:       path,
		Ext:        p.opts.Extension,
		DetectedAt: p.clock.Now(),
	}
	res = &Result{Arrival: arrival}

	if !strings.HasSuffix(path, p.opts.Extension) {
		p.logger.Debug("ignoring non-archive file", "path", path)
		res.Skipped = true
		return res
	}

	rec := p.openRecord(arrival)
	defer p.closeRecord(rec, res)

	defer func() {
		if r := recover(); r != nil {
			p.fail(ctx, res, fmt.Errorf("panic handling %s: %v", path, r))
		}
	}()

	p.logger.Info("new archive found", "path", path, "arrival", arrival.ID)

	if err := p.settle(ctx, path); err != nil {
		p.fail(ctx, res, err)
		return res
	}

	content, err := p.read(path)
	if err != nil {
		p.fail(ctx, res, err)
		return res
	}

	identifier, err := p.namer.Derive(path)
	if err != nil {
		p.fail(ctx, res, err)
		return res
	}
	res.Identifier = identifier

	resp, created, err := p.commit(ctx, identifier, content)
	res.Response = resp
	res.Created = created
	if err != nil {
		p.fail(ctx, res, err)
		return res
	}
	if !resp.OK() {
		p.fail(ctx, res, &StatusError{Op: string(ActionUpdate), StatusCode: resp.StatusCode, Message: resp.Message})
		return res
	}

	p.logger.Info("configuration committed", "identifier", identifier, "status", resp.StatusCode, "created", created)

	if p.opts.Archive {
		key, err := p.archive(identifier, content)
		if err != nil {
			// The commit already landed; a missing archive copy is not worth a page.
			p.logger.Error("archiving configuration", "identifier", identifier, "error", err)
		} else {
			res.ArchiveKey = key
		}
	}

	if p.opts.DeleteOnSuccess {
		if err := p.remove(path); err != nil {
			p.logger.Warn("removing pushed archive", "path", path, "error", err)
		} else {
			p.logger.Info("archive removed", "path", path)
		}
	}

	return res
}

// commit runs the update, falling back to create-then-update once when the
// remote path does not exist.
func (p *Pusher) commit(ctx context.Context, identifier, content string) (*CommitResponse, bool, error) {
	resp, err := p.api.Update(ctx, identifier, content)
	if err != nil {
		return nil, false, err
	}
	if !resp.MissingPath() {
		return resp, false, nil
	}

	p.logger.Info("remote path missing, creating it", "identifier", identifier, "status", resp.StatusCode)

	cresp, err := p.api.Create(ctx, identifier)
	if err != nil {
		return resp, true, err
	}
	if !cresp.OK() {
		p.logger.Warn("create rejected", "identifier", identifier, "status", cresp.StatusCode, "message", cresp.Message)
	}

	if err := p.clock.Sleep(ctx, p.opts.FallbackDelay); err != nil {
		return resp, true, err
	}

	resp, err = p.api.Update(ctx, identifier, content)
	return resp, true, err
}

// settle waits out the settle delay and, if enabled, until the file stops changing.
func (p *Pusher) settle(ctx context.Context, path string) error {
	if err := p.clock.Sleep(ctx, p.opts.SettleDelay); err != nil {
		return err
	}
	if p.opts.StabilityInterval <= 0 {
		return nil
	}

	resolved, err := p.fsmgr.Resolve(path)
	if err != nil {
		return fmt.Errorf("resolving arrival: %w", err)
	}

	deadline := p.clock.Now().Add(p.opts.StabilityTimeout)
	prev := resolved.Info()
	for {
		if err := p.clock.Sleep(ctx, p.opts.StabilityInterval); err != nil {
			return err
		}
		cur, err := p.fsmgr.Stat(resolved)
		if err != nil {
			return fmt.Errorf("stat arrival: %w", err)
		}
		if sameState(prev, cur) {
			return nil
		}
		if !p.clock.Now().Before(deadline) {
			p.logger.Warn("archive still changing, reading anyway", "path", path, "size", cur.Size())
			return nil
		}
		prev = cur
	}
}

func sameState(a, b fs.FileInfo) bool {
	return a.Size() == b.Size() && a.ModTime().Equal(b.ModTime())
}

// read decompresses the arrival into text.
func (p *Pusher) read(path string) (string, error) {
	resolved, err := p.fsmgr.Resolve(path)
	if err != nil {
		return "", fmt.Errorf("resolving arrival: %w", err)
	}
	if resolved.IsDir() {
		return "", fmt.Errorf("arrival is a directory: %s", path)
	}

	f, err := p.fsmgr.Open(resolved)
	if err != nil {
		return "", fmt.Errorf("opening arrival: %w", err)
	}
	defer f.Close()

	content, err := Decompress(f)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return content, nil
}

// archive stores content in the vault under "<identifier>/<xxh3 of content>".
func (p *Pusher) archive(identifier, content string) (string, error) {
	if p.vault == nil {
		return "", fmt.Errorf("no archive vault configured")
	}

	sum := xxh3.HashString128(content).Bytes()
	key := identifier + "/" + hex.EncodeToString(sum[:])

	data := []byte(content)
	if p.opts.Encrypt {
		if p.encryptor == nil {
			return "", fmt.Errorf("no encryptor configured")
		}
		var buf bytes.Buffer
		if err := p.encryptor.Encrypt(bytes.NewReader(data), &buf); err != nil {
			return "", fmt.Errorf("encrypting archive copy: %w", err)
		}
		data = buf.Bytes()
		key += ".age"
	}

	if err := p.vault.PutContent(key, bytes.NewReader(data), int64(len(data))); err != nil {
		return "", fmt.Errorf("storing archive copy: %w", err)
	}
	return key, nil
}

func (p *Pusher) remove(path string) error {
	resolved, err := p.fsmgr.Resolve(path)
	if err != nil {
		return err
	}
	return p.fsmgr.Remove(resolved)
}

// fail records a failure on res. Cancellation during shutdown is logged but
// not reported, since nothing went wrong with the arrival itself.
func (p *Pusher) fail(ctx context.Context, res *Result, err error) {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		p.logger.Warn("arrival abandoned", "path", res.Arrival.Path, "error", err)
		return
	}
	outcome := p.reporter.Report(ctx, err, res.Arrival.Path)
	res.Outcome = &outcome
}

func (p *Pusher) openRecord(a *Arrival) *model.ArrivalRecord {
	if p.database == nil {
		return nil
	}
	rec, err := p.database.CreateArrival(a.ID, a.Path, a.DetectedAt)
	if err != nil {
		p.logger.Warn("recording arrival", "path", a.Path, "error", err)
		return nil
	}
	return rec
}

func (p *Pusher) closeRecord(rec *model.ArrivalRecord, res *Result) {
	if rec == nil {
		return
	}

	rec.Identifier = res.Identifier
	rec.FinishedAt = sql.NullTime{Time: p.clock.Now(), Valid: true}
	rec.CreatedPath = res.Created
	rec.ArchiveKey = res.ArchiveKey
	if res.Response != nil {
		rec.StatusCode = int64(res.Response.StatusCode)
	}

	switch {
	case res.Outcome != nil:
		rec.Status = model.StatusFailed
		rec.Outcome = string(res.Outcome.Message)
		if res.Outcome.Code != 0 {
			rec.StatusCode = int64(res.Outcome.Code)
		}
	case res.OK():
		rec.Status = model.StatusSuccess
	default:
		rec.Status = model.StatusAbandoned
	}

	if err := p.database.FinishArrival(rec); err != nil {
		p.logger.Warn("finishing arrival record", "arrival", rec.ID, "error", err)
	}
}
