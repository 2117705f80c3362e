package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"transcodehost/internal/fileutil"
	"transcodehost/internal/logging"
	"transcodehost/internal/platform"
)

const (
	lockSuffix        = ".provision.lock"
	lockRetryInterval = 200 * time.Millisecond
)

// DefaultLockPath is the lock file used when WithLockPath is not given. It
// sits beside root so the bundle directory itself stays clean.
func DefaultLockPath(root string) string {
	return filepath.Clean(root) + lockSuffix
}

// Option customises a Provisioner.
type Option func(*Provisioner)

// WithExtractor overrides the archive extractor.
func WithExtractor(extractor Extractor) Option {
	return func(p *Provisioner) {
		if extractor != nil {
			p.extractor = extractor
		}
	}
}

// WithLogger sets the logger used for progress and warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provisioner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithGOOS overrides the host operating system used to decide whether
// execute bits are applied.
func WithGOOS(goos string) Option {
	return func(p *Provisioner) {
		if goos != "" {
			p.goos = goos
		}
	}
}

// WithLockTimeout bounds how long Provision waits for a concurrent run.
func WithLockTimeout(timeout time.Duration) Option {
	return func(p *Provisioner) {
		if timeout > 0 {
			p.lockTimeout = timeout
		}
	}
}

// WithLockPath sets the file that serializes concurrent provisioning runs.
func WithLockPath(path string) Option {
	return func(p *Provisioner) {
		if path != "" {
			p.lockPath = path
		}
	}
}

// WithChmod replaces the permission setter (primarily for tests).
func WithChmod(chmod func(string, os.FileMode) error) Option {
	return func(p *Provisioner) {
		if chmod != nil {
			p.chmod = chmod
		}
	}
}

// Provisioner installs binary bundles beneath a root directory.
type Provisioner struct {
	root        string
	extractor   Extractor
	logger      *slog.Logger
	goos        string
	lockTimeout time.Duration
	lockPath    string
	chmod       func(string, os.FileMode) error
}

// New constructs a Provisioner for root. Without WithExtractor the builtin
// archive reader is used.
func New(root string, opts ...Option) *Provisioner {
	p := &Provisioner{
		root:        root,
		extractor:   BuiltinExtractor{},
		goos:        runtime.GOOS,
		lockTimeout: 2 * time.Minute,
		lockPath:    DefaultLockPath(root),
		chmod:       os.Chmod,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "provision")
	return p
}

// Provision installs and verifies the bundle for tag. A missing archive is
// logged and skipped; the returned error is then non-nil only when the
// binaries are also absent. Extraction failures return *ExtractionError and
// incomplete bundles return *VerificationError.
func (p *Provisioner) Provision(ctx context.Context, tag platform.Tag) (platform.Bundle, error) {
	layout := platform.NewLayout(p.root, tag)
	logger := p.logger.With(
		logging.String(logging.FieldProvisionID, uuid.NewString()),
		logging.String(logging.FieldPlatform, tag.String()),
	)

	unlock, err := p.acquire(ctx)
	if err != nil {
		return platform.Bundle{}, err
	}
	defer unlock()

	exists, err := fileutil.Exists(layout.ArchivePath())
	if err != nil {
		return platform.Bundle{}, fmt.Errorf("stat archive: %w", err)
	}
	if exists {
		if err := p.install(ctx, layout, logger); err != nil {
			return platform.Bundle{}, err
		}
	} else {
		logger.Warn("archive not found; verifying existing binaries",
			logging.String(logging.FieldEventType, "archive_missing"),
			logging.String("archive", layout.ArchivePath()),
		)
	}

	return p.verify(layout, logger)
}

func (p *Provisioner) acquire(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(p.lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(p.lockPath)
	lockCtx, cancel := context.WithTimeout(ctx, p.lockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, lockRetryInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("acquire provisioning lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return func() { _ = lock.Unlock() }, nil
}

func (p *Provisioner) install(ctx context.Context, layout platform.Layout, logger *slog.Logger) error {
	archive := layout.ArchivePath()
	target := layout.TargetDir()

	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("clear target directory: %w", err)
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}

	logger.Info("extracting archive",
		logging.String(logging.FieldEventType, "extract_start"),
		logging.String("archive", archive),
		logging.String("target", target),
		logging.String("extractor", p.extractor.Name()),
	)
	started := time.Now()
	if err := p.extractor.Extract(ctx, archive, target); err != nil {
		return &ExtractionError{Archive: archive, Dir: target, Extractor: p.extractor.Name(), Err: err}
	}

	flattened, err := Flatten(target)
	if err != nil {
		return err
	}
	if flattened {
		logger.Info("flattened nested archive directory",
			logging.String(logging.FieldEventType, "flatten"),
			logging.String("target", target),
		)
	}

	if err := os.Remove(archive); err != nil {
		return fmt.Errorf("remove archive: %w", err)
	}
	logger.Info("archive extracted",
		logging.String(logging.FieldEventType, "extract_complete"),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func (p *Provisioner) verify(layout platform.Layout, logger *slog.Logger) (platform.Bundle, error) {
	bundle := layout.Bundle()
	if missing := bundle.Missing(); len(missing) > 0 {
		verr := &VerificationError{Tag: layout.Tag, Missing: missing}
		if nested, ok, _ := singleNestedDir(bundle.Dir); ok {
			verr.NestedDir = nested
		}
		return bundle, verr
	}

	if p.goos != "windows" {
		for _, path := range bundle.Paths() {
			if err := p.chmod(path, 0o755); err != nil {
				logger.Warn("could not mark binary executable",
					logging.String(logging.FieldEventType, "chmod_failed"),
					logging.String("path", path),
					logging.Error(err),
				)
			}
		}
	}

	logger.Info("ffmpeg bundle verified",
		logging.String(logging.FieldEventType, "verified"),
		logging.String("ffmpeg", bundle.FFmpeg),
		logging.String("ffprobe", bundle.FFprobe),
	)
	return bundle, nil
}
