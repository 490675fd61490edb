package store

import (
	"context"
	"regexp"
	"sync/atomic"
	"time"

	"swfdiff/internal/sandbox/result"
	appErr "swfdiff/pkg/errors"
	"swfdiff/pkg/utils/logger"

	"go.uber.org/zap"
)

// Differ renders the normalized diff of two runs.
type Differ interface {
	Diff(native, oracle result.ExecutionResult) string
}

// Config holds store policy.
type Config struct {
	Fingerprint   Policy
	NotifyTimeout time.Duration
}

// Store files divergent cases into an Index and an ArtifactStore. It is safe
// for concurrent use; deduplication is delegated to the Index.
type Store struct {
	cfg       Config
	index     Index
	artifacts ArtifactStore
	differ    Differ
	notifier  Notifier
	now       func() time.Time

	newFailures atomic.Int64
	duplicates  atomic.Int64
}

// New wires a store. notifier may be nil.
func New(cfg Config, index Index, artifacts ArtifactStore, differ Differ, notifier Notifier) (*Store, error) {
	if index == nil || artifacts == nil || differ == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("index, artifacts and differ are required")
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = PolicyDiff
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 5 * time.Second
	}
	return &Store{
		cfg:       cfg,
		index:     index,
		artifacts: artifacts,
		differ:    differ,
		notifier:  notifier,
		now:       time.Now,
	}, nil
}

// File records a divergent case. Artifacts are written when the fingerprint
// is new; later observations bump the duplicate counter and rewrite the
// artifact set only if an earlier write left it incomplete.
func (s *Store) File(ctx context.Context, c Case) (Outcome, error) {
	if !c.Verdict.IsFailure() {
		return Outcome{}, appErr.Newf(appErr.InvalidParams, "verdict %s is not filed", c.Verdict)
	}
	diff := s.differ.Diff(c.Native, c.Oracle)
	fp := Fingerprint(s.cfg.Fingerprint, c, diff)
	now := s.now().UTC()
	files := map[string][]byte{
		ArtifactSWF:    c.SWF,
		ArtifactNative: c.Native.Output,
		ArtifactOracle: c.Oracle.Output,
		ArtifactDiff:   []byte(diff),
	}

	stored, created, err := s.index.Insert(ctx, FailureRecord{
		Fingerprint:  fp,
		Reason:       string(c.Verdict.Reason),
		Seed:         c.Seed,
		SWFSize:      len(c.SWF),
		NativeStatus: c.Native.Describe(),
		OracleStatus: c.Oracle.Describe(),
		FirstSeen:    now,
		LastSeen:     now,
		Duplicates:   1,
	})
	if err != nil {
		return Outcome{}, appErr.Wrap(err, appErr.StorageError)
	}
	if !created {
		s.duplicates.Add(1)
		if err := s.repairArtifacts(ctx, fp, files); err != nil {
			return Outcome{Record: stored}, err
		}
		return Outcome{Record: stored}, nil
	}
	s.newFailures.Add(1)

	if err := s.putArtifacts(ctx, fp, files); err != nil {
		return Outcome{Record: stored, New: true}, err
	}
	logger.Info(ctx, "new failure filed",
		zap.String("fingerprint", fp),
		zap.String("reason", stored.Reason),
		zap.String("native", stored.NativeStatus),
		zap.String("oracle", stored.OracleStatus),
	)
	s.notify(ctx, stored)
	return Outcome{Record: stored, New: true}, nil
}

func (s *Store) putArtifacts(ctx context.Context, fp string, files map[string][]byte) error {
	for _, name := range Artifacts {
		if err := s.artifacts.Put(ctx, fp, name, files[name]); err != nil {
			return appErr.Wrap(err, appErr.StorageError).WithDetail("fingerprint", fp)
		}
	}
	return nil
}

// repairArtifacts rewrites the set of a known fingerprint whose out.swf never
// landed. Any case with the same fingerprint reproduces the failure.
func (s *Store) repairArtifacts(ctx context.Context, fp string, files map[string][]byte) error {
	_, err := s.artifacts.Get(ctx, fp, ArtifactSWF)
	if err == nil {
		return nil
	}
	if !appErr.Is(err, appErr.FailureNotFound) {
		return appErr.Wrap(err, appErr.StorageError).WithDetail("fingerprint", fp)
	}
	logger.Warn(ctx, "repairing incomplete artifacts", zap.String("fingerprint", fp))
	return s.putArtifacts(ctx, fp, files)
}

func (s *Store) notify(ctx context.Context, rec FailureRecord) {
	if s.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
	defer cancel()
	if err := s.notifier.Notify(nctx, rec); err != nil {
		logger.Warn(ctx, "failure event not published", zap.String("fingerprint", rec.Fingerprint), zap.Error(err))
	}
}

var fingerprintPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func checkFingerprint(fp string) error {
	if !fingerprintPattern.MatchString(fp) {
		return appErr.ValidationError("fingerprint", "must be 64 lowercase hex characters")
	}
	return nil
}

// Get returns the record of one fingerprint.
func (s *Store) Get(ctx context.Context, fingerprint string) (FailureRecord, error) {
	if err := checkFingerprint(fingerprint); err != nil {
		return FailureRecord{}, err
	}
	return s.index.Get(ctx, fingerprint)
}

// List pages through records, newest first.
func (s *Store) List(ctx context.Context, offset, limit int) ([]FailureRecord, int64, error) {
	return s.index.List(ctx, offset, limit)
}

// Artifact reads one stored artifact.
func (s *Store) Artifact(ctx context.Context, fingerprint, name string) ([]byte, error) {
	if err := checkFingerprint(fingerprint); err != nil {
		return nil, err
	}
	known := false
	for _, a := range Artifacts {
		known = known || a == name
	}
	if !known {
		return nil, appErr.ValidationError("artifact", "unknown artifact name")
	}
	return s.artifacts.Get(ctx, fingerprint, name)
}

// Counters returns totals filed by this process.
func (s *Store) Counters() Counters {
	return Counters{
		NewFailures: s.newFailures.Load(),
		Duplicates:  s.duplicates.Load(),
	}
}

// Close releases the index and any closable artifact backend.
func (s *Store) Close() error {
	err := s.index.Close()
	if c, ok := s.artifacts.(interface{ Close() error }); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
