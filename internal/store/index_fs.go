package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	appErr "swfdiff/pkg/errors"
	"swfdiff/pkg/utils/logger"

	"go.uber.org/zap"
)

const recordFileName = "record.json"

// FSIndex stores one <root>/<fingerprint>/record.json per failure. Creation
// relies on O_EXCL so two processes sharing a volume never both create a
// record; duplicate counting is serialized within this process only.
type FSIndex struct {
	root string
	mu   sync.Mutex
}

// NewFSIndex creates root if needed.
func NewFSIndex(root string) (*FSIndex, error) {
	if root == "" {
		return nil, appErr.ConfigError("store.root", "required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "create store root")
	}
	return &FSIndex{root: root}, nil
}

func (x *FSIndex) recordPath(fp string) string {
	return filepath.Join(x.root, fp, recordFileName)
}

func (x *FSIndex) Insert(ctx context.Context, rec FailureRecord) (FailureRecord, bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := os.MkdirAll(filepath.Join(x.root, rec.Fingerprint), 0o755); err != nil {
		return FailureRecord{}, false, appErr.Wrapf(err, appErr.StorageError, "create failure dir")
	}
	path := x.recordPath(rec.Fingerprint)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err == nil {
		werr := json.NewEncoder(f).Encode(rec)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return FailureRecord{}, false, appErr.Wrapf(werr, appErr.StorageError, "write failure record")
		}
		return rec, true, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return FailureRecord{}, false, appErr.Wrapf(err, appErr.StorageError, "create failure record")
	}

	stored, err := readRecord(path)
	if err != nil {
		// A record left half-written by a killed process is replaced.
		logger.Warn(ctx, "replacing unreadable failure record",
			zap.String("fingerprint", rec.Fingerprint), zap.Error(err))
		if err := writeFileAtomic(path, mustJSON(rec)); err != nil {
			return FailureRecord{}, false, err
		}
		return rec, true, nil
	}
	stored.Duplicates++
	if rec.LastSeen.After(stored.LastSeen) {
		stored.LastSeen = rec.LastSeen
	}
	if err := writeFileAtomic(path, mustJSON(stored)); err != nil {
		return FailureRecord{}, false, err
	}
	return stored, false, nil
}

func (x *FSIndex) Get(ctx context.Context, fingerprint string) (FailureRecord, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	rec, err := readRecord(x.recordPath(fingerprint))
	if errors.Is(err, fs.ErrNotExist) {
		return FailureRecord{}, appErr.Newf(appErr.FailureNotFound, "failure %s not found", fingerprint)
	}
	if err != nil {
		return FailureRecord{}, appErr.Wrapf(err, appErr.StorageError, "read failure record")
	}
	return rec, nil
}

func (x *FSIndex) List(ctx context.Context, offset, limit int) ([]FailureRecord, int64, error) {
	x.mu.Lock()
	entries, err := os.ReadDir(x.root)
	if err != nil {
		x.mu.Unlock()
		return nil, 0, appErr.Wrapf(err, appErr.StorageError, "list store root")
	}
	records := make([]FailureRecord, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		rec, err := readRecord(x.recordPath(e.Name()))
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	x.mu.Unlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].FirstSeen.Equal(records[j].FirstSeen) {
			return records[i].Fingerprint < records[j].Fingerprint
		}
		return records[i].FirstSeen.After(records[j].FirstSeen)
	})
	start, end := pageBounds(len(records), offset, limit)
	return records[start:end], int64(len(records)), nil
}

func (x *FSIndex) Close() error { return nil }

func readRecord(path string) (FailureRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FailureRecord{}, err
	}
	var rec FailureRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return FailureRecord{}, err
	}
	return rec, nil
}

func mustJSON(v any) []byte {
	data, _ := json.Marshal(v)
	return append(data, '\n')
}

// writeFileAtomic replaces path through a temp file in the same directory.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "create temp file")
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return appErr.Wrapf(err, appErr.StorageError, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return appErr.Wrapf(err, appErr.StorageError, "close temp file")
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return appErr.Wrapf(err, appErr.StorageError, "rename temp file")
	}
	return nil
}
