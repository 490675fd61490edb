package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"swfdiff/internal/common/storage"
	appErr "swfdiff/pkg/errors"

	"github.com/klauspost/compress/zstd"
)

// ArtifactStore holds the reproduction files of a fingerprint.
type ArtifactStore interface {
	Put(ctx context.Context, fingerprint, name string, data []byte) error
	Get(ctx context.Context, fingerprint, name string) ([]byte, error)
}

// FSArtifacts writes plain files next to the record: <root>/<fp>/<name>.
type FSArtifacts struct {
	root string
}

func NewFSArtifacts(root string) (*FSArtifacts, error) {
	if root == "" {
		return nil, appErr.ConfigError("store.root", "required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "create artifact root")
	}
	return &FSArtifacts{root: root}, nil
}

func (a *FSArtifacts) Put(ctx context.Context, fingerprint, name string, data []byte) error {
	dir := filepath.Join(a.root, fingerprint)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "create artifact dir")
	}
	return writeFileAtomic(filepath.Join(dir, name), data)
}

func (a *FSArtifacts) Get(ctx context.Context, fingerprint, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(a.root, fingerprint, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, appErr.Newf(appErr.FailureNotFound, "artifact %s/%s not found", fingerprint, name)
	}
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "read artifact")
	}
	return data, nil
}

// ObjectArtifacts stores zstd-compressed objects under
// <prefix>/<fp>/<name>.zst in a bucket.
type ObjectArtifacts struct {
	storage storage.ObjectStorage
	bucket  string
	prefix  string
	enc     *zstd.Encoder
	dec     *zstd.Decoder
}

// NewObjectArtifacts makes sure the bucket exists.
func NewObjectArtifacts(ctx context.Context, objects storage.ObjectStorage, bucket, prefix string) (*ObjectArtifacts, error) {
	if bucket == "" {
		return nil, appErr.ConfigError("minio.bucket", "required")
	}
	if err := objects.EnsureBucket(ctx, bucket); err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "ensure bucket %s", bucket)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "create zstd encoder")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "create zstd decoder")
	}
	return &ObjectArtifacts{storage: objects, bucket: bucket, prefix: prefix, enc: enc, dec: dec}, nil
}

func (a *ObjectArtifacts) key(fingerprint, name string) string {
	return path.Join(a.prefix, fingerprint, name+".zst")
}

func (a *ObjectArtifacts) Put(ctx context.Context, fingerprint, name string, data []byte) error {
	compressed := a.enc.EncodeAll(data, nil)
	err := a.storage.PutObject(ctx, a.bucket, a.key(fingerprint, name),
		bytes.NewReader(compressed), int64(len(compressed)), "application/zstd")
	if err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "upload artifact %s", name)
	}
	return nil
}

func (a *ObjectArtifacts) Get(ctx context.Context, fingerprint, name string) ([]byte, error) {
	key := a.key(fingerprint, name)
	if _, err := a.storage.StatObject(ctx, a.bucket, key); err != nil {
		return nil, appErr.Wrapf(err, appErr.FailureNotFound, "artifact %s/%s", fingerprint, name)
	}
	rc, err := a.storage.GetObject(ctx, a.bucket, key)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "download artifact %s", name)
	}
	defer rc.Close()
	compressed, err := io.ReadAll(rc)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "read artifact %s", name)
	}
	data, err := a.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.StorageError, "decompress artifact %s", name)
	}
	return data, nil
}

// Close releases the zstd codec resources.
func (a *ObjectArtifacts) Close() error {
	a.dec.Close()
	return a.enc.Close()
}
