// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package gcs implements remote.Store on a Google Cloud Storage bucket.
// Directories are emulated with "/"-delimited object name prefixes.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/ManuGH/framehaul/internal/fsutil"
	"github.com/ManuGH/framehaul/internal/remote"
)

// Store maps remote paths to objects named Prefix + path.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// New returns a store over bucket. prefix (optional) is prepended to every
// object name.
func New(client *storage.Client, bucket, prefix string) (*Store, error) {
	if client == nil {
		return nil, errors.New("gcs: client is required")
	}
	if bucket == "" {
		return nil, errors.New("gcs: bucket is required")
	}
	return &Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// Open creates a storage client with default credentials (or the emulator
// from STORAGE_EMULATOR_HOST) and wraps it.
func Open(ctx context.Context, bucket, prefix string) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs: create client: %w", err)
	}
	return New(client, bucket, prefix)
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// objectName converts a remote path to an object name (no leading slash).
func (s *Store) objectName(p string) string {
	key := strings.TrimPrefix(remote.Clean(p), "/")
	if key == "." {
		key = ""
	}
	if s.prefix == "" {
		return key
	}
	if key == "" {
		return s.prefix
	}
	return s.prefix + "/" + key
}

// dirPrefix is the listing prefix for a directory path.
func (s *Store) dirPrefix(dir string) string {
	name := s.objectName(dir)
	if name == "" {
		return ""
	}
	return name + "/"
}

func mapErr(op, p string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("gcs %s %s: %w", op, p, remote.ErrNotFound)
	}
	return fmt.Errorf("gcs %s %s: %w", op, p, err)
}

// List implements remote.Store.
func (s *Store) List(ctx context.Context, dir string) ([]string, error) {
	prefix := s.dirPrefix(dir)
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{
		Prefix:    prefix,
		Delimiter: "/",
	})

	names := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapErr("list", dir, err)
		}
		var name string
		if attrs.Prefix != "" {
			name = path.Base(strings.TrimSuffix(attrs.Prefix, "/"))
		} else {
			name = strings.TrimPrefix(attrs.Name, prefix)
		}
		// Zero-byte "directory marker" objects list as the prefix itself.
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	// Prefixes always "exist"; an empty frame store lists as empty.
	return names, nil
}

// IsDir implements remote.Store. An object wins over a same-named prefix.
func (s *Store) IsDir(ctx context.Context, p string) (bool, error) {
	name := s.objectName(p)
	if name == "" {
		return true, nil
	}
	_, err := s.client.Bucket(s.bucket).Object(name).Attrs(ctx)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, storage.ErrObjectNotExist) {
		return false, mapErr("stat", p, err)
	}

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: name + "/"})
	if _, err := it.Next(); err != nil {
		if err == iterator.Done {
			return false, fmt.Errorf("gcs stat %s: %w", p, remote.ErrNotFound)
		}
		return false, mapErr("stat", p, err)
	}
	return true, nil
}

// Download implements remote.Store.
func (s *Store) Download(ctx context.Context, remotePath, localPath string) error {
	r, err := s.client.Bucket(s.bucket).Object(s.objectName(remotePath)).NewReader(ctx)
	if err != nil {
		return mapErr("download", remotePath, err)
	}
	defer func() { _ = r.Close() }()
	if err := fsutil.CopyToFile(localPath, r); err != nil {
		return fmt.Errorf("gcs download %s: %w", remotePath, err)
	}
	return nil
}

// Upload implements remote.Store.
func (s *Store) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath) // #nosec G304 -- caller-controlled local path
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	w := s.client.Bucket(s.bucket).Object(s.objectName(remotePath)).NewWriter(ctx)
	if strings.HasSuffix(strings.ToLower(remotePath), ".jpg") {
		w.ContentType = "image/jpeg"
	}
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return mapErr("upload", remotePath, err)
	}
	if err := w.Close(); err != nil {
		return mapErr("upload", remotePath, err)
	}
	return nil
}

var _ remote.Store = (*Store)(nil)
