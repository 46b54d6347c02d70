// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package webdav implements remote.Store on top of a WebDAV server.
package webdav

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/studio-b12/gowebdav"

	"github.com/ManuGH/framehaul/internal/fsutil"
	xglog "github.com/ManuGH/framehaul/internal/log"
	"github.com/ManuGH/framehaul/internal/remote"
)

// Config describes a WebDAV endpoint.
type Config struct {
	URL      string
	User     string
	Password string
	Timeout  time.Duration
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// Store talks to a WebDAV server through gowebdav.
type Store struct {
	client *gowebdav.Client
	logger zerolog.Logger
}

// New creates a WebDAV store. No request is made until the first call.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webdav: url is required")
	}
	c := gowebdav.NewClient(cfg.URL, cfg.User, cfg.Password)
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}
	if cfg.Transport != nil {
		c.SetTransport(cfg.Transport)
	}
	return &Store{
		client: c,
		logger: xglog.WithComponent("webdav"),
	}, nil
}

func mapErr(op, p string, err error) error {
	if gowebdav.IsErrNotFound(err) {
		return fmt.Errorf("webdav %s %s: %w", op, p, remote.ErrNotFound)
	}
	return fmt.Errorf("webdav %s %s: %w", op, p, err)
}

// List implements remote.Store.
func (s *Store) List(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir = remote.Clean(dir)
	infos, err := s.client.ReadDir(dir)
	if err != nil {
		return nil, mapErr("list", dir, err)
	}
	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	s.logger.Debug().Str(xglog.FieldRemotePath, dir).Int("entries", len(names)).Msg("listed directory")
	return names, nil
}

// IsDir implements remote.Store.
func (s *Store) IsDir(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p = remote.Clean(p)
	fi, err := s.client.Stat(p)
	if err != nil {
		return false, mapErr("stat", p, err)
	}
	return fi.IsDir(), nil
}

// Download implements remote.Store.
func (s *Store) Download(ctx context.Context, remotePath, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	remotePath = remote.Clean(remotePath)
	rc, err := s.client.ReadStream(remotePath)
	if err != nil {
		return mapErr("download", remotePath, err)
	}
	defer func() { _ = rc.Close() }()
	if err := fsutil.CopyToFile(localPath, rc); err != nil {
		return fmt.Errorf("webdav download %s: %w", remotePath, err)
	}
	return nil
}

// Upload implements remote.Store. Missing parent collections are created by
// the client.
func (s *Store) Upload(ctx context.Context, localPath, remotePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	remotePath = remote.Clean(remotePath)
	f, err := os.Open(localPath) // #nosec G304 -- caller-controlled local path
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := s.client.WriteStream(remotePath, f, 0o644); err != nil {
		return mapErr("upload", remotePath, err)
	}
	return nil
}

var _ remote.Store = (*Store)(nil)
