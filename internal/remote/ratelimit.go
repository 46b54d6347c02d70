// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package remote

import (
	"context"

	"golang.org/x/time/rate"
)

const (
	defaultRateLimit      = 10
	defaultRateLimitBurst = 20
)

type rateLimited struct {
	next    Store
	limiter *rate.Limiter
}

// RateLimited wraps a store so every call first waits for a token. A
// non-positive limit selects the defaults.
func RateLimited(next Store, limit rate.Limit, burst int) Store {
	if limit <= 0 {
		limit = defaultRateLimit
	}
	if burst <= 0 {
		burst = defaultRateLimitBurst
	}
	return &rateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (r *rateLimited) List(ctx context.Context, dir string) ([]string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.List(ctx, dir)
}

func (r *rateLimited) IsDir(ctx context.Context, p string) (bool, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return false, err
	}
	return r.next.IsDir(ctx, p)
}

func (r *rateLimited) Download(ctx context.Context, remotePath, localPath string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	return r.next.Download(ctx, remotePath, localPath)
}

func (r *rateLimited) Upload(ctx context.Context, localPath, remotePath string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	return r.next.Upload(ctx, localPath, remotePath)
}
