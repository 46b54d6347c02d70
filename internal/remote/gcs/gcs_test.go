// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package gcs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/framehaul/internal/remote"
)

func TestObjectName(t *testing.T) {
	s := &Store{bucket: "b"}
	assert.Equal(t, "", s.objectName("/"))
	assert.Equal(t, "frames/a.jpg", s.objectName("/frames//a.jpg"))
	assert.Equal(t, "frames/", s.dirPrefix("/frames/"))
	assert.Equal(t, "", s.dirPrefix("/"))

	s.prefix = "harvest"
	assert.Equal(t, "harvest", s.objectName("/"))
	assert.Equal(t, "harvest/frames/a.jpg", s.objectName("/frames/a.jpg"))
	assert.Equal(t, "harvest/", s.dirPrefix("/"))
}

func TestNew_Validates(t *testing.T) {
	_, err := New(nil, "b", "")
	assert.Error(t, err)
}

// testClient needs a running storage emulator.
func testClient(t *testing.T) *storage.Client {
	t.Helper()
	if os.Getenv("STORAGE_EMULATOR_HOST") == "" {
		t.Skip("STORAGE_EMULATOR_HOST not set, skipping integration test")
	}
	client, err := storage.NewClient(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestStore_Emulator(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	bucket := fmt.Sprintf("framehaul-test-%d", time.Now().UnixNano())
	if err := client.Bucket(bucket).Create(ctx, "test-project", nil); err != nil {
		t.Logf("note: bucket creation returned: %v", err)
	}

	s, err := New(client, bucket, "run")
	require.NoError(t, err)

	local := filepath.Join(t.TempDir(), "f.jpg")
	require.NoError(t, os.WriteFile(local, []byte("jpeg"), 0o600))
	require.NoError(t, s.Upload(ctx, local, "/frames/v_000000.jpg"))
	require.NoError(t, s.Upload(ctx, local, "/frames/sub/x.jpg"))

	names, err := s.List(ctx, "/frames")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"v_000000.jpg", "sub"}, names)

	isDir, err := s.IsDir(ctx, "/frames/sub")
	require.NoError(t, err)
	assert.True(t, isDir)

	isDir, err = s.IsDir(ctx, "/frames/v_000000.jpg")
	require.NoError(t, err)
	assert.False(t, isDir)

	out := filepath.Join(t.TempDir(), "out.jpg")
	require.NoError(t, s.Download(ctx, "/frames/v_000000.jpg", out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))

	err = s.Download(ctx, "/frames/missing.jpg", out)
	assert.ErrorIs(t, err, remote.ErrNotFound)
}
