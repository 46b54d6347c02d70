// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package validate

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidator_URL(t *testing.T) {
	tests := []struct {
		name           string
		value          string
		allowedSchemes []string
		wantErr        bool
	}{
		{"valid https", "https://dav.example.com/remote.php/dav", []string{"http", "https"}, false},
		{"empty url", "", []string{"http"}, true},
		{"no host", "http://", []string{"http"}, true},
		{"invalid scheme", "ftp://example.com", []string{"http", "https"}, true},
		{"with port", "http://example.com:8080", []string{"http"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.URL("testURL", tt.value, tt.allowedSchemes)

			if tt.wantErr && v.IsValid() {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && !v.IsValid() {
				t.Errorf("unexpected error: %v", v.Err())
			}
		})
	}
}

func TestValidator_ListenAddr(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{":9464", false},
		{"127.0.0.1:8080", false},
		{"localhost:0", false},
		{"9464", true},
		{":http", true},
		{":70000", true},
	}
	for _, tt := range tests {
		v := New()
		v.ListenAddr("daemon.listen", tt.addr)
		if v.IsValid() == tt.wantErr {
			t.Errorf("ListenAddr(%q) valid=%v, wantErr=%v", tt.addr, v.IsValid(), tt.wantErr)
		}
	}
}

func TestValidator_RemotePath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"/Tracker/videos", false},
		{"/", false},
		{"", true},
		{"Tracker/videos", true},
		{"/Tracker/../etc", true},
		{"/Tracker/..hidden", false},
	}
	for _, tt := range tests {
		v := New()
		v.RemotePath("harvest.baseDir", tt.path)
		if v.IsValid() == tt.wantErr {
			t.Errorf("RemotePath(%q) valid=%v, wantErr=%v", tt.path, v.IsValid(), tt.wantErr)
		}
	}
}

func TestValidator_Directory(t *testing.T) {
	tmp := t.TempDir()

	v := New()
	v.Directory("dataDir", filepath.Join(tmp, "new", "dir"), false)
	if !v.IsValid() {
		t.Fatalf("expected directory to be created: %v", v.Err())
	}
	if _, err := os.Stat(filepath.Join(tmp, "new", "dir")); err != nil {
		t.Fatalf("directory not created: %v", err)
	}

	v = New()
	v.Directory("dataDir", filepath.Join(tmp, "missing"), true)
	if v.IsValid() {
		t.Fatal("expected error for missing directory")
	}

	file := filepath.Join(tmp, "file")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	v = New()
	v.Directory("dataDir", file, false)
	if v.IsValid() {
		t.Fatal("expected error for regular file")
	}
}

func TestValidator_Numbers(t *testing.T) {
	v := New()
	v.Positive("harvest.maxFrames", 0)
	v.PositiveFloat("sampling.euroFps", -1)
	v.NonNegative("retry.attempts", -1)
	v.NonNegativeDuration("retry.delay", -time.Second)
	v.Range("upload.attempts", 11, 1, 10)
	v.Positive("ok", 1)

	if got := len(v.Errors()); got != 5 {
		t.Fatalf("expected 5 errors, got %d: %v", got, v.Err())
	}
}

func TestValidationError_Aggregates(t *testing.T) {
	v := New()
	v.NotEmpty("a", " ")
	v.OneOf("b", "x", []string{"y", "z"})

	err := v.Err()
	var ve ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(ve.Errors()) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(ve.Errors()))
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("expected joined message, got %q", err.Error())
	}
	if New().Err() != nil {
		t.Error("empty validator must return nil error")
	}
}

func TestParseLogLevel(t *testing.T) {
	if _, err := ParseLogLevel("debug"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ParseLogLevel("WARN"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("expected error for invalid level")
	}
}
