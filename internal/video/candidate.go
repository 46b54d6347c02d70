// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package video parses recorder file names into video candidates.
//
// Recorders name their files "REGID_YYYY.M.D START-END.ext", for example
// "018270348452_2024.5.6 10.15.00-10.20.00.mp4", and store them under
// "<base>/<REGID>/<YYYY.M.D>/".
package video

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/framehaul/internal/remote"
)

// ErrFormat marks a file name that does not follow the recorder convention.
var ErrFormat = errors.New("malformed video file name")

var nameRE = regexp.MustCompile(`^([^_]+)_(\d{4})\.(\d{1,2})\.(\d{1,2}) ([^-\s]+)-(\S+)\.([^.\s]+)$`)

// Candidate is an immutable, parsed video reference.
type Candidate struct {
	RemotePath    string
	RegistratorID string
	CaptureDay    time.Time
	// DayToken is the "YYYY.M.D" part exactly as written in the name.
	DayToken string
	// BaseName is the file name without extension; frame names derive from it.
	BaseName string
	FileName string
	Start    string
	End      string
	Ext      string
}

// Parse parses the final element of remotePath. Failures wrap ErrFormat.
func Parse(remotePath string) (Candidate, error) {
	remotePath = remote.Clean(remotePath)
	name := path.Base(remotePath)

	m := nameRE.FindStringSubmatch(name)
	if m == nil {
		return Candidate{}, fmt.Errorf("%w: %q", ErrFormat, name)
	}

	year, _ := strconv.Atoi(m[2])
	month, _ := strconv.Atoi(m[3])
	day, _ := strconv.Atoi(m[4])
	captured := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 2024.2.31 into March; reject that.
	if captured.Year() != year || int(captured.Month()) != month || captured.Day() != day {
		return Candidate{}, fmt.Errorf("%w: %q has invalid date", ErrFormat, name)
	}

	return Candidate{
		RemotePath:    remotePath,
		RegistratorID: m[1],
		CaptureDay:    captured,
		DayToken:      m[2] + "." + m[3] + "." + m[4],
		BaseName:      strings.TrimSuffix(name, "."+m[7]),
		FileName:      name,
		Start:         m[5],
		End:           m[6],
		Ext:           m[7],
	}, nil
}

// DayDir returns "<base>/<REGID>/<YYYY.M.D>", the directory a recorder
// stores this file in.
func (c Candidate) DayDir(base string) string {
	return remote.Join(base, c.RegistratorID, c.DayToken)
}

// Stem returns a file name without its extension.
func Stem(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

// HasExtension reports whether name ends in one of exts (case-insensitive,
// with or without the leading dot).
func HasExtension(name string, exts []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}
