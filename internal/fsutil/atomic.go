// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package fsutil

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/renameio/v2"
)

// WriteAtomic writes a file through fill with atomic + durable replace
// semantics: readers see either the old content or the complete new content.
func WriteAtomic(path string, fill func(w io.Writer) error) (err error) {
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending file %s: %w", path, err)
	}
	// No-op once the file has been committed.
	defer func() {
		if cerr := pending.Cleanup(); cerr != nil && err == nil {
			err = fmt.Errorf("cleanup pending file %s: %w", path, cerr)
		}
	}()

	if err := fill(pending); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace %s: %w", path, err)
	}
	return nil
}

// WriteJSON atomically replaces path with the indented JSON form of v.
func WriteJSON(path string, v any) error {
	return WriteAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}
