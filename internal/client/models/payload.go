package models

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/avolkov/snapsync/internal/filex"
	"github.com/google/uuid"
)

// PayloadHandle is a scoped reference to a payload staged on disk. Callers
// acquire a handle, use Path/Bytes while they hold it, and must Release it
// exactly once. This replaces ad hoc temp files with manual cleanup at call
// sites.
type PayloadHandle struct {
	path     string
	released bool
}

// StagePayload writes data into the staging subdirectory and returns a
// handle to the spilled file.
func StagePayload(dirName string, data []byte) (*PayloadHandle, error) {
	dir, err := filex.EnsureSubDir(dirName)
	if err != nil {
		return nil, fmt.Errorf("error creating dir: %w", err)
	}

	path := filepath.Join(dir, uuid.NewString())

	if err := os.WriteFile(path, data, 0o660); err != nil {
		return nil, fmt.Errorf("error writing staged payload: %w", err)
	}

	return &PayloadHandle{path: path}, nil
}

// Path returns the on-disk location of the staged payload.
func (h *PayloadHandle) Path() string {
	return h.path
}

// Bytes reads the staged payload back.
func (h *PayloadHandle) Bytes() ([]byte, error) {
	if h.released {
		return nil, fmt.Errorf("payload handle already released")
	}
	return os.ReadFile(h.path)
}

// Release removes the staged file. Safe to call once; later calls are no-ops.
func (h *PayloadHandle) Release() error {
	if h.released {
		return nil
	}
	h.released = true
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error releasing staged payload: %w", err)
	}
	return nil
}
