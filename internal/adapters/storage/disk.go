// Package storage keeps uploaded attachment files on local disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"github.com/google/uuid"
)

// Disk writes each upload under root with a generated name so client file
// names never reach the filesystem.
type Disk struct {
	root string
}

var _ domain.FileStore = (*Disk)(nil)

func NewDisk(root string) (*Disk, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Disk{root: abs}, nil
}

// Save copies at most maxBytes from body. Larger bodies are rejected and
// nothing is left behind.
func (d *Disk) Save(ctx context.Context, name string, body io.Reader, maxBytes int64) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	path := filepath.Join(d.root, uuid.NewString()+strings.ToLower(filepath.Ext(name)))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", 0, domain.Internal("store upload", err)
	}

	n, err := io.Copy(f, io.LimitReader(body, maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > maxBytes {
		err = domain.Invalid("file exceeds the %d byte limit", maxBytes)
	}
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, domain.ErrValidation) {
			return "", 0, err
		}
		return "", 0, domain.Internal("store upload", err)
	}
	return path, n, nil
}

// Remove deletes a stored file. Paths outside root are refused and a
// missing file is not an error.
func (d *Disk) Remove(_ context.Context, path string) error {
	rel, err := filepath.Rel(d.root, filepath.Clean(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("refusing to remove %q outside upload dir", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
