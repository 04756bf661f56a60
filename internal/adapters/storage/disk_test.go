package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/atvirokodosprendimai/intellitest/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskSaveAndRemove(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	d, err := NewDisk(filepath.Join(root, "uploads"))
	require.NoError(t, err)

	path, size, err := d.Save(ctx, "../../evil.PNG", strings.NewReader("pixels"), 1024)
	require.NoError(t, err)
	assert.Equal(t, int64(6), size)
	assert.Equal(t, filepath.Join(root, "uploads"), filepath.Dir(path))
	assert.Equal(t, ".png", filepath.Ext(path))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(body))

	require.NoError(t, d.Remove(ctx, path))
	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoError(t, d.Remove(ctx, path), "removing twice is fine")

	assert.Error(t, d.Remove(ctx, filepath.Join(root, "other.txt")))
}

func TestDiskRejectsOversizedUpload(t *testing.T) {
	d, err := NewDisk(t.TempDir())
	require.NoError(t, err)

	_, _, err = d.Save(context.Background(), "big.txt", strings.NewReader("0123456789"), 4)
	assert.ErrorIs(t, err, domain.ErrValidation)

	entries, err := os.ReadDir(d.root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
