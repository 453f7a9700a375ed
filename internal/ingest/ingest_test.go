package ingest_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/ingest"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Policy.TXT")
	writeFile(t, path, "Policy Number: ABC-1234")

	doc, err := ingest.LoadFile(context.Background(), path)
	require.NoError(t, err)

	sum := sha256.Sum256([]byte("Policy Number: ABC-1234"))
	assert.Equal(t, hex.EncodeToString(sum[:]), doc.HashHex)
	assert.Equal(t, "Policy.TXT", doc.Filename)
	assert.Equal(t, constants.MimeText, doc.MimeType)
	assert.Equal(t, "Policy Number: ABC-1234", string(doc.Content))
	assert.True(t, filepath.IsAbs(doc.Path))
}

func TestLoadFileRejects(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "scan.png"), "png")
	writeFile(t, filepath.Join(dir, "big.pdf"), "%PDF-1.4 0123456789")

	loader := ingest.NewFSLoader(8, nil)

	_, err := loader.LoadFile(context.Background(), filepath.Join(dir, "scan.png"))
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = loader.LoadFile(context.Background(), filepath.Join(dir, "big.pdf"))
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = loader.LoadFile(context.Background(), filepath.Join(dir, "missing.pdf"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrInvalidInput)
}

func TestWalkDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.pdf"), "x")
	writeFile(t, filepath.Join(root, "a.txt"), "x")
	writeFile(t, filepath.Join(root, "notes.docx"), "x")
	writeFile(t, filepath.Join(root, ".hidden.pdf"), "x")
	writeFile(t, filepath.Join(root, ".cache", "c.pdf"), "x")
	writeFile(t, filepath.Join(root, "sub", "d.PDF"), "x")

	loader := ingest.NewFSLoader(0, nil)

	paths, stats, err := loader.WalkDirectory(context.Background(), root, true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "b.pdf"),
		filepath.Join(root, "sub", "d.PDF"),
	}, paths)
	assert.Equal(t, uint32(3), stats.Matched)
	assert.Equal(t, uint32(4), stats.Scanned)

	paths, _, err = loader.WalkDirectory(context.Background(), root, false)
	require.NoError(t, err)
	assert.Len(t, paths, 5)
}

func TestWalkDirectoryErrors(t *testing.T) {
	loader := ingest.NewFSLoader(0, nil)
	_, _, err := loader.WalkDirectory(context.Background(), "  ", true)
	require.Error(t, err)

	_, _, err = loader.WalkDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"), true)
	require.Error(t, err)
}

func TestStartWatcher(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "existing.pdf"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{root},
		InitialScan: true,
		Debounce:    20 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "existing.pdf"), next(t, events))

	writeFile(t, filepath.Join(root, "ignored.docx"), "x")
	writeFile(t, filepath.Join(root, "new.txt"), "Policy Number: 1234")
	assert.Equal(t, filepath.Join(root, "new.txt"), next(t, events))

	cancel()
	for range events {
	}
}

func TestStartWatcherNeedsRoots(t *testing.T) {
	_, _, err := ingest.StartWatcher(context.Background(), ingest.WatchConfig{})
	require.Error(t, err)
}

func next(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch event")
		return ""
	}
}
