package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/common"
)

// FSLoader reads documents from the local filesystem.
type FSLoader struct {
	MaxBytes int64 // 0 means unlimited
	logger   *slog.Logger
}

func NewFSLoader(maxBytes int64, logger *slog.Logger) *FSLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSLoader{MaxBytes: maxBytes, logger: logger}
}

// LoadFile reads path, hashes it and infers its media type from the
// extension. Unsupported extensions and oversized files are InvalidInput.
func (l *FSLoader) LoadFile(ctx context.Context, path string) (Document, error) {
	var out Document
	if err := ctx.Err(); err != nil {
		return out, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		l.logger.Debug("skipping unsupported file", "path", abs, "ext", ext)
		return out, common.InvalidInput(fmt.Sprintf("unsupported or missing extension %q", ext))
	}

	f, err := os.Open(abs)
	if err != nil {
		return out, fmt.Errorf("open: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			l.logger.Warn("close file error", "path", abs, "error", cerr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return out, fmt.Errorf("stat: %w", err)
	}
	if info.IsDir() {
		return out, common.InvalidInput(fmt.Sprintf("%s is a directory", abs))
	}
	if l.MaxBytes > 0 && info.Size() > l.MaxBytes {
		return out, common.InvalidInput(fmt.Sprintf("file is %d bytes, limit is %d", info.Size(), l.MaxBytes))
	}

	h := sha256.New()
	content, err := io.ReadAll(io.TeeReader(f, h))
	if err != nil {
		return out, fmt.Errorf("read: %w", err)
	}

	out = Document{
		Path:     abs,
		Filename: filepath.Base(abs),
		MimeType: constants.MimeForExt(ext),
		Content:  content,
		HashHex:  hex.EncodeToString(h.Sum(nil)),
	}
	return out, nil
}

// LoadFile reads path with no size limit.
func LoadFile(ctx context.Context, path string) (Document, error) {
	return NewFSLoader(0, nil).LoadFile(ctx, path)
}
