package ingest

import (
	"context"
)

// Document is a file read from disk and ready for extraction.
type Document struct {
	Path     string // absolute
	Filename string
	MimeType string
	Content  []byte
	HashHex  string
}

// DirStats summarizes a directory walk.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Skipped uint32
	Failed  uint32
}

// Loader is the behavior the importer depends on.
type Loader interface {
	// LoadFile reads a single path.
	LoadFile(ctx context.Context, path string) (Document, error)
	// WalkDirectory lists all supported files under root.
	WalkDirectory(ctx context.Context, root string, skipHidden bool) ([]string, DirStats, error)
}
