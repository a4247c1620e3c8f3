// Package files persists finished exports on disk. Every export served
// over HTTP is also archived under the configured output directory so a
// download that never completed can be recovered from the filesystem.
package files

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ExportInfo describes one archived export file.
type ExportInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Archive manages the on-disk export directory.
type Archive struct {
	dir    string
	logger *slog.Logger
}

// NewArchive creates an archive rooted at dir. The directory is created
// lazily on the first save.
func NewArchive(dir string, logger *slog.Logger) *Archive {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{dir: dir, logger: logger.With(slog.String("component", "export_archive"))}
}

// Dir returns the archive root.
func (a *Archive) Dir() string {
	return a.dir
}

// Save writes an export atomically: to a temp file first, then renamed
// into place so readers never observe a partial file. Returns the final
// path.
func (a *Archive) Save(name string, data []byte) (string, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	final := filepath.Join(a.dir, name)
	tmp, err := os.CreateTemp(a.dir, name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp export file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to sync export file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close export file: %w", err)
	}

	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to move export into place: %w", err)
	}

	a.logger.Debug("export archived",
		slog.String("path", final),
		slog.Int("bytes", len(data)))
	return final, nil
}

// Exists reports whether a named export has been archived.
func (a *Archive) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(a.dir, name))
	return err == nil
}

// List returns the archived exports (csv and xlsx only), newest first.
func (a *Archive) List() ([]ExportInfo, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read export directory %s: %w", a.dir, err)
	}

	var exports []ExportInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		lower := strings.ToLower(name)
		if !strings.HasSuffix(lower, ".csv") && !strings.HasSuffix(lower, ".xlsx") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		exports = append(exports, ExportInfo{
			Name:    name,
			Path:    filepath.Join(a.dir, name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(exports, func(i, j int) bool {
		return exports[i].ModTime.After(exports[j].ModTime)
	})
	return exports, nil
}
