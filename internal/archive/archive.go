// Package archive copies processed invoice files into the locally synced
// folder tree that Dropbox mirrors.
package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tothsteve/itc-admin/internal/common"
)

// Manager copies files into the sync folder, handling duplicate names.
type Manager struct {
	logger     *slog.Logger
	syncFolder string
}

// NewManager creates an archive manager rooted at syncFolder. The folder is
// created if missing and probed for write access so a misconfigured path
// fails at startup rather than mid-pipeline.
func NewManager(syncFolder string, logger *slog.Logger) (*Manager, error) {
	if syncFolder == "" {
		return nil, fmt.Errorf("sync folder path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(syncFolder, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create sync folder: %w", err)
	}

	probe := filepath.Join(syncFolder, ".write_test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("sync folder is not writable: %w", err)
	}
	_ = os.Remove(probe)

	return &Manager{syncFolder: syncFolder, logger: logger}, nil
}

// Store copies the file at sourcePath into destFolder and returns the final
// path. An empty destFolder means the sync folder root. Name collisions get a
// numeric suffix before the extension.
func (m *Manager) Store(ctx context.Context, sourcePath, destFolder string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if destFolder == "" {
		destFolder = m.syncFolder
	}
	if err := os.MkdirAll(destFolder, 0o750); err != nil {
		return "", fmt.Errorf("failed to create archive folder: %w", err)
	}

	target := filepath.Join(destFolder, filepath.Base(sourcePath))
	target = uniquePath(target)

	m.logger.Info("copying to sync folder", "source", filepath.Base(sourcePath), "target", target)

	if err := copyFile(sourcePath, target); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrArchiveCopy, err)
	}

	// Verify the copy landed with content.
	info, err := os.Stat(target)
	if err != nil || info.Size() == 0 {
		return "", fmt.Errorf("%w: verification failed for %s", common.ErrArchiveCopy, target)
	}

	return target, nil
}

// Stats summarizes the sync folder contents.
type Stats struct {
	TotalFiles int
	PDFFiles   int
	TotalBytes int64
}

// FolderStats walks the sync folder and counts files.
func (m *Manager) FolderStats() (*Stats, error) {
	stats := &Stats{}
	err := filepath.Walk(m.syncFolder, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		stats.TotalFiles++
		stats.TotalBytes += info.Size()
		if strings.EqualFold(filepath.Ext(info.Name()), ".pdf") {
			stats.PDFFiles++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk sync folder: %w", err)
	}
	return stats, nil
}

// uniquePath appends _1, _2, ... before the extension until the path is free.
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
