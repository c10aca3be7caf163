package archive

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
)

// FileArchive keeps artifacts on the local file system under basePath/root
type FileArchive struct {
	dir    string
	logger *slog.Logger
}

// NewFileArchive creates a file archive rooted at basePath/root
func NewFileArchive(basePath, root string, logger *slog.Logger) (*FileArchive, error) {
	abs, err := filepath.Abs(filepath.Join(basePath, root))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve archive path: %w", err)
	}
	return &FileArchive{dir: abs, logger: logger}, nil
}

func (fa *FileArchive) Name() string {
	return "file"
}

func (fa *FileArchive) EnsureFolders(ctx context.Context) error {
	for _, sub := range Subfolders {
		if err := os.MkdirAll(filepath.Join(fa.dir, sub), 0755); err != nil {
			return fmt.Errorf("failed to create archive folder %s: %w", sub, err)
		}
	}
	return nil
}

func (fa *FileArchive) WriteCaseArtifact(ctx context.Context, caseNumber string, kind Kind, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	art, err := ArtifactFor(caseNumber, kind)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(append([]string{fa.dir}, art.Folders...)...)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}

	path := filepath.Join(dir, art.FileName)
	if err := writeFileAtomic(path, []byte(content)); err != nil {
		return "", err
	}

	fa.logger.Debug("artifact archived",
		"case_number", caseNumber,
		"kind", kind,
		"path", path)

	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String(), nil
}

func writeFileAtomic(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file content: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}
