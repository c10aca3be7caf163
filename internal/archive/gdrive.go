package archive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// GDriveArchive stores artifacts in Google Drive
type GDriveArchive struct {
	service  *drive.Service
	root     string
	parentID string
	logger   *slog.Logger

	mu      sync.Mutex
	folders map[string]string // folder path -> id
}

// NewGDriveArchive creates a Drive archive from a service account or OAuth
// credentials file. parentFolderID defaults to the drive root.
func NewGDriveArchive(ctx context.Context, credentialsFile, parentFolderID, root string, logger *slog.Logger) (*GDriveArchive, error) {
	service, err := drive.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive client: %w", err)
	}
	return NewGDriveArchiveWithService(service, parentFolderID, root, logger), nil
}

// NewGDriveArchiveWithService wraps an existing Drive service
func NewGDriveArchiveWithService(service *drive.Service, parentFolderID, root string, logger *slog.Logger) *GDriveArchive {
	if parentFolderID == "" {
		parentFolderID = "root"
	}
	return &GDriveArchive{
		service:  service,
		root:     root,
		parentID: parentFolderID,
		logger:   logger,
		folders:  make(map[string]string),
	}
}

func (gd *GDriveArchive) Name() string {
	return "gdrive"
}

func (gd *GDriveArchive) EnsureFolders(ctx context.Context) error {
	for _, sub := range Subfolders {
		if _, err := gd.ensureFolderStructure(ctx, []string{gd.root, sub}); err != nil {
			return err
		}
	}
	return nil
}

func (gd *GDriveArchive) WriteCaseArtifact(ctx context.Context, caseNumber string, kind Kind, content string) (string, error) {
	art, err := ArtifactFor(caseNumber, kind)
	if err != nil {
		return "", err
	}

	folderID, err := gd.ensureFolderStructure(ctx, append([]string{gd.root}, art.Folders...))
	if err != nil {
		return "", fmt.Errorf("failed to ensure folder structure: %w", err)
	}

	file := &drive.File{
		Name:     art.FileName,
		Parents:  []string{folderID},
		MimeType: art.ContentType,
	}
	uploaded, err := gd.service.Files.Create(file).
		Media(strings.NewReader(content)).
		Fields("id", "webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	gd.logger.Debug("artifact uploaded to drive",
		"case_number", caseNumber,
		"kind", kind,
		"id", uploaded.Id)

	if uploaded.WebViewLink != "" {
		return uploaded.WebViewLink, nil
	}
	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", uploaded.Id), nil
}

// ensureFolderStructure walks parts from the parent folder, reusing existing
// folders and creating missing ones
func (gd *GDriveArchive) ensureFolderStructure(ctx context.Context, parts []string) (string, error) {
	gd.mu.Lock()
	defer gd.mu.Unlock()

	currentParentID := gd.parentID
	path := ""
	for _, part := range parts {
		if part == "" {
			continue
		}
		path += "/" + part
		if id, ok := gd.folders[path]; ok {
			currentParentID = id
			continue
		}

		query := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
			escapeQuery(part), escapeQuery(currentParentID), folderMimeType)
		fileList, err := gd.service.Files.List().Q(query).Fields("files(id)").Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("failed to search for folder: %w", err)
		}

		if len(fileList.Files) > 0 {
			currentParentID = fileList.Files[0].Id
		} else {
			folder := &drive.File{
				Name:     part,
				MimeType: folderMimeType,
				Parents:  []string{currentParentID},
			}
			created, err := gd.service.Files.Create(folder).Fields("id").Context(ctx).Do()
			if err != nil {
				return "", fmt.Errorf("failed to create folder: %w", err)
			}
			gd.logger.Debug("created drive folder", "path", path, "id", created.Id)
			currentParentID = created.Id
		}
		gd.folders[path] = currentParentID
	}

	return currentParentID, nil
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
