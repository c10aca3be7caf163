package archive

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ashish9731/email-responder/internal/credential"
)

// OneDriveArchive stores artifacts in OneDrive through Microsoft Graph
type OneDriveArchive struct {
	client *resty.Client
	drive  string
	root   string
	logger *slog.Logger
}

// NewOneDriveArchive creates a OneDrive archive. userID selects
// /users/{id}/drive; empty means /me/drive.
func NewOneDriveArchive(ctx context.Context, baseURL, userID, root string, source *credential.Source, timeout time.Duration, logger *slog.Logger) *OneDriveArchive {
	client := resty.NewWithClient(source.HTTPClient(ctx)).
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	drive := "/me/drive"
	if userID != "" {
		drive = "/users/" + url.PathEscape(userID) + "/drive"
	}
	return &OneDriveArchive{client: client, drive: drive, root: root, logger: logger}
}

func (od *OneDriveArchive) Name() string {
	return "onedrive"
}

type driveItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	WebURL string `json:"webUrl"`
}

func (od *OneDriveArchive) EnsureFolders(ctx context.Context) error {
	if err := od.createFolder(ctx, nil, od.root); err != nil {
		return err
	}
	for _, sub := range Subfolders {
		if err := od.createFolder(ctx, []string{od.root}, sub); err != nil {
			return err
		}
	}
	return nil
}

func (od *OneDriveArchive) WriteCaseArtifact(ctx context.Context, caseNumber string, kind Kind, content string) (string, error) {
	art, err := ArtifactFor(caseNumber, kind)
	if err != nil {
		return "", err
	}

	parents := []string{od.root}
	for _, folder := range art.Folders {
		if err := od.createFolder(ctx, parents, folder); err != nil {
			return "", err
		}
		parents = append(parents, folder)
	}

	var item driveItem
	resp, err := od.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", art.ContentType).
		SetBody([]byte(content)).
		SetResult(&item).
		Put(od.itemPath(append(parents, art.FileName)) + ":/content")
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", art.FileName, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("failed to upload %s: %s", art.FileName, resp.Status())
	}

	od.logger.Debug("artifact uploaded to onedrive",
		"case_number", caseNumber,
		"kind", kind,
		"id", item.ID)
	return item.WebURL, nil
}

// createFolder creates name below parents. An existing folder is reported as
// 409 Conflict and accepted.
func (od *OneDriveArchive) createFolder(ctx context.Context, parents []string, name string) error {
	endpoint := od.drive + "/root/children"
	if len(parents) > 0 {
		endpoint = od.itemPath(parents) + ":/children"
	}

	resp, err := od.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"name":                              name,
			"folder":                            map[string]any{},
			"@microsoft.graph.conflictBehavior": "fail",
		}).
		Post(endpoint)
	if err != nil {
		return fmt.Errorf("failed to create folder %s: %w", name, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated:
		od.logger.Debug("created onedrive folder", "name", name)
		return nil
	case http.StatusConflict:
		return nil
	default:
		return fmt.Errorf("failed to create folder %s: %s", name, resp.Status())
	}
}

// itemPath addresses an item by path, e.g. /me/drive/root:/EmailResponder/Responses
func (od *OneDriveArchive) itemPath(parts []string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return od.drive + "/root:/" + strings.Join(escaped, "/")
}
