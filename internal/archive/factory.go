package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashish9731/email-responder/internal/credential"
	"github.com/ashish9731/email-responder/internal/types"
)

// New creates the archive configured under archive.provider. source is
// required for onedrive and ignored otherwise.
func New(ctx context.Context, cfg *types.Config, source *credential.Source, logger *slog.Logger) (Gateway, error) {
	a := cfg.Archive
	switch a.Provider {
	case "", "file":
		return NewFileArchive(a.Path, a.Root, logger)
	case "gdrive":
		return NewGDriveArchive(ctx, a.GDrive.CredentialsFile, a.GDrive.ParentFolderID, a.Root, logger)
	case "onedrive":
		if source == nil {
			return nil, fmt.Errorf("onedrive archive requires graph credentials")
		}
		timeout := time.Duration(cfg.Mailbox.DefaultTimeout) * time.Second
		return NewOneDriveArchive(ctx, cfg.Graph.BaseURL, cfg.Graph.UserID, a.Root, source, timeout, logger), nil
	default:
		return nil, fmt.Errorf("unsupported archive provider: %s", a.Provider)
	}
}
