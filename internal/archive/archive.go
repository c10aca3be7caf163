package archive

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Kind is the type of case artifact being archived
type Kind string

const (
	KindChecklist Kind = "checklist"
	KindResponse  Kind = "response"
)

// Folders under the archive root, created by EnsureFolders
const (
	FolderCases       = "EmailCases"
	FolderAttachments = "Attachments"
	FolderResponses   = "Responses"
	FolderReports     = "Reports"
)

// Subfolders lists the fixed tree below the root folder in creation order
var Subfolders = []string{FolderCases, FolderAttachments, FolderResponses, FolderReports}

var ErrUnknownKind = errors.New("unknown artifact kind")

// Gateway stores case artifacts in a document store
type Gateway interface {
	// EnsureFolders creates the folder tree; calling it again is a no-op
	EnsureFolders(ctx context.Context) error
	// WriteCaseArtifact stores content for the case and returns a URL to it
	WriteCaseArtifact(ctx context.Context, caseNumber string, kind Kind, content string) (string, error)
	Name() string
}

// Artifact describes where an artifact lives relative to the archive root
type Artifact struct {
	Folders     []string
	FileName    string
	ContentType string
}

// ArtifactFor resolves the location of an artifact.
// Checklists go to EmailCases/<case>/, responses to Responses/.
func ArtifactFor(caseNumber string, kind Kind) (Artifact, error) {
	caseNumber = SanitizeFilename(caseNumber)
	if caseNumber == "" {
		return Artifact{}, fmt.Errorf("case number is required")
	}

	switch kind {
	case KindChecklist:
		return Artifact{
			Folders:     []string{FolderCases, caseNumber},
			FileName:    fmt.Sprintf("Checklist_%s.txt", caseNumber),
			ContentType: "text/plain",
		}, nil
	case KindResponse:
		return Artifact{
			Folders:     []string{FolderResponses},
			FileName:    fmt.Sprintf("Response_%s.html", caseNumber),
			ContentType: "text/html",
		}, nil
	default:
		return Artifact{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// SanitizeFilename strips path components and characters that are unsafe in
// file names on common file systems and drive services
func SanitizeFilename(filename string) string {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "." || filename == "/" {
		return ""
	}

	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"'", "_",
		"<", "_",
		">", "_",
		"|", "_",
		"#", "_",
		"%", "_",
	)
	return replacer.Replace(filename)
}
