// Package drive implements the document source backed by a Google Drive
// folder.
package drive

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/lumenkb/lumen/internal/domain"
)

// Google Workspace MIME types that are exported rather than downloaded.
const (
	MimeTypeGoogleDoc    = "application/vnd.google-apps.document"
	MimeTypeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypeGoogleSlides = "application/vnd.google-apps.presentation"
	MimeTypeFolder       = "application/vnd.google-apps.folder"
)

const (
	exportMimeText = "text/plain"
	exportMimeCSV  = "text/csv"
)

// maxContentSize caps downloaded or exported content at 5MB.
const maxContentSize = 5 * 1024 * 1024

const listPageSize = 100

// Config holds the Drive source settings.
type Config struct {
	// FolderID is the Drive folder whose files make up the knowledge base.
	FolderID string
	// CredentialsFile is a service account key file. When empty, application
	// default credentials are used.
	CredentialsFile string
}

// Source lists and fetches the files of one Drive folder.
type Source struct {
	svc      *drive.Service
	folderID string
}

func NewSource(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.FolderID == "" {
		return nil, fmt.Errorf("drive folder id is required")
	}

	opts := []option.ClientOption{option.WithScopes(drive.DriveReadonlyScope)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &Source{svc: svc, folderID: cfg.FolderID}, nil
}

// ListDocuments enumerates the folder's files as document metadata. Content
// is not fetched here. Folders, trashed files and binary files are skipped.
func (s *Source) ListDocuments(ctx context.Context) ([]*domain.Document, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", s.folderID)

	var docs []*domain.Document
	pageToken := ""
	for {
		call := s.svc.Files.List().
			Q(query).
			Fields("nextPageToken, files(id, name, mimeType, modifiedTime, size)").
			PageSize(listPageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list drive folder %s: %w", s.folderID, err)
		}

		for _, f := range page.Files {
			if !syncable(f) {
				continue
			}

			modifiedAt, err := time.Parse(time.RFC3339, f.ModifiedTime)
			if err != nil {
				return nil, fmt.Errorf("file %s has invalid modified time %q: %w", f.Id, f.ModifiedTime, err)
			}

			docs = append(docs, &domain.Document{
				ID:         f.Id,
				Name:       f.Name,
				Path:       "/" + f.Name,
				MimeType:   f.MimeType,
				Category:   categoryFor(f.MimeType),
				ModifiedAt: modifiedAt,
			})
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return docs, nil
}

// FetchContent returns the text content of a document. Google Workspace
// files are exported; regular files are downloaded.
func (s *Source) FetchContent(ctx context.Context, doc *domain.Document) (string, error) {
	switch doc.MimeType {
	case MimeTypeGoogleDoc, MimeTypeGoogleSlides:
		return s.export(ctx, doc.ID, exportMimeText)
	case MimeTypeGoogleSheet:
		return s.export(ctx, doc.ID, exportMimeCSV)
	}

	resp, err := s.svc.Files.Get(doc.ID).Context(ctx).Download()
	if err != nil {
		return "", fmt.Errorf("failed to download file %s: %w", doc.ID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxContentSize))
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", doc.ID, err)
	}

	return string(data), nil
}

func (s *Source) export(ctx context.Context, fileID, mimeType string) (string, error) {
	resp, err := s.svc.Files.Export(fileID, mimeType).Context(ctx).Download()
	if err != nil {
		return "", fmt.Errorf("failed to export file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxContentSize))
	if err != nil {
		return "", fmt.Errorf("failed to read export of %s: %w", fileID, err)
	}

	return string(data), nil
}

func syncable(f *drive.File) bool {
	if f.MimeType == MimeTypeFolder {
		return false
	}
	switch f.MimeType {
	case MimeTypeGoogleDoc, MimeTypeGoogleSheet, MimeTypeGoogleSlides:
		return true
	}
	return isTextMime(f.MimeType) && f.Size <= maxContentSize
}

func isTextMime(mimeType string) bool {
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	switch mimeType {
	case "application/json", "application/xml", "application/x-yaml", "application/javascript":
		return true
	}
	return false
}

func categoryFor(mimeType string) string {
	switch mimeType {
	case MimeTypeGoogleDoc:
		return "doc"
	case MimeTypeGoogleSheet:
		return "sheet"
	case MimeTypeGoogleSlides:
		return "slides"
	}
	return "file"
}
