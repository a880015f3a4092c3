package gcp

import (
	"context"
	"fmt"
	"io"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/Lllllllleong/dataroomindexer/internal/models"
)

// Drive MIME types recognised by the indexer.
const (
	MimeTypePDF          = "application/pdf"
	MimeTypeGoogleDoc    = "application/vnd.google-apps.document"
	MimeTypeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypeGoogleSlides = "application/vnd.google-apps.presentation"
	MimeTypeFolder       = "application/vnd.google-apps.folder"
)

// listPageSize is the maximum page size allowed by files.list.
const listPageSize = 1000

// DriveClient lists, downloads and exports files from Google Drive.
type DriveClient struct {
	svc     *drive.Service
	limiter *RateLimiter
}

// NewDriveClient creates a read-only Drive client. An empty credentialsPath
// falls back to Application Default Credentials.
func NewDriveClient(ctx context.Context, credentialsPath string, limiter *RateLimiter, opts ...option.ClientOption) (*DriveClient, error) {
	opts = append(opts, option.WithScopes(drive.DriveReadonlyScope))
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}
	return NewDriveClientFromService(svc, limiter), nil
}

// NewDriveClientFromService wraps an existing Drive service.
func NewDriveClientFromService(svc *drive.Service, limiter *RateLimiter) *DriveClient {
	if limiter == nil {
		limiter = NewRateLimiter(0, 0)
	}
	return &DriveClient{svc: svc, limiter: limiter}
}

// List returns every non-trashed file directly inside folderID, following
// nextPageToken until the listing is exhausted.
func (c *DriveClient) List(ctx context.Context, folderID string) ([]models.RemoteFileDescriptor, error) {
	query := fmt.Sprintf("'%s' in parents and trashed=false", strings.ReplaceAll(folderID, "'", `\'`))
	call := c.svc.Files.List().
		Q(query).
		Fields("nextPageToken, files(id, name, mimeType, size)").
		PageSize(listPageSize).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true)

	var files []models.RemoteFileDescriptor
	err := call.Pages(ctx, func(page *drive.FileList) error {
		for _, f := range page.Files {
			desc := models.RemoteFileDescriptor{ID: f.Id, Name: f.Name, MimeType: f.MimeType}
			if f.Size > 0 {
				size := f.Size
				desc.SizeBytes = &size
			}
			files = append(files, desc)
		}
		// Throttle before the next page is requested.
		return c.limiter.Wait(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list folder %s: %w", folderID, c.classify(err))
	}
	return files, nil
}

// Download returns the raw bytes of a binary Drive file.
func (c *DriveClient) Download(ctx context.Context, fileID string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", fileID, c.classify(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", fileID, err)
	}
	return data, nil
}

// Export converts a Google Workspace file to targetMime and returns the bytes.
func (c *DriveClient) Export(ctx context.Context, fileID, targetMime string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.svc.Files.Export(fileID, targetMime).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("export file %s: %w", fileID, c.classify(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read export %s: %w", fileID, err)
	}
	return data, nil
}

func (c *DriveClient) classify(err error) error {
	if IsRateLimited(err) {
		c.limiter.RecordRateLimitError(0)
	}
	return WrapError(err)
}
