package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"gdrive-transfer/errs"
)

// Client wraps the Google Drive API
type Client struct {
	service *drive.Service
}

// NewClient creates a Drive client. Authentication comes from opts, usually
// option.WithTokenSource.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive: unable to create service: %w", err)
	}

	return &Client{service: srv}, nil
}

// Export converts a Google Workspace file to mimeType and returns the bytes.
func (c *Client) Export(ctx context.Context, fileID, mimeType string) ([]byte, error) {
	resp, err := c.service.Files.Export(fileID, mimeType).Context(ctx).Download()
	if err != nil {
		return nil, remoteError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("drive: reading export of %s: %w", fileID, err)
	}

	return data, nil
}

// UpdateContent replaces the content of an existing file in a single
// multipart request and renames it to name. Drive converts the media into
// the file's native Workspace type.
func (c *Client) UpdateContent(ctx context.Context, fileID, name, mimeType string, media io.Reader) error {
	_, err := c.service.Files.Update(fileID, &drive.File{Name: name}).
		Media(media, googleapi.ContentType(mimeType), googleapi.ChunkSize(0)).
		SupportsAllDrives(true).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return remoteError(err)
	}

	return nil
}

// remoteError turns a googleapi.Error into errs.RemoteAPIError. Transport
// and context errors are wrapped unchanged.
func remoteError(err error) error {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return fmt.Errorf("drive: %w", err)
	}

	msg := gErr.Message
	if msg == "" {
		msg = strings.TrimSpace(gErr.Body)
	}
	if msg == "" {
		msg = http.StatusText(gErr.Code)
	}

	return &errs.RemoteAPIError{Status: gErr.Code, Message: msg}
}

var (
	pathIDPattern  = regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`)
	queryIDPattern = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
	bareIDPattern  = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ExtractFileID extracts the file ID from a Google Docs, Sheets or Drive URL.
// A bare ID is returned as is.
func ExtractFileID(s string) (string, error) {
	s = strings.TrimSpace(s)

	// Handle formats like:
	// https://docs.google.com/spreadsheets/d/FILE_ID/edit#gid=0
	// https://drive.google.com/file/d/FILE_ID/view?usp=sharing
	// https://drive.google.com/open?id=FILE_ID
	if m := pathIDPattern.FindStringSubmatch(s); len(m) == 2 {
		return m[1], nil
	}
	if m := queryIDPattern.FindStringSubmatch(s); len(m) == 2 {
		return m[1], nil
	}
	if bareIDPattern.MatchString(s) {
		return s, nil
	}

	return "", fmt.Errorf("could not extract file ID from %q", s)
}
