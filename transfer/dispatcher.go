package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gdrive-transfer/errs"
)

// DefaultDocsBaseURL is where Sheets and Docs are opened for editing.
const DefaultDocsBaseURL = "https://docs.google.com"

// Request describes a single transfer. It is consumed once.
type Request struct {
	Kind      Kind
	Direction Direction
	Format    string
	FileID    string
	LocalPath string
}

// Outcome reports what a transfer did.
type Outcome struct {
	Direction Direction
	LocalPath string
	MimeType  string
	Bytes     int64
	// ViewURL is set for uploads.
	ViewURL string
}

// Remote is the subset of the Drive API a transfer needs.
type Remote interface {
	// Export converts a Workspace document and returns the bytes.
	Export(ctx context.Context, fileID, mimeType string) ([]byte, error)
	// UpdateContent replaces the content and name of an existing file.
	UpdateContent(ctx context.Context, fileID, name, mimeType string, media io.Reader) error
}

// Dispatcher runs requests against a Remote.
type Dispatcher struct {
	remote      Remote
	tables      Tables
	docsBaseURL string
	logger      *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTables replaces the built-in MIME tables.
func WithTables(t Tables) Option {
	return func(d *Dispatcher) { d.tables = t }
}

// WithDocsBaseURL changes the host used for viewer URLs.
func WithDocsBaseURL(base string) Option {
	return func(d *Dispatcher) { d.docsBaseURL = strings.TrimRight(base, "/") }
}

// NewDispatcher returns a dispatcher using the default tables.
func NewDispatcher(remote Remote, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		remote:      remote,
		tables:      DefaultTables(),
		docsBaseURL: DefaultDocsBaseURL,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// ViewURL returns the editor URL for a file of the given kind.
func (d *Dispatcher) ViewURL(kind Kind, fileID string) string {
	switch kind {
	case KindSheet:
		return fmt.Sprintf("%s/spreadsheets/d/%s/edit", d.docsBaseURL, fileID)
	default:
		return fmt.Sprintf("%s/document/d/%s/edit", d.docsBaseURL, fileID)
	}
}

// Execute validates the format before touching the network, then exports or
// uploads. Remote failures are returned unchanged.
func (d *Dispatcher) Execute(ctx context.Context, req Request) (*Outcome, error) {
	mime, err := d.tables.Resolve(req.Kind, req.Format)
	if err != nil {
		return nil, err
	}

	logger := d.logger.With(
		slog.String("kind", req.Kind.String()),
		slog.String("direction", req.Direction.String()),
		slog.String("file_id", req.FileID),
		slog.String("mime_type", mime),
	)

	switch req.Direction {
	case DirectionExport:
		return d.export(ctx, req, mime, logger)
	case DirectionUpload:
		return d.upload(ctx, req, mime, logger)
	default:
		return nil, fmt.Errorf("transfer: unknown direction %s", req.Direction)
	}
}

func (d *Dispatcher) export(ctx context.Context, req Request, mime string, logger *slog.Logger) (*Outcome, error) {
	data, err := d.remote.Export(ctx, req.FileID, mime)
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		logger.Warn("export returned an empty payload")
	} else {
		logger.Debug("export received", slog.Int("bytes", len(data)))
	}

	if err := os.WriteFile(req.LocalPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("transfer: writing %s: %w", req.LocalPath, err)
	}

	logger.Info("export complete", slog.String("path", req.LocalPath))

	return &Outcome{
		Direction: DirectionExport,
		LocalPath: req.LocalPath,
		MimeType:  mime,
		Bytes:     int64(len(data)),
	}, nil
}

func (d *Dispatcher) upload(ctx context.Context, req Request, mime string, logger *slog.Logger) (*Outcome, error) {
	f, err := os.Open(req.LocalPath)
	if err != nil {
		return nil, &errs.ConfigError{Path: req.LocalPath, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &errs.ConfigError{Path: req.LocalPath, Err: err}
	}

	if err := d.remote.UpdateContent(ctx, req.FileID, documentName(req.LocalPath), mime, f); err != nil {
		return nil, err
	}

	viewURL := d.ViewURL(req.Kind, req.FileID)
	logger.Info("upload complete", slog.Int64("bytes", info.Size()), slog.String("url", viewURL))

	return &Outcome{
		Direction: DirectionUpload,
		LocalPath: req.LocalPath,
		MimeType:  mime,
		Bytes:     info.Size(),
		ViewURL:   viewURL,
	}, nil
}

// documentName derives the Drive title from the local file name.
func documentName(path string) string {
	base := filepath.Base(path)
	if name := strings.TrimSuffix(base, filepath.Ext(base)); name != "" {
		return name
	}
	return base
}
