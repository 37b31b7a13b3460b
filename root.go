package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"gdrive-transfer/auth"
	"gdrive-transfer/config"
	"gdrive-transfer/credstore"
	"gdrive-transfer/drive"
	"gdrive-transfer/transfer"
	"gdrive-transfer/tui"
)

// version is set at build time via ldflags.
var version = "dev"

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// usageError marks a problem with the command line itself.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// flags holds the parsed command line. Values that are also configuration
// are read back through config.Load so their precedence is applied there.
type flags struct {
	configPath string
	sheet      string
	doc        string
	fileID     string
	download   string
	upload     string
}

// app carries the process environment so tests can substitute it.
type app struct {
	in      io.Reader
	out     io.Writer
	errOut  io.Writer
	environ func() []string

	isTerminal func() bool
	openURL    func(string) error
	newRemote  func(ctx context.Context, cfg *config.Config, cred *credstore.Credential) (transfer.Remote, error)

	flags flags
	// started is set once the command line has been accepted.
	started bool
}

func newApp() *app {
	return &app{
		in:      os.Stdin,
		out:     os.Stdout,
		errOut:  os.Stderr,
		environ: os.Environ,
		isTerminal: func() bool {
			fd := os.Stdin.Fd()
			return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		},
		openURL:   auth.OpenBrowser,
		newRemote: newDriveRemote,
	}
}

// execute runs the command line and returns the process exit status.
func execute(ctx context.Context, a *app, args []string) int {
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetIn(a.in)
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var uErr *usageError
	if errors.As(err, &uErr) || !a.started {
		fmt.Fprintln(a.errOut, tui.Error(err))
		fmt.Fprintln(a.errOut)
		fmt.Fprint(a.errOut, cmd.UsageString())
		return exitUsage
	}

	fmt.Fprintln(a.errOut, tui.Error(err))
	return exitFailure
}

// newRootCmd builds the root command with all subcommands registered.
func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gdrive-transfer (--sheet FORMAT | --doc FORMAT) --file-id ID (-o PATH | --upload PATH)",
		Short: "Export or replace a Google Sheet or Google Doc",
		Long: "Downloads a Google Sheet or Google Doc in the chosen format, or replaces\n" +
			"its content with a local file. The file ID may be given as a bare ID or\n" +
			"as the document URL.",
		Version: version,
		Args:    cobra.NoArgs,
		// Errors and usage are printed by execute.
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := a.request()
			if err != nil {
				return &usageError{err: err}
			}

			a.started = true

			return a.run(cmd.Context(), cmd, req)
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "config file path (default $XDG_CONFIG_HOME/gdrive-transfer/config.toml)")
	pf.String("client-secrets", config.DefaultClientSecrets, "OAuth client secrets file")
	pf.String("credentials", config.DefaultCredentialFile, "credential file for file storage")
	pf.String("storage", string(config.DefaultStorage), "credential storage: file or keyring")
	pf.String("keyring-user", "", "keyring account for keyring storage (default current user)")
	pf.String("log-format", string(config.DefaultLogFormat), "log format: text or json")
	pf.BoolP("verbose", "v", false, "enable debug logging")
	pf.BoolP("quiet", "q", false, "log errors only")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	f := cmd.Flags()
	f.StringVar(&a.flags.sheet, "sheet", "", "transfer a Google Sheet using format "+tagList(transfer.KindSheet))
	f.StringVar(&a.flags.doc, "doc", "", "transfer a Google Doc using format "+tagList(transfer.KindDocument))
	f.StringVar(&a.flags.fileID, "file-id", "", "Google Drive file ID or document URL")
	f.StringVarP(&a.flags.download, "download", "o", "", "export the document to this local path")
	f.StringVar(&a.flags.upload, "upload", "", "replace the document content with this local file")
	f.Bool("offline", false, "print the authorization URL and paste the code instead of using a local redirect")
	f.Uint16("port", config.DefaultPort, "port for the local authorization redirect")
	f.Duration("timeout", config.DefaultTimeout, "how long to wait for the authorization redirect")
	f.StringSlice("scope", nil, "OAuth scope to request (repeatable)")
	f.Bool("no-browser", false, "do not open a browser for authorization")

	cmd.MarkFlagsMutuallyExclusive("sheet", "doc")
	cmd.MarkFlagsOneRequired("sheet", "doc")
	cmd.MarkFlagsMutuallyExclusive("download", "upload")
	cmd.MarkFlagsOneRequired("download", "upload")
	_ = cmd.MarkFlagRequired("file-id")

	cmd.AddCommand(newFormatsCmd())

	return cmd
}

// request turns the transfer flags into a transfer.Request.
func (a *app) request() (transfer.Request, error) {
	req := transfer.Request{Kind: transfer.KindSheet, Format: a.flags.sheet}
	if a.flags.doc != "" {
		req.Kind = transfer.KindDocument
		req.Format = a.flags.doc
	}

	id, err := drive.ExtractFileID(a.flags.fileID)
	if err != nil {
		return req, err
	}
	req.FileID = id

	switch {
	case a.flags.upload != "":
		if _, err := os.Stat(a.flags.upload); err != nil {
			return req, fmt.Errorf("upload file: %w", err)
		}
		req.Direction = transfer.DirectionUpload
		req.LocalPath = a.flags.upload
	default:
		req.Direction = transfer.DirectionExport
		req.LocalPath = a.flags.download
	}

	return req, nil
}

// buildLogger creates the slog.Logger described by cfg.
func buildLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	if cfg.LogFormat == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

func tagList(kind transfer.Kind) string {
	return "(" + strings.Join(transfer.DefaultTables().For(kind).Tags(), "|") + ")"
}
