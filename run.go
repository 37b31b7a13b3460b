package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"gdrive-transfer/auth"
	"gdrive-transfer/config"
	"gdrive-transfer/credstore"
	"gdrive-transfer/drive"
	"gdrive-transfer/secrets"
	"gdrive-transfer/transfer"
	"gdrive-transfer/tui"
)

// run performs one transfer: configuration, credential, then the Drive call.
func (a *app) run(ctx context.Context, cmd *cobra.Command, req transfer.Request) error {
	cfg, err := config.Load(a.flags.configPath, cmd.Flags(), a.environ)
	if err != nil {
		return err
	}

	logger := buildLogger(cfg, a.errOut)

	// Reject unknown formats before any network traffic, including the
	// authorization flow.
	tables := transfer.DefaultTables()
	if _, err := tables.Resolve(req.Kind, req.Format); err != nil {
		return err
	}

	cred, err := a.credential(ctx, cfg, logger)
	if err != nil {
		return err
	}

	remote, err := a.newRemote(ctx, cfg, cred)
	if err != nil {
		return err
	}

	dispatcher := transfer.NewDispatcher(remote, logger,
		transfer.WithTables(tables),
		transfer.WithDocsBaseURL(cfg.Drive.DocsBaseURL),
	)

	outcome, err := dispatcher.Execute(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, tui.Outcome(outcome))

	return nil
}

// credential returns a usable credential, asking the user only when the
// stored one can be neither reused nor refreshed.
func (a *app) credential(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*credstore.Credential, error) {
	identity, err := secrets.Load(cfg.ClientSecrets)
	if err != nil {
		return nil, err
	}

	oauthCfg := identity.
		WithEndpoints(cfg.Auth.AuthURL, cfg.Auth.TokenURL).
		OAuthConfig(cfg.Auth.Scopes, "")

	store, err := cfg.Credential.NewStore()
	if err != nil {
		return nil, err
	}

	fc := auth.FlowConfig{
		OAuth:   oauthCfg,
		Port:    int(cfg.Auth.Port),
		Timeout: cfg.Auth.Timeout,
		Announce: func(authURL string) {
			fmt.Fprintln(a.errOut, tui.AuthBanner(authURL))
		},
		Prompter: a.prompter(),
		Logger:   logger,
	}
	if !cfg.Auth.NoBrowser {
		fc.OpenURL = a.openURL
	}

	flow, err := auth.NewFlow(cfg.Strategy(), fc)
	if err != nil {
		return nil, err
	}

	logger.Debug("resolving credential",
		slog.String("strategy", cfg.Strategy().String()),
		slog.String("storage", string(cfg.Credential.Storage)),
	)

	manager := auth.NewManager(store, flow, cfg.Auth.Scopes, logger,
		auth.WithRefresher(auth.NewTokenRefresher(oauthCfg)),
	)

	cred, err := manager.Credential(ctx)
	if err != nil {
		return nil, err
	}

	logger.Debug("credential ready", slog.String("state", manager.State().String()))

	return cred, nil
}

// prompter picks the interactive prompt on a terminal and a plain line
// reader otherwise.
func (a *app) prompter() auth.Prompter {
	if a.isTerminal != nil && a.isTerminal() {
		return &tui.Prompter{In: a.in, Out: a.errOut}
	}
	return &auth.LinePrompter{In: a.in, Out: a.errOut}
}

// newDriveRemote builds the Drive client authorized with cred.
func newDriveRemote(ctx context.Context, cfg *config.Config, cred *credstore.Credential) (transfer.Remote, error) {
	opts := []option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(cred.OAuth2Token())),
	}
	if cfg.Drive.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Drive.Endpoint))
	}

	client, err := drive.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}
