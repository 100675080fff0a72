// Package cli implements the mfa command tree. Commands are thin
// consumers of the API client and session store; they own user-facing
// messaging and leave transport concerns to pkg/api.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/me/mfalite/internal/config"
	"github.com/me/mfalite/internal/logging"
	"github.com/me/mfalite/internal/session"
	"github.com/me/mfalite/pkg/api"
	"github.com/me/mfalite/pkg/model"
)

var (
	flagConfig      string
	flagServer      string
	flagCredentials string
	flagDebug       bool
	flagLogLevel    string
	flagLogFormat   string

	cfg    config.Config
	logger *slog.Logger
	client *api.Client
	store  *session.Store
)

// NewRootCmd creates the root cobra command for the mfa CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mfa",
		Short: "MFALite metabolic flux analysis reporting platform",
		Long:  "mfa uploads input files, submits MFA runs, and browses reports on an MFALite server.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(flagConfig)
			if err != nil {
				return err
			}
			if flagServer != "" {
				cfg = cfg.WithServer(flagServer)
			}
			if flagCredentials != "" {
				cfg.CredentialsFile = flagCredentials
			}
			if flagLogLevel != "" {
				cfg.LogLevel = flagLogLevel
			}
			if flagLogFormat != "" {
				cfg.LogFormat = flagLogFormat
			}
			if flagDebug {
				cfg.LogLevel = "debug"
			}

			logger = logging.New(cfg.LogLevel, cfg.LogFormat)
			client = api.NewClient(cfg.BaseURL(), logger, api.WithTimeout(cfg.Timeout))

			store, err = session.Open(client, logger, cfg.CredentialsFile)
			if err != nil {
				return err
			}
			// The transport reports session expiry; dropping credentials
			// and telling the user what to do next happens here.
			errOut := cmd.ErrOrStderr()
			client.SetSessionExpiredFunc(func() {
				fmt.Fprintln(errOut, "Session expired. Run 'mfa login' to sign in again.")
				if err := store.SetIdentity(nil); err != nil {
					logger.Warn("discard expired session", "error", err)
				}
			})
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", config.DefaultPath(), "Config file")
	root.PersistentFlags().StringVar(&flagServer, "server", "", "MFALite server URL (or MFALITE_SERVER env)")
	root.PersistentFlags().StringVar(&flagCredentials, "credentials", "", "Credentials file (default ~/.mfalite/credentials.json)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format (text, json)")

	root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newSignupCmd(),
		newForgotPasswordCmd(),
		newUsersCmd(),
		newRolesCmd(),
		newInputsCmd(),
		newRunCmd(),
		newReportsCmd(),
		newStatusCmd(),
		newUsageCmd(),
		newVersionCmd(),
		newAssumeCmd(),
	)

	return root
}

// requireIdentity returns the current identity record or an error telling
// the user to log in. Every protected command starts here.
func requireIdentity() (*model.User, error) {
	if u := store.Identity(); u != nil {
		return u, nil
	}
	return nil, fmt.Errorf("not logged in: run 'mfa login' first")
}
