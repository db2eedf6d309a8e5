package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"igclient/pkg/config"
	"igclient/pkg/errors"
	"igclient/pkg/logger"
)

// Exit codes example callers rely on
const (
	exitOK         = 0
	exitLoginError = 9
	exitUnexpected = 99
)

var (
	version = "1.0.0"

	// Global flags
	flagUsername string
	flagPassword string
	flagSettings string
	flagDebug    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "igclient",
	Short: "A client for the vendor's private mobile API",
	Long: `igclient drives the vendor's private mobile API the way the first-party
app does: device impersonation, signed request bodies, persistent sessions
and chunked media uploads.

Sessions are persisted between runs so repeated logins are unnecessary; a
stored session whose cookies have expired is rejected before any network
call is made.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and maps errors to exit codes
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)

		var apiErr *errors.Error
		if stderrors.As(err, &apiErr) {
			switch apiErr.Kind {
			case errors.KindBadCredentials, errors.KindLoginRequired, errors.KindCookieExpired:
				os.Exit(exitLoginError)
			}
		}
		os.Exit(exitUnexpected)
	}
	os.Exit(exitOK)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagUsername, "username", "u", "", "account username")
	rootCmd.PersistentFlags().StringVarP(&flagPassword, "password", "p", "", "account password (prompted when omitted)")
	rootCmd.PersistentFlags().StringVarP(&flagSettings, "settings", "s", "", "path to the settings directory")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
}

// buildConfig assembles the runtime configuration from defaults, environment
// and flags.
func buildConfig() (*config.Config, logger.Logger, error) {
	cfg := config.DefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, nil, err
	}
	if flagDebug {
		cfg.Logging.Level = "debug"
		cfg.Logging.Pretty = true
	}
	if flagSettings != "" {
		cfg.Settings.Path = flagSettings
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	log, err := logger.New(logger.Options{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})
	if err != nil {
		return nil, nil, err
	}
	logger.SetLogger(log)
	return cfg, log, nil
}
