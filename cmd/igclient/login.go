package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igclient/pkg/config"
	"igclient/pkg/logger"
	"igclient/pkg/session"
	"igclient/pkg/transport"
)

// loginCmd logs in and persists the resulting session
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and persist the session",
	Long: `Log in with username and password, then persist the session settings
(device identity plus cookies) so later commands reuse it without another
credentials round trip.

A checkpoint or challenge response prints the challenge URL; resolve it in a
browser and log in again.`,
	Example: `  # Prompted password
  igclient login -u myusername

  # Settings stored in an explicit directory
  igclient login -u myusername -s ~/.igclient-sessions`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, log, err := buildConfig()
	if err != nil {
		return err
	}

	username := strings.TrimSpace(flagUsername)
	if username == "" {
		return fmt.Errorf("--username is required")
	}
	password := flagPassword
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(raw)
	}

	store, err := settingsStore(cfg)
	if err != nil {
		return err
	}

	client, err := buildClient(cfg, log, store, username)
	if err != nil {
		return err
	}

	client.OnLogin = func(s *session.Session) {
		blob, err := s.DumpSettings()
		if err != nil {
			log.WithError(err).Error("failed to serialize settings")
			return
		}
		if err := store.Save(username, blob); err != nil {
			log.WithError(err).Error("failed to persist settings")
			return
		}
		log.InfoWithFields("session persisted", map[string]interface{}{"username": username})
	}

	if err := client.Login(context.Background(), username, password); err != nil {
		return err
	}

	fmt.Printf("logged in as %s (user id %s)\n", username, client.AuthenticatedUserID())
	return nil
}

// settingsStore picks the configured persistence backend
func settingsStore(cfg *config.Config) (session.Store, error) {
	if cfg.Settings.Path != "" {
		return session.NewFileStore(cfg.Settings.Path)
	}
	return session.NewManager(cfg.Settings.Passphrase)
}

// buildClient restores a stored session when one exists, otherwise starts a
// fresh deterministic one seeded by the username.
func buildClient(cfg *config.Config, log logger.Logger, store session.Store, username string) (*transport.Client, error) {
	var sess *session.Session
	if blob, err := store.Load(username); err == nil {
		sess, err = session.LoadSettings(blob)
		if err != nil {
			// Expired or corrupt settings: surface expiry, rebuild otherwise
			log.WithError(err).Warn("stored session unusable, starting fresh")
			sess = nil
		}
	}
	if sess == nil {
		sess = session.New(username, username)
	}
	return transport.New(sess, cfg, log), nil
}

var errNoSession = stderrors.New("no stored session; run `igclient login` first")

// restoreClient loads a previously persisted session and fails when none is
// usable.
func restoreClient(cfg *config.Config, log logger.Logger, store session.Store, username string) (*transport.Client, error) {
	blob, err := store.Load(username)
	if err != nil {
		return nil, errNoSession
	}
	sess, err := session.LoadSettings(blob)
	if err != nil {
		return nil, err
	}
	return transport.New(sess, cfg, log), nil
}
