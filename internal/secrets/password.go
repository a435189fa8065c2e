// Package secrets keeps the IMAP password out of config files.
package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"jobwatch-engine/internal/config"
)

// KeyringService groups the app's entries in the OS keychain.
const KeyringService = "jobwatch"

var ErrNoPassword = errors.New("IMAP password not found (set it in the keychain or JOBWATCH_IMAP_PASSWORD)")

func IMAPKeyringAccount(cfg config.Config) string {
	return fmt.Sprintf("jobwatch:imap:%s@%s", cfg.Email.Username, cfg.Email.IMAPHost)
}

// IMAPPassword looks in the keychain first, then falls back to the value
// config.Load took from the environment.
func IMAPPassword(cfg config.Config) (string, error) {
	if cfg.Email.Username != "" {
		pw, err := keyring.Get(KeyringService, IMAPKeyringAccount(cfg))
		if err == nil && strings.TrimSpace(pw) != "" {
			return pw, nil
		}
	}
	if pw := strings.TrimSpace(cfg.Email.AppPassword); pw != "" {
		return pw, nil
	}
	return "", ErrNoPassword
}

func SetIMAPPassword(cfg config.Config, password string) error {
	if strings.TrimSpace(cfg.Email.Username) == "" || strings.TrimSpace(cfg.Email.IMAPHost) == "" {
		return errors.New("email.username and email.imap_host must be set first")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, IMAPKeyringAccount(cfg), password)
}

func DeleteIMAPPassword(cfg config.Config) error {
	err := keyring.Delete(KeyringService, IMAPKeyringAccount(cfg))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
