package credential

import (
	"fmt"
	"strings"

	"github.com/99designs/keyring"

	"github.com/ashish9731/email-responder/internal/types"
)

const serviceName = "email-responder"

// SecretPrefix marks a config value that names a keyring entry instead of
// holding the secret itself, e.g. "keyring:graph-client-secret".
const SecretPrefix = "keyring:"

// Getter reads keyring items. keyring.Keyring satisfies it.
type Getter interface {
	Get(key string) (keyring.Item, error)
}

// OpenKeyring returns the system keyring for this service.
func OpenKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/email-responder/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("email-responder-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Set stores a secret in the system keyring.
func Set(key, value string) error {
	ring, err := OpenKeyring()
	if err != nil {
		return err
	}
	if err := ring.Set(keyring.Item{Key: key, Data: []byte(value)}); err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// IsReference reports whether value points into the keyring
func IsReference(value string) bool {
	return strings.HasPrefix(value, SecretPrefix)
}

// ResolveSecret returns value unchanged unless it is a keyring reference, in
// which case the referenced item is read from ring.
func ResolveSecret(ring Getter, value string) (string, error) {
	if !IsReference(value) {
		return value, nil
	}
	key := strings.TrimPrefix(value, SecretPrefix)
	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// ResolveConfigSecrets replaces every keyring reference among the secret
// fields of cfg. The keyring is opened only when a reference is present.
func ResolveConfigSecrets(cfg *types.Config, open func() (Getter, error)) error {
	fields := []*string{
		&cfg.Mailbox.IMAP.Password,
		&cfg.Mailbox.POP3.Password,
		&cfg.Mailbox.SMTP.Password,
		&cfg.Graph.ClientSecret,
		&cfg.Generator.APIKey,
	}

	var ring Getter
	for _, f := range fields {
		if !IsReference(*f) {
			continue
		}
		if ring == nil {
			var err error
			if ring, err = open(); err != nil {
				return err
			}
		}
		resolved, err := ResolveSecret(ring, *f)
		if err != nil {
			return err
		}
		*f = resolved
	}
	return nil
}

// SystemKeyring adapts OpenKeyring to ResolveConfigSecrets
func SystemKeyring() (Getter, error) {
	return OpenKeyring()
}
