package settings

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/zalando/go-keyring"
)

// KeyringService groups the application's secrets in the OS keychain.
const KeyringService = "nightcrawler"

// Vault keeps the API credential outside the settings record.
type Vault interface {
	Get(account string) (string, error)
	Set(account, secret string) error
	Delete(account string) error
}

// KeyringVault stores secrets in the OS keychain.
type KeyringVault struct {
	Service string
}

// NewKeyringVault returns a vault using the default service name.
func NewKeyringVault() *KeyringVault {
	return &KeyringVault{Service: KeyringService}
}

// Get returns the secret for account, or "" when none is stored.
func (v *KeyringVault) Get(account string) (string, error) {
	secret, err := keyring.Get(v.Service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "reading keychain")
	}
	return secret, nil
}

// Set stores secret for account. An empty secret removes the entry.
func (v *KeyringVault) Set(account, secret string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if secret == "" {
		return v.Delete(account)
	}
	return errors.Wrap(keyring.Set(v.Service, account, secret), "writing keychain")
}

// Delete removes the secret for account; a missing entry is not an error.
func (v *KeyringVault) Delete(account string) error {
	err := keyring.Delete(v.Service, account)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return errors.Wrap(err, "deleting keychain entry")
}

// credentialAccount names the keychain entry for a provider's API key.
func credentialAccount(provider string) string {
	if provider == "" {
		provider = "openai"
	}
	return "nightcrawler:" + provider + ":api-key"
}
