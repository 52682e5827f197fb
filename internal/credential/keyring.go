// Package credential stores per-tenant secrets in the system keyring:
// Notion integration tokens, Azure DevOps personal access tokens, and
// serialized OAuth sessions. Nothing secret ever lands in the YAML
// configuration file.
package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "syncbridge"

// Keyring key builders. Every stored secret is scoped to one tenant so
// multi-tenant hosts never share credentials.

// NotionTokenKey names the static integration token for a tenant.
func NotionTokenKey(tenantID string) string {
	return "notion-token:" + tenantID
}

// NotionOAuthKey names the stored OAuth state for a tenant.
func NotionOAuthKey(tenantID string) string {
	return "notion-oauth:" + tenantID
}

// AzDOPATKey names the Azure DevOps personal access token for a tenant.
func AzDOPATKey(tenantID string) string {
	return "azdo-pat:" + tenantID
}

// openKeyring returns a configured keyring instance. The file backend
// is the fallback for headless hosts without a native secret service.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/syncbridge/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("syncbridge-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}
