// Package secrets loads the bot's credential bundle from a Fernet-encrypted
// file, keyed by an environment-provided secret.
package secrets

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/fernet/fernet-go"
)

// Credentials is the decrypted content of the credential file.
type Credentials struct {
	SlackBotToken            string          `json:"slack_bot_token"`
	SlackSigningSecret       string          `json:"slack_signing_secret"`
	GoogleServiceAccountInfo json.RawMessage `json:"google_service_account_info"`
}

// DecryptFile reads and decrypts the credential file with the given Fernet key.
func DecryptFile(path, key string) (*Credentials, error) {
	keys, err := fernet.DecodeKeys(key)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	// TTL 0 disables token expiry; the file has no rotation schedule.
	plaintext := fernet.VerifyAndDecrypt(data, 0, keys)
	if plaintext == nil {
		slog.Error("secrets.DecryptFile: credential file failed verification", "path", path)
		return nil, fmt.Errorf("credential file %s failed verification", path)
	}

	var creds Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("failed to decode credential file: %w", err)
	}
	slog.Debug("secrets.DecryptFile: credential file loaded", "path", path)
	return &creds, nil
}

// EncryptFile encrypts a plaintext JSON credential file to outputPath.
// It exists for operators preparing the encrypted bundle.
func EncryptFile(inputPath, outputPath, key string) error {
	keys, err := fernet.DecodeKeys(key)
	if err != nil {
		return fmt.Errorf("invalid encryption key: %w", err)
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read credential file: %w", err)
	}

	// Round-trip through Credentials so malformed input is rejected up front.
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return fmt.Errorf("input is not a valid credential file: %w", err)
	}

	token, err := fernet.EncryptAndSign(data, keys[0])
	if err != nil {
		return fmt.Errorf("failed to encrypt credential file: %w", err)
	}

	if err := os.WriteFile(outputPath, token, 0600); err != nil {
		return fmt.Errorf("failed to write encrypted file: %w", err)
	}
	return nil
}
