package settings

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"deskchat/cli/internal/kvstore"
)

const (
	keySandboxURL  = "mcp-url"
	keyAPIKeyEnc   = "model-api-key-enc"
	secretKeySize  = 32
	SecretFileName = ".secret"
)

// Settings are the user-editable values: where the sandbox lives and the
// key sent to the chat API.
type Settings struct {
	SandboxURL string
	APIKey     string
	APIKeySet  bool
}

// DesktopEnabled mirrors the client rule: desktop features are on
// whenever a sandbox URL is configured.
func (s Settings) DesktopEnabled() bool {
	return strings.TrimSpace(s.SandboxURL) != ""
}

type Store struct {
	kv                kvstore.Store
	key               []byte
	defaultSandboxURL string
}

// NewStore loads (or creates) the AES key at secretPath. defaultSandboxURL
// is returned until the user saves a URL of their own.
func NewStore(kv kvstore.Store, secretPath, defaultSandboxURL string) (*Store, error) {
	if kv == nil {
		return nil, errors.New("kv store is required")
	}
	key, err := loadOrCreateSecretKey(secretPath)
	if err != nil {
		return nil, err
	}
	return &Store{kv: kv, key: key, defaultSandboxURL: strings.TrimSpace(defaultSandboxURL)}, nil
}

func (s *Store) Load() (Settings, error) {
	if s == nil || s.kv == nil {
		return Settings{}, errors.New("settings store is not initialized")
	}
	out := Settings{SandboxURL: s.defaultSandboxURL}
	if url, ok, err := s.kv.Get(keySandboxURL); err != nil {
		return Settings{}, err
	} else if ok {
		out.SandboxURL = strings.TrimSpace(url)
	}

	enc, ok, err := s.kv.Get(keyAPIKeyEnc)
	if err != nil {
		return Settings{}, err
	}
	if !ok || strings.TrimSpace(enc) == "" {
		return out, nil
	}
	plain, err := decryptAPIKey(enc, s.key)
	if err != nil {
		return Settings{}, fmt.Errorf("decrypt api key: %w", err)
	}
	out.APIKey = plain
	out.APIKeySet = true
	return out, nil
}

// Save stores the sandbox URL (an empty URL disables desktop features)
// and, when non-empty, the API key. Use ClearAPIKey to remove the key.
func (s *Store) Save(in Settings) error {
	if s == nil || s.kv == nil {
		return errors.New("settings store is not initialized")
	}
	if err := s.kv.Put(keySandboxURL, strings.TrimRight(strings.TrimSpace(in.SandboxURL), "/")); err != nil {
		return err
	}
	return s.SaveAPIKey(in.APIKey)
}

// SaveAPIKey stores key without touching the sandbox URL, so an
// unsaved URL keeps following the configured default. A blank key is
// a no-op.
func (s *Store) SaveAPIKey(key string) error {
	if s == nil || s.kv == nil {
		return errors.New("settings store is not initialized")
	}
	if strings.TrimSpace(key) == "" {
		return nil
	}
	enc, err := encryptAPIKey(strings.TrimSpace(key), s.key)
	if err != nil {
		return err
	}
	return s.kv.Put(keyAPIKeyEnc, enc)
}

func (s *Store) ClearAPIKey() error {
	if s == nil || s.kv == nil {
		return errors.New("settings store is not initialized")
	}
	return s.kv.Delete(keyAPIKeyEnc)
}

func loadOrCreateSecretKey(secretPath string) ([]byte, error) {
	if strings.TrimSpace(secretPath) == "" {
		return nil, errors.New("secret path is required")
	}
	if err := os.MkdirAll(filepath.Dir(secretPath), 0o755); err != nil {
		return nil, err
	}
	if b, err := os.ReadFile(secretPath); err == nil {
		if len(b) != secretKeySize {
			return nil, fmt.Errorf("invalid settings secret size: got %d", len(b))
		}
		return b, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	key := make([]byte, secretKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	if err := os.WriteFile(secretPath, key, 0o600); err != nil {
		return nil, err
	}
	return key, nil
}

func encryptAPIKey(plain string, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func decryptAPIKey(enc string, key []byte) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", err
	}
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(blob) < nonceSize {
		return "", errors.New("ciphertext too short")
	}
	plain, err := gcm.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
