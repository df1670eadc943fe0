package security

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

const (
	keyIterations = 4096
	defaultSalt   = "canopus-command-history"
)

var ErrEncryptionDisabled = errors.New("history encryption is not configured")

// Manager decides which commands need confirmation and protects stored history.
type Manager struct {
	keywords []string
	aead     cipher.AEAD
}

type Config struct {
	SensitiveKeywords []string
	// Passphrase enables Seal and Open. Empty disables encryption.
	Passphrase string
	Salt       string
}

func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	m := &Manager{}

	for _, keyword := range cfg.SensitiveKeywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword != "" {
			m.keywords = append(m.keywords, keyword)
		}
	}

	if cfg.Passphrase != "" {
		salt := cfg.Salt
		if salt == "" {
			salt = defaultSalt
		}

		key := pbkdf2.Key([]byte(cfg.Passphrase), []byte(salt), keyIterations, chacha20poly1305.KeySize, sha256.New)

		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("init cipher: %w", err)
		}

		m.aead = aead
	}

	return m, nil
}

// IsSensitive reports whether text contains any configured sensitive keyword.
func (m *Manager) IsSensitive(text string) bool {
	text = strings.ToLower(text)

	for _, keyword := range m.keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}

	return false
}

func (m *Manager) EncryptionEnabled() bool {
	return m.aead != nil
}

// Seal encrypts plaintext; the random nonce is prepended to the result.
func (m *Manager) Seal(plaintext []byte) ([]byte, error) {
	if m.aead == nil {
		return nil, ErrEncryptionDisabled
	}

	nonce := make([]byte, m.aead.NonceSize(), m.aead.NonceSize()+len(plaintext)+m.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return m.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (m *Manager) Open(sealed []byte) ([]byte, error) {
	if m.aead == nil {
		return nil, ErrEncryptionDisabled
	}

	if len(sealed) < m.aead.NonceSize() {
		return nil, fmt.Errorf("sealed data too short")
	}

	nonce, ciphertext := sealed[:m.aead.NonceSize()], sealed[m.aead.NonceSize():]

	plaintext, err := m.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}

	return plaintext, nil
}
