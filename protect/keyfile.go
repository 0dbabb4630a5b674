package protect

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const keyInfo = "vaultbridge helper payload v1"

// KeyFile derives a per-seal key from a user-private master key and the salt
// (HKDF-SHA256) and seals with XChaCha20-Poly1305. The salt is also bound as
// associated data.
type KeyFile struct {
	master []byte
}

// NewKeyFile loads the master key at path, creating a random one if needed.
func NewKeyFile(path string) (*KeyFile, error) {
	master, err := loadOrCreate(path, func() ([]byte, error) {
		key := make([]byte, chacha20poly1305.KeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating master key: %w", err)
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	if len(master) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("key file %s: expected %d bytes, got %d", path, chacha20poly1305.KeySize, len(master))
	}
	return &KeyFile{master: master}, nil
}

func (k *KeyFile) derive(salt []byte) ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, k.master, salt, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext; the output is nonce || ciphertext.
func (k *KeyFile) Seal(plaintext, salt []byte) ([]byte, error) {
	key, err := k.derive(salt)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, salt), nil
}

// Open decrypts data produced by Seal with the same salt.
func (k *KeyFile) Open(sealed, salt []byte) ([]byte, error) {
	key, err := k.derive(salt)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("%w: too short", ErrOpen)
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, salt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	return plaintext, nil
}
