package protect

import (
	"bytes"
	"crypto/subtle"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
)

// Age seals to the user's own X25519 identity with filippo.io/age.
// The salt is prefixed to the plaintext inside the envelope and checked on
// open.
type Age struct {
	identity *age.X25519Identity
}

// NewAge loads the identity at path, generating one if needed.
func NewAge(path string) (*Age, error) {
	data, err := loadOrCreate(path, func() ([]byte, error) {
		identity, err := age.GenerateX25519Identity()
		if err != nil {
			return nil, fmt.Errorf("generating age identity: %w", err)
		}
		return []byte(identity.String() + "\n"), nil
	})
	if err != nil {
		return nil, err
	}

	identity, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing age identity %s: %w", path, err)
	}
	return &Age{identity: identity}, nil
}

// Recipient returns the public key sealed data is encrypted to.
func (a *Age) Recipient() string {
	return a.identity.Recipient().String()
}

// Seal encrypts salt || plaintext to the identity's recipient.
func (a *Age) Seal(plaintext, salt []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, a.identity.Recipient())
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := w.Write(salt); err != nil {
		return nil, fmt.Errorf("writing to age encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing to age encryptor: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	return buf.Bytes(), nil
}

// Open decrypts and verifies the salt.
func (a *Age) Open(sealed, salt []byte) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(sealed), a.identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	if len(data) < len(salt) || subtle.ConstantTimeCompare(data[:len(salt)], salt) != 1 {
		return nil, fmt.Errorf("%w: salt mismatch", ErrOpen)
	}
	return data[len(salt):], nil
}
