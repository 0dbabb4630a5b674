// Package protect seals data so that only the current user can read it back.
//
// It stands in for an OS data-protection facility: a helper process started
// by the same user opens what the host process sealed. Each seal is bound to
// a caller-supplied salt that travels separately from the sealed bytes.
package protect

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOpen is returned when sealed data cannot be opened.
var ErrOpen = errors.New("cannot open sealed data")

// SaltSize is the length of salts produced by NewSalt.
const SaltSize = 16

// Protector seals and opens data for the current user.
type Protector interface {
	Seal(plaintext, salt []byte) ([]byte, error)
	Open(sealed, salt []byte) ([]byte, error)
}

// NewSalt returns a random per-invocation salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}

// New returns the protector of the given kind ("keyfile" or "age") keyed by
// the secret at path, creating the secret on first use.
func New(kind, path string) (Protector, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "keyfile":
		return NewKeyFile(path)
	case "age":
		return NewAge(path)
	}
	return nil, fmt.Errorf("unknown protector: %q", kind)
}

// loadOrCreate reads a user-private secret file, creating it with create
// when it does not exist yet.
func loadOrCreate(path string, create func() ([]byte, error)) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	data, err = create()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating key directory: %w", err)
	}

	// O_EXCL: a concurrent first run keeps whichever key was written first.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return os.ReadFile(path)
		}
		return nil, fmt.Errorf("creating key file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing key file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("writing key file: %w", err)
	}
	return data, nil
}
