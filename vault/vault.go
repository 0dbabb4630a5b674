// Package vault defines the boundary to password vaults.
//
// Information Hiding:
// - Vault protocol details hidden behind the Vault interface
// - Session lifecycle (unlock, lock, sync) kept optional via Session
// - Record-id syntax owned by each vault through ParseID
package vault

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/richinex/vaultbridge/model"
)

// Vault fetches records by id.
type Vault interface {
	// Name returns a short identifier for logs ("local", "bitwarden").
	Name() string

	// ParseID reports whether s is a record id for this vault and returns
	// its canonical form.
	ParseID(s string) (string, bool)

	// GetItem returns the record, or nil with no error when it does not exist.
	GetItem(ctx context.Context, id string, includeTOTP bool) (*model.Record, error)
}

// Status describes a vault session.
type Status struct {
	State     string `json:"status"`
	UserEmail string `json:"userEmail,omitempty"`
	ServerURL string `json:"serverUrl,omitempty"`
	LastSync  string `json:"lastSync,omitempty"`
}

// Unlocked reports whether records can be read.
func (s Status) Unlocked() bool {
	return strings.EqualFold(s.State, "unlocked")
}

// Session is implemented by vaults with a login lifecycle.
type Session interface {
	Status(ctx context.Context) (Status, error)
	Login(ctx context.Context, password string) error
	Logout(ctx context.Context) error
	Sync(ctx context.Context) error
	UpdateURIs(ctx context.Context, id string, uris []string) error
}

// ParseUUID accepts GUID record ids in any of the forms google/uuid
// understands and returns the lowercase hyphenated form.
func ParseUUID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return id.String(), true
}
