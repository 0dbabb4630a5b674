// Package trigger recognizes record links and lists the actions of a record.
package trigger

import (
	"strings"

	"github.com/richinex/vaultbridge/vault"
)

// Link is a parsed "<scheme>:<record id>" trigger.
type Link struct {
	Scheme   string
	Vault    vault.Vault
	RecordID string
}

// String returns the trigger text.
func (l Link) String() string {
	return URI(l.Scheme, l.RecordID)
}

// URI formats a trigger for a record.
func URI(scheme, recordID string) string {
	return strings.ToLower(scheme) + ":" + recordID
}

// ParseURI recognizes text of the form "<scheme>:<id>" (an optional "//"
// after the colon is accepted) where scheme is registered in vaults and id
// is a record id of that vault.
func ParseURI(text string, vaults *vault.Registry) (Link, bool) {
	text = strings.TrimSpace(text)
	scheme, rest, ok := strings.Cut(text, ":")
	if !ok || scheme == "" {
		return Link{}, false
	}
	v, ok := vaults.Get(scheme)
	if !ok {
		return Link{}, false
	}
	rest = strings.TrimSuffix(strings.TrimPrefix(rest, "//"), "/")
	id, ok := v.ParseID(rest)
	if !ok {
		return Link{}, false
	}
	return Link{Scheme: strings.ToLower(scheme), Vault: v, RecordID: id}, true
}
