package vault

import (
	"fmt"
	"strings"
)

// Registry maps trigger URI schemes to vaults.
// Entries keep registration order; scheme lookup is case-insensitive.
type Registry struct {
	schemes []string
	vaults  map[string]Vault
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{vaults: make(map[string]Vault)}
}

// Register binds a URI scheme to a vault.
// Returns error if the scheme is empty or already registered.
func (r *Registry) Register(scheme string, v Vault) error {
	key := strings.ToLower(strings.TrimSpace(scheme))
	if key == "" {
		return fmt.Errorf("vault scheme cannot be empty")
	}
	if _, exists := r.vaults[key]; exists {
		return fmt.Errorf("vault scheme '%s' already registered", scheme)
	}
	r.schemes = append(r.schemes, key)
	r.vaults[key] = v
	return nil
}

// Get returns the vault bound to scheme.
func (r *Registry) Get(scheme string) (Vault, bool) {
	v, ok := r.vaults[strings.ToLower(scheme)]
	return v, ok
}

// Schemes returns registered schemes in registration order.
func (r *Registry) Schemes() []string {
	out := make([]string, len(r.schemes))
	copy(out, r.schemes)
	return out
}
