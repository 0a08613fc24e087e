package secrets

import "context"

// Provider defines a generic secrets manager interface.
// Concrete implementations (AWS, env-based, etc.) satisfy this.
type Provider interface {
	// GetSecret retrieves a secret by name and returns a key-value map.
	GetSecret(ctx context.Context, name string) (map[string]string, error)
}
