// Package credential resolves a credential identifier to a username and
// password pair from a configured secret store.
package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethpandaops/fbupload/pkg/config"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when the store has no credential for an id.
var ErrNotFound = errors.New("credential not found")

// Credential is a FileBrowser login. It is resolved per upload and never
// persisted.
type Credential struct {
	Username string `mapstructure:"username" yaml:"username" json:"username"`
	Password string `mapstructure:"password" yaml:"password" json:"password"`
}

// String renders the credential without its password.
func (c Credential) String() string {
	return fmt.Sprintf("%s:[REDACTED]", c.Username)
}

// GoString keeps %#v from printing the password.
func (c Credential) GoString() string {
	return c.String()
}

// Resolver looks up credentials by id.
type Resolver interface {
	// Resolve returns the credential for id or an error wrapping ErrNotFound.
	Resolve(ctx context.Context, id string) (*Credential, error)

	// Name identifies the backing store in logs.
	Name() string
}

// NewResolver builds the resolver selected by cfg.Provider. Use NewStatic
// directly for in-memory credentials.
func NewResolver(
	ctx context.Context,
	log logrus.FieldLogger,
	cfg *config.CredentialsConfig,
) (Resolver, error) {
	switch cfg.Provider {
	case config.ProviderFile:
		return NewFileResolver(log, cfg.File.Path), nil
	case config.ProviderEnv:
		return NewEnvResolver(cfg.Env.Prefix), nil
	case config.ProviderAWS:
		return NewSecretsManagerResolver(ctx, log, &cfg.AWS)
	default:
		return nil, fmt.Errorf("unsupported credential provider %q", cfg.Provider)
	}
}

func notFound(id, store string) error {
	return fmt.Errorf("%w: %q in %s", ErrNotFound, id, store)
}
