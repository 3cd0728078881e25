package credential

import (
	"context"
	"os"
	"strings"
)

// EnvResolver reads <PREFIX>_<ID>_USERNAME and <PREFIX>_<ID>_PASSWORD.
type EnvResolver struct {
	prefix string
	lookup func(string) (string, bool)
}

var _ Resolver = (*EnvResolver)(nil)

// NewEnvResolver returns a resolver over the process environment.
func NewEnvResolver(prefix string) *EnvResolver {
	return &EnvResolver{
		prefix: strings.TrimRight(prefix, "_"),
		lookup: os.LookupEnv,
	}
}

// Name returns the provider identifier.
func (r *EnvResolver) Name() string {
	return "env"
}

// Resolve requires the username variable; the password may be empty.
func (r *EnvResolver) Resolve(_ context.Context, id string) (*Credential, error) {
	key := r.key(id)

	username, ok := r.lookup(key + "_USERNAME")
	if !ok {
		return nil, notFound(id, "environment ("+key+"_USERNAME)")
	}

	password, _ := r.lookup(key + "_PASSWORD")

	return &Credential{Username: username, Password: password}, nil
}

func (r *EnvResolver) key(id string) string {
	id = strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", "/", "_").Replace(id))

	if r.prefix == "" {
		return id
	}

	return r.prefix + "_" + id
}
