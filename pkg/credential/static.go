package credential

import (
	"context"
)

// Static serves credentials from memory.
type Static struct {
	creds map[string]Credential
}

var _ Resolver = (*Static)(nil)

// NewStatic returns a resolver over creds. A nil map resolves nothing.
func NewStatic(creds map[string]Credential) *Static {
	if creds == nil {
		creds = make(map[string]Credential)
	}

	return &Static{creds: creds}
}

// Name returns the provider identifier.
func (s *Static) Name() string {
	return "static"
}

// Resolve returns a copy of the stored credential.
func (s *Static) Resolve(_ context.Context, id string) (*Credential, error) {
	c, ok := s.creds[id]
	if !ok {
		return nil, notFound(id, s.Name())
	}

	return &c, nil
}
