package credential

import (
	"context"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// fileDocument is the YAML layout of a credentials file:
//
//	credentials:
//	  filebrowser-prod:
//	    username: deploy
//	    password: s3cret
type fileDocument struct {
	Credentials map[string]map[string]any `yaml:"credentials"`
}

// FileResolver reads credentials from a YAML file on every call so that
// secrets are not held between uploads.
type FileResolver struct {
	log  logrus.FieldLogger
	path string
}

var _ Resolver = (*FileResolver)(nil)

// NewFileResolver returns a resolver for the YAML document at path.
func NewFileResolver(log logrus.FieldLogger, path string) *FileResolver {
	return &FileResolver{
		log:  log.WithField("component", "credential-file"),
		path: path,
	}
}

// Name returns the provider identifier.
func (r *FileResolver) Name() string {
	return "file"
}

// Resolve loads the document and decodes the entry for id.
func (r *FileResolver) Resolve(_ context.Context, id string) (*Credential, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing credentials file: %w", err)
	}

	entry, ok := doc.Credentials[id]
	if !ok {
		return nil, notFound(id, r.path)
	}

	var cred Credential

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cred,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	if err := decoder.Decode(entry); err != nil {
		return nil, fmt.Errorf("decoding credential %q: %w", id, err)
	}

	r.log.WithField("id", id).Debug("Resolved credential from file")

	return &cred, nil
}
