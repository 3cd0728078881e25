package upload

import (
	"context"
	"fmt"

	"github.com/ethpandaops/fbupload/pkg/auth"
	"github.com/ethpandaops/fbupload/pkg/config"
	"github.com/ethpandaops/fbupload/pkg/credential"
	"github.com/ethpandaops/fbupload/pkg/localfile"
	"github.com/ethpandaops/fbupload/pkg/transfer"
	"github.com/ethpandaops/fbupload/pkg/transport"
	"github.com/sirupsen/logrus"
)

// NewFromConfig wires an Uploader for the local file system from cfg. ctx
// bounds loading the credential store's own configuration.
func NewFromConfig(
	ctx context.Context,
	log logrus.FieldLogger,
	cfg *config.Config,
	opts ...Option,
) (*Uploader, error) {
	resolver, err := credential.NewResolver(ctx, log, &cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("creating credential resolver: %w", err)
	}

	return NewWithResolver(log, cfg, resolver, localfile.NewOS(), opts...)
}

// NewWithResolver wires an Uploader from cfg around the given credential
// resolver and file system.
func NewWithResolver(
	log logrus.FieldLogger,
	cfg *config.Config,
	resolver credential.Resolver,
	files *localfile.FS,
	opts ...Option,
) (*Uploader, error) {
	exec, err := transport.New(log, &cfg.Transport)
	if err != nil {
		return nil, fmt.Errorf("creating transport: %w", err)
	}

	decoder, err := transport.NewDecoder(&cfg.Transport)
	if err != nil {
		return nil, err
	}

	strategy, err := transfer.New(log, exec, decoder, &cfg.Transfer)
	if err != nil {
		return nil, fmt.Errorf("creating transfer strategy: %w", err)
	}

	return New(
		log,
		resolver,
		files,
		auth.New(log, exec, decoder, &cfg.Server),
		strategy,
		opts...,
	), nil
}
