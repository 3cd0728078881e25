// Package upload runs a single file upload to FileBrowser: validation,
// credential lookup, authentication, transfer and access URL composition.
package upload

import (
	"context"
	"errors"
	"strings"

	"github.com/ethpandaops/fbupload/pkg/auth"
	"github.com/ethpandaops/fbupload/pkg/credential"
	"github.com/ethpandaops/fbupload/pkg/fbapi"
	"github.com/ethpandaops/fbupload/pkg/localfile"
	"github.com/ethpandaops/fbupload/pkg/outcome"
	"github.com/ethpandaops/fbupload/pkg/transfer"
	"github.com/sirupsen/logrus"
)

// Request is one upload. RemoteDir defaults to the root directory.
type Request struct {
	ServerURL    string
	LocalPath    string
	RemoteDir    string
	CredentialID string
}

// Uploader orchestrates uploads. It holds no per-upload state and a session
// never outlives the Run call that created it.
type Uploader struct {
	log           logrus.FieldLogger
	resolver      credential.Resolver
	files         *localfile.FS
	authenticator auth.Authenticator
	strategy      transfer.Strategy
	observer      Observer
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithObserver replaces the default log observer.
func WithObserver(o Observer) Option {
	return func(u *Uploader) {
		u.observer = o
	}
}

// New creates an Uploader from its collaborators.
func New(
	log logrus.FieldLogger,
	resolver credential.Resolver,
	files *localfile.FS,
	authenticator auth.Authenticator,
	strategy transfer.Strategy,
	opts ...Option,
) *Uploader {
	u := &Uploader{
		log:           log.WithField("component", "uploader"),
		resolver:      resolver,
		files:         files,
		authenticator: authenticator,
		strategy:      strategy,
	}

	for _, opt := range opts {
		opt(u)
	}

	if u.observer == nil {
		u.observer = NewLogObserver(log)
	}

	return u
}

// Run performs the upload and returns its outcome. It never panics on bad
// input and performs no network access before the request is validated.
func (u *Uploader) Run(ctx context.Context, req Request) *outcome.Outcome {
	m := &machine{state: StateInit, request: req, observer: u.observer}

	if err := validate(req); err != nil {
		return m.fail(err)
	}

	cred, err := u.resolve(ctx, req.CredentialID)
	if err != nil {
		return m.fail(err)
	}

	file, err := u.stat(req.LocalPath)
	if err != nil {
		return m.fail(err)
	}

	m.file = file
	m.advance(StateValidated)

	session, err := u.authenticate(ctx, req.ServerURL, cred)
	if err != nil {
		return m.fail(err)
	}

	m.advance(StateAuthenticated)

	dir := fbapi.NormalizeDir(req.RemoteDir)

	if err := u.strategy.Upload(ctx, session, transfer.Target{
		ServerURL: req.ServerURL,
		RemoteDir: dir,
		File:      file,
	}); err != nil {
		return m.fail(classify(err, outcome.UploadFailed, outcome.StageUpload))
	}

	m.advance(StateUploaded)

	return m.done(fbapi.AccessURL(req.ServerURL, dir, file.Name))
}

// Login validates the server URL and credential and authenticates without
// transferring anything.
func (u *Uploader) Login(ctx context.Context, serverURL, credentialID string) error {
	if err := validateServer(serverURL); err != nil {
		return err
	}

	if strings.TrimSpace(credentialID) == "" {
		return outcome.Fail(outcome.InvalidArgument, outcome.StageValidate, "credential id is required")
	}

	cred, err := u.resolve(ctx, credentialID)
	if err != nil {
		return err
	}

	if _, err := u.authenticate(ctx, serverURL, cred); err != nil {
		return err
	}

	u.log.WithFields(logrus.Fields{
		"server":   serverURL,
		"username": cred.Username,
	}).Info("Login succeeded")

	return nil
}

// Strategy returns the configured transfer strategy name.
func (u *Uploader) Strategy() string {
	return u.strategy.Name()
}

func validateServer(serverURL string) *outcome.Error {
	if !fbapi.ValidServerURL(serverURL) {
		return outcome.Fail(outcome.InvalidArgument, outcome.StageValidate,
			"server url %q must start with http:// or https://", serverURL)
	}

	return nil
}

func validate(req Request) *outcome.Error {
	if err := validateServer(req.ServerURL); err != nil {
		return err
	}

	if strings.TrimSpace(req.LocalPath) == "" {
		return outcome.Fail(outcome.InvalidArgument, outcome.StageValidate, "local path is required")
	}

	if strings.TrimSpace(req.CredentialID) == "" {
		return outcome.Fail(outcome.InvalidArgument, outcome.StageValidate, "credential id is required")
	}

	return nil
}

func (u *Uploader) resolve(ctx context.Context, id string) (*credential.Credential, *outcome.Error) {
	cred, err := u.resolver.Resolve(ctx, id)
	if err != nil {
		detail := "credential lookup failed"
		if errors.Is(err, credential.ErrNotFound) {
			detail = "no credential for id"
		}

		return nil, outcome.Fail(outcome.CredentialNotFound, outcome.StageCredential,
			"%s %q in %s", detail, id, u.resolver.Name()).Wrap(err)
	}

	if cred == nil || cred.Username == "" {
		return nil, outcome.Fail(outcome.InvalidArgument, outcome.StageCredential,
			"credential %q has an empty username", id)
	}

	return cred, nil
}

func (u *Uploader) stat(path string) (*localfile.File, *outcome.Error) {
	file, err := u.files.Stat(path)
	if err != nil {
		return nil, outcome.Fail(outcome.LocalFileNotFound, outcome.StageLocalFile,
			"local file %q is not a readable regular file", path).Wrap(err)
	}

	return file, nil
}

func (u *Uploader) authenticate(
	ctx context.Context,
	serverURL string,
	cred *credential.Credential,
) (*auth.Session, *outcome.Error) {
	session, err := u.authenticator.Authenticate(ctx, serverURL, cred)
	if err != nil {
		return nil, classify(err, outcome.AuthenticationFailed, outcome.StageLogin)
	}

	return session, nil
}

// classify returns err unchanged when it is already classified.
func classify(err error, kind outcome.Kind, stage outcome.Stage) *outcome.Error {
	if e, ok := outcome.As(err); ok {
		return e
	}

	return outcome.Fail(kind, stage, "unclassified failure").Wrap(err)
}
