// Package auth exchanges a FileBrowser username and password for a session
// token and attaches that token to subsequent requests.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethpandaops/fbupload/pkg/config"
	"github.com/ethpandaops/fbupload/pkg/credential"
	"github.com/ethpandaops/fbupload/pkg/fbapi"
	"github.com/ethpandaops/fbupload/pkg/outcome"
	"github.com/ethpandaops/fbupload/pkg/response"
	"github.com/ethpandaops/fbupload/pkg/transport"
	"github.com/sirupsen/logrus"
)

// Authenticator obtains a session for a credential.
type Authenticator interface {
	Authenticate(ctx context.Context, serverURL string, cred *credential.Credential) (*Session, error)
}

// HeaderConvention describes how the token is presented: the header name
// and an optional scheme such as "Bearer".
type HeaderConvention struct {
	Name   string
	Scheme string
}

// Session holds the token for one upload. It is never cached and never
// rendered by fmt.
type Session struct {
	token      string
	convention HeaderConvention
}

// NewSession builds a session around an existing token.
func NewSession(token string, convention HeaderConvention) *Session {
	if convention.Name == "" {
		convention.Name = config.DefaultAuthHeader
	}

	return &Session{token: token, convention: convention}
}

// Apply sets the auth header on h.
func (s *Session) Apply(h http.Header) {
	value := s.token
	if s.convention.Scheme != "" {
		value = s.convention.Scheme + " " + s.token
	}

	h.Set(s.convention.Name, value)
}

// HeaderName is the header the token is sent in.
func (s *Session) HeaderName() string {
	return s.convention.Name
}

// Token returns the raw token.
func (s *Session) Token() string {
	return s.token
}

func (s *Session) String() string {
	return "[REDACTED]"
}

// GoString keeps %#v from printing the token.
func (s *Session) GoString() string {
	return s.String()
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenEnvelope struct {
	Token string `json:"token"`
}

// loginAuthenticator implements Authenticator against /api/login.
type loginAuthenticator struct {
	log         logrus.FieldLogger
	exec        transport.Executor
	decoder     *response.Decoder
	tokenFormat string
	convention  HeaderConvention
}

var _ Authenticator = (*loginAuthenticator)(nil)

// New creates an Authenticator for the server flavor in cfg.
func New(
	log logrus.FieldLogger,
	exec transport.Executor,
	decoder *response.Decoder,
	cfg *config.ServerConfig,
) Authenticator {
	return &loginAuthenticator{
		log:         log.WithField("component", "auth"),
		exec:        exec,
		decoder:     decoder,
		tokenFormat: cfg.TokenFormat,
		convention: HeaderConvention{
			Name:   cfg.AuthHeader,
			Scheme: cfg.AuthScheme,
		},
	}
}

// Authenticate logs in and returns the session. Every failure is an
// *outcome.Error of kind AuthenticationFailed.
func (a *loginAuthenticator) Authenticate(
	ctx context.Context,
	serverURL string,
	cred *credential.Credential,
) (*Session, error) {
	payload, err := json.Marshal(loginRequest{
		Username: cred.Username,
		Password: cred.Password,
	})
	if err != nil {
		return nil, failed("encoding login request").Wrap(err)
	}

	a.log.WithField("username", cred.Username).Debug("Logging in")

	raw, err := a.exec.Execute(ctx, &transport.Request{
		Method: http.MethodPost,
		URL:    fbapi.LoginURL(serverURL),
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   payload,
	})
	if err != nil {
		return nil, failed("login request failed").Wrap(err)
	}

	resp, err := a.decoder.Decode(raw)
	if err != nil {
		return nil, failed("login response could not be decoded").Wrap(err)
	}

	if resp.StatusCode != "200" {
		return nil, failed(fmt.Sprintf("login rejected for user %q", cred.Username)).
			WithStatus(resp.StatusCode)
	}

	token, err := a.extractToken(resp.Body)
	if err != nil {
		return nil, failed(err.Error()).WithStatus(resp.StatusCode)
	}

	return NewSession(token, a.convention), nil
}

func (a *loginAuthenticator) extractToken(body string) (string, error) {
	var token string

	switch a.tokenFormat {
	case config.TokenFormatJSON:
		var env tokenEnvelope
		if err := json.Unmarshal([]byte(body), &env); err != nil {
			// The body is not echoed: it may hold the token.
			return "", fmt.Errorf("login response is not a JSON token object")
		}

		token = strings.TrimSpace(env.Token)
	default:
		token = strings.TrimSpace(body)
	}

	if token == "" {
		return "", fmt.Errorf("login response carried no token")
	}

	return token, nil
}

func failed(detail string) *outcome.Error {
	return outcome.Fail(outcome.AuthenticationFailed, outcome.StageLogin, "%s", detail)
}
