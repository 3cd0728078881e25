// Package transfer moves a local file's bytes to FileBrowser once a session
// has been established.
package transfer

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethpandaops/fbupload/pkg/auth"
	"github.com/ethpandaops/fbupload/pkg/config"
	"github.com/ethpandaops/fbupload/pkg/localfile"
	"github.com/ethpandaops/fbupload/pkg/outcome"
	"github.com/ethpandaops/fbupload/pkg/response"
	"github.com/ethpandaops/fbupload/pkg/transport"
	"github.com/sirupsen/logrus"
)

// Target is where a file goes.
type Target struct {
	ServerURL string
	// RemoteDir is normalized: "" for the root, otherwise a leading slash
	// and no trailing slash.
	RemoteDir string
	File      *localfile.File
}

// Strategy uploads a file's bytes. Failures are *outcome.Error values.
type Strategy interface {
	Upload(ctx context.Context, session *auth.Session, target Target) error
	Name() string
}

// New returns the strategy selected by cfg.Strategy.
func New(
	log logrus.FieldLogger,
	exec transport.Executor,
	decoder *response.Decoder,
	cfg *config.TransferConfig,
) (Strategy, error) {
	switch cfg.Strategy {
	case config.StrategyDirect, "":
		return NewDirect(log, exec, decoder, &cfg.Direct)
	case config.StrategyResumable:
		return NewResumable(log, exec, decoder), nil
	default:
		return nil, fmt.Errorf("unsupported transfer strategy %q", cfg.Strategy)
	}
}

// exchange executes req and decodes its response. Transport and decoder
// failures are classified as kind at stage.
func exchange(
	ctx context.Context,
	exec transport.Executor,
	decoder *response.Decoder,
	req *transport.Request,
	kind outcome.Kind,
	stage outcome.Stage,
) (*response.Response, error) {
	raw, err := exec.Execute(ctx, req)
	if err != nil {
		return nil, outcome.Fail(kind, stage, "%s request failed", req.Method).Wrap(err)
	}

	resp, err := decoder.Decode(raw)
	if err != nil {
		return nil, outcome.Fail(kind, stage, "%s response could not be decoded", req.Method).Wrap(err)
	}

	return resp, nil
}

// rejected builds the failure for an unexpected status. The body is
// included, trimmed, because FileBrowser puts the reason there.
func rejected(kind outcome.Kind, stage outcome.Stage, resp *response.Response) *outcome.Error {
	detail := "server rejected the request"
	if body := strings.TrimSpace(resp.Body); body != "" {
		detail = fmt.Sprintf("%s: %s", detail, truncate(body, maxDetailBody))
	}

	return outcome.Fail(kind, stage, "%s", detail).WithStatus(resp.StatusCode)
}

const maxDetailBody = 256

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}

func authHeader(session *auth.Session) http.Header {
	h := http.Header{}
	session.Apply(h)

	return h
}
