package transfer

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ethpandaops/fbupload/pkg/auth"
	"github.com/ethpandaops/fbupload/pkg/config"
	"github.com/ethpandaops/fbupload/pkg/fbapi"
	"github.com/ethpandaops/fbupload/pkg/outcome"
	"github.com/ethpandaops/fbupload/pkg/response"
	"github.com/ethpandaops/fbupload/pkg/transport"
	"github.com/sirupsen/logrus"
)

// Resumable uploads through the tus endpoint: a create request declaring
// the length, then one patch carrying the whole file from offset 0.
//
// A failed patch leaves the created upload behind on the server.
type Resumable struct {
	log     logrus.FieldLogger
	exec    transport.Executor
	decoder *response.Decoder
}

var _ Strategy = (*Resumable)(nil)

// NewResumable creates a resumable strategy.
func NewResumable(
	log logrus.FieldLogger,
	exec transport.Executor,
	decoder *response.Decoder,
) *Resumable {
	return &Resumable{
		log:     log.WithField("component", "resumable-transfer"),
		exec:    exec,
		decoder: decoder,
	}
}

// Name implements Strategy.
func (r *Resumable) Name() string {
	return config.StrategyResumable
}

// Upload runs create then patch. Patch is skipped when create fails.
func (r *Resumable) Upload(ctx context.Context, session *auth.Session, target Target) error {
	url := fbapi.TusURL(target.ServerURL, target.File.Name)

	if err := r.create(ctx, session, url, target); err != nil {
		return err
	}

	return r.patch(ctx, session, url, target)
}

func (r *Resumable) create(ctx context.Context, session *auth.Session, url string, target Target) error {
	h := authHeader(session)
	h.Set(fbapi.HeaderUploadLength, strconv.FormatInt(target.File.Size, 10))
	h.Set(fbapi.HeaderTusResumable, fbapi.TusVersion)

	r.log.WithFields(logrus.Fields{
		"file": target.File.Name,
		"size": target.File.Size,
	}).Debug("Creating upload")

	resp, err := exchange(ctx, r.exec, r.decoder, &transport.Request{
		Method: http.MethodPost,
		URL:    url,
		Header: h,
	}, outcome.CreateFailed, outcome.StageCreate)
	if err != nil {
		return err
	}

	if !resp.Is("200", "201") {
		return rejected(outcome.CreateFailed, outcome.StageCreate, resp)
	}

	return nil
}

func (r *Resumable) patch(ctx context.Context, session *auth.Session, url string, target Target) error {
	h := authHeader(session)
	h.Set(fbapi.HeaderUploadOffset, "0")
	h.Set("Content-Type", fbapi.OffsetStreamContentType)
	h.Set(fbapi.HeaderTusResumable, fbapi.TusVersion)

	r.log.WithField("file", target.File.Name).Debug("Sending upload content")

	resp, err := exchange(ctx, r.exec, r.decoder, &transport.Request{
		Method: http.MethodPatch,
		URL:    url,
		Header: h,
		File:   target.File,
	}, outcome.ContentUploadFailed, outcome.StagePatch)
	if err != nil {
		return err
	}

	if !resp.Is("200", "204") {
		return rejected(outcome.ContentUploadFailed, outcome.StagePatch, resp)
	}

	return nil
}
