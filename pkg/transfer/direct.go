package transfer

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethpandaops/fbupload/pkg/auth"
	"github.com/ethpandaops/fbupload/pkg/config"
	"github.com/ethpandaops/fbupload/pkg/fbapi"
	"github.com/ethpandaops/fbupload/pkg/outcome"
	"github.com/ethpandaops/fbupload/pkg/response"
	"github.com/ethpandaops/fbupload/pkg/transport"
	"github.com/sirupsen/logrus"
)

// Direct uploads the whole file in a single request to the resources API.
type Direct struct {
	log       logrus.FieldLogger
	exec      transport.Executor
	decoder   *response.Decoder
	method    string
	encoding  string
	formField string
}

var _ Strategy = (*Direct)(nil)

// NewDirect creates a direct strategy.
func NewDirect(
	log logrus.FieldLogger,
	exec transport.Executor,
	decoder *response.Decoder,
	cfg *config.DirectTransferConfig,
) (*Direct, error) {
	method := strings.ToUpper(cfg.Method)
	switch method {
	case "":
		method = http.MethodPost
	case http.MethodPost, http.MethodPut:
	default:
		return nil, fmt.Errorf("unsupported direct upload method %q", cfg.Method)
	}

	d := &Direct{
		log:      log.WithField("component", "direct-transfer"),
		exec:     exec,
		decoder:  decoder,
		method:   method,
		encoding: cfg.Encoding,
	}

	switch cfg.Encoding {
	case config.EncodingBinary, "":
		d.encoding = config.EncodingBinary
	case config.EncodingMultipart:
		d.formField = cfg.MultipartField
		if d.formField == "" {
			d.formField = config.DefaultMultipartField
		}
	default:
		return nil, fmt.Errorf("unsupported direct upload encoding %q", cfg.Encoding)
	}

	return d, nil
}

// Name implements Strategy.
func (d *Direct) Name() string {
	return config.StrategyDirect
}

// Upload sends the file to /api/resources with override=true.
func (d *Direct) Upload(ctx context.Context, session *auth.Session, target Target) error {
	req := &transport.Request{
		Method: d.method,
		URL:    fbapi.ResourceURL(target.ServerURL, target.RemoteDir, target.File.Name),
		Header: authHeader(session),
		File:   target.File,
	}

	if d.formField != "" {
		req.FormField = d.formField
	} else {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	d.log.WithFields(logrus.Fields{
		"method":   d.method,
		"encoding": d.encoding,
		"file":     target.File.Name,
	}).Debug("Uploading file")

	resp, err := exchange(ctx, d.exec, d.decoder, req, outcome.UploadFailed, outcome.StageUpload)
	if err != nil {
		return err
	}

	if !resp.Is("200", "201", "204") {
		return rejected(outcome.UploadFailed, outcome.StageUpload, resp)
	}

	return nil
}
