// Package transport executes HTTP requests for the uploader and returns the
// raw response text: the body followed by the status code in the format the
// response decoder is configured for.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/ethpandaops/fbupload/pkg/config"
	"github.com/ethpandaops/fbupload/pkg/localfile"
	"github.com/ethpandaops/fbupload/pkg/response"
	"github.com/sirupsen/logrus"
)

// Request is a single HTTP exchange. At most one of Body and File is set.
//
// With the curl executor an in-memory Body is passed on stdin and the
// headers on the command line, otherwise the headers are passed on stdin.
// Requests carrying secret headers must therefore not use Body.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
	File   *localfile.File
	// FormField sends File as a multipart form file under this field name.
	FormField string
}

// Executor performs a request and returns the raw response text. A returned
// error means no HTTP response was obtained.
type Executor interface {
	Execute(ctx context.Context, req *Request) (string, error)
}

// New builds the executor selected by cfg.Kind.
func New(log logrus.FieldLogger, cfg *config.TransportConfig) (Executor, error) {
	convention, err := response.ParseConvention(cfg.StatusConvention)
	if err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case config.TransportHTTP, "":
		return NewHTTP(log, cfg, convention), nil
	case config.TransportCurl:
		return NewCurl(log, cfg, convention, nil), nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Kind)
	}
}

// NewDecoder returns the response decoder matching the output of the
// executor cfg selects. Only verbose curl interleaves a trace with the body.
func NewDecoder(cfg *config.TransportConfig) (*response.Decoder, error) {
	convention, err := response.ParseConvention(cfg.StatusConvention)
	if err != nil {
		return nil, err
	}

	decoder := response.NewDecoder(convention)
	if cfg.StatusMarker != "" {
		decoder.Marker = cfg.StatusMarker
	}

	decoder.StripTrace = cfg.Kind == config.TransportCurl && cfg.Verbose

	return decoder, nil
}

// headerNames lists header names only, for logging.
func headerNames(h http.Header) []string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func logRequest(log logrus.FieldLogger, req *Request) {
	fields := logrus.Fields{
		"method":  req.Method,
		"url":     req.URL,
		"headers": headerNames(req.Header),
	}

	if req.File != nil {
		fields["file"] = req.File.Name
	}

	log.WithFields(fields).Debug("Executing request")
}
