package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/ethpandaops/fbupload/pkg/config"
	"github.com/ethpandaops/fbupload/pkg/localfile"
	"github.com/ethpandaops/fbupload/pkg/response"
	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

// httpExecutor executes requests with net/http.
type httpExecutor struct {
	log        logrus.FieldLogger
	client     *http.Client
	convention response.Convention
	marker     string
}

var _ Executor = (*httpExecutor)(nil)

// NewHTTP creates a net/http executor.
func NewHTTP(
	log logrus.FieldLogger,
	cfg *config.TransportConfig,
	convention response.Convention,
) Executor {
	tr := http.DefaultTransport.(*http.Transport).Clone()

	if cfg.InsecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed servers
	}

	return &httpExecutor{
		log: log.WithField("component", "http-transport"),
		client: &http.Client{
			Transport: tr,
			Timeout:   cfg.Timeout,
		},
		convention: convention,
		marker:     cfg.StatusMarker,
	}
}

// Execute sends the request and renders body and status code.
func (e *httpExecutor) Execute(ctx context.Context, req *Request) (string, error) {
	logRequest(e.log, req)

	body, contentType, length, closeBody, err := e.buildBody(req)
	if err != nil {
		return "", err
	}
	defer closeBody()

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	for name, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	httpReq.ContentLength = length

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}

	e.log.WithFields(logrus.Fields{
		"status": resp.StatusCode,
		"bytes":  len(data),
	}).Debug("Received response")

	return response.Render(e.convention, e.marker, string(data), resp.StatusCode), nil
}

// buildBody returns the request body, an overriding content type (empty to
// keep the caller's header), its length and a cleanup func.
func (e *httpExecutor) buildBody(
	req *Request,
) (io.Reader, string, int64, func(), error) {
	noop := func() {}

	switch {
	case req.File == nil && req.Body == nil:
		return http.NoBody, "", 0, noop, nil
	case req.File == nil:
		return bytes.NewReader(req.Body), "", int64(len(req.Body)), noop, nil
	}

	f, err := req.File.Open()
	if err != nil {
		return nil, "", 0, noop, err
	}

	closeFile := func() { _ = f.Close() }

	if req.FormField == "" {
		// Hide Close so the http client does not close the file twice.
		return struct{ io.Reader }{f}, "", req.File.Size, closeFile, nil
	}

	body, contentType, length, err := multipartBody(f, req.File, req.FormField)
	if err != nil {
		closeFile()

		return nil, "", 0, noop, err
	}

	return body, contentType, length, closeFile, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// multipartBody frames the file as a single form file part. Only the part
// framing is buffered; the file content is streamed.
func multipartBody(
	f io.ReadSeeker,
	file *localfile.File,
	field string,
) (io.Reader, string, int64, error) {
	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, "", 0, fmt.Errorf("detecting content type of %s: %w", file.Name, err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, "", 0, fmt.Errorf("rewinding %s: %w", file.Name, err)
	}

	var head bytes.Buffer

	mw := multipart.NewWriter(&head)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(file.Name)))
	partHeader.Set("Content-Type", mtype.String())

	if _, err := mw.CreatePart(partHeader); err != nil {
		return nil, "", 0, fmt.Errorf("creating form part: %w", err)
	}

	headBytes := append([]byte(nil), head.Bytes()...)
	head.Reset()

	if err := mw.Close(); err != nil {
		return nil, "", 0, fmt.Errorf("closing form: %w", err)
	}

	tail := head.String()

	length := int64(len(headBytes)) + file.Size + int64(len(tail))

	return io.MultiReader(bytes.NewReader(headBytes), f, bytes.NewReader([]byte(tail))),
		mw.FormDataContentType(), length, nil
}
