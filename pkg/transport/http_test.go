package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethpandaops/fbupload/pkg/config"
	"github.com/ethpandaops/fbupload/pkg/localfile"
	"github.com/ethpandaops/fbupload/pkg/response"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTransportConfig() *config.TransportConfig {
	return &config.TransportConfig{
		Kind:             config.TransportHTTP,
		Timeout:          10 * time.Second,
		StatusConvention: "marker",
		StatusMarker:     response.DefaultMarker,
	}
}

func memFile(t *testing.T, path, content string) *localfile.File {
	t.Helper()

	mem := memfs.New()
	require.NoError(t, util.WriteFile(mem, path, []byte(content), 0o644))

	f, err := localfile.New(mem).Stat(path)
	require.NoError(t, err)

	return f
}

type captured struct {
	method        string
	path          string
	query         string
	header        http.Header
	body          []byte
	contentLength int64
	formName      string
	formContent   string
	formType      string
}

func captureServer(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()

	c := &captured{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.method = r.Method
		c.path = r.URL.Path
		c.query = r.URL.RawQuery
		c.header = r.Header.Clone()

		c.contentLength = r.ContentLength

		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			file, hdr, err := r.FormFile("file")
			if err == nil {
				data, _ := io.ReadAll(file)
				c.formName = hdr.Filename
				c.formContent = string(data)
				c.formType = hdr.Header.Get("Content-Type")
			}
		} else {
			c.body, _ = io.ReadAll(r.Body)
		}

		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)

	return srv, c
}

func TestHTTPExecutor_InMemoryBody(t *testing.T) {
	srv, c := captureServer(t, http.StatusOK, "token-value")

	exec := NewHTTP(logrus.New(), testTransportConfig(), response.ConventionMarker)

	raw, err := exec.Execute(context.Background(), &Request{
		Method: http.MethodPost,
		URL:    srv.URL + "/api/login",
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   []byte(`{"username":"u","password":"p"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "token-value\nHTTP_STATUS:200", raw)

	assert.Equal(t, http.MethodPost, c.method)
	assert.Equal(t, "/api/login", c.path)
	assert.Equal(t, "application/json", c.header.Get("Content-Type"))
	assert.JSONEq(t, `{"username":"u","password":"p"}`, string(c.body))
}

func TestHTTPExecutor_FileBody(t *testing.T) {
	srv, c := captureServer(t, http.StatusNoContent, "")

	exec := NewHTTP(logrus.New(), testTransportConfig(), response.ConventionTrailing)

	raw, err := exec.Execute(context.Background(), &Request{
		Method: http.MethodPatch,
		URL:    srv.URL + "/api/tus/a.txt",
		Header: http.Header{
			"Upload-Offset": {"0"},
			"Content-Type":  {"application/offset+octet-stream"},
		},
		File: memFile(t, "/src/a.txt", "hello world"),
	})
	require.NoError(t, err)
	assert.Equal(t, "204", raw)

	assert.Equal(t, http.MethodPatch, c.method)
	assert.Equal(t, "0", c.header.Get("Upload-Offset"))
	assert.Equal(t, int64(11), c.contentLength)
	assert.Equal(t, "hello world", string(c.body))
}

func TestHTTPExecutor_Multipart(t *testing.T) {
	srv, c := captureServer(t, http.StatusCreated, "")

	exec := NewHTTP(logrus.New(), testTransportConfig(), response.ConventionMarker)

	raw, err := exec.Execute(context.Background(), &Request{
		Method:    http.MethodPost,
		URL:       srv.URL + "/api/resources/report.txt?override=true",
		Header:    http.Header{"X-Auth": {"tok"}},
		File:      memFile(t, "/src/report.txt", "plain text content\n"),
		FormField: "file",
	})
	require.NoError(t, err)
	assert.Equal(t, "\nHTTP_STATUS:201", raw)

	assert.Equal(t, "override=true", c.query)
	assert.Equal(t, "tok", c.header.Get("X-Auth"))
	assert.Equal(t, "report.txt", c.formName)
	assert.Equal(t, "plain text content\n", c.formContent)
	assert.Contains(t, c.formType, "text/plain")
}

func TestHTTPExecutor_OSFile(t *testing.T) {
	srv, c := captureServer(t, http.StatusOK, "")

	path := filepath.Join(t.TempDir(), "blob.bin")
	require.NoError(t, os.WriteFile(path, []byte{0, 1, 2, 3}, 0o644))

	f, err := localfile.NewOS().Stat(path)
	require.NoError(t, err)

	exec := NewHTTP(logrus.New(), testTransportConfig(), response.ConventionMarker)

	_, err = exec.Execute(context.Background(), &Request{
		Method: http.MethodPut,
		URL:    srv.URL + "/api/resources/blob.bin?override=true",
		File:   f,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3}, c.body)
}

func TestHTTPExecutor_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	exec := NewHTTP(logrus.New(), testTransportConfig(), response.ConventionMarker)

	_, err := exec.Execute(context.Background(), &Request{
		Method: http.MethodGet,
		URL:    url,
	})
	require.Error(t, err)
}

func TestNew(t *testing.T) {
	cfg := testTransportConfig()

	e, err := New(logrus.New(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &httpExecutor{}, e)

	cfg.Kind = config.TransportCurl

	e, err = New(logrus.New(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &curlExecutor{}, e)

	cfg.Kind = "wget"

	_, err = New(logrus.New(), cfg)
	assert.Error(t, err)

	cfg.Kind = config.TransportHTTP
	cfg.StatusConvention = "regex"

	_, err = New(logrus.New(), cfg)
	assert.Error(t, err)
}

func TestNewDecoder(t *testing.T) {
	tests := []struct {
		name      string
		kind      string
		verbose   bool
		wantStrip bool
	}{
		{name: "http", kind: config.TransportHTTP},
		{name: "http verbose", kind: config.TransportHTTP, verbose: true},
		{name: "curl", kind: config.TransportCurl},
		{name: "curl verbose", kind: config.TransportCurl, verbose: true, wantStrip: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testTransportConfig()
			cfg.Kind = tt.kind
			cfg.Verbose = tt.verbose

			d, err := NewDecoder(cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStrip, d.StripTrace)
			assert.Equal(t, response.ConventionMarker, d.Convention)
		})
	}

	cfg := testTransportConfig()
	cfg.StatusConvention = "regex"

	_, err := NewDecoder(cfg)
	assert.Error(t, err)
}

func TestHTTPExecutor_BodyLinesSurviveDecoding(t *testing.T) {
	body := "* not a trace, a real body line\n> quoted\n{ \"token\": \"abc\" }"

	srv, _ := captureServer(t, http.StatusOK, body)

	cfg := testTransportConfig()

	raw, err := NewHTTP(logrus.New(), cfg, response.ConventionMarker).Execute(context.Background(), &Request{
		Method: http.MethodGet,
		URL:    srv.URL,
	})
	require.NoError(t, err)

	d, err := NewDecoder(cfg)
	require.NoError(t, err)

	resp, err := d.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "200", resp.StatusCode)
	assert.Equal(t, body, resp.Body)
}
