package response

import (
	"testing"

	"github.com/ethpandaops/fbupload/pkg/outcome"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoder_Decode(t *testing.T) {
	tests := []struct {
		name       string
		convention Convention
		raw        string
		wantCode   string
		wantBody   string
	}{
		{
			name:       "marker with json body",
			convention: ConventionMarker,
			raw:        "{\"token\":\"abc\"}\nHTTP_STATUS:200",
			wantCode:   "200",
			wantBody:   `{"token":"abc"}`,
		},
		{
			name:       "marker with empty body",
			convention: ConventionMarker,
			raw:        "\nHTTP_STATUS:204",
			wantCode:   "204",
			wantBody:   "",
		},
		{
			name:       "marker with trailing diagnostics",
			convention: ConventionMarker,
			raw:        "created\nHTTP_STATUS:201\n* Connection #0 to host left intact\n",
			wantCode:   "201",
			wantBody:   "created",
		},
		{
			name:       "marker uses last occurrence",
			convention: ConventionMarker,
			raw:        "HTTP_STATUS:999 is in the body\nHTTP_STATUS:200",
			wantCode:   "200",
			wantBody:   "HTTP_STATUS:999 is in the body",
		},
		{
			name:       "trailing digits",
			convention: ConventionTrailing,
			raw:        "abc200",
			wantCode:   "200",
			wantBody:   "abc",
		},
		{
			name:       "trailing digits with newline",
			convention: ConventionTrailing,
			raw:        "403 Forbidden\n403\n",
			wantCode:   "403",
			wantBody:   "403 Forbidden\n",
		},
		{
			name:       "trailing digits only",
			convention: ConventionTrailing,
			raw:        "201",
			wantCode:   "201",
			wantBody:   "",
		},
		{
			name:       "auto picks marker",
			convention: ConventionAuto,
			raw:        "ok\nHTTP_STATUS:200",
			wantCode:   "200",
			wantBody:   "ok",
		},
		{
			name:       "auto falls back to trailing",
			convention: ConventionAuto,
			raw:        "ok500",
			wantCode:   "500",
			wantBody:   "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := NewDecoder(tt.convention).Decode(tt.raw)
			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, tt.wantBody, resp.Body)
		})
	}
}

func TestDecoder_DecodeMalformed(t *testing.T) {
	tests := []struct {
		name       string
		convention Convention
		raw        string
	}{
		{name: "empty", convention: ConventionMarker, raw: ""},
		{name: "whitespace only", convention: ConventionTrailing, raw: " \n"},
		{name: "marker missing", convention: ConventionMarker, raw: "body without code"},
		{name: "marker with letters", convention: ConventionMarker, raw: "body\nHTTP_STATUS:2x0"},
		{name: "marker truncated", convention: ConventionMarker, raw: "body\nHTTP_STATUS:20"},
		{name: "marker code too long", convention: ConventionMarker, raw: "body\nHTTP_STATUS:2000"},
		{name: "trailing non digits", convention: ConventionTrailing, raw: "not a code"},
		{name: "trailing too short", convention: ConventionTrailing, raw: "20"},
		{name: "unknown convention", convention: Convention("xml"), raw: "ok200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				resp *Response
				err  error
			)

			require.NotPanics(t, func() {
				resp, err = NewDecoder(tt.convention).Decode(tt.raw)
			})
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, outcome.MalformedResponse)
		})
	}
}

func TestDecoder_KeepsBodyVerbatimByDefault(t *testing.T) {
	body := "* not a trace, a real body line\n> quoted\n{ \"token\": \"abc\" }"

	resp, err := NewDecoder(ConventionMarker).Decode(body + "\nHTTP_STATUS:200")
	require.NoError(t, err)
	assert.Equal(t, "200", resp.StatusCode)
	assert.Equal(t, body, resp.Body)
}

func TestDecoder_StripTrace(t *testing.T) {
	d := NewDecoder(ConventionMarker)
	d.StripTrace = true

	tests := []struct {
		name     string
		raw      string
		wantBody string
	}{
		{
			name: "interleaved verbose trace",
			raw: "* Trying 127.0.0.1:8080...\n" +
				"> POST /api/login HTTP/1.1\n" +
				"> Host: files.example.com\n" +
				">\n" +
				"} [42 bytes data]\n" +
				"< HTTP/1.1 200 OK\n" +
				"< Content-Type: text/plain\n" +
				"<\n" +
				"{ [16 bytes data]\n" +
				"eyJhbGciOi.token\n" +
				"HTTP_STATUS:200",
			wantBody: "eyJhbGciOi.token",
		},
		{
			name: "json body with spaced braces",
			raw: "< HTTP/1.1 200 OK\n" +
				"{ \"token\": \"abc\" }\n" +
				"HTTP_STATUS:200",
			wantBody: `{ "token": "abc" }`,
		},
		{
			name: "multi line json body",
			raw: "* Connected\n" +
				"{\n  \"token\": \"abc\"\n}\n" +
				"HTTP_STATUS:200",
			wantBody: "{\n  \"token\": \"abc\"\n}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := d.Decode(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, "200", resp.StatusCode)
			assert.Equal(t, tt.wantBody, resp.Body)
		})
	}
}

func TestDecoder_CustomMarker(t *testing.T) {
	d := &Decoder{Convention: ConventionMarker, Marker: "__CODE__"}

	resp, err := d.Decode("hello\n__CODE__404")
	require.NoError(t, err)
	assert.Equal(t, "404", resp.StatusCode)
	assert.Equal(t, "hello", resp.Body)
}

func TestRenderRoundTrip(t *testing.T) {
	for _, c := range []Convention{ConventionMarker, ConventionTrailing, ConventionAuto} {
		t.Run(string(c), func(t *testing.T) {
			raw := Render(c, "", `{"token":"abc"}`, 200)

			resp, err := NewDecoder(c).Decode(raw)
			require.NoError(t, err)
			assert.Equal(t, "200", resp.StatusCode)
			assert.Equal(t, `{"token":"abc"}`, resp.Body)
		})
	}
}

func TestWriteOutDirective(t *testing.T) {
	assert.Equal(t, "%{http_code}", WriteOutDirective(ConventionTrailing, ""))
	assert.Equal(t, `\nHTTP_STATUS:%{http_code}`, WriteOutDirective(ConventionMarker, ""))
	assert.Equal(t, `\nX:%{http_code}`, WriteOutDirective(ConventionAuto, "X:"))
}

func TestParseConvention(t *testing.T) {
	c, err := ParseConvention("")
	require.NoError(t, err)
	assert.Equal(t, ConventionMarker, c)

	c, err = ParseConvention("Trailing")
	require.NoError(t, err)
	assert.Equal(t, ConventionTrailing, c)

	_, err = ParseConvention("regex")
	assert.Error(t, err)
}

func TestResponse_Is(t *testing.T) {
	r := &Response{StatusCode: "204"}
	assert.True(t, r.Is("200", "201", "204"))
	assert.False(t, r.Is("200", "201"))
}
