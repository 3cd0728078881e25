// Package response decodes the raw text produced by a transport that was told
// to append the HTTP status code to its output.
package response

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ethpandaops/fbupload/pkg/outcome"
)

// Convention declares where the status code sits in the raw text.
type Convention string

const (
	// ConventionMarker expects "\n" + marker + code after the body.
	ConventionMarker Convention = "marker"

	// ConventionTrailing expects the code as the last three characters.
	ConventionTrailing Convention = "trailing"

	// ConventionAuto uses the marker when present, trailing digits otherwise.
	ConventionAuto Convention = "auto"
)

const (
	// DefaultMarker labels the status code in marker mode.
	DefaultMarker = "HTTP_STATUS:"

	codeWidth = 3
)

// ParseConvention validates a convention name.
func ParseConvention(s string) (Convention, error) {
	switch c := Convention(strings.ToLower(s)); c {
	case ConventionMarker, ConventionTrailing, ConventionAuto:
		return c, nil
	case "":
		return ConventionMarker, nil
	default:
		return "", fmt.Errorf("unknown status convention %q", s)
	}
}

// Response is a decoded HTTP response.
type Response struct {
	StatusCode string
	Body       string
}

// Is reports whether the status code is one of codes.
func (r *Response) Is(codes ...string) bool {
	return slices.Contains(codes, r.StatusCode)
}

// Decoder turns raw transport output into a Response.
type Decoder struct {
	Convention Convention
	Marker     string
	// StripTrace removes curl verbose trace lines from the body. Only set it
	// when the transport interleaves a trace with the body.
	StripTrace bool
}

// NewDecoder returns a decoder for the given convention with the default
// marker. The body is kept verbatim.
func NewDecoder(convention Convention) *Decoder {
	return &Decoder{
		Convention: convention,
		Marker:     DefaultMarker,
	}
}

// Decode extracts the status code and body from raw. Malformed input yields
// an *outcome.Error of kind MalformedResponse.
func (d *Decoder) Decode(raw string) (*Response, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, malformed("empty transport output")
	}

	var (
		body string
		code string
		err  error
	)

	switch d.resolve(raw) {
	case ConventionMarker:
		body, code, err = d.splitMarker(raw)
	case ConventionTrailing:
		body, code, err = splitTrailing(raw)
	default:
		return nil, malformed(fmt.Sprintf("unsupported convention %q", d.Convention))
	}

	if err != nil {
		return nil, err
	}

	if d.StripTrace {
		body = stripTrace(body)
	}

	return &Response{StatusCode: code, Body: body}, nil
}

func (d *Decoder) marker() string {
	if d.Marker == "" {
		return DefaultMarker
	}

	return d.Marker
}

func (d *Decoder) resolve(raw string) Convention {
	if d.Convention != ConventionAuto {
		return d.Convention
	}

	if strings.Contains(raw, d.marker()) {
		return ConventionMarker
	}

	return ConventionTrailing
}

// splitMarker uses the last marker occurrence; anything after the code is
// transport diagnostics.
func (d *Decoder) splitMarker(raw string) (string, string, error) {
	marker := d.marker()

	idx := strings.LastIndex(raw, marker)
	if idx < 0 {
		return "", "", malformed(fmt.Sprintf("status marker %q not found", marker))
	}

	rest := raw[idx+len(marker):]
	if len(rest) < codeWidth || !isCode(rest[:codeWidth]) {
		return "", "", malformed("status marker not followed by a 3-digit code")
	}

	if len(rest) > codeWidth && isDigit(rest[codeWidth]) {
		return "", "", malformed("status code longer than 3 digits")
	}

	body := raw[:idx]
	body = strings.TrimSuffix(body, "\n")
	body = strings.TrimSuffix(body, "\r")

	return body, rest[:codeWidth], nil
}

func splitTrailing(raw string) (string, string, error) {
	trimmed := strings.TrimRight(raw, " \t\r\n")
	if len(trimmed) < codeWidth {
		return "", "", malformed("output shorter than a status code")
	}

	cut := len(trimmed) - codeWidth

	code := trimmed[cut:]
	if !isCode(code) {
		return "", "", malformed(fmt.Sprintf("trailing %q is not a status code", code))
	}

	return trimmed[:cut], code, nil
}

// tracePrefixes are the line prefixes curl --verbose writes. Data lines
// look like "{ [42 bytes data]".
var tracePrefixes = []string{"* ", "> ", "< ", "{ [", "} ["}

func isTraceLine(line string) bool {
	line = strings.TrimSuffix(line, "\r")

	switch line {
	case "*", ">", "<":
		return true
	}

	for _, p := range tracePrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}

	return false
}

func stripTrace(body string) string {
	if body == "" {
		return ""
	}

	lines := strings.Split(body, "\n")
	kept := lines[:0]

	for _, line := range lines {
		if isTraceLine(line) {
			continue
		}

		kept = append(kept, line)
	}

	return strings.Join(kept, "\n")
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isCode(s string) bool {
	if len(s) != codeWidth {
		return false
	}

	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}

	return true
}

func malformed(detail string) error {
	return outcome.Fail(outcome.MalformedResponse, outcome.StageDecode, "%s", detail)
}

// WriteOutDirective returns the curl --write-out format that emits the status
// code the way the convention expects. Auto emits the marker form.
func WriteOutDirective(convention Convention, marker string) string {
	if convention == ConventionTrailing {
		return "%{http_code}"
	}

	if marker == "" {
		marker = DefaultMarker
	}

	return `\n` + marker + "%{http_code}"
}

// Render produces the text curl would print for body and code under the
// convention, so transports other than curl feed the same decoder.
func Render(convention Convention, marker, body string, code int) string {
	if convention == ConventionTrailing {
		return fmt.Sprintf("%s%03d", body, code)
	}

	if marker == "" {
		marker = DefaultMarker
	}

	return fmt.Sprintf("%s\n%s%03d", body, marker, code)
}
