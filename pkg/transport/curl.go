package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ethpandaops/fbupload/pkg/config"
	"github.com/ethpandaops/fbupload/pkg/response"
	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

// Runner runs an external program. The default implementation uses os/exec.
type Runner interface {
	Run(ctx context.Context, program string, args []string, stdin io.Reader) (*RunResult, error)
}

// RunResult holds the captured output of a finished program.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

type execRunner struct{}

func (execRunner) Run(
	ctx context.Context,
	program string,
	args []string,
	stdin io.Reader,
) (*RunResult, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := &RunResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()

		return result, nil
	}

	if err != nil {
		return result, fmt.Errorf("running %s: %w", program, err)
	}

	return result, nil
}

// curlExecutor shells out to curl. Request secrets never appear in argv.
type curlExecutor struct {
	log        logrus.FieldLogger
	cfg        *config.TransportConfig
	runner     Runner
	convention response.Convention
}

var _ Executor = (*curlExecutor)(nil)

// NewCurl creates a curl executor. A nil runner uses os/exec.
func NewCurl(
	log logrus.FieldLogger,
	cfg *config.TransportConfig,
	convention response.Convention,
	runner Runner,
) Executor {
	if runner == nil {
		runner = execRunner{}
	}

	return &curlExecutor{
		log:        log.WithField("component", "curl-transport"),
		cfg:        cfg,
		runner:     runner,
		convention: convention,
	}
}

// Execute runs curl and returns its stdout. A non-zero exit status means the
// transfer itself failed and is returned as an error.
func (e *curlExecutor) Execute(ctx context.Context, req *Request) (string, error) {
	logRequest(e.log, req)

	args, stdin, err := e.buildArgs(req)
	if err != nil {
		return "", err
	}

	program := e.cfg.CurlPath
	if program == "" {
		program = config.DefaultCurlPath
	}

	res, err := e.runner.Run(ctx, program, args, stdin)
	if err != nil {
		return "", err
	}

	if res.ExitCode != 0 {
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = lastLine(res.Stdout)
		}

		return "", fmt.Errorf("curl exited with code %d: %s", res.ExitCode, msg)
	}

	return res.Stdout, nil
}

func (e *curlExecutor) buildArgs(req *Request) ([]string, io.Reader, error) {
	args := []string{
		"--silent", "--show-error",
		"--request", req.Method,
		"--url", req.URL,
		"--write-out", response.WriteOutDirective(e.convention, e.cfg.StatusMarker),
	}

	if e.cfg.Timeout > 0 {
		secs := int(math.Ceil(e.cfg.Timeout.Seconds()))
		args = append(args, "--max-time", strconv.Itoa(secs))
	}

	if e.cfg.InsecureSkipVerify {
		args = append(args, "--insecure")
	}

	if e.cfg.Verbose {
		// Trace goes to stdout, interleaved with the body.
		args = append(args, "--verbose", "--stderr", "-")
	}

	if req.File != nil && !req.File.OnOS() {
		return nil, nil, fmt.Errorf("curl transport needs %s on the local file system", req.File.Name)
	}

	headers := formatHeaders(req)

	switch {
	case req.Body != nil:
		for _, h := range headers {
			args = append(args, "--header", h)
		}

		args = append(args, "--data-binary", "@-")

		return args, bytes.NewReader(req.Body), nil

	case req.File != nil && req.FormField != "":
		mtype, err := mimetype.DetectFile(req.File.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("detecting content type of %s: %w", req.File.Name, err)
		}

		args = append(args, "--form", formFileArg(req.FormField, req.File.Path, mtype.String()))

	case req.File != nil:
		args = append(args, "--data-binary", "@"+req.File.Path)
	}

	if len(headers) == 0 {
		return args, nil, nil
	}

	args = append(args, "--header", "@-")

	return args, strings.NewReader(strings.Join(headers, "\r\n") + "\r\n"), nil
}

func formatHeaders(req *Request) []string {
	names := headerNames(req.Header)
	out := make([]string, 0, len(names))

	for _, name := range names {
		for _, v := range req.Header[name] {
			out = append(out, name+": "+v)
		}
	}

	return out
}

var formQuoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// formFileArg builds a --form value; the quoted path may contain ';' or ','.
// Media type parameters are dropped since curl treats ';' as a separator.
func formFileArg(field, path, contentType string) string {
	contentType, _, _ = strings.Cut(contentType, ";")

	return fmt.Sprintf(`%s=@"%s";type=%s`, field, formQuoter.Replace(path), contentType)
}

// lastLine returns the last line that is not an echoed request header,
// since those carry the auth token in verbose mode.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")

	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" && !strings.HasPrefix(line, ">") {
			return line
		}
	}

	return ""
}
