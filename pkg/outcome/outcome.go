// Package outcome models the terminal result of an upload: either the public
// access URL of the uploaded file or a single classified failure.
package outcome

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure. Kind implements error so a classified failure
// can be matched with errors.Is(err, outcome.UploadFailed).
type Kind string

const (
	InvalidArgument      Kind = "InvalidArgument"
	LocalFileNotFound    Kind = "LocalFileNotFound"
	CredentialNotFound   Kind = "CredentialNotFound"
	AuthenticationFailed Kind = "AuthenticationFailed"
	MalformedResponse    Kind = "MalformedResponse"
	CreateFailed         Kind = "CreateFailed"
	ContentUploadFailed  Kind = "ContentUploadFailed"
	UploadFailed         Kind = "UploadFailed"
)

func (k Kind) Error() string {
	return string(k)
}

// Stage names the step of an upload a failure happened in.
type Stage string

const (
	StageValidate   Stage = "validate"
	StageCredential Stage = "credential"
	StageLocalFile  Stage = "local-file"
	StageLogin      Stage = "login"
	StageDecode     Stage = "decode"
	StageCreate     Stage = "create"
	StagePatch      Stage = "patch"
	StageUpload     Stage = "upload"
)

// Error is a classified failure. StatusCode is the HTTP status observed by
// the failing stage, empty when no response was decoded. Detail and the
// wrapped cause must never contain passwords or tokens.
type Error struct {
	Kind       Kind
	Stage      Stage
	StatusCode string
	Detail     string
	Err        error
}

// Fail creates a classified failure without an HTTP status.
func Fail(kind Kind, stage Stage, format string, args ...any) *Error {
	return &Error{
		Kind:   kind,
		Stage:  stage,
		Detail: fmt.Sprintf(format, args...),
	}
}

// WithStatus records the observed HTTP status code.
func (e *Error) WithStatus(code string) *Error {
	e.StatusCode = code

	return e
}

// Wrap attaches the underlying cause.
func (e *Error) Wrap(err error) *Error {
	e.Err = err

	return e
}

func (e *Error) Error() string {
	var sb strings.Builder

	sb.WriteString(string(e.Stage))
	sb.WriteString(": ")
	sb.WriteString(string(e.Kind))

	if e.StatusCode != "" {
		sb.WriteString(" (status ")
		sb.WriteString(e.StatusCode)
		sb.WriteString(")")
	}

	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}

	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}

	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the Kind of this failure.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)

	return ok && k == e.Kind
}

// Message renders the single human readable line shown to the caller.
func (e *Error) Message() string {
	msg := fmt.Sprintf("upload failed at %s", e.Stage)
	if e.StatusCode != "" {
		msg += fmt.Sprintf(" (status %s)", e.StatusCode)
	}

	detail := e.Detail
	if detail == "" {
		detail = string(e.Kind)
	}

	msg += ": " + detail

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// As extracts the classified failure from err, if any.
func As(err error) (*Error, bool) {
	var oe *Error
	if errors.As(err, &oe) {
		return oe, true
	}

	return nil, false
}

// KindOf returns the Kind of the outermost classified failure in err.
func KindOf(err error) (Kind, bool) {
	oe, ok := As(err)
	if !ok {
		return "", false
	}

	return oe.Kind, true
}

// Outcome is the result of one upload: exactly one of AccessURL or Err is set.
type Outcome struct {
	AccessURL string
	Err       *Error
}

// Success builds a successful outcome.
func Success(accessURL string) *Outcome {
	return &Outcome{AccessURL: accessURL}
}

// Failure builds a failed outcome.
func Failure(err *Error) *Outcome {
	return &Outcome{Err: err}
}

// Succeeded reports whether the upload completed.
func (o *Outcome) Succeeded() bool {
	return o.Err == nil
}

// AsError returns the failure as an error, or nil on success.
func (o *Outcome) AsError() error {
	if o.Err == nil {
		return nil
	}

	return o.Err
}
