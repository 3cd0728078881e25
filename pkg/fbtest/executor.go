package fbtest

import (
	"context"
	"fmt"

	"github.com/ethpandaops/fbupload/pkg/response"
	"github.com/ethpandaops/fbupload/pkg/transport"
)

// Reply is one scripted transport result.
type Reply struct {
	Raw string
	Err error
}

// Status renders a reply the way the default marker directive would.
func Status(code int, body string) Reply {
	return Reply{Raw: response.Render(response.ConventionMarker, response.DefaultMarker, body, code)}
}

// Raw replies with exact transport output.
func Raw(raw string) Reply {
	return Reply{Raw: raw}
}

// TransportError replies with a transport-level failure.
func TransportError(err error) Reply {
	return Reply{Err: err}
}

// ScriptedExecutor answers requests with scripted replies in order and
// records every request.
type ScriptedExecutor struct {
	Replies  []Reply
	Requests []*transport.Request
}

var _ transport.Executor = (*ScriptedExecutor)(nil)

// NewScript creates a ScriptedExecutor.
func NewScript(replies ...Reply) *ScriptedExecutor {
	return &ScriptedExecutor{Replies: replies}
}

// Execute returns the next reply; running out of replies is an error.
func (s *ScriptedExecutor) Execute(_ context.Context, req *transport.Request) (string, error) {
	s.Requests = append(s.Requests, req)

	if len(s.Replies) == 0 {
		return "", fmt.Errorf("unexpected request %s %s", req.Method, req.URL)
	}

	next := s.Replies[0]
	s.Replies = s.Replies[1:]

	return next.Raw, next.Err
}
