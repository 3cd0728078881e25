package upload

import (
	"github.com/ethpandaops/fbupload/pkg/localfile"
	"github.com/ethpandaops/fbupload/pkg/outcome"
)

// State is a step of a single upload.
type State string

const (
	StateInit          State = "init"
	StateValidated     State = "validated"
	StateAuthenticated State = "authenticated"
	StateUploaded      State = "uploaded"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Event describes a transition. File is set once the local file has been
// checked, AccessURL on Done and Err on Failed.
type Event struct {
	From      State
	To        State
	Request   Request
	File      *localfile.File
	AccessURL string
	Err       *outcome.Error
}

// Observer is notified after every transition. It must not block.
type Observer interface {
	Observe(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(ev Event) {
	f(ev)
}

// machine tracks the current state and forwards transitions.
type machine struct {
	state    State
	request  Request
	file     *localfile.File
	observer Observer
}

func (m *machine) advance(to State) {
	m.emit(Event{To: to})
}

func (m *machine) fail(err *outcome.Error) *outcome.Outcome {
	m.emit(Event{To: StateFailed, Err: err})

	return outcome.Failure(err)
}

func (m *machine) done(accessURL string) *outcome.Outcome {
	m.emit(Event{To: StateDone, AccessURL: accessURL})

	return outcome.Success(accessURL)
}

func (m *machine) emit(ev Event) {
	ev.From = m.state
	ev.Request = m.request
	ev.File = m.file

	m.state = ev.To

	if m.observer != nil {
		m.observer.Observe(ev)
	}
}
