package smtp

import (
	"fmt"

	"github.com/jibmail/jib/internal/address"
	"github.com/jibmail/jib/internal/bounce"
)

// State identifies where a session is in the outbound command sequence.
// States advance strictly forward, with ShouldExit terminal.
type State int

const (
	StateInitiated State = iota
	StateGreeted
	StateSentReversePath
	StateSendingForwardPaths
	StateSentForwardPaths
	StateSentData
	StateShouldExit
)

func (s State) String() string {
	switch s {
	case StateInitiated:
		return "initiated"
	case StateGreeted:
		return "greeted"
	case StateSentReversePath:
		return "sent-reverse-path"
	case StateSendingForwardPaths:
		return "sending-forward-paths"
	case StateSentForwardPaths:
		return "sent-forward-paths"
	case StateSentData:
		return "sent-data"
	case StateShouldExit:
		return "should-exit"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Output is the single action a session emits after consuming a reply:
// either a command line to write, or the message body to transmit.
// Exactly one of the fields is set.
type Output struct {
	Command Command
	Body    []string
}

// ProtocolError reports a reply the state machine cannot continue from.
// The session is dead; the caller must tear down the connection and treat
// every still-pending recipient as undelivered.
type ProtocolError struct {
	State State
	Code  int
	Line  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("smtp: unexpected reply %d in state %s: %q", e.Code, e.State, e.Line)
}

// Session drives the outbound SMTP exchange for one domain group. Feed it
// raw reply text with Push and write whatever it emits back to the peer.
// Sessions hold no shared state and are not safe for concurrent use; each
// domain group gets its own.
type Session struct {
	state    State
	hostname address.Domain
	msg      Message
	buf      lineBuffer
	pending  []address.ForeignPath
	lastSent address.ForeignPath
	rejected []address.ForeignPath
}

// Initiate validates the message contract and returns a session awaiting
// the server greeting.
func Initiate(hostname address.Domain, msg Message) (*Session, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	pending := make([]address.ForeignPath, len(msg.ForwardPaths))
	copy(pending, msg.ForwardPaths)
	return &Session{
		hostname: hostname,
		msg:      msg,
		pending:  pending,
	}, nil
}

// Push appends a reply fragment. While the current line is incomplete it
// returns (nil, nil); the caller must read more from the transport and
// call again. Once a full CRLF-terminated line is buffered it is consumed
// and the session advances, emitting at most one Output. A non-nil error
// means the session cannot continue.
func (s *Session) Push(fragment string) (*Output, error) {
	if s.state == StateShouldExit {
		return nil, fmt.Errorf("smtp: push after session end")
	}
	line, complete := s.buf.Push(fragment)
	if !complete {
		return nil, nil
	}
	code, ok := parseReplyCode(line)
	if !ok {
		// Not a well-formed reply line; not actionable.
		return nil, nil
	}
	return s.advance(code, line)
}

// advance consumes one classified reply and moves the machine forward.
// Every state handles every outcome explicitly; combinations with no
// defined transition fail loudly as protocol errors.
func (s *Session) advance(code int, line string) (*Output, error) {
	outcome := Classify(code)

	switch s.state {
	case StateInitiated:
		if outcome == OutcomeServiceReady {
			s.state = StateGreeted
			return &Output{Command: Ehlo{Domain: s.hostname}}, nil
		}

	case StateGreeted:
		if outcome == OutcomeOkay {
			s.state = StateSentReversePath
			return &Output{Command: Mail{ReversePath: s.msg.ReversePath}}, nil
		}

	case StateSentReversePath:
		if outcome == OutcomeOkay {
			s.state = StateSendingForwardPaths
			return s.nextRecipient(), nil
		}

	case StateSendingForwardPaths:
		// The reply refers to the most recently submitted recipient. A
		// negative here rejects that one recipient only; the session
		// continues so the remaining recipients still get their chance.
		switch {
		case outcome.Negative():
			s.rejected = append(s.rejected, s.lastSent)
		case outcome == OutcomeOkay, outcome == OutcomeWillForward:
		default:
			return nil, &ProtocolError{State: s.state, Code: code, Line: line}
		}
		if len(s.pending) > 0 {
			return s.nextRecipient(), nil
		}
		s.state = StateSentForwardPaths
		return &Output{Command: Data{}}, nil

	case StateSentForwardPaths:
		if outcome == OutcomeStartMailInput {
			s.state = StateSentData
			return &Output{Body: s.msg.Data}, nil
		}
		if outcome.Negative() {
			// A late rejection arriving here still refers to the last
			// recipient submitted, but without the DATA go-ahead the
			// session cannot continue.
			s.rejected = append(s.rejected, s.lastSent)
		}

	case StateSentData:
		if outcome == OutcomeOkay {
			s.state = StateShouldExit
			return &Output{Command: Quit{}}, nil
		}
	}

	return nil, &ProtocolError{State: s.state, Code: code, Line: line}
}

// nextRecipient pops the next pending forward path, records it as the one
// the next reply will refer to, and emits its RCPT command.
func (s *Session) nextRecipient() *Output {
	next := s.pending[0]
	s.pending = s.pending[1:]
	s.lastSent = next
	return &Output{Command: Rcpt{Path: next}}
}

// State returns the current session state.
func (s *Session) State() State { return s.state }

// ShouldExit reports whether the session has run to completion. The
// transport loop must stop reading once true.
func (s *Session) ShouldExit() bool { return s.state == StateShouldExit }

// Rejected returns the recipients the peer refused, in refusal order.
func (s *Session) Rejected() []address.ForeignPath { return s.rejected }

// Undeliverable synthesizes the bounce notification for recipients the
// peer rejected. It returns nil when nothing was rejected: a fully
// successful session needs no bounce, and a session that aborted before
// any recipient was refused is reported as a transport error instead.
func (s *Session) Undeliverable() *bounce.Notice {
	return bounce.Synthesize(s.msg.ReversePath, s.rejected, s.msg.Data)
}
