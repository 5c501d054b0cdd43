package smtp

import (
	"errors"

	"github.com/jibmail/jib/internal/address"
)

// Contract violations in a message handed to a session. Both are
// programmer errors on the caller's side and abort the delivery attempt.
var (
	ErrNoForwardPaths    = errors.New("smtp: message has no forward paths")
	ErrMismatchedDomains = errors.New("smtp: forward paths span more than one domain")
)

// Message is the envelope and body for one destination domain group. The
// dispatcher builds one Message per group, so every forward path shares a
// single domain. Data holds the body as bare text lines; transmission
// framing (CRLF, dot-stuffing, terminating dot) is the transport driver's
// concern.
type Message struct {
	ReversePath  address.ReversePath
	ForwardPaths []address.ForeignPath
	Data         []string
}

// Validate enforces the session contract: at least one recipient, all on
// the same destination domain.
func (m *Message) Validate() error {
	if len(m.ForwardPaths) == 0 {
		return ErrNoForwardPaths
	}
	first := m.ForwardPaths[0].Path().Domain
	for _, fp := range m.ForwardPaths[1:] {
		if !fp.Path().Domain.Equal(first) {
			return ErrMismatchedDomains
		}
	}
	return nil
}

// Domain returns the destination domain shared by all forward paths.
// Call only after Validate.
func (m *Message) Domain() address.Domain {
	return m.ForwardPaths[0].Path().Domain
}
