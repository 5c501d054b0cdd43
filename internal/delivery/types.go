// Package delivery implements the outbound delivery engine: MX-aware host
// resolution with caching, domain-based recipient grouping, and the
// dispatcher that drives one SMTP session per destination domain.
package delivery

import (
	"fmt"
	"time"

	"github.com/jibmail/jib/internal/address"
)

// ErrorType classifies group-level delivery failures.
type ErrorType string

const (
	ErrorTypeResolution ErrorType = "resolution" // no usable DNS answer for the domain
	ErrorTypeConnection ErrorType = "connection" // dial or transport failure
	ErrorTypeTimeout    ErrorType = "timeout"    // bounded connect exceeded
	ErrorTypeProtocol   ErrorType = "protocol"   // fatal reply at a non-recoverable stage
	ErrorTypeContract   ErrorType = "contract"   // malformed per-group message
)

// Error is a structured failure scoped to one domain group. Group failures
// never abort sibling groups and never surface as a process-level crash.
type Error struct {
	Type      ErrorType
	Domain    string
	Message   string
	Temporary bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failure for %s: %s", e.Type, e.Domain, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// GroupResult is the outcome of one domain group's session.
type GroupResult struct {
	Domain     address.Domain
	Recipients []address.ForeignPath
	Delivered  []address.ForeignPath
	Rejected   []address.ForeignPath
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Err        *Error
}

// Failed reports whether the group failed as a whole. Per-recipient
// rejections do not count; they are surfaced as bounce content.
func (gr *GroupResult) Failed() bool { return gr.Err != nil }

// Result aggregates one dispatch across all destination domain groups.
type Result struct {
	DeliveryID string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Groups     []*GroupResult

	TotalRecipients     int
	DeliveredRecipients int
	RejectedRecipients  int
	FailedRecipients    int // undelivered because their group failed
}

// Success reports whether every recipient was delivered.
func (r *Result) Success() bool {
	return r.DeliveredRecipients == r.TotalRecipients
}
