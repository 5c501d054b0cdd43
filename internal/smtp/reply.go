// Package smtp implements the outbound side of the SMTP protocol: the
// reply classifier, the command wire forms, and the session state machine
// that drives one delivery exchange per destination domain.
package smtp

// Reply codes the state machine acts on by name (RFC 5321).
const (
	CodeServiceReady   = 220
	CodeOkay           = 250
	CodeWillForward    = 251
	CodeStartMailInput = 354
)

// Outcome is the semantic classification of a server reply code.
type Outcome int

const (
	// OutcomeOther covers codes with no named handling that are not in
	// the failure families. It is never treated as success.
	OutcomeOther Outcome = iota
	OutcomeServiceReady
	OutcomeOkay
	OutcomeWillForward
	OutcomeStartMailInput
	OutcomeTransientFailure
	OutcomePermanentFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeServiceReady:
		return "service-ready"
	case OutcomeOkay:
		return "okay"
	case OutcomeWillForward:
		return "will-forward"
	case OutcomeStartMailInput:
		return "start-mail-input"
	case OutcomeTransientFailure:
		return "transient-failure"
	case OutcomePermanentFailure:
		return "permanent-failure"
	default:
		return "other"
	}
}

// Negative reports whether the outcome belongs to the 4xx or 5xx failure
// families.
func (o Outcome) Negative() bool {
	return o == OutcomeTransientFailure || o == OutcomePermanentFailure
}

// Classify maps a 3-digit reply code to its outcome. It is total over the
// code space: codes without named handling classify as transient or
// permanent failure by leading digit, and everything else that is not
// named comes back as OutcomeOther.
func Classify(code int) Outcome {
	switch code {
	case CodeServiceReady:
		return OutcomeServiceReady
	case CodeOkay:
		return OutcomeOkay
	case CodeWillForward:
		return OutcomeWillForward
	case CodeStartMailInput:
		return OutcomeStartMailInput
	}
	switch {
	case code >= 400 && code < 500:
		return OutcomeTransientFailure
	case code >= 500 && code < 600:
		return OutcomePermanentFailure
	}
	return OutcomeOther
}

// parseReplyCode extracts the status code from a complete reply line.
// It returns false for lines that do not start with a 3-digit code in the
// 1xx-5xx range.
func parseReplyCode(line string) (int, bool) {
	if len(line) < 3 {
		return 0, false
	}
	code := 0
	for i := 0; i < 3; i++ {
		c := line[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		code = code*10 + int(c-'0')
	}
	if code < 100 || code > 599 {
		return 0, false
	}
	return code, true
}
