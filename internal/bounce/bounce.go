// Package bounce synthesizes undeliverable-mail notifications for
// recipients a remote host refused. It is pure: no network or shared
// state.
package bounce

import (
	"fmt"

	"github.com/jibmail/jib/internal/address"
)

// Notice is a bounce message addressed back to the original sender. Its
// reverse path is always null so a bounce can never itself bounce.
type Notice struct {
	ReversePath address.ReversePath
	ForwardPath address.Path
	Data        []string
}

// Synthesize builds the notification for the given rejected recipients.
// It returns nil when no recipient was rejected, and nil when the original
// sender is the null path, since then there is no mailbox to notify.
func Synthesize(sender address.ReversePath, rejected []address.ForeignPath, original []string) *Notice {
	if len(rejected) == 0 {
		return nil
	}
	to, ok := sender.Path()
	if !ok {
		return nil
	}

	data := []string{
		"Subject: Undeliverable mail",
		"Auto-Submitted: auto-replied",
		"",
		"This message was created automatically by the mail system.",
		"",
		"Delivery to the following recipients failed:",
		"",
	}
	for _, fp := range rejected {
		data = append(data, fmt.Sprintf("The host rejected <%s>", fp.Path()))
	}
	if len(original) > 0 {
		data = append(data, "", "--- Original message follows ---", "")
		data = append(data, original...)
	}

	return &Notice{
		ReversePath: address.NullReversePath(),
		ForwardPath: to,
		Data:        data,
	}
}
