package smtp

import "github.com/jibmail/jib/internal/address"

// Command is an outbound SMTP verb together with its exact wire form.
type Command interface {
	// Line returns the literal command line, CRLF included.
	Line() string
}

// Ehlo introduces this server to the peer.
type Ehlo struct {
	Domain address.Domain
}

func (c Ehlo) Line() string { return "EHLO " + c.Domain.String() + "\r\n" }

// Mail opens the mail transaction with the envelope sender.
type Mail struct {
	ReversePath address.ReversePath
}

func (c Mail) Line() string { return "MAIL FROM:" + c.ReversePath.String() + "\r\n" }

// Rcpt submits one recipient. Only foreign paths can be submitted; local
// recipients never reach a relay session.
type Rcpt struct {
	Path address.ForeignPath
}

func (c Rcpt) Line() string { return "RCPT TO:<" + c.Path.String() + ">\r\n" }

// Data announces the message body.
type Data struct{}

func (Data) Line() string { return "DATA\r\n" }

// Quit ends the session.
type Quit struct{}

func (Quit) Line() string { return "QUIT\r\n" }
