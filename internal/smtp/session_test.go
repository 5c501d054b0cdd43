package smtp

import (
	"errors"
	"strings"
	"testing"

	"github.com/jibmail/jib/internal/address"
)

func testMessage(t *testing.T, sender string, rcpts []string, data []string) Message {
	t.Helper()
	var reverse address.ReversePath
	if sender == "" {
		reverse = address.NullReversePath()
	} else {
		p, err := address.ParsePath(sender)
		if err != nil {
			t.Fatal(err)
		}
		reverse = address.ReverseFrom(p)
	}
	var forwards []address.ForeignPath
	for _, r := range rcpts {
		forwards = append(forwards, foreign(t, r))
	}
	return Message{ReversePath: reverse, ForwardPaths: forwards, Data: data}
}

func testHostname(t *testing.T) address.Domain {
	t.Helper()
	d, err := address.ParseDomain("mail.ours.example")
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// reply feeds a full reply line and requires an emitted output.
func reply(t *testing.T, s *Session, line string) *Output {
	t.Helper()
	out, err := s.Push(line)
	if err != nil {
		t.Fatalf("Push(%q): %v", line, err)
	}
	if out == nil {
		t.Fatalf("Push(%q) emitted nothing", line)
	}
	return out
}

func commandLine(t *testing.T, out *Output) string {
	t.Helper()
	if out.Command == nil {
		t.Fatalf("expected a command output, got body %v", out.Body)
	}
	return out.Command.Line()
}

func TestSessionHappyPath(t *testing.T) {
	body := []string{"Subject: hello", "", "first line", "second line"}
	msg := testMessage(t, "alice@ours.example",
		[]string{"bob@remote.example", "carol@remote.example"}, body)

	s, err := Initiate(testHostname(t), msg)
	if err != nil {
		t.Fatal(err)
	}
	if s.State() != StateInitiated {
		t.Fatalf("fresh session in state %s", s.State())
	}

	out := reply(t, s, "220 remote.example ready\r\n")
	if got := commandLine(t, out); got != "EHLO mail.ours.example\r\n" {
		t.Errorf("greeting emitted %q", got)
	}

	out = reply(t, s, "250 hello\r\n")
	if got := commandLine(t, out); got != "MAIL FROM:<alice@ours.example>\r\n" {
		t.Errorf("after EHLO emitted %q", got)
	}

	out = reply(t, s, "250 ok\r\n")
	if got := commandLine(t, out); got != "RCPT TO:<bob@remote.example>\r\n" {
		t.Errorf("after MAIL emitted %q", got)
	}

	out = reply(t, s, "250 ok\r\n")
	if got := commandLine(t, out); got != "RCPT TO:<carol@remote.example>\r\n" {
		t.Errorf("after first RCPT emitted %q", got)
	}

	out = reply(t, s, "250 ok\r\n")
	if got := commandLine(t, out); got != "DATA\r\n" {
		t.Errorf("after last RCPT emitted %q", got)
	}

	out = reply(t, s, "354 go ahead\r\n")
	if out.Command != nil {
		t.Fatalf("DATA go-ahead emitted command %q", out.Command.Line())
	}
	if strings.Join(out.Body, "|") != strings.Join(body, "|") {
		t.Errorf("body output = %v, want %v", out.Body, body)
	}

	out = reply(t, s, "250 accepted\r\n")
	if got := commandLine(t, out); got != "QUIT\r\n" {
		t.Errorf("after body emitted %q", got)
	}

	if !s.ShouldExit() {
		t.Error("session should be terminal after QUIT")
	}
	if len(s.Rejected()) != 0 {
		t.Errorf("rejected = %v, want none", s.Rejected())
	}
	if s.Undeliverable() != nil {
		t.Error("clean session must not synthesize a bounce")
	}
}

// Feeding the session a reply one byte at a time must yield the same
// emissions as feeding whole lines.
func TestSessionByteByByte(t *testing.T) {
	msg := testMessage(t, "alice@ours.example", []string{"bob@remote.example"},
		[]string{"hello"})
	s, err := Initiate(testHostname(t), msg)
	if err != nil {
		t.Fatal(err)
	}

	replies := []string{"220 ready\r\n", "250 hello\r\n", "250 ok\r\n", "250 ok\r\n", "354 go\r\n", "250 ok\r\n"}
	want := []string{
		"EHLO mail.ours.example\r\n",
		"MAIL FROM:<alice@ours.example>\r\n",
		"RCPT TO:<bob@remote.example>\r\n",
		"DATA\r\n",
		"",
		"QUIT\r\n",
	}

	for i, r := range replies {
		var out *Output
		for _, b := range []byte(r) {
			var err error
			out, err = s.Push(string(b))
			if err != nil {
				t.Fatalf("reply %d: Push(%q): %v", i, b, err)
			}
		}
		if out == nil {
			t.Fatalf("reply %d emitted nothing after final byte", i)
		}
		if want[i] == "" {
			if out.Command != nil {
				t.Fatalf("reply %d: expected body, got command %q", i, out.Command.Line())
			}
			continue
		}
		if got := out.Command.Line(); got != want[i] {
			t.Errorf("reply %d emitted %q, want %q", i, got, want[i])
		}
	}

	if !s.ShouldExit() {
		t.Error("session should be terminal")
	}
}

func TestSessionPartialRejection(t *testing.T) {
	msg := testMessage(t, "alice@ours.example",
		[]string{"bob@remote.example", "carol@remote.example"}, []string{"hi"})
	s, err := Initiate(testHostname(t), msg)
	if err != nil {
		t.Fatal(err)
	}

	reply(t, s, "220 ready\r\n")
	reply(t, s, "250 hello\r\n")
	out := reply(t, s, "250 ok\r\n") // RCPT bob
	if got := commandLine(t, out); got != "RCPT TO:<bob@remote.example>\r\n" {
		t.Fatalf("unexpected first RCPT %q", got)
	}

	// bob is refused; the session must continue to carol.
	out = reply(t, s, "550 no such user\r\n")
	if got := commandLine(t, out); got != "RCPT TO:<carol@remote.example>\r\n" {
		t.Fatalf("after rejection emitted %q, want carol's RCPT", got)
	}

	out = reply(t, s, "250 ok\r\n")
	if got := commandLine(t, out); got != "DATA\r\n" {
		t.Fatalf("after carol accepted emitted %q", got)
	}
	reply(t, s, "354 go\r\n")
	reply(t, s, "250 accepted\r\n")

	rejected := s.Rejected()
	if len(rejected) != 1 || rejected[0].String() != "bob@remote.example" {
		t.Fatalf("rejected = %v, want exactly bob", rejected)
	}

	notice := s.Undeliverable()
	if notice == nil {
		t.Fatal("expected a bounce for the rejected recipient")
	}
	var rejectedLines []string
	for _, line := range notice.Data {
		if strings.Contains(line, "rejected") {
			rejectedLines = append(rejectedLines, line)
		}
	}
	if len(rejectedLines) != 1 || !strings.Contains(rejectedLines[0], "<bob@remote.example>") {
		t.Errorf("bounce body rejected lines = %v, want one line naming bob", rejectedLines)
	}
}

func TestSessionFatalReplies(t *testing.T) {
	cases := []struct {
		name    string
		replies []string // the last one is fatal
	}{
		{"Greeting", []string{"554 go away\r\n"}},
		{"Ehlo", []string{"220 ready\r\n", "550 nope\r\n"}},
		{"Mail", []string{"220 ready\r\n", "250 hello\r\n", "451 try later\r\n"}},
		{"FinalOkay", []string{"220 ready\r\n", "250 hello\r\n", "250 ok\r\n", "250 ok\r\n", "354 go\r\n", "554 failed\r\n"}},
		{"UnmappedCodeIsNotSuccess", []string{"220 ready\r\n", "221 closing\r\n"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := testMessage(t, "alice@ours.example", []string{"bob@remote.example"}, []string{"hi"})
			s, err := Initiate(testHostname(t), msg)
			if err != nil {
				t.Fatal(err)
			}

			for _, r := range tc.replies[:len(tc.replies)-1] {
				if _, err := s.Push(r); err != nil {
					t.Fatalf("Push(%q): %v", r, err)
				}
			}
			_, err = s.Push(tc.replies[len(tc.replies)-1])
			var protoErr *ProtocolError
			if !errors.As(err, &protoErr) {
				t.Fatalf("expected protocol error, got %v", err)
			}
		})
	}
}

func TestSessionRejectionAtDataCommand(t *testing.T) {
	msg := testMessage(t, "alice@ours.example", []string{"bob@remote.example"}, []string{"hi"})
	s, err := Initiate(testHostname(t), msg)
	if err != nil {
		t.Fatal(err)
	}

	reply(t, s, "220 ready\r\n")
	reply(t, s, "250 hello\r\n")
	reply(t, s, "250 ok\r\n")
	reply(t, s, "250 ok\r\n") // DATA emitted

	// A refusal of DATA still refers to the last submitted recipient,
	// but leaves the session unable to continue.
	_, err = s.Push("554 no valid recipients\r\n")
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected protocol error, got %v", err)
	}
	if len(s.Rejected()) != 1 {
		t.Errorf("rejected = %v, want the last submitted recipient", s.Rejected())
	}
}

func TestSessionContractErrors(t *testing.T) {
	hostname := testHostname(t)

	t.Run("NoForwardPaths", func(t *testing.T) {
		msg := testMessage(t, "alice@ours.example", nil, []string{"hi"})
		if _, err := Initiate(hostname, msg); !errors.Is(err, ErrNoForwardPaths) {
			t.Fatalf("err = %v, want ErrNoForwardPaths", err)
		}
	})

	t.Run("MismatchedDomains", func(t *testing.T) {
		msg := testMessage(t, "alice@ours.example",
			[]string{"bob@one.example", "carol@two.example"}, []string{"hi"})
		if _, err := Initiate(hostname, msg); !errors.Is(err, ErrMismatchedDomains) {
			t.Fatalf("err = %v, want ErrMismatchedDomains", err)
		}
	})
}

func TestSessionPushAfterEnd(t *testing.T) {
	msg := testMessage(t, "alice@ours.example", []string{"bob@remote.example"}, []string{"hi"})
	s, err := Initiate(testHostname(t), msg)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range []string{"220 ready\r\n", "250 hello\r\n", "250 ok\r\n", "250 ok\r\n", "354 go\r\n", "250 ok\r\n"} {
		if _, err := s.Push(r); err != nil {
			t.Fatal(err)
		}
	}
	if !s.ShouldExit() {
		t.Fatal("session should be terminal")
	}
	if _, err := s.Push("221 bye\r\n"); err == nil {
		t.Error("push after session end must fail")
	}
}

func TestSessionIgnoresMalformedReplyLines(t *testing.T) {
	msg := testMessage(t, "alice@ours.example", []string{"bob@remote.example"}, []string{"hi"})
	s, err := Initiate(testHostname(t), msg)
	if err != nil {
		t.Fatal(err)
	}

	out, err := s.Push("garbage line\r\n")
	if err != nil || out != nil {
		t.Fatalf("malformed line: out=%v err=%v, want nothing", out, err)
	}

	// A well-formed greeting afterwards still advances the session.
	out = reply(t, s, "220 ready\r\n")
	if got := commandLine(t, out); got != "EHLO mail.ours.example\r\n" {
		t.Errorf("after malformed line, greeting emitted %q", got)
	}
}
