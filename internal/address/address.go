// Package address implements the SMTP envelope address model: local parts,
// domains, full paths, and the reverse/forward path variants that appear on
// the wire.
package address

import (
	"fmt"
	"net/netip"
	"strings"
)

// ParseError describes a malformed address component.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed address %q: %s", e.Input, e.Reason)
}

// LocalPart is the validated mailbox name left of the @ sign. Immutable
// once constructed.
type LocalPart struct {
	s string
}

// specials are the characters RFC 5321 forbids in an unquoted local part.
const specials = "<>()[]\\,;:@\""

// ParseLocalPart validates s as an unquoted (dot-string) local part.
func ParseLocalPart(s string) (LocalPart, error) {
	if s == "" {
		return LocalPart{}, &ParseError{Input: s, Reason: "empty local part"}
	}
	if len(s) > 64 {
		return LocalPart{}, &ParseError{Input: s, Reason: "local part exceeds 64 octets"}
	}
	if strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") || strings.Contains(s, "..") {
		return LocalPart{}, &ParseError{Input: s, Reason: "misplaced dot in local part"}
	}
	for _, r := range s {
		if r <= ' ' || r > '~' || strings.ContainsRune(specials, r) {
			return LocalPart{}, &ParseError{Input: s, Reason: fmt.Sprintf("invalid character %q", r)}
		}
	}
	return LocalPart{s: s}, nil
}

func (lp LocalPart) String() string { return lp.s }

// Domain is a mail destination: either a fully qualified domain name or a
// bracketed literal IP address. FQDN equality is case-insensitive; literal
// equality is exact.
type Domain struct {
	name    string
	addr    netip.Addr
	literal bool
}

// ParseDomain validates s as an FQDN or a bracketed address literal such
// as "[192.0.2.1]".
func ParseDomain(s string) (Domain, error) {
	if s == "" {
		return Domain{}, &ParseError{Input: s, Reason: "empty domain"}
	}
	if strings.HasPrefix(s, "[") {
		if !strings.HasSuffix(s, "]") {
			return Domain{}, &ParseError{Input: s, Reason: "unterminated address literal"}
		}
		addr, err := netip.ParseAddr(s[1 : len(s)-1])
		if err != nil {
			return Domain{}, &ParseError{Input: s, Reason: "invalid address literal"}
		}
		return Domain{addr: addr, literal: true}, nil
	}
	if len(s) > 255 {
		return Domain{}, &ParseError{Input: s, Reason: "domain exceeds 255 octets"}
	}
	for _, label := range strings.Split(s, ".") {
		if err := checkLabel(label); err != nil {
			return Domain{}, &ParseError{Input: s, Reason: err.Error()}
		}
	}
	return Domain{name: s}, nil
}

func checkLabel(label string) error {
	if label == "" {
		return fmt.Errorf("empty label")
	}
	if len(label) > 63 {
		return fmt.Errorf("label %q exceeds 63 octets", label)
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return fmt.Errorf("label %q starts or ends with hyphen", label)
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
		default:
			return fmt.Errorf("invalid character %q in label", c)
		}
	}
	return nil
}

// LiteralDomain wraps an IP address as a bracketed literal domain.
func LiteralDomain(addr netip.Addr) Domain {
	return Domain{addr: addr, literal: true}
}

// IsLiteral reports whether the domain is a literal IP address.
func (d Domain) IsLiteral() bool { return d.literal }

// Addr returns the literal address and true, or the zero address and false
// for an FQDN.
func (d Domain) Addr() (netip.Addr, bool) { return d.addr, d.literal }

// Name returns the FQDN, or the empty string for a literal.
func (d Domain) Name() string { return d.name }

func (d Domain) String() string {
	if d.literal {
		return "[" + d.addr.String() + "]"
	}
	return d.name
}

// Equal reports whether two domains name the same destination.
func (d Domain) Equal(o Domain) bool {
	if d.literal != o.literal {
		return false
	}
	if d.literal {
		return d.addr == o.addr
	}
	return strings.EqualFold(d.name, o.name)
}

// Key returns a canonical string usable as a grouping map key: the
// lowercased FQDN or the bracketed literal.
func (d Domain) Key() string {
	if d.literal {
		return "[" + d.addr.String() + "]"
	}
	return strings.ToLower(d.name)
}

// Path is a full mailbox address: local part plus destination domain.
// Paths are small owned values with no shared state and may be copied
// freely.
type Path struct {
	LocalPart LocalPart
	Domain    Domain
}

// ParsePath validates s as "local@domain".
func ParsePath(s string) (Path, error) {
	at := strings.LastIndex(s, "@")
	if at < 0 {
		return Path{}, &ParseError{Input: s, Reason: "missing @ separator"}
	}
	lp, err := ParseLocalPart(s[:at])
	if err != nil {
		return Path{}, err
	}
	d, err := ParseDomain(s[at+1:])
	if err != nil {
		return Path{}, err
	}
	return Path{LocalPart: lp, Domain: d}, nil
}

func (p Path) String() string {
	return p.LocalPart.String() + "@" + p.Domain.String()
}

// ReversePath is the envelope sender: either the null path used by bounce
// notifications ("MAIL FROM:<>") or a regular mailbox.
type ReversePath struct {
	path Path
	set  bool
}

// NullReversePath returns the empty envelope sender.
func NullReversePath() ReversePath { return ReversePath{} }

// ReverseFrom wraps a mailbox as an envelope sender.
func ReverseFrom(p Path) ReversePath { return ReversePath{path: p, set: true} }

// IsNull reports whether this is the empty envelope sender.
func (r ReversePath) IsNull() bool { return !r.set }

// Path returns the sender mailbox and true, or false for the null path.
func (r ReversePath) Path() (Path, bool) { return r.path, r.set }

// String renders the angle-bracketed form used in MAIL FROM.
func (r ReversePath) String() string {
	if !r.set {
		return "<>"
	}
	return "<" + r.path.String() + ">"
}

// ForwardPath is an envelope recipient: the special postmaster mailbox,
// which is always handled locally, or a regular mailbox.
type ForwardPath struct {
	path       Path
	postmaster bool
}

// Postmaster returns the special postmaster recipient.
func Postmaster() ForwardPath { return ForwardPath{postmaster: true} }

// ForwardTo wraps a mailbox as an envelope recipient.
func ForwardTo(p Path) ForwardPath { return ForwardPath{path: p} }

// ParseForwardPath validates s as a recipient. The bare word "postmaster",
// in any case, denotes the special postmaster mailbox.
func ParseForwardPath(s string) (ForwardPath, error) {
	if strings.EqualFold(s, "postmaster") {
		return Postmaster(), nil
	}
	p, err := ParsePath(s)
	if err != nil {
		return ForwardPath{}, err
	}
	return ForwardTo(p), nil
}

// IsPostmaster reports whether this is the special postmaster recipient.
func (f ForwardPath) IsPostmaster() bool { return f.postmaster }

// Path returns the recipient mailbox and true, or false for postmaster.
func (f ForwardPath) Path() (Path, bool) { return f.path, !f.postmaster }

func (f ForwardPath) String() string {
	if f.postmaster {
		return "postmaster"
	}
	return f.path.String()
}
