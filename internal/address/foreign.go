package address

import "errors"

// ForeignPath wraps a Path whose domain has been confirmed not to be one
// of this server's own. It is the only address form the delivery engine
// will relay: holding one is proof the locality check already happened, so
// relaying a local address is a construction-time error instead of a
// runtime bug.
type ForeignPath struct {
	path Path
}

// ErrLocalPath is returned when a path's domain belongs to this server.
var ErrLocalPath = errors.New("address: path is local, refusing to treat as foreign")

// Foreign performs the locality check and wraps the path. It is the only
// ForeignPath constructor; callers must supply the authoritative
// local-domain predicate.
func Foreign(p Path, isLocal func(Domain) bool) (ForeignPath, error) {
	if isLocal == nil {
		return ForeignPath{}, errors.New("address: nil locality predicate")
	}
	if isLocal(p.Domain) {
		return ForeignPath{}, ErrLocalPath
	}
	return ForeignPath{path: p}, nil
}

// Path returns the wrapped mailbox address.
func (f ForeignPath) Path() Path { return f.path }

func (f ForeignPath) String() string { return f.path.String() }
