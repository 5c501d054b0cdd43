package delivery

import (
	"log/slog"
	"strings"

	"github.com/jibmail/jib/internal/address"
)

// Router partitions a message's recipients into locally handled paths and
// foreign paths eligible for relay. It is the single place in the process
// where a ForeignPath is constructed, so "did we check locality" is
// answered by reading this file once.
type Router struct {
	logger       *slog.Logger
	localDomains map[string]bool
}

// NewRouter builds a router over the configured local-domain set.
func NewRouter(config *Config) *Router {
	localDomains := make(map[string]bool)
	for _, domain := range config.LocalDomains {
		localDomains[strings.ToLower(domain)] = true
	}
	return &Router{
		logger:       slog.Default().With("component", "router"),
		localDomains: localDomains,
	}
}

// IsLocal reports whether the domain is one of this server's own. Literal
// IP domains are never local; local mail is addressed by name.
func (r *Router) IsLocal(d address.Domain) bool {
	if d.IsLiteral() {
		return false
	}
	return r.localDomains[strings.ToLower(d.Name())]
}

// Partition splits recipients for delivery: postmaster and local-domain
// paths come back in local for the inbound side to handle, everything
// else is wrapped as foreign and eligible for relay.
func (r *Router) Partition(paths []address.ForwardPath) (foreign []address.ForeignPath, local []address.ForwardPath) {
	for _, fp := range paths {
		if fp.IsPostmaster() {
			local = append(local, fp)
			continue
		}
		p, _ := fp.Path()
		foreignPath, err := address.Foreign(p, r.IsLocal)
		if err != nil {
			local = append(local, fp)
			continue
		}
		foreign = append(foreign, foreignPath)
	}
	r.logger.Debug("partitioned recipients",
		"total", len(paths),
		"foreign", len(foreign),
		"local", len(local))
	return foreign, local
}
