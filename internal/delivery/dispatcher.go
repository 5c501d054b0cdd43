package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/jibmail/jib/internal/address"
	"github.com/jibmail/jib/internal/bounce"
	"github.com/jibmail/jib/internal/smtp"
)

// Dialer opens transport connections. net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Sink receives messages for local handling: synthesized bounces go here
// for delivery back to the original sender.
type Sink interface {
	DeliverNotice(ctx context.Context, notice *bounce.Notice) error
}

// Dispatcher groups foreign recipients by destination domain and drives
// one SMTP session per group over its own connection. Groups run
// concurrently and share nothing but the immutable original message.
type Dispatcher struct {
	config   *Config
	logger   *slog.Logger
	metrics  *Metrics
	resolver *Resolver
	dialer   Dialer
	sink     Sink
	hostname address.Domain

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewDispatcher creates a dispatcher. A nil dialer falls back to a plain
// net.Dialer; a nil sink drops synthesized bounces with a warning.
func NewDispatcher(config *Config, resolver *Resolver, dialer Dialer, sink Sink) (*Dispatcher, error) {
	if config == nil {
		config = DefaultConfig()
	}
	hostname, err := address.ParseDomain(config.Hostname)
	if err != nil {
		return nil, fmt.Errorf("invalid hostname: %w", err)
	}
	if resolver == nil {
		resolver = NewResolver(config, nil)
	}
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	return &Dispatcher{
		config:   config,
		logger:   slog.Default().With("component", "dispatcher"),
		metrics:  GetMetrics(),
		resolver: resolver,
		dialer:   dialer,
		sink:     sink,
		hostname: hostname,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}, nil
}

// Dispatch delivers the message to every destination domain. Group
// failures are recorded in the result, never returned as an error, and a
// failing group does not disturb its siblings.
func (d *Dispatcher) Dispatch(ctx context.Context, reverse address.ReversePath, recipients []address.ForeignPath, data []string) (*Result, error) {
	if len(recipients) == 0 {
		return nil, smtp.ErrNoForwardPaths
	}

	result := &Result{
		DeliveryID:      uuid.New().String(),
		StartTime:       time.Now(),
		TotalRecipients: len(recipients),
	}

	groups := groupByDomain(recipients)
	d.logger.Info("dispatching message",
		"delivery_id", result.DeliveryID,
		"recipients", len(recipients),
		"groups", len(groups))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, group := range groups {
		group := group
		g.Go(func() error {
			gr := d.deliverGroup(gctx, reverse, group, data)
			mu.Lock()
			result.Groups = append(result.Groups, gr)
			mu.Unlock()
			// Group failures live in the result; returning them here
			// would cancel sibling groups.
			return nil
		})
	}
	_ = g.Wait()

	for _, gr := range result.Groups {
		result.DeliveredRecipients += len(gr.Delivered)
		result.RejectedRecipients += len(gr.Rejected)
		if gr.Failed() {
			result.FailedRecipients += len(gr.Recipients) - len(gr.Rejected)
		}
	}
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	d.logger.Info("dispatch completed",
		"delivery_id", result.DeliveryID,
		"delivered", result.DeliveredRecipients,
		"rejected", result.RejectedRecipients,
		"failed", result.FailedRecipients,
		"duration", result.Duration)

	return result, nil
}

// groupByDomain partitions foreign paths into per-domain groups,
// preserving recipient order within each group. Each group gets its own
// owned slice so concurrent sessions share no state.
func groupByDomain(recipients []address.ForeignPath) [][]address.ForeignPath {
	index := make(map[string]int)
	var groups [][]address.ForeignPath
	for _, fp := range recipients {
		key := fp.Path().Domain.Key()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], fp)
	}
	return groups
}

// deliverGroup resolves one domain group's host, runs a session over a
// fresh connection, and hands any synthesized bounce to the sink.
func (d *Dispatcher) deliverGroup(ctx context.Context, reverse address.ReversePath, recipients []address.ForeignPath, data []string) *GroupResult {
	domain := recipients[0].Path().Domain
	gr := &GroupResult{
		Domain:     domain,
		Recipients: recipients,
		StartTime:  time.Now(),
	}
	defer func() {
		gr.EndTime = time.Now()
		gr.Duration = gr.EndTime.Sub(gr.StartTime)
	}()

	logger := d.logger.With("domain", domain.Key())
	d.metrics.GroupsAttempted.Inc()

	addr, err := d.resolver.Resolve(ctx, domain)
	if err != nil {
		logger.Error("resolution failed", "error", err)
		gr.Err = d.groupError(ErrorTypeResolution, domain, err)
		return gr
	}

	conn, err := d.dial(ctx, addr)
	if err != nil {
		kind := ErrorTypeConnection
		if isTimeout(err) {
			kind = ErrorTypeTimeout
		}
		logger.Error("connect failed", "addr", addr, "error", err)
		gr.Err = d.groupError(kind, domain, err)
		return gr
	}
	defer conn.Close()

	msg := smtp.Message{
		ReversePath:  reverse,
		ForwardPaths: recipients,
		Data:         data,
	}
	session, err := smtp.Initiate(d.hostname, msg)
	if err != nil {
		gr.Err = d.groupError(ErrorTypeContract, domain, err)
		return gr
	}

	sessionStart := time.Now()
	runErr := d.runSession(conn, session)
	d.metrics.SessionDuration.Observe(time.Since(sessionStart).Seconds())

	gr.Rejected = session.Rejected()
	if runErr != nil {
		kind := ErrorTypeConnection
		var protoErr *smtp.ProtocolError
		if errors.As(runErr, &protoErr) {
			kind = ErrorTypeProtocol
		}
		logger.Error("session failed",
			"state", session.State(),
			"rejected", len(gr.Rejected),
			"error", runErr)
		gr.Err = d.groupError(kind, domain, runErr)
	} else {
		gr.Delivered = delivered(recipients, gr.Rejected)
		d.metrics.GroupsDelivered.Inc()
		d.metrics.RecipientsDelivered.Add(float64(len(gr.Delivered)))
		logger.Info("group delivered",
			"delivered", len(gr.Delivered),
			"rejected", len(gr.Rejected))
	}
	d.metrics.RecipientsRejected.Add(float64(len(gr.Rejected)))

	// Rejected recipients get a bounce even when the session later died:
	// the refusal already happened and the sender should hear about it.
	if notice := session.Undeliverable(); notice != nil {
		d.metrics.BouncesSynthesized.Inc()
		if d.sink == nil {
			logger.Warn("no local sink configured, dropping bounce",
				"sender", notice.ForwardPath)
		} else if err := d.sink.DeliverNotice(ctx, notice); err != nil {
			logger.Error("bounce handoff failed", "error", err)
		}
	}

	return gr
}

// runSession pumps the transport: read reply bytes, feed the session,
// write whatever it emits, stop at completion or peer close. A zero
// length read is a peer close; no further commands are emitted after it.
func (d *Dispatcher) runSession(conn net.Conn, session *smtp.Session) error {
	buf := make([]byte, 1024)
	for !session.ShouldExit() {
		if d.config.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(d.config.ReadTimeout))
		}
		n, err := conn.Read(buf)
		if n == 0 {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("connection closed in state %s", session.State())
			}
			return fmt.Errorf("read: %w", err)
		}

		out, perr := session.Push(string(buf[:n]))
		if perr != nil {
			return perr
		}
		if out == nil {
			continue
		}
		switch {
		case out.Command != nil:
			if _, err := io.WriteString(conn, out.Command.Line()); err != nil {
				return fmt.Errorf("write command: %w", err)
			}
		default:
			if err := writeBody(conn, out.Body); err != nil {
				return fmt.Errorf("write body: %w", err)
			}
		}
	}
	return nil
}

// writeBody transmits the message body with dot-stuffing and the
// terminating dot line (RFC 5321 section 4.5.2).
func writeBody(w io.Writer, lines []string) error {
	var b strings.Builder
	for _, line := range lines {
		if strings.HasPrefix(line, ".") {
			b.WriteByte('.')
		}
		b.WriteString(line)
		b.WriteString("\r\n")
	}
	b.WriteString(".\r\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// dial opens the connection through a per-target circuit breaker with the
// bounded connect timeout. Repeated connect failures to one host trip the
// breaker so sibling deliveries fail fast instead of each waiting out the
// timeout.
func (d *Dispatcher) dial(ctx context.Context, addr netip.Addr) (net.Conn, error) {
	target := net.JoinHostPort(addr.String(), strconv.Itoa(d.config.Port))

	start := time.Now()
	v, err := d.breaker(target).Execute(func() (interface{}, error) {
		dialCtx, cancel := context.WithTimeout(ctx, d.config.ConnectTimeout)
		defer cancel()
		return d.dialer.DialContext(dialCtx, "tcp", target)
	})
	if err != nil {
		return nil, err
	}
	d.metrics.ConnectDuration.Observe(time.Since(start).Seconds())
	return v.(net.Conn), nil
}

func (d *Dispatcher) breaker(target string) *gobreaker.CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cb, ok := d.breakers[target]; ok {
		return cb
	}
	failures := d.config.BreakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "dial-" + target,
		MaxRequests: 1,
		Timeout:     d.config.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
	})
	d.breakers[target] = cb
	return cb
}

func (d *Dispatcher) groupError(kind ErrorType, domain address.Domain, err error) *Error {
	d.metrics.GroupsFailed.WithLabelValues(string(kind)).Inc()
	return &Error{
		Type:      kind,
		Domain:    domain.Key(),
		Message:   err.Error(),
		Temporary: kind == ErrorTypeTimeout || kind == ErrorTypeConnection || kind == ErrorTypeResolution,
		Err:       err,
	}
}

// delivered returns the recipients not present in rejected, preserving
// order.
func delivered(recipients, rejected []address.ForeignPath) []address.ForeignPath {
	if len(rejected) == 0 {
		out := make([]address.ForeignPath, len(recipients))
		copy(out, recipients)
		return out
	}
	refused := make(map[string]int, len(rejected))
	for _, fp := range rejected {
		refused[fp.String()]++
	}
	var out []address.ForeignPath
	for _, fp := range recipients {
		if n := refused[fp.String()]; n > 0 {
			refused[fp.String()] = n - 1
			continue
		}
		out = append(out, fp)
	}
	return out
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
