// Package probe implements the SMTP handshake that tests whether a mail
// server accepts a recipient, without sending mail. One call probes one
// MX host; trying candidates in priority order is the caller's job.
//
// The exchange is an explicit state machine:
//
//	Connecting → Greeting → Helo → MailFrom → RcptTo → Quit
//
// Every path out of the conversation sends QUIT (best effort) and closes
// the connection, so a session never outlives its attempt.
package probe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	xproxy "golang.org/x/net/proxy"

	"github.com/mailprobe/mailprobe/types"
)

// ProxyConfig configures an optional SOCKS5 proxy for outbound probes.
type ProxyConfig struct {
	Address  string // host:port
	Username string
	Password string
}

// Config configures the probe engine.
type Config struct {
	HeloDomain     string
	MailFrom       string
	Port           string        // default "25"
	ConnectTimeout time.Duration // default 5s
	CommandTimeout time.Duration // per-command response deadline, default 10s
	Proxy          *ProxyConfig
	// Dial is injectable for testing. Defaults to a net.Dialer (or a
	// SOCKS5 dialer when Proxy is set).
	Dial func(ctx context.Context, network, address string) (net.Conn, error)
}

// Engine probes MX hosts. It is stateless across calls and safe for
// concurrent use; all per-attempt state lives in the session.
type Engine struct {
	cfg Config
}

// NewEngine creates a probe engine, applying defaults for unset values.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Port == "" {
		cfg.Port = "25"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = 10 * time.Second
	}
	if cfg.Dial == nil {
		dial, err := buildDialer(cfg.Proxy, cfg.ConnectTimeout)
		if err != nil {
			return nil, err
		}
		cfg.Dial = dial
	}
	return &Engine{cfg: cfg}, nil
}

// buildDialer returns a plain dialer, or a SOCKS5 dialer when a proxy is
// configured. There is no fallback: if the proxy is down, probes fail.
func buildDialer(p *ProxyConfig, timeout time.Duration) (func(ctx context.Context, network, address string) (net.Conn, error), error) {
	base := &net.Dialer{Timeout: timeout}
	if p == nil || p.Address == "" {
		return base.DialContext, nil
	}

	var auth *xproxy.Auth
	if p.Username != "" {
		auth = &xproxy.Auth{User: p.Username, Password: p.Password}
	}
	d, err := xproxy.SOCKS5("tcp", p.Address, auth, base)
	if err != nil {
		return nil, fmt.Errorf("probe: socks5 proxy: %w", err)
	}
	cd, ok := d.(xproxy.ContextDialer)
	if !ok {
		return func(_ context.Context, network, address string) (net.Conn, error) {
			return d.Dial(network, address)
		}, nil
	}
	return cd.DialContext, nil
}

// session is the transient per-attempt state. It owns the connection
// exclusively for its lifetime.
type session struct {
	host     string
	conn     net.Conn
	reader   *bufio.Reader
	writer   *bufio.Writer
	stage    types.ProbeStage
	lastCode int
	lastText string
}

// Probe runs the handshake against one MX host for one candidate address
// and classifies the result. It never returns an error: ambiguity and
// failure are verdicts, not exceptions.
func (e *Engine) Probe(ctx context.Context, host, email string) types.ProbeOutcome {
	dialCtx, cancel := context.WithTimeout(ctx, e.cfg.ConnectTimeout)
	defer cancel()

	conn, err := e.cfg.Dial(dialCtx, "tcp", net.JoinHostPort(host, e.cfg.Port))
	if err != nil {
		verdict := types.VerdictBlocked
		if ctx.Err() != nil || isTimeout(err) {
			verdict = types.VerdictTimeout
		}
		return types.ProbeOutcome{
			Host:    host,
			Verdict: verdict,
			Stage:   types.StageConnecting,
			Message: err.Error(),
		}
	}

	s := &session{
		host:   host,
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
		stage:  types.StageGreeting,
	}
	defer s.close()

	// Cancellation forces an immediate deadline so any blocked read or
	// write aborts; the deferred close still runs.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetDeadline(time.Now())
		case <-watchDone:
		}
	}()

	return e.converse(ctx, s, email)
}

// converse drives the session through Greeting, Helo, MailFrom and
// RcptTo, returning the first terminal outcome.
func (e *Engine) converse(ctx context.Context, s *session, email string) types.ProbeOutcome {
	// Greeting: expect 220.
	code, err := s.read(ctx, e.cfg.CommandTimeout)
	if err != nil {
		return e.failure(ctx, s, err)
	}
	if code != 220 {
		return s.outcome(types.VerdictIndeterminate)
	}

	// Helo: EHLO first, falling back to HELO on rejection.
	s.stage = types.StageHelo
	code, err = s.cmd(ctx, e.cfg.CommandTimeout, "EHLO %s", e.cfg.HeloDomain)
	if err != nil {
		return e.failure(ctx, s, err)
	}
	if code != 250 {
		code, err = s.cmd(ctx, e.cfg.CommandTimeout, "HELO %s", e.cfg.HeloDomain)
		if err != nil {
			return e.failure(ctx, s, err)
		}
		if code != 250 {
			return s.outcome(types.VerdictIndeterminate)
		}
	}

	// MailFrom: expect 250. Anything else is the server rejecting the
	// envelope sender (policy), which proves nothing about the recipient.
	s.stage = types.StageMailFrom
	code, err = s.cmd(ctx, e.cfg.CommandTimeout, "MAIL FROM:<%s>", e.cfg.MailFrom)
	if err != nil {
		return e.failure(ctx, s, err)
	}
	if code != 250 {
		return s.outcome(types.VerdictIndeterminate)
	}

	// RcptTo: the answer we came for.
	s.stage = types.StageRcptTo
	code, err = s.cmd(ctx, e.cfg.CommandTimeout, "RCPT TO:<%s>", email)
	if err != nil {
		return e.failure(ctx, s, err)
	}

	return s.outcome(classifyRcpt(code))
}

// classifyRcpt maps the RCPT TO response code to a verdict.
func classifyRcpt(code int) types.Verdict {
	switch code {
	case 250, 251:
		return types.VerdictDeliverable
	case 550, 551, 553:
		return types.VerdictNonExistent
	case 450, 451, 452:
		// Temporary failure / greylisting. Retrying is a caller policy.
		return types.VerdictIndeterminate
	case 421:
		return types.VerdictBlocked
	default:
		return types.VerdictIndeterminate
	}
}

// failure classifies an I/O error mid-conversation. Cancellation and
// deadlines surface as Timeout, a dropped connection as Blocked, and
// anything else as Indeterminate.
func (e *Engine) failure(ctx context.Context, s *session, err error) types.ProbeOutcome {
	out := s.outcome(types.VerdictIndeterminate)
	out.Message = err.Error()
	switch {
	case ctx.Err() != nil, isTimeout(err):
		out.Verdict = types.VerdictTimeout
	case isDropped(err):
		out.Verdict = types.VerdictBlocked
	}
	return out
}

func isTimeout(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func isDropped(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, net.ErrClosed)
}

// outcome snapshots the session into a ProbeOutcome.
func (s *session) outcome(v types.Verdict) types.ProbeOutcome {
	return types.ProbeOutcome{
		Host:     s.host,
		Verdict:  v,
		Stage:    s.stage,
		SMTPCode: s.lastCode,
		Message:  s.lastText,
	}
}

// cmd sends one SMTP command and reads the response.
func (s *session) cmd(ctx context.Context, timeout time.Duration, format string, args ...any) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}
	if _, err := fmt.Fprintf(s.writer, format+"\r\n", args...); err != nil {
		return 0, err
	}
	if err := s.writer.Flush(); err != nil {
		return 0, err
	}
	return s.readResponse()
}

// read reads one response without sending anything (the greeting).
func (s *session) read(ctx context.Context, timeout time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}
	return s.readResponse()
}

// readResponse reads a (possibly multi-line) SMTP response and records
// it as the session's last code and text.
func (s *session) readResponse() (int, error) {
	var lines []string
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return 0, fmt.Errorf("read response: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if len(line) < 3 {
			return 0, errors.New("response line too short")
		}
		lines = append(lines, line)
		// A '-' after the code marks a continuation line.
		if len(line) < 4 || line[3] != '-' {
			break
		}
	}

	last := lines[len(lines)-1]
	var code int
	if _, err := fmt.Sscanf(last[:3], "%d", &code); err != nil {
		return 0, fmt.Errorf("invalid response code %q: %w", last[:3], err)
	}

	s.lastCode = code
	s.lastText = strings.Join(lines, " | ")
	return code, nil
}

// close releases the session: best-effort QUIT, then the connection.
func (s *session) close() {
	_ = s.conn.SetDeadline(time.Now().Add(2 * time.Second))
	_, _ = s.writer.WriteString("QUIT\r\n")
	_ = s.writer.Flush()
	_ = s.conn.Close()
}
