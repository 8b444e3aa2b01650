package check

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/mailprobe/mailprobe/internal/parse"
	"github.com/mailprobe/mailprobe/internal/ratelimit"
	"github.com/mailprobe/mailprobe/types"
)

// SMTPConfig is the SMTP checker configuration.
type SMTPConfig struct {
	// MaxMXAttempts is how many MX candidates to try in priority order.
	MaxMXAttempts int
	// DetectCatchAll, when set, follows an accepted RCPT with a probe for
	// a random local part on the same host. If that is also accepted the
	// domain accepts everything and the result is downgraded to
	// Indeterminate with the CatchAll flag set.
	DetectCatchAll bool
}

// ProbeFunc probes one MX host for one address (implemented by
// probe.Engine.Probe; tests inject their own).
type ProbeFunc func(ctx context.Context, host, email string) types.ProbeOutcome

// SMTPChecker is the result aggregator for the SMTP level: it walks the
// MX candidates in priority order, probing each until an attempt settles
// the question, and records every attempt for diagnostics.
type SMTPChecker struct {
	cfg     SMTPConfig
	lookup  LookupFunc
	probe   ProbeFunc
	limiter *ratelimit.Limiter // nil disables throttling
}

// NewSMTPChecker creates the aggregator. lookup is shared with the DNS
// checker so one validation resolves MX records at most once.
func NewSMTPChecker(cfg SMTPConfig, lookup LookupFunc, probe ProbeFunc, limiter *ratelimit.Limiter) *SMTPChecker {
	return &SMTPChecker{cfg: cfg, lookup: lookup, probe: probe, limiter: limiter}
}

func (c *SMTPChecker) Check(ctx context.Context, email parse.Email) types.CheckResult {
	level := types.LevelSMTP

	if !email.Valid {
		return types.CheckResult{Level: level, Passed: false, Details: "skipped: invalid email"}
	}

	records, err := c.lookup(email.Domain)
	if err != nil || len(records) == 0 {
		return types.CheckResult{
			Level:   level,
			Passed:  false,
			Verdict: types.VerdictIndeterminate,
			Details: describeNoCandidates(email.Domain, err),
		}
	}

	maxAttempts := c.cfg.MaxMXAttempts
	if maxAttempts <= 0 || maxAttempts > len(records) {
		maxAttempts = len(records)
	}

	var attempts []types.ProbeOutcome
	for i := 0; i < maxAttempts; i++ {
		host := records[i].Host

		if err := c.throttle(ctx, email.Domain); err != nil {
			return result(attempts, types.CheckResult{
				Level:   level,
				Passed:  false,
				Verdict: types.VerdictTimeout,
				Details: fmt.Sprintf("cancelled before probing %s: %v", host, err),
			})
		}

		out := c.probe(ctx, host, email.Raw)
		attempts = append(attempts, out)

		if !out.Verdict.Conclusive() {
			// Timeout or Indeterminate: a lower-priority host may still
			// give a definite answer.
			continue
		}

		if out.Verdict == types.VerdictDeliverable && c.cfg.DetectCatchAll {
			if catchAll, probeOut := c.probeCatchAll(ctx, host, email.Domain); catchAll {
				attempts = append(attempts, probeOut)
				return result(attempts, types.CheckResult{
					Level:    level,
					Passed:   false,
					Verdict:  types.VerdictIndeterminate,
					CatchAll: true,
					MXHost:   host,
					SMTPCode: out.SMTPCode,
					Details:  "catch-all domain: server accepts any recipient",
				})
			} else {
				attempts = append(attempts, probeOut)
			}
		}

		return result(attempts, types.CheckResult{
			Level:    level,
			Passed:   out.Verdict == types.VerdictDeliverable,
			Verdict:  out.Verdict,
			MXHost:   host,
			SMTPCode: out.SMTPCode,
			Details:  describeVerdict(out),
		})
	}

	// Exhaustion without a conclusive answer is not an error: the caller
	// must be told the probe was inconclusive.
	return result(attempts, types.CheckResult{
		Level:   level,
		Passed:  false,
		Verdict: types.VerdictIndeterminate,
		Details: fmt.Sprintf("no conclusive answer from %d MX host(s)", len(attempts)),
	})
}

func (c *SMTPChecker) throttle(ctx context.Context, domain string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx, domain)
}

// probeCatchAll probes a random local part on the host that just accepted
// our recipient. Acceptance of a nonsense address means acceptance proves
// nothing.
func (c *SMTPChecker) probeCatchAll(ctx context.Context, host, domain string) (bool, types.ProbeOutcome) {
	out := c.probe(ctx, host, randomLocal()+"@"+domain)
	return out.Verdict == types.VerdictDeliverable, out
}

func randomLocal() string {
	b := make([]byte, 9)
	if _, err := rand.Read(b); err != nil {
		return "mailprobe-catchall-check"
	}
	return "mp-" + hex.EncodeToString(b)
}

func result(attempts []types.ProbeOutcome, r types.CheckResult) types.CheckResult {
	r.Attempts = attempts
	return r
}

func describeNoCandidates(domain string, err error) string {
	if err != nil {
		return fmt.Sprintf("MX lookup failed: %v", err)
	}
	return fmt.Sprintf("no MX candidates for %s", domain)
}

func describeVerdict(out types.ProbeOutcome) string {
	switch out.Verdict {
	case types.VerdictDeliverable:
		return "RCPT TO accepted"
	case types.VerdictNonExistent:
		return fmt.Sprintf("RCPT rejected: %s", out.Message)
	case types.VerdictBlocked:
		return fmt.Sprintf("server at %s refused the probe: %s", out.Host, out.Message)
	default:
		return fmt.Sprintf("inconclusive at stage %s: %s", out.Stage, out.Message)
	}
}
