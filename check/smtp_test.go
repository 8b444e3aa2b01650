package check_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mailprobe/mailprobe/check"
	"github.com/mailprobe/mailprobe/internal/dnsx"
	"github.com/mailprobe/mailprobe/internal/parse"
	"github.com/mailprobe/mailprobe/types"
)

// scriptedProbe replays a fixed outcome per host and records the order
// in which hosts (and addresses) were probed.
type scriptedProbe struct {
	outcomes map[string]types.ProbeOutcome
	probed   []string
	emails   []string
}

func (p *scriptedProbe) probe(_ context.Context, host, email string) types.ProbeOutcome {
	p.probed = append(p.probed, host)
	p.emails = append(p.emails, email)
	out, ok := p.outcomes[host]
	if !ok {
		out = types.ProbeOutcome{Verdict: types.VerdictIndeterminate, Stage: types.StageConnecting}
	}
	out.Host = host
	return out
}

func staticLookup(records ...types.MXRecord) check.LookupFunc {
	return func(string) ([]types.MXRecord, error) { return records, nil }
}

func newChecker(cfg check.SMTPConfig, lookup check.LookupFunc, p *scriptedProbe) *check.SMTPChecker {
	return check.NewSMTPChecker(cfg, lookup, p.probe, nil)
}

func TestSMTPChecker_TriesCandidatesInPriorityOrder(t *testing.T) {
	p := &scriptedProbe{outcomes: map[string]types.ProbeOutcome{
		"mx1.example.com": {Verdict: types.VerdictIndeterminate, Stage: types.StageRcptTo, SMTPCode: 450},
		"mx2.example.com": {Verdict: types.VerdictDeliverable, Stage: types.StageRcptTo, SMTPCode: 250},
	}}
	c := newChecker(check.SMTPConfig{MaxMXAttempts: 3}, staticLookup(
		types.MXRecord{Host: "mx1.example.com", Pref: 10},
		types.MXRecord{Host: "mx2.example.com", Pref: 20},
	), p)

	result := c.Check(context.Background(), parse.NewEmail("user@example.com"))

	assert.Equal(t, []string{"mx1.example.com", "mx2.example.com"}, p.probed)
	assert.True(t, result.Passed)
	assert.Equal(t, types.VerdictDeliverable, result.Verdict)
	assert.Equal(t, "mx2.example.com", result.MXHost)
	// Both attempts are recorded, in trial order.
	assert.Len(t, result.Attempts, 2)
	assert.Equal(t, types.VerdictIndeterminate, result.Attempts[0].Verdict)
	assert.Equal(t, types.VerdictDeliverable, result.Attempts[1].Verdict)
}

func TestSMTPChecker_StopsAtFirstConclusive(t *testing.T) {
	tests := []struct {
		name    string
		verdict types.Verdict
		passed  bool
	}{
		{"deliverable", types.VerdictDeliverable, true},
		{"nonexistent", types.VerdictNonExistent, false},
		{"blocked", types.VerdictBlocked, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &scriptedProbe{outcomes: map[string]types.ProbeOutcome{
				"mx1.example.com": {Verdict: tt.verdict, Stage: types.StageRcptTo},
			}}
			c := newChecker(check.SMTPConfig{MaxMXAttempts: 2}, staticLookup(
				types.MXRecord{Host: "mx1.example.com", Pref: 10},
				types.MXRecord{Host: "mx2.example.com", Pref: 20},
			), p)

			result := c.Check(context.Background(), parse.NewEmail("user@example.com"))

			assert.Equal(t, []string{"mx1.example.com"}, p.probed, "conclusive result must stop the trial")
			assert.Equal(t, tt.passed, result.Passed)
			assert.Equal(t, tt.verdict, result.Verdict)
		})
	}
}

func TestSMTPChecker_AllTimeoutsIsIndeterminate(t *testing.T) {
	p := &scriptedProbe{outcomes: map[string]types.ProbeOutcome{
		"mx1.example.com": {Verdict: types.VerdictTimeout, Stage: types.StageGreeting},
		"mx2.example.com": {Verdict: types.VerdictTimeout, Stage: types.StageGreeting},
	}}
	c := newChecker(check.SMTPConfig{MaxMXAttempts: 2}, staticLookup(
		types.MXRecord{Host: "mx1.example.com", Pref: 10},
		types.MXRecord{Host: "mx2.example.com", Pref: 20},
	), p)

	result := c.Check(context.Background(), parse.NewEmail("user@example.com"))

	assert.False(t, result.Passed)
	assert.Equal(t, types.VerdictIndeterminate, result.Verdict)
	assert.Len(t, result.Attempts, 2)
	for _, a := range result.Attempts {
		assert.Equal(t, types.VerdictTimeout, a.Verdict)
	}
}

func TestSMTPChecker_MaxAttemptsRespected(t *testing.T) {
	p := &scriptedProbe{outcomes: map[string]types.ProbeOutcome{}}
	c := newChecker(check.SMTPConfig{MaxMXAttempts: 1}, staticLookup(
		types.MXRecord{Host: "mx1.example.com", Pref: 10},
		types.MXRecord{Host: "mx2.example.com", Pref: 20},
	), p)

	result := c.Check(context.Background(), parse.NewEmail("user@example.com"))

	assert.Equal(t, []string{"mx1.example.com"}, p.probed)
	assert.Equal(t, types.VerdictIndeterminate, result.Verdict)
}

func TestSMTPChecker_LookupFailure(t *testing.T) {
	c := check.NewSMTPChecker(check.SMTPConfig{}, func(string) ([]types.MXRecord, error) {
		return nil, dnsx.ErrNotFound
	}, (&scriptedProbe{}).probe, nil)

	result := c.Check(context.Background(), parse.NewEmail("user@nosuchdomain.example"))

	assert.False(t, result.Passed)
	assert.Equal(t, types.VerdictIndeterminate, result.Verdict)
	assert.Contains(t, result.Details, "MX lookup failed")
}

func TestSMTPChecker_ContextCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	hostsProbed := 0
	probeFn := func(_ context.Context, host, _ string) types.ProbeOutcome {
		hostsProbed++
		cancel() // cancel after the first attempt
		return types.ProbeOutcome{Host: host, Verdict: types.VerdictIndeterminate, Stage: types.StageRcptTo}
	}
	c := check.NewSMTPChecker(check.SMTPConfig{MaxMXAttempts: 2}, staticLookup(
		types.MXRecord{Host: "mx1.example.com", Pref: 10},
		types.MXRecord{Host: "mx2.example.com", Pref: 20},
	), probeFn, nil)

	result := c.Check(ctx, parse.NewEmail("user@example.com"))

	assert.Equal(t, 1, hostsProbed)
	assert.Equal(t, types.VerdictTimeout, result.Verdict)
	assert.Len(t, result.Attempts, 1, "the attempt before cancellation is still recorded")
}

func TestSMTPChecker_CatchAllDetection(t *testing.T) {
	p := &scriptedProbe{outcomes: map[string]types.ProbeOutcome{
		"mx.example.com": {Verdict: types.VerdictDeliverable, Stage: types.StageRcptTo, SMTPCode: 250},
	}}
	c := newChecker(check.SMTPConfig{MaxMXAttempts: 1, DetectCatchAll: true}, staticLookup(
		types.MXRecord{Host: "mx.example.com", Pref: 10},
	), p)

	result := c.Check(context.Background(), parse.NewEmail("user@example.com"))

	// The server accepted the random probe too, so acceptance proved nothing.
	assert.False(t, result.Passed)
	assert.True(t, result.CatchAll)
	assert.Equal(t, types.VerdictIndeterminate, result.Verdict)
	assert.Len(t, result.Attempts, 2)
	assert.Len(t, p.emails, 2)
	assert.Equal(t, "user@example.com", p.emails[0])
	assert.True(t, strings.HasSuffix(p.emails[1], "@example.com"))
	assert.NotEqual(t, p.emails[0], p.emails[1])
}

func TestSMTPChecker_CatchAllNegative(t *testing.T) {
	calls := 0
	probeFn := func(_ context.Context, host, email string) types.ProbeOutcome {
		calls++
		if calls == 1 {
			return types.ProbeOutcome{Host: host, Verdict: types.VerdictDeliverable, Stage: types.StageRcptTo, SMTPCode: 250}
		}
		// Random probe rejected: the domain is not a catch-all.
		return types.ProbeOutcome{Host: host, Verdict: types.VerdictNonExistent, Stage: types.StageRcptTo, SMTPCode: 550}
	}
	c := check.NewSMTPChecker(check.SMTPConfig{MaxMXAttempts: 1, DetectCatchAll: true}, staticLookup(
		types.MXRecord{Host: "mx.example.com", Pref: 10},
	), probeFn, nil)

	result := c.Check(context.Background(), parse.NewEmail("user@example.com"))

	assert.True(t, result.Passed)
	assert.False(t, result.CatchAll)
	assert.Equal(t, types.VerdictDeliverable, result.Verdict)
	assert.Len(t, result.Attempts, 2)
}

func TestSMTPChecker_InvalidEmail(t *testing.T) {
	p := &scriptedProbe{}
	c := newChecker(check.SMTPConfig{}, staticLookup(), p)

	result := c.Check(context.Background(), parse.NewEmail("invalid"))

	assert.False(t, result.Passed)
	assert.Contains(t, result.Details, "skipped")
	assert.Empty(t, p.probed)
}
