// Package types contains the shared types for mailprobe.
// This package does not import anything from other mailprobe packages
// to avoid circular imports.
package types

// CheckLevel identifies the validation level.
type CheckLevel = string

const (
	LevelSyntax CheckLevel = "syntax"
	LevelDNS    CheckLevel = "dns"
	LevelDomain CheckLevel = "domain"
	LevelSMTP   CheckLevel = "smtp"
)

// Verdict is the deliverability classification produced by the SMTP probe.
type Verdict string

const (
	// VerdictDeliverable means a probe received an explicit
	// "recipient accepted" code (250/251) on RCPT TO.
	VerdictDeliverable Verdict = "deliverable"
	// VerdictNonExistent means a probe received an explicit
	// "recipient rejected" code (550/551/553) on RCPT TO.
	VerdictNonExistent Verdict = "nonexistent"
	// VerdictIndeterminate means the probe could not tell: greylisting,
	// catch-all acceptance, policy rejection of the envelope, or an
	// unexpected response. This is a normal, expected outcome.
	VerdictIndeterminate Verdict = "indeterminate"
	// VerdictBlocked means the server refused to talk to us: connection
	// refused/reset, or a 421 service-unavailable response.
	VerdictBlocked Verdict = "blocked"
	// VerdictTimeout means a stage exceeded its deadline or the probe
	// was cancelled mid-flight.
	VerdictTimeout Verdict = "timeout"
)

// Conclusive reports whether the verdict settles the question for the
// address, so that no further MX candidate needs to be tried.
func (v Verdict) Conclusive() bool {
	switch v {
	case VerdictDeliverable, VerdictNonExistent, VerdictBlocked:
		return true
	}
	return false
}

// ProbeStage names the SMTP probe state that produced an outcome.
type ProbeStage string

const (
	StageConnecting ProbeStage = "connecting"
	StageGreeting   ProbeStage = "greeting"
	StageHelo       ProbeStage = "helo"
	StageMailFrom   ProbeStage = "mailfrom"
	StageRcptTo     ProbeStage = "rcptto"
)

// MXRecord is one mail-exchange candidate for a domain.
// Lower Pref means more preferred. TTL is informational only.
type MXRecord struct {
	Host string `json:"host"`
	Pref uint16 `json:"pref"`
	TTL  uint32 `json:"ttl"`
}

// ProbeOutcome is the result of one SMTP probe attempt against one host.
type ProbeOutcome struct {
	Host    string     `json:"host"`
	Verdict Verdict    `json:"verdict"`
	Stage   ProbeStage `json:"stage"`
	// SMTPCode and Message carry the server response that produced the
	// classification, when one was received.
	SMTPCode int    `json:"smtpCode,omitempty"`
	Message  string `json:"message,omitempty"`
}

// CheckResult is the outcome of a single validation level.
type CheckResult struct {
	Level      CheckLevel `json:"level"`
	Passed     bool       `json:"passed"`
	Details    string     `json:"details,omitempty"`
	MXHost     string     `json:"mxHost,omitempty"`
	SMTPCode   int        `json:"smtpCode,omitempty"`
	Suggestion string     `json:"suggestion,omitempty"`

	// SMTP-level fields: the overall verdict, whether the domain looks
	// like a catch-all, and every probe attempt in trial order.
	Verdict  Verdict        `json:"verdict,omitempty"`
	CatchAll bool           `json:"catchAll,omitempty"`
	Attempts []ProbeOutcome `json:"attempts,omitempty"`
}
