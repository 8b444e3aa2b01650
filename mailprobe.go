// Package mailprobe validates email addresses at the syntax, DNS, domain
// and SMTP levels. The SMTP level probes the address's mail exchangers
// with an EHLO / MAIL FROM / RCPT TO handshake (no mail is sent) and
// classifies the answer. Mail servers often answer probes evasively
// (catch-alls, greylisting), so "indeterminate" is a first-class verdict,
// not an error.
//
// Basic usage:
//
//	result, err := mailprobe.New().Validate(ctx, "user@example.com")
//
// Full pipeline:
//
//	v := mailprobe.New().
//	    WithDNS().
//	    WithDomain().
//	    WithSMTP(mailprobe.SMTPOptions{
//	        HeloDomain: "myapp.com",
//	        MailFrom:   "verify@myapp.com",
//	    })
//	result, err := v.Validate(ctx, "user@example.com")
//	fmt.Println(result.Verdict, result.Reason)
package mailprobe

import "github.com/mailprobe/mailprobe/types"

// CheckResult is a re-export from the types package so that consumers
// don't need to import the types package directly.
type CheckResult = types.CheckResult

// CheckLevel is a re-export.
type CheckLevel = types.CheckLevel

// Verdict is a re-export.
type Verdict = types.Verdict

// MXRecord is a re-export.
type MXRecord = types.MXRecord

// ProbeOutcome is a re-export.
type ProbeOutcome = types.ProbeOutcome

// Level constants re-exported.
const (
	LevelSyntax = types.LevelSyntax
	LevelDNS    = types.LevelDNS
	LevelDomain = types.LevelDomain
	LevelSMTP   = types.LevelSMTP
)

// Verdict constants re-exported.
const (
	VerdictDeliverable   = types.VerdictDeliverable
	VerdictNonExistent   = types.VerdictNonExistent
	VerdictIndeterminate = types.VerdictIndeterminate
	VerdictBlocked       = types.VerdictBlocked
	VerdictTimeout       = types.VerdictTimeout
)
