// Package parse turns raw input into the address representation the
// checkers consume: local part, ASCII (Punycode) domain for DNS/SMTP,
// and Unicode domain for display.
package parse

import (
	"net/mail"
	"strings"

	"golang.org/x/net/idna"
)

// Email is the parsed form of an address. It is immutable after parsing;
// the check packages receive it by value.
type Email struct {
	Raw           string // the original, trimmed input
	Local         string // the part before @
	Domain        string // the part after @, ASCII/Punycode form (for DNS/SMTP)
	DomainUnicode string // the part after @, Unicode form (for display/typo detection)
	Valid         bool   // false if Raw cannot be parsed
}

// NewEmail attempts to parse the given email string.
// If parsing fails, Valid=false but Raw is always populated.
// Supports internationalized addresses (RFC 6531 / EAI) and
// internationalized domain names (IDNA2008).
func NewEmail(raw string) Email {
	raw = strings.TrimSpace(raw)

	// Try standard parsing first (handles most ASCII emails)
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		addr, err = mail.ParseAddress("<" + raw + ">")
		if err != nil {
			// Fallback: manual split for internationalized local parts
			// that net/mail does not accept (RFC 6531 SMTPUTF8)
			return splitManual(raw)
		}
	}

	parts := strings.SplitN(addr.Address, "@", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Email{Raw: raw, Valid: false}
	}

	return buildEmail(raw, parts[0], parts[1])
}

func splitManual(raw string) Email {
	atIdx := strings.LastIndex(raw, "@")
	if atIdx < 1 || atIdx >= len(raw)-1 {
		return Email{Raw: raw, Valid: false}
	}
	return buildEmail(raw, raw[:atIdx], raw[atIdx+1:])
}

// buildEmail constructs an Email with proper IDNA domain handling.
func buildEmail(raw, local, domain string) Email {
	asciiDomain, unicodeDomain, ok := convertDomain(strings.ToLower(domain))
	if !ok {
		return Email{Raw: raw, Valid: false}
	}

	return Email{
		Raw:           raw,
		Local:         local,
		Domain:        asciiDomain,
		DomainUnicode: unicodeDomain,
		Valid:         true,
	}
}

// convertDomain converts a domain to both ASCII/Punycode and Unicode
// forms. ok is false if a non-ASCII domain fails IDNA2008 validation.
func convertDomain(domain string) (ascii, unicode string, ok bool) {
	hasNonASCII := false
	for _, r := range domain {
		if r > 127 {
			hasNonASCII = true
			break
		}
	}

	if hasNonASCII {
		a, err := idna.Lookup.ToASCII(domain)
		if err != nil {
			return "", "", false
		}
		return a, domain, true
	}

	// Pure ASCII: recover the Unicode display form so that existing
	// Punycode like xn--mnchen-3ya.de renders as münchen.de.
	u, err := idna.Display.ToUnicode(domain)
	if err != nil {
		u = domain
	}
	return domain, u, true
}
