package check

import (
	"context"
	"fmt"
	"strings"

	"github.com/mailprobe/mailprobe/internal/disposable"
	"github.com/mailprobe/mailprobe/internal/levenshtein"
	"github.com/mailprobe/mailprobe/internal/parse"
	"github.com/mailprobe/mailprobe/types"
)

// DomainConfig is the domain checker configuration.
type DomainConfig struct {
	// AllowedDomains, when non-empty, restricts validation to the listed
	// domains; anything else fails this level.
	AllowedDomains  []string
	CheckDisposable bool
	CheckTypos      bool
	TypoThreshold   int
}

// DomainChecker enforces the domain allowlist and detects disposable
// domains and likely typos.
type DomainChecker struct {
	cfg            DomainConfig
	allowed        map[string]struct{}
	knownProviders []string // known major email providers for typo detection
}

// defaultKnownProviders is the list of known major email providers.
// If the user's domain is within TypoThreshold distance from one of these,
// a suggestion is given (but the check does not fail).
var defaultKnownProviders = []string{
	"gmail.com", "googlemail.com",
	"yahoo.com", "yahoo.co.uk", "yahoo.fr", "yahoo.de",
	"outlook.com", "hotmail.com", "hotmail.co.uk", "live.com",
	"icloud.com", "me.com", "mac.com",
	"protonmail.com", "proton.me",
	"aol.com",
	"zoho.com",
	"yandex.com", "yandex.ru",
	"mail.com",
	"gmx.com", "gmx.net", "gmx.de",
	"fastmail.com",
	"tutanota.com",
}

func NewDomainChecker(cfg DomainConfig) *DomainChecker {
	var allowed map[string]struct{}
	if len(cfg.AllowedDomains) > 0 {
		allowed = make(map[string]struct{}, len(cfg.AllowedDomains))
		for _, d := range cfg.AllowedDomains {
			allowed[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
		}
	}
	return &DomainChecker{
		cfg:            cfg,
		allowed:        allowed,
		knownProviders: defaultKnownProviders,
	}
}

func (c *DomainChecker) Check(_ context.Context, email parse.Email) types.CheckResult {
	level := types.LevelDomain

	if !email.Valid {
		return types.CheckResult{Level: level, Passed: false, Details: "skipped: invalid email"}
	}

	// Use ASCII/Punycode domain for list lookups (the lists are ASCII)
	asciiDomain := strings.ToLower(email.Domain)
	// Use Unicode domain for typo detection (better Levenshtein matching)
	unicodeDomain := strings.ToLower(email.DomainUnicode)

	if c.allowed != nil {
		if _, ok := c.allowed[asciiDomain]; !ok {
			return types.CheckResult{
				Level:   level,
				Passed:  false,
				Details: fmt.Sprintf("domain %q is not in the allowed list", asciiDomain),
			}
		}
	}

	if c.cfg.CheckDisposable {
		if disposable.IsDisposable(asciiDomain) {
			return types.CheckResult{
				Level:   level,
				Passed:  false,
				Details: "disposable email domain detected",
			}
		}
	}

	// Typo detection (suggestion only, does not fail)
	if c.cfg.CheckTypos {
		if suggestion := c.findTypoSuggestion(unicodeDomain); suggestion != "" {
			return types.CheckResult{
				Level:      level,
				Passed:     true,
				Details:    "possible typo in domain",
				Suggestion: suggestion,
			}
		}
	}

	return types.CheckResult{Level: level, Passed: true, Details: "domain ok"}
}

// findTypoSuggestion finds the closest known provider.
// If the distance is <= TypoThreshold and the domain is not an exact match,
// it returns the suggested domain. Otherwise returns an empty string.
func (c *DomainChecker) findTypoSuggestion(domain string) string {
	bestDist := c.cfg.TypoThreshold + 1
	bestMatch := ""

	for _, provider := range c.knownProviders {
		if domain == provider {
			return "" // exact match, no typo
		}
		dist := levenshtein.Distance(domain, provider)
		if dist <= c.cfg.TypoThreshold && dist < bestDist {
			bestDist = dist
			bestMatch = provider
		}
	}

	return bestMatch
}
