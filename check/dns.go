package check

import (
	"context"
	"fmt"

	"github.com/mailprobe/mailprobe/internal/dnsx"
	"github.com/mailprobe/mailprobe/internal/parse"
	"github.com/mailprobe/mailprobe/types"
)

// LookupFunc resolves the ordered MX candidate list for a domain.
// In the assembled pipeline it is the shared dnscache front of a
// dnsx.Resolver; tests inject their own.
type LookupFunc func(domain string) ([]types.MXRecord, error)

// DNSChecker verifies that the domain has at least one mail exchanger.
type DNSChecker struct {
	lookup LookupFunc
}

func NewDNSChecker(lookup LookupFunc) *DNSChecker {
	return &DNSChecker{lookup: lookup}
}

func (c *DNSChecker) Check(_ context.Context, email parse.Email) types.CheckResult {
	level := types.LevelDNS

	if !email.Valid {
		return types.CheckResult{Level: level, Passed: false, Details: "skipped: invalid email"}
	}

	records, err := c.lookup(email.Domain)
	if err != nil {
		return types.CheckResult{Level: level, Passed: false, Details: describeDNSError(email.Domain, err)}
	}
	if len(records) == 0 {
		return types.CheckResult{Level: level, Passed: false, Details: "no MX records found"}
	}

	return types.CheckResult{
		Level:   level,
		Passed:  true,
		Details: fmt.Sprintf("%d MX record(s) found", len(records)),
		MXHost:  records[0].Host,
	}
}

// describeDNSError turns the dnsx error taxonomy into a reason string.
func describeDNSError(domain string, err error) string {
	switch {
	case dnsx.IsNotFound(err):
		return fmt.Sprintf("no mail exchanger for %s", domain)
	default:
		return fmt.Sprintf("MX lookup failed: %v", err)
	}
}
