// Package ratelimit throttles outbound SMTP probes. Mail providers
// aggressively penalize probe bursts, so a global limit applies on top
// of per-domain limits, with stricter defaults for the major providers.
package ratelimit

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Config configures the limiter set.
type Config struct {
	// GlobalRate/GlobalBurst bound all probes together. Default: 10/s, burst 10.
	GlobalRate  rate.Limit
	GlobalBurst int
	// DomainRate/DomainBurst apply per recipient domain. Default: 5/s, burst 5.
	DomainRate  rate.Limit
	DomainBurst int
}

// strictDomains get a tighter default limit than ordinary domains.
var strictDomains = map[string]rate.Limit{
	"gmail.com":      2,
	"googlemail.com": 2,
	"outlook.com":    1,
	"hotmail.com":    1,
	"live.com":       1,
	"yahoo.com":      1,
}

// Limiter manages the global and per-domain token buckets.
type Limiter struct {
	cfg    Config
	global *rate.Limiter

	mu      sync.Mutex
	domains map[string]*rate.Limiter
}

// New creates a limiter set, applying defaults for unset values.
func New(cfg Config) *Limiter {
	if cfg.GlobalRate == 0 {
		cfg.GlobalRate = 10
	}
	if cfg.GlobalBurst == 0 {
		cfg.GlobalBurst = 10
	}
	if cfg.DomainRate == 0 {
		cfg.DomainRate = 5
	}
	if cfg.DomainBurst == 0 {
		cfg.DomainBurst = 5
	}
	return &Limiter{
		cfg:     cfg,
		global:  rate.NewLimiter(cfg.GlobalRate, cfg.GlobalBurst),
		domains: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until both the global and the domain bucket allow one
// probe, or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context, domain string) error {
	if err := l.global.Wait(ctx); err != nil {
		return err
	}
	return l.forDomain(domain).Wait(ctx)
}

func (l *Limiter) forDomain(domain string) *rate.Limiter {
	domain = strings.ToLower(domain)

	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.domains[domain]; ok {
		return lim
	}

	r := l.cfg.DomainRate
	b := l.cfg.DomainBurst
	if strict, ok := strictDomains[domain]; ok && strict < r {
		r = strict
		b = int(strict)
	}
	lim := rate.NewLimiter(r, b)
	l.domains[domain] = lim
	return lim
}
